package id

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/ksuid"
)

// NewRunID generates a run identifier ordered by start time: a nanosecond
// timestamp followed by a random KSUID suffix so that concurrent invocations
// in the same repository never collide.
func NewRunID() string {
	return fmt.Sprintf("%d-%s", time.Now().UnixNano(), ksuid.New().String()[:10])
}

// NewTaskID generates a task identifier with a stable prefix for display.
// UUIDv7 keeps task ids time-ordered; KSUID is the fallback.
func NewTaskID() string {
	if v7, err := uuid.NewV7(); err == nil {
		return fmt.Sprintf("task-%s", v7.String())
	}
	return fmt.Sprintf("task-%s", ksuid.New().String())
}

// NewKSUID exposes raw KSUID generation for callers that need unprefixed identifiers.
func NewKSUID() string {
	return ksuid.New().String()
}
