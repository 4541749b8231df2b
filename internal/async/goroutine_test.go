package async

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingLogger struct {
	mu   sync.Mutex
	msgs []string
}

func (l *recordingLogger) Error(format string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.msgs = append(l.msgs, fmt.Sprintf(format, args...))
}

func (l *recordingLogger) all() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.msgs...)
}

func TestGoRunsFunction(t *testing.T) {
	done := make(chan struct{})
	Go(nil, "worker", func() { close(done) })
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("goroutine never ran")
	}
}

func TestGoLogsPanicWithName(t *testing.T) {
	logger := &recordingLogger{}
	done := make(chan struct{})
	Go(logger, "flaky-worker", func() {
		defer close(done)
		panic("boom")
	})
	<-done

	// Recover runs after the deferred close; give it a beat.
	assert.Eventually(t, func() bool { return len(logger.all()) == 1 }, time.Second, 10*time.Millisecond)
	msg := logger.all()[0]
	assert.Contains(t, msg, "flaky-worker")
	assert.Contains(t, msg, "boom")
}

func TestRecoverWithNilLoggerDoesNotCrash(t *testing.T) {
	require.NotPanics(t, func() {
		func() {
			defer Recover(nil, "quiet")
			panic("swallowed")
		}()
	})
}
