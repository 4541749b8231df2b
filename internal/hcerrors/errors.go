package hcerrors

import (
	"errors"
	"fmt"
)

// Kind classifies an orchestrator error for exit-code mapping and reporting.
type Kind string

const (
	// KindConfiguration marks invalid registry or config state. Fatal at startup.
	KindConfiguration Kind = "configuration"
	// KindUnavailable marks a tool the router could not resolve.
	KindUnavailable Kind = "unavailable"
	// KindInvocation marks a tool run that produced findings.
	KindInvocation Kind = "invocation"
	// KindTimeout marks a tool deadline expiry.
	KindTimeout Kind = "timeout"
	// KindIO marks run-store or lock failures.
	KindIO Kind = "io"
	// KindInterrupted marks a user-initiated abort.
	KindInterrupted Kind = "interrupted"
	// KindProtocol marks a malformed JSON-RPC message.
	KindProtocol Kind = "protocol"
)

// Exit codes for the subcommand surface.
const (
	ExitOK          = 0
	ExitValidation  = 1
	ExitConfig      = 2
	ExitInterrupted = 130
)

// Error carries a taxonomy kind alongside a human message.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

// New creates a kind-tagged error with a formatted message.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Wrap attaches a kind and message to an underlying error.
func Wrap(kind Kind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...), Err: err}
}

// KindOf extracts the taxonomy kind from err, defaulting to io for plain errors.
func KindOf(err error) Kind {
	var he *Error
	if errors.As(err, &he) {
		return he.Kind
	}
	return KindIO
}

// ExitCode maps an error to the process exit code contract.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	switch KindOf(err) {
	case KindConfiguration, KindIO, KindUnavailable:
		return ExitConfig
	case KindInterrupted:
		return ExitInterrupted
	default:
		return ExitValidation
	}
}
