package async

import "runtime/debug"

// ErrorLogger receives panic reports from detached goroutines.
type ErrorLogger interface {
	Error(format string, args ...any)
}

// Go launches fn on its own goroutine and turns a panic into a logged error
// instead of a process crash. Validation workers, the progress renderer, and
// background task handlers all run under this guard.
func Go(logger ErrorLogger, name string, fn func()) {
	go func() {
		defer Recover(logger, name)
		fn()
	}()
}

// Recover is the deferred half of Go, exported so long-lived loops can guard
// individual iterations.
func Recover(logger ErrorLogger, name string) {
	r := recover()
	if r == nil || logger == nil {
		return
	}
	if name == "" {
		name = "goroutine"
	}
	logger.Error("panic in %s: %v\n%s", name, r, debug.Stack())
}
