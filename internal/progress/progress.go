package progress

// Event is one tool state transition delivered to a Sink. Callbacks arrive
// from executor workers, so Sink implementations must be safe for concurrent
// use.
type Event struct {
	Tool     string
	State    string
	Errors   int
	Warnings int
}

// Tool states surfaced to renderers, beyond the terminal result statuses.
const (
	StatePending = "pending"
	StateRunning = "running"
)

// Sink receives live progress during a run. The TTY renderer and the no-op
// sink are the two implementations.
type Sink interface {
	Begin(tools []string)
	Update(ev Event)
	End()
}

// nopSink consumes callbacks without output, for non-TTY contexts.
type nopSink struct{}

func (nopSink) Begin([]string) {}
func (nopSink) Update(Event)   {}
func (nopSink) End()           {}

// Nop returns a sink that discards all progress.
func Nop() Sink {
	return nopSink{}
}
