package mode

import "time"

// OutputFormat selects the result serializer.
type OutputFormat string

const (
	FormatHuman   OutputFormat = "human"
	FormatMinimal OutputFormat = "minimal"
	FormatJUnit   OutputFormat = "junit-xml"
	FormatJSON    OutputFormat = "json"
	FormatJSONRPC OutputFormat = "jsonrpc"
)

// Interactivity bounds what the orchestrator may ask the user.
type Interactivity int

const (
	InteractNone Interactivity = iota
	// InteractConfirmOnly permits only the prior-run prompt before fork.
	InteractConfirmOnly
	InteractFull
)

// ToolFilter narrows the runnable tool set per mode.
type ToolFilter string

const (
	// FilterFast keeps only cheap tools, for the blocking pre-commit path.
	FilterFast ToolFilter = "fast"
	// FilterConfigured keeps tools enabled by project configuration.
	FilterConfigured ToolFilter = "configured"
	FilterAll        ToolFilter = "all"
)

// DefaultToolTimeout is the per-tool deadline unless an adapter overrides it.
const DefaultToolTimeout = 60 * time.Second

// Adapter is the per-mode policy object. It is a plain value: construct once
// at startup and pass through.
type Adapter struct {
	Mode          Mode
	Format        OutputFormat
	Interactivity Interactivity
	Filter        ToolFilter
	FailFast      bool
	EmitProgress  bool
	ToolTimeout   time.Duration
}

// ForMode returns the fixed policy table entry for m.
func ForMode(m Mode) Adapter {
	a := Adapter{Mode: m, ToolTimeout: DefaultToolTimeout}
	switch m {
	case GitHooksBlocking:
		a.Format = FormatMinimal
		a.Interactivity = InteractNone
		a.Filter = FilterFast
		a.FailFast = true
	case GitHooksNonblocking:
		a.Format = FormatMinimal
		a.Interactivity = InteractConfirmOnly
		a.Filter = FilterAll
		a.EmitProgress = true // in the detached child
	case CI:
		a.Format = FormatJUnit
		a.Interactivity = InteractNone
		a.Filter = FilterAll
	case Pipeline:
		a.Format = FormatJSON
		a.Interactivity = InteractNone
		a.Filter = FilterAll
	case AgentRPC:
		a.Format = FormatJSONRPC
		a.Interactivity = InteractNone
		a.Filter = FilterAll
	default: // CLI
		a.Mode = CLI
		a.Format = FormatHuman
		a.Interactivity = InteractFull
		a.Filter = FilterConfigured
		a.EmitProgress = true
	}
	return a
}
