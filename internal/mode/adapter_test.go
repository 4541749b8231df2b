package mode

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestForModePolicyTable(t *testing.T) {
	tests := []struct {
		mode          Mode
		format        OutputFormat
		interactivity Interactivity
		filter        ToolFilter
		failFast      bool
		emitProgress  bool
	}{
		{GitHooksBlocking, FormatMinimal, InteractNone, FilterFast, true, false},
		{GitHooksNonblocking, FormatMinimal, InteractConfirmOnly, FilterAll, false, true},
		{CI, FormatJUnit, InteractNone, FilterAll, false, false},
		{CLI, FormatHuman, InteractFull, FilterConfigured, false, true},
		{Pipeline, FormatJSON, InteractNone, FilterAll, false, false},
		{AgentRPC, FormatJSONRPC, InteractNone, FilterAll, false, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.mode), func(t *testing.T) {
			a := ForMode(tt.mode)
			assert.Equal(t, tt.mode, a.Mode)
			assert.Equal(t, tt.format, a.Format)
			assert.Equal(t, tt.interactivity, a.Interactivity)
			assert.Equal(t, tt.filter, a.Filter)
			assert.Equal(t, tt.failFast, a.FailFast)
			assert.Equal(t, tt.emitProgress, a.EmitProgress)
			assert.Equal(t, DefaultToolTimeout, a.ToolTimeout)
		})
	}
}

func TestForModeUnknownFallsBackToCLI(t *testing.T) {
	a := ForMode(Mode("mystery"))
	assert.Equal(t, CLI, a.Mode)
	assert.Equal(t, FormatHuman, a.Format)
}
