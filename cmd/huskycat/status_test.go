package main

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"huskycat/internal/registry"
	"huskycat/internal/router"
)

func TestToolVerdictLinesCoverEveryTool(t *testing.T) {
	reg, err := registry.Build([]registry.Tool{
		{Name: "fmt", Patterns: []string{"*.py"}, License: registry.LicensePermissive, Command: []string{"fmt"}, Cost: 1},
		{Name: "lint", Patterns: []string{"*.py"}, License: registry.LicensePermissive, Command: []string{"lint"}, DependsOn: []string{"fmt"}, Cost: 2},
		{Name: "scan", Patterns: []string{"*.sh"}, License: registry.LicenseCopyleft, Command: []string{"scan"}, Cost: 3},
	})
	require.NoError(t, err)

	resolve := func(_ context.Context, tool registry.Tool) router.Plan {
		switch tool.Name {
		case "fmt":
			return router.Plan{Verdict: router.VerdictLocalPath, Argv: []string{"/usr/bin/fmt"}}
		case "scan":
			return router.Plan{Verdict: router.VerdictUnavailable, Reason: "no sandbox runtime"}
		default:
			return router.Plan{Verdict: router.VerdictBundled, Argv: []string{"/cache/lint"}}
		}
	}

	lines := toolVerdictLines(context.Background(), reg, resolve)
	require.Len(t, lines, 3)
	// Level order: cost descending within a level, dependents after deps.
	assert.Contains(t, lines[0], "scan")
	assert.Contains(t, lines[0], "no sandbox runtime")
	assert.Contains(t, lines[1], "fmt")
	assert.Contains(t, lines[1], string(router.VerdictLocalPath))
	assert.Contains(t, lines[2], "lint")
	assert.Contains(t, lines[2], string(router.VerdictBundled))
}
