package result

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAggregatorRejectsDuplicateToolTarget(t *testing.T) {
	agg := NewAggregator("run-1", "cli", nil, nil)
	require.NoError(t, agg.Add(Result{Tool: "ruff", Target: "a.py", Status: StatusSuccess}))

	err := agg.Add(Result{Tool: "ruff", Target: "a.py", Status: StatusFailed})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate")

	// Same tool on a different target is fine.
	require.NoError(t, agg.Add(Result{Tool: "ruff", Target: "b.py", Status: StatusSuccess}))
}

func TestFinalizeSummaryAndSuccessRule(t *testing.T) {
	agg := NewAggregator("run-2", "ci", []string{"a.py"}, []string{"ruff", "mypy", "shellcheck"})
	require.NoError(t, agg.Add(Result{Tool: "ruff", Target: "a.py", Status: StatusSuccess, Warnings: 2}))
	require.NoError(t, agg.Add(Result{Tool: "mypy", Target: "a.py", Status: StatusSkipped}))
	require.NoError(t, agg.Add(Result{Tool: "shellcheck", Target: "x.sh", Status: StatusUnavailable}))

	run := agg.Finalize()
	require.True(t, run.Complete())
	assert.Equal(t, 3, run.Summary.Total)
	assert.Equal(t, 1, run.Summary.Success)
	assert.Equal(t, 1, run.Summary.Skipped)
	assert.Equal(t, 1, run.Summary.Unavailable)
	assert.Equal(t, 2, run.Summary.Warnings)
	// Unavailability and skips never fail a run.
	assert.True(t, run.Success)
}

func TestFinalizeFailsOnTimeout(t *testing.T) {
	agg := NewAggregator("run-3", "ci", nil, nil)
	require.NoError(t, agg.Add(Result{Tool: "mypy", Target: "a.py", Status: StatusTimeout}))

	run := agg.Finalize()
	assert.False(t, run.Success)
	assert.Equal(t, 1, run.Summary.Timeout)
}

func TestFinalizeStableOrderBlockingFirst(t *testing.T) {
	agg := NewAggregator("run-4", "ci", nil, nil)
	require.NoError(t, agg.Add(Result{Tool: "zz", Target: "a", Status: StatusSuccess}))
	require.NoError(t, agg.Add(Result{Tool: "mm", Target: "b", Status: StatusFailed}))
	require.NoError(t, agg.Add(Result{Tool: "aa", Target: "c", Status: StatusSuccess}))
	require.NoError(t, agg.Add(Result{Tool: "mm", Target: "a", Status: StatusFailed}))

	run := agg.Finalize()
	var order []string
	for _, res := range run.Results {
		order = append(order, res.Tool+"/"+res.Target)
	}
	assert.Equal(t, []string{"mm/a", "mm/b", "aa/c", "zz/a"}, order)
}

func TestSerializeJSONRoundTrip(t *testing.T) {
	agg := NewAggregator("run-5", "pipeline", []string{"a.py"}, []string{"ruff"})
	require.NoError(t, agg.Add(Result{
		Tool: "ruff", Target: "a.py", Status: StatusFailed,
		Errors: 3, Duration: 120 * time.Millisecond,
		Stdout: "a.py:1:1 E501", StartedAt: time.Now(), FinishedAt: time.Now(),
	}))
	run := agg.Finalize()

	data, err := SerializeJSON(run)
	require.NoError(t, err)

	parsed, err := ParseRun(data)
	require.NoError(t, err)
	assert.Equal(t, run.ID, parsed.ID)
	assert.Equal(t, run.Success, parsed.Success)
	require.Len(t, parsed.Results, 1)
	assert.Equal(t, run.Results[0].Status, parsed.Results[0].Status)
	assert.Equal(t, run.Results[0].Errors, parsed.Results[0].Errors)
	assert.Equal(t, run.Summary, parsed.Summary)
}

func TestSerializeMinimalQuietOnSuccess(t *testing.T) {
	agg := NewAggregator("run-6", "git-hooks-blocking", nil, nil)
	require.NoError(t, agg.Add(Result{Tool: "ruff", Target: "a.py", Status: StatusSuccess}))
	run := agg.Finalize()

	assert.Empty(t, SerializeMinimal(run))
}

func TestSerializeMinimalOneLinePerFailure(t *testing.T) {
	agg := NewAggregator("run-7", "git-hooks-blocking", nil, nil)
	require.NoError(t, agg.Add(Result{Tool: "ruff", Target: "a.py", Status: StatusFailed, Errors: 2}))
	require.NoError(t, agg.Add(Result{Tool: "mypy", Target: "a.py", Status: StatusTimeout, Duration: time.Minute}))
	require.NoError(t, agg.Add(Result{Tool: "black", Target: "a.py", Status: StatusSuccess}))
	run := agg.Finalize()

	out := SerializeMinimal(run)
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, out, "ruff: 2 error(s) on a.py")
	assert.Contains(t, out, "mypy: timed out")
	assert.Contains(t, out, "validation failed")
	assert.NotContains(t, out, "black")
}

func TestSerializeHumanEmptyRun(t *testing.T) {
	agg := NewAggregator("run-8", "cli", nil, nil)
	run := agg.Finalize()
	assert.Equal(t, "Nothing to validate.\n", SerializeHuman(run))
}

func TestSerializeHumanFixHint(t *testing.T) {
	agg := NewAggregator("run-9", "cli", nil, nil)
	require.NoError(t, agg.Add(Result{Tool: "black", Target: "a.py", Status: StatusFailed, Errors: 1}))
	run := agg.Finalize()

	out := SerializeHuman(run)
	assert.Contains(t, out, "FAIL")
	assert.Contains(t, out, "--fix")
}

func TestStatusPredicates(t *testing.T) {
	assert.True(t, StatusFailed.Blocking())
	assert.True(t, StatusTimeout.Blocking())
	assert.False(t, StatusSkipped.Blocking())
	assert.False(t, StatusUnavailable.Blocking())
	assert.True(t, StatusUnavailable.Terminal())
	assert.False(t, Status("running").Terminal())
}
