package supervisor

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"huskycat/internal/result"
	"huskycat/internal/runstore"
)

func newStore(t *testing.T) *runstore.Store {
	t.Helper()
	store := runstore.New(t.TempDir(), nil)
	require.NoError(t, store.EnsureDirs())
	return store
}

func writeFinalized(t *testing.T, store *runstore.Store, runID string, success bool) {
	t.Helper()
	agg := result.NewAggregator(runID, "git-hooks-nonblocking", nil, nil)
	status := result.StatusSuccess
	if !success {
		status = result.StatusFailed
	}
	require.NoError(t, agg.Add(result.Result{Tool: "ruff", Target: "a.py", Status: status}))
	run := agg.Finalize()
	require.NoError(t, store.WriteRun(run))
	require.NoError(t, store.WriteLastRun(run))
}

func TestCheckPriorNoHistory(t *testing.T) {
	sup := New(newStore(t), nil)
	assert.Equal(t, PriorNone, sup.CheckPrior().State)
}

func TestCheckPriorSucceeded(t *testing.T) {
	store := newStore(t)
	writeFinalized(t, store, "run-ok", true)

	prior := New(store, nil).CheckPrior()
	assert.Equal(t, PriorSucceeded, prior.State)
	assert.Equal(t, "run-ok", prior.RunID)
}

func TestCheckPriorFailedCarriesCounts(t *testing.T) {
	store := newStore(t)
	writeFinalized(t, store, "run-bad", false)

	prior := New(store, nil).CheckPrior()
	assert.Equal(t, PriorFailed, prior.State)
	assert.Equal(t, 1, prior.Failed)
	assert.Contains(t, prior.Describe(), "run-bad")
}

func TestCheckPriorStillRunning(t *testing.T) {
	store := newStore(t)
	require.NoError(t, store.WritePidFile(runstore.PidFile{
		RunID: "run-live", PID: os.Getpid(), StartedAt: time.Now(), Mode: "git-hooks-nonblocking",
	}))

	prior := New(store, nil).CheckPrior()
	assert.Equal(t, PriorStillRunning, prior.State)
	assert.Equal(t, os.Getpid(), prior.PID)
	assert.Contains(t, prior.Describe(), "in progress")
}

func TestCheckPriorReapsStalePidAndDetectsIncomplete(t *testing.T) {
	store := newStore(t)

	// An unfinalized snapshot plus a dead pid file: the child was killed.
	agg := result.NewAggregator("run-killed", "git-hooks-nonblocking", nil, nil)
	require.NoError(t, agg.Add(result.Result{Tool: "ruff", Target: "a.py", Status: result.StatusSuccess}))
	require.NoError(t, store.WriteRun(agg.Snapshot()))
	require.NoError(t, store.WritePidFile(runstore.PidFile{RunID: "run-killed", PID: 4194200}))

	prior := New(store, nil).CheckPrior()
	assert.Equal(t, PriorIncomplete, prior.State)
	assert.Equal(t, "run-killed", prior.RunID)
	assert.Contains(t, prior.Describe(), "did not complete")

	// The stale pid file was reaped on the way.
	assert.Empty(t, store.ReadPidFiles())
}

func TestIsChild(t *testing.T) {
	t.Setenv(ChildEnvMarker, "")
	assert.False(t, IsChild())
	t.Setenv(ChildEnvMarker, "1")
	assert.True(t, IsChild())
}
