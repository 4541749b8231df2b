package runstore

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"huskycat/internal/result"
)

func finalizedRun(t *testing.T, runID string, success bool) *result.Run {
	t.Helper()
	agg := result.NewAggregator(runID, "cli", []string{"a.py"}, []string{"ruff"})
	status := result.StatusSuccess
	if !success {
		status = result.StatusFailed
	}
	require.NoError(t, agg.Add(result.Result{Tool: "ruff", Target: "a.py", Status: status}))
	return agg.Finalize()
}

func TestWriteAndReadRun(t *testing.T) {
	store := New(t.TempDir(), nil)
	require.NoError(t, store.EnsureDirs())

	run := finalizedRun(t, "run-1", true)
	require.NoError(t, store.WriteRun(run))

	loaded, err := store.ReadRun("run-1")
	require.NoError(t, err)
	assert.Equal(t, run.ID, loaded.ID)
	assert.True(t, loaded.Complete())
	assert.Equal(t, run.Summary, loaded.Summary)

	// No temp files may survive the atomic write.
	entries, err := os.ReadDir(store.Root())
	require.NoError(t, err)
	for _, entry := range entries {
		assert.NotContains(t, entry.Name(), ".tmp-")
	}
}

func TestWriteLastRunRefusesUnfinalized(t *testing.T) {
	store := New(t.TempDir(), nil)
	require.NoError(t, store.EnsureDirs())

	agg := result.NewAggregator("run-2", "cli", nil, nil)
	err := store.WriteLastRun(agg.Snapshot())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unfinalized")
}

func TestLastRunPointerRoundTrip(t *testing.T) {
	store := New(t.TempDir(), nil)
	require.NoError(t, store.EnsureDirs())

	missing, err := store.ReadLastRun()
	require.NoError(t, err)
	assert.Nil(t, missing)

	run := finalizedRun(t, "run-3", false)
	require.NoError(t, store.WriteRun(run))
	require.NoError(t, store.WriteLastRun(run))

	last, err := store.ReadLastRun()
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.Equal(t, "run-3", last.RunID)
	assert.False(t, last.Success)
}

func TestPidFileLifecycle(t *testing.T) {
	store := New(t.TempDir(), nil)
	require.NoError(t, store.EnsureDirs())

	pf := PidFile{RunID: "run-4", PID: os.Getpid(), StartedAt: time.Now(), Mode: "git-hooks-nonblocking", ParentPID: 1}
	require.NoError(t, store.WritePidFile(pf))

	files := store.ReadPidFiles()
	require.Len(t, files, 1)
	assert.Equal(t, "run-4", files[0].RunID)
	assert.True(t, PidAlive(files[0].PID))

	require.NoError(t, store.RemovePidFile(pf.PID))
	assert.Empty(t, store.ReadPidFiles())

	// Removing again is not an error.
	require.NoError(t, store.RemovePidFile(pf.PID))
}

func TestPidAliveRejectsBogusPids(t *testing.T) {
	assert.False(t, PidAlive(0))
	assert.False(t, PidAlive(-5))
	// PID near the kernel maximum is almost certainly unused.
	assert.False(t, PidAlive(4194200))
}

func TestGCRemovesOldRunsAndDeadPids(t *testing.T) {
	store := New(t.TempDir(), nil)
	require.NoError(t, store.EnsureDirs())

	oldRun := finalizedRun(t, "run-old", true)
	newRun := finalizedRun(t, "run-new", true)
	require.NoError(t, store.WriteRun(oldRun))
	require.NoError(t, store.WriteRun(newRun))
	require.NoError(t, store.WriteLastRun(newRun))
	require.NoError(t, store.AppendLog("run-old", "ruff", "output"))

	stale := filepath.Join(store.Root(), "run-old.json")
	past := time.Now().Add(-48 * time.Hour)
	require.NoError(t, os.Chtimes(stale, past, past))
	require.NoError(t, os.Chtimes(store.LogPath("run-old"), past, past))

	require.NoError(t, store.WritePidFile(PidFile{RunID: "run-dead", PID: 4194200}))

	store.GC(24 * time.Hour)

	_, err := store.ReadRun("run-old")
	assert.Error(t, err)
	_, err = store.ReadRun("run-new")
	assert.NoError(t, err)
	_, err = os.Stat(store.LogPath("run-old"))
	assert.True(t, os.IsNotExist(err))
	assert.Empty(t, store.ReadPidFiles())

	// last_run survives GC regardless of age.
	last, err := store.ReadLastRun()
	require.NoError(t, err)
	assert.Equal(t, "run-new", last.RunID)
}

func TestAppendLogHeaders(t *testing.T) {
	store := New(t.TempDir(), nil)
	require.NoError(t, store.EnsureDirs())

	require.NoError(t, store.AppendLog("run-5", "ruff", "a.py:1 E501"))
	require.NoError(t, store.AppendLog("run-5", "mypy", "a.py:2 error"))

	data, err := os.ReadFile(store.LogPath("run-5"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "--- ruff @ ")
	assert.Contains(t, string(data), "--- mypy @ ")
	assert.Contains(t, string(data), "a.py:1 E501")
}

func TestClearResetsStore(t *testing.T) {
	store := New(t.TempDir(), nil)
	require.NoError(t, store.EnsureDirs())
	run := finalizedRun(t, "run-6", true)
	require.NoError(t, store.WriteRun(run))

	require.NoError(t, store.Clear())
	_, err := store.ReadRun("run-6")
	assert.Error(t, err)

	// The layout is usable again immediately.
	require.NoError(t, store.WriteRun(run))
}
