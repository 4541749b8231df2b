package runstore

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"huskycat/internal/hcerrors"
	"huskycat/internal/logging"
	"huskycat/internal/result"
)

const (
	pidsDir     = "pids"
	logsDir     = "logs"
	lastRunFile = "last_run.json"
)

// PidFile records a detached child for liveness checks by later invocations.
// The parent writes it at fork time; the child deletes it on exit.
type PidFile struct {
	RunID     string    `json:"run_id"`
	PID       int       `json:"pid"`
	StartedAt time.Time `json:"started_at"`
	Mode      string    `json:"mode"`
	ParentPID int       `json:"parent_pid"`
}

// LastRun is the pointer to the most recently finalized run.
type LastRun struct {
	RunID      string    `json:"run_id"`
	Success    bool      `json:"success"`
	FinishedAt time.Time `json:"finished_at"`
}

// Store is the append-only run artifact directory under
// <repo>/.huskycat/runs/. Writes are atomic (temp file then rename), so
// concurrent invocations in one repository cannot corrupt state.
type Store struct {
	root   string
	logger logging.Logger
}

// New creates a Store rooted in the repository (or working) directory.
func New(baseDir string, logger logging.Logger) *Store {
	return &Store{
		root:   filepath.Join(baseDir, ".huskycat", "runs"),
		logger: logging.OrNop(logger),
	}
}

// Root exposes the store location for status output.
func (s *Store) Root() string { return s.root }

// EnsureDirs creates the store layout.
func (s *Store) EnsureDirs() error {
	for _, dir := range []string{s.root, filepath.Join(s.root, pidsDir), filepath.Join(s.root, logsDir)} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return hcerrors.Wrap(hcerrors.KindIO, err, "create run store %s", dir)
		}
	}
	return nil
}

// WriteRun persists a run snapshot. Mid-run snapshots (FinishedAt unset) are
// allowed so a killed child leaves an incomplete record behind.
func (s *Store) WriteRun(run *result.Run) error {
	data, err := result.SerializeJSON(run)
	if err != nil {
		return err
	}
	return s.atomicWrite(filepath.Join(s.root, run.ID+".json"), data)
}

// ReadRun loads a persisted run snapshot by id.
func (s *Store) ReadRun(runID string) (*result.Run, error) {
	return s.readRunFile(filepath.Join(s.root, runID+".json"))
}

// WriteLastRun updates the last_run pointer after finalization.
func (s *Store) WriteLastRun(run *result.Run) error {
	if run.FinishedAt == nil {
		return hcerrors.New(hcerrors.KindIO, "refusing to point last_run at unfinalized run %s", run.ID)
	}
	data, err := json.MarshalIndent(LastRun{
		RunID:      run.ID,
		Success:    run.Success,
		FinishedAt: *run.FinishedAt,
	}, "", "  ")
	if err != nil {
		return hcerrors.Wrap(hcerrors.KindIO, err, "serialize last_run pointer")
	}
	return s.atomicWrite(filepath.Join(s.root, lastRunFile), data)
}

// ReadLastRun returns the pointer, or nil when no run has finalized yet.
// Readers tolerate a partial write by retrying once.
func (s *Store) ReadLastRun() (*LastRun, error) {
	path := filepath.Join(s.root, lastRunFile)
	for attempt := 0; ; attempt++ {
		data, err := os.ReadFile(path)
		if os.IsNotExist(err) {
			return nil, nil
		}
		if err != nil {
			return nil, hcerrors.Wrap(hcerrors.KindIO, err, "read last_run pointer")
		}
		var last LastRun
		if err := json.Unmarshal(data, &last); err != nil {
			if attempt == 0 {
				time.Sleep(50 * time.Millisecond)
				continue
			}
			return nil, hcerrors.Wrap(hcerrors.KindIO, err, "parse last_run pointer")
		}
		return &last, nil
	}
}

// AppendLog appends one tool's captured output to the run log with a header.
func (s *Store) AppendLog(runID, tool, output string) error {
	path := filepath.Join(s.root, logsDir, runID+".log")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return hcerrors.Wrap(hcerrors.KindIO, err, "open run log %s", runID)
	}
	defer f.Close()
	header := fmt.Sprintf("--- %s @ %s ---\n", tool, time.Now().Format(time.RFC3339))
	if _, err := f.WriteString(header + output + "\n"); err != nil {
		return hcerrors.Wrap(hcerrors.KindIO, err, "append run log %s", runID)
	}
	return nil
}

// LogPath returns where a run's raw tool output lives.
func (s *Store) LogPath(runID string) string {
	return filepath.Join(s.root, logsDir, runID+".log")
}

// WritePidFile records a detached child.
func (s *Store) WritePidFile(pf PidFile) error {
	data, err := json.MarshalIndent(pf, "", "  ")
	if err != nil {
		return hcerrors.Wrap(hcerrors.KindIO, err, "serialize pid file")
	}
	return s.atomicWrite(filepath.Join(s.root, pidsDir, strconv.Itoa(pf.PID)+".json"), data)
}

// RemovePidFile deletes the child's record; missing files are not an error.
func (s *Store) RemovePidFile(pid int) error {
	err := os.Remove(filepath.Join(s.root, pidsDir, strconv.Itoa(pid)+".json"))
	if err != nil && !os.IsNotExist(err) {
		return hcerrors.Wrap(hcerrors.KindIO, err, "remove pid file %d", pid)
	}
	return nil
}

// ReadPidFiles returns every parseable pid record. Unparsable files are
// logged and skipped, never fatal.
func (s *Store) ReadPidFiles() []PidFile {
	entries, err := os.ReadDir(filepath.Join(s.root, pidsDir))
	if err != nil {
		return nil
	}
	var out []PidFile
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(s.root, pidsDir, entry.Name()))
		if err != nil {
			continue
		}
		var pf PidFile
		if err := json.Unmarshal(data, &pf); err != nil {
			s.logger.Warn("unparsable pid file %s: %v", entry.Name(), err)
			continue
		}
		out = append(out, pf)
	}
	return out
}

// PidAlive checks process liveness with signal 0.
func PidAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	err := syscall.Kill(pid, 0)
	return err == nil || err == syscall.EPERM
}

// GC removes run records older than the retention window and pid files whose
// processes are gone. Invoked at the start of every run.
func (s *Store) GC(retention time.Duration) {
	cutoff := time.Now().Add(-retention)

	entries, err := os.ReadDir(s.root)
	if err == nil {
		for _, entry := range entries {
			name := entry.Name()
			if entry.IsDir() || name == lastRunFile || !strings.HasSuffix(name, ".json") {
				continue
			}
			info, err := entry.Info()
			if err != nil || info.ModTime().After(cutoff) {
				continue
			}
			runID := strings.TrimSuffix(name, ".json")
			_ = os.Remove(filepath.Join(s.root, name))
			_ = os.Remove(s.LogPath(runID))
			s.logger.Debug("gc: removed run %s", runID)
		}
	}

	for _, pf := range s.ReadPidFiles() {
		if !PidAlive(pf.PID) {
			_ = s.RemovePidFile(pf.PID)
			s.logger.Debug("gc: reaped stale pid file %d (run %s)", pf.PID, pf.RunID)
		}
	}
}

// Clear wipes the whole store, for `clean --all`.
func (s *Store) Clear() error {
	if err := os.RemoveAll(s.root); err != nil {
		return hcerrors.Wrap(hcerrors.KindIO, err, "clear run store")
	}
	return s.EnsureDirs()
}

func (s *Store) readRunFile(path string) (*result.Run, error) {
	for attempt := 0; ; attempt++ {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, hcerrors.Wrap(hcerrors.KindIO, err, "read run snapshot")
		}
		run, err := result.ParseRun(data)
		if err != nil {
			if attempt == 0 {
				time.Sleep(50 * time.Millisecond)
				continue
			}
			return nil, err
		}
		return run, nil
	}
}

// atomicWrite commits data via a temp file and rename in the same directory.
func (s *Store) atomicWrite(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return hcerrors.Wrap(hcerrors.KindIO, err, "stage %s", path)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return hcerrors.Wrap(hcerrors.KindIO, err, "write %s", path)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return hcerrors.Wrap(hcerrors.KindIO, err, "sync %s", path)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return hcerrors.Wrap(hcerrors.KindIO, err, "flush %s", path)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return hcerrors.Wrap(hcerrors.KindIO, err, "commit %s", path)
	}
	return nil
}
