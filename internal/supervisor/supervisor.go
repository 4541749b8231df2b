package supervisor

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/manifoldco/promptui"

	"huskycat/internal/hcerrors"
	"huskycat/internal/logging"
	"huskycat/internal/runstore"
)

// ChildEnvMarker tells a spawned process it is the detached child and must
// run the full schedule instead of forking again.
const ChildEnvMarker = "HUSKYCAT_CHILD"

// PriorState classifies the previous run's outcome for the pre-fork check.
type PriorState int

const (
	PriorNone PriorState = iota
	PriorSucceeded
	PriorFailed
	PriorIncomplete
	PriorStillRunning
)

// Prior summarizes the previous invocation found in the run store.
type Prior struct {
	State    PriorState
	RunID    string
	Finished time.Time
	Failed   int
	Timeout  int
	PID      int
}

// Supervisor implements the non-blocking state machine: check prior run,
// optionally prompt, spawn a detached child, write the pid file, return.
type Supervisor struct {
	store  *runstore.Store
	logger logging.Logger
}

// New builds a Supervisor over the given run store.
func New(store *runstore.Store, logger logging.Logger) *Supervisor {
	return &Supervisor{store: store, logger: logging.OrNop(logger)}
}

// CheckPrior inspects pid files and the last_run pointer. A live pid file
// wins over last_run; an unfinalized snapshot newer than last_run means a
// child was killed mid-run.
func (s *Supervisor) CheckPrior() Prior {
	for _, pf := range s.store.ReadPidFiles() {
		if runstore.PidAlive(pf.PID) {
			return Prior{State: PriorStillRunning, RunID: pf.RunID, PID: pf.PID}
		}
		// Stale: the child died without cleaning up. Reap and inspect its run.
		_ = s.store.RemovePidFile(pf.PID)
		if run, err := s.store.ReadRun(pf.RunID); err == nil && !run.Complete() {
			return Prior{State: PriorIncomplete, RunID: pf.RunID}
		}
	}

	last, err := s.store.ReadLastRun()
	if err != nil {
		s.logger.Warn("prior-run check: %v", err)
		return Prior{State: PriorNone}
	}
	if last == nil {
		return Prior{State: PriorNone}
	}
	prior := Prior{RunID: last.RunID, Finished: last.FinishedAt}
	if last.Success {
		prior.State = PriorSucceeded
		return prior
	}
	prior.State = PriorFailed
	if run, err := s.store.ReadRun(last.RunID); err == nil {
		prior.Failed = run.Summary.Failed
		prior.Timeout = run.Summary.Timeout
	}
	return prior
}

// Describe renders a one-line summary of a prior outcome for reports.
func (p Prior) Describe() string {
	switch p.State {
	case PriorFailed:
		return fmt.Sprintf("previous run %s failed (%d failed, %d timed out)", p.RunID, p.Failed, p.Timeout)
	case PriorIncomplete:
		return fmt.Sprintf("previous run %s did not complete", p.RunID)
	case PriorStillRunning:
		return fmt.Sprintf("a validation run is already in progress (run %s, pid %d)", p.RunID, p.PID)
	default:
		return ""
	}
}

// PromptContinue asks whether to proceed after a prior failure. Only called
// in interactive hook contexts; everywhere else the caller reports and
// proceeds.
func (s *Supervisor) PromptContinue(prior Prior) (bool, error) {
	prompt := promptui.Prompt{
		Label:     fmt.Sprintf("%s — run validation again", prior.Describe()),
		IsConfirm: true,
		Default:   "y",
	}
	if _, err := prompt.Run(); err != nil {
		if errors.Is(err, promptui.ErrAbort) || errors.Is(err, promptui.ErrInterrupt) {
			return false, nil
		}
		return false, hcerrors.Wrap(hcerrors.KindIO, err, "prior-run prompt")
	}
	return true, nil
}

// SpawnDetached re-executes this binary as a session-leader child with the
// given extra arguments, streams redirected to the run log, and writes the
// pid file. The parent's contract is to return within 100 ms of start; the
// heavy schedule happens entirely in the child.
func (s *Supervisor) SpawnDetached(runID, runMode string, args []string) (int, error) {
	self, err := os.Executable()
	if err != nil {
		return 0, hcerrors.Wrap(hcerrors.KindIO, err, "locate own executable")
	}

	logPath := s.store.LogPath(runID)
	if err := os.MkdirAll(filepath.Dir(logPath), 0o755); err != nil {
		return 0, hcerrors.Wrap(hcerrors.KindIO, err, "create log directory")
	}
	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return 0, hcerrors.Wrap(hcerrors.KindIO, err, "open child log")
	}
	defer logFile.Close()

	devNull, err := os.Open(os.DevNull)
	if err != nil {
		return 0, hcerrors.Wrap(hcerrors.KindIO, err, "open %s", os.DevNull)
	}
	defer devNull.Close()

	env := append(os.Environ(),
		ChildEnvMarker+"=1",
		"HUSKYCAT_RUN_ID="+runID,
	)

	// Setsid detaches the child from the controlling terminal so shell job
	// control cannot kill it.
	attr := &os.ProcAttr{
		Env:   env,
		Files: []*os.File{devNull, logFile, logFile},
		Sys:   &syscall.SysProcAttr{Setsid: true},
	}
	argv := append([]string{self}, args...)
	proc, err := os.StartProcess(self, argv, attr)
	if err != nil {
		return 0, hcerrors.Wrap(hcerrors.KindIO, err, "spawn detached child")
	}
	pid := proc.Pid

	if err := s.store.WritePidFile(runstore.PidFile{
		RunID:     runID,
		PID:       pid,
		StartedAt: time.Now(),
		Mode:      runMode,
		ParentPID: os.Getpid(),
	}); err != nil {
		// The child continues regardless; its pid stays recoverable through
		// the run-id directory.
		s.logger.Warn("pid file write failed for run %s: %v", runID, err)
	}

	// The parent never waits; release lets the child outlive us cleanly.
	if err := proc.Release(); err != nil {
		s.logger.Warn("release child process: %v", err)
	}
	s.logger.Info("spawned detached child pid=%d run=%s args=%s", pid, runID, strings.Join(args, " "))
	return pid, nil
}

// IsChild reports whether this process is the detached child of a
// non-blocking invocation.
func IsChild() bool {
	return os.Getenv(ChildEnvMarker) == "1"
}

// ChildCleanup removes the child's pid file on exit.
func (s *Supervisor) ChildCleanup() {
	_ = s.store.RemovePidFile(os.Getpid())
}
