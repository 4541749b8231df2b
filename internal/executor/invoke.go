package executor

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"strings"
	"syscall"
	"time"

	"huskycat/internal/registry"
	"huskycat/internal/result"
	"huskycat/internal/router"
)

// killGrace is how long a timed-out process tree gets between SIGTERM and
// SIGKILL.
const killGrace = 2 * time.Second

// InvokeFunc runs one tool invocation to completion and returns its finalized
// result. Injected into the executor so scheduling is testable without
// subprocesses.
type InvokeFunc func(ctx context.Context, plan router.Plan, tool registry.Tool, files []string, opts InvokeOptions) result.Result

// InvokeOptions carries per-invocation knobs.
type InvokeOptions struct {
	Fix     bool
	Timeout time.Duration
	Env     []string
}

// Invoke executes the plan's argv as a subprocess in its own process group,
// enforcing the per-tool deadline by signalling the whole group.
func Invoke(ctx context.Context, plan router.Plan, tool registry.Tool, files []string, opts InvokeOptions) result.Result {
	res := result.Result{
		Tool:      tool.Name,
		Target:    targetOf(files),
		StartedAt: time.Now(),
	}
	finish := func(status result.Status) result.Result {
		res.Status = status
		res.FinishedAt = time.Now()
		res.Duration = res.FinishedAt.Sub(res.StartedAt)
		return res
	}

	fixing := opts.Fix && tool.SupportsFix
	argv := tool.Argv(plan.Argv, files, opts.Fix)

	var before map[string]time.Time
	if fixing {
		before = snapshotMtimes(files)
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.Env = opts.Env
	// Tools spawn their own children; a process group lets the deadline kill
	// the whole tree.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	if err := cmd.Start(); err != nil {
		res.Stderr = err.Error()
		res.Errors = 1
		return finish(result.StatusFailed)
	}

	waitCh := make(chan error, 1)
	go func() { waitCh <- cmd.Wait() }()

	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	var waitErr error
	timedOut := false
	select {
	case waitErr = <-waitCh:
	case <-deadline.C:
		timedOut = true
		terminateGroup(cmd, waitCh)
	case <-ctx.Done():
		timedOut = true
		terminateGroup(cmd, waitCh)
	}

	res.Stdout = stdout.String()
	res.Stderr = stderr.String()
	if fixing {
		res.Fixed = anyMtimeChanged(before, snapshotMtimes(files))
	}

	if timedOut {
		return finish(result.StatusTimeout)
	}
	if waitErr != nil {
		res.Errors = countFindings(res.Stdout, res.Stderr)
		res.Warnings = countWarnings(res.Stdout, res.Stderr)
		return finish(result.StatusFailed)
	}
	res.Warnings = countWarnings(res.Stdout, res.Stderr)
	return finish(result.StatusSuccess)
}

// terminateGroup sends SIGTERM to the process group, waits for the grace
// period, then escalates to SIGKILL.
func terminateGroup(cmd *exec.Cmd, waitCh chan error) {
	if cmd.Process == nil {
		return
	}
	pgid := -cmd.Process.Pid
	_ = syscall.Kill(pgid, syscall.SIGTERM)
	select {
	case <-waitCh:
	case <-time.After(killGrace):
		_ = syscall.Kill(pgid, syscall.SIGKILL)
		<-waitCh
	}
}

func targetOf(files []string) string {
	if len(files) == 1 {
		return files[0]
	}
	return result.BatchTarget
}

// countFindings estimates the error count from tool output: one per
// non-empty, non-warning output line, at least one for a failing exit.
func countFindings(stdout, stderr string) int {
	count := 0
	for _, line := range outputLines(stdout, stderr) {
		if !strings.Contains(strings.ToLower(line), "warning") {
			count++
		}
	}
	if count == 0 {
		count = 1
	}
	return count
}

func countWarnings(stdout, stderr string) int {
	count := 0
	for _, line := range outputLines(stdout, stderr) {
		if strings.Contains(strings.ToLower(line), "warning") {
			count++
		}
	}
	return count
}

func outputLines(stdout, stderr string) []string {
	var lines []string
	for _, chunk := range []string{stdout, stderr} {
		for _, line := range strings.Split(chunk, "\n") {
			if strings.TrimSpace(line) != "" {
				lines = append(lines, line)
			}
		}
	}
	return lines
}

func snapshotMtimes(files []string) map[string]time.Time {
	out := make(map[string]time.Time, len(files))
	for _, f := range files {
		if info, err := os.Stat(f); err == nil {
			out[f] = info.ModTime()
		}
	}
	return out
}

func anyMtimeChanged(before, after map[string]time.Time) bool {
	for path, t := range after {
		if prev, ok := before[path]; ok && !prev.Equal(t) {
			return true
		}
	}
	return false
}
