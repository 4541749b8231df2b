package router

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"

	"huskycat/internal/logging"
	"huskycat/internal/registry"
)

// Verdict classifies how a tool will be invoked on this host.
type Verdict string

const (
	// VerdictBundled runs the copy extracted from the embedded bundle.
	VerdictBundled Verdict = "bundled"
	// VerdictLocalPath runs the tool found on PATH.
	VerdictLocalPath Verdict = "local-path"
	// VerdictSandboxedSidecar runs a copyleft tool inside the sandbox runtime.
	VerdictSandboxedSidecar Verdict = "sandboxed-sidecar"
	// VerdictSandboxedDelegation runs a missing tool inside a controlled
	// sandbox with the working tree mounted.
	VerdictSandboxedDelegation Verdict = "sandboxed-delegation"
	// VerdictUnavailable means the tool cannot run on this host.
	VerdictUnavailable Verdict = "unavailable"
)

// Plan is the router's output: the verdict plus the resolved command head.
// The executor appends file arguments; it never decides policy.
type Plan struct {
	Verdict Verdict
	Argv    []string
	Reason  string
}

// HostState captures everything the routing decision depends on, so the
// router stays a pure function of (tool, host state).
type HostState struct {
	CacheDir  string
	WorkTree  string
	InSandbox bool
}

// Router resolves tools to execution plans under the license policy.
type Router struct {
	host   HostState
	probe  *sandboxProbe
	lookup func(string) (string, error)
	logger logging.Logger
}

// Option customizes a Router, mostly for tests.
type Option func(*Router)

// WithLookPath overrides PATH resolution.
func WithLookPath(fn func(string) (string, error)) Option {
	return func(r *Router) { r.lookup = fn }
}

// WithDockerCLI overrides the sandbox probe transport.
func WithDockerCLI(cli DockerCLI) Option {
	return func(r *Router) { r.probe = newSandboxProbe(cli) }
}

// New constructs a Router for the given host state.
func New(host HostState, logger logging.Logger, opts ...Option) *Router {
	r := &Router{
		host:   host,
		probe:  newSandboxProbe(nil),
		lookup: exec.LookPath,
		logger: logging.OrNop(logger),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve picks the execution plan for a tool. Decision order, first hit wins:
// copyleft license forces the sandbox sidecar, an in-sandbox process uses
// PATH, then the extraction cache, then PATH, then sandbox delegation.
func (r *Router) Resolve(ctx context.Context, tool registry.Tool) Plan {
	head := tool.Command
	if len(head) == 0 {
		head = []string{tool.Name}
	}

	// Copyleft tools are never invoked from an unsandboxed embedded copy.
	if tool.License == registry.LicenseCopyleft {
		if r.probe.Reachable(ctx) {
			return Plan{Verdict: VerdictSandboxedSidecar, Argv: r.sandboxArgv(head)}
		}
		return Plan{
			Verdict: VerdictUnavailable,
			Reason:  "copyleft tool requires a sandbox runtime and none is reachable",
		}
	}

	if r.host.InSandbox {
		if path, err := r.lookup(head[0]); err == nil {
			return Plan{Verdict: VerdictLocalPath, Argv: rewriteHead(head, path)}
		}
		return Plan{
			Verdict: VerdictUnavailable,
			Reason:  "tool not on PATH inside sandbox",
		}
	}

	if bundled := r.bundledPath(head[0]); bundled != "" {
		return Plan{Verdict: VerdictBundled, Argv: rewriteHead(head, bundled)}
	}

	if path, err := r.lookup(head[0]); err == nil {
		return Plan{Verdict: VerdictLocalPath, Argv: rewriteHead(head, path)}
	}

	if r.probe.Reachable(ctx) {
		return Plan{Verdict: VerdictSandboxedDelegation, Argv: r.sandboxArgv(head)}
	}

	r.logger.Debug("tool %s unavailable: not bundled, not on PATH, no sandbox", tool.Name)
	return Plan{Verdict: VerdictUnavailable, Reason: "not installed and no sandbox runtime reachable"}
}

// bundledPath returns the extracted executable for name, or "" when the
// cache has no usable copy.
func (r *Router) bundledPath(name string) string {
	if r.host.CacheDir == "" {
		return ""
	}
	candidate := filepath.Join(r.host.CacheDir, name)
	info, err := os.Stat(candidate)
	if err != nil || info.IsDir() {
		return ""
	}
	if info.Mode()&0o111 == 0 {
		return ""
	}
	return candidate
}

// sandboxArgv wraps the tool invocation in a container run with the working
// tree mounted read-write at /work.
func (r *Router) sandboxArgv(head []string) []string {
	workTree := r.host.WorkTree
	if workTree == "" {
		workTree = "."
	}
	argv := []string{
		"docker", "run", "--rm",
		"--network", "none",
		"-v", workTree + ":/work",
		"-w", "/work",
		SandboxImage(),
	}
	return append(argv, head...)
}

func rewriteHead(head []string, resolved string) []string {
	argv := append([]string(nil), head...)
	argv[0] = resolved
	return argv
}
