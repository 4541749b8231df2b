package router

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"
)

const (
	sandboxImage       = "huskycat-sandbox:latest"
	sandboxImageEnv    = "HUSKYCAT_SANDBOX_IMAGE"
	sandboxSentinel    = "/.dockerenv"
	sandboxMarkerEnv   = "HUSKYCAT_IN_SANDBOX"
	dockerProbeTimeout = 2 * time.Second
)

// DockerCLI abstracts the docker binary so probes are testable.
type DockerCLI interface {
	LookPath(file string) (string, error)
	Run(ctx context.Context, args ...string) (string, error)
}

type execDockerCLI struct{}

func (execDockerCLI) LookPath(file string) (string, error) {
	return exec.LookPath(file)
}

func (execDockerCLI) Run(ctx context.Context, args ...string) (string, error) {
	if len(args) == 0 {
		return "", errors.New("docker command requires arguments")
	}
	cmd := exec.CommandContext(ctx, "docker", args...)
	output, err := cmd.CombinedOutput()
	return string(output), err
}

// sandboxProbe caches docker reachability for the process lifetime. Probing
// involves a subprocess, so the result is computed once.
type sandboxProbe struct {
	cli DockerCLI

	once      sync.Once
	reachable bool
}

func newSandboxProbe(cli DockerCLI) *sandboxProbe {
	if cli == nil {
		cli = execDockerCLI{}
	}
	return &sandboxProbe{cli: cli}
}

// Reachable reports whether a sandbox runtime can host delegated tools.
func (p *sandboxProbe) Reachable(ctx context.Context) bool {
	p.once.Do(func() {
		if _, err := p.cli.LookPath("docker"); err != nil {
			return
		}
		probeCtx, cancel := context.WithTimeout(ctx, dockerProbeTimeout)
		defer cancel()
		if _, err := p.cli.Run(probeCtx, "info", "--format", "{{.ServerVersion}}"); err != nil {
			return
		}
		p.reachable = true
	})
	return p.reachable
}

// InSandbox reports whether this process itself runs inside a sandbox,
// detected by the container sentinel file or an explicit environment marker.
func InSandbox() bool {
	if value, ok := os.LookupEnv(sandboxMarkerEnv); ok {
		if parsed, valid := parseBoolEnv(value); valid {
			return parsed
		}
	}
	_, err := os.Stat(sandboxSentinel)
	return err == nil
}

// SandboxImage resolves the container image used for delegated runs.
func SandboxImage() string {
	if custom := strings.TrimSpace(os.Getenv(sandboxImageEnv)); custom != "" {
		return custom
	}
	return sandboxImage
}

func parseBoolEnv(value string) (bool, bool) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "t", "true", "yes", "y", "on":
		return true, true
	case "0", "f", "false", "no", "n", "off":
		return false, true
	default:
		return false, false
	}
}
