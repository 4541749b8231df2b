package gitutil

import (
	"context"
	"os/exec"
	"strings"
	"time"
)

const gitCommandTimeout = 5 * time.Second

// RepoRoot returns the top-level directory of the Git repository containing
// dir, or "" when dir is not inside a repository.
func RepoRoot(ctx context.Context, dir string) string {
	out, err := runGit(ctx, dir, "rev-parse", "--show-toplevel")
	if err != nil {
		return ""
	}
	return strings.TrimSpace(out)
}

// StagedFiles lists paths staged for the next commit, relative to the repo root.
func StagedFiles(ctx context.Context, dir string) ([]string, error) {
	out, err := runGit(ctx, dir, "diff", "--cached", "--name-only", "--diff-filter=ACMR")
	if err != nil {
		return nil, err
	}
	var files []string
	for _, line := range strings.Split(out, "\n") {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			files = append(files, trimmed)
		}
	}
	return files, nil
}

// ConfigBool reads a boolean from git config. Missing keys report false.
func ConfigBool(ctx context.Context, dir, key string) bool {
	out, err := runGit(ctx, dir, "config", "--get", "--type=bool", key)
	if err != nil {
		return false
	}
	return strings.TrimSpace(out) == "true"
}

// HooksDir returns the hooks directory for the repository containing dir.
func HooksDir(ctx context.Context, dir string) (string, error) {
	out, err := runGit(ctx, dir, "rev-parse", "--git-path", "hooks")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

func runGit(ctx context.Context, dir string, args ...string) (string, error) {
	cmdCtx, cancel := context.WithTimeout(ctx, gitCommandTimeout)
	defer cancel()
	cmd := exec.CommandContext(cmdCtx, "git", args...)
	if dir != "" {
		cmd.Dir = dir
	}
	out, err := cmd.Output()
	return string(out), err
}
