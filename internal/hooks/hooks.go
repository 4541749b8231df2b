// Package hooks installs the git hook shims that route commits and pushes
// through validation.
package hooks

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"huskycat/internal/gitutil"
	"huskycat/internal/hcerrors"
	"huskycat/internal/logging"
)

const shimMarker = "# managed by huskycat"

// hookCommands maps hook names to the subcommand each shim invokes.
var hookCommands = map[string]string{
	"pre-commit": "validate --staged",
	"pre-push":   "validate --all",
}

// Installer writes hook shims into the repository's hooks directory.
type Installer struct {
	logger logging.Logger
}

// NewInstaller builds an Installer.
func NewInstaller(logger logging.Logger) *Installer {
	return &Installer{logger: logging.OrNop(logger)}
}

// Install writes every managed shim. Existing hooks not written by us are
// preserved unless force is set.
func (i *Installer) Install(ctx context.Context, repoDir string, force bool) error {
	hooksDir, err := gitutil.HooksDir(ctx, repoDir)
	if err != nil {
		return hcerrors.Wrap(hcerrors.KindConfiguration, err, "resolve hooks directory")
	}
	if !filepath.IsAbs(hooksDir) {
		hooksDir = filepath.Join(repoDir, hooksDir)
	}
	if err := os.MkdirAll(hooksDir, 0o755); err != nil {
		return hcerrors.Wrap(hcerrors.KindIO, err, "create hooks directory")
	}

	for hook, subcommand := range hookCommands {
		path := filepath.Join(hooksDir, hook)
		if existing, err := os.ReadFile(path); err == nil && !strings.Contains(string(existing), shimMarker) {
			if !force {
				return hcerrors.New(hcerrors.KindConfiguration,
					"hook %s already exists and was not written by huskycat (use --force to overwrite)", hook)
			}
			i.logger.Warn("overwriting foreign %s hook", hook)
		}
		if err := os.WriteFile(path, []byte(shimBody(subcommand)), 0o755); err != nil {
			return hcerrors.Wrap(hcerrors.KindIO, err, "write %s hook", hook)
		}
		i.logger.Info("installed %s hook", hook)
	}
	return nil
}

// Uninstall removes managed shims, leaving foreign hooks alone.
func (i *Installer) Uninstall(ctx context.Context, repoDir string) error {
	hooksDir, err := gitutil.HooksDir(ctx, repoDir)
	if err != nil {
		return hcerrors.Wrap(hcerrors.KindConfiguration, err, "resolve hooks directory")
	}
	if !filepath.IsAbs(hooksDir) {
		hooksDir = filepath.Join(repoDir, hooksDir)
	}
	for hook := range hookCommands {
		path := filepath.Join(hooksDir, hook)
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		if !strings.Contains(string(data), shimMarker) {
			continue
		}
		if err := os.Remove(path); err != nil {
			return hcerrors.Wrap(hcerrors.KindIO, err, "remove %s hook", hook)
		}
		i.logger.Info("removed %s hook", hook)
	}
	return nil
}

// shimBody renders the hook script. The shim delegates everything to the
// binary so hook behavior updates with the install, not with re-running setup.
func shimBody(subcommand string) string {
	return fmt.Sprintf(`#!/bin/sh
%s
exec huskycat %s "$@"
`, shimMarker, subcommand)
}
