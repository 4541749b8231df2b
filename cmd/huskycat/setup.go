package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"huskycat/internal/extract"
	"huskycat/internal/gitutil"
	"huskycat/internal/hcerrors"
	"huskycat/internal/hooks"
	"huskycat/internal/logging"
)

func newSetupHooksCommand(ctx context.Context) *cobra.Command {
	var (
		force     bool
		uninstall bool
	)

	cmd := &cobra.Command{
		Use:   "setup-hooks",
		Short: "Install the pre-commit and pre-push hook shims",
		RunE: func(cmd *cobra.Command, args []string) error {
			cwd, err := os.Getwd()
			if err != nil {
				return hcerrors.Wrap(hcerrors.KindIO, err, "resolve working directory")
			}
			repoRoot := gitutil.RepoRoot(ctx, cwd)
			if repoRoot == "" {
				return hcerrors.New(hcerrors.KindConfiguration, "not inside a git repository")
			}
			installer := hooks.NewInstaller(logging.NewComponentLogger("hooks"))
			if uninstall {
				if err := installer.Uninstall(ctx, repoRoot); err != nil {
					return err
				}
				fmt.Fprintln(os.Stdout, "hooks removed")
				return nil
			}
			if err := installer.Install(ctx, repoRoot, force); err != nil {
				return err
			}
			fmt.Fprintln(os.Stdout, "hooks installed")
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "overwrite hooks not written by huskycat")
	cmd.Flags().BoolVar(&uninstall, "uninstall", false, "remove the managed hook shims")
	return cmd
}

func newInstallCommand(ctx context.Context, modeFlag *string) *cobra.Command {
	return &cobra.Command{
		Use:   "install",
		Short: "Install the binary, extract bundled tools, and set up the git hooks",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp(ctx, *modeFlag)
			if err != nil {
				return err
			}

			self, err := os.Executable()
			if err != nil {
				return hcerrors.Wrap(hcerrors.KindIO, err, "locate own executable")
			}
			binDir := userBinDir()
			if filepath.Dir(self) == binDir {
				fmt.Fprintf(os.Stdout, "binary already installed at %s\n", self)
			} else {
				dest, err := copyBinary(self, binDir)
				if err != nil {
					return err
				}
				fmt.Fprintf(os.Stdout, "binary installed at %s\n", dest)
			}

			if err := a.extractor.Run(); err != nil {
				return err
			}
			fmt.Fprintf(os.Stdout, "tool cache ready at %s\n", extract.DefaultCacheDir())

			if a.repoRoot == "" {
				fmt.Fprintln(os.Stdout, "not inside a git repository; skipping hook install")
				return nil
			}
			installer := hooks.NewInstaller(a.logger)
			if err := installer.Install(ctx, a.repoRoot, false); err != nil {
				return err
			}
			fmt.Fprintln(os.Stdout, "hooks installed")
			return nil
		},
	}
}

// userBinDir is where the self-install places the binary.
func userBinDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "bin")
	}
	return filepath.Join(home, ".local", "bin")
}

// copyBinary installs src as <destDir>/huskycat with a temp write and rename,
// so a concurrent invocation never sees a half-written executable.
func copyBinary(src, destDir string) (string, error) {
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return "", hcerrors.Wrap(hcerrors.KindIO, err, "create %s", destDir)
	}
	in, err := os.Open(src)
	if err != nil {
		return "", hcerrors.Wrap(hcerrors.KindIO, err, "open %s", src)
	}
	defer in.Close()

	tmp, err := os.CreateTemp(destDir, ".huskycat-*")
	if err != nil {
		return "", hcerrors.Wrap(hcerrors.KindIO, err, "stage binary in %s", destDir)
	}
	tmpPath := tmp.Name()
	if _, err := io.Copy(tmp, in); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return "", hcerrors.Wrap(hcerrors.KindIO, err, "copy binary")
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return "", hcerrors.Wrap(hcerrors.KindIO, err, "flush binary")
	}
	if err := os.Chmod(tmpPath, 0o755); err != nil {
		os.Remove(tmpPath)
		return "", hcerrors.Wrap(hcerrors.KindIO, err, "mark binary executable")
	}
	dest := filepath.Join(destDir, "huskycat")
	if err := os.Rename(tmpPath, dest); err != nil {
		os.Remove(tmpPath)
		return "", hcerrors.Wrap(hcerrors.KindIO, err, "install binary at %s", dest)
	}
	return dest, nil
}
