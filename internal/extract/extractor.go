package extract

import (
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"syscall"

	"huskycat/internal/hcerrors"
	"huskycat/internal/logging"
)

const (
	versionFile = ".version"
	lockFile    = ".lock"
)

// Bundle supplies the auxiliary tool binaries packaged into a self-contained
// build. A release build backs this with an embedded filesystem; development
// builds carry an empty bundle.
type Bundle interface {
	Version() string
	Tools() []string
	Open(name string) (io.ReadCloser, error)
}

// FSBundle adapts an fs.FS (typically embed.FS) to the Bundle contract.
type FSBundle struct {
	FS       fs.FS
	Ver      string
	Binaries []string
}

func (b FSBundle) Version() string { return b.Ver }
func (b FSBundle) Tools() []string { return b.Binaries }
func (b FSBundle) Open(name string) (io.ReadCloser, error) {
	return b.FS.Open(name)
}

// EmptyBundle is the development-build bundle: nothing to extract.
type EmptyBundle struct{}

func (EmptyBundle) Version() string                    { return "" }
func (EmptyBundle) Tools() []string                    { return nil }
func (EmptyBundle) Open(string) (io.ReadCloser, error) { return nil, fs.ErrNotExist }

// Extractor unpacks bundled tool binaries into a user-scoped cache exactly
// once per bundle version.
type Extractor struct {
	bundle   Bundle
	cacheDir string
	logger   logging.Logger
}

// New constructs an Extractor targeting cacheDir.
func New(bundle Bundle, cacheDir string, logger logging.Logger) *Extractor {
	return &Extractor{
		bundle:   bundle,
		cacheDir: cacheDir,
		logger:   logging.OrNop(logger),
	}
}

// DefaultCacheDir is the per-user extraction cache location.
func DefaultCacheDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".huskycat", "tools")
}

// Run performs extraction when the cached version differs from the bundle
// version. Concurrent first runs serialize on a file lock; waiters re-check
// the version after acquiring it and skip the copy when another process
// finished first. Running twice with the same version leaves the cache
// untouched.
func (e *Extractor) Run() error {
	version := e.bundle.Version()
	if version == "" || len(e.bundle.Tools()) == 0 {
		return nil
	}
	if e.cachedVersion() == version {
		return nil
	}

	if err := os.MkdirAll(e.cacheDir, 0o755); err != nil {
		return hcerrors.Wrap(hcerrors.KindIO, err, "create extraction cache %s", e.cacheDir)
	}

	unlock, err := e.acquireLock()
	if err != nil {
		return err
	}
	defer unlock()

	// Another process may have completed extraction while we waited.
	if e.cachedVersion() == version {
		return nil
	}

	for _, name := range e.bundle.Tools() {
		if err := e.extractOne(name); err != nil {
			return err
		}
	}
	if err := e.writeVersion(version); err != nil {
		return err
	}
	e.logger.Info("extracted %d bundled tools (bundle %s)", len(e.bundle.Tools()), version)
	return nil
}

// PrependPath returns env with the cache directory prepended to PATH so child
// processes resolve bundled tools first.
func (e *Extractor) PrependPath(env []string) []string {
	if e.cacheDir == "" {
		return env
	}
	out := make([]string, 0, len(env)+1)
	found := false
	for _, kv := range env {
		if strings.HasPrefix(kv, "PATH=") {
			out = append(out, "PATH="+e.cacheDir+string(os.PathListSeparator)+strings.TrimPrefix(kv, "PATH="))
			found = true
			continue
		}
		out = append(out, kv)
	}
	if !found {
		out = append(out, "PATH="+e.cacheDir)
	}
	return out
}

// CacheDir exposes the extraction target for status output.
func (e *Extractor) CacheDir() string { return e.cacheDir }

func (e *Extractor) cachedVersion() string {
	data, err := os.ReadFile(filepath.Join(e.cacheDir, versionFile))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

func (e *Extractor) extractOne(name string) error {
	src, err := e.bundle.Open(name)
	if err != nil {
		return hcerrors.Wrap(hcerrors.KindIO, err, "open bundled tool %s", name)
	}
	defer src.Close()

	target := filepath.Join(e.cacheDir, filepath.Base(name))
	tmp, err := os.CreateTemp(e.cacheDir, filepath.Base(name)+".tmp-*")
	if err != nil {
		return hcerrors.Wrap(hcerrors.KindIO, err, "stage bundled tool %s", name)
	}
	tmpName := tmp.Name()
	if _, err := io.Copy(tmp, src); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return hcerrors.Wrap(hcerrors.KindIO, err, "copy bundled tool %s", name)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return hcerrors.Wrap(hcerrors.KindIO, err, "flush bundled tool %s", name)
	}
	if err := os.Chmod(tmpName, 0o755); err != nil {
		os.Remove(tmpName)
		return hcerrors.Wrap(hcerrors.KindIO, err, "chmod bundled tool %s", name)
	}
	if err := os.Rename(tmpName, target); err != nil {
		os.Remove(tmpName)
		return hcerrors.Wrap(hcerrors.KindIO, err, "install bundled tool %s", name)
	}
	return nil
}

// writeVersion commits the version marker atomically: temp file then rename.
func (e *Extractor) writeVersion(version string) error {
	tmp, err := os.CreateTemp(e.cacheDir, versionFile+".tmp-*")
	if err != nil {
		return hcerrors.Wrap(hcerrors.KindIO, err, "stage version file")
	}
	tmpName := tmp.Name()
	if _, err := tmp.WriteString(version + "\n"); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return hcerrors.Wrap(hcerrors.KindIO, err, "write version file")
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return hcerrors.Wrap(hcerrors.KindIO, err, "flush version file")
	}
	if err := os.Rename(tmpName, filepath.Join(e.cacheDir, versionFile)); err != nil {
		os.Remove(tmpName)
		return hcerrors.Wrap(hcerrors.KindIO, err, "commit version file")
	}
	return nil
}

// acquireLock blocks on an advisory flock over <cache>/.lock.
func (e *Extractor) acquireLock() (func(), error) {
	path := filepath.Join(e.cacheDir, lockFile)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, hcerrors.Wrap(hcerrors.KindIO, err, "open extraction lock")
	}
	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX); err != nil {
		f.Close()
		return nil, hcerrors.Wrap(hcerrors.KindIO, err, "acquire extraction lock")
	}
	return func() {
		_ = syscall.Flock(int(f.Fd()), syscall.LOCK_UN)
		_ = f.Close()
	}, nil
}
