package engine

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"huskycat/internal/hcerrors"
)

// skipDirs are directory names never descended into during target expansion.
var skipDirs = map[string]bool{
	".git":         true,
	".huskycat":    true,
	"node_modules": true,
	"vendor":       true,
	"__pycache__":  true,
}

// Walk expands targets into a sorted, de-duplicated file list. Plain files
// pass through; directories are walked recursively with the usual build and
// VCS directories skipped. A missing target is a configuration error.
func Walk(targets []string) ([]string, error) {
	seen := make(map[string]bool)
	var files []string
	add := func(path string) {
		if !seen[path] {
			seen[path] = true
			files = append(files, path)
		}
	}

	for _, target := range targets {
		info, err := os.Stat(target)
		if err != nil {
			return nil, hcerrors.Wrap(hcerrors.KindConfiguration, err, "target %s", target)
		}
		if !info.IsDir() {
			add(filepath.Clean(target))
			continue
		}
		err = filepath.WalkDir(target, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				if skipDirs[d.Name()] {
					return filepath.SkipDir
				}
				return nil
			}
			if d.Type()&fs.ModeSymlink != 0 {
				return nil
			}
			add(filepath.Clean(path))
			return nil
		})
		if err != nil {
			return nil, hcerrors.Wrap(hcerrors.KindIO, err, "walk target %s", target)
		}
	}
	sort.Strings(files)
	return files, nil
}
