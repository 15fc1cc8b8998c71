package kioku

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// PathAuthorizer decides whether a store may live at a given path. Configure
// consults it before touching the filesystem.
type PathAuthorizer interface {
	Authorize(path string) error
}

// AllowAllPaths authorizes every path. It is the default.
type AllowAllPaths struct{}

func (AllowAllPaths) Authorize(string) error { return nil }

// DirAllowlist authorizes only .json store paths inside a fixed set of
// directories, and rejects paths with parent traversal outright.
type DirAllowlist struct {
	dirs []string
}

// NewDirAllowlist builds an allowlist from one or more directories. Each
// directory is resolved to an absolute path once, at construction.
func NewDirAllowlist(dirs ...string) (*DirAllowlist, error) {
	if len(dirs) == 0 {
		return nil, errors.New("allowlist needs at least one directory")
	}
	resolved := make([]string, 0, len(dirs))
	for _, d := range dirs {
		abs, err := filepath.Abs(d)
		if err != nil {
			return nil, err
		}
		resolved = append(resolved, filepath.Clean(abs))
	}
	return &DirAllowlist{dirs: resolved}, nil
}

func (a *DirAllowlist) Authorize(path string) error {
	// Traversal is rejected on the raw path, before any resolution.
	for _, seg := range strings.Split(filepath.ToSlash(path), "/") {
		if seg == ".." {
			return fmt.Errorf("path %s contains parent traversal", path)
		}
	}
	if filepath.Ext(path) != ".json" {
		return fmt.Errorf("store path %s must have a .json extension", path)
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	abs = filepath.Clean(abs)
	for _, dir := range a.dirs {
		if inDir(dir, abs) {
			return nil
		}
	}
	return fmt.Errorf("path %s is outside the allowed directories", path)
}

func inDir(dir, path string) bool {
	rel, err := filepath.Rel(dir, path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
