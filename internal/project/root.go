// Package project locates the project being deployed and resolves which
// machine and service a deploy targets, using only local state.
package project

import (
	"os"
	"path/filepath"
)

const (
	// PointerFile records the service a project was last deployed as.
	PointerFile  = ".hoist"
	ManifestFile = "package.json"
)

var rootMarkers = []string{PointerFile, ManifestFile, ".git"}

// FindRoot walks up from start and returns the first directory holding a
// pointer file, a package.json or a .git entry, in that order of preference
// per directory. It returns "" when none is found below the filesystem root.
func FindRoot(start string) string {
	dir, err := filepath.Abs(start)
	if err != nil {
		return ""
	}
	for {
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		for _, m := range rootMarkers {
			if _, err := os.Stat(filepath.Join(dir, m)); err == nil {
				return dir
			}
		}
		dir = parent
	}
}
