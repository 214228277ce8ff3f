package project

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

var (
	ErrPathOutsideWorkdir = errors.New("path must be within the current directory or its subdirectories")
	ErrPathNotFound       = errors.New("path does not exist")
)

// DeployPath is a validated directory to package.
type DeployPath struct {
	Dir string
	// AboveWorkdir is set when Dir is a detected project root that contains
	// the working directory. Callers warn about it.
	AboveWorkdir bool
}

// ResolveDeployPath picks the directory to deploy: explicit (relative to cwd)
// when given, else the project root, else cwd. The result must lie inside cwd,
// except that an implicit project root above cwd is accepted.
func ResolveDeployPath(explicit, cwd, root string) (DeployPath, error) {
	cwd, err := filepath.Abs(cwd)
	if err != nil {
		return DeployPath{}, err
	}

	candidate := strings.TrimSpace(explicit)
	fromRoot := false
	switch {
	case candidate != "":
	case root != "":
		candidate = root
		fromRoot = true
	default:
		candidate = cwd
	}
	if !filepath.IsAbs(candidate) {
		candidate = filepath.Join(cwd, candidate)
	}
	candidate = filepath.Clean(candidate)

	out := DeployPath{Dir: candidate}
	if !within(cwd, candidate) {
		if !fromRoot || !within(candidate, cwd) {
			return DeployPath{}, fmt.Errorf("%w (current directory: %s, requested path: %s)", ErrPathOutsideWorkdir, cwd, candidate)
		}
		out.AboveWorkdir = true
	}

	info, err := os.Stat(candidate)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return DeployPath{}, fmt.Errorf("%w: %s", ErrPathNotFound, candidate)
		}
		return DeployPath{}, err
	}
	if !info.IsDir() {
		return DeployPath{}, fmt.Errorf("%s is not a directory", candidate)
	}
	return out, nil
}

// within reports whether target is base or lies beneath it.
func within(base, target string) bool {
	rel, err := filepath.Rel(base, target)
	if err != nil {
		return false
	}
	if rel == "." {
		return true
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
