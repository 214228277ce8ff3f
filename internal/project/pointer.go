package project

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// ErrCorruptPointer marks a pointer file that exists but has no usable
// serviceId.
var ErrCorruptPointer = errors.New("invalid " + PointerFile + " file: missing serviceId")

// Pointer is the content of the .hoist file.
type Pointer struct {
	ServiceID string `json:"serviceId"`
}

// ReadPointer loads <root>/.hoist. ok is false when the file does not exist.
func ReadPointer(root string) (p Pointer, ok bool, err error) {
	b, err := os.ReadFile(filepath.Join(root, PointerFile))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Pointer{}, false, nil
		}
		return Pointer{}, false, err
	}

	if err := validatePointer(b); err != nil {
		return Pointer{}, false, fmt.Errorf("%w: %v", ErrCorruptPointer, err)
	}
	if err := json.Unmarshal(b, &p); err != nil {
		return Pointer{}, false, fmt.Errorf("%w: %v", ErrCorruptPointer, err)
	}
	p.ServiceID = strings.TrimSpace(p.ServiceID)
	return p, true, nil
}

// WritePointer replaces <root>/.hoist atomically.
func WritePointer(root string, p Pointer) error {
	if strings.TrimSpace(p.ServiceID) == "" {
		return errors.New("refusing to write " + PointerFile + " without serviceId")
	}

	b, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return err
	}
	b = append(b, '\n')

	filePath := filepath.Join(root, PointerFile)
	tmpPath := filePath + ".tmp"
	if err := os.WriteFile(tmpPath, b, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", PointerFile, err)
	}
	if err := os.Rename(tmpPath, filePath); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("write %s: %w", PointerFile, err)
	}
	return nil
}

// DeletePointer removes <root>/.hoist. removed is false when there was none.
func DeletePointer(root string) (removed bool, err error) {
	err = os.Remove(filepath.Join(root, PointerFile))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// ReadManifestName returns the "name" field of <root>/package.json, or ""
// when the file is absent or has no name.
func ReadManifestName(root string) (string, error) {
	b, err := os.ReadFile(filepath.Join(root, ManifestFile))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", nil
		}
		return "", err
	}
	var m struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(b, &m); err != nil {
		return "", fmt.Errorf("parse %s: %w", ManifestFile, err)
	}
	return strings.TrimSpace(m.Name), nil
}
