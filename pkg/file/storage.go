package file

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Storage manages named folders in the device's local file namespace.
type Storage interface {
	EnsureDirectory(name string) error
	ResolvePath(name string) (string, error)
}

// LocalStorage maps logical folder names to directories below a root directory.
type LocalStorage struct {
	root string
}

// NewLocalStorage creates a LocalStorage rooted at root.
func NewLocalStorage(root string) *LocalStorage {
	return &LocalStorage{root: root}
}

// EnsureDirectory creates the folder if it does not exist yet.
func (s *LocalStorage) EnsureDirectory(name string) error {
	path, err := s.ResolvePath(name)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(path, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", path, err)
	}
	return nil
}

// ResolvePath returns the absolute path of the folder. Names must be a single path element.
func (s *LocalStorage) ResolvePath(name string) (string, error) {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return "", fmt.Errorf("invalid folder name %q", name)
	}
	root, err := filepath.Abs(s.root)
	if err != nil {
		return "", fmt.Errorf("failed to resolve storage root %s: %w", s.root, err)
	}
	return filepath.Join(root, name), nil
}
