package receipt

import (
	"fmt"
	"os"
	"path/filepath"
)

// Storage archives receipt images kept as evidence for captured records
type Storage interface {
	// Save stores data under name and returns the name to reference it by
	Save(name string, data []byte) (string, error)

	// Get retrieves stored data
	Get(name string) ([]byte, error)

	// Delete removes stored data
	Delete(name string) error
}

// LocalStorage implements the Storage interface using a local directory
type LocalStorage struct {
	basePath string
}

// NewLocalStorage creates a new LocalStorage instance
func NewLocalStorage(basePath string) (*LocalStorage, error) {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("creating storage directory: %w", err)
	}

	return &LocalStorage{
		basePath: basePath,
	}, nil
}

// path keeps every name inside the base directory.
func (l *LocalStorage) path(name string) (string, error) {
	base := filepath.Base(name)
	if base == "." || base == string(filepath.Separator) || base != name {
		return "", fmt.Errorf("invalid evidence name %q", name)
	}
	return filepath.Join(l.basePath, base), nil
}

// Save writes the file unless a file with the same name already exists.
// Names are content hashes, so an existing file holds the same bytes.
func (l *LocalStorage) Save(name string, data []byte) (string, error) {
	path, err := l.path(name)
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(path); err == nil {
		return name, nil
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("writing file: %w", err)
	}
	return name, nil
}

// Get retrieves a file from local storage
func (l *LocalStorage) Get(name string) ([]byte, error) {
	path, err := l.path(name)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading file: %w", err)
	}
	return data, nil
}

// Delete removes a file from local storage
func (l *LocalStorage) Delete(name string) error {
	path, err := l.path(name)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil {
		return fmt.Errorf("deleting file: %w", err)
	}
	return nil
}
