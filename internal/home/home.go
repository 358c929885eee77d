package home

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	// DefaultDirName is the default name for the mathhub home directory.
	DefaultDirName = ".mathhub"

	// DataDirName is the subdirectory for DefraDB data.
	DataDirName = "data"

	// ConfigFileName is the default config file name.
	ConfigFileName = "config.yaml"
)

// Dir represents the mathhub home directory structure.
type Dir struct {
	path string
}

// New creates a new Dir with the given path.
// If path is empty, uses the default (~/.mathhub).
func New(path string) (*Dir, error) {
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get user home directory: %w", err)
		}
		path = filepath.Join(home, DefaultDirName)
	}

	return &Dir{path: path}, nil
}

// Path returns the root path of the home directory.
func (d *Dir) Path() string {
	return d.path
}

// DataPath returns the path to the data directory.
func (d *Dir) DataPath() string {
	return filepath.Join(d.path, DataDirName)
}

// ConfigPath returns the path to the default config file.
func (d *Dir) ConfigPath() string {
	return filepath.Join(d.path, ConfigFileName)
}

// EnsureExists creates the home directory and subdirectories if they don't exist.
func (d *Dir) EnsureExists() error {
	// Create data directory (this also creates the parent)
	if err := os.MkdirAll(d.DataPath(), 0o755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}
	return nil
}

// Exists returns true if the home directory exists.
func (d *Dir) Exists() bool {
	_, err := os.Stat(d.path)
	return err == nil
}

// ConfigExists returns true if the config file exists in the home directory.
func (d *Dir) ConfigExists() bool {
	_, err := os.Stat(d.ConfigPath())
	return err == nil
}

// DocumentsDir returns the directory holding local copies of source PDFs.
func (d *Dir) DocumentsDir() string {
	return filepath.Join(d.path, "documents")
}

// DocumentPath returns the local path for a job's source PDF.
func (d *Dir) DocumentPath(jobID string) string {
	return filepath.Join(d.DocumentsDir(), jobID+".pdf")
}

// EnsureDocumentsDir creates the documents directory.
func (d *Dir) EnsureDocumentsDir() error {
	return os.MkdirAll(d.DocumentsDir(), 0o755)
}

// ExportsDir returns the directory for exported files.
func (d *Dir) ExportsDir() string {
	return filepath.Join(d.path, "exports")
}
