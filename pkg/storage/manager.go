package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	errs "igfetch/pkg/errors"
)

// SavedFile describes a media file written to disk
type SavedFile struct {
	FilePath string `json:"filePath"`
	FileSize int64  `json:"fileSize"`
}

// Manager writes files into one output directory
type Manager struct {
	outputDir string
}

// NewManager creates a new storage manager
func NewManager(outputDir string) (*Manager, error) {
	// Create output directory if it doesn't exist
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}
	return &Manager{outputDir: outputDir}, nil
}

// CleanFilename rejects names that would escape the output directory
func CleanFilename(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", errs.New(errs.ErrorTypeDownload, "empty filename")
	}
	if strings.Contains(name, "..") || strings.ContainsAny(name, `/\`) {
		return "", errs.Newf(errs.ErrorTypeDownload, "unsafe filename: %q", name)
	}
	base := filepath.Base(name)
	if base == "." || base == string(filepath.Separator) {
		return "", errs.Newf(errs.ErrorTypeDownload, "unsafe filename: %q", name)
	}
	return base, nil
}

// Path returns where filename would be stored
func (m *Manager) Path(filename string) string {
	return filepath.Join(m.outputDir, filename)
}

// Exists reports whether filename is already present
func (m *Manager) Exists(filename string) bool {
	_, err := os.Stat(m.Path(filename))
	return err == nil
}

// Save streams r into filename via a temporary file and an atomic rename.
// The reported size comes from the file system after the rename.
func (m *Manager) Save(r io.Reader, filename string) (*SavedFile, error) {
	name, err := CleanFilename(filename)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(m.outputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	target := m.Path(name)

	// Create temporary file first
	tempFile := target + ".tmp"
	out, err := os.Create(tempFile)
	if err != nil {
		return nil, fmt.Errorf("failed to create temporary file: %w", err)
	}

	_, err = io.Copy(out, r)
	closeErr := out.Close()

	if err != nil {
		os.Remove(tempFile)
		return nil, fmt.Errorf("failed to write media data: %w", err)
	}
	if closeErr != nil {
		os.Remove(tempFile)
		return nil, fmt.Errorf("failed to close file: %w", closeErr)
	}

	// Atomic rename
	if err := os.Rename(tempFile, target); err != nil {
		os.Remove(tempFile)
		return nil, fmt.Errorf("failed to rename temporary file: %w", err)
	}

	info, err := os.Stat(target)
	if err != nil {
		return nil, fmt.Errorf("failed to stat saved file: %w", err)
	}
	return &SavedFile{FilePath: target, FileSize: info.Size()}, nil
}

// GetOutputDir returns the output directory path
func (m *Manager) GetOutputDir() string {
	return m.outputDir
}
