// Package storage persists downloaded images and post metadata on disk,
// with duplicate detection across runs.
package storage

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
)

// Manager handles file storage operations and duplicate detection for one
// download directory.
type Manager struct {
	dir       string
	overwrite bool

	mu         sync.RWMutex
	downloaded map[string]bool
}

// NewManager creates the directory when missing and indexes existing
// files so repeated runs skip what is already on disk.
func NewManager(dir string, overwrite bool) (*Manager, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create download directory: %w", err)
	}

	m := &Manager{
		dir:        dir,
		overwrite:  overwrite,
		downloaded: make(map[string]bool),
	}

	if err := m.scanExisting(); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Manager) scanExisting() error {
	entries, err := os.ReadDir(m.dir)
	if err != nil {
		return fmt.Errorf("failed to scan download directory: %w", err)
	}
	for _, entry := range entries {
		if !entry.IsDir() {
			m.downloaded[entry.Name()] = true
		}
	}
	return nil
}

// IsDownloaded reports whether a file with this name already exists.
// Overwrite mode treats everything as new.
func (m *Manager) IsDownloaded(filename string) bool {
	if m.overwrite {
		return false
	}

	m.mu.RLock()
	known := m.downloaded[filename]
	m.mu.RUnlock()
	if known {
		return true
	}

	if _, err := os.Stat(filepath.Join(m.dir, filename)); err == nil {
		m.mu.Lock()
		m.downloaded[filename] = true
		m.mu.Unlock()
		return true
	}
	return false
}

// SaveImage writes image data atomically (temp file + rename) and returns
// the final path.
func (m *Manager) SaveImage(r io.Reader, filename string) (string, error) {
	finalPath := filepath.Join(m.dir, filename)
	tempPath := finalPath + ".tmp"

	out, err := os.Create(tempPath)
	if err != nil {
		return "", fmt.Errorf("failed to create temporary file: %w", err)
	}

	_, copyErr := io.Copy(out, r)
	closeErr := out.Close()

	if copyErr != nil {
		os.Remove(tempPath)
		return "", fmt.Errorf("failed to write image data: %w", copyErr)
	}
	if closeErr != nil {
		os.Remove(tempPath)
		return "", fmt.Errorf("failed to close image file: %w", closeErr)
	}

	if err := os.Rename(tempPath, finalPath); err != nil {
		os.Remove(tempPath)
		return "", fmt.Errorf("failed to finalize image file: %w", err)
	}

	m.mu.Lock()
	m.downloaded[filename] = true
	m.mu.Unlock()

	return finalPath, nil
}

// SaveMetadata writes a JSON sidecar next to the images.
func (m *Manager) SaveMetadata(filename string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}

	finalPath := filepath.Join(m.dir, filename)
	tempPath := finalPath + ".tmp"
	if err := os.WriteFile(tempPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write metadata: %w", err)
	}
	if err := os.Rename(tempPath, finalPath); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to finalize metadata: %w", err)
	}
	return nil
}

// Dir returns the managed directory.
func (m *Manager) Dir() string {
	return m.dir
}

// DownloadedCount returns how many files the manager knows about.
func (m *Manager) DownloadedCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.downloaded)
}
