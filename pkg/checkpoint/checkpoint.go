// Package checkpoint persists crawl progress so multi-page image
// downloads can resume after interruption.
package checkpoint

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"weibocrawl/pkg/logger"
)

// Checkpoint is the saved state of one user's image crawl.
type Checkpoint struct {
	UID              string            `json:"uid"`
	ScreenName       string            `json:"screen_name,omitempty"`
	LastFetchedPage  int               `json:"last_fetched_page"`
	DownloadedImages map[string]string `json:"downloaded_images"` // url -> local path
	TotalDownloaded  int               `json:"total_downloaded"`
	CreatedAt        time.Time         `json:"created_at"`
	UpdatedAt        time.Time         `json:"updated_at"`
	Version          int               `json:"version"`
}

// Manager handles checkpoint persistence for one uid.
type Manager struct {
	path   string
	logger logger.Logger
}

// NewManager creates a checkpoint manager rooted in the user data dir.
func NewManager(uid string) (*Manager, error) {
	dataDir, err := dataDirectory()
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory: %w", err)
	}

	dir := filepath.Join(dataDir, "checkpoints")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create checkpoints directory: %w", err)
	}

	return &Manager{
		path:   filepath.Join(dir, fmt.Sprintf("user_%s.json", uid)),
		logger: logger.GetLogger(),
	}, nil
}

// NewManagerAt creates a manager with an explicit path. Used by tests and
// callers with custom layouts.
func NewManagerAt(path string, log logger.Logger) *Manager {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Manager{path: path, logger: log}
}

func dataDirectory() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".local", "share", "weibocrawl"), nil
}

// Exists reports whether a checkpoint is on disk.
func (m *Manager) Exists() bool {
	_, err := os.Stat(m.path)
	return err == nil
}

// Create initializes and saves a fresh checkpoint.
func (m *Manager) Create(uid string) (*Checkpoint, error) {
	cp := &Checkpoint{
		UID:              uid,
		DownloadedImages: make(map[string]string),
		CreatedAt:        time.Now(),
		Version:          1,
	}
	if err := m.Save(cp); err != nil {
		return nil, err
	}
	return cp, nil
}

// Load reads the checkpoint; a missing file returns (nil, nil).
func (m *Manager) Load() (*Checkpoint, error) {
	data, err := os.ReadFile(m.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read checkpoint: %w", err)
	}

	var cp Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return nil, fmt.Errorf("failed to decode checkpoint: %w", err)
	}
	if cp.DownloadedImages == nil {
		cp.DownloadedImages = make(map[string]string)
	}

	m.logger.InfoWithFields("checkpoint loaded", map[string]interface{}{
		"uid":              cp.UID,
		"last_page":        cp.LastFetchedPage,
		"total_downloaded": cp.TotalDownloaded,
	})
	return &cp, nil
}

// Save writes the checkpoint atomically.
func (m *Manager) Save(cp *Checkpoint) error {
	cp.UpdatedAt = time.Now()

	data, err := json.MarshalIndent(cp, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode checkpoint: %w", err)
	}

	tempPath := m.path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write checkpoint: %w", err)
	}
	if err := os.Rename(tempPath, m.path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to finalize checkpoint: %w", err)
	}
	return nil
}

// RecordPage merges one page's download results and persists.
func (m *Manager) RecordPage(cp *Checkpoint, page int, downloaded map[string]string) error {
	cp.LastFetchedPage = page
	for url, path := range downloaded {
		if path == "" {
			continue
		}
		if _, known := cp.DownloadedImages[url]; !known {
			cp.TotalDownloaded++
		}
		cp.DownloadedImages[url] = path
	}
	return m.Save(cp)
}

// Delete removes the checkpoint file.
func (m *Manager) Delete() error {
	if err := os.Remove(m.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete checkpoint: %w", err)
	}
	return nil
}

// Path returns the checkpoint file location.
func (m *Manager) Path() string {
	return m.path
}
