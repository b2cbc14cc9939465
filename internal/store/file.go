package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/ajitpratap0/ssot-registry/internal/models"
)

// FileStore keeps the registry document as a single JSON file on disk.
// Writes go to a temp file in the same directory followed by a rename,
// so a crash mid-write never leaves a truncated document behind.
type FileStore struct {
	path   string
	logger *slog.Logger
}

// NewFileStore creates a store rooted at path. The parent directory is created if needed.
func NewFileStore(path string, logger *slog.Logger) (*FileStore, error) {
	if path == "" {
		return nil, fmt.Errorf("file store: path must not be empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("file store: creating directory for %s: %w", path, err)
	}
	return &FileStore{path: path, logger: logger}, nil
}

// Load reads and decodes the document. A missing file is not an error.
func (s *FileStore) Load(ctx context.Context) (*models.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			s.logger.Info("registry document not found, starting empty", "path", s.path)
			return models.NewSnapshot(), nil
		}
		return nil, fmt.Errorf("reading %s: %w", s.path, err)
	}

	snap := models.NewSnapshot()
	if err := json.Unmarshal(data, snap); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorrupt, s.path, err)
	}
	normalize(snap)
	return snap, nil
}

// Save encodes snap and atomically replaces the document.
func (s *FileStore) Save(ctx context.Context, snap *models.Snapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding registry document: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".registry-*.json")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("syncing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("replacing %s: %w", s.path, err)
	}

	s.logger.Debug("registry document saved", "path", s.path, "anchors", len(snap.Anchors), "aliases", snap.AliasCount())
	return nil
}

// Location returns the document path.
func (s *FileStore) Location() string { return s.path }

// Close is a no-op; the file is opened per operation.
func (s *FileStore) Close() error { return nil }

// normalize makes sure every map in a decoded snapshot is non-nil.
func normalize(snap *models.Snapshot) {
	if snap.Anchors == nil {
		snap.Anchors = make(map[string]models.Anchor)
	}
	if snap.Aliases == nil {
		snap.Aliases = make(map[string]map[string]models.AliasDefinition)
	}
	for ctxName, byName := range snap.Aliases {
		if byName == nil {
			delete(snap.Aliases, ctxName)
		}
	}
	if snap.AuditLog == nil {
		snap.AuditLog = []models.AuditEntry{}
	}
}
