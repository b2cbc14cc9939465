package store

import (
	"context"
	"errors"

	"github.com/ajitpratap0/ssot-registry/internal/models"
)

// ErrCorrupt is returned by Load when the document exists but cannot be decoded.
var ErrCorrupt = errors.New("registry document is corrupt")

// Store defines the interface for persisting the registry document.
type Store interface {
	// Load reads the full registry snapshot.
	// A missing document yields an empty snapshot and no error.
	Load(ctx context.Context) (*models.Snapshot, error)

	// Save replaces the stored document with snap.
	Save(ctx context.Context, snap *models.Snapshot) error

	// Location describes where the document lives, for logs.
	Location() string

	// Close cleans up resources.
	Close() error
}
