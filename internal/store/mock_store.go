package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/ajitpratap0/ssot-registry/internal/models"
)

// MockStore is an in-memory implementation of Store for testing.
// It keeps the document as encoded JSON so tests exercise the same
// encode/decode path as FileStore.
type MockStore struct {
	mu      sync.RWMutex
	doc     []byte
	saves   int
	SaveErr error
}

// NewMockStore creates a new mock store with no document.
func NewMockStore() *MockStore {
	return &MockStore{}
}

// Load decodes the last saved document, or returns an empty snapshot.
func (m *MockStore) Load(_ context.Context) (*models.Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.doc == nil {
		return models.NewSnapshot(), nil
	}
	snap := models.NewSnapshot()
	if err := json.Unmarshal(m.doc, snap); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	normalize(snap)
	return snap, nil
}

// Save encodes snap into the in-memory document.
func (m *MockStore) Save(_ context.Context, snap *models.Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SaveErr != nil {
		return m.SaveErr
	}
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encoding registry document: %w", err)
	}
	m.doc = data
	m.saves++
	return nil
}

// SetRaw replaces the stored document with raw bytes, e.g. to simulate corruption.
func (m *MockStore) SetRaw(data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.doc = data
}

// Saves returns how many successful saves have happened.
func (m *MockStore) Saves() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.saves
}

// Location identifies the mock store in logs.
func (m *MockStore) Location() string { return "memory://mock" }

// Close is a no-op for the mock store.
func (m *MockStore) Close() error { return nil }

// errInjected is used by tests that need a generic failure.
var errInjected = errors.New("injected failure")

// FailingStore returns a MockStore whose saves always fail.
func FailingStore() *MockStore {
	return &MockStore{SaveErr: errInjected}
}
