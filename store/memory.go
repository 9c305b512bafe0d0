// Package store provides sheet.Persister implementations.
package store

import (
	"context"
	"sync"

	"github.com/warp/order-sheet/sheet"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu      sync.RWMutex
	current *sheet.Snapshot
	history []string
	failErr error
}

func NewMemory() *Memory {
	return &Memory{}
}

// Load returns the last saved snapshot, or nil.
func (m *Memory) Load(_ context.Context) (*sheet.Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.current == nil {
		return nil, nil
	}
	snap := copySnapshot(*m.current)
	return &snap, nil
}

// Save replaces the stored snapshot.
func (m *Memory) Save(_ context.Context, snap sheet.Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.failErr != nil {
		return m.failErr
	}
	stored := copySnapshot(snap)
	m.current = &stored
	m.history = append(m.history, snap.Revision)
	return nil
}

// Revisions returns every saved revision, oldest first.
func (m *Memory) Revisions() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]string(nil), m.history...)
}

// FailWith makes every following Save return err. Nil restores saving.
func (m *Memory) FailWith(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failErr = err
}

func copySnapshot(s sheet.Snapshot) sheet.Snapshot {
	s.Data = append([]byte(nil), s.Data...)
	return s
}
