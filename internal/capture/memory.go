package capture

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tmorrell/jot/internal/brain"
)

// Memory is an in-process capture backlog for tests and ephemeral use.
type Memory struct {
	mu    sync.Mutex
	items []brain.CaptureItem
}

// NewMemory creates an empty in-memory backlog.
func NewMemory() *Memory {
	return &Memory{}
}

// Enqueue appends one thought to the backlog.
func (m *Memory) Enqueue(ctx context.Context, text, source string, createdAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items = append(m.items, brain.CaptureItem{
		ID:        uuid.NewString(),
		Text:      text,
		Source:    source,
		CreatedAt: createdAt,
	})
	return nil
}

// Fetch returns every queued item in insertion order and clears the backlog.
func (m *Memory) Fetch(ctx context.Context) ([]brain.CaptureItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	items := m.items
	m.items = nil
	return items, nil
}
