package capture

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/tmorrell/jot/internal/brain"
	"github.com/tmorrell/jot/internal/db"
)

// Queue is the durable capture backlog, backed by the capture_queue table.
// Fetch drains the whole backlog; each item is consumed exactly once.
type Queue struct {
	db *sql.DB
}

// NewQueue wraps an initialized database handle.
func NewQueue(database *sql.DB) *Queue {
	return &Queue{db: database}
}

// Enqueue appends one thought to the backlog.
func (q *Queue) Enqueue(ctx context.Context, text, source string, createdAt time.Time) error {
	return db.EnqueueCapture(ctx, q.db, uuid.NewString(), text, source, createdAt)
}

// Fetch returns every queued item in insertion order and clears the queue.
func (q *Queue) Fetch(ctx context.Context) ([]brain.CaptureItem, error) {
	return db.DrainCaptureQueue(ctx, q.db)
}
