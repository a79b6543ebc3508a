package storage

import (
	"context"
	"crypto/rand"
	"database/sql"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/tmorrell/jot/internal/brain"
	"github.com/tmorrell/jot/internal/db"
	"github.com/tmorrell/jot/internal/errors"
)

// SQLite stores records, the inbox log, and the capture queue in one
// SQLite database.
type SQLite struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLite wraps an initialized database handle.
func NewSQLite(database *sql.DB) *SQLite {
	return &SQLite{db: database, now: time.Now}
}

// DB exposes the underlying handle for adapters sharing the database
// (capture queue, MCP tools).
func (s *SQLite) DB() *sql.DB {
	return s.db
}

// Store files fields into the category table.
func (s *SQLite) Store(ctx context.Context, category string, fields brain.Fields) (*brain.Record, error) {
	id, err := generateULID()
	if err != nil {
		return nil, errors.NewInternal(err)
	}

	record := &brain.Record{
		Category:  category,
		ID:        id,
		Title:     brain.DeriveTitle(fields),
		Fields:    fields.Clone(),
		CreatedAt: s.now().UTC(),
	}
	if err := db.InsertRecord(ctx, s.db, record); err != nil {
		return nil, err
	}
	return record, nil
}

// LogInbox appends an audit entry.
func (s *SQLite) LogInbox(ctx context.Context, entry brain.InboxEntry) error {
	return db.AppendInboxEntry(ctx, s.db, entry)
}

// ListRecords returns records ordered by recency. days <= 0 means no
// age cutoff.
func (s *SQLite) ListRecords(ctx context.Context, categories []string, days int) ([]brain.Record, error) {
	var cutoff time.Time
	if days > 0 {
		cutoff = s.now().UTC().Add(-time.Duration(days) * 24 * time.Hour)
	}
	return db.ListRecords(ctx, s.db, categories, cutoff)
}

// FindRecordByTitle resolves a title to a record id. Multiple matches are
// an explicit ambiguity error listing every conflicting id.
func (s *SQLite) FindRecordByTitle(ctx context.Context, category, title string) (string, error) {
	ids, err := db.FindRecordIDsByTitle(ctx, s.db, category, title)
	if err != nil {
		return "", err
	}
	switch len(ids) {
	case 0:
		return "", errors.NewNotFound(category, title)
	case 1:
		return ids[0], nil
	default:
		return "", errors.NewAmbiguousTitle(category, title, ids)
	}
}

// UpdateRecord merges fields into an existing record. Unknown field names
// are fatal to the call; a title-bearing field also retitles the record.
func (s *SQLite) UpdateRecord(ctx context.Context, category, recordID string, fields brain.Fields) (*brain.Record, error) {
	valid, unknown := brain.ValidateUpdateFields(category, fields)
	if unknown != "" {
		return nil, errors.NewUnknownField(category, unknown)
	}

	record, err := db.GetRecord(ctx, s.db, category, recordID)
	if err != nil {
		return nil, err
	}

	merged := record.Fields.Clone()
	for k, v := range valid {
		merged[k] = v
	}

	title := record.Title
	if v := valid.Get("name", "title"); v != "" {
		title = v
	}

	if err := db.UpdateRecordFields(ctx, s.db, category, recordID, title, merged); err != nil {
		return nil, err
	}

	record.Title = title
	record.Fields = merged
	return record, nil
}

// generateULID generates a new ULID.
func generateULID() (string, error) {
	entropy := ulid.Monotonic(rand.Reader, 0)
	id, err := ulid.New(ulid.Timestamp(time.Now()), entropy)
	if err != nil {
		return "", err
	}
	return id.String(), nil
}
