package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/tmorrell/jot/internal/brain"
	"github.com/tmorrell/jot/internal/errors"
)

// InsertRecord stores a new record row.
func InsertRecord(ctx context.Context, db *sql.DB, r *brain.Record) error {
	fieldsJSON, err := json.Marshal(r.Fields)
	if err != nil {
		return errors.NewInternal(err)
	}

	query := `
		INSERT INTO records (id, category, title, fields_json, created_at)
		VALUES (?, ?, ?, ?, ?)
	`
	_, err = db.ExecContext(ctx, query, r.ID, r.Category, r.Title, string(fieldsJSON), r.CreatedAt.Unix())
	if err != nil {
		return errors.NewInternal(err)
	}
	return nil
}

// GetRecord retrieves a record by category and id.
func GetRecord(ctx context.Context, db *sql.DB, category, id string) (*brain.Record, error) {
	query := `
		SELECT id, category, title, fields_json, created_at
		FROM records
		WHERE category = ? AND id = ?
	`
	row := db.QueryRowContext(ctx, query, category, id)
	r, err := scanRecord(row)
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFound(category, id)
	}
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	return r, nil
}

// ListRecords returns records in the given categories ordered newest first.
// cutoff zero means no age filter.
func ListRecords(ctx context.Context, db *sql.DB, categories []string, cutoff time.Time) ([]brain.Record, error) {
	if len(categories) == 0 {
		return []brain.Record{}, nil
	}

	query := `
		SELECT id, category, title, fields_json, created_at
		FROM records
		WHERE category IN (` + placeholders(len(categories)) + `)
	`
	args := make([]any, 0, len(categories)+1)
	for _, c := range categories {
		args = append(args, c)
	}
	if !cutoff.IsZero() {
		query += " AND created_at >= ?"
		args = append(args, cutoff.Unix())
	}
	query += " ORDER BY created_at DESC"

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	defer rows.Close()

	records := make([]brain.Record, 0)
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, errors.NewInternal(err)
		}
		records = append(records, *r)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewInternal(err)
	}
	return records, nil
}

// FindRecordIDsByTitle returns the ids of records in category with an exact
// title match.
func FindRecordIDsByTitle(ctx context.Context, db *sql.DB, category, title string) ([]string, error) {
	query := `
		SELECT id FROM records
		WHERE category = ? AND title = ?
		ORDER BY created_at ASC
	`
	rows, err := db.QueryContext(ctx, query, category, title)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	defer rows.Close()

	ids := make([]string, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, errors.NewInternal(err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewInternal(err)
	}
	return ids, nil
}

// UpdateRecordFields replaces a record's fields and title.
func UpdateRecordFields(ctx context.Context, db *sql.DB, category, id, title string, fields brain.Fields) error {
	fieldsJSON, err := json.Marshal(fields)
	if err != nil {
		return errors.NewInternal(err)
	}

	query := `
		UPDATE records
		SET title = ?, fields_json = ?
		WHERE category = ? AND id = ?
	`
	result, err := db.ExecContext(ctx, query, title, string(fieldsJSON), category, id)
	if err != nil {
		return errors.NewInternal(err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return errors.NewInternal(err)
	}
	if rowsAffected == 0 {
		return errors.NewNotFound(category, id)
	}
	return nil
}

// AppendInboxEntry writes one audit row. Rows are never updated.
func AppendInboxEntry(ctx context.Context, db *sql.DB, e brain.InboxEntry) error {
	var recordID sql.NullString
	if e.RecordID != "" {
		recordID = sql.NullString{String: e.RecordID, Valid: true}
	}

	query := `
		INSERT INTO inbox_log (source_id, source, captured_text, category, title, confidence, timestamp, status, record_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := db.ExecContext(ctx, query,
		e.SourceID, e.Source, e.CapturedText, e.Category, e.Title,
		e.Confidence, e.Timestamp.Unix(), e.Status, recordID,
	)
	if err != nil {
		return errors.NewInternal(err)
	}
	return nil
}

// ListInboxEntries returns audit rows, newest first.
func ListInboxEntries(ctx context.Context, db *sql.DB, limit int) ([]brain.InboxEntry, error) {
	query := `
		SELECT source_id, source, captured_text, category, title, confidence, timestamp, status, record_id
		FROM inbox_log
		ORDER BY timestamp DESC
		LIMIT ?
	`
	rows, err := db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	defer rows.Close()

	entries := make([]brain.InboxEntry, 0)
	for rows.Next() {
		var (
			e        brain.InboxEntry
			ts       int64
			recordID sql.NullString
		)
		if err := rows.Scan(&e.SourceID, &e.Source, &e.CapturedText, &e.Category, &e.Title, &e.Confidence, &ts, &e.Status, &recordID); err != nil {
			return nil, errors.NewInternal(err)
		}
		e.Timestamp = time.Unix(ts, 0).UTC()
		if recordID.Valid {
			e.RecordID = recordID.String
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewInternal(err)
	}
	return entries, nil
}

// EnqueueCapture appends one item to the capture queue.
func EnqueueCapture(ctx context.Context, db *sql.DB, id, text, source string, createdAt time.Time) error {
	query := `
		INSERT INTO capture_queue (id, text, source, created_at)
		VALUES (?, ?, ?, ?)
	`
	_, err := db.ExecContext(ctx, query, id, text, source, createdAt.Unix())
	if err != nil {
		return errors.NewInternal(err)
	}
	return nil
}

// DrainCaptureQueue returns every queued item in insertion order and
// deletes them, in one transaction.
func DrainCaptureQueue(ctx context.Context, db *sql.DB) ([]brain.CaptureItem, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx, `SELECT id, text, source, created_at FROM capture_queue ORDER BY created_at ASC, id ASC`)
	if err != nil {
		return nil, errors.NewInternal(err)
	}

	items := make([]brain.CaptureItem, 0)
	for rows.Next() {
		var (
			item brain.CaptureItem
			ts   int64
		)
		if err := rows.Scan(&item.ID, &item.Text, &item.Source, &ts); err != nil {
			rows.Close()
			return nil, errors.NewInternal(err)
		}
		item.CreatedAt = time.Unix(ts, 0).UTC()
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, errors.NewInternal(err)
	}
	rows.Close()

	if _, err := tx.ExecContext(ctx, `DELETE FROM capture_queue`); err != nil {
		return nil, errors.NewInternal(err)
	}
	if err := tx.Commit(); err != nil {
		return nil, errors.NewInternal(err)
	}
	return items, nil
}

// scanner abstracts sql.Row and sql.Rows for scanRecord.
type scanner interface {
	Scan(dest ...any) error
}

// scanRecord scans a single row into a Record.
func scanRecord(row scanner) (*brain.Record, error) {
	var (
		r          brain.Record
		fieldsJSON string
		createdAt  int64
	)
	if err := row.Scan(&r.ID, &r.Category, &r.Title, &fieldsJSON, &createdAt); err != nil {
		return nil, err
	}
	r.CreatedAt = time.Unix(createdAt, 0).UTC()
	if fieldsJSON != "" {
		if err := json.Unmarshal([]byte(fieldsJSON), &r.Fields); err != nil {
			return nil, err
		}
	}
	if r.Fields == nil {
		r.Fields = brain.Fields{}
	}
	return &r, nil
}

// placeholders builds a "?, ?, ?" list of the given length.
func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	out := "?"
	for i := 1; i < n; i++ {
		out += ", ?"
	}
	return out
}
