package storage

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/tmorrell/jot/internal/brain"
	"github.com/tmorrell/jot/internal/errors"
)

// JSON stores each category as a flat JSON table under a base directory.
// Suited to local single-user use; the sqlite adapter is the default.
type JSON struct {
	baseDir string
	now     func() time.Time
}

// NewJSON creates a JSON storage adapter rooted at baseDir.
func NewJSON(baseDir string) *JSON {
	return &JSON{baseDir: baseDir, now: time.Now}
}

// jsonRow is the on-disk row shape shared by category tables and the
// inbox log.
type jsonRow struct {
	ID           string       `json:"id,omitempty"`
	Category     string       `json:"category,omitempty"`
	Title        string       `json:"title,omitempty"`
	Fields       brain.Fields `json:"fields,omitempty"`
	CreatedAt    string       `json:"created_at,omitempty"`
	SourceID     string       `json:"source_id,omitempty"`
	Source       string       `json:"source,omitempty"`
	CapturedText string       `json:"captured_text,omitempty"`
	Confidence   float64      `json:"confidence,omitempty"`
	Timestamp    string       `json:"timestamp,omitempty"`
	Status       string       `json:"status,omitempty"`
	RecordID     string       `json:"record_id,omitempty"`
}

// Store appends a record row to the category table.
func (j *JSON) Store(ctx context.Context, category string, fields brain.Fields) (*brain.Record, error) {
	id, err := generateULID()
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	createdAt := j.now().UTC()

	rows, err := j.readTable(category)
	if err != nil {
		return nil, err
	}
	row := jsonRow{
		ID:        id,
		Category:  category,
		Title:     brain.DeriveTitle(fields),
		Fields:    fields.Clone(),
		CreatedAt: createdAt.Format(time.RFC3339),
	}
	rows = append(rows, row)
	if err := j.writeTable(category, rows); err != nil {
		return nil, err
	}

	return &brain.Record{
		Category:  category,
		ID:        id,
		Title:     row.Title,
		Fields:    row.Fields,
		CreatedAt: createdAt,
	}, nil
}

// LogInbox appends an audit row to inbox_log.json.
func (j *JSON) LogInbox(ctx context.Context, entry brain.InboxEntry) error {
	rows, err := j.readTable("inbox_log")
	if err != nil {
		return err
	}
	rows = append(rows, jsonRow{
		SourceID:     entry.SourceID,
		Source:       entry.Source,
		CapturedText: entry.CapturedText,
		Category:     entry.Category,
		Title:        entry.Title,
		Confidence:   entry.Confidence,
		Timestamp:    entry.Timestamp.UTC().Format(time.RFC3339),
		Status:       entry.Status,
		RecordID:     entry.RecordID,
	})
	return j.writeTable("inbox_log", rows)
}

// ListRecords returns records in the categories ordered by recency.
func (j *JSON) ListRecords(ctx context.Context, categories []string, days int) ([]brain.Record, error) {
	var cutoff time.Time
	if days > 0 {
		cutoff = j.now().UTC().Add(-time.Duration(days) * 24 * time.Hour)
	}

	records := make([]brain.Record, 0)
	for _, category := range categories {
		rows, err := j.readTable(category)
		if err != nil {
			return nil, err
		}
		for _, row := range rows {
			createdAt, err := time.Parse(time.RFC3339, row.CreatedAt)
			if err != nil {
				return nil, errors.NewInternal(err)
			}
			if !cutoff.IsZero() && createdAt.Before(cutoff) {
				continue
			}
			fields := row.Fields
			if fields == nil {
				fields = brain.Fields{}
			}
			records = append(records, brain.Record{
				Category:  row.Category,
				ID:        row.ID,
				Title:     row.Title,
				Fields:    fields,
				CreatedAt: createdAt,
			})
		}
	}

	sort.SliceStable(records, func(a, b int) bool {
		return records[a].CreatedAt.After(records[b].CreatedAt)
	})
	return records, nil
}

// FindRecordByTitle resolves a title to a record id, erroring on ambiguity.
func (j *JSON) FindRecordByTitle(ctx context.Context, category, title string) (string, error) {
	rows, err := j.readTable(category)
	if err != nil {
		return "", err
	}
	ids := make([]string, 0, 1)
	for _, row := range rows {
		if row.Title == title {
			ids = append(ids, row.ID)
		}
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

// UpdateRecord merges fields into an existing row.
func (j *JSON) UpdateRecord(ctx context.Context, category, recordID string, fields brain.Fields) (*brain.Record, error) {
	valid, unknown := brain.ValidateUpdateFields(category, fields)
	if unknown != "" {
		return nil, errors.NewUnknownField(category, unknown)
	}

	rows, err := j.readTable(category)
	if err != nil {
		return nil, err
	}
	for i := range rows {
		if rows[i].ID != recordID {
			continue
		}
		if rows[i].Fields == nil {
			rows[i].Fields = brain.Fields{}
		}
		for k, v := range valid {
			rows[i].Fields[k] = v
		}
		if v := valid.Get("name", "title"); v != "" {
			rows[i].Title = v
		}
		if err := j.writeTable(category, rows); err != nil {
			return nil, err
		}
		createdAt, err := time.Parse(time.RFC3339, rows[i].CreatedAt)
		if err != nil {
			return nil, errors.NewInternal(err)
		}
		return &brain.Record{
			Category:  category,
			ID:        recordID,
			Title:     rows[i].Title,
			Fields:    rows[i].Fields,
			CreatedAt: createdAt,
		}, nil
	}
	return nil, errors.NewNotFound(category, recordID)
}

func (j *JSON) tablePath(name string) string {
	return filepath.Join(j.baseDir, name+".json")
}

func (j *JSON) readTable(name string) ([]jsonRow, error) {
	data, err := os.ReadFile(j.tablePath(name))
	if err != nil {
		if os.IsNotExist(err) {
			return []jsonRow{}, nil
		}
		return nil, errors.NewInternal(err)
	}
	var rows []jsonRow
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, errors.NewInternal(err)
	}
	return rows, nil
}

func (j *JSON) writeTable(name string, rows []jsonRow) error {
	if err := os.MkdirAll(j.baseDir, 0700); err != nil {
		return errors.NewInternal(err)
	}
	data, err := json.MarshalIndent(rows, "", "  ")
	if err != nil {
		return errors.NewInternal(err)
	}
	if err := os.WriteFile(j.tablePath(name), data, 0600); err != nil {
		return errors.NewInternal(err)
	}
	return nil
}
