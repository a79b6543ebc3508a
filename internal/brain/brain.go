package brain

import (
	"context"
	"time"
)

// Category names for the four life-management tables.
const (
	CategoryPeople   = "people"
	CategoryProjects = "projects"
	CategoryIdeas    = "ideas"
	CategoryAdmin    = "admin"
)

// Categories lists every category in digest/list order.
var Categories = []string{CategoryProjects, CategoryPeople, CategoryIdeas, CategoryAdmin}

// ValidCategory reports whether name is one of the four known categories.
func ValidCategory(name string) bool {
	switch name {
	case CategoryPeople, CategoryProjects, CategoryIdeas, CategoryAdmin:
		return true
	}
	return false
}

// Fields is the string-keyed property bag that flows from classification
// through storage. Keys are validated against the category schema at the
// gate and at update boundaries.
type Fields map[string]string

// Clone returns a shallow copy so callers can mutate without aliasing.
func (f Fields) Clone() Fields {
	out := make(Fields, len(f))
	for k, v := range f {
		out[k] = v
	}
	return out
}

// Get returns the first non-empty value among the given keys. Lookups
// tolerate both human-facing ("Next Action") and machine-facing
// ("next_action") key casing.
func (f Fields) Get(keys ...string) string {
	for _, key := range keys {
		if v, ok := f[key]; ok && v != "" {
			return v
		}
	}
	return ""
}

// CaptureItem is a raw piece of text plus provenance awaiting
// classification. Immutable once created; consumed exactly once per
// pipeline run.
type CaptureItem struct {
	ID        string
	Text      string
	Source    string
	CreatedAt time.Time
	Raw       map[string]any
}

// Classification assigns a capture item to a category with a confidence
// score and proposed structured fields. Ephemeral.
type Classification struct {
	Category   string
	Confidence float64
	Title      string
	Fields     Fields
	Raw        map[string]any
}

// Record is the durable entity of the system: one row in a category table.
type Record struct {
	Category  string    `json:"category"`
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Fields    Fields    `json:"fields"`
	CreatedAt time.Time `json:"created_at"`
}

// Inbox log statuses.
const (
	StatusFiled       = "filed"
	StatusNeedsReview = "needs_review"
)

// InboxEntry is an append-only audit row mirroring the terminal outcome of
// one classification. Write-once, never mutated.
type InboxEntry struct {
	SourceID     string
	Source       string
	CapturedText string
	Category     string
	Title        string
	Confidence   float64
	Timestamp    time.Time
	Status       string
	RecordID     string
}

// DigestSummary is an AI-produced rollup of recent records.
type DigestSummary struct {
	Title     string
	Body      string
	WordCount int
}

// DigestPeriod selects the summarization prompt.
type DigestPeriod string

const (
	DigestDaily  DigestPeriod = "daily"
	DigestWeekly DigestPeriod = "weekly"
)

// DeriveTitle picks a record title from name/title fields, defaulting to
// "Untitled".
func DeriveTitle(fields Fields) string {
	if v := fields.Get("name", "title"); v != "" {
		return v
	}
	return "Untitled"
}

// Capture drains whatever backlog of captured thoughts exists.
type Capture interface {
	Fetch(ctx context.Context) ([]CaptureItem, error)
}

// Enqueuer is the optional producer side of a capture adapter.
type Enqueuer interface {
	Enqueue(ctx context.Context, text, source string, createdAt time.Time) error
}

// AI classifies captured text and summarizes stored records.
type AI interface {
	Classify(ctx context.Context, text string) (*Classification, error)
	Summarize(ctx context.Context, records []Record, period DigestPeriod) (*DigestSummary, error)
}

// Storage is the durable record store contract.
type Storage interface {
	// Store files fields into the category table and returns the new record.
	Store(ctx context.Context, category string, fields Fields) (*Record, error)

	// LogInbox appends an audit entry. Entries are never mutated.
	LogInbox(ctx context.Context, entry InboxEntry) error

	// ListRecords returns records in the categories ordered by recency.
	// days <= 0 means no age cutoff.
	ListRecords(ctx context.Context, categories []string, days int) ([]Record, error)

	// FindRecordByTitle resolves a title to a record id. More than one
	// match is an ambiguity error listing every conflicting id.
	FindRecordByTitle(ctx context.Context, category, title string) (string, error)

	// UpdateRecord merges fields into an existing record.
	UpdateRecord(ctx context.Context, category, recordID string, fields Fields) (*Record, error)
}

// Notifier delivers plain display strings to the user.
type Notifier interface {
	NotifyFiled(ctx context.Context, message string) error
	NotifyNeedsReview(ctx context.Context, message string) error
	NotifyDigest(ctx context.Context, message string) error
}
