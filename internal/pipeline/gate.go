package pipeline

import (
	"context"
	"time"

	"github.com/tmorrell/jot/internal/brain"
)

// Decision is the gate's verdict for one classified item.
type Decision string

const (
	DecisionFiled       Decision = "filed"
	DecisionNeedsReview Decision = "needs_review"
)

// Out-of-vocabulary categories are never trusted as confidently
// admin-worthy.
const coercedConfidenceCap = 0.4

// Outcome is the result of gating one item. Record is nil when the item
// needs review.
type Outcome struct {
	Decision   Decision
	Category   string
	Title      string
	Confidence float64
	Record     *brain.Record
}

// Gate is the confidence-threshold decision point between auto-filing and
// human review. On either path it appends exactly one inbox log entry in
// the same call, so log and store never diverge.
type Gate struct {
	storage   brain.Storage
	threshold float64
	now       func() time.Time
}

// NewGate creates a gate writing through the given storage.
func NewGate(storage brain.Storage, threshold float64) *Gate {
	return &Gate{storage: storage, threshold: threshold, now: time.Now}
}

// Evaluate decides file-vs-review for one classification and performs the
// store/log side effects.
func (g *Gate) Evaluate(ctx context.Context, item brain.CaptureItem, result *brain.Classification) (*Outcome, error) {
	category := result.Category
	confidence := clamp01(result.Confidence)
	if !brain.ValidCategory(category) {
		category = brain.CategoryAdmin
		if confidence > coercedConfidenceCap {
			confidence = coercedConfidenceCap
		}
	}

	now := g.now().UTC()
	entry := brain.InboxEntry{
		SourceID:     item.ID,
		Source:       item.Source,
		CapturedText: item.Text,
		Category:     category,
		Title:        result.Title,
		Confidence:   confidence,
		Timestamp:    now,
	}

	if confidence < g.threshold {
		entry.Status = brain.StatusNeedsReview
		if err := g.storage.LogInbox(ctx, entry); err != nil {
			return nil, err
		}
		return &Outcome{
			Decision:   DecisionNeedsReview,
			Category:   category,
			Title:      result.Title,
			Confidence: confidence,
		}, nil
	}

	fields := brain.StripUnknownFields(category, result.Fields)
	if fields.Get("name", "title") == "" {
		fields["name"] = result.Title
	}
	switch category {
	case brain.CategoryPeople:
		// Freshness is a filing concern, not a classification concern.
		fields["last_touched"] = now.Format("2006-01-02")
	case brain.CategoryAdmin:
		// A stale or malformed due date is worse than none.
		if !reasonableDueDate(fields["due_date"], now) {
			fields["due_date"] = ""
		}
	}

	record, err := g.storage.Store(ctx, category, fields)
	if err != nil {
		return nil, err
	}

	entry.Status = brain.StatusFiled
	entry.RecordID = record.ID
	if err := g.storage.LogInbox(ctx, entry); err != nil {
		return nil, err
	}

	return &Outcome{
		Decision:   DecisionFiled,
		Category:   category,
		Title:      record.Title,
		Confidence: confidence,
		Record:     record,
	}, nil
}

// reasonableDueDate accepts an ISO-8601 date that is today or later.
func reasonableDueDate(value string, now time.Time) bool {
	if value == "" {
		return false
	}
	due, err := parseISODate(value)
	if err != nil {
		return false
	}
	today := now.Truncate(24 * time.Hour)
	return !due.Before(today)
}

// parseISODate accepts a bare date or a full timestamp.
func parseISODate(value string) (time.Time, error) {
	var err error
	for _, layout := range []string{"2006-01-02", time.RFC3339, "2006-01-02T15:04:05"} {
		var t time.Time
		t, err = time.Parse(layout, value)
		if err == nil {
			return t.Truncate(24 * time.Hour), nil
		}
	}
	return time.Time{}, err
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
