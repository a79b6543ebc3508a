package digest

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/tmorrell/jot/internal/brain"
)

// DefaultListLimit caps every digest list.
const DefaultListLimit = 20

// defaultPriority is the mid value used when a record carries no usable
// priority.
const defaultPriority = 3

// completedStatuses are terminal; records carrying one are excluded from
// the "what's next" fallback.
var completedStatuses = map[string]bool{
	"done":      true,
	"completed": true,
	"complete":  true,
	"closed":    true,
	"archived":  true,
}

// Item is one digest list entry, snapshotted for conversational follow-up.
type Item struct {
	RecordID string       `json:"record_id"`
	Category string       `json:"category"`
	Title    string       `json:"title"`
	Fields   brain.Fields `json:"fields"`
}

// Selector chooses which stored records a digest shows.
type Selector struct {
	storage brain.Storage
	limit   int
}

// NewSelector creates a selector over the given storage. limit <= 0 uses
// the default.
func NewSelector(storage brain.Storage, limit int) *Selector {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	return &Selector{storage: storage, limit: limit}
}

// Select returns the records for a days-wide digest window, capped at the
// list limit.
//
// The one-day view falls back to all open records when nothing recent
// exists, so "what's next" still surfaces the most urgent open work.
// Wider windows are a plain window query.
func (s *Selector) Select(ctx context.Context, days int) ([]brain.Record, error) {
	if days == 1 {
		return s.selectDaily(ctx)
	}

	records, err := s.storage.ListRecords(ctx, brain.Categories, days)
	if err != nil {
		return nil, err
	}
	sortByPriorityCreated(records)
	return capLimit(records, s.limit), nil
}

func (s *Selector) selectDaily(ctx context.Context) ([]brain.Record, error) {
	recent, err := s.storage.ListRecords(ctx, brain.Categories, 1)
	if err != nil {
		return nil, err
	}
	if len(recent) > 0 {
		sortByPriorityCreated(recent)
		return capLimit(recent, s.limit), nil
	}

	all, err := s.storage.ListRecords(ctx, brain.Categories, 0)
	if err != nil {
		return nil, err
	}
	open := filterOpen(all)
	sort.SliceStable(open, func(a, b int) bool {
		pa, pb := PriorityValue(open[a]), PriorityValue(open[b])
		if pa != pb {
			return pa < pb
		}
		sa, sb := statusBucket(statusValue(open[a])), statusBucket(statusValue(open[b]))
		if sa != sb {
			return sa < sb
		}
		return open[a].CreatedAt.Before(open[b].CreatedAt)
	})
	return capLimit(open, s.limit), nil
}

// List renders a numbered digest and the item snapshot backing it.
func (s *Selector) List(ctx context.Context, days int, title string) (string, []Item, error) {
	records, err := s.Select(ctx, days)
	if err != nil {
		return "", nil, err
	}

	lines := []string{title}
	items := make([]Item, 0, len(records))
	for i, record := range records {
		line := fmt.Sprintf("%d) %s: %s", i+1, record.Category, record.Title)
		if extra := RecordContext(record); extra != "" {
			line += " — " + extra
		}
		lines = append(lines, line)
		items = append(items, Item{
			RecordID: record.ID,
			Category: record.Category,
			Title:    record.Title,
			Fields:   record.Fields,
		})
	}
	if len(items) == 0 {
		lines = append(lines, "No items found.")
	}
	return strings.Join(lines, "\n"), items, nil
}

// RecordContext pulls a human-readable secondary line from
// category-specific field aliases.
func RecordContext(record brain.Record) string {
	fields := record.Fields
	if fields == nil {
		return ""
	}
	switch record.Category {
	case brain.CategoryProjects:
		return fields.Get("Next Action", "next_action", "Notes", "notes")
	case brain.CategoryPeople:
		return fields.Get("Context", "context", "Follow Ups", "follow_ups")
	case brain.CategoryIdeas:
		return fields.Get("One Liner", "one_liner", "Notes", "notes")
	default:
		return fields.Get("Notes", "notes")
	}
}

// PriorityValue reads a 1-5 priority field; anything else normalizes to
// the mid value.
func PriorityValue(record brain.Record) int {
	raw := record.Fields.Get("Priority", "priority")
	value, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return defaultPriority
	}
	if value < 1 || value > 5 {
		return defaultPriority
	}
	return value
}

func statusValue(record brain.Record) string {
	return strings.ToLower(strings.TrimSpace(record.Fields.Get("Status", "status")))
}

// statusBucket ranks open-ness: actively-moving work first, completed last.
func statusBucket(status string) int {
	switch status {
	case "blocked", "in progress", "active":
		return 0
	case "open", "doing", "next", "todo":
		return 1
	case "backlog", "someday", "later":
		return 2
	}
	if completedStatuses[status] {
		return 9
	}
	return 3
}

func filterOpen(records []brain.Record) []brain.Record {
	open := make([]brain.Record, 0, len(records))
	for _, record := range records {
		if status := statusValue(record); status != "" && completedStatuses[status] {
			continue
		}
		open = append(open, record)
	}
	return open
}

func sortByPriorityCreated(records []brain.Record) {
	sort.SliceStable(records, func(a, b int) bool {
		pa, pb := PriorityValue(records[a]), PriorityValue(records[b])
		if pa != pb {
			return pa < pb
		}
		return records[a].CreatedAt.Before(records[b].CreatedAt)
	})
}

func capLimit(records []brain.Record, limit int) []brain.Record {
	if len(records) > limit {
		return records[:limit]
	}
	return records
}
