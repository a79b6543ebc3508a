package ai

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/tmorrell/jot/internal/brain"
)

// categoryKeywords drives the rule-based scorer. One point per keyword hit.
var categoryKeywords = map[string][]string{
	brain.CategoryPeople:   {"meet", "met", "call", "coffee", "intro", "follow up", "connect"},
	brain.CategoryProjects: {"project", "build", "launch", "ship", "deadline", "milestone"},
	brain.CategoryIdeas:    {"idea", "what if", "maybe", "concept", "hypothesis"},
	brain.CategoryAdmin:    {"pay", "invoice", "renew", "schedule", "submit", "todo", "task"},
}

// categoryPrefixes maps spoken prefixes to their category. A prefixed
// capture is a user instruction, so it forces the category at high
// confidence.
var categoryPrefixes = map[string]string{
	"person":   brain.CategoryPeople,
	"people":   brain.CategoryPeople,
	"project":  brain.CategoryProjects,
	"projects": brain.CategoryProjects,
	"idea":     brain.CategoryIdeas,
	"ideas":    brain.CategoryIdeas,
	"admin":    brain.CategoryAdmin,
}

const prefixConfidence = 0.8

var wordPattern = regexp.MustCompile(`\w+`)

// Rules is a keyword classifier needing no network access.
type Rules struct {
	now func() time.Time
}

// NewRules creates the rule-based classifier.
func NewRules() *Rules {
	return &Rules{now: time.Now}
}

// Classify scores the text against the keyword table. A category prefix
// ("project: ...") wins outright.
func (r *Rules) Classify(ctx context.Context, text string) (*brain.Classification, error) {
	category, remainder, forced := splitCategoryPrefix(text)
	confidence := prefixConfidence
	if !forced {
		category, confidence = bestCategory(text)
		remainder = text
	}

	title := simpleTitle(remainder)
	return &brain.Classification{
		Category:   category,
		Confidence: confidence,
		Title:      title,
		Fields:     r.defaultFields(category, title, remainder),
		Raw:        map[string]any{"strategy": "rule_based"},
	}, nil
}

// Summarize renders a plain bulleted rollup of the records.
func (r *Rules) Summarize(ctx context.Context, records []brain.Record, period brain.DigestPeriod) (*brain.DigestSummary, error) {
	maxItems := 5
	title := "Daily Digest"
	if period == brain.DigestWeekly {
		maxItems = 8
		title = "Weekly Review"
	}

	body := "No items filed recently."
	if len(records) > 0 {
		lines := make([]string, 0, maxItems)
		for i, record := range records {
			if i >= maxItems {
				break
			}
			lines = append(lines, fmt.Sprintf("- %s: %s", record.Category, record.Title))
		}
		body = strings.Join(lines, "\n")
	}

	return &brain.DigestSummary{
		Title:     title,
		Body:      body,
		WordCount: len(strings.Fields(body)),
	}, nil
}

// splitCategoryPrefix detects a leading "<category>:" instruction and
// returns the forced category with the prefix stripped.
func splitCategoryPrefix(text string) (category, remainder string, ok bool) {
	trimmed := strings.TrimSpace(text)
	idx := strings.Index(trimmed, ":")
	if idx <= 0 {
		return "", "", false
	}
	token := strings.ToLower(strings.TrimSpace(trimmed[:idx]))
	category, found := categoryPrefixes[token]
	if !found {
		return "", "", false
	}
	return category, strings.TrimSpace(trimmed[idx+1:]), true
}

// bestCategory scores keyword hits, defaulting to a low-confidence admin
// guess when nothing matches.
func bestCategory(text string) (string, float64) {
	lower := strings.ToLower(text)
	best := brain.CategoryAdmin
	bestScore := 0
	for _, category := range brain.Categories {
		score := 0
		for _, keyword := range categoryKeywords[category] {
			if strings.Contains(lower, keyword) {
				score++
			}
		}
		if score > bestScore {
			best = category
			bestScore = score
		}
	}
	if bestScore == 0 {
		return brain.CategoryAdmin, 0.45
	}
	confidence := 0.5 + float64(bestScore)*0.15
	if confidence > 0.9 {
		confidence = 0.9
	}
	return best, confidence
}

// simpleTitle takes the first six words of the text.
func simpleTitle(text string) string {
	words := wordPattern.FindAllString(text, 7)
	if len(words) == 0 {
		return "Untitled"
	}
	if len(words) > 6 {
		words = words[:6]
	}
	return strings.Join(words, " ")
}

func (r *Rules) defaultFields(category, title, text string) brain.Fields {
	today := r.now().UTC().Format("2006-01-02")
	switch category {
	case brain.CategoryPeople:
		return brain.Fields{
			"name":         title,
			"context":      text,
			"follow_ups":   "",
			"last_touched": today,
		}
	case brain.CategoryProjects:
		return brain.Fields{
			"name":        title,
			"status":      "active",
			"next_action": text,
			"notes":       "",
		}
	case brain.CategoryIdeas:
		return brain.Fields{
			"name":      title,
			"one_liner": text,
			"notes":     "",
		}
	default:
		return brain.Fields{
			"name":     title,
			"status":   "open",
			"due_date": "",
			"notes":    text,
		}
	}
}
