package pipeline

import (
	"context"
	"fmt"

	"github.com/tmorrell/jot/internal/brain"
)

// Pipeline drains the capture backlog, classifies each item, gates it, and
// notifies the outcome. Collaborator failures propagate and abort the run;
// items already filed and logged stay filed (no rollback).
type Pipeline struct {
	capture  brain.Capture
	ai       brain.AI
	gate     *Gate
	notifier brain.Notifier
}

// New wires a filing pipeline.
func New(capture brain.Capture, ai brain.AI, gate *Gate, notifier brain.Notifier) *Pipeline {
	return &Pipeline{
		capture:  capture,
		ai:       ai,
		gate:     gate,
		notifier: notifier,
	}
}

// Run processes the backlog and returns the filed records in processing
// order.
func (p *Pipeline) Run(ctx context.Context) ([]brain.Record, error) {
	items, err := p.capture.Fetch(ctx)
	if err != nil {
		return nil, err
	}

	stored := make([]brain.Record, 0, len(items))
	for _, item := range items {
		result, err := p.ai.Classify(ctx, item.Text)
		if err != nil {
			return stored, err
		}

		outcome, err := p.gate.Evaluate(ctx, item, result)
		if err != nil {
			return stored, err
		}

		switch outcome.Decision {
		case DecisionFiled:
			msg := fmt.Sprintf("Filed as %s: %s (%.2f).", outcome.Category, outcome.Title, outcome.Confidence)
			if err := p.notifier.NotifyFiled(ctx, msg); err != nil {
				return stored, err
			}
			stored = append(stored, *outcome.Record)
		case DecisionNeedsReview:
			msg := fmt.Sprintf("Needs review: '%s' (%s, %.2f).", outcome.Title, outcome.Category, outcome.Confidence)
			if err := p.notifier.NotifyNeedsReview(ctx, msg); err != nil {
				return stored, err
			}
		}
	}
	return stored, nil
}

// BuildDigest summarizes the recent window across all categories and
// delivers it through the notifier.
func BuildDigest(ctx context.Context, provider brain.AI, storage brain.Storage, notifier brain.Notifier, days int, title string, period brain.DigestPeriod) error {
	records, err := storage.ListRecords(ctx, brain.Categories, days)
	if err != nil {
		return err
	}
	summary, err := provider.Summarize(ctx, records, period)
	if err != nil {
		return err
	}
	return notifier.NotifyDigest(ctx, title+"\n"+summary.Body)
}
