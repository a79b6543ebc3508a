package mcp

import (
	"context"
	"encoding/json"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/tmorrell/jot/internal/brain"
	"github.com/tmorrell/jot/internal/digest"
	"github.com/tmorrell/jot/internal/errors"
)

// Runner triggers a filing pass over the capture backlog.
type Runner interface {
	Run(ctx context.Context) ([]brain.Record, error)
}

// Handlers holds dependencies for MCP tool handlers.
type Handlers struct {
	queue    brain.Enqueuer
	runner   Runner
	storage  brain.Storage
	selector *digest.Selector
	now      func() time.Time
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(queue brain.Enqueuer, runner Runner, storage brain.Storage, selector *digest.Selector) *Handlers {
	return &Handlers{
		queue:    queue,
		runner:   runner,
		storage:  storage,
		selector: selector,
		now:      time.Now,
	}
}

// CaptureRequest represents the arguments for jot_capture.
type CaptureRequest struct {
	Text   string `json:"text"`
	Source string `json:"source,omitempty"`
}

// DigestRequest represents the arguments for jot_digest.
type DigestRequest struct {
	Period string `json:"period,omitempty"`
}

// ListRequest represents the arguments for jot_list.
type ListRequest struct {
	Category string `json:"category,omitempty"`
	Days     int    `json:"days,omitempty"`
}

// UpdateRequest represents the arguments for jot_update.
type UpdateRequest struct {
	Category string            `json:"category"`
	ID       string            `json:"id,omitempty"`
	Title    string            `json:"title,omitempty"`
	Fields   map[string]string `json:"fields"`
}

// recordView is the wire shape records take in tool results.
type recordView struct {
	ID        string       `json:"id"`
	Category  string       `json:"category"`
	Title     string       `json:"title"`
	Fields    brain.Fields `json:"fields"`
	CreatedAt string       `json:"created_at"`
}

func viewOf(record brain.Record) recordView {
	return recordView{
		ID:        record.ID,
		Category:  record.Category,
		Title:     record.Title,
		Fields:    record.Fields,
		CreatedAt: record.CreatedAt.UTC().Format(time.RFC3339),
	}
}

// HandleCapture handles the jot_capture tool call.
func (h *Handlers) HandleCapture(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[CaptureRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	if input.Text == "" {
		return errorResult(errors.NewInvalidRequest("text is required")), nil
	}
	source := input.Source
	if source == "" {
		source = "mcp"
	}
	if err := h.queue.Enqueue(ctx, input.Text, source, h.now()); err != nil {
		return errorResult(err), nil
	}
	return successResult(map[string]string{"status": "queued"})
}

// HandleRun handles the jot_run tool call.
func (h *Handlers) HandleRun(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	stored, err := h.runner.Run(ctx)
	if err != nil {
		return errorResult(err), nil
	}
	views := make([]recordView, 0, len(stored))
	for _, record := range stored {
		views = append(views, viewOf(record))
	}
	return successResult(map[string]any{"stored": len(views), "records": views})
}

// HandleDigest handles the jot_digest tool call.
func (h *Handlers) HandleDigest(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[DigestRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	days, title := 1, "Daily Digest"
	switch input.Period {
	case "", "daily":
	case "weekly":
		days, title = 7, "Weekly Review"
	default:
		return errorResult(errors.NewInvalidRequest("unknown period: " + input.Period)), nil
	}
	message, items, err := h.selector.List(ctx, days, title)
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(map[string]any{"title": title, "body": message, "items": items})
}

// HandleList handles the jot_list tool call.
func (h *Handlers) HandleList(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ListRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	categories := brain.Categories
	if input.Category != "" {
		if !brain.ValidCategory(input.Category) {
			return errorResult(errors.NewInvalidRequest("unknown category: " + input.Category)), nil
		}
		categories = []string{input.Category}
	}
	records, err := h.storage.ListRecords(ctx, categories, input.Days)
	if err != nil {
		return errorResult(err), nil
	}
	views := make([]recordView, 0, len(records))
	for _, record := range records {
		views = append(views, viewOf(record))
	}
	return successResult(map[string]any{"count": len(views), "records": views})
}

// HandleUpdate handles the jot_update tool call.
func (h *Handlers) HandleUpdate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[UpdateRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	if !brain.ValidCategory(input.Category) {
		return errorResult(errors.NewInvalidRequest("unknown category: " + input.Category)), nil
	}
	if len(input.Fields) == 0 {
		return errorResult(errors.NewInvalidRequest("fields is required")), nil
	}

	recordID := input.ID
	if recordID == "" {
		if input.Title == "" {
			return errorResult(errors.NewInvalidRequest("either id or title is required")), nil
		}
		recordID, err = h.storage.FindRecordByTitle(ctx, input.Category, input.Title)
		if err != nil {
			return errorResult(err), nil
		}
	}

	fields := make(brain.Fields, len(input.Fields))
	for key, value := range input.Fields {
		fields[key] = value
	}
	record, err := h.storage.UpdateRecord(ctx, input.Category, recordID, fields)
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(viewOf(*record))
}

// errorResult creates an MCP error result from a structured error.
func errorResult(err error) *mcp.CallToolResult {
	var payload map[string]any
	if jErr, ok := err.(*errors.JotError); ok {
		errorObj := map[string]any{
			"code":    jErr.Code,
			"message": jErr.Message,
			"status":  jErr.Status,
		}
		// Only include details for non-internal errors to avoid leaking
		// sensitive info like file paths or SQL errors
		if jErr.Code != errors.ErrInternal && jErr.Details != nil {
			errorObj["details"] = jErr.Details
		}
		payload = map[string]any{"error": errorObj}
	} else {
		payload = map[string]any{
			"error": map[string]any{
				"code":    "INTERNAL",
				"message": "an internal error occurred",
				"status":  500,
			},
		}
	}
	content, _ := json.Marshal(payload)
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: string(content)}},
		IsError: true,
	}
}

// successResult creates an MCP success result from any data.

func successResult(data any) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultJSON(data)
}
