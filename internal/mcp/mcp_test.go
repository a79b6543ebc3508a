package mcp

import (
	"context"
	"encoding/json"
	"io"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/tmorrell/jot/internal/ai"
	"github.com/tmorrell/jot/internal/brain"
	"github.com/tmorrell/jot/internal/capture"
	"github.com/tmorrell/jot/internal/db"
	"github.com/tmorrell/jot/internal/digest"
	"github.com/tmorrell/jot/internal/notify"
	"github.com/tmorrell/jot/internal/pipeline"
	"github.com/tmorrell/jot/internal/storage"
)

// testHandlers wires handlers over a temporary database with the memory
// queue and rule-based classifier.
func testHandlers(t *testing.T) (*Handlers, brain.Storage) {
	t.Helper()
	database, err := db.Init(t.TempDir())
	if err != nil {
		t.Fatalf("failed to init db: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	store := storage.NewSQLite(database)
	queue := capture.NewMemory()
	gate := pipeline.NewGate(store, 0.6)
	pipe := pipeline.New(queue, ai.NewRules(), gate, notify.NewConsole(io.Discard))
	return NewHandlers(queue, pipe, store, digest.NewSelector(store, 0)), store
}

// makeRequest creates a CallToolRequest with the given arguments.
func makeRequest(args map[string]any) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Arguments: args,
		},
	}
}

// resultPayload decodes the JSON text content of a tool result.
func resultPayload(t *testing.T, result *mcp.CallToolResult) map[string]any {
	t.Helper()
	if len(result.Content) == 0 {
		t.Fatal("empty result content")
	}
	text, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("unexpected content type %T", result.Content[0])
	}
	var payload map[string]any
	if err := json.Unmarshal([]byte(text.Text), &payload); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	return payload
}

func errorCode(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	if !result.IsError {
		t.Fatal("expected error result")
	}
	errObj, ok := resultPayload(t, result)["error"].(map[string]any)
	if !ok {
		t.Fatal("missing error object")
	}
	code, _ := errObj["code"].(string)
	return code
}

func TestCaptureThenRun(t *testing.T) {
	h, store := testHandlers(t)
	ctx := context.Background()

	result, err := h.HandleCapture(ctx, makeRequest(map[string]any{"text": "project: Ship v2 by Friday"}))
	if err != nil {
		t.Fatal(err)
	}
	if result.IsError {
		t.Fatalf("capture failed: %v", resultPayload(t, result))
	}

	result, err = h.HandleRun(ctx, makeRequest(nil))
	if err != nil {
		t.Fatal(err)
	}
	payload := resultPayload(t, result)
	if payload["stored"].(float64) != 1 {
		t.Fatalf("stored = %v, want 1", payload["stored"])
	}

	records, err := store.ListRecords(ctx, []string{"projects"}, 7)
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 1 || records[0].Title != "Ship v2 by Friday" {
		t.Fatalf("unexpected records: %+v", records)
	}
}

func TestCaptureRequiresText(t *testing.T) {
	h, _ := testHandlers(t)

	result, err := h.HandleCapture(context.Background(), makeRequest(map[string]any{}))
	if err != nil {
		t.Fatal(err)
	}
	if code := errorCode(t, result); code != "INVALID_REQUEST" {
		t.Fatalf("code = %q", code)
	}
}

func TestDigestNumbersItems(t *testing.T) {
	h, store := testHandlers(t)
	ctx := context.Background()

	if _, err := store.Store(ctx, "projects", brain.Fields{"name": "Ship v2", "status": "active"}); err != nil {
		t.Fatal(err)
	}

	result, err := h.HandleDigest(ctx, makeRequest(map[string]any{"period": "daily"}))
	if err != nil {
		t.Fatal(err)
	}
	payload := resultPayload(t, result)
	body := payload["body"].(string)
	if want := "1) projects: Ship v2"; !strings.Contains(body, want) {
		t.Fatalf("body %q missing %q", body, want)
	}
}

func TestDigestRejectsUnknownPeriod(t *testing.T) {
	h, _ := testHandlers(t)
	result, err := h.HandleDigest(context.Background(), makeRequest(map[string]any{"period": "monthly"}))
	if err != nil {
		t.Fatal(err)
	}
	if code := errorCode(t, result); code != "INVALID_REQUEST" {
		t.Fatalf("code = %q", code)
	}
}

func TestListFiltersByCategory(t *testing.T) {
	h, store := testHandlers(t)
	ctx := context.Background()

	if _, err := store.Store(ctx, "projects", brain.Fields{"name": "Ship v2"}); err != nil {
		t.Fatal(err)
	}
	if _, err := store.Store(ctx, "ideas", brain.Fields{"name": "Garden wiki"}); err != nil {
		t.Fatal(err)
	}

	result, err := h.HandleList(ctx, makeRequest(map[string]any{"category": "ideas"}))
	if err != nil {
		t.Fatal(err)
	}
	payload := resultPayload(t, result)
	if payload["count"].(float64) != 1 {
		t.Fatalf("count = %v, want 1", payload["count"])
	}
}

func TestUpdateByTitle(t *testing.T) {
	h, store := testHandlers(t)
	ctx := context.Background()

	if _, err := store.Store(ctx, "projects", brain.Fields{"name": "Ship v2", "status": "active"}); err != nil {
		t.Fatal(err)
	}

	result, err := h.HandleUpdate(ctx, makeRequest(map[string]any{
		"category": "projects",
		"title":    "Ship v2",
		"fields":   map[string]any{"status": "blocked"},
	}))
	if err != nil {
		t.Fatal(err)
	}
	if result.IsError {
		t.Fatalf("update failed: %v", resultPayload(t, result))
	}

	records, err := store.ListRecords(ctx, []string{"projects"}, 0)
	if err != nil {
		t.Fatal(err)
	}
	if records[0].Fields["status"] != "blocked" {
		t.Fatalf("status = %q", records[0].Fields["status"])
	}
}

func TestUpdateAmbiguousTitle(t *testing.T) {
	h, store := testHandlers(t)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if _, err := store.Store(ctx, "projects", brain.Fields{"name": "Ship v2"}); err != nil {
			t.Fatal(err)
		}
	}

	result, err := h.HandleUpdate(ctx, makeRequest(map[string]any{
		"category": "projects",
		"title":    "Ship v2",
		"fields":   map[string]any{"status": "blocked"},
	}))
	if err != nil {
		t.Fatal(err)
	}
	if code := errorCode(t, result); code != "AMBIGUOUS_TITLE" {
		t.Fatalf("code = %q", code)
	}
}

func TestUpdateRequiresAddress(t *testing.T) {
	h, _ := testHandlers(t)

	result, err := h.HandleUpdate(context.Background(), makeRequest(map[string]any{
		"category": "projects",
		"fields":   map[string]any{"status": "blocked"},
	}))
	if err != nil {
		t.Fatal(err)
	}
	if code := errorCode(t, result); code != "INVALID_REQUEST" {
		t.Fatalf("code = %q", code)
	}
}

func TestServerRegistration(t *testing.T) {
	h, _ := testHandlers(t)
	s := NewServer(h, "test", nil)
	tools := s.ListTools()

	if len(tools) != len(toolRegistry) {
		t.Errorf("registered tool count = %d, want %d", len(tools), len(toolRegistry))
	}
	for name := range toolRegistry {
		if _, ok := tools[name]; !ok {
			t.Errorf("missing registered tool: %s", name)
		}
	}
}

func TestServerRegistration_WithDisabledTools(t *testing.T) {
	h, _ := testHandlers(t)
	s := NewServer(h, "test", []string{"jot_update", "jot_update", "jot_run"})
	tools := s.ListTools()

	// Duplicates in the disabled list are ignored.
	if len(tools) != 3 {
		t.Errorf("registered tool count = %d, want 3", len(tools))
	}
	for _, name := range []string{"jot_update", "jot_run"} {
		if _, ok := tools[name]; ok {
			t.Errorf("disabled tool %q should not be registered", name)
		}
	}
	for _, name := range []string{"jot_capture", "jot_digest", "jot_list"} {
		if _, ok := tools[name]; !ok {
			t.Errorf("tool %q should be registered", name)
		}
	}
}

func TestValidateDisabledTools(t *testing.T) {
	unknown := ValidateDisabledTools([]string{"jot_capture", "jot_purge", "frobnicate"})
	if len(unknown) != 2 {
		t.Fatalf("unknown = %v, want 2 entries", unknown)
	}

	if unknown := ValidateDisabledTools(AllToolNames()); len(unknown) != 0 {
		t.Errorf("all registry names should validate, got %v", unknown)
	}
}
