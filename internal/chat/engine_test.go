package chat

import (
	"context"
	"io"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tmorrell/jot/internal/ai"
	"github.com/tmorrell/jot/internal/brain"
	"github.com/tmorrell/jot/internal/capture"
	"github.com/tmorrell/jot/internal/db"
	"github.com/tmorrell/jot/internal/digest"
	"github.com/tmorrell/jot/internal/errors"
	"github.com/tmorrell/jot/internal/notify"
	"github.com/tmorrell/jot/internal/pipeline"
	"github.com/tmorrell/jot/internal/session"
	"github.com/tmorrell/jot/internal/storage"
	"github.com/tmorrell/jot/internal/webex"
)

type fakeMessenger struct {
	posts   []string
	parents map[string]*webex.Message
}

func (f *fakeMessenger) GetMessage(_ context.Context, messageID string) (*webex.Message, error) {
	if msg, ok := f.parents[messageID]; ok {
		return msg, nil
	}
	return nil, errors.NewNotFound("message", messageID)
}

func (f *fakeMessenger) PostMessage(_ context.Context, _ string, text string) error {
	f.posts = append(f.posts, text)
	return nil
}

func (f *fakeMessenger) last(t *testing.T) string {
	t.Helper()
	if len(f.posts) == 0 {
		t.Fatal("no messages posted")
	}
	return f.posts[len(f.posts)-1]
}

type harness struct {
	engine   *Engine
	msgr     *fakeMessenger
	store    *storage.SQLite
	queue    *capture.Memory
	sessions *session.Store
}

func newHarness(t *testing.T, autoRun bool) *harness {
	t.Helper()
	database, err := db.Init(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })

	store := storage.NewSQLite(database)
	queue := capture.NewMemory()
	gate := pipeline.NewGate(store, 0.6)
	pipe := pipeline.New(queue, ai.NewRules(), gate, notify.NewConsole(io.Discard))
	sessions := session.NewStore()
	selector := digest.NewSelector(store, 0)
	msgr := &fakeMessenger{parents: make(map[string]*webex.Message)}

	engine := NewEngine(store, queue, sessions, selector, pipe, msgr, Options{
		BotName: "jot",
		AutoRun: autoRun,
	})
	return &harness{engine: engine, msgr: msgr, store: store, queue: queue, sessions: sessions}
}

func (h *harness) send(t *testing.T, text string) Outcome {
	t.Helper()
	outcome, err := h.engine.HandleMessage(context.Background(), &webex.Message{
		ID:       "msg-" + text,
		RoomID:   "room",
		PersonID: "alice",
		Text:     text,
	})
	require.NoError(t, err)
	return outcome
}

func TestCaptureAutoRunsPipeline(t *testing.T) {
	h := newHarness(t, true)

	outcome := h.send(t, "project: Ship v2 by Friday")
	assert.Equal(t, "queued", outcome.Status)
	assert.Equal(t, 1, outcome.Processed)

	records, err := h.store.ListRecords(context.Background(), brain.Categories, 7)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "projects", records[0].Category)
	assert.Equal(t, "Ship v2 by Friday", records[0].Title)
}

func TestCaptureWithoutAutoRunLeavesQueue(t *testing.T) {
	h := newHarness(t, false)

	h.send(t, "project: Ship v2 by Friday")

	items, err := h.queue.Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "webex", items[0].Source)
}

func TestGuidedUpdateRoundTrip(t *testing.T) {
	h := newHarness(t, true)
	h.send(t, "project: Ship v2 by Friday")

	h.send(t, "today")
	first := h.msgr.last(t)
	assert.Contains(t, first, "[SB DIGEST] Today")
	assert.Contains(t, first, "1) projects: Ship v2 by Friday")

	h.send(t, "update 1")
	menu := h.msgr.last(t)
	assert.Contains(t, menu, "Choose a field to update for Ship v2 by Friday:")
	assert.Contains(t, menu, "status")

	// Field options come from the record's own keys, sorted. Find the
	// menu number for status so the test does not depend on the layout.
	statusIdx := menuIndex(t, menu, "status")

	h.send(t, "update cancel")
	assert.Equal(t, "Update canceled.", h.msgr.last(t))

	// Restart and apply inline.
	h.send(t, "update 1")
	statusIdx = menuIndex(t, h.msgr.last(t), "status")
	h.send(t, strconv.Itoa(statusIdx)+" blocked")
	assert.Equal(t, "Updated Ship v2 by Friday — status set to 'blocked'.", h.msgr.last(t))

	sess := h.sessions.Get("room", "alice")
	require.NotNil(t, sess)
	assert.Nil(t, sess.PendingUpdate)

	records, err := h.store.ListRecords(context.Background(), []string{"projects"}, 7)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "blocked", records[0].Fields["status"])
}

func TestGuidedUpdateTwoStepValue(t *testing.T) {
	h := newHarness(t, true)
	h.send(t, "project: Ship v2 by Friday")
	h.send(t, "today")
	h.send(t, "update 1")
	statusIdx := menuIndex(t, h.msgr.last(t), "status")

	h.send(t, strconv.Itoa(statusIdx))
	assert.Equal(t, "Send the new value for status.", h.msgr.last(t))

	h.send(t, "in progress")
	assert.Equal(t, "Updated Ship v2 by Friday — status set to 'in progress'.", h.msgr.last(t))

	records, err := h.store.ListRecords(context.Background(), []string{"projects"}, 7)
	require.NoError(t, err)
	assert.Equal(t, "in progress", records[0].Fields["status"])
}

func TestUpdateWithoutListPrompts(t *testing.T) {
	h := newHarness(t, true)
	h.send(t, "update 2")
	assert.Equal(t, "No recent list found. Send `next`, `today`, or `week` first.", h.msgr.last(t))
}

func TestUpdateOutOfRange(t *testing.T) {
	h := newHarness(t, true)
	h.send(t, "project: Ship v2 by Friday")
	h.send(t, "today")

	h.send(t, "update 99")
	assert.Equal(t, "That number is out of range. Try again.", h.msgr.last(t))

	sess := h.sessions.Get("room", "alice")
	require.NotNil(t, sess)
	assert.Nil(t, sess.PendingUpdate)
}

func TestUpdateZeroIsOutOfRange(t *testing.T) {
	h := newHarness(t, true)
	h.send(t, "project: Ship v2 by Friday")
	h.send(t, "today")

	// A literal 0 is an update request, not a capture; it must get the
	// range reply and never reach the filing pipeline.
	h.send(t, "update 0")
	assert.Equal(t, "That number is out of range. Try again.", h.msgr.last(t))

	sess := h.sessions.Get("room", "alice")
	require.NotNil(t, sess)
	assert.Nil(t, sess.PendingUpdate)

	records, err := h.store.ListRecords(context.Background(), brain.Categories, 7)
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestFieldSelectionZeroIsOutOfRange(t *testing.T) {
	h := newHarness(t, true)
	h.send(t, "project: Ship v2 by Friday")
	h.send(t, "today")
	h.send(t, "update 1")

	h.send(t, "0")
	assert.Equal(t, "That number is out of range. Try again.", h.msgr.last(t))

	h.send(t, "0 blocked")
	assert.Equal(t, "That number is out of range. Try again.", h.msgr.last(t))

	sess := h.sessions.Get("room", "alice")
	require.NotNil(t, sess)
	require.NotNil(t, sess.PendingUpdate)
	assert.False(t, sess.PendingUpdate.AwaitingValue)
}

func TestCancelWithoutPendingUpdate(t *testing.T) {
	h := newHarness(t, true)

	h.send(t, "cancel")
	assert.Equal(t, "Update canceled.", h.msgr.last(t))

	records, err := h.store.ListRecords(context.Background(), brain.Categories, 7)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestFieldSelectionRejectsNonNumber(t *testing.T) {
	h := newHarness(t, true)
	h.send(t, "project: Ship v2 by Friday")
	h.send(t, "today")
	h.send(t, "update 1")

	h.send(t, "status please")
	assert.Equal(t, "Reply with a field number (e.g., `2`) or `2 New Value`.", h.msgr.last(t))
}

func TestHelpCommand(t *testing.T) {
	h := newHarness(t, true)
	h.send(t, "help")
	assert.Contains(t, h.msgr.last(t), "[SB HELP]")
}

func TestFixReplyRequeuesWithPrefix(t *testing.T) {
	h := newHarness(t, true)
	h.msgr.parents["parent-1"] = &webex.Message{ID: "parent-1", Text: "hmm something vague"}

	outcome, err := h.engine.HandleMessage(context.Background(), &webex.Message{
		ID:       "msg-fix",
		RoomID:   "room",
		PersonID: "alice",
		ParentID: "parent-1",
		Text:     "fix: project",
	})
	require.NoError(t, err)
	assert.Equal(t, "fixed", outcome.Status)
	assert.Equal(t, 1, outcome.Processed)

	records, err := h.store.ListRecords(context.Background(), []string{"projects"}, 7)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "hmm something vague", records[0].Title)
}

func TestPropertyMapOrdersMenu(t *testing.T) {
	h := newHarness(t, true)
	h.engine.propertyMap = map[string][]session.FieldOption{
		"projects": {
			{Key: "next_action", Name: "Next Action"},
			{Key: "status", Name: "Status"},
		},
	}
	h.send(t, "project: Ship v2 by Friday")
	h.send(t, "today")
	h.send(t, "update 1")

	menu := h.msgr.last(t)
	lines := strings.Split(menu, "\n")
	require.GreaterOrEqual(t, len(lines), 3)
	assert.True(t, strings.HasPrefix(lines[1], "1) Next Action"))
	assert.True(t, strings.HasPrefix(lines[2], "2) Status"))

	h.send(t, "2 blocked")
	assert.Equal(t, "Updated Ship v2 by Friday — Status set to 'blocked'.", h.msgr.last(t))

	records, err := h.store.ListRecords(context.Background(), []string{"projects"}, 7)
	require.NoError(t, err)
	assert.Equal(t, "blocked", records[0].Fields["status"])
}

func menuIndex(t *testing.T, menu, field string) int {
	t.Helper()
	for _, line := range strings.Split(menu, "\n")[1:] {
		parts := strings.SplitN(line, ") ", 2)
		if len(parts) != 2 {
			continue
		}
		name := parts[1]
		if cut := strings.Index(name, ":"); cut >= 0 {
			name = name[:cut]
		}
		if strings.TrimSpace(name) == field {
			n, err := strconv.Atoi(parts[0])
			require.NoError(t, err)
			return n
		}
	}
	t.Fatalf("field %q not in menu:\n%s", field, menu)
	return 0
}
