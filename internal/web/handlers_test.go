package web

import (
	"context"
	"crypto/hmac"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tmorrell/jot/internal/ai"
	"github.com/tmorrell/jot/internal/brain"
	"github.com/tmorrell/jot/internal/capture"
	"github.com/tmorrell/jot/internal/chat"
	"github.com/tmorrell/jot/internal/config"
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
	messages map[string]*webex.Message
	posts    []string
}

func (f *fakeMessenger) GetMessage(_ context.Context, messageID string) (*webex.Message, error) {
	if msg, ok := f.messages[messageID]; ok {
		return msg, nil
	}
	return nil, errors.NewNotFound("message", messageID)
}

func (f *fakeMessenger) PostMessage(_ context.Context, _ string, text string) error {
	f.posts = append(f.posts, text)
	return nil
}

type recordingNotifier struct {
	digests []string
}

func (n *recordingNotifier) NotifyFiled(_ context.Context, _ string) error       { return nil }
func (n *recordingNotifier) NotifyNeedsReview(_ context.Context, _ string) error { return nil }
func (n *recordingNotifier) NotifyDigest(_ context.Context, message string) error {
	n.digests = append(n.digests, message)
	return nil
}

type harness struct {
	handlers *Handlers
	msgr     *fakeMessenger
	notifier *recordingNotifier
	store    *storage.SQLite
	sessions *session.Store
	cfg      *config.Config
	server   http.Handler
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	database, err := db.Init(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })

	cfg := config.DefaultConfig()
	cfg.Webhook.DigestRoomID = "digest-room"

	store := storage.NewSQLite(database)
	queue := capture.NewMemory()
	rules := ai.NewRules()
	gate := pipeline.NewGate(store, cfg.ConfidenceThreshold)
	pipe := pipeline.New(queue, rules, gate, notify.NewConsole(io.Discard))
	sessions := session.NewStore()
	selector := digest.NewSelector(store, cfg.ListLimit)
	msgr := &fakeMessenger{messages: make(map[string]*webex.Message)}

	engine := chat.NewEngine(store, queue, sessions, selector, pipe, msgr, chat.Options{AutoRun: true})
	notifier := &recordingNotifier{}
	handlers := NewHandlers(cfg, engine, msgr, selector, notifier, rules)

	return &harness{
		handlers: handlers,
		msgr:     msgr,
		notifier: notifier,
		store:    store,
		sessions: sessions,
		cfg:      cfg,
		server:   NewServer(handlers, ":0").Handler,
	}
}

func (h *harness) addMessage(id, text string) {
	h.msgr.messages[id] = &webex.Message{
		ID:          id,
		RoomID:      "room",
		PersonID:    "alice",
		PersonEmail: "alice@example.com",
		PersonType:  "person",
		Text:        text,
	}
}

func (h *harness) deliver(t *testing.T, body string, header map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(body))
	for key, value := range header {
		req.Header.Set(key, value)
	}
	rec := httptest.NewRecorder()
	h.server.ServeHTTP(rec, req)
	return rec
}

func webhookBody(messageID string) string {
	return `{"resource":"messages","event":"created","data":{"id":"` + messageID + `"}}`
}

func sign(secret, body string) string {
	mac := hmac.New(sha1.New, []byte(secret))
	mac.Write([]byte(body))
	return hex.EncodeToString(mac.Sum(nil))
}

func (h *harness) records(t *testing.T) []brain.Record {
	t.Helper()
	records, err := h.store.ListRecords(context.Background(), brain.Categories, 7)
	require.NoError(t, err)
	return records
}

func TestWebhookFilesCapture(t *testing.T) {
	h := newHarness(t)
	h.addMessage("m1", "project: Ship v2 by Friday")

	rec := h.deliver(t, webhookBody("m1"), nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Status    string `json:"status"`
		Processed int    `json:"processed"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "queued", resp.Status)
	assert.Equal(t, 1, resp.Processed)

	records := h.records(t)
	require.Len(t, records, 1)
	assert.Equal(t, "projects", records[0].Category)
	assert.Equal(t, "Ship v2 by Friday", records[0].Title)
}

func TestWebhookSignature(t *testing.T) {
	h := newHarness(t)
	h.cfg.Webhook.Secret = "hunter2"
	h.addMessage("m1", "project: Ship v2 by Friday")
	body := webhookBody("m1")

	t.Run("missing", func(t *testing.T) {
		rec := h.deliver(t, body, nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Empty(t, h.records(t))
	})

	t.Run("wrong", func(t *testing.T) {
		rec := h.deliver(t, body, map[string]string{signatureHeader: sign("other-secret", body)})
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Empty(t, h.records(t))
	})

	t.Run("valid", func(t *testing.T) {
		rec := h.deliver(t, body, map[string]string{signatureHeader: sign("hunter2", body)})
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Len(t, h.records(t), 1)
	})
}

func TestWebhookIgnoresOtherEvents(t *testing.T) {
	h := newHarness(t)
	rec := h.deliver(t, `{"resource":"memberships","event":"created","data":{"id":"m1"}}`, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "ignored")
}

func TestWebhookIgnoresBotTraffic(t *testing.T) {
	h := newHarness(t)
	h.cfg.Webhook.BotEmail = "jot@example.com"

	h.msgr.messages["m1"] = &webex.Message{ID: "m1", RoomID: "room", PersonType: "bot", Text: "hi"}
	h.msgr.messages["m2"] = &webex.Message{ID: "m2", RoomID: "room", PersonEmail: "jot@example.com", Text: "hi"}
	h.msgr.messages["m3"] = &webex.Message{ID: "m3", RoomID: "room", PersonEmail: "x@webex.bot", Text: "hi"}

	for _, id := range []string{"m1", "m2", "m3"} {
		rec := h.deliver(t, webhookBody(id), nil)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "ignored bot")
	}
	assert.Empty(t, h.records(t))
}

func TestWebhookIgnoresSystemMessages(t *testing.T) {
	h := newHarness(t)
	h.addMessage("m1", "[SB DIGEST] Today\n1) projects: Ship v2")

	rec := h.deliver(t, webhookBody("m1"), nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "ignored system message")
	assert.Empty(t, h.records(t))
}

// Duplicate deliveries are recorded in the processed set but still
// reprocessed; dedup is observational, not a gate.
func TestWebhookDuplicateDeliveryReprocessed(t *testing.T) {
	h := newHarness(t)
	h.addMessage("m1", "project: Ship v2 by Friday")

	h.deliver(t, webhookBody("m1"), nil)
	h.deliver(t, webhookBody("m1"), nil)

	assert.Len(t, h.records(t), 2)
	assert.Equal(t, 1, h.sessions.ProcessedCount())
}

func TestTriggerDailyDigest(t *testing.T) {
	h := newHarness(t)
	h.addMessage("m1", "project: Ship v2 by Friday")
	h.deliver(t, webhookBody("m1"), nil)

	req := httptest.NewRequest(http.MethodPost, "/trigger", strings.NewReader(`{"digest":"daily"}`))
	rec := httptest.NewRecorder()
	h.server.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, h.notifier.digests, 1)
	assert.Contains(t, h.notifier.digests[0], "[SB DIGEST] Daily Digest")
	assert.Contains(t, h.notifier.digests[0], "- projects: Ship v2 by Friday")
}

func TestTriggerAcceptsDetailEnvelope(t *testing.T) {
	h := newHarness(t)

	req := httptest.NewRequest(http.MethodPost, "/trigger", strings.NewReader(`{"detail":{"digest":"weekly"}}`))
	rec := httptest.NewRecorder()
	h.server.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, h.notifier.digests, 1)
	assert.Contains(t, h.notifier.digests[0], "[SB DIGEST] Weekly Review")
	assert.Contains(t, h.notifier.digests[0], "No items found.")
}

func TestTriggerRejectsUnknownType(t *testing.T) {
	h := newHarness(t)

	req := httptest.NewRequest(http.MethodPost, "/trigger", strings.NewReader(`{"digest":"monthly"}`))
	rec := httptest.NewRecorder()
	h.server.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTriggerRequiresDigestRoom(t *testing.T) {
	h := newHarness(t)
	h.cfg.Webhook.DigestRoomID = ""

	req := httptest.NewRequest(http.MethodPost, "/trigger", strings.NewReader(`{"digest":"daily"}`))
	rec := httptest.NewRecorder()
	h.server.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestDigestPreviewRendersHTML(t *testing.T) {
	h := newHarness(t)
	h.addMessage("m1", "project: Ship v2 by Friday")
	h.deliver(t, webhookBody("m1"), nil)

	req := httptest.NewRequest(http.MethodGet, "/digest/daily", nil)
	rec := httptest.NewRecorder()
	h.server.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, rec.Body.String(), "<h1>Daily Digest</h1>")
	assert.Contains(t, rec.Body.String(), "Ship v2 by Friday")
}

func TestHealthz(t *testing.T) {
	h := newHarness(t)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	h.server.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "ok")
}
