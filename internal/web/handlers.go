package web

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"

	"github.com/yuin/goldmark"

	"github.com/tmorrell/jot/internal/brain"
	"github.com/tmorrell/jot/internal/chat"
	"github.com/tmorrell/jot/internal/config"
	"github.com/tmorrell/jot/internal/digest"
	"github.com/tmorrell/jot/internal/errors"
)

// maxBodyBytes caps webhook request bodies.
const maxBodyBytes = 1 << 20

// signatureHeader carries the HMAC-SHA1 of the raw delivery body.
const signatureHeader = "X-Spark-Signature"

// webhookPayload is the delivery envelope.
type webhookPayload struct {
	Resource string `json:"resource"`
	Event    string `json:"event"`
	Data     struct {
		ID string `json:"id"`
	} `json:"data"`
}

// triggerPayload is the scheduled digest trigger, accepted flat or
// wrapped in an EventBridge-style detail object.
type triggerPayload struct {
	Digest string `json:"digest"`
	Detail struct {
		Digest string `json:"digest"`
	} `json:"detail"`
}

// systemPrefixes mark the bot's own output. Deliveries starting with one
// are dropped so digests and confirmations never re-enter the pipeline.
var systemPrefixes = []string{"[SB DIGEST]", "Filed as", "Needs review", "Daily Digest", "Weekly Review"}

// Handlers serves the webhook ingress endpoints.
type Handlers struct {
	cfg      *config.Config
	engine   *chat.Engine
	client   chat.Messenger
	selector *digest.Selector
	notifier brain.Notifier
	ai       brain.AI
}

// NewHandlers wires the ingress handlers.
func NewHandlers(cfg *config.Config, engine *chat.Engine, client chat.Messenger, selector *digest.Selector, notifier brain.Notifier, ai brain.AI) *Handlers {
	return &Handlers{
		cfg:      cfg,
		engine:   engine,
		client:   client,
		selector: selector,
		notifier: notifier,
		ai:       ai,
	}
}

// HandleHealth reports liveness.
func (h *Handlers) HandleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// HandleWebhook processes one message-created delivery. Deliveries the
// ingress chooses not to act on (wrong event, bot echo, system message)
// still return 200 so the sender does not retry them.
func (h *Handlers) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, errors.NewInvalidRequest("read body: "+err.Error()))
		return
	}
	body := decodeBody(raw)

	if secret := h.cfg.Webhook.Secret; secret != "" {
		if !verifySignature(secret, body, r.Header.Get(signatureHeader)) {
			log.Println("Invalid webhook signature")
			writeError(w, errors.NewUnauthorized("invalid signature"))
			return
		}
	}

	var payload webhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		writeError(w, errors.NewInvalidRequest("parse payload: "+err.Error()))
		return
	}
	if payload.Resource != "messages" || payload.Event != "created" {
		log.Printf("Ignoring event: resource=%s event=%s", payload.Resource, payload.Event)
		writeJSON(w, http.StatusOK, map[string]string{"status": "ignored"})
		return
	}
	if payload.Data.ID == "" {
		writeJSON(w, http.StatusOK, map[string]string{"status": "missing message id"})
		return
	}

	message, err := h.client.GetMessage(r.Context(), payload.Data.ID)
	if err != nil {
		writeError(w, err)
		return
	}
	if h.isBotMessage(message.PersonType, message.PersonEmail, message.PersonID) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ignored bot"})
		return
	}
	if message.RoomID == "" {
		writeJSON(w, http.StatusOK, map[string]string{"status": "missing room id"})
		return
	}
	text := strings.TrimSpace(message.Text)
	if text == "" {
		writeJSON(w, http.StatusOK, map[string]string{"status": "empty message"})
		return
	}
	for _, prefix := range systemPrefixes {
		if strings.HasPrefix(text, prefix) {
			writeJSON(w, http.StatusOK, map[string]string{"status": "ignored system message"})
			return
		}
	}

	outcome, err := h.engine.HandleMessage(r.Context(), message)
	if err != nil {
		writeError(w, err)
		return
	}
	if outcome.Status == "queued" || outcome.Status == "fixed" {
		writeJSON(w, http.StatusOK, map[string]any{"status": outcome.Status, "processed": outcome.Processed})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// HandleTrigger delivers a scheduled digest to the configured room.
func (h *Handlers) HandleTrigger(w http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, errors.NewInvalidRequest("read body: "+err.Error()))
		return
	}
	var payload triggerPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		writeError(w, errors.NewInvalidRequest("parse payload: "+err.Error()))
		return
	}
	digestType := payload.Digest
	if digestType == "" {
		digestType = payload.Detail.Digest
	}
	if digestType != "daily" && digestType != "weekly" {
		writeError(w, errors.NewInvalidRequest("unknown digest type: "+digestType))
		return
	}
	if h.cfg.Webhook.DigestRoomID == "" {
		writeError(w, errors.NewConfig("digest_room_id is not configured"))
		return
	}

	days, title, period := 1, "[SB DIGEST] Daily Digest", brain.DigestDaily
	if digestType == "weekly" {
		days, title, period = 7, "[SB DIGEST] Weekly Review", brain.DigestWeekly
	}

	var message string
	if h.cfg.ExtractiveDigestsEnabled() {
		body, err := h.digestBody(r, days)
		if err != nil {
			writeError(w, err)
			return
		}
		message = title + "\n" + body
	} else {
		records, err := h.selector.Select(r.Context(), days)
		if err != nil {
			writeError(w, err)
			return
		}
		summary, err := h.ai.Summarize(r.Context(), records, period)
		if err != nil {
			writeError(w, err)
			return
		}
		message = title + "\n" + summary.Body
	}

	if err := h.notifier.NotifyDigest(r.Context(), message); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": digestType + " digest sent"})
}

// HandleDigestPreview renders a digest as HTML for a quick look in the
// browser.
func (h *Handlers) HandleDigestPreview(w http.ResponseWriter, r *http.Request) {
	var days int
	var title string
	switch r.PathValue("period") {
	case "daily":
		days, title = 1, "Daily Digest"
	case "weekly":
		days, title = 7, "Weekly Review"
	default:
		writeError(w, errors.NewNotFound("digest", r.PathValue("period")))
		return
	}

	body, err := h.digestBody(r, days)
	if err != nil {
		writeError(w, err)
		return
	}
	md := "# " + title + "\n\n" + body

	var buf bytes.Buffer
	if err := goldmark.Convert([]byte(md), &buf); err != nil {
		writeError(w, errors.NewInternal(err))
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	buf.WriteTo(w)
}

// digestBody renders the extractive digest list as markdown bullets.
func (h *Handlers) digestBody(r *http.Request, days int) (string, error) {
	records, err := h.selector.Select(r.Context(), days)
	if err != nil {
		return "", err
	}
	lines := make([]string, 0, len(records))
	for _, record := range records {
		line := fmt.Sprintf("- %s: %s", record.Category, record.Title)
		if extra := digest.RecordContext(record); extra != "" {
			line += " — " + extra
		}
		lines = append(lines, line)
	}
	if len(lines) == 0 {
		return "No items found.", nil
	}
	return strings.Join(lines, "\n"), nil
}

// isBotMessage filters the bot's own traffic so replies never loop.
func (h *Handlers) isBotMessage(personType, personEmail, personID string) bool {
	if personType == "bot" {
		return true
	}
	if h.cfg.Webhook.BotEmail != "" && personEmail == h.cfg.Webhook.BotEmail {
		return true
	}
	if h.cfg.Webhook.BotID != "" && personID == h.cfg.Webhook.BotID {
		return true
	}
	return strings.HasSuffix(personEmail, "@webex.bot")
}

// decodeBody accepts both raw JSON deliveries and base64-wrapped ones.
func decodeBody(raw []byte) []byte {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] == '{' {
		return raw
	}
	decoded, err := base64.StdEncoding.DecodeString(string(trimmed))
	if err != nil {
		return raw
	}
	return decoded
}

// verifySignature checks the HMAC-SHA1 hex digest of the body in constant
// time.
func verifySignature(secret string, body []byte, signature string) bool {
	if signature == "" {
		return false
	}
	mac := hmac.New(sha1.New, []byte(secret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

// writeError maps structured errors to their HTTP status and a JSON body.
func writeError(w http.ResponseWriter, err error) {
	var jErr *errors.JotError
	if e, ok := err.(*errors.JotError); ok {
		jErr = e
	} else {
		jErr = errors.NewInternal(err)
	}
	writeJSON(w, jErr.Status, map[string]any{
		"error":   jErr.Code,
		"message": jErr.Message,
	})
}
