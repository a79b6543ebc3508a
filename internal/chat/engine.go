package chat

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/tmorrell/jot/internal/brain"
	"github.com/tmorrell/jot/internal/digest"
	"github.com/tmorrell/jot/internal/session"
	"github.com/tmorrell/jot/internal/webex"
)

const helpText = "[SB HELP]  \nCommands: next | today | week | help  \nUpdate: update <number>  \nPrefixes: person:, project:, idea:, admin:  \nFix replies: fix: person|project|idea|admin  \nCancel update: cancel"

// Messenger is the chat transport the engine replies through.
type Messenger interface {
	GetMessage(ctx context.Context, messageID string) (*webex.Message, error)
	PostMessage(ctx context.Context, roomID, text string) error
}

// Runner triggers a filing pass over the capture backlog.
type Runner interface {
	Run(ctx context.Context) ([]brain.Record, error)
}

// Engine turns inbound chat messages into captures, digests, and guided
// record updates. One engine serves all rooms; per-person conversational
// state lives in the session store.
type Engine struct {
	storage     brain.Storage
	queue       brain.Enqueuer
	sessions    *session.Store
	selector    *digest.Selector
	runner      Runner
	messenger   Messenger
	botName     string
	propertyMap map[string][]session.FieldOption
	autoRun     bool
	now         func() time.Time
}

// Options configures an Engine.
type Options struct {
	BotName string
	// PropertyMap overrides the field menu per category. When a category
	// is absent the menu falls back to the record's own field keys.
	PropertyMap map[string][]session.FieldOption
	// AutoRun runs the pipeline immediately after each capture.
	AutoRun bool
	Clock   func() time.Time
}

// NewEngine wires a conversation engine.
func NewEngine(storage brain.Storage, queue brain.Enqueuer, sessions *session.Store, selector *digest.Selector, runner Runner, messenger Messenger, opts Options) *Engine {
	now := opts.Clock
	if now == nil {
		now = time.Now
	}
	return &Engine{
		storage:     storage,
		queue:       queue,
		sessions:    sessions,
		selector:    selector,
		runner:      runner,
		messenger:   messenger,
		botName:     opts.BotName,
		propertyMap: opts.PropertyMap,
		autoRun:     opts.AutoRun,
		now:         now,
	}
}

// Outcome reports what a dispatched message did, so the ingress response
// can mirror it. Status is "ok" for conversational replies, "queued" for
// the default capture path, and "fixed" for fix replies; Processed counts
// the records filed when the pipeline ran.
type Outcome struct {
	Status    string
	Processed int
}

// HandleMessage dispatches one inbound message. Precedence: cancel, then
// the pending-update sub-states, then explicit update requests, then
// digest commands, then fix replies, then the default capture path.
func (e *Engine) HandleMessage(ctx context.Context, msg *webex.Message) (Outcome, error) {
	text := strings.TrimSpace(msg.Text)
	if text == "" {
		return Outcome{Status: "ok"}, nil
	}

	if isCancel(text, e.botName) {
		e.sessions.ClearPending(msg.RoomID, msg.PersonID)
		return Outcome{Status: "ok"}, e.reply(ctx, msg, "Update canceled.")
	}

	sess := e.sessions.Get(msg.RoomID, msg.PersonID)
	if sess != nil && sess.PendingUpdate != nil {
		if sess.PendingUpdate.AwaitingValue {
			return Outcome{Status: "ok"}, e.applyPendingValue(ctx, msg, sess, text)
		}
		return Outcome{Status: "ok"}, e.handleFieldSelection(ctx, msg, sess, text)
	}

	if n, ok := parseUpdateRequest(text, e.botName); ok {
		return Outcome{Status: "ok"}, e.startUpdate(ctx, msg, sess, n)
	}

	switch parseCommand(text, e.botName) {
	case "help":
		return Outcome{Status: "ok"}, e.reply(ctx, msg, helpText)
	case "today":
		return Outcome{Status: "ok"}, e.sendList(ctx, msg, 1, "[SB DIGEST] Today")
	case "week":
		return Outcome{Status: "ok"}, e.sendList(ctx, msg, 7, "[SB DIGEST] This Week")
	case "next":
		return Outcome{Status: "ok"}, e.sendList(ctx, msg, 14, "[SB DIGEST] Next Focus")
	}

	if category := parseFixCategory(text); category != "" {
		return e.handleFix(ctx, msg, category)
	}

	e.sessions.MarkProcessed(msg.ID)
	if err := e.queue.Enqueue(ctx, text, "webex", e.now()); err != nil {
		return Outcome{}, err
	}
	out := Outcome{Status: "queued"}
	if e.autoRun {
		records, err := e.runner.Run(ctx)
		if err != nil {
			return Outcome{}, err
		}
		out.Processed = len(records)
	}
	return out, nil
}

// applyPendingValue is the final step of a guided update: the whole
// message body becomes the new field value.
func (e *Engine) applyPendingValue(ctx context.Context, msg *webex.Message, sess *session.Session, text string) error {
	pending := sess.PendingUpdate
	record, err := e.storage.UpdateRecord(ctx, pending.Category, pending.RecordID, brain.Fields{pending.FieldKey: text})
	if err != nil {
		return err
	}
	sess.PendingUpdate = nil
	e.sessions.Put(msg.RoomID, msg.PersonID, sess)
	return e.reply(ctx, msg, fmt.Sprintf("Updated %s — %s set to '%s'.", record.Title, pending.FieldName, text))
}

func (e *Engine) handleFieldSelection(ctx context.Context, msg *webex.Message, sess *session.Session, text string) error {
	pending := sess.PendingUpdate
	selection, value, ok := parseFieldSelection(text, e.botName)
	if !ok {
		return e.reply(ctx, msg, "Reply with a field number (e.g., `2`) or `2 New Value`.")
	}
	if selection < 1 || selection > len(pending.Fields) {
		return e.reply(ctx, msg, "That number is out of range. Try again.")
	}
	field := pending.Fields[selection-1]
	if value == "" {
		pending.FieldKey = field.Key
		pending.FieldName = field.Name
		pending.AwaitingValue = true
		e.sessions.Put(msg.RoomID, msg.PersonID, sess)
		return e.reply(ctx, msg, fmt.Sprintf("Send the new value for %s.", field.Name))
	}
	record, err := e.storage.UpdateRecord(ctx, pending.Category, pending.RecordID, brain.Fields{field.Key: value})
	if err != nil {
		return err
	}
	sess.PendingUpdate = nil
	e.sessions.Put(msg.RoomID, msg.PersonID, sess)
	return e.reply(ctx, msg, fmt.Sprintf("Updated %s — %s set to '%s'.", record.Title, field.Name, value))
}

// startUpdate turns "update N" into a field menu for the Nth item of the
// person's last digest list.
func (e *Engine) startUpdate(ctx context.Context, msg *webex.Message, sess *session.Session, n int) error {
	if sess == nil || len(sess.LastList) == 0 {
		return e.reply(ctx, msg, "No recent list found. Send `next`, `today`, or `week` first.")
	}
	if n < 1 || n > len(sess.LastList) {
		return e.reply(ctx, msg, "That number is out of range. Try again.")
	}
	selected := sess.LastList[n-1]
	options := e.fieldOptions(selected)

	lines := []string{fmt.Sprintf("Choose a field to update for %s:", selected.Title)}
	for i, option := range options {
		current := selected.Fields.Get(option.Name, option.Key)
		if current != "" {
			lines = append(lines, fmt.Sprintf("%d) %s: %s", i+1, option.Name, current))
		} else {
			lines = append(lines, fmt.Sprintf("%d) %s", i+1, option.Name))
		}
	}

	e.sessions.Put(msg.RoomID, msg.PersonID, &session.Session{
		LastList: sess.LastList,
		PendingUpdate: &session.PendingUpdate{
			RecordID: selected.RecordID,
			Category: selected.Category,
			Fields:   options,
		},
	})
	return e.reply(ctx, msg, strings.Join(lines, "\n"))
}

// fieldOptions builds the numbered menu for a record: the configured
// property map for its category when present, else the record's own field
// keys in stable order.
func (e *Engine) fieldOptions(item digest.Item) []session.FieldOption {
	if options, ok := e.propertyMap[item.Category]; ok && len(options) > 0 {
		return options
	}
	keys := make([]string, 0, len(item.Fields))
	for key := range item.Fields {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	options := make([]session.FieldOption, 0, len(keys))
	for _, key := range keys {
		options = append(options, session.FieldOption{Key: key, Name: key})
	}
	return options
}

func (e *Engine) sendList(ctx context.Context, msg *webex.Message, days int, title string) error {
	message, items, err := e.selector.List(ctx, days, title)
	if err != nil {
		return err
	}
	if err := e.reply(ctx, msg, message); err != nil {
		return err
	}
	e.sessions.Put(msg.RoomID, msg.PersonID, &session.Session{LastList: items})
	return nil
}

// handleFix re-queues the replied-to message with a forced category
// prefix. Fix replies without a usable parent are ignored.
func (e *Engine) handleFix(ctx context.Context, msg *webex.Message, category string) (Outcome, error) {
	if msg.ParentID == "" {
		return Outcome{Status: "ok"}, nil
	}
	parent, err := e.messenger.GetMessage(ctx, msg.ParentID)
	if err != nil {
		return Outcome{}, err
	}
	original := strings.TrimSpace(parent.Text)
	if original == "" {
		return Outcome{Status: "ok"}, nil
	}
	if err := e.queue.Enqueue(ctx, fmt.Sprintf("%s: %s", category, original), "webex", e.now()); err != nil {
		return Outcome{}, err
	}
	out := Outcome{Status: "fixed"}
	if e.autoRun {
		records, err := e.runner.Run(ctx)
		if err != nil {
			return Outcome{}, err
		}
		out.Processed = len(records)
	}
	return out, nil
}

func (e *Engine) reply(ctx context.Context, msg *webex.Message, text string) error {
	return e.messenger.PostMessage(ctx, msg.RoomID, text)
}
