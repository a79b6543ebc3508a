// Package registry builds the pluggable adapters (capture, ai, storage,
// notifier) from configuration. Unknown kinds fail fast with a CONFIG
// error so a typo surfaces at startup, not mid-pipeline.
package registry

import (
	"database/sql"
	"io"
	"os"

	"github.com/tmorrell/jot/internal/ai"
	"github.com/tmorrell/jot/internal/brain"
	"github.com/tmorrell/jot/internal/capture"
	"github.com/tmorrell/jot/internal/config"
	"github.com/tmorrell/jot/internal/db"
	"github.com/tmorrell/jot/internal/errors"
	"github.com/tmorrell/jot/internal/notify"
	"github.com/tmorrell/jot/internal/storage"
	"github.com/tmorrell/jot/internal/webex"
)

// Builder constructs adapters on demand and memoizes them, so the queue
// and storage share one database handle within a process.
type Builder struct {
	cfg *config.Config
	out io.Writer

	database *sql.DB
	capture  brain.Capture
	ai       brain.AI
	storage  brain.Storage
	notifier brain.Notifier
}

// New creates a builder for the given configuration. Console
// notifications write to out; nil means stdout.
func New(cfg *config.Config, out io.Writer) *Builder {
	if out == nil {
		out = os.Stdout
	}
	return &Builder{cfg: cfg, out: out}
}

// Database opens (once) the SQLite database under the data directory.
func (b *Builder) Database() (*sql.DB, error) {
	if b.database != nil {
		return b.database, nil
	}
	database, err := db.Init(b.cfg.DataDir)
	if err != nil {
		return nil, err
	}
	b.database = database
	return database, nil
}

// Capture returns the configured capture adapter. Kinds: queue, memory.
func (b *Builder) Capture() (brain.Capture, error) {
	if b.capture != nil {
		return b.capture, nil
	}
	switch b.cfg.Capture.Kind {
	case "queue", "":
		database, err := b.Database()
		if err != nil {
			return nil, err
		}
		b.capture = capture.NewQueue(database)
	case "memory":
		b.capture = capture.NewMemory()
	default:
		return nil, errors.NewConfig("unknown capture kind: " + b.cfg.Capture.Kind)
	}
	return b.capture, nil
}

// Enqueuer returns the producer side of the capture adapter.
func (b *Builder) Enqueuer() (brain.Enqueuer, error) {
	c, err := b.Capture()
	if err != nil {
		return nil, err
	}
	enqueuer, ok := c.(brain.Enqueuer)
	if !ok {
		return nil, errors.NewConfig("capture adapter does not support enqueue")
	}
	return enqueuer, nil
}

// AI returns the configured classifier. Kinds: rules, openai.
func (b *Builder) AI() (brain.AI, error) {
	if b.ai != nil {
		return b.ai, nil
	}
	settings := b.cfg.AI.Settings
	switch b.cfg.AI.Kind {
	case "rules", "":
		b.ai = ai.NewRules()
	case "openai":
		var opts []ai.OpenAIOption
		if model := settings["model"]; model != "" {
			opts = append(opts, ai.WithModel(model))
		}
		provider, err := ai.NewOpenAI(settings["api_key"], opts...)
		if err != nil {
			return nil, err
		}
		b.ai = provider
	default:
		return nil, errors.NewConfig("unknown ai kind: " + b.cfg.AI.Kind)
	}
	return b.ai, nil
}

// Storage returns the configured storage adapter. Kinds: sqlite, json.
func (b *Builder) Storage() (brain.Storage, error) {
	if b.storage != nil {
		return b.storage, nil
	}
	switch b.cfg.Storage.Kind {
	case "sqlite", "":
		database, err := b.Database()
		if err != nil {
			return nil, err
		}
		b.storage = storage.NewSQLite(database)
	case "json":
		dir := b.cfg.Storage.Settings["dir"]
		if dir == "" {
			dir = b.cfg.DataDir
		}
		b.storage = storage.NewJSON(dir)
	default:
		return nil, errors.NewConfig("unknown storage kind: " + b.cfg.Storage.Kind)
	}
	return b.storage, nil
}

// Notifier returns the configured notifier. Kinds: console, webex.
func (b *Builder) Notifier() (brain.Notifier, error) {
	if b.notifier != nil {
		return b.notifier, nil
	}
	settings := b.cfg.Notifier.Settings
	switch b.cfg.Notifier.Kind {
	case "console", "":
		b.notifier = notify.NewConsole(b.out)
	case "webex":
		token := settings["token"]
		if token == "" {
			token = b.cfg.Webhook.Token
		}
		roomID := settings["room_id"]
		if roomID == "" {
			roomID = b.cfg.Webhook.DigestRoomID
		}
		notifier, err := notify.NewWebex(webex.NewClient(token), roomID)
		if err != nil {
			return nil, err
		}
		b.notifier = notifier
	default:
		return nil, errors.NewConfig("unknown notifier kind: " + b.cfg.Notifier.Kind)
	}
	return b.notifier, nil
}

// Close releases the database handle if one was opened.
func (b *Builder) Close() error {
	if b.database == nil {
		return nil
	}
	return b.database.Close()
}
