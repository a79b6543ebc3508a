package config

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"

	jerrors "github.com/tmorrell/jot/internal/errors"
	"github.com/tmorrell/jot/internal/session"
)

// EnvConfigPath overrides where Load looks for config.json.
const EnvConfigPath = "JOT_CONFIG_PATH"

// Adapter selects one pluggable implementation by kind with its settings.
// Settings values starting with "$" are resolved from the environment at
// load time.
type Adapter struct {
	Kind     string            `json:"kind"`
	Settings map[string]string `json:"settings,omitempty"`
}

// Webhook holds the chat ingress settings.
type Webhook struct {
	// Secret verifies X-Spark-Signature on inbound deliveries. Empty
	// disables verification.
	Secret string `json:"secret,omitempty"`

	// Token authenticates calls to the Webex API.
	Token string `json:"token,omitempty"`

	BotName  string `json:"bot_name,omitempty"`
	BotEmail string `json:"bot_email,omitempty"`
	BotID    string `json:"bot_id,omitempty"`

	// DigestRoomID receives scheduled digests.
	DigestRoomID string `json:"digest_room_id,omitempty"`

	Listen string `json:"listen,omitempty"`
}

// Config holds application configuration.
type Config struct {
	// DataDir is where the database and JSON tables live.
	DataDir string `json:"data_dir"`

	// ConfidenceThreshold gates filing: classifications below it are
	// logged for review instead of stored.
	ConfidenceThreshold float64 `json:"confidence_threshold"`

	// SessionTTLMinutes is how long an idle conversation survives.
	SessionTTLMinutes int `json:"session_ttl_minutes,omitempty"`

	// ListLimit caps digest and list output.
	ListLimit int `json:"list_limit,omitempty"`

	// ProcessedCap bounds the processed-message-id set.
	ProcessedCap int `json:"processed_cap,omitempty"`

	// AutoRun runs the filing pipeline immediately after each chat
	// capture.
	AutoRun *bool `json:"auto_run,omitempty"`

	// ExtractiveDigests renders scheduled digests from stored fields
	// instead of asking the AI adapter to summarize.
	ExtractiveDigests *bool `json:"extractive_digests,omitempty"`

	// DisabledTools is a list of MCP tool names to exclude from
	// registration. Unknown names are reported as warnings at startup.
	DisabledTools []string `json:"disabled_tools,omitempty"`

	Capture  Adapter `json:"capture"`
	AI       Adapter `json:"ai"`
	Storage  Adapter `json:"storage"`
	Notifier Adapter `json:"notifier"`

	Webhook Webhook `json:"webhook,omitempty"`

	// PropertyMap overrides the field-update menu per category; entries
	// are shown in order. Categories without an entry fall back to the
	// record's own field keys.
	PropertyMap map[string][]session.FieldOption `json:"property_map,omitempty"`
}

// DefaultConfig returns the default configuration: local SQLite storage,
// rule-based classification, console notifications.
func DefaultConfig() *Config {
	return &Config{
		DataDir:             "data",
		ConfidenceThreshold: 0.6,
		SessionTTLMinutes:   30,
		ListLimit:           20,
		ProcessedCap:        1000,
		Capture:             Adapter{Kind: "queue"},
		AI:                  Adapter{Kind: "rules"},
		Storage:             Adapter{Kind: "sqlite"},
		Notifier:            Adapter{Kind: "console"},
		Webhook:             Webhook{Listen: ":8080"},
	}
}

// Load reads configuration from path. An empty path falls back to
// $JOT_CONFIG_PATH, then ./config.json; a missing default file yields
// DefaultConfig rather than an error.
func Load(path string) (*Config, error) {
	explicit := path != ""
	if path == "" {
		path = os.Getenv(EnvConfigPath)
		explicit = path != ""
	}
	if path == "" {
		path = "config.json"
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) && !explicit {
			return DefaultConfig(), nil
		}
		return nil, jerrors.NewConfig("read config: " + err.Error())
	}

	cfg := DefaultConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, jerrors.NewConfig("parse " + filepath.Base(path) + ": " + err.Error())
	}
	resolveEnv(cfg)
	return cfg, nil
}

// resolveEnv replaces "$NAME" settings values with the environment value.
// Unset variables leave the literal untouched so misconfiguration shows up
// in error messages instead of as empty strings.
func resolveEnv(cfg *Config) {
	for _, settings := range []map[string]string{
		cfg.Capture.Settings,
		cfg.AI.Settings,
		cfg.Storage.Settings,
		cfg.Notifier.Settings,
	} {
		for key, value := range settings {
			settings[key] = resolveEnvValue(value)
		}
	}
	cfg.Webhook.Secret = resolveEnvValue(cfg.Webhook.Secret)
	cfg.Webhook.Token = resolveEnvValue(cfg.Webhook.Token)
	cfg.Webhook.DigestRoomID = resolveEnvValue(cfg.Webhook.DigestRoomID)
}

func resolveEnvValue(value string) string {
	if !strings.HasPrefix(value, "$") {
		return value
	}
	if resolved, ok := os.LookupEnv(value[1:]); ok {
		return resolved
	}
	return value
}

// AutoRunEnabled reports whether chat captures trigger an immediate
// pipeline run. Defaults to true.
func (c *Config) AutoRunEnabled() bool {
	return c.AutoRun == nil || *c.AutoRun
}

// ExtractiveDigestsEnabled reports whether scheduled digests are rendered
// from stored fields. Defaults to true.
func (c *Config) ExtractiveDigestsEnabled() bool {
	return c.ExtractiveDigests == nil || *c.ExtractiveDigests
}
