package registry

import (
	"io"
	"testing"

	"github.com/tmorrell/jot/internal/config"
	"github.com/tmorrell/jot/internal/errors"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.DataDir = t.TempDir()
	return cfg
}

func TestDefaultKinds(t *testing.T) {
	b := New(testConfig(t), io.Discard)
	defer b.Close()

	if _, err := b.Capture(); err != nil {
		t.Fatalf("capture: %v", err)
	}
	if _, err := b.Enqueuer(); err != nil {
		t.Fatalf("enqueuer: %v", err)
	}
	if _, err := b.AI(); err != nil {
		t.Fatalf("ai: %v", err)
	}
	if _, err := b.Storage(); err != nil {
		t.Fatalf("storage: %v", err)
	}
	if _, err := b.Notifier(); err != nil {
		t.Fatalf("notifier: %v", err)
	}
}

func TestAdaptersMemoized(t *testing.T) {
	b := New(testConfig(t), io.Discard)
	defer b.Close()

	first, err := b.Storage()
	if err != nil {
		t.Fatal(err)
	}
	second, err := b.Storage()
	if err != nil {
		t.Fatal(err)
	}
	if first != second {
		t.Error("storage adapter rebuilt instead of memoized")
	}
}

func TestUnknownKindsFailFast(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*config.Config)
		build  func(*Builder) error
	}{
		{"capture", func(c *config.Config) { c.Capture.Kind = "carrier-pigeon" }, func(b *Builder) error { _, err := b.Capture(); return err }},
		{"ai", func(c *config.Config) { c.AI.Kind = "oracle" }, func(b *Builder) error { _, err := b.AI(); return err }},
		{"storage", func(c *config.Config) { c.Storage.Kind = "stone-tablet" }, func(b *Builder) error { _, err := b.Storage(); return err }},
		{"notifier", func(c *config.Config) { c.Notifier.Kind = "smoke-signal" }, func(b *Builder) error { _, err := b.Notifier(); return err }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := testConfig(t)
			tc.mutate(cfg)
			b := New(cfg, io.Discard)
			defer b.Close()
			if err := tc.build(b); !errors.Is(err, errors.ErrConfig) {
				t.Fatalf("expected CONFIG error, got %v", err)
			}
		})
	}
}

func TestMemoryCaptureSupportsEnqueue(t *testing.T) {
	cfg := testConfig(t)
	cfg.Capture.Kind = "memory"
	b := New(cfg, io.Discard)
	defer b.Close()

	if _, err := b.Enqueuer(); err != nil {
		t.Fatalf("memory capture should enqueue: %v", err)
	}
}

func TestOpenAIRequiresKey(t *testing.T) {
	cfg := testConfig(t)
	cfg.AI.Kind = "openai"
	b := New(cfg, io.Discard)
	defer b.Close()

	if _, err := b.AI(); !errors.Is(err, errors.ErrConfig) {
		t.Fatalf("expected CONFIG error for missing api key, got %v", err)
	}
}

func TestWebexNotifierRequiresRoom(t *testing.T) {
	cfg := testConfig(t)
	cfg.Notifier.Kind = "webex"
	cfg.Notifier.Settings = map[string]string{"token": "tok"}
	b := New(cfg, io.Discard)
	defer b.Close()

	if _, err := b.Notifier(); !errors.Is(err, errors.ErrConfig) {
		t.Fatalf("expected CONFIG error for missing room, got %v", err)
	}
}
