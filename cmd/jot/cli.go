package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/tmorrell/jot/internal/brain"
	"github.com/tmorrell/jot/internal/chat"
	"github.com/tmorrell/jot/internal/config"
	"github.com/tmorrell/jot/internal/digest"
	"github.com/tmorrell/jot/internal/errors"
	"github.com/tmorrell/jot/internal/mcp"
	"github.com/tmorrell/jot/internal/pipeline"
	"github.com/tmorrell/jot/internal/registry"
	"github.com/tmorrell/jot/internal/session"
	"github.com/tmorrell/jot/internal/web"
	"github.com/tmorrell/jot/internal/webex"
)

// newCLIApp creates the CLI application with all commands.
func newCLIApp(out io.Writer) *cli.App {
	app := &cli.App{
		Name:    "jot",
		Usage:   "Second-brain capture and filing pipeline",
		Version: Version,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Usage: "Path to config.json"},
		},
		Commands: []*cli.Command{
			captureCmd(out),
			runCmd(out),
			dailyCmd(out),
			weeklyCmd(out),
			listCmd(out),
			updateCmd(out),
			serveCmd(out),
			mcpCmd(out),
		},
	}
	// Disable default exit error handler to allow proper error return in tests
	app.ExitErrHandler = func(_ *cli.Context, _ error) {}
	return app
}

// builder loads config and creates the adapter builder for a command.
func builder(c *cli.Context, out io.Writer) (*config.Config, *registry.Builder, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, nil, outputError(err)
	}
	return cfg, registry.New(cfg, out), nil
}

// buildPipeline assembles the filing pipeline from the configured adapters.
func buildPipeline(cfg *config.Config, b *registry.Builder) (*pipeline.Pipeline, error) {
	capt, err := b.Capture()
	if err != nil {
		return nil, err
	}
	provider, err := b.AI()
	if err != nil {
		return nil, err
	}
	store, err := b.Storage()
	if err != nil {
		return nil, err
	}
	notifier, err := b.Notifier()
	if err != nil {
		return nil, err
	}
	gate := pipeline.NewGate(store, cfg.ConfidenceThreshold)
	return pipeline.New(capt, provider, gate, notifier), nil
}

// captureCmd creates the capture command.
func captureCmd(out io.Writer) *cli.Command {
	return &cli.Command{
		Name:      "capture",
		Usage:     "Capture a thought into the queue",
		ArgsUsage: "<text>",
		Action: func(c *cli.Context) error {
			text := strings.TrimSpace(strings.Join(c.Args().Slice(), " "))
			if text == "" {
				return outputError(errors.NewInvalidRequest("text is required"))
			}
			_, b, err := builder(c, out)
			if err != nil {
				return err
			}
			defer b.Close()

			enqueuer, err := b.Enqueuer()
			if err != nil {
				return outputError(err)
			}
			if err := enqueuer.Enqueue(c.Context, text, "cli", time.Now().UTC()); err != nil {
				return outputError(err)
			}
			fmt.Fprintln(out, "Captured.")
			return nil
		},
	}
}

// runCmd creates the run command.
func runCmd(out io.Writer) *cli.Command {
	return &cli.Command{
		Name:  "run",
		Usage: "Process queued items",
		Action: func(c *cli.Context) error {
			cfg, b, err := builder(c, out)
			if err != nil {
				return err
			}
			defer b.Close()

			pipe, err := buildPipeline(cfg, b)
			if err != nil {
				return outputError(err)
			}
			stored, err := pipe.Run(c.Context)
			if err != nil {
				return outputError(err)
			}
			fmt.Fprintf(out, "Processed %d items.\n", len(stored))
			return nil
		},
	}
}

// dailyCmd creates the daily digest command.
func dailyCmd(out io.Writer) *cli.Command {
	return digestCmd(out, "daily", "Send daily digest", 1, "Daily Digest", brain.DigestDaily)
}

// weeklyCmd creates the weekly review command.
func weeklyCmd(out io.Writer) *cli.Command {
	return digestCmd(out, "weekly", "Send weekly review", 7, "Weekly Review", brain.DigestWeekly)
}

func digestCmd(out io.Writer, name, usage string, days int, title string, period brain.DigestPeriod) *cli.Command {
	return &cli.Command{
		Name:  name,
		Usage: usage,
		Action: func(c *cli.Context) error {
			_, b, err := builder(c, out)
			if err != nil {
				return err
			}
			defer b.Close()

			provider, err := b.AI()
			if err != nil {
				return outputError(err)
			}
			store, err := b.Storage()
			if err != nil {
				return outputError(err)
			}
			notifier, err := b.Notifier()
			if err != nil {
				return outputError(err)
			}
			if err := pipeline.BuildDigest(c.Context, provider, store, notifier, days, title, period); err != nil {
				return outputError(err)
			}
			return nil
		},
	}
}

// listCmd creates the list command.
func listCmd(out io.Writer) *cli.Command {
	return &cli.Command{
		Name:  "list",
		Usage: "List stored records, newest first",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "category", Usage: "Restrict to one category"},
			&cli.IntFlag{Name: "days", Usage: "Only records filed in the last N days (0 = no cutoff)"},
		},
		Action: func(c *cli.Context) error {
			_, b, err := builder(c, out)
			if err != nil {
				return err
			}
			defer b.Close()

			store, err := b.Storage()
			if err != nil {
				return outputError(err)
			}
			categories := brain.Categories
			if category := c.String("category"); category != "" {
				if !brain.ValidCategory(category) {
					return outputError(errors.NewInvalidRequest("unknown category: " + category))
				}
				categories = []string{category}
			}
			records, err := store.ListRecords(c.Context, categories, c.Int("days"))
			if err != nil {
				return outputError(err)
			}
			return outputJSON(out, records)
		},
	}
}

// updateCmd creates the update command.
func updateCmd(out io.Writer) *cli.Command {
	return &cli.Command{
		Name:      "update",
		Usage:     "Update a record in storage",
		ArgsUsage: "<category>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "id", Usage: "Record id"},
			&cli.StringFlag{Name: "name", Aliases: []string{"n"}, Usage: "Record title to match"},
			&cli.StringSliceFlag{Name: "set", Usage: "Field update as key=value (repeatable)"},
			&cli.StringFlag{Name: "json", Usage: "JSON object of field updates"},
		},
		Action: func(c *cli.Context) error {
			category := c.Args().First()
			if !brain.ValidCategory(category) {
				return outputError(errors.NewInvalidRequest("unknown category: " + category))
			}
			recordID := c.String("id")
			name := c.String("name")
			if (recordID == "") == (name == "") {
				return outputError(errors.NewInvalidRequest("provide exactly one of --id or --name"))
			}
			fields, err := parseUpdateFields(c.StringSlice("set"), c.String("json"))
			if err != nil {
				return outputError(err)
			}
			if len(fields) == 0 {
				return outputError(errors.NewInvalidRequest("provide updates via --set or --json"))
			}

			_, b, err := builder(c, out)
			if err != nil {
				return err
			}
			defer b.Close()

			store, err := b.Storage()
			if err != nil {
				return outputError(err)
			}
			if recordID == "" {
				recordID, err = store.FindRecordByTitle(c.Context, category, name)
				if err != nil {
					return outputError(err)
				}
			}
			record, err := store.UpdateRecord(c.Context, category, recordID, fields)
			if err != nil {
				return outputError(err)
			}
			fmt.Fprintf(out, "Updated %s %s (%s).\n", category, record.ID, record.Title)
			return nil
		},
	}
}

// serveCmd creates the serve command.
func serveCmd(out io.Writer) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the webhook ingress",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "listen", Usage: "Listen address (overrides config)"},
		},
		Action: func(c *cli.Context) error {
			cfg, b, err := builder(c, out)
			if err != nil {
				return err
			}
			defer b.Close()

			handlers, err := buildWebHandlers(cfg, b)
			if err != nil {
				return outputError(err)
			}
			addr := cfg.Webhook.Listen
			if listen := c.String("listen"); listen != "" {
				addr = listen
			}
			return web.Run(web.NewServer(handlers, addr))
		},
	}
}

// buildWebHandlers wires the full conversational stack for serve.
func buildWebHandlers(cfg *config.Config, b *registry.Builder) (*web.Handlers, error) {
	store, err := b.Storage()
	if err != nil {
		return nil, err
	}
	enqueuer, err := b.Enqueuer()
	if err != nil {
		return nil, err
	}
	provider, err := b.AI()
	if err != nil {
		return nil, err
	}
	notifier, err := b.Notifier()
	if err != nil {
		return nil, err
	}
	pipe, err := buildPipeline(cfg, b)
	if err != nil {
		return nil, err
	}

	client := webex.NewClient(cfg.Webhook.Token)
	sessions := session.NewStore(
		session.WithTTL(time.Duration(cfg.SessionTTLMinutes)*time.Minute),
		session.WithProcessedCap(cfg.ProcessedCap),
	)
	selector := digest.NewSelector(store, cfg.ListLimit)
	engine := chat.NewEngine(store, enqueuer, sessions, selector, pipe, client, chat.Options{
		BotName:     cfg.Webhook.BotName,
		PropertyMap: cfg.PropertyMap,
		AutoRun:     cfg.AutoRunEnabled(),
	})
	return web.NewHandlers(cfg, engine, client, selector, notifier, provider), nil
}

// mcpCmd creates the MCP server command.
func mcpCmd(out io.Writer) *cli.Command {
	return &cli.Command{
		Name:  "mcp",
		Usage: "Run the MCP server on stdio",
		Action: func(c *cli.Context) error {
			cfg, b, err := builder(c, out)
			if err != nil {
				return err
			}
			defer b.Close()

			enqueuer, err := b.Enqueuer()
			if err != nil {
				return outputError(err)
			}
			store, err := b.Storage()
			if err != nil {
				return outputError(err)
			}
			pipe, err := buildPipeline(cfg, b)
			if err != nil {
				return outputError(err)
			}
			for _, name := range mcp.ValidateDisabledTools(cfg.DisabledTools) {
				fmt.Fprintf(os.Stderr, "warning: unknown disabled tool %q\n", name)
			}
			handlers := mcp.NewHandlers(enqueuer, pipe, store, digest.NewSelector(store, cfg.ListLimit))
			return mcp.Run(handlers, Version, cfg.DisabledTools)
		},
	}
}

// parseUpdateFields merges --json payload and --set pairs, with --set
// taking precedence.
func parseUpdateFields(setPairs []string, jsonPayload string) (brain.Fields, error) {
	fields := brain.Fields{}
	if jsonPayload != "" {
		var payload map[string]string
		if err := json.Unmarshal([]byte(jsonPayload), &payload); err != nil {
			return nil, errors.NewInvalidRequest("invalid JSON for --json: " + err.Error())
		}
		for key, value := range payload {
			fields[key] = value
		}
	}
	for _, pair := range setPairs {
		key, value, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, errors.NewInvalidRequest(fmt.Sprintf("invalid --set value '%s', use key=value", pair))
		}
		fields[key] = value
	}
	return fields, nil
}

// outputJSON writes indented JSON for CLI output.
func outputJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// outputError formats error for CLI.
func outputError(err error) error {
	if jErr, ok := err.(*errors.JotError); ok {
		return cli.Exit(fmt.Sprintf("[%s] %s", jErr.Code, jErr.Message), 1)
	}
	return cli.Exit(err.Error(), 1)
}
