package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/tmorrell/jot/internal/brain"
	"github.com/tmorrell/jot/internal/errors"
)

const (
	defaultModel   = "gpt-4o-mini"
	requestTimeout = 8 * time.Second
	maxRetries     = 3
)

// OpenAI classifies and summarizes through a hosted chat-completions API.
// Retry with backoff on transient failures is handled by the client; after
// the retry budget the error surfaces to the pipeline.
type OpenAI struct {
	client openai.Client
	model  string
}

// OpenAIOption configures the provider.
type OpenAIOption func(*OpenAI)

// WithModel overrides the default model.
func WithModel(model string) OpenAIOption {
	return func(o *OpenAI) {
		if model != "" {
			o.model = model
		}
	}
}

// NewOpenAI creates the hosted classifier. An empty API key is a
// configuration error.
func NewOpenAI(apiKey string, opts ...OpenAIOption) (*OpenAI, error) {
	if apiKey == "" {
		return nil, errors.NewConfig("openai api key is required")
	}
	o := &OpenAI{
		client: openai.NewClient(
			option.WithAPIKey(apiKey),
			option.WithMaxRetries(maxRetries),
			option.WithRequestTimeout(requestTimeout),
		),
		model: defaultModel,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o, nil
}

// Classify asks the model for classification JSON and maps it onto a
// Classification. Out-of-schema output degrades to low-confidence admin
// rather than erroring: the gate handles the rest.
func (o *OpenAI) Classify(ctx context.Context, text string) (*brain.Classification, error) {
	content, err := o.chat(ctx, classificationPrompt, text)
	if err != nil {
		return nil, err
	}

	var payload struct {
		Category   string            `json:"category"`
		Confidence float64           `json:"confidence"`
		Title      string            `json:"title"`
		Fields     map[string]string `json:"fields"`
	}
	if err := json.Unmarshal([]byte(stripFences(content)), &payload); err != nil {
		return nil, errors.NewUpstream("openai", fmt.Errorf("classification was not valid JSON: %w", err))
	}

	if payload.Category == "" {
		payload.Category = brain.CategoryAdmin
	}
	if payload.Title == "" {
		payload.Title = "Untitled"
	}
	fields := make(brain.Fields, len(payload.Fields))
	for k, v := range payload.Fields {
		fields[k] = v
	}

	return &brain.Classification{
		Category:   payload.Category,
		Confidence: payload.Confidence,
		Title:      payload.Title,
		Fields:     fields,
		Raw:        map[string]any{"strategy": "openai", "model": o.model},
	}, nil
}

// Summarize sends the records through the digest prompt for the period.
func (o *OpenAI) Summarize(ctx context.Context, records []brain.Record, period brain.DigestPeriod) (*brain.DigestSummary, error) {
	prompt := dailyDigestPrompt
	title := "Daily Digest"
	if period == brain.DigestWeekly {
		prompt = weeklyDigestPrompt
		title = "Weekly Review"
	}

	body, err := o.chat(ctx, prompt, recordsToText(records))
	if err != nil {
		return nil, err
	}
	body = strings.TrimSpace(body)
	return &brain.DigestSummary{
		Title:     title,
		Body:      body,
		WordCount: len(strings.Fields(body)),
	}, nil
}

func (o *OpenAI) chat(ctx context.Context, system, user string) (string, error) {
	resp, err := o.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(o.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(system),
			openai.UserMessage(user),
		},
	})
	if err != nil {
		return "", errors.NewUpstream("openai", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.NewUpstream("openai", fmt.Errorf("empty completion"))
	}
	return resp.Choices[0].Message.Content, nil
}

// stripFences removes a markdown code fence the model sometimes wraps JSON
// in despite the prompt.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

func recordsToText(records []brain.Record) string {
	if len(records) == 0 {
		return "No recent items."
	}
	lines := make([]string, 0, len(records))
	for _, record := range records {
		lines = append(lines, fmt.Sprintf("%s: %s :: %v", record.Category, record.Title, record.Fields))
	}
	return strings.Join(lines, "\n")
}
