// Package llm wraps the chat-completion API used to delegate play decisions.
package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// ErrEmptyCompletion is returned when the API answers without any choice text.
var ErrEmptyCompletion = errors.New("completion returned no text")

// Defaults applied when Config leaves a field zero.
const (
	DefaultModel       = "gpt-4o-mini"
	DefaultTemperature = 0.2
	DefaultMaxTokens   = 20
)

// Request is a single completion call.
type Request struct {
	APIKey string
	System string
	Prompt string
}

// Completer produces completion text for a prompt.
type Completer interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// Config configures the OpenAI-compatible client.
type Config struct {
	BaseURL     string
	Model       string
	Temperature float64
	MaxTokens   int64
	HTTPClient  *http.Client
}

// Client calls an OpenAI-compatible chat-completion endpoint.
type Client struct {
	cfg    Config
	logger *log.Logger
}

// NewClient creates a Client, filling in defaults.
func NewClient(cfg Config, logger *log.Logger) *Client {
	if strings.TrimSpace(cfg.Model) == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Temperature == 0 {
		cfg.Temperature = DefaultTemperature
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = DefaultMaxTokens
	}
	return &Client{cfg: cfg, logger: logger.WithPrefix("llm")}
}

// Model returns the configured model name.
func (c *Client) Model() string {
	return c.cfg.Model
}

// Complete sends one chat-completion request and returns the first choice's text.
// No retries are attempted.
func (c *Client) Complete(ctx context.Context, req Request) (string, error) {
	if strings.TrimSpace(req.APIKey) == "" {
		return "", fmt.Errorf("api key is required")
	}

	opts := []option.RequestOption{
		option.WithAPIKey(req.APIKey),
		option.WithMaxRetries(0),
	}
	if c.cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(c.cfg.BaseURL))
	}
	if c.cfg.HTTPClient != nil {
		opts = append(opts, option.WithHTTPClient(c.cfg.HTTPClient))
	}
	client := openai.NewClient(opts...)

	var messages []openai.ChatCompletionMessageParamUnion
	if req.System != "" {
		messages = append(messages, openai.SystemMessage(req.System))
	}
	messages = append(messages, openai.UserMessage(req.Prompt))

	c.logger.Debug("Requesting completion", "model", c.cfg.Model, "promptBytes", len(req.Prompt))

	resp, err := client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(c.cfg.Model),
		Messages:    messages,
		Temperature: openai.Float(c.cfg.Temperature),
		MaxTokens:   openai.Int(c.cfg.MaxTokens),
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyCompletion
	}

	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return "", ErrEmptyCompletion
	}
	c.logger.Debug("Completion received", "model", resp.Model, "text", text)
	return text, nil
}
