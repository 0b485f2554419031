package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"go.opentelemetry.io/otel/attribute"

	"github.com/psantana5/agencysite/pkg/tracing"
)

// MaxContentLength caps the characters of a single message
const MaxContentLength = 2000

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"

	DefaultModel      = "gpt-4o-mini"
	DefaultMaxHistory = 10
	DefaultMaxTokens  = 500
	DefaultTimeout    = 30 * time.Second
)

var (
	ErrNotConfigured       = errors.New("chat is not configured")
	ErrInvalidConversation = errors.New("invalid conversation")
	ErrUpstream            = errors.New("chat upstream failed")
)

// Message is one turn of the chat widget conversation
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Reply is the assistant's answer
type Reply struct {
	Message          Message `json:"message"`
	Model            string  `json:"model"`
	PromptTokens     int64   `json:"prompt_tokens"`
	CompletionTokens int64   `json:"completion_tokens"`
}

// Config configures the chat completion client
type Config struct {
	APIKey     string
	BaseURL    string // OpenAI-compatible endpoint; empty uses api.openai.com
	Model      string
	MaxHistory int
	MaxTokens  int
	Timeout    time.Duration
	MaxRetries int
}

// Client proxies chat widget conversations to a chat completion API
type Client struct {
	client     openai.Client
	model      string
	maxHistory int
	maxTokens  int
	tracer     *tracing.Provider
}

// New creates a client. It returns ErrNotConfigured without an API key.
func New(cfg Config, tracer *tracing.Provider) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, ErrNotConfigured
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.MaxHistory <= 0 {
		cfg.MaxHistory = DefaultMaxHistory
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = DefaultMaxTokens
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if tracer == nil {
		tracer = tracing.Noop()
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithRequestTimeout(cfg.Timeout),
		option.WithMaxRetries(cfg.MaxRetries),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &Client{
		client:     openai.NewClient(opts...),
		model:      cfg.Model,
		maxHistory: cfg.MaxHistory,
		maxTokens:  cfg.MaxTokens,
		tracer:     tracer,
	}, nil
}

// Complete sends the conversation, prefixed by systemPrompt, and returns
// the assistant's reply
func (c *Client) Complete(ctx context.Context, systemPrompt string, history []Message) (*Reply, error) {
	msgs, err := Prepare(history, c.maxHistory)
	if err != nil {
		return nil, err
	}

	ctx, span := c.tracer.StartSpan(ctx, "chat.completion",
		attribute.String("chat.model", c.model),
		attribute.Int("chat.messages", len(msgs)),
	)
	defer span.End()

	params := openai.ChatCompletionNewParams{
		Model:               c.model,
		Messages:            buildMessages(systemPrompt, msgs),
		MaxCompletionTokens: openai.Int(int64(c.maxTokens)),
	}

	resp, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		tracing.SetError(ctx, err)
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		err := fmt.Errorf("%w: empty completion", ErrUpstream)
		tracing.SetError(ctx, err)
		return nil, err
	}

	span.SetAttributes(
		attribute.Int64("chat.prompt_tokens", resp.Usage.PromptTokens),
		attribute.Int64("chat.completion_tokens", resp.Usage.CompletionTokens),
	)

	return &Reply{
		Message:          Message{Role: RoleAssistant, Content: resp.Choices[0].Message.Content},
		Model:            resp.Model,
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
	}, nil
}

func buildMessages(systemPrompt string, msgs []Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(msgs)+1)
	if systemPrompt != "" {
		out = append(out, openai.SystemMessage(systemPrompt))
	}
	for _, m := range msgs {
		if m.Role == RoleAssistant {
			out = append(out, openai.AssistantMessage(m.Content))
		} else {
			out = append(out, openai.UserMessage(m.Content))
		}
	}
	return out
}

// Prepare validates a conversation from the widget: roles must be user or
// assistant, content is trimmed and capped at MaxContentLength characters,
// empty turns are dropped, only the last maxHistory turns are kept and the
// last turn must come from the user.
func Prepare(history []Message, maxHistory int) ([]Message, error) {
	msgs := make([]Message, 0, len(history))
	for _, m := range history {
		role := strings.ToLower(strings.TrimSpace(m.Role))
		if role != RoleUser && role != RoleAssistant {
			return nil, fmt.Errorf("%w: unsupported role %q", ErrInvalidConversation, m.Role)
		}
		content := truncate(strings.TrimSpace(m.Content), MaxContentLength)
		if content == "" {
			continue
		}
		msgs = append(msgs, Message{Role: role, Content: content})
	}

	if maxHistory > 0 && len(msgs) > maxHistory {
		msgs = msgs[len(msgs)-maxHistory:]
	}
	if len(msgs) == 0 {
		return nil, fmt.Errorf("%w: no messages", ErrInvalidConversation)
	}
	if msgs[len(msgs)-1].Role != RoleUser {
		return nil, fmt.Errorf("%w: last message must be from the user", ErrInvalidConversation)
	}
	return msgs, nil
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n])
}
