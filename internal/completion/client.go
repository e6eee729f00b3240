package completion

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	commonhttp "schema-host/internal/common/http"
	"schema-host/internal/common/logger"
)

var (
	ErrNoChoices = errors.New("NO_COMPLETION_CHOICES")
	ErrTimeout   = errors.New("COMPLETION_TIMEOUT")
)

// Config describes an OpenAI-compatible chat completions endpoint.
type Config struct {
	BaseURL     string
	APIKey      string
	Model       string
	MaxTokens   int
	Temperature float64
	Timeout     time.Duration
}

// CallOptions override the per-call token ceiling and timeout.
type CallOptions struct {
	MaxTokens int
	Timeout   time.Duration
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// Client calls the completion endpoint once per Complete. It never retries.
type Client struct {
	http   *commonhttp.Client
	cfg    Config
	opts   CallOptions
	logger logger.Logger
}

func NewClient(cfg Config, hc *commonhttp.Client, log logger.Logger) *Client {
	if hc == nil {
		// deadlines are per call, see Complete
		hc = commonhttp.NewClient(0)
	}
	return &Client{
		http:   hc,
		cfg:    cfg,
		opts:   CallOptions{MaxTokens: cfg.MaxTokens, Timeout: cfg.Timeout},
		logger: log,
	}
}

// WithOptions returns a Client sharing the transport but using opts for
// every call. Zero fields keep the current values.
func (c *Client) WithOptions(opts CallOptions) *Client {
	clone := *c
	if opts.MaxTokens > 0 {
		clone.opts.MaxTokens = opts.MaxTokens
	}
	if opts.Timeout > 0 {
		clone.opts.Timeout = opts.Timeout
	}
	return &clone
}

// Complete sends one system and one user message and returns the trimmed
// text of the first choice.
func (c *Client) Complete(ctx context.Context, system, user string) (string, error) {
	if c.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.opts.Timeout)
		defer cancel()
	}

	req := chatRequest{
		Model: c.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		MaxTokens:   c.opts.MaxTokens,
		Temperature: c.cfg.Temperature,
	}
	headers := map[string]string{"Authorization": "Bearer " + c.cfg.APIKey}

	start := time.Now()
	var resp chatResponse
	err := c.http.DoJSON(ctx, http.MethodPost, strings.TrimRight(c.cfg.BaseURL, "/")+"/chat/completions", headers, req, &resp)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", fmt.Errorf("%w after %s: %w", ErrTimeout, c.opts.Timeout, context.DeadlineExceeded)
		}
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrNoChoices
	}

	c.logger.Debug("Completion received", map[string]interface{}{
		"model":      c.cfg.Model,
		"durationMs": time.Since(start).Milliseconds(),
	})
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}
