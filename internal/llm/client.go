package llm

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/time/rate"
)

// Policy describes how one kind of call is paced and retried.
type Policy struct {
	Cooldown       time.Duration // minimum interval between outbound requests
	Attempts       int           // total tries including the first
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// DefaultChatPolicy paces chat completions.
var DefaultChatPolicy = Policy{Cooldown: time.Second, Attempts: 3, InitialBackoff: 2 * time.Second, MaxBackoff: 15 * time.Second}

// DefaultEmbedPolicy paces embedding requests.
var DefaultEmbedPolicy = Policy{Cooldown: 750 * time.Millisecond, Attempts: 5, InitialBackoff: 1500 * time.Millisecond, MaxBackoff: 15 * time.Second}

// Client wraps a Backend with a global cooldown, bounded exponential backoff on
// throttling, and sentinel conversion. A single Client is meant to be shared
// by every agent in the process.
type Client struct {
	backend   Backend
	chat      Policy
	embed     Policy
	chatGate  *rate.Limiter
	embedGate *rate.Limiter
	logger    *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithChatPolicy overrides the chat pacing policy.
func WithChatPolicy(p Policy) Option { return func(c *Client) { c.chat = p } }

// WithEmbedPolicy overrides the embedding pacing policy.
func WithEmbedPolicy(p Policy) Option { return func(c *Client) { c.embed = p } }

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option { return func(c *Client) { c.logger = l } }

// NewClient creates a Client around backend.
func NewClient(backend Backend, opts ...Option) *Client {
	c := &Client{
		backend: backend,
		chat:    DefaultChatPolicy,
		embed:   DefaultEmbedPolicy,
		logger:  slog.Default(),
	}
	for _, o := range opts {
		o(c)
	}
	c.chatGate = newGate(c.chat.Cooldown)
	c.embedGate = newGate(c.embed.Cooldown)
	return c
}

func newGate(cooldown time.Duration) *rate.Limiter {
	if cooldown <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(cooldown), 1)
}

func (p Policy) backOff(ctx context.Context) backoff.BackOff {
	attempts := p.Attempts
	if attempts < 1 {
		attempts = 1
	}
	b := backoff.NewExponentialBackOff(
		backoff.WithInitialInterval(p.InitialBackoff),
		backoff.WithMaxInterval(p.MaxBackoff),
		backoff.WithMultiplier(2),
		backoff.WithRandomizationFactor(0),
		backoff.WithMaxElapsedTime(0),
	)
	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(attempts-1)), ctx)
}

// Complete sends a single-turn prompt. It returns the model's text or a
// sentinel failure text (see IsFailure).
func (c *Client) Complete(ctx context.Context, prompt string, temperature float64, maxTokens int) string {
	req := Request{Prompt: prompt, Temperature: temperature, MaxTokens: maxTokens}
	attempt := 0
	op := func() (string, error) {
		attempt++
		if err := c.chatGate.Wait(ctx); err != nil {
			return "", backoff.Permanent(err)
		}
		text, err := c.backend.Complete(ctx, req)
		if err != nil {
			if errors.Is(err, ErrThrottled) {
				return "", err
			}
			return "", backoff.Permanent(err)
		}
		return text, nil
	}
	notify := func(err error, wait time.Duration) {
		c.logger.Warn("chat throttled, backing off", "attempt", attempt, "wait", wait)
	}

	text, err := backoff.RetryNotifyWithData(op, c.chat.backOff(ctx), notify)
	if err == nil {
		return text
	}
	if errors.Is(err, ErrThrottled) {
		c.logger.Error("chat retries exhausted", "attempts", attempt)
		return failure("too many requests, giving up after %d attempts", attempt)
	}
	c.logger.Error("chat request failed", "err", err)
	return failure("request failed: %v", err)
}

// Embed returns an embedding for text, or nil when the request fails.
func (c *Client) Embed(ctx context.Context, text string) []float32 {
	attempt := 0
	op := func() ([]float32, error) {
		attempt++
		if err := c.embedGate.Wait(ctx); err != nil {
			return nil, backoff.Permanent(err)
		}
		v, err := c.backend.Embed(ctx, text)
		if err != nil {
			if errors.Is(err, ErrThrottled) {
				return nil, err
			}
			return nil, backoff.Permanent(err)
		}
		return v, nil
	}
	notify := func(err error, wait time.Duration) {
		c.logger.Warn("embedding throttled, backing off", "attempt", attempt, "wait", wait)
	}

	v, err := backoff.RetryNotifyWithData(op, c.embed.backOff(ctx), notify)
	if err != nil {
		c.logger.Warn("embedding unavailable", "attempts", attempt, "err", err)
		return nil
	}
	if len(v) == 0 {
		return nil
	}
	return v
}
