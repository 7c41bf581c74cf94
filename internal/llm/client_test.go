package llm

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// funcBackend adapts plain functions to Backend.
type funcBackend struct {
	complete func(Request) (string, error)
	embed    func(string) ([]float32, error)
}

func (f funcBackend) Complete(_ context.Context, req Request) (string, error) {
	return f.complete(req)
}

func (f funcBackend) Embed(_ context.Context, text string) ([]float32, error) {
	return f.embed(text)
}

var fastPolicy = Policy{Attempts: 3, InitialBackoff: time.Millisecond, MaxBackoff: 2 * time.Millisecond}

func TestCompleteSuccess(t *testing.T) {
	var got Request
	c := NewClient(funcBackend{complete: func(r Request) (string, error) {
		got = r
		return "hello", nil
	}}, WithChatPolicy(fastPolicy))

	text := c.Complete(context.Background(), "hi", 0.3, 50)
	assert.Equal(t, "hello", text)
	assert.Equal(t, Request{Prompt: "hi", Temperature: 0.3, MaxTokens: 50}, got)
	assert.False(t, IsFailure(text))
}

func TestCompleteRetriesThrottling(t *testing.T) {
	var calls int32
	c := NewClient(funcBackend{complete: func(Request) (string, error) {
		if atomic.AddInt32(&calls, 1) < 3 {
			return "", &StatusError{Code: 429, Body: "slow down"}
		}
		return "done", nil
	}}, WithChatPolicy(fastPolicy))

	assert.Equal(t, "done", c.Complete(context.Background(), "x", 0, 10))
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestCompleteExhaustedReturnsSentinel(t *testing.T) {
	var calls int32
	c := NewClient(funcBackend{complete: func(Request) (string, error) {
		atomic.AddInt32(&calls, 1)
		return "", ErrThrottled
	}}, WithChatPolicy(fastPolicy))

	text := c.Complete(context.Background(), "x", 0, 10)
	assert.True(t, IsFailure(text), "expected sentinel, got %q", text)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestCompleteDoesNotRetryOtherErrors(t *testing.T) {
	var calls int32
	c := NewClient(funcBackend{complete: func(Request) (string, error) {
		atomic.AddInt32(&calls, 1)
		return "", errors.New("boom")
	}}, WithChatPolicy(fastPolicy))

	text := c.Complete(context.Background(), "x", 0, 10)
	assert.True(t, IsFailure(text))
	assert.Contains(t, text, "boom")
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestCooldownSpacesRequests(t *testing.T) {
	var stamps []time.Time
	p := fastPolicy
	p.Cooldown = 30 * time.Millisecond
	c := NewClient(funcBackend{complete: func(Request) (string, error) {
		stamps = append(stamps, time.Now())
		return "ok", nil
	}}, WithChatPolicy(p))

	for i := 0; i < 3; i++ {
		c.Complete(context.Background(), "x", 0, 10)
	}
	require.Len(t, stamps, 3)
	for i := 1; i < len(stamps); i++ {
		assert.GreaterOrEqual(t, stamps[i].Sub(stamps[i-1]), 25*time.Millisecond)
	}
}

func TestEmbedFailureIsNil(t *testing.T) {
	c := NewClient(funcBackend{embed: func(string) ([]float32, error) {
		return nil, ErrThrottled
	}}, WithEmbedPolicy(fastPolicy))
	assert.Nil(t, c.Embed(context.Background(), "x"))

	c = NewClient(funcBackend{embed: func(string) ([]float32, error) {
		return []float32{1, 2}, nil
	}}, WithEmbedPolicy(fastPolicy))
	assert.Equal(t, []float32{1, 2}, c.Embed(context.Background(), "x"))
}

func TestCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	c := NewClient(NewScripted("never"), WithChatPolicy(fastPolicy))
	assert.True(t, IsFailure(c.Complete(ctx, "x", 0, 10)))
	assert.Nil(t, c.Embed(ctx, "x"))
}

func TestOllamaBackend(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/generate":
			w.Write([]byte(`{"response":"7"}`))
		case "/api/embeddings":
			w.Write([]byte(`{"embedding":[0.5,0.25]}`))
		default:
			w.WriteHeader(http.StatusTooManyRequests)
		}
	}))
	defer srv.Close()

	b := NewOllamaBackend(srv.URL, "", "")
	text, err := b.Complete(context.Background(), Request{Prompt: "hour?", MaxTokens: 5})
	require.NoError(t, err)
	assert.Equal(t, "7", text)

	v, err := b.Embed(context.Background(), "x")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.5, 0.25}, v)

	b.baseURL = srv.URL + "/other"
	_, err = b.Complete(context.Background(), Request{Prompt: "x"})
	assert.ErrorIs(t, err, ErrThrottled)
}

func TestScriptedRules(t *testing.T) {
	s := NewScripted("fallback", Rule{Match: "HOUR", Reply: "8"})
	s.Add("weather", "sunny")

	got, _ := s.Complete(context.Background(), Request{Prompt: "what hour is it"})
	assert.Equal(t, "8", got)
	got, _ = s.Complete(context.Background(), Request{Prompt: "nice weather"})
	assert.Equal(t, "sunny", got)
	got, _ = s.Complete(context.Background(), Request{Prompt: "anything"})
	assert.Equal(t, "fallback", got)
	assert.Len(t, s.Prompts(), 3)
}
