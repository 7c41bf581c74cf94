// Package conversation keeps a short rolling window of dialogue plus a
// compressed summary of it.
package conversation

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/rcliao/npc-mind/internal/clock"
	"github.com/rcliao/npc-mind/internal/llm"
	"github.com/rcliao/npc-mind/internal/model"
)

// DefaultCapacity is the number of turns kept before the oldest is evicted.
const DefaultCapacity = 10

// MinTurnsToSummarize is the fewest turns Summarize will work with.
const MinTurnsToSummarize = 3

// Sentinels returned instead of model text.
const (
	InsufficientData = "not enough conversation to summarize"
	NoConversation   = "no conversation yet"
)

// Buffer is a bounded FIFO of dialogue turns.
type Buffer struct {
	gw       llm.Gateway
	clock    clock.Clock
	capacity int
	logger   *slog.Logger

	mu        sync.Mutex
	turns     []model.ConversationTurn
	summary   string
	summaryAt time.Time
}

// Option configures a Buffer.
type Option func(*Buffer)

// WithCapacity sets how many turns are kept.
func WithCapacity(n int) Option {
	return func(b *Buffer) {
		if n > 0 {
			b.capacity = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option { return func(b *Buffer) { b.logger = l } }

// New creates an empty buffer.
func New(gw llm.Gateway, clk clock.Clock, opts ...Option) *Buffer {
	b := &Buffer{gw: gw, clock: clk, capacity: DefaultCapacity, logger: slog.Default()}
	for _, o := range opts {
		o(b)
	}
	return b
}

// AddTurn appends a turn, evicting the oldest beyond capacity.
func (b *Buffer) AddTurn(speaker, message string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.turns = append(b.turns, model.ConversationTurn{
		Speaker:   speaker,
		Message:   message,
		Timestamp: b.clock.Now(),
	})
	if over := len(b.turns) - b.capacity; over > 0 {
		b.turns = append([]model.ConversationTurn(nil), b.turns[over:]...)
	}
}

// Turns returns the buffered turns, oldest first.
func (b *Buffer) Turns() []model.ConversationTurn {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]model.ConversationTurn(nil), b.turns...)
}

// Len is the number of buffered turns.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.turns)
}

// RecentAsText renders the last n turns, oldest first, one "speaker: message"
// line each.
func (b *Buffer) RecentAsText(n int) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return render(lastN(b.turns, n))
}

func lastN(turns []model.ConversationTurn, n int) []model.ConversationTurn {
	if n <= 0 {
		return nil
	}
	if n > len(turns) {
		n = len(turns)
	}
	return turns[len(turns)-n:]
}

func render(turns []model.ConversationTurn) string {
	var sb strings.Builder
	for _, t := range turns {
		fmt.Fprintf(&sb, "%s: %s\n", t.Speaker, t.Message)
	}
	return sb.String()
}

const summaryPrompt = `Summarize the following conversation in 2-3 sentences. Keep the key facts, requests and feelings.

%s
Summary:`

// Summarize compresses the buffered turns into 2-3 sentences and keeps the
// result as the current summary. With fewer than three turns it returns
// InsufficientData without calling the gateway. A gateway failure text is
// returned but not kept.
func (b *Buffer) Summarize(ctx context.Context) string {
	b.mu.Lock()
	if len(b.turns) < MinTurnsToSummarize {
		b.mu.Unlock()
		return InsufficientData
	}
	text := render(b.turns)
	b.mu.Unlock()

	resp := strings.TrimSpace(b.gw.Complete(ctx, fmt.Sprintf(summaryPrompt, text), 0.3, 150))
	if llm.IsFailure(resp) || resp == "" {
		b.logger.Warn("conversation summary failed", "response", resp)
		return resp
	}

	b.mu.Lock()
	b.summary = resp
	b.summaryAt = b.clock.Now()
	b.mu.Unlock()
	return resp
}

// Summary returns the current summary, or NoConversation if there is none.
func (b *Buffer) Summary() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.summary == "" {
		return NoConversation
	}
	return b.summary
}

// SummaryAt is when the current summary was produced.
func (b *Buffer) SummaryAt() time.Time {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.summaryAt
}

// BuildContextualPrompt prefixes base with the stored summary (when asked for
// and present) and the last recentTurns turns (when there are any).
func (b *Buffer) BuildContextualPrompt(base string, includeSummary bool, recentTurns int) string {
	b.mu.Lock()
	defer b.mu.Unlock()

	var sb strings.Builder
	if includeSummary && b.summary != "" {
		sb.WriteString("### Earlier conversation summary ###\n")
		sb.WriteString(b.summary)
		sb.WriteString("\n\n")
	}
	if recent := lastN(b.turns, recentTurns); len(recent) > 0 {
		sb.WriteString("### Recent conversation ###\n")
		sb.WriteString(render(recent))
		sb.WriteString("\n")
	}
	sb.WriteString(base)
	return sb.String()
}

// Clear drops every buffered turn. The summary is kept.
func (b *Buffer) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.turns = nil
}
