package conversation

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rcliao/npc-mind/internal/clock"
	"github.com/rcliao/npc-mind/internal/llm"
)

func newTestBuffer(t *testing.T, backend *llm.Scripted, opts ...Option) *Buffer {
	t.Helper()
	gw := llm.NewClient(backend, llm.WithChatPolicy(llm.Policy{Attempts: 1}))
	return New(gw, clock.NewManual(time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)), opts...)
}

func TestFIFOEviction(t *testing.T) {
	b := newTestBuffer(t, llm.NewScripted(""), WithCapacity(3))
	for i := 1; i <= 4; i++ {
		b.AddTurn("p", fmt.Sprintf("turn %d", i))
	}

	turns := b.Turns()
	require.Len(t, turns, 3)
	for i, want := range []string{"turn 2", "turn 3", "turn 4"} {
		if turns[i].Message != want {
			t.Errorf("position %d: expected %q, got %q", i, want, turns[i].Message)
		}
	}
}

func TestRecentAsText(t *testing.T) {
	b := newTestBuffer(t, llm.NewScripted(""))
	b.AddTurn("Player", "hi")
	b.AddTurn("Mina", "hello")
	b.AddTurn("Player", "how are you?")

	assert.Equal(t, "Mina: hello\nPlayer: how are you?\n", b.RecentAsText(2))
	assert.Equal(t, 3, strings.Count(b.RecentAsText(10), "\n"))
	assert.Equal(t, "", b.RecentAsText(0))
}

func TestSummarizeNeedsThreeTurns(t *testing.T) {
	backend := llm.NewScripted("A short summary.")
	b := newTestBuffer(t, backend)
	b.AddTurn("a", "1")
	b.AddTurn("b", "2")

	assert.Equal(t, InsufficientData, b.Summarize(context.Background()))
	assert.Empty(t, backend.Prompts(), "gateway must not be called")
	assert.Equal(t, NoConversation, b.Summary())

	b.AddTurn("a", "3")
	assert.Equal(t, "A short summary.", b.Summarize(context.Background()))
	assert.Equal(t, "A short summary.", b.Summary())
	assert.False(t, b.SummaryAt().IsZero())
	require.Len(t, backend.Prompts(), 1)
	assert.Contains(t, backend.Prompts()[0], "a: 1\nb: 2\na: 3\n")
}

func TestSummarizeFailureKeepsPrevious(t *testing.T) {
	backend := llm.NewScripted("First summary.")
	b := newTestBuffer(t, backend)
	for i := 0; i < 3; i++ {
		b.AddTurn("a", "x")
	}
	b.Summarize(context.Background())

	backend.Add("summarize", "ERROR: too many requests")
	got := b.Summarize(context.Background())
	assert.True(t, llm.IsFailure(got))
	assert.Equal(t, "First summary.", b.Summary())
}

func TestBuildContextualPrompt(t *testing.T) {
	b := newTestBuffer(t, llm.NewScripted("They said hello."))
	assert.Equal(t, "BASE", b.BuildContextualPrompt("BASE", true, 5))

	b.AddTurn("a", "hello")
	b.AddTurn("b", "hi")
	b.AddTurn("a", "bye")
	b.Summarize(context.Background())

	got := b.BuildContextualPrompt("BASE", true, 2)
	want := "### Earlier conversation summary ###\nThey said hello.\n\n" +
		"### Recent conversation ###\nb: hi\na: bye\n\nBASE"
	assert.Equal(t, want, got)

	got = b.BuildContextualPrompt("BASE", false, 0)
	assert.Equal(t, "BASE", got)

	b.Clear()
	assert.Equal(t, 0, b.Len())
	assert.Equal(t, "### Earlier conversation summary ###\nThey said hello.\n\nBASE", b.BuildContextualPrompt("BASE", true, 3))
}
