package memory

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rcliao/npc-mind/internal/llm"
	"github.com/rcliao/npc-mind/internal/model"
)

func TestRecency(t *testing.T) {
	tests := []struct {
		name    string
		elapsed time.Duration
		want    float64
	}{
		{"now", 0, 1},
		{"under an hour", 59 * time.Minute, 1},
		{"two and a half hours", 150 * time.Minute, 0.99 * 0.99},
		{"future", -3 * time.Hour, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Recency(t0.Add(tt.elapsed), t0, 0.99)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("Recency = %f, want %f", got, tt.want)
			}
		})
	}
}

func TestKeywordOverlap(t *testing.T) {
	assert.Equal(t, 0.0, KeywordOverlap("", []string{"a"}))
	assert.InDelta(t, 0.3, KeywordOverlap("going to the library", []string{"library", "cake"}), 1e-9)
	assert.InDelta(t, 0.6, KeywordOverlap("library exam", []string{"library", "exam"}), 1e-9)
	assert.Equal(t, 1.0, KeywordOverlap("a b c d", []string{"a", "b", "c", "d"}))
}

func TestRetrieveRelevantOrdering(t *testing.T) {
	s, clk, _ := newTestStore(t, []llm.Rule{
		{Match: "library", Reply: "library, study"},
		{Match: "breakfast", Reply: "breakfast, kitchen"},
		{Match: "keywords", Reply: "misc"},
	})
	ctx := context.Background()

	s.AddMemory(ctx, model.KindEvent, "Ate breakfast", WithImportance(2))
	s.AddMemory(ctx, model.KindEvent, "Studied at the library", WithImportance(5))
	clk.Advance(5 * time.Hour)
	s.AddMemory(ctx, model.KindThought, "Felt tired", WithImportance(5))

	got := s.RetrieveScored("Should I go to the LIBRARY?", 2)
	require.Len(t, got, 2)
	assert.Equal(t, "Studied at the library", got[0].Description)
	assert.InDelta(t, 0.3, got[0].Relevance, 1e-9)
	for i := 1; i < len(got); i++ {
		assert.GreaterOrEqual(t, got[i-1].Score, got[i].Score)
	}
}

func TestRetrieveRelevantBoundsAndTies(t *testing.T) {
	s, _, _ := newTestStore(t, nil)
	ctx := context.Background()
	for _, d := range []string{"first", "second", "third"} {
		s.AddMemory(ctx, model.KindEvent, d, WithImportance(5))
	}

	got := s.RetrieveRelevant("nothing", 10)
	require.Len(t, got, 3)
	assert.Equal(t, []string{"first", "second", "third"}, descriptions(got), "ties keep insertion order")

	assert.Len(t, s.RetrieveRelevant("x", 2), 2)
	assert.Empty(t, s.RetrieveRelevant("x", 0))
}

func TestRetrieveRecentTodayRange(t *testing.T) {
	s, clk, _ := newTestStore(t, nil)
	ctx := context.Background()

	s.AddMemory(ctx, model.KindEvent, "day one morning", WithImportance(3))
	clk.Advance(4 * time.Hour)
	s.AddMemory(ctx, model.KindEvent, "day one noon", WithImportance(3))
	clk.Advance(24 * time.Hour)
	s.AddMemory(ctx, model.KindEvent, "day two noon", WithImportance(3))
	s.AddMemory(ctx, model.KindThought, "day two noon thought", WithImportance(3))

	assert.Equal(t, []string{"day two noon thought", "day two noon"}, descriptions(s.RetrieveRecent(2)))
	assert.Equal(t, []string{"day two noon thought", "day two noon"}, descriptions(s.RetrieveToday()))
	assert.Equal(t, []string{"day one noon", "day one morning"},
		descriptions(s.RetrieveInRange(t0, t0.Add(4*time.Hour))))
	assert.Empty(t, s.RetrieveRecent(-1))
}

func TestRetrieveSimilar(t *testing.T) {
	s, _, _ := newTestStore(t, nil)
	ctx := context.Background()
	s.AddMemory(ctx, model.KindEvent, "played chess in the park", WithImportance(3))
	s.AddMemory(ctx, model.KindEvent, "cooked soup for dinner", WithImportance(3))

	got := s.RetrieveSimilar(ctx, "chess park", 1)
	require.Len(t, got, 1)
	assert.Equal(t, "played chess in the park", got[0].Description)
	assert.Greater(t, got[0].Similarity, 0.0)
}

func descriptions(ms []model.Memory) []string {
	out := make([]string, len(ms))
	for i, m := range ms {
		out[i] = m.Description
	}
	return out
}
