package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rcliao/npc-mind/internal/clock"
	"github.com/rcliao/npc-mind/internal/llm"
	"github.com/rcliao/npc-mind/internal/model"
)

var t0 = time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)

func newTestStore(t *testing.T, rules []llm.Rule, opts ...Option) (*Store, *clock.Manual, *llm.Scripted) {
	t.Helper()
	backend := llm.NewScripted("", rules...)
	quick := llm.Policy{Attempts: 1}
	gw := llm.NewClient(backend, llm.WithChatPolicy(quick), llm.WithEmbedPolicy(quick))
	clk := clock.NewManual(t0)
	return New(gw, clk, opts...), clk, backend
}

type memJournal struct {
	memories  []model.Memory
	knowledge []model.Knowledge
	fail      bool
}

func (j *memJournal) AppendMemory(_ context.Context, m model.Memory) error {
	if j.fail {
		return errors.New("disk full")
	}
	j.memories = append(j.memories, m)
	return nil
}

func (j *memJournal) SaveKnowledge(_ context.Context, k model.Knowledge) error {
	if j.fail {
		return errors.New("disk full")
	}
	j.knowledge = append(j.knowledge, k)
	return nil
}

func TestAddMemoryAsksGateway(t *testing.T) {
	s, _, backend := newTestStore(t, []llm.Rule{
		{Match: "rate how important", Reply: "8"},
		{Match: "keywords", Reply: "Coffee, cafe, Coffee"},
	}, WithOwner("Mina"))
	ctx := context.Background()

	m, err := s.AddMemory(ctx, model.KindEvent, "Bought coffee at the cafe")
	require.NoError(t, err)

	assert.NotEmpty(t, m.ID)
	assert.Equal(t, 8, m.Importance)
	assert.Equal(t, []string{"coffee", "cafe"}, m.Keywords)
	assert.NotNil(t, m.Embedding)
	assert.Equal(t, t0, m.CreatedAt)
	assert.Contains(t, backend.Prompts()[0], "Mina")

	assert.Equal(t, 8, s.KeywordStrength("COFFEE"))
	assert.Len(t, s.ByKeyword(model.KindEvent, "cafe"), 1)
	assert.Empty(t, s.ByKeyword(model.KindThought, "cafe"))
}

func TestImportanceAlwaysInRange(t *testing.T) {
	tests := []struct {
		name  string
		reply string
		given *int
		want  int
	}{
		{"numeric reply", "3", nil, 3},
		{"reply with text", "7 - a big day", nil, 7},
		{"non-numeric reply", "very important", nil, 5},
		{"out of range reply", "42", nil, 5},
		{"zero reply", "0", nil, 5},
		{"gateway failure", "ERROR: too many requests", nil, 5},
		{"given too high", "", intPtr(99), 10},
		{"given too low", "", intPtr(-3), 1},
		{"given in range", "", intPtr(6), 6},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, _, _ := newTestStore(t, []llm.Rule{{Match: "rate how important", Reply: tt.reply}})
			var opts []AddOption
			if tt.given != nil {
				opts = append(opts, WithImportance(*tt.given))
			}
			m, err := s.AddMemory(context.Background(), model.KindThought, "something", opts...)
			require.NoError(t, err)
			if m.Importance != tt.want {
				t.Errorf("expected importance %d, got %d", tt.want, m.Importance)
			}
			if m.Importance < model.MinImportance || m.Importance > model.MaxImportance {
				t.Errorf("importance %d out of range", m.Importance)
			}
		})
	}
}

func intPtr(n int) *int { return &n }

func TestKeywordFailureYieldsEmptySet(t *testing.T) {
	s, _, _ := newTestStore(t, []llm.Rule{{Match: "keywords", Reply: "ERROR: request failed"}})
	m, err := s.AddMemory(context.Background(), model.KindEvent, "x", WithImportance(4))
	require.NoError(t, err)
	assert.Empty(t, m.Keywords)
	assert.Equal(t, 1, s.Len())
}

func TestReflectionTrigger(t *testing.T) {
	s, _, _ := newTestStore(t, nil, WithReflectionThreshold(20))
	ctx := context.Background()

	s.AddMemory(ctx, model.KindEvent, "a", WithImportance(10))
	assert.False(t, s.ReflectionPending())
	s.AddMemory(ctx, model.KindEvent, "b", WithImportance(9))
	assert.False(t, s.ReflectionPending())
	s.AddMemory(ctx, model.KindEvent, "c", WithImportance(1))
	assert.True(t, s.ReflectionPending(), "expected reflection once 20 is reached")

	s.AcknowledgeReflection()
	s.AddMemory(ctx, model.KindEvent, "d", WithImportance(10))
	assert.False(t, s.ReflectionPending(), "counter should have reset")
}

func TestJournal(t *testing.T) {
	j := &memJournal{}
	s, _, _ := newTestStore(t, nil, WithJournal(j))
	ctx := context.Background()

	m, err := s.AddMemory(ctx, model.KindEvent, "saw a cat", WithImportance(3), WithEvidence("01A"))
	require.NoError(t, err)
	require.Len(t, j.memories, 1)
	assert.Equal(t, m.ID, j.memories[0].ID)
	assert.Equal(t, []string{"01A"}, j.memories[0].EvidenceIDs)

	j.fail = true
	_, err = s.AddMemory(ctx, model.KindEvent, "lost", WithImportance(3))
	assert.Error(t, err)
	assert.Equal(t, 1, s.Len(), "failed journal write must not store the memory")
}

func TestRestore(t *testing.T) {
	s, _, _ := newTestStore(t, nil)
	s.Restore([]model.Memory{
		{ID: "1", Kind: model.KindEvent, Description: "old", Importance: 4, CreatedAt: t0.Add(-time.Hour), Keywords: []string{"park"}},
		{ID: "2", Kind: model.KindThought, Description: "idea", Importance: 6, CreatedAt: t0, Keywords: []string{"park"}},
	}, []model.Knowledge{{Concept: "Park", ReinforcementCount: 2}})

	assert.Equal(t, 2, s.Len())
	assert.Equal(t, 10, s.KeywordStrength("park"))
	assert.False(t, s.ReflectionPending())
	k, ok := s.Knowledge("park")
	require.True(t, ok)
	assert.Equal(t, 2, k.ReinforcementCount)
}

func TestAddOrReinforce(t *testing.T) {
	j := &memJournal{}
	s, _, _ := newTestStore(t, nil, WithJournal(j))
	ctx := context.Background()

	k, err := s.AddOrReinforce(ctx, "Library", "a quiet place to study")
	require.NoError(t, err)
	assert.Equal(t, 1, k.ReinforcementCount)
	assert.NotNil(t, k.Embedding)

	k, err = s.AddOrReinforce(ctx, " library ", "ignored")
	require.NoError(t, err)
	assert.Equal(t, 2, k.ReinforcementCount)
	assert.Equal(t, "a quiet place to study", k.Description)

	assert.Len(t, s.AllKnowledge(), 1)
	assert.Len(t, j.knowledge, 2)
}

func TestParseKeywords(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"a, b, c", []string{"a", "b", "c"}},
		{" Study ,  , \"exam\".", []string{"study", "exam"}},
		{"", nil},
		{"ERROR: nope", nil},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ParseKeywords(tt.in), "input %q", tt.in)
	}
}

func TestReturnedMemoriesAreCopies(t *testing.T) {
	s, _, _ := newTestStore(t, []llm.Rule{{Match: "keywords", Reply: "coffee"}})
	ctx := context.Background()

	m, err := s.AddMemory(ctx, model.KindEvent, "Bought coffee", WithImportance(5), WithEvidence("01A"))
	require.NoError(t, err)
	require.Equal(t, []string{"coffee"}, m.Keywords)
	m.Keywords[0] = "tea"
	m.EvidenceIDs[0] = "01B"
	if len(m.Embedding) > 0 {
		m.Embedding[0] = 42
	}

	for _, got := range [][]model.Memory{
		s.All(),
		s.RetrieveRecent(1),
		s.RetrieveToday(),
		s.ByKeyword(model.KindEvent, "coffee"),
	} {
		require.Len(t, got, 1)
		got[0].Keywords[0] = "juice"
	}
	scored := s.RetrieveScored("coffee", 1)
	require.Len(t, scored, 1)
	scored[0].Keywords[0] = "milk"

	stored := s.All()[0]
	assert.Equal(t, []string{"coffee"}, stored.Keywords)
	assert.Equal(t, []string{"01A"}, stored.EvidenceIDs)
	assert.NotContains(t, stored.Embedding, float32(42))
	assert.Greater(t, s.RetrieveScored("coffee", 1)[0].Relevance, 0.0)
}

func TestRestoreValidates(t *testing.T) {
	s, _, _ := newTestStore(t, nil)
	s.Restore([]model.Memory{
		{ID: "1", Kind: "bogus", Description: "junk", Importance: 5, CreatedAt: t0},
		{ID: "2", Kind: model.KindEvent, Description: "loud", Importance: 42, CreatedAt: t0},
		{ID: "3", Kind: model.KindEvent, Description: "quiet", Importance: -3, CreatedAt: t0},
	}, nil)

	all := s.All()
	require.Len(t, all, 2)
	assert.Equal(t, model.MaxImportance, all[0].Importance)
	assert.Equal(t, model.MinImportance, all[1].Importance)
}

func TestRestoreResumesReflectionCounter(t *testing.T) {
	s, _, _ := newTestStore(t, nil, WithReflectionThreshold(20))
	s.Restore([]model.Memory{
		{ID: "1", Kind: model.KindEvent, Description: "a", Importance: 9, CreatedAt: t0},
		{ID: "2", Kind: model.KindEvent, Description: "b", Importance: 9, CreatedAt: t0},
	}, nil)
	assert.False(t, s.ReflectionPending())

	_, err := s.AddMemory(context.Background(), model.KindEvent, "c", WithImportance(2))
	require.NoError(t, err)
	assert.True(t, s.ReflectionPending(), "restored importance should count toward the threshold")
}
