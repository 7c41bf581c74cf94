// Package memory implements an agent's append-only associative memory: every
// perception or thought becomes an immutable Memory, indexed by keyword and
// retrievable by a recency/importance/relevance score.
package memory

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/rcliao/npc-mind/internal/clock"
	"github.com/rcliao/npc-mind/internal/llm"
	"github.com/rcliao/npc-mind/internal/model"
)

// DefaultReflectionThreshold is the cumulative importance that marks a
// reflection as pending.
const DefaultReflectionThreshold = 100

// Journal persists memories as they are created. Implementations must be
// append-only for memories; knowledge records are upserted.
type Journal interface {
	AppendMemory(ctx context.Context, m model.Memory) error
	SaveKnowledge(ctx context.Context, k model.Knowledge) error
}

// Store holds one agent's memories. It is safe for concurrent use; gateway
// calls are made without holding the lock.
type Store struct {
	gw        llm.Gateway
	clock     clock.Clock
	owner     string
	weights   Weights
	decay     float64
	threshold int
	journal   Journal
	logger    *slog.Logger

	mu                sync.RWMutex
	entropy           io.Reader
	all               []*model.Memory
	byKind            map[model.Kind][]*model.Memory
	index             map[model.Kind]map[string][]*model.Memory
	strength          map[string]int
	knowledge         map[string]*model.Knowledge
	knowledgeOrder    []string
	pendingImportance int
	reflectionPending bool
}

// Option configures a Store.
type Option func(*Store)

// WithWeights sets the retrieval score weights.
func WithWeights(w Weights) Option { return func(s *Store) { s.weights = w } }

// WithDecayRate sets the per-hour recency decay (0 < r <= 1).
func WithDecayRate(r float64) Option {
	return func(s *Store) {
		if r > 0 && r <= 1 {
			s.decay = r
		}
	}
}

// WithReflectionThreshold sets the cumulative importance that triggers a reflection.
func WithReflectionThreshold(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.threshold = n
		}
	}
}

// WithJournal persists every new memory and knowledge change.
func WithJournal(j Journal) Option { return func(s *Store) { s.journal = j } }

// WithOwner names the agent whose memories these are; used in prompts.
func WithOwner(name string) Option { return func(s *Store) { s.owner = name } }

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option { return func(s *Store) { s.logger = l } }

// New creates an empty Store.
func New(gw llm.Gateway, clk clock.Clock, opts ...Option) *Store {
	s := &Store{
		gw:        gw,
		clock:     clk,
		owner:     "the character",
		weights:   DefaultWeights,
		decay:     DefaultDecayRate,
		threshold: DefaultReflectionThreshold,
		logger:    slog.Default(),
		entropy:   ulid.Monotonic(rand.New(rand.NewSource(time.Now().UnixNano())), 0),
		byKind:    map[model.Kind][]*model.Memory{},
		index:     map[model.Kind]map[string][]*model.Memory{},
		strength:  map[string]int{},
		knowledge: map[string]*model.Knowledge{},
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

type addConfig struct {
	importance *int
	evidence   []string
}

// AddOption customizes a single AddMemory call.
type AddOption func(*addConfig)

// WithImportance skips the importance prompt and uses n (clamped to [1,10]).
func WithImportance(n int) AddOption {
	return func(c *addConfig) {
		v := model.ClampImportance(n)
		c.importance = &v
	}
}

// WithEvidence records the IDs of memories this one was derived from.
func WithEvidence(ids ...string) AddOption {
	return func(c *addConfig) { c.evidence = append(c.evidence, ids...) }
}

const importancePrompt = `On a scale of 1 to 10, rate how important the following memory is to %s, where 1 is purely mundane (brushing teeth, making the bed) and 10 is extremely poignant (a breakup, a college acceptance).
Memory: %s
Answer with a single number.`

const keywordPrompt = `Extract up to 5 keywords from the text below. Reply with the keywords separated by commas and nothing else.
Text: %s`

// AddMemory records a new memory. Missing importance, keywords and embedding
// are requested from the gateway; gateway failures degrade to defaults. The
// only error is a journal write failure, in which case nothing is stored.
func (s *Store) AddMemory(ctx context.Context, kind model.Kind, description string, opts ...AddOption) (model.Memory, error) {
	var cfg addConfig
	for _, o := range opts {
		o(&cfg)
	}
	created := s.clock.Now()

	importance := model.DefaultImportance
	if cfg.importance != nil {
		importance = *cfg.importance
	} else {
		resp := s.gw.Complete(ctx, fmt.Sprintf(importancePrompt, s.owner, description), 0.1, 10)
		if n, ok := ParseImportance(resp); ok {
			importance = n
		} else {
			s.logger.Warn("unusable importance rating, using default", "response", resp, "default", importance)
		}
	}

	keywords := ParseKeywords(s.gw.Complete(ctx, fmt.Sprintf(keywordPrompt, description), 0.1, 50))
	vec := s.gw.Embed(ctx, description)

	s.mu.Lock()
	defer s.mu.Unlock()

	m := model.Memory{
		ID:          ulid.MustNew(ulid.Timestamp(created), s.entropy).String(),
		Kind:        kind,
		Description: description,
		Importance:  importance,
		CreatedAt:   created,
		Embedding:   vec,
		Keywords:    keywords,
		EvidenceIDs: cfg.evidence,
	}

	if s.journal != nil {
		if err := s.journal.AppendMemory(ctx, m); err != nil {
			return model.Memory{}, fmt.Errorf("journal memory: %w", err)
		}
	}

	s.insertLocked(&m)
	s.pendingImportance += importance
	if s.pendingImportance >= s.threshold {
		s.reflectionPending = true
		s.logger.Info("reflection triggered", "owner", s.owner, "accumulated", s.pendingImportance)
		s.pendingImportance = 0
	}
	return m.Clone(), nil
}

func (s *Store) insertLocked(m *model.Memory) {
	s.all = append(s.all, m)
	s.byKind[m.Kind] = append(s.byKind[m.Kind], m)
	idx := s.index[m.Kind]
	if idx == nil {
		idx = map[string][]*model.Memory{}
		s.index[m.Kind] = idx
	}
	for _, kw := range m.Keywords {
		idx[kw] = append(idx[kw], m)
		s.strength[kw] += m.Importance
	}
}

// Restore loads previously persisted records without consulting the gateway
// or the journal. Memories are expected in creation order. A memory with an
// unknown kind is skipped and an out-of-range importance is clamped. The
// reflection counter resumes at the restored importance total modulo the
// threshold.
func (s *Store) Restore(memories []model.Memory, knowledge []model.Knowledge) {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := 0
	for _, rm := range memories {
		if !model.ValidKinds[rm.Kind] {
			s.logger.Warn("skipping restored memory with unknown kind", "id", rm.ID, "kind", rm.Kind)
			continue
		}
		m := rm.Clone()
		if c := model.ClampImportance(m.Importance); c != m.Importance {
			s.logger.Warn("clamping restored importance", "id", m.ID, "importance", m.Importance, "clamped", c)
			m.Importance = c
		}
		s.insertLocked(&m)
		total += m.Importance
	}
	s.pendingImportance = (s.pendingImportance + total) % s.threshold
	for _, rk := range knowledge {
		k := rk.Clone()
		key := conceptKey(k.Concept)
		if _, ok := s.knowledge[key]; !ok {
			s.knowledgeOrder = append(s.knowledgeOrder, key)
		}
		s.knowledge[key] = &k
	}
}

// ParseImportance reads a 1-10 rating. Anything else is rejected.
func ParseImportance(resp string) (int, bool) {
	n, ok := llm.LeadingInt(resp)
	if !ok || n < model.MinImportance || n > model.MaxImportance {
		return 0, false
	}
	return n, true
}

// ParseKeywords splits a comma-separated keyword reply into a lowercase set.
func ParseKeywords(resp string) []string {
	if llm.IsFailure(resp) {
		return nil
	}
	var out []string
	seen := map[string]bool{}
	for _, part := range strings.Split(resp, ",") {
		kw := strings.ToLower(strings.Trim(strings.TrimSpace(part), `."'`))
		if kw == "" || seen[kw] {
			continue
		}
		seen[kw] = true
		out = append(out, kw)
	}
	return out
}

// ReflectionPending reports whether accumulated importance crossed the threshold
// since the last acknowledgement.
func (s *Store) ReflectionPending() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.reflectionPending
}

// AcknowledgeReflection clears the pending flag.
func (s *Store) AcknowledgeReflection() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reflectionPending = false
}

// KeywordStrength is the summed importance of every memory indexed under kw.
func (s *Store) KeywordStrength(kw string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.strength[strings.ToLower(kw)]
}

// ByKeyword returns the memories of kind indexed under kw, oldest first.
func (s *Store) ByKeyword(kind model.Kind, kw string) []model.Memory {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return values(s.index[kind][strings.ToLower(kw)])
}

// Len is the number of stored memories.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.all)
}

// All returns every memory in insertion order.
func (s *Store) All() []model.Memory {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return values(s.all)
}

func values(ms []*model.Memory) []model.Memory {
	out := make([]model.Memory, len(ms))
	for i, m := range ms {
		out[i] = m.Clone()
	}
	return out
}
