package memory

import (
	"context"
	"fmt"
	"strings"

	"github.com/rcliao/npc-mind/internal/model"
)

func conceptKey(concept string) string {
	return strings.ToLower(strings.TrimSpace(concept))
}

// AddOrReinforce records a concept. A known concept has its reinforcement
// count incremented; a new one is embedded and stored with count 1.
func (s *Store) AddOrReinforce(ctx context.Context, concept, description string) (model.Knowledge, error) {
	key := conceptKey(concept)

	s.mu.Lock()
	if k, ok := s.knowledge[key]; ok {
		defer s.mu.Unlock()
		return s.reinforceLocked(ctx, k)
	}
	s.mu.Unlock()

	vec := s.gw.Embed(ctx, concept+": "+description)

	s.mu.Lock()
	defer s.mu.Unlock()
	if k, ok := s.knowledge[key]; ok {
		return s.reinforceLocked(ctx, k)
	}
	k := model.Knowledge{
		Concept:            strings.TrimSpace(concept),
		Description:        description,
		Embedding:          vec,
		LearnedAt:          s.clock.Now(),
		ReinforcementCount: 1,
	}
	if s.journal != nil {
		if err := s.journal.SaveKnowledge(ctx, k); err != nil {
			return model.Knowledge{}, fmt.Errorf("journal knowledge: %w", err)
		}
	}
	s.knowledge[key] = &k
	s.knowledgeOrder = append(s.knowledgeOrder, key)
	return k.Clone(), nil
}

func (s *Store) reinforceLocked(ctx context.Context, k *model.Knowledge) (model.Knowledge, error) {
	next := *k
	next.ReinforcementCount++
	if s.journal != nil {
		if err := s.journal.SaveKnowledge(ctx, next); err != nil {
			return k.Clone(), fmt.Errorf("journal knowledge: %w", err)
		}
	}
	*k = next
	return next.Clone(), nil
}

// Knowledge looks up a concept.
func (s *Store) Knowledge(concept string) (model.Knowledge, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	k, ok := s.knowledge[conceptKey(concept)]
	if !ok {
		return model.Knowledge{}, false
	}
	return k.Clone(), true
}

// AllKnowledge returns every concept in the order it was learned.
func (s *Store) AllKnowledge() []model.Knowledge {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Knowledge, 0, len(s.knowledgeOrder))
	for _, key := range s.knowledgeOrder {
		out = append(out, s.knowledge[key].Clone())
	}
	return out
}
