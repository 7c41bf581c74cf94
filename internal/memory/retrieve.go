package memory

import (
	"context"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/rcliao/npc-mind/internal/clock"
	"github.com/rcliao/npc-mind/internal/embedding"
	"github.com/rcliao/npc-mind/internal/model"
)

// Weights balance the three retrieval signals.
type Weights struct {
	Recency    float64 `json:"recency" mapstructure:"recency"`
	Importance float64 `json:"importance" mapstructure:"importance"`
	Relevance  float64 `json:"relevance" mapstructure:"relevance"`
}

// DefaultWeights weigh every signal equally.
var DefaultWeights = Weights{Recency: 1, Importance: 1, Relevance: 1}

// DefaultDecayRate is the recency multiplier applied per elapsed hour.
const DefaultDecayRate = 0.99

// keywordHit is the relevance added per memory keyword found in the query.
const keywordHit = 0.3

// Scored is a memory with its retrieval score and the signals behind it.
type Scored struct {
	model.Memory
	Score      float64 `json:"score"`
	Recency    float64 `json:"recency"`
	Relevance  float64 `json:"relevance"`
	Similarity float64 `json:"similarity,omitempty"`
}

// RetrieveRelevant returns at most topK memories ranked by
// w_r*recency + w_i*importance/10 + w_c*keywordOverlap.
func (s *Store) RetrieveRelevant(query string, topK int) []model.Memory {
	scored := s.RetrieveScored(query, topK)
	out := make([]model.Memory, len(scored))
	for i, sc := range scored {
		out[i] = sc.Memory
	}
	return out
}

// RetrieveScored is RetrieveRelevant with the score breakdown kept.
func (s *Store) RetrieveScored(query string, topK int) []Scored {
	if topK <= 0 {
		return nil
	}
	now := s.clock.Now()
	q := strings.ToLower(query)

	s.mu.RLock()
	scored := make([]Scored, 0, len(s.all))
	for _, m := range s.all {
		rec := Recency(now, m.CreatedAt, s.decay)
		rel := KeywordOverlap(q, m.Keywords)
		score := s.weights.Recency*rec +
			s.weights.Importance*float64(m.Importance)/10 +
			s.weights.Relevance*rel
		scored = append(scored, Scored{Memory: m.Clone(), Score: score, Recency: rec, Relevance: rel})
	}
	s.mu.RUnlock()

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})
	if len(scored) > topK {
		scored = scored[:topK]
	}
	return scored
}

// Recency is decay^hoursElapsed with hours floored; future timestamps count as now.
func Recency(now, created time.Time, decay float64) float64 {
	hours := math.Floor(now.Sub(created).Hours())
	if hours < 0 {
		hours = 0
	}
	return math.Pow(decay, hours)
}

// KeywordOverlap adds 0.3 per keyword contained in the lowercased query,
// clipped to [0,1].
func KeywordOverlap(lowerQuery string, keywords []string) float64 {
	if lowerQuery == "" {
		return 0
	}
	var rel float64
	for _, kw := range keywords {
		if kw != "" && strings.Contains(lowerQuery, strings.ToLower(kw)) {
			rel += keywordHit
		}
	}
	return math.Min(rel, 1)
}

// RetrieveSimilar ranks embedded memories by cosine similarity to the
// query's embedding. It returns nil when the query cannot be embedded.
func (s *Store) RetrieveSimilar(ctx context.Context, query string, topK int) []Scored {
	if topK <= 0 {
		return nil
	}
	qv := s.gw.Embed(ctx, query)
	if qv == nil {
		return nil
	}

	s.mu.RLock()
	var scored []Scored
	for _, m := range s.all {
		if m.Embedding == nil {
			continue
		}
		sim := embedding.CosineSimilarity(qv, m.Embedding)
		scored = append(scored, Scored{Memory: m.Clone(), Score: sim, Similarity: sim})
	}
	s.mu.RUnlock()

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})
	if len(scored) > topK {
		scored = scored[:topK]
	}
	return scored
}

// RetrieveRecent returns the n newest memories.
func (s *Store) RetrieveRecent(n int) []model.Memory {
	out := s.filterNewestFirst(func(*model.Memory) bool { return true })
	if n < 0 {
		n = 0
	}
	if len(out) > n {
		out = out[:n]
	}
	return out
}

// RetrieveToday returns memories created on the clock's current date, newest first.
func (s *Store) RetrieveToday() []model.Memory {
	now := s.clock.Now()
	return s.filterNewestFirst(func(m *model.Memory) bool {
		return clock.SameDay(now, m.CreatedAt)
	})
}

// RetrieveInRange returns memories with start <= created <= end, newest first.
func (s *Store) RetrieveInRange(start, end time.Time) []model.Memory {
	return s.filterNewestFirst(func(m *model.Memory) bool {
		return !m.CreatedAt.Before(start) && !m.CreatedAt.After(end)
	})
}

// filterNewestFirst sorts by timestamp descending; equal timestamps list the
// later insertion first.
func (s *Store) filterNewestFirst(keep func(*model.Memory) bool) []model.Memory {
	s.mu.RLock()
	var out []model.Memory
	for i := len(s.all) - 1; i >= 0; i-- {
		if keep(s.all[i]) {
			out = append(out, s.all[i].Clone())
		}
	}
	s.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}
