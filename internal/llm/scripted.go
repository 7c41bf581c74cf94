package llm

import (
	"context"
	"strings"
	"sync"

	"github.com/rcliao/npc-mind/internal/embedding"
)

// Rule answers any prompt containing Match (case-insensitive) with Reply.
type Rule struct {
	Match string
	Reply string
}

// Scripted is an offline backend. It answers prompts from an ordered rule
// list and produces hashed bag-of-words embeddings. It records every prompt
// it sees.
type Scripted struct {
	mu       sync.Mutex
	rules    []Rule
	fallback string
	dims     int
	prompts  []string
}

// NewScripted creates a scripted backend. Rules are matched in order.
func NewScripted(fallback string, rules ...Rule) *Scripted {
	return &Scripted{rules: rules, fallback: fallback, dims: 64}
}

// Add appends a rule.
func (s *Scripted) Add(match, reply string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rules = append(s.rules, Rule{Match: match, Reply: reply})
}

// Prompts returns the prompts seen so far.
func (s *Scripted) Prompts() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.prompts...)
}

func (s *Scripted) Complete(ctx context.Context, req Request) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prompts = append(s.prompts, req.Prompt)
	lower := strings.ToLower(req.Prompt)
	for _, r := range s.rules {
		if strings.Contains(lower, strings.ToLower(r.Match)) {
			return r.Reply, nil
		}
	}
	return s.fallback, nil
}

func (s *Scripted) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return embedding.Hashed(text, s.dims), nil
}

// DemoRules script a plausible day for offline runs of the CLI.
func DemoRules() []Rule {
	return []Rule{
		{Match: "rate how important", Reply: "4"},
		{Match: "keywords", Reply: "day, routine, people"},
		{Match: "what hour", Reply: "7"},
		{Match: "goals for today", Reply: "1. Finish the morning chores\n2. Study for two hours\n3. Visit a friend\n4. Rest early"},
		{Match: "hourly schedule", Reply: "07:00 | wake up and wash | Home:Bedroom\n08:00 | breakfast | Home:Kitchen\n09:00 | study | Library:Hall\n12:00 | lunch | Cafe:Counter\n13:00 | study | Library:Hall\n18:00 | dinner | Home:Kitchen\n22:00 | sleep | Home:Bedroom"},
		{Match: "break the activity", Reply: "15 | get ready | null\n30 | focus on the activity | null\n15 | tidy up | null"},
		{Match: "should you react", Reply: "NO | keep going"},
		{Match: "summarize", Reply: "We chatted briefly about the day."},
		{Match: "reply in character", Reply: "Good to see you. It has been a busy day, but I always have time to talk."},
	}
}
