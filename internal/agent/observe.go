package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/rcliao/npc-mind/internal/model"
	"github.com/rcliao/npc-mind/internal/planner"
)

// Perceive records what the agent notices at its current location. Things
// already noticed there are skipped.
func (a *Agent) Perceive(ctx context.Context, objects, agents []string) ([]model.Memory, error) {
	loc := a.Planner.Location()
	if loc == "" {
		loc = "somewhere"
	}
	var out []model.Memory
	for _, obj := range a.unseen(loc, objects) {
		m, err := a.record(ctx, model.KindEvent, fmt.Sprintf("I see %s at %s", obj, loc), importanceObject)
		if err != nil {
			return out, err
		}
		out = append(out, m)
	}
	for _, other := range a.unseen(loc, agents) {
		if strings.EqualFold(other, a.Name) {
			continue
		}
		m, err := a.record(ctx, model.KindEvent, fmt.Sprintf("I see %s at %s", other, loc), importanceAgent)
		if err != nil {
			return out, err
		}
		out = append(out, m)
	}
	return out, nil
}

func (a *Agent) unseen(loc string, things []string) []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	seen := a.seen[loc]
	if seen == nil {
		seen = map[string]bool{}
		a.seen[loc] = seen
	}
	var out []string
	for _, t := range things {
		key := strings.ToLower(strings.TrimSpace(t))
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, t)
	}
	return out
}

// Observe records an observation and decides whether to react. When
// reaction keywords are configured, observations mentioning none of them are
// recorded without asking the model. A positive decision interrupts the
// current activity.
func (a *Agent) Observe(ctx context.Context, observation string) (planner.Reaction, error) {
	if _, err := a.record(ctx, model.KindEvent, observation, 0); err != nil {
		return planner.Reaction{}, err
	}
	if !a.worthReacting(observation) {
		return planner.Reaction{}, nil
	}

	r := a.Planner.EvaluateReaction(ctx, observation)
	if !r.React {
		return r, nil
	}
	a.Planner.Interrupt(r.Action)
	a.Planner.GetNextSubAction()
	if _, err := a.record(ctx, model.KindThought,
		fmt.Sprintf("I decided to %s after noticing: %s", lowerFirst(r.Action), observation), importanceReaction); err != nil {
		return r, err
	}
	return r, nil
}

func (a *Agent) worthReacting(observation string) bool {
	if len(a.keywords) == 0 {
		return true
	}
	lower := strings.ToLower(observation)
	for _, kw := range a.keywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}
