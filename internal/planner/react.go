package planner

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"github.com/rcliao/npc-mind/internal/llm"
)

// DefaultReactionAction is used when the model says YES without naming an action.
const DefaultReactionAction = "React to the observation"

// Reaction is the model's decision about an observation.
type Reaction struct {
	React  bool   `json:"react"`
	Action string `json:"action,omitempty"`
}

const reactionPrompt = `You are %s. %s
You are at %s, currently doing: %s.
You observe: %s

Should you react to this, or keep doing what you are doing? Ignore trivial things.
Answer in the form "YES | new action" or "NO | reason".`

// EvaluateReaction asks the model whether observation warrants changing what
// the agent is doing. It does not change the queue; call Interrupt with the
// action to act on a positive decision.
func (p *Planner) EvaluateReaction(ctx context.Context, observation string) Reaction {
	p.mu.Lock()
	prev := p.state
	p.state = Reacting
	doing := "resting"
	if p.current != nil {
		doing = p.current.Description
	}
	where := p.location
	if where == "" {
		where = "an unknown place"
	}
	p.mu.Unlock()

	prompt := fmt.Sprintf(reactionPrompt, p.persona.Name, p.persona.Description, where, doing, observation)
	r := ParseReaction(p.gw.Complete(ctx, prompt, 0.3, 50))

	p.mu.Lock()
	if p.state == Reacting {
		p.state = prev
	}
	p.mu.Unlock()

	if r.React {
		p.logger.Info("reacting", "observation", observation, "action", r.Action)
	}
	return r
}

// ParseReaction reads "YES | action" or "NO | reason". The decision is the
// first line's text before "|"; only an exact YES, ignoring case and
// punctuation, is a yes.
func ParseReaction(resp string) Reaction {
	if llm.IsFailure(resp) {
		return Reaction{}
	}
	line := strings.SplitN(strings.TrimSpace(resp), "\n", 2)[0]
	decision, action, _ := strings.Cut(line, "|")
	decision = strings.TrimFunc(decision, func(r rune) bool {
		return unicode.IsSpace(r) || unicode.IsPunct(r)
	})
	if !strings.EqualFold(decision, "YES") {
		return Reaction{}
	}
	r := Reaction{React: true, Action: DefaultReactionAction}
	if a := llm.Unquote(action); a != "" {
		r.Action = a
	}
	return r
}
