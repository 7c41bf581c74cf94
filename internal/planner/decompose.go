package planner

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode"

	"github.com/rcliao/npc-mind/internal/llm"
	"github.com/rcliao/npc-mind/internal/model"
	"github.com/rcliao/npc-mind/internal/world"
)

const decomposeHeader = `You are %s, currently at %s.
Break the activity "%s" (%d hours from %02d:00) into 3 to 6 concrete steps of 5 to 60 minutes each.
`

const decomposeNoObjects = `There are no usable objects here, so every step's target must be null.
Write one line per step in the form "minutes | description | null".`

const decomposeWithObjects = `Every step's target must be exactly one name from this list, or null if the step needs no object:
%s
Write one line per step in the form "minutes | description | target".`

// Decompose asks the model to break item into minute-scale steps and replaces
// the queue with them. Targets are checked against objects: an unknown target
// is cleared, and with no objects every target is empty. If Interrupt is
// called while the model is answering, the result is dropped and ErrStale
// returned. Decompose refuses to run while a daily plan is being generated.
func (p *Planner) Decompose(ctx context.Context, item model.PlanItem, objects []string) ([]model.SubPlanItem, error) {
	p.mu.Lock()
	if p.planning {
		p.mu.Unlock()
		return nil, ErrPlanningInFlight
	}
	gen := p.generation
	p.state = Decomposing
	p.mu.Unlock()

	prompt := fmt.Sprintf(decomposeHeader, p.persona.Name, item.Location, item.Activity, item.Duration, item.StartHour)
	if len(objects) == 0 {
		prompt += decomposeNoObjects
	} else {
		prompt += fmt.Sprintf(decomposeWithObjects, bulletList(objects))
	}
	steps := ParseSubActions(p.gw.Complete(ctx, prompt, 0.5, 200), objects, p.logger)

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.generation != gen {
		p.logger.Warn("dropping stale decomposition", "activity", item.Activity, "steps", len(steps))
		return nil, ErrStale
	}
	p.queue = steps
	if len(steps) > 0 {
		p.state = ExecutingSubAction
	} else {
		p.state = PlanReady
	}
	return append([]model.SubPlanItem(nil), steps...), nil
}

// ParseSubActions reads "minutes | description | target" lines. Malformed
// lines are logged and skipped. "null" and "none" mean no target; a target
// that does not name one of objects is cleared.
func ParseSubActions(resp string, objects []string, logger *slog.Logger) []model.SubPlanItem {
	if logger == nil {
		logger = slog.Default()
	}
	var steps []model.SubPlanItem
	for _, line := range llm.Lines(resp) {
		line = llm.StripEnumeration(line)
		if line == "" || !unicode.IsDigit(rune(line[0])) {
			logger.Warn("skipping sub-action line", "line", line, "reason", "no leading minutes")
			continue
		}
		parts := strings.Split(line, "|")
		if len(parts) < 2 {
			logger.Warn("skipping sub-action line", "line", line, "reason", "expected minutes | description")
			continue
		}
		minutes, ok := llm.LeadingInt(parts[0])
		if !ok || minutes <= 0 {
			logger.Warn("skipping sub-action line", "line", line, "reason", "bad minutes")
			continue
		}
		desc := strings.TrimSpace(parts[1])
		if desc == "" {
			logger.Warn("skipping sub-action line", "line", line, "reason", "empty description")
			continue
		}
		var target string
		if len(parts) > 2 {
			target = validTarget(llm.Unquote(parts[2]), objects, logger)
		}
		steps = append(steps, model.SubPlanItem{Description: desc, DurationMinutes: minutes, TargetObject: target})
	}
	return steps
}

func validTarget(raw string, objects []string, logger *slog.Logger) string {
	if raw == "" || strings.EqualFold(raw, "null") || strings.EqualFold(raw, "none") {
		return ""
	}
	if len(objects) == 0 {
		logger.Warn("clearing target, no objects here", "target", raw)
		return ""
	}
	resolved, tier := world.Resolve(raw, objects)
	if tier == world.TierNone || tier == world.TierFuzzy {
		logger.Warn("clearing unknown target", "target", raw)
		return ""
	}
	return resolved
}
