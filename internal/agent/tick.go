package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rcliao/npc-mind/internal/clock"
	"github.com/rcliao/npc-mind/internal/model"
	"github.com/rcliao/npc-mind/internal/planner"
)

// Step is what an agent was doing after one Tick.
type Step struct {
	Agent     string            `json:"agent"`
	At        time.Time         `json:"at"`
	Activity  model.PlanItem    `json:"activity"`
	SubAction model.SubPlanItem `json:"sub_action"`
	Location  string            `json:"location"`
	Replanned bool              `json:"replanned,omitempty"`
	Started   bool              `json:"started,omitempty"`
}

func (s Step) String() string {
	sub := s.SubAction.Description
	if sub == "" {
		sub = "-"
	}
	return fmt.Sprintf("%s %-8s %s @ %s > %s", s.At.Format("15:04"), s.Agent, s.Activity.Activity, s.Location, sub)
}

// Tick advances the agent to the clock's current time. It plans the day
// when needed, starts the scheduled activity when the hour moves into a new
// entry, and moves through the activity's steps as each one runs its course.
func (a *Agent) Tick(ctx context.Context) (Step, error) {
	now := a.clock.Now()
	step := Step{Agent: a.Name, At: now}

	if a.Planner.ShouldReplan(now) {
		plan, err := a.Planner.CreateDailyPlan(ctx, now)
		switch {
		case errors.Is(err, planner.ErrPlanningInFlight):
			return step, nil
		case err != nil:
			return step, fmt.Errorf("plan day for %s: %w", a.Name, err)
		}
		step.Replanned = true
		if _, err := a.record(ctx, model.KindThought, "My goals for the day: "+strings.Join(plan.Goals, "; "), 0); err != nil {
			return step, err
		}
	}

	item, ok := a.Planner.GetCurrentActivity(now)
	if !ok {
		return step, nil
	}
	step.Activity = item

	if a.startsNewActivity(item, now) {
		step.Started = true
		if err := a.startActivity(ctx, item); err != nil {
			return step, err
		}
	} else if a.Planner.CurrentDone(now) {
		a.Planner.GetNextSubAction()
	}

	step.Location = a.Planner.Location()
	if sub, ok := a.Planner.Current(); ok {
		step.SubAction = sub
	}
	return step, nil
}

func (a *Agent) startsNewActivity(item model.PlanItem, now time.Time) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.activity != nil && clock.SameDay(a.planDate, now) &&
		a.activity.StartHour == item.StartHour && a.activity.Activity == item.Activity {
		return false
	}
	a.activity = &item
	a.planDate = now
	return true
}

func (a *Agent) startActivity(ctx context.Context, item model.PlanItem) error {
	a.logger.Info("starting activity", "activity", item.Activity, "location", item.Location)
	if _, err := a.record(ctx, model.KindThought,
		fmt.Sprintf("%s at %s", item.Activity, item.Location), importanceActivity); err != nil {
		return err
	}
	a.Planner.SetLocation(item.Location)

	steps, err := a.Planner.Decompose(ctx, item, a.world.ObjectsAt(item.Location))
	switch {
	case errors.Is(err, planner.ErrStale), errors.Is(err, planner.ErrPlanningInFlight):
		a.logger.Warn("activity steps not updated", "activity", item.Activity, "err", err)
	case err != nil:
		return fmt.Errorf("decompose %q: %w", item.Activity, err)
	}
	for _, s := range steps {
		if s.TargetObject != "" {
			a.Planner.AssignTarget(item.StartHour, s.TargetObject)
			break
		}
	}
	a.Planner.GetNextSubAction()
	return nil
}
