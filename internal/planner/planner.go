// Package planner turns an agent's persona, memories and surroundings into a
// daily schedule, breaks the current hour into minute-scale steps, and lets
// observations interrupt those steps.
//
// All reasoning happens in the language model. The planner builds prompts,
// parses replies with a default for every failure, and owns the sub-action
// queue so callers can only change it through Decompose, GetNextSubAction and
// Interrupt.
package planner

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/rcliao/npc-mind/internal/clock"
	"github.com/rcliao/npc-mind/internal/llm"
	"github.com/rcliao/npc-mind/internal/model"
)

// State is the planner's position in its daily cycle.
type State int

const (
	Idle State = iota
	PlanningDaily
	PlanReady
	Decomposing
	ExecutingSubAction
	Reacting
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case PlanningDaily:
		return "planning-daily"
	case PlanReady:
		return "plan-ready"
	case Decomposing:
		return "decomposing"
	case ExecutingSubAction:
		return "executing-sub-action"
	case Reacting:
		return "reacting"
	}
	return "unknown"
}

var (
	// ErrPlanningInFlight is returned when a daily plan is already being generated.
	ErrPlanningInFlight = errors.New("daily plan generation already in flight")
	// ErrStale is returned by Decompose when an Interrupt landed while the
	// model was answering; the result was dropped.
	ErrStale = errors.New("decomposition superseded by interrupt")
)

// DefaultUrgentMinutes is the duration given to an interrupting sub-action.
const DefaultUrgentMinutes = 10

// Persona describes who is planning.
type Persona struct {
	Name        string
	Description string
	Goal        string
}

// Memories supplies recent memories for prompts.
type Memories interface {
	RetrieveRecent(n int) []model.Memory
}

// Summaries supplies the current conversation summary.
type Summaries interface {
	Summary() string
}

// World lists the places an agent may schedule.
type World interface {
	LocationNames() []string
}

// DailyPlan is the result of CreateDailyPlan.
type DailyPlan struct {
	Date     time.Time        `json:"date"`
	WakeHour int              `json:"wake_hour"`
	Goals    []string         `json:"goals"`
	Schedule []model.PlanItem `json:"schedule"`
}

func (d DailyPlan) clone() DailyPlan {
	d.Goals = append([]string(nil), d.Goals...)
	d.Schedule = append([]model.PlanItem(nil), d.Schedule...)
	return d
}

// Planner is the per-agent planning state machine.
type Planner struct {
	gw            llm.Gateway
	clock         clock.Clock
	persona       Persona
	memories      Memories
	summaries     Summaries
	world         World
	urgentMinutes int
	logger        *slog.Logger

	mu         sync.Mutex
	state      State
	planning   bool
	plan       *DailyPlan
	queue      []model.SubPlanItem
	current    *model.SubPlanItem
	startedAt  time.Time
	generation uint64
	location   string
}

// Option configures a Planner.
type Option func(*Planner)

// WithMemories supplies recent memories to goal prompts.
func WithMemories(m Memories) Option { return func(p *Planner) { p.memories = m } }

// WithSummaries supplies the conversation summary to goal prompts.
func WithSummaries(s Summaries) Option { return func(p *Planner) { p.summaries = s } }

// WithUrgentMinutes sets the duration of interrupting sub-actions.
func WithUrgentMinutes(n int) Option {
	return func(p *Planner) {
		if n > 0 {
			p.urgentMinutes = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option { return func(p *Planner) { p.logger = l } }

// New creates an idle planner.
func New(gw llm.Gateway, clk clock.Clock, persona Persona, world World, opts ...Option) *Planner {
	p := &Planner{
		gw:            gw,
		clock:         clk,
		persona:       persona,
		world:         world,
		urgentMinutes: DefaultUrgentMinutes,
		logger:        slog.Default(),
	}
	for _, o := range opts {
		o(p)
	}
	p.logger = p.logger.With("agent", persona.Name)
	return p
}

// State reports the current state.
func (p *Planner) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Plan returns the last generated plan, if any.
func (p *Planner) Plan() (DailyPlan, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.plan == nil {
		return DailyPlan{}, false
	}
	return p.plan.clone(), true
}

// ShouldReplan is true when no plan exists, the plan is for another date, or
// its schedule is empty.
func (p *Planner) ShouldReplan(now time.Time) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.plan == nil || !clock.SameDay(p.plan.Date, now) || len(p.plan.Schedule) == 0
}

// Planning reports whether a daily plan is being generated.
func (p *Planner) Planning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.planning
}

// GetCurrentActivity returns the schedule entry covering now's hour.
func (p *Planner) GetCurrentActivity(now time.Time) (model.PlanItem, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.plan == nil {
		return model.PlanItem{}, false
	}
	return activityAt(p.plan.Schedule, now.Hour())
}

func activityAt(schedule []model.PlanItem, hour int) (model.PlanItem, bool) {
	for _, item := range schedule {
		if item.Contains(hour) {
			return item, true
		}
	}
	return model.PlanItem{}, false
}

// AssignTarget records which object satisfies the schedule entry starting at
// startHour.
func (p *Planner) AssignTarget(startHour int, object string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.plan == nil {
		return false
	}
	for i := range p.plan.Schedule {
		if p.plan.Schedule[i].StartHour == startHour {
			p.plan.Schedule[i].TargetObject = object
			return true
		}
	}
	return false
}

// SetLocation tells the planner where the agent is, for reaction prompts.
func (p *Planner) SetLocation(name string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.location = name
}

// Location is the last location set.
func (p *Planner) Location() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.location
}

// GetNextSubAction dequeues the next step and makes it current.
func (p *Planner) GetNextSubAction() (model.SubPlanItem, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.queue) == 0 {
		p.current = nil
		p.startedAt = time.Time{}
		if p.plan != nil {
			p.state = PlanReady
		}
		return model.SubPlanItem{}, false
	}
	next := p.queue[0]
	p.queue = p.queue[1:]
	p.current = &next
	p.startedAt = p.clock.Now()
	p.state = ExecutingSubAction
	return next, true
}

// Current is the step being executed, if any.
func (p *Planner) Current() (model.SubPlanItem, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current == nil {
		return model.SubPlanItem{}, false
	}
	return *p.current, true
}

// CurrentDone reports whether the current step has run its duration. With no
// current step it is true.
func (p *Planner) CurrentDone(now time.Time) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current == nil {
		return true
	}
	return now.Sub(p.startedAt) >= time.Duration(p.current.DurationMinutes)*time.Minute
}

// Pending returns a copy of the queued steps.
func (p *Planner) Pending() []model.SubPlanItem {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]model.SubPlanItem(nil), p.queue...)
}

// Interrupt drops every queued step and the current step's timer, and
// queues one urgent step. Any Decompose still waiting on the model will have
// its result discarded.
func (p *Planner) Interrupt(description string) model.SubPlanItem {
	p.mu.Lock()
	defer p.mu.Unlock()
	dropped := len(p.queue)
	p.generation++
	p.current = nil
	p.startedAt = time.Time{}
	urgent := model.SubPlanItem{
		Description:     description,
		DurationMinutes: p.urgentMinutes,
		Urgent:          true,
	}
	p.queue = []model.SubPlanItem{urgent}
	p.state = ExecutingSubAction
	p.logger.Info("interrupted", "action", description, "discarded", dropped)
	return urgent
}
