// Package sim steps a group of agents through simulated time in lock step.
package sim

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/rcliao/npc-mind/internal/agent"
	"github.com/rcliao/npc-mind/internal/clock"
)

// DefaultStep is how far the clock moves between ticks.
const DefaultStep = 15 * time.Minute

// Objects lists what can be used at a location.
type Objects interface {
	ObjectsAt(location string) []string
}

// Runner advances a manual clock and ticks every agent at each step. Agents
// tick concurrently; each agent's own calls stay sequential.
type Runner struct {
	ID string

	clock    *clock.Manual
	agents   []*agent.Agent
	world    Objects
	step     time.Duration
	limit    int
	observer func(agent.Step)
	logger   *slog.Logger

	mu       sync.Mutex
	timeline []agent.Step
}

// Option configures a Runner.
type Option func(*Runner)

// WithStep sets the clock increment between ticks.
func WithStep(d time.Duration) Option {
	return func(r *Runner) {
		if d > 0 {
			r.step = d
		}
	}
}

// WithConcurrency caps how many agents tick at once. Zero means no cap.
func WithConcurrency(n int) Option { return func(r *Runner) { r.limit = n } }

// WithObserver is called with every agent step, in agent order.
func WithObserver(fn func(agent.Step)) Option { return func(r *Runner) { r.observer = fn } }

// WithWorld lets agents perceive the objects at their location after each tick.
func WithWorld(w Objects) Option { return func(r *Runner) { r.world = w } }

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option { return func(r *Runner) { r.logger = l } }

// New creates a runner over agents.
func New(clk *clock.Manual, agents []*agent.Agent, opts ...Option) *Runner {
	r := &Runner{
		ID:     uuid.NewString(),
		clock:  clk,
		agents: agents,
		step:   DefaultStep,
		logger: slog.Default(),
	}
	for _, o := range opts {
		o(r)
	}
	r.logger = r.logger.With("run", r.ID)
	return r
}

// Step ticks every agent once at the current time, then lets agents that
// share a location perceive each other and their surroundings.
func (r *Runner) Step(ctx context.Context) ([]agent.Step, error) {
	steps := make([]agent.Step, len(r.agents))
	if err := r.each(ctx, func(ctx context.Context, i int, a *agent.Agent) error {
		s, err := a.Tick(ctx)
		if err != nil {
			return fmt.Errorf("tick %s: %w", a.Name, err)
		}
		steps[i] = s
		return nil
	}); err != nil {
		return nil, err
	}

	byLocation := map[string][]string{}
	for _, s := range steps {
		if s.Location != "" {
			byLocation[s.Location] = append(byLocation[s.Location], s.Agent)
		}
	}
	if err := r.each(ctx, func(ctx context.Context, i int, a *agent.Agent) error {
		loc := steps[i].Location
		if loc == "" {
			return nil
		}
		var objects []string
		if r.world != nil {
			objects = r.world.ObjectsAt(loc)
		}
		if _, err := a.Perceive(ctx, objects, byLocation[loc]); err != nil {
			return fmt.Errorf("perceive %s: %w", a.Name, err)
		}
		return nil
	}); err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.timeline = append(r.timeline, steps...)
	r.mu.Unlock()
	if r.observer != nil {
		for _, s := range steps {
			r.observer(s)
		}
	}
	return steps, nil
}

func (r *Runner) each(ctx context.Context, fn func(context.Context, int, *agent.Agent) error) error {
	g, gctx := errgroup.WithContext(ctx)
	if r.limit > 0 {
		g.SetLimit(r.limit)
	}
	for i, a := range r.agents {
		g.Go(func() error { return fn(gctx, i, a) })
	}
	return g.Wait()
}

// Run performs n steps, advancing the clock between them.
func (r *Runner) Run(ctx context.Context, n int) ([]agent.Step, error) {
	r.logger.Info("simulation started", "agents", len(r.agents), "steps", n, "step", r.step, "at", r.clock.Now())
	var out []agent.Step
	for i := 0; i < n; i++ {
		if i > 0 {
			r.clock.Advance(r.step)
		}
		steps, err := r.Step(ctx)
		if err != nil {
			return out, err
		}
		out = append(out, steps...)
	}
	r.logger.Info("simulation finished", "at", r.clock.Now(), "steps", len(out))
	return out, nil
}

// Timeline returns every step recorded so far.
func (r *Runner) Timeline() []agent.Step {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]agent.Step(nil), r.timeline...)
}
