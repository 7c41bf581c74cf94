// Package agent binds one memory store, conversation buffer and planner to a
// persona and drives them from the simulation: ticking the schedule,
// perceiving surroundings, reacting to observations and talking.
package agent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rcliao/npc-mind/internal/clock"
	"github.com/rcliao/npc-mind/internal/conversation"
	"github.com/rcliao/npc-mind/internal/llm"
	"github.com/rcliao/npc-mind/internal/memory"
	"github.com/rcliao/npc-mind/internal/model"
	"github.com/rcliao/npc-mind/internal/planner"
)

// Importance given to memories the agent records about itself.
const (
	importanceName      = 10
	importancePersona   = 10
	importanceGoal      = 9
	importanceObject    = 3
	importanceAgent     = 5
	importanceActivity  = 6
	importanceEmotion   = 6
	importanceOwnReply  = 6
	importanceHeard     = 7
	importanceReaction  = 7
	importanceLastChat  = 8
	relevantForReply    = 5
	recentTurnsForReply = 6
	replyTemperature    = 0.7
	replyMaxTokens      = 150
	fallbackReply       = "Sorry, I lost my train of thought. What were we talking about?"
)

// World is what an agent needs to know about its surroundings.
type World interface {
	LocationNames() []string
	ObjectsAt(location string) []string
}

// Agent is a single simulated character.
type Agent struct {
	ID   string
	Name string

	Memory       *memory.Store
	Conversation *conversation.Buffer
	Planner      *planner.Planner

	persona  planner.Persona
	gw       llm.Gateway
	clock    clock.Clock
	world    World
	keywords []string
	logger   *slog.Logger

	mu       sync.Mutex
	activity *model.PlanItem
	planDate time.Time
	seen     map[string]map[string]bool
	partner  string
}

type settings struct {
	id        string
	memOpts   []memory.Option
	convOpts  []conversation.Option
	planOpts  []planner.Option
	keywords  []string
	history   []model.Memory
	knowledge []model.Knowledge
	logger    *slog.Logger
}

// Option configures an Agent.
type Option func(*settings)

// WithID overrides the generated agent ID.
func WithID(id string) Option { return func(s *settings) { s.id = id } }

// WithMemoryOptions passes options to the agent's memory store.
func WithMemoryOptions(opts ...memory.Option) Option {
	return func(s *settings) { s.memOpts = append(s.memOpts, opts...) }
}

// WithConversationOptions passes options to the agent's conversation buffer.
func WithConversationOptions(opts ...conversation.Option) Option {
	return func(s *settings) { s.convOpts = append(s.convOpts, opts...) }
}

// WithPlannerOptions passes options to the agent's planner.
func WithPlannerOptions(opts ...planner.Option) Option {
	return func(s *settings) { s.planOpts = append(s.planOpts, opts...) }
}

// WithReactionKeywords limits Observe to observations mentioning one of kws.
// With no keywords every observation is evaluated.
func WithReactionKeywords(kws ...string) Option {
	return func(s *settings) {
		for _, kw := range kws {
			if kw = strings.ToLower(strings.TrimSpace(kw)); kw != "" {
				s.keywords = append(s.keywords, kw)
			}
		}
	}
}

// WithHistory restores previously journaled memories and knowledge. An agent
// with history is not seeded again.
func WithHistory(memories []model.Memory, knowledge []model.Knowledge) Option {
	return func(s *settings) {
		s.history = memories
		s.knowledge = knowledge
	}
}

// WithLogger sets the logger for the agent and its components.
func WithLogger(l *slog.Logger) Option { return func(s *settings) { s.logger = l } }

// New creates an agent and seeds its memory with its name, persona and goal.
func New(ctx context.Context, gw llm.Gateway, clk clock.Clock, w World, persona planner.Persona, opts ...Option) (*Agent, error) {
	st := settings{id: uuid.NewString(), logger: slog.Default()}
	for _, o := range opts {
		o(&st)
	}
	logger := st.logger.With("agent", persona.Name)

	a := &Agent{
		ID:       st.id,
		Name:     persona.Name,
		persona:  persona,
		gw:       gw,
		clock:    clk,
		world:    w,
		keywords: st.keywords,
		logger:   logger,
		seen:     map[string]map[string]bool{},
	}
	memOpts := append([]memory.Option{memory.WithOwner(persona.Name), memory.WithLogger(logger)}, st.memOpts...)
	a.Memory = memory.New(gw, clk, memOpts...)
	convOpts := append([]conversation.Option{conversation.WithLogger(logger)}, st.convOpts...)
	a.Conversation = conversation.New(gw, clk, convOpts...)
	planOpts := append([]planner.Option{
		planner.WithMemories(a.Memory),
		planner.WithSummaries(a.Conversation),
		planner.WithLogger(st.logger),
	}, st.planOpts...)
	a.Planner = planner.New(gw, clk, persona, w, planOpts...)

	if len(st.history) > 0 || len(st.knowledge) > 0 {
		a.Memory.Restore(st.history, st.knowledge)
		logger.Info("restored memories", "memories", len(st.history), "knowledge", len(st.knowledge))
		return a, nil
	}
	if err := a.seed(ctx); err != nil {
		return nil, err
	}
	return a, nil
}

func (a *Agent) seed(ctx context.Context) error {
	seeds := []struct {
		text       string
		importance int
	}{
		{"My name is " + a.persona.Name, importanceName},
		{a.persona.Description, importancePersona},
		{goalText(a.persona.Goal), importanceGoal},
	}
	for _, sd := range seeds {
		if strings.TrimSpace(sd.text) == "" {
			continue
		}
		if _, err := a.Memory.AddMemory(ctx, model.KindThought, sd.text, memory.WithImportance(sd.importance)); err != nil {
			return fmt.Errorf("seed memories for %s: %w", a.Name, err)
		}
	}
	return nil
}

func goalText(goal string) string {
	if goal == "" {
		return ""
	}
	return "My goal is to " + strings.TrimSuffix(lowerFirst(goal), ".")
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}

// Persona returns who the agent is.
func (a *Agent) Persona() planner.Persona { return a.persona }

// Location is where the agent's current activity takes place.
func (a *Agent) Location() string { return a.Planner.Location() }

// Activity is the schedule entry the agent last started.
func (a *Agent) Activity() (model.PlanItem, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.activity == nil {
		return model.PlanItem{}, false
	}
	return *a.activity, true
}

func (a *Agent) record(ctx context.Context, kind model.Kind, text string, importance int) (model.Memory, error) {
	var opts []memory.AddOption
	if importance > 0 {
		opts = append(opts, memory.WithImportance(importance))
	}
	m, err := a.Memory.AddMemory(ctx, kind, text, opts...)
	if err != nil {
		return model.Memory{}, fmt.Errorf("record %s: %w", kind, err)
	}
	return m, nil
}

// UpdateEmotion records how the agent feels.
func (a *Agent) UpdateEmotion(ctx context.Context, emotion string) (model.Memory, error) {
	return a.record(ctx, model.KindThought, "I feel "+emotion, importanceEmotion)
}
