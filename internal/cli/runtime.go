package cli

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/rcliao/npc-mind/internal/agent"
	"github.com/rcliao/npc-mind/internal/clock"
	"github.com/rcliao/npc-mind/internal/config"
	"github.com/rcliao/npc-mind/internal/conversation"
	"github.com/rcliao/npc-mind/internal/llm"
	"github.com/rcliao/npc-mind/internal/memory"
	"github.com/rcliao/npc-mind/internal/planner"
	"github.com/rcliao/npc-mind/internal/store"
	"github.com/rcliao/npc-mind/internal/world"
)

// agentNS is the store namespace holding an agent's journal.
func agentNS(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

func newGateway(c *config.Config) llm.Gateway {
	var backend llm.Backend
	chat, embed := c.ChatPolicy(), c.EmbedPolicy()
	switch c.LLM.Provider {
	case config.ProviderOpenAI:
		backend = llm.NewOpenAIBackend(c.LLM.APIKey, c.LLM.BaseURL, c.LLM.ChatModel, c.LLM.EmbeddingModel)
	case config.ProviderOllama:
		backend = llm.NewOllamaBackend(c.LLM.BaseURL, c.LLM.ChatModel, c.LLM.EmbeddingModel)
	default:
		// Nothing remote to pace.
		backend = llm.NewScripted("", llm.DemoRules()...)
		chat.Cooldown, embed.Cooldown = 0, 0
	}
	return llm.NewClient(backend,
		llm.WithChatPolicy(chat),
		llm.WithEmbedPolicy(embed),
		llm.WithLogger(slog.Default()),
	)
}

// loadWorld returns the configured world. The *world.File is nil unless the
// world comes from world.file.
func loadWorld(c *config.Config) (*world.Static, *world.File, error) {
	if c.World.File != "" {
		f, err := world.Load(c.World.File)
		if err != nil {
			return nil, nil, err
		}
		return f.Static, f, nil
	}
	return world.NewStatic(c.World.Locations...), nil, nil
}

// buildAgent creates the named agent, restoring its journal from s.
func buildAgent(ctx context.Context, c *config.Config, s store.Store, gw llm.Gateway, clk clock.Clock, w agent.World, name string) (*agent.Agent, error) {
	spec, ok := c.FindAgent(name)
	if !ok {
		return nil, fmt.Errorf("no agent named %q in config", name)
	}
	journal := store.NewJournal(s, agentNS(spec.Name))
	memories, knowledge, err := journal.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load journal for %s: %w", spec.Name, err)
	}

	persona := planner.Persona{Name: spec.Name, Description: spec.Persona, Goal: spec.Goal}
	return agent.New(ctx, gw, clk, w, persona,
		agent.WithHistory(memories, knowledge),
		agent.WithMemoryOptions(
			memory.WithJournal(journal),
			memory.WithDecayRate(c.Memory.DecayRate),
			memory.WithWeights(c.Memory.Weights),
			memory.WithReflectionThreshold(c.Memory.ReflectionThreshold),
		),
		agent.WithConversationOptions(conversation.WithCapacity(c.Conversation.Capacity)),
		agent.WithPlannerOptions(planner.WithUrgentMinutes(c.Planner.UrgentMinutes)),
		agent.WithReactionKeywords(c.Agent.ReactionKeywords...),
		agent.WithLogger(slog.Default()),
	)
}

// agentNames returns names when given, otherwise every configured agent.
func agentNames(c *config.Config, names []string) []string {
	if len(names) > 0 {
		return names
	}
	out := make([]string, len(c.Agents))
	for i, a := range c.Agents {
		out[i] = a.Name
	}
	return out
}

// clockAt returns a manual clock set to at, which is RFC 3339 or HH:MM
// today. Empty means now.
func clockAt(at string) (*clock.Manual, error) {
	at = strings.TrimSpace(at)
	if at == "" {
		return clock.NewManual(time.Now()), nil
	}
	if t, err := time.Parse(time.RFC3339, at); err == nil {
		return clock.NewManual(t), nil
	}
	hm, err := time.Parse("15:04", at)
	if err != nil {
		return nil, fmt.Errorf("--at %q is neither HH:MM nor RFC 3339", at)
	}
	return clock.NewManual(clock.Morning(hm.Hour()).Add(time.Duration(hm.Minute()) * time.Minute)), nil
}
