// Package config loads npc-mind settings. NPC_MIND_* environment variables
// override the YAML file, which overrides built-in defaults.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/rcliao/npc-mind/internal/clock"
	"github.com/rcliao/npc-mind/internal/llm"
	"github.com/rcliao/npc-mind/internal/memory"
	"github.com/rcliao/npc-mind/internal/world"
)

// EnvPrefix prefixes every environment override, e.g. NPC_MIND_LLM_PROVIDER.
const EnvPrefix = "NPC_MIND"

// Providers understood by llm.provider.
const (
	ProviderScripted = "scripted"
	ProviderOpenAI   = "openai"
	ProviderOllama   = "ollama"
)

type Config struct {
	LLM          LLMConfig          `mapstructure:"llm"`
	Memory       MemoryConfig       `mapstructure:"memory"`
	Conversation ConversationConfig `mapstructure:"conversation"`
	Planner      PlannerConfig      `mapstructure:"planner"`
	Agent        AgentConfig        `mapstructure:"agent"`
	World        WorldConfig        `mapstructure:"world"`
	Clock        ClockConfig        `mapstructure:"clock"`
	Log          LogConfig          `mapstructure:"log"`
	Agents       []AgentSpec        `mapstructure:"agents"`
}

type LLMConfig struct {
	Provider       string        `mapstructure:"provider"`
	BaseURL        string        `mapstructure:"base_url"`
	ChatModel      string        `mapstructure:"chat_model"`
	EmbeddingModel string        `mapstructure:"embedding_model"`
	ChatCooldown   time.Duration `mapstructure:"chat_cooldown"`
	EmbedCooldown  time.Duration `mapstructure:"embed_cooldown"`
	ChatAttempts   int           `mapstructure:"chat_attempts"`
	EmbedAttempts  int           `mapstructure:"embed_attempts"`
	ChatBackoff    time.Duration `mapstructure:"chat_backoff"`
	EmbedBackoff   time.Duration `mapstructure:"embed_backoff"`
	MaxBackoff     time.Duration `mapstructure:"max_backoff"`

	// APIKey comes from OPENAI_API_KEY only; it is never read from a file.
	APIKey string `mapstructure:"-"`
}

type MemoryConfig struct {
	DB                  string         `mapstructure:"db"`
	DecayRate           float64        `mapstructure:"decay_rate"`
	Weights             memory.Weights `mapstructure:"weights"`
	ReflectionThreshold int            `mapstructure:"reflection_threshold"`
}

type ConversationConfig struct {
	Capacity int `mapstructure:"capacity"`
}

type PlannerConfig struct {
	UrgentMinutes int `mapstructure:"urgent_minutes"`
}

type AgentConfig struct {
	ReactionKeywords []string `mapstructure:"reaction_keywords"`
}

type WorldConfig struct {
	File      string           `mapstructure:"file"`
	Locations []world.Location `mapstructure:"locations"`
}

type ClockConfig struct {
	// Start is "HH:MM" (today) or an RFC 3339 timestamp; empty means 08:00 today.
	Start string  `mapstructure:"start"`
	Scale float64 `mapstructure:"scale"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

// AgentSpec describes one simulated character.
type AgentSpec struct {
	Name    string `mapstructure:"name"`
	Persona string `mapstructure:"persona"`
	Goal    string `mapstructure:"goal"`
}

// DefaultLocations is the world used when neither world.file nor
// world.locations is set.
var DefaultLocations = []world.Location{
	{Name: "Home:Bedroom", Objects: []string{"bed", "wardrobe"}},
	{Name: "Home:Kitchen", Objects: []string{"stove", "fridge", "table"}},
	{Name: "Library:Hall", Objects: []string{"bookshelf", "desk"}},
	{Name: "Cafe:Counter", Objects: []string{"coffee machine"}},
}

// DefaultAgents are simulated when no agents are configured.
var DefaultAgents = []AgentSpec{
	{Name: "Mina", Persona: "Mina is a diligent university student who loves quiet mornings.", Goal: "Pass the spring exams"},
	{Name: "Bob", Persona: "Bob is a friendly barista who knows everyone in town.", Goal: "Save up to open his own cafe"},
}

func setDefaults(v *viper.Viper) {
	home, _ := os.UserHomeDir()

	v.SetDefault("llm.provider", ProviderScripted)
	v.SetDefault("llm.base_url", "")
	v.SetDefault("llm.chat_model", "")
	v.SetDefault("llm.embedding_model", "")
	v.SetDefault("llm.chat_cooldown", llm.DefaultChatPolicy.Cooldown)
	v.SetDefault("llm.embed_cooldown", llm.DefaultEmbedPolicy.Cooldown)
	v.SetDefault("llm.chat_attempts", llm.DefaultChatPolicy.Attempts)
	v.SetDefault("llm.embed_attempts", llm.DefaultEmbedPolicy.Attempts)
	v.SetDefault("llm.chat_backoff", llm.DefaultChatPolicy.InitialBackoff)
	v.SetDefault("llm.embed_backoff", llm.DefaultEmbedPolicy.InitialBackoff)
	v.SetDefault("llm.max_backoff", llm.DefaultChatPolicy.MaxBackoff)

	v.SetDefault("memory.db", filepath.Join(home, ".npc-mind", "memory.db"))
	v.SetDefault("memory.decay_rate", memory.DefaultDecayRate)
	v.SetDefault("memory.weights.recency", memory.DefaultWeights.Recency)
	v.SetDefault("memory.weights.importance", memory.DefaultWeights.Importance)
	v.SetDefault("memory.weights.relevance", memory.DefaultWeights.Relevance)
	v.SetDefault("memory.reflection_threshold", memory.DefaultReflectionThreshold)

	v.SetDefault("conversation.capacity", 10)
	v.SetDefault("planner.urgent_minutes", 10)
	v.SetDefault("agent.reaction_keywords", []string{})
	v.SetDefault("world.file", "")
	v.SetDefault("clock.start", "")
	v.SetDefault("clock.scale", 60.0)
	v.SetDefault("log.level", "info")
}

// Load reads configuration. An explicit path must exist; otherwise
// ./npc-mind.yaml and ~/.npc-mind/config.yaml are tried and a missing file
// is not an error.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	} else {
		v.SetConfigName("npc-mind")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".npc-mind"))
		}
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.LLM.APIKey = os.Getenv("OPENAI_API_KEY")

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for errors and fills in derived defaults.
func (c *Config) Validate() error {
	switch c.LLM.Provider {
	case ProviderScripted, ProviderOllama:
	case ProviderOpenAI:
		if c.LLM.APIKey == "" && c.LLM.BaseURL == "" {
			return fmt.Errorf("config: llm.provider openai requires OPENAI_API_KEY or llm.base_url")
		}
	default:
		return fmt.Errorf("config: llm.provider %q is invalid (must be scripted, openai or ollama)", c.LLM.Provider)
	}
	if c.Memory.DecayRate <= 0 || c.Memory.DecayRate > 1 {
		return fmt.Errorf("config: memory.decay_rate must be in (0, 1], got %v", c.Memory.DecayRate)
	}
	if c.Clock.Scale <= 0 {
		return fmt.Errorf("config: clock.scale must be positive, got %v", c.Clock.Scale)
	}
	if _, err := c.StartTime(); err != nil {
		return err
	}
	seen := map[string]bool{}
	for i, a := range c.Agents {
		if strings.TrimSpace(a.Name) == "" {
			return fmt.Errorf("config: agents[%d] has no name", i)
		}
		key := strings.ToLower(a.Name)
		if seen[key] {
			return fmt.Errorf("config: agent %q is listed twice", a.Name)
		}
		seen[key] = true
	}
	if len(c.Agents) == 0 {
		c.Agents = append([]AgentSpec(nil), DefaultAgents...)
	}
	if c.World.File == "" && len(c.World.Locations) == 0 {
		c.World.Locations = append([]world.Location(nil), DefaultLocations...)
	}
	if c.Conversation.Capacity < 1 {
		c.Conversation.Capacity = 10
	}
	return nil
}

// StartTime is the simulated clock's starting time.
func (c *Config) StartTime() (time.Time, error) {
	s := strings.TrimSpace(c.Clock.Start)
	if s == "" {
		return clock.Morning(8), nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	hm, err := time.Parse("15:04", s)
	if err != nil {
		return time.Time{}, fmt.Errorf("config: clock.start %q is neither HH:MM nor RFC 3339", s)
	}
	day := clock.Morning(0)
	return day.Add(time.Duration(hm.Hour())*time.Hour + time.Duration(hm.Minute())*time.Minute), nil
}

// ChatPolicy is the pacing policy for completions.
func (c *Config) ChatPolicy() llm.Policy {
	return llm.Policy{
		Cooldown:       c.LLM.ChatCooldown,
		Attempts:       c.LLM.ChatAttempts,
		InitialBackoff: c.LLM.ChatBackoff,
		MaxBackoff:     c.LLM.MaxBackoff,
	}
}

// EmbedPolicy is the pacing policy for embeddings.
func (c *Config) EmbedPolicy() llm.Policy {
	return llm.Policy{
		Cooldown:       c.LLM.EmbedCooldown,
		Attempts:       c.LLM.EmbedAttempts,
		InitialBackoff: c.LLM.EmbedBackoff,
		MaxBackoff:     c.LLM.MaxBackoff,
	}
}

// FindAgent looks up a configured agent by name, case-insensitively.
func (c *Config) FindAgent(name string) (AgentSpec, bool) {
	for _, a := range c.Agents {
		if strings.EqualFold(a.Name, name) {
			return a, true
		}
	}
	return AgentSpec{}, false
}
