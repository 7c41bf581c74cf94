// Package cli implements the npc-mind CLI commands.
package cli

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rcliao/npc-mind/internal/config"
	"github.com/rcliao/npc-mind/internal/store"
)

var (
	configPath string
	dbPath     string
	formatFlag string
	logLevel   string

	cfg *config.Config
)

// RootCmd is the top-level command.
var RootCmd = &cobra.Command{
	Use:   "npc-mind",
	Short: "Memory, planning and conversation for simulated characters",
	Long: "npc-mind gives simulated characters a memory stream, a daily plan that breaks down into " +
		"minute-scale steps, reactions to what they observe, and conversations. " +
		"Memories are journaled to SQLite, one namespace per character.",
	SilenceUsage: true,
}

func init() {
	RootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file (default: ./npc-mind.yaml or ~/.npc-mind/config.yaml)")
	RootCmd.PersistentFlags().StringVarP(&dbPath, "db", "d", "", "Database path (default: $NPC_MIND_MEMORY_DB or ~/.npc-mind/memory.db)")
	RootCmd.PersistentFlags().StringVarP(&formatFlag, "format", "f", "json", "Output format: json or text")
	RootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error (default from config)")
}

// loadConfig reads configuration once and installs the logger it asks for.
func loadConfig() *config.Config {
	if cfg != nil {
		return cfg
	}
	c, err := config.Load(configPath)
	if err != nil {
		exitErr("load config", err)
	}
	if dbPath != "" {
		c.Memory.DB = dbPath
	}
	if logLevel != "" {
		c.Log.Level = logLevel
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: parseLevel(c.Log.Level)})))
	cfg = c
	return cfg
}

func parseLevel(s string) slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.ToUpper(strings.TrimSpace(s)))); err != nil {
		return slog.LevelInfo
	}
	return l
}

func openStore() (*store.SQLiteStore, error) {
	return store.NewSQLiteStore(loadConfig().Memory.DB)
}

func textOutput() bool {
	return formatFlag == "text"
}

func exitErr(msg string, err error) {
	fmt.Fprintf(os.Stderr, "error: %s: %v\n", msg, err)
	os.Exit(1)
}
