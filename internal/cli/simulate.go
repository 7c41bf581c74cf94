package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/rcliao/npc-mind/internal/agent"
	"github.com/rcliao/npc-mind/internal/clock"
	"github.com/rcliao/npc-mind/internal/sim"
)

func init() {
	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Run agents through simulated time",
		Long: "Tick every configured agent (or those given with --agents) on a manual clock. " +
			"Each step advances the clock, plans or decomposes as needed, and lets co-located agents perceive each other.",
		Run: runSimulate,
	}

	cmd.Flags().IntP("steps", "s", 16, "Number of steps")
	cmd.Flags().Duration("step", sim.DefaultStep, "Simulated time per step")
	cmd.Flags().StringSlice("agents", nil, "Agents to simulate (default: all configured)")
	cmd.Flags().Int("concurrency", 0, "Max agents ticking at once (0: unlimited)")
	cmd.Flags().Bool("watch", false, "Reload world.file when it changes")

	RootCmd.AddCommand(cmd)
}

func runSimulate(cmd *cobra.Command, args []string) {
	steps, _ := cmd.Flags().GetInt("steps")
	step, _ := cmd.Flags().GetDuration("step")
	names, _ := cmd.Flags().GetStringSlice("agents")
	concurrency, _ := cmd.Flags().GetInt("concurrency")
	watch, _ := cmd.Flags().GetBool("watch")

	c := loadConfig()
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	s, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	w, file, err := loadWorld(c)
	if err != nil {
		exitErr("load world", err)
	}
	if watch && file != nil {
		go func() {
			if err := file.Watch(ctx, 200*time.Millisecond, slog.Default()); err != nil {
				slog.Warn("world watch stopped", "err", err)
			}
		}()
	}

	start, err := c.StartTime()
	if err != nil {
		exitErr("clock", err)
	}
	clk := clock.NewManual(start)
	gw := newGateway(c)

	var agents []*agent.Agent
	for _, name := range agentNames(c, names) {
		a, err := buildAgent(ctx, c, s, gw, clk, w, name)
		if err != nil {
			exitErr("create agent", err)
		}
		agents = append(agents, a)
	}

	runner := sim.New(clk, agents,
		sim.WithStep(step),
		sim.WithConcurrency(concurrency),
		sim.WithWorld(w),
		sim.WithObserver(func(st agent.Step) {
			if textOutput() {
				fmt.Println(st.String())
			}
		}),
	)
	timeline, err := runner.Run(ctx, steps)
	if err != nil {
		exitErr("simulate", err)
	}
	if textOutput() {
		return
	}
	b, _ := json.MarshalIndent(timeline, "", "  ")
	fmt.Println(string(b))
}
