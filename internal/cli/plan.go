package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rcliao/npc-mind/internal/clock"
	"github.com/rcliao/npc-mind/internal/model"
	"github.com/rcliao/npc-mind/internal/planner"
)

func init() {
	cmd := &cobra.Command{
		Use:   "plan <agent>",
		Short: "Generate an agent's daily plan",
		Long:  "Generate the daily plan for an agent at clock.start. With --decompose, also break the current activity into steps.",
		Args:  cobra.ExactArgs(1),
		Run:   runPlan,
	}

	cmd.Flags().Bool("decompose", false, "Also decompose the activity at the start time")

	RootCmd.AddCommand(cmd)
}

type planOutput struct {
	planner.DailyPlan
	Current  *model.PlanItem     `json:"current,omitempty"`
	Steps    []model.SubPlanItem `json:"steps,omitempty"`
	Location string              `json:"location,omitempty"`
}

func runPlan(cmd *cobra.Command, args []string) {
	decompose, _ := cmd.Flags().GetBool("decompose")

	c := loadConfig()
	ctx := cmd.Context()

	s, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	w, _, err := loadWorld(c)
	if err != nil {
		exitErr("load world", err)
	}
	start, err := c.StartTime()
	if err != nil {
		exitErr("clock", err)
	}
	clk := clock.NewManual(start)
	a, err := buildAgent(ctx, c, s, newGateway(c), clk, w, args[0])
	if err != nil {
		exitErr("create agent", err)
	}

	plan, err := a.Planner.CreateDailyPlan(ctx, start)
	if err != nil {
		exitErr("plan", err)
	}
	out := planOutput{DailyPlan: plan}
	if decompose {
		if item, ok := a.Planner.GetCurrentActivity(start); ok {
			out.Current = &item
			out.Location = item.Location
			out.Steps, err = a.Planner.Decompose(ctx, item, w.ObjectsAt(item.Location))
			if err != nil {
				exitErr("decompose", err)
			}
		}
	}

	if textOutput() {
		fmt.Printf("%s wakes at %02d:00\n", a.Name, plan.WakeHour)
		for _, g := range plan.Goals {
			fmt.Printf("  goal: %s\n", g)
		}
		for _, it := range plan.Schedule {
			fmt.Printf("  %s\n", it)
		}
		for _, st := range out.Steps {
			target := st.TargetObject
			if target == "" {
				target = "-"
			}
			fmt.Printf("    %3d min  %-30s %s\n", st.DurationMinutes, st.Description, target)
		}
		return
	}
	b, _ := json.MarshalIndent(out, "", "  ")
	fmt.Println(string(b))
}
