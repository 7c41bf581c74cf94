package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rcliao/npc-mind/internal/world"
)

func init() {
	cmd := &cobra.Command{
		Use:   "world",
		Short: "Inspect the configured world",
		Run:   runWorld,
	}

	resolve := &cobra.Command{
		Use:   "resolve <name>",
		Short: "Show how a location name resolves",
		Long:  "Resolve a possibly sloppy location name the way schedules are resolved, and show which rule matched.",
		Args:  cobra.MinimumNArgs(1),
		Run:   runWorldResolve,
	}
	cmd.AddCommand(resolve)

	RootCmd.AddCommand(cmd)
}

func runWorld(cmd *cobra.Command, args []string) {
	w, _, err := loadWorld(loadConfig())
	if err != nil {
		exitErr("load world", err)
	}
	locs := w.Locations()
	if textOutput() {
		for _, l := range locs {
			fmt.Printf("%-16s %s\n", l.Name, strings.Join(l.Objects, ", "))
		}
		return
	}
	if locs == nil {
		locs = []world.Location{}
	}
	printJSON(locs)
}

type resolution struct {
	Query    string   `json:"query"`
	Location string   `json:"location,omitempty"`
	Tier     string   `json:"tier"`
	Objects  []string `json:"objects,omitempty"`
}

func runWorldResolve(cmd *cobra.Command, args []string) {
	w, _, err := loadWorld(loadConfig())
	if err != nil {
		exitErr("load world", err)
	}
	query := strings.Join(args, " ")
	name, tier := world.Resolve(query, w.LocationNames())
	r := resolution{Query: query, Location: name, Tier: tier.String()}
	if tier != world.TierNone {
		r.Objects = w.ObjectsAt(name)
	}
	if textOutput() {
		if tier == world.TierNone {
			fmt.Printf("%q: no match\n", query)
			return
		}
		fmt.Printf("%q -> %s (%s)\n", query, name, tier)
		return
	}
	printJSON(r)
}
