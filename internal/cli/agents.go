package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "agents",
		Short: "List configured agents and their journal sizes",
		Run:   runAgents,
	}

	RootCmd.AddCommand(cmd)
}

type agentSummary struct {
	Name      string `json:"name"`
	Persona   string `json:"persona,omitempty"`
	Goal      string `json:"goal,omitempty"`
	Memories  int    `json:"memories"`
	Knowledge int    `json:"knowledge"`
	// Configured is false for journals whose agent is no longer in config.
	Configured bool `json:"configured"`
}

func runAgents(cmd *cobra.Command, args []string) {
	c := loadConfig()

	s, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	stats, err := s.Stats(cmd.Context())
	if err != nil {
		exitErr("stats", err)
	}
	counts := map[string][2]int{}
	for _, ns := range stats.Namespaces {
		counts[ns.NS] = [2]int{ns.Count, ns.Knowledge}
	}

	var out []agentSummary
	for _, a := range c.Agents {
		n := counts[agentNS(a.Name)]
		delete(counts, agentNS(a.Name))
		out = append(out, agentSummary{Name: a.Name, Persona: a.Persona, Goal: a.Goal, Memories: n[0], Knowledge: n[1], Configured: true})
	}
	for _, ns := range stats.Namespaces {
		if n, ok := counts[ns.NS]; ok {
			out = append(out, agentSummary{Name: ns.NS, Memories: n[0], Knowledge: n[1]})
		}
	}

	if textOutput() {
		for _, a := range out {
			mark := ""
			if !a.Configured {
				mark = " (not configured)"
			}
			fmt.Printf("%-10s %4d memories %3d concepts%s\n", a.Name, a.Memories, a.Knowledge, mark)
		}
		return
	}
	printJSON(out)
}
