package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show database statistics",
		Run:   runStats,
	}

	RootCmd.AddCommand(cmd)
}

func runStats(cmd *cobra.Command, args []string) {
	s, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	stats, err := s.Stats(cmd.Context())
	if err != nil {
		exitErr("stats", err)
	}

	if textOutput() {
		fmt.Printf("%s: %d memories, %d chunks, %d evidence links\n", stats.DBPath, stats.TotalMemories, stats.TotalChunks, stats.TotalLinks)
		for _, ns := range stats.Namespaces {
			fmt.Printf("  %-10s %4d memories  avg importance %.1f  %d concepts\n", ns.NS, ns.Count, ns.AvgImportance, ns.Knowledge)
		}
		return
	}
	printJSON(stats)
}
