package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rcliao/npc-mind/internal/model"
	"github.com/rcliao/npc-mind/internal/store"
)

func init() {
	cmd := &cobra.Command{
		Use:   "search [query]",
		Short: "Search journaled memories",
		Long:  "Search memory descriptions and chunks for matching text. With --fts the query is an FTS5 expression.",
		Args:  cobra.MinimumNArgs(1),
		Run:   runSearch,
	}

	cmd.Flags().StringP("agent", "a", "", "Only this agent's memories")
	cmd.Flags().StringP("kind", "k", "", "Filter by kind")
	cmd.Flags().IntP("limit", "l", 20, "Max results")
	cmd.Flags().Bool("fts", false, "Treat the query as a full-text expression")

	RootCmd.AddCommand(cmd)
}

func runSearch(cmd *cobra.Command, args []string) {
	agentName, _ := cmd.Flags().GetString("agent")
	kindStr, _ := cmd.Flags().GetString("kind")
	limit, _ := cmd.Flags().GetInt("limit")
	fts, _ := cmd.Flags().GetBool("fts")

	p := store.SearchParams{
		Query:    strings.Join(args, " "),
		Limit:    limit,
		FullText: fts,
	}
	if agentName != "" {
		p.NS = agentNS(agentName)
	}
	if kindStr != "" {
		kind, err := model.ParseKind(strings.ToLower(kindStr))
		if err != nil {
			exitErr("invalid kind", err)
		}
		p.Kind = kind
	}

	s, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	results, err := s.Search(cmd.Context(), p)
	if err != nil {
		exitErr("search", err)
	}

	if textOutput() {
		for _, r := range results {
			text := r.Description
			if r.MatchChunk != nil {
				text = r.MatchChunk.Text
			}
			fmt.Printf("%s  %-8s %s\n", r.ID, r.NS, text)
		}
		return
	}
	if len(results) == 0 {
		fmt.Println("[]")
		return
	}
	for i := range results {
		results[i].Embedding = nil
	}
	printJSON(results)
}
