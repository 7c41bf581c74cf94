package cli

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/rcliao/npc-mind/internal/memory"
	"github.com/rcliao/npc-mind/internal/model"
)

func init() {
	cmd := &cobra.Command{
		Use:   "recall <agent> [query]",
		Short: "Retrieve an agent's memories",
		Long: "Retrieve memories the way the agent does. With a query, memories are ranked by recency, " +
			"importance and keyword relevance (or embedding similarity with --similar). " +
			"Without one, the most recent memories are listed.",
		Args: cobra.MinimumNArgs(1),
		Run:  runRecall,
	}

	cmd.Flags().IntP("limit", "l", 10, "Max results")
	cmd.Flags().Bool("similar", false, "Rank by embedding similarity")
	cmd.Flags().Bool("today", false, "Only memories from the clock's current day")
	cmd.Flags().String("from", "", "Only memories at or after this RFC 3339 time")
	cmd.Flags().String("to", "", "Only memories at or before this RFC 3339 time")
	cmd.Flags().Bool("knowledge", false, "List learned concepts instead of memories")
	cmd.Flags().String("at", "", "Clock time for recency: HH:MM today or RFC 3339 (default: now)")

	RootCmd.AddCommand(cmd)
}

func runRecall(cmd *cobra.Command, args []string) {
	limit, _ := cmd.Flags().GetInt("limit")
	similar, _ := cmd.Flags().GetBool("similar")
	today, _ := cmd.Flags().GetBool("today")
	fromStr, _ := cmd.Flags().GetString("from")
	toStr, _ := cmd.Flags().GetString("to")
	knowledge, _ := cmd.Flags().GetBool("knowledge")
	at, _ := cmd.Flags().GetString("at")
	query := strings.TrimSpace(strings.Join(args[1:], " "))

	c := loadConfig()
	ctx := cmd.Context()
	clk, err := clockAt(at)
	if err != nil {
		exitErr("clock", err)
	}

	s, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	w, _, err := loadWorld(c)
	if err != nil {
		exitErr("load world", err)
	}
	a, err := buildAgent(ctx, c, s, newGateway(c), clk, w, args[0])
	if err != nil {
		exitErr("create agent", err)
	}

	if knowledge {
		ks := a.Memory.AllKnowledge()
		for i := range ks {
			ks[i].Embedding = nil
		}
		printJSON(ks)
		return
	}

	var results []memory.Scored
	switch {
	case fromStr != "" || toStr != "":
		start, end, err := parseRange(fromStr, toStr)
		if err != nil {
			exitErr("range", err)
		}
		results = unscored(a.Memory.RetrieveInRange(start, end), limit)
	case today:
		results = unscored(a.Memory.RetrieveToday(), limit)
	case query == "":
		results = unscored(a.Memory.RetrieveRecent(limit), limit)
	case similar:
		results = a.Memory.RetrieveSimilar(ctx, query, limit)
	default:
		results = a.Memory.RetrieveScored(query, limit)
	}

	if textOutput() {
		for _, r := range results {
			fmt.Printf("%s  %-10s %2d  %.3f  %s\n", r.CreatedAt.Format("2006-01-02 15:04"), r.Kind, r.Importance, r.Score, r.Description)
		}
		return
	}
	for i := range results {
		results[i].Embedding = nil
	}
	printJSON(results)
}

func unscored(ms []model.Memory, limit int) []memory.Scored {
	if limit > 0 && len(ms) > limit {
		ms = ms[:limit]
	}
	out := make([]memory.Scored, len(ms))
	for i, m := range ms {
		out[i] = memory.Scored{Memory: m}
	}
	return out
}

func parseRange(fromStr, toStr string) (time.Time, time.Time, error) {
	start := time.Time{}
	end := time.Now().AddDate(100, 0, 0)
	var err error
	if fromStr != "" {
		if start, err = time.Parse(time.RFC3339, fromStr); err != nil {
			return start, end, fmt.Errorf("--from: %w", err)
		}
	}
	if toStr != "" {
		if end, err = time.Parse(time.RFC3339, toStr); err != nil {
			return start, end, fmt.Errorf("--to: %w", err)
		}
	}
	return start, end, nil
}

func printJSON(v any) {
	b, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(b))
}
