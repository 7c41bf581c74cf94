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
		Use:   "list [agent]",
		Short: "List journaled memories, newest first",
		Args:  cobra.MaximumNArgs(1),
		Run:   runList,
	}

	cmd.Flags().StringP("kind", "k", "", "Filter by kind")
	cmd.Flags().IntP("limit", "l", 20, "Max results")
	cmd.Flags().Bool("ids-only", false, "Only output agent/id pairs")

	RootCmd.AddCommand(cmd)
}

func runList(cmd *cobra.Command, args []string) {
	kindStr, _ := cmd.Flags().GetString("kind")
	limit, _ := cmd.Flags().GetInt("limit")
	idsOnly, _ := cmd.Flags().GetBool("ids-only")

	p := store.ListParams{Limit: limit}
	if len(args) == 1 {
		p.NS = agentNS(args[0])
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

	records, err := s.List(cmd.Context(), p)
	if err != nil {
		exitErr("list", err)
	}

	if idsOnly {
		for _, r := range records {
			fmt.Printf("%s/%s\n", r.NS, r.ID)
		}
		return
	}
	printRecords(records)
}

func printRecords(records []store.Record) {
	if textOutput() {
		for _, r := range records {
			fmt.Printf("%s  %-8s %-10s %2d  %s\n", r.CreatedAt.Format("2006-01-02 15:04"), r.NS, r.Kind, r.Importance, r.Description)
		}
		return
	}
	if records == nil {
		records = []store.Record{}
	}
	for i := range records {
		records[i].Embedding = nil
	}
	printJSON(records)
}
