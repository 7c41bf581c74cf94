package cli

import (
	"github.com/spf13/cobra"

	"github.com/rcliao/npc-mind/internal/store"
)

func init() {
	cmd := &cobra.Command{
		Use:   "evidence <memory-id>",
		Short: "Show what a memory was derived from",
		Long:  "List the memories a reflection cites as evidence. With --reverse, list the memories that cite this one.",
		Args:  cobra.ExactArgs(1),
		Run:   runEvidence,
	}

	cmd.Flags().Bool("reverse", false, "List memories derived from this one")
	cmd.Flags().Bool("links", false, "Output raw links instead of memories")

	RootCmd.AddCommand(cmd)
}

func runEvidence(cmd *cobra.Command, args []string) {
	reverse, _ := cmd.Flags().GetBool("reverse")
	linksOnly, _ := cmd.Flags().GetBool("links")

	s, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	ctx := cmd.Context()
	if linksOnly {
		links, err := s.Links(ctx, args[0])
		if err != nil {
			exitErr("links", err)
		}
		if links == nil {
			links = []store.Link{}
		}
		printJSON(links)
		return
	}

	var records []store.Record
	if reverse {
		records, err = s.DerivedFrom(ctx, args[0])
	} else {
		records, err = s.Evidence(ctx, args[0])
	}
	if err != nil {
		exitErr("evidence", err)
	}
	printRecords(records)
}
