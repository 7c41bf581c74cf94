package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rcliao/npc-mind/internal/memory"
	"github.com/rcliao/npc-mind/internal/model"
)

func init() {
	cmd := &cobra.Command{
		Use:   "remember <agent> <description>",
		Short: "Add a memory to an agent",
		Long: "Record a memory for an agent. Importance is rated by the model unless --importance is given; " +
			"keywords and an embedding are always requested. The memory is journaled before it is kept.",
		Args: cobra.MinimumNArgs(2),
		Run:  runRemember,
	}

	cmd.Flags().StringP("kind", "k", string(model.KindEvent), "Kind: event, thought, reflection")
	cmd.Flags().IntP("importance", "i", 0, "Importance 1-10 (0: ask the model)")
	cmd.Flags().StringSlice("evidence", nil, "IDs of memories this one is derived from")
	cmd.Flags().String("at", "", "When it happened: HH:MM today or RFC 3339 (default: now)")

	RootCmd.AddCommand(cmd)
}

func runRemember(cmd *cobra.Command, args []string) {
	kindStr, _ := cmd.Flags().GetString("kind")
	importance, _ := cmd.Flags().GetInt("importance")
	evidence, _ := cmd.Flags().GetStringSlice("evidence")
	at, _ := cmd.Flags().GetString("at")

	kind, err := model.ParseKind(strings.ToLower(kindStr))
	if err != nil {
		exitErr("invalid kind", err)
	}
	description := strings.TrimSpace(strings.Join(args[1:], " "))
	if description == "" {
		exitErr("remember", fmt.Errorf("description is empty"))
	}

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

	var opts []memory.AddOption
	if importance > 0 {
		opts = append(opts, memory.WithImportance(importance))
	}
	if len(evidence) > 0 {
		opts = append(opts, memory.WithEvidence(evidence...))
	}
	m, err := a.Memory.AddMemory(ctx, kind, description, opts...)
	if err != nil {
		exitErr("remember", err)
	}

	if textOutput() {
		fmt.Printf("%s [%s %d] %s\n", m.ID, m.Kind, m.Importance, m.Description)
		return
	}
	m.Embedding = nil
	b, _ := json.MarshalIndent(m, "", "  ")
	fmt.Println(string(b))
}
