package cli

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rcliao/npc-mind/internal/agent"
	"github.com/rcliao/npc-mind/internal/clock"
	"github.com/rcliao/npc-mind/internal/conversation"
	"github.com/rcliao/npc-mind/internal/llm"
	"github.com/rcliao/npc-mind/internal/planner"
)

const chatHelp = `Type a message to talk. Commands:
  /observe <text>  show the agent something happening nearby
  /feel <emotion>  set how the agent feels
  /tick            let the agent catch up with the clock
  /end             end the conversation and let the agent remember it
  /quit            end and exit`

func init() {
	cmd := &cobra.Command{
		Use:   "chat <agent>",
		Short: "Talk with an agent",
		Long:  "Open an interactive conversation with an agent. Simulated time runs at clock.scale while you talk.\n\n" + chatHelp,
		Args:  cobra.ExactArgs(1),
		Run:   runChat,
	}

	cmd.Flags().String("as", "Player", "Name you speak as")

	RootCmd.AddCommand(cmd)
}

func runChat(cmd *cobra.Command, args []string) {
	speaker, _ := cmd.Flags().GetString("as")

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
	clk := clock.NewScaled(start, c.Clock.Scale)
	a, err := buildAgent(ctx, c, s, newGateway(c), clk, w, args[0])
	if err != nil {
		exitErr("create agent", err)
	}
	if _, err := a.Tick(ctx); err != nil {
		exitErr("tick", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Talking with %s. /help for commands.\n", a.Name)
	in := bufio.NewScanner(cmd.InOrStdin())
	for {
		fmt.Fprint(out, "> ")
		if !in.Scan() {
			break
		}
		line := strings.TrimSpace(in.Text())
		if line == "" {
			continue
		}
		cmdName, rest, _ := strings.Cut(line, " ")
		rest = strings.TrimSpace(rest)
		switch cmdName {
		case "/help":
			fmt.Fprintln(out, chatHelp)
		case "/quit", "/exit":
			endChat(cmd, a)
			return
		case "/end":
			endChat(cmd, a)
		case "/tick":
			st, err := a.Tick(ctx)
			if err != nil {
				exitErr("tick", err)
			}
			fmt.Fprintln(out, st.String())
		case "/feel":
			if rest == "" {
				fmt.Fprintln(out, "usage: /feel <emotion>")
				continue
			}
			if _, err := a.UpdateEmotion(ctx, rest); err != nil {
				exitErr("feel", err)
			}
		case "/observe":
			if rest == "" {
				fmt.Fprintln(out, "usage: /observe <text>")
				continue
			}
			var r planner.Reaction
			whilePaused(clk, func() { r, err = a.Observe(ctx, rest) })
			if err != nil {
				exitErr("observe", err)
			}
			if r.React {
				fmt.Fprintf(out, "(%s reacts: %s)\n", a.Name, r.Action)
			} else {
				fmt.Fprintf(out, "(%s carries on)\n", a.Name)
			}
		default:
			var reply string
			whilePaused(clk, func() { reply, err = a.RespondTo(ctx, speaker, line) })
			if err != nil {
				exitErr("respond", err)
			}
			fmt.Fprintf(out, "%s: %s\n", a.Name, reply)
		}
	}
	if err := in.Err(); err != nil {
		exitErr("read input", err)
	}
	endChat(cmd, a)
}

// pauser is a clock that can stop while the model is thinking.
type pauser interface {
	Pause()
	Resume()
}

// whilePaused runs fn with simulated time stopped.
func whilePaused(p pauser, fn func()) {
	p.Pause()
	defer p.Resume()
	fn()
}

func endChat(cmd *cobra.Command, a *agent.Agent) {
	summary, err := a.EndConversation(cmd.Context())
	if err != nil {
		exitErr("end conversation", err)
	}
	if summary != "" && summary != conversation.InsufficientData && !llm.IsFailure(summary) {
		fmt.Fprintf(cmd.OutOrStdout(), "(%s remembers: %s)\n", a.Name, summary)
	}
}
