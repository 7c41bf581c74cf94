package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/rcliao/npc-mind/internal/conversation"
	"github.com/rcliao/npc-mind/internal/llm"
	"github.com/rcliao/npc-mind/internal/model"
)

const replyPrompt = `You are %s. %s
Right now you are %s.

Things you remember:
%s
%s just said to you: "%s"
Reply in character as %s, in one or two sentences. Do not prefix your reply with your name.`

// RespondTo answers speaker's message in character. Both sides of the
// exchange are remembered and added to the conversation buffer. A gateway
// failure yields a fallback line rather than an error.
func (a *Agent) RespondTo(ctx context.Context, speaker, message string) (string, error) {
	if _, err := a.record(ctx, model.KindEvent, fmt.Sprintf("%s said: %s", speaker, message), importanceHeard); err != nil {
		return "", err
	}
	a.Conversation.AddTurn(speaker, message)
	a.mu.Lock()
	a.partner = speaker
	a.mu.Unlock()

	var remembered strings.Builder
	for _, m := range a.Memory.RetrieveRelevant(message, relevantForReply) {
		fmt.Fprintf(&remembered, "- %s\n", m.Description)
	}
	base := fmt.Sprintf(replyPrompt, a.Name, a.persona.Description, a.doing(), remembered.String(), speaker, message, a.Name)
	prompt := a.Conversation.BuildContextualPrompt(base, true, recentTurnsForReply)

	reply := cleanReply(a.gw.Complete(ctx, prompt, replyTemperature, replyMaxTokens), a.Name)
	if reply == "" {
		a.logger.Warn("no usable reply, using fallback", "speaker", speaker)
		reply = fallbackReply
	}

	a.Conversation.AddTurn(a.Name, reply)
	if _, err := a.record(ctx, model.KindEvent, fmt.Sprintf("I said to %s: %s", speaker, reply), importanceOwnReply); err != nil {
		return reply, err
	}
	return reply, nil
}

func (a *Agent) doing() string {
	if sub, ok := a.Planner.Current(); ok {
		return sub.Description
	}
	if item, ok := a.Activity(); ok {
		return item.Activity
	}
	return "taking a break"
}

func cleanReply(resp, name string) string {
	if llm.IsFailure(resp) {
		return ""
	}
	resp = strings.TrimSpace(resp)
	if rest, ok := strings.CutPrefix(resp, name+":"); ok {
		resp = strings.TrimSpace(rest)
	}
	return llm.Unquote(resp)
}

// EndConversation summarizes the conversation, remembers the summary and the
// partner, and clears the buffer. Conversations too short to summarize are
// cleared without being remembered.
func (a *Agent) EndConversation(ctx context.Context) (string, error) {
	a.mu.Lock()
	partner := a.partner
	a.partner = ""
	a.mu.Unlock()
	defer a.Conversation.Clear()

	summary := a.Conversation.Summarize(ctx)
	if summary == conversation.InsufficientData || summary == "" || llm.IsFailure(summary) {
		return summary, nil
	}

	with := partner
	if with == "" {
		with = "someone"
	}
	if _, err := a.record(ctx, model.KindThought, fmt.Sprintf("Conversation with %s: %s", with, summary), importanceLastChat); err != nil {
		return summary, err
	}
	if partner != "" {
		if _, err := a.Memory.AddOrReinforce(ctx, partner, summary); err != nil {
			return summary, fmt.Errorf("remember %s: %w", partner, err)
		}
	}
	return summary, nil
}
