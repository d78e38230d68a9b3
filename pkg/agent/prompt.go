package agent

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/Xalamander777/neur-app/pkg/conversation"
	"github.com/Xalamander777/neur-app/pkg/model"
)

const basePrompt = `You are Neur, an assistant for the Solana ecosystem. You help users research tokens, check wallets, and prepare swaps and transfers.

Guidelines:
- Use the available tools for anything involving live data; never invent prices or balances.
- Swaps and transfers are prepared by tools and confirmed by the user. Never claim a transaction was executed.
- Be concise. Lead with the answer, then supporting data.`

// BuildSystemPrompt assembles the system message for a turn.
func BuildSystemPrompt(walletAddress string, attachments []conversation.Attachment, degraded bool) string {
	var b strings.Builder
	b.WriteString(basePrompt)

	if walletAddress != "" {
		fmt.Fprintf(&b, "\n\nThe user's linked wallet address is %s.", walletAddress)
	} else {
		b.WriteString("\n\nThe user has no linked wallet; wallet operations will need an explicit address.")
	}

	if len(attachments) > 0 {
		b.WriteString("\n\nThe user attached files:")
		for _, a := range attachments {
			name := a.Name
			if name == "" {
				name = a.URL
			}
			fmt.Fprintf(&b, "\n- %s (%s)", name, a.ContentType)
		}
	}

	if degraded {
		b.WriteString("\n\nTool selection is degraded this turn; only the default token search tool is available.")
	}

	return b.String()
}

// ToModelMessages converts stored history into the provider wire format.
// Assistant messages with resolved invocations expand into an assistant
// message carrying tool_calls followed by one tool message per result.
func ToModelMessages(system string, history []conversation.Message) []model.Message {
	out := make([]model.Message, 0, len(history)+1)
	out = append(out, model.Message{Role: "system", Content: system})

	for _, msg := range conversation.FilterEmpty(history) {
		switch msg.Role {
		case "user":
			out = append(out, model.Message{Role: "user", Content: msg.Content})
		case "assistant":
			am := model.Message{Role: "assistant", Content: msg.Content}
			var results []model.Message
			for _, inv := range msg.ToolInvocations {
				if !inv.Resolved() {
					// Unresolved calls never reach the provider; it would
					// reject a call with no matching tool message.
					continue
				}
				am.ToolCalls = append(am.ToolCalls, model.ToolCall{
					ID:   inv.ToolCallID,
					Type: "function",
					Function: model.FunctionCall{
						Name:      inv.ToolName,
						Arguments: string(inv.Args),
					},
				})
				results = append(results, model.Message{
					Role:       "tool",
					ToolCallID: inv.ToolCallID,
					Name:       inv.ToolName,
					Content:    string(inv.Result),
				})
			}
			if am.Content == "" && len(am.ToolCalls) == 0 {
				continue
			}
			out = append(out, am)
			out = append(out, results...)
		}
	}

	return out
}

// argsJSON renders tool arguments for the wire; nil maps become an empty
// object.
func argsJSON(args map[string]any) json.RawMessage {
	if args == nil {
		args = map[string]any{}
	}
	data, err := json.Marshal(args)
	if err != nil {
		return json.RawMessage(`{}`)
	}
	return data
}
