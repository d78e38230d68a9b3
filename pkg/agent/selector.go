package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/Xalamander777/neur-app/pkg/logging"
	"github.com/Xalamander777/neur-app/pkg/model"
	"github.com/Xalamander777/neur-app/pkg/tool"
)

// selectTools makes the preliminary model call that picks which tools to
// expose for the turn. It returns the chosen names and the call's token
// usage. Any failure degrades to the default minimal set rather than failing
// the turn.
func (e *Engine) selectTools(ctx context.Context, userMessage string, available []tool.Tool) ([]string, model.Usage, bool) {
	if len(available) == 0 {
		return nil, model.Usage{}, false
	}

	var catalog strings.Builder
	for _, t := range available {
		fmt.Fprintf(&catalog, "- %s: %s\n", t.Name(), t.Description())
	}

	req := model.ChatRequest{
		Model: e.cfg.RepairModel,
		Messages: []model.Message{
			{
				Role: "system",
				Content: "You route requests to tools. Given the user message and the tool catalog, " +
					"reply with a JSON array of the tool names needed, e.g. [\"search_token\"]. " +
					"Reply with [] if none apply. Reply with nothing else.",
			},
			{
				Role:    "user",
				Content: fmt.Sprintf("Tools:\n%s\nUser message:\n%s", catalog.String(), userMessage),
			},
		},
	}

	resp, err := e.client.ChatCompletion(ctx, req)
	if err != nil {
		e.logger.Warn(logging.CategoryModel, "tool_selection_failed", err.Error(), nil)
		return nil, model.Usage{}, false
	}

	usage := resp.Usage
	if len(resp.Choices) == 0 {
		return nil, usage, false
	}

	names, ok := parseNameArray(resp.Choices[0].Message.Content)
	if !ok {
		e.logger.Warn(logging.CategoryModel, "tool_selection_unparseable", resp.Choices[0].Message.Content, nil)
		return nil, usage, false
	}

	// Keep only names that exist in the available set.
	availableSet := make(map[string]struct{}, len(available))
	for _, t := range available {
		availableSet[t.Name()] = struct{}{}
	}
	kept := names[:0]
	for _, n := range names {
		if _, ok := availableSet[n]; ok {
			kept = append(kept, n)
		}
	}
	return kept, usage, true
}

// parseNameArray extracts a JSON string array from model output, tolerating
// surrounding prose or code fences.
func parseNameArray(content string) ([]string, bool) {
	start := strings.Index(content, "[")
	end := strings.LastIndex(content, "]")
	if start < 0 || end <= start {
		return nil, false
	}

	var names []string
	if err := json.Unmarshal([]byte(content[start:end+1]), &names); err != nil {
		return nil, false
	}
	return names, true
}
