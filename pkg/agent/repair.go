package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/Xalamander777/neur-app/pkg/logging"
	"github.com/Xalamander777/neur-app/pkg/model"
	"github.com/Xalamander777/neur-app/pkg/tool"
)

// ErrDropCall signals that a tool call cannot be salvaged and should be
// removed from the turn instead of executed.
var ErrDropCall = errors.New("drop tool call")

// repairArgs makes one secondary model call to fix arguments that failed
// schema validation. The repair model may answer "no such tool" when the
// call itself is misdirected, in which case the call is dropped. Exactly one
// attempt is made per call; a second failure drops it too.
func (e *Engine) repairArgs(ctx context.Context, toolName string, schema tool.ParameterSchema, rawArgs string, validationErr error) (map[string]any, error) {
	schemaJSON, err := json.Marshal(schema)
	if err != nil {
		return nil, fmt.Errorf("marshaling schema: %w", err)
	}

	req := model.ChatRequest{
		Model: e.cfg.RepairModel,
		Messages: []model.Message{
			{
				Role: "system",
				Content: "You fix malformed tool call arguments. Reply with only a JSON object that " +
					"satisfies the schema, preserving the caller's intent. If the arguments cannot " +
					"belong to this tool at all, reply with exactly: no such tool",
			},
			{
				Role: "user",
				Content: fmt.Sprintf(
					"Tool: %s\nSchema: %s\nArguments: %s\nValidation error: %v",
					toolName, schemaJSON, rawArgs, validationErr,
				),
			},
		},
	}

	resp, err := e.client.ChatCompletion(ctx, req)
	if err != nil {
		e.metrics.CountRepair("error")
		return nil, fmt.Errorf("repair call: %w", err)
	}
	if len(resp.Choices) == 0 {
		e.metrics.CountRepair("empty")
		return nil, ErrDropCall
	}

	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if strings.Contains(strings.ToLower(content), "no such tool") {
		e.metrics.CountRepair("no_such_tool")
		e.logger.Info(logging.CategoryTool, "call_dropped", "repair model rejected the call", map[string]any{
			"tool": toolName,
		})
		return nil, ErrDropCall
	}

	repaired, err := tool.ParseArgs(extractJSONObject(content))
	if err != nil {
		e.metrics.CountRepair("unparseable")
		return nil, ErrDropCall
	}

	if err := tool.ValidateArgs(schema, repaired); err != nil {
		e.metrics.CountRepair("still_invalid")
		return nil, ErrDropCall
	}

	e.metrics.CountRepair("repaired")
	return repaired, nil
}

// extractJSONObject strips prose and code fences around a JSON object.
func extractJSONObject(content string) string {
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start < 0 || end <= start {
		return content
	}
	return content[start : end+1]
}
