package tool

import "context"

// DefaultToolName is the single tool exposed when no explicit selection is
// made, keeping the model's prompt small on simple turns.
const DefaultToolName = "search_token"

// Bound pairs a tool with the runtime it executes under.
type Bound struct {
	Tool Tool
	rt   *Runtime
}

// Execute runs the bound tool.
func (b Bound) Execute(ctx context.Context, params map[string]any) (*Result, error) {
	return b.Tool.Execute(ctx, b.rt, params)
}

// Confirm runs the bound tool's confirmation path. It returns false when the
// tool is not confirmable.
func (b Bound) Confirm(ctx context.Context, params map[string]any) (*Result, bool, error) {
	c, ok := b.Tool.(Confirmable)
	if !ok {
		return nil, false, nil
	}
	res, err := c.Confirm(ctx, b.rt, params)
	return res, true, err
}

// BuildSet assembles the tool set for one turn from the requested names.
// Names that do not resolve are skipped. An empty request yields the minimal
// default set so the model always has at least one capability.
func BuildSet(reg *Registry, rt *Runtime, names []string) map[string]Bound {
	if len(names) == 0 {
		names = []string{DefaultToolName}
	}

	set := make(map[string]Bound, len(names))
	for _, name := range names {
		t, ok := reg.Get(name)
		if !ok {
			continue
		}
		set[name] = Bound{Tool: t, rt: rt}
	}
	return set
}

// Functions renders a bound set in the OpenAI function-calling format,
// ordered by the registry's registration order for stable prompts.
func Functions(reg *Registry, set map[string]Bound) []map[string]any {
	out := make([]map[string]any, 0, len(set))
	for _, t := range reg.List() {
		if b, ok := set[t.Name()]; ok {
			out = append(out, ToFunction(b.Tool))
		}
	}
	return out
}
