package core

import (
	"time"

	"github.com/medassist/medassist/tools"
)

// ToolResult is one tool invocation's output, consumed immediately by the
// combiner.
type ToolResult struct {
	ToolName string
	Result   string
}

// Plan is the ordered sequence of tools selected for a single query. It is
// recomputed per query and never persisted.
type Plan struct {
	Tools []tools.Tool
}

// Names returns the tool names in plan order.
func (p Plan) Names() []string {
	out := make([]string, 0, len(p.Tools))
	for _, t := range p.Tools {
		out = append(out, t.Name())
	}
	return out
}

// Result is the orchestrator's answer to one query.
type Result struct {
	ID        string        `json:"id"`
	Query     string        `json:"query"`
	Answer    string        `json:"answer"`
	ToolsUsed []string      `json:"tools_used"`
	FromCache bool          `json:"from_cache"`
	Elapsed   time.Duration `json:"elapsed"`
}
