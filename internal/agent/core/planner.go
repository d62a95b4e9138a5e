package core

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/medassist/medassist/config"
	"github.com/medassist/medassist/internal/agent/telemetry"
	"github.com/medassist/medassist/tools"
)

// negativeSignals mark a tool result as inadequate. A result is adequate
// iff it contains none of them.
var negativeSignals = []string{"未找到相关", "错误", "不可用"}

// noInformation is the terminal answer when no tool produced anything.
const noInformation = "未找到相关信息"

// Planner selects a subset of the registered tools for a query and runs
// them in priority order, stopping early once a result is adequate.
type Planner struct {
	cfg       config.PlannerConfig
	registry  map[string]tools.Tool
	telemetry *telemetry.Telemetry
	logger    *log.Logger
}

// NewPlanner builds a planner over the given tools. Duplicate tool names
// are allowed; the last registration wins.
func NewPlanner(cfg config.PlannerConfig, registered []tools.Tool, tele *telemetry.Telemetry) *Planner {
	registry := make(map[string]tools.Tool, len(registered))
	for _, t := range registered {
		registry[t.Name()] = t
	}
	return &Planner{
		cfg:       cfg,
		registry:  registry,
		telemetry: tele,
		logger:    log.New(log.Writer(), "[PLANNER] ", log.LstdFlags),
	}
}

// Select is a pure function of the query and the fixed registry. The first
// keyword route whose keyword appears in the query designates a single
// tool; with no match, the static priority order is returned, filtered to
// tools actually registered. Unknown tool names are silently skipped.
func (p *Planner) Select(query string) Plan {
	for _, route := range p.cfg.Routes {
		for _, kw := range route.Keywords {
			if strings.Contains(query, kw) {
				if t, ok := p.registry[route.Tool]; ok {
					return Plan{Tools: []tools.Tool{t}}
				}
				// designated tool not registered, keep scanning routes
				break
			}
		}
	}

	var selected []tools.Tool
	for _, name := range p.cfg.Priority {
		if t, ok := p.registry[name]; ok {
			selected = append(selected, t)
		}
	}
	return Plan{Tools: selected}
}

// Execute invokes each tool in plan order with the query passed verbatim.
// A failing tool is logged and skipped; its failure never aborts the plan.
// Iteration stops after the first adequate result, and the combined text
// keeps everything gathered up to that point, including earlier inadequate
// results. Context cancellation stops the iteration but the partial
// accumulator is still combined rather than discarded.
func (p *Planner) Execute(ctx context.Context, query string, plan Plan) string {
	var results []ToolResult

	for _, tool := range plan.Tools {
		if ctx.Err() != nil {
			p.logger.Printf("execution interrupted: %v", ctx.Err())
			break
		}

		p.logger.Printf("invoking tool: %s", tool.Name())
		start := time.Now()
		out, err := tool.Forward(ctx, query)
		if err != nil {
			p.logger.Printf("tool %s failed: %v", tool.Name(), err)
			p.telemetry.RecordToolEvent(telemetry.ToolEvent{
				Tool: tool.Name(), Duration: time.Since(start), Err: err,
			})
			continue
		}
		p.telemetry.RecordToolEvent(telemetry.ToolEvent{
			Tool: tool.Name(), Duration: time.Since(start),
		})

		results = append(results, ToolResult{ToolName: tool.Name(), Result: out})
		if isAdequate(out) {
			break
		}
	}

	return combine(results)
}

// isAdequate reports whether a result text is usable.
func isAdequate(result string) bool {
	for _, signal := range negativeSignals {
		if strings.Contains(result, signal) {
			return false
		}
	}
	return true
}

// combine joins the gathered results as labeled blocks.
func combine(results []ToolResult) string {
	if len(results) == 0 {
		return noInformation
	}
	blocks := make([]string, 0, len(results))
	for _, r := range results {
		blocks = append(blocks, fmt.Sprintf("[%s 结果]\n%s", r.ToolName, r.Result))
	}
	return strings.Join(blocks, "\n\n")
}
