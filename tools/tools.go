// Package tools defines the uniform capability contract implemented by
// every information-retrieval adapter, plus the factory that builds the
// enabled set from configuration.
package tools

import (
	"context"

	"github.com/medassist/medassist/config"
	"github.com/medassist/medassist/internal/httpx"
	"github.com/medassist/medassist/tools/duckduckgo"
	"github.com/medassist/medassist/tools/localdocs"
	"github.com/medassist/medassist/tools/medcalc"
	"github.com/medassist/medassist/tools/wikipedia"
)

// Tool is the single capability the planner consumes. Forward must not
// let failures escape in a way that aborts a whole plan: adapters are
// encouraged to catch their own network errors and return a descriptive
// negative-signal string instead.
type Tool interface {
	Name() string
	Description() string
	Forward(ctx context.Context, query string) (string, error)
}

// Closer is implemented by tools that own a network session.
type Closer interface {
	Close()
}

// New builds all enabled tools on a shared resilient session.
func New(cfg *config.Config, sess *httpx.Session) ([]Tool, error) {
	var out []Tool
	if cfg.Tools.MCP.Enabled {
		out = append(out, medcalc.New(cfg.Tools.MCP, sess))
	}
	if cfg.Tools.Wikipedia.Enabled {
		out = append(out, wikipedia.New(cfg.Tools.Wikipedia, sess))
	}
	if cfg.Tools.DuckDuckGo.Enabled {
		out = append(out, duckduckgo.New(cfg.Tools.DuckDuckGo, sess))
	}
	if cfg.Tools.LocalDocs.Enabled {
		ld, err := localdocs.New(cfg.Tools.LocalDocs)
		if err != nil {
			return nil, err
		}
		out = append(out, ld)
	}
	return out, nil
}
