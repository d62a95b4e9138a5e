// Package medcalc exposes a remote MCP server's medical computation tools
// through the uniform tool contract. The server speaks JSON-RPC 2.0 over
// streamable HTTP: tools/list to discover, tools/call to invoke.
package medcalc

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"

	"github.com/medassist/medassist/config"
	"github.com/medassist/medassist/internal/httpx"
)

type rpcRequest struct {
	JSONRPC string         `json:"jsonrpc"`
	ID      int            `json:"id"`
	Method  string         `json:"method"`
	Params  map[string]any `json:"params,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type toolDesc struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

type listResult struct {
	Tools []toolDesc `json:"tools"`
}

type contentItem struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type callResult struct {
	Content []contentItem `json:"content"`
	IsError bool          `json:"isError"`
}

// Calculator calls a designated computation tool on a remote MCP server.
// The tool list is loaded lazily on first use; a server that cannot be
// reached leaves the adapter degraded to its unavailable message.
type Calculator struct {
	cfg    config.MCPConfig
	sess   *httpx.Session
	logger *log.Logger

	mu     sync.Mutex
	loaded bool
	remote string // resolved remote tool name, empty when unavailable
	nextID int
}

func New(cfg config.MCPConfig, sess *httpx.Session) *Calculator {
	if cfg.ToolName == "" {
		cfg.ToolName = "medical_calculator"
	}
	return &Calculator{
		cfg:    cfg,
		sess:   sess,
		logger: log.New(log.Writer(), "[MEDCALC] ", log.LstdFlags),
	}
}

func (c *Calculator) Name() string { return "MedicalMCP" }

func (c *Calculator) Description() string {
	return "使用医疗专业计算和分析工具"
}

func (c *Calculator) call(ctx context.Context, method string, params map[string]any, out any) error {
	c.nextID++
	req := rpcRequest{JSONRPC: "2.0", ID: c.nextID, Method: method, Params: params}
	var raw struct {
		Result json.RawMessage `json:"result"`
		Error  *rpcError       `json:"error"`
	}
	if err := c.sess.PostJSON(ctx, c.cfg.ServerURL, map[string]string{"Accept": "application/json"}, req, &raw); err != nil {
		return err
	}
	if raw.Error != nil {
		return fmt.Errorf("rpc error %d: %s", raw.Error.Code, raw.Error.Message)
	}
	if out == nil || len(raw.Result) == 0 {
		return nil
	}
	return json.Unmarshal(raw.Result, out)
}

// resolve loads the remote tool list once and remembers whether the
// configured tool exists.
func (c *Calculator) resolve(ctx context.Context) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.loaded {
		return c.remote
	}
	c.loaded = true

	var listed listResult
	if err := c.call(ctx, "tools/list", nil, &listed); err != nil {
		c.logger.Printf("loading MCP tools failed: %v", err)
		return ""
	}
	for _, tool := range listed.Tools {
		if tool.Name == c.cfg.ToolName {
			c.remote = tool.Name
			break
		}
	}
	if c.remote == "" {
		c.logger.Printf("tool %q not offered by MCP server", c.cfg.ToolName)
	}
	return c.remote
}

func (c *Calculator) Forward(ctx context.Context, query string) (string, error) {
	c.logger.Printf("MCP query: %s", query)

	remote := c.resolve(ctx)
	if remote == "" {
		return "MCP工具不可用", nil
	}

	var result callResult
	c.mu.Lock()
	err := c.call(ctx, "tools/call", map[string]any{
		"name":      remote,
		"arguments": map[string]any{"query": query},
	}, &result)
	c.mu.Unlock()
	if err != nil {
		c.logger.Printf("MCP call failed: %v", err)
		return fmt.Sprintf("MCP错误: %v", err), nil
	}
	if result.IsError {
		return fmt.Sprintf("MCP错误: %s", joinContent(result.Content)), nil
	}

	text := joinContent(result.Content)
	if text == "" {
		return "未找到合适的MCP工具输出", nil
	}
	return text, nil
}

func joinContent(items []contentItem) string {
	var out string
	for _, item := range items {
		if item.Type != "text" || item.Text == "" {
			continue
		}
		if out != "" {
			out += "\n"
		}
		out += item.Text
	}
	return out
}
