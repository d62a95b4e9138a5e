// Package duckduckgo implements a general web lookup via the DuckDuckGo
// Instant Answer API.
package duckduckgo

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"strings"

	"github.com/medassist/medassist/config"
	"github.com/medassist/medassist/internal/httpx"
)

type Search struct {
	cfg    config.DuckDuckGoConfig
	sess   *httpx.Session
	logger *log.Logger
}

func New(cfg config.DuckDuckGoConfig, sess *httpx.Session) *Search {
	if cfg.Endpoint == "" {
		cfg.Endpoint = "https://api.duckduckgo.com/"
	}
	return &Search{
		cfg:    cfg,
		sess:   sess,
		logger: log.New(log.Writer(), "[DUCKDUCKGO] ", log.LstdFlags),
	}
}

func (s *Search) Name() string { return "DuckDuckGoSearch" }

func (s *Search) Description() string {
	return "使用DuckDuckGo进行通用网络搜索，作为医疗信息的补充来源。"
}

type answerResponse struct {
	Heading       string `json:"Heading"`
	AbstractText  string `json:"AbstractText"`
	AbstractURL   string `json:"AbstractURL"`
	Answer        string `json:"Answer"`
	RelatedTopics []struct {
		Text     string `json:"Text"`
		FirstURL string `json:"FirstURL"`
	} `json:"RelatedTopics"`
}

func (s *Search) Forward(ctx context.Context, query string) (string, error) {
	s.logger.Printf("instant answer lookup: %s", query)

	params := url.Values{}
	params.Set("q", query)
	params.Set("format", "json")
	params.Set("no_html", "1")
	params.Set("skip_disambig", "1")

	var resp answerResponse
	if err := s.sess.GetJSON(ctx, strings.TrimRight(s.cfg.Endpoint, "/")+"/?"+params.Encode(), nil, &resp); err != nil {
		s.logger.Printf("lookup failed: %v", err)
		return fmt.Sprintf("DuckDuckGo请求错误: %v", err), nil
	}

	var blocks []string
	if resp.Answer != "" {
		blocks = append(blocks, resp.Answer)
	}
	if resp.AbstractText != "" {
		block := resp.AbstractText
		if resp.Heading != "" {
			block = resp.Heading + "\n" + block
		}
		if resp.AbstractURL != "" {
			block += "\n" + resp.AbstractURL
		}
		blocks = append(blocks, block)
	}
	for i, topic := range resp.RelatedTopics {
		if i >= 3 || topic.Text == "" {
			break
		}
		blocks = append(blocks, fmt.Sprintf("- %s (%s)", topic.Text, topic.FirstURL))
	}

	if len(blocks) == 0 {
		return "未找到相关结果", nil
	}
	return strings.Join(blocks, "\n\n"), nil
}
