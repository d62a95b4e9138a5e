// Package wikipedia implements the encyclopedic retrieval tool on top of
// the MediaWiki API.
package wikipedia

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"strings"

	"github.com/medassist/medassist/config"
	"github.com/medassist/medassist/internal/httpx"
)

// Search queries Wikipedia in two phases: a full-text search for page ids,
// then an extract fetch per page. Failures downgrade to negative-signal
// strings so a broken lookup never aborts a plan.
type Search struct {
	cfg    config.WikipediaConfig
	sess   *httpx.Session
	logger *log.Logger
}

func New(cfg config.WikipediaConfig, sess *httpx.Session) *Search {
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = 3
	}
	if cfg.Language == "" {
		cfg.Language = "en"
	}
	return &Search{
		cfg:    cfg,
		sess:   sess,
		logger: log.New(log.Writer(), "[WIKIPEDIA] ", log.LstdFlags),
	}
}

func (s *Search) Name() string { return "WikipediaSearch" }

func (s *Search) Description() string {
	return "使用维基百科获取医疗领域的权威信息。适用于查找疾病、药物、医疗程序等的详细说明。"
}

func (s *Search) apiURL() string {
	if s.cfg.BaseURL != "" {
		return s.cfg.BaseURL
	}
	return fmt.Sprintf("https://%s.wikipedia.org/w/api.php", s.cfg.Language)
}

type searchResponse struct {
	Query struct {
		Search []struct {
			Title   string `json:"title"`
			Snippet string `json:"snippet"`
			PageID  int    `json:"pageid"`
		} `json:"search"`
	} `json:"query"`
}

type pageResponse struct {
	Query struct {
		Pages map[string]struct {
			Title   string `json:"title"`
			Extract string `json:"extract"`
			FullURL string `json:"fullurl"`
		} `json:"pages"`
	} `json:"query"`
}

func (s *Search) Forward(ctx context.Context, query string) (string, error) {
	s.logger.Printf("searching wikipedia: %s", query)

	params := url.Values{}
	params.Set("action", "query")
	params.Set("list", "search")
	params.Set("srsearch", query)
	params.Set("format", "json")
	params.Set("srlimit", fmt.Sprint(s.cfg.MaxResults))
	params.Set("srprop", "snippet|titlesnippet")
	params.Set("srwhat", "text")

	var found searchResponse
	if err := s.sess.GetJSON(ctx, s.apiURL()+"?"+params.Encode(), nil, &found); err != nil {
		s.logger.Printf("search request failed: %v", err)
		return fmt.Sprintf("维基百科请求错误: %v", err), nil
	}
	if len(found.Query.Search) == 0 {
		return "未找到相关结果", nil
	}

	var blocks []string
	for i, item := range found.Query.Search {
		if i >= s.cfg.MaxResults {
			break
		}
		snippet := strings.ReplaceAll(item.Snippet, `<span class="searchmatch">`, "")
		snippet = strings.ReplaceAll(snippet, "</span>", "")

		if extract := s.pageExtract(ctx, item.PageID); extract != "" {
			blocks = append(blocks, fmt.Sprintf("%d. %s\n%s\n", i+1, item.Title, extract))
			continue
		}
		blocks = append(blocks, fmt.Sprintf("%d. %s\n%s\n", i+1, item.Title, snippet))
	}

	blocks = append(blocks, fmt.Sprintf("\n🔗 在维基百科上查看完整结果: https://%s.wikipedia.org/w/index.php?search=%s",
		s.cfg.Language, url.QueryEscape(query)))
	blocks = append(blocks, "\n💡 提示: 维基百科内容由志愿者编辑，请谨慎评估信息的准确性和时效性。")

	return "\n\n" + strings.Join(blocks, "\n\n"), nil
}

// pageExtract fetches the intro extract for one page; best effort, the
// caller falls back to the search snippet on any failure.
func (s *Search) pageExtract(ctx context.Context, pageID int) string {
	if pageID == 0 {
		return ""
	}
	params := url.Values{}
	params.Set("action", "query")
	params.Set("prop", "extracts|info")
	params.Set("exintro", "1")
	params.Set("explaintext", "1")
	params.Set("inprop", "url")
	params.Set("pageids", fmt.Sprint(pageID))
	params.Set("format", "json")
	params.Set("redirects", "1")

	var page pageResponse
	if err := s.sess.GetJSON(ctx, s.apiURL()+"?"+params.Encode(), nil, &page); err != nil {
		s.logger.Printf("page extract failed for %d: %v", pageID, err)
		return ""
	}
	p, ok := page.Query.Pages[fmt.Sprint(pageID)]
	if !ok {
		return ""
	}
	return p.Extract
}
