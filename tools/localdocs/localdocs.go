// Package localdocs serves a local reference corpus (markdown/plain-text
// notes, guidelines, formularies) through an in-memory full-text index,
// so common lookups resolve without a network round trip.
package localdocs

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/blevesearch/bleve"

	"github.com/medassist/medassist/config"
)

type document struct {
	Title string `json:"title"`
	Text  string `json:"text"`
}

// Corpus indexes the configured directory once at construction and
// answers queries from memory.
type Corpus struct {
	cfg    config.LocalDocsConfig
	index  bleve.Index
	logger *log.Logger

	mu   sync.RWMutex
	docs map[string]document
}

// New builds the index from .md and .txt files under cfg.Dir. A missing
// or empty directory yields an empty corpus, not an error.
func New(cfg config.LocalDocsConfig) (*Corpus, error) {
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = 3
	}
	index, err := bleve.NewMemOnly(bleve.NewIndexMapping())
	if err != nil {
		return nil, fmt.Errorf("creating index: %w", err)
	}
	c := &Corpus{
		cfg:    cfg,
		index:  index,
		logger: log.New(log.Writer(), "[LOCALDOCS] ", log.LstdFlags),
		docs:   make(map[string]document),
	}
	if cfg.Dir != "" {
		if err := c.load(cfg.Dir); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func (c *Corpus) load(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			c.logger.Printf("corpus directory %s missing, starting empty", dir)
			return nil
		}
		return fmt.Errorf("reading corpus dir: %w", err)
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := filepath.Ext(entry.Name())
		if ext != ".md" && ext != ".txt" {
			continue
		}
		body, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			c.logger.Printf("skipping %s: %v", entry.Name(), err)
			continue
		}
		doc := document{
			Title: strings.TrimSuffix(entry.Name(), ext),
			Text:  string(body),
		}
		c.docs[entry.Name()] = doc
		if err := c.index.Index(entry.Name(), doc); err != nil {
			return fmt.Errorf("indexing %s: %w", entry.Name(), err)
		}
	}
	c.logger.Printf("indexed %d documents from %s", len(c.docs), dir)
	return nil
}

func (c *Corpus) Name() string { return "LocalDocs" }

func (c *Corpus) Description() string {
	return "检索本地参考资料库（指南、术语表、剂量表）"
}

func (c *Corpus) Forward(ctx context.Context, query string) (string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	q := bleve.NewQueryStringQuery(query)
	req := bleve.NewSearchRequestOptions(q, c.cfg.MaxResults, 0, false)
	res, err := c.index.Search(req)
	if err != nil {
		c.logger.Printf("search failed: %v", err)
		return fmt.Sprintf("本地资料检索错误: %v", err), nil
	}
	if len(res.Hits) == 0 {
		return "未找到相关结果", nil
	}

	var blocks []string
	for i, hit := range res.Hits {
		doc, ok := c.docs[hit.ID]
		if !ok {
			continue
		}
		blocks = append(blocks, fmt.Sprintf("%d. %s\n%s", i+1, doc.Title, snippet(doc.Text)))
	}
	return strings.Join(blocks, "\n\n"), nil
}

// snippet keeps the head of a document small enough for a combined
// answer.
func snippet(text string) string {
	const max = 400
	runes := []rune(strings.TrimSpace(text))
	if len(runes) <= max {
		return string(runes)
	}
	return string(runes[:max]) + "..."
}
