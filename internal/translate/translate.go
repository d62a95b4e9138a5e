// Package translate wraps a remote translation endpoint with pass-through
// degradation: every failure path returns the caller's text, never an
// error.
package translate

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/medassist/medassist/config"
	"github.com/medassist/medassist/internal/agent/telemetry"
	"github.com/medassist/medassist/internal/lang"
)

// Request carries one translation call. TargetLang defaults to the
// configured target when empty; SourceLang is detected when empty. Terms
// pins domain vocabulary renderings.
type Request struct {
	Text       string
	SourceLang lang.Language
	TargetLang lang.Language
	Terms      map[string]string
}

// Client is a lazily initialized translation client. Initialization is
// attempted at most once per instance; a failed attempt leaves the client
// degraded to pass-through for the rest of the process.
type Client struct {
	cfg    config.TranslationConfig
	codes  map[string]string
	logger *log.Logger
	tele   *telemetry.Telemetry

	mu        sync.Mutex
	attempted bool
	httpc     *http.Client
}

// NewClient builds an uninitialized client. codes maps language names to
// short codes for the wire request.
func NewClient(cfg config.TranslationConfig, codes map[string]string) *Client {
	return &Client{
		cfg:    cfg,
		codes:  codes,
		logger: log.New(log.Writer(), "[TRANSLATE] ", log.LstdFlags),
	}
}

// WithTelemetry attaches a telemetry sink for translation attempts.
func (c *Client) WithTelemetry(tele *telemetry.Telemetry) *Client {
	c.tele = tele
	return c
}

// initialize builds the transport on first use. The transport deliberately
// ignores any proxy configured for the retrieval tools: translation calls
// go out directly. Certificate verification is skipped, matching the
// relaxed-trust policy of the read-only tools.
func (c *Client) initialize() *http.Client {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.attempted {
		return c.httpc
	}
	c.attempted = true

	if strings.TrimSpace(c.cfg.APIKey) == "" {
		c.logger.Printf("translation disabled: api key not configured")
		return nil
	}
	c.httpc = &http.Client{
		Timeout: c.cfg.Timeout,
		Transport: &http.Transport{
			Proxy:           nil,
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		},
	}
	return c.httpc
}

// wire shapes for the single-turn translation request
type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type termPair struct {
	Source string `json:"source"`
	Target string `json:"target"`
}

type translationOptions struct {
	SourceLang string     `json:"source_lang"`
	TargetLang string     `json:"target_lang"`
	Terms      []termPair `json:"terms,omitempty"`
}

type request struct {
	Model              string             `json:"model"`
	Messages           []message          `json:"messages"`
	TranslationOptions translationOptions `json:"translation_options"`
}

type response struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Translate converts req.Text into the target language. Best effort: the
// input is returned unchanged when translation is unnecessary or the
// client is degraded, and annotated with the failure reason when the
// remote call fails. The original text is always recoverable from the
// return value.
func (c *Client) Translate(ctx context.Context, req Request) string {
	text := req.Text
	if strings.TrimSpace(text) == "" {
		return text
	}

	target := req.TargetLang
	if target == "" {
		target = lang.Language(c.cfg.TargetLanguage)
	}
	if target == "" {
		target = lang.Chinese
	}

	if req.SourceLang == target {
		return text
	}
	if req.SourceLang == "" && lang.ContainsScript(text, target) {
		return text
	}

	httpc := c.initialize()
	if httpc == nil {
		return text
	}

	source := req.SourceLang
	if source == "" {
		source = lang.Detect(text)
	}

	began := time.Now()
	translated, err := c.call(ctx, httpc, text, source, target, req.Terms)
	c.tele.RecordTranslationEvent(telemetry.TranslationEvent{Duration: time.Since(began), Err: err})
	if err != nil {
		c.logger.Printf("translation failed: %v", err)
		return fmt.Sprintf("%s\n\n(翻译失败: %v)", text, err)
	}
	if translated == "" || translated == text {
		c.logger.Printf("warning: endpoint returned %s result", resultKind(translated))
	}
	return translated
}

func resultKind(s string) string {
	if s == "" {
		return "an empty"
	}
	return "an identical"
}

func (c *Client) call(ctx context.Context, httpc *http.Client, text string, source, target lang.Language, terms map[string]string) (string, error) {
	body := request{
		Model:    c.cfg.Model,
		Messages: []message{{Role: "user", Content: text}},
		TranslationOptions: translationOptions{
			SourceLang: c.code(source),
			TargetLang: c.code(target),
		},
	}
	for src, dst := range terms {
		body.TranslationOptions.Terms = append(body.TranslationOptions.Terms, termPair{Source: src, Target: dst})
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	url := strings.TrimRight(c.cfg.BaseURL, "/") + "/chat/completions"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := httpc.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return "", fmt.Errorf("API returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}

	var out response
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}
	if len(out.Choices) == 0 {
		return "", fmt.Errorf("no choices in response")
	}
	return out.Choices[0].Message.Content, nil
}

// code resolves a language name to its configured short code, falling back
// to the name itself when unmapped.
func (c *Client) code(l lang.Language) string {
	if code, ok := c.codes[string(l)]; ok {
		return code
	}
	return string(l)
}
