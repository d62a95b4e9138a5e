package httpx

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/medassist/medassist/config"
)

// retryStatuses are the server-side codes worth another attempt.
var retryStatuses = map[int]bool{
	http.StatusInternalServerError: true,
	http.StatusBadGateway:          true,
	http.StatusServiceUnavailable:  true,
	http.StatusGatewayTimeout:      true,
}

// Session is a connection-reusing HTTP session shared by the retrieval
// tools. It retries transient server failures with exponential backoff and
// never raises on final failure: the caller receives the last
// response/error and decides.
type Session struct {
	client *http.Client
}

// New builds a session from network configuration. When a proxy is set it
// is applied to both schemes and exported into the process environment so
// subprocesses inherit it. Certificate verification is skipped: the tools
// perform read-only public lookups.
func New(cfg config.NetworkConfig) (*Session, error) {
	transport := &http.Transport{
		TLSClientConfig:     &tls.Config{InsecureSkipVerify: true},
		MaxIdleConns:        cfg.PoolSize,
		MaxIdleConnsPerHost: cfg.PoolSize,
	}
	if cfg.ProxyURL != "" {
		proxy, err := url.Parse(cfg.ProxyURL)
		if err != nil {
			return nil, err
		}
		transport.Proxy = http.ProxyURL(proxy)
		for _, key := range []string{"http_proxy", "https_proxy", "HTTP_PROXY", "HTTPS_PROXY"} {
			os.Setenv(key, cfg.ProxyURL)
		}
	}

	retries := cfg.Retries
	if retries < 1 {
		retries = 3
	}
	backoff := cfg.Backoff
	if backoff == 0 {
		backoff = time.Second
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}

	rt := &retryTransport{
		next:     &headerTransport{next: transport, userAgent: cfg.UserAgent},
		attempts: retries,
		backoff:  backoff,
	}
	return &Session{client: &http.Client{Transport: rt, Timeout: timeout}}, nil
}

// Client exposes the underlying http.Client for callers that need it.
func (s *Session) Client() *http.Client { return s.client }

// Do performs a single request through the retrying transport.
func (s *Session) Do(req *http.Request) (*http.Response, error) {
	return s.client.Do(req)
}

// GetJSON issues a GET and decodes a JSON response into out.
func (s *Session) GetJSON(ctx context.Context, rawURL string, headers map[string]string, out any) error {
	return s.doJSON(ctx, http.MethodGet, rawURL, headers, nil, out)
}

// PostJSON issues a POST with a JSON body and decodes a JSON response
// into out.
func (s *Session) PostJSON(ctx context.Context, rawURL string, headers map[string]string, body, out any) error {
	return s.doJSON(ctx, http.MethodPost, rawURL, headers, body, out)
}

func (s *Session) doJSON(ctx context.Context, method, rawURL string, headers map[string]string, body, out any) error {
	var bodyReader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		bodyReader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, rawURL, bodyReader)
	if err != nil {
		return err
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	if body != nil && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return errors.New(resp.Status + ": " + string(b))
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// Close drops idle pooled connections.
func (s *Session) Close() {
	if t, ok := s.client.Transport.(*retryTransport); ok {
		if h, ok := t.next.(*headerTransport); ok {
			if inner, ok := h.next.(*http.Transport); ok {
				inner.CloseIdleConnections()
			}
		}
	}
}

// headerTransport applies the fixed default headers expected by endpoints
// that reject header-less requests, without clobbering caller-set values.
// The caller's request is left untouched; defaults go on a clone.
type headerTransport struct {
	next      http.RoundTripper
	userAgent string
}

func (t *headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	defaults := map[string]string{
		"User-Agent":      t.userAgent,
		"Accept":          "application/json, text/plain, */*",
		"Accept-Language": "en-US,en;q=0.9,zh-CN;q=0.8,zh;q=0.7",
		"Connection":      "keep-alive",
	}
	var out *http.Request
	for k, v := range defaults {
		if v == "" || req.Header.Get(k) != "" {
			continue
		}
		if out == nil {
			out = req.Clone(req.Context())
		}
		out.Header.Set(k, v)
	}
	if out == nil {
		out = req
	}
	return t.next.RoundTrip(out)
}

// retryTransport retries GET/POST requests on transport errors and on the
// retryable server statuses, with exponential backoff. The final
// response/error is always handed back unchanged.
type retryTransport struct {
	next     http.RoundTripper
	attempts int
	backoff  time.Duration
}

func (t *retryTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	var resp *http.Response
	var err error

	for attempt := 0; attempt < t.attempts; attempt++ {
		if attempt > 0 {
			if req.GetBody != nil {
				body, berr := req.GetBody()
				if berr != nil {
					return resp, err
				}
				req.Body = body
			} else if req.Body != nil {
				// cannot replay the body, hand back the last outcome
				return resp, err
			}
		}

		resp, err = t.next.RoundTrip(req)

		if req.Method != http.MethodGet && req.Method != http.MethodPost {
			return resp, err
		}
		if err == nil && !retryStatuses[resp.StatusCode] {
			return resp, err
		}
		if attempt == t.attempts-1 {
			break
		}
		if resp != nil {
			io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
			resp.Body.Close()
		}
		select {
		case <-time.After(t.backoff << attempt):
		case <-req.Context().Done():
			if err == nil {
				err = req.Context().Err()
			}
			return nil, err
		}
	}
	return resp, err
}
