package httpx

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/medassist/medassist/config"
)

func testConfig() config.NetworkConfig {
	return config.NetworkConfig{
		Timeout:  5 * time.Second,
		Retries:  3,
		Backoff:  time.Millisecond,
		PoolSize: 2,
	}
}

func TestRetryStopsAtCapAndReturnsFinalResponse(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	sess, err := New(testConfig())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer sess.Close()

	req, _ := http.NewRequestWithContext(context.Background(), http.MethodGet, srv.URL, nil)
	resp, err := sess.Do(req)
	if err != nil {
		t.Fatalf("expected final response, got error: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", resp.StatusCode)
	}
	if got := atomic.LoadInt32(&calls); got != 3 {
		t.Fatalf("expected 3 attempts, got %d", got)
	}
}

func TestRetryRecoversAfterTransientFailure(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		io.WriteString(w, "ok")
	}))
	defer srv.Close()

	sess, err := New(testConfig())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer sess.Close()

	req, _ := http.NewRequestWithContext(context.Background(), http.MethodGet, srv.URL, nil)
	resp, err := sess.Do(req)
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if got := atomic.LoadInt32(&calls); got != 2 {
		t.Fatalf("expected 2 attempts, got %d", got)
	}
}

func TestPostBodyReplayedOnRetry(t *testing.T) {
	var calls int32
	var mu sync.Mutex
	var lastBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		mu.Lock()
		lastBody = string(b)
		mu.Unlock()
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		io.WriteString(w, `{"ok":true}`)
	}))
	defer srv.Close()

	sess, err := New(testConfig())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer sess.Close()

	var out struct {
		OK bool `json:"ok"`
	}
	if err := sess.PostJSON(context.Background(), srv.URL, nil, map[string]string{"q": "糖尿病"}, &out); err != nil {
		t.Fatalf("PostJSON: %v", err)
	}
	if !out.OK {
		t.Fatalf("expected decoded response")
	}
	mu.Lock()
	body := lastBody
	mu.Unlock()
	if !strings.Contains(body, "糖尿病") {
		t.Fatalf("expected replayed body, got %q", body)
	}
}

func TestNonIdempotentMethodNotRetried(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	sess, err := New(testConfig())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer sess.Close()

	req, _ := http.NewRequestWithContext(context.Background(), http.MethodDelete, srv.URL, nil)
	resp, err := sess.Do(req)
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	resp.Body.Close()
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Fatalf("expected single attempt for DELETE, got %d", got)
	}
}

func TestDefaultHeadersApplied(t *testing.T) {
	var ua, accept string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ua = r.Header.Get("User-Agent")
		accept = r.Header.Get("Accept")
		io.WriteString(w, "{}")
	}))
	defer srv.Close()

	cfg := testConfig()
	cfg.UserAgent = "medassist-test/1.0"
	sess, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer sess.Close()

	if err := sess.GetJSON(context.Background(), srv.URL, nil, nil); err != nil {
		t.Fatalf("GetJSON: %v", err)
	}
	if ua != "medassist-test/1.0" {
		t.Fatalf("unexpected user agent %q", ua)
	}
	if !strings.Contains(accept, "application/json") {
		t.Fatalf("unexpected accept header %q", accept)
	}
}

func TestDefaultHeadersDoNotMutateCallerRequest(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("User-Agent") == "" || r.Header.Get("Accept") == "" {
			t.Errorf("defaults missing on the wire: %v", r.Header)
		}
		io.WriteString(w, "{}")
	}))
	defer srv.Close()

	cfg := testConfig()
	cfg.UserAgent = "medassist-test/1.0"
	sess, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer sess.Close()

	req, err := http.NewRequest(http.MethodGet, srv.URL, nil)
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	resp, err := sess.Do(req)
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	resp.Body.Close()
	// the transport works on a clone, the caller's request stays clean
	if len(req.Header) != 0 {
		t.Fatalf("caller request headers mutated: %v", req.Header)
	}
}

func TestProxyExportedToEnvironment(t *testing.T) {
	for _, key := range []string{"http_proxy", "https_proxy", "HTTP_PROXY", "HTTPS_PROXY"} {
		t.Setenv(key, "")
	}
	cfg := testConfig()
	cfg.ProxyURL = "http://proxy.local:3128"
	sess, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer sess.Close()

	for _, key := range []string{"http_proxy", "https_proxy", "HTTP_PROXY", "HTTPS_PROXY"} {
		if got := os.Getenv(key); got != "http://proxy.local:3128" {
			t.Fatalf("expected %s exported, got %q", key, got)
		}
	}
}
