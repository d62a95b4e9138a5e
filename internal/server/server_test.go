package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/medassist/medassist/config"
	"github.com/medassist/medassist/internal/agent/core"
	"github.com/medassist/medassist/internal/agent/telemetry"
)

type stubAnswerer struct {
	result core.Result
	err    error
	gotQ   string
}

func (s *stubAnswerer) Answer(_ context.Context, query string) (core.Result, error) {
	s.gotQ = query
	return s.result, s.err
}

func newTestServer(stub *stubAnswerer) *Server {
	tele := telemetry.NewTelemetry(config.TelemetryConfig{})
	return New(stub, tele)
}

func TestQueryEndpoint(t *testing.T) {
	stub := &stubAnswerer{result: core.Result{ID: "q-1", Answer: "[WikipediaSearch 结果]\n糖尿病是一种代谢疾病"}}
	srv := newTestServer(stub)

	req := httptest.NewRequest(http.MethodPost, "/api/query", strings.NewReader(`{"query":"什么是糖尿病"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if stub.gotQ != "什么是糖尿病" {
		t.Fatalf("answerer received %q", stub.gotQ)
	}
	var got core.Result
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if got.ID != "q-1" || got.Answer != stub.result.Answer {
		t.Fatalf("unexpected result: %+v", got)
	}
}

func TestQueryEndpointRejectsEmptyQuery(t *testing.T) {
	srv := newTestServer(&stubAnswerer{})

	req := httptest.NewRequest(http.MethodPost, "/api/query", strings.NewReader(`{"query":"  "}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decoding error body: %v", err)
	}
	if body["error"] == "" {
		t.Fatalf("expected error field in body, got %s", rec.Body.String())
	}
}

func TestQueryEndpointRejectsBadJSON(t *testing.T) {
	srv := newTestServer(&stubAnswerer{})

	req := httptest.NewRequest(http.MethodPost, "/api/query", strings.NewReader(`{"query":`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestHealthz(t *testing.T) {
	srv := newTestServer(&stubAnswerer{})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK || rec.Body.String() != "ok" {
		t.Fatalf("unexpected health response: %d %q", rec.Code, rec.Body.String())
	}
}

func TestMetricsExposed(t *testing.T) {
	srv := newTestServer(&stubAnswerer{})

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 from /metrics, got %d", rec.Code)
	}
}
