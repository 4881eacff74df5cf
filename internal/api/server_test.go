package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/goleak"

	"github.com/roteiro-ai/roteiro/internal/gate"
	"github.com/roteiro-ai/roteiro/internal/log"
	"github.com/roteiro-ai/roteiro/internal/rag"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// fakeResponder returns a scripted answer or error and records calls.
type fakeResponder struct {
	answer *gate.Answer
	err    error
	calls  int
}

func (f *fakeResponder) Respond(_ context.Context, _, _ string) (*gate.Answer, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.answer, nil
}

// fakeRetrieval returns a scripted status and index report.
type fakeRetrieval struct {
	status     rag.Status
	report     *rag.IndexReport
	indexErr   error
	indexedDir string
}

func (f *fakeRetrieval) Status(context.Context) rag.Status { return f.status }

func (f *fakeRetrieval) IndexAll(_ context.Context, dir string) (*rag.IndexReport, error) {
	f.indexedDir = dir
	if f.indexErr != nil {
		return nil, f.indexErr
	}
	return f.report, nil
}

func newTestServer(t *testing.T, responder Responder, retrieval Retrieval) *httptest.Server {
	t.Helper()
	srv, err := NewServer(ServerConfig{
		Logger:       log.NewNop(),
		Responder:    responder,
		Retrieval:    retrieval,
		KnowledgeDir: "testdata/knowledge",
		IsDev:        true,
	})
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func defaultAnswer() *gate.Answer {
	return &gate.Answer{
		Text:       "Rifampicina 600mg em dose mensal supervisionada.",
		Persona:    "Dr. Gasnelio",
		Confidence: 0.92,
		Sources:    []string{"protocol.md"},
		TierUsed:   rag.TierLexical,
		UsedLLM:    false,
	}
}

func postChat(t *testing.T, ts *httptest.Server, body string) *http.Response {
	t.Helper()
	resp, err := ts.Client().Post(ts.URL+"/api/v1/chat", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("POST /api/v1/chat: %v", err)
	}
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
}

func TestChat_Success(t *testing.T) {
	responder := &fakeResponder{answer: defaultAnswer()}
	ts := newTestServer(t, responder, &fakeRetrieval{})

	resp := postChat(t, ts, `{"query": "qual a dose de rifampicina", "persona_id": "dr_gasnelio"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var got struct {
		gate.Answer
		RequestID string `json:"request_id"`
	}
	decodeBody(t, resp, &got)
	if got.Text != defaultAnswer().Text {
		t.Errorf("answer = %q", got.Text)
	}
	if got.TierUsed != rag.TierLexical || got.UsedLLM {
		t.Errorf("metadata = tier %q, used_llm %v", got.TierUsed, got.UsedLLM)
	}
	if got.RequestID == "" {
		t.Error("response missing request_id")
	}
	if header := resp.Header.Get("X-Request-ID"); got.RequestID != header {
		t.Errorf("request_id = %q, want header value %q", got.RequestID, header)
	}
	if responder.calls != 1 {
		t.Errorf("responder called %d times, want 1", responder.calls)
	}
}

func TestChat_ErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"unknown persona", gate.ErrUnknownPersona, http.StatusBadRequest, "unknown_persona"},
		{"empty query", rag.ErrQueryEmpty, http.StatusBadRequest, "empty_query"},
		{"not ready", rag.ErrRetrieverNotReady, http.StatusServiceUnavailable, "not_ready"},
		{"internal", fmt.Errorf("pool exhausted"), http.StatusInternalServerError, "internal_error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t, &fakeResponder{err: tt.err}, &fakeRetrieval{})

			resp := postChat(t, ts, `{"query": "pergunta", "persona_id": "ga"}`)
			if resp.StatusCode != tt.wantStatus {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.wantStatus)
			}

			var body struct {
				Error string `json:"error"`
			}
			decodeBody(t, resp, &body)
			if body.Error != tt.wantCode {
				t.Errorf("error code = %q, want %q", body.Error, tt.wantCode)
			}
		})
	}
}

func TestChat_InvalidJSON(t *testing.T) {
	responder := &fakeResponder{answer: defaultAnswer()}
	ts := newTestServer(t, responder, &fakeRetrieval{})

	resp := postChat(t, ts, `{"query": `)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
	if responder.calls != 0 {
		t.Errorf("responder called %d times for malformed body, want 0", responder.calls)
	}
}

func TestChat_MethodNotAllowed(t *testing.T) {
	ts := newTestServer(t, &fakeResponder{answer: defaultAnswer()}, &fakeRetrieval{})

	resp, err := ts.Client().Get(ts.URL + "/api/v1/chat")
	if err != nil {
		t.Fatalf("GET /api/v1/chat: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", resp.StatusCode)
	}
}

func TestStatus(t *testing.T) {
	retrieval := &fakeRetrieval{status: rag.Status{
		LexicalFitted: true,
		LexicalChunks: 42,
		ExpectedTier:  rag.TierLexical,
	}}
	ts := newTestServer(t, &fakeResponder{answer: defaultAnswer()}, retrieval)

	resp, err := ts.Client().Get(ts.URL + "/api/v1/status")
	if err != nil {
		t.Fatalf("GET /api/v1/status: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var got rag.Status
	decodeBody(t, resp, &got)
	if !got.LexicalFitted || got.LexicalChunks != 42 || got.ExpectedTier != rag.TierLexical {
		t.Errorf("status body = %+v", got)
	}
}

func TestPersonas(t *testing.T) {
	ts := newTestServer(t, &fakeResponder{answer: defaultAnswer()}, &fakeRetrieval{})

	resp, err := ts.Client().Get(ts.URL + "/api/v1/personas")
	if err != nil {
		t.Fatalf("GET /api/v1/personas: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var body struct {
		Personas []personaInfo `json:"personas"`
	}
	decodeBody(t, resp, &body)
	if len(body.Personas) != 2 {
		t.Fatalf("got %d personas, want 2", len(body.Personas))
	}
	if body.Personas[0].ID != "dr_gasnelio" || body.Personas[1].ID != "ga" {
		t.Errorf("persona ids = %q, %q", body.Personas[0].ID, body.Personas[1].ID)
	}
}

func TestReindex(t *testing.T) {
	retrieval := &fakeRetrieval{report: &rag.IndexReport{Chunks: 10, Embedded: 8, Skipped: 2}}
	ts := newTestServer(t, &fakeResponder{answer: defaultAnswer()}, retrieval)

	resp, err := ts.Client().Post(ts.URL+"/api/v1/admin/reindex", "application/json", nil)
	if err != nil {
		t.Fatalf("POST reindex: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var report rag.IndexReport
	decodeBody(t, resp, &report)
	if report.Chunks != 10 || report.Embedded != 8 {
		t.Errorf("report = %+v", report)
	}
	if retrieval.indexedDir != "testdata/knowledge" {
		t.Errorf("indexed dir = %q", retrieval.indexedDir)
	}
}

func TestReindex_Error(t *testing.T) {
	retrieval := &fakeRetrieval{indexErr: fmt.Errorf("no knowledge files found")}
	ts := newTestServer(t, &fakeResponder{answer: defaultAnswer()}, retrieval)

	resp, err := ts.Client().Post(ts.URL+"/api/v1/admin/reindex", "application/json", nil)
	if err != nil {
		t.Fatalf("POST reindex: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", resp.StatusCode)
	}
}

func TestHealthProbes(t *testing.T) {
	ts := newTestServer(t, &fakeResponder{answer: defaultAnswer()}, &fakeRetrieval{})

	for _, path := range []string{"/health", "/ready"} {
		resp, err := ts.Client().Get(ts.URL + path)
		if err != nil {
			t.Fatalf("GET %s: %v", path, err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Errorf("GET %s = %d, want 200", path, resp.StatusCode)
		}
	}
}

func TestRequestIDFromContext(t *testing.T) {
	if got := requestIDFromContext(context.Background()); got != "" {
		t.Errorf("requestIDFromContext(empty ctx) = %q, want empty", got)
	}

	ctx := context.WithValue(context.Background(), ctxKeyRequestID, "req-123")
	if got := requestIDFromContext(ctx); got != "req-123" {
		t.Errorf("requestIDFromContext() = %q, want req-123", got)
	}
}

func TestSecurityHeaders(t *testing.T) {
	ts := newTestServer(t, &fakeResponder{answer: defaultAnswer()}, &fakeRetrieval{})

	resp, err := ts.Client().Get(ts.URL + "/api/v1/status")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()

	if got := resp.Header.Get("X-Content-Type-Options"); got != "nosniff" {
		t.Errorf("X-Content-Type-Options = %q", got)
	}
	if got := resp.Header.Get("X-Frame-Options"); got != "DENY" {
		t.Errorf("X-Frame-Options = %q", got)
	}
	if resp.Header.Get("X-Request-ID") == "" {
		t.Error("X-Request-ID header missing")
	}
}

func TestRateLimit(t *testing.T) {
	srv, err := NewServer(ServerConfig{
		Logger:    log.NewNop(),
		Responder: &fakeResponder{answer: defaultAnswer()},
		Retrieval: &fakeRetrieval{},
		RateBurst: 2,
		IsDev:     true,
	})
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}

	limited := false
	for i := 0; i < 5; i++ {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/api/v1/status", nil)
		req.RemoteAddr = "203.0.113.7:1234"
		srv.Handler().ServeHTTP(rec, req)
		if rec.Code == http.StatusTooManyRequests {
			limited = true
			if rec.Header().Get("Retry-After") == "" {
				t.Error("429 without Retry-After header")
			}
			break
		}
	}
	if !limited {
		t.Error("burst of 5 requests with burst=2 never rate limited")
	}
}

func TestCORSPreflight(t *testing.T) {
	srv, err := NewServer(ServerConfig{
		Logger:      log.NewNop(),
		Responder:   &fakeResponder{answer: defaultAnswer()},
		Retrieval:   &fakeRetrieval{},
		CORSOrigins: []string{"https://app.example.com"},
		IsDev:       true,
	})
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodOptions, "/api/v1/chat", nil)
	req.Header.Set("Origin", "https://app.example.com")
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Errorf("preflight status = %d, want 204", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://app.example.com" {
		t.Errorf("Allow-Origin = %q", got)
	}

	// Unlisted origin gets no CORS headers.
	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodOptions, "/api/v1/chat", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	srv.Handler().ServeHTTP(rec, req)
	if rec.Header().Get("Access-Control-Allow-Origin") != "" {
		t.Error("CORS headers leaked to unlisted origin")
	}
}
