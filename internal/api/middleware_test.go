package api

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
)

const middlewareKey = "test-secret-key-12345"

// captureLogs routes the default logger into a buffer for the test.
func captureLogs(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	old := slog.Default()
	slog.SetDefault(slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))
	t.Cleanup(func() { slog.SetDefault(old) })
	return &buf
}

// logEntries decodes every JSON line written to buf.
func logEntries(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var entries []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var e map[string]any
		if err := json.Unmarshal([]byte(line), &e); err != nil {
			t.Fatalf("log line is not JSON: %q", line)
		}
		entries = append(entries, e)
	}
	return entries
}

func okHandler(called *bool) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*called = true
		w.WriteHeader(http.StatusOK)
	})
}

// --- AuthMiddleware ---

func TestAuthMiddleware(t *testing.T) {
	tests := []struct {
		name       string
		header     string
		wantStatus int
	}{
		{"valid token", "Bearer " + middlewareKey, http.StatusOK},
		{"valid token with trailing space", "Bearer " + middlewareKey + " ", http.StatusOK},
		{"missing header", "", http.StatusUnauthorized},
		{"wrong token", "Bearer wrong-key", http.StatusUnauthorized},
		{"prefix of key", "Bearer " + middlewareKey[:5], http.StatusUnauthorized},
		{"basic scheme", "Basic " + middlewareKey, http.StatusUnauthorized},
		{"lowercase scheme", "bearer " + middlewareKey, http.StatusUnauthorized},
		{"empty token", "Bearer ", http.StatusUnauthorized},
		{"whitespace token", "Bearer    ", http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			captureLogs(t)
			called := false
			h := AuthMiddleware(middlewareKey)(okHandler(&called))

			req := httptest.NewRequest(http.MethodGet, "/api/v1/days", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			h.ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			if called != (tt.wantStatus == http.StatusOK) {
				t.Errorf("handler called = %v", called)
			}
		})
	}
}

func TestAuthMiddleware_RejectionIsProblemWithoutKey(t *testing.T) {
	logs := captureLogs(t)
	called := false
	h := AuthMiddleware(middlewareKey)(okHandler(&called))

	req := httptest.NewRequest(http.MethodPut, "/api/v1/goal", nil)
	req.Header.Set("Authorization", "Bearer nope")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	if ct := w.Header().Get("Content-Type"); ct != "application/problem+json" {
		t.Errorf("Content-Type = %q", ct)
	}
	var p Problem
	if err := json.Unmarshal(w.Body.Bytes(), &p); err != nil {
		t.Fatalf("decode problem: %v", err)
	}
	if p.Status != http.StatusUnauthorized || p.Type != "https://healthsync.dev/problems/unauthorized" {
		t.Errorf("problem = %+v", p)
	}
	if p.Instance != "/api/v1/goal" {
		t.Errorf("instance = %q", p.Instance)
	}

	if strings.Contains(w.Body.String(), middlewareKey) || strings.Contains(logs.String(), middlewareKey) {
		t.Error("expected key leaked into response or logs")
	}
	if !strings.Contains(logs.String(), "auth failure") {
		t.Error("expected an auth failure log line")
	}
}

func TestAuthMiddleware_EmptyKeyDisablesCheck(t *testing.T) {
	called := false
	h := AuthMiddleware("")(okHandler(&called))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/days", nil))

	if w.Code != http.StatusOK || !called {
		t.Errorf("status = %d, called = %v; want pass-through", w.Code, called)
	}
}

func TestBearerToken(t *testing.T) {
	tests := []struct {
		header string
		want   string
	}{
		{"Bearer abc", "abc"},
		{"Bearer  abc ", "abc"},
		{"Bearer", ""},
		{"Token abc", ""},
		{"", ""},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if tt.header != "" {
			req.Header.Set("Authorization", tt.header)
		}
		if got := bearerToken(req); got != tt.want {
			t.Errorf("bearerToken(%q) = %q, want %q", tt.header, got, tt.want)
		}
	}
}

// --- LoggingMiddleware ---

func TestLogLevelForStatus(t *testing.T) {
	tests := []struct {
		status int
		want   slog.Level
	}{
		{http.StatusOK, slog.LevelInfo},
		{http.StatusAccepted, slog.LevelInfo},
		{http.StatusNoContent, slog.LevelInfo},
		{http.StatusBadRequest, slog.LevelWarn},
		{http.StatusNotFound, slog.LevelWarn},
		{http.StatusUnprocessableEntity, slog.LevelWarn},
		{http.StatusInternalServerError, slog.LevelError},
		{http.StatusServiceUnavailable, slog.LevelError},
	}
	for _, tt := range tests {
		if got := logLevelForStatus(tt.status); got != tt.want {
			t.Errorf("logLevelForStatus(%d) = %v, want %v", tt.status, got, tt.want)
		}
	}
}

func TestLoggingMiddleware_LogsRoutePatternAndStatus(t *testing.T) {
	logs := captureLogs(t)

	// Given: a router shaped like NewRouter with a parameterised route
	r := chi.NewRouter()
	r.Use(chiMiddleware.RequestID)
	r.Use(LoggingMiddleware)
	r.Route("/api/v1/days/{date}", func(r chi.Router) {
		r.Get("/", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		})
	})

	// When: a request hits it with a bearer token
	req := httptest.NewRequest(http.MethodGet, "/api/v1/days/2024-01-02", nil)
	req.Header.Set("Authorization", "Bearer "+middlewareKey)
	req.RemoteAddr = "192.0.2.1:4321"
	r.ServeHTTP(httptest.NewRecorder(), req)

	// Then: one warn line with the pattern, the raw path and the request id
	entries := logEntries(t, logs)
	if len(entries) != 1 {
		t.Fatalf("got %d log lines, want 1", len(entries))
	}
	e := entries[0]
	if e["msg"] != "request completed" || e["level"] != "WARN" {
		t.Errorf("msg/level = %v/%v", e["msg"], e["level"])
	}
	if route, _ := e["route"].(string); !strings.Contains(route, "/api/v1/days/{date}") {
		t.Errorf("route = %v", e["route"])
	}
	if e["path"] != "/api/v1/days/2024-01-02" {
		t.Errorf("path = %v", e["path"])
	}
	if e["status"] != float64(http.StatusNotFound) {
		t.Errorf("status = %v", e["status"])
	}
	if id, _ := e["request_id"].(string); id == "" {
		t.Error("request_id missing")
	}
	if e["remote_addr"] != "192.0.2.1:4321" {
		t.Errorf("remote_addr = %v", e["remote_addr"])
	}
	if _, ok := e["duration_ms"]; !ok {
		t.Error("duration_ms missing")
	}
	if strings.Contains(logs.String(), middlewareKey) {
		t.Error("authorization header leaked into logs")
	}
}

func TestLoggingMiddleware_UnmatchedRoute(t *testing.T) {
	logs := captureLogs(t)

	r := chi.NewRouter()
	r.Use(LoggingMiddleware)
	r.Get("/api/v1/health", func(w http.ResponseWriter, r *http.Request) {})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/nowhere", nil))

	entries := logEntries(t, logs)
	if len(entries) != 1 || entries[0]["route"] != unmatchedRoute {
		t.Errorf("entries = %v, want route %q", entries, unmatchedRoute)
	}
}

func TestStatusRecorder_KeepsFirstStatus(t *testing.T) {
	w := httptest.NewRecorder()
	rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

	rec.Write([]byte("body"))
	rec.WriteHeader(http.StatusInternalServerError)

	if rec.status != http.StatusOK {
		t.Errorf("status = %d, want implicit 200 kept", rec.status)
	}
}

// --- RecoveryMiddleware ---

func TestRecoveryMiddleware_PassesThrough(t *testing.T) {
	called := false
	w := httptest.NewRecorder()
	RecoveryMiddleware(okHandler(&called)).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	if w.Code != http.StatusOK || !called {
		t.Errorf("status = %d, called = %v", w.Code, called)
	}
}

func TestRecoveryMiddleware_PanicBecomes500Problem(t *testing.T) {
	logs := captureLogs(t)
	h := RecoveryMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("db password is hunter2")
	}))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/sync", nil))

	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", w.Code)
	}
	var p Problem
	if err := json.Unmarshal(w.Body.Bytes(), &p); err != nil {
		t.Fatalf("decode problem: %v", err)
	}
	if p.Detail != "Internal Server Error" {
		t.Errorf("detail = %q", p.Detail)
	}
	if strings.Contains(w.Body.String(), "hunter2") {
		t.Error("panic value leaked into response")
	}
	if !strings.Contains(logs.String(), "hunter2") || !strings.Contains(logs.String(), "panic recovered") {
		t.Error("panic should be logged with its value")
	}
}

func TestRecoveryMiddleware_ReraisesAbortHandler(t *testing.T) {
	h := RecoveryMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic(http.ErrAbortHandler)
	}))

	defer func() {
		if recover() != http.ErrAbortHandler {
			t.Error("expected http.ErrAbortHandler to propagate")
		}
	}()
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
}

// --- Request IDs ---

func TestGetRequestID(t *testing.T) {
	var got string
	h := chiMiddleware.RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = GetRequestID(r.Context())
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	if got == "" {
		t.Error("expected a request id inside RequestID middleware")
	}
	if id := GetRequestID(httptest.NewRequest(http.MethodGet, "/", nil).Context()); id != "" {
		t.Errorf("GetRequestID without middleware = %q, want empty", id)
	}
}
