package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/hyperengineering/healthsync/internal/annotation"
	"github.com/hyperengineering/healthsync/internal/api"
	"github.com/hyperengineering/healthsync/internal/ingest"
	"github.com/hyperengineering/healthsync/internal/merge"
	"github.com/hyperengineering/healthsync/internal/store"
	"github.com/hyperengineering/healthsync/internal/types"
	"github.com/hyperengineering/healthsync/internal/worker"
)

const testAPIKey = "e2e-test-api-key"

// --- Fake health platform ---

// platform serves canned observation documents keyed by date. Dates without
// a document answer 404, which the adapter reads as no data.
type platform struct {
	mu       sync.Mutex
	docs     map[types.Date]string
	requests int
}

func newPlatform() *platform {
	return &platform{docs: make(map[types.Date]string)}
}

func (p *platform) set(date types.Date, doc string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.docs[date] = doc
}

func (p *platform) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	p.mu.Lock()
	p.requests++
	doc, ok := p.docs[types.Date(strings.TrimPrefix(r.URL.Path, "/v1/observations/"))]
	p.mu.Unlock()

	if !ok {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	io.WriteString(w, doc)
}

// --- Recording generator ---

// recordingGenerator answers with a numbered note and keeps every context
// it was given.
type recordingGenerator struct {
	mu       sync.Mutex
	contexts []string
}

func (g *recordingGenerator) Generate(ctx context.Context, dayContext string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.contexts = append(g.contexts, dayContext)
	return fmt.Sprintf("note %d", len(g.contexts)), nil
}

func (g *recordingGenerator) ModelName() string { return "recording" }

func (g *recordingGenerator) calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.contexts)
}

func (g *recordingGenerator) lastContext() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.contexts) == 0 {
		return ""
	}
	return g.contexts[len(g.contexts)-1]
}

// --- In-process stack ---

// stack is the full service wired in-process: real SQLite store, HTTP
// ingest adapter against a fake platform, merge engine, annotation cache on
// a running pool, and the API router behind an httptest server.
type stack struct {
	platform  *platform
	generator *recordingGenerator
	store     *store.SQLiteStore
	server    *httptest.Server

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func newStack(t *testing.T) *stack {
	t.Helper()

	s := &stack{
		platform:  newPlatform(),
		generator: &recordingGenerator{},
	}
	platformSrv := httptest.NewServer(s.platform)
	t.Cleanup(platformSrv.Close)

	db, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "healthsync.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore() error = %v", err)
	}
	s.store = db

	adapter := ingest.NewHTTPAdapter(platformSrv.URL, "platform-token", 5*time.Second)
	engine := merge.NewEngine(db, adapter, time.UTC)
	pool := worker.NewPool(16, 1)
	cache := annotation.NewCache(db, s.generator, pool, 5*time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		pool.Run(ctx)
	}()

	handler := api.NewHandler(db, cache, engine, api.Options{
		APIKey:       testAPIKey,
		Version:      "e2e",
		ModelName:    s.generator.ModelName(),
		LookbackDays: 2,
		Location:     time.UTC,
	})
	s.server = httptest.NewServer(api.NewRouter(handler))

	t.Cleanup(s.stop)
	return s
}

// stop shuts down in the same order as the binary: server, workers, store.
func (s *stack) stop() {
	s.server.Close()
	s.cancel()
	s.wg.Wait()
	s.store.Close()
}

// do sends an authenticated request and decodes a JSON response into out
// when out is non-nil. It returns the status code.
func (s *stack) do(t *testing.T, method, path string, body any, out any) int {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, s.server.URL+path, reader)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	req.Header.Set("Authorization", "Bearer "+testAPIKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	if out != nil && resp.StatusCode < 300 && resp.StatusCode != http.StatusNoContent {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode %s %s: %v", method, path, err)
		}
	}
	return resp.StatusCode
}

// dayView mirrors the GET /days/{date} response.
type dayView struct {
	Record       types.DailyRecord   `json:"record"`
	Transactions []types.Transaction `json:"transactions"`
}

// syncResponse mirrors the POST /sync response.
type syncResponse struct {
	RunID   string       `json:"run_id"`
	Changed []types.Date `json:"changed"`
	Failed  int          `json:"failed"`
}

func (s *stack) sync(t *testing.T, from, to types.Date) syncResponse {
	t.Helper()
	var resp syncResponse
	if code := s.do(t, http.MethodPost, fmt.Sprintf("/api/v1/sync?from=%s&to=%s", from, to), nil, &resp); code != http.StatusOK {
		t.Fatalf("sync: status %d", code)
	}
	return resp
}

func (s *stack) day(t *testing.T, date types.Date) dayView {
	t.Helper()
	var view dayView
	if code := s.do(t, http.MethodGet, "/api/v1/days/"+string(date), nil, &view); code != http.StatusOK {
		t.Fatalf("get day %s: status %d", date, code)
	}
	return view
}

// waitAnnotation polls until the stored annotation for date is settled and
// satisfies accept.
func (s *stack) waitAnnotation(t *testing.T, date types.Date, accept func(string) bool) string {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		rec := s.day(t, date).Record
		if rec.Annotation != nil && !rec.IsPending() && accept(*rec.Annotation) {
			return *rec.Annotation
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("annotation for %s did not settle", date)
	return ""
}
