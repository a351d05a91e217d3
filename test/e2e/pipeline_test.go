package e2e

import (
	"net/http"
	"strings"
	"testing"

	"github.com/hyperengineering/healthsync/internal/types"
)

const deviceDay = `{
	"weight": 71.2,
	"steps": 8400,
	"heart_rate_samples": [64, 58, 61, 57, 70, 59, 66, 72],
	"sleep_stages": [
		{"kind": "core", "start": "2024-01-01T23:00:00Z", "end": "2024-01-02T03:00:00Z"},
		{"kind": "awake", "start": "2024-01-02T03:00:00Z", "end": "2024-01-02T03:30:00Z"},
		{"kind": "deep", "start": "2024-01-02T03:30:00Z", "end": "2024-01-02T06:30:00Z"}
	],
	"workouts": [{"name": "run", "duration_minutes": 30, "energy_kcal": 310}]
}`

func TestPipeline_SyncAnnotateEditResync(t *testing.T) {
	s := newStack(t)
	date := types.Date("2024-01-02")
	s.platform.set(date, deviceDay)

	// Given: a device observation for one date in a three-day window
	// When: a sync runs
	resp := s.sync(t, "2024-01-01", "2024-01-03")

	// Then: only the observed date changed, with derived fields filled
	if len(resp.Changed) != 1 || resp.Changed[0] != date {
		t.Fatalf("changed = %v, want [%s]", resp.Changed, date)
	}
	if resp.Failed != 0 {
		t.Errorf("failed = %d, want 0", resp.Failed)
	}
	rec := s.day(t, date).Record
	if rec.Weight == nil || *rec.Weight != 71.2 {
		t.Errorf("weight = %v, want 71.2", rec.Weight)
	}
	if rec.SleepHours == nil || *rec.SleepHours != 7 {
		t.Errorf("sleep_hours = %v, want 7", rec.SleepHours)
	}
	// Lowest quartile of eight samples is {57, 58}
	if rec.RestingHeartRate == nil || *rec.RestingHeartRate != 57.5 {
		t.Errorf("resting_heart_rate = %v, want 57.5", rec.RestingHeartRate)
	}

	// And: the background annotation lands
	first := s.waitAnnotation(t, date, func(string) bool { return true })
	if first != "note 1" {
		t.Errorf("annotation = %q, want note 1", first)
	}

	// When: the same data is synced again
	resp = s.sync(t, "2024-01-01", "2024-01-03")

	// Then: nothing changes and the generator is not called again
	if len(resp.Changed) != 0 {
		t.Errorf("resync changed = %v, want none", resp.Changed)
	}
	if got := s.generator.calls(); got != 1 {
		t.Errorf("generator calls = %d, want 1", got)
	}

	// When: the user corrects the weight and adds a note
	weight := 70.4
	note := "late dinner"
	if code := s.do(t, http.MethodPut, "/api/v1/days/"+string(date), types.DayEdit{Weight: &weight, Note: &note}, nil); code != http.StatusOK {
		t.Fatalf("put day: status %d", code)
	}

	// Then: the annotation is regenerated from the edited day
	s.waitAnnotation(t, date, func(text string) bool { return text != first })
	if !strings.Contains(s.generator.lastContext(), "late dinner") {
		t.Errorf("context missing note:\n%s", s.generator.lastContext())
	}

	// When: the device reports again
	s.sync(t, "2024-01-02", "2024-01-02")

	// Then: the user's weight survives
	rec = s.day(t, date).Record
	if rec.Weight == nil || *rec.Weight != 70.4 {
		t.Errorf("weight after resync = %v, want 70.4", rec.Weight)
	}
}

func TestPipeline_TrendPrefersManualWeight(t *testing.T) {
	s := newStack(t)
	s.platform.set("2024-01-01", `{"weight": 72.0}`)
	s.platform.set("2024-01-02", `{"weight": 71.6}`)
	s.sync(t, "2024-01-01", "2024-01-02")

	weight := 71.0
	if code := s.do(t, http.MethodPut, "/api/v1/days/2024-01-02", types.DayEdit{Weight: &weight}, nil); code != http.StatusOK {
		t.Fatalf("put day: status %d", code)
	}

	var trend struct {
		Recent      float64 `json:"recent"`
		SampleCount int     `json:"sample_count"`
	}
	if code := s.do(t, http.MethodGet, "/api/v1/trend?since=2024-01-01", nil, &trend); code != http.StatusOK {
		t.Fatalf("trend: status %d", code)
	}

	if trend.SampleCount != 2 {
		t.Errorf("sample_count = %d, want 2", trend.SampleCount)
	}
	// Two-point series 72.0, 71.0 with α = 2/3
	want := 72.0 + (2.0/3.0)*(71.0-72.0)
	if diff := trend.Recent - want; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("recent = %v, want %v", trend.Recent, want)
	}
}

func TestPipeline_TransactionChangesAnnotation(t *testing.T) {
	s := newStack(t)
	date := types.Date("2024-01-02")
	s.platform.set(date, `{"steps": 12000}`)
	s.sync(t, date, date)
	first := s.waitAnnotation(t, date, func(string) bool { return true })

	// Given: a settled annotation
	// When: a transaction is linked to the date
	body := map[string]any{"description": "Gym day pass", "category": "fitness", "amount": "12.50", "currency": "eur"}
	if code := s.do(t, http.MethodPost, "/api/v1/days/"+string(date)+"/transactions", body, nil); code != http.StatusCreated {
		t.Fatalf("add transaction: status %d", code)
	}

	// Then: the annotation is regenerated and sees the transaction
	s.waitAnnotation(t, date, func(text string) bool { return text != first })
	if !strings.Contains(s.generator.lastContext(), "Gym day pass") {
		t.Errorf("context missing transaction:\n%s", s.generator.lastContext())
	}
	view := s.day(t, date)
	if len(view.Transactions) != 1 || view.Transactions[0].Currency != "EUR" {
		t.Errorf("transactions = %+v", view.Transactions)
	}
}

func TestPipeline_PlatformFailureCountsAsFailed(t *testing.T) {
	s := newStack(t)
	s.platform.set("2024-01-01", `{"weight": "heavy"}`)
	s.platform.set("2024-01-02", `{"steps": 5000}`)

	resp := s.sync(t, "2024-01-01", "2024-01-02")

	if resp.Failed != 1 {
		t.Errorf("failed = %d, want 1", resp.Failed)
	}
	if len(resp.Changed) != 1 || resp.Changed[0] != "2024-01-02" {
		t.Errorf("changed = %v, want [2024-01-02]", resp.Changed)
	}
	if code := s.do(t, http.MethodGet, "/api/v1/days/2024-01-01", nil, nil); code != http.StatusNotFound {
		t.Errorf("failed date status = %d, want 404", code)
	}
}

func TestPipeline_RequiresAPIKey(t *testing.T) {
	s := newStack(t)

	resp, err := http.Get(s.server.URL + "/api/v1/days")
	if err != nil {
		t.Fatalf("get days: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", resp.StatusCode)
	}

	resp, err = http.Get(s.server.URL + "/api/v1/health")
	if err != nil {
		t.Fatalf("get health: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("health status = %d, want 200", resp.StatusCode)
	}
}
