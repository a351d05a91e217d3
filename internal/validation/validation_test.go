package validation

import (
	"strings"
	"testing"
	"time"

	"github.com/hyperengineering/healthsync/internal/types"
	"github.com/shopspring/decimal"
)

func floatPtr(v float64) *float64 { return &v }
func intPtr(v int) *int           { return &v }
func strPtr(v string) *string     { return &v }

func hasField(errs []ValidationError, field string) bool {
	for _, e := range errs {
		if e.Field == field {
			return true
		}
	}
	return false
}

// --- ValidateText Tests ---

func TestValidateText_Valid(t *testing.T) {
	tests := []struct {
		name  string
		value string
	}{
		{"ascii", "hello world"},
		{"empty", ""},
		{"unicode", "Hello, 世界"},
		{"emoji", "Hello 👋🏻"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := ValidateText("field", tt.value, 100); err != nil {
				t.Errorf("ValidateText(%q) = %v, want nil", tt.value, err)
			}
		})
	}
}

func TestValidateText_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		value   string
		message string
	}{
		{"invalid utf8", string([]byte{0xff, 0xfe}), "UTF-8"},
		{"null byte", "hello\x00world", "null"},
		{"too long", strings.Repeat("a", 11), "10"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateText("note", tt.value, 10)
			if err == nil {
				t.Fatalf("ValidateText(%q) = nil, want error", tt.value)
			}
			if err.Field != "note" {
				t.Errorf("error.Field = %q, want %q", err.Field, "note")
			}
			if !strings.Contains(err.Message, tt.message) {
				t.Errorf("error.Message = %q, want it to mention %q", err.Message, tt.message)
			}
		})
	}
}

func TestValidateText_MultibyteRunesCountOnce(t *testing.T) {
	if err := ValidateText("field", "世界世界世", 5); err != nil {
		t.Errorf("5 runes at limit 5 should pass, got %v", err)
	}
}

// --- ValidateULID Tests ---

func TestValidateULID(t *testing.T) {
	tests := []struct {
		name  string
		value string
		ok    bool
	}{
		{"valid", "01ARZ3NDEKTSV4RRFFQ69G5FAV", true},
		{"lowercase", "01arz3ndektsv4rrffq69g5fav", true},
		{"too short", "01ARZ3NDEK", false},
		{"too long", "01ARZ3NDEKTSV4RRFFQ69G5FAVX", false},
		{"bad char", "01ARZ3NDEKTSV4RRFFQ69G5FAU", false},
		{"empty", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateULID("id", tt.value)
			if tt.ok && err != nil {
				t.Errorf("ValidateULID(%q) = %v, want nil", tt.value, err)
			}
			if !tt.ok && err == nil {
				t.Errorf("ValidateULID(%q) = nil, want error", tt.value)
			}
		})
	}
}

// --- ValidateRequired / Enum / Range / Date Tests ---

func TestValidateRequired(t *testing.T) {
	if err := ValidateRequired("f", "x"); err != nil {
		t.Errorf("ValidateRequired(x) = %v, want nil", err)
	}
	if err := ValidateRequired("f", ""); err == nil {
		t.Error("ValidateRequired(empty) = nil, want error")
	}
	if err := ValidateRequired("f", " \t\n"); err == nil {
		t.Error("ValidateRequired(whitespace) = nil, want error")
	}
}

func TestValidateEnum(t *testing.T) {
	allowed := []string{"a", "b"}
	if err := ValidateEnum("f", "a", allowed); err != nil {
		t.Errorf("ValidateEnum(a) = %v, want nil", err)
	}
	err := ValidateEnum("f", "A", allowed)
	if err == nil {
		t.Fatal("ValidateEnum is case sensitive, want error for A")
	}
	if !strings.Contains(err.Message, "a, b") {
		t.Errorf("message should list allowed values, got %q", err.Message)
	}
}

func TestValidateRange(t *testing.T) {
	tests := []struct {
		value float64
		ok    bool
	}{
		{0, true},
		{0.5, true},
		{1, true},
		{-0.1, false},
		{1.1, false},
	}
	for _, tt := range tests {
		err := ValidateRange("f", tt.value, 0, 1)
		if tt.ok != (err == nil) {
			t.Errorf("ValidateRange(%v) = %v, want ok=%v", tt.value, err, tt.ok)
		}
	}
}

func TestValidateDate(t *testing.T) {
	if err := ValidateDate("date", "2024-02-29"); err != nil {
		t.Errorf("leap day should be valid, got %v", err)
	}
	for _, bad := range []string{"2023-02-29", "2024-1-01", "01/02/2024", ""} {
		if err := ValidateDate("date", bad); err == nil {
			t.Errorf("ValidateDate(%q) = nil, want error", bad)
		}
	}
}

// --- Collector Tests ---

func TestCollector_AccumulatesAndIgnoresNil(t *testing.T) {
	c := &Collector{}
	if c.HasErrors() {
		t.Error("HasErrors() = true, want false for empty collector")
	}

	c.Add(nil)
	c.Add(&ValidationError{Field: "f1", Message: "m1"})
	c.Add(nil)
	c.Add(&ValidationError{Field: "f2", Message: "m2"})

	errs := c.Errors()
	if len(errs) != 2 {
		t.Fatalf("len(Errors()) = %d, want 2 (nil should be ignored)", len(errs))
	}
	if errs[0].Field != "f1" || errs[1].Field != "f2" {
		t.Errorf("errors out of order: %+v", errs)
	}
	if !c.HasErrors() {
		t.Error("HasErrors() = false, want true")
	}
}

// --- Record Validators ---

func TestValidateExercise(t *testing.T) {
	if errs := ValidateExercise("exercises[0]", types.Exercise{Name: "run", DurationMinutes: 30, EnergyKcal: 250}); len(errs) != 0 {
		t.Errorf("valid exercise produced errors: %v", errs)
	}

	errs := ValidateExercise("exercises[3]", types.Exercise{Name: "", DurationMinutes: -1, EnergyKcal: 1e6})
	for _, f := range []string{"exercises[3].name", "exercises[3].duration_minutes", "exercises[3].energy_kcal"} {
		if !hasField(errs, f) {
			t.Errorf("missing error for %s, got %v", f, errs)
		}
	}
}

func TestValidateDayEdit_EmptyIsValid(t *testing.T) {
	if errs := ValidateDayEdit(types.DayEdit{}); len(errs) != 0 {
		t.Errorf("empty edit should be valid, got %v", errs)
	}
}

func TestValidateDayEdit_AllFieldsInvalid(t *testing.T) {
	exercises := []types.Exercise{{Name: "ok", DurationMinutes: 10}, {Name: " "}}
	edit := types.DayEdit{
		Weight:           floatPtr(5),
		Steps:            intPtr(-1),
		SleepHours:       floatPtr(25),
		RestingHeartRate: floatPtr(300),
		Note:             strPtr("bad\x00note"),
		Exercises:        &exercises,
	}

	errs := ValidateDayEdit(edit)
	for _, f := range []string{"weight", "steps", "sleep_hours", "resting_heart_rate", "note", "exercises[1].name"} {
		if !hasField(errs, f) {
			t.Errorf("missing error for %s, got %v", f, errs)
		}
	}
	if hasField(errs, "exercises[0].name") {
		t.Error("first exercise is valid and should not be reported")
	}
}

func TestValidateDayEdit_TooManyExercises(t *testing.T) {
	exercises := make([]types.Exercise, MaxExercises+1)
	for i := range exercises {
		exercises[i] = types.Exercise{Name: "walk"}
	}
	errs := ValidateDayEdit(types.DayEdit{Exercises: &exercises})
	if !hasField(errs, "exercises") {
		t.Errorf("expected list size error, got %v", errs)
	}
}

func TestValidateTransaction(t *testing.T) {
	valid := types.NewTransaction{Description: "groceries", Amount: decimal.NewFromInt(10), Currency: "EUR"}
	if errs := ValidateTransaction(valid); len(errs) != 0 {
		t.Errorf("valid transaction produced errors: %v", errs)
	}

	errs := ValidateTransaction(types.NewTransaction{Description: "", Currency: "EURO"})
	if !hasField(errs, "description") || !hasField(errs, "currency") {
		t.Errorf("expected description and currency errors, got %v", errs)
	}
}

func TestValidateGoal(t *testing.T) {
	if errs := ValidateGoal(types.Goal{TargetWeight: floatPtr(70), WeeklyRate: floatPtr(0.5)}); len(errs) != 0 {
		t.Errorf("valid goal produced errors: %v", errs)
	}
	errs := ValidateGoal(types.Goal{TargetWeight: floatPtr(1000), WeeklyRate: floatPtr(-1), DailyStepTarget: intPtr(-5)})
	for _, f := range []string{"target_weight", "weekly_rate", "daily_step_target"} {
		if !hasField(errs, f) {
			t.Errorf("missing error for %s, got %v", f, errs)
		}
	}
}

func TestValidateObservation(t *testing.T) {
	start := time.Date(2024, 1, 1, 23, 0, 0, 0, time.UTC)
	valid := types.SourceObservation{
		Weight:           floatPtr(70),
		Steps:            intPtr(8000),
		HeartRateSamples: []float64{55, 60},
		SleepStages:      []types.SleepStage{{Kind: types.StageDeep, Start: start, End: start.Add(time.Hour)}},
		Workouts:         []types.Exercise{{Name: "bike", DurationMinutes: 45}},
	}
	if errs := ValidateObservation(valid); len(errs) != 0 {
		t.Errorf("valid observation produced errors: %v", errs)
	}

	invalid := types.SourceObservation{
		HeartRateSamples: []float64{60, 5},
		SleepStages:      []types.SleepStage{{Kind: "nap", Start: start, End: start.Add(-time.Hour)}},
		SleepSessions:    []types.SleepSession{{Start: start, End: start.Add(-time.Minute)}},
	}
	errs := ValidateObservation(invalid)
	for _, f := range []string{"heart_rate_samples[1]", "sleep_stages[0].kind", "sleep_stages[0]", "sleep_sessions[0]"} {
		if !hasField(errs, f) {
			t.Errorf("missing error for %s, got %v", f, errs)
		}
	}
}
