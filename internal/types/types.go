package types

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// AnnotationPending is the reserved annotation value meaning "generation in
// progress". It is distinct from a nil annotation (never requested) and from
// any generated text.
const AnnotationPending = "…generating"

// DailyRecord is the canonical, precedence-resolved record for one date.
//
// Three writer roles touch disjoint fields: user edits own the observable
// fields plus Note and OffPlan, device merges only fill nil observable fields,
// and the annotation cache only writes Annotation and AnnotationHash.
type DailyRecord struct {
	Date             Date       `json:"date"`
	Weight           *float64   `json:"weight,omitempty"`
	Steps            *int       `json:"steps,omitempty"`
	SleepHours       *float64   `json:"sleep_hours,omitempty"`
	RestingHeartRate *float64   `json:"resting_heart_rate,omitempty"`
	Exercises        []Exercise `json:"exercises"`
	Note             *string    `json:"note,omitempty"`
	OffPlan          bool       `json:"off_plan"`
	Annotation       *string    `json:"annotation,omitempty"`
	AnnotationHash   *string    `json:"annotation_hash,omitempty"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// NewDailyRecord returns an empty record for date.
func NewDailyRecord(date Date) *DailyRecord {
	return &DailyRecord{Date: date, Exercises: []Exercise{}}
}

// HasData reports whether the record carries anything worth summarising.
func (r *DailyRecord) HasData() bool {
	return r.Weight != nil ||
		r.Steps != nil ||
		r.SleepHours != nil ||
		r.RestingHeartRate != nil ||
		len(r.Exercises) > 0 ||
		(r.Note != nil && *r.Note != "") ||
		r.OffPlan
}

// IsPending reports whether the annotation is the in-progress sentinel.
func (r *DailyRecord) IsPending() bool {
	return r.Annotation != nil && *r.Annotation == AnnotationPending
}

// Clone returns a deep copy of the record.
func (r *DailyRecord) Clone() *DailyRecord {
	c := *r
	c.Weight = cloneFloat(r.Weight)
	c.SleepHours = cloneFloat(r.SleepHours)
	c.RestingHeartRate = cloneFloat(r.RestingHeartRate)
	if r.Steps != nil {
		v := *r.Steps
		c.Steps = &v
	}
	c.Note = cloneString(r.Note)
	c.Annotation = cloneString(r.Annotation)
	c.AnnotationHash = cloneString(r.AnnotationHash)
	c.Exercises = append([]Exercise{}, r.Exercises...)
	return &c
}

// MarshalJSON ensures nil Exercises marshal as [] not null.
func (r DailyRecord) MarshalJSON() ([]byte, error) {
	if r.Exercises == nil {
		r.Exercises = []Exercise{}
	}
	type Alias DailyRecord
	return json.Marshal(Alias(r))
}

// Exercise is one workout entry on a day.
type Exercise struct {
	Name            string  `json:"name"`
	DurationMinutes float64 `json:"duration_minutes"`
	EnergyKcal      float64 `json:"energy_kcal"`
}

// WeightSource identifies where a weight sample came from.
type WeightSource string

const (
	SourceManual WeightSource = "manual"
	SourceDevice WeightSource = "device"
)

// WeightSample is one entry of the append-only weight history.
type WeightSample struct {
	Date   Date         `json:"date"`
	Value  float64      `json:"value"`
	Source WeightSource `json:"source"`
}

// Goal holds the currently active weight goal parameters.
type Goal struct {
	TargetWeight    *float64  `json:"target_weight,omitempty"`
	WeeklyRate      *float64  `json:"weekly_rate,omitempty"`
	DailyStepTarget *int      `json:"daily_step_target,omitempty"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// Transaction is a ledger-like entry linked to a date, such as a logged
// purchase or meal cost.
type Transaction struct {
	ID          string          `json:"id"`
	Date        Date            `json:"date"`
	Description string          `json:"description"`
	Category    string          `json:"category,omitempty"`
	Amount      decimal.Decimal `json:"amount"`
	Currency    string          `json:"currency"`
	CreatedAt   time.Time       `json:"created_at"`
}

// NewTransaction is the input type for creating a transaction.
type NewTransaction struct {
	Date        Date            `json:"-"`
	Description string          `json:"description"`
	Category    string          `json:"category,omitempty"`
	Amount      decimal.Decimal `json:"amount"`
	Currency    string          `json:"currency"`
}

// DayEdit is a manual, user-authored edit. Nil fields are left alone;
// non-nil fields overwrite unconditionally.
type DayEdit struct {
	Weight           *float64    `json:"weight,omitempty"`
	Steps            *int        `json:"steps,omitempty"`
	SleepHours       *float64    `json:"sleep_hours,omitempty"`
	RestingHeartRate *float64    `json:"resting_heart_rate,omitempty"`
	Exercises        *[]Exercise `json:"exercises,omitempty"`
	Note             *string     `json:"note,omitempty"`
	OffPlan          *bool       `json:"off_plan,omitempty"`
}

// Apply overwrites the fields of r that the edit sets. It reports whether
// any observable or user-owned value actually changed.
func (e DayEdit) Apply(r *DailyRecord) bool {
	changed := false
	setFloat := func(dst **float64, v *float64) {
		if v == nil {
			return
		}
		if *dst == nil || **dst != *v {
			changed = true
		}
		*dst = cloneFloat(v)
	}

	setFloat(&r.Weight, e.Weight)
	setFloat(&r.SleepHours, e.SleepHours)
	setFloat(&r.RestingHeartRate, e.RestingHeartRate)
	if e.Steps != nil {
		if r.Steps == nil || *r.Steps != *e.Steps {
			changed = true
		}
		v := *e.Steps
		r.Steps = &v
	}
	if e.Exercises != nil {
		next := append([]Exercise{}, (*e.Exercises)...)
		if !exercisesEqual(r.Exercises, next) {
			changed = true
		}
		r.Exercises = next
	}
	if e.Note != nil {
		if r.Note == nil || *r.Note != *e.Note {
			changed = true
		}
		r.Note = cloneString(e.Note)
	}
	if e.OffPlan != nil {
		if r.OffPlan != *e.OffPlan {
			changed = true
		}
		r.OffPlan = *e.OffPlan
	}
	return changed
}

func exercisesEqual(a, b []Exercise) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func cloneFloat(p *float64) *float64 {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneString(p *string) *string {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
