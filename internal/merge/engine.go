// Package merge reconciles device observations into the canonical store.
package merge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/hyperengineering/healthsync/internal/ingest"
	"github.com/hyperengineering/healthsync/internal/observability"
	"github.com/hyperengineering/healthsync/internal/store"
	"github.com/hyperengineering/healthsync/internal/types"
)

// Outcome reports whether a merge changed the canonical record.
type Outcome int

const (
	OutcomeUnchanged Outcome = iota
	OutcomeUpdated
)

func (o Outcome) String() string {
	if o == OutcomeUpdated {
		return "updated"
	}
	return "unchanged"
}

// Store defines the store operations needed by the merge engine.
type Store interface {
	Get(ctx context.Context, date types.Date) (*types.DailyRecord, error)
	Upsert(ctx context.Context, record *types.DailyRecord) error
	AppendWeightSample(ctx context.Context, sample types.WeightSample) error
}

// Engine applies the fill-null-only precedence policy: a device value is
// written only where the canonical field is nil, so manual entries always win.
type Engine struct {
	store   Store
	adapter ingest.Adapter
	loc     *time.Location
}

// NewEngine creates a merge engine. loc is the local zone the sleep window
// is computed in; nil means UTC.
func NewEngine(s Store, a ingest.Adapter, loc *time.Location) *Engine {
	if loc == nil {
		loc = time.UTC
	}
	return &Engine{store: s, adapter: a, loc: loc}
}

// MergeObservation merges obs into the record for date, creating the record
// if needed. An Unchanged outcome performs no write.
func (e *Engine) MergeObservation(ctx context.Context, date types.Date, obs types.SourceObservation) (Outcome, error) {
	current, err := e.store.Get(ctx, date)
	if errors.Is(err, store.ErrNotFound) {
		current = types.NewDailyRecord(date)
	} else if err != nil {
		return OutcomeUnchanged, fmt.Errorf("load record %s: %w", date, err)
	}

	next := current.Clone()
	weightFilled := false

	if next.Weight == nil && obs.Weight != nil {
		v := *obs.Weight
		next.Weight = &v
		weightFilled = true
	}
	if next.Steps == nil && obs.Steps != nil {
		v := *obs.Steps
		next.Steps = &v
	}
	if next.SleepHours == nil {
		if h, ok := SleepHours(date, obs.SleepStages, obs.SleepSessions, e.loc); ok {
			next.SleepHours = &h
		}
	}
	if next.RestingHeartRate == nil {
		if hr, ok := RestingHeartRate(obs); ok {
			next.RestingHeartRate = &hr
		}
	}
	if len(next.Exercises) == 0 && len(obs.Workouts) > 0 {
		next.Exercises = slices.Clone(obs.Workouts)
	}

	if !observableChanged(current, next) {
		return OutcomeUnchanged, nil
	}

	if err := e.store.Upsert(ctx, next); err != nil {
		return OutcomeUnchanged, fmt.Errorf("store record %s: %w", date, err)
	}
	if weightFilled {
		sample := types.WeightSample{Date: date, Value: *next.Weight, Source: types.SourceDevice}
		if err := e.store.AppendWeightSample(ctx, sample); err != nil {
			slog.Warn("failed to append device weight sample",
				"date", date,
				"error", err,
				"component", "merge",
			)
		}
	}
	return OutcomeUpdated, nil
}

// Report summarises one sync run.
type Report struct {
	RunID    string
	Changed  []types.Date
	Failures []error
}

// SyncRange fetches and merges every date from from through to inclusive and
// returns the dates whose record changed.
func (e *Engine) SyncRange(ctx context.Context, from, to types.Date) []types.Date {
	return e.Sync(ctx, from, to).Changed
}

// Sync is SyncRange with the per-date failures kept. Dates are processed
// sequentially; a failing date is logged and skipped.
func (e *Engine) Sync(ctx context.Context, from, to types.Date) Report {
	report := Report{RunID: uuid.NewString()}

	for _, date := range types.DatesBetween(from, to) {
		if ctx.Err() != nil {
			break
		}

		outcome, err := e.syncDate(ctx, date)
		if err != nil {
			report.Failures = append(report.Failures, err)
			slog.Warn("sync date failed, treating as no data",
				"run_id", report.RunID,
				"date", date,
				"error", err,
				"component", "merge",
			)
			continue
		}
		if outcome == OutcomeUpdated {
			report.Changed = append(report.Changed, date)
		}
	}

	slog.Info("sync completed",
		"action", "sync",
		"run_id", report.RunID,
		"from", from,
		"to", to,
		"changed", len(report.Changed),
		"failed", len(report.Failures),
		"component", "merge",
	)
	return report
}

func (e *Engine) syncDate(ctx context.Context, date types.Date) (Outcome, error) {
	obs, err := e.adapter.Fetch(ctx, date)
	if errors.Is(err, ingest.ErrNoData) {
		return OutcomeUnchanged, nil
	}
	if err != nil {
		observability.RecordFetchFailure()
		return OutcomeUnchanged, &FetchError{Date: date, Err: err}
	}

	outcome, err := e.MergeObservation(ctx, date, obs)
	if err != nil {
		return outcome, err
	}
	observability.RecordMerge(outcome.String())
	return outcome, nil
}

// observableChanged compares the device-observable fields only.
func observableChanged(a, b *types.DailyRecord) bool {
	return !floatEqual(a.Weight, b.Weight) ||
		!intEqual(a.Steps, b.Steps) ||
		!floatEqual(a.SleepHours, b.SleepHours) ||
		!floatEqual(a.RestingHeartRate, b.RestingHeartRate) ||
		!slices.Equal(a.Exercises, b.Exercises)
}

func floatEqual(a, b *float64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func intEqual(a, b *int) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
