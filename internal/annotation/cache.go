// Package annotation keeps per-date annotations current without calling the
// generator when nothing that shapes the text has changed.
//
// The fingerprint of the inputs an annotation was generated from is stored
// next to it on the record, so cache validity survives restarts.
package annotation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hyperengineering/healthsync/internal/generation"
	"github.com/hyperengineering/healthsync/internal/observability"
	"github.com/hyperengineering/healthsync/internal/store"
	"github.com/hyperengineering/healthsync/internal/types"
	"golang.org/x/sync/singleflight"
)

// Outcome reports what Generate did for a date.
type Outcome int

const (
	// OutcomeSkipped means no generator is configured or there is no data.
	OutcomeSkipped Outcome = iota
	// OutcomeCacheHit means the stored annotation is still current.
	OutcomeCacheHit
	// OutcomeGenerated means a new annotation was stored.
	OutcomeGenerated
	// OutcomeSuperseded means the inputs changed while the generator ran;
	// the result was dropped and a later request owns the date.
	OutcomeSuperseded
)

func (o Outcome) String() string {
	switch o {
	case OutcomeCacheHit:
		return "cache_hit"
	case OutcomeGenerated:
		return "generated"
	case OutcomeSuperseded:
		return "superseded"
	default:
		return "skipped"
	}
}

// Store defines the store operations needed by the annotation cache.
type Store interface {
	Get(ctx context.Context, date types.Date) (*types.DailyRecord, error)
	SetAnnotation(ctx context.Context, date types.Date, text string, hash string) error
	SetPlaceholder(ctx context.Context, date types.Date) error
	RestoreAnnotation(ctx context.Context, date types.Date) error
	PendingAnnotations(ctx context.Context) ([]types.Date, error)
	ListTransactions(ctx context.Context, date types.Date) ([]types.Transaction, error)
	GetGoal(ctx context.Context) (*types.Goal, error)
}

// Scheduler runs background tasks on the application-lifetime task group.
type Scheduler interface {
	Submit(name string, task func(ctx context.Context)) error
}

// Cache decides per date whether the stored annotation is still valid and
// regenerates it when it is not.
type Cache struct {
	store     Store
	generator generation.Generator
	scheduler Scheduler
	timeout   time.Duration

	flight singleflight.Group
}

// NewCache creates a cache. A nil generator turns every operation into a
// silent no-op. A zero timeout leaves generator calls bounded only by ctx.
func NewCache(s Store, g generation.Generator, sched Scheduler, timeout time.Duration) *Cache {
	return &Cache{
		store:     s,
		generator: g,
		scheduler: sched,
		timeout:   timeout,
	}
}

// Enabled reports whether a generator is configured.
func (c *Cache) Enabled() bool {
	return c.generator != nil
}

// dayInputs is everything that shapes the annotation for one date.
type dayInputs struct {
	record       *types.DailyRecord
	transactions []types.Transaction
	goal         *types.Goal
	hash         string
}

func (d *dayInputs) hasData() bool {
	return d.record.HasData() || len(d.transactions) > 0
}

func (c *Cache) load(ctx context.Context, date types.Date) (*dayInputs, error) {
	rec, err := c.store.Get(ctx, date)
	if errors.Is(err, store.ErrNotFound) {
		rec = types.NewDailyRecord(date)
	} else if err != nil {
		return nil, fmt.Errorf("load record: %w", err)
	}

	txs, err := c.store.ListTransactions(ctx, date)
	if err != nil {
		return nil, fmt.Errorf("load transactions: %w", err)
	}
	goal, err := c.store.GetGoal(ctx)
	if err != nil {
		return nil, fmt.Errorf("load goal: %w", err)
	}

	hash, err := contentHash(rec, txs, goal)
	if err != nil {
		return nil, err
	}
	return &dayInputs{record: rec, transactions: txs, goal: goal, hash: hash}, nil
}

// ContentHash returns the fingerprint of the current inputs for date.
func (c *Cache) ContentHash(ctx context.Context, date types.Date) (string, error) {
	in, err := c.load(ctx, date)
	if err != nil {
		return "", err
	}
	return in.hash, nil
}

// Generate brings the annotation for date up to date. Concurrent calls for
// the same date and the same inputs share one generator call.
//
// Failures are returned as *GenerationError and leave the stored
// annotation and fingerprint untouched.
func (c *Cache) Generate(ctx context.Context, date types.Date) (Outcome, error) {
	if c.generator == nil {
		return OutcomeSkipped, nil
	}

	in, err := c.load(ctx, date)
	if err != nil {
		return OutcomeSkipped, &GenerationError{Date: date, Err: err}
	}
	if !in.hasData() {
		return OutcomeSkipped, nil
	}

	v, err, _ := c.flight.Do(string(date)+"/"+in.hash, func() (any, error) {
		return c.generate(ctx, date, in)
	})
	if err != nil {
		return OutcomeSkipped, err
	}
	return v.(Outcome), nil
}

func (c *Cache) generate(ctx context.Context, date types.Date, in *dayInputs) (Outcome, error) {
	rec := in.record
	if rec.Annotation != nil && !rec.IsPending() &&
		rec.AnnotationHash != nil && *rec.AnnotationHash == in.hash {
		observability.RecordCacheHit()
		return OutcomeCacheHit, nil
	}

	genCtx := ctx
	if c.timeout > 0 {
		var cancel context.CancelFunc
		genCtx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	observability.RecordGeneratorCall()
	text, err := c.generator.Generate(genCtx, BuildContext(rec, in.transactions, in.goal))
	if err != nil {
		observability.RecordGenerationFailure()
		return OutcomeSkipped, &GenerationError{Date: date, Err: err}
	}

	// Inputs may have changed while the generator ran. The newer change
	// has its own request queued, so the stale text is dropped.
	latest, err := c.ContentHash(ctx, date)
	if err != nil {
		observability.RecordGenerationFailure()
		return OutcomeSkipped, &GenerationError{Date: date, Err: err}
	}
	if latest != in.hash {
		return OutcomeSuperseded, nil
	}

	if err := c.store.SetAnnotation(ctx, date, text, in.hash); err != nil {
		observability.RecordGenerationFailure()
		return OutcomeSkipped, &GenerationError{Date: date, Err: err}
	}

	slog.Info("annotation generated",
		"action", "annotation_generated",
		"date", date,
		"model", c.generator.ModelName(),
		"component", "annotation",
	)
	return OutcomeGenerated, nil
}

// Request marks date as pending and schedules Generate in the background.
// It returns once the placeholder is written. If no generator is configured
// or the date has no data, Request does nothing.
func (c *Cache) Request(ctx context.Context, date types.Date, reason string) error {
	if c.generator == nil {
		return nil
	}
	observability.RecordRequest(reason)

	in, err := c.load(ctx, date)
	if err != nil {
		return fmt.Errorf("request annotation %s: %w", date, err)
	}
	if !in.hasData() {
		return nil
	}

	if err := c.store.SetPlaceholder(ctx, date); err != nil {
		return fmt.Errorf("request annotation %s: %w", date, err)
	}

	err = c.scheduler.Submit("annotation:"+string(date), func(ctx context.Context) {
		c.runScheduled(ctx, date, reason)
	})
	if err != nil {
		_ = c.store.RestoreAnnotation(ctx, date)
		return fmt.Errorf("request annotation %s: %w", date, err)
	}

	slog.Debug("annotation requested",
		"action", "annotation_requested",
		"date", date,
		"reason", reason,
		"component", "annotation",
	)
	return nil
}

// maxRegenerations bounds how often a scheduled task retries after the
// inputs changed under a generator call.
const maxRegenerations = 3

// runScheduled is the background half of Request. A superseded result is
// regenerated from the newer inputs, since not every input change queues a
// request of its own. When no generation replaces the placeholder, the text
// it displaced is put back so the sentinel never outlives its task.
func (c *Cache) runScheduled(ctx context.Context, date types.Date, reason string) {
	for attempt := 0; attempt <= maxRegenerations; attempt++ {
		outcome, err := c.Generate(ctx, date)
		if err != nil {
			slog.Warn("annotation generation failed",
				"date", date,
				"reason", reason,
				"error", err,
				"component", "annotation",
			)
			break
		}
		if outcome == OutcomeGenerated {
			return
		}
		if outcome != OutcomeSuperseded {
			break
		}
		slog.Debug("annotation superseded, regenerating",
			"date", date,
			"attempt", attempt+1,
			"component", "annotation",
		)
	}

	if ctx.Err() != nil {
		// Shutting down: the durable sentinel is picked up by ResumePending.
		return
	}
	if err := c.store.RestoreAnnotation(ctx, date); err != nil {
		slog.Error("failed to restore annotation",
			"date", date,
			"error", err,
			"component", "annotation",
		)
	}
}

// Batch runs Generate for each date sequentially and returns the failures.
// A failing date never stops the batch.
func (c *Cache) Batch(ctx context.Context, dates []types.Date, reason string) []error {
	if c.generator == nil || len(dates) == 0 {
		return nil
	}

	var errs []error
	counts := map[Outcome]int{}
	for _, date := range dates {
		if ctx.Err() != nil {
			errs = append(errs, ctx.Err())
			break
		}
		outcome, err := c.Generate(ctx, date)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		counts[outcome]++
	}

	slog.Info("annotation batch completed",
		"action", "batch_complete",
		"reason", reason,
		"total", len(dates),
		"generated", counts[OutcomeGenerated],
		"cache_hits", counts[OutcomeCacheHit],
		"failed", len(errs),
		"component", "annotation",
	)
	return errs
}

// ResumePending reschedules every date still carrying the placeholder, as
// left behind when the process stopped mid-generation. It returns the
// number of dates scheduled.
func (c *Cache) ResumePending(ctx context.Context) (int, error) {
	if c.generator == nil {
		return 0, nil
	}
	dates, err := c.store.PendingAnnotations(ctx)
	if err != nil {
		return 0, fmt.Errorf("list pending annotations: %w", err)
	}

	scheduled := 0
	for _, date := range dates {
		err := c.scheduler.Submit("annotation:"+string(date), func(ctx context.Context) {
			c.runScheduled(ctx, date, "resume")
		})
		if err != nil {
			return scheduled, fmt.Errorf("schedule pending %s: %w", date, err)
		}
		scheduled++
	}
	return scheduled, nil
}
