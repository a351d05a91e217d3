package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/hyperengineering/healthsync/internal/types"
)

// SyncReason is the annotation batch reason used for device syncs.
const SyncReason = "device_sync"

// Syncer runs one device sync over a date range and returns changed dates.
type Syncer interface {
	SyncRange(ctx context.Context, from, to types.Date) []types.Date
}

// Annotator regenerates annotations for changed dates and resumes
// placeholders left by an earlier run.
type Annotator interface {
	Batch(ctx context.Context, dates []types.Date, reason string) []error
	ResumePending(ctx context.Context) (int, error)
}

// SyncCoordinator periodically syncs the trailing lookback window and hands
// the changed dates to the annotator.
type SyncCoordinator struct {
	syncer    Syncer
	annotator Annotator
	interval  time.Duration
	lookback  int
	loc       *time.Location
	now       func() time.Time
}

// NewSyncCoordinator creates a coordinator. lookbackDays is the number of
// days before today included in each sync.
func NewSyncCoordinator(
	s Syncer,
	a Annotator,
	interval time.Duration,
	lookbackDays int,
	loc *time.Location,
) *SyncCoordinator {
	if loc == nil {
		loc = time.UTC
	}
	if lookbackDays < 0 {
		lookbackDays = 0
	}
	return &SyncCoordinator{
		syncer:    s,
		annotator: a,
		interval:  interval,
		lookback:  lookbackDays,
		loc:       loc,
		now:       time.Now,
	}
}

// Run starts the coordinator loop. Blocks until ctx is cancelled.
func (c *SyncCoordinator) Run(ctx context.Context) {
	slog.Info("worker started",
		"component", "worker",
		"worker", "sync-coordinator",
		"action", "worker_started",
		"interval", c.interval.String(),
		"lookback_days", c.lookback,
	)

	c.resume(ctx)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	// Sync immediately on start, then on each tick
	c.RunOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			slog.Info("worker stopped",
				"component", "worker",
				"worker", "sync-coordinator",
				"action", "worker_stopped",
				"reason", "context_cancelled",
			)
			return
		case <-ticker.C:
			c.RunOnce(ctx)
		}
	}
}

// RunOnce syncs today and the lookback window, then batches the changed
// dates. It returns the changed dates.
func (c *SyncCoordinator) RunOnce(ctx context.Context) []types.Date {
	today := types.DateOf(c.now().In(c.loc))
	from := today.AddDays(-c.lookback)

	changed := c.syncer.SyncRange(ctx, from, today)
	if ctx.Err() != nil || len(changed) == 0 {
		return changed
	}

	errs := c.annotator.Batch(ctx, changed, SyncReason)
	for _, err := range errs {
		if ctx.Err() != nil {
			break
		}
		slog.Warn("annotation failed after sync",
			"component", "worker",
			"worker", "sync-coordinator",
			"action", "batch_failed",
			"error", err,
		)
	}
	return changed
}

func (c *SyncCoordinator) resume(ctx context.Context) {
	n, err := c.annotator.ResumePending(ctx)
	if err != nil {
		slog.Error("failed to resume pending annotations",
			"component", "worker",
			"worker", "sync-coordinator",
			"action", "resume_failed",
			"error", err,
		)
		return
	}
	if n > 0 {
		slog.Info("resumed pending annotations",
			"component", "worker",
			"worker", "sync-coordinator",
			"action", "resume_pending",
			"count", n,
		)
	}
}
