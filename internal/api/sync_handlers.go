package api

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/hyperengineering/healthsync/internal/trend"
	"github.com/hyperengineering/healthsync/internal/types"
	"github.com/hyperengineering/healthsync/internal/validation"
)

const (
	// maxSyncDays bounds one on-demand sync request.
	maxSyncDays = 366

	// defaultTrendDays is how far back GET /trend looks without ?since.
	defaultTrendDays = 90
)

// SyncResponse summarises an on-demand sync.
type SyncResponse struct {
	RunID   string       `json:"run_id"`
	From    types.Date   `json:"from"`
	To      types.Date   `json:"to"`
	Changed []types.Date `json:"changed"`
	Failed  int          `json:"failed"`
}

// Sync handles POST /api/v1/sync?from=&to=. The device sync runs inline;
// annotations for changed dates are only scheduled.
func (h *Handler) Sync(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	today := h.today()

	to, verr := dateQuery(r, "to", today)
	if verr != nil {
		writeInvalidDate(w, r, verr)
		return
	}
	from, verr := dateQuery(r, "from", to.AddDays(-h.lookback))
	if verr != nil {
		writeInvalidDate(w, r, verr)
		return
	}
	if to.Before(from) {
		WriteProblem(w, r, http.StatusBadRequest, "from must not be after to")
		return
	}
	if from.AddDays(maxSyncDays).Before(to) {
		WriteProblem(w, r, http.StatusBadRequest, fmt.Sprintf("range exceeds %d days", maxSyncDays))
		return
	}

	report := h.syncer.Sync(ctx, from, to)
	for _, date := range report.Changed {
		h.requestAnnotation(r, date, ReasonDeviceSync)
	}

	changed := report.Changed
	if changed == nil {
		changed = []types.Date{}
	}
	writeJSON(w, http.StatusOK, SyncResponse{
		RunID:   report.RunID,
		From:    from,
		To:      to,
		Changed: changed,
		Failed:  len(report.Failures),
	})
}

// GetGoal handles GET /api/v1/goal
func (h *Handler) GetGoal(w http.ResponseWriter, r *http.Request) {
	goal, err := h.store.GetGoal(r.Context())
	if err != nil {
		slog.Error("get goal failed", "component", "api", "error", err)
		MapStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, goal)
}

// PutGoal handles PUT /api/v1/goal. Existing annotations are not
// regenerated; a changed goal changes every content hash, so the next
// request for a date regenerates it.
func (h *Handler) PutGoal(w http.ResponseWriter, r *http.Request) {
	var goal types.Goal
	if err := decodeJSON(w, r, &goal); err != nil {
		WriteProblem(w, r, http.StatusBadRequest, fmt.Sprintf("Invalid JSON: %s", err))
		return
	}
	if errs := validation.ValidateGoal(goal); len(errs) > 0 {
		WriteProblemWithErrors(w, r, "Request contains invalid fields", errs)
		return
	}

	if err := h.store.SetGoal(r.Context(), goal); err != nil {
		slog.Error("set goal failed", "component", "api", "error", err)
		MapStoreError(w, r, err)
		return
	}
	slog.Info("goal updated", "component", "api", "action", "goal_updated")

	h.GetGoal(w, r)
}

// Trend handles GET /api/v1/trend?since=YYYY-MM-DD
func (h *Handler) Trend(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	today := h.today()

	since, verr := dateQuery(r, "since", today.AddDays(-defaultTrendDays))
	if verr != nil {
		writeInvalidDate(w, r, verr)
		return
	}

	series, err := h.store.WeightSeries(ctx, since)
	if err != nil {
		slog.Error("weight series failed", "component", "api", "since", since, "error", err)
		MapStoreError(w, r, err)
		return
	}
	goal, err := h.store.GetGoal(ctx)
	if err != nil {
		slog.Error("get goal failed", "component", "api", "error", err)
		MapStoreError(w, r, err)
		return
	}

	result := trend.Calculate(series, goal.TargetWeight, goal.WeeklyRate, today)
	if result == nil {
		WriteProblem(w, r, http.StatusNotFound, "No weight samples in range")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

