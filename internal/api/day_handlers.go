package api

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hyperengineering/healthsync/internal/store"
	"github.com/hyperengineering/healthsync/internal/types"
	"github.com/hyperengineering/healthsync/internal/validation"
)

// Annotation request reasons.
const (
	ReasonUserEdit    = "user_edit"
	ReasonTransaction = "transaction"
	ReasonManual      = "manual"
	ReasonDeviceSync  = "device_sync"
)

// DayView is a record together with its linked transactions.
type DayView struct {
	Record       *types.DailyRecord  `json:"record"`
	Transactions []types.Transaction `json:"transactions"`
}

// defaultListDays is how far back GET /days looks without ?since.
const defaultListDays = 30

// ListDays handles GET /api/v1/days?since=YYYY-MM-DD
func (h *Handler) ListDays(w http.ResponseWriter, r *http.Request) {
	since, verr := dateQuery(r, "since", h.today().AddDays(-defaultListDays))
	if verr != nil {
		writeInvalidDate(w, r, verr)
		return
	}

	records, err := h.store.Since(r.Context(), since)
	if err != nil {
		slog.Error("list days failed", "component", "api", "since", since, "error", err)
		MapStoreError(w, r, err)
		return
	}
	if records == nil {
		records = []types.DailyRecord{}
	}
	writeJSON(w, http.StatusOK, records)
}

// GetDay handles GET /api/v1/days/{date}
func (h *Handler) GetDay(w http.ResponseWriter, r *http.Request) {
	date := MustDateFromContext(r.Context())

	rec, err := h.store.Get(r.Context(), date)
	if err != nil {
		MapStoreError(w, r, err)
		return
	}
	txs, err := h.store.ListTransactions(r.Context(), date)
	if err != nil {
		slog.Error("list transactions failed", "component", "api", "date", date, "error", err)
		MapStoreError(w, r, err)
		return
	}
	if txs == nil {
		txs = []types.Transaction{}
	}
	writeJSON(w, http.StatusOK, DayView{Record: rec, Transactions: txs})
}

// PutDay handles PUT /api/v1/days/{date}. Set fields overwrite the record
// unconditionally; a manual weight is also appended to the weight history.
func (h *Handler) PutDay(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	date := MustDateFromContext(ctx)

	var edit types.DayEdit
	if err := decodeJSON(w, r, &edit); err != nil {
		WriteProblem(w, r, http.StatusBadRequest, fmt.Sprintf("Invalid JSON: %s", err))
		return
	}
	if errs := validation.ValidateDayEdit(edit); len(errs) > 0 {
		WriteProblemWithErrors(w, r, "Request contains invalid fields", errs)
		return
	}

	rec, err := h.store.Get(ctx, date)
	if errors.Is(err, store.ErrNotFound) {
		rec = types.NewDailyRecord(date)
	} else if err != nil {
		slog.Error("load record failed", "component", "api", "date", date, "error", err)
		MapStoreError(w, r, err)
		return
	}

	changed := edit.Apply(rec)
	if changed {
		if err := h.store.Upsert(ctx, rec); err != nil {
			slog.Error("save record failed", "component", "api", "date", date, "error", err)
			MapStoreError(w, r, err)
			return
		}
	}

	if edit.Weight != nil {
		sample := types.WeightSample{Date: date, Value: *edit.Weight, Source: types.SourceManual}
		if err := h.store.AppendWeightSample(ctx, sample); err != nil {
			slog.Error("append weight sample failed", "component", "api", "date", date, "error", err)
			MapStoreError(w, r, err)
			return
		}
	}

	if changed {
		h.requestAnnotation(r, date, ReasonUserEdit)
		slog.Info("day edited",
			"component", "api",
			"action", "day_edited",
			"date", date,
		)
	}

	// Re-read so the response carries the placeholder if one was written
	if fresh, err := h.store.Get(ctx, date); err == nil {
		rec = fresh
	}
	writeJSON(w, http.StatusOK, rec)
}

// AnnotationResponse acknowledges an annotation request.
type AnnotationResponse struct {
	Date   types.Date `json:"date"`
	Status string     `json:"status"`
}

// RequestAnnotation handles POST /api/v1/days/{date}/annotation. It returns
// before generation completes.
func (h *Handler) RequestAnnotation(w http.ResponseWriter, r *http.Request) {
	date := MustDateFromContext(r.Context())

	if !h.annotator.Enabled() {
		writeJSON(w, http.StatusAccepted, AnnotationResponse{Date: date, Status: "disabled"})
		return
	}
	if err := h.annotator.Request(r.Context(), date, ReasonManual); err != nil {
		slog.Error("annotation request failed", "component", "api", "date", date, "error", err)
		MapStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, AnnotationResponse{Date: date, Status: "requested"})
}

// ListTransactions handles GET /api/v1/days/{date}/transactions
func (h *Handler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	date := MustDateFromContext(r.Context())

	txs, err := h.store.ListTransactions(r.Context(), date)
	if err != nil {
		slog.Error("list transactions failed", "component", "api", "date", date, "error", err)
		MapStoreError(w, r, err)
		return
	}
	if txs == nil {
		txs = []types.Transaction{}
	}
	writeJSON(w, http.StatusOK, txs)
}

// AddTransaction handles POST /api/v1/days/{date}/transactions
func (h *Handler) AddTransaction(w http.ResponseWriter, r *http.Request) {
	date := MustDateFromContext(r.Context())

	var tx types.NewTransaction
	if err := decodeJSON(w, r, &tx); err != nil {
		WriteProblem(w, r, http.StatusBadRequest, fmt.Sprintf("Invalid JSON: %s", err))
		return
	}
	tx.Date = date
	if errs := validation.ValidateTransaction(tx); len(errs) > 0 {
		WriteProblemWithErrors(w, r, "Request contains invalid fields", errs)
		return
	}

	created, err := h.store.AddTransaction(r.Context(), tx)
	if err != nil {
		slog.Error("add transaction failed", "component", "api", "date", date, "error", err)
		MapStoreError(w, r, err)
		return
	}

	h.requestAnnotation(r, date, ReasonTransaction)
	writeJSON(w, http.StatusCreated, created)
}

// DeleteTransaction handles DELETE /api/v1/transactions/{id}
func (h *Handler) DeleteTransaction(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if verr := validation.ValidateULID("id", id); verr != nil {
		WriteProblemWithErrors(w, r, "Request contains invalid fields", []validation.ValidationError{*verr})
		return
	}

	date, err := h.store.DeleteTransaction(r.Context(), id)
	if err != nil {
		MapStoreError(w, r, err)
		return
	}

	h.requestAnnotation(r, date, ReasonTransaction)
	w.WriteHeader(http.StatusNoContent)
}
