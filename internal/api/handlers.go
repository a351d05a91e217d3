package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/hyperengineering/healthsync/internal/merge"
	"github.com/hyperengineering/healthsync/internal/store"
	"github.com/hyperengineering/healthsync/internal/types"
	"github.com/hyperengineering/healthsync/internal/validation"
)

// maxBodyBytes bounds every JSON request body.
const maxBodyBytes = 1 << 20

// Annotator is the subset of the annotation cache the handlers use.
type Annotator interface {
	Request(ctx context.Context, date types.Date, reason string) error
	Enabled() bool
}

// Syncer runs an on-demand device sync.
type Syncer interface {
	Sync(ctx context.Context, from, to types.Date) merge.Report
}

// Options carries the handler settings that are not collaborators.
type Options struct {
	APIKey       string
	Version      string
	ModelName    string
	LookbackDays int
	Location     *time.Location
}

// Handler implements the API handlers
type Handler struct {
	store     store.Store
	annotator Annotator
	syncer    Syncer
	apiKey    string
	version   string
	modelName string
	lookback  int
	loc       *time.Location
	now       func() time.Time
}

// NewHandler creates a new Handler.
func NewHandler(s store.Store, a Annotator, sy Syncer, opts Options) *Handler {
	loc := opts.Location
	if loc == nil {
		loc = time.UTC
	}
	return &Handler{
		store:     s,
		annotator: a,
		syncer:    sy,
		apiKey:    opts.APIKey,
		version:   opts.Version,
		modelName: opts.ModelName,
		lookback:  opts.LookbackDays,
		loc:       loc,
		now:       time.Now,
	}
}

// HealthResponse is returned by GET /api/v1/health.
type HealthResponse struct {
	Status            string `json:"status"`
	Version           string `json:"version"`
	AnnotationEnabled bool   `json:"annotation_enabled"`
	AnnotationModel   string `json:"annotation_model,omitempty"`
}

// Health returns the health status
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Status:            "healthy",
		Version:           h.version,
		AnnotationEnabled: h.annotator.Enabled(),
	}
	if resp.AnnotationEnabled {
		resp.AnnotationModel = h.modelName
	}
	writeJSON(w, http.StatusOK, resp)
}

// today is the current calendar date in the configured zone.
func (h *Handler) today() types.Date {
	return types.DateOf(h.now().In(h.loc))
}

// requestAnnotation schedules regeneration after a successful write. A
// failure here never fails the write that triggered it.
func (h *Handler) requestAnnotation(r *http.Request, date types.Date, reason string) {
	if err := h.annotator.Request(r.Context(), date, reason); err != nil {
		slog.Warn("annotation request failed",
			"component", "api",
			"action", "annotation_request_failed",
			"date", date,
			"reason", reason,
			"error", err,
		)
	}
}

// dateQuery parses an optional YYYY-MM-DD query parameter, returning def
// when it is absent.
func dateQuery(r *http.Request, name string, def types.Date) (types.Date, *validation.ValidationError) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	if verr := validation.ValidateDate(name, raw); verr != nil {
		return "", verr
	}
	return types.Date(raw), nil
}

// decodeJSON decodes a bounded request body into v, rejecting unknown
// fields and trailing data.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return err
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return errors.New("request body must contain a single JSON object")
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "component", "api", "error", err)
	}
}
