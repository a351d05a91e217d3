package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/hyperengineering/healthsync/internal/store"
	"github.com/hyperengineering/healthsync/internal/validation"
	"github.com/hyperengineering/healthsync/internal/worker"
)

// problemBase prefixes every problem type URI.
const problemBase = "https://healthsync.dev/problems/"

// Problem represents an RFC 7807 Problem Details response.
type Problem struct {
	Type     string `json:"type"`
	Title    string `json:"title"`
	Status   int    `json:"status"`
	Detail   string `json:"detail"`
	Instance string `json:"instance,omitempty"`
}

// ProblemWithErrors extends Problem with the offending fields.
type ProblemWithErrors struct {
	Problem
	Errors []validation.ValidationError `json:"errors,omitempty"`
}

// problemKind is one class of failure the API reports. The slug becomes
// the last segment of the type URI.
type problemKind struct {
	slug  string
	title string
}

var (
	kindUnauthorized  = problemKind{"unauthorized", "API key required"}
	kindMalformed     = problemKind{"malformed-request", "Malformed request"}
	kindInvalidDate   = problemKind{"invalid-date", "Invalid calendar date"}
	kindNotFound      = problemKind{"record-not-found", "No such record"}
	kindInvalidFields = problemKind{"invalid-day-data", "Invalid day data"}
	kindInvalidTx     = problemKind{"invalid-transaction", "Invalid transaction"}
	kindQueueDown     = problemKind{"annotation-queue-unavailable", "Annotation queue unavailable"}
	kindInternal      = problemKind{"internal-error", "Internal error"}
)

// kindByStatus is the default kind for handlers that only pick a status.
var kindByStatus = map[int]problemKind{
	http.StatusUnauthorized:        kindUnauthorized,
	http.StatusBadRequest:          kindMalformed,
	http.StatusNotFound:            kindNotFound,
	http.StatusUnprocessableEntity: kindInvalidFields,
	http.StatusServiceUnavailable:  kindQueueDown,
	http.StatusInternalServerError: kindInternal,
}

func (k problemKind) typeURI() string {
	return problemBase + k.slug
}

func kindFor(status int) problemKind {
	if k, ok := kindByStatus[status]; ok {
		return k
	}
	return problemKind{slug: fmt.Sprintf("http-%d", status), title: http.StatusText(status)}
}

func writeProblemBody(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("failed to encode problem response", "component", "api", "error", err)
	}
}

func newProblem(r *http.Request, status int, kind problemKind, detail string) Problem {
	return Problem{
		Type:     kind.typeURI(),
		Title:    kind.title,
		Status:   status,
		Detail:   detail,
		Instance: r.URL.Path,
	}
}

// WriteProblem writes a Problem Details response of the default kind for
// status.
func WriteProblem(w http.ResponseWriter, r *http.Request, status int, detail string) {
	writeProblemBody(w, status, newProblem(r, status, kindFor(status), detail))
}

// WriteProblemWithErrors writes a 422 listing the invalid day fields.
func WriteProblemWithErrors(w http.ResponseWriter, r *http.Request, detail string, errs []validation.ValidationError) {
	writeProblemBody(w, http.StatusUnprocessableEntity, ProblemWithErrors{
		Problem: newProblem(r, http.StatusUnprocessableEntity, kindInvalidFields, detail),
		Errors:  errs,
	})
}

// writeInvalidDate writes a 400 for a date in the path or query that is
// not a calendar day.
func writeInvalidDate(w http.ResponseWriter, r *http.Request, verr *validation.ValidationError) {
	writeProblemBody(w, http.StatusBadRequest, ProblemWithErrors{
		Problem: newProblem(r, http.StatusBadRequest, kindInvalidDate,
			fmt.Sprintf("%s %s", verr.Field, verr.Message)),
		Errors: []validation.ValidationError{*verr},
	})
}

// MapStoreError converts store and scheduling errors to Problem Details.
// Internal details never reach the client.
func MapStoreError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		status int
		kind   problemKind
		detail string
	)
	switch {
	case errors.Is(err, store.ErrNotFound):
		status, kind, detail = http.StatusNotFound, kindNotFound, "No record for this date or id"
	case errors.Is(err, store.ErrTransactionInvalid):
		status, kind, detail = http.StatusUnprocessableEntity, kindInvalidTx, "Invalid transaction"
	case errors.Is(err, worker.ErrQueueFull), errors.Is(err, worker.ErrPoolClosed):
		status, kind, detail = http.StatusServiceUnavailable, kindQueueDown, "Annotation queue unavailable"
	default:
		status, kind, detail = http.StatusInternalServerError, kindInternal, "Internal Server Error"
	}
	writeProblemBody(w, status, newProblem(r, status, kind, detail))
}
