package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hyperengineering/healthsync/internal/types"
	"github.com/hyperengineering/healthsync/internal/validation"
)

// dateContextKey is the context key for the parsed {date} URL parameter.
type dateContextKey struct{}

// WithDate returns a new context with the record date attached.
func WithDate(ctx context.Context, date types.Date) context.Context {
	return context.WithValue(ctx, dateContextKey{}, date)
}

// DateFromContext extracts the record date from the context.
func DateFromContext(ctx context.Context) (types.Date, bool) {
	d, ok := ctx.Value(dateContextKey{}).(types.Date)
	if !ok || d == "" {
		return "", false
	}
	return d, true
}

// MustDateFromContext extracts the date or panics.
// Use only when DateMiddleware guarantees presence.
func MustDateFromContext(ctx context.Context) types.Date {
	d, ok := DateFromContext(ctx)
	if !ok {
		panic("date not in context: middleware misconfiguration")
	}
	return d
}

// DateMiddleware parses the {date} URL parameter and rejects malformed
// dates with 400 before the handler runs.
func DateMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := chi.URLParam(r, "date")
		if verr := validation.ValidateDate("date", raw); verr != nil {
			writeInvalidDate(w, r, verr)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithDate(r.Context(), types.Date(raw))))
	})
}
