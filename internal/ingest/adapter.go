// Package ingest reads per-date observations from the health platform.
package ingest

import (
	"context"

	"github.com/hyperengineering/healthsync/internal/types"
)

// Adapter fetches the raw observation for a single date.
//
// Fetch returns ErrNoData when nothing is recorded. Any other error is a
// transient failure the caller may log and treat as no data.
type Adapter interface {
	Fetch(ctx context.Context, date types.Date) (types.SourceObservation, error)
}

// Disabled is the Adapter used when no platform is configured.
type Disabled struct{}

// Fetch always returns ErrNoData.
func (Disabled) Fetch(ctx context.Context, date types.Date) (types.SourceObservation, error) {
	return types.SourceObservation{}, ErrNoData
}
