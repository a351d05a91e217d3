package ingest

import (
	"errors"
	"fmt"
	"strings"

	"github.com/hyperengineering/healthsync/internal/types"
	"github.com/hyperengineering/healthsync/internal/validation"
)

// ErrNoData is returned when the platform has nothing recorded for a date.
var ErrNoData = errors.New("no data for date")

// InvalidObservationError reports an observation rejected at the boundary.
type InvalidObservationError struct {
	Date   types.Date
	Errors []validation.ValidationError
}

func (e *InvalidObservationError) Error() string {
	fields := make([]string, len(e.Errors))
	for i, v := range e.Errors {
		fields[i] = v.Field + " " + v.Message
	}
	return fmt.Sprintf("invalid observation for %s: %s", e.Date, strings.Join(fields, "; "))
}
