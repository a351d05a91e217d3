package annotation

import (
	"fmt"

	"github.com/hyperengineering/healthsync/internal/types"
)

// GenerationError is a per-date annotation failure. The stored annotation
// and fingerprint are left as they were.
type GenerationError struct {
	Date types.Date
	Err  error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("generate annotation %s: %v", e.Date, e.Err)
}

func (e *GenerationError) Unwrap() error {
	return e.Err
}
