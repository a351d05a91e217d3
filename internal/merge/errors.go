package merge

import (
	"fmt"

	"github.com/hyperengineering/healthsync/internal/types"
)

// FetchError is a per-date adapter failure. It is logged and counted, and
// the date is treated as having no data.
type FetchError struct {
	Date types.Date
	Err  error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s: %v", e.Date, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}
