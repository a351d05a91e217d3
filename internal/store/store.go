package store

import (
	"context"

	"github.com/hyperengineering/healthsync/internal/types"
)

// Store is the canonical per-date record storage plus the side tables the
// engines read: weight history, the active goal and linked transactions.
//
// Writes are last-writer-wins. Upsert never touches the annotation pair and
// the annotation methods never touch observable fields, which keeps the
// three writer roles field-disjoint.
type Store interface {
	Get(ctx context.Context, date types.Date) (*types.DailyRecord, error)
	Upsert(ctx context.Context, record *types.DailyRecord) error
	Since(ctx context.Context, date types.Date) ([]types.DailyRecord, error)

	SetAnnotation(ctx context.Context, date types.Date, text string, hash string) error
	SetPlaceholder(ctx context.Context, date types.Date) error
	RestoreAnnotation(ctx context.Context, date types.Date) error
	PendingAnnotations(ctx context.Context) ([]types.Date, error)

	AppendWeightSample(ctx context.Context, sample types.WeightSample) error
	WeightSeries(ctx context.Context, since types.Date) ([]types.WeightSample, error)

	GetGoal(ctx context.Context) (*types.Goal, error)
	SetGoal(ctx context.Context, goal types.Goal) error

	AddTransaction(ctx context.Context, tx types.NewTransaction) (*types.Transaction, error)
	ListTransactions(ctx context.Context, date types.Date) ([]types.Transaction, error)
	DeleteTransaction(ctx context.Context, id string) (types.Date, error)

	Close() error
}
