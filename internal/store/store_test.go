package store

import (
	"context"

	"github.com/hyperengineering/healthsync/internal/types"
)

// mockStore is a compile-time check that the Store interface can be implemented.
type mockStore struct{}

var _ Store = (*mockStore)(nil)

func (m *mockStore) Get(ctx context.Context, date types.Date) (*types.DailyRecord, error) {
	return nil, ErrNotFound
}
func (m *mockStore) Upsert(ctx context.Context, record *types.DailyRecord) error { return nil }
func (m *mockStore) Since(ctx context.Context, date types.Date) ([]types.DailyRecord, error) {
	return nil, nil
}
func (m *mockStore) SetAnnotation(ctx context.Context, date types.Date, text, hash string) error {
	return nil
}
func (m *mockStore) SetPlaceholder(ctx context.Context, date types.Date) error { return nil }
func (m *mockStore) RestoreAnnotation(ctx context.Context, date types.Date) error { return nil }
func (m *mockStore) PendingAnnotations(ctx context.Context) ([]types.Date, error) { return nil, nil }
func (m *mockStore) AppendWeightSample(ctx context.Context, sample types.WeightSample) error {
	return nil
}
func (m *mockStore) WeightSeries(ctx context.Context, since types.Date) ([]types.WeightSample, error) {
	return nil, nil
}
func (m *mockStore) GetGoal(ctx context.Context) (*types.Goal, error) { return &types.Goal{}, nil }
func (m *mockStore) SetGoal(ctx context.Context, goal types.Goal) error { return nil }
func (m *mockStore) AddTransaction(ctx context.Context, tx types.NewTransaction) (*types.Transaction, error) {
	return nil, nil
}
func (m *mockStore) ListTransactions(ctx context.Context, date types.Date) ([]types.Transaction, error) {
	return nil, nil
}
func (m *mockStore) DeleteTransaction(ctx context.Context, id string) (types.Date, error) {
	return "", ErrNotFound
}
func (m *mockStore) Close() error { return nil }
