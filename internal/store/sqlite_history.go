package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hyperengineering/healthsync/internal/types"
	"github.com/oklog/ulid/v2"
	"github.com/shopspring/decimal"
)

// AppendWeightSample appends one sample to the weight history.
func (s *SQLiteStore) AppendWeightSample(ctx context.Context, sample types.WeightSample) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO weight_samples (date, value, source, recorded_at)
		VALUES (?, ?, ?, ?)
	`, string(sample.Date), sample.Value, string(sample.Source), s.now().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("append weight sample: %w", err)
	}
	return nil
}

// WeightSeries returns one sample per date on or after since, oldest first.
// When a date has several samples the most recent manual one wins, then the
// most recent device one.
func (s *SQLiteStore) WeightSeries(ctx context.Context, since types.Date) ([]types.WeightSample, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT date, value, source
		FROM weight_samples
		WHERE date >= ?
		ORDER BY date ASC,
		         CASE source WHEN 'manual' THEN 0 ELSE 1 END ASC,
		         id DESC
	`, string(since))
	if err != nil {
		return nil, fmt.Errorf("query weight samples: %w", err)
	}
	defer rows.Close()

	var series []types.WeightSample
	for rows.Next() {
		var date, source string
		var value float64
		if err := rows.Scan(&date, &value, &source); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		if n := len(series); n > 0 && series[n-1].Date == types.Date(date) {
			continue
		}
		series = append(series, types.WeightSample{
			Date:   types.Date(date),
			Value:  value,
			Source: types.WeightSource(source),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return series, nil
}

// GetGoal returns the active goal. A store with no goal returns an empty one.
func (s *SQLiteStore) GetGoal(ctx context.Context) (*types.Goal, error) {
	var (
		target, rate sql.NullFloat64
		stepTarget   sql.NullInt64
		updatedAt    string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT target_weight, weekly_rate, daily_step_target, updated_at
		FROM goals WHERE id = 1
	`).Scan(&target, &rate, &stepTarget, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return &types.Goal{}, nil
		}
		return nil, fmt.Errorf("query goal: %w", err)
	}

	goal := &types.Goal{
		TargetWeight: nullFloat(target),
		WeeklyRate:   nullFloat(rate),
	}
	if stepTarget.Valid {
		v := int(stepTarget.Int64)
		goal.DailyStepTarget = &v
	}
	if t, err := time.Parse(time.RFC3339, updatedAt); err == nil {
		goal.UpdatedAt = t
	}
	return goal, nil
}

// SetGoal replaces the active goal.
func (s *SQLiteStore) SetGoal(ctx context.Context, goal types.Goal) error {
	var stepTarget any
	if goal.DailyStepTarget != nil {
		stepTarget = *goal.DailyStepTarget
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO goals (id, target_weight, weekly_rate, daily_step_target, updated_at)
		VALUES (1, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			target_weight = excluded.target_weight,
			weekly_rate = excluded.weekly_rate,
			daily_step_target = excluded.daily_step_target,
			updated_at = excluded.updated_at
	`, floatArg(goal.TargetWeight), floatArg(goal.WeeklyRate), stepTarget, s.now().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("set goal: %w", err)
	}
	return nil
}

// AddTransaction stores a new transaction linked to tx.Date.
func (s *SQLiteStore) AddTransaction(ctx context.Context, tx types.NewTransaction) (*types.Transaction, error) {
	if tx.Date == "" || strings.TrimSpace(tx.Description) == "" || tx.Currency == "" {
		return nil, ErrTransactionInvalid
	}

	created := types.Transaction{
		ID:          ulid.Make().String(),
		Date:        tx.Date,
		Description: tx.Description,
		Category:    tx.Category,
		Amount:      tx.Amount,
		Currency:    strings.ToUpper(tx.Currency),
		CreatedAt:   s.now(),
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO transactions (id, date, description, category, amount, currency, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, created.ID, string(created.Date), created.Description, created.Category,
		created.Amount.String(), created.Currency, created.CreatedAt.Format(time.RFC3339))
	if err != nil {
		return nil, fmt.Errorf("insert transaction: %w", err)
	}
	return &created, nil
}

// ListTransactions returns the transactions linked to date, ordered by ID.
func (s *SQLiteStore) ListTransactions(ctx context.Context, date types.Date) ([]types.Transaction, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, date, description, category, amount, currency, created_at
		FROM transactions
		WHERE date = ?
		ORDER BY id ASC
	`, string(date))
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	defer rows.Close()

	var txs []types.Transaction
	for rows.Next() {
		var tx types.Transaction
		var d, amount, createdAt string
		if err := rows.Scan(&tx.ID, &d, &tx.Description, &tx.Category, &amount, &tx.Currency, &createdAt); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		tx.Date = types.Date(d)
		tx.Amount, err = decimal.NewFromString(amount)
		if err != nil {
			return nil, fmt.Errorf("parse amount %q: %w", amount, err)
		}
		if t, err := time.Parse(time.RFC3339, createdAt); err == nil {
			tx.CreatedAt = t
		}
		txs = append(txs, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return txs, nil
}

// DeleteTransaction removes the transaction and returns the date it was
// linked to, or ErrNotFound.
func (s *SQLiteStore) DeleteTransaction(ctx context.Context, id string) (types.Date, error) {
	var date string
	err := s.db.QueryRowContext(ctx, `DELETE FROM transactions WHERE id = ? RETURNING date`, id).Scan(&date)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("delete transaction: %w", err)
	}
	return types.Date(date), nil
}
