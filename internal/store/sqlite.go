package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/hyperengineering/healthsync/internal/types"
	_ "modernc.org/sqlite"
)

// Compile-time interface check
var _ Store = (*SQLiteStore)(nil)

// SQLiteStore is the SQLite-backed canonical store.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLiteStore creates a new SQLiteStore instance.
// It initializes the database with WAL mode, applies pragmas, and runs migrations.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	// Ensure parent directory exists
	if dir := filepath.Dir(dbPath); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// An in-memory database exists per connection.
	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	if err := enablePragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable pragmas: %w", err)
	}

	if err := RunMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteStore{db: db, now: func() time.Time { return time.Now().UTC() }}, nil
}

// enablePragmas sets SQLite pragmas for optimal performance and safety.
func enablePragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
		"PRAGMA synchronous=NORMAL",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("execute %s: %w", pragma, err)
		}
	}

	return nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

const selectRecordSQL = `
	SELECT date, weight, steps, sleep_hours, resting_heart_rate, exercises,
	       note, off_plan, annotation, annotation_hash, updated_at
	FROM daily_records`

// scanRecord scans a row into a DailyRecord, decoding the exercises JSON.
func scanRecord(scanner interface{ Scan(...any) error }) (*types.DailyRecord, error) {
	var (
		date                             string
		weight, sleepHours, restingHR    sql.NullFloat64
		steps                            sql.NullInt64
		exercisesJSON                    string
		note, annotation, annotationHash sql.NullString
		offPlan                          int
		updatedAt                        string
	)

	err := scanner.Scan(
		&date,
		&weight,
		&steps,
		&sleepHours,
		&restingHR,
		&exercisesJSON,
		&note,
		&offPlan,
		&annotation,
		&annotationHash,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	r := types.NewDailyRecord(types.Date(date))
	r.Weight = nullFloat(weight)
	r.SleepHours = nullFloat(sleepHours)
	r.RestingHeartRate = nullFloat(restingHR)
	if steps.Valid {
		v := int(steps.Int64)
		r.Steps = &v
	}
	r.Note = nullString(note)
	r.OffPlan = offPlan != 0
	r.Annotation = nullString(annotation)
	r.AnnotationHash = nullString(annotationHash)

	if exercisesJSON != "" {
		if err := json.Unmarshal([]byte(exercisesJSON), &r.Exercises); err != nil {
			return nil, fmt.Errorf("parse exercises JSON: %w", err)
		}
	}

	if t, err := time.Parse(time.RFC3339, updatedAt); err == nil {
		r.UpdatedAt = t
	}

	return r, nil
}

// Get returns the record for date, or ErrNotFound.
func (s *SQLiteStore) Get(ctx context.Context, date types.Date) (*types.DailyRecord, error) {
	row := s.db.QueryRowContext(ctx, selectRecordSQL+` WHERE date = ?`, string(date))

	r, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan row: %w", err)
	}
	return r, nil
}

// Upsert writes every non-annotation field of record, creating the row if
// needed. The annotation pair is left as stored.
func (s *SQLiteStore) Upsert(ctx context.Context, record *types.DailyRecord) error {
	exercises := record.Exercises
	if exercises == nil {
		exercises = []types.Exercise{}
	}
	exercisesJSON, err := json.Marshal(exercises)
	if err != nil {
		return fmt.Errorf("marshal exercises: %w", err)
	}

	var steps any
	if record.Steps != nil {
		steps = *record.Steps
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO daily_records (
			date, weight, steps, sleep_hours, resting_heart_rate,
			exercises, note, off_plan, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(date) DO UPDATE SET
			weight = excluded.weight,
			steps = excluded.steps,
			sleep_hours = excluded.sleep_hours,
			resting_heart_rate = excluded.resting_heart_rate,
			exercises = excluded.exercises,
			note = excluded.note,
			off_plan = excluded.off_plan,
			updated_at = excluded.updated_at
	`,
		string(record.Date),
		floatArg(record.Weight),
		steps,
		floatArg(record.SleepHours),
		floatArg(record.RestingHeartRate),
		string(exercisesJSON),
		stringArg(record.Note),
		boolArg(record.OffPlan),
		s.now().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("upsert record %s: %w", record.Date, err)
	}
	return nil
}

// Since returns every record dated on or after date, oldest first.
func (s *SQLiteStore) Since(ctx context.Context, date types.Date) ([]types.DailyRecord, error) {
	rows, err := s.db.QueryContext(ctx, selectRecordSQL+` WHERE date >= ? ORDER BY date ASC`, string(date))
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}
	defer rows.Close()

	var records []types.DailyRecord
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		records = append(records, *r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return records, nil
}

// SetAnnotation stores text together with the fingerprint it was generated
// from in a single statement, creating the row if needed. Any text held
// aside by SetPlaceholder is discarded.
func (s *SQLiteStore) SetAnnotation(ctx context.Context, date types.Date, text string, hash string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO daily_records (date, annotation, annotation_hash, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(date) DO UPDATE SET
			annotation = excluded.annotation,
			annotation_hash = excluded.annotation_hash,
			annotation_prior = NULL,
			updated_at = excluded.updated_at
	`, string(date), text, hash, s.now().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("set annotation %s: %w", date, err)
	}
	return nil
}

// SetPlaceholder writes the pending sentinel into the annotation field,
// creating the row if needed. The displaced text moves to annotation_prior
// unless the row is already pending, so repeated requests keep the last
// real annotation. The stored fingerprint is kept.
func (s *SQLiteStore) SetPlaceholder(ctx context.Context, date types.Date) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO daily_records (date, annotation, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(date) DO UPDATE SET
			annotation_prior = CASE
				WHEN daily_records.annotation = excluded.annotation THEN daily_records.annotation_prior
				ELSE daily_records.annotation
			END,
			annotation = excluded.annotation,
			updated_at = excluded.updated_at
	`, string(date), types.AnnotationPending, s.now().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("set placeholder %s: %w", date, err)
	}
	return nil
}

// RestoreAnnotation puts the text displaced by SetPlaceholder back. It is a
// no-op when the annotation is no longer the sentinel, so a result written
// by a concurrent generation is never clobbered.
func (s *SQLiteStore) RestoreAnnotation(ctx context.Context, date types.Date) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE daily_records
		SET annotation = annotation_prior, annotation_prior = NULL, updated_at = ?
		WHERE date = ? AND annotation = ?
	`, s.now().Format(time.RFC3339), string(date), types.AnnotationPending)
	if err != nil {
		return fmt.Errorf("restore annotation %s: %w", date, err)
	}
	return nil
}

// PendingAnnotations returns dates whose annotation is still the sentinel.
func (s *SQLiteStore) PendingAnnotations(ctx context.Context) ([]types.Date, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT date FROM daily_records WHERE annotation = ? ORDER BY date ASC
	`, types.AnnotationPending)
	if err != nil {
		return nil, fmt.Errorf("query pending annotations: %w", err)
	}
	defer rows.Close()

	var dates []types.Date
	for rows.Next() {
		var d string
		if err := rows.Scan(&d); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		dates = append(dates, types.Date(d))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return dates, nil
}

func nullFloat(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}

func nullString(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}

func floatArg(p *float64) any {
	if p == nil {
		return nil
	}
	return *p
}

func stringArg(p *string) any {
	if p == nil {
		return nil
	}
	return *p
}

func boolArg(b bool) int {
	if b {
		return 1
	}
	return 0
}
