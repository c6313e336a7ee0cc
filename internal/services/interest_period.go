package services

import (
	"database/sql"
	"time"
)

// sqlRunner is satisfied by both *sql.DB and *sql.Tx; the accrual engine
// passes its transaction so period checks see uncommitted state.
type sqlRunner interface {
	Exec(query string, args ...any) (sql.Result, error)
	Query(query string, args ...any) (*sql.Rows, error)
	QueryRow(query string, args ...any) *sql.Row
}

// PeriodRegistry tracks which calendar months the accrual batch has fully
// processed. Records are insert-only; the registry never updates or deletes.
type PeriodRegistry struct{}

// IsPeriodProcessed reports whether a processed period exists whose start
// falls inside the month beginning at monthStart.
func (PeriodRegistry) IsPeriodProcessed(q sqlRunner, monthStart time.Time) (bool, error) {
	var exists bool
	err := q.QueryRow(`
		SELECT EXISTS(
			SELECT 1 FROM interest_period
			WHERE is_processed = true AND period_start >= $1 AND period_start < $2
		)`, monthStart, monthStart.AddDate(0, 1, 0)).Scan(&exists)
	return exists, err
}

// MarkPeriodProcessed inserts a processed-period record. The engine calls it
// at most once per run, but the registry re-checks for an overlapping
// processed month and returns ErrDuplicatePeriod rather than inserting twice.
func (r PeriodRegistry) MarkPeriodProcessed(q sqlRunner, periodStart, periodEnd, processedAt time.Time) error {
	monthStart := time.Date(periodStart.Year(), periodStart.Month(), 1, 0, 0, 0, 0, periodStart.Location())
	exists, err := r.IsPeriodProcessed(q, monthStart)
	if err != nil {
		return err
	}
	if exists {
		return ErrDuplicatePeriod
	}

	_, err = q.Exec(`
		INSERT INTO interest_period (period_start, period_end, is_processed, processed_at)
		VALUES ($1, $2, true, $3)`,
		periodStart, periodEnd, processedAt)
	return err
}
