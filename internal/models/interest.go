package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Interest calculation statuses
const (
	CalcStatusCredited = "credited"
	CalcStatusFailed   = "failed"
)

// InterestCalculation is the per-(deposit, month) audit row. At most one
// credited row may exist for a given deposit and calendar month; this is the
// per-deposit idempotence guard for the accrual batch.
type InterestCalculation struct {
	ID              int64           `json:"id" db:"id"`
	FDID            string          `json:"fd_id" db:"fd_id"`
	CalculationDate time.Time       `json:"calculation_date" db:"calculation_date"`
	InterestAmount  decimal.Decimal `json:"interest_amount" db:"interest_amount"`
	PeriodDays      int             `json:"period_days" db:"period_days"`
	AccountID       string          `json:"account_id" db:"account_id"`
	Status          string          `json:"status" db:"status"`
	CreditedAt      *time.Time      `json:"credited_at,omitempty" db:"credited_at"`
}

// InterestPeriod marks a calendar month as fully processed. Rows are created
// only by the accrual engine and are immutable afterwards; at most one
// processed row exists per month.
type InterestPeriod struct {
	ID          int64     `json:"id" db:"id"`
	PeriodStart time.Time `json:"period_start" db:"period_start"`
	PeriodEnd   time.Time `json:"period_end" db:"period_end"`
	IsProcessed bool      `json:"is_processed" db:"is_processed"`
	ProcessedAt time.Time `json:"processed_at" db:"processed_at"`
}
