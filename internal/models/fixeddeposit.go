package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Fixed deposit statuses
const (
	FDStatusActive = "Active"
	FDStatusClosed = "Closed"
)

type FixedDepositPlan struct {
	FDPlanID       string          `json:"fd_plan_id" db:"fd_plan_id"`
	DurationMonths int             `json:"duration_months" db:"duration_months"`
	InterestRate   decimal.Decimal `json:"interest_rate" db:"interest_rate"` // annual %
}

// FixedDeposit locks a principal for the plan duration. Interest is credited
// to the linked savings account, never to fd_balance: the principal only
// changes through explicit withdrawal or closure.
type FixedDeposit struct {
	FDID         string          `json:"fd_id" db:"fd_id"`
	Balance      decimal.Decimal `json:"fd_balance" db:"fd_balance"`
	Status       string          `json:"fd_status" db:"fd_status"`
	OpenDate     time.Time       `json:"open_date" db:"open_date"`
	MaturityDate time.Time       `json:"maturity_date" db:"maturity_date"`
	FDPlanID     string          `json:"fd_plan_id" db:"fd_plan_id"`
	AccountID    string          `json:"account_id" db:"account_id"`
}
