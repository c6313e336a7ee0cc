package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Account statuses
const (
	AccountStatusActive   = "Active"
	AccountStatusInactive = "Inactive"
)

type SavingPlan struct {
	SavingPlanID string          `json:"saving_plan_id" db:"saving_plan_id"`
	PlanType     string          `json:"plan_type" db:"plan_type"`
	Interest     decimal.Decimal `json:"interest" db:"interest"` // annual %
	MinBalance   decimal.Decimal `json:"min_balance" db:"min_balance"`
}

// Account is a savings account. Balance is mutated only through the
// transaction-processing path and the FD interest credit, both of which
// take a row lock first.
type Account struct {
	AccountID    string          `json:"account_id" db:"account_id"`
	OpenDate     time.Time       `json:"open_date" db:"open_date"`
	Status       string          `json:"account_status" db:"account_status"`
	Balance      decimal.Decimal `json:"balance" db:"balance"`
	SavingPlanID string          `json:"saving_plan_id" db:"saving_plan_id"`
	BranchID     string          `json:"branch_id" db:"branch_id"`
}
