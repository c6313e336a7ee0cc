package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Transaction types
const (
	TxTypeDeposit    = "Deposit"
	TxTypeWithdrawal = "Withdrawal"
	TxTypeInterest   = "Interest"
)

// Transaction is an append-only ledger entry. Rows are never updated or
// deleted once written.
type Transaction struct {
	TransactionID   string          `json:"transaction_id" db:"transaction_id"`
	TransactionType string          `json:"transaction_type" db:"transaction_type"`
	Amount          decimal.Decimal `json:"amount" db:"amount"`
	Time            time.Time       `json:"time" db:"time"`
	Description     string          `json:"description" db:"description"`
	AccountID       string          `json:"account_id" db:"account_id"`
	EmployeeID      string          `json:"employee_id" db:"employee_id"`
}
