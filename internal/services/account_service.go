package services

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/microbank/backoffice/internal/middleware"
	"github.com/microbank/backoffice/internal/models"
)

type AccountService struct {
	db        *sql.DB
	validator *ValidationHelper
}

// CreateAccountRequest represents the savings account creation payload
// @Description Account creation request structure
type CreateAccountRequest struct {
	CustomerIDs    []string        `json:"customer_ids" validate:"required,min=1,dive,required"` // Joint accounts carry several holders
	SavingPlanID   string          `json:"saving_plan_id" validate:"required" example:"SP001"`
	BranchID       string          `json:"branch_id" validate:"required" example:"BR001"`
	InitialDeposit decimal.Decimal `json:"initial_deposit" validate:"required"`
}

// ProcessTransactionRequest represents a deposit or withdrawal request
// @Description Transaction processing request structure
type ProcessTransactionRequest struct {
	AccountID       string          `json:"account_id" validate:"required" example:"ACC001"`
	TransactionType string          `json:"transaction_type" validate:"required,oneof=Deposit Withdrawal" example:"Deposit"`
	Amount          decimal.Decimal `json:"amount" validate:"required"`
	Description     string          `json:"description" validate:"max=200" example:"Weekly savings"`
}

func NewAccountService(db *sql.DB) *AccountService {
	return &AccountService{db: db, validator: NewValidationHelper()}
}

// ListSavingPlans returns all saving plans
// @Summary List saving plans
// @Tags accounts
// @Produce json
// @Success 200 {array} models.SavingPlan
// @Failure 500 {string} string "Internal server error"
// @Router /saving-plans [get]
func (s *AccountService) ListSavingPlans(w http.ResponseWriter, r *http.Request) {
	rows, err := s.db.Query(`SELECT saving_plan_id, plan_type, interest, min_balance FROM savingplan ORDER BY saving_plan_id`)
	if err != nil {
		log.Printf("[ACCOUNT] Saving plan listing failed: %v", err)
		SendErrorResponse(w, "Failed to list saving plans", http.StatusInternalServerError, nil)
		return
	}
	defer rows.Close()

	plans := []models.SavingPlan{}
	for rows.Next() {
		var p models.SavingPlan
		if err := rows.Scan(&p.SavingPlanID, &p.PlanType, &p.Interest, &p.MinBalance); err != nil {
			log.Printf("[ACCOUNT] Saving plan row scan failed: %v", err)
			SendErrorResponse(w, "Failed to list saving plans", http.StatusInternalServerError, nil)
			return
		}
		plans = append(plans, p)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(plans)
}

// CreateAccount opens a savings account
// @Summary Create savings account
// @Description Open a savings account for one or more customers with an initial deposit meeting the plan minimum
// @Tags accounts
// @Accept json
// @Produce json
// @Param request body CreateAccountRequest true "Account creation request"
// @Success 200 {object} models.Account
// @Failure 400 {string} string "Invalid request or deposit below plan minimum"
// @Failure 404 {string} string "Saving plan or customer not found"
// @Failure 500 {string} string "Internal server error"
// @Router /agent/accounts/create [post]
func (s *AccountService) CreateAccount(w http.ResponseWriter, r *http.Request) {
	actor, _ := r.Context().Value(middleware.EmployeeIDKey).(string)

	var req CreateAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		SendErrorResponse(w, "Invalid request", http.StatusBadRequest, nil)
		return
	}

	if err := s.validator.ValidateStruct(&req); err != nil {
		log.Printf("[ACCOUNT] Account validation failed: %v", err)
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	tx, err := s.db.Begin()
	if err != nil {
		log.Printf("[ACCOUNT] Transaction start failed: %v", err)
		SendErrorResponse(w, "Failed to create account", http.StatusInternalServerError, nil)
		return
	}
	defer tx.Rollback()

	var minBalance decimal.Decimal
	err = tx.QueryRow(`SELECT min_balance FROM savingplan WHERE saving_plan_id = $1`, req.SavingPlanID).Scan(&minBalance)
	if err == sql.ErrNoRows {
		SendErrorResponse(w, "Saving plan not found", http.StatusNotFound, nil)
		return
	}
	if err != nil {
		log.Printf("[ACCOUNT] Saving plan lookup failed: %v", err)
		SendErrorResponse(w, "Failed to create account", http.StatusInternalServerError, nil)
		return
	}

	if req.InitialDeposit.LessThan(minBalance) {
		SendErrorResponse(w, fmt.Sprintf("Initial deposit is below the plan minimum of %s", minBalance), http.StatusBadRequest, nil)
		return
	}

	for _, customerID := range req.CustomerIDs {
		var exists bool
		if err := tx.QueryRow(`SELECT EXISTS(SELECT 1 FROM customer WHERE customer_id = $1)`, customerID).Scan(&exists); err != nil {
			log.Printf("[ACCOUNT] Customer check failed: %v", err)
			SendErrorResponse(w, "Failed to create account", http.StatusInternalServerError, nil)
			return
		}
		if !exists {
			SendErrorResponse(w, fmt.Sprintf("Customer %s not found", customerID), http.StatusNotFound, nil)
			return
		}
	}

	accountID, err := nextSequentialID(tx, "account", "account_id", "ACC")
	if err != nil {
		log.Printf("[ACCOUNT] Account ID generation failed: %v", err)
		SendErrorResponse(w, "Failed to create account", http.StatusInternalServerError, nil)
		return
	}

	now := time.Now()
	if _, err := tx.Exec(`
		INSERT INTO account (account_id, open_date, account_status, balance, saving_plan_id, branch_id)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		accountID, now, models.AccountStatusActive, req.InitialDeposit, req.SavingPlanID, req.BranchID); err != nil {
		log.Printf("[ACCOUNT] Account creation failed: %v", err)
		SendErrorResponse(w, "Failed to create account", http.StatusInternalServerError, nil)
		return
	}

	for _, customerID := range req.CustomerIDs {
		if _, err := tx.Exec(`INSERT INTO takes (customer_id, account_id) VALUES ($1, $2)`, customerID, accountID); err != nil {
			log.Printf("[ACCOUNT] Holder link failed for %s: %v", customerID, err)
			SendErrorResponse(w, "Failed to create account", http.StatusInternalServerError, nil)
			return
		}
	}

	if _, err := tx.Exec(`
		INSERT INTO transaction (transaction_id, transaction_type, amount, time, description, account_id, employee_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		uuid.NewString(), models.TxTypeDeposit, req.InitialDeposit, now, "Initial deposit", accountID, actor); err != nil {
		log.Printf("[ACCOUNT] Initial deposit record failed: %v", err)
		SendErrorResponse(w, "Failed to create account", http.StatusInternalServerError, nil)
		return
	}

	if err := tx.Commit(); err != nil {
		log.Printf("[ACCOUNT] Transaction commit failed: %v", err)
		SendErrorResponse(w, "Failed to create account", http.StatusInternalServerError, nil)
		return
	}

	log.Printf("[ACCOUNT] Account created - ID: %s, Plan: %s, Holders: %d", accountID, req.SavingPlanID, len(req.CustomerIDs))
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(models.Account{
		AccountID:    accountID,
		OpenDate:     now,
		Status:       models.AccountStatusActive,
		Balance:      req.InitialDeposit,
		SavingPlanID: req.SavingPlanID,
		BranchID:     req.BranchID,
	})
}

// ListAccounts returns accounts with their holders
// @Summary List accounts
// @Tags accounts
// @Produce json
// @Param branch_id query string false "Filter by branch"
// @Success 200 {array} models.Account
// @Failure 500 {string} string "Internal server error"
// @Router /agent/accounts [get]
func (s *AccountService) ListAccounts(w http.ResponseWriter, r *http.Request) {
	branchID := r.URL.Query().Get("branch_id")

	var rows *sql.Rows
	var err error
	if branchID != "" {
		rows, err = s.db.Query(`
			SELECT account_id, open_date, account_status, balance, saving_plan_id, branch_id
			FROM account WHERE branch_id = $1 ORDER BY account_id`, branchID)
	} else {
		rows, err = s.db.Query(`
			SELECT account_id, open_date, account_status, balance, saving_plan_id, branch_id
			FROM account ORDER BY account_id`)
	}
	if err != nil {
		log.Printf("[ACCOUNT] Account listing failed: %v", err)
		SendErrorResponse(w, "Failed to list accounts", http.StatusInternalServerError, nil)
		return
	}
	defer rows.Close()

	accounts := []models.Account{}
	for rows.Next() {
		var a models.Account
		if err := rows.Scan(&a.AccountID, &a.OpenDate, &a.Status, &a.Balance, &a.SavingPlanID, &a.BranchID); err != nil {
			log.Printf("[ACCOUNT] Account row scan failed: %v", err)
			SendErrorResponse(w, "Failed to list accounts", http.StatusInternalServerError, nil)
			return
		}
		accounts = append(accounts, a)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(accounts)
}

// ProcessTransaction applies a deposit or withdrawal
// @Summary Process transaction
// @Description Apply a deposit or withdrawal to an active account; withdrawals may not take the balance below the plan minimum
// @Tags accounts
// @Accept json
// @Produce json
// @Param request body ProcessTransactionRequest true "Transaction request"
// @Success 200 {object} models.Transaction
// @Failure 400 {string} string "Invalid request or insufficient balance"
// @Failure 404 {string} string "Account not found"
// @Failure 500 {string} string "Internal server error"
// @Router /agent/transactions/process [post]
func (s *AccountService) ProcessTransaction(w http.ResponseWriter, r *http.Request) {
	actor, _ := r.Context().Value(middleware.EmployeeIDKey).(string)

	var req ProcessTransactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		SendErrorResponse(w, "Invalid request", http.StatusBadRequest, nil)
		return
	}

	if err := s.validator.ValidateStruct(&req); err != nil {
		log.Printf("[ACCOUNT] Transaction validation failed: %v", err)
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	if !req.Amount.IsPositive() {
		SendErrorResponse(w, "Amount must be positive", http.StatusBadRequest, nil)
		return
	}

	tx, err := s.db.Begin()
	if err != nil {
		log.Printf("[ACCOUNT] Transaction start failed: %v", err)
		SendErrorResponse(w, "Failed to process transaction", http.StatusInternalServerError, nil)
		return
	}
	defer tx.Rollback()

	var balance, minBalance decimal.Decimal
	var status string
	err = tx.QueryRow(`
		SELECT a.balance, a.account_status, p.min_balance
		FROM account a
		JOIN savingplan p ON a.saving_plan_id = p.saving_plan_id
		WHERE a.account_id = $1
		FOR UPDATE OF a`,
		req.AccountID).Scan(&balance, &status, &minBalance)
	if err == sql.ErrNoRows {
		SendErrorResponse(w, "Account not found", http.StatusNotFound, nil)
		return
	}
	if err != nil {
		log.Printf("[ACCOUNT] Account lock failed for %s: %v", req.AccountID, err)
		SendErrorResponse(w, "Failed to process transaction", http.StatusInternalServerError, nil)
		return
	}

	if status != models.AccountStatusActive {
		SendErrorResponse(w, "Account is not active", http.StatusBadRequest, nil)
		return
	}

	var newBalance decimal.Decimal
	switch req.TransactionType {
	case models.TxTypeDeposit:
		newBalance = balance.Add(req.Amount)
	case models.TxTypeWithdrawal:
		newBalance = balance.Sub(req.Amount)
		if newBalance.LessThan(minBalance) {
			SendErrorResponse(w, fmt.Sprintf("Withdrawal would take the balance below the plan minimum of %s", minBalance), http.StatusBadRequest, nil)
			return
		}
	default:
		SendErrorResponse(w, "Unsupported transaction type", http.StatusBadRequest, nil)
		return
	}

	if _, err := tx.Exec(`UPDATE account SET balance = $1 WHERE account_id = $2`, newBalance, req.AccountID); err != nil {
		log.Printf("[ACCOUNT] Balance update failed for %s: %v", req.AccountID, err)
		SendErrorResponse(w, "Failed to process transaction", http.StatusInternalServerError, nil)
		return
	}

	record := models.Transaction{
		TransactionID:   uuid.NewString(),
		TransactionType: req.TransactionType,
		Amount:          req.Amount,
		Time:            time.Now(),
		Description:     req.Description,
		AccountID:       req.AccountID,
		EmployeeID:      actor,
	}
	if _, err := tx.Exec(`
		INSERT INTO transaction (transaction_id, transaction_type, amount, time, description, account_id, employee_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		record.TransactionID, record.TransactionType, record.Amount, record.Time,
		record.Description, record.AccountID, record.EmployeeID); err != nil {
		log.Printf("[ACCOUNT] Ledger insert failed for %s: %v", req.AccountID, err)
		SendErrorResponse(w, "Failed to process transaction", http.StatusInternalServerError, nil)
		return
	}

	if err := tx.Commit(); err != nil {
		log.Printf("[ACCOUNT] Transaction commit failed: %v", err)
		SendErrorResponse(w, "Failed to process transaction", http.StatusInternalServerError, nil)
		return
	}

	log.Printf("[ACCOUNT] %s of %s on %s by %s, balance %s -> %s",
		req.TransactionType, req.Amount, req.AccountID, actor, balance, newBalance)
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(record)
}

// RecentTransactions returns the latest ledger entries
// @Summary Recent transactions
// @Description The 20 most recent ledger entries, optionally filtered by account
// @Tags accounts
// @Produce json
// @Param account_id query string false "Filter by account"
// @Success 200 {array} models.Transaction
// @Failure 500 {string} string "Internal server error"
// @Router /agent/transactions/recent [get]
func (s *AccountService) RecentTransactions(w http.ResponseWriter, r *http.Request) {
	accountID := r.URL.Query().Get("account_id")

	var rows *sql.Rows
	var err error
	if accountID != "" {
		rows, err = s.db.Query(`
			SELECT transaction_id, transaction_type, amount, time, description, account_id, employee_id
			FROM transaction WHERE account_id = $1 ORDER BY time DESC LIMIT 20`, accountID)
	} else {
		rows, err = s.db.Query(`
			SELECT transaction_id, transaction_type, amount, time, description, account_id, employee_id
			FROM transaction ORDER BY time DESC LIMIT 20`)
	}
	if err != nil {
		log.Printf("[ACCOUNT] Transaction listing failed: %v", err)
		SendErrorResponse(w, "Failed to list transactions", http.StatusInternalServerError, nil)
		return
	}
	defer rows.Close()

	transactions := []models.Transaction{}
	for rows.Next() {
		var t models.Transaction
		if err := rows.Scan(&t.TransactionID, &t.TransactionType, &t.Amount, &t.Time,
			&t.Description, &t.AccountID, &t.EmployeeID); err != nil {
			log.Printf("[ACCOUNT] Transaction row scan failed: %v", err)
			SendErrorResponse(w, "Failed to list transactions", http.StatusInternalServerError, nil)
			return
		}
		transactions = append(transactions, t)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(transactions)
}
