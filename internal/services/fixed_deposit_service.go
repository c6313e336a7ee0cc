package services

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/microbank/backoffice/internal/middleware"
	"github.com/microbank/backoffice/internal/models"
)

type FixedDepositService struct {
	db        *sql.DB
	validator *ValidationHelper
}

// OpenFDRequest represents the fixed deposit opening payload
// @Description Fixed deposit opening request structure
type OpenFDRequest struct {
	AccountID string          `json:"account_id" validate:"required" example:"ACC001"`
	FDPlanID  string          `json:"fd_plan_id" validate:"required" example:"FDP001"`
	Amount    decimal.Decimal `json:"amount" validate:"required"`
}

func NewFixedDepositService(db *sql.DB) *FixedDepositService {
	return &FixedDepositService{db: db, validator: NewValidationHelper()}
}

// ListPlans returns all fixed deposit plans
// @Summary List FD plans
// @Tags fixed-deposits
// @Produce json
// @Success 200 {array} models.FixedDepositPlan
// @Failure 500 {string} string "Internal server error"
// @Router /fd-plans [get]
func (s *FixedDepositService) ListPlans(w http.ResponseWriter, r *http.Request) {
	rows, err := s.db.Query(`SELECT fd_plan_id, duration_months, interest_rate FROM fd_plan ORDER BY duration_months`)
	if err != nil {
		log.Printf("[FD] Plan listing failed: %v", err)
		SendErrorResponse(w, "Failed to list FD plans", http.StatusInternalServerError, nil)
		return
	}
	defer rows.Close()

	plans := []models.FixedDepositPlan{}
	for rows.Next() {
		var p models.FixedDepositPlan
		if err := rows.Scan(&p.FDPlanID, &p.DurationMonths, &p.InterestRate); err != nil {
			log.Printf("[FD] Plan row scan failed: %v", err)
			SendErrorResponse(w, "Failed to list FD plans", http.StatusInternalServerError, nil)
			return
		}
		plans = append(plans, p)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(plans)
}

// OpenDeposit opens a fixed deposit funded from a savings account
// @Summary Open fixed deposit
// @Description Move funds from an active savings account into a new fixed deposit; the maturity date follows the plan duration
// @Tags fixed-deposits
// @Accept json
// @Produce json
// @Param request body OpenFDRequest true "FD opening request"
// @Success 200 {object} models.FixedDeposit
// @Failure 400 {string} string "Invalid request or insufficient funds"
// @Failure 404 {string} string "Account or plan not found"
// @Failure 500 {string} string "Internal server error"
// @Router /agent/fixed-deposits/open [post]
func (s *FixedDepositService) OpenDeposit(w http.ResponseWriter, r *http.Request) {
	actor, _ := r.Context().Value(middleware.EmployeeIDKey).(string)

	var req OpenFDRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		SendErrorResponse(w, "Invalid request", http.StatusBadRequest, nil)
		return
	}

	if err := s.validator.ValidateStruct(&req); err != nil {
		log.Printf("[FD] Open validation failed: %v", err)
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	if !req.Amount.IsPositive() {
		SendErrorResponse(w, "Amount must be positive", http.StatusBadRequest, nil)
		return
	}

	tx, err := s.db.Begin()
	if err != nil {
		log.Printf("[FD] Transaction start failed: %v", err)
		SendErrorResponse(w, "Failed to open fixed deposit", http.StatusInternalServerError, nil)
		return
	}
	defer tx.Rollback()

	var durationMonths int
	err = tx.QueryRow(`SELECT duration_months FROM fd_plan WHERE fd_plan_id = $1`, req.FDPlanID).Scan(&durationMonths)
	if err == sql.ErrNoRows {
		SendErrorResponse(w, "FD plan not found", http.StatusNotFound, nil)
		return
	}
	if err != nil {
		log.Printf("[FD] Plan lookup failed: %v", err)
		SendErrorResponse(w, "Failed to open fixed deposit", http.StatusInternalServerError, nil)
		return
	}

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
		log.Printf("[FD] Account lock failed for %s: %v", req.AccountID, err)
		SendErrorResponse(w, "Failed to open fixed deposit", http.StatusInternalServerError, nil)
		return
	}

	if status != models.AccountStatusActive {
		SendErrorResponse(w, "Account is not active", http.StatusBadRequest, nil)
		return
	}

	newBalance := balance.Sub(req.Amount)
	if newBalance.LessThan(minBalance) {
		SendErrorResponse(w, fmt.Sprintf("Funding the deposit would take the balance below the plan minimum of %s", minBalance), http.StatusBadRequest, nil)
		return
	}

	if _, err := tx.Exec(`UPDATE account SET balance = $1 WHERE account_id = $2`, newBalance, req.AccountID); err != nil {
		log.Printf("[FD] Balance update failed for %s: %v", req.AccountID, err)
		SendErrorResponse(w, "Failed to open fixed deposit", http.StatusInternalServerError, nil)
		return
	}

	now := time.Now()
	maturity := now.AddDate(0, durationMonths, 0)

	fdID, err := nextSequentialID(tx, "fixed_deposit", "fd_id", "FD")
	if err != nil {
		log.Printf("[FD] FD ID generation failed: %v", err)
		SendErrorResponse(w, "Failed to open fixed deposit", http.StatusInternalServerError, nil)
		return
	}
	if _, err := tx.Exec(`
		INSERT INTO fixed_deposit (fd_id, fd_balance, fd_status, open_date, maturity_date, fd_plan_id, account_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		fdID, req.Amount, models.FDStatusActive, now, maturity, req.FDPlanID, req.AccountID); err != nil {
		log.Printf("[FD] FD creation failed: %v", err)
		SendErrorResponse(w, "Failed to open fixed deposit", http.StatusInternalServerError, nil)
		return
	}

	if _, err := tx.Exec(`
		INSERT INTO transaction (transaction_id, transaction_type, amount, time, description, account_id, employee_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		uuid.NewString(), models.TxTypeWithdrawal, req.Amount, now,
		fmt.Sprintf("Fixed deposit %s opened", fdID), req.AccountID, actor); err != nil {
		log.Printf("[FD] Funding record failed: %v", err)
		SendErrorResponse(w, "Failed to open fixed deposit", http.StatusInternalServerError, nil)
		return
	}

	if err := tx.Commit(); err != nil {
		log.Printf("[FD] Transaction commit failed: %v", err)
		SendErrorResponse(w, "Failed to open fixed deposit", http.StatusInternalServerError, nil)
		return
	}

	log.Printf("[FD] Fixed deposit opened - ID: %s, Amount: %s, Matures: %s", fdID, req.Amount, maturity.Format("2006-01-02"))
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(models.FixedDeposit{
		FDID:         fdID,
		Balance:      req.Amount,
		Status:       models.FDStatusActive,
		OpenDate:     now,
		MaturityDate: maturity,
		FDPlanID:     req.FDPlanID,
		AccountID:    req.AccountID,
	})
}

// ListDeposits returns fixed deposits, optionally filtered by status
// @Summary List fixed deposits
// @Tags fixed-deposits
// @Produce json
// @Param status query string false "Filter by status (Active or Closed)"
// @Success 200 {array} models.FixedDeposit
// @Failure 500 {string} string "Internal server error"
// @Router /agent/fixed-deposits [get]
func (s *FixedDepositService) ListDeposits(w http.ResponseWriter, r *http.Request) {
	status := r.URL.Query().Get("status")

	var rows *sql.Rows
	var err error
	if status != "" {
		rows, err = s.db.Query(`
			SELECT fd_id, fd_balance, fd_status, open_date, maturity_date, fd_plan_id, account_id
			FROM fixed_deposit WHERE fd_status = $1 ORDER BY fd_id`, status)
	} else {
		rows, err = s.db.Query(`
			SELECT fd_id, fd_balance, fd_status, open_date, maturity_date, fd_plan_id, account_id
			FROM fixed_deposit ORDER BY fd_id`)
	}
	if err != nil {
		log.Printf("[FD] Deposit listing failed: %v", err)
		SendErrorResponse(w, "Failed to list fixed deposits", http.StatusInternalServerError, nil)
		return
	}
	defer rows.Close()

	deposits := []models.FixedDeposit{}
	for rows.Next() {
		var d models.FixedDeposit
		if err := rows.Scan(&d.FDID, &d.Balance, &d.Status, &d.OpenDate, &d.MaturityDate, &d.FDPlanID, &d.AccountID); err != nil {
			log.Printf("[FD] Deposit row scan failed: %v", err)
			SendErrorResponse(w, "Failed to list fixed deposits", http.StatusInternalServerError, nil)
			return
		}
		deposits = append(deposits, d)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(deposits)
}

// CloseDeposit closes a matured fixed deposit
// @Summary Close fixed deposit
// @Description Return the principal of a matured deposit to the linked savings account
// @Tags fixed-deposits
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Failure 400 {string} string "Deposit not yet matured or already closed"
// @Failure 404 {string} string "Deposit not found"
// @Failure 500 {string} string "Internal server error"
// @Router /agent/fixed-deposits/{id}/close [post]
func (s *FixedDepositService) CloseDeposit(w http.ResponseWriter, r *http.Request) {
	fdID := chi.URLParam(r, "id")
	actor, _ := r.Context().Value(middleware.EmployeeIDKey).(string)

	tx, err := s.db.Begin()
	if err != nil {
		log.Printf("[FD] Transaction start failed: %v", err)
		SendErrorResponse(w, "Failed to close fixed deposit", http.StatusInternalServerError, nil)
		return
	}
	defer tx.Rollback()

	var d models.FixedDeposit
	err = tx.QueryRow(`
		SELECT fd_id, fd_balance, fd_status, maturity_date, account_id
		FROM fixed_deposit WHERE fd_id = $1 FOR UPDATE`,
		fdID).Scan(&d.FDID, &d.Balance, &d.Status, &d.MaturityDate, &d.AccountID)
	if err == sql.ErrNoRows {
		SendErrorResponse(w, "Fixed deposit not found", http.StatusNotFound, nil)
		return
	}
	if err != nil {
		log.Printf("[FD] Deposit lock failed for %s: %v", fdID, err)
		SendErrorResponse(w, "Failed to close fixed deposit", http.StatusInternalServerError, nil)
		return
	}

	if d.Status != models.FDStatusActive {
		SendErrorResponse(w, "Fixed deposit is already closed", http.StatusBadRequest, nil)
		return
	}
	if time.Now().Before(d.MaturityDate) {
		SendErrorResponse(w, fmt.Sprintf("Fixed deposit matures on %s", d.MaturityDate.Format("2006-01-02")), http.StatusBadRequest, nil)
		return
	}

	var balance decimal.Decimal
	if err := tx.QueryRow(`SELECT balance FROM account WHERE account_id = $1 FOR UPDATE`, d.AccountID).Scan(&balance); err != nil {
		log.Printf("[FD] Account lock failed for %s: %v", d.AccountID, err)
		SendErrorResponse(w, "Failed to close fixed deposit", http.StatusInternalServerError, nil)
		return
	}

	if _, err := tx.Exec(`UPDATE account SET balance = $1 WHERE account_id = $2`, balance.Add(d.Balance), d.AccountID); err != nil {
		log.Printf("[FD] Balance update failed for %s: %v", d.AccountID, err)
		SendErrorResponse(w, "Failed to close fixed deposit", http.StatusInternalServerError, nil)
		return
	}

	if _, err := tx.Exec(`UPDATE fixed_deposit SET fd_status = $1, fd_balance = 0 WHERE fd_id = $2`,
		models.FDStatusClosed, fdID); err != nil {
		log.Printf("[FD] Status update failed for %s: %v", fdID, err)
		SendErrorResponse(w, "Failed to close fixed deposit", http.StatusInternalServerError, nil)
		return
	}

	if _, err := tx.Exec(`
		INSERT INTO transaction (transaction_id, transaction_type, amount, time, description, account_id, employee_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		uuid.NewString(), models.TxTypeDeposit, d.Balance, time.Now(),
		fmt.Sprintf("Fixed deposit %s matured", fdID), d.AccountID, actor); err != nil {
		log.Printf("[FD] Maturity record failed: %v", err)
		SendErrorResponse(w, "Failed to close fixed deposit", http.StatusInternalServerError, nil)
		return
	}

	if err := tx.Commit(); err != nil {
		log.Printf("[FD] Transaction commit failed: %v", err)
		SendErrorResponse(w, "Failed to close fixed deposit", http.StatusInternalServerError, nil)
		return
	}

	log.Printf("[FD] Fixed deposit %s closed, principal %s returned to %s", fdID, d.Balance, d.AccountID)
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"message":   "Fixed deposit closed",
		"fd_id":     fdID,
		"principal": d.Balance,
	})
}
