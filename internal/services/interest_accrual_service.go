package services

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"github.com/shopspring/decimal"

	"github.com/microbank/backoffice/internal/config"
	"github.com/microbank/backoffice/internal/models"
)

// activeDeposit is one row of the accrual working set: an active fixed
// deposit joined to its plan.
type activeDeposit struct {
	FDID           string
	Balance        decimal.Decimal
	Rate           decimal.Decimal
	DurationMonths int
	FDPlanID       string
	AccountID      string
}

// AccrualResult reports the outcome of one accrual engine invocation.
type AccrualResult struct {
	AlreadyProcessed bool            `json:"already_processed"`
	PeriodStart      time.Time       `json:"period_start"`
	PeriodEnd        time.Time       `json:"period_end"`
	Attempted        int             `json:"attempted"`
	Credited         int             `json:"credited"`
	Failed           int             `json:"failed"`
	TotalInterest    decimal.Decimal `json:"total_interest"`
}

// InterestAccrualService credits monthly fixed-deposit interest into linked
// savings accounts. It holds no mutable state: each Run is driven entirely by
// the invocation time and the database, so tests can invoke it directly with
// a fixed clock.
type InterestAccrualService struct {
	db      *sql.DB
	cfg     *config.InterestConfig
	periods PeriodRegistry
}

func NewInterestAccrualService(db *sql.DB, cfg *config.InterestConfig) *InterestAccrualService {
	if cfg == nil {
		cfg = config.LoadInterestConfig()
	}
	if cfg.Schedule == "" {
		cfg.Schedule = config.DefaultInterestSchedule
	}
	return &InterestAccrualService{db: db, cfg: cfg}
}

// Run processes fixed-deposit interest for the calendar month before now.
// The whole run executes in a single transaction guarded by an advisory lock
// keyed on the target month, so concurrent manual and scheduled invocations
// for the same period serialize instead of double-crediting. Individual
// deposit failures are recorded as failed calculation rows inside a savepoint
// and never abort the rest of the batch.
func (s *InterestAccrualService) Run(now time.Time) (*AccrualResult, error) {
	periodStart, periodEnd := previousMonth(now)
	result := &AccrualResult{
		PeriodStart:   periodStart,
		PeriodEnd:     periodEnd,
		TotalInterest: decimal.Zero,
	}

	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin accrual transaction: %w", err)
	}
	defer tx.Rollback()

	// Released automatically on commit or rollback.
	if _, err := tx.Exec(`SELECT pg_advisory_xact_lock($1)`, periodLockKey(periodStart)); err != nil {
		return nil, fmt.Errorf("acquire period lock: %w", err)
	}

	processed, err := s.periods.IsPeriodProcessed(tx, periodStart)
	if err != nil {
		return nil, fmt.Errorf("period check: %w", err)
	}
	if processed {
		log.Printf("[FD_INTEREST] Period %s already processed, skipping run", periodStart.Format("2006-01"))
		result.AlreadyProcessed = true
		return result, nil
	}

	deposits, err := s.listActiveDeposits(tx)
	if err != nil {
		return nil, fmt.Errorf("list active deposits: %w", err)
	}

	actorID := ""
	if len(deposits) > 0 {
		if actorID, err = s.resolveActor(tx); err != nil {
			return nil, err
		}
	}

	for _, d := range deposits {
		result.Attempted++

		credited, err := s.hasCreditedCalculation(tx, d.FDID, periodStart)
		if err != nil {
			return nil, fmt.Errorf("idempotence check for %s: %w", d.FDID, err)
		}
		if credited {
			log.Printf("[FD_INTEREST] Skipping %s: already credited for %s", d.FDID, periodStart.Format("2006-01"))
			continue
		}

		interest := ComputeInterest(d.Balance, d.Rate, config.FDInterestPeriodDays)
		if !interest.IsPositive() {
			continue
		}

		if err := s.creditDeposit(tx, d, interest, actorID, periodStart, now); err != nil {
			log.Printf("[FD_INTEREST] Crediting %s failed: %v", d.FDID, err)
			if ferr := s.recordFailedCalculation(tx, d, interest, periodStart); ferr != nil {
				return nil, fmt.Errorf("record failed calculation for %s: %w", d.FDID, ferr)
			}
			result.Failed++
			continue
		}

		result.Credited++
		result.TotalInterest = result.TotalInterest.Add(interest)
	}

	// An empty month is deliberately left unmarked so deposits opened later
	// can still be processed by a future run.
	if result.Credited > 0 {
		if err := s.periods.MarkPeriodProcessed(tx, periodStart, periodEnd, now); err != nil {
			return nil, fmt.Errorf("mark period processed: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit accrual transaction: %w", err)
	}

	log.Printf("[FD_INTEREST] Run complete for %s: attempted=%d credited=%d failed=%d total=%s",
		periodStart.Format("2006-01"), result.Attempted, result.Credited, result.Failed, result.TotalInterest)
	return result, nil
}

// RunScheduled adapts Run for cron invocation, where the result detail is
// already logged and only the error matters.
func (s *InterestAccrualService) RunScheduled(now time.Time) error {
	_, err := s.Run(now)
	return err
}

func (s *InterestAccrualService) listActiveDeposits(tx *sql.Tx) ([]activeDeposit, error) {
	rows, err := tx.Query(`
		SELECT fd.fd_id, fd.fd_balance, p.interest_rate, p.duration_months, p.fd_plan_id, fd.account_id
		FROM fixed_deposit fd
		JOIN fd_plan p ON fd.fd_plan_id = p.fd_plan_id
		WHERE fd.fd_status = 'Active'
		ORDER BY fd.fd_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	deposits := []activeDeposit{}
	for rows.Next() {
		var d activeDeposit
		if err := rows.Scan(&d.FDID, &d.Balance, &d.Rate, &d.DurationMonths, &d.FDPlanID, &d.AccountID); err != nil {
			return nil, err
		}
		deposits = append(deposits, d)
	}
	return deposits, rows.Err()
}

func (s *InterestAccrualService) hasCreditedCalculation(tx *sql.Tx, fdID string, periodStart time.Time) (bool, error) {
	var exists bool
	err := tx.QueryRow(`
		SELECT EXISTS(
			SELECT 1 FROM interest_calculation
			WHERE fd_id = $1 AND status = 'credited'
			  AND calculation_date >= $2 AND calculation_date < $3
		)`, fdID, periodStart, periodStart.AddDate(0, 1, 0)).Scan(&exists)
	return exists, err
}

// resolveActor returns the employee identity recorded against interest
// credits: the configured system actor if set, otherwise the first
// Admin-role employee, otherwise any employee. Substituting a non-Admin
// actor is a documented fallback; only a completely empty employee table
// aborts the run.
func (s *InterestAccrualService) resolveActor(tx *sql.Tx) (string, error) {
	if s.cfg.SystemActorID != "" {
		return s.cfg.SystemActorID, nil
	}

	var actorID string
	err := tx.QueryRow(`
		SELECT employee_id FROM employee WHERE role = 'Admin'
		ORDER BY created_at LIMIT 1`).Scan(&actorID)
	if err == nil {
		return actorID, nil
	}
	if err != sql.ErrNoRows {
		return "", fmt.Errorf("find admin actor: %w", err)
	}

	err = tx.QueryRow(`
		SELECT employee_id FROM employee
		ORDER BY created_at LIMIT 1`).Scan(&actorID)
	if err == sql.ErrNoRows {
		return "", ErrNoEmployeeActor
	}
	if err != nil {
		return "", fmt.Errorf("find fallback actor: %w", err)
	}
	log.Printf("[FD_INTEREST] No Admin employee found, attributing credits to %s", actorID)
	return actorID, nil
}

// creditDeposit performs the balance credit, ledger append and audit insert
// for one deposit inside a savepoint, so a failure rolls back only this
// deposit's writes.
func (s *InterestAccrualService) creditDeposit(tx *sql.Tx, d activeDeposit, interest decimal.Decimal, actorID string, periodStart, now time.Time) error {
	if _, err := tx.Exec(`SAVEPOINT fd_credit`); err != nil {
		return fmt.Errorf("savepoint: %w", err)
	}

	if err := s.creditDepositInner(tx, d, interest, actorID, periodStart, now); err != nil {
		if _, rbErr := tx.Exec(`ROLLBACK TO SAVEPOINT fd_credit`); rbErr != nil {
			return fmt.Errorf("%v (savepoint rollback failed: %w)", err, rbErr)
		}
		return err
	}

	if _, err := tx.Exec(`RELEASE SAVEPOINT fd_credit`); err != nil {
		return fmt.Errorf("release savepoint: %w", err)
	}
	return nil
}

func (s *InterestAccrualService) creditDepositInner(tx *sql.Tx, d activeDeposit, interest decimal.Decimal, actorID string, periodStart, now time.Time) error {
	var balance decimal.Decimal
	if err := tx.QueryRow(`
		SELECT balance FROM account WHERE account_id = $1 FOR UPDATE`,
		d.AccountID).Scan(&balance); err != nil {
		return fmt.Errorf("lock account %s: %w", d.AccountID, err)
	}

	newBalance := balance.Add(interest)
	if _, err := tx.Exec(`
		UPDATE account SET balance = $1 WHERE account_id = $2`,
		newBalance, d.AccountID); err != nil {
		return fmt.Errorf("update balance for %s: %w", d.AccountID, err)
	}

	description := fmt.Sprintf("Monthly FD Interest - %d month plan %s", d.DurationMonths, d.FDPlanID)
	if _, err := tx.Exec(`
		INSERT INTO transaction (transaction_id, transaction_type, amount, time, description, account_id, employee_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		uuid.NewString(), models.TxTypeInterest, interest, now, description, d.AccountID, actorID); err != nil {
		return fmt.Errorf("append interest transaction: %w", err)
	}

	if _, err := tx.Exec(`
		INSERT INTO interest_calculation (fd_id, calculation_date, interest_amount, period_days, account_id, status, credited_at)
		VALUES ($1, $2, $3, $4, $5, 'credited', $6)`,
		d.FDID, periodStart, interest, config.FDInterestPeriodDays, d.AccountID, now); err != nil {
		return fmt.Errorf("insert calculation record: %w", err)
	}
	return nil
}

func (s *InterestAccrualService) recordFailedCalculation(tx *sql.Tx, d activeDeposit, interest decimal.Decimal, periodStart time.Time) error {
	_, err := tx.Exec(`
		INSERT INTO interest_calculation (fd_id, calculation_date, interest_amount, period_days, account_id, status)
		VALUES ($1, $2, $3, $4, $5, 'failed')`,
		d.FDID, periodStart, interest, config.FDInterestPeriodDays, d.AccountID)
	return err
}

// previousMonth returns the first and last day of the calendar month
// preceding now; a run on any day of month M targets M-1 in full.
func previousMonth(now time.Time) (time.Time, time.Time) {
	firstOfCurrent := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	return firstOfCurrent.AddDate(0, -1, 0), firstOfCurrent.AddDate(0, 0, -1)
}

// periodLockKey derives the advisory lock key for a target month. Runs for
// different months use different keys and may proceed concurrently.
func periodLockKey(periodStart time.Time) int64 {
	return int64(periodStart.Year())*100 + int64(periodStart.Month())
}

// NextScheduledRun returns the next automatic accrual run for the given cron
// spec. An unparsable spec falls back to the default schedule.
func NextScheduledRun(spec string, now time.Time) time.Time {
	sched, err := cron.ParseStandard(spec)
	if err != nil {
		log.Printf("[FD_INTEREST] Invalid schedule %q, using default: %v", spec, err)
		sched, _ = cron.ParseStandard(config.DefaultInterestSchedule)
	}
	return sched.Next(now)
}

// ProcessNow handles the administrator-only manual accrual trigger.
// @Summary Process FD interest immediately
// @Description Run the monthly fixed-deposit interest accrual for the previous calendar month
// @Tags fd-interest
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} map[string]string "Already processed this month"
// @Failure 500 {object} map[string]string
// @Router /admin/fd-interest/process-now [post]
func (s *InterestAccrualService) ProcessNow(w http.ResponseWriter, r *http.Request) {
	log.Printf("[FD_INTEREST] Manual processing requested from IP: %s", r.RemoteAddr)

	result, err := s.Run(time.Now())
	if err != nil {
		log.Printf("[FD_INTEREST] Manual processing failed: %v", err)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(map[string]string{
			"message": "FD interest processing failed",
			"error":   err.Error(),
		})
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if result.AlreadyProcessed {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]string{
			"message": "FD interest already processed this month",
			"note": fmt.Sprintf("The period %s to %s has already been credited. Re-running would duplicate interest.",
				result.PeriodStart.Format("2006-01-02"), result.PeriodEnd.Format("2006-01-02")),
		})
		return
	}

	json.NewEncoder(w).Encode(map[string]interface{}{
		"message":         "FD interest processed successfully",
		"processed_count": result.Credited,
		"failed_count":    result.Failed,
		"total_interest":  result.TotalInterest,
		"period": map[string]string{
			"start": result.PeriodStart.Format("2006-01-02"),
			"end":   result.PeriodEnd.Format("2006-01-02"),
		},
	})
}

// GetSummary handles the administrator dashboard summary query.
// @Summary FD interest summary
// @Description Active fixed deposits, last month's credited interest and recently processed periods
// @Tags fd-interest
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Failure 500 {object} map[string]string
// @Router /admin/fd-interest/summary [get]
func (s *InterestAccrualService) GetSummary(w http.ResponseWriter, r *http.Request) {
	now := time.Now()
	periodStart, _ := previousMonth(now)

	var activeCount int
	var totalValue decimal.Decimal
	err := s.db.QueryRow(`
		SELECT COUNT(*), COALESCE(SUM(fd_balance), 0)
		FROM fixed_deposit WHERE fd_status = 'Active'`).Scan(&activeCount, &totalValue)
	if err != nil {
		log.Printf("[FD_INTEREST] Summary query failed: %v", err)
		SendErrorResponse(w, "Failed to load FD summary", http.StatusInternalServerError, nil)
		return
	}

	var monthlyInterest decimal.Decimal
	err = s.db.QueryRow(`
		SELECT COALESCE(SUM(interest_amount), 0)
		FROM interest_calculation
		WHERE status = 'credited' AND calculation_date >= $1 AND calculation_date < $2`,
		periodStart, periodStart.AddDate(0, 1, 0)).Scan(&monthlyInterest)
	if err != nil {
		log.Printf("[FD_INTEREST] Summary interest query failed: %v", err)
		SendErrorResponse(w, "Failed to load FD summary", http.StatusInternalServerError, nil)
		return
	}

	rows, err := s.db.Query(`
		SELECT period_start, period_end, processed_at
		FROM interest_period
		WHERE is_processed = true
		ORDER BY period_start DESC
		LIMIT 6`)
	if err != nil {
		log.Printf("[FD_INTEREST] Summary periods query failed: %v", err)
		SendErrorResponse(w, "Failed to load FD summary", http.StatusInternalServerError, nil)
		return
	}
	defer rows.Close()

	recentPeriods := []map[string]string{}
	for rows.Next() {
		var start, end, processedAt time.Time
		if err := rows.Scan(&start, &end, &processedAt); err != nil {
			SendErrorResponse(w, "Failed to load FD summary", http.StatusInternalServerError, nil)
			return
		}
		recentPeriods = append(recentPeriods, map[string]string{
			"period_start": start.Format("2006-01-02"),
			"period_end":   end.Format("2006-01-02"),
			"processed_at": processedAt.Format(time.RFC3339),
		})
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"monthly_interest": monthlyInterest,
		"active_fds": map[string]interface{}{
			"count":       activeCount,
			"total_value": totalValue,
		},
		"recent_periods":     recentPeriods,
		"next_scheduled_run": NextScheduledRun(s.cfg.Schedule, now).Format("2006-01-02 15:04"),
	})
}
