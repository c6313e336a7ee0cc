package services

import (
	"database/sql"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/microbank/backoffice/internal/middleware"
	"github.com/microbank/backoffice/internal/models"
)

type ReportService struct {
	db *sql.DB
}

func NewReportService(db *sql.DB) *ReportService {
	return &ReportService{db: db}
}

// reportRange parses from/to query params, defaulting to the last 30 days.
// The returned end is exclusive; the to param itself is treated as inclusive.
func reportRange(r *http.Request) (time.Time, time.Time) {
	now := time.Now()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	from := today.AddDate(0, 0, -30)
	to := today.AddDate(0, 0, 1)

	if v := r.URL.Query().Get("from"); v != "" {
		if parsed, err := time.Parse("2006-01-02", v); err == nil {
			from = parsed
		}
	}
	if v := r.URL.Query().Get("to"); v != "" {
		if parsed, err := time.Parse("2006-01-02", v); err == nil {
			to = parsed.AddDate(0, 0, 1)
		}
	}
	return from, to
}

// TransactionsSummary reports branch and agent transaction totals
// @Summary Branch transactions summary
// @Description Per-branch totals by type, net flow and per-agent volumes over a date range; managers only
// @Tags reports
// @Produce json
// @Param from query string false "Range start (YYYY-MM-DD, default 30 days ago)"
// @Param to query string false "Range end inclusive (YYYY-MM-DD, default today)"
// @Success 200 {object} map[string]interface{}
// @Failure 500 {string} string "Internal server error"
// @Router /manager/transactions-summary [get]
func (s *ReportService) TransactionsSummary(w http.ResponseWriter, r *http.Request) {
	from, to := reportRange(r)

	rows, err := s.db.Query(`
		SELECT a.branch_id, t.transaction_type, COUNT(*), COALESCE(SUM(t.amount), 0)
		FROM transaction t
		JOIN account a ON t.account_id = a.account_id
		WHERE t.time >= $1 AND t.time < $2
		GROUP BY a.branch_id, t.transaction_type
		ORDER BY a.branch_id, t.transaction_type`, from, to)
	if err != nil {
		log.Printf("[REPORT] Transactions summary query failed: %v", err)
		SendErrorResponse(w, "Failed to build transactions summary", http.StatusInternalServerError, nil)
		return
	}
	defer rows.Close()

	byBranch := []map[string]interface{}{}
	netFlow := decimal.Zero
	for rows.Next() {
		var branchID, txType string
		var count int
		var total decimal.Decimal
		if err := rows.Scan(&branchID, &txType, &count, &total); err != nil {
			log.Printf("[REPORT] Summary row scan failed: %v", err)
			SendErrorResponse(w, "Failed to build transactions summary", http.StatusInternalServerError, nil)
			return
		}
		if txType == models.TxTypeWithdrawal {
			netFlow = netFlow.Sub(total)
		} else {
			netFlow = netFlow.Add(total)
		}
		byBranch = append(byBranch, map[string]interface{}{
			"branch_id":        branchID,
			"transaction_type": txType,
			"count":            count,
			"total_amount":     total,
		})
	}

	agentRows, err := s.db.Query(`
		SELECT employee_id, COUNT(*), COALESCE(SUM(amount), 0)
		FROM transaction
		WHERE time >= $1 AND time < $2
		GROUP BY employee_id
		ORDER BY COUNT(*) DESC`, from, to)
	if err != nil {
		log.Printf("[REPORT] Agent volume query failed: %v", err)
		SendErrorResponse(w, "Failed to build transactions summary", http.StatusInternalServerError, nil)
		return
	}
	defer agentRows.Close()

	byAgent := []map[string]interface{}{}
	for agentRows.Next() {
		var employeeID string
		var count int
		var total decimal.Decimal
		if err := agentRows.Scan(&employeeID, &count, &total); err != nil {
			log.Printf("[REPORT] Agent row scan failed: %v", err)
			SendErrorResponse(w, "Failed to build transactions summary", http.StatusInternalServerError, nil)
			return
		}
		byAgent = append(byAgent, map[string]interface{}{
			"employee_id":  employeeID,
			"count":        count,
			"total_amount": total,
		})
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"from":      from.Format("2006-01-02"),
		"to":        to.AddDate(0, 0, -1).Format("2006-01-02"),
		"net_flow":  netFlow,
		"by_branch": byBranch,
		"by_agent":  byAgent,
	})
}

// AgentPerformance reports the calling agent's activity for the current month
// @Summary Agent performance
// @Description Transaction counts and totals recorded by the authenticated agent this month
// @Tags reports
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Failure 500 {string} string "Internal server error"
// @Router /agent/performance [get]
func (s *ReportService) AgentPerformance(w http.ResponseWriter, r *http.Request) {
	employeeID, _ := r.Context().Value(middleware.EmployeeIDKey).(string)
	now := time.Now()
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())

	rows, err := s.db.Query(`
		SELECT transaction_type, COUNT(*), COALESCE(SUM(amount), 0)
		FROM transaction
		WHERE employee_id = $1 AND time >= $2
		GROUP BY transaction_type
		ORDER BY transaction_type`, employeeID, monthStart)
	if err != nil {
		log.Printf("[REPORT] Performance query failed for %s: %v", employeeID, err)
		SendErrorResponse(w, "Failed to build performance report", http.StatusInternalServerError, nil)
		return
	}
	defer rows.Close()

	byType := []map[string]interface{}{}
	totalCount := 0
	for rows.Next() {
		var txType string
		var count int
		var total decimal.Decimal
		if err := rows.Scan(&txType, &count, &total); err != nil {
			log.Printf("[REPORT] Performance row scan failed: %v", err)
			SendErrorResponse(w, "Failed to build performance report", http.StatusInternalServerError, nil)
			return
		}
		totalCount += count
		byType = append(byType, map[string]interface{}{
			"transaction_type": txType,
			"count":            count,
			"total_amount":     total,
		})
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"employee_id": employeeID,
		"month_start": monthStart.Format("2006-01-02"),
		"total_count": totalCount,
		"by_type":     byType,
	})
}

// managerBranch resolves the calling manager's branch. A missing employee row
// maps to a 404 so a stale token cannot reach branch-wide data.
func (s *ReportService) managerBranch(w http.ResponseWriter, r *http.Request) (string, bool) {
	managerID, _ := r.Context().Value(middleware.EmployeeIDKey).(string)

	var branchID string
	err := s.db.QueryRow(`SELECT branch_id FROM employee WHERE employee_id = $1`, managerID).Scan(&branchID)
	if err == sql.ErrNoRows {
		SendErrorResponse(w, "Manager not found", http.StatusNotFound, nil)
		return "", false
	}
	if err != nil {
		log.Printf("[REPORT] Manager branch lookup failed for %s: %v", managerID, err)
		SendErrorResponse(w, "Failed to resolve manager branch", http.StatusInternalServerError, nil)
		return "", false
	}
	return branchID, true
}

// TeamAgents lists the agents in the manager's branch with per-agent activity
// @Summary Branch team agents
// @Description Agents in the manager's branch with their transaction activity
// @Tags reports
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Failure 404 {object} ErrorResponse "Manager not found"
// @Failure 500 {string} string "Internal server error"
// @Router /manager/team/agents [get]
func (s *ReportService) TeamAgents(w http.ResponseWriter, r *http.Request) {
	branchID, ok := s.managerBranch(w, r)
	if !ok {
		return
	}

	rows, err := s.db.Query(`
		SELECT e.employee_id, e.username, e.first_name, e.last_name, e.role,
		       e.nic, e.gender, e.date_of_birth, e.branch_id, e.created_at,
		       COALESCE(c.contact_no_1, ''), COALESCE(c.contact_no_2, ''),
		       COALESCE(c.email, ''), COALESCE(c.address, '')
		FROM employee e
		LEFT JOIN contact c ON e.contact_id = c.contact_id
		WHERE e.branch_id = $1 AND e.role = 'Agent'
		ORDER BY e.first_name, e.last_name`, branchID)
	if err != nil {
		log.Printf("[REPORT] Team agents query failed for branch %s: %v", branchID, err)
		SendErrorResponse(w, "Failed to load team agents", http.StatusInternalServerError, nil)
		return
	}
	defer rows.Close()

	agents := []map[string]interface{}{}
	agentIDs := []string{}
	for rows.Next() {
		var employeeID, username, firstName, lastName, role string
		var nic, gender, dateOfBirth, agentBranch string
		var createdAt time.Time
		var contactNo1, contactNo2, email, address string
		if err := rows.Scan(&employeeID, &username, &firstName, &lastName, &role,
			&nic, &gender, &dateOfBirth, &agentBranch, &createdAt,
			&contactNo1, &contactNo2, &email, &address); err != nil {
			log.Printf("[REPORT] Team agent row scan failed: %v", err)
			SendErrorResponse(w, "Failed to load team agents", http.StatusInternalServerError, nil)
			return
		}
		agentIDs = append(agentIDs, employeeID)
		agents = append(agents, map[string]interface{}{
			"employee_id":   employeeID,
			"username":      username,
			"first_name":    firstName,
			"last_name":     lastName,
			"role":          role,
			"nic":           nic,
			"gender":        gender,
			"date_of_birth": dateOfBirth,
			"branch_id":     agentBranch,
			"created_at":    createdAt,
			"contact_no_1":  contactNo1,
			"contact_no_2":  contactNo2,
			"email":         email,
			"address":       address,
		})
	}

	performance := map[string]map[string]interface{}{}
	for _, agentID := range agentIDs {
		var totalTransactions int
		var totalVolume decimal.Decimal
		var customersServed, accountsTouched int
		var lastActivity sql.NullTime
		err := s.db.QueryRow(`
			SELECT COUNT(*), COALESCE(SUM(tr.amount), 0),
			       COUNT(DISTINCT t.customer_id), COUNT(DISTINCT a.account_id),
			       MAX(tr.time)
			FROM transaction tr
			LEFT JOIN account a ON tr.account_id = a.account_id
			LEFT JOIN takes t ON a.account_id = t.account_id
			WHERE tr.employee_id = $1`, agentID).
			Scan(&totalTransactions, &totalVolume, &customersServed, &accountsTouched, &lastActivity)
		if err != nil {
			log.Printf("[REPORT] Agent activity query failed for %s: %v", agentID, err)
			SendErrorResponse(w, "Failed to load team agents", http.StatusInternalServerError, nil)
			return
		}
		stats := map[string]interface{}{
			"total_transactions": totalTransactions,
			"total_volume":       totalVolume,
			"customers_served":   customersServed,
			"accounts_touched":   accountsTouched,
		}
		if lastActivity.Valid {
			stats["last_activity"] = lastActivity.Time
		}
		performance[agentID] = stats
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"agents":      agents,
		"performance": performance,
	})
}

// AgentTransactions lists a team agent's most recent transactions
// @Summary Agent transaction history
// @Description Last 50 transactions recorded by the given agent
// @Tags reports
// @Produce json
// @Param agentId path string true "Agent employee ID"
// @Success 200 {object} map[string]interface{}
// @Failure 500 {string} string "Internal server error"
// @Router /manager/team/agents/{agentId}/transactions [get]
func (s *ReportService) AgentTransactions(w http.ResponseWriter, r *http.Request) {
	agentID := chi.URLParam(r, "agentId")

	rows, err := s.db.Query(`
		SELECT transaction_id, transaction_type, amount, time, description, account_id, employee_id
		FROM transaction
		WHERE employee_id = $1
		ORDER BY time DESC
		LIMIT 50`, agentID)
	if err != nil {
		log.Printf("[REPORT] Agent transactions query failed for %s: %v", agentID, err)
		SendErrorResponse(w, "Failed to load agent transactions", http.StatusInternalServerError, nil)
		return
	}
	defer rows.Close()

	transactions := []models.Transaction{}
	for rows.Next() {
		var tx models.Transaction
		if err := rows.Scan(&tx.TransactionID, &tx.TransactionType, &tx.Amount,
			&tx.Time, &tx.Description, &tx.AccountID, &tx.EmployeeID); err != nil {
			log.Printf("[REPORT] Agent transaction row scan failed: %v", err)
			SendErrorResponse(w, "Failed to load agent transactions", http.StatusInternalServerError, nil)
			return
		}
		transactions = append(transactions, tx)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"transactions": transactions,
	})
}

// BranchAccounts lists the manager's branch accounts with holder details
// @Summary Branch accounts
// @Description Accounts in the manager's branch with holder, contact and plan details
// @Tags reports
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Failure 404 {object} ErrorResponse "Manager not found"
// @Failure 500 {string} string "Internal server error"
// @Router /manager/accounts [get]
func (s *ReportService) BranchAccounts(w http.ResponseWriter, r *http.Request) {
	branchID, ok := s.managerBranch(w, r)
	if !ok {
		return
	}

	rows, err := s.db.Query(`
		SELECT a.account_id, a.open_date, a.account_status, a.balance, a.branch_id,
		       c.customer_id, c.first_name, c.last_name, c.nic, c.gender, c.date_of_birth,
		       COALESCE(ct.contact_no_1, ''), COALESCE(ct.email, ''), COALESCE(ct.address, ''),
		       COALESCE(sp.plan_type, ''), COALESCE(sp.interest, 0), COALESCE(sp.min_balance, 0)
		FROM account a
		JOIN takes t ON a.account_id = t.account_id
		JOIN customer c ON t.customer_id = c.customer_id
		JOIN contact ct ON c.contact_id = ct.contact_id
		LEFT JOIN savingplan sp ON a.saving_plan_id = sp.saving_plan_id
		WHERE a.branch_id = $1
		ORDER BY a.balance DESC`, branchID)
	if err != nil {
		log.Printf("[REPORT] Branch accounts query failed for %s: %v", branchID, err)
		SendErrorResponse(w, "Failed to load branch accounts", http.StatusInternalServerError, nil)
		return
	}
	defer rows.Close()

	accounts := []map[string]interface{}{}
	activeCount := 0
	totalBalance := decimal.Zero
	for rows.Next() {
		var accountID, accountStatus, accountBranch string
		var openDate time.Time
		var balance decimal.Decimal
		var customerID, firstName, lastName, nic, gender, dateOfBirth string
		var contactNo, email, address string
		var planType string
		var planInterest, planMinBalance decimal.Decimal
		if err := rows.Scan(&accountID, &openDate, &accountStatus, &balance, &accountBranch,
			&customerID, &firstName, &lastName, &nic, &gender, &dateOfBirth,
			&contactNo, &email, &address,
			&planType, &planInterest, &planMinBalance); err != nil {
			log.Printf("[REPORT] Branch account row scan failed: %v", err)
			SendErrorResponse(w, "Failed to load branch accounts", http.StatusInternalServerError, nil)
			return
		}
		if accountStatus == "Active" {
			activeCount++
			totalBalance = totalBalance.Add(balance)
		}
		accounts = append(accounts, map[string]interface{}{
			"account_id":     accountID,
			"open_date":      openDate,
			"account_status": accountStatus,
			"balance":        balance,
			"branch_id":      accountBranch,
			"customer_id":    customerID,
			"first_name":     firstName,
			"last_name":      lastName,
			"nic":            nic,
			"gender":         gender,
			"date_of_birth":  dateOfBirth,
			"contact_no_1":   contactNo,
			"email":          email,
			"address":        address,
			"plan_type":      planType,
			"plan_interest":  planInterest,
			"min_balance":    planMinBalance,
		})
	}

	averageBalance := decimal.Zero
	if activeCount > 0 {
		averageBalance = totalBalance.Div(decimal.NewFromInt(int64(activeCount))).Round(2)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"accounts": accounts,
		"summary": map[string]interface{}{
			"total_accounts":    len(accounts),
			"active_accounts":   activeCount,
			"inactive_accounts": len(accounts) - activeCount,
			"total_balance":     totalBalance,
			"average_balance":   averageBalance,
		},
	})
}
