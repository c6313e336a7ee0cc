package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func teamAgentColumns() []string {
	return []string{
		"employee_id", "username", "first_name", "last_name", "role",
		"nic", "gender", "date_of_birth", "branch_id", "created_at",
		"contact_no_1", "contact_no_2", "email", "address",
	}
}

func TestReportService_TeamAgents(t *testing.T) {
	t.Run("lists branch agents with activity", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		lastActivity := time.Date(2025, 7, 10, 14, 30, 0, 0, time.UTC)

		mock.ExpectQuery(`SELECT branch_id FROM employee`).
			WithArgs("EMP010").
			WillReturnRows(sqlmock.NewRows([]string{"branch_id"}).AddRow("BR001"))
		mock.ExpectQuery(`SELECT e.employee_id, e.username`).
			WithArgs("BR001").
			WillReturnRows(sqlmock.NewRows(teamAgentColumns()).
				AddRow("EMP003", "nsilva", "Nadeesha", "Silva", "Agent",
					"981234567V", "Female", "1998-03-02", "BR001", time.Now(),
					"0712345678", "", "nadeesha@example.com", "9 Lake Rd, Galle"))
		mock.ExpectQuery(`SELECT COUNT`).
			WithArgs("EMP003").
			WillReturnRows(sqlmock.NewRows([]string{"count", "volume", "customers", "accounts", "last_activity"}).
				AddRow(4, "1500.50", 3, 2, lastActivity))

		req := requestAs(http.MethodGet, "/api/manager/team/agents", "EMP010", nil)
		w := httptest.NewRecorder()

		NewReportService(db).TeamAgents(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.NoError(t, mock.ExpectationsWereMet())

		var resp struct {
			Agents      []map[string]interface{}          `json:"agents"`
			Performance map[string]map[string]interface{} `json:"performance"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		require.Len(t, resp.Agents, 1)
		assert.Equal(t, "EMP003", resp.Agents[0]["employee_id"])
		assert.Equal(t, "nadeesha@example.com", resp.Agents[0]["email"])

		stats, ok := resp.Performance["EMP003"]
		require.True(t, ok)
		assert.Equal(t, float64(4), stats["total_transactions"])
		assert.Equal(t, "1500.5", stats["total_volume"])
		assert.Equal(t, float64(3), stats["customers_served"])
		assert.NotEmpty(t, stats["last_activity"])
	})

	t.Run("unknown manager not found", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectQuery(`SELECT branch_id FROM employee`).
			WithArgs("EMP999").
			WillReturnError(sql.ErrNoRows)

		req := requestAs(http.MethodGet, "/api/manager/team/agents", "EMP999", nil)
		w := httptest.NewRecorder()

		NewReportService(db).TeamAgents(w, req)

		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestReportService_AgentTransactions(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	txTime := time.Date(2025, 7, 12, 9, 0, 0, 0, time.UTC)
	mock.ExpectQuery(`SELECT transaction_id, transaction_type`).
		WithArgs("EMP003").
		WillReturnRows(sqlmock.NewRows([]string{
			"transaction_id", "transaction_type", "amount", "time", "description", "account_id", "employee_id",
		}).
			AddRow("tx-1", "Deposit", "250.00", txTime, "Weekly savings", "ACC001", "EMP003").
			AddRow("tx-2", "Withdrawal", "100.00", txTime.Add(-time.Hour), "Cash out", "ACC002", "EMP003"))

	req := requestAs(http.MethodGet, "/api/manager/team/agents/EMP003/transactions", "EMP010", nil)
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("agentId", "EMP003")
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
	w := httptest.NewRecorder()

	NewReportService(db).AgentTransactions(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.NoError(t, mock.ExpectationsWereMet())

	var resp struct {
		Transactions []map[string]interface{} `json:"transactions"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Transactions, 2)
	assert.Equal(t, "tx-1", resp.Transactions[0]["transaction_id"])
	assert.Equal(t, "Withdrawal", resp.Transactions[1]["transaction_type"])
}

func TestReportService_BranchAccounts(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	openDate := time.Date(2025, 1, 5, 0, 0, 0, 0, time.UTC)
	columns := []string{
		"account_id", "open_date", "account_status", "balance", "branch_id",
		"customer_id", "first_name", "last_name", "nic", "gender", "date_of_birth",
		"contact_no_1", "email", "address",
		"plan_type", "interest", "min_balance",
	}

	mock.ExpectQuery(`SELECT branch_id FROM employee`).
		WithArgs("EMP010").
		WillReturnRows(sqlmock.NewRows([]string{"branch_id"}).AddRow("BR001"))
	mock.ExpectQuery(`SELECT a.account_id, a.open_date`).
		WithArgs("BR001").
		WillReturnRows(sqlmock.NewRows(columns).
			AddRow("ACC001", openDate, "Active", "3000.00", "BR001",
				"CUST001", "Nimal", "Perera", "851234567V", "Male", "1985-06-20",
				"0712345678", "nimal@example.com", "8 Temple Rd, Matara",
				"Adult", "10.00", "500.00").
			AddRow("ACC002", openDate, "Active", "1000.00", "BR001",
				"CUST002", "Kamala", "Fernando", "861234567V", "Female", "1986-02-11",
				"0778765432", "", "3 Sea St, Galle",
				"Senior", "12.00", "1000.00").
			AddRow("ACC003", openDate, "Inactive", "200.00", "BR001",
				"CUST003", "Sunil", "Jayasuriya", "791234567V", "Male", "1979-09-09",
				"0701122334", "", "12 Hill Rd, Kandy",
				"", "0", "0"))

	req := requestAs(http.MethodGet, "/api/manager/accounts", "EMP010", nil)
	w := httptest.NewRecorder()

	NewReportService(db).BranchAccounts(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.NoError(t, mock.ExpectationsWereMet())

	var resp struct {
		Accounts []map[string]interface{} `json:"accounts"`
		Summary  map[string]interface{}   `json:"summary"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Accounts, 3)
	assert.Equal(t, "ACC001", resp.Accounts[0]["account_id"])
	assert.Equal(t, "Nimal", resp.Accounts[0]["first_name"])

	assert.Equal(t, float64(3), resp.Summary["total_accounts"])
	assert.Equal(t, float64(2), resp.Summary["active_accounts"])
	assert.Equal(t, float64(1), resp.Summary["inactive_accounts"])
	assert.Equal(t, "4000", resp.Summary["total_balance"])
	assert.Equal(t, "2000", resp.Summary["average_balance"])
}
