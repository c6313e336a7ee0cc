package services

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/microbank/backoffice/internal/middleware"
	"github.com/microbank/backoffice/internal/models"
)

func requestAs(method, target, employeeID string, payload any) *http.Request {
	body, _ := json.Marshal(payload)
	req := httptest.NewRequest(method, target, bytes.NewReader(body))
	ctx := context.WithValue(req.Context(), middleware.EmployeeIDKey, employeeID)
	return req.WithContext(ctx)
}

func TestAccountService_CreateAccount(t *testing.T) {
	t.Run("opens account with initial deposit", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT min_balance FROM savingplan`).
			WithArgs("SP001").
			WillReturnRows(sqlmock.NewRows([]string{"min_balance"}).AddRow("500.00"))
		mock.ExpectQuery(`SELECT EXISTS`).
			WithArgs("CUST001").
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
		mock.ExpectQuery(`SELECT account_id FROM account`).
			WillReturnRows(sqlmock.NewRows([]string{"account_id"}).AddRow("ACC009"))
		mock.ExpectExec(`INSERT INTO account`).
			WithArgs("ACC010", sqlmock.AnyArg(), models.AccountStatusActive,
				decimal.NewFromInt(1000), "SP001", "BR001").
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectExec(`INSERT INTO takes`).
			WithArgs("CUST001", "ACC010").
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectExec(`INSERT INTO transaction`).
			WithArgs(sqlmock.AnyArg(), models.TxTypeDeposit, decimal.NewFromInt(1000),
				sqlmock.AnyArg(), "Initial deposit", "ACC010", "EMP001").
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectCommit()

		req := requestAs(http.MethodPost, "/api/agent/accounts/create", "EMP001", CreateAccountRequest{
			CustomerIDs:    []string{"CUST001"},
			SavingPlanID:   "SP001",
			BranchID:       "BR001",
			InitialDeposit: decimal.NewFromInt(1000),
		})
		w := httptest.NewRecorder()

		NewAccountService(db).CreateAccount(w, req)

		assert.Equal(t, http.StatusOK, w.Code)

		var resp models.Account
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, "ACC010", resp.AccountID)
		assert.True(t, decimal.NewFromInt(1000).Equal(resp.Balance))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rejects deposit below plan minimum", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT min_balance FROM savingplan`).
			WithArgs("SP001").
			WillReturnRows(sqlmock.NewRows([]string{"min_balance"}).AddRow("500.00"))
		mock.ExpectRollback()

		req := requestAs(http.MethodPost, "/api/agent/accounts/create", "EMP001", CreateAccountRequest{
			CustomerIDs:    []string{"CUST001"},
			SavingPlanID:   "SP001",
			BranchID:       "BR001",
			InitialDeposit: decimal.NewFromInt(100),
		})
		w := httptest.NewRecorder()

		NewAccountService(db).CreateAccount(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rejects unknown saving plan", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT min_balance FROM savingplan`).
			WithArgs("SP999").
			WillReturnRows(sqlmock.NewRows([]string{"min_balance"}))
		mock.ExpectRollback()

		req := requestAs(http.MethodPost, "/api/agent/accounts/create", "EMP001", CreateAccountRequest{
			CustomerIDs:    []string{"CUST001"},
			SavingPlanID:   "SP999",
			BranchID:       "BR001",
			InitialDeposit: decimal.NewFromInt(1000),
		})
		w := httptest.NewRecorder()

		NewAccountService(db).CreateAccount(w, req)

		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestAccountService_ProcessTransaction(t *testing.T) {
	lockColumns := []string{"balance", "account_status", "min_balance"}

	t.Run("deposit grows balance", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT a.balance, a.account_status`).
			WithArgs("ACC001").
			WillReturnRows(sqlmock.NewRows(lockColumns).AddRow("2000.00", models.AccountStatusActive, "500.00"))
		mock.ExpectExec(`UPDATE account SET balance`).
			WithArgs(decimal.NewFromInt(2500), "ACC001").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(`INSERT INTO transaction`).
			WithArgs(sqlmock.AnyArg(), models.TxTypeDeposit, decimal.NewFromInt(500),
				sqlmock.AnyArg(), "Weekly savings", "ACC001", "EMP001").
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectCommit()

		req := requestAs(http.MethodPost, "/api/agent/transactions/process", "EMP001", ProcessTransactionRequest{
			AccountID:       "ACC001",
			TransactionType: models.TxTypeDeposit,
			Amount:          decimal.NewFromInt(500),
			Description:     "Weekly savings",
		})
		w := httptest.NewRecorder()

		NewAccountService(db).ProcessTransaction(w, req)

		assert.Equal(t, http.StatusOK, w.Code)

		var resp models.Transaction
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, models.TxTypeDeposit, resp.TransactionType)
		assert.Equal(t, "EMP001", resp.EmployeeID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("withdrawal below plan minimum rejected", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT a.balance, a.account_status`).
			WithArgs("ACC001").
			WillReturnRows(sqlmock.NewRows(lockColumns).AddRow("600.00", models.AccountStatusActive, "500.00"))
		mock.ExpectRollback()

		req := requestAs(http.MethodPost, "/api/agent/transactions/process", "EMP001", ProcessTransactionRequest{
			AccountID:       "ACC001",
			TransactionType: models.TxTypeWithdrawal,
			Amount:          decimal.NewFromInt(200),
		})
		w := httptest.NewRecorder()

		NewAccountService(db).ProcessTransaction(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("inactive account rejected", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT a.balance, a.account_status`).
			WithArgs("ACC001").
			WillReturnRows(sqlmock.NewRows(lockColumns).AddRow("2000.00", models.AccountStatusInactive, "500.00"))
		mock.ExpectRollback()

		req := requestAs(http.MethodPost, "/api/agent/transactions/process", "EMP001", ProcessTransactionRequest{
			AccountID:       "ACC001",
			TransactionType: models.TxTypeDeposit,
			Amount:          decimal.NewFromInt(500),
		})
		w := httptest.NewRecorder()

		NewAccountService(db).ProcessTransaction(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("non-positive amount rejected", func(t *testing.T) {
		db, _, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		req := requestAs(http.MethodPost, "/api/agent/transactions/process", "EMP001", ProcessTransactionRequest{
			AccountID:       "ACC001",
			TransactionType: models.TxTypeDeposit,
			Amount:          decimal.NewFromInt(-50),
		})
		w := httptest.NewRecorder()

		NewAccountService(db).ProcessTransaction(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}
