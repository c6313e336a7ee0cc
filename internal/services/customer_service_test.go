package services

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validCustomerRequest() RegisterCustomerRequest {
	return RegisterCustomerRequest{
		FirstName:   "Nimal",
		LastName:    "Perera",
		Gender:      "Male",
		NIC:         "851234567V",
		DateOfBirth: "1985-06-20",
		ContactNo:   "0712345678",
		Email:       "nimal@example.com",
		Address:     "8 Temple Rd, Matara",
	}
}

func TestCustomerService_RegisterCustomer(t *testing.T) {
	t.Run("registers adult customer", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT EXISTS`).
			WithArgs("851234567V").
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
		mock.ExpectQuery(`SELECT contact_id FROM contact`).
			WillReturnRows(sqlmock.NewRows([]string{"contact_id"}).AddRow("CT012"))
		mock.ExpectExec(`INSERT INTO contact`).
			WithArgs("CT013", "0712345678", "8 Temple Rd, Matara", "nimal@example.com").
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectQuery(`SELECT customer_id FROM customer`).
			WillReturnRows(sqlmock.NewRows([]string{"customer_id"}).AddRow("CUST007"))
		mock.ExpectExec(`INSERT INTO customer`).
			WithArgs("CUST008", "Nimal", "Perera", "Male", "851234567V", "1985-06-20", "CT013").
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectCommit()

		body, _ := json.Marshal(validCustomerRequest())
		req := httptest.NewRequest(http.MethodPost, "/api/agent/customers/register", bytes.NewReader(body))
		w := httptest.NewRecorder()

		NewCustomerService(db).RegisterCustomer(w, req)

		assert.Equal(t, http.StatusOK, w.Code)

		var resp map[string]interface{}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, "CUST008", resp["customer_id"])
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rejects under-age applicant", func(t *testing.T) {
		db, _, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		young := validCustomerRequest()
		young.DateOfBirth = time.Now().AddDate(-17, 0, 0).Format("2006-01-02")

		body, _ := json.Marshal(young)
		req := httptest.NewRequest(http.MethodPost, "/api/agent/customers/register", bytes.NewReader(body))
		w := httptest.NewRecorder()

		NewCustomerService(db).RegisterCustomer(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("rejects duplicate NIC", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT EXISTS`).
			WithArgs("851234567V").
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
		mock.ExpectRollback()

		body, _ := json.Marshal(validCustomerRequest())
		req := httptest.NewRequest(http.MethodPost, "/api/agent/customers/register", bytes.NewReader(body))
		w := httptest.NewRecorder()

		NewCustomerService(db).RegisterCustomer(w, req)

		assert.Equal(t, http.StatusConflict, w.Code)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestAgeInYears(t *testing.T) {
	now := time.Date(2025, 7, 15, 0, 0, 0, 0, time.UTC)

	cases := []struct {
		dob  time.Time
		want int
	}{
		{time.Date(2007, 7, 15, 0, 0, 0, 0, time.UTC), 18}, // birthday today
		{time.Date(2007, 7, 16, 0, 0, 0, 0, time.UTC), 17}, // birthday tomorrow
		{time.Date(2007, 6, 30, 0, 0, 0, 0, time.UTC), 18},
		{time.Date(1985, 6, 20, 0, 0, 0, 0, time.UTC), 40},
	}

	for _, tc := range cases {
		t.Run(fmt.Sprintf("dob %s", tc.dob.Format("2006-01-02")), func(t *testing.T) {
			assert.Equal(t, tc.want, ageInYears(tc.dob, now))
		})
	}
}
