package services

import (
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNextSequentialID(t *testing.T) {
	t.Run("increments highest existing id", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectQuery(`SELECT customer_id FROM customer`).
			WillReturnRows(sqlmock.NewRows([]string{"customer_id"}).AddRow("CUST041"))

		id, err := nextSequentialID(db, "customer", "customer_id", "CUST")
		assert.NoError(t, err)
		assert.Equal(t, "CUST042", id)
	})

	t.Run("starts from one on empty table", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectQuery(`SELECT branch_id FROM branch`).
			WillReturnRows(sqlmock.NewRows([]string{"branch_id"}))

		id, err := nextSequentialID(db, "branch", "branch_id", "BR")
		assert.NoError(t, err)
		assert.Equal(t, "BR001", id)
	})

	t.Run("grows past three digits", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectQuery(`SELECT account_id FROM account`).
			WillReturnRows(sqlmock.NewRows([]string{"account_id"}).AddRow("ACC999"))

		id, err := nextSequentialID(db, "account", "account_id", "ACC")
		assert.NoError(t, err)
		assert.Equal(t, "ACC1000", id)
	})
}
