package services

import (
	"database/sql"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/growfund/backend/internal/config"
	"github.com/growfund/backend/internal/models"
)

func newDepositService(db *sql.DB) *DepositService {
	wallet := NewWalletService(db)
	cfg := testMLMConfig()
	referral := NewReferralService(db, wallet, cfg)
	distribution := NewDistributionService(db, wallet, referral, cfg)
	return NewDepositService(db, wallet, distribution, testDepositConfig(), &config.WithdrawalConfig{
		MinimumAmount: decimal.RequireFromString("500"),
	})
}

func TestDepositService_RequestDeposit(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	service := newDepositService(db)

	t.Run("creates a pending request", func(t *testing.T) {
		mock.ExpectQuery(`SELECT EXISTS`).
			WithArgs("acc-1").
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
		mock.ExpectExec(`INSERT INTO deposit_requests`).
			WillReturnResult(sqlmock.NewResult(1, 1))

		req, err := service.RequestDeposit("acc-1", decimal.NewFromInt(1000))
		require.NoError(t, err)
		assert.Equal(t, models.RequestPending, req.Status)
		assert.Equal(t, "1000", req.Amount.String())
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unknown account rejected", func(t *testing.T) {
		mock.ExpectQuery(`SELECT EXISTS`).
			WithArgs("ghost").
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

		_, err := service.RequestDeposit("ghost", decimal.NewFromInt(1000))
		assert.ErrorIs(t, err, ErrAccountNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("non-positive amount rejected without touching the database", func(t *testing.T) {
		_, err := service.RequestDeposit("acc-1", decimal.Zero)
		assert.ErrorIs(t, err, ErrInvalidAmount)
	})
}

func TestDepositService_ApproveDeposit(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	service := newDepositService(db)

	t.Run("fee, credits, deposit record and bonus in one transaction", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT id, account_id, amount, status`).
			WithArgs("req-1").
			WillReturnRows(sqlmock.NewRows([]string{"id", "account_id", "amount", "status"}).
				AddRow("req-1", "acc-1", "1000.00", models.RequestPending))

		// net principal 900 to normal after 10% fee
		mock.ExpectQuery(lockWalletQuery).
			WithArgs("acc-1").
			WillReturnRows(walletColumns().AddRow("0", "0", "0", "0", 1))
		mock.ExpectExec(insertEntryQuery).
			WithArgs("acc-1", "normal", "900", "900", models.EntryDeposit,
				sqlmock.AnyArg(), "req-1", sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectExec(updateBucketQuery).
			WillReturnResult(sqlmock.NewResult(0, 1))

		// benefit gets net x 2 = 1800
		mock.ExpectQuery(lockWalletQuery).
			WithArgs("acc-1").
			WillReturnRows(walletColumns().AddRow("900.00", "0", "0", "0", 2))
		mock.ExpectExec(insertEntryQuery).
			WithArgs("acc-1", "benefit", "1800", "1800", models.EntryDeposit,
				sqlmock.AnyArg(), "req-1", sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(2, 1))
		mock.ExpectExec(updateBucketQuery).
			WillReturnResult(sqlmock.NewResult(0, 1))

		mock.ExpectExec(`INSERT INTO deposits`).
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectExec(`UPDATE accounts SET total_deposits`).
			WithArgs(sqlmock.AnyArg(), "acc-1").
			WillReturnResult(sqlmock.NewResult(0, 1))

		// deposit bonus distribution finds no upline
		mock.ExpectQuery(`SELECT ancestors FROM accounts`).
			WithArgs("acc-1").
			WillReturnRows(sqlmock.NewRows([]string{"ancestors"}).AddRow([]byte(`[]`)))

		mock.ExpectExec(`UPDATE deposit_requests`).
			WithArgs(models.RequestApproved, "admin-1", sqlmock.AnyArg(), "", "req-1").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		dep, err := service.ApproveDeposit("req-1", "admin-1")
		require.NoError(t, err)
		assert.Equal(t, "900", dep.Principal.String())
		assert.True(t, dep.IsActive)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("already reviewed request rejected", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT id, account_id, amount, status`).
			WithArgs("req-2").
			WillReturnRows(sqlmock.NewRows([]string{"id", "account_id", "amount", "status"}).
				AddRow("req-2", "acc-1", "1000.00", models.RequestApproved))
		mock.ExpectRollback()

		_, err := service.ApproveDeposit("req-2", "admin-1")
		assert.ErrorIs(t, err, ErrRequestNotPending)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing request", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT id, account_id, amount, status`).
			WithArgs("nope").
			WillReturnRows(sqlmock.NewRows([]string{"id", "account_id", "amount", "status"}))
		mock.ExpectRollback()

		_, err := service.ApproveDeposit("nope", "admin-1")
		assert.ErrorIs(t, err, ErrRequestNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestDepositService_Withdrawals(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	service := newDepositService(db)

	t.Run("below minimum rejected before any reservation", func(t *testing.T) {
		_, err := service.RequestWithdrawal("acc-1", decimal.NewFromInt(100), "upi", "user@bank", "")
		assert.ErrorIs(t, err, ErrMinWithdrawal)
	})

	t.Run("request reserves from the withdrawal bucket", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectQuery(lockWalletQuery).
			WithArgs("acc-1").
			WillReturnRows(walletColumns().AddRow("0", "0", "0", "800.00", 1))
		mock.ExpectExec(insertEntryQuery).
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectExec(updateBucketQuery).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(`INSERT INTO withdrawal_requests`).
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectCommit()

		req, err := service.RequestWithdrawal("acc-1", decimal.NewFromInt(600), "upi", "user@bank", "")
		require.NoError(t, err)
		assert.Equal(t, models.RequestPending, req.Status)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("insufficient reserve fails the request", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectQuery(lockWalletQuery).
			WithArgs("acc-1").
			WillReturnRows(walletColumns().AddRow("0", "0", "0", "100.00", 1))
		mock.ExpectRollback()

		_, err := service.RequestWithdrawal("acc-1", decimal.NewFromInt(600), "upi", "user@bank", "")
		assert.ErrorIs(t, err, ErrInsufficientBalance)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rejection refunds the reserved amount", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT id, account_id, amount, status`).
			WithArgs("wr-1").
			WillReturnRows(sqlmock.NewRows([]string{"id", "account_id", "amount", "status"}).
				AddRow("wr-1", "acc-1", "600.00", models.RequestPending))

		mock.ExpectQuery(lockWalletQuery).
			WithArgs("acc-1").
			WillReturnRows(walletColumns().AddRow("0", "0", "0", "0", 1))
		mock.ExpectExec(insertEntryQuery).
			WithArgs("acc-1", "withdrawal", "600", "600", models.EntryRefund,
				sqlmock.AnyArg(), "wr-1", sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectExec(updateBucketQuery).
			WillReturnResult(sqlmock.NewResult(0, 1))

		mock.ExpectExec(`UPDATE withdrawal_requests`).
			WithArgs(models.RequestRejected, "admin-1", sqlmock.AnyArg(), "bad upi id", "wr-1").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		err := service.RejectWithdrawal("wr-1", "admin-1", "bad upi id")
		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("approval distributes the referral bonus", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT id, account_id, amount, status`).
			WithArgs("wr-2").
			WillReturnRows(sqlmock.NewRows([]string{"id", "account_id", "amount", "status"}).
				AddRow("wr-2", "acc-1", "600.00", models.RequestPending))
		mock.ExpectQuery(`SELECT ancestors FROM accounts`).
			WithArgs("acc-1").
			WillReturnRows(sqlmock.NewRows([]string{"ancestors"}).AddRow([]byte(`[]`)))
		mock.ExpectExec(`UPDATE withdrawal_requests`).
			WithArgs(models.RequestApproved, "admin-1", sqlmock.AnyArg(), "", "wr-2").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		err := service.ApproveWithdrawal("wr-2", "admin-1")
		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
