package services

import (
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/growfund/backend/internal/models"
)

const (
	lockWalletQuery   = `SELECT normal_balance, benefit_balance, game_balance, withdrawal_balance, version`
	insertEntryQuery  = `INSERT INTO ledger_entries`
	updateBucketQuery = `UPDATE accounts SET`
)

func walletColumns() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"normal_balance", "benefit_balance", "game_balance", "withdrawal_balance", "version",
	})
}

func TestTrunc2(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"10.999", "10.99"},
		{"10.991", "10.99"},
		{"10.99", "10.99"},
		{"0.005", "0"},
		{"100", "100"},
		{"-3.339", "-3.33"},
	}
	for _, tc := range cases {
		got := trunc2(decimal.RequireFromString(tc.in))
		assert.Equal(t, tc.want, got.String(), "trunc2(%s)", tc.in)
	}
}

func TestWalletService_Credit(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	service := NewWalletService(db)

	t.Run("successful credit writes entry and bumps version", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectQuery(lockWalletQuery).
			WithArgs("acc-1").
			WillReturnRows(walletColumns().AddRow("100.00", "50.00", "0", "25.00", 3))
		mock.ExpectExec(insertEntryQuery).
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectExec(updateBucketQuery).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		err := service.Credit("acc-1", models.BucketNormal,
			decimal.RequireFromString("10.50"), models.EntryDeposit, "test credit", nil)
		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("credit truncates before applying", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectQuery(lockWalletQuery).
			WithArgs("acc-1").
			WillReturnRows(walletColumns().AddRow("0", "0", "0", "0", 1))
		mock.ExpectExec(insertEntryQuery).
			WithArgs("acc-1", "normal", "10.99", "10.99", models.EntryGrowth, "growth", nil, sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectExec(updateBucketQuery).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		err := service.Credit("acc-1", models.BucketNormal,
			decimal.RequireFromString("10.999"), models.EntryGrowth, "growth", nil)
		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("zero amount rejected", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectRollback()

		err := service.Credit("acc-1", models.BucketNormal,
			decimal.Zero, models.EntryDeposit, "nothing", nil)
		assert.ErrorIs(t, err, ErrInvalidAmount)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unknown bucket rejected before any query", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectRollback()

		err := service.Credit("acc-1", models.Bucket("savings"),
			decimal.NewFromInt(10), models.EntryDeposit, "bad bucket", nil)
		assert.ErrorIs(t, err, ErrUnknownBucket)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing account", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectQuery(lockWalletQuery).
			WithArgs("ghost").
			WillReturnRows(walletColumns())
		mock.ExpectRollback()

		err := service.Credit("ghost", models.BucketNormal,
			decimal.NewFromInt(10), models.EntryDeposit, "to nobody", nil)
		assert.ErrorIs(t, err, ErrAccountNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestWalletService_Debit(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	service := NewWalletService(db)

	t.Run("debit writes negative entry", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectQuery(lockWalletQuery).
			WithArgs("acc-1").
			WillReturnRows(walletColumns().AddRow("100.00", "0", "0", "0", 1))
		mock.ExpectExec(insertEntryQuery).
			WithArgs("acc-1", "normal", "-40", "60", models.EntryDeduction, "daily deduction", nil, sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectExec(updateBucketQuery).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		err := service.Debit("acc-1", models.BucketNormal,
			decimal.NewFromInt(40), models.EntryDeduction, "daily deduction", nil)
		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("insufficient balance rejected before any write", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectQuery(lockWalletQuery).
			WithArgs("acc-1").
			WillReturnRows(walletColumns().AddRow("5.00", "0", "0", "0", 1))
		mock.ExpectRollback()

		err := service.Debit("acc-1", models.BucketNormal,
			decimal.NewFromInt(40), models.EntryDeduction, "too much", nil)
		assert.ErrorIs(t, err, ErrInsufficientBalance)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("concurrent version bump surfaces as conflict", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectQuery(lockWalletQuery).
			WithArgs("acc-1").
			WillReturnRows(walletColumns().AddRow("100.00", "0", "0", "0", 7))
		mock.ExpectExec(insertEntryQuery).
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectExec(updateBucketQuery).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectRollback()

		err := service.Debit("acc-1", models.BucketNormal,
			decimal.NewFromInt(40), models.EntryDeduction, "raced", nil)
		assert.ErrorIs(t, err, ErrConflict)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestWalletService_Transfer(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	service := NewWalletService(db)

	t.Run("transfer writes one entry per bucket under one lock", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectQuery(lockWalletQuery).
			WithArgs("acc-1").
			WillReturnRows(walletColumns().AddRow("0", "200.00", "0", "10.00", 2))
		mock.ExpectExec(insertEntryQuery).
			WithArgs("acc-1", "benefit", "-2", "198", models.EntryBenefitTransfer, "daily transfer", nil, sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectExec(insertEntryQuery).
			WithArgs("acc-1", "withdrawal", "2", "12", models.EntryBenefitTransfer, "daily transfer", nil, sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(2, 1))
		mock.ExpectExec(updateBucketQuery).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		err := service.Transfer("acc-1", models.BucketBenefit, models.BucketWithdrawal,
			decimal.NewFromInt(2), models.EntryBenefitTransfer, "daily transfer")
		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("transfer from empty bucket rejected", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectQuery(lockWalletQuery).
			WithArgs("acc-1").
			WillReturnRows(walletColumns().AddRow("0", "1.00", "0", "0", 2))
		mock.ExpectRollback()

		err := service.Transfer("acc-1", models.BucketBenefit, models.BucketWithdrawal,
			decimal.NewFromInt(2), models.EntryBenefitTransfer, "too much")
		assert.ErrorIs(t, err, ErrInsufficientBalance)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestWalletService_Reconcile(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	service := NewWalletService(db)

	mock.ExpectQuery(`SELECT normal_balance, benefit_balance, game_balance, withdrawal_balance`).
		WithArgs("acc-1").
		WillReturnRows(sqlmock.NewRows([]string{
			"normal_balance", "benefit_balance", "game_balance", "withdrawal_balance",
		}).AddRow("100.00", "50.00", "0", "25.00"))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT bucket, COALESCE(SUM(amount), 0)`)).
		WithArgs("acc-1").
		WillReturnRows(sqlmock.NewRows([]string{"bucket", "coalesce"}).
			AddRow("normal", "100.00").
			AddRow("benefit", "49.00").
			AddRow("withdrawal", "25.00"))

	out, err := service.Reconcile("acc-1")
	require.NoError(t, err)
	require.Len(t, out, 4)

	byBucket := map[models.Bucket]BucketReconciliation{}
	for _, r := range out {
		byBucket[r.Bucket] = r
	}
	assert.True(t, byBucket[models.BucketNormal].Consistent)
	assert.False(t, byBucket[models.BucketBenefit].Consistent, "benefit ledger drifted by 1.00")
	assert.True(t, byBucket[models.BucketGame].Consistent, "no entries means zero balance")
	assert.True(t, byBucket[models.BucketWithdrawal].Consistent)
	assert.NoError(t, mock.ExpectationsWereMet())
}
