package services

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/growfund/backend/internal/models"
)

// WalletService owns every balance mutation. All writes go through
// CreditTx/DebitTx/TransferTx so each bucket movement produces exactly one
// ledger entry with a running balance, and nothing can drive a bucket
// negative.
type WalletService struct {
	db *sql.DB
}

func NewWalletService(db *sql.DB) *WalletService {
	return &WalletService{db: db}
}

// trunc2 truncates to 2 decimal places. Truncation, not rounding: the
// ledger must never hand out a fraction of a rupee it does not hold.
func trunc2(d decimal.Decimal) decimal.Decimal {
	return d.Truncate(2)
}

// walletRow is the locked snapshot of an account's buckets.
type walletRow struct {
	ID       string
	Balances map[models.Bucket]decimal.Decimal
	Version  int
}

func bucketColumn(b models.Bucket) (string, error) {
	switch b {
	case models.BucketNormal:
		return "normal_balance", nil
	case models.BucketBenefit:
		return "benefit_balance", nil
	case models.BucketGame:
		return "game_balance", nil
	case models.BucketWithdrawal:
		return "withdrawal_balance", nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownBucket, b)
}

// Credit adds amount to a bucket inside its own transaction.
func (s *WalletService) Credit(accountID string, bucket models.Bucket, amount decimal.Decimal, kind, description string, relatedID *string) error {
	return s.inTx(func(tx *sql.Tx) error {
		return s.CreditTx(tx, accountID, bucket, amount, kind, description, relatedID)
	})
}

// Debit removes amount from a bucket inside its own transaction.
func (s *WalletService) Debit(accountID string, bucket models.Bucket, amount decimal.Decimal, kind, description string, relatedID *string) error {
	return s.inTx(func(tx *sql.Tx) error {
		return s.DebitTx(tx, accountID, bucket, amount, kind, description, relatedID)
	})
}

// Transfer moves amount between two buckets of the same account inside its
// own transaction.
func (s *WalletService) Transfer(accountID string, from, to models.Bucket, amount decimal.Decimal, kind, description string) error {
	return s.inTx(func(tx *sql.Tx) error {
		return s.TransferTx(tx, accountID, from, to, amount, kind, description)
	})
}

func (s *WalletService) inTx(fn func(tx *sql.Tx) error) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

// CreditTx adds amount to a bucket within the caller's transaction.
func (s *WalletService) CreditTx(tx *sql.Tx, accountID string, bucket models.Bucket, amount decimal.Decimal, kind, description string, relatedID *string) error {
	amount = trunc2(amount)
	if !amount.IsPositive() {
		return fmt.Errorf("%w: credit %s to account %s", ErrInvalidAmount, amount, accountID)
	}
	if _, err := bucketColumn(bucket); err != nil {
		return err
	}

	row, err := s.lockWallet(tx, accountID)
	if err != nil {
		return err
	}
	newBalance := row.Balances[bucket].Add(amount)

	if err := s.writeEntry(tx, accountID, bucket, amount, newBalance, kind, description, relatedID); err != nil {
		return err
	}
	return s.updateBuckets(tx, row, map[models.Bucket]decimal.Decimal{bucket: newBalance})
}

// DebitTx removes amount from a bucket within the caller's transaction. It
// rejects before writing anything when the bucket would go negative.
func (s *WalletService) DebitTx(tx *sql.Tx, accountID string, bucket models.Bucket, amount decimal.Decimal, kind, description string, relatedID *string) error {
	amount = trunc2(amount)
	if !amount.IsPositive() {
		return fmt.Errorf("%w: debit %s from account %s", ErrInvalidAmount, amount, accountID)
	}
	if _, err := bucketColumn(bucket); err != nil {
		return err
	}

	row, err := s.lockWallet(tx, accountID)
	if err != nil {
		return err
	}
	newBalance := row.Balances[bucket].Sub(amount)
	if newBalance.IsNegative() {
		return fmt.Errorf("%w: account %s bucket %s has %s, need %s",
			ErrInsufficientBalance, accountID, bucket, row.Balances[bucket], amount)
	}

	if err := s.writeEntry(tx, accountID, bucket, amount.Neg(), newBalance, kind, description, relatedID); err != nil {
		return err
	}
	return s.updateBuckets(tx, row, map[models.Bucket]decimal.Decimal{bucket: newBalance})
}

// TransferTx moves amount between two buckets of one account under a single
// row lock, writing one entry per bucket touched.
func (s *WalletService) TransferTx(tx *sql.Tx, accountID string, from, to models.Bucket, amount decimal.Decimal, kind, description string) error {
	amount = trunc2(amount)
	if !amount.IsPositive() {
		return fmt.Errorf("%w: transfer %s on account %s", ErrInvalidAmount, amount, accountID)
	}
	if _, err := bucketColumn(from); err != nil {
		return err
	}
	if _, err := bucketColumn(to); err != nil {
		return err
	}

	row, err := s.lockWallet(tx, accountID)
	if err != nil {
		return err
	}
	fromBalance := row.Balances[from].Sub(amount)
	if fromBalance.IsNegative() {
		return fmt.Errorf("%w: account %s bucket %s has %s, need %s",
			ErrInsufficientBalance, accountID, from, row.Balances[from], amount)
	}
	toBalance := row.Balances[to].Add(amount)

	if err := s.writeEntry(tx, accountID, from, amount.Neg(), fromBalance, kind, description, nil); err != nil {
		return err
	}
	if err := s.writeEntry(tx, accountID, to, amount, toBalance, kind, description, nil); err != nil {
		return err
	}
	return s.updateBuckets(tx, row, map[models.Bucket]decimal.Decimal{
		from: fromBalance,
		to:   toBalance,
	})
}

func (s *WalletService) lockWallet(tx *sql.Tx, accountID string) (*walletRow, error) {
	row := &walletRow{
		ID:       accountID,
		Balances: make(map[models.Bucket]decimal.Decimal, 4),
	}
	var normal, benefit, game, withdrawal decimal.Decimal
	err := tx.QueryRow(`
		SELECT normal_balance, benefit_balance, game_balance, withdrawal_balance, version
		FROM accounts
		WHERE id = $1
		FOR UPDATE`, accountID).
		Scan(&normal, &benefit, &game, &withdrawal, &row.Version)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", ErrAccountNotFound, accountID)
	}
	if err != nil {
		return nil, err
	}
	row.Balances[models.BucketNormal] = normal
	row.Balances[models.BucketBenefit] = benefit
	row.Balances[models.BucketGame] = game
	row.Balances[models.BucketWithdrawal] = withdrawal
	return row, nil
}

func (s *WalletService) writeEntry(tx *sql.Tx, accountID string, bucket models.Bucket, amount, balance decimal.Decimal, kind, description string, relatedID *string) error {
	if _, err := bucketColumn(bucket); err != nil {
		return err
	}
	_, err := tx.Exec(`
		INSERT INTO ledger_entries (account_id, bucket, amount, balance, kind, description, related_account_id, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, 'completed', $8)`,
		accountID, string(bucket), amount, balance, kind, description, relatedID, time.Now())
	return err
}

// updateBuckets writes the new balances and bumps the version column.
// A zero rows-affected means someone raced the optimistic lock.
func (s *WalletService) updateBuckets(tx *sql.Tx, row *walletRow, changes map[models.Bucket]decimal.Decimal) error {
	set := "updated_at = $1, version = version + 1"
	args := []any{time.Now()}
	i := 2
	// Fixed bucket order keeps the generated SQL deterministic.
	for _, bucket := range models.Buckets {
		newBalance, ok := changes[bucket]
		if !ok {
			continue
		}
		col, err := bucketColumn(bucket)
		if err != nil {
			return err
		}
		set += fmt.Sprintf(", %s = $%d", col, i)
		args = append(args, newBalance)
		i++
	}
	args = append(args, row.ID, row.Version)

	result, err := tx.Exec(fmt.Sprintf(
		"UPDATE accounts SET %s WHERE id = $%d AND version = $%d", set, i, i+1), args...)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("%w: account %s version %d", ErrConflict, row.ID, row.Version)
	}
	return nil
}

// BucketReconciliation pairs a bucket's stored balance with the sum of its
// ledger entries. The two must always agree.
type BucketReconciliation struct {
	Bucket     models.Bucket   `json:"bucket"`
	Balance    decimal.Decimal `json:"balance"`
	LedgerSum  decimal.Decimal `json:"ledgerSum"`
	Consistent bool            `json:"consistent"`
}

// Reconcile recomputes each bucket balance from the ledger and compares it
// to the stored value. Used by the audit endpoint and invariant tests.
func (s *WalletService) Reconcile(accountID string) ([]BucketReconciliation, error) {
	var normal, benefit, game, withdrawal decimal.Decimal
	err := s.db.QueryRow(`
		SELECT normal_balance, benefit_balance, game_balance, withdrawal_balance
		FROM accounts
		WHERE id = $1`, accountID).
		Scan(&normal, &benefit, &game, &withdrawal)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", ErrAccountNotFound, accountID)
	}
	if err != nil {
		return nil, err
	}
	balances := map[models.Bucket]decimal.Decimal{
		models.BucketNormal:     normal,
		models.BucketBenefit:    benefit,
		models.BucketGame:       game,
		models.BucketWithdrawal: withdrawal,
	}

	sums := make(map[models.Bucket]decimal.Decimal, 4)
	rows, err := s.db.Query(`
		SELECT bucket, COALESCE(SUM(amount), 0)
		FROM ledger_entries
		WHERE account_id = $1
		GROUP BY bucket`, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var bucket string
		var sum decimal.Decimal
		if err := rows.Scan(&bucket, &sum); err != nil {
			return nil, err
		}
		sums[models.Bucket(bucket)] = sum
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]BucketReconciliation, 0, len(models.Buckets))
	for _, bucket := range models.Buckets {
		sum := sums[bucket]
		out = append(out, BucketReconciliation{
			Bucket:     bucket,
			Balance:    balances[bucket],
			LedgerSum:  sum,
			Consistent: balances[bucket].Equal(sum),
		})
	}
	return out, nil
}

// Entries returns an account's most recent ledger entries, newest first.
func (s *WalletService) Entries(accountID string, limit int) ([]models.LedgerEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.Query(`
		SELECT id, account_id, bucket, amount, balance, kind, description, related_account_id, status, created_at
		FROM ledger_entries
		WHERE account_id = $1
		ORDER BY id DESC
		LIMIT $2`, accountID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []models.LedgerEntry
	for rows.Next() {
		var e models.LedgerEntry
		err := rows.Scan(&e.ID, &e.AccountID, &e.Bucket, &e.Amount, &e.Balance, &e.Kind,
			&e.Description, &e.RelatedAccountID, &e.Status, &e.CreatedAt)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Balances returns the current bucket balances without locking.
func (s *WalletService) Balances(accountID string) (map[models.Bucket]decimal.Decimal, error) {
	var normal, benefit, game, withdrawal decimal.Decimal
	err := s.db.QueryRow(`
		SELECT normal_balance, benefit_balance, game_balance, withdrawal_balance
		FROM accounts
		WHERE id = $1`, accountID).
		Scan(&normal, &benefit, &game, &withdrawal)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", ErrAccountNotFound, accountID)
	}
	if err != nil {
		return nil, err
	}
	return map[models.Bucket]decimal.Decimal{
		models.BucketNormal:     normal,
		models.BucketBenefit:    benefit,
		models.BucketGame:       game,
		models.BucketWithdrawal: withdrawal,
	}, nil
}
