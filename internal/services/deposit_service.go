package services

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"github.com/growfund/backend/internal/config"
	"github.com/growfund/backend/internal/models"
)

var oneHundred = decimal.NewFromInt(100)

// DepositService owns the deposit and withdrawal request state machines.
// Users file requests; an admin approves or rejects them. All the money
// movement happens at review time, inside one transaction per review.
type DepositService struct {
	db           *sql.DB
	wallet       *WalletService
	distribution *DistributionService
	cfg          *config.DepositConfig
	withdrawal   *config.WithdrawalConfig
}

func NewDepositService(db *sql.DB, wallet *WalletService, distribution *DistributionService, cfg *config.DepositConfig, withdrawal *config.WithdrawalConfig) *DepositService {
	return &DepositService{
		db:           db,
		wallet:       wallet,
		distribution: distribution,
		cfg:          cfg,
		withdrawal:   withdrawal,
	}
}

// RequestDeposit files a pending deposit request. No balances move until an
// admin approves it.
func (s *DepositService) RequestDeposit(accountID string, amount decimal.Decimal) (*models.DepositRequest, error) {
	amount = trunc2(amount)
	if !amount.IsPositive() {
		return nil, ErrInvalidAmount
	}

	var exists bool
	err := s.db.QueryRow(`SELECT EXISTS (SELECT 1 FROM accounts WHERE id = $1)`, accountID).Scan(&exists)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, ErrAccountNotFound
	}

	req := &models.DepositRequest{
		ID:        uuid.NewString(),
		AccountID: accountID,
		Amount:    amount,
		Status:    models.RequestPending,
		CreatedAt: time.Now(),
	}
	_, err = s.db.Exec(`
		INSERT INTO deposit_requests (id, account_id, amount, status, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		req.ID, req.AccountID, req.Amount, req.Status, req.CreatedAt)
	if err != nil {
		return nil, err
	}
	return req, nil
}

// ApproveDeposit settles a pending deposit request in one transaction:
// an admission fee is withheld, the net principal lands in the normal
// bucket, benefit gets net times the configured multiplier, a
// growth-bearing deposit record is opened, and the deposit bonus is
// distributed up the referral chain.
func (s *DepositService) ApproveDeposit(requestID, adminID string) (*models.Deposit, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	req, err := s.lockDepositRequest(tx, requestID)
	if err != nil {
		return nil, err
	}

	fee := trunc2(req.Amount.Mul(s.cfg.AdmissionFeePercent).Div(oneHundred))
	net := req.Amount.Sub(fee)

	err = s.wallet.CreditTx(tx, req.AccountID, models.BucketNormal, net, models.EntryDeposit,
		fmt.Sprintf("Deposit approved, %s after %s admission fee", net, fee), &req.ID)
	if err != nil {
		return nil, err
	}

	benefitCredit := trunc2(net.Mul(s.cfg.BenefitMultiplier))
	if benefitCredit.IsPositive() {
		err = s.wallet.CreditTx(tx, req.AccountID, models.BucketBenefit, benefitCredit, models.EntryDeposit,
			fmt.Sprintf("Benefit credit for deposit of %s", net), &req.ID)
		if err != nil {
			return nil, err
		}
	}

	now := time.Now()
	dep := &models.Deposit{
		ID:                uuid.NewString(),
		AccountID:         req.AccountID,
		Principal:         net,
		StartDate:         now,
		EndDate:           now.AddDate(0, 0, s.cfg.DayCap),
		IsActive:          true,
		NormalGrowthRate:  s.cfg.NormalGrowthRate,
		BenefitGrowthRate: s.cfg.BenefitGrowthRate,
	}
	_, err = tx.Exec(`
		INSERT INTO deposits (id, account_id, principal, start_date, end_date, days_grown, is_active,
		                      normal_growth_rate, benefit_growth_rate, total_normal_growth, total_benefit_growth)
		VALUES ($1, $2, $3, $4, $5, 0, TRUE, $6, $7, 0, 0)`,
		dep.ID, dep.AccountID, dep.Principal, dep.StartDate, dep.EndDate,
		dep.NormalGrowthRate, dep.BenefitGrowthRate)
	if err != nil {
		return nil, err
	}

	_, err = tx.Exec(`UPDATE accounts SET total_deposits = total_deposits + $1 WHERE id = $2`,
		net, req.AccountID)
	if err != nil {
		return nil, err
	}

	if _, err := s.distribution.DistributeTx(tx, req.AccountID, net, models.ShareDepositBonus); err != nil {
		return nil, err
	}

	if err := s.markReviewed(tx, "deposit_requests", requestID, models.RequestApproved, adminID, ""); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{
		"request_id": requestID,
		"account_id": req.AccountID,
		"principal":  net,
		"fee":        fee,
	}).Info("[DEPOSIT] request approved")
	return dep, nil
}

func (s *DepositService) RejectDeposit(requestID, adminID, reason string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := s.lockDepositRequest(tx, requestID); err != nil {
		return err
	}
	if err := s.markReviewed(tx, "deposit_requests", requestID, models.RequestRejected, adminID, reason); err != nil {
		return err
	}
	return tx.Commit()
}

// RequestWithdrawal reserves the amount out of the withdrawal bucket
// immediately, so a user cannot file overlapping requests against the
// same funds. Rejection refunds the reservation.
func (s *DepositService) RequestWithdrawal(accountID string, amount decimal.Decimal, method, upiID, bankDetails string) (*models.WithdrawalRequest, error) {
	amount = trunc2(amount)
	if !amount.IsPositive() {
		return nil, ErrInvalidAmount
	}
	if amount.LessThan(s.withdrawal.MinimumAmount) {
		return nil, ErrMinWithdrawal
	}

	req := &models.WithdrawalRequest{
		ID:          uuid.NewString(),
		AccountID:   accountID,
		Amount:      amount,
		Method:      method,
		UPIID:       upiID,
		BankDetails: bankDetails,
		Status:      models.RequestPending,
		CreatedAt:   time.Now(),
	}

	tx, err := s.db.Begin()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	err = s.wallet.DebitTx(tx, accountID, models.BucketWithdrawal, amount, models.EntryWithdrawal,
		fmt.Sprintf("Withdrawal request for %s via %s", amount, method), &req.ID)
	if err != nil {
		return nil, err
	}

	_, err = tx.Exec(`
		INSERT INTO withdrawal_requests (id, account_id, amount, method, upi_id, bank_details, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		req.ID, req.AccountID, req.Amount, req.Method, req.UPIID, req.BankDetails, req.Status, req.CreatedAt)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return req, nil
}

// ApproveWithdrawal marks the payout done and shares the MLM bonus up the
// chain. The funds themselves were already reserved at request time.
func (s *DepositService) ApproveWithdrawal(requestID, adminID string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	req, err := s.lockWithdrawalRequest(tx, requestID)
	if err != nil {
		return err
	}

	if _, err := s.distribution.DistributeTx(tx, req.AccountID, req.Amount, models.ShareMLMBonus); err != nil {
		return err
	}
	if err := s.markReviewed(tx, "withdrawal_requests", requestID, models.RequestApproved, adminID, ""); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}

	log.WithFields(log.Fields{
		"request_id": requestID,
		"account_id": req.AccountID,
		"amount":     req.Amount,
	}).Info("[WITHDRAWAL] request approved")
	return nil
}

func (s *DepositService) RejectWithdrawal(requestID, adminID, reason string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	req, err := s.lockWithdrawalRequest(tx, requestID)
	if err != nil {
		return err
	}

	err = s.wallet.CreditTx(tx, req.AccountID, models.BucketWithdrawal, req.Amount, models.EntryRefund,
		"Withdrawal request rejected, reserved amount refunded", &req.ID)
	if err != nil {
		return err
	}
	if err := s.markReviewed(tx, "withdrawal_requests", requestID, models.RequestRejected, adminID, reason); err != nil {
		return err
	}
	return tx.Commit()
}

// PendingDepositRequests lists requests awaiting review, oldest first.
func (s *DepositService) PendingDepositRequests() ([]models.DepositRequest, error) {
	rows, err := s.db.Query(`
		SELECT id, account_id, amount, status, created_at
		FROM deposit_requests
		WHERE status = $1
		ORDER BY created_at`, models.RequestPending)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var reqs []models.DepositRequest
	for rows.Next() {
		var r models.DepositRequest
		if err := rows.Scan(&r.ID, &r.AccountID, &r.Amount, &r.Status, &r.CreatedAt); err != nil {
			return nil, err
		}
		reqs = append(reqs, r)
	}
	return reqs, rows.Err()
}

func (s *DepositService) PendingWithdrawalRequests() ([]models.WithdrawalRequest, error) {
	rows, err := s.db.Query(`
		SELECT id, account_id, amount, method, upi_id, bank_details, status, created_at
		FROM withdrawal_requests
		WHERE status = $1
		ORDER BY created_at`, models.RequestPending)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var reqs []models.WithdrawalRequest
	for rows.Next() {
		var r models.WithdrawalRequest
		if err := rows.Scan(&r.ID, &r.AccountID, &r.Amount, &r.Method, &r.UPIID, &r.BankDetails, &r.Status, &r.CreatedAt); err != nil {
			return nil, err
		}
		reqs = append(reqs, r)
	}
	return reqs, rows.Err()
}

// ActiveDeposits lists an account's growth-bearing deposits.
func (s *DepositService) ActiveDeposits(accountID string) ([]models.Deposit, error) {
	rows, err := s.db.Query(`
		SELECT id, account_id, principal, start_date, end_date, days_grown, is_active,
		       normal_growth_rate, benefit_growth_rate, total_normal_growth, total_benefit_growth
		FROM deposits
		WHERE account_id = $1 AND is_active = TRUE
		ORDER BY start_date`, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var deps []models.Deposit
	for rows.Next() {
		var d models.Deposit
		if err := rows.Scan(&d.ID, &d.AccountID, &d.Principal, &d.StartDate, &d.EndDate, &d.DaysGrown,
			&d.IsActive, &d.NormalGrowthRate, &d.BenefitGrowthRate, &d.TotalNormalGrowth, &d.TotalBenefitGrowth); err != nil {
			return nil, err
		}
		deps = append(deps, d)
	}
	return deps, rows.Err()
}

func (s *DepositService) lockDepositRequest(tx *sql.Tx, requestID string) (*models.DepositRequest, error) {
	var req models.DepositRequest
	err := tx.QueryRow(`
		SELECT id, account_id, amount, status
		FROM deposit_requests
		WHERE id = $1
		FOR UPDATE`, requestID).Scan(&req.ID, &req.AccountID, &req.Amount, &req.Status)
	if err == sql.ErrNoRows {
		return nil, ErrRequestNotFound
	}
	if err != nil {
		return nil, err
	}
	if req.Status != models.RequestPending {
		return nil, ErrRequestNotPending
	}
	return &req, nil
}

func (s *DepositService) lockWithdrawalRequest(tx *sql.Tx, requestID string) (*models.WithdrawalRequest, error) {
	var req models.WithdrawalRequest
	err := tx.QueryRow(`
		SELECT id, account_id, amount, status
		FROM withdrawal_requests
		WHERE id = $1
		FOR UPDATE`, requestID).Scan(&req.ID, &req.AccountID, &req.Amount, &req.Status)
	if err == sql.ErrNoRows {
		return nil, ErrRequestNotFound
	}
	if err != nil {
		return nil, err
	}
	if req.Status != models.RequestPending {
		return nil, ErrRequestNotPending
	}
	return &req, nil
}

func (s *DepositService) markReviewed(tx *sql.Tx, table, requestID, status, adminID, reason string) error {
	// table is one of two compile-time constants, never user input.
	query := fmt.Sprintf(`
		UPDATE %s
		SET status = $1, reviewed_by = $2, reviewed_at = $3, reject_reason = $4
		WHERE id = $5`, table)
	_, err := tx.Exec(query, status, adminID, time.Now(), reason, requestID)
	return err
}
