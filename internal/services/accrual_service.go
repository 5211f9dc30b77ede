package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"github.com/growfund/backend/internal/config"
	"github.com/growfund/backend/internal/models"
)

// AccrualService runs the daily wallet sweep: percentage deductions from
// the normal bucket, the benefit -> withdrawal transfer, optional growth
// credits, and per-deposit growth until each deposit's day cap.
//
// The whole tick runs in one database transaction: a partially applied
// tick would leave balances out of step with the ledger.
type AccrualService struct {
	db      *sql.DB
	wallet  *WalletService
	redis   *redis.Client
	cfg     *config.AccrualConfig
	deposit *config.DepositConfig
	history int64
}

func NewAccrualService(db *sql.DB, wallet *WalletService, redisClient *redis.Client, cfg *config.AccrualConfig, deposit *config.DepositConfig, historyEntries int64) *AccrualService {
	return &AccrualService{
		db:      db,
		wallet:  wallet,
		redis:   redisClient,
		cfg:     cfg,
		deposit: deposit,
		history: historyEntries,
	}
}

type TickSummary struct {
	Skipped          bool            `json:"skipped,omitempty"`
	AccountsSwept    int             `json:"accountsSwept"`
	DepositsGrown    int             `json:"depositsGrown"`
	DepositsCapped   int             `json:"depositsCapped"`
	TotalDeducted    decimal.Decimal `json:"totalDeducted"`
	TotalTransferred decimal.Decimal `json:"totalTransferred"`
	TotalGrowth      decimal.Decimal `json:"totalGrowth"`
	StartedAt        time.Time       `json:"startedAt"`
	FinishedAt       time.Time       `json:"finishedAt"`
}

// RunDailyTick applies one day of accrual and decay to every account.
//
// Invoking it twice for the same logical day deducts twice; cadence
// uniqueness belongs to the cron layer, not this engine.
func (s *AccrualService) RunDailyTick(ctx context.Context) (*TickSummary, error) {
	summary := &TickSummary{StartedAt: time.Now()}

	if s.cfg.WeekdaysOnly {
		switch summary.StartedAt.Weekday() {
		case time.Saturday, time.Sunday:
			summary.Skipped = true
			summary.FinishedAt = time.Now()
			log.Info("[SCHEDULER] weekend, daily tick skipped")
			return summary, nil
		}
	}

	tx, err := s.db.Begin()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	if err := s.sweepAccounts(tx, summary); err != nil {
		return nil, err
	}
	if err := s.growDeposits(tx, summary); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	summary.FinishedAt = time.Now()

	log.WithFields(log.Fields{
		"accounts":    summary.AccountsSwept,
		"deposits":    summary.DepositsGrown,
		"deducted":    summary.TotalDeducted,
		"transferred": summary.TotalTransferred,
		"growth":      summary.TotalGrowth,
	}).Info("[SCHEDULER] daily tick completed")

	// Status is published only after commit, so a rolled-back tick leaves
	// no trace in redis either.
	s.publishSummary(ctx, summary)
	return summary, nil
}

type accountSweepRow struct {
	id             string
	normal         decimal.Decimal
	benefit        decimal.Decimal
	initialNormal  decimal.Decimal
	initialBenefit decimal.Decimal
}

func (s *AccrualService) sweepAccounts(tx *sql.Tx, summary *TickSummary) error {
	rows, err := tx.Query(`
		SELECT id, normal_balance, benefit_balance, initial_normal_balance, initial_benefit_balance
		FROM accounts
		ORDER BY created_at`)
	if err != nil {
		return err
	}

	var accounts []accountSweepRow
	for rows.Next() {
		var a accountSweepRow
		if err := rows.Scan(&a.id, &a.normal, &a.benefit, &a.initialNormal, &a.initialBenefit); err != nil {
			rows.Close()
			return err
		}
		accounts = append(accounts, a)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	for _, a := range accounts {
		if err := s.sweepOne(tx, a, summary); err != nil {
			return fmt.Errorf("daily tick, account %s: %w", a.id, err)
		}
		summary.AccountsSwept++
	}
	return nil
}

func (s *AccrualService) sweepOne(tx *sql.Tx, a accountSweepRow, summary *TickSummary) error {
	normalBase, benefitBase := a.normal, a.benefit
	if s.cfg.Formula == config.FormulaInitialBalance {
		normalBase, benefitBase = a.initialNormal, a.initialBenefit
	}

	deduction := trunc2(normalBase.Mul(s.cfg.NormalDailyRate))
	if deduction.GreaterThan(a.normal) {
		// Only reachable under the initial-balance formula once the bucket
		// has drained below its initial value.
		deduction = trunc2(a.normal)
	}
	if deduction.IsPositive() {
		err := s.wallet.DebitTx(tx, a.id, models.BucketNormal, deduction, models.EntryDeduction,
			fmt.Sprintf("Daily normal wallet deduction at rate %s", s.cfg.NormalDailyRate), nil)
		if err != nil {
			return err
		}
		summary.TotalDeducted = summary.TotalDeducted.Add(deduction)
	}

	transfer := trunc2(benefitBase.Mul(s.cfg.BenefitDailyRate))
	if transfer.GreaterThan(a.benefit) {
		transfer = trunc2(a.benefit)
	}
	if transfer.IsPositive() {
		err := s.wallet.TransferTx(tx, a.id, models.BucketBenefit, models.BucketWithdrawal, transfer,
			models.EntryBenefitTransfer,
			fmt.Sprintf("Daily benefit to withdrawal transfer at rate %s", s.cfg.BenefitDailyRate))
		if err != nil {
			return err
		}
		summary.TotalTransferred = summary.TotalTransferred.Add(transfer)
	}

	// Growth is a separate rate set from decay; product variants enable
	// one, the other, or both.
	if growth := trunc2(normalBase.Mul(s.cfg.NormalGrowthRate)); growth.IsPositive() {
		err := s.wallet.CreditTx(tx, a.id, models.BucketNormal, growth, models.EntryGrowth,
			fmt.Sprintf("Daily normal wallet growth at rate %s", s.cfg.NormalGrowthRate), nil)
		if err != nil {
			return err
		}
		summary.TotalGrowth = summary.TotalGrowth.Add(growth)
	}
	if growth := trunc2(benefitBase.Mul(s.cfg.BenefitGrowthRate)); growth.IsPositive() {
		err := s.wallet.CreditTx(tx, a.id, models.BucketBenefit, growth, models.EntryGrowth,
			fmt.Sprintf("Daily benefit wallet growth at rate %s", s.cfg.BenefitGrowthRate), nil)
		if err != nil {
			return err
		}
		summary.TotalGrowth = summary.TotalGrowth.Add(growth)
	}
	return nil
}

type depositSweepRow struct {
	id          string
	accountID   string
	principal   decimal.Decimal
	daysGrown   int
	normalRate  decimal.Decimal
	benefitRate decimal.Decimal
}

func (s *AccrualService) growDeposits(tx *sql.Tx, summary *TickSummary) error {
	rows, err := tx.Query(`
		SELECT id, account_id, principal, days_grown, normal_growth_rate, benefit_growth_rate
		FROM deposits
		WHERE is_active = TRUE AND days_grown < $1
		ORDER BY start_date`, s.deposit.DayCap)
	if err != nil {
		return err
	}

	var deposits []depositSweepRow
	for rows.Next() {
		var d depositSweepRow
		if err := rows.Scan(&d.id, &d.accountID, &d.principal, &d.daysGrown, &d.normalRate, &d.benefitRate); err != nil {
			rows.Close()
			return err
		}
		deposits = append(deposits, d)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	for _, d := range deposits {
		if err := s.growOne(tx, d, summary); err != nil {
			return fmt.Errorf("daily tick, deposit %s: %w", d.id, err)
		}
	}
	return nil
}

func (s *AccrualService) growOne(tx *sql.Tx, d depositSweepRow, summary *TickSummary) error {
	normalGrowth := trunc2(d.principal.Mul(d.normalRate))
	benefitGrowth := trunc2(d.principal.Mul(d.benefitRate))

	if normalGrowth.IsPositive() {
		err := s.wallet.CreditTx(tx, d.accountID, models.BucketNormal, normalGrowth, models.EntryGrowth,
			fmt.Sprintf("Daily growth for deposit %s", d.id), nil)
		if err != nil {
			return err
		}
		summary.TotalGrowth = summary.TotalGrowth.Add(normalGrowth)
	}
	if benefitGrowth.IsPositive() {
		err := s.wallet.CreditTx(tx, d.accountID, models.BucketBenefit, benefitGrowth, models.EntryGrowth,
			fmt.Sprintf("Daily benefit growth for deposit %s", d.id), nil)
		if err != nil {
			return err
		}
		summary.TotalGrowth = summary.TotalGrowth.Add(benefitGrowth)
	}

	daysGrown := d.daysGrown + 1
	capped := daysGrown >= s.deposit.DayCap

	_, err := tx.Exec(`
		UPDATE deposits
		SET days_grown = $1,
		    total_normal_growth = total_normal_growth + $2,
		    total_benefit_growth = total_benefit_growth + $3,
		    last_growth_date = $4,
		    is_active = $5
		WHERE id = $6`,
		daysGrown, normalGrowth, benefitGrowth, time.Now(), !capped, d.id)
	if err != nil {
		return err
	}

	summary.DepositsGrown++
	if capped {
		summary.DepositsCapped++
		log.WithFields(log.Fields{"deposit_id": d.id, "days": daysGrown}).
			Info("[SCHEDULER] deposit reached day cap, deactivated")
	}
	return nil
}

const (
	tickStatusKey  = "scheduler:daily:last_run"
	tickHistoryKey = "scheduler:daily:history"
)

func (s *AccrualService) publishSummary(ctx context.Context, summary *TickSummary) {
	if s.redis == nil {
		return
	}
	payload, err := json.Marshal(summary)
	if err != nil {
		return
	}
	if err := s.redis.Set(ctx, tickStatusKey, payload, 0).Err(); err != nil {
		log.WithError(err).Warn("[SCHEDULER] failed to publish tick status")
		return
	}
	s.redis.LPush(ctx, tickHistoryKey, payload)
	s.redis.LTrim(ctx, tickHistoryKey, 0, s.history-1)
}

// LastTickSummary reads the most recent committed tick out of redis.
func (s *AccrualService) LastTickSummary(ctx context.Context) (*TickSummary, error) {
	if s.redis == nil {
		return nil, nil
	}
	payload, err := s.redis.Get(ctx, tickStatusKey).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var summary TickSummary
	if err := json.Unmarshal(payload, &summary); err != nil {
		return nil, err
	}
	return &summary, nil
}
