package services

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"github.com/growfund/backend/internal/config"
	"github.com/growfund/backend/internal/models"
)

// DistributionService walks an account's ancestor chain and credits each
// ancestor its configured percentage of a triggering amount. The same
// primitive serves both event triggers (deposit, withdrawal, game win) and
// the two scheduled sweeps.
type DistributionService struct {
	db       *sql.DB
	wallet   *WalletService
	referral *ReferralService
	cfg      *config.MLMConfig
}

func NewDistributionService(db *sql.DB, wallet *WalletService, referral *ReferralService, cfg *config.MLMConfig) *DistributionService {
	return &DistributionService{db: db, wallet: wallet, referral: referral, cfg: cfg}
}

type Share struct {
	AncestorID string          `json:"ancestorId"`
	Level      int             `json:"level"`
	Percentage decimal.Decimal `json:"percentage"`
	Amount     decimal.Decimal `json:"amount"`
}

type DistributionResult struct {
	SourceAccountID  string          `json:"sourceAccountId"`
	ShareType        string          `json:"shareType"`
	TotalAmount      decimal.Decimal `json:"totalAmount"`
	TotalDistributed decimal.Decimal `json:"totalDistributed"`
	Shares           []Share         `json:"shares"`
	SkippedAncestors int             `json:"skippedAncestors"`
}

// shareBucket maps a share type to the bucket it credits. Signup and
// ongoing profit shares deliberately land in different buckets.
func shareBucket(shareType string) models.Bucket {
	switch shareType {
	case models.ShareDepositBonus:
		return models.BucketBenefit
	case models.ShareSignupBonus:
		return models.BucketNormal
	default:
		return models.BucketWithdrawal
	}
}

// Distribute runs one distribution in its own transaction, so a failure on
// a later ancestor cannot strand credits already written for earlier ones.
func (s *DistributionService) Distribute(sourceAccountID string, totalAmount decimal.Decimal, shareType string) (*DistributionResult, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	result, err := s.DistributeTx(tx, sourceAccountID, totalAmount, shareType)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return result, nil
}

// DistributeTx distributes within the caller's transaction. A missing
// ancestor account is a designed skip, not an error; any other failure
// aborts the whole call.
func (s *DistributionService) DistributeTx(tx *sql.Tx, sourceAccountID string, totalAmount decimal.Decimal, shareType string) (*DistributionResult, error) {
	totalAmount = trunc2(totalAmount)
	if !totalAmount.IsPositive() {
		return nil, fmt.Errorf("%w: distribute %s from account %s", ErrInvalidAmount, totalAmount, sourceAccountID)
	}

	chain, err := s.referral.AncestorsTx(tx, sourceAccountID)
	if err != nil {
		return nil, err
	}

	result := &DistributionResult{
		SourceAccountID: sourceAccountID,
		ShareType:       shareType,
		TotalAmount:     totalAmount,
		Shares:          []Share{},
	}
	bucket := shareBucket(shareType)

	for _, link := range chain {
		pct := link.SharePercent
		if shareType == models.ShareDepositBonus {
			pct = s.cfg.DepositBonusPercent
		}
		amount := trunc2(totalAmount.Mul(pct).Div(decimal.NewFromInt(100)))
		if !amount.IsPositive() {
			continue
		}

		description := fmt.Sprintf("%s%% %s profit share from level %d", pct, shareType, link.Level)
		err := s.wallet.CreditTx(tx, link.AncestorID, bucket, amount, models.EntryProfitShare, description, &sourceAccountID)
		if errors.Is(err, ErrAccountNotFound) {
			result.SkippedAncestors++
			log.WithFields(log.Fields{
				"source_account": sourceAccountID,
				"ancestor":       link.AncestorID,
				"level":          link.Level,
			}).Warn("[MLM] skipping credit to missing ancestor")
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("distributing %s to ancestor %s at level %d: %w",
				amount, link.AncestorID, link.Level, err)
		}

		_, err = tx.Exec(`
			INSERT INTO profit_shares (id, account_id, level, share_type, amount, percentage, source_amount, bucket, source_account_id, description, status, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, 'completed', $11)`,
			uuid.NewString(), link.AncestorID, link.Level, shareType, amount, pct,
			totalAmount, string(bucket), sourceAccountID, description, time.Now())
		if err != nil {
			return nil, err
		}

		result.Shares = append(result.Shares, Share{
			AncestorID: link.AncestorID,
			Level:      link.Level,
			Percentage: pct,
			Amount:     amount,
		})
		result.TotalDistributed = result.TotalDistributed.Add(amount)
	}
	return result, nil
}

type BatchShareSummary struct {
	ShareType        string          `json:"shareType"`
	Accounts         int             `json:"accounts"`
	Distributions    int             `json:"distributions"`
	TotalDistributed decimal.Decimal `json:"totalDistributed"`
	StartedAt        time.Time       `json:"startedAt"`
	FinishedAt       time.Time       `json:"finishedAt"`
}

// RunDailyProfitShare distributes the configured percentage of every
// positive benefit balance to that account's upline. The whole sweep is one
// unit of work: any failure rolls back every credit.
func (s *DistributionService) RunDailyProfitShare() (*BatchShareSummary, error) {
	return s.runBenefitShare(models.ShareDailyBenefit, func(level int, benefit decimal.Decimal) decimal.Decimal {
		return trunc2(benefit.Mul(s.cfg.DailySharePercent).Div(decimal.NewFromInt(100)))
	})
}

// RunLevelBasedProfitShare distributes benefit x (mlm level x per-level
// percent) for every account that sits below at least one ancestor.
func (s *DistributionService) RunLevelBasedProfitShare() (*BatchShareSummary, error) {
	return s.runBenefitShare(models.ShareLevelBased, func(level int, benefit decimal.Decimal) decimal.Decimal {
		pct := s.cfg.PerLevelPercent.Mul(decimal.NewFromInt(int64(level)))
		return trunc2(benefit.Mul(pct).Div(decimal.NewFromInt(100)))
	})
}

func (s *DistributionService) runBenefitShare(shareType string, shareOf func(level int, benefit decimal.Decimal) decimal.Decimal) (*BatchShareSummary, error) {
	summary := &BatchShareSummary{ShareType: shareType, StartedAt: time.Now()}

	tx, err := s.db.Begin()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	rows, err := tx.Query(`
		SELECT id, level, benefit_balance
		FROM accounts
		WHERE benefit_balance > 0 AND level > 0
		ORDER BY created_at`)
	if err != nil {
		return nil, err
	}

	type candidate struct {
		id      string
		level   int
		benefit decimal.Decimal
	}
	var candidates []candidate
	for rows.Next() {
		var c candidate
		if err := rows.Scan(&c.id, &c.level, &c.benefit); err != nil {
			rows.Close()
			return nil, err
		}
		candidates = append(candidates, c)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, c := range candidates {
		amount := shareOf(c.level, c.benefit)
		if !amount.IsPositive() {
			continue
		}
		result, err := s.DistributeTx(tx, c.id, amount, shareType)
		if err != nil {
			return nil, fmt.Errorf("%s for account %s: %w", shareType, c.id, err)
		}
		summary.Accounts++
		summary.Distributions += len(result.Shares)
		summary.TotalDistributed = summary.TotalDistributed.Add(result.TotalDistributed)
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	summary.FinishedAt = time.Now()
	log.WithFields(log.Fields{
		"share_type":    shareType,
		"accounts":      summary.Accounts,
		"distributions": summary.Distributions,
		"total":         summary.TotalDistributed,
	}).Info("[MLM] scheduled profit share completed")
	return summary, nil
}
