package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Bucket names a wallet bucket on an account. Every balance-mutating
// operation is keyed by one of these.
type Bucket string

const (
	BucketNormal     Bucket = "normal"
	BucketBenefit    Bucket = "benefit"
	BucketGame       Bucket = "game"
	BucketWithdrawal Bucket = "withdrawal"
)

// Buckets lists all wallet buckets in a fixed order.
var Buckets = []Bucket{BucketNormal, BucketBenefit, BucketGame, BucketWithdrawal}

// Valid reports whether b is a known wallet bucket.
func (b Bucket) Valid() bool {
	switch b {
	case BucketNormal, BucketBenefit, BucketGame, BucketWithdrawal:
		return true
	}
	return false
}

// AncestorLink is one entry in an account's denormalized upline chain.
// Level 1 is the direct referrer. The chain is immutable once built and
// only replaced by an explicit rebuild.
type AncestorLink struct {
	AncestorID   string          `json:"ancestorId"`
	Level        int             `json:"level"`
	SharePercent decimal.Decimal `json:"sharePercent"`
}

type Account struct {
	ID                string          `json:"id" db:"id"`
	Name              string          `json:"name" db:"name"`
	Email             string          `json:"email" db:"email"`
	ReferralCode      string          `json:"referralCode" db:"referral_code"`
	ReferredBy        *string         `json:"referredBy,omitempty" db:"referred_by"`
	Level             int             `json:"level" db:"level"` // depth below root in the referral tree
	NormalBalance     decimal.Decimal `json:"normalBalance" db:"normal_balance"`
	BenefitBalance    decimal.Decimal `json:"benefitBalance" db:"benefit_balance"`
	GameBalance       decimal.Decimal `json:"gameBalance" db:"game_balance"`
	WithdrawalBalance decimal.Decimal `json:"withdrawalBalance" db:"withdrawal_balance"`
	InitialNormal     decimal.Decimal `json:"initialNormal" db:"initial_normal_balance"`
	InitialBenefit    decimal.Decimal `json:"initialBenefit" db:"initial_benefit_balance"`
	TotalDeposits     decimal.Decimal `json:"totalDeposits" db:"total_deposits"`
	Ancestors         []AncestorLink  `json:"ancestors" db:"ancestors"`
	Version           int             `json:"version" db:"version"` // for optimistic locking
	CreatedAt         time.Time       `json:"createdAt" db:"created_at"`
	UpdatedAt         time.Time       `json:"updatedAt" db:"updated_at"`
}

// Balance returns the balance of the named bucket.
func (a *Account) Balance(b Bucket) decimal.Decimal {
	switch b {
	case BucketNormal:
		return a.NormalBalance
	case BucketBenefit:
		return a.BenefitBalance
	case BucketGame:
		return a.GameBalance
	case BucketWithdrawal:
		return a.WithdrawalBalance
	}
	return decimal.Zero
}
