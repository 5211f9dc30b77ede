package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Share types. Each names a distinct distribution trigger; the target
// bucket differs per type and is configuration.
const (
	ShareDepositBonus = "deposit_bonus" // event: deposit approval, per-level flat percent
	ShareMLMBonus     = "mlm_bonus"     // event: withdrawal / game win, level table
	ShareDailyBenefit = "daily_benefit" // scheduled: percent of benefit balance
	ShareLevelBased   = "level_based"   // scheduled: per-level percent of benefit balance
	ShareSignupBonus  = "signup_bonus"  // event: referral enrollment
)

// ProfitShare records one ancestor-credit event. It is redundant with the
// ledger and never authoritative for balances; it exists for analytics.
type ProfitShare struct {
	ID              string          `json:"id" db:"id"`
	AccountID       string          `json:"accountId" db:"account_id"`
	Level           int             `json:"level" db:"level"`
	ShareType       string          `json:"shareType" db:"share_type"`
	Amount          decimal.Decimal `json:"amount" db:"amount"`
	Percentage      decimal.Decimal `json:"percentage" db:"percentage"`
	SourceAmount    decimal.Decimal `json:"sourceAmount" db:"source_amount"`
	Bucket          Bucket          `json:"bucket" db:"bucket"`
	SourceAccountID string          `json:"sourceAccountId" db:"source_account_id"`
	Description     string          `json:"description" db:"description"`
	Status          string          `json:"status" db:"status"`
	CreatedAt       time.Time       `json:"createdAt" db:"created_at"`
}
