package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Entry kinds. Every wallet movement writes exactly one entry per bucket
// touched, so the sum of signed amounts per bucket reconstructs its balance.
const (
	EntryDeposit         = "deposit"
	EntryGrowth          = "growth"
	EntryDeduction       = "deduction"
	EntryBenefitTransfer = "benefit_transfer"
	EntryProfitShare     = "profit_share"
	EntryReferralBonus   = "referral_bonus"
	EntryGameEntry       = "game_entry"
	EntryGameWin         = "game_win"
	EntryWithdrawal      = "withdrawal"
	EntryRefund          = "refund"
	EntryTransfer        = "transfer"
)

// LedgerEntry is an immutable, append-only record of one bucket movement.
// Amount is signed: positive for credits, negative for debits. Balance is
// the bucket balance after the movement was applied.
type LedgerEntry struct {
	ID               int             `json:"id" db:"id"`
	AccountID        string          `json:"accountId" db:"account_id"`
	Bucket           Bucket          `json:"bucket" db:"bucket"`
	Amount           decimal.Decimal `json:"amount" db:"amount"`
	Balance          decimal.Decimal `json:"balance" db:"balance"`
	Kind             string          `json:"kind" db:"kind"`
	Description      string          `json:"description" db:"description"`
	RelatedAccountID *string         `json:"relatedAccountId,omitempty" db:"related_account_id"`
	Status           string          `json:"status" db:"status"`
	CreatedAt        time.Time       `json:"createdAt" db:"created_at"`
}
