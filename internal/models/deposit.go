package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Request lifecycle statuses shared by deposit and withdrawal requests.
const (
	RequestPending  = "pending"
	RequestApproved = "approved"
	RequestRejected = "rejected"
)

// Deposit is growth-bearing principal. It is created on deposit approval
// and credited growth once per scheduler tick while active; it deactivates
// when DaysGrown reaches the configured day cap.
type Deposit struct {
	ID                 string          `json:"id" db:"id"`
	AccountID          string          `json:"accountId" db:"account_id"`
	Principal          decimal.Decimal `json:"principal" db:"principal"`
	StartDate          time.Time       `json:"startDate" db:"start_date"`
	EndDate            time.Time       `json:"endDate" db:"end_date"`
	DaysGrown          int             `json:"daysGrown" db:"days_grown"`
	IsActive           bool            `json:"isActive" db:"is_active"`
	NormalGrowthRate   decimal.Decimal `json:"normalGrowthRate" db:"normal_growth_rate"`
	BenefitGrowthRate  decimal.Decimal `json:"benefitGrowthRate" db:"benefit_growth_rate"`
	TotalNormalGrowth  decimal.Decimal `json:"totalNormalGrowth" db:"total_normal_growth"`
	TotalBenefitGrowth decimal.Decimal `json:"totalBenefitGrowth" db:"total_benefit_growth"`
	LastGrowthDate     time.Time       `json:"lastGrowthDate" db:"last_growth_date"`
}

type DepositRequest struct {
	ID           string          `json:"id" db:"id"`
	AccountID    string          `json:"accountId" db:"account_id"`
	Amount       decimal.Decimal `json:"amount" db:"amount"`
	Status       string          `json:"status" db:"status"`
	ReviewedBy   *string         `json:"reviewedBy,omitempty" db:"reviewed_by"`
	ReviewedAt   *time.Time      `json:"reviewedAt,omitempty" db:"reviewed_at"`
	RejectReason string          `json:"rejectReason,omitempty" db:"reject_reason"`
	CreatedAt    time.Time       `json:"createdAt" db:"created_at"`
}

// WithdrawalRequest reserves funds from the withdrawal bucket on creation.
// Rejection refunds the reserved amount; approval marks the payout done.
type WithdrawalRequest struct {
	ID           string          `json:"id" db:"id"`
	AccountID    string          `json:"accountId" db:"account_id"`
	Amount       decimal.Decimal `json:"amount" db:"amount"`
	Method       string          `json:"method" db:"method"` // upi or bank
	UPIID        string          `json:"upiId,omitempty" db:"upi_id"`
	BankDetails  string          `json:"bankDetails,omitempty" db:"bank_details"`
	Status       string          `json:"status" db:"status"`
	ReviewedBy   *string         `json:"reviewedBy,omitempty" db:"reviewed_by"`
	ReviewedAt   *time.Time      `json:"reviewedAt,omitempty" db:"reviewed_at"`
	RejectReason string          `json:"rejectReason,omitempty" db:"reject_reason"`
	CreatedAt    time.Time       `json:"createdAt" db:"created_at"`
}
