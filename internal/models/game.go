package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Room statuses. A room transitions waiting -> completed exactly on the
// join that fills it, and back to waiting on a reset sweep.
const (
	RoomWaiting   = "waiting"
	RoomCompleted = "completed"
)

// Payout shapes for game winners.
const (
	PayoutFixed       = "fixed"        // flat winning amount
	PayoutMultiplier  = "multiplier"   // entry fee x multiplier
	PayoutEntryReturn = "entry_return" // entry fee back plus an equal win amount
)

// GameRoom is a color-pick room. Entry debits the normal bucket by
// EntryFee and the benefit bucket by EntryFee x BenefitFeeMultiplier.
type GameRoom struct {
	ID                   string          `json:"id" db:"id"`
	RoomID               string          `json:"roomId" db:"room_id"`
	Status               string          `json:"status" db:"status"`
	EntryFee             decimal.Decimal `json:"entryFee" db:"entry_fee"`
	BenefitFeeMultiplier decimal.Decimal `json:"benefitFeeMultiplier" db:"benefit_fee_multiplier"`
	WinningAmount        decimal.Decimal `json:"winningAmount" db:"winning_amount"`
	MaxPlayers           int             `json:"maxPlayers" db:"max_players"`
	CurrentPlayers       int             `json:"currentPlayers" db:"current_players"`
	AvailableColors      []string        `json:"availableColors" db:"available_colors"`
	ColorCounts          map[string]int  `json:"colorCounts" db:"color_counts"`
	WinningColor         string          `json:"winningColor,omitempty" db:"winning_color"`
	EndTime              *time.Time      `json:"endTime,omitempty" db:"end_time"`
	CreatedAt            time.Time       `json:"createdAt" db:"created_at"`
}

type GamePlayer struct {
	ID               string          `json:"id" db:"id"`
	RoomID           string          `json:"roomId" db:"room_id"`
	AccountID        string          `json:"accountId" db:"account_id"`
	ColorSelected    string          `json:"colorSelected" db:"color_selected"`
	NormalDeduction  decimal.Decimal `json:"normalDeduction" db:"normal_deduction"`
	BenefitDeduction decimal.Decimal `json:"benefitDeduction" db:"benefit_deduction"`
	HasWon           bool            `json:"hasWon" db:"has_won"`
	AmountWon        decimal.Decimal `json:"amountWon" db:"amount_won"`
	JoinedAt         time.Time       `json:"joinedAt" db:"joined_at"`
}

// Number game sides.
const (
	SideBig   = "big"   // numbers 6-9
	SideSmall = "small" // numbers 1-5
)

// NumberGameRoom is a big/small room. Entry debits the game bucket only.
type NumberGameRoom struct {
	ID                string          `json:"id" db:"id"`
	RoomID            string          `json:"roomId" db:"room_id"`
	Status            string          `json:"status" db:"status"`
	EntryFee          decimal.Decimal `json:"entryFee" db:"entry_fee"`
	WinningMultiplier decimal.Decimal `json:"winningMultiplier" db:"winning_multiplier"`
	MaxPlayers        int             `json:"maxPlayers" db:"max_players"`
	CurrentPlayers    int             `json:"currentPlayers" db:"current_players"`
	BigCount          int             `json:"bigCount" db:"big_count"`
	SmallCount        int             `json:"smallCount" db:"small_count"`
	WinningSide       string          `json:"winningSide,omitempty" db:"winning_side"`
	EndTime           *time.Time      `json:"endTime,omitempty" db:"end_time"`
	CreatedAt         time.Time       `json:"createdAt" db:"created_at"`
}

type NumberGamePlayer struct {
	ID          string          `json:"id" db:"id"`
	RoomID      string          `json:"roomId" db:"room_id"`
	AccountID   string          `json:"accountId" db:"account_id"`
	Side        string          `json:"side" db:"side"`
	EntryAmount decimal.Decimal `json:"entryAmount" db:"entry_amount"`
	HasWon      bool            `json:"hasWon" db:"has_won"`
	AmountWon   decimal.Decimal `json:"amountWon" db:"amount_won"`
	JoinedAt    time.Time       `json:"joinedAt" db:"joined_at"`
}
