package services

import "errors"

// Sentinel errors for the wallet and game engines. Handlers map these onto
// HTTP status codes; services wrap them with account/amount context.
var (
	ErrInvalidAmount       = errors.New("amount must be positive")
	ErrUnknownBucket       = errors.New("unknown wallet bucket")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrAccountNotFound     = errors.New("account not found")
	ErrRequestNotFound     = errors.New("request not found")
	ErrRequestNotPending   = errors.New("request already reviewed")
	ErrMinWithdrawal       = errors.New("amount below minimum withdrawal")
	ErrRoomNotFound        = errors.New("game room not found")
	ErrRoomNotWaiting      = errors.New("game room is not accepting players")
	ErrRoomFull            = errors.New("game room is full")
	ErrInvalidSelection    = errors.New("invalid selection for this room")
	ErrReferralCodeUnknown = errors.New("referral code not found")
	ErrReferralCycle       = errors.New("referral assignment would form a cycle")
	ErrAlreadyReferred     = errors.New("account already has a referrer")
	ErrConflict            = errors.New("concurrent update conflict")
)
