package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/growfund/backend/internal/services"
)

// AccountHandler serves wallet balances, ledger views and the user-facing
// deposit and withdrawal request endpoints.
type AccountHandler struct {
	wallet    *services.WalletService
	deposits  *services.DepositService
	validator *services.ValidationHelper
}

func NewAccountHandler(wallet *services.WalletService, deposits *services.DepositService) *AccountHandler {
	return &AccountHandler{
		wallet:    wallet,
		deposits:  deposits,
		validator: services.NewValidationHelper(),
	}
}

// GetBalances returns all four bucket balances for an account.
func (h *AccountHandler) GetBalances(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "id")
	balances, err := h.wallet.Balances(accountID)
	if err != nil {
		sendServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":  true,
		"balances": balances,
	})
}

// GetLedger returns recent ledger entries together with the per-bucket
// reconciliation so a caller can audit the balance against the entries.
func (h *AccountHandler) GetLedger(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "id")

	reconciliation, err := h.wallet.Reconcile(accountID)
	if err != nil {
		sendServiceError(w, err)
		return
	}
	entries, err := h.wallet.Entries(accountID, 100)
	if err != nil {
		sendServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":        true,
		"entries":        entries,
		"reconciliation": reconciliation,
	})
}

// RequestDeposit files a deposit request for later admin review.
func (h *AccountHandler) RequestDeposit(w http.ResponseWriter, r *http.Request) {
	var req struct {
		AccountID string `json:"accountId" validate:"required"`
		Amount    string `json:"amount" validate:"required,money"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.validator.ValidateStruct(&req); err != nil {
		services.SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		services.SendErrorResponse(w, "Invalid amount", http.StatusBadRequest, nil)
		return
	}

	created, err := h.deposits.RequestDeposit(req.AccountID, amount)
	if err != nil {
		sendServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"success": true,
		"request": created,
	})
}

// RequestWithdrawal files a withdrawal request, reserving the amount from
// the withdrawal bucket immediately.
func (h *AccountHandler) RequestWithdrawal(w http.ResponseWriter, r *http.Request) {
	var req struct {
		AccountID   string `json:"accountId" validate:"required"`
		Amount      string `json:"amount" validate:"required,money"`
		Method      string `json:"method" validate:"required,oneof=upi bank"`
		UPIID       string `json:"upiId"`
		BankDetails string `json:"bankDetails"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.validator.ValidateStruct(&req); err != nil {
		services.SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		services.SendErrorResponse(w, "Invalid amount", http.StatusBadRequest, nil)
		return
	}

	created, err := h.deposits.RequestWithdrawal(req.AccountID, amount, req.Method, req.UPIID, req.BankDetails)
	if err != nil {
		sendServiceError(w, err)
		return
	}

	balances, err := h.wallet.Balances(req.AccountID)
	if err != nil {
		sendServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"success":  true,
		"request":  created,
		"balances": balances,
	})
}

// GetDeposits lists an account's active growth-bearing deposits.
func (h *AccountHandler) GetDeposits(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "id")
	deposits, err := h.deposits.ActiveDeposits(accountID)
	if err != nil {
		sendServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":  true,
		"deposits": deposits,
	})
}
