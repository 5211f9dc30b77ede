package handlers

import (
	"net/http"

	"github.com/growfund/backend/internal/services"
)

// ReferralHandler serves referral joining and QR rendering.
type ReferralHandler struct {
	referral  *services.ReferralService
	validator *services.ValidationHelper
}

func NewReferralHandler(referral *services.ReferralService) *ReferralHandler {
	return &ReferralHandler{
		referral:  referral,
		validator: services.NewValidationHelper(),
	}
}

// GetQR renders an account's referral link as a QR code.
func (h *ReferralHandler) GetQR(w http.ResponseWriter, r *http.Request) {
	accountID := r.URL.Query().Get("accountId")
	if accountID == "" {
		services.SendErrorResponse(w, "accountId is required", http.StatusBadRequest, nil)
		return
	}

	link, qrImage, err := h.referral.ReferralQR(accountID)
	if err != nil {
		sendServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"link":    link,
		"qrImage": qrImage,
	})
}

// AssignReferrer attaches an account to a referrer by referral code and
// builds its ancestor chain.
func (h *ReferralHandler) AssignReferrer(w http.ResponseWriter, r *http.Request) {
	var req struct {
		AccountID    string `json:"accountId" validate:"required"`
		ReferralCode string `json:"referralCode" validate:"required"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.validator.ValidateStruct(&req); err != nil {
		services.SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	chain, err := h.referral.AssignReferrer(req.AccountID, req.ReferralCode)
	if err != nil {
		sendServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"ancestors": chain,
	})
}
