package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/growfund/backend/internal/jobs"
	"github.com/growfund/backend/internal/services"
)

// AdminHandler serves the review queues, manual scheduler triggers and game
// room administration. Every route behind it requires an admin token.
type AdminHandler struct {
	deposits   *services.DepositService
	referral   *services.ReferralService
	accrual    *services.AccrualService
	colorGame  *services.ColorGameService
	numberGame *services.NumberGameService
	scheduler  *jobs.Scheduler
	validator  *services.ValidationHelper
}

func NewAdminHandler(deposits *services.DepositService, referral *services.ReferralService, accrual *services.AccrualService, colorGame *services.ColorGameService, numberGame *services.NumberGameService, scheduler *jobs.Scheduler) *AdminHandler {
	return &AdminHandler{
		deposits:   deposits,
		referral:   referral,
		accrual:    accrual,
		colorGame:  colorGame,
		numberGame: numberGame,
		scheduler:  scheduler,
		validator:  services.NewValidationHelper(),
	}
}

func adminID(r *http.Request) string {
	id, _ := r.Context().Value("userID").(string)
	return id
}

func (h *AdminHandler) ListDepositRequests(w http.ResponseWriter, r *http.Request) {
	reqs, err := h.deposits.PendingDepositRequests()
	if err != nil {
		sendServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":  true,
		"requests": reqs,
	})
}

func (h *AdminHandler) ApproveDeposit(w http.ResponseWriter, r *http.Request) {
	dep, err := h.deposits.ApproveDeposit(chi.URLParam(r, "id"), adminID(r))
	if err != nil {
		sendServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"deposit": dep,
	})
}

func (h *AdminHandler) RejectDeposit(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Reason string `json:"reason"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.deposits.RejectDeposit(chi.URLParam(r, "id"), adminID(r), req.Reason); err != nil {
		sendServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (h *AdminHandler) ListWithdrawalRequests(w http.ResponseWriter, r *http.Request) {
	reqs, err := h.deposits.PendingWithdrawalRequests()
	if err != nil {
		sendServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":  true,
		"requests": reqs,
	})
}

func (h *AdminHandler) ApproveWithdrawal(w http.ResponseWriter, r *http.Request) {
	if err := h.deposits.ApproveWithdrawal(chi.URLParam(r, "id"), adminID(r)); err != nil {
		sendServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (h *AdminHandler) RejectWithdrawal(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Reason string `json:"reason"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.deposits.RejectWithdrawal(chi.URLParam(r, "id"), adminID(r), req.Reason); err != nil {
		sendServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

// SchedulerStatus returns each job's in-flight flag, last run and last
// error, plus the most recent committed daily tick summary.
func (h *AdminHandler) SchedulerStatus(w http.ResponseWriter, r *http.Request) {
	lastTick, err := h.accrual.LastTickSummary(r.Context())
	if err != nil {
		sendServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":  true,
		"jobs":     h.scheduler.Status(),
		"lastTick": lastTick,
	})
}

func (h *AdminHandler) runJob(w http.ResponseWriter, name string) {
	err := h.scheduler.RunNow(name)
	if errors.Is(err, jobs.ErrJobRunning) {
		services.SendErrorResponse(w, err.Error(), http.StatusConflict, nil)
		return
	}
	if err != nil {
		sendServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"job":     name,
	})
}

func (h *AdminHandler) RunDailyTick(w http.ResponseWriter, r *http.Request) {
	h.runJob(w, jobs.JobDailyTick)
}

func (h *AdminHandler) RunProfitShare(w http.ResponseWriter, r *http.Request) {
	h.runJob(w, jobs.JobDailyShare)
}

func (h *AdminHandler) RunLevelBasedShare(w http.ResponseWriter, r *http.Request) {
	h.runJob(w, jobs.JobLevelShare)
}

// RebuildChains rebuilds every account's denormalized ancestor chain.
func (h *AdminHandler) RebuildChains(w http.ResponseWriter, r *http.Request) {
	rebuilt, failed, err := h.referral.RebuildAll()
	if err != nil {
		sendServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"rebuilt": rebuilt,
		"failed":  failed,
	})
}

func (h *AdminHandler) CreateColorRoom(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RoomID               string   `json:"roomId" validate:"required"`
		EntryFee             string   `json:"entryFee" validate:"required,money"`
		BenefitFeeMultiplier string   `json:"benefitFeeMultiplier" validate:"required"`
		WinningAmount        string   `json:"winningAmount" validate:"required,money"`
		MaxPlayers           int      `json:"maxPlayers" validate:"required,gte=2"`
		AvailableColors      []string `json:"availableColors" validate:"required,min=2"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.validator.ValidateStruct(&req); err != nil {
		services.SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}
	entryFee, err := decimal.NewFromString(req.EntryFee)
	if err != nil {
		services.SendErrorResponse(w, "Invalid entryFee", http.StatusBadRequest, nil)
		return
	}
	multiplier, err := decimal.NewFromString(req.BenefitFeeMultiplier)
	if err != nil {
		services.SendErrorResponse(w, "Invalid benefitFeeMultiplier", http.StatusBadRequest, nil)
		return
	}
	winningAmount, err := decimal.NewFromString(req.WinningAmount)
	if err != nil {
		services.SendErrorResponse(w, "Invalid winningAmount", http.StatusBadRequest, nil)
		return
	}

	room, err := h.colorGame.CreateRoom(req.RoomID, entryFee, multiplier, winningAmount, req.MaxPlayers, req.AvailableColors)
	if err != nil {
		sendServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"success": true,
		"room":    room,
	})
}

func (h *AdminHandler) CreateNumberRoom(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RoomID            string `json:"roomId" validate:"required"`
		EntryFee          string `json:"entryFee" validate:"required,money"`
		WinningMultiplier string `json:"winningMultiplier" validate:"required"`
		MaxPlayers        int    `json:"maxPlayers" validate:"required,gte=2"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.validator.ValidateStruct(&req); err != nil {
		services.SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}
	entryFee, err := decimal.NewFromString(req.EntryFee)
	if err != nil {
		services.SendErrorResponse(w, "Invalid entryFee", http.StatusBadRequest, nil)
		return
	}
	multiplier, err := decimal.NewFromString(req.WinningMultiplier)
	if err != nil {
		services.SendErrorResponse(w, "Invalid winningMultiplier", http.StatusBadRequest, nil)
		return
	}

	room, err := h.numberGame.CreateRoom(req.RoomID, entryFee, multiplier, req.MaxPlayers)
	if err != nil {
		sendServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"success": true,
		"room":    room,
	})
}
