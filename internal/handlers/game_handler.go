package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/growfund/backend/internal/services"
)

// GameHandler serves both game types: color rooms and big/small number
// rooms, plus the game-wallet funding transfer.
type GameHandler struct {
	wallet     *services.WalletService
	colorGame  *services.ColorGameService
	numberGame *services.NumberGameService
	validator  *services.ValidationHelper
}

func NewGameHandler(wallet *services.WalletService, colorGame *services.ColorGameService, numberGame *services.NumberGameService) *GameHandler {
	return &GameHandler{
		wallet:     wallet,
		colorGame:  colorGame,
		numberGame: numberGame,
		validator:  services.NewValidationHelper(),
	}
}

func (h *GameHandler) ListColorRooms(w http.ResponseWriter, r *http.Request) {
	rooms, err := h.colorGame.ListRooms(r.URL.Query().Get("status"))
	if err != nil {
		sendServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"rooms":   rooms,
	})
}

// GetColorRoom returns one room with its per-color counts.
func (h *GameHandler) GetColorRoom(w http.ResponseWriter, r *http.Request) {
	room, err := h.colorGame.GetRoom(chi.URLParam(r, "roomID"))
	if err != nil {
		sendServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"room":    room,
	})
}

// JoinColorRoom enters an account into a room on a color. Joining the last
// free seat settles the room, so the response may already carry a result.
func (h *GameHandler) JoinColorRoom(w http.ResponseWriter, r *http.Request) {
	roomID := chi.URLParam(r, "roomID")

	var req struct {
		AccountID string `json:"accountId" validate:"required"`
		Color     string `json:"color" validate:"required"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.validator.ValidateStruct(&req); err != nil {
		services.SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	player, err := h.colorGame.JoinRoom(roomID, req.AccountID, req.Color)
	if err != nil {
		sendServiceError(w, err)
		return
	}

	balances, err := h.wallet.Balances(req.AccountID)
	if err != nil {
		sendServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":  true,
		"player":   player,
		"balances": balances,
	})
}

func (h *GameHandler) ListNumberRooms(w http.ResponseWriter, r *http.Request) {
	rooms, err := h.numberGame.ListRooms(r.URL.Query().Get("status"))
	if err != nil {
		sendServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"rooms":   rooms,
	})
}

func (h *GameHandler) GetNumberRoom(w http.ResponseWriter, r *http.Request) {
	room, err := h.numberGame.GetRoom(chi.URLParam(r, "roomID"))
	if err != nil {
		sendServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"room":    room,
	})
}

func (h *GameHandler) JoinNumberRoom(w http.ResponseWriter, r *http.Request) {
	roomID := chi.URLParam(r, "roomID")

	var req struct {
		AccountID string `json:"accountId" validate:"required"`
		Side      string `json:"side" validate:"required,oneof=big small"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.validator.ValidateStruct(&req); err != nil {
		services.SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	player, err := h.numberGame.JoinRoom(roomID, req.AccountID, req.Side)
	if err != nil {
		sendServiceError(w, err)
		return
	}

	balances, err := h.wallet.Balances(req.AccountID)
	if err != nil {
		sendServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":  true,
		"player":   player,
		"balances": balances,
	})
}

// TransferToGame funds the game bucket from the normal bucket.
func (h *GameHandler) TransferToGame(w http.ResponseWriter, r *http.Request) {
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

	if err := h.numberGame.TransferToGame(req.AccountID, amount); err != nil {
		sendServiceError(w, err)
		return
	}

	balances, err := h.wallet.Balances(req.AccountID)
	if err != nil {
		sendServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":  true,
		"balances": balances,
	})
}
