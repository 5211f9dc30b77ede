package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/growfund/backend/internal/services"
)

// decodeJSON reads a single JSON object into dst, rejecting unknown fields
// and trailing content.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, 1_048_576)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		services.SendErrorResponse(w, "Invalid request body", http.StatusBadRequest, nil)
		return false
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		services.SendErrorResponse(w, "Request body must only contain a single JSON object", http.StatusBadRequest, nil)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

// sendServiceError maps the service sentinel errors onto HTTP statuses.
func sendServiceError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, services.ErrInvalidAmount),
		errors.Is(err, services.ErrUnknownBucket),
		errors.Is(err, services.ErrInvalidSelection),
		errors.Is(err, services.ErrMinWithdrawal),
		errors.Is(err, services.ErrInsufficientBalance),
		errors.Is(err, services.ErrReferralCodeUnknown):
		status = http.StatusBadRequest
	case errors.Is(err, services.ErrAccountNotFound),
		errors.Is(err, services.ErrRequestNotFound),
		errors.Is(err, services.ErrRoomNotFound):
		status = http.StatusNotFound
	case errors.Is(err, services.ErrRequestNotPending),
		errors.Is(err, services.ErrRoomNotWaiting),
		errors.Is(err, services.ErrRoomFull),
		errors.Is(err, services.ErrAlreadyReferred),
		errors.Is(err, services.ErrReferralCycle),
		errors.Is(err, services.ErrConflict):
		status = http.StatusConflict
	}
	services.SendErrorResponse(w, err.Error(), status, nil)
}
