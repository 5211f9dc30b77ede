package services

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// ErrorResponse is the JSON shape for request failures.
type ErrorResponse struct {
	Error   string            `json:"error"`
	Details map[string]string `json:"details,omitempty"`
}

// ValidationHelper wraps a validator instance with the custom tags the
// wallet API uses.
type ValidationHelper struct {
	validator *validator.Validate
}

// NewValidationHelper builds a validator with the "money" tag registered:
// a decimal string, strictly positive, at most two fraction digits.
func NewValidationHelper() *ValidationHelper {
	v := validator.New()
	_ = v.RegisterValidation("money", validMoney)
	return &ValidationHelper{validator: v}
}

func validMoney(fl validator.FieldLevel) bool {
	d, err := decimal.NewFromString(fl.Field().String())
	if err != nil {
		return false
	}
	return d.IsPositive() && d.Exponent() >= -2
}

// ValidateStruct validates a struct against its validate tags.
func (vh *ValidationHelper) ValidateStruct(s any) error {
	return vh.validator.Struct(s)
}

// SendErrorResponse writes a JSON error, unpacking validator errors into
// per-field details when present.
func SendErrorResponse(w http.ResponseWriter, message string, statusCode int, validationErr error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	errorResp := ErrorResponse{Error: message}
	if validationErr != nil {
		if fieldErrs, ok := validationErr.(validator.ValidationErrors); ok {
			errorResp.Details = make(map[string]string)
			for _, err := range fieldErrs {
				errorResp.Details[err.Field()] = fmt.Sprintf("failed on the '%s' rule", err.Tag())
			}
		}
	}

	json.NewEncoder(w).Encode(errorResp)
}
