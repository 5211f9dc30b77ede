package services

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidationHelper_MoneyTag(t *testing.T) {
	vh := NewValidationHelper()

	type depositBody struct {
		AccountID string `validate:"required"`
		Amount    string `validate:"required,money"`
	}

	cases := []struct {
		name   string
		amount string
		ok     bool
	}{
		{"whole amount", "1000", true},
		{"two decimal places", "499.99", true},
		{"sub-paisa precision", "10.999", false},
		{"zero", "0", false},
		{"negative", "-50", false},
		{"not a number", "ten", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := vh.ValidateStruct(depositBody{AccountID: "acc-1", Amount: tc.amount})
			if tc.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestSendErrorResponse(t *testing.T) {
	vh := NewValidationHelper()

	type body struct {
		Amount string `validate:"required,money"`
	}
	err := vh.ValidateStruct(body{Amount: "-1"})
	require.Error(t, err)

	rec := httptest.NewRecorder()
	SendErrorResponse(rec, "Validation failed", 400, err)

	assert.Equal(t, 400, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), "Validation failed")
	assert.Contains(t, rec.Body.String(), "money")
}
