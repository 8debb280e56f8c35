package handlers

import (
	"errors"
	"testing"

	"github.com/BradenHooton/kickvault/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateRequest(t *testing.T) {
	tests := []struct {
		name      string
		req       RegisterRequest
		wantField string
	}{
		{"valid", RegisterRequest{Username: "sole_collector", Email: "a@example.com", Password: "x"}, ""},
		{"short username", RegisterRequest{Username: "ab", Email: "a@example.com", Password: "x"}, "username"},
		{"illegal characters", RegisterRequest{Username: "sole-collector", Email: "a@example.com", Password: "x"}, "username"},
		{"bad email", RegisterRequest{Username: "sole_collector", Email: "not-an-email", Password: "x"}, "email"},
		{"missing password", RegisterRequest{Username: "sole_collector", Email: "a@example.com"}, "password"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateRequest(tt.req)
			if tt.wantField == "" {
				assert.NoError(t, err)
				return
			}

			var verr *models.ValidationError
			require.True(t, errors.As(err, &verr), "got %v", err)
			assert.Equal(t, tt.wantField, verr.Field)
			assert.NotEmpty(t, verr.Violations)
			assert.ErrorIs(t, err, models.ErrBadRequest)
		})
	}
}
