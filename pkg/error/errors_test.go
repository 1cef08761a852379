package error

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/fieldbook/fieldbook/internal/domain"
)

func TestMapError(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		status  int
		message string
		detail  string
	}{
		{"validation", domain.NewValidationError("start must be before end"), http.StatusBadRequest, "invalid input", "start must be before end"},
		{"bad time format", domain.ErrInvalidFormat, http.StatusBadRequest, "invalid input", domain.ErrInvalidFormat.Message},
		{"conflict", domain.ErrReservationConflict, http.StatusConflict, "time slot already booked", "collision"},
		{"not found wrapped", fmt.Errorf("update: %w", domain.ErrReservationNotFound), http.StatusNotFound, "reservation not found", "reservation not found"},
		{"app error passthrough", NewConflict("x"), http.StatusConflict, "time slot already booked", "x"},
		{"unknown", errors.New("connection refused"), http.StatusInternalServerError, "An unexpected error occurred", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MapError(tt.err)
			assert.Equal(t, tt.status, got.Status)
			assert.Equal(t, tt.message, got.Message)
			assert.Equal(t, tt.detail, got.Detail)
		})
	}
}
