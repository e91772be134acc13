package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, http.StatusOK},
		{"validation", Validation("bad"), http.StatusBadRequest},
		{"not found", NotFound("missing"), http.StatusNotFound},
		{"quota", New(ErrQuotaExceeded, "full"), http.StatusForbidden},
		{"unauthorized", New(ErrUnauthorized, "no"), http.StatusUnauthorized},
		{"conflict", New(ErrConflict, "dup"), http.StatusConflict},
		{"rate", New(ErrTooManyRequests, "slow down"), http.StatusTooManyRequests},
		{"wrapped", fmt.Errorf("outer: %w", NotFound("inner")), http.StatusNotFound},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Status(tt.err))
		})
	}
}

func TestAs(t *testing.T) {
	err := fmt.Errorf("ctx: %w", Validation("Description is required"))

	e, ok := As(err)
	assert.True(t, ok)
	assert.Equal(t, "Description is required", e.Message)
	assert.ErrorIs(t, err, ErrValidation)

	_, ok = As(errors.New("plain"))
	assert.False(t, ok)
}
