package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppError_Error(t *testing.T) {
	err := NewAppError(ErrCodeDuplicateGroup, "group 26 exists", http.StatusConflict)
	assert.Equal(t, "DUPLICATE_GROUP: group 26 exists", err.Error())

	cause := errors.New("original error")
	wrapped := WrapError(cause, ErrCodeInternal, "wrapped", http.StatusInternalServerError)
	assert.Contains(t, wrapped.Error(), "original error")
	assert.ErrorIs(t, wrapped, cause)
}

func TestAppError_WithContext(t *testing.T) {
	err := NewInvalidInputError("bad").WithContext("field", "level").WithContext("count", 42)
	assert.Equal(t, "level", err.Context["field"])
	assert.Equal(t, 42, err.Context["count"])
}

func TestConstructors(t *testing.T) {
	tests := []struct {
		name   string
		err    *AppError
		code   ErrorCode
		status int
	}{
		{"invalid input", NewInvalidInputError("x"), ErrCodeInvalidInput, http.StatusBadRequest},
		{"not found", NewNotFoundError("stream"), ErrCodeNotFound, http.StatusNotFound},
		{"unauthorized", NewUnauthorizedError("x"), ErrCodeUnauthorized, http.StatusUnauthorized},
		{"forbidden", NewForbiddenError("x"), ErrCodeForbidden, http.StatusForbidden},
		{"conflict", NewConflictError("x"), ErrCodeConflict, http.StatusConflict},
		{"rate limit", NewRateLimitError(), ErrCodeRateLimit, http.StatusTooManyRequests},
		{"internal", NewInternalError("x"), ErrCodeInternal, http.StatusInternalServerError},
		{"unavailable", NewServiceUnavailableError("x"), ErrCodeServiceUnavailable, http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.code, tt.err.Code)
			assert.Equal(t, tt.status, tt.err.HTTPStatus)
		})
	}
	assert.Equal(t, "stream not found", NewNotFoundError("stream").Message)
}

func TestGetAppError(t *testing.T) {
	appErr := NewConflictError("exists")

	assert.Nil(t, GetAppError(nil))
	assert.Nil(t, GetAppError(errors.New("plain")))
	assert.False(t, IsAppError(errors.New("plain")))

	got := GetAppError(fmt.Errorf("outer: %w", appErr))
	require.NotNil(t, got)
	assert.Same(t, appErr, got)
	assert.True(t, IsAppError(fmt.Errorf("outer: %w", appErr)))
}
