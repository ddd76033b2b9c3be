package http

import (
	"context"
	stderrors "errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"streampay/internal/core/domain"
	"streampay/pkg/distributed"
	"streampay/pkg/errors"
)

var domainErrors = []struct {
	err    error
	code   errors.ErrorCode
	status int
}{
	{domain.ErrAlreadyInitialized, errors.ErrCodeAlreadyInitialized, http.StatusConflict},
	{domain.ErrDuplicateGroup, errors.ErrCodeDuplicateGroup, http.StatusConflict},
	{domain.ErrAccountExists, errors.ErrCodeConflict, http.StatusConflict},
	{domain.ErrExcessiveCancellation, errors.ErrCodeExcessiveCancellation, http.StatusUnprocessableEntity},
	{domain.ErrArithmeticOverflow, errors.ErrCodeArithmeticOverflow, http.StatusUnprocessableEntity},
	{domain.ErrInsufficientFunds, errors.ErrCodeInsufficientFunds, http.StatusUnprocessableEntity},
	{domain.ErrNothingToWithdraw, errors.ErrCodeNothingToWithdraw, http.StatusUnprocessableEntity},
	{domain.ErrUnauthorized, errors.ErrCodeUnauthorized, http.StatusForbidden},
	{domain.ErrRecordNotFound, errors.ErrCodeNotFound, http.StatusNotFound},
	{domain.ErrInvalidLevel, errors.ErrCodeInvalidInput, http.StatusBadRequest},
	{domain.ErrInvalidAmount, errors.ErrCodeInvalidInput, http.StatusBadRequest},
	{domain.ErrInvalidAddress, errors.ErrCodeInvalidInput, http.StatusBadRequest},
	{domain.ErrOffCurveAddress, errors.ErrCodeInvalidInput, http.StatusBadRequest},
	{domain.ErrInvalidStreamKey, errors.ErrCodeInvalidInput, http.StatusBadRequest},
	{domain.ErrInvalidSeeds, errors.ErrCodeInvalidInput, http.StatusBadRequest},
	{distributed.ErrLockTimeout, errors.ErrCodeServiceUnavailable, http.StatusServiceUnavailable},
	{context.DeadlineExceeded, errors.ErrCodeServiceUnavailable, http.StatusServiceUnavailable},
}

// toAppError maps a service failure onto the error the client sees. Unknown
// errors become INTERNAL_ERROR without leaking their text.
func toAppError(err error) *errors.AppError {
	if appErr := errors.GetAppError(err); appErr != nil {
		return appErr
	}
	for _, m := range domainErrors {
		if stderrors.Is(err, m.err) {
			return errors.WrapError(err, m.code, err.Error(), m.status).
				WithContext("kind", domain.Kind(err))
		}
	}
	return errors.WrapError(err, errors.ErrCodeInternal, "internal server error", http.StatusInternalServerError)
}

func abortWithError(c *gin.Context, err error) {
	c.Error(toAppError(err))
	c.Abort()
}
