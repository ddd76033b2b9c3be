package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKind(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, "ok"},
		{ErrDuplicateGroup, "duplicate_group"},
		{fmt.Errorf("fund: %w", ErrOffCurveAddress), "off_curve_address"},
		{fmt.Errorf("pay: %w", ErrInsufficientFunds), "insufficient_funds"},
		{fmt.Errorf("%w: name too long", ErrInvalidStreamKey), "invalid_stream_key"},
		{errors.New("redis: connection refused"), "internal"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, Kind(tt.err))
		})
	}
}
