package domain

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrice(t *testing.T) {
	v, err := Price(100, 10)
	require.NoError(t, err)
	assert.Equal(t, uint64(1000), v)

	_, err = Price(math.MaxUint64, 2)
	assert.ErrorIs(t, err, ErrArithmeticOverflow)

	v, err = Price(math.MaxUint64, 1)
	require.NoError(t, err)
	assert.Equal(t, uint64(math.MaxUint64), v)
}

func TestStreamRecord_Extended(t *testing.T) {
	s := &StreamRecord{Until: 1000, LastWithdrawn: 1000, Rate: 10}

	next, err := s.Extended(100)
	require.NoError(t, err)
	assert.Equal(t, uint64(1100), next.Until)
	assert.Equal(t, uint64(1000), s.Until, "receiver must not change")

	_, err = s.Extended(0)
	assert.ErrorIs(t, err, ErrInvalidAmount)

	_, err = (&StreamRecord{Until: math.MaxUint64 - 1}).Extended(2)
	assert.ErrorIs(t, err, ErrArithmeticOverflow)
}

func TestStreamRecord_ExtendedAfterExpiry(t *testing.T) {
	s := &StreamRecord{Until: 500, LastWithdrawn: 400, Rate: 1}

	next, err := s.Extended(50)
	require.NoError(t, err)
	assert.Equal(t, uint64(550), next.Until)
}

func TestStreamRecord_Shortened(t *testing.T) {
	s := &StreamRecord{Until: 1100, LastWithdrawn: 1000, Rate: 10}

	tests := []struct {
		name    string
		now     uint64
		amount  uint64
		want    uint64
		wantErr error
	}{
		{"within unearned", 1000, 50, 1050, nil},
		{"exactly unearned", 1040, 60, 1040, nil},
		{"exceeds unearned", 1060, 41, 0, ErrExcessiveCancellation},
		{"expired stream", 1200, 1, 0, ErrExcessiveCancellation},
		{"zero amount", 1000, 0, 0, ErrInvalidAmount},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next, err := s.Shortened(tt.now, tt.amount)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, next)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, next.Until)
		})
	}
	assert.Equal(t, uint64(1100), s.Until)
}

func TestStreamRecord_Accrual(t *testing.T) {
	s := &StreamRecord{Until: 1100, LastWithdrawn: 1000, Rate: 10}

	assert.Equal(t, uint64(0), s.Accrued(1000))
	assert.Equal(t, uint64(0), s.Accrued(900))
	assert.Equal(t, uint64(30), s.Accrued(1030))
	assert.Equal(t, uint64(100), s.Accrued(5000), "accrual stops at until")

	value, err := s.AccruedValue(1030, 10_000)
	require.NoError(t, err)
	assert.Equal(t, uint64(300), value)

	value, err = s.AccruedValue(1030, 120)
	require.NoError(t, err)
	assert.Equal(t, uint64(120), value, "bounded by holder balance")
}

func TestStreamRecord_Settled(t *testing.T) {
	s := &StreamRecord{Until: 1100, LastWithdrawn: 1000, Rate: 10}

	next, units := s.Settled(1040)
	assert.Equal(t, uint64(40), units)
	assert.Equal(t, uint64(1040), next.LastWithdrawn)

	again, units := next.Settled(1040)
	assert.Equal(t, uint64(0), units)
	assert.Equal(t, uint64(1040), again.LastWithdrawn)

	final, units := next.Settled(2000)
	assert.Equal(t, uint64(60), units)
	assert.Equal(t, uint64(1100), final.LastWithdrawn)
}
