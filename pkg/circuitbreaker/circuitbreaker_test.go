package circuitbreaker

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var errFail = errors.New("fail")

func newTestBreaker() (*CircuitBreaker, *time.Time) {
	now := time.Unix(0, 0)
	cb := New(Config{FailureThreshold: 2, SuccessThreshold: 1, Timeout: time.Second})
	cb.now = func() time.Time { return now }
	return cb, &now
}

func TestCircuitBreaker_OpensAfterThreshold(t *testing.T) {
	cb, _ := newTestBreaker()

	assert.ErrorIs(t, cb.Execute(func() error { return errFail }), errFail)
	assert.Equal(t, StateClosed, cb.State())
	assert.ErrorIs(t, cb.Execute(func() error { return errFail }), errFail)
	assert.Equal(t, StateOpen, cb.State())

	called := false
	err := cb.Execute(func() error { called = true; return nil })
	assert.ErrorIs(t, err, ErrOpen)
	assert.False(t, called)
}

func TestCircuitBreaker_HalfOpenRecovery(t *testing.T) {
	cb, now := newTestBreaker()
	var transitions []string
	cb.OnStateChange(func(from, to State) {
		transitions = append(transitions, from.String()+"->"+to.String())
	})

	cb.Execute(func() error { return errFail })
	cb.Execute(func() error { return errFail })

	*now = now.Add(time.Second)
	assert.NoError(t, cb.Execute(func() error { return nil }))
	assert.Equal(t, StateClosed, cb.State())
	assert.Equal(t, []string{"closed->open", "open->half-open", "half-open->closed"}, transitions)
}

func TestCircuitBreaker_HalfOpenFailureReopens(t *testing.T) {
	cb, now := newTestBreaker()
	cb.Execute(func() error { return errFail })
	cb.Execute(func() error { return errFail })

	*now = now.Add(2 * time.Second)
	assert.ErrorIs(t, cb.Execute(func() error { return errFail }), errFail)
	assert.Equal(t, StateOpen, cb.State())
	assert.ErrorIs(t, cb.Execute(func() error { return nil }), ErrOpen)
}

func TestCircuitBreaker_SuccessResetsFailures(t *testing.T) {
	cb, _ := newTestBreaker()
	cb.Execute(func() error { return errFail })
	cb.Execute(func() error { return nil })
	cb.Execute(func() error { return errFail })
	assert.Equal(t, StateClosed, cb.State())

	cb.Reset()
	assert.Equal(t, StateClosed, cb.State())
	assert.Equal(t, "unknown", State(9).String())
}
