package domain

import "math/bits"

// Price values units of stream time at rate.
func Price(units, rate uint64) (uint64, error) {
	hi, lo := bits.Mul64(units, rate)
	if hi != 0 {
		return 0, ErrArithmeticOverflow
	}
	return lo, nil
}

func CheckedAdd(a, b uint64) (uint64, error) {
	sum, carry := bits.Add64(a, b, 0)
	if carry != 0 {
		return 0, ErrArithmeticOverflow
	}
	return sum, nil
}

// Unearned is the funded time not yet elapsed at now.
func (s *StreamRecord) Unearned(now uint64) uint64 {
	if s.Until <= now {
		return 0
	}
	return s.Until - now
}

// Accrued is the elapsed funded time since the last withdrawal.
func (s *StreamRecord) Accrued(now uint64) uint64 {
	end := min(now, s.Until)
	if end <= s.LastWithdrawn {
		return 0
	}
	return end - s.LastWithdrawn
}

// Extended returns a copy with until advanced by amount. Extension is additive
// even when the stream has already expired.
func (s *StreamRecord) Extended(amount uint64) (*StreamRecord, error) {
	if amount == 0 {
		return nil, ErrInvalidAmount
	}
	until, err := CheckedAdd(s.Until, amount)
	if err != nil {
		return nil, err
	}
	next := *s
	next.Until = until
	return &next, nil
}

// Shortened returns a copy with until pulled back by amount. Only unearned
// time can be removed.
func (s *StreamRecord) Shortened(now, amount uint64) (*StreamRecord, error) {
	if amount == 0 {
		return nil, ErrInvalidAmount
	}
	if amount > s.Unearned(now) {
		return nil, ErrExcessiveCancellation
	}
	next := *s
	next.Until = s.Until - amount
	return &next, nil
}

// Settled returns a copy with the withdrawal marker moved to min(now, until)
// and the number of time units that were accrued.
func (s *StreamRecord) Settled(now uint64) (*StreamRecord, uint64) {
	units := s.Accrued(now)
	next := *s
	if units > 0 {
		next.LastWithdrawn = min(now, s.Until)
	}
	return &next, units
}

// AccruedValue is the value withdrawable at now, capped by what the holder
// actually has.
func (s *StreamRecord) AccruedValue(now, holderBalance uint64) (uint64, error) {
	value, err := Price(s.Accrued(now), s.Rate)
	if err != nil {
		return 0, err
	}
	return min(value, holderBalance), nil
}
