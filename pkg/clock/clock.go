package clock

import (
	"sync/atomic"
	"time"
)

// System reads wall-clock time in unix seconds.
type System struct{}

func (System) Now() uint64 {
	return uint64(time.Now().Unix())
}

// Manual is a clock that only moves when told to. Safe for concurrent use.
type Manual struct {
	now atomic.Uint64
}

func NewManual(start uint64) *Manual {
	m := &Manual{}
	m.now.Store(start)
	return m
}

func (m *Manual) Now() uint64 {
	return m.now.Load()
}

func (m *Manual) Set(t uint64) {
	m.now.Store(t)
}

func (m *Manual) Advance(d uint64) uint64 {
	return m.now.Add(d)
}
