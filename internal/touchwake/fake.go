package touchwake

import (
	"sync"
	"time"
)

// FakeScheduler records scheduled callbacks and runs them only when the test
// calls Fire or Advance.
type FakeScheduler struct {
	mu      sync.Mutex
	now     time.Duration
	pending []*FakeHandle
}

// FakeHandle is a callback registered with a FakeScheduler.
type FakeHandle struct {
	Delay    time.Duration
	At       time.Duration
	fn       func()
	mu       sync.Mutex
	canceled bool
	fired    bool
}

// NewFakeScheduler creates an empty FakeScheduler.
func NewFakeScheduler() *FakeScheduler {
	return &FakeScheduler{}
}

// Schedule records fn to run d after the scheduler's current time.
func (s *FakeScheduler) Schedule(d time.Duration, fn func()) Handle {
	s.mu.Lock()
	defer s.mu.Unlock()
	h := &FakeHandle{Delay: d, At: s.now + d, fn: fn}
	s.pending = append(s.pending, h)
	return h
}

// Cancel marks the handle canceled. A fired handle is unaffected.
func (h *FakeHandle) Cancel() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.fired {
		h.canceled = true
	}
}

// Canceled reports whether Cancel ran before the callback fired.
func (h *FakeHandle) Canceled() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.canceled
}

// Fired reports whether the callback ran.
func (h *FakeHandle) Fired() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.fired
}

// Fire runs the callback on the calling goroutine unless it was canceled or
// already fired. It reports whether the callback ran.
func (h *FakeHandle) Fire() bool {
	h.mu.Lock()
	if h.canceled || h.fired {
		h.mu.Unlock()
		return false
	}
	h.fired = true
	h.mu.Unlock()
	h.fn()
	return true
}

// Handles returns every handle scheduled so far, in order.
func (s *FakeScheduler) Handles() []*FakeHandle {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*FakeHandle, len(s.pending))
	copy(out, s.pending)
	return out
}

// Advance moves the scheduler clock forward by d and fires every live
// handle that has come due. It returns the number of callbacks run.
func (s *FakeScheduler) Advance(d time.Duration) int {
	s.mu.Lock()
	s.now += d
	now := s.now
	handles := make([]*FakeHandle, len(s.pending))
	copy(handles, s.pending)
	s.mu.Unlock()

	n := 0
	for _, h := range handles {
		if h.At <= now && h.Fire() {
			n++
		}
	}
	return n
}
