package power

import (
	"errors"
	"sync"
)

// ErrDoubleRelease is returned by FakeWakeLock.Release when the lock is not held.
var ErrDoubleRelease = errors.New("power: release of unheld wake lock")

// FakeWakeLock records acquire and release calls.
type FakeWakeLock struct {
	mu       sync.Mutex
	held     bool
	acquires int
	releases int

	// AcquireError, if set, is returned by Acquire and the lock is not taken.
	AcquireError error
}

// NewFakeWakeLock creates an unheld FakeWakeLock.
func NewFakeWakeLock() *FakeWakeLock {
	return &FakeWakeLock{}
}

// Acquire takes the lock.
func (f *FakeWakeLock) Acquire() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.AcquireError != nil {
		return f.AcquireError
	}
	f.held = true
	f.acquires++
	return nil
}

// Release drops the lock. Releasing an unheld lock is counted and reported.
func (f *FakeWakeLock) Release() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.releases++
	if !f.held {
		return ErrDoubleRelease
	}
	f.held = false
	return nil
}

// Held reports whether the lock is held.
func (f *FakeWakeLock) Held() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.held
}

// Counts returns the number of successful acquires and all releases.
func (f *FakeWakeLock) Counts() (acquires, releases int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.acquires, f.releases
}
