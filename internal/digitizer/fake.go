package digitizer

import "sync"

// Fake is a test double that records enable/disable calls.
// Safe for concurrent use because the controller drives it from timer goroutines.
type Fake struct {
	mu sync.Mutex

	enabled      bool
	enableCalls  int
	disableCalls int

	// EnableError, if set, is returned by Enable (the state still changes).
	EnableError error

	// DisableError, if set, is returned by Disable (the state still changes).
	DisableError error
}

// NewFake creates a Fake in the given initial state.
func NewFake(enabled bool) *Fake {
	return &Fake{enabled: enabled}
}

// Enable marks the layer enabled.
func (f *Fake) Enable() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.enabled = true
	f.enableCalls++
	return f.EnableError
}

// Disable marks the layer disabled.
func (f *Fake) Disable() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.enabled = false
	f.disableCalls++
	return f.DisableError
}

// IsEnabled reports the current state.
func (f *Fake) IsEnabled() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.enabled
}

// Calls returns the number of Enable and Disable calls.
func (f *Fake) Calls() (enable, disable int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.enableCalls, f.disableCalls
}
