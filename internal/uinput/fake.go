package uinput

import "sync"

// FakeEmitter records emitted power-key transitions.
type FakeEmitter struct {
	mu     sync.Mutex
	events []bool

	// EmitError, if set, is returned by EmitPowerKey (the event is still recorded).
	EmitError error
}

// NewFakeEmitter creates an empty FakeEmitter.
func NewFakeEmitter() *FakeEmitter {
	return &FakeEmitter{}
}

// EmitPowerKey records the transition.
func (f *FakeEmitter) EmitPowerKey(down bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, down)
	return f.EmitError
}

// Events returns the recorded transitions, true for key-down.
func (f *FakeEmitter) Events() []bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]bool, len(f.events))
	copy(out, f.events)
	return out
}

// Presses returns the number of complete down/up pairs recorded.
func (f *FakeEmitter) Presses() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for i := 0; i+1 < len(f.events); i++ {
		if f.events[i] && !f.events[i+1] {
			n++
		}
	}
	return n
}
