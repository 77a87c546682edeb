package gpio

import "sync"

// FakeLine is a test double for an output line.
type FakeLine struct {
	mu     sync.Mutex
	values []int
	closed bool

	// SetError, if set, will be returned by SetValue.
	SetError error
}

// NewFakeLine creates a FakeLine with no recorded writes.
func NewFakeLine() *FakeLine {
	return &FakeLine{}
}

// SetValue records value.
func (f *FakeLine) SetValue(value int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.SetError != nil {
		return f.SetError
	}
	f.values = append(f.values, value)
	return nil
}

// Values returns every value written so far.
func (f *FakeLine) Values() []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]int, len(f.values))
	copy(out, f.values)
	return out
}

// Close marks the line as closed.
func (f *FakeLine) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

// Closed reports whether Close was called.
func (f *FakeLine) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// FakeButton feeds scripted edges through the same filter as a real button.
type FakeButton struct {
	f *edgeFilter
}

// NewFakeButton creates a released FakeButton delivering to h.
func NewFakeButton(h ButtonHandler) *FakeButton {
	return &FakeButton{f: &edgeFilter{h: h}}
}

// Edge delivers a raw edge; true is the button going down.
func (b *FakeButton) Edge(pressed bool) {
	b.f.edge(pressed)
}
