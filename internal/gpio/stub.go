//go:build !linux

package gpio

import "errors"

var errUnsupported = errors.New("gpio: not supported on this platform (requires Linux)")

// Button is not available on non-Linux platforms.
type Button struct{}

// WatchButton returns an error on non-Linux platforms.
func WatchButton(chip string, offset int, h ButtonHandler) (*Button, error) {
	return nil, errUnsupported
}

// Close is a no-op on non-Linux platforms.
func (b *Button) Close() error {
	return nil
}

// NewLineSwitch returns an error on non-Linux platforms.
func NewLineSwitch(chip string, offset int, name string) (*LineSwitch, error) {
	return nil, errUnsupported
}
