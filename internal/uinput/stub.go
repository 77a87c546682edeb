//go:build !linux

package uinput

import "errors"

// Device is not available on non-Linux platforms.
type Device struct{}

// Open returns an error on non-Linux platforms.
func Open(path, name, phys string) (*Device, error) {
	return nil, errors.New("uinput: not supported on this platform (requires Linux)")
}

// EmitPowerKey is not implemented on non-Linux platforms.
func (d *Device) EmitPowerKey(down bool) error {
	return errors.New("uinput: not supported")
}

// Close is not implemented on non-Linux platforms.
func (d *Device) Close() error {
	return nil
}
