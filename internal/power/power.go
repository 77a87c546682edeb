// Package power provides wake-lock holders that keep the system out of deep
// sleep, and a logind watcher that reports suspend and resume.
package power

import "fmt"

// WakeLock is held while the touch digitizer is kept alive after suspend.
type WakeLock interface {
	Acquire() error
	Release() error
}

// Wake-lock kinds accepted by New.
const (
	KindSysfs  = "sysfs"
	KindLogind = "logind"
	KindNone   = "none"
)

// DefaultName identifies the lock to the kernel or to logind.
const DefaultName = "touchwake_wake"

// New returns the wake-lock implementation named by kind.
func New(kind, name string) (WakeLock, error) {
	if name == "" {
		name = DefaultName
	}
	switch kind {
	case KindSysfs:
		return NewSysfsWakeLock(name), nil
	case KindLogind:
		return NewInhibitor(name, "touch wake window"), nil
	case KindNone, "":
		return NopWakeLock{}, nil
	}
	return nil, fmt.Errorf("power: unknown wake lock kind %q", kind)
}

// NopWakeLock does nothing.
type NopWakeLock struct{}

func (NopWakeLock) Acquire() error { return nil }
func (NopWakeLock) Release() error { return nil }
