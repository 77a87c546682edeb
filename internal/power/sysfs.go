package power

import (
	"fmt"
	"os"
	"path/filepath"
)

// SysfsWakeLock holds an Android-style kernel wake lock through
// /sys/power/wake_lock and /sys/power/wake_unlock.
type SysfsWakeLock struct {
	Name string
	Dir  string
}

// NewSysfsWakeLock returns a wake lock named name under /sys/power.
func NewSysfsWakeLock(name string) *SysfsWakeLock {
	return &SysfsWakeLock{Name: name, Dir: "/sys/power"}
}

// Acquire writes the lock name to wake_lock.
func (l *SysfsWakeLock) Acquire() error {
	return l.write("wake_lock")
}

// Release writes the lock name to wake_unlock.
func (l *SysfsWakeLock) Release() error {
	return l.write("wake_unlock")
}

func (l *SysfsWakeLock) write(node string) error {
	path := filepath.Join(l.Dir, node)
	f, err := os.OpenFile(path, os.O_WRONLY, 0)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	if _, err := f.WriteString(l.Name); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
