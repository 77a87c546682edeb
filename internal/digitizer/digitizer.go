// Package digitizer switches touch sensing layers on and off.
// The sysfs implementation writes an enable attribute exposed by the
// touchscreen driver. The fake implementation allows testing without hardware.
package digitizer

import (
	"fmt"
	"os"
)

// Sysfs drives a touch layer through a writable sysfs attribute such as
// /sys/class/input/input2/enabled.
type Sysfs struct {
	Path string
	On   string
	Off  string
}

// NewSysfs returns a Sysfs switch writing "1" and "0" to path.
func NewSysfs(path string) *Sysfs {
	return &Sysfs{Path: path, On: "1", Off: "0"}
}

// Enable writes the On value.
func (s *Sysfs) Enable() error {
	return s.write(s.On)
}

// Disable writes the Off value.
func (s *Sysfs) Disable() error {
	return s.write(s.Off)
}

func (s *Sysfs) write(v string) error {
	// sysfs attributes must be opened without O_CREATE/O_TRUNC.
	f, err := os.OpenFile(s.Path, os.O_WRONLY, 0)
	if err != nil {
		return fmt.Errorf("open %s: %w", s.Path, err)
	}
	if _, err := f.WriteString(v + "\n"); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", s.Path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", s.Path, err)
	}
	return nil
}

// None stands in for devices without a controllable layer (for example no
// pen digitizer).
type None struct{}

func (None) Enable() error  { return nil }
func (None) Disable() error { return nil }
