// Package gpio drives the power button and digitizer enable lines through the
// Linux GPIO character device.
// The fake implementation allows testing without hardware.
package gpio

import (
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
)

var log = logrus.WithField("component", "gpio")

// DefaultChip is used when no chip is configured.
const DefaultChip = "gpiochip0"

// ButtonHandler receives power-button transitions.
type ButtonHandler interface {
	PowerKeyPressed()
	PowerKeyReleased()
}

// Setter drives an output line. *gpiocdev.Line implements it.
type Setter interface {
	SetValue(value int) error
	Close() error
}

// edgeFilter turns raw edges into press/release calls, dropping repeats of
// the current level so contact bounce cannot produce a release without a
// press.
type edgeFilter struct {
	mu      sync.Mutex
	pressed bool
	h       ButtonHandler
}

func (f *edgeFilter) edge(pressed bool) {
	f.mu.Lock()
	if pressed == f.pressed {
		f.mu.Unlock()
		return
	}
	f.pressed = pressed
	f.mu.Unlock()

	if pressed {
		f.h.PowerKeyPressed()
	} else {
		f.h.PowerKeyReleased()
	}
}

// LineSwitch drives a digitizer enable line: high is on, low is off.
type LineSwitch struct {
	line Setter
	name string
}

// NewLineSwitchFrom wraps an already requested output line.
func NewLineSwitchFrom(line Setter, name string) *LineSwitch {
	return &LineSwitch{line: line, name: name}
}

// Enable drives the line high.
func (s *LineSwitch) Enable() error {
	if err := s.line.SetValue(1); err != nil {
		return fmt.Errorf("set %s high: %w", s.name, err)
	}
	return nil
}

// Disable drives the line low.
func (s *LineSwitch) Disable() error {
	if err := s.line.SetValue(0); err != nil {
		return fmt.Errorf("set %s low: %w", s.name, err)
	}
	return nil
}

// Close releases the line.
func (s *LineSwitch) Close() error {
	return s.line.Close()
}
