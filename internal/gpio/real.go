//go:build linux

package gpio

import (
	"errors"
	"fmt"

	"github.com/warthog618/go-gpiocdev"
)

// Button watches an active-low power button line for edges.
type Button struct {
	line *gpiocdev.Line
}

// WatchButton requests offset on chip as an active-low input with both edges
// enabled and forwards transitions to h. Events are delivered on the
// gpiocdev watcher goroutine until Close.
func WatchButton(chip string, offset int, h ButtonHandler) (*Button, error) {
	if chip == "" {
		chip = DefaultChip
	}
	f := &edgeFilter{h: h}
	line, err := gpiocdev.RequestLine(chip, offset,
		gpiocdev.AsInput,
		gpiocdev.AsActiveLow,
		gpiocdev.WithPullUp,
		gpiocdev.WithBothEdges,
		gpiocdev.WithEventHandler(func(evt gpiocdev.LineEvent) {
			f.edge(evt.Type == gpiocdev.LineEventRisingEdge)
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("request button %s:%d: %w", chip, offset, err)
	}

	// Seed the filter so a button held at startup does not report a release
	// without a press.
	if v, err := line.Value(); err == nil && v == 1 {
		f.mu.Lock()
		f.pressed = true
		f.mu.Unlock()
	}

	log.WithField("line", fmt.Sprintf("%s:%d", chip, offset)).Info("watching power button")
	return &Button{line: line}, nil
}

// Close stops edge delivery and releases the line.
func (b *Button) Close() error {
	if b.line == nil {
		return nil
	}
	return b.line.Close()
}

// NewLineSwitch requests offset on chip as an output driven high, so the
// digitizer is on while the daemon runs.
func NewLineSwitch(chip string, offset int, name string) (*LineSwitch, error) {
	if chip == "" {
		chip = DefaultChip
	}
	line, err := gpiocdev.RequestLine(chip, offset, gpiocdev.AsOutput(1))
	if err != nil {
		return nil, fmt.Errorf("request %s %s:%d: %w", name, chip, offset, err)
	}
	return NewLineSwitchFrom(&releasingLine{line}, name), nil
}

// releasingLine returns the line to a pulled-down input before closing so
// the pin is left in its boot default.
type releasingLine struct {
	*gpiocdev.Line
}

func (l *releasingLine) Close() error {
	var errs []error
	if err := l.Line.Reconfigure(gpiocdev.AsInput, gpiocdev.WithPullDown); err != nil {
		errs = append(errs, fmt.Errorf("reconfigure line: %w", err))
	}
	if err := l.Line.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close line: %w", err))
	}
	return errors.Join(errs...)
}
