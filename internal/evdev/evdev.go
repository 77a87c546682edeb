// Package evdev watches Linux input devices and turns touch-downs and
// power-key transitions into controller calls.
package evdev

import (
	"context"
	"fmt"

	"github.com/kenshaw/evdev"
	"github.com/sirupsen/logrus"
)

var log = logrus.WithField("component", "evdev")

// Event type and code numbers from linux/input-event-codes.h.
const (
	evSyn = 0x00
	evKey = 0x01
	evAbs = 0x03

	synReport = 0x00

	keyPower        = 116
	btnTouch        = 0x14a
	absMTTrackingID = 0x39
)

// Handler receives classified input. *touchwake.Controller implements it.
type Handler interface {
	Touch() bool
	PowerKeyPressed()
	PowerKeyReleased()
}

// Input is a single raw input event.
type Input struct {
	Type  uint16
	Code  uint16
	Value int32
}

// Action is what an input event means to the controller.
type Action int

const (
	ActionNone Action = iota
	ActionTouch
	ActionPowerDown
	ActionPowerUp
	ActionSync
)

func (a Action) String() string {
	switch a {
	case ActionTouch:
		return "touch"
	case ActionPowerDown:
		return "power-down"
	case ActionPowerUp:
		return "power-up"
	case ActionSync:
		return "sync"
	}
	return "none"
}

// Classify maps a raw event to an Action. Key auto-repeat (value 2) and
// contact lift-off are ActionNone.
func Classify(in Input) Action {
	switch in.Type {
	case evSyn:
		if in.Code == synReport {
			return ActionSync
		}
	case evKey:
		switch in.Code {
		case keyPower:
			switch in.Value {
			case 1:
				return ActionPowerDown
			case 0:
				return ActionPowerUp
			}
		case btnTouch:
			if in.Value == 1 {
				return ActionTouch
			}
		}
	case evAbs:
		if in.Code == absMTTrackingID && in.Value != -1 {
			return ActionTouch
		}
	}
	return ActionNone
}

// Dispatch feeds events to h until ctx is done or events is closed. Touches
// are coalesced so one report frame produces at most one Touch call; power-key
// transitions are delivered as soon as they arrive.
func Dispatch(ctx context.Context, events <-chan Input, h Handler) {
	touched := false
	for {
		select {
		case <-ctx.Done():
			return
		case in, ok := <-events:
			if !ok {
				return
			}
			switch Classify(in) {
			case ActionTouch:
				touched = true
			case ActionSync:
				if touched {
					touched = false
					if h.Touch() {
						log.Debug("touch started wake")
					}
				}
			case ActionPowerDown:
				h.PowerKeyPressed()
			case ActionPowerUp:
				h.PowerKeyReleased()
			}
		}
	}
}

// Watch opens the input device at path and dispatches its events to h. It
// returns nil when ctx is canceled and an error if the device cannot be
// opened or disappears.
func Watch(ctx context.Context, path string, h Handler) error {
	d, err := evdev.OpenFile(path)
	if err != nil {
		return fmt.Errorf("open input device %s: %w", path, err)
	}
	defer d.Close()

	log.WithFields(logrus.Fields{"path": path, "name": d.Name()}).Info("watching input device")

	pollCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	raw := d.Poll(pollCtx)
	events := make(chan Input)
	go func() {
		defer close(events)
		for {
			select {
			case <-pollCtx.Done():
				return
			case env := <-raw:
				if env == nil {
					return
				}
				in := Input{Type: uint16(env.Event.Type), Code: env.Event.Code, Value: env.Event.Value}
				select {
				case events <- in:
				case <-pollCtx.Done():
					return
				}
			}
		}
	}()

	Dispatch(pollCtx, events, h)
	if ctx.Err() != nil {
		return nil
	}
	return fmt.Errorf("input device %s closed", path)
}
