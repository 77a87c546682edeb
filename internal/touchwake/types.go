// Package touchwake contains the suspend/resume/touch/power-key state machine
// that keeps the touch digitizer alive for a while after the screen blanks on
// its own and turns the next touch into a synthetic power-key press.
//
// Hardware is reached only through the small capability interfaces below, so
// the package has no GPIO, evdev, uinput or D-Bus dependencies. Time is
// injectable through Config.Now, Config.Sleep and Config.Scheduler.
package touchwake

import "time"

// Version is reported by the read-only "version" attribute.
const Version = "1.0"

// Timing constants.
const (
	// DefaultDelay is the touch-off delay used until the delay setting is written.
	DefaultDelay = 5000 * time.Millisecond

	// LongPress is the press duration above which a power-key release is not
	// treated as a manual screen-off.
	LongPress = 500 * time.Millisecond

	// PressDelay separates key-down from key-up, and key-up from the cooldown.
	PressDelay = 60 * time.Millisecond

	// PressCooldown keeps the wake slot held after the synthetic press so a
	// second touch cannot fire another press before resume arrives.
	PressCooldown = 1000 * time.Millisecond
)

// Digitizer switches a touch sensing layer on and off.
type Digitizer interface {
	Enable() error
	Disable() error
}

// WakeLock prevents the system from entering a deeper power-saving state
// while held.
type WakeLock interface {
	Acquire() error
	Release() error
}

// Emitter injects power-key events into the input subsystem. Each call must
// also emit the matching sync report.
type Emitter interface {
	EmitPowerKey(down bool) error
}

// Scheduler runs a callback after a delay on a background goroutine.
type Scheduler interface {
	Schedule(d time.Duration, fn func()) Handle
}

// Handle is a pending scheduled callback.
type Handle interface {
	// Cancel prevents the callback from running. If the callback is already
	// running, Cancel waits for it to return. Cancel after fire is a no-op.
	Cancel()
}

// Mode is the behavioural state derived from the controller flags.
type Mode string

const (
	ModeAwake                 Mode = "AWAKE"
	ModeSuspendedWaitingTouch Mode = "SUSPENDED_WAITING_TOUCH"
	ModeSuspendedDigitizerOff Mode = "SUSPENDED_DIGITIZER_OFF"
	ModeWakeTriggering        Mode = "WAKE_TRIGGERING"
)

// EventType identifies a controller transition.
type EventType string

const (
	EventSuspend         EventType = "SUSPEND"
	EventResume          EventType = "RESUME"
	EventTouchOff        EventType = "TOUCH_OFF"
	EventPowerKeyPress   EventType = "POWERKEY_PRESS"
	EventPowerKeyRelease EventType = "POWERKEY_RELEASE"
	EventWake            EventType = "WAKE"
	EventWakeDone        EventType = "WAKE_DONE"
	EventSettings        EventType = "SETTINGS"
)

// Event is emitted to the observer after every transition.
type Event struct {
	Time  time.Time
	Type  EventType
	State State
}

// Counts tracks transitions since startup.
type Counts struct {
	Suspends       int
	Resumes        int
	TouchOffs      int
	Wakes          int
	DroppedTouches int
}

// State is a point-in-time copy of the controller state.
type State struct {
	Enabled       bool
	TouchDisabled bool
	Suspended     bool
	TimedOut      bool
	KeepAwake     bool
	Delay         time.Duration
	WakeInFlight  bool
	WakeLockHeld  bool
	TimerPending  bool
	Counts        Counts
}

// Mode derives the behavioural mode from the flags.
func (s State) Mode() Mode {
	switch {
	case s.WakeInFlight:
		return ModeWakeTriggering
	case !s.Suspended:
		return ModeAwake
	case s.KeepAwake:
		return ModeSuspendedWaitingTouch
	default:
		return ModeSuspendedDigitizerOff
	}
}
