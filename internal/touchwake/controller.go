package touchwake

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
)

var log = logrus.WithField("component", "touchwake")

// Config wires a Controller to its collaborators. Nil collaborators are
// replaced by no-ops; nil Now, Sleep and Scheduler use the wall clock.
type Config struct {
	Digitizer Digitizer
	Pen       Digitizer
	WakeLock  WakeLock
	Emitter   Emitter
	Scheduler Scheduler

	Now   func() time.Time
	Sleep func(time.Duration)

	// Enabled is the initial value of the enabled setting.
	Enabled bool
	// Delay is the initial touch-off delay. Zero keeps the digitizer on for
	// the whole suspend; pass DefaultDelay for the usual behaviour.
	Delay time.Duration

	// OnEvent is called after every transition, outside the state lock.
	OnEvent func(Event)
}

// Controller is the touch-wake state machine. All methods are safe for
// concurrent use.
//
// suspended, enabled and keepAwake are written only with mu held but are
// atomics so Touch and the query methods never wait on the state lock.
type Controller struct {
	digitizer Digitizer
	pen       Digitizer
	wakeLock  WakeLock
	emitter   Emitter
	scheduler Scheduler
	now       func() time.Time
	sleep     func(time.Duration)
	onEvent   func(Event)

	enabled   atomic.Bool
	suspended atomic.Bool
	keepAwake atomic.Bool

	// wakeSlot is held from the touch that triggers a synthetic press until
	// the press sequence and its cooldown have finished.
	wakeSlot atomic.Bool
	wakes    atomic.Int64
	dropped  atomic.Int64
	wakeWG   sync.WaitGroup

	mu            sync.Mutex
	touchDisabled bool
	timedOut      bool
	delay         time.Duration
	lastPress     time.Time
	wakeLockHeld  bool
	touchoff      Handle
	touchoffGen   uint64
	suspends      int
	resumes       int
	touchOffs     int
}

// NewController creates a Controller in the awake state.
func NewController(cfg Config) *Controller {
	c := &Controller{
		digitizer: cfg.Digitizer,
		pen:       cfg.Pen,
		wakeLock:  cfg.WakeLock,
		emitter:   cfg.Emitter,
		scheduler: cfg.Scheduler,
		now:       cfg.Now,
		sleep:     cfg.Sleep,
		onEvent:   cfg.OnEvent,
		timedOut:  true,
		delay:     cfg.Delay,
	}
	if c.digitizer == nil {
		c.digitizer = nopDigitizer{}
	}
	if c.pen == nil {
		c.pen = nopDigitizer{}
	}
	if c.wakeLock == nil {
		c.wakeLock = nopWakeLock{}
	}
	if c.emitter == nil {
		c.emitter = nopEmitter{}
	}
	if c.scheduler == nil {
		c.scheduler = NewTimerScheduler()
	}
	if c.now == nil {
		c.now = time.Now
	}
	if c.sleep == nil {
		c.sleep = time.Sleep
	}
	if c.delay < 0 {
		c.delay = 0
	}
	c.enabled.Store(cfg.Enabled)
	c.lastPress = c.now()
	return c
}

// Suspend handles the platform entering suspend (screen off).
func (c *Controller) Suspend() {
	c.mu.Lock()
	stale := c.detachTouchoffLocked()

	switch {
	case !c.enabled.Load():
		log.Debug("suspend: touchwake disabled, disabling touch immediately")
		c.keepAwake.Store(false)
		c.disableTouchLocked()
	case !c.timedOut:
		log.Debug("suspend: screen turned off with the power key, disabling touch immediately")
		c.keepAwake.Store(false)
		c.disableTouchLocked()
	default:
		c.keepAwake.Store(true)
		if c.touchDisabled {
			c.enableTouchLocked()
		} else {
			// The pen layer may have been suspended on its own.
			c.enableLayer(c.pen, "pen")
		}
		c.acquireWakeLockLocked()
		if c.delay > 0 {
			log.WithField("delay", c.delay).Debug("suspend: keeping touch enabled until delay expires")
			gen := c.touchoffGen
			c.touchoff = c.scheduler.Schedule(c.delay, func() { c.touchOff(gen) })
		} else {
			log.Debug("suspend: keeping touch enabled indefinitely")
		}
	}

	c.suspended.Store(true)
	c.suspends++
	ev := c.eventLocked(EventSuspend)
	c.mu.Unlock()

	if stale != nil {
		stale.Cancel()
	}
	c.notify(ev)
}

// Resume handles the platform leaving suspend. It returns only after any
// in-flight touch-off callback has finished, so a late touch-off can never
// disable the digitizer after Resume re-enabled it.
func (c *Controller) Resume() {
	c.mu.Lock()
	pending := c.detachTouchoffLocked()
	c.releaseWakeLockLocked()
	if c.touchDisabled {
		c.enableTouchLocked()
	}
	c.keepAwake.Store(false)
	c.timedOut = true
	c.suspended.Store(false)
	c.resumes++
	ev := c.eventLocked(EventResume)
	c.mu.Unlock()

	log.Debug("resume")
	if pending != nil {
		pending.Cancel()
	}
	c.notify(ev)
}

// touchOff is the delayed callback scheduled by Suspend. gen identifies the
// suspend cycle that scheduled it; a callback from an earlier cycle is a no-op.
func (c *Controller) touchOff(gen uint64) {
	c.mu.Lock()
	if gen != c.touchoffGen || c.touchoff == nil || !c.suspended.Load() {
		c.mu.Unlock()
		return
	}
	c.touchoff = nil
	c.keepAwake.Store(false)
	c.disableTouchLocked()
	c.releaseWakeLockLocked()
	c.touchOffs++
	ev := c.eventLocked(EventTouchOff)
	c.mu.Unlock()

	log.Debug("touch-off delay expired, touch disabled")
	c.notify(ev)
}

// PowerKeyPressed records a physical power-key press. Until the release
// proves otherwise the press is assumed to turn the screen off, so the next
// suspend disables touch at once.
func (c *Controller) PowerKeyPressed() {
	c.mu.Lock()
	c.lastPress = c.now()
	c.timedOut = false
	ev := c.eventLocked(EventPowerKeyPress)
	c.mu.Unlock()

	log.Debug("powerkey pressed")
	c.notify(ev)
}

// PowerKeyReleased classifies the press that just ended. A long press, or any
// press while suspended (a hardware wake), restores normal suspend behaviour.
func (c *Controller) PowerKeyReleased() {
	c.mu.Lock()
	held := c.now().Sub(c.lastPress)
	if held > LongPress || c.suspended.Load() {
		c.timedOut = true
		log.WithField("held", held).Debug("powerkey released: device being turned on or long press")
	} else {
		log.WithField("held", held).Debug("powerkey released: device being turned off")
	}
	ev := c.eventLocked(EventPowerKeyRelease)
	c.mu.Unlock()

	c.notify(ev)
}

// Touch reports a touch-down. While suspended with the feature enabled, the
// first touch starts a synthetic power-key press on a background goroutine;
// touches arriving while that press is in flight are dropped. Touch never
// blocks and reports whether it started a wake.
func (c *Controller) Touch() bool {
	if !c.suspended.Load() || !c.enabled.Load() {
		return false
	}
	if !c.wakeSlot.CompareAndSwap(false, true) {
		c.dropped.Add(1)
		return false
	}
	c.wakeWG.Add(1)
	go c.pressPowerKey()
	return true
}

func (c *Controller) pressPowerKey() {
	defer c.wakeWG.Done()

	// A resume between Touch and here means the screen is already on; a
	// press now would turn it off again.
	if !c.suspended.Load() {
		log.Debug("touch detected after resume, skipping powerkey press")
		c.wakeSlot.Store(false)
		return
	}
	c.wakes.Add(1)

	log.Debug("touch detected, simulating powerkey press")
	c.notify(c.event(EventWake))

	if err := c.emitter.EmitPowerKey(true); err != nil {
		log.WithError(err).Warn("emit powerkey down")
	}
	c.sleep(PressDelay)
	if err := c.emitter.EmitPowerKey(false); err != nil {
		log.WithError(err).Warn("emit powerkey up")
	}
	c.sleep(PressDelay)
	c.sleep(PressCooldown)

	c.wakeSlot.Store(false)
	c.notify(c.event(EventWakeDone))
}

// IsDeviceSuspended reports whether the device is in suspend.
func (c *Controller) IsDeviceSuspended() bool {
	return c.suspended.Load()
}

// IsWakePending reports whether the digitizer is being kept on after suspend
// waiting for a wake touch.
func (c *Controller) IsWakePending() bool {
	return c.keepAwake.Load()
}

// Enabled returns the enabled setting.
func (c *Controller) Enabled() bool {
	return c.enabled.Load()
}

// SetEnabled changes the enabled setting. Any write also clears keep-awake.
func (c *Controller) SetEnabled(enabled bool) {
	c.mu.Lock()
	c.keepAwake.Store(false)
	c.enabled.Store(enabled)
	ev := c.eventLocked(EventSettings)
	c.mu.Unlock()

	log.WithField("enabled", enabled).Info("touchwake setting changed")
	c.notify(ev)
}

// Delay returns the touch-off delay. Zero means indefinite.
func (c *Controller) Delay() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.delay
}

// SetDelay changes the touch-off delay used by the next suspend. Negative
// values are ignored.
func (c *Controller) SetDelay(d time.Duration) {
	if d < 0 {
		return
	}
	c.mu.Lock()
	c.delay = d
	ev := c.eventLocked(EventSettings)
	c.mu.Unlock()

	log.WithField("delay", d).Info("touchwake delay changed")
	c.notify(ev)
}

// TimedOut reports whether the next suspend keeps touch enabled, which is
// the case unless a short power-key press preceded it.
func (c *Controller) TimedOut() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.timedOut
}

// State returns a snapshot of the controller.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stateLocked()
}

// Close stops a pending touch-off, waits for an in-flight synthetic press
// and drops the wake-lock. The controller should not be used afterwards.
func (c *Controller) Close() {
	c.mu.Lock()
	pending := c.detachTouchoffLocked()
	c.releaseWakeLockLocked()
	c.mu.Unlock()

	if pending != nil {
		pending.Cancel()
	}
	c.wakeWG.Wait()
}

// detachTouchoffLocked invalidates the scheduled touch-off, if any, and
// returns its handle so the caller can cancel it after releasing mu.
func (c *Controller) detachTouchoffLocked() Handle {
	h := c.touchoff
	c.touchoff = nil
	c.touchoffGen++
	return h
}

func (c *Controller) enableTouchLocked() {
	log.Debug("enable touch controls")
	c.enableLayer(c.digitizer, "digitizer")
	c.enableLayer(c.pen, "pen")
	c.touchDisabled = false
}

func (c *Controller) disableTouchLocked() {
	log.Debug("disable touch controls")
	if err := c.digitizer.Disable(); err != nil {
		log.WithError(err).Warn("disable digitizer")
	}
	if err := c.pen.Disable(); err != nil {
		log.WithError(err).Warn("disable pen digitizer")
	}
	c.touchDisabled = true
}

func (c *Controller) enableLayer(d Digitizer, name string) {
	if err := d.Enable(); err != nil {
		log.WithError(err).Warnf("enable %s", name)
	}
}

func (c *Controller) acquireWakeLockLocked() {
	if c.wakeLockHeld {
		return
	}
	if err := c.wakeLock.Acquire(); err != nil {
		log.WithError(err).Warn("acquire wake lock")
		return
	}
	c.wakeLockHeld = true
}

func (c *Controller) releaseWakeLockLocked() {
	if !c.wakeLockHeld {
		return
	}
	if err := c.wakeLock.Release(); err != nil {
		log.WithError(err).Warn("release wake lock")
	}
	c.wakeLockHeld = false
}

func (c *Controller) stateLocked() State {
	return State{
		Enabled:       c.enabled.Load(),
		TouchDisabled: c.touchDisabled,
		Suspended:     c.suspended.Load(),
		TimedOut:      c.timedOut,
		KeepAwake:     c.keepAwake.Load(),
		Delay:         c.delay,
		WakeInFlight:  c.wakeSlot.Load(),
		WakeLockHeld:  c.wakeLockHeld,
		TimerPending:  c.touchoff != nil,
		Counts: Counts{
			Suspends:       c.suspends,
			Resumes:        c.resumes,
			TouchOffs:      c.touchOffs,
			Wakes:          int(c.wakes.Load()),
			DroppedTouches: int(c.dropped.Load()),
		},
	}
}

func (c *Controller) eventLocked(t EventType) Event {
	return Event{Time: c.now(), Type: t, State: c.stateLocked()}
}

func (c *Controller) event(t EventType) Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.eventLocked(t)
}

func (c *Controller) notify(ev Event) {
	if c.onEvent != nil {
		c.onEvent(ev)
	}
}

type nopDigitizer struct{}

func (nopDigitizer) Enable() error  { return nil }
func (nopDigitizer) Disable() error { return nil }

type nopWakeLock struct{}

func (nopWakeLock) Acquire() error { return nil }
func (nopWakeLock) Release() error { return nil }

type nopEmitter struct{}

func (nopEmitter) EmitPowerKey(bool) error { return nil }
