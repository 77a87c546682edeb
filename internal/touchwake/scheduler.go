package touchwake

import (
	"sync"
	"time"
)

// TimerScheduler schedules callbacks with time.AfterFunc.
type TimerScheduler struct{}

// NewTimerScheduler returns a Scheduler backed by the runtime timers.
func NewTimerScheduler() *TimerScheduler {
	return &TimerScheduler{}
}

// Schedule runs fn on its own goroutine after d.
func (s *TimerScheduler) Schedule(d time.Duration, fn func()) Handle {
	h := &timerHandle{done: make(chan struct{})}
	h.timer = time.AfterFunc(d, func() {
		defer close(h.done)
		fn()
	})
	return h
}

type timerHandle struct {
	timer   *time.Timer
	done    chan struct{}
	once    sync.Once
	stopped bool
}

// Cancel stops the timer, or waits for the callback if it already started.
// Must not be called from inside the callback.
func (h *timerHandle) Cancel() {
	h.once.Do(func() { h.stopped = h.timer.Stop() })
	if h.stopped {
		return
	}
	<-h.done
}
