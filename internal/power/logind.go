package power

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"syscall"

	"github.com/godbus/dbus/v5"
	"github.com/sirupsen/logrus"
)

var log = logrus.WithField("component", "power")

const (
	logindDest      = "org.freedesktop.login1"
	logindPath      = dbus.ObjectPath("/org/freedesktop/login1")
	logindManager   = "org.freedesktop.login1.Manager"
	prepareForSleep = logindManager + ".PrepareForSleep"
)

// Inhibitor holds a logind "sleep" block inhibitor. The lock is held for as
// long as the returned file descriptor stays open.
// It only holds off a sleep that logind has not started yet, so it is no use
// from a Suspend driven by PrepareForSleep.
type Inhibitor struct {
	Who string
	Why string

	mu sync.Mutex
	fd int
}

// NewInhibitor returns an Inhibitor that is not yet held.
func NewInhibitor(who, why string) *Inhibitor {
	return &Inhibitor{Who: who, Why: why, fd: -1}
}

// Acquire takes the inhibitor lock. Acquiring a held lock is a no-op.
func (i *Inhibitor) Acquire() error {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.fd >= 0 {
		return nil
	}

	conn, err := dbus.SystemBus()
	if err != nil {
		return fmt.Errorf("connect to system bus: %w", err)
	}

	obj := conn.Object(logindDest, logindPath)
	call := obj.Call(logindManager+".Inhibit", 0, "sleep", i.Who, i.Why, "block")
	if call.Err != nil {
		return fmt.Errorf("inhibit sleep: %w", call.Err)
	}

	var fd dbus.UnixFD
	if err := call.Store(&fd); err != nil {
		return fmt.Errorf("read inhibitor fd: %w", err)
	}
	i.fd = int(fd)
	return nil
}

// Release closes the inhibitor descriptor. Releasing an unheld lock is a no-op.
func (i *Inhibitor) Release() error {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.fd < 0 {
		return nil
	}
	err := syscall.Close(i.fd)
	i.fd = -1
	if err != nil {
		return fmt.Errorf("close inhibitor fd: %w", err)
	}
	return nil
}

// Held reports whether the inhibitor is currently held.
func (i *Inhibitor) Held() bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.fd >= 0
}

// SleepHandler receives suspend and resume notifications.
type SleepHandler interface {
	Suspend()
	Resume()
}

// WatchSleep subscribes to logind PrepareForSleep and forwards each signal to
// h until ctx is canceled.
func WatchSleep(ctx context.Context, h SleepHandler) error {
	conn, err := dbus.ConnectSystemBus()
	if err != nil {
		return fmt.Errorf("connect to system bus: %w", err)
	}
	defer conn.Close()

	if err := conn.AddMatchSignal(
		dbus.WithMatchObjectPath(logindPath),
		dbus.WithMatchInterface(logindManager),
		dbus.WithMatchMember("PrepareForSleep"),
	); err != nil {
		return fmt.Errorf("add PrepareForSleep match: %w", err)
	}

	ch := make(chan *dbus.Signal, 8)
	conn.Signal(ch)
	defer conn.RemoveSignal(ch)

	log.Info("watching logind PrepareForSleep")
	for {
		select {
		case <-ctx.Done():
			return nil
		case sig, ok := <-ch:
			if !ok {
				return errors.New("system bus signal channel closed")
			}
			handleSleepSignal(sig, h)
		}
	}
}

// handleSleepSignal dispatches one PrepareForSleep signal. It reports whether
// the signal was recognised.
func handleSleepSignal(sig *dbus.Signal, h SleepHandler) bool {
	if sig == nil || sig.Name != prepareForSleep || len(sig.Body) < 1 {
		return false
	}
	start, ok := sig.Body[0].(bool)
	if !ok {
		return false
	}
	if start {
		log.Debug("PrepareForSleep(true)")
		h.Suspend()
	} else {
		log.Debug("PrepareForSleep(false)")
		h.Resume()
	}
	return true
}
