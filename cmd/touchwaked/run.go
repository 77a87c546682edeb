package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/asaskevich/EventBus"
	"github.com/sirupsen/logrus"
	"github.com/sweeney/touchwake/internal/config"
	"github.com/sweeney/touchwake/internal/digitizer"
	"github.com/sweeney/touchwake/internal/evdev"
	"github.com/sweeney/touchwake/internal/gpio"
	"github.com/sweeney/touchwake/internal/mqtt"
	"github.com/sweeney/touchwake/internal/power"
	"github.com/sweeney/touchwake/internal/status"
	"github.com/sweeney/touchwake/internal/touchwake"
	"github.com/sweeney/touchwake/internal/uinput"
	"github.com/sweeney/touchwake/internal/web"
)

// topicEvent carries touchwake.Event values on the internal bus.
const topicEvent = "touchwake:event"

// eventQueueSize bounds the transitions waiting for MQTT and websocket
// delivery.
const eventQueueSize = 64

func run(cfg *config.Config) error {
	var closers []io.Closer
	defer func() {
		for i := len(closers) - 1; i >= 0; i-- {
			if err := closers[i].Close(); err != nil {
				log.WithError(err).Warn("close")
			}
		}
	}()

	// Initialize hardware
	touch, pen, err := openDigitizers(cfg.Digitizer, &closers)
	if err != nil {
		return fmt.Errorf("init digitizer: %w", err)
	}
	wakeLock, err := power.New(cfg.WakeLock.Kind, cfg.WakeLock.Name)
	if err != nil {
		return fmt.Errorf("init wake lock: %w", err)
	}
	emitter, err := uinput.Open(uinput.DefaultPath, uinput.DefaultName, uinput.DefaultPhys)
	if err != nil {
		return fmt.Errorf("init uinput: %w", err)
	}
	closers = append(closers, emitter)

	// Initialize status tracker (before STARTUP so snapshot is available)
	tracker := status.NewTracker(time.Now(), status.Config{
		HeartbeatMs:    cfg.Heartbeat.Milliseconds(),
		Broker:         cfg.MQTT.Broker,
		HTTPAddr:       cfg.HTTP,
		TouchDevice:    cfg.TouchDevice,
		PowerKeyDevice: cfg.PowerKeyDevice,
		Digitizer:      cfg.Digitizer.Kind,
		WakeLock:       cfg.WakeLock.Kind,
		SuspendSource:  cfg.SuspendSource,
	})

	bus := EventBus.New()
	ctrl := touchwake.NewController(touchwake.Config{
		Digitizer: touch,
		Pen:       pen,
		WakeLock:  wakeLock,
		Emitter:   emitter,
		Enabled:   cfg.Enabled,
		Delay:     cfg.Delay(),
		OnEvent:   func(ev touchwake.Event) { bus.Publish(topicEvent, ev) },
	})
	tracker.SetState(ctrl.State())

	// Initialize MQTT
	var publisher interface {
		mqtt.Publisher
		mqtt.ConnectionStatus
	} = mqtt.Discard{}
	if cfg.MQTT.Broker != "" {
		p, err := mqtt.NewRealPublisher(mqtt.Config{
			Broker:   cfg.MQTT.Broker,
			ClientID: cfg.MQTT.ClientID,
			Prefix:   cfg.MQTT.TopicPrefix,
		}, ctrl)
		if err != nil {
			return fmt.Errorf("init mqtt: %w", err)
		}
		publisher = p
	}
	defer publisher.Close()

	// Start HTTP status server
	var hub *web.Hub
	if cfg.HTTP != "" {
		srv := web.New(cfg.HTTP, tracker, ctrl)
		hub = srv.Hub()
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.WithError(err).Error("http server")
			}
		}()
		defer srv.Shutdown(context.Background())
		log.WithField("addr", cfg.HTTP).Info("http status server listening")
	}

	queue := newEventQueue(eventQueueSize)
	go queue.run(deliver(publisher, hub))
	if err := subscribe(bus, tracker, queue); err != nil {
		return fmt.Errorf("subscribe event bus: %w", err)
	}

	// Stop the sources and drain controller events before the publisher,
	// server and hardware are closed.
	ctx, cancel := context.WithCancel(context.Background())
	defer func() {
		cancel()
		ctrl.Close()
		queue.close()
	}()

	// Publish startup event with full status snapshot
	tracker.SetMQTTConnected(publisher.IsConnected())
	snap := tracker.Snapshot()
	startupEvent := mqtt.SystemEvent{
		Timestamp:  snap.Now,
		Event:      "STARTUP",
		Retained:   true,
		RawPayload: status.FormatStatusEvent(snap, "STARTUP", ""),
	}
	if err := publisher.PublishSystem(startupEvent); err != nil {
		log.WithError(err).Warn("failed to publish startup event")
	}

	sourceErr := make(chan error, 4)
	if err := startSources(ctx, cfg, ctrl, sourceErr, &closers); err != nil {
		return err
	}

	log.WithFields(logrus.Fields{
		"enabled":   cfg.Enabled,
		"delay":     cfg.Delay(),
		"digitizer": cfg.Digitizer.Kind,
		"wakelock":  cfg.WakeLock.Kind,
		"suspend":   cfg.SuspendSource,
		"broker":    cfg.MQTT.Broker,
		"heartbeat": cfg.Heartbeat,
	}).Info("started")

	var tick <-chan time.Time
	if cfg.Heartbeat > 0 {
		ticker := time.NewTicker(cfg.Heartbeat)
		defer ticker.Stop()
		tick = ticker.C
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	return runLoop(ctrl, publisher, publisher, tracker, time.Now, tick, sigCh, sourceErr)
}

// openDigitizers builds the touch and pen switches named by the config.
func openDigitizers(cfg config.Digitizer, closers *[]io.Closer) (touchwake.Digitizer, touchwake.Digitizer, error) {
	switch cfg.Kind {
	case config.KindSysfs:
		var pen touchwake.Digitizer = digitizer.None{}
		if cfg.PenPath != "" {
			pen = digitizer.NewSysfs(cfg.PenPath)
		}
		return digitizer.NewSysfs(cfg.Path), pen, nil
	case config.KindGPIO:
		touch, err := gpio.NewLineSwitch(cfg.Chip, cfg.Line, "digitizer")
		if err != nil {
			return nil, nil, err
		}
		*closers = append(*closers, touch)
		if cfg.PenLine < 0 {
			return touch, digitizer.None{}, nil
		}
		pen, err := gpio.NewLineSwitch(cfg.Chip, cfg.PenLine, "pen")
		if err != nil {
			return nil, nil, err
		}
		*closers = append(*closers, pen)
		return touch, pen, nil
	}
	return digitizer.None{}, digitizer.None{}, nil
}

// startSources starts the input and suspend watchers. Each watcher runs
// until ctx is canceled; one that fails reports on errc.
func startSources(ctx context.Context, cfg *config.Config, ctrl *touchwake.Controller, errc chan<- error, closers *[]io.Closer) error {
	watch := func(name string, fn func(context.Context) error) {
		go func() {
			if err := fn(ctx); err != nil {
				errc <- fmt.Errorf("%s: %w", name, err)
			}
		}()
	}

	if cfg.TouchDevice != "" {
		watch("touch device", func(ctx context.Context) error {
			return evdev.Watch(ctx, cfg.TouchDevice, ctrl)
		})
	} else {
		log.Warn("no touch device configured, touches will not wake the device")
	}

	switch {
	case cfg.PowerKeyDevice != "":
		watch("power key device", func(ctx context.Context) error {
			return evdev.Watch(ctx, cfg.PowerKeyDevice, ctrl)
		})
	case cfg.PowerKeyGPIO != nil:
		b, err := gpio.WatchButton(cfg.PowerKeyGPIO.Chip, cfg.PowerKeyGPIO.Line, ctrl)
		if err != nil {
			return fmt.Errorf("init power button: %w", err)
		}
		*closers = append(*closers, b)
	default:
		log.Warn("no power key source configured, every suspend is treated as a timeout")
	}

	if cfg.SuspendSource == config.KindLogind {
		watch("logind", func(ctx context.Context) error {
			return power.WatchSleep(ctx, ctrl)
		})
	}
	return nil
}

// stateSource is the part of the controller runLoop reads.
type stateSource interface {
	State() touchwake.State
}

// subscribe wires controller events to the status tracker and the delivery
// queue. Both handlers run synchronously on the controller's goroutine: the
// tracker so HTTP reads see a transition as soon as the controller call
// returns, the queue because push never blocks.
func subscribe(bus EventBus.Bus, tracker *status.Tracker, queue *eventQueue) error {
	if err := bus.Subscribe(topicEvent, tracker.Record); err != nil {
		return err
	}
	return bus.Subscribe(topicEvent, queue.push)
}

// eventQueue hands controller events to a single delivery goroutine so
// broker and websocket I/O never stall a controller entry point. Events keep
// their order; when the queue is full new events are dropped.
type eventQueue struct {
	events chan touchwake.Event
	stop   chan struct{}
	done   chan struct{}
	once   sync.Once
}

func newEventQueue(size int) *eventQueue {
	return &eventQueue{
		events: make(chan touchwake.Event, size),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
}

// push enqueues ev without blocking. Pushing after close is harmless.
func (q *eventQueue) push(ev touchwake.Event) {
	select {
	case q.events <- ev:
	default:
		log.WithField("event", ev.Type).Warn("event queue full, dropping event")
	}
}

// run delivers events until close, then flushes what is already queued.
func (q *eventQueue) run(fn func(touchwake.Event)) {
	defer close(q.done)
	for {
		select {
		case ev := <-q.events:
			fn(ev)
		case <-q.stop:
			for {
				select {
				case ev := <-q.events:
					fn(ev)
				default:
					return
				}
			}
		}
	}
}

// close stops run after the queued events are delivered and waits for it.
func (q *eventQueue) close() {
	q.once.Do(func() { close(q.stop) })
	<-q.done
}

// deliver publishes an event to MQTT and broadcasts it to websocket clients.
func deliver(publisher mqtt.Publisher, hub *web.Hub) func(touchwake.Event) {
	return func(ev touchwake.Event) {
		log.WithField("mode", ev.State.Mode()).Debugf("event: %s", ev.Type)
		if err := publisher.Publish(ev); err != nil {
			log.WithError(err).Warn("publish error")
		}
		if hub == nil {
			return
		}
		payload, err := mqtt.FormatPayload(ev)
		if err != nil {
			log.WithError(err).Warn("format event")
			return
		}
		hub.Broadcast(payload)
	}
}

func runLoop(ctrl stateSource, publisher mqtt.Publisher, mqttStatus mqtt.ConnectionStatus, tracker *status.Tracker, now func() time.Time, tick <-chan time.Time, sig <-chan os.Signal, sourceErr <-chan error) error {
	shutdown := func(reason string) {
		event := mqtt.SystemEvent{
			Timestamp: now(),
			Event:     "SHUTDOWN",
			Reason:    reason,
			Retained:  true,
		}
		if tracker != nil {
			refresh(ctrl, mqttStatus, tracker)
			snap := tracker.Snapshot()
			event.RawPayload = status.FormatStatusEvent(snap, "SHUTDOWN", reason)
		}
		if err := publisher.PublishSystem(event); err != nil {
			log.WithError(err).Warn("failed to publish shutdown event")
		} else {
			log.Info("published shutdown event")
		}
	}

	for {
		select {
		case s := <-sig:
			log.Infof("received %v, shutting down", s)
			signalName := "UNKNOWN"
			if s == syscall.SIGINT {
				signalName = "SIGINT"
			} else if s == syscall.SIGTERM {
				signalName = "SIGTERM"
			}
			shutdown(signalName)
			return nil

		case err := <-sourceErr:
			log.WithError(err).Error("event source failed, shutting down")
			shutdown("SOURCE_ERROR")
			return err

		case <-tick:
			hbEvent := mqtt.SystemEvent{
				Timestamp: now(),
				Event:     "HEARTBEAT",
			}
			if tracker != nil {
				refresh(ctrl, mqttStatus, tracker)
				snap := tracker.Snapshot()
				s := snap.State
				log.WithFields(logrus.Fields{
					"uptime":   snap.Uptime().Truncate(time.Second),
					"mode":     s.Mode(),
					"suspends": s.Counts.Suspends,
					"wakes":    s.Counts.Wakes,
				}).Info("heartbeat")
				hbEvent.RawPayload = status.FormatStatusEvent(snap, "HEARTBEAT", "")
			}
			if err := publisher.PublishSystem(hbEvent); err != nil {
				log.WithError(err).Warn("heartbeat publish error")
			}
		}
	}
}

// refresh copies the live controller state and MQTT status into tracker.
func refresh(ctrl stateSource, mqttStatus mqtt.ConnectionStatus, tracker *status.Tracker) {
	if ctrl != nil {
		tracker.SetState(ctrl.State())
	}
	if mqttStatus != nil {
		tracker.SetMQTTConnected(mqttStatus.IsConnected())
	}
}
