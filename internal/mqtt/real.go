package mqtt

import (
	"fmt"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/sirupsen/logrus"
	"github.com/sweeney/touchwake/internal/touchwake"
)

const bufferCapacity = 100

// Config configures a RealPublisher.
type Config struct {
	Broker   string
	ClientID string
	Prefix   string
}

// RealPublisher publishes to an actual MQTT broker. Messages published while
// the connection is down are buffered and replayed on reconnect.
type RealPublisher struct {
	client paho.Client
	topics Topics
	cmd    CommandHandler

	mu     sync.Mutex
	outbox *outbox
}

// NewRealPublisher creates a publisher connected to the given broker. If cmd
// is non-nil the publisher subscribes to the command topics on every
// connect and dispatches them to cmd.
func NewRealPublisher(cfg Config, cmd CommandHandler) (*RealPublisher, error) {
	p := &RealPublisher{
		topics: NewTopics(cfg.Prefix),
		cmd:    cmd,
		outbox: newOutbox(bufferCapacity),
	}

	clientID := cfg.ClientID
	if clientID == "" {
		clientID = "touchwaked"
	}

	will, err := FormatSystemPayload(SystemEvent{
		Timestamp: time.Now(),
		Event:     "SHUTDOWN",
		Reason:    "MQTT_DISCONNECT",
	})
	if err != nil {
		return nil, fmt.Errorf("format will: %w", err)
	}

	opts := paho.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetBinaryWill(p.topics.System, will, 1, true).
		SetOnConnectHandler(p.onConnect).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			log.WithError(err).Warn("connection lost")
		})

	p.client = paho.NewClient(opts)
	token := p.client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		return nil, fmt.Errorf("connection timeout")
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect to broker: %w", err)
	}

	return p, nil
}

// onConnect runs on every (re)connect: resubscribe, then flush the outbox.
func (p *RealPublisher) onConnect(c paho.Client) {
	log.Info("connected to broker")

	if p.cmd != nil {
		filters := map[string]byte{
			p.topics.Power:           1,
			p.topics.SetPrefix + "+": 1,
		}
		token := c.SubscribeMultiple(filters, p.onMessage)
		if token.WaitTimeout(5*time.Second) && token.Error() != nil {
			log.WithError(token.Error()).Warn("subscribe command topics")
		}
	}

	p.mu.Lock()
	pending, dropped := p.outbox.drain()
	p.mu.Unlock()

	if len(pending) > 0 {
		log.WithFields(logrus.Fields{
			"count":   len(pending),
			"dropped": dropped,
		}).Info("replaying buffered messages")
	}
	for _, m := range pending {
		c.Publish(m.topic, m.qos, m.retained, m.payload)
	}

	reconnected, err := FormatSystemPayload(SystemEvent{Timestamp: time.Now(), Event: "RECONNECTED"})
	if err == nil {
		c.Publish(p.topics.System, 1, true, reconnected)
	}
}

func (p *RealPublisher) onMessage(_ paho.Client, m paho.Message) {
	if err := HandleCommand(p.topics, m.Topic(), m.Payload(), p.cmd); err != nil {
		log.WithError(err).Warn("command rejected")
		return
	}
	log.WithField("topic", m.Topic()).Debug("command applied")
}

// Publish sends a controller transition to the MQTT broker.
func (p *RealPublisher) Publish(event touchwake.Event) error {
	payload, err := FormatPayload(event)
	if err != nil {
		return fmt.Errorf("format payload: %w", err)
	}
	// QoS 0 (at-most-once), not retained
	return p.send(bufferedMsg{topic: p.topics.Events, payload: payload})
}

// PublishSystem sends a system lifecycle event to the MQTT broker.
func (p *RealPublisher) PublishSystem(event SystemEvent) error {
	payload, err := FormatSystemPayload(event)
	if err != nil {
		return fmt.Errorf("format system payload: %w", err)
	}
	// QoS 1 (at-least-once) for lifecycle events
	return p.send(bufferedMsg{
		topic:    p.topics.System,
		payload:  payload,
		qos:      1,
		retained: event.Retained,
		snapshot: true,
	})
}

func (p *RealPublisher) send(m bufferedMsg) error {
	if !p.client.IsConnectionOpen() {
		p.mu.Lock()
		p.outbox.push(m)
		p.mu.Unlock()
		return nil
	}

	token := p.client.Publish(m.topic, m.qos, m.retained, m.payload)
	if !token.WaitTimeout(5 * time.Second) {
		p.mu.Lock()
		p.outbox.push(m)
		p.mu.Unlock()
		return fmt.Errorf("publish %s timeout", m.topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish %s: %w", m.topic, err)
	}
	return nil
}

// IsConnected reports whether the client currently holds a broker connection.
func (p *RealPublisher) IsConnected() bool {
	return p.client.IsConnectionOpen()
}

// Close disconnects from the broker.
func (p *RealPublisher) Close() error {
	p.client.Disconnect(1000) // 1 second timeout
	return nil
}
