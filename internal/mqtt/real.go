package mqtt

import (
	"errors"
	"fmt"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"github.com/sweeney/nixie-clock/internal/logic"
)

// BufferSize is how many messages are kept for replay while disconnected.
const BufferSize = 100

const publishTimeout = 5 * time.Second

// errNotConnected is returned for messages buffered for later delivery.
var errNotConnected = errors.New("not connected, message buffered")

// RealPublisher publishes to an actual MQTT broker. It connects in the
// background and keeps retrying, so the clock runs without a broker.
// Messages published while disconnected are buffered and replayed, oldest
// first, on reconnect.
type RealPublisher struct {
	client paho.Client
	logger *zap.SugaredLogger
	now    func() time.Time

	mu        sync.Mutex
	buf       *ringBuffer
	connected bool
	everUp    bool
}

// NewRealPublisher creates a publisher for the given broker and starts
// connecting. The broker is told to publish a retained SHUTDOWN with reason
// MQTT_DISCONNECT if the connection drops uncleanly.
func NewRealPublisher(broker, clientID string, logger *zap.SugaredLogger) *RealPublisher {
	p := &RealPublisher{
		logger: logger,
		now:    time.Now,
		buf:    newRingBuffer(BufferSize),
	}

	will, _ := FormatSystemPayload(SystemEvent{
		Timestamp: p.now(),
		Event:     "SHUTDOWN",
		Reason:    "MQTT_DISCONNECT",
	})

	opts := paho.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5*time.Second).
		SetWill(TopicSystem, string(will), 1, true).
		SetOnConnectHandler(p.onConnect).
		SetConnectionLostHandler(p.onConnectionLost)

	p.client = paho.NewClient(opts)
	p.client.Connect()
	return p
}

func (p *RealPublisher) onConnect(c paho.Client) {
	p.mu.Lock()
	reconnect := p.everUp
	p.connected = true
	p.everUp = true
	pending := p.buf.drainAll()
	p.mu.Unlock()

	p.logger.Infow("MQTT connected", "replaying", len(pending))

	if reconnect {
		payload, _ := FormatSystemPayload(SystemEvent{Timestamp: p.now(), Event: "RECONNECTED"})
		pending = append(pending, bufferedMsg{topic: TopicSystem, payload: payload, qos: 1})
	}
	for _, msg := range pending {
		if err := p.send(msg); err != nil {
			p.logger.Warnw("MQTT replay failed", "topic", msg.topic, "error", err)
		}
	}
}

func (p *RealPublisher) onConnectionLost(c paho.Client, err error) {
	p.mu.Lock()
	p.connected = false
	p.mu.Unlock()
	p.logger.Warnw("MQTT connection lost", "error", err)
}

func (p *RealPublisher) send(msg bufferedMsg) error {
	token := p.client.Publish(msg.topic, msg.qos, msg.retained, msg.payload)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("publish to %s: timeout", msg.topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish to %s: %w", msg.topic, err)
	}
	return nil
}

func (p *RealPublisher) publish(msg bufferedMsg) error {
	p.mu.Lock()
	if !p.connected {
		if p.buf.push(msg) {
			p.logger.Warnw("MQTT buffer full, dropping oldest", "capacity", BufferSize)
		}
		p.mu.Unlock()
		return errNotConnected
	}
	p.mu.Unlock()
	return p.send(msg)
}

// Publish sends a clock event to the MQTT broker.
func (p *RealPublisher) Publish(event logic.Event) error {
	payload, err := FormatPayload(event)
	if err != nil {
		return fmt.Errorf("format payload: %w", err)
	}
	// QoS 0 (at-most-once), not retained
	return p.publish(bufferedMsg{topic: Topic, payload: payload})
}

// PublishSystem sends a system lifecycle event to the MQTT broker.
func (p *RealPublisher) PublishSystem(event SystemEvent) error {
	payload, err := FormatSystemPayload(event)
	if err != nil {
		return fmt.Errorf("format system payload: %w", err)
	}
	// QoS 1 (at-least-once) so lifecycle events survive a flaky link
	return p.publish(bufferedMsg{topic: TopicSystem, payload: payload, qos: 1, retained: event.Retained})
}

// IsConnected reports whether the broker connection is up.
func (p *RealPublisher) IsConnected() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.connected
}

// Buffered returns the number of messages waiting for a connection.
func (p *RealPublisher) Buffered() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.buf.len()
}

// Close disconnects from the broker.
func (p *RealPublisher) Close() error {
	p.client.Disconnect(1000) // 1 second timeout
	return nil
}
