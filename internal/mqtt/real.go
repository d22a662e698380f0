package mqtt

import (
	"fmt"
	"log"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/sweeney/torchd/internal/flash"
	"github.com/sweeney/torchd/internal/pattern"
)

// bufferSize is how many messages are kept while the broker is unreachable.
const bufferSize = 100

// client is the subset of paho.Client the publisher uses.
type client interface {
	IsConnected() bool
	Connect() paho.Token
	Disconnect(quiesce uint)
	Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token
	Subscribe(topic string, qos byte, callback paho.MessageHandler) paho.Token
}

// Options configures a RealPublisher.
type Options struct {
	Broker   string
	ClientID string // empty = "torchd-<uuid>"

	// Controls, if set, receives commands from TopicCommand.
	Controls Controls

	// OnConnectionChange, if set, is called on every connect and disconnect.
	OnConnectionChange func(connected bool)
}

// RealPublisher publishes to an actual MQTT broker. Messages published
// while disconnected are buffered and replayed on (re)connect.
type RealPublisher struct {
	client   client
	controls Controls
	onChange func(bool)
	now      func() time.Time

	mu            sync.Mutex
	buf           *ringBuffer
	connected     bool
	replaying     bool // connected, backlog not yet sent
	everConnected bool
}

func newPublisher(c client, opts Options) *RealPublisher {
	return &RealPublisher{
		client:   c,
		controls: opts.Controls,
		onChange: opts.OnConnectionChange,
		now:      time.Now,
		buf:      newRingBuffer(bufferSize),
	}
}

// NewRealPublisher creates a publisher for the given broker and starts
// connecting. It never fails: if the broker is down the client keeps
// retrying in the background and messages are buffered.
func NewRealPublisher(opts Options) *RealPublisher {
	p := newPublisher(nil, opts)

	clientID := opts.ClientID
	if clientID == "" {
		clientID = "torchd-" + uuid.NewString()
	}
	will, _ := FormatSystemPayload(SystemEvent{
		Timestamp: time.Now(),
		Event:     "OFFLINE",
		Reason:    "MQTT_DISCONNECT",
	})

	po := paho.NewClientOptions().
		AddBroker(opts.Broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetWill(TopicSystem, string(will), 1, true).
		SetOnConnectHandler(func(paho.Client) { p.handleConnect() }).
		SetConnectionLostHandler(func(_ paho.Client, err error) { p.handleLost(err) })

	p.client = paho.NewClient(po)
	token := p.client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		log.Printf("mqtt: broker %s not reachable yet, retrying in background", opts.Broker)
	} else if err := token.Error(); err != nil {
		log.Printf("mqtt: connect to %s: %v", opts.Broker, err)
	}
	return p
}

func (p *RealPublisher) handleConnect() {
	p.mu.Lock()
	reconnect := p.everConnected
	p.everConnected = true
	p.replaying = true
	p.mu.Unlock()

	log.Printf("mqtt: connected")

	if p.controls != nil {
		token := p.client.Subscribe(TopicCommand, 1, p.handleMessage)
		if !token.WaitTimeout(5 * time.Second) {
			log.Printf("mqtt: subscribe %s: timeout", TopicCommand)
		} else if err := token.Error(); err != nil {
			log.Printf("mqtt: subscribe %s: %v", TopicCommand, err)
		}
	}

	if !p.replay() {
		log.Printf("mqtt: connection lost during replay")
		return
	}

	if reconnect {
		if err := p.PublishSystem(SystemEvent{Timestamp: p.now(), Event: "RECONNECTED"}); err != nil {
			log.Printf("mqtt: publish reconnected event: %v", err)
		}
	}
	if p.onChange != nil {
		p.onChange(true)
	}
}

// replay sends buffered messages until the buffer is empty, then marks the
// publisher connected. Messages published meanwhile land behind the backlog
// so broker order matches publish order. It reports false if the connection
// was lost before the backlog cleared.
func (p *RealPublisher) replay() bool {
	total := 0
	for {
		p.mu.Lock()
		if !p.replaying {
			p.mu.Unlock()
			return false
		}
		pending := p.buf.drainAll()
		if len(pending) == 0 {
			p.replaying = false
			p.connected = true
			p.mu.Unlock()
			break
		}
		p.mu.Unlock()

		for _, m := range pending {
			if err := p.send(m); err != nil {
				log.Printf("mqtt: replay %s: %v", m.topic, err)
			}
		}
		total += len(pending)
	}
	if total > 0 {
		log.Printf("mqtt: replayed %d buffered messages", total)
	}
	return true
}

func (p *RealPublisher) handleLost(err error) {
	p.mu.Lock()
	p.connected = false
	p.replaying = false
	p.mu.Unlock()

	log.Printf("mqtt: connection lost: %v", err)
	if p.onChange != nil {
		p.onChange(false)
	}
}

func (p *RealPublisher) handleMessage(_ paho.Client, m paho.Message) {
	cmd, err := ParseCommand(m.Payload())
	if err != nil {
		log.Printf("mqtt: dropping command: %v", err)
		return
	}
	log.Printf("mqtt: command %s", cmd.Action)
	if err := Dispatch(p.controls, cmd); err != nil {
		log.Printf("mqtt: command %s failed: %v", cmd.Action, err)
	}
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

func (p *RealPublisher) publish(msg bufferedMsg) error {
	p.mu.Lock()
	if !p.connected {
		p.buf.push(msg)
		p.mu.Unlock()
		return nil
	}
	p.mu.Unlock()
	return p.send(msg)
}

func (p *RealPublisher) send(msg bufferedMsg) error {
	token := p.client.Publish(msg.topic, msg.qos, msg.retained, msg.payload)
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("publish %s: timeout", msg.topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish %s: %w", msg.topic, err)
	}
	return nil
}

// Publish sends a torch transition to the MQTT broker.
func (p *RealPublisher) Publish(c flash.Change) error {
	payload, err := FormatPayload(c)
	if err != nil {
		return fmt.Errorf("format payload: %w", err)
	}
	// QoS 0 (at-most-once), not retained
	return p.publish(bufferedMsg{topic: TopicState, payload: payload})
}

// PublishPattern sends a pattern change to the MQTT broker.
func (p *RealPublisher) PublishPattern(c pattern.Change) error {
	payload, err := FormatPatternPayload(c)
	if err != nil {
		return fmt.Errorf("format pattern payload: %w", err)
	}
	return p.publish(bufferedMsg{topic: TopicPattern, payload: payload})
}

// PublishSystem sends a system lifecycle event to the MQTT broker.
func (p *RealPublisher) PublishSystem(event SystemEvent) error {
	payload, err := FormatSystemPayload(event)
	if err != nil {
		return fmt.Errorf("format system payload: %w", err)
	}
	// QoS 1 (at-least-once) for lifecycle events - we want to ensure delivery
	return p.publish(bufferedMsg{topic: TopicSystem, payload: payload, qos: 1, retained: event.Retained})
}

// Close disconnects from the broker.
func (p *RealPublisher) Close() error {
	p.client.Disconnect(1000) // 1 second timeout
	return nil
}
