// Package mqtt implements subscription-based ingestion over an MQTT broker,
// addressed by broker-defined topic string, on top of paho.mqtt.golang.
package mqtt

import (
	"context"
	"fmt"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/scadaflow/ingestcore/adapter"
	"github.com/scadaflow/ingestcore/reading"
)

const protocolName = "mqtt"

// queueCapacity bounds the internal buffer of messages awaiting Poll.
// Subscriptions are push-driven; Poll only drains what callbacks already
// collected. When full, the oldest queued message is dropped to make room
// for the newest, rather than blocking the client library's callback
// goroutine.
const queueCapacity = 1000

// ClientFactory constructs a paho client for a connection. Exposed as a
// seam so tests can inject a fake client instead of dialing a real broker.
type ClientFactory func(opts *paho.ClientOptions) paho.Client

// Adapter implements adapter.Adapter over an MQTT broker connection.
type Adapter struct {
	mu        sync.Mutex
	client    paho.Client
	newClient ClientFactory
	tags      []reading.TagMapping
	tenantID  string
	queue     []reading.Reading
	dropped   int
	connected bool
	qos       byte
}

func NewAdapter(factory ClientFactory) *Adapter {
	if factory == nil {
		factory = paho.NewClient
	}
	return &Adapter{newClient: factory}
}

func (a *Adapter) ProtocolName() string { return protocolName }

func (a *Adapter) IsConnected() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.connected
}

func parseQoS(qos int) byte {
	switch qos {
	case 0, 1, 2:
		return byte(qos)
	default:
		return 1
	}
}

func (a *Adapter) Connect(ctx context.Context, cfg reading.ConnectionConfig) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.connected {
		return adapter.NewError("connect", adapter.KindInvalidConfiguration,
			fmt.Errorf("adapter already connected"))
	}

	clientID := cfg.ClientID
	if clientID == "" {
		clientID = fmt.Sprintf("ingestcore-%s", cfg.ConnectionID)
	}

	opts := paho.NewClientOptions().
		AddBroker(cfg.EndpointURL).
		SetClientID(clientID).
		SetKeepAlive(30 * time.Second).
		SetAutoReconnect(true)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
	}
	if cfg.Password != "" {
		opts.SetPassword(cfg.Password)
	}

	client := a.newClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(5 * time.Second) {
		return adapter.NewError("connect", adapter.KindTimeout, fmt.Errorf("connect timed out"))
	}
	if err := token.Error(); err != nil {
		return adapter.NewError("connect", adapter.KindConnectionFailed, err)
	}

	a.client = client
	a.tenantID = cfg.TenantID
	a.qos = parseQoS(cfg.QoS)
	a.connected = true
	return nil
}

func (a *Adapter) Subscribe(ctx context.Context, mappings []reading.TagMapping) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.connected {
		return adapter.NewError("subscribe", adapter.KindNotConnected, nil)
	}

	byTopic := make(map[string]reading.TagMapping, len(mappings))
	for _, m := range mappings {
		if m.Address == "" {
			return adapter.NewError("subscribe", adapter.KindInvalidAddress,
				fmt.Errorf("empty topic for tag %q", m.TagName))
		}
		byTopic[m.Address] = m
	}

	for topic := range byTopic {
		token := a.client.Subscribe(topic, a.qos, a.handleMessage(byTopic))
		if !token.WaitTimeout(5 * time.Second) {
			return adapter.NewError("subscribe", adapter.KindTimeout,
				fmt.Errorf("subscribe to %q timed out", topic))
		}
		if err := token.Error(); err != nil {
			return adapter.NewError("subscribe", adapter.KindSubscriptionFailed, err)
		}
	}

	a.tags = mappings
	return nil
}

func (a *Adapter) handleMessage(byTopic map[string]reading.TagMapping) paho.MessageHandler {
	return func(_ paho.Client, msg paho.Message) {
		mapping, ok := byTopic[msg.Topic()]
		if !ok {
			return
		}
		var value float64
		if _, err := fmt.Sscanf(string(msg.Payload()), "%g", &value); err != nil {
			return
		}

		r := reading.Reading{
			Timestamp:      time.Now().UTC(),
			TenantID:       mapping.TenantID,
			WellID:         mapping.WellID,
			TagName:        mapping.TagName,
			Value:          value,
			Quality:        reading.QualityGood,
			SourceProtocol: protocolName,
		}

		a.mu.Lock()
		defer a.mu.Unlock()
		if len(a.queue) >= queueCapacity {
			a.queue = a.queue[1:]
			a.dropped++
		}
		a.queue = append(a.queue, r)
	}
}

// DroppedMessages reports how many queued messages have been evicted because
// the queue reached queueCapacity before Poll drained it.
func (a *Adapter) DroppedMessages() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.dropped
}

// Poll drains whatever messages callbacks have queued since the last call;
// MQTT is push-driven so there is no network round-trip here.
func (a *Adapter) Poll(ctx context.Context) ([]reading.Reading, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.connected {
		return nil, adapter.NewError("poll", adapter.KindNotConnected, nil)
	}

	out := a.queue
	a.queue = nil
	return out, nil
}

func (a *Adapter) Disconnect(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.client != nil {
		a.client.Disconnect(250)
		a.client = nil
	}
	a.connected = false
	a.tags = nil
	a.queue = nil
	return nil
}
