package mqtt

import (
	"context"
	"testing"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/require"

	"github.com/scadaflow/ingestcore/reading"
)

type fakeToken struct{ err error }

func (t *fakeToken) Wait() bool                     { return true }
func (t *fakeToken) WaitTimeout(time.Duration) bool  { return true }
func (t *fakeToken) Done() <-chan struct{}           { ch := make(chan struct{}); close(ch); return ch }
func (t *fakeToken) Error() error                    { return t.err }

type fakeMessage struct {
	topic   string
	payload []byte
}

func (m *fakeMessage) Duplicate() bool   { return false }
func (m *fakeMessage) Qos() byte         { return 1 }
func (m *fakeMessage) Retained() bool    { return false }
func (m *fakeMessage) Topic() string     { return m.topic }
func (m *fakeMessage) MessageID() uint16 { return 0 }
func (m *fakeMessage) Payload() []byte   { return m.payload }
func (m *fakeMessage) Ack()              {}

type fakeClient struct {
	connected bool
	handlers  map[string]paho.MessageHandler
}

func newFakeClient(*paho.ClientOptions) paho.Client {
	return &fakeClient{handlers: make(map[string]paho.MessageHandler)}
}

func (c *fakeClient) IsConnected() bool       { return c.connected }
func (c *fakeClient) IsConnectionOpen() bool  { return c.connected }
func (c *fakeClient) Connect() paho.Token     { c.connected = true; return &fakeToken{} }
func (c *fakeClient) Disconnect(quiesce uint) { c.connected = false }
func (c *fakeClient) Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token {
	return &fakeToken{}
}
func (c *fakeClient) Subscribe(topic string, qos byte, callback paho.MessageHandler) paho.Token {
	c.handlers[topic] = callback
	return &fakeToken{}
}
func (c *fakeClient) SubscribeMultiple(filters map[string]byte, callback paho.MessageHandler) paho.Token {
	for t := range filters {
		c.handlers[t] = callback
	}
	return &fakeToken{}
}
func (c *fakeClient) Unsubscribe(topics ...string) paho.Token {
	for _, t := range topics {
		delete(c.handlers, t)
	}
	return &fakeToken{}
}
func (c *fakeClient) AddRoute(topic string, callback paho.MessageHandler) { c.handlers[topic] = callback }
func (c *fakeClient) OptionsReader() paho.ClientOptionsReader             { return paho.ClientOptionsReader{} }

// deliver simulates the broker publishing a message to a subscribed topic.
func (c *fakeClient) deliver(topic string, payload []byte) {
	if h, ok := c.handlers[topic]; ok {
		h(c, &fakeMessage{topic: topic, payload: payload})
	}
}

func TestAdapterSubscribeAndPoll(t *testing.T) {
	var client *fakeClient
	factory := func(opts *paho.ClientOptions) paho.Client {
		client = &fakeClient{handlers: make(map[string]paho.MessageHandler)}
		return client
	}

	a := NewAdapter(factory)
	ctx := context.Background()

	cfg := reading.ConnectionConfig{
		ConnectionID: "conn-1",
		TenantID:     "tenant-1",
		EndpointURL:  "tcp://broker.example.com:1883",
	}
	require.NoError(t, a.Connect(ctx, cfg))
	require.True(t, a.IsConnected())

	mappings := []reading.TagMapping{
		{TenantID: "tenant-1", WellID: "well-1", TagName: "oil_rate", Address: "well/123/oil_rate"},
	}
	require.NoError(t, a.Subscribe(ctx, mappings))

	client.deliver("well/123/oil_rate", []byte("42.5"))

	readings, err := a.Poll(ctx)
	require.NoError(t, err)
	require.Len(t, readings, 1)
	require.Equal(t, 42.5, readings[0].Value)
	require.Equal(t, reading.QualityGood, readings[0].Quality)

	// a second poll with nothing new delivered drains to empty
	readings, err = a.Poll(ctx)
	require.NoError(t, err)
	require.Empty(t, readings)

	require.NoError(t, a.Disconnect(ctx))
	require.False(t, a.IsConnected())
}

func TestAdapterQueueDropsOldestOnSaturation(t *testing.T) {
	var client *fakeClient
	factory := func(opts *paho.ClientOptions) paho.Client {
		client = &fakeClient{handlers: make(map[string]paho.MessageHandler)}
		return client
	}

	a := NewAdapter(factory)
	ctx := context.Background()
	require.NoError(t, a.Connect(ctx, reading.ConnectionConfig{EndpointURL: "tcp://broker:1883"}))

	mappings := []reading.TagMapping{{TagName: "x", Address: "t"}}
	require.NoError(t, a.Subscribe(ctx, mappings))

	for i := 0; i < queueCapacity+10; i++ {
		client.deliver("t", []byte("1"))
	}

	readings, err := a.Poll(ctx)
	require.NoError(t, err)
	require.Len(t, readings, queueCapacity)
	require.Equal(t, 10, a.DroppedMessages())
}

func TestSubscribeBeforeConnectFails(t *testing.T) {
	a := NewAdapter(newFakeClient)
	err := a.Subscribe(context.Background(), nil)
	require.Error(t, err)
}
