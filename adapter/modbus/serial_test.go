package modbus

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scadaflow/ingestcore/adapter"
	"github.com/scadaflow/ingestcore/reading"
)

// fakeSerialPort is a fixed sequence of two-byte register responses, one
// per Read call, backing io.ReadWriteCloser for SerialAdapter tests.
type fakeSerialPort struct {
	responses [][]byte
	calls     int
	closed    bool
	readErr   error
}

func (p *fakeSerialPort) Read(buf []byte) (int, error) {
	if p.readErr != nil {
		return 0, p.readErr
	}
	if p.calls >= len(p.responses) {
		return 0, io.EOF
	}
	resp := p.responses[p.calls]
	p.calls++
	copy(buf, resp)
	return len(resp), nil
}

func (p *fakeSerialPort) Write(buf []byte) (int, error) { return len(buf), nil }

func (p *fakeSerialPort) Close() error {
	p.closed = true
	return nil
}

func dialerFor(port *fakeSerialPort, dialErr error) SerialPortDialer {
	return func(ctx context.Context, endpoint string) (io.ReadWriteCloser, error) {
		if dialErr != nil {
			return nil, dialErr
		}
		return port, nil
	}
}

func TestSerialAdapterPollDecodesRegisters(t *testing.T) {
	port := &fakeSerialPort{responses: [][]byte{{0x01, 0x2c}, {0x00, 0x0a}}}
	a := NewSerialAdapter(dialerFor(port, nil), time.Second)

	require.NoError(t, a.Connect(context.Background(), reading.ConnectionConfig{EndpointURL: "/dev/ttyUSB0", StationAddress: 3}))
	require.NoError(t, a.Subscribe(context.Background(), []reading.TagMapping{
		{TagName: "tag1", Address: "40001"},
		{TagName: "tag2", Address: "40002"},
	}))

	readings, err := a.Poll(context.Background())
	require.NoError(t, err)
	require.Len(t, readings, 2)
	assert.Equal(t, float64(0x012c), readings[0].Value)
	assert.Equal(t, float64(0x000a), readings[1].Value)
	assert.Equal(t, reading.QualityGood, readings[0].Quality)
	assert.Equal(t, protocolNameSerial, readings[0].SourceProtocol)
}

func TestSerialAdapterPollSkipsTagOnReadError(t *testing.T) {
	port := &fakeSerialPort{readErr: io.ErrClosedPipe}
	a := NewSerialAdapter(dialerFor(port, nil), time.Second)

	require.NoError(t, a.Connect(context.Background(), reading.ConnectionConfig{EndpointURL: "/dev/ttyUSB0"}))
	require.NoError(t, a.Subscribe(context.Background(), []reading.TagMapping{{TagName: "tag1", Address: "40001"}}))

	readings, err := a.Poll(context.Background())
	require.NoError(t, err)
	assert.Empty(t, readings)
}

func TestSerialAdapterPollRequiresConnection(t *testing.T) {
	a := NewSerialAdapter(dialerFor(&fakeSerialPort{}, nil), time.Second)

	_, err := a.Poll(context.Background())
	require.Error(t, err)
	var adapterErr *adapter.Error
	require.ErrorAs(t, err, &adapterErr)
	assert.Equal(t, adapter.KindNotConnected, adapterErr.Kind)
}

func TestSerialAdapterConnectRequiresDialer(t *testing.T) {
	a := NewSerialAdapter(nil, time.Second)

	err := a.Connect(context.Background(), reading.ConnectionConfig{EndpointURL: "/dev/ttyUSB0"})
	require.Error(t, err)
	var adapterErr *adapter.Error
	require.ErrorAs(t, err, &adapterErr)
	assert.Equal(t, adapter.KindInvalidConfiguration, adapterErr.Kind)
}

func TestSerialAdapterDisconnectClosesPort(t *testing.T) {
	port := &fakeSerialPort{}
	a := NewSerialAdapter(dialerFor(port, nil), time.Second)
	require.NoError(t, a.Connect(context.Background(), reading.ConnectionConfig{EndpointURL: "/dev/ttyUSB0"}))

	require.NoError(t, a.Disconnect(context.Background()))
	assert.True(t, port.closed)
	assert.False(t, a.IsConnected())
}
