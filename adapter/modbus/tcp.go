package modbus

import (
	"context"
	"encoding/binary"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/scadaflow/ingestcore/adapter"
	"github.com/scadaflow/ingestcore/reading"
)

const protocolNameTCP = "modbus-tcp"

type resolvedTag struct {
	mapping reading.TagMapping
	regType RegisterType
	index   uint16
}

// TCPAdapter implements adapter.Adapter for Modbus over TCP.
//
// It performs minimal MBAP framing sufficient to exercise a real TCP round
// trip. readOne classifies a socket failure as KindIO or KindTimeout and a
// short response as KindReadFailed; Poll skips a tag whose read fails and
// returns the readings that succeeded.
type TCPAdapter struct {
	mu        sync.Mutex
	conn      net.Conn
	cfg       reading.ConnectionConfig
	tags      []resolvedTag
	connected bool
	timeout   time.Duration
	txnID     uint16
}

// NewTCPAdapter constructs a disconnected Modbus/TCP adapter. requestTimeout
// bounds each individual register read (default 1s).
func NewTCPAdapter(requestTimeout time.Duration) *TCPAdapter {
	if requestTimeout <= 0 {
		requestTimeout = time.Second
	}
	return &TCPAdapter{timeout: requestTimeout}
}

func (a *TCPAdapter) ProtocolName() string { return protocolNameTCP }

func (a *TCPAdapter) IsConnected() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.connected
}

func (a *TCPAdapter) Connect(ctx context.Context, cfg reading.ConnectionConfig) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.connected {
		return adapter.NewError("connect", adapter.KindInvalidConfiguration,
			fmt.Errorf("adapter already connected"))
	}

	d := net.Dialer{Timeout: 5 * time.Second}
	conn, err := d.DialContext(ctx, "tcp", cfg.EndpointURL)
	if err != nil {
		return adapter.NewError("connect", adapter.KindConnectionFailed, err)
	}

	a.conn = conn
	a.cfg = cfg
	a.connected = true
	return nil
}

func (a *TCPAdapter) Subscribe(ctx context.Context, mappings []reading.TagMapping) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.connected {
		return adapter.NewError("subscribe", adapter.KindNotConnected, nil)
	}

	resolved := make([]resolvedTag, 0, len(mappings))
	for _, m := range mappings {
		regType, idx, err := ParseAddress(m.Address)
		if err != nil {
			return err
		}
		resolved = append(resolved, resolvedTag{mapping: m, regType: regType, index: idx})
	}

	a.tags = resolved
	return nil
}

func (a *TCPAdapter) Poll(ctx context.Context) ([]reading.Reading, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.connected {
		return nil, adapter.NewError("poll", adapter.KindNotConnected, nil)
	}

	out := make([]reading.Reading, 0, len(a.tags))
	for _, t := range a.tags {
		value, quality, err := a.readOne(t.regType, t.index)
		if err != nil {
			// Partial success: one failed read does not fail the whole poll.
			continue
		}
		out = append(out, reading.Reading{
			Timestamp:      time.Now().UTC(),
			TenantID:       t.mapping.TenantID,
			WellID:         t.mapping.WellID,
			TagName:        t.mapping.TagName,
			Value:          value,
			Quality:        quality,
			SourceProtocol: protocolNameTCP,
		})
	}
	return out, nil
}

func (a *TCPAdapter) Disconnect(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.conn != nil {
		_ = a.conn.Close()
		a.conn = nil
	}
	a.connected = false
	a.tags = nil
	return nil
}

// readOne issues a single Modbus read-holding/input-register (or
// coil/discrete-input) request over the MBAP-framed TCP connection.
func (a *TCPAdapter) readOne(t RegisterType, index uint16) (float64, reading.Quality, error) {
	a.txnID++
	req := make([]byte, 12)
	binary.BigEndian.PutUint16(req[0:2], a.txnID) // transaction id
	binary.BigEndian.PutUint16(req[2:4], 0)       // protocol id
	binary.BigEndian.PutUint16(req[4:6], 6)       // length
	req[6] = 0x01                                 // unit id
	switch t {
	case Coil:
		req[7] = 0x01
	case DiscreteInput:
		req[7] = 0x02
	case InputRegister:
		req[7] = 0x04
	default:
		req[7] = 0x03 // read holding registers
	}
	binary.BigEndian.PutUint16(req[8:10], index)
	binary.BigEndian.PutUint16(req[10:12], 1) // quantity

	_ = a.conn.SetDeadline(time.Now().Add(a.timeout))

	if _, err := a.conn.Write(req); err != nil {
		return 0, reading.QualityBad, adapter.NewError("poll", adapter.KindIO, err)
	}

	resp := make([]byte, 9+2)
	n, err := a.conn.Read(resp)
	if err != nil {
		if ne, ok := err.(net.Error); ok && ne.Timeout() {
			return 0, reading.QualityBad, adapter.NewError("poll", adapter.KindTimeout, err)
		}
		return 0, reading.QualityBad, adapter.NewError("poll", adapter.KindIO, err)
	}
	if n < 11 {
		return 0, reading.QualityBad, adapter.NewError("poll", adapter.KindReadFailed,
			fmt.Errorf("short response: %d bytes", n))
	}

	value := float64(binary.BigEndian.Uint16(resp[9:11]))
	return value, reading.QualityGood, nil
}
