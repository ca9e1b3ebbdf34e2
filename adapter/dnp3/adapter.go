package dnp3

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/scadaflow/ingestcore/adapter"
	"github.com/scadaflow/ingestcore/reading"
)

const protocolName = "utility-poll"

type resolvedTag struct {
	mapping   reading.TagMapping
	pointType PointType
	index     uint16
}

// Adapter implements adapter.Adapter for the utility SCADA polling
// protocol. The master-station wire framing is a follow-on concern: this
// adapter sends no request frame. It validates addresses, maps quality
// flags, and on each poll reads one 9-byte record (8 value bytes, then 1
// flags byte) per mapping from the connection.
type Adapter struct {
	mu        sync.Mutex
	conn      net.Conn
	tags      []resolvedTag
	connected bool
	timeout   time.Duration
}

func NewAdapter(requestTimeout time.Duration) *Adapter {
	if requestTimeout <= 0 {
		requestTimeout = time.Second
	}
	return &Adapter{timeout: requestTimeout}
}

func (a *Adapter) ProtocolName() string { return protocolName }

func (a *Adapter) IsConnected() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.connected
}

func (a *Adapter) Connect(ctx context.Context, cfg reading.ConnectionConfig) error {
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
	a.connected = true
	return nil
}

func (a *Adapter) Subscribe(ctx context.Context, mappings []reading.TagMapping) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.connected {
		return adapter.NewError("subscribe", adapter.KindNotConnected, nil)
	}

	resolved := make([]resolvedTag, 0, len(mappings))
	for _, m := range mappings {
		pt, idx, err := ParseAddress(m.Address)
		if err != nil {
			return err
		}
		resolved = append(resolved, resolvedTag{mapping: m, pointType: pt, index: idx})
	}
	a.tags = resolved
	return nil
}

func (a *Adapter) Poll(ctx context.Context) ([]reading.Reading, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.connected {
		return nil, adapter.NewError("poll", adapter.KindNotConnected, nil)
	}

	out := make([]reading.Reading, 0, len(a.tags))
	buf := make([]byte, 9)
	_ = a.conn.SetDeadline(time.Now().Add(a.timeout))
	for _, t := range a.tags {
		n, err := a.conn.Read(buf)
		if err != nil || n < 9 {
			continue // partial success
		}
		value := bytesToFloat64(buf[0:8])
		flags := buf[8]

		out = append(out, reading.Reading{
			Timestamp:      time.Now().UTC(),
			TenantID:       t.mapping.TenantID,
			WellID:         t.mapping.WellID,
			TagName:        t.mapping.TagName,
			Value:          value,
			Quality:        MapQuality(flags),
			SourceProtocol: protocolName,
		})
	}
	return out, nil
}

func (a *Adapter) Disconnect(ctx context.Context) error {
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

func bytesToFloat64(b []byte) float64 {
	var u uint64
	for _, c := range b {
		u = u<<8 | uint64(c)
	}
	return float64(u)
}
