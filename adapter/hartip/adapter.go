package hartip

import (
	"context"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/scadaflow/ingestcore/adapter"
	"github.com/scadaflow/ingestcore/reading"
)

const protocolName = "hart-ip"

type resolvedTag struct {
	mapping  reading.TagMapping
	variable Variable
}

// Adapter implements adapter.Adapter over a UDP socket talking HART-IP to a
// single field instrument. Instruments are polled, not subscribed to.
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

func resolveEndpoint(endpointURL string) string {
	if strings.Contains(endpointURL, ":") {
		return endpointURL
	}
	return fmt.Sprintf("%s:%d", endpointURL, defaultPort)
}

func (a *Adapter) Connect(ctx context.Context, cfg reading.ConnectionConfig) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.connected {
		return adapter.NewError("connect", adapter.KindInvalidConfiguration,
			fmt.Errorf("adapter already connected"))
	}

	endpoint := resolveEndpoint(cfg.EndpointURL)
	if _, _, err := net.SplitHostPort(endpoint); err != nil {
		return adapter.NewError("connect", adapter.KindInvalidConfiguration, err)
	}

	d := net.Dialer{Timeout: 5 * time.Second}
	conn, err := d.DialContext(ctx, "udp", endpoint)
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
		v, err := ParseAddress(m.Address)
		if err != nil {
			return err
		}
		resolved = append(resolved, resolvedTag{mapping: m, variable: v})
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
	resp := make([]byte, 1024)
	for _, t := range a.tags {
		req := buildRequest(t.variable.readCommand(), 0)

		_ = a.conn.SetDeadline(time.Now().Add(a.timeout))
		if _, err := a.conn.Write(req); err != nil {
			continue
		}
		n, err := a.conn.Read(resp)
		if err != nil {
			continue // partial success: skip this tag, keep polling the rest
		}
		value, err := parseResponse(resp[:n])
		if err != nil {
			continue
		}

		out = append(out, reading.Reading{
			Timestamp:      time.Now().UTC(),
			TenantID:       t.mapping.TenantID,
			WellID:         t.mapping.WellID,
			TagName:        t.mapping.TagName,
			Value:          value,
			Quality:        reading.QualityGood,
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
