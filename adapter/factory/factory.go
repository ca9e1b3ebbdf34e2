// Package factory constructs an adapter.Adapter from a protocol tag
// string, or fails with UnsupportedProtocol. Adding a new protocol requires
// only a new case here and a new adapter type — no changes elsewhere.
package factory

import (
	"fmt"
	"strings"
	"time"

	"github.com/scadaflow/ingestcore/adapter"
	"github.com/scadaflow/ingestcore/adapter/dnp3"
	"github.com/scadaflow/ingestcore/adapter/hartip"
	"github.com/scadaflow/ingestcore/adapter/modbus"
	"github.com/scadaflow/ingestcore/adapter/mqtt"
	"github.com/scadaflow/ingestcore/adapter/opcua"
	"github.com/scadaflow/ingestcore/adapter/plctag"
)

// Config carries the seams the factory needs to construct adapters that
// depend on injectable transports (serial ports, MQTT clients) rather than
// opening them directly. RequestTimeout defaults to one second when zero.
// SerialDialer is needed for a Register/serial adapter to connect: without
// it the adapter is still constructed, but its Connect fails with
// KindInvalidConfiguration.
type Config struct {
	RequestTimeout time.Duration
	SerialDialer   modbus.SerialPortDialer
	MQTTClient     mqtt.ClientFactory
}

// normalize upper-cases a protocol tag and strips the separators the
// catalog and operators commonly use between words.
func normalize(protocol string) string {
	s := strings.ToUpper(protocol)
	s = strings.ReplaceAll(s, "-", "")
	s = strings.ReplaceAll(s, "_", "")
	s = strings.ReplaceAll(s, "/", "")
	return s
}

// New constructs an adapter instance for the given protocol tag.
func New(protocol string, cfg Config) (adapter.Adapter, error) {
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = time.Second
	}

	switch normalize(protocol) {
	case "OPCUA":
		return opcua.NewAdapter(), nil
	case "MODBUSTCP", "REGISTERTCP":
		return modbus.NewTCPAdapter(timeout), nil
	case "MODBUSRTU", "MODBUSSERIAL", "REGISTERSERIAL":
		return modbus.NewSerialAdapter(cfg.SerialDialer, timeout), nil
	case "MQTT", "PUBSUB":
		return mqtt.NewAdapter(cfg.MQTTClient), nil
	case "DNP3", "UTILITYPOLL":
		return dnp3.NewAdapter(timeout), nil
	case "HARTIP", "INSTRUMENTUDP":
		return hartip.NewAdapter(timeout), nil
	case "PLCTAG", "ETHERNETIP", "EIP":
		return plctag.NewAdapter(timeout), nil
	default:
		return nil, adapter.NewError("create_adapter", adapter.KindUnsupportedProtocol,
			fmt.Errorf("unsupported protocol %q", protocol))
	}
}
