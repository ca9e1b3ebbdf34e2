// Package reading defines the canonical interchange unit produced by every
// protocol adapter and consumed by the validator, aggregator, and timestore
// writer.
package reading

import "time"

// Quality is a three-way trust indicator for a Reading. Adapters map
// protocol-native quality flags onto this enum; unknown protocol states must
// map to Uncertain, never Good.
type Quality string

const (
	QualityGood      Quality = "good"
	QualityBad       Quality = "bad"
	QualityUncertain Quality = "uncertain"
)

// Valid reports whether q is one of the three defined quality values.
func (q Quality) Valid() bool {
	switch q {
	case QualityGood, QualityBad, QualityUncertain:
		return true
	default:
		return false
	}
}

// Reading is immutable once produced. TenantID and WellID are always stamped
// from the owning TagMapping, regardless of what the protocol delivers.
type Reading struct {
	Timestamp       time.Time
	TenantID        string
	WellID          string
	TagName         string
	Value           float64
	Quality         Quality
	SourceProtocol  string
}

// TagMapping is configuration for one point on one connection. TenantID is
// not present on the catalog row for tag_mappings; the router stamps it from
// the owning ConnectionConfig before the mapping reaches an adapter. A
// mapping with an empty TenantID must never be passed to subscribe/poll.
type TagMapping struct {
	TagID      string
	TenantID   string
	WellID     string
	TagName    string
	Address    string
	DataType   string
}

// ConnectionConfig is configuration for one device link, immutable for the
// lifetime of the adapter instance that owns it.
type ConnectionConfig struct {
	ConnectionID   string
	TenantID       string
	ProtocolTag    string
	EndpointURL    string
	SecurityMode   string
	SecurityPolicy string
	Username       string
	Password       string
	StationAddress int    // serial fieldbus slave/station address
	ClientID       string // pub/sub client id
	QoS            int    // pub/sub QoS
}
