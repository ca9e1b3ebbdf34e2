// Package opcua implements an OPC-UA protocol adapter, addressed by a
// vendor node identifier passed straight through to the server (no parsing
// beyond syntactic validation — the server is the authority on whether a
// node exists). Built on gopcua/opcua, a pure-Go OPC-UA client.
package opcua

import (
	"fmt"

	"github.com/gopcua/opcua/ua"

	"github.com/scadaflow/ingestcore/adapter"
)

// ParseAddress validates that address is a syntactically well-formed OPC-UA
// NodeId string (e.g. "ns=2;s=Temperature", "ns=3;i=1001") and returns the
// parsed identifier. The address is otherwise passed through unchanged; the
// server resolves what it names.
func ParseAddress(address string) (*ua.NodeID, error) {
	id, err := ua.ParseNodeID(address)
	if err != nil {
		return nil, adapter.NewError("parse_address", adapter.KindInvalidAddress,
			fmt.Errorf("invalid OPC-UA node id %q: %w", address, err))
	}
	return id, nil
}
