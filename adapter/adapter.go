package adapter

import (
	"context"

	"github.com/scadaflow/ingestcore/reading"
)

// Adapter is a stateful, non-re-entrant translation of one device protocol
// into a uniform reading stream. Implementations are not required to be safe
// for concurrent use by more than one caller. The tenant router polls each
// adapter from at most one goroutine at a time: a tick polls all adapters
// concurrently, one goroutine per adapter, and waits for every poll to
// finish before the next tick.
type Adapter interface {
	// Connect establishes transport and authenticates where applicable,
	// transitioning the adapter into a state where Subscribe is legal.
	// Connecting an already-connected adapter is an error.
	Connect(ctx context.Context, cfg reading.ConnectionConfig) error

	// Subscribe registers server-side notifications for subscription-capable
	// protocols, or validates and stores the mapping list for poll-based
	// protocols. Every mapping's address must be validated against the
	// protocol's grammar, and the whole call must fail with a
	// KindInvalidAddress error before any side effect, if any mapping is
	// malformed.
	Subscribe(ctx context.Context, mappings []reading.TagMapping) error

	// Poll drains buffered notifications (subscription protocols,
	// non-blocking, empty is a legal success) or issues one round of reads,
	// one per mapping (polling protocols). Partial success is allowed: as
	// many readings as succeeded are returned even if some mappings failed.
	Poll(ctx context.Context) ([]reading.Reading, error)

	// Disconnect releases transport and credentials. Always safe to call in
	// any state and must be idempotent.
	Disconnect(ctx context.Context) error

	// ProtocolName is a stable constant identifying the protocol, used as
	// Reading.SourceProtocol.
	ProtocolName() string

	// IsConnected reports whether Connect has succeeded and Disconnect has
	// not since been called.
	IsConnected() bool
}
