// Package adapter defines the protocol adapter contract: a single
// capability set — connect, subscribe, poll, disconnect, plus the pure
// inspectors protocol_name and is_connected — behind which every supported
// device protocol hides. Do not add protocol-specific methods to the
// interface; a new protocol is a new factory entry and a new type
// satisfying Adapter, nothing else.
package adapter

import "fmt"

// Kind classifies an adapter error for the health monitor and the router.
// Kinds are distinct at the type level so callers can branch on them with
// errors.As instead of string matching.
type Kind int

const (
	// KindConnectionFailed through KindIO are transient/retryable: they drive
	// the health monitor's failure counter and backoff.
	KindConnectionFailed Kind = iota
	KindNotConnected
	KindTimeout
	KindIO

	// KindReadFailed through KindProtocolSpecific are protocol-level,
	// retryable in the same way as the transient kinds above.
	KindReadFailed
	KindSubscriptionFailed
	KindProtocolSpecific

	// KindAuthenticationFailed through KindInvalidAddress are fatal for the
	// subject (the connection, or just the one mapping for InvalidAddress);
	// they never drive a retry.
	KindAuthenticationFailed
	KindInvalidConfiguration
	KindUnsupportedProtocol
	KindInvalidAddress
)

func (k Kind) String() string {
	switch k {
	case KindConnectionFailed:
		return "connection_failed"
	case KindNotConnected:
		return "not_connected"
	case KindTimeout:
		return "timeout"
	case KindIO:
		return "io"
	case KindReadFailed:
		return "read_failed"
	case KindSubscriptionFailed:
		return "subscription_failed"
	case KindProtocolSpecific:
		return "protocol_specific"
	case KindAuthenticationFailed:
		return "authentication_failed"
	case KindInvalidConfiguration:
		return "invalid_configuration"
	case KindUnsupportedProtocol:
		return "unsupported_protocol"
	case KindInvalidAddress:
		return "invalid_address"
	default:
		return "unknown"
	}
}

// Retryable reports whether a failure of this kind should drive the health
// monitor's backoff/circuit-breaker machinery (transient and protocol-level
// kinds) versus being fatal for the connection or mapping (configuration
// kinds).
func (k Kind) Retryable() bool {
	return k <= KindProtocolSpecific
}

// Error is the error type every adapter operation returns on failure.
type Error struct {
	Kind    Kind
	Op      string // connect, subscribe, poll, disconnect
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("adapter: %s: %s: %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("adapter: %s: %s", e.Op, e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

// NewError constructs an *Error, wrapping cause (which may be nil).
func NewError(op string, kind Kind, cause error) *Error {
	return &Error{Op: op, Kind: kind, Err: cause}
}
