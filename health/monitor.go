// Package health tracks per-connection status and drives reconnection with
// exponential backoff behind a circuit breaker.
package health

import (
	"math"
	"sync"
	"time"
)

// ConnectionStatus is the externally visible state of one connection.
type ConnectionStatus string

const (
	StatusConnected    ConnectionStatus = "connected"
	StatusDisconnected ConnectionStatus = "disconnected"
	StatusReconnecting ConnectionStatus = "reconnecting"
	StatusCircuitOpen  ConnectionStatus = "circuit_open"
)

// BreakerState is the circuit breaker's own state, distinct from
// ConnectionStatus: a breaker transitions Open->HalfOpen on a timeout while
// the connection itself is still reported CircuitOpen until a probe
// succeeds or fails.
type BreakerState string

const (
	BreakerClosed   BreakerState = "closed"
	BreakerOpen     BreakerState = "open"
	BreakerHalfOpen BreakerState = "half_open"
)

// Config parameterizes backoff and circuit breaker behavior for one
// connection's monitor.
type Config struct {
	InitialBackoff    time.Duration
	MaxBackoff        time.Duration
	BackoffMultiplier float64
	MaxRetryAttempts  uint32 // 0 = infinite
	CircuitThreshold  uint32
	CircuitTimeout    time.Duration
}

// DefaultConfig mirrors the upstream reconnection defaults.
func DefaultConfig() Config {
	return Config{
		InitialBackoff:    time.Second,
		MaxBackoff:        60 * time.Second,
		BackoffMultiplier: 2.0,
		MaxRetryAttempts:  10,
		CircuitThreshold:  5,
		CircuitTimeout:    5 * time.Minute,
	}
}

// ProbeInterval is how long the reconnection driver sleeps between checks
// while the breaker disallows an attempt.
const ProbeInterval = 10 * time.Second

// Snapshot is a point-in-time, lock-free copy of a Monitor's state.
type Snapshot struct {
	ConnectionID         string
	TenantID             string
	Status               ConnectionStatus
	BreakerState         BreakerState
	LastSuccess          time.Time
	LastAttempt          time.Time
	ConsecutiveFailures  uint32
	TotalFailures        uint64
	TotalSuccesses       uint64
}

// Monitor tracks one connection's health and circuit breaker state. All
// mutation goes through its Record*/CanAttempt methods; callers never
// touch the underlying state directly.
type Monitor struct {
	connectionID string
	tenantID     string
	cfg          Config

	mu                 sync.Mutex
	status             ConnectionStatus
	breaker            BreakerState
	circuitOpenedAt    time.Time
	lastSuccess        time.Time
	lastAttempt        time.Time
	consecutiveFailures uint32
	totalFailures       uint64
	totalSuccesses      uint64
}

// New constructs a Monitor in the Disconnected/Closed initial state.
func New(connectionID, tenantID string, cfg Config) *Monitor {
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = DefaultConfig().InitialBackoff
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = DefaultConfig().MaxBackoff
	}
	if cfg.BackoffMultiplier <= 0 {
		cfg.BackoffMultiplier = DefaultConfig().BackoffMultiplier
	}
	if cfg.CircuitThreshold == 0 {
		cfg.CircuitThreshold = DefaultConfig().CircuitThreshold
	}
	if cfg.CircuitTimeout <= 0 {
		cfg.CircuitTimeout = DefaultConfig().CircuitTimeout
	}
	return &Monitor{
		connectionID: connectionID,
		tenantID:     tenantID,
		cfg:          cfg,
		status:       StatusDisconnected,
		breaker:      BreakerClosed,
	}
}

// RecordSuccess marks the connection healthy and closes the breaker if it
// was open.
func (m *Monitor) RecordSuccess() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.lastSuccess = time.Now()
	m.consecutiveFailures = 0
	m.totalSuccesses++
	m.status = StatusConnected

	if m.breaker != BreakerClosed {
		m.breaker = BreakerClosed
		m.circuitOpenedAt = time.Time{}
	}
}

// RecordFailure counts a failure. A Closed breaker opens once consecutive
// failures reach the configured threshold; a HalfOpen breaker reopens on
// the first failed probe, re-stamping the time it opened.
func (m *Monitor) RecordFailure() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.consecutiveFailures++
	m.totalFailures++
	m.status = StatusDisconnected

	if m.breaker == BreakerHalfOpen ||
		(m.breaker == BreakerClosed && m.consecutiveFailures >= m.cfg.CircuitThreshold) {
		m.breaker = BreakerOpen
		m.status = StatusCircuitOpen
		m.circuitOpenedAt = time.Now()
	}
}

// RecordAttempt stamps the reconnection driver's attempt time.
func (m *Monitor) RecordAttempt() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastAttempt = time.Now()
	m.status = StatusReconnecting
}

// CanAttempt reports whether the breaker currently permits a connection
// attempt, transitioning Open->HalfOpen in place once CircuitTimeout has
// elapsed since the breaker opened.
func (m *Monitor) CanAttempt() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch m.breaker {
	case BreakerClosed, BreakerHalfOpen:
		return true
	case BreakerOpen:
		if time.Since(m.circuitOpenedAt) >= m.cfg.CircuitTimeout {
			m.breaker = BreakerHalfOpen
			m.consecutiveFailures = 0
			return true
		}
		return false
	default:
		return false
	}
}

// NextBackoff returns the delay before the next reconnection attempt:
// min(MaxBackoff, InitialBackoff * BackoffMultiplier^consecutiveFailures).
func (m *Monitor) NextBackoff() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()

	delay := float64(m.cfg.InitialBackoff) * math.Pow(m.cfg.BackoffMultiplier, float64(m.consecutiveFailures))
	if delay > float64(m.cfg.MaxBackoff) {
		return m.cfg.MaxBackoff
	}
	return time.Duration(delay)
}

// IsMaxRetriesReached reports whether consecutive failures have reached
// MaxRetryAttempts. MaxRetryAttempts of 0 means unlimited retries.
func (m *Monitor) IsMaxRetriesReached() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cfg.MaxRetryAttempts == 0 {
		return false
	}
	return m.consecutiveFailures >= m.cfg.MaxRetryAttempts
}

// UptimeRatio returns total_successes / (total_successes + total_failures),
// or 0 if neither has ever been recorded.
func (m *Monitor) UptimeRatio() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	total := m.totalSuccesses + m.totalFailures
	if total == 0 {
		return 0
	}
	return float64(m.totalSuccesses) / float64(total)
}

// Snapshot returns a consistent copy of the monitor's current state.
func (m *Monitor) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Snapshot{
		ConnectionID:        m.connectionID,
		TenantID:            m.tenantID,
		Status:              m.status,
		BreakerState:        m.breaker,
		LastSuccess:         m.lastSuccess,
		LastAttempt:         m.lastAttempt,
		ConsecutiveFailures: m.consecutiveFailures,
		TotalFailures:       m.totalFailures,
		TotalSuccesses:      m.totalSuccesses,
	}
}
