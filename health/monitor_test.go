package health

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMonitorStartsDisconnectedClosed(t *testing.T) {
	m := New("conn-1", "tenant-1", DefaultConfig())
	s := m.Snapshot()
	assert.Equal(t, StatusDisconnected, s.Status)
	assert.Equal(t, BreakerClosed, s.BreakerState)
}

func TestRecordSuccess(t *testing.T) {
	m := New("conn-1", "tenant-1", DefaultConfig())
	m.RecordSuccess()
	s := m.Snapshot()
	assert.Equal(t, StatusConnected, s.Status)
	assert.Equal(t, uint64(1), s.TotalSuccesses)
	assert.Equal(t, uint32(0), s.ConsecutiveFailures)
}

func TestRecordFailure(t *testing.T) {
	m := New("conn-1", "tenant-1", DefaultConfig())
	m.RecordFailure()
	s := m.Snapshot()
	assert.Equal(t, StatusDisconnected, s.Status)
	assert.Equal(t, uint64(1), s.TotalFailures)
	assert.Equal(t, uint32(1), s.ConsecutiveFailures)
}

func TestCircuitBreakerOpensAtThreshold(t *testing.T) {
	cfg := DefaultConfig()
	cfg.CircuitThreshold = 3
	m := New("conn-1", "tenant-1", cfg)

	for i := 0; i < 3; i++ {
		m.RecordFailure()
	}

	s := m.Snapshot()
	assert.Equal(t, BreakerOpen, s.BreakerState)
	assert.Equal(t, StatusCircuitOpen, s.Status)
}

func TestCanAttemptDeniedWhileCircuitOpen(t *testing.T) {
	cfg := DefaultConfig()
	cfg.CircuitThreshold = 1
	cfg.CircuitTimeout = time.Hour
	m := New("conn-1", "tenant-1", cfg)

	m.RecordFailure()
	assert.False(t, m.CanAttempt(), "expected CanAttempt to be false immediately after the breaker opens")
}

func TestCanAttemptTransitionsToHalfOpenAfterTimeout(t *testing.T) {
	cfg := DefaultConfig()
	cfg.CircuitThreshold = 1
	cfg.CircuitTimeout = 10 * time.Millisecond
	m := New("conn-1", "tenant-1", cfg)

	m.RecordFailure()
	time.Sleep(20 * time.Millisecond)

	require.True(t, m.CanAttempt(), "expected CanAttempt to be true once the circuit timeout has elapsed")
	s := m.Snapshot()
	assert.Equal(t, BreakerHalfOpen, s.BreakerState)
	assert.Equal(t, uint32(0), s.ConsecutiveFailures, "expected consecutive failures reset on half-open transition")
}

func TestSuccessClosesOpenBreaker(t *testing.T) {
	cfg := DefaultConfig()
	cfg.CircuitThreshold = 1
	m := New("conn-1", "tenant-1", cfg)

	m.RecordFailure()
	m.RecordSuccess()

	s := m.Snapshot()
	assert.Equal(t, BreakerClosed, s.BreakerState)
	assert.Equal(t, StatusConnected, s.Status)
}

func TestNextBackoffExponential(t *testing.T) {
	cfg := DefaultConfig()
	cfg.InitialBackoff = 100 * time.Millisecond
	cfg.BackoffMultiplier = 2.0
	cfg.MaxBackoff = time.Second
	cfg.CircuitThreshold = 1000
	m := New("conn-1", "tenant-1", cfg)

	m.RecordFailure()
	assert.Equal(t, 200*time.Millisecond, m.NextBackoff())

	m.RecordFailure()
	assert.Equal(t, 400*time.Millisecond, m.NextBackoff())
}

func TestNextBackoffClampsToMax(t *testing.T) {
	cfg := DefaultConfig()
	cfg.InitialBackoff = 100 * time.Millisecond
	cfg.BackoffMultiplier = 10.0
	cfg.MaxBackoff = 500 * time.Millisecond
	cfg.CircuitThreshold = 1000
	m := New("conn-1", "tenant-1", cfg)

	for i := 0; i < 5; i++ {
		m.RecordFailure()
	}
	assert.Equal(t, 500*time.Millisecond, m.NextBackoff(), "expected backoff clamped to max")
}

func TestIsMaxRetriesReached(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxRetryAttempts = 3
	cfg.CircuitThreshold = 1000
	m := New("conn-1", "tenant-1", cfg)

	for i := 0; i < 2; i++ {
		m.RecordFailure()
	}
	assert.False(t, m.IsMaxRetriesReached(), "expected max retries not yet reached")

	m.RecordFailure()
	assert.True(t, m.IsMaxRetriesReached(), "expected max retries reached at threshold")
}

func TestIsMaxRetriesReachedZeroMeansInfinite(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxRetryAttempts = 0
	cfg.CircuitThreshold = 1000
	m := New("conn-1", "tenant-1", cfg)

	for i := 0; i < 1000; i++ {
		m.RecordFailure()
	}
	assert.False(t, m.IsMaxRetriesReached(), "expected unlimited retries when MaxRetryAttempts is 0")
}

func TestUptimeRatio(t *testing.T) {
	m := New("conn-1", "tenant-1", DefaultConfig())
	assert.Equal(t, float64(0), m.UptimeRatio(), "uptime with no data")

	m.RecordSuccess()
	m.RecordSuccess()
	m.RecordSuccess()
	m.RecordFailure()

	assert.Equal(t, 0.75, m.UptimeRatio())
}
