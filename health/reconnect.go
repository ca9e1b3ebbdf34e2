package health

import (
	"context"
	"errors"
	"fmt"

	"github.com/scadaflow/ingestcore/adapter"
)

// Logger is the structured logging seam shared across subsystems.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// ConnectFunc attempts one connection and reports success or failure.
type ConnectFunc func(ctx context.Context) error

// Reconnector drives ConnectFunc against a Monitor's backoff and circuit
// breaker state until it succeeds, the context is canceled, or max retries
// is reached.
type Reconnector struct {
	monitor *Monitor
	logger  Logger
}

// NewReconnector builds a Reconnector bound to monitor.
func NewReconnector(monitor *Monitor, logger Logger) *Reconnector {
	return &Reconnector{monitor: monitor, logger: logger}
}

// Run loops: if the breaker disallows an attempt, sleep ProbeInterval; if
// max retries is reached, give up with an error; otherwise record the
// attempt and call connect. It returns nil on the first successful
// connect, or ctx.Err() if the context is canceled while waiting. A connect
// error carrying a non-retryable adapter.Kind ends the loop at once and is
// returned wrapped, without a further attempt.
func (r *Reconnector) Run(ctx context.Context, connect ConnectFunc) error {
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		if !r.monitor.CanAttempt() {
			if r.logger != nil {
				r.logger.Debug("reconnect_waiting_on_circuit_breaker",
					"connection_id", r.monitor.connectionID)
			}
			if err := sleepCtx(ctx, ProbeInterval); err != nil {
				return err
			}
			continue
		}

		if r.monitor.IsMaxRetriesReached() {
			if r.logger != nil {
				r.logger.Error("reconnect_giving_up",
					"connection_id", r.monitor.connectionID)
			}
			return fmt.Errorf("connection %s: maximum retry attempts reached", r.monitor.connectionID)
		}

		r.monitor.RecordAttempt()

		if err := connect(ctx); err != nil {
			r.monitor.RecordFailure()
			var aerr *adapter.Error
			if errors.As(err, &aerr) && !aerr.Kind.Retryable() {
				if r.logger != nil {
					r.logger.Error("reconnect_fatal_error",
						"connection_id", r.monitor.connectionID, "error", err)
				}
				return fmt.Errorf("connection %s: %w", r.monitor.connectionID, err)
			}
			backoff := r.monitor.NextBackoff()
			if r.logger != nil {
				r.logger.Warn("reconnect_attempt_failed",
					"connection_id", r.monitor.connectionID,
					"error", err, "backoff_ms", backoff.Milliseconds())
			}
			if err := sleepCtx(ctx, backoff); err != nil {
				return err
			}
			continue
		}

		r.monitor.RecordSuccess()
		if r.logger != nil {
			r.logger.Info("reconnect_succeeded", "connection_id", r.monitor.connectionID)
		}
		return nil
	}
}
