// Package aggregator buffers readings per tenant in memory and flushes them
// to a writer on a time or size trigger.
package aggregator

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/scadaflow/ingestcore/observability"
	"github.com/scadaflow/ingestcore/reading"
)

// Logger is the structured logging seam shared across subsystems.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// Writer persists one tenant's batch of readings. Implemented by the
// timestore package; accepted here as an interface so tests can substitute
// a fake.
type Writer interface {
	WriteBatch(ctx context.Context, tenantID string, readings []reading.Reading) error
}

// MetricsSink receives the two gauges/histograms the aggregator updates.
// Optional: a nil sink is a no-op.
type MetricsSink interface {
	ObserveBatchSize(tenantID string, size int)
	SetBufferSize(tenantID string, size int)
}

// Config controls flush timing for one aggregator.
type Config struct {
	FlushInterval time.Duration
	MaxBufferSize int
}

// DefaultConfig matches the environment defaults (AGGREGATION_BUFFER_MS=5000,
// MAX_BUFFER_SIZE=10000).
func DefaultConfig() Config {
	return Config{
		FlushInterval: 5 * time.Second,
		MaxBufferSize: 10000,
	}
}

// Stats is a point-in-time snapshot returned by the control plane's
// GetAggregatorStats operation.
type Stats struct {
	TenantID         string
	BufferSize       int
	TimeSinceLastFlush time.Duration
}

// Aggregator is a bounded in-memory buffer of readings for one tenant plus
// a background flusher. Concurrent Add calls and the ticker serialize
// through mu; Flush releases mu before handing the extracted batch to the
// writer, so writer I/O never happens while the lock is held.
type Aggregator struct {
	tenantID string
	cfg      Config
	writer   Writer
	metrics  MetricsSink
	logger   Logger

	mu        sync.Mutex
	buffer    []reading.Reading
	lastFlush time.Time

	stopOnce sync.Once
	done     chan struct{}
	wg       sync.WaitGroup
}

// New constructs an Aggregator for tenantID and starts its background
// flush ticker. Call Stop to shut the ticker down.
func New(tenantID string, cfg Config, writer Writer, metrics MetricsSink, logger Logger) *Aggregator {
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = DefaultConfig().FlushInterval
	}
	if cfg.MaxBufferSize <= 0 {
		cfg.MaxBufferSize = DefaultConfig().MaxBufferSize
	}
	a := &Aggregator{
		tenantID:  tenantID,
		cfg:       cfg,
		writer:    writer,
		metrics:   metrics,
		logger:    logger,
		lastFlush: time.Now(),
		done:      make(chan struct{}),
	}
	a.wg.Add(1)
	go a.tickerLoop()
	return a
}

func (a *Aggregator) tickerLoop() {
	defer a.wg.Done()
	ticker := time.NewTicker(a.cfg.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			a.mu.Lock()
			elapsed := time.Since(a.lastFlush)
			empty := len(a.buffer) == 0
			a.mu.Unlock()
			if empty || elapsed < a.cfg.FlushInterval {
				continue
			}
			a.flush(context.Background(), "time")
		case <-a.done:
			return
		}
	}
}

// Add appends a reading to the tenant's buffer. If the buffer reaches
// MaxBufferSize, a size-driven flush is triggered before Add returns. A
// reading stamped with a different tenant id than this aggregator's own is
// logged and dropped rather than buffered; this should never happen given
// the router's single-choke-point tenant stamping, so seeing it logged
// points at a stamping bug upstream.
func (a *Aggregator) Add(ctx context.Context, r reading.Reading) {
	if r.TenantID != "" && r.TenantID != a.tenantID {
		if a.logger != nil {
			a.logger.Error("tenant_id_mismatch", "aggregator_tenant_id", a.tenantID, "reading_tenant_id", r.TenantID)
		}
		return
	}

	a.mu.Lock()
	a.buffer = append(a.buffer, r)
	size := len(a.buffer)
	a.setBufferSizeLocked(size)
	full := size >= a.cfg.MaxBufferSize
	a.mu.Unlock()

	if full {
		a.flush(ctx, "size")
	}
}

func (a *Aggregator) setBufferSizeLocked(size int) {
	if a.metrics != nil {
		a.metrics.SetBufferSize(a.tenantID, size)
	}
}

// Flush forces an immediate flush regardless of buffer size or elapsed
// time. Graceful shutdown goes through Stop, which does its own final
// flush.
func (a *Aggregator) Flush(ctx context.Context) {
	a.flush(ctx, "manual")
}

// flush extracts the whole buffer under the lock, then hands it to the
// writer without holding the lock. A writer failure drops the batch; the
// aggregator does not spill to disk.
func (a *Aggregator) flush(ctx context.Context, reason string) {
	a.mu.Lock()
	if len(a.buffer) == 0 {
		a.mu.Unlock()
		return
	}
	batch := a.buffer
	a.buffer = nil
	a.mu.Unlock()

	ctx, span := observability.StartSpan(ctx, "aggregator.flush", a.tenantID,
		attribute.String("reason", reason), attribute.Int("batch_size", len(batch)))
	defer span.End()

	if a.metrics != nil {
		a.metrics.SetBufferSize(a.tenantID, 0)
	}

	if err := a.writer.WriteBatch(ctx, a.tenantID, batch); err != nil {
		if a.logger != nil {
			a.logger.Error("aggregator_flush_failed", "tenant_id", a.tenantID,
				"reason", reason, "batch_size", len(batch), "error", err)
		}
		return
	}

	if a.metrics != nil {
		a.metrics.ObserveBatchSize(a.tenantID, len(batch))
	}

	a.mu.Lock()
	a.lastFlush = time.Now()
	a.mu.Unlock()

	if a.logger != nil {
		a.logger.Debug("aggregator_flushed", "tenant_id", a.tenantID,
			"reason", reason, "batch_size", len(batch))
	}
}

// Stats returns a snapshot of the current buffer size and time since the
// last successful flush.
func (a *Aggregator) Stats() Stats {
	a.mu.Lock()
	defer a.mu.Unlock()
	return Stats{
		TenantID:           a.tenantID,
		BufferSize:         len(a.buffer),
		TimeSinceLastFlush: time.Since(a.lastFlush),
	}
}

// Stop halts the background ticker and performs one final flush of
// whatever remains buffered.
func (a *Aggregator) Stop(ctx context.Context) {
	a.stopOnce.Do(func() {
		close(a.done)
	})
	a.wg.Wait()
	a.flush(ctx, "shutdown")
}
