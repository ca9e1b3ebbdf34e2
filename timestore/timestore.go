// Package timestore writes validated readings into each tenant's own
// time-series store and serves the bounded historical query used by the
// control plane.
package timestore

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"go.opentelemetry.io/otel/attribute"

	"github.com/scadaflow/ingestcore/observability"
	"github.com/scadaflow/ingestcore/reading"
)

const (
	writePoolMaxConns = 5
	readPoolMaxConns  = 2
	queryLimit        = 10000
)

// Logger is the structured logging seam shared across subsystems.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// MetricsSink receives the write-latency histogram.
type MetricsSink interface {
	ObserveWriteLatency(tenantID string, d time.Duration)
}

// TenantDatabaseResolver looks up a tenant's own store connection string
// from the master catalog. Satisfied by the catalog package.
type TenantDatabaseResolver interface {
	TenantDatabaseURL(ctx context.Context, tenantID string) (string, error)
}

// StoredReading is one row as persisted in and retrieved from
// scada_readings.
type StoredReading struct {
	WellID    string
	TagName   string
	Timestamp time.Time
	Value     float64
	Quality   reading.Quality
}

// Writer resolves per-tenant connection pools on demand and performs bulk
// writes and bounded historical queries against each tenant's store.
type Writer struct {
	resolver TenantDatabaseResolver
	metrics  MetricsSink
	logger   Logger

	mu         sync.Mutex
	writePools map[string]*pgxpool.Pool
	readPools  map[string]*pgxpool.Pool
}

// New constructs a Writer. Per-tenant pools are opened lazily on first use
// and kept for the lifetime of the Writer.
func New(resolver TenantDatabaseResolver, metrics MetricsSink, logger Logger) *Writer {
	return &Writer{
		resolver:   resolver,
		metrics:    metrics,
		logger:     logger,
		writePools: make(map[string]*pgxpool.Pool),
		readPools:  make(map[string]*pgxpool.Pool),
	}
}

func (w *Writer) pool(ctx context.Context, tenantID string, pools map[string]*pgxpool.Pool, maxConns int32) (*pgxpool.Pool, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if p, ok := pools[tenantID]; ok {
		return p, nil
	}

	dbURL, err := w.resolver.TenantDatabaseURL(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("resolve tenant database url: %w", err)
	}

	poolCfg, err := pgxpool.ParseConfig(dbURL)
	if err != nil {
		return nil, fmt.Errorf("parse tenant database url: %w", err)
	}
	poolCfg.MaxConns = maxConns

	p, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("open tenant connection pool: %w", err)
	}
	pools[tenantID] = p
	return p, nil
}

// WriteBatch bulk-inserts readings for one tenant as a single statement
// over five parallel arrays, unrolled into rows by the store's array
// expansion. Empty input is a no-op. A failed insert does not leave a
// partial batch: the store rejects the whole statement atomically.
func (w *Writer) WriteBatch(ctx context.Context, tenantID string, readings []reading.Reading) error {
	if len(readings) == 0 {
		return nil
	}

	ctx, span := observability.StartSpan(ctx, "timestore.write_batch", tenantID,
		attribute.Int("rows", len(readings)))
	defer span.End()

	pool, err := w.pool(ctx, tenantID, w.writePools, writePoolMaxConns)
	if err != nil {
		return err
	}

	wellIDs := make([]string, len(readings))
	tagNames := make([]string, len(readings))
	timestamps := make([]time.Time, len(readings))
	values := make([]float64, len(readings))
	qualities := make([]string, len(readings))

	for i, r := range readings {
		wellIDs[i] = r.WellID
		tagNames[i] = r.TagName
		timestamps[i] = r.Timestamp
		values[i] = r.Value
		qualities[i] = string(r.Quality)
	}

	start := time.Now()
	_, err = pool.Exec(ctx, `
		INSERT INTO scada_readings (well_id, tag_node_id, timestamp, value, quality)
		SELECT * FROM UNNEST($1::uuid[], $2::text[], $3::timestamptz[], $4::double precision[], $5::text[])
	`, wellIDs, tagNames, timestamps, values, qualities)
	elapsed := time.Since(start)

	if w.metrics != nil {
		w.metrics.ObserveWriteLatency(tenantID, elapsed)
	}

	if err != nil {
		return fmt.Errorf("bulk insert readings: %w", err)
	}

	if w.logger != nil {
		w.logger.Debug("timestore_write_batch", "tenant_id", tenantID,
			"rows", len(readings), "elapsed_ms", elapsed.Milliseconds())
	}
	return nil
}

// QueryReadings returns up to 10 000 readings for one well within
// [startTime, endTime], newest first.
func (w *Writer) QueryReadings(ctx context.Context, tenantID, wellID string, startTime, endTime time.Time) ([]StoredReading, error) {
	pool, err := w.pool(ctx, tenantID, w.readPools, readPoolMaxConns)
	if err != nil {
		return nil, err
	}

	rows, err := pool.Query(ctx, `
		SELECT well_id, tag_node_id, timestamp, value, quality
		FROM scada_readings
		WHERE well_id = $1 AND timestamp >= $2 AND timestamp <= $3
		ORDER BY timestamp DESC
		LIMIT $4
	`, wellID, startTime, endTime, queryLimit)
	if err != nil {
		return nil, fmt.Errorf("query readings: %w", err)
	}
	defer rows.Close()

	var out []StoredReading
	for rows.Next() {
		var sr StoredReading
		var quality string
		if err := rows.Scan(&sr.WellID, &sr.TagName, &sr.Timestamp, &sr.Value, &quality); err != nil {
			return nil, fmt.Errorf("scan reading row: %w", err)
		}
		sr.Quality = reading.Quality(quality)
		out = append(out, sr)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate reading rows: %w", err)
	}
	return out, nil
}

// Close releases every per-tenant connection pool opened by this writer.
func (w *Writer) Close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, p := range w.writePools {
		p.Close()
	}
	for _, p := range w.readPools {
		p.Close()
	}
	w.writePools = make(map[string]*pgxpool.Pool)
	w.readPools = make(map[string]*pgxpool.Pool)
}
