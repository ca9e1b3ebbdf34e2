package aggregator

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scadaflow/ingestcore/reading"
)

type fakeWriter struct {
	mu      sync.Mutex
	batches [][]reading.Reading
	fail    bool
}

func (w *fakeWriter) WriteBatch(ctx context.Context, tenantID string, readings []reading.Reading) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.fail {
		return errFakeWrite
	}
	cp := make([]reading.Reading, len(readings))
	copy(cp, readings)
	w.batches = append(w.batches, cp)
	return nil
}

func (w *fakeWriter) batchCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.batches)
}

func (w *fakeWriter) lastBatch() []reading.Reading {
	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.batches) == 0 {
		return nil
	}
	return w.batches[len(w.batches)-1]
}

type errString string

func (e errString) Error() string { return string(e) }

const errFakeWrite = errString("write failed")

func mkReading(tag string, value float64) reading.Reading {
	return reading.Reading{TenantID: "tenant-1", TagName: tag, Value: value, Quality: reading.QualityGood}
}

func TestAddTriggersSizeFlush(t *testing.T) {
	w := &fakeWriter{}
	a := New("tenant-1", Config{FlushInterval: time.Hour, MaxBufferSize: 3}, w, nil, nil)
	defer a.Stop(context.Background())

	a.Add(context.Background(), mkReading("oil_rate", 1))
	a.Add(context.Background(), mkReading("oil_rate", 2))
	require.Equal(t, 0, w.batchCount(), "expected no flush before reaching max buffer size")

	a.Add(context.Background(), mkReading("oil_rate", 3))

	require.Equal(t, 1, w.batchCount(), "expected exactly one flush at max buffer size")
	assert.Len(t, w.lastBatch(), 3)
	assert.Equal(t, 0, a.Stats().BufferSize, "expected empty buffer after flush")
}

func TestManualFlushIsNoOpOnEmptyBuffer(t *testing.T) {
	w := &fakeWriter{}
	a := New("tenant-1", DefaultConfig(), w, nil, nil)
	defer a.Stop(context.Background())

	a.Flush(context.Background())
	assert.Equal(t, 0, w.batchCount(), "expected no write for an empty buffer")
}

func TestFailedWriteDropsBatchButKeepsBufferEmpty(t *testing.T) {
	w := &fakeWriter{fail: true}
	a := New("tenant-1", Config{FlushInterval: time.Hour, MaxBufferSize: 1}, w, nil, nil)
	defer a.Stop(context.Background())

	a.Add(context.Background(), mkReading("oil_rate", 1))

	require.Equal(t, 0, w.batchCount(), "expected no successful write recorded")
	assert.Equal(t, 0, a.Stats().BufferSize, "expected buffer cleared even though the write failed")
}

func TestStopFlushesRemainingBuffer(t *testing.T) {
	w := &fakeWriter{}
	a := New("tenant-1", Config{FlushInterval: time.Hour, MaxBufferSize: 100}, w, nil, nil)

	a.Add(context.Background(), mkReading("oil_rate", 1))
	a.Add(context.Background(), mkReading("gas_rate", 2))

	a.Stop(context.Background())

	require.Equal(t, 1, w.batchCount(), "expected shutdown flush to write one batch")
	assert.Len(t, w.lastBatch(), 2)
}

func TestTimeTriggeredFlush(t *testing.T) {
	w := &fakeWriter{}
	a := New("tenant-1", Config{FlushInterval: 20 * time.Millisecond, MaxBufferSize: 1000}, w, nil, nil)
	defer a.Stop(context.Background())

	a.Add(context.Background(), mkReading("oil_rate", 1))

	deadline := time.Now().Add(2 * time.Second)
	for w.batchCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}

	require.Equal(t, 1, w.batchCount(), "expected the ticker to flush the buffer")
}

func TestStats(t *testing.T) {
	w := &fakeWriter{}
	a := New("tenant-1", Config{FlushInterval: time.Hour, MaxBufferSize: 1000}, w, nil, nil)
	defer a.Stop(context.Background())

	a.Add(context.Background(), mkReading("oil_rate", 1))
	a.Add(context.Background(), mkReading("oil_rate", 2))

	stats := a.Stats()
	assert.Equal(t, "tenant-1", stats.TenantID)
	assert.Equal(t, 2, stats.BufferSize)
	assert.GreaterOrEqual(t, stats.TimeSinceLastFlush, time.Duration(0))
}

func TestAddDropsMismatchedTenantReading(t *testing.T) {
	w := &fakeWriter{}
	a := New("tenant-1", Config{FlushInterval: time.Hour, MaxBufferSize: 1000}, w, nil, nil)
	defer a.Stop(context.Background())

	a.Add(context.Background(), reading.Reading{TenantID: "tenant-2", TagName: "oil_rate", Value: 1})

	assert.Equal(t, 0, a.Stats().BufferSize, "expected mismatched-tenant reading to be dropped")
}
