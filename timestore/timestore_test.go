package timestore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scadaflow/ingestcore/reading"
)

type fakeResolver struct {
	url string
	err error
}

func (f *fakeResolver) TenantDatabaseURL(ctx context.Context, tenantID string) (string, error) {
	return f.url, f.err
}

func TestWriteBatchEmptyIsNoOp(t *testing.T) {
	w := New(&fakeResolver{err: errors.New("should not be called")}, nil, nil)
	assert.NoError(t, w.WriteBatch(context.Background(), "tenant-1", nil), "expected no-op for empty batch")
}

func TestWriteBatchPropagatesResolverError(t *testing.T) {
	w := New(&fakeResolver{err: errors.New("no such tenant")}, nil, nil)
	err := w.WriteBatch(context.Background(), "unknown-tenant", []reading.Reading{
		{WellID: "well-1", TagName: "oil_rate", Value: 1, Quality: reading.QualityGood},
	})
	require.Error(t, err, "expected an error when the tenant database cannot be resolved")
}

func TestQueryReadingsPropagatesResolverError(t *testing.T) {
	w := New(&fakeResolver{err: errors.New("no such tenant")}, nil, nil)
	_, err := w.QueryReadings(context.Background(), "unknown-tenant", "well-1", time.Time{}, time.Time{})
	require.Error(t, err, "expected an error when the tenant database cannot be resolved")
}

func TestWriteBatchRejectsInvalidURL(t *testing.T) {
	w := New(&fakeResolver{url: "not a valid postgres url ::::"}, nil, nil)
	err := w.WriteBatch(context.Background(), "tenant-1", []reading.Reading{
		{WellID: "well-1", TagName: "oil_rate", Value: 1, Quality: reading.QualityGood},
	})
	require.Error(t, err, "expected a parse error for a malformed connection string")
}
