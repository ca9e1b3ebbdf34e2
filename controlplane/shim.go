// Package controlplane exposes the router and timestore as a thin
// request/response surface and serves gRPC health/reflection on GRPC_PORT.
// The generated stubs for the five control-plane RPCs are out of scope;
// Shim is the plain Go interface they would call into.
package controlplane

import (
	"context"
	"time"

	"github.com/scadaflow/ingestcore/aggregator"
	"github.com/scadaflow/ingestcore/reading"
	"github.com/scadaflow/ingestcore/timestore"
)

// Shim is the control-plane request surface: add/remove a connection, query
// historical readings, and read back operational state.
type Shim interface {
	AddConnection(ctx context.Context, cfg reading.ConnectionConfig, mappings []reading.TagMapping) error
	RemoveConnection(ctx context.Context, connectionID string) error
	QueryReadings(ctx context.Context, tenantID, wellID string, start, end time.Time) ([]timestore.StoredReading, error)
	GetAggregatorStats(tenantID string) (aggregator.Stats, bool)
	HealthCheck() (activeConnections, activeTenants int)
}

// Router is the subset of router.Router the shim drives.
type Router interface {
	AddConnection(ctx context.Context, cfg reading.ConnectionConfig, mappings []reading.TagMapping) error
	RemoveConnection(ctx context.Context, connectionID string) error
	GetAggregatorStats(tenantID string) (aggregator.Stats, bool)
	HealthCheck() (activeConnections, activeTenants int)
}

// Store is the subset of timestore.Writer the shim drives.
type Store interface {
	QueryReadings(ctx context.Context, tenantID, wellID string, start, end time.Time) ([]timestore.StoredReading, error)
}

type shim struct {
	router Router
	store  Store
}

// NewShim builds a Shim over a live router and timestore writer.
func NewShim(router Router, store Store) Shim {
	return &shim{router: router, store: store}
}

func (s *shim) AddConnection(ctx context.Context, cfg reading.ConnectionConfig, mappings []reading.TagMapping) error {
	return s.router.AddConnection(ctx, cfg, mappings)
}

func (s *shim) RemoveConnection(ctx context.Context, connectionID string) error {
	return s.router.RemoveConnection(ctx, connectionID)
}

func (s *shim) QueryReadings(ctx context.Context, tenantID, wellID string, start, end time.Time) ([]timestore.StoredReading, error) {
	return s.store.QueryReadings(ctx, tenantID, wellID, start, end)
}

func (s *shim) GetAggregatorStats(tenantID string) (aggregator.Stats, bool) {
	return s.router.GetAggregatorStats(tenantID)
}

func (s *shim) HealthCheck() (activeConnections, activeTenants int) {
	return s.router.HealthCheck()
}
