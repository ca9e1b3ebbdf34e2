// Package router owns the live adapter set, the per-tenant aggregator set,
// and the per-connection health monitor set, and drives the poll loop that
// moves readings from adapters to aggregators.
package router

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/scadaflow/ingestcore/adapter"
	"github.com/scadaflow/ingestcore/adapter/factory"
	"github.com/scadaflow/ingestcore/aggregator"
	"github.com/scadaflow/ingestcore/catalog"
	"github.com/scadaflow/ingestcore/health"
	"github.com/scadaflow/ingestcore/observability"
	"github.com/scadaflow/ingestcore/reading"
	"github.com/scadaflow/ingestcore/security"
	"github.com/scadaflow/ingestcore/validator"
)

// Logger is the structured logging seam shared across subsystems.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// Metrics receives the router's own counters and gauges, plus the
// aggregator.MetricsSink surface so the same implementation can be handed
// down to every per-tenant aggregator the router creates. A nil Metrics is
// a no-op.
type Metrics interface {
	aggregator.MetricsSink
	IncReadingsIngested(tenantID, wellID, tagName string)
	SetActiveConnections(tenantID string, count int)
	IncConnectionErrors(tenantID, connectionID, errKind string)
}

// Config controls the router's poll loop and the defaults handed to every
// aggregator and health monitor it creates.
type Config struct {
	PollInterval     time.Duration
	TenantPoolConns  int32
	AggregatorConfig aggregator.Config
	HealthConfig     health.Config
	FactoryConfig    factory.Config
}

// DefaultConfig matches the environment defaults for the poll loop and the
// per-tenant connection pool used to list connections and tag mappings.
func DefaultConfig() Config {
	return Config{
		PollInterval:     5 * time.Second,
		TenantPoolConns:  2,
		AggregatorConfig: aggregator.DefaultConfig(),
		HealthConfig:     health.DefaultConfig(),
	}
}

type connectionEntry struct {
	tenantID string
	adapter  adapter.Adapter
	monitor  *health.Monitor
}

// Router is the tenant router: it owns live adapters, per-tenant
// aggregators, and per-connection health monitors, and runs the single
// poll loop that feeds readings from adapters into aggregators.
type Router struct {
	catalog   *catalog.Catalog
	writer    aggregator.Writer
	guard     *security.Guard
	validator *validator.Validator
	cfg       Config
	logger    Logger
	metrics   Metrics

	mu          sync.RWMutex
	connections map[string]*connectionEntry
	aggregators map[string]*aggregator.Aggregator

	stopOnce sync.Once
	done     chan struct{}
	wg       sync.WaitGroup
}

// New constructs a Router. Call StartAllConnections to populate it from
// the catalog and begin polling.
func New(cat *catalog.Catalog, writer aggregator.Writer, guard *security.Guard, v *validator.Validator, cfg Config, metrics Metrics, logger Logger) *Router {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultConfig().PollInterval
	}
	if cfg.TenantPoolConns <= 0 {
		cfg.TenantPoolConns = DefaultConfig().TenantPoolConns
	}
	return &Router{
		catalog:     cat,
		writer:      writer,
		guard:       guard,
		validator:   v,
		cfg:         cfg,
		logger:      logger,
		metrics:     metrics,
		connections: make(map[string]*connectionEntry),
		aggregators: make(map[string]*aggregator.Aggregator),
		done:        make(chan struct{}),
	}
}

// StartAllConnections enumerates active tenants, lists each tenant's
// enabled connections and their tag mappings, starts one adapter per
// surviving connection, and launches the poll loop. A tenant whose pool
// cannot be opened, or a connection that fails to start, is logged and
// skipped — the run continues with everything else.
func (r *Router) StartAllConnections(ctx context.Context) error {
	tenants, err := r.catalog.ActiveTenants(ctx)
	if err != nil {
		return fmt.Errorf("enumerate active tenants: %w", err)
	}

	for _, t := range tenants {
		if err := r.startTenant(ctx, t); err != nil {
			if r.logger != nil {
				r.logger.Error("tenant_start_failed", "tenant_id", t.ID, "error", err)
			}
			continue
		}
	}

	r.wg.Add(1)
	go r.pollLoop()
	return nil
}

func (r *Router) startTenant(ctx context.Context, t catalog.Tenant) error {
	poolCfg, err := pgxpool.ParseConfig(t.DatabaseURL)
	if err != nil {
		return fmt.Errorf("parse tenant database url: %w", err)
	}
	poolCfg.MaxConns = r.cfg.TenantPoolConns

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return fmt.Errorf("open tenant pool: %w", err)
	}
	defer pool.Close()

	conns, err := r.catalog.ActiveConnections(ctx, pool, t.ID)
	if err != nil {
		return fmt.Errorf("list active connections: %w", err)
	}

	for _, c := range conns {
		tags, err := r.catalog.TagMappings(ctx, pool, c.ID)
		if err != nil {
			if r.logger != nil {
				r.logger.Error("tag_mapping_list_failed", "connection_id", c.ID, "error", err)
			}
			continue
		}
		if len(tags) == 0 {
			if r.logger != nil {
				r.logger.Warn("connection_has_no_tags", "connection_id", c.ID, "tenant_id", t.ID)
			}
			continue
		}

		mappings := make([]reading.TagMapping, len(tags))
		for i, tm := range tags {
			mappings[i] = tm.ToTagMapping(t.ID)
		}

		if err := r.AddConnection(ctx, c.ToConnectionConfig(), mappings); err != nil {
			if r.logger != nil {
				r.logger.Error("connection_start_failed", "connection_id", c.ID, "error", err)
			}
		}
	}
	return nil
}

// AddConnection constructs an adapter for cfg, ensures a tenant aggregator
// exists, and runs the reconnection driver for the first connect+subscribe
// attempt. On success the adapter is registered under cfg.ConnectionID.
func (r *Router) AddConnection(ctx context.Context, cfg reading.ConnectionConfig, mappings []reading.TagMapping) error {
	if err := r.guard.ValidateIP(endpointIP(cfg.EndpointURL)); err != nil {
		return fmt.Errorf("ip check failed: %w", err)
	}
	if _, err := r.guard.ValidateCredentials(cfg); err != nil {
		return fmt.Errorf("credential check failed: %w", err)
	}
	password, err := r.guard.ResolvePassword(cfg)
	if err != nil {
		return fmt.Errorf("resolve password: %w", err)
	}
	cfg.Password = password

	a, err := factory.New(cfg.ProtocolTag, r.cfg.FactoryConfig)
	if err != nil {
		return fmt.Errorf("create adapter: %w", err)
	}

	monitor := health.New(cfg.ConnectionID, cfg.TenantID, r.cfg.HealthConfig)
	reconnector := health.NewReconnector(monitor, r.logger)

	err = reconnector.Run(ctx, func(ctx context.Context) error {
		if err := a.Connect(ctx, cfg); err != nil {
			return err
		}
		if err := a.Subscribe(ctx, mappings); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("start connection %s: %w", cfg.ConnectionID, err)
	}

	r.ensureAggregator(cfg.TenantID)

	r.mu.Lock()
	r.connections[cfg.ConnectionID] = &connectionEntry{
		tenantID: cfg.TenantID,
		adapter:  a,
		monitor:  monitor,
	}
	count := r.countConnectionsForTenantLocked(cfg.TenantID)
	r.mu.Unlock()

	if r.metrics != nil {
		r.metrics.SetActiveConnections(cfg.TenantID, count)
	}
	return nil
}

func (r *Router) countConnectionsForTenantLocked(tenantID string) int {
	n := 0
	for _, c := range r.connections {
		if c.tenantID == tenantID {
			n++
		}
	}
	return n
}

func (r *Router) ensureAggregator(tenantID string) *aggregator.Aggregator {
	r.mu.Lock()
	defer r.mu.Unlock()
	if a, ok := r.aggregators[tenantID]; ok {
		return a
	}
	a := aggregator.New(tenantID, r.cfg.AggregatorConfig, r.writer, r.metrics, r.logger)
	r.aggregators[tenantID] = a
	return a
}

// RemoveConnection disconnects and removes one connection's adapter. The
// owning tenant's aggregator is left in place since other connections may
// still feed it.
func (r *Router) RemoveConnection(ctx context.Context, connectionID string) error {
	r.mu.Lock()
	entry, ok := r.connections[connectionID]
	if ok {
		delete(r.connections, connectionID)
	}
	r.mu.Unlock()

	if !ok {
		return fmt.Errorf("no active connection %s", connectionID)
	}
	return entry.adapter.Disconnect(ctx)
}

// pollLoop ticks at cfg.PollInterval, polling every adapter whose health
// monitor currently permits an attempt and routing the readings it
// produces into the owning tenant's aggregator.
func (r *Router) pollLoop() {
	defer r.wg.Done()
	ticker := time.NewTicker(r.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.pollOnce(context.Background())
		case <-r.done:
			return
		}
	}
}

func (r *Router) pollOnce(ctx context.Context) {
	r.mu.RLock()
	entries := make(map[string]*connectionEntry, len(r.connections))
	for id, e := range r.connections {
		entries[id] = e
	}
	r.mu.RUnlock()

	var g errgroup.Group
	for id, entry := range entries {
		id, entry := id, entry
		g.Go(func() error {
			r.pollConnection(ctx, id, entry)
			return nil
		})
	}
	_ = g.Wait()
}

func (r *Router) pollConnection(ctx context.Context, connectionID string, entry *connectionEntry) {
	if !entry.monitor.CanAttempt() {
		return
	}

	ctx, span := observability.StartSpan(ctx, "router.poll", entry.tenantID,
		attribute.String("connection_id", connectionID))
	defer span.End()

	readings, err := entry.adapter.Poll(ctx)
	if err != nil {
		entry.monitor.RecordFailure()
		if r.metrics != nil {
			r.metrics.IncConnectionErrors(entry.tenantID, connectionID, classifyErr(err))
		}
		if r.logger != nil {
			r.logger.Warn("poll_failed", "connection_id", connectionID, "error", err)
		}
		return
	}
	entry.monitor.RecordSuccess()

	for _, rd := range readings {
		if err := r.validator.Validate(rd); err != nil {
			if r.logger != nil {
				r.logger.Debug("reading_rejected", "tenant_id", rd.TenantID, "tag", rd.TagName, "error", err)
			}
			continue
		}

		r.mu.RLock()
		agg, ok := r.aggregators[rd.TenantID]
		r.mu.RUnlock()
		if !ok {
			if r.logger != nil {
				r.logger.Error("no_aggregator_for_tenant", "tenant_id", rd.TenantID, "connection_id", connectionID)
			}
			continue
		}

		agg.Add(ctx, rd)
		if r.metrics != nil {
			r.metrics.IncReadingsIngested(rd.TenantID, rd.WellID, rd.TagName)
		}
	}
}

func classifyErr(err error) string {
	if aerr, ok := err.(*adapter.Error); ok {
		return aerr.Kind.String()
	}
	return "unknown"
}

// GetAggregatorStats returns the current buffer snapshot for one tenant's
// aggregator, or false if that tenant has none.
func (r *Router) GetAggregatorStats(tenantID string) (aggregator.Stats, bool) {
	r.mu.RLock()
	a, ok := r.aggregators[tenantID]
	r.mu.RUnlock()
	if !ok {
		return aggregator.Stats{}, false
	}
	return a.Stats(), true
}

// HealthCheck returns the count of live connections and distinct tenants
// currently being served.
func (r *Router) HealthCheck() (activeConnections, activeTenants int) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	activeConnections = len(r.connections)
	activeTenants = len(r.aggregators)
	return
}

// StopAllConnections disconnects every adapter and force-flushes every
// aggregator. Both loops continue past individual failures.
func (r *Router) StopAllConnections(ctx context.Context) {
	r.stopOnce.Do(func() {
		close(r.done)
	})
	r.wg.Wait()

	r.mu.Lock()
	connections := r.connections
	r.connections = make(map[string]*connectionEntry)
	aggregators := r.aggregators
	r.mu.Unlock()

	for id, entry := range connections {
		if err := entry.adapter.Disconnect(ctx); err != nil && r.logger != nil {
			r.logger.Error("disconnect_failed", "connection_id", id, "error", err)
		}
	}
	for _, agg := range aggregators {
		agg.Stop(ctx)
	}
}

// endpointIP extracts the IP address a connection endpoint resolves to, for
// the guard's allow-list check. Endpoints come in as a bare "host:port", a
// scheme-prefixed URL ("opc.tcp://host:port"), or a non-network path (a
// serial device). A hostname (as opposed to a literal IP) or a path that
// carries no address at all yields a nil IP, which the guard always allows.
func endpointIP(endpoint string) net.IP {
	host := endpoint
	if u, err := url.Parse(endpoint); err == nil && u.Host != "" {
		host = u.Host
	}
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	return net.ParseIP(host)
}
