// Package catalog reads the read-only tenant, connection, and tag-mapping
// configuration that drives the ingestion runtime: a master store listing
// active tenants, and per-tenant stores listing each tenant's enabled
// connections and tag mappings.
package catalog

import (
	"context"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/scadaflow/ingestcore/reading"
)

// Tenant is one row of the master tenants table.
type Tenant struct {
	ID          string `validate:"required"`
	DatabaseURL string `validate:"required"`
	Status      string
}

// ConnectionRecord is one row of a tenant's scada_connections table, before
// password resolution and IP/credential validation.
type ConnectionRecord struct {
	ID             string `validate:"required"`
	TenantID       string `validate:"required"`
	ProtocolType   string `validate:"required"`
	EndpointURL    string `validate:"required"`
	SecurityMode   string
	SecurityPolicy string
	Username       string
	Password       string
	StationAddress int
	ClientID       string
}

// ToConnectionConfig converts a catalog row into the shape adapters
// consume, without resolving the stored password.
func (c ConnectionRecord) ToConnectionConfig() reading.ConnectionConfig {
	return reading.ConnectionConfig{
		ConnectionID:   c.ID,
		TenantID:       c.TenantID,
		ProtocolTag:    c.ProtocolType,
		EndpointURL:    c.EndpointURL,
		SecurityMode:   c.SecurityMode,
		SecurityPolicy: c.SecurityPolicy,
		Username:       c.Username,
		Password:       c.Password,
		StationAddress: c.StationAddress,
		ClientID:       c.ClientID,
	}
}

// TagMappingRecord is one row of a tenant's tag_mappings table. OPCNodeID
// is the protocol-agnostic address string despite its legacy column name.
type TagMappingRecord struct {
	ID           string `validate:"required"`
	ConnectionID string `validate:"required"`
	WellID       string `validate:"required"`
	TagName      string `validate:"required"`
	OPCNodeID    string `validate:"required"`
	DataType     string
}

// ToTagMapping converts a catalog row into the shape adapters consume,
// stamping tenantID since tag_mappings carries no tenant column of its own.
func (t TagMappingRecord) ToTagMapping(tenantID string) reading.TagMapping {
	return reading.TagMapping{
		TagID:    t.ID,
		TenantID: tenantID,
		WellID:   t.WellID,
		TagName:  t.TagName,
		Address:  t.OPCNodeID,
		DataType: t.DataType,
	}
}

// Catalog reads tenants from a master pool and, on demand, opens a
// short-lived pool against each tenant's own store to read its
// connections and tag mappings.
type Catalog struct {
	master   *pgxpool.Pool
	validate *validator.Validate
}

// New wraps an already-open master pool.
func New(master *pgxpool.Pool) *Catalog {
	return &Catalog{master: master, validate: validator.New()}
}

// ActiveTenants returns every tenant not suspended and not soft-deleted.
func (c *Catalog) ActiveTenants(ctx context.Context) ([]Tenant, error) {
	rows, err := c.master.Query(ctx, `
		SELECT id, database_url, status
		FROM tenants
		WHERE status != 'SUSPENDED' AND deleted_at IS NULL
	`)
	if err != nil {
		return nil, fmt.Errorf("query active tenants: %w", err)
	}
	defer rows.Close()

	var out []Tenant
	for rows.Next() {
		var t Tenant
		if err := rows.Scan(&t.ID, &t.DatabaseURL, &t.Status); err != nil {
			return nil, fmt.Errorf("scan tenant row: %w", err)
		}
		if err := c.validate.Struct(t); err != nil {
			return nil, fmt.Errorf("invalid tenant row %s: %w", t.ID, err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// TenantDatabaseURL implements timestore.TenantDatabaseResolver by looking
// up a single tenant's row in the master table.
func (c *Catalog) TenantDatabaseURL(ctx context.Context, tenantID string) (string, error) {
	var url string
	err := c.master.QueryRow(ctx, `
		SELECT database_url FROM tenants WHERE id = $1 AND deleted_at IS NULL
	`, tenantID).Scan(&url)
	if err != nil {
		return "", fmt.Errorf("resolve database url for tenant %s: %w", tenantID, err)
	}
	return url, nil
}

// ActiveConnections queries a tenant's own store for its enabled,
// non-deleted SCADA connections. tenantPool must already be open against
// that tenant's database.
func (c *Catalog) ActiveConnections(ctx context.Context, tenantPool *pgxpool.Pool, tenantID string) ([]ConnectionRecord, error) {
	rows, err := tenantPool.Query(ctx, `
		SELECT id, protocol_type, endpoint_url, security_mode, security_policy,
		       username, password, slave_id, client_id
		FROM scada_connections
		WHERE is_enabled = true AND deleted_at IS NULL
	`)
	if err != nil {
		return nil, fmt.Errorf("query active connections: %w", err)
	}
	defer rows.Close()

	var out []ConnectionRecord
	for rows.Next() {
		c2 := ConnectionRecord{TenantID: tenantID}
		if err := rows.Scan(&c2.ID, &c2.ProtocolType, &c2.EndpointURL, &c2.SecurityMode,
			&c2.SecurityPolicy, &c2.Username, &c2.Password, &c2.StationAddress, &c2.ClientID); err != nil {
			return nil, fmt.Errorf("scan connection row: %w", err)
		}
		if err := c.validate.Struct(c2); err != nil {
			return nil, fmt.Errorf("invalid connection row %s: %w", c2.ID, err)
		}
		out = append(out, c2)
	}
	return out, rows.Err()
}

// TagMappings queries a tenant's own store for the tag mappings belonging
// to one connection.
func (c *Catalog) TagMappings(ctx context.Context, tenantPool *pgxpool.Pool, connectionID string) ([]TagMappingRecord, error) {
	rows, err := tenantPool.Query(ctx, `
		SELECT id, connection_id, well_id, tag_name, opc_node_id, data_type
		FROM tag_mappings
		WHERE connection_id = $1 AND deleted_at IS NULL
	`, connectionID)
	if err != nil {
		return nil, fmt.Errorf("query tag mappings: %w", err)
	}
	defer rows.Close()

	var out []TagMappingRecord
	for rows.Next() {
		var m TagMappingRecord
		if err := rows.Scan(&m.ID, &m.ConnectionID, &m.WellID, &m.TagName, &m.OPCNodeID, &m.DataType); err != nil {
			return nil, fmt.Errorf("scan tag mapping row: %w", err)
		}
		if err := c.validate.Struct(m); err != nil {
			return nil, fmt.Errorf("invalid tag mapping row %s: %w", m.ID, err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
