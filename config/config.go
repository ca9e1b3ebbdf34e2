// Package config holds the already-parsed configuration every subsystem
// accepts by constructor injection. Load is the only function here that
// reads the environment; cmd/ingestd calls it once at startup, and plain
// structs are handed out from there on.
package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/scadaflow/ingestcore/adapter/factory"
	"github.com/scadaflow/ingestcore/aggregator"
	"github.com/scadaflow/ingestcore/health"
	"github.com/scadaflow/ingestcore/router"
	"github.com/scadaflow/ingestcore/security"
	"github.com/scadaflow/ingestcore/validator"
)

// AppConfig is the fully assembled configuration for one ingestd process.
type AppConfig struct {
	Environment string

	DatabaseURL      string
	DBMaxConnections int

	MetricsPort int
	GRPCPort    int

	Security  security.Config
	Validator validator.Config
	Router    router.Config
}

// Default returns an AppConfig with every subsystem default applied. Load
// starts from this and overrides fields present in the environment.
func Default() AppConfig {
	return AppConfig{
		Environment:      "development",
		DBMaxConnections: 20,
		MetricsPort:      9090,
		GRPCPort:         50051,
		Security: security.Config{
			ValidateCertificates: true,
		},
		Validator: validator.DefaultConfig(),
		Router: router.Config{
			PollInterval:     5 * time.Second,
			TenantPoolConns:  2,
			AggregatorConfig: aggregator.DefaultConfig(),
			HealthConfig:     health.DefaultConfig(),
			FactoryConfig:    factory.Config{RequestTimeout: time.Second},
		},
	}
}

// Load builds an AppConfig from the process environment, applying defaults
// for anything unset. DATABASE_URL is the only variable whose absence is
// fatal, and an IP_WHITELIST entry that is not a valid IP address is fatal
// too; every other parse failure falls back to its default rather than
// aborting startup.
func Load() (AppConfig, error) {
	cfg := Default()

	if v := os.Getenv("ENVIRONMENT"); v != "" {
		cfg.Environment = v
	}

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		return AppConfig{}, fmt.Errorf("DATABASE_URL is required")
	}

	if v, err := intEnv("DB_MAX_CONNECTIONS"); err == nil && v > 0 {
		cfg.DBMaxConnections = v
	}
	if v, err := intEnv("METRICS_PORT"); err == nil && v > 0 {
		cfg.MetricsPort = v
	}
	if v, err := intEnv("GRPC_PORT"); err == nil && v > 0 {
		cfg.GRPCPort = v
	}

	if v, err := intEnv("AGGREGATION_BUFFER_MS"); err == nil && v > 0 {
		cfg.Router.AggregatorConfig.FlushInterval = time.Duration(v) * time.Millisecond
	}
	if v, err := intEnv("MAX_BUFFER_SIZE"); err == nil && v > 0 {
		cfg.Router.AggregatorConfig.MaxBufferSize = v
	}

	cfg.Security.EncryptionKey = os.Getenv("ENCRYPTION_KEY")

	if v := os.Getenv("IP_WHITELIST"); v != "" {
		ips, err := parseIPWhitelist(v)
		if err != nil {
			return AppConfig{}, fmt.Errorf("invalid IP_WHITELIST: %w", err)
		}
		cfg.Security.IPWhitelist = ips
	}

	if v, err := boolEnv("VALIDATE_CERTIFICATES"); err == nil {
		cfg.Security.ValidateCertificates = v
	}
	if v, err := boolEnv("REJECT_BAD_QUALITY"); err == nil {
		cfg.Validator.RejectBadQuality = v
	}
	if v, err := boolEnv("REJECT_UNCERTAIN_QUALITY"); err == nil {
		cfg.Validator.RejectUncertainQuality = v
	}

	return cfg, nil
}

func intEnv(name string) (int, error) {
	v := os.Getenv(name)
	if v == "" {
		return 0, fmt.Errorf("%s not set", name)
	}
	return strconv.Atoi(v)
}

func boolEnv(name string) (bool, error) {
	v := os.Getenv(name)
	if v == "" {
		return false, fmt.Errorf("%s not set", name)
	}
	return strconv.ParseBool(v)
}

func parseIPWhitelist(v string) ([]net.IP, error) {
	parts := strings.Split(v, ",")
	ips := make([]net.IP, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		ip := net.ParseIP(p)
		if ip == nil {
			return nil, fmt.Errorf("invalid IP address %q", p)
		}
		ips = append(ips, ip)
	}
	return ips, nil
}
