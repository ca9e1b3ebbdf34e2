package security

import (
	"fmt"
	"net"

	"github.com/scadaflow/ingestcore/adapter"
	"github.com/scadaflow/ingestcore/reading"
)

// Config configures the Credential & IP Guard for one deployment.
type Config struct {
	EncryptionKey       string
	IPWhitelist         []net.IP
	ValidateCertificates bool
}

// Guard applies IP allow-listing and credential sanity checks, and resolves
// stored passwords via an EncryptionService.
type Guard struct {
	cfg        Config
	encryption *EncryptionService
}

func NewGuard(cfg Config) (*Guard, error) {
	enc, err := NewEncryptionService(cfg.EncryptionKey)
	if err != nil {
		return nil, err
	}
	return &Guard{cfg: cfg, encryption: enc}, nil
}

// ValidateIP enforces the allow-list: an empty list allows all addresses;
// otherwise the address must match an entry exactly. A nil addr (the
// endpoint could not be resolved to an IP, e.g. a serial device path) is
// always allowed.
func (g *Guard) ValidateIP(addr net.IP) error {
	if len(g.cfg.IPWhitelist) == 0 || addr == nil {
		return nil
	}
	for _, allowed := range g.cfg.IPWhitelist {
		if allowed.Equal(addr) {
			return nil
		}
	}
	return adapter.NewError("validate_ip", adapter.KindAuthenticationFailed,
		fmt.Errorf("ip %s is not whitelisted", addr))
}

// ValidateCredentials rejects a non-optional but empty username or
// password, and marks a non-"None" security mode as requiring certificate
// validation (full PKI validation is out of core scope).
func (g *Guard) ValidateCredentials(cfg reading.ConnectionConfig) (mustValidateCert bool, err error) {
	if cfg.Username == "" && cfg.Password != "" {
		return false, adapter.NewError("validate_credentials", adapter.KindAuthenticationFailed,
			fmt.Errorf("username cannot be empty when a password is configured"))
	}
	if cfg.Password == "" && cfg.Username != "" {
		return false, adapter.NewError("validate_credentials", adapter.KindAuthenticationFailed,
			fmt.Errorf("password cannot be empty when a username is configured"))
	}

	mustValidateCert = cfg.SecurityMode != "" && cfg.SecurityMode != "None"
	return mustValidateCert, nil
}

// ResolvePassword decrypts cfg's stored password if encryption is
// configured, otherwise returns it unchanged.
func (g *Guard) ResolvePassword(cfg reading.ConnectionConfig) (string, error) {
	return g.encryption.ResolvePassword(cfg.Password)
}

func (g *Guard) IsEncryptionEnabled() bool { return g.encryption.IsEnabled() }
