package security

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scadaflow/ingestcore/adapter"
	"github.com/scadaflow/ingestcore/reading"
)

func testConnConfig() reading.ConnectionConfig {
	return reading.ConnectionConfig{
		ConnectionID: "conn-1",
		TenantID:     "tenant-1",
		EndpointURL:  "opc.tcp://localhost:4840",
		SecurityMode: "None",
		Username:     "testuser",
		Password:     "testpassword",
	}
}

func TestValidateCredentialsSuccess(t *testing.T) {
	g, err := NewGuard(Config{})
	require.NoError(t, err)
	_, err = g.ValidateCredentials(testConnConfig())
	assert.NoError(t, err)
}

func TestValidateIPWhitelist(t *testing.T) {
	allowed := net.ParseIP("192.168.1.100")
	blocked := net.ParseIP("192.168.1.200")

	g, err := NewGuard(Config{IPWhitelist: []net.IP{allowed}})
	require.NoError(t, err)

	assert.NoError(t, g.ValidateIP(allowed))

	err = g.ValidateIP(blocked)
	require.Error(t, err)
	var adapterErr *adapter.Error
	require.ErrorAs(t, err, &adapterErr)
	assert.Equal(t, adapter.KindAuthenticationFailed, adapterErr.Kind)
}

func TestValidateIPEmptyWhitelistAllowsAll(t *testing.T) {
	g, err := NewGuard(Config{})
	require.NoError(t, err)
	assert.NoError(t, g.ValidateIP(net.ParseIP("10.0.0.1")))
}

func TestValidateCredentialsRejectsEmptyUsername(t *testing.T) {
	g, err := NewGuard(Config{})
	require.NoError(t, err)
	cfg := testConnConfig()
	cfg.Username = ""
	_, err = g.ValidateCredentials(cfg)
	assert.Error(t, err, "expected error for empty username with a configured password")
}

func TestValidateCredentialsRejectsEmptyPassword(t *testing.T) {
	g, err := NewGuard(Config{})
	require.NoError(t, err)
	cfg := testConnConfig()
	cfg.Password = ""
	_, err = g.ValidateCredentials(cfg)
	assert.Error(t, err, "expected error for empty password with a configured username")
}

func TestValidateCredentialsMarksCertificateValidation(t *testing.T) {
	g, err := NewGuard(Config{})
	require.NoError(t, err)
	cfg := testConnConfig()
	cfg.SecurityMode = "SignAndEncrypt"

	mustValidate, err := g.ValidateCredentials(cfg)
	require.NoError(t, err)
	assert.True(t, mustValidate, "expected certificate validation to be required for non-None security mode")
}
