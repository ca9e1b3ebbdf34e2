package catalog

import (
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConnectionRecordToConnectionConfig(t *testing.T) {
	rec := ConnectionRecord{
		ID:             "conn-1",
		TenantID:       "tenant-1",
		ProtocolType:   "modbus-tcp",
		EndpointURL:    "10.0.0.5:502",
		SecurityMode:   "None",
		Username:       "svc",
		Password:       "secret",
		StationAddress: 3,
		ClientID:       "",
	}
	cfg := rec.ToConnectionConfig()
	assert.Equal(t, rec.ID, cfg.ConnectionID)
	assert.Equal(t, rec.TenantID, cfg.TenantID)
	assert.Equal(t, rec.ProtocolType, cfg.ProtocolTag)
	assert.Equal(t, 3, cfg.StationAddress)
}

func TestTagMappingRecordToTagMappingStampsTenant(t *testing.T) {
	rec := TagMappingRecord{
		ID:           "tag-1",
		ConnectionID: "conn-1",
		WellID:       "well-1",
		TagName:      "oil_rate",
		OPCNodeID:    "40001",
		DataType:     "float",
	}
	mapping := rec.ToTagMapping("tenant-1")
	assert.Equal(t, "tenant-1", mapping.TenantID)
	assert.Equal(t, "40001", mapping.Address, "expected the opc_node_id value")
}

func TestTenantRowValidation(t *testing.T) {
	v := validator.New()
	require.NoError(t, v.Struct(Tenant{ID: "t1", DatabaseURL: "postgres://x"}))
	assert.Error(t, v.Struct(Tenant{ID: "", DatabaseURL: "postgres://x"}), "expected validation error for missing tenant id")
}

func TestConnectionRecordValidation(t *testing.T) {
	v := validator.New()
	valid := ConnectionRecord{ID: "c1", TenantID: "t1", ProtocolType: "mqtt", EndpointURL: "tcp://broker:1883"}
	require.NoError(t, v.Struct(valid))

	missingEndpoint := valid
	missingEndpoint.EndpointURL = ""
	assert.Error(t, v.Struct(missingEndpoint), "expected validation error for missing endpoint url")
}
