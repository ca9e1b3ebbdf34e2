package modbus

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAddress(t *testing.T) {
	cases := []struct {
		in      string
		wantT   RegisterType
		wantIdx uint16
		wantErr bool
	}{
		{"40001", HoldingRegister, 0, false},
		{"40100", HoldingRegister, 99, false},
		{"30001", InputRegister, 0, false},
		{"99999", 0, 0, true},
		{"invalid", 0, 0, true},
		{"1", Coil, 0, false},
		{"10001", DiscreteInput, 0, false},
	}

	for _, c := range cases {
		gotT, gotIdx, err := ParseAddress(c.in)
		if c.wantErr {
			assert.Errorf(t, err, "ParseAddress(%q): expected error", c.in)
			continue
		}
		require.NoErrorf(t, err, "ParseAddress(%q)", c.in)
		assert.Equalf(t, c.wantT, gotT, "ParseAddress(%q) type", c.in)
		assert.Equalf(t, c.wantIdx, gotIdx, "ParseAddress(%q) index", c.in)
	}
}

func TestAddressRoundTrip(t *testing.T) {
	valid := []string{"1", "9999", "10001", "19999", "30001", "39999", "40001", "49999"}
	for _, v := range valid {
		regType, idx, err := ParseAddress(v)
		require.NoErrorf(t, err, "ParseAddress(%q)", v)

		rendered, err := RenderAddress(regType, idx)
		require.NoError(t, err)
		assert.Equal(t, v, rendered)
	}
}
