package dnp3

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAddress(t *testing.T) {
	cases := []struct {
		in      string
		wantT   PointType
		wantIdx uint16
		wantErr bool
	}{
		{"AI:0", AnalogInput, 0, false},
		{"ai:100", AnalogInput, 100, false},
		{"C:10", Counter, 10, false},
		{"BI:5", BinaryInput, 5, false},
		{"AO:3", AnalogOutput, 3, false},
		{"BO:7", BinaryOutput, 7, false},
		{"XX:0", 0, 0, true},
		{"AI:abc", 0, 0, true},
		{"AI", 0, 0, true},
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

func TestRenderAddress(t *testing.T) {
	assert.Equal(t, "AI:0", RenderAddress(AnalogInput, 0))
	assert.Equal(t, "C:10", RenderAddress(Counter, 10))
}
