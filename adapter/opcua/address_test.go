package opcua

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseAddress(t *testing.T) {
	valid := []string{"ns=2;s=Temperature", "ns=3;i=1001", "i=2258"}
	for _, v := range valid {
		_, err := ParseAddress(v)
		assert.NoErrorf(t, err, "ParseAddress(%q)", v)
	}

	_, err := ParseAddress("not-a-node-id")
	assert.Error(t, err)
}
