package opcua

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/gopcua/opcua/ua"

	"github.com/scadaflow/ingestcore/reading"
)

func TestMapStatusToQuality(t *testing.T) {
	assert.Equal(t, reading.QualityGood, mapStatusToQuality(ua.StatusOK))
	assert.Equal(t, reading.QualityBad, mapStatusToQuality(ua.StatusBadNotConnected))
}

func TestNumericValue(t *testing.T) {
	v, ok := numericValue(ua.MustVariant(float64(42.5)))
	assert.True(t, ok)
	assert.Equal(t, 42.5, v)

	_, ok = numericValue(ua.MustVariant("not-a-number"))
	assert.False(t, ok)
}
