package dnp3

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/scadaflow/ingestcore/reading"
)

func TestMapQuality(t *testing.T) {
	cases := []struct {
		name  string
		flags byte
		want  reading.Quality
	}{
		{"online only", 0b0000_0001, reading.QualityGood},
		{"comm lost", 0b0001_0000, reading.QualityBad},
		{"online + remote forced", 0b0010_0001, reading.QualityUncertain},
		{"online + local forced", 0b0100_0001, reading.QualityUncertain},
		{"all zero", 0b0000_0000, reading.QualityBad},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			assert.Equal(t, c.want, MapQuality(c.flags))
		})
	}
}
