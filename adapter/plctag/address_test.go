package plctag

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseAddress(t *testing.T) {
	valid := []string{
		"MyTag",
		"Program:MainProgram.MyTag",
		"MyUDT.SubField.Value",
	}
	for _, v := range valid {
		got, err := ParseAddress(v)
		assert.NoErrorf(t, err, "ParseAddress(%q)", v)
		assert.Equalf(t, v, got, "ParseAddress(%q)", v)
	}

	invalid := []string{"", "Tag@Name", "Tag Name"}
	for _, v := range invalid {
		_, err := ParseAddress(v)
		assert.Errorf(t, err, "ParseAddress(%q): expected error", v)
	}
}
