// Package plctag implements a PLC tag protocol adapter: CIP explicit
// messaging over TCP/IP to controllers such as Allen-Bradley
// ControlLogix/CompactLogix, addressed by a controller- or program-scoped
// tag path.
package plctag

import (
	"fmt"

	"github.com/scadaflow/ingestcore/adapter"
)

const defaultPort = 44818

// ParseAddress validates a tag path of the grammar [A-Za-z0-9_.:]+
// ("MyTag", "Program:MainProgram.MyTag", "MyUDT.SubField.Value").
func ParseAddress(address string) (string, error) {
	if address == "" {
		return "", adapter.NewError("parse_address", adapter.KindInvalidAddress,
			fmt.Errorf("address cannot be empty"))
	}

	for _, c := range address {
		if !isTagPathChar(c) {
			return "", adapter.NewError("parse_address", adapter.KindInvalidAddress,
				fmt.Errorf("invalid character %q in tag path %q", c, address))
		}
	}

	return address, nil
}

func isTagPathChar(c rune) bool {
	switch {
	case c >= 'A' && c <= 'Z', c >= 'a' && c <= 'z', c >= '0' && c <= '9':
		return true
	case c == '_' || c == '.' || c == ':':
		return true
	default:
		return false
	}
}
