// Package hartip implements a HART-IP protocol adapter: the transport used
// by smart field instruments (pressure, temperature, flow, level
// transmitters) to publish their dynamic variables over a UDP socket,
// default port 5094.
//
// Address grammar: one of the four named dynamic variables (PV, SV, TV, QV)
// or "CMD:command:index" for a raw HART command plus variable index.
package hartip

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/scadaflow/ingestcore/adapter"
)

// Variable identifies what a HART-IP address resolves to: one of the four
// named dynamic variables, or a raw command/index pair.
type Variable struct {
	Named   NamedVariable
	Command uint8
	Index   uint8
	IsRaw   bool
}

type NamedVariable int

const (
	PrimaryVariable NamedVariable = iota
	SecondaryVariable
	TertiaryVariable
	QuaternaryVariable
)

func (v NamedVariable) String() string {
	switch v {
	case PrimaryVariable:
		return "PV"
	case SecondaryVariable:
		return "SV"
	case TertiaryVariable:
		return "TV"
	case QuaternaryVariable:
		return "QV"
	default:
		return "?"
	}
}

// readCommand returns the HART command that retrieves this variable.
func (v Variable) readCommand() uint8 {
	if v.IsRaw {
		return v.Command
	}
	if v.Named == PrimaryVariable {
		return cmdReadPrimaryVariable
	}
	return cmdReadDynamicVariables
}

// ParseAddress parses a HART-IP address string, case-insensitively for the
// named forms.
func ParseAddress(address string) (Variable, error) {
	switch strings.ToUpper(address) {
	case "PV":
		return Variable{Named: PrimaryVariable}, nil
	case "SV":
		return Variable{Named: SecondaryVariable}, nil
	case "TV":
		return Variable{Named: TertiaryVariable}, nil
	case "QV":
		return Variable{Named: QuaternaryVariable}, nil
	}

	parts := strings.Split(address, ":")
	if len(parts) == 3 && strings.ToUpper(parts[0]) == "CMD" {
		cmd, err := strconv.ParseUint(parts[1], 10, 8)
		if err != nil {
			return Variable{}, adapter.NewError("parse_address", adapter.KindInvalidAddress,
				fmt.Errorf("invalid command %q: %w", parts[1], err))
		}
		idx, err := strconv.ParseUint(parts[2], 10, 8)
		if err != nil {
			return Variable{}, adapter.NewError("parse_address", adapter.KindInvalidAddress,
				fmt.Errorf("invalid index %q: %w", parts[2], err))
		}
		return Variable{IsRaw: true, Command: uint8(cmd), Index: uint8(idx)}, nil
	}

	return Variable{}, adapter.NewError("parse_address", adapter.KindInvalidAddress,
		fmt.Errorf("invalid HART-IP address %q", address))
}
