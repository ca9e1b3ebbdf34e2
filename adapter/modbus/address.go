// Package modbus implements the fieldbus register protocol adapter over both
// TCP and serial transports.
//
// Address grammar: an unsigned integer whose range selects the register
// table and whose offset from the range base gives the 0-based register
// index:
//
//	1-9999      coil               (index = addr - 1)
//	10001-19999 discrete input     (index = addr - 10001)
//	30001-39999 input register     (index = addr - 30001)
//	40001-49999 holding register   (index = addr - 40001)
package modbus

import (
	"fmt"
	"strconv"

	"github.com/scadaflow/ingestcore/adapter"
)

// RegisterType identifies which of the four Modbus register tables an
// address resolves to.
type RegisterType int

const (
	Coil RegisterType = iota
	DiscreteInput
	InputRegister
	HoldingRegister
)

func (t RegisterType) String() string {
	switch t {
	case Coil:
		return "coil"
	case DiscreteInput:
		return "discrete_input"
	case InputRegister:
		return "input_register"
	case HoldingRegister:
		return "holding_register"
	default:
		return "unknown"
	}
}

// ParseAddress parses a Modbus-style address string into its register type
// and 0-based register index.
func ParseAddress(address string) (RegisterType, uint16, error) {
	addr, err := strconv.ParseUint(address, 10, 32)
	if err != nil {
		return 0, 0, adapter.NewError("parse_address", adapter.KindInvalidAddress,
			fmt.Errorf("invalid address %q: %w", address, err))
	}

	switch {
	case addr >= 1 && addr <= 9999:
		return Coil, uint16(addr - 1), nil
	case addr >= 10001 && addr <= 19999:
		return DiscreteInput, uint16(addr - 10001), nil
	case addr >= 30001 && addr <= 39999:
		return InputRegister, uint16(addr - 30001), nil
	case addr >= 40001 && addr <= 49999:
		return HoldingRegister, uint16(addr - 40001), nil
	default:
		return 0, 0, adapter.NewError("parse_address", adapter.KindInvalidAddress,
			fmt.Errorf("address out of range: %s", address))
	}
}

// RenderAddress is the inverse of ParseAddress, used by round-trip tests.
func RenderAddress(t RegisterType, index uint16) (string, error) {
	var base uint32
	switch t {
	case Coil:
		base = 1
	case DiscreteInput:
		base = 10001
	case InputRegister:
		base = 30001
	case HoldingRegister:
		base = 40001
	default:
		return "", fmt.Errorf("unknown register type %v", t)
	}
	return strconv.FormatUint(uint64(base+uint32(index)), 10), nil
}
