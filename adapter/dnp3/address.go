// Package dnp3 implements a utility SCADA polling protocol adapter.
// Address grammar: "TYPE:INDEX" where TYPE is one of AI (analog input), BI
// (binary input), AO (analog output), BO (binary output), C (counter),
// matched case-insensitively, and INDEX is a 16-bit point index.
package dnp3

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/scadaflow/ingestcore/adapter"
)

// PointType identifies the kind of point a DNP3-style address refers to.
type PointType int

const (
	AnalogInput PointType = iota
	BinaryInput
	AnalogOutput
	BinaryOutput
	Counter
)

func (t PointType) String() string {
	switch t {
	case AnalogInput:
		return "AI"
	case BinaryInput:
		return "BI"
	case AnalogOutput:
		return "AO"
	case BinaryOutput:
		return "BO"
	case Counter:
		return "C"
	default:
		return "?"
	}
}

func parsePointType(tag string) (PointType, bool) {
	switch strings.ToUpper(tag) {
	case "AI":
		return AnalogInput, true
	case "BI":
		return BinaryInput, true
	case "AO":
		return AnalogOutput, true
	case "BO":
		return BinaryOutput, true
	case "C":
		return Counter, true
	default:
		return 0, false
	}
}

// ParseAddress parses a "TYPE:INDEX" address string.
func ParseAddress(address string) (PointType, uint16, error) {
	parts := strings.SplitN(address, ":", 2)
	if len(parts) != 2 {
		return 0, 0, adapter.NewError("parse_address", adapter.KindInvalidAddress,
			fmt.Errorf("malformed address %q: expected TYPE:INDEX", address))
	}

	pointType, ok := parsePointType(parts[0])
	if !ok {
		return 0, 0, adapter.NewError("parse_address", adapter.KindInvalidAddress,
			fmt.Errorf("unknown point type %q in address %q", parts[0], address))
	}

	index, err := strconv.ParseUint(parts[1], 10, 16)
	if err != nil {
		return 0, 0, adapter.NewError("parse_address", adapter.KindInvalidAddress,
			fmt.Errorf("invalid index in address %q: %w", address, err))
	}

	return pointType, uint16(index), nil
}

// RenderAddress is the inverse of ParseAddress.
func RenderAddress(t PointType, index uint16) string {
	return fmt.Sprintf("%s:%d", t.String(), index)
}

// QualityFlags mirrors the 8-bit DNP3 quality/flags byte bit layout used by
// MapQuality.
const (
	FlagOnline       byte = 1 << 0
	flagRestart      byte = 1 << 1
	flagCommLost     byte = 1 << 4
	flagRemoteForced byte = 1 << 5
	flagLocalForced  byte = 1 << 6
)
