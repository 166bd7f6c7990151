// Package trace implements the TraceReconstructor (spec.md §4.3): it walks
// the nested debug_traceTransaction call tree and flattens it into Row
// values carrying a total pre-order position and a hierarchical depth path.
package trace

import (
	"strconv"
	"strings"
	"time"

	"github.com/holiman/uint256"
)

// Kind is the TraceRow kind enum from spec.md §3.
type Kind string

const (
	KindCall         Kind = "CALL"
	KindStaticCall   Kind = "STATICCALL"
	KindDelegateCall Kind = "DELEGATECALL"
	KindCallCode     Kind = "CALLCODE"
	KindCreate       Kind = "CREATE"
	KindCreate2      Kind = "CREATE2"
	KindLog          Kind = "LOG"
)

// NumericField parses a hex-string numeric value (gas, gasUsed, callvalue)
// into a 256-bit integer without ever panicking on malformed input: a parse
// failure leaves the raw string available and Valid=false (spec.md §4.3,
// §8 hex-parse-robustness invariant).
type NumericField struct {
	Value *uint256.Int
	Raw    string
	Valid  bool
}

// ParseHexNumeric accepts either a "0x..."-prefixed hex string or a bare
// decimal string (both appear across node/tracer implementations) and falls
// back to the untouched raw value on any parse error.
func ParseHexNumeric(raw string) NumericField {
	if raw == "" {
		return NumericField{Raw: raw}
	}

	s := raw
	base := 10
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		s = s[2:]
		base = 16
	}
	if s == "" {
		return NumericField{Raw: raw}
	}

	switch base {
	case 16:
		v, err := uint256.FromHex("0x" + s)
		if err != nil {
			return NumericField{Raw: raw}
		}
		return NumericField{Value: v, Raw: raw, Valid: true}
	default:
		v, err := strconv.ParseUint(s, 10, 64)
		if err != nil {
			// Large decimal values (rare for gas/value fields encoded as hex
			// by every tracer we target) fall back to the raw string too.
			return NumericField{Raw: raw}
		}
		return NumericField{Value: uint256.NewInt(v), Raw: raw, Valid: true}
	}
}

// Row is the flattened TraceRow of spec.md §3: one row per call, log, or
// creation step in a transaction's execution tree.
type Row struct {
	TxHash        string
	BlockNumber   uint64
	TxIndex       uint64
	Timestamp     time.Time
	TracePos      int
	TracePosDepth string
	Kind          Kind

	From      string
	To        string
	Gas       NumericField
	GasUsed   NumericField
	CallValue NumericField
	Input     []byte
	Output    []byte
	Error     string

	Address string
	Topics  []string
	Data    []byte
}

// IsCallKind reports whether the row represents a call/create step (as
// opposed to a LOG row).
func (r Row) IsCallKind() bool {
	return r.Kind != KindLog
}
