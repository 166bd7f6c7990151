package decode

import (
	"fmt"
	"strings"

	gethabi "github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/sirupsen/logrus"
)

// DecodedCall is one successfully decoded call: the invoked method's name
// and its flattened argument map.
type DecodedCall struct {
	Name   string
	Params map[string]interface{}
}

// CallDecoder resolves a call's function name and arguments from its input
// calldata, trying the target contract's own ABI first then each fallback
// ABI (the same candidate policy as EventDecoder, applied to 4-byte method
// selectors instead of topic0).
type CallDecoder struct {
	fallback []*gethabi.ABI
}

func NewCallDecoder(fallback []*gethabi.ABI) *CallDecoder {
	return &CallDecoder{fallback: fallback}
}

// Decode unpacks input (including its 4-byte selector prefix) against
// ownABI then each fallback ABI. Calls with fewer than 4 bytes of input
// (plain value transfers) are not decodable and return ok=false.
func (d *CallDecoder) Decode(ownABI *gethabi.ABI, input []byte) (DecodedCall, bool) {
	if len(input) < 4 {
		return DecodedCall{}, false
	}

	candidates := make([]*gethabi.ABI, 0, len(d.fallback)+1)
	if ownABI != nil {
		candidates = append(candidates, ownABI)
	}
	candidates = append(candidates, d.fallback...)

	var selector [4]byte
	copy(selector[:], input[:4])

	for _, candidate := range candidates {
		method, err := candidate.MethodById(selector[:])
		if err != nil {
			continue
		}

		raw := make(map[string]interface{})
		if err := method.Inputs.UnpackIntoMap(raw, input[4:]); err != nil {
			logrus.Debugf("call_decoder: %s unpack failed: %v", method.Name, err)
			continue
		}

		return DecodedCall{Name: method.Name, Params: renameCallParams(raw)}, true
	}

	return DecodedCall{}, false
}

// callReserved is the call-row output-schema column set a decoded call
// parameter name must not collide with, matching data_preparation.py:643's
// per-stream reserved set for calls (from, to, gas, gasUsed, output,
// callvalue, calltype, hash, timeStamp, tracePos, tracePosDepth,
// blockNumber, transactionIndex) against this codebase's TraceRow field
// names. "to"/"from" are handled by their own dedicated rename below rather
// than the generic suffix, matching the grounding source's distinct
// to_function_internal/from_function_internal names.
var callReserved = map[string]bool{
	"gas": true, "gas_used": true, "output": true,
	"call_value": true, "call_type": true, "hash": true,
	"timestamp": true, "trace_pos": true, "trace_pos_depth": true,
	"block_number": true, "transaction_index": true,
}

// renameCallParams applies data_preparation.py's call-argument renaming:
// leading-underscore strip (§4.8 step 3, CallDecoder-only — EventDecoder
// keeps underscores verbatim), "to"/"from" renamed to avoid colliding with
// the row's own to/from address columns, then the call-specific collision
// suffix for everything else in callReserved.
func renameCallParams(raw map[string]interface{}) map[string]interface{} {
	stripped := make(map[string]interface{}, len(raw))
	for k, v := range raw {
		name := strings.TrimPrefix(k, "_")
		switch name {
		case "to":
			name = "to_function_internal"
		case "from":
			name = "from_function_internal"
		}
		stripped[name] = v
	}

	out := make(map[string]interface{}, len(stripped))
	for k, v := range stripped {
		name := k
		if callReserved[name] {
			name = fmt.Sprintf("%s_functionAttribute", name)
		}
		out[name] = v
	}
	return out
}
