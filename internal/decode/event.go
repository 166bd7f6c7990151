// Package decode implements the EventDecoder and CallDecoder (spec.md §4.7,
// §4.8), grounded on the teacher's internal/parser.Parser.Parse (which uses
// abi.ParseTopicsIntoMap/UnpackIntoMap) and on
// original_source/.../trace_decoder/event_decoder.py's try-each-ABI fallback
// policy and data_preparation.py's column-collision naming rules.
package decode

import (
	"fmt"

	gethabi "github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"
)

// DecodedEvent is one successfully decoded log: its name and its flattened
// parameter map, suffixed per the §4.7 collision policy.
type DecodedEvent struct {
	Name   string
	Params map[string]interface{}
}

// EventDecoder resolves a log's event name and arguments by trying the
// contract's own ABI first, then each fallback ABI in order, exactly as
// event_decoder.py's `abis` dict construction and the subsequent for-loop
// over it: the first ABI whose topic0 matches an event AND successfully
// unpacks is used; every other candidate is only logged at debug level.
type EventDecoder struct {
	fallback []*gethabi.ABI
}

func NewEventDecoder(fallback []*gethabi.ABI) *EventDecoder {
	return &EventDecoder{fallback: fallback}
}

// Decode attempts ownABI (nil when the contract is unverified) first, then
// each fallback ABI, returning the first successful decode.
func (d *EventDecoder) Decode(ownABI *gethabi.ABI, topics []string, data []byte) (DecodedEvent, bool) {
	candidates := make([]*gethabi.ABI, 0, len(d.fallback)+1)
	if ownABI != nil {
		candidates = append(candidates, ownABI)
	}
	candidates = append(candidates, d.fallback...)

	if len(topics) == 0 {
		return DecodedEvent{}, false
	}
	topic0 := common.HexToHash(topics[0])

	for _, candidate := range candidates {
		ev, err := candidate.EventByID(topic0)
		if err != nil {
			continue
		}

		raw := make(map[string]interface{})
		if len(data) > 0 {
			if err := candidate.UnpackIntoMap(raw, ev.Name, data); err != nil {
				logrus.Debugf("event_decoder: %s non-indexed unpack failed: %v", ev.Name, err)
				continue
			}
		}

		indexedTopics := make([]common.Hash, 0, len(topics)-1)
		for _, t := range topics[1:] {
			indexedTopics = append(indexedTopics, common.HexToHash(t))
		}
		if err := gethabi.ParseTopicsIntoMap(raw, indexedArguments(ev.Inputs), indexedTopics); err != nil {
			logrus.Debugf("event_decoder: %s indexed unpack failed: %v", ev.Name, err)
			continue
		}

		return DecodedEvent{Name: ev.Name, Params: suffixEventCollisions(raw)}, true
	}

	return DecodedEvent{}, false
}

func indexedArguments(args gethabi.Arguments) gethabi.Arguments {
	out := make(gethabi.Arguments, 0, len(args))
	for _, a := range args {
		if a.Indexed {
			out = append(out, a)
		}
	}
	return out
}

// eventReserved is the LOG-row output-schema column set a decoded event
// parameter name must not collide with, matching data_preparation.py:404's
// per-stream reserved set for events (name, address, timeStamp, tracePos,
// tracePosDepth, hash, blockNumber, transactionIndex) against this
// codebase's TraceRow/DecodedRow field names.
var eventReserved = map[string]bool{
	"name": true, "address": true, "timestamp": true,
	"trace_pos": true, "trace_pos_depth": true, "hash": true,
	"block_number": true, "transaction_index": true,
}

// suffixEventCollisions renames decoded event parameters that collide with
// eventReserved by appending "_eventAttribute". Unlike call parameters,
// event parameters keep any leading underscore verbatim (§4.7 has no
// underscore-stripping step; that rule is CallDecoder-only, §4.8 step 3).
func suffixEventCollisions(raw map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(raw))
	for k, v := range raw {
		name := k
		if eventReserved[name] {
			name = fmt.Sprintf("%s_eventAttribute", name)
		}
		out[name] = v
	}
	return out
}
