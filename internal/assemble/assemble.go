// Package assemble implements the LogAssembler (spec.md §4.9): it merges
// decoded event/call rows with reverted-transaction and DApp-membership
// flags and splits the result into the dapp/non_dapp × events/calls/
// delegatecalls/zero_value_calls/creations output streams, grounded on
// transformation_augur.py's mask_reverted/is_dapp flag propagation.
package assemble

import (
	mapset "github.com/deckarep/golang-set/v2"

	"dapp-trace-extractor/internal/config"
	"dapp-trace-extractor/internal/trace"
)

// revertedErrors is the fixed error-string vocabulary that marks a
// transaction as reverted (spec.md §3/§7), taken verbatim from
// transformation_augur.py's mask_reverted isin(...) list.
var revertedErrors = []string{
	"execution reverted",
	"out of gas",
	"invalid jump destination",
	"write protection",
	"invalid opcode: INVALID",
	"contract creation code storage out of gas",
}

// ComputeRevertedSet scans rows for the fixed revert-error vocabulary and
// returns the set of tx_hash values considered reverted.
func ComputeRevertedSet(rows []trace.Row) mapset.Set[string] {
	set := mapset.NewSet[string]()
	for _, r := range rows {
		if r.Error == "" {
			continue
		}
		for _, pattern := range revertedErrors {
			if r.Error == pattern {
				set.Add(r.TxHash)
				break
			}
		}
	}
	return set
}

// DecodedRow is one fully enriched row ready for stream assignment: the
// original TraceRow plus its decoded activity name/params and the two
// boolean flags that route it to the correct output stream.
type DecodedRow struct {
	trace.Row
	Activity    string
	Params      map[string]interface{}
	IsDecoded   bool
	IsReverted  bool
	IsDApp      bool
	IsEvent     bool
	IsZeroValue bool
}

// Streams groups assembled rows by their five output kinds, per side
// (dapp/non_dapp), matching spec.md §6's persisted artifact layout.
type Streams struct {
	Events         []DecodedRow
	Calls          []DecodedRow
	Delegatecalls  []DecodedRow
	ZeroValueCalls []DecodedRow
	Creations      []DecodedRow
}

// Assembler routes DecodedRow values into dapp/non_dapp Streams according to
// the configured StreamFilters (spec.md §4.9, §6).
type Assembler struct {
	dappFilters    config.StreamFilters
	nonDappFilters config.StreamFilters
}

func New(dappFilters, nonDappFilters config.StreamFilters) *Assembler {
	return &Assembler{dappFilters: dappFilters, nonDappFilters: nonDappFilters}
}

// Result is the final, filtered split into dapp and non-dapp streams.
type Result struct {
	DApp    Streams
	NonDApp Streams
}

// Assemble classifies and routes every row in rows, using reverted and dapp
// to set each row's IsReverted/IsDApp flags before filtering.
func (a *Assembler) Assemble(rows []DecodedRow, reverted mapset.Set[string], dapp mapset.Set[string]) Result {
	var result Result

	for _, row := range rows {
		if !row.IsDecoded {
			row.Activity = string(row.Kind)
		}
		row.IsReverted = reverted.Contains(row.TxHash)
		if row.Kind == trace.KindLog {
			row.IsDApp = dapp.Contains(row.Address)
		} else {
			row.IsDApp = dapp.Contains(row.To)
		}
		row.IsZeroValue = row.IsCallKind() && row.CallValue.Valid && row.CallValue.Value != nil && row.CallValue.Value.IsZero()

		filters := a.nonDappFilters
		streams := &result.NonDApp
		if row.IsDApp {
			filters = a.dappFilters
			streams = &result.DApp
		}

		switch {
		case row.Kind == trace.KindLog:
			if filters.Events {
				streams.Events = append(streams.Events, row)
			}
		case row.Kind == trace.KindCreate || row.Kind == trace.KindCreate2:
			if filters.Creations {
				streams.Creations = append(streams.Creations, row)
			}
		case row.Kind == trace.KindDelegateCall || row.Kind == trace.KindCallCode:
			if filters.Delegatecalls {
				streams.Delegatecalls = append(streams.Delegatecalls, row)
			}
		case row.IsZeroValue:
			if filters.ZeroValueCalls {
				streams.ZeroValueCalls = append(streams.ZeroValueCalls, row)
			}
		default:
			if filters.Calls {
				streams.Calls = append(streams.Calls, row)
			}
		}
	}

	return result
}
