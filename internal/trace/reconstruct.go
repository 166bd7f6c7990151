package trace

import (
	"context"
	"strconv"
	"strings"
	"time"

	"dapp-trace-extractor/internal/node"
	"dapp-trace-extractor/internal/pipeline"
)

// Tracer is the subset of node.Client the reconstructor depends on, so tests
// can supply a fake without dialing a real node.
type Tracer interface {
	TraceTransaction(ctx context.Context, txHash string) (*node.CallFrame, error)
}

// Reconstructor turns one transaction's debug_traceTransaction result into
// its flattened Row slice (spec.md §4.3).
type Reconstructor struct {
	tracer Tracer

	// CleanDepth switches trace_pos_depth assignment from the quirky
	// reserved-slot default to a straightforward one (see walk below).
	// spec.md §9 offers the clean scheme only "behind a feature flag";
	// the default (false) replicates the quirk bit-for-bit for
	// reproducibility with existing datasets.
	CleanDepth bool
}

func New(tracer Tracer) *Reconstructor {
	return &Reconstructor{tracer: tracer}
}

// Reconstruct fetches and flattens the trace for txHash. It never returns
// rows for a transaction whose trace could not be retrieved; the caller logs
// and skips per spec.md §4.1/§7.
func (r *Reconstructor) Reconstruct(ctx context.Context, txHash string, blockNumber uint64, timestamp time.Time) ([]Row, error) {
	frame, err := r.tracer.TraceTransaction(ctx, txHash)
	if err != nil {
		return nil, err
	}

	pos := 0
	var rows []Row
	walk(frame, "1", &pos, txHash, blockNumber, timestamp, &rows, r.CleanDepth)
	return rows, nil
}

// walk performs the pre-order depth-first traversal assigning trace_pos and
// trace_pos_depth. Children of a call node are its "calls" entries (in
// order) followed by its "logs" entries (in order).
//
// trace_pos_depth replicates the quirk spec.md §4.3 step 2/§8 Scenario 1/§9
// document: the "calls" group always reserves depth slot 1 for itself, even
// when the node has zero nested calls, so a node with no calls and two logs
// numbers them "X.2"/"X.3" rather than "X.1"/"X.2". cleanDepth=true skips
// the reservation and numbers children by plain running count instead.
func walk(frame *node.CallFrame, path string, pos *int, txHash string, blockNumber uint64, timestamp time.Time, rows *[]Row, cleanDepth bool) {
	*pos++
	row := Row{
		TxHash:        txHash,
		BlockNumber:   blockNumber,
		Timestamp:     timestamp,
		TracePos:      *pos,
		TracePosDepth: path,
		Kind:          Kind(strings.ToUpper(frame.Type)),
		From:          pipeline.NormalizeAddress(frame.From),
		To:            pipeline.NormalizeAddress(frame.To),
		Gas:           ParseHexNumeric(frame.Gas),
		GasUsed:       ParseHexNumeric(frame.GasUsed),
		CallValue:     ParseHexNumeric(frame.Value),
		Input:         hexBytes(frame.Input),
		Output:        hexBytes(frame.Output),
		Error:         frame.Error,
	}
	*rows = append(*rows, row)

	childIdx := 0
	for i := range frame.Calls {
		childIdx++
		walk(&frame.Calls[i], path+"."+strconv.Itoa(childIdx), pos, txHash, blockNumber, timestamp, rows, cleanDepth)
	}

	logBase := childIdx
	if logBase == 0 && !cleanDepth {
		logBase = 1 // quirk: slot 1 is reserved for the calls group even when empty
	}
	for i, lg := range frame.Logs {
		*pos++
		logRow := Row{
			TxHash:        txHash,
			BlockNumber:   blockNumber,
			Timestamp:     timestamp,
			TracePos:      *pos,
			TracePosDepth: path + "." + strconv.Itoa(logBase+i+1),
			Kind:          KindLog,
			Address:       pipeline.NormalizeAddress(lg.Address),
			Topics:        normalizeTopics(lg.Topics),
			Data:          hexBytes(lg.Data),
		}
		*rows = append(*rows, logRow)
	}
}

func normalizeTopics(topics []string) []string {
	out := make([]string, len(topics))
	for i, t := range topics {
		out[i] = pipeline.NormalizeHash(t)
	}
	return out
}

func hexBytes(s string) []byte {
	s = strings.TrimPrefix(s, "0x")
	if s == "" {
		return nil
	}
	if len(s)%2 != 0 {
		s = "0" + s
	}
	b := make([]byte, len(s)/2)
	for i := 0; i < len(b); i++ {
		hi := hexNibble(s[i*2])
		lo := hexNibble(s[i*2+1])
		if hi < 0 || lo < 0 {
			return nil
		}
		b[i] = byte(hi<<4 | lo)
	}
	return b
}

func hexNibble(c byte) int {
	switch {
	case c >= '0' && c <= '9':
		return int(c - '0')
	case c >= 'a' && c <= 'f':
		return int(c-'a') + 10
	case c >= 'A' && c <= 'F':
		return int(c-'A') + 10
	default:
		return -1
	}
}
