package discovery

import (
	"context"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/sirupsen/logrus"

	"dapp-trace-extractor/internal/trace"
)

// TxSource enumerates candidate transaction hashes touching a frontier of
// addresses, the way extraction.py's fetch_transactions does per outer
// iteration.
type TxSource interface {
	TransactionsFor(ctx context.Context, addresses []string) ([]string, error)
}

// TxTracer reconstructs one transaction's trace rows.
type TxTracer interface {
	TraceRows(ctx context.Context, txHash string) ([]trace.Row, error)
}

// Driver is the DiscoveryDriver of spec.md §4.5, grounded on
// trace_based_logging/extraction.py's process_transactions outer loop:
// while the frontier is non-empty, fetch its transactions, trace them,
// widen the DApp set, and repeat with only the newly admitted addresses.
type Driver struct {
	source   TxSource
	tracer   TxTracer
	analyzer *Analyzer
}

func NewDriver(source TxSource, tracer TxTracer, analyzer *Analyzer) *Driver {
	return &Driver{source: source, tracer: tracer, analyzer: analyzer}
}

// Result is the terminal state of the fixed-point closure: every row traced
// across every outer iteration, and the final DApp contract set.
type Result struct {
	Rows []trace.Row
	DApp mapset.Set[string]
}

// Run drives the closure to completion starting from seed (the configured
// contracts.dapp list). It terminates when an iteration's frontier is empty,
// i.e. no new contract was admitted by the last widen pass.
//
// seenTxs is the global seen-transactions set of spec.md §4.5: candidates
// already traced in an earlier outer iteration are subtracted before
// tracing, so a tx touching two DApp addresses discovered in different
// iterations is only ever traced once.
func (d *Driver) Run(ctx context.Context, seed []string) (Result, error) {
	dapp := mapset.NewSet(seed...)
	frontier := mapset.NewSet(seed...)
	seenTxs := mapset.NewSet[string]()
	var allRows []trace.Row

	for frontier.Cardinality() > 0 {
		addrs := frontier.ToSlice()
		logrus.Infof("discovery: tracing %d frontier address(es)", len(addrs))

		txHashes, err := d.source.TransactionsFor(ctx, addrs)
		if err != nil {
			return Result{}, err
		}

		candidates := mapset.NewSet(txHashes...).Difference(seenTxs)
		if candidates.Cardinality() == 0 {
			break
		}
		seenTxs = seenTxs.Union(candidates)

		var roundRows []trace.Row
		for tx := range candidates.Iter() {
			rows, err := d.tracer.TraceRows(ctx, tx)
			if err != nil {
				logrus.Warnf("discovery: skipping %s: %v", tx, err)
				continue
			}
			roundRows = append(roundRows, rows...)
		}
		allRows = append(allRows, roundRows...)

		var newFrontier mapset.Set[string]
		dapp, newFrontier = d.analyzer.Widen(allRows, dapp)
		frontier = newFrontier
	}

	return Result{Rows: allRows, DApp: dapp}, nil
}
