// Package pipeline wires NodeClient, TxEnumerator, TraceReconstructor,
// CreateRelationAnalyzer/DiscoveryDriver, AbiRegistry, EventDecoder/
// CallDecoder and LogAssembler into the three CLI-facing phases (extract,
// decode, transform) of spec.md §6, replacing the ad hoc global mutable
// state the Python original keeps across its pipeline stages (§9 design
// note) with one explicit Context value threaded through every call.
package pipeline

import (
	"context"
	"sync"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/sirupsen/logrus"

	"dapp-trace-extractor/internal/abi"
	"dapp-trace-extractor/internal/assemble"
	"dapp-trace-extractor/internal/config"
	"dapp-trace-extractor/internal/decode"
	"dapp-trace-extractor/internal/discovery"
	"dapp-trace-extractor/internal/enumerate"
	"dapp-trace-extractor/internal/explorer"
	"dapp-trace-extractor/internal/node"
	"dapp-trace-extractor/internal/sink"
	"dapp-trace-extractor/internal/trace"
)

// Context owns every piece of state shared across the pipeline's phases:
// the DApp contract set, the reverted-transaction set and the ABI registry,
// explicit fields instead of module-level globals (spec.md §9).
type Context struct {
	Config   *config.Config
	Node     *node.Client
	Explorer *explorer.Client

	Registry  *abi.Registry
	EventDec  *decode.EventDecoder
	CallDec   *decode.CallDecoder
	Assembler *assemble.Assembler
	Sink      sink.Sink

	DApp     mapset.Set[string]
	Reverted mapset.Set[string]
}

// New builds a pipeline Context from a loaded Config and dialed clients.
func New(cfg *config.Config, nodeClient *node.Client, explorerClient *explorer.Client, registry *abi.Registry, eventDec *decode.EventDecoder, callDec *decode.CallDecoder, assembler *assemble.Assembler, out sink.Sink) *Context {
	return &Context{
		Config:    cfg,
		Node:      nodeClient,
		Explorer:  explorerClient,
		Registry:  registry,
		EventDec:  eventDec,
		CallDec:   callDec,
		Assembler: assembler,
		Sink:      out,
		DApp:      mapset.NewSet[string](),
		Reverted:  mapset.NewSet[string](),
	}
}

// txSourceAdapter adapts Enumerator+Config block range into a
// discovery.TxSource.
type txSourceAdapter struct {
	enumerator *enumerate.Enumerator
	minBlock   uint64
	maxBlock   uint64
}

func (a *txSourceAdapter) TransactionsFor(ctx context.Context, addresses []string) ([]string, error) {
	return a.enumerator.TransactionsFor(ctx, addresses, a.minBlock, a.maxBlock)
}

// txTracerAdapter adapts a trace.Reconstructor plus block metadata lookup
// into a discovery.TxTracer.
type txTracerAdapter struct {
	reconstructor *trace.Reconstructor
	node          *node.Client
}

func (a *txTracerAdapter) TraceRows(ctx context.Context, txHash string) ([]trace.Row, error) {
	info, err := a.node.GetTransactionBlockInfo(ctx, txHash)
	if err != nil {
		return nil, err
	}
	timestamp, err := a.node.BlockTimestamp(ctx, info.BlockNumber)
	if err != nil {
		return nil, err
	}
	rows, err := a.reconstructor.Reconstruct(ctx, txHash, info.BlockNumber, timestamp)
	if err != nil {
		return nil, err
	}
	for i := range rows {
		rows[i].TxIndex = info.TransactionIndex
	}
	return rows, nil
}

// Extract runs the DiscoveryDriver fixed-point closure (spec.md §4.5) and
// stores the resulting DApp set and raw trace rows on the context.
func (c *Context) Extract(ctx context.Context) ([]trace.Row, error) {
	enumerator, err := enumerate.New(c.Explorer, enumerate.Sources{
		Normal:   c.Config.Extraction.NormalTransactions,
		Internal: c.Config.Extraction.InternalTransactions,
		ByEvents: c.Config.Extraction.TransactionsByEvents,
	})
	if err != nil {
		return nil, err
	}
	if c.Config.Extraction.TransactionsByEvents {
		enumerator.SetNodeLogs(c.Node)
	}

	source := &txSourceAdapter{
		enumerator: enumerator,
		minBlock:   c.Config.BlockRange.MinBlock,
		maxBlock:   c.Config.BlockRange.MaxBlock,
	}
	tracer := &txTracerAdapter{
		reconstructor: trace.New(c.Node),
		node:          c.Node,
	}

	denyList := discovery.NewDenyList(c.Config.Contracts.NonDApp)
	analyzer := discovery.NewAnalyzer(denyList)
	driver := discovery.NewDriver(source, tracer, analyzer)

	result, err := driver.Run(ctx, c.Config.Contracts.DApp)
	if err != nil {
		return nil, err
	}

	c.DApp = result.DApp
	c.Reverted = assemble.ComputeRevertedSet(result.Rows)
	if err := c.Sink.WriteContractSet(c.DApp.ToSlice()); err != nil {
		return nil, err
	}
	return result.Rows, nil
}

// Decode resolves each row's contract ABI and decodes its event/call
// parameters concurrently across a bounded worker pool (spec.md §5),
// reducing results on a single goroutine to avoid locking the output slice.
func (c *Context) Decode(ctx context.Context, rows []trace.Row) ([]assemble.DecodedRow, error) {
	addresses := mapset.NewSet[string]()
	for _, r := range rows {
		if r.Kind == trace.KindLog {
			addresses.Add(r.Address)
		} else {
			addresses.Add(r.To)
		}
	}
	if err := c.Registry.PopulateAll(ctx, addresses.ToSlice()); err != nil {
		return nil, err
	}

	jobs := make(chan trace.Row)
	results := make(chan assemble.DecodedRow, len(rows))

	var wg sync.WaitGroup
	workers := c.Config.Workers
	if workers < 1 {
		workers = 1
	}
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for row := range jobs {
				results <- c.decodeRow(ctx, row)
			}
		}()
	}

	go func() {
		for _, r := range rows {
			jobs <- r
		}
		close(jobs)
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	decoded := make([]assemble.DecodedRow, 0, len(rows))
	for d := range results {
		decoded = append(decoded, d)
	}
	return decoded, nil
}

// decodeRow always returns a row, even on a DecodeMiss (spec.md §4.7 step 3,
// §4.8 step 4, §7's DecodeMiss policy): a row with no matching selector or
// topic0 is preserved with IsDecoded=false rather than dropped, so the
// LogAssembler can still route it and default its Activity to the raw kind.
func (c *Context) decodeRow(ctx context.Context, row trace.Row) assemble.DecodedRow {
	address := row.To
	if row.Kind == trace.KindLog {
		address = row.Address
	}

	entry, err := c.Registry.Resolve(ctx, address)
	if err != nil {
		logrus.Warnf("pipeline: abi resolve failed for %s: %v", address, err)
		entry = abi.Entry{}
	}

	out := assemble.DecodedRow{Row: row}

	switch row.Kind {
	case trace.KindLog:
		dec, ok := c.EventDec.Decode(entry.ABI, row.Topics, row.Data)
		if ok {
			out.Activity, out.Params, out.IsDecoded = dec.Name, dec.Params, true
		}
	case trace.KindCreate, trace.KindCreate2:
		out.Activity, out.IsDecoded = "contract_creation", true
	default:
		dec, ok := c.CallDec.Decode(entry.ABI, row.Input)
		if ok {
			out.Activity, out.Params, out.IsDecoded = dec.Name, dec.Params, true
		}
	}
	return out
}

// Transform assembles decoded rows into their output streams and writes
// each to the sink (spec.md §4.9, §6).
func (c *Context) Transform(ctx context.Context, decoded []assemble.DecodedRow) error {
	result := c.Assembler.Assemble(decoded, c.Reverted, c.DApp)

	streams := map[string][]assemble.DecodedRow{
		"dapp.events":              result.DApp.Events,
		"dapp.calls":               result.DApp.Calls,
		"dapp.delegatecalls":       result.DApp.Delegatecalls,
		"dapp.zero_value_calls":    result.DApp.ZeroValueCalls,
		"dapp.creations":           result.DApp.Creations,
		"non_dapp.events":          result.NonDApp.Events,
		"non_dapp.calls":           result.NonDApp.Calls,
		"non_dapp.delegatecalls":   result.NonDApp.Delegatecalls,
		"non_dapp.zero_value_calls": result.NonDApp.ZeroValueCalls,
		"non_dapp.creations":       result.NonDApp.Creations,
	}

	for name, rows := range streams {
		if len(rows) == 0 {
			continue
		}
		if err := c.Sink.WriteStream(name, rows); err != nil {
			return err
		}
	}
	return nil
}

// Run executes all three phases in sequence, the CLI's default mode.
func (c *Context) Run(ctx context.Context) error {
	rows, err := c.Extract(ctx)
	if err != nil {
		return err
	}
	decoded, err := c.Decode(ctx, rows)
	if err != nil {
		return err
	}
	return c.Transform(ctx, decoded)
}
