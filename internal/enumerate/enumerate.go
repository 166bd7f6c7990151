// Package enumerate implements the TxEnumerator (spec.md §4.2): it produces
// the set of candidate transaction hashes touching a set of addresses, from
// up to three sources (normal/internal explorer transactions, by-events
// eth_getLogs sweeps), grounded on
// original_source/raw_trace_retriever/get_transactions.py.
package enumerate

import (
	"context"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/sirupsen/logrus"

	"dapp-trace-extractor/internal/explorer"
	"dapp-trace-extractor/internal/pipeline"
)

// pageSize is the Etherscan page-full marker: get_transactions.py requeries
// with min_block = max block of the last page whenever a page returns
// exactly this many rows.
const pageSize = 10000

// eventsChunkBlocks is the window size for by-events eth_getLogs sweeps
// (get_transactions.py's CHUNK_SIZE).
const eventsChunkBlocks = 10000

// Explorer is the subset of explorer.Client the enumerator needs.
type Explorer interface {
	TxList(ctx context.Context, address string, minBlock, maxBlock uint64, internal bool) ([]explorer.TxListEntry, error)
}

// NodeLogs is the subset of node.Client the by-events enumeration path is
// wired with: eth_getLogs over a bounded window, and a block-timestamp
// lookup. The by-events sweep in TransactionsFor calls only GetLogs and
// returns transaction hashes; it does not look up block timestamps, and
// BlockTimestampCache is not used by it.
type NodeLogs interface {
	GetLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error)
	BlockTimestamp(ctx context.Context, blockNumber uint64) (time.Time, error)
}

// Sources selects which of the three enumeration strategies to use,
// mirroring extraction.py's fetch_transactions flag checks.
type Sources struct {
	Normal    bool
	Internal  bool
	ByEvents  bool
}

// Enumerator is the TxEnumerator of spec.md §4.2.
type Enumerator struct {
	explorer Explorer
	node     NodeLogs
	sources  Sources
}

func New(explorer Explorer, sources Sources) (*Enumerator, error) {
	if !sources.Normal && !sources.Internal && !sources.ByEvents {
		return nil, pipeline.NewError(pipeline.ErrConfig, "enumerate.New", errNoSourceEnabled)
	}
	return &Enumerator{explorer: explorer, sources: sources}, nil
}

// SetNodeLogs wires the node dependency the by-events source needs. It is
// separate from New so explorer-only tests never have to supply a node
// fake; the pipeline wires it whenever Sources.ByEvents is enabled.
func (e *Enumerator) SetNodeLogs(node NodeLogs) {
	e.node = node
}

var errNoSourceEnabled = configError("at least one of normal, internal, by-events must be enabled")

type configError string

func (e configError) Error() string { return string(e) }

// TransactionsFor returns the deduplicated (by hash, keep-last-seen)
// transaction hash list touching any of addresses within [minBlock,
// maxBlock], drawn from whichever sources are enabled. A failure on one
// source is logged and skipped so the others can still contribute
// (extraction.py's per-source try/except).
func (e *Enumerator) TransactionsFor(ctx context.Context, addresses []string, minBlock, maxBlock uint64) ([]string, error) {
	seen := make(map[string]int64) // hash -> timeStamp, keep-last duplicate

	for _, addr := range addresses {
		addr = pipeline.NormalizeAddress(addr)

		if e.sources.Normal {
			if err := e.pageInto(ctx, addr, minBlock, maxBlock, false, seen); err != nil {
				logrus.Warnf("enumerate: normal txlist failed for %s: %v", addr, err)
			}
		}
		if e.sources.Internal {
			if err := e.pageInto(ctx, addr, minBlock, maxBlock, true, seen); err != nil {
				logrus.Warnf("enumerate: internal txlist failed for %s: %v", addr, err)
			}
		}
	}

	if e.sources.ByEvents {
		if e.node == nil {
			logrus.Warnf("enumerate: transactions_by_events enabled but no node client wired, skipping")
		} else {
			byEvents, err := e.ByEventsTransactions(ctx, e.node.GetLogs, addresses, minBlock, maxBlock)
			if err != nil {
				logrus.Warnf("enumerate: by-events sweep failed: %v", err)
			}
			for _, h := range byEvents {
				if _, ok := seen[h]; !ok {
					seen[h] = 0
				}
			}
		}
	}

	hashes := make([]string, 0, len(seen))
	for h := range seen {
		hashes = append(hashes, h)
	}
	return hashes, nil
}

// pageInto fetches every page for one address/source, applying the
// page-full requery rule: when a page returns exactly pageSize rows, the
// next page's minBlock becomes that page's maximum blockNumber (not +1,
// since multiple transactions can share a block and Etherscan's paging is
// inclusive on both ends per get_transactions.py).
func (e *Enumerator) pageInto(ctx context.Context, addr string, minBlock, maxBlock uint64, internal bool, seen map[string]int64) error {
	for {
		rows, err := e.explorer.TxList(ctx, addr, minBlock, maxBlock, internal)
		if err != nil {
			return err
		}
		for _, r := range rows {
			seen[pipeline.NormalizeHash(r.Hash)] = r.TimeStamp
		}
		if len(rows) != pageSize {
			return nil
		}

		var pageMax uint64
		for _, r := range rows {
			if r.BlockNumber > pageMax {
				pageMax = r.BlockNumber
			}
		}
		if pageMax <= minBlock {
			// Defensive: without forward progress the loop would spin
			// forever on a malformed response.
			return nil
		}
		minBlock = pageMax
	}
}

// ByEventsWindows splits [minBlock, maxBlock] into eventsChunkBlocks-sized
// windows for the by-events eth_getLogs sweep (get_transactions.py's
// CHUNK_SIZE windowing).
func ByEventsWindows(minBlock, maxBlock uint64) [][2]uint64 {
	var windows [][2]uint64
	for from := minBlock; from <= maxBlock; from += eventsChunkBlocks {
		to := from + eventsChunkBlocks - 1
		if to > maxBlock {
			to = maxBlock
		}
		windows = append(windows, [2]uint64{from, to})
	}
	return windows
}

// ByEventsTransactions sweeps [minBlock, maxBlock] in eventsChunkBlocks-sized
// windows calling getLogs for the given addresses, returning the
// deduplicated set of transaction hashes that emitted any log. A failure on
// one window is logged and skipped so the sweep can still make progress
// (extraction.py's per-source try/except).
func (e *Enumerator) ByEventsTransactions(ctx context.Context, getLogs func(context.Context, ethereum.FilterQuery) ([]types.Log, error), addresses []string, minBlock, maxBlock uint64) ([]string, error) {
	addrs := make([]common.Address, len(addresses))
	for i, a := range addresses {
		addrs[i] = common.HexToAddress(a)
	}

	seen := make(map[string]struct{})
	for _, window := range ByEventsWindows(minBlock, maxBlock) {
		q := ethereum.FilterQuery{
			FromBlock: new(big.Int).SetUint64(window[0]),
			ToBlock:   new(big.Int).SetUint64(window[1]),
			Addresses: addrs,
		}
		logs, err := getLogs(ctx, q)
		if err != nil {
			logrus.Warnf("enumerate: by-events window [%d,%d] failed: %v", window[0], window[1], err)
			continue
		}
		for _, lg := range logs {
			seen[pipeline.NormalizeHash(lg.TxHash.Hex())] = struct{}{}
		}
	}

	hashes := make([]string, 0, len(seen))
	for h := range seen {
		hashes = append(hashes, h)
	}
	return hashes, nil
}

// BlockTimestampCache caches one block's timestamp across consecutive logs
// sharing the same blockNumber, the way get_transactions.py's
// event_fetcher avoids refetching the block header per log row.
type BlockTimestampCache struct {
	blockNumber uint64
	timestamp   time.Time
	valid       bool
}

// Get returns the cached timestamp if it matches blockNumber, else calls
// fetch and updates the cache.
func (c *BlockTimestampCache) Get(ctx context.Context, blockNumber uint64, fetch func(context.Context, uint64) (time.Time, error)) (time.Time, error) {
	if c.valid && c.blockNumber == blockNumber {
		return c.timestamp, nil
	}
	ts, err := fetch(ctx, blockNumber)
	if err != nil {
		return time.Time{}, err
	}
	c.blockNumber = blockNumber
	c.timestamp = ts
	c.valid = true
	return ts, nil
}
