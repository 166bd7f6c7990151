package enumerate

import (
	"context"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"dapp-trace-extractor/internal/explorer"
)

type fakeNodeLogs struct {
	logs []types.Log
}

func (f *fakeNodeLogs) GetLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error) {
	return f.logs, nil
}

func (f *fakeNodeLogs) BlockTimestamp(ctx context.Context, blockNumber uint64) (time.Time, error) {
	return time.Unix(0, 0).UTC(), nil
}

type fakeExplorer struct {
	pages map[string][][]explorer.TxListEntry // address -> successive pages
	calls []uint64                            // minBlock of each call, in order
}

func (f *fakeExplorer) TxList(ctx context.Context, address string, minBlock, maxBlock uint64, internal bool) ([]explorer.TxListEntry, error) {
	f.calls = append(f.calls, minBlock)
	pages := f.pages[address]
	if len(pages) == 0 {
		return nil, nil
	}
	page := pages[0]
	f.pages[address] = pages[1:]
	return page, nil
}

func fullPage(n int, blockNumber uint64) []explorer.TxListEntry {
	out := make([]explorer.TxListEntry, n)
	for i := range out {
		out[i] = explorer.TxListEntry{Hash: "0xh", BlockNumber: blockNumber}
	}
	return out
}

func TestPageIntoRequeriesWithMaxBlockOnPageFull(t *testing.T) {
	fake := &fakeExplorer{
		pages: map[string][][]explorer.TxListEntry{
			"0xaddr": {
				fullPage(pageSize, 500),
				{{Hash: "0xlast", BlockNumber: 600}},
			},
		},
	}
	enumerator, err := New(fake, Sources{Normal: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	seen := make(map[string]int64)
	if err := enumerator.pageInto(context.Background(), "0xaddr", 0, 1000, false, seen); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(fake.calls) != 2 {
		t.Fatalf("expected 2 paged calls, got %d: %v", len(fake.calls), fake.calls)
	}
	if fake.calls[1] != 500 {
		t.Errorf("expected second call's minBlock to be the first page's max block (500), got %d", fake.calls[1])
	}
}

func TestTransactionsForDedupesByHashKeepLast(t *testing.T) {
	fake := &fakeExplorer{
		pages: map[string][][]explorer.TxListEntry{
			"0xa": {{{Hash: "0xdup", TimeStamp: 1}, {Hash: "0xonly_a", TimeStamp: 2}}},
			"0xb": {{{Hash: "0xdup", TimeStamp: 9}}},
		},
	}
	enumerator, err := New(fake, Sources{Normal: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	hashes, err := enumerator.TransactionsFor(context.Background(), []string{"0xa", "0xb"}, 0, 1000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(hashes) != 2 {
		t.Fatalf("expected 2 unique hashes, got %d: %v", len(hashes), hashes)
	}
}

func TestNewRejectsAllSourcesDisabled(t *testing.T) {
	if _, err := New(&fakeExplorer{pages: map[string][][]explorer.TxListEntry{}}, Sources{}); err == nil {
		t.Fatal("expected ConfigError when no source is enabled")
	}
}

func TestTransactionsForMergesByEventsWhenWired(t *testing.T) {
	fake := &fakeExplorer{pages: map[string][][]explorer.TxListEntry{
		"0xa": {{{Hash: "0xfromexplorer", TimeStamp: 1}}},
	}}
	enumerator, err := New(fake, Sources{Normal: true, ByEvents: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	enumerator.SetNodeLogs(&fakeNodeLogs{logs: []types.Log{
		{TxHash: common.HexToHash("0xfromevents")},
	}})

	hashes, err := enumerator.TransactionsFor(context.Background(), []string{"0xa"}, 0, 1000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(hashes) != 2 {
		t.Fatalf("expected 2 merged hashes (explorer + by-events), got %d: %v", len(hashes), hashes)
	}
}

func TestTransactionsForWarnsWithoutCrashingWhenByEventsUnwired(t *testing.T) {
	fake := &fakeExplorer{pages: map[string][][]explorer.TxListEntry{}}
	enumerator, err := New(fake, Sources{ByEvents: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := enumerator.TransactionsFor(context.Background(), []string{"0xa"}, 0, 1000); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestByEventsWindowsChunking(t *testing.T) {
	windows := ByEventsWindows(0, 25000)
	if len(windows) != 3 {
		t.Fatalf("expected 3 windows, got %d: %v", len(windows), windows)
	}
	if windows[0] != [2]uint64{0, 9999} {
		t.Errorf("unexpected first window: %v", windows[0])
	}
	if windows[2] != [2]uint64{20000, 25000} {
		t.Errorf("unexpected last window: %v", windows[2])
	}
}
