package discovery

import (
	"context"
	"testing"

	"dapp-trace-extractor/internal/trace"
)

type fakeSource struct {
	calls [][]string
	txs   map[string][]string // address -> tx hashes touching it
}

func (f *fakeSource) TransactionsFor(ctx context.Context, addresses []string) ([]string, error) {
	f.calls = append(f.calls, append([]string(nil), addresses...))
	var out []string
	for _, a := range addresses {
		out = append(out, f.txs[a]...)
	}
	return out, nil
}

type fakeTxTracer struct {
	rows map[string][]trace.Row
}

func (f *fakeTxTracer) TraceRows(ctx context.Context, txHash string) ([]trace.Row, error) {
	return f.rows[txHash], nil
}

// TestDriverRunConverges exercises a two-generation discovery: tx1 (touching
// the seed) creates a child contract; tx2 (touching the child, only
// discoverable once the child joins the frontier) has no further creations,
// so the driver must terminate after exactly two outer iterations.
func TestDriverRunConverges(t *testing.T) {
	source := &fakeSource{
		txs: map[string][]string{
			"0xseed":  {"tx1"},
			"0xchild": {"tx2"},
		},
	}
	tracer := &fakeTxTracer{
		rows: map[string][]trace.Row{
			"tx1": {creationRow("0xseed", "0xchild")},
			"tx2": {},
		},
	}

	driver := NewDriver(source, tracer, NewAnalyzer(nil))
	result, err := driver.Run(context.Background(), []string{"0xseed"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !result.DApp.Contains("0xseed") || !result.DApp.Contains("0xchild") {
		t.Errorf("expected both seed and child in final set, got %v", result.DApp.ToSlice())
	}
	if len(source.calls) != 2 {
		t.Fatalf("expected exactly 2 outer iterations, got %d: %v", len(source.calls), source.calls)
	}
	if len(result.Rows) != 1 {
		t.Errorf("expected 1 accumulated row, got %d", len(result.Rows))
	}
}

func TestDriverRunTerminatesWithEmptySeed(t *testing.T) {
	driver := NewDriver(&fakeSource{}, &fakeTxTracer{}, NewAnalyzer(nil))
	result, err := driver.Run(context.Background(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.DApp.Cardinality() != 0 {
		t.Errorf("expected empty dapp set, got %v", result.DApp.ToSlice())
	}
}
