package discovery

import (
	"testing"

	mapset "github.com/deckarep/golang-set/v2"

	"dapp-trace-extractor/internal/trace"
)

func creationRow(from, to string) trace.Row {
	return trace.Row{Kind: trace.KindCreate, From: from, To: to}
}

// TestWidenFixedPointClosure mirrors create_relations.py's core scenario: a
// seed contract that creates a child, which in turn is the creator of a
// grandchild. One call to Widen must reach the full transitive closure
// because the inner loop runs to local convergence against the whole
// accumulated row set.
func TestWidenFixedPointClosure(t *testing.T) {
	rows := []trace.Row{
		creationRow("0xdeployer", "0xseed"),
		creationRow("0xseed", "0xchild"),
		creationRow("0xchild", "0xgrandchild"),
	}

	analyzer := NewAnalyzer(nil)
	dapp := mapset.NewSet("0xseed")

	widened, frontier := analyzer.Widen(rows, dapp)

	for _, want := range []string{"0xseed", "0xdeployer", "0xchild", "0xgrandchild"} {
		if !widened.Contains(want) {
			t.Errorf("expected %s in widened set, got %v", want, widened.ToSlice())
		}
	}
	if frontier.Contains("0xseed") {
		t.Error("seed must not reappear in the newly-admitted frontier")
	}
	if !frontier.Contains("0xdeployer") || !frontier.Contains("0xgrandchild") {
		t.Errorf("frontier missing newly admitted addresses: %v", frontier.ToSlice())
	}
}

func TestWidenPrunesDenyList(t *testing.T) {
	rows := []trace.Row{
		creationRow("0xseed", "0xfactory"),
	}
	deny := NewDenyList([]string{"0xfactory"})
	analyzer := NewAnalyzer(deny)
	dapp := mapset.NewSet("0xseed")

	widened, frontier := analyzer.Widen(rows, dapp)

	if widened.Contains("0xfactory") {
		t.Error("denied address must be pruned from the widened set")
	}
	if frontier.Contains("0xfactory") {
		t.Error("denied address must be pruned from the frontier")
	}
}

func TestWidenNoOpWithoutCreations(t *testing.T) {
	analyzer := NewAnalyzer(nil)
	dapp := mapset.NewSet("0xseed")

	widened, frontier := analyzer.Widen(nil, dapp)

	if widened.Cardinality() != 1 || !widened.Contains("0xseed") {
		t.Errorf("expected unchanged set, got %v", widened.ToSlice())
	}
	if frontier.Cardinality() != 0 {
		t.Errorf("expected empty frontier, got %v", frontier.ToSlice())
	}
}
