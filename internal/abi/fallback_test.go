package abi

import "testing"

func TestFallbackChainIncludesStandardERCEvents(t *testing.T) {
	chain, err := FallbackChain("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(chain) != 1 {
		t.Fatalf("expected exactly the base chain with no custom events, got %d", len(chain))
	}

	base := chain[0]
	for _, name := range []string{"Transfer", "Approval", "Sent", "Minted", "Burned", "TransferSingle", "TransferBatch", "URI"} {
		if _, ok := base.Events[name]; !ok {
			t.Errorf("expected fallback chain to define event %s", name)
		}
	}
}

func TestFallbackChainAppendsCustomABI(t *testing.T) {
	custom := `[{"type":"event","name":"MarketCreated","anonymous":false,"inputs":[{"name":"market","type":"address","indexed":true}]}]`
	chain, err := FallbackChain(custom)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(chain) != 2 {
		t.Fatalf("expected base + custom chain, got %d", len(chain))
	}
	if _, ok := chain[1].Events["MarketCreated"]; !ok {
		t.Error("expected custom event present in second chain entry")
	}
}
