package abi

import (
	"context"
	"testing"
)

type fakeExplorer struct {
	calls    int
	abiJSON  string
	verified bool
}

func (f *fakeExplorer) GetABI(ctx context.Context, address string) (string, bool, error) {
	f.calls++
	return f.abiJSON, f.verified, nil
}

const sampleABI = `[{"type":"function","name":"foo","inputs":[],"outputs":[],"stateMutability":"nonpayable"}]`

func TestResolveCachesAfterFirstLookup(t *testing.T) {
	fake := &fakeExplorer{abiJSON: sampleABI, verified: true}
	reg, err := New(fake, 16)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for i := 0; i < 3; i++ {
		entry, err := reg.Resolve(context.Background(), "0xABC")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !entry.Verified || entry.ABI == nil {
			t.Fatalf("expected verified entry with parsed abi, got %+v", entry)
		}
	}
	if fake.calls != 1 {
		t.Errorf("expected exactly 1 explorer call, got %d", fake.calls)
	}
}

func TestResolveNormalizesAddressCase(t *testing.T) {
	fake := &fakeExplorer{abiJSON: sampleABI, verified: true}
	reg, err := New(fake, 16)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := reg.Resolve(context.Background(), "0xABC"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := reg.Resolve(context.Background(), "0xabc"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fake.calls != 1 {
		t.Errorf("expected case-insensitive cache hit, got %d calls", fake.calls)
	}
}

func TestResolveCachesUnverifiedWithoutParsing(t *testing.T) {
	fake := &fakeExplorer{abiJSON: "", verified: false}
	reg, err := New(fake, 16)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	entry, err := reg.Resolve(context.Background(), "0xdead")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if entry.Verified || entry.ABI != nil {
		t.Fatalf("expected unverified entry with no ABI, got %+v", entry)
	}
}
