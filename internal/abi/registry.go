// Package abi implements the AbiRegistry (spec.md §4.6): per-address ABI
// resolution against the explorer, cached with an LRU, backed by a fixed
// fallback chain of well-known ERC ABIs when an address is unverified or
// its own ABI fails to decode a given log/call.
package abi

import (
	"context"
	"strings"
	"sync"

	gethabi "github.com/ethereum/go-ethereum/accounts/abi"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/sirupsen/logrus"

	"dapp-trace-extractor/internal/pipeline"
)

// Explorer is the subset of explorer.Client the registry depends on.
type Explorer interface {
	GetABI(ctx context.Context, address string) (abiJSON string, verified bool, err error)
}

// Entry is the AbiRegistry state for one address (spec.md §3): the parsed
// ABI when verified, or nothing when not — callers fall back to the
// FallbackChain regardless of verification state, mirroring
// event_decoder.py's `abis = {"CONTRACT_ABI": contract_abi}.update(fallback_abis)`
// construction when a contract_abi exists, or bare fallback_abis otherwise.
type Entry struct {
	Address  string
	Verified bool
	ABI      *gethabi.ABI
}

// Registry is the AbiRegistry: write-once per address, safe for concurrent
// reads and writes. hashicorp/golang-lru/v2's Cache is not itself
// concurrency-safe, so writes are serialized with a mutex (spec.md §5).
type Registry struct {
	mu       sync.Mutex
	cache    *lru.Cache[string, Entry]
	explorer Explorer
}

// New builds a registry with the given LRU capacity.
func New(explorer Explorer, capacity int) (*Registry, error) {
	cache, err := lru.New[string, Entry](capacity)
	if err != nil {
		return nil, err
	}
	return &Registry{cache: cache, explorer: explorer}, nil
}

// Resolve returns the cached entry for address, populating it from the
// explorer on first access. An unverified address is cached too — it is
// never retried (spec.md §4.6, §7 ErrNotVerified is not a retryable kind).
func (r *Registry) Resolve(ctx context.Context, address string) (Entry, error) {
	address = pipeline.NormalizeAddress(address)

	r.mu.Lock()
	if e, ok := r.cache.Get(address); ok {
		r.mu.Unlock()
		return e, nil
	}
	r.mu.Unlock()

	abiJSON, verified, err := r.explorer.GetABI(ctx, address)
	if err != nil {
		return Entry{}, err
	}

	entry := Entry{Address: address, Verified: verified}
	if verified {
		parsed, err := gethabi.JSON(strings.NewReader(abiJSON))
		if err != nil {
			logrus.Warnf("abi: %s verified but ABI failed to parse: %v", address, err)
			entry.Verified = false
		} else {
			entry.ABI = &parsed
		}
	}

	r.mu.Lock()
	r.cache.Add(address, entry)
	r.mu.Unlock()

	return entry, nil
}

// PopulateAll resolves every address up front, the way the batch ABI-fetch
// stage of the pipeline primes the cache before decoding begins. A failure
// resolving one address is logged and skipped rather than aborting the
// whole batch (spec.md §7: "a failure while processing one tx or one
// address must never abort processing of others"); that address is simply
// left unresolved and decoding falls back to the FallbackChain only.
func (r *Registry) PopulateAll(ctx context.Context, addresses []string) error {
	for _, addr := range addresses {
		if _, err := r.Resolve(ctx, addr); err != nil {
			logrus.Warnf("abi: resolve failed for %s, leaving unresolved: %v", addr, err)
		}
	}
	return nil
}
