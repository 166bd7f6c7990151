package pipeline

import "strings"

// NormalizeAddress lowercases a hex address and ensures the 0x prefix, the
// canonical form every ContractSet membership test and output column relies
// on (spec §3 Address, §8 address-normalization invariant).
func NormalizeAddress(addr string) string {
	addr = strings.ToLower(strings.TrimSpace(addr))
	if addr == "" {
		return addr
	}
	if !strings.HasPrefix(addr, "0x") {
		addr = "0x" + addr
	}
	return addr
}

// NormalizeHash lowercases a 32-byte hex hash (tx hash or topic) with 0x
// prefix, mirroring NormalizeAddress but kept distinct for call-site clarity.
func NormalizeHash(h string) string {
	return NormalizeAddress(h)
}
