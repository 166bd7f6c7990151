// Package sink defines the persistence boundary for assembled output
// streams (spec.md §1 Non-goals: filesystem/CSV/Parquet/OCEL persistence is
// an external collaborator's responsibility, not this module's). It mirrors
// the teacher's internal/sink.Sink shape — a narrow write interface a
// concrete storage backend implements — without providing a file-writing
// implementation.
package sink

import "dapp-trace-extractor/internal/assemble"

// StreamSink receives one fully assembled output stream for persistence.
// name identifies the stream, e.g. "dapp.events" or "non_dapp.creations".
type StreamSink interface {
	WriteStream(name string, rows []assemble.DecodedRow) error
}

// ContractSetSink receives the final DApp contract set once discovery
// converges, for persistence as the module's "dapp contract set" artifact
// (spec.md §6).
type ContractSetSink interface {
	WriteContractSet(addresses []string) error
}

// Sink is the combined persistence boundary the pipeline writes to.
type Sink interface {
	StreamSink
	ContractSetSink
}

// MemorySink is an in-memory StreamSink/ContractSetSink reference
// implementation. The tests, the CLI and the API server all write to it, so
// their output is held in memory only and is not persisted.
type MemorySink struct {
	Streams   map[string][]assemble.DecodedRow
	Contracts []string
}

func NewMemorySink() *MemorySink {
	return &MemorySink{Streams: make(map[string][]assemble.DecodedRow)}
}

func (m *MemorySink) WriteStream(name string, rows []assemble.DecodedRow) error {
	m.Streams[name] = append(m.Streams[name], rows...)
	return nil
}

func (m *MemorySink) WriteContractSet(addresses []string) error {
	m.Contracts = append(m.Contracts, addresses...)
	return nil
}
