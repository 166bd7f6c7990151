package pipeline

import (
	"context"
	"testing"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dapp-trace-extractor/internal/abi"
	"dapp-trace-extractor/internal/assemble"
	"dapp-trace-extractor/internal/config"
	"dapp-trace-extractor/internal/decode"
	"dapp-trace-extractor/internal/sink"
	"dapp-trace-extractor/internal/trace"
)

// stubExplorer always reports the address unverified, forcing every decode
// in these tests through the fallback chain only.
type stubExplorer struct{}

func (stubExplorer) GetABI(ctx context.Context, address string) (string, bool, error) {
	return "", false, nil
}

func newTestContext(t *testing.T) *Context {
	t.Helper()
	fallback, err := abi.FallbackChain("")
	require.NoError(t, err)

	registry, err := abi.New(stubExplorer{}, 128)
	require.NoError(t, err)

	cfg := &config.Config{Workers: 2}
	return New(cfg, nil, nil, registry, decode.NewEventDecoder(fallback), decode.NewCallDecoder(fallback), assemble.New(config.StreamFilters{}, config.StreamFilters{}), sink.NewMemorySink())
}

// transferTopic0 is keccak256("Transfer(address,address,uint256)"), the
// ERC-20 fallback-chain event used by spec.md §8 scenario 5.
const transferTopic0 = "0xddf252ad1be2c89b69c2b068fc378daa952ba7f163c4a11628f55a4df523b3ef"

func TestDecodeFallsBackToERC20TransferEvent(t *testing.T) {
	c := newTestContext(t)

	from := "0x000000000000000000000000000000000000aa"
	to := "0x000000000000000000000000000000000000bb"
	row := trace.Row{
		Kind:    trace.KindLog,
		TxHash:  "0x1",
		Address: "0xcontract",
		Topics: []string{
			transferTopic0,
			"0x000000000000000000000000000000000000000000000000000000000000" + from[2:],
			"0x000000000000000000000000000000000000000000000000000000000000" + to[2:],
		},
		Data: make([]byte, 32),
	}

	decoded, err := c.Decode(context.Background(), []trace.Row{row})
	require.NoError(t, err)
	require.Len(t, decoded, 1)
	assert.True(t, decoded[0].IsDecoded)
	assert.Equal(t, "Transfer", decoded[0].Activity)
}

func TestDecodeMissPreservesRowMarkedUndecoded(t *testing.T) {
	c := newTestContext(t)

	row := trace.Row{
		Kind:   trace.KindLog,
		TxHash: "0x2",
		Topics: []string{"0xdeadbeefdeadbeefdeadbeefdeadbeefdeadbeefdeadbeefdeadbeefdeadbeef"},
		Data:   nil,
	}

	decoded, err := c.Decode(context.Background(), []trace.Row{row})
	require.NoError(t, err)
	require.Len(t, decoded, 1)
	assert.False(t, decoded[0].IsDecoded)
	assert.Empty(t, decoded[0].Activity)
}

func TestDecodePreservesUndecodableCallRow(t *testing.T) {
	c := newTestContext(t)

	row := trace.Row{
		Kind:  trace.KindCall,
		To:    "0xsomewhere",
		Input: []byte{0xde, 0xad, 0xbe, 0xef},
	}

	decoded, err := c.Decode(context.Background(), []trace.Row{row})
	require.NoError(t, err)
	require.Len(t, decoded, 1)
	assert.False(t, decoded[0].IsDecoded)
}

func TestTransformRoutesDecodedRowsToSink(t *testing.T) {
	c := newTestContext(t)
	c.Assembler = assemble.New(
		config.StreamFilters{Events: true, Calls: true, Delegatecalls: true, ZeroValueCalls: true, Creations: true},
		config.StreamFilters{Events: true, Calls: true, Delegatecalls: true, ZeroValueCalls: true, Creations: true},
	)

	decoded := []assemble.DecodedRow{
		{Row: trace.Row{Kind: trace.KindLog, Address: "0xdapp", TxHash: "0x1"}, IsDecoded: true, Activity: "Transfer"},
	}
	c.DApp = mapset.NewSet("0xdapp")

	require.NoError(t, c.Transform(context.Background(), decoded))

	mem := c.Sink.(*sink.MemorySink)
	assert.Len(t, mem.Streams["dapp.events"], 1)
}
