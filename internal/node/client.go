// Package node wraps the Ethereum JSON-RPC endpoint (NodeClient, spec.md
// §4.1), adding bounded-attempt fixed-delay retries the way the teacher's
// internal/rpc.Client does around ethclient, generalized with
// cenkalti/backoff instead of a hand-rolled attempt loop.
package node

import (
	"context"
	"encoding/json"
	"math/big"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/sirupsen/logrus"

	"dapp-trace-extractor/internal/pipeline"
)

// Client is the NodeClient of spec.md §4.1: debug_traceTransaction,
// eth_getLogs, eth_getTransaction, eth_getCode, each retried up to a bounded
// attempt budget with a fixed delay between attempts.
type Client struct {
	eth      *ethclient.Client
	rpcCli   *rpc.Client
	attempts int
	delay    time.Duration
}

// Dial connects to the node's JSON-RPC endpoint.
func Dial(ctx context.Context, url string, attempts int, delay time.Duration) (*Client, error) {
	rpcCli, err := rpc.DialContext(ctx, url)
	if err != nil {
		return nil, pipeline.NewError(pipeline.ErrTransport, "node.Dial", err)
	}
	return &Client{
		eth:      ethclient.NewClient(rpcCli),
		rpcCli:   rpcCli,
		attempts: attempts,
		delay:    delay,
	}, nil
}

func (c *Client) backoffPolicy() backoff.BackOff {
	return backoff.WithMaxRetries(backoff.NewConstantBackOff(c.delay), uint64(c.attempts-1))
}

// CallFrame is the decoded shape of a debug_traceTransaction (callTracer,
// withLog:true) result node. Struct field order has no effect on decoding
// or on the walk order: internal/trace visits Calls, then Logs, explicitly
// to produce the pre-order walk.
type CallFrame struct {
	Type    string      `json:"type"`
	From    string      `json:"from"`
	To      string      `json:"to"`
	Value   string      `json:"value"`
	Gas     string       `json:"gas"`
	GasUsed string       `json:"gasUsed"`
	Input   string       `json:"input"`
	Output  string       `json:"output"`
	Error   string       `json:"error,omitempty"`
	Calls   []CallFrame `json:"calls,omitempty"`
	Logs    []LogEntry  `json:"logs,omitempty"`
}

// LogEntry is one emitted-event node within a CallFrame's logs array.
type LogEntry struct {
	Address string   `json:"address"`
	Topics  []string `json:"topics"`
	Data    string   `json:"data"`
}

// TraceTransaction invokes debug_traceTransaction with the call-tracer
// requesting {withLog: true}. A response is valid only when the top-level
// result is an object containing a non-empty "type" field; any transport
// error, malformed JSON, or missing type retries up to the attempt budget.
func (c *Client) TraceTransaction(ctx context.Context, txHash string) (*CallFrame, error) {
	var frame *CallFrame

	op := func() error {
		var raw json.RawMessage
		err := c.rpcCli.CallContext(ctx, &raw, "debug_traceTransaction", txHash,
			map[string]interface{}{
				"tracer":       "callTracer",
				"tracerConfig": map[string]interface{}{"withLog": true},
			})
		if err != nil {
			return pipeline.NewError(pipeline.ErrTransport, "debug_traceTransaction", err)
		}

		var resp CallFrame
		if err := json.Unmarshal(raw, &resp); err != nil {
			return pipeline.NewError(pipeline.ErrProtocol, "debug_traceTransaction: decode", err)
		}
		if resp.Type == "" {
			return pipeline.NewError(pipeline.ErrProtocol, "debug_traceTransaction: missing type", nil)
		}
		frame = &resp
		return nil
	}

	notify := func(err error, d time.Duration) {
		logrus.Warnf("trace_transaction(%s) failed, retrying in %s: %v", txHash, d, err)
	}

	if err := backoff.RetryNotify(op, c.backoffPolicy(), notify); err != nil {
		return nil, err
	}
	return frame, nil
}

// GetLogs fetches logs matching the given filter query, used only by the
// TxEnumerator (spec.md §4.2) over bounded-size windows the caller chunks.
func (c *Client) GetLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error) {
	var logs []types.Log
	op := func() error {
		var err error
		logs, err = c.eth.FilterLogs(ctx, q)
		if err != nil {
			return pipeline.NewError(pipeline.ErrTransport, "eth_getLogs", err)
		}
		return nil
	}
	notify := func(err error, d time.Duration) {
		logrus.Warnf("eth_getLogs failed, retrying in %s: %v", d, err)
	}
	if err := backoff.RetryNotify(op, c.backoffPolicy(), notify); err != nil {
		return nil, err
	}
	return logs, nil
}

// GetTransactionIndex returns the index of the transaction within its block,
// used by the §4.4 transaction-index enrichment step.
func (c *Client) GetTransactionIndex(ctx context.Context, txHash string) (uint64, error) {
	info, err := c.GetTransactionBlockInfo(ctx, txHash)
	if err != nil {
		return 0, err
	}
	return info.TransactionIndex, nil
}

// TxBlockInfo is the subset of an eth_getTransactionByHash response the
// pipeline needs to stamp a trace's rows with their block/ordering context
// (spec.md §3, §4.4): the block it landed in and its position within that
// block.
type TxBlockInfo struct {
	BlockNumber      uint64
	TransactionIndex uint64
}

// GetTransactionBlockInfo fetches blockNumber and transactionIndex for
// txHash in a single eth_getTransactionByHash call.
func (c *Client) GetTransactionBlockInfo(ctx context.Context, txHash string) (TxBlockInfo, error) {
	var info TxBlockInfo
	op := func() error {
		var raw struct {
			BlockNumber      string `json:"blockNumber"`
			TransactionIndex string `json:"transactionIndex"`
		}
		err := c.rpcCli.CallContext(ctx, &raw, "eth_getTransactionByHash", txHash)
		if err != nil {
			return pipeline.NewError(pipeline.ErrTransport, "eth_getTransaction", err)
		}
		if raw.TransactionIndex == "" || raw.BlockNumber == "" {
			return pipeline.NewError(pipeline.ErrProtocol, "eth_getTransaction: missing blockNumber/transactionIndex", nil)
		}
		idx := new(big.Int)
		if _, ok := idx.SetString(trimHexPrefix(raw.TransactionIndex), 16); !ok {
			return pipeline.NewError(pipeline.ErrProtocol, "eth_getTransaction: bad transactionIndex", nil)
		}
		blk := new(big.Int)
		if _, ok := blk.SetString(trimHexPrefix(raw.BlockNumber), 16); !ok {
			return pipeline.NewError(pipeline.ErrProtocol, "eth_getTransaction: bad blockNumber", nil)
		}
		info = TxBlockInfo{BlockNumber: blk.Uint64(), TransactionIndex: idx.Uint64()}
		return nil
	}
	notify := func(err error, d time.Duration) {
		logrus.Warnf("eth_getTransaction(%s) failed, retrying in %s: %v", txHash, d, err)
	}
	if err := backoff.RetryNotify(op, c.backoffPolicy(), notify); err != nil {
		return TxBlockInfo{}, err
	}
	return info, nil
}

// GetCode returns the bytecode deployed at address at the given block,
// advisory-only per the §9 design note: self-destructed contracts return
// empty code even though they once existed.
func (c *Client) GetCode(ctx context.Context, address string, blockNumber *big.Int) ([]byte, error) {
	var code []byte
	op := func() error {
		var err error
		code, err = c.eth.CodeAt(ctx, common.HexToAddress(address), blockNumber)
		if err != nil {
			return pipeline.NewError(pipeline.ErrTransport, "eth_getCode", err)
		}
		return nil
	}
	notify := func(err error, d time.Duration) {
		logrus.Warnf("eth_getCode(%s) failed, retrying in %s: %v", address, d, err)
	}
	if err := backoff.RetryNotify(op, c.backoffPolicy(), notify); err != nil {
		return nil, err
	}
	return code, nil
}

// BlockTimestamp returns the UTC timestamp of a block, used by the
// by-events enumeration path to stamp logs without refetching full blocks.
func (c *Client) BlockTimestamp(ctx context.Context, blockNumber uint64) (time.Time, error) {
	var header *types.Header
	op := func() error {
		var err error
		header, err = c.eth.HeaderByNumber(ctx, new(big.Int).SetUint64(blockNumber))
		if err != nil {
			return pipeline.NewError(pipeline.ErrTransport, "eth_getBlockByNumber", err)
		}
		return nil
	}
	notify := func(err error, d time.Duration) {
		logrus.Warnf("eth_getBlockByNumber(%d) failed, retrying in %s: %v", blockNumber, d, err)
	}
	if err := backoff.RetryNotify(op, c.backoffPolicy(), notify); err != nil {
		return time.Time{}, err
	}
	return time.Unix(int64(header.Time), 0).UTC(), nil
}

func trimHexPrefix(s string) string {
	if len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		return s[2:]
	}
	return s
}
