// Package explorer implements the Etherscan-shaped HTTP API client used for
// transaction-list enumeration (spec.md §4.2) and ABI resolution (§4.6),
// grounded on original_source/raw_trace_retriever/get_transactions.py's
// send_api_request/request_mediator. Transport retries use
// hashicorp/go-retryablehttp instead of the original's bare attempt loop.
package explorer

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	retryablehttp "github.com/hashicorp/go-retryablehttp"
	"github.com/sirupsen/logrus"

	"dapp-trace-extractor/internal/pipeline"
)

const baseURL = "https://api.etherscan.io/api"

// NotVerifiedResult is the literal Etherscan response body for an address
// whose source was never verified (spec.md §4.6).
const NotVerifiedResult = "Contract source code not verified"

// Client issues requests against the Etherscan-shaped explorer API.
type Client struct {
	http   *retryablehttp.Client
	apiKey string
}

// New builds an explorer client. maxRetries bounds the transport-level retry
// budget (connection errors, 5xx); business-logic responses such as
// NotVerifiedResult never retry regardless of this budget.
func New(apiKey string, maxRetries int, delay time.Duration) *Client {
	h := retryablehttp.NewClient()
	h.RetryMax = maxRetries
	h.RetryWaitMin = delay
	h.RetryWaitMax = delay
	h.Logger = nil
	return &Client{http: h, apiKey: apiKey}
}

type apiEnvelope struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Result  json.RawMessage `json:"result"`
}

func (c *Client) get(ctx context.Context, params url.Values) (*apiEnvelope, error) {
	params.Set("apikey", c.apiKey)
	u := baseURL + "?" + params.Encode()

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, pipeline.NewError(pipeline.ErrTransport, "explorer request build", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, pipeline.NewError(pipeline.ErrTransport, "explorer request", err)
	}
	defer resp.Body.Close()

	var env apiEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, pipeline.NewError(pipeline.ErrProtocol, "explorer decode", err)
	}
	return &env, nil
}

// TxListEntry is a single row returned by the txlist/txlistinternal actions,
// trimmed to the fields spec.md §4.3/§4.4 actually need (decoding a page
// into this struct drops every other column, matching get_transactions.py's
// column pruning).
type TxListEntry struct {
	Hash        string `json:"hash"`
	BlockNumber uint64 `json:"blockNumber,string"`
	TimeStamp   int64  `json:"timeStamp,string"`
}

// TxList fetches one page of normal or internal transactions for address in
// [minBlock, maxBlock]. The caller (enumerate package) handles the
// page-full/requery-with-max-block paging rule from spec.md §4.2/§8.
func (c *Client) TxList(ctx context.Context, address string, minBlock, maxBlock uint64, internal bool) ([]TxListEntry, error) {
	action := "txlist"
	if internal {
		action = "txlistinternal"
	}
	params := url.Values{
		"module":     {"account"},
		"action":     {action},
		"address":    {address},
		"startblock": {fmt.Sprintf("%d", minBlock)},
		"endblock":   {fmt.Sprintf("%d", maxBlock)},
	}

	env, err := c.get(ctx, params)
	if err != nil {
		return nil, err
	}

	if env.Status != "1" {
		logrus.Debugf("explorer returned 0 transactions for %s (%s): %s", address, action, env.Message)
		return nil, nil
	}

	var rows []TxListEntry
	if err := json.Unmarshal(env.Result, &rows); err != nil {
		return nil, pipeline.NewError(pipeline.ErrProtocol, "explorer txlist decode", err)
	}
	return rows, nil
}

// GetABI resolves the ABI for address. A literal NotVerifiedResult response
// marks the address Unverified and must not be retried; any other transport
// failure is retried up to the explorer client's transport budget.
func (c *Client) GetABI(ctx context.Context, address string) (abiJSON string, verified bool, err error) {
	params := url.Values{
		"module":  {"contract"},
		"action":  {"getabi"},
		"address": {address},
	}

	env, err := c.get(ctx, params)
	if err != nil {
		return "", false, err
	}

	var result string
	if err := json.Unmarshal(env.Result, &result); err != nil {
		return "", false, pipeline.NewError(pipeline.ErrProtocol, "explorer getabi decode", err)
	}

	if result == NotVerifiedResult {
		return "", false, nil
	}
	return result, true, nil
}
