package xrp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/vultisig/txengine/internal/jsonrpc"
)

// RPCError is an error reported inside a successful XRPL JSON-RPC response.
type RPCError struct {
	Code    string
	Message string
}

func (e *RPCError) Error() string {
	if e.Message == "" {
		return e.Code
	}
	return e.Code + ": " + e.Message
}

type rpcStatus struct {
	Status       string `json:"status"`
	Error        string `json:"error"`
	ErrorMessage string `json:"error_message"`
}

type AccountData struct {
	Account  string `json:"Account"`
	Balance  string `json:"Balance"`
	Sequence uint32 `json:"Sequence"`
}

type AccountInfo struct {
	AccountData AccountData `json:"account_data"`
	Validated   bool        `json:"validated"`
}

// FeeDrops holds the node's fee levels in drops, encoded as strings.
type FeeDrops struct {
	BaseFee       string `json:"base_fee"`
	MedianFee     string `json:"median_fee"`
	MinimumFee    string `json:"minimum_fee"`
	OpenLedgerFee string `json:"open_ledger_fee"`
}

type FeeResult struct {
	Drops FeeDrops `json:"drops"`
}

type LedgerCurrent struct {
	LedgerCurrentIndex uint32 `json:"ledger_current_index"`
}

type SubmitResult struct {
	EngineResult        string `json:"engine_result"`
	EngineResultCode    int    `json:"engine_result_code"`
	EngineResultMessage string `json:"engine_result_message"`
	Accepted            bool   `json:"accepted"`
	TxJSON              struct {
		Hash string `json:"hash"`
	} `json:"tx_json"`
}

type TxMeta struct {
	TransactionResult string          `json:"TransactionResult"`
	DeliveredAmount   json.RawMessage `json:"delivered_amount"`
}

// TxResult is the tx method answer in API v1 layout. Amount is a string of
// drops for XRP and an object for issued currencies.
type TxResult struct {
	TransactionType string          `json:"TransactionType"`
	Account         string          `json:"Account"`
	Destination     string          `json:"Destination"`
	Amount          json.RawMessage `json:"Amount"`
	Fee             string          `json:"Fee"`
	Sequence        uint32          `json:"Sequence"`
	Hash            string          `json:"hash"`
	LedgerIndex     uint64          `json:"ledger_index"`
	LedgerHash      string          `json:"ledger_hash"`
	Date            int64           `json:"date"`
	Validated       bool            `json:"validated"`
	Meta            *TxMeta         `json:"meta"`
}

// Client talks to a rippled JSON-RPC endpoint. rippled reports failures
// inside result, so a transport-level success still needs its status checked.
type Client struct {
	rpc *jsonrpc.Client
}

// NewClient creates a new XRP client with the given RPC URL
func NewClient(rpcURL string, httpClient *http.Client) *Client {
	return &Client{
		rpc: jsonrpc.NewClient(rpcURL, httpClient),
	}
}

func call[T any](ctx context.Context, c *Client, method string, params any) (*T, error) {
	if params == nil {
		params = map[string]any{}
	}

	var raw json.RawMessage
	err := c.rpc.Call(ctx, method, []any{params}, &raw)
	if err != nil {
		return nil, err
	}

	var status rpcStatus
	err = json.Unmarshal(raw, &status)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s result: %w", method, err)
	}
	if status.Status == "error" || status.Error != "" {
		return nil, &RPCError{Code: status.Error, Message: status.ErrorMessage}
	}

	var res T
	err = json.Unmarshal(raw, &res)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s result: %w", method, err)
	}
	return &res, nil
}

// GetAccountInfo reads the account root at the given ledger ("current" or
// "validated").
func (c *Client) GetAccountInfo(ctx context.Context, address, ledger string) (*AccountInfo, error) {
	res, err := call[AccountInfo](ctx, c, "account_info", map[string]any{
		"account":      address,
		"strict":       true,
		"ledger_index": ledger,
	})
	if err != nil {
		return nil, fmt.Errorf("xrp: failed to get account info: %w", err)
	}
	return res, nil
}

func (c *Client) GetCurrentLedger(ctx context.Context) (uint32, error) {
	res, err := call[LedgerCurrent](ctx, c, "ledger_current", nil)
	if err != nil {
		return 0, fmt.Errorf("xrp: failed to get current ledger: %w", err)
	}
	return res.LedgerCurrentIndex, nil
}

func (c *Client) GetFee(ctx context.Context) (*FeeResult, error) {
	res, err := call[FeeResult](ctx, c, "fee", nil)
	if err != nil {
		return nil, fmt.Errorf("xrp: failed to get fee: %w", err)
	}
	return res, nil
}

func (c *Client) Submit(ctx context.Context, txBlob string) (*SubmitResult, error) {
	res, err := call[SubmitResult](ctx, c, "submit", map[string]any{"tx_blob": txBlob})
	if err != nil {
		return nil, fmt.Errorf("xrp: failed to submit: %w", err)
	}
	return res, nil
}

func (c *Client) GetTransaction(ctx context.Context, hash string) (*TxResult, error) {
	res, err := call[TxResult](ctx, c, "tx", map[string]any{"transaction": hash, "binary": false})
	if err != nil {
		return nil, fmt.Errorf("xrp: failed to get transaction: %w", err)
	}
	return res, nil
}
