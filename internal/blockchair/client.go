package blockchair

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/vultisig/txengine/internal/chainerr"
	"github.com/vultisig/txengine/internal/libhttp"
)

const timeLayout = "2006-01-02 15:04:05"

// Client talks to the blockchair REST API for one chain. slug is the chain
// path segment, e.g. "bitcoin" or "dogecoin".
type Client struct {
	url  string
	slug string
	http *http.Client
}

func NewClient(url, slug string, httpClient *http.Client) *Client {
	return &Client{
		url:  url,
		slug: slug,
		http: httpClient,
	}
}

func (c *Client) endpoint(path string) string {
	return c.url + "/" + c.slug + path
}

type responseContext struct {
	Code  int    `json:"code"`
	Error string `json:"error"`
	State int64  `json:"state"`
}

type PushResponse struct {
	Data struct {
		TransactionHash string `json:"transaction_hash"`
	} `json:"data"`
	Context responseContext `json:"context"`
}

// PushTransaction submits a signed transaction. A 4xx answer carrying an
// error message is the node rejecting the transaction.
func (c *Client) PushTransaction(ctx context.Context, rawHex string) (string, error) {
	res, err := libhttp.Call[PushResponse](
		ctx,
		c.http,
		http.MethodPost,
		c.endpoint("/push/transaction"),
		nil,
		map[string]string{
			"data": rawHex,
		},
		nil,
	)
	if err != nil {
		var se *libhttp.StatusError
		if errors.As(err, &se) && se.Code >= 400 && se.Code < 500 {
			if msg := errorMessage(se.Body); msg != "" {
				return "", &chainerr.Error{Kind: chainerr.KindOnChainRejection, Chain: c.slug, Reason: msg}
			}
		}
		return "", chainerr.Classify(c.slug, err, "failed to push tx")
	}
	return res.Data.TransactionHash, nil
}

func errorMessage(body string) string {
	var res struct {
		Context responseContext `json:"context"`
	}
	if json.Unmarshal([]byte(body), &res) != nil {
		return ""
	}
	return res.Context.Error
}

type Utxo struct {
	BlockId         int64  `json:"block_id"`
	TransactionHash string `json:"transaction_hash"`
	Index           uint32 `json:"index"`
	Value           uint64 `json:"value"`
}

type AddressInfo struct {
	Type               string `json:"type"`
	ScriptHex          string `json:"script_hex"`
	Balance            int64  `json:"balance"`
	Received           int64  `json:"received"`
	Spent              int64  `json:"spent"`
	OutputCount        int    `json:"output_count"`
	UnspentOutputCount int    `json:"unspent_output_count"`
}

type addrInfoResponse struct {
	Data map[string]struct {
		Address      AddressInfo `json:"address"`
		Transactions []string    `json:"transactions"`
		Utxo         []Utxo      `json:"utxo"`
	} `json:"data"`
	Context responseContext `json:"context"`
}

// GetAllUnspent fetches all UTXOs for an address together with the chain
// tip height the explorer answered at.
func (c *Client) GetAllUnspent(ctx context.Context, address string) ([]Utxo, uint64, error) {
	var (
		allUtxos []Utxo
		state    int64
	)
	offset := 0
	const limit = 50

	for {
		batch, err := libhttp.Call[addrInfoResponse](
			ctx,
			c.http,
			http.MethodGet,
			c.endpoint("/dashboards/address/"+address),
			nil,
			nil,
			map[string]string{
				"offset": fmt.Sprintf("0,%d", offset),
				"limit":  fmt.Sprintf("0,%d", limit),
			},
		)
		if err != nil {
			return nil, 0, chainerr.Classify(c.slug, err, "failed to fetch address info")
		}
		state = batch.Context.State

		val, ok := batch.Data[address]
		if !ok {
			break
		}

		allUtxos = append(allUtxos, val.Utxo...)
		if len(val.Utxo) < limit {
			break
		}
		offset += limit
	}

	if state < 0 {
		state = 0
	}
	return allUtxos, uint64(state), nil
}

func (c *Client) GetAddressInfo(ctx context.Context, address string) (*AddressInfo, error) {
	res, err := libhttp.Call[addrInfoResponse](
		ctx,
		c.http,
		http.MethodGet,
		c.endpoint("/dashboards/address/"+address),
		nil,
		nil,
		map[string]string{
			"limit": "0,0",
		},
	)
	if err != nil {
		return nil, chainerr.Classify(c.slug, err, "failed to fetch address info")
	}
	val, ok := res.Data[address]
	if !ok {
		// never seen on chain
		return &AddressInfo{}, nil
	}
	return &val.Address, nil
}

// GetRawTransaction returns raw transaction bytes.
func (c *Client) GetRawTransaction(ctx context.Context, txHash string) ([]byte, error) {
	type dataItem struct {
		RawTx string `json:"raw_transaction"`
	}

	type res struct {
		Data map[string]dataItem `json:"data"`
	}

	r, err := libhttp.Call[res](
		ctx,
		c.http,
		http.MethodGet,
		c.endpoint("/raw/transaction/"+txHash),
		nil,
		nil,
		nil,
	)
	if err != nil {
		return nil, notFoundOr(c.slug, err, "failed to get raw tx %s", txHash)
	}

	data, ok := r.Data[txHash]
	if !ok {
		return nil, chainerr.New(chainerr.KindNotFound, c.slug, "transaction %s", txHash)
	}

	b, err := hex.DecodeString(data.RawTx)
	if err != nil {
		return nil, chainerr.Wrap(chainerr.KindRPCTransport, c.slug, err, "invalid raw tx hex")
	}
	return b, nil
}

// SuggestedFeeRate returns the explorer's fee suggestion in sat/byte.
func (c *Client) SuggestedFeeRate(ctx context.Context) (uint64, error) {
	type res struct {
		Data struct {
			SuggestedFee uint64 `json:"suggested_transaction_fee_per_byte_sat"`
		} `json:"data"`
	}

	r, err := libhttp.Call[res](ctx, c.http, http.MethodGet, c.endpoint("/stats"), nil, nil, nil)
	if err != nil {
		return 0, chainerr.Classify(c.slug, err, "failed to get stats")
	}
	return r.Data.SuggestedFee, nil
}

type TxIO struct {
	TransactionHash string `json:"transaction_hash"`
	Index           uint32 `json:"index"`
	Recipient       string `json:"recipient"`
	Value           uint64 `json:"value"`
}

type Transaction struct {
	BlockID    int64
	Hash       string
	Time       time.Time
	Fee        uint64
	InputTotal uint64
	Inputs     []TxIO
	Outputs    []TxIO
	TipHeight  int64
}

type txDashboard struct {
	Transaction struct {
		BlockID     int64  `json:"block_id"`
		Hash        string `json:"hash"`
		Time        string `json:"time"`
		Fee         uint64 `json:"fee"`
		InputTotal  uint64 `json:"input_total"`
		OutputTotal uint64 `json:"output_total"`
	} `json:"transaction"`
	Inputs  []TxIO `json:"inputs"`
	Outputs []TxIO `json:"outputs"`
}

// GetTransaction returns the transaction dashboard. A block id of -1 means
// the transaction is still in the mempool.
func (c *Client) GetTransaction(ctx context.Context, txHash string) (*Transaction, error) {
	type res struct {
		Data    json.RawMessage `json:"data"`
		Context responseContext `json:"context"`
	}

	r, err := libhttp.Call[res](ctx, c.http, http.MethodGet, c.endpoint("/dashboards/transaction/"+txHash), nil, nil, nil)
	if err != nil {
		return nil, notFoundOr(c.slug, err, "failed to get transaction %s", txHash)
	}

	// an unknown hash yields an empty array instead of an object
	trimmed := bytes.TrimSpace(r.Data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, chainerr.New(chainerr.KindNotFound, c.slug, "transaction %s", txHash)
	}
	var data map[string]txDashboard
	err = json.Unmarshal(trimmed, &data)
	if err != nil {
		return nil, chainerr.Wrap(chainerr.KindRPCTransport, c.slug, err, "failed to decode transaction")
	}
	d, ok := data[txHash]
	if !ok {
		return nil, chainerr.New(chainerr.KindNotFound, c.slug, "transaction %s", txHash)
	}

	t, _ := time.Parse(timeLayout, d.Transaction.Time)
	return &Transaction{
		BlockID:    d.Transaction.BlockID,
		Hash:       d.Transaction.Hash,
		Time:       t.UTC(),
		Fee:        d.Transaction.Fee,
		InputTotal: d.Transaction.InputTotal,
		Inputs:     d.Inputs,
		Outputs:    d.Outputs,
		TipHeight:  r.Context.State,
	}, nil
}

// GetBlockHash returns the hash of the block at height.
func (c *Client) GetBlockHash(ctx context.Context, height int64) (string, error) {
	type res struct {
		Data map[string]struct {
			Block struct {
				Hash string `json:"hash"`
			} `json:"block"`
		} `json:"data"`
	}

	id := strconv.FormatInt(height, 10)
	r, err := libhttp.Call[res](ctx, c.http, http.MethodGet, c.endpoint("/dashboards/block/"+id), nil, nil, nil)
	if err != nil {
		return "", notFoundOr(c.slug, err, "failed to get block %d", height)
	}
	b, ok := r.Data[id]
	if !ok || b.Block.Hash == "" {
		return "", chainerr.New(chainerr.KindNotFound, c.slug, "block %d", height)
	}
	return b.Block.Hash, nil
}

func notFoundOr(chain string, err error, format string, args ...any) error {
	var se *libhttp.StatusError
	if errors.As(err, &se) && se.Code == http.StatusNotFound {
		return chainerr.Wrap(chainerr.KindNotFound, chain, err, format, args...)
	}
	return chainerr.Classify(chain, err, format, args...)
}
