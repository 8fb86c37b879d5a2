package tron

import (
	"context"
	"fmt"
	"net/http"

	"github.com/vultisig/txengine/internal/libhttp"
)

// AccountInfo represents TRON account information
type AccountInfo struct {
	Address string `json:"address"`
	Balance int64  `json:"balance"`
}

// Block represents a TRON block
type Block struct {
	BlockID     string       `json:"blockID"`
	BlockHeader *BlockHeader `json:"block_header"`
}

// BlockHeader represents a TRON block header
type BlockHeader struct {
	RawData *BlockRawData `json:"raw_data"`
}

// BlockRawData represents raw data in a block header
type BlockRawData struct {
	Number         int64  `json:"number"`
	TxTrieRoot     string `json:"txTrieRoot"`
	WitnessAddress string `json:"witness_address"`
	ParentHash     string `json:"parentHash"`
	Version        int    `json:"version"`
	Timestamp      int64  `json:"timestamp"`
}

// TransferRequest represents a TRX transfer request
type TransferRequest struct {
	OwnerAddress string `json:"owner_address"`
	ToAddress    string `json:"to_address"`
	Amount       int64  `json:"amount"`
	Visible      bool   `json:"visible"`
}

// TriggerRequest calls a contract function. Parameter is the hex ABI
// encoding of the arguments without selector.
type TriggerRequest struct {
	OwnerAddress     string `json:"owner_address"`
	ContractAddress  string `json:"contract_address"`
	FunctionSelector string `json:"function_selector"`
	Parameter        string `json:"parameter"`
	FeeLimit         int64  `json:"fee_limit,omitempty"`
	Visible          bool   `json:"visible"`
}

// Transaction represents a TRON transaction as returned by the node. Error is
// set instead of the body when the node refuses to build it.
type Transaction struct {
	TxID       string      `json:"txID"`
	RawData    *RawData    `json:"raw_data,omitempty"`
	RawDataHex string      `json:"raw_data_hex"`
	Signature  []string    `json:"signature,omitempty"`
	Ret        []ResultRet `json:"ret,omitempty"`
	Visible    bool        `json:"visible,omitempty"`
	Error      string      `json:"Error,omitempty"`
}

type ResultRet struct {
	ContractRet string `json:"contractRet"`
}

// RawData represents the raw data of a TRON transaction
type RawData struct {
	Contract      []Contract `json:"contract"`
	RefBlockBytes string     `json:"ref_block_bytes"`
	RefBlockHash  string     `json:"ref_block_hash"`
	Expiration    int64      `json:"expiration"`
	Timestamp     int64      `json:"timestamp"`
	FeeLimit      int64      `json:"fee_limit,omitempty"`
	Data          string     `json:"data,omitempty"`
}

// Contract represents a contract in a TRON transaction
type Contract struct {
	Parameter Parameter `json:"parameter"`
	Type      string    `json:"type"`
}

// Parameter represents the parameter of a contract
type Parameter struct {
	Value   Value  `json:"value"`
	TypeUrl string `json:"type_url"`
}

// Value represents the value of a contract parameter
type Value struct {
	Amount          int64  `json:"amount,omitempty"`
	OwnerAddress    string `json:"owner_address"`
	ToAddress       string `json:"to_address,omitempty"`
	ContractAddress string `json:"contract_address,omitempty"`
	Data            string `json:"data,omitempty"`
}

// TriggerResult is the answer to a contract call. Transaction is set for
// state changing calls, ConstantResult for read-only ones.
type TriggerResult struct {
	Result struct {
		Result  bool   `json:"result"`
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"result"`
	ConstantResult []string     `json:"constant_result"`
	Transaction    *Transaction `json:"transaction"`
}

// BroadcastResult is the node's answer to broadcasthex. Message is hex
// encoded text.
type BroadcastResult struct {
	Result  bool   `json:"result"`
	TxID    string `json:"txid"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type TxLog struct {
	Address string   `json:"address"`
	Topics  []string `json:"topics"`
	Data    string   `json:"data"`
}

// TransactionInfo is the execution record of a transaction. It is empty until
// the transaction is in a block.
type TransactionInfo struct {
	ID             string  `json:"id"`
	Fee            int64   `json:"fee"`
	BlockNumber    int64   `json:"blockNumber"`
	BlockTimeStamp int64   `json:"blockTimeStamp"`
	Result         string  `json:"result"`
	ResMessage     string  `json:"resMessage"`
	Log            []TxLog `json:"log"`
	Receipt        struct {
		Result    string `json:"result"`
		NetFee    int64  `json:"net_fee"`
		EnergyFee int64  `json:"energy_fee"`
	} `json:"receipt"`
}

// Client talks to a TRON full node HTTP API (TronGrid compatible).
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a new TRON client with the given base URL
func NewClient(baseURL string, httpClient *http.Client) *Client {
	return &Client{
		baseURL: baseURL,
		http:    httpClient,
	}
}

func call[T any](ctx context.Context, c *Client, path string, body any) (T, error) {
	return libhttp.Call[T](ctx, c.http, http.MethodPost, c.baseURL+path, nil, body, nil)
}

type accountRequest struct {
	Address string `json:"address"`
	Visible bool   `json:"visible"`
}

// GetAccount fetches account information. A never-activated account comes
// back empty with a zero balance.
func (c *Client) GetAccount(ctx context.Context, address string) (*AccountInfo, error) {
	account, err := call[AccountInfo](ctx, c, "/wallet/getaccount", accountRequest{
		Address: address,
		Visible: true,
	})
	if err != nil {
		return nil, fmt.Errorf("tron: failed to get account: %w", err)
	}
	return &account, nil
}

// GetNowBlock fetches the current block from TRON network
func (c *Client) GetNowBlock(ctx context.Context) (*Block, error) {
	block, err := call[Block](ctx, c, "/wallet/getnowblock", nil)
	if err != nil {
		return nil, fmt.Errorf("tron: failed to get now block: %w", err)
	}
	return &block, nil
}

func (c *Client) GetBlockByNum(ctx context.Context, num int64) (*Block, error) {
	block, err := call[Block](ctx, c, "/wallet/getblockbynum", map[string]int64{"num": num})
	if err != nil {
		return nil, fmt.Errorf("tron: failed to get block %d: %w", num, err)
	}
	return &block, nil
}

// CreateTransaction creates an unsigned TRX transfer transaction
func (c *Client) CreateTransaction(ctx context.Context, req *TransferRequest) (*Transaction, error) {
	tx, err := call[Transaction](ctx, c, "/wallet/createtransaction", req)
	if err != nil {
		return nil, fmt.Errorf("tron: failed to create transaction: %w", err)
	}
	return &tx, nil
}

// TriggerSmartContract builds an unsigned contract call.
func (c *Client) TriggerSmartContract(ctx context.Context, req *TriggerRequest) (*TriggerResult, error) {
	res, err := call[TriggerResult](ctx, c, "/wallet/triggersmartcontract", req)
	if err != nil {
		return nil, fmt.Errorf("tron: failed to trigger contract: %w", err)
	}
	return &res, nil
}

// TriggerConstantContract runs a read-only contract call.
func (c *Client) TriggerConstantContract(ctx context.Context, req *TriggerRequest) (*TriggerResult, error) {
	res, err := call[TriggerResult](ctx, c, "/wallet/triggerconstantcontract", req)
	if err != nil {
		return nil, fmt.Errorf("tron: failed to call contract: %w", err)
	}
	return &res, nil
}

func (c *Client) BroadcastHex(ctx context.Context, txHex string) (*BroadcastResult, error) {
	res, err := call[BroadcastResult](ctx, c, "/wallet/broadcasthex", map[string]string{"transaction": txHex})
	if err != nil {
		return nil, fmt.Errorf("tron: failed to broadcast: %w", err)
	}
	return &res, nil
}

type byIDRequest struct {
	Value   string `json:"value"`
	Visible bool   `json:"visible"`
}

func (c *Client) GetTransactionByID(ctx context.Context, id string) (*Transaction, error) {
	tx, err := call[Transaction](ctx, c, "/wallet/gettransactionbyid", byIDRequest{Value: id, Visible: true})
	if err != nil {
		return nil, fmt.Errorf("tron: failed to get transaction: %w", err)
	}
	return &tx, nil
}

func (c *Client) GetTransactionInfoByID(ctx context.Context, id string) (*TransactionInfo, error) {
	info, err := call[TransactionInfo](ctx, c, "/wallet/gettransactioninfobyid", byIDRequest{Value: id})
	if err != nil {
		return nil, fmt.Errorf("tron: failed to get transaction info: %w", err)
	}
	return &info, nil
}
