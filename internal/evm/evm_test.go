package evm

import (
	"context"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	ecommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	etypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vultisig/txengine/internal/auth"
	"github.com/vultisig/txengine/internal/chainerr"
	"github.com/vultisig/txengine/internal/chains"
	"github.com/vultisig/txengine/internal/engine"
	"github.com/vultisig/txengine/internal/token"
)

const (
	testKeyHex   = "4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318"
	testTo       = "0x3535353535353535353535353535353535353535"
	testUSDC     = "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48"
	nodeHash     = "0xabc0000000000000000000000000000000000000000000000000000000000001"
	gwei         = int64(1_000_000_000)
	hundredEther = "0x56bc75e2d63100000"
)

type rpcErr struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type handler func(params []json.RawMessage) (any, *rpcErr)

// mockNode is a JSON-RPC node answering from per-method handlers and echoing
// request ids.
type mockNode struct {
	mu       sync.Mutex
	handlers map[string]handler
	calls    map[string]int
	status   int
}

func newMockNode(t *testing.T, handlers map[string]handler) (*mockNode, *httptest.Server) {
	t.Helper()
	m := &mockNode{handlers: handlers, calls: make(map[string]int)}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			ID     json.RawMessage   `json:"id"`
			Method string            `json:"method"`
			Params []json.RawMessage `json:"params"`
		}
		if !assert.NoError(t, json.NewDecoder(r.Body).Decode(&req)) {
			return
		}

		m.mu.Lock()
		m.calls[req.Method]++
		h, ok := m.handlers[req.Method]
		status := m.status
		m.mu.Unlock()

		if status != 0 {
			w.WriteHeader(status)
			_, _ = w.Write([]byte("bad gateway"))
			return
		}

		resp := map[string]any{"jsonrpc": "2.0", "id": req.ID}
		if !ok {
			resp["error"] = rpcErr{Code: -32601, Message: "method not found: " + req.Method}
		} else if res, e := h(req.Params); e != nil {
			resp["error"] = e
		} else {
			resp["result"] = res
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(srv.Close)
	return m, srv
}

func (m *mockNode) count(method string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[method]
}

func result(v any) handler {
	return func([]json.RawMessage) (any, *rpcErr) { return v, nil }
}

func testHeader(baseFee *big.Int) *etypes.Header {
	return &etypes.Header{
		UncleHash:  etypes.EmptyUncleHash,
		Difficulty: big.NewInt(0),
		Number:     big.NewInt(100),
		GasLimit:   30_000_000,
		Time:       1_700_000_000,
		Extra:      []byte{},
		BaseFee:    baseFee,
	}
}

func baseHandlers(baseFee *big.Int) map[string]handler {
	return map[string]handler{
		"eth_getTransactionCount":  result("0x4"),
		"eth_getBlockByNumber":     result(testHeader(baseFee)),
		"eth_getBalance":           result(hundredEther),
		"eth_estimateGas":          result("0x5208"),
		"eth_maxPriorityFeePerGas": result(hexutil.EncodeBig(big.NewInt(gwei))),
		"eth_gasPrice":             result(hexutil.EncodeBig(big.NewInt(20 * gwei))),
		"eth_sendRawTransaction":   result(nodeHash),
	}
}

func testNetwork(t *testing.T, url string) *Network {
	t.Helper()
	reg, err := chains.NewRegistry(chains.Overrides{})
	require.NoError(t, err)
	cfg, err := reg.Get("ethereum")
	require.NoError(t, err)
	cfg.RPCURL = url

	n, err := NewNetwork(context.Background(), cfg, auth.NewHTTPClient(), logrus.New(), nil)
	require.NoError(t, err)
	t.Cleanup(n.Close)
	return n
}

func testSender(t *testing.T) (string, func(digest []byte) []byte) {
	t.Helper()
	key, err := crypto.HexToECDSA(testKeyHex)
	require.NoError(t, err)
	sign := func(digest []byte) []byte {
		sig, er := crypto.Sign(digest, key)
		require.NoError(t, er)
		return sig
	}
	return crypto.PubkeyToAddress(key.PublicKey).Hex(), sign
}

func ether(whole, tenths int64) *big.Int {
	v := new(big.Int).Mul(big.NewInt(whole*10+tenths), big.NewInt(100_000_000_000_000_000))
	return v
}

func TestSendEndToEnd(t *testing.T) {
	node, srv := newMockNode(t, baseHandlers(big.NewInt(gwei)))
	n := testNetwork(t, srv.URL)
	from, sign := testSender(t)

	unsigned, err := n.BuildUnsigned(context.Background(), engine.TransferIntent{
		From:   from,
		To:     testTo,
		Amount: ether(1, 5),
		Token:  token.Native(),
	})
	require.NoError(t, err)

	tx := unsigned.(*UnsignedTx).Tx()
	assert.Equal(t, uint8(etypes.DynamicFeeTxType), tx.Type())
	assert.Equal(t, uint64(4), tx.Nonce())
	assert.Equal(t, "1500000000000000000", tx.Value().String())
	assert.Equal(t, uint64(21000), tx.Gas())
	assert.Equal(t, big.NewInt(gwei), tx.GasTipCap())
	assert.Equal(t, big.NewInt(3*gwei), tx.GasFeeCap())
	assert.Equal(t, big.NewInt(1), tx.ChainId())
	assert.Equal(t, strings.ToLower(testTo), strings.ToLower(tx.To().Hex()))

	payloads := unsigned.SigningPayloads()
	require.Len(t, payloads, 1)
	require.Len(t, payloads[0].Digest, 32)
	require.Equal(t, engine.AlgorithmECDSA, payloads[0].Algorithm)

	sig := sign(payloads[0].Digest)
	signed, err := n.Sign(unsigned, []engine.Signature{{Index: 0, Bytes: sig}})
	require.NoError(t, err)

	again, err := n.Sign(unsigned, []engine.Signature{{Index: 0, Bytes: sig}})
	require.NoError(t, err)
	require.Equal(t, signed.Hash(), again.Hash())
	require.Equal(t, crypto.Keccak256Hash(signed.Serialized()).Hex(), signed.Hash())

	decoded, err := n.DecodeSigned(signed.Serialized())
	require.NoError(t, err)
	require.Equal(t, signed.Hash(), decoded.Hash())

	res := n.Broadcast(context.Background(), signed)
	require.True(t, res.Success)
	require.Nil(t, res.Err)
	require.Equal(t, nodeHash, res.Hash)
	require.Equal(t, 1, node.count("eth_sendRawTransaction"))
}

func TestBuildLegacyWhenNoBaseFee(t *testing.T) {
	_, srv := newMockNode(t, baseHandlers(nil))
	n := testNetwork(t, srv.URL)
	from, _ := testSender(t)

	unsigned, err := n.BuildUnsigned(context.Background(), engine.TransferIntent{
		From:   from,
		To:     testTo,
		Amount: big.NewInt(1000),
	})
	require.NoError(t, err)
	tx := unsigned.(*UnsignedTx).Tx()
	assert.Equal(t, uint8(etypes.LegacyTxType), tx.Type())
	assert.Equal(t, big.NewInt(20*gwei), tx.GasPrice())
}

func TestBuildERC20Transfer(t *testing.T) {
	handlers := baseHandlers(big.NewInt(gwei))
	handlers["eth_estimateGas"] = result("0xfde8")
	handlers["eth_call"] = func(params []json.RawMessage) (any, *rpcErr) {
		var call struct {
			To    string `json:"to"`
			Input string `json:"input"`
			Data  string `json:"data"`
		}
		_ = json.Unmarshal(params[0], &call)
		data := call.Input
		if data == "" {
			data = call.Data
		}
		if strings.HasPrefix(data, "0x70a08231") {
			return hexutil.Encode(ecommon.LeftPadBytes(big.NewInt(5_000_000).Bytes(), 32)), nil
		}
		return hexutil.Encode(ecommon.LeftPadBytes([]byte{6}, 32)), nil
	}
	_, srv := newMockNode(t, handlers)
	n := testNetwork(t, srv.URL)
	from, _ := testSender(t)

	unsigned, err := n.BuildUnsigned(context.Background(), engine.TransferIntent{
		From:   from,
		To:     testTo,
		Amount: big.NewInt(1_000_000),
		Token:  token.Create(testUSDC),
	})
	require.NoError(t, err)
	tx := unsigned.(*UnsignedTx).Tx()
	assert.Equal(t, strings.ToLower(testUSDC), strings.ToLower(tx.To().Hex()))
	assert.Equal(t, int64(0), tx.Value().Int64())
	assert.Equal(t, "a9059cbb", hexutil.Encode(tx.Data()[:4])[2:])
	assert.Len(t, tx.Data(), 4+32+32)
	assert.Equal(t, uint64(65000), tx.Gas())

	_, err = n.BuildUnsigned(context.Background(), engine.TransferIntent{
		From:   from,
		To:     testTo,
		Amount: big.NewInt(6_000_000),
		Token:  token.Create(testUSDC),
	})
	require.True(t, chainerr.Is(err, chainerr.KindInsufficientFunds), err)

	bal, err := n.Balance(context.Background(), from, token.Create(testUSDC))
	require.NoError(t, err)
	require.Equal(t, "5", bal.Formatted)
	require.Equal(t, int32(6), bal.Decimals)
}

func TestBuildValidation(t *testing.T) {
	handlers := baseHandlers(big.NewInt(gwei))
	handlers["eth_getBalance"] = result("0x1")
	node, srv := newMockNode(t, handlers)
	n := testNetwork(t, srv.URL)
	from, _ := testSender(t)

	tests := []struct {
		name   string
		intent engine.TransferIntent
		kind   chainerr.Kind
	}{
		{"zero amount", engine.TransferIntent{From: from, To: testTo, Amount: big.NewInt(0)}, chainerr.KindInvalidInput},
		{"not hex", engine.TransferIntent{From: from, To: "0xzz", Amount: big.NewInt(1)}, chainerr.KindInvalidInput},
		{"bad checksum", engine.TransferIntent{From: from, To: "0x5aaeb6053F3E94C9b9A09f33669435E7Ef1BeAed", Amount: big.NewInt(1)}, chainerr.KindInvalidInput},
		{"no prefix", engine.TransferIntent{From: from, To: "3535353535353535353535353535353535353535", Amount: big.NewInt(1)}, chainerr.KindInvalidInput},
		{"balance too low", engine.TransferIntent{From: from, To: testTo, Amount: big.NewInt(1)}, chainerr.KindInsufficientFunds},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := n.BuildUnsigned(context.Background(), tt.intent)
			require.Error(t, err)
			require.Equal(t, tt.kind, chainerr.KindOf(err), err.Error())
		})
	}
	require.Equal(t, 1, node.count("eth_getTransactionCount"), "validation failures make no calls")

	require.NoError(t, n.ValidateAddress("0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed"))
}

func TestSignRejects(t *testing.T) {
	_, srv := newMockNode(t, baseHandlers(big.NewInt(gwei)))
	n := testNetwork(t, srv.URL)
	from, sign := testSender(t)

	unsigned, err := n.BuildUnsigned(context.Background(), engine.TransferIntent{From: from, To: testTo, Amount: big.NewInt(1)})
	require.NoError(t, err)
	digest := unsigned.SigningPayloads()[0].Digest

	other, err := crypto.GenerateKey()
	require.NoError(t, err)
	foreign, err := crypto.Sign(digest, other)
	require.NoError(t, err)

	_, err = n.Sign(unsigned, []engine.Signature{{Bytes: foreign}})
	require.True(t, chainerr.Is(err, chainerr.KindSignatureVerificationFailed), err)

	_, err = n.Sign(unsigned, []engine.Signature{{Bytes: sign(digest)[:64]}})
	require.True(t, chainerr.Is(err, chainerr.KindMalformedSignature), err)

	_, err = n.Sign(unsigned, nil)
	require.True(t, chainerr.Is(err, chainerr.KindInvalidInput), err)

	// 27/28 recovery ids are accepted
	sig := sign(digest)
	sig[64] += 27
	signed, err := n.Sign(unsigned, []engine.Signature{{Bytes: sig}})
	require.NoError(t, err)
	require.NotEmpty(t, signed.Hash())
}

func TestBroadcastFailures(t *testing.T) {
	from, sign := testSender(t)

	build := func(t *testing.T, n *Network) engine.SignedTx {
		unsigned, err := n.BuildUnsigned(context.Background(), engine.TransferIntent{From: from, To: testTo, Amount: big.NewInt(1)})
		require.NoError(t, err)
		signed, err := n.Sign(unsigned, []engine.Signature{{Bytes: sign(unsigned.SigningPayloads()[0].Digest)}})
		require.NoError(t, err)
		return signed
	}

	t.Run("node rejects", func(t *testing.T) {
		handlers := baseHandlers(big.NewInt(gwei))
		handlers["eth_sendRawTransaction"] = func([]json.RawMessage) (any, *rpcErr) {
			return nil, &rpcErr{Code: -32000, Message: "nonce too low"}
		}
		node, srv := newMockNode(t, handlers)
		n := testNetwork(t, srv.URL)
		signed := build(t, n)

		res := n.Broadcast(context.Background(), signed)
		require.False(t, res.Success)
		require.Equal(t, chainerr.KindOnChainRejection, res.Err.Kind)
		require.Equal(t, "nonce too low", res.Err.Reason)
		require.True(t, res.Definite())
		require.Equal(t, signed.Hash(), res.Hash)
		require.Equal(t, 1, node.count("eth_sendRawTransaction"))
	})

	t.Run("transport failure", func(t *testing.T) {
		node, srv := newMockNode(t, baseHandlers(big.NewInt(gwei)))
		n := testNetwork(t, srv.URL)
		signed := build(t, n)

		node.mu.Lock()
		node.status = http.StatusBadGateway
		node.mu.Unlock()

		res := n.Broadcast(context.Background(), signed)
		require.False(t, res.Success)
		require.Equal(t, chainerr.KindRPCTransport, res.Err.Kind)
		require.False(t, res.Definite())
	})
}

func TestFetchTransaction(t *testing.T) {
	key, err := crypto.HexToECDSA(testKeyHex)
	require.NoError(t, err)
	to := ecommon.HexToAddress(testTo)
	signer := etypes.LatestSignerForChainID(big.NewInt(1))
	tx, err := etypes.SignNewTx(key, signer, &etypes.DynamicFeeTx{
		ChainID:   big.NewInt(1),
		Nonce:     4,
		GasTipCap: big.NewInt(gwei),
		GasFeeCap: big.NewInt(3 * gwei),
		Gas:       21000,
		To:        &to,
		Value:     ether(1, 5),
	})
	require.NoError(t, err)

	header := testHeader(big.NewInt(gwei))
	blockHash := header.Hash()

	txJSON, err := json.Marshal(tx)
	require.NoError(t, err)
	var txFields map[string]any
	require.NoError(t, json.Unmarshal(txJSON, &txFields))
	txFields["blockNumber"] = "0x64"
	txFields["blockHash"] = blockHash.Hex()
	txFields["from"] = crypto.PubkeyToAddress(key.PublicKey).Hex()
	txFields["transactionIndex"] = "0x0"

	receipt := &etypes.Receipt{
		Type:              etypes.DynamicFeeTxType,
		Status:            etypes.ReceiptStatusSuccessful,
		CumulativeGasUsed: 21000,
		Logs: []*etypes.Log{{
			Address:     to,
			Topics:      []ecommon.Hash{ecommon.HexToHash("0xddf252ad")},
			Data:        []byte{0x01},
			BlockNumber: 100,
			TxHash:      tx.Hash(),
			BlockHash:   blockHash,
			Index:       3,
		}},
		TxHash:            tx.Hash(),
		GasUsed:           21000,
		EffectiveGasPrice: big.NewInt(2 * gwei),
		BlockHash:         blockHash,
		BlockNumber:       big.NewInt(100),
	}

	handlers := map[string]handler{
		"eth_getTransactionByHash":  result(txFields),
		"eth_getTransactionReceipt": result(receipt),
		"eth_getBlockByHash":        result(header),
	}
	node, srv := newMockNode(t, handlers)
	n := testNetwork(t, srv.URL)

	got, err := n.FetchTransaction(context.Background(), tx.Hash().Hex())
	require.NoError(t, err)
	assert.Equal(t, engine.StatusSuccess, got.Status)
	assert.Equal(t, tx.Hash().Hex(), got.Hash)
	assert.Equal(t, uint64(100), got.BlockNumber)
	assert.Equal(t, blockHash.Hex(), got.BlockHash)
	assert.Equal(t, int64(1_700_000_000), got.BlockTime.Unix())
	assert.Equal(t, "1.5", got.Value)
	assert.Equal(t, "0.000042", got.Fee)
	assert.Equal(t, crypto.PubkeyToAddress(key.PublicKey).Hex(), got.From)
	require.Len(t, got.Logs, 1)
	assert.Equal(t, uint(3), got.Logs[0].Index)
	assert.Equal(t, "0x01", got.Logs[0].Data)

	node.mu.Lock()
	node.handlers["eth_getTransactionReceipt"] = result(nil)
	node.mu.Unlock()
	got, err = n.FetchTransaction(context.Background(), tx.Hash().Hex())
	require.NoError(t, err)
	assert.Equal(t, engine.StatusPending, got.Status)

	node.mu.Lock()
	node.handlers["eth_getTransactionByHash"] = result(nil)
	node.mu.Unlock()
	_, err = n.FetchTransaction(context.Background(), tx.Hash().Hex())
	require.True(t, chainerr.Is(err, chainerr.KindNotFound), err)

	_, err = n.FetchTransaction(context.Background(), "0x1234")
	require.True(t, chainerr.Is(err, chainerr.KindInvalidInput))
}
