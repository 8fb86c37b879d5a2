package xrp

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vultisig/txengine/internal/auth"
	"github.com/vultisig/txengine/internal/chainerr"
	"github.com/vultisig/txengine/internal/chains"
	"github.com/vultisig/txengine/internal/engine"
	"github.com/vultisig/txengine/internal/signature"
	"github.com/vultisig/txengine/internal/token"
)

type method func(params map[string]any) map[string]any

// mockNode is a rippled JSON-RPC endpoint answering from per-method handlers.
type mockNode struct {
	mu      sync.Mutex
	methods map[string]method
	calls   map[string]int
	params  map[string]map[string]any
}

func newMockNode(t *testing.T, methods map[string]method) (*mockNode, *httptest.Server) {
	t.Helper()
	m := &mockNode{
		methods: methods,
		calls:   make(map[string]int),
		params:  make(map[string]map[string]any),
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			ID     string           `json:"id"`
			Method string           `json:"method"`
			Params []map[string]any `json:"params"`
		}
		if !assert.NoError(t, json.NewDecoder(r.Body).Decode(&req)) {
			return
		}
		params := map[string]any{}
		if len(req.Params) > 0 {
			params = req.Params[0]
		}

		m.mu.Lock()
		m.calls[req.Method]++
		m.params[req.Method] = params
		h, ok := m.methods[req.Method]
		m.mu.Unlock()

		result := map[string]any{"status": "error", "error": "unknownCmd", "error_message": "Unknown method."}
		if ok {
			result = h(params)
			if _, failed := result["error"]; !failed {
				result["status"] = "success"
			}
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"id": req.ID, "result": result})
	}))
	t.Cleanup(srv.Close)
	return m, srv
}

func (m *mockNode) count(name string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[name]
}

func (m *mockNode) last(name string) map[string]any {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.params[name]
}

func answer(v map[string]any) method {
	return func(map[string]any) map[string]any {
		res := make(map[string]any, len(v))
		for k, val := range v {
			res[k] = val
		}
		return res
	}
}

func rpcFailure(code string) method {
	return answer(map[string]any{"status": "error", "error": code, "error_message": code + " message"})
}

func accountInfo(balance string, sequence int) method {
	return answer(map[string]any{
		"account_data": map[string]any{"Balance": balance, "Sequence": sequence},
		"validated":    false,
	})
}

func buildMethods() map[string]method {
	return map[string]method{
		"account_info":   accountInfo("100000000", 7),
		"ledger_current": answer(map[string]any{"ledger_current_index": 1000}),
		"fee":            answer(map[string]any{"drops": map[string]any{"base_fee": "10", "open_ledger_fee": "15"}}),
	}
}

func testNetwork(t *testing.T, url string) *Network {
	t.Helper()
	reg, err := chains.NewRegistry(chains.Overrides{})
	require.NoError(t, err)
	cfg, err := reg.Get("xrp")
	require.NoError(t, err)
	cfg.RPCURL = url

	n, err := NewNetwork(cfg, auth.NewHTTPClient(), logrus.New(), nil)
	require.NoError(t, err)
	return n
}

type testKey struct {
	priv    *btcec.PrivateKey
	pub     []byte
	address string
}

func newKey(t *testing.T) testKey {
	t.Helper()
	priv, err := btcec.NewPrivateKey()
	require.NoError(t, err)
	pub := priv.PubKey().SerializeCompressed()
	id, err := AccountFromPubKey("xrp", pub)
	require.NoError(t, err)
	return testKey{priv: priv, pub: pub, address: id.String()}
}

func (k testKey) sign(digest []byte) []byte {
	return ecdsa.Sign(k.priv, digest).Serialize()
}

func (k testKey) intent(to string, drops int64) engine.TransferIntent {
	return engine.TransferIntent{
		From:      k.address,
		To:        to,
		Amount:    big.NewInt(drops),
		Token:     token.Native(),
		PublicKey: k.pub,
	}
}

func TestPaymentEndToEnd(t *testing.T) {
	sender := newKey(t)
	methods := buildMethods()
	methods["submit"] = func(params map[string]any) map[string]any {
		blob, _ := hex.DecodeString(params["tx_blob"].(string))
		return map[string]any{
			"engine_result":         "tesSUCCESS",
			"engine_result_message": "The transaction was applied.",
			"tx_json":               map[string]any{"hash": transactionID(blob)},
		}
	}
	node, srv := newMockNode(t, methods)
	n := testNetwork(t, srv.URL)

	intent := sender.intent(vectorDestination, 1_500_000)
	intent.Memo = "invoice-42"
	unsigned, err := n.BuildUnsigned(context.Background(), intent)
	require.NoError(t, err)

	tx := unsigned.(*UnsignedTx)
	assert.Equal(t, "15", tx.Field("Fee"))
	assert.Equal(t, 7, tx.Field("Sequence"))
	assert.Equal(t, 1100, tx.Field("LastLedgerSequence"))
	assert.Equal(t, "current", node.last("account_info")["ledger_index"])

	fields, err := decode(tx.Blob())
	require.NoError(t, err)
	assert.Equal(t, "1500000", fields["Amount"])
	assert.Equal(t, sender.address, fields["Account"])
	assert.Contains(t, fields, "Memos")

	payloads := unsigned.SigningPayloads()
	require.Len(t, payloads, 1)
	assert.Equal(t, signingDigest(tx.Blob()), payloads[0].Digest)
	assert.Equal(t, sender.pub, payloads[0].PubKey)

	der := sender.sign(payloads[0].Digest)
	signed, err := n.Sign(unsigned, []engine.Signature{{Index: 0, Bytes: der}})
	require.NoError(t, err)
	assert.Equal(t, transactionID(signed.Serialized()), signed.Hash())

	signedFields, err := decode(signed.Serialized())
	require.NoError(t, err)
	assert.True(t, strings.EqualFold(hex.EncodeToString(der), signedFields[txnSignatureField].(string)))

	decoded, err := n.DecodeSigned(signed.Serialized())
	require.NoError(t, err)
	assert.Equal(t, signed.Hash(), decoded.Hash())

	res := n.Broadcast(context.Background(), signed)
	require.True(t, res.Success)
	assert.Equal(t, signed.Hash(), res.Hash)
	assert.Equal(t, 1, node.count("submit"))
	assert.Equal(t, strings.ToUpper(hex.EncodeToString(signed.Serialized())), node.last("submit")["tx_blob"])
}

func TestSignAcceptsCompactAndHighS(t *testing.T) {
	sender := newKey(t)
	_, srv := newMockNode(t, buildMethods())
	n := testNetwork(t, srv.URL)

	unsigned, err := n.BuildUnsigned(context.Background(), sender.intent(vectorDestination, 1_000))
	require.NoError(t, err)
	digest := unsigned.SigningPayloads()[0].Digest

	der := sender.sign(digest)
	fromDER, err := n.Sign(unsigned, []engine.Signature{{Index: 0, Bytes: der}})
	require.NoError(t, err)

	r, sv, err := signature.FromDER(der)
	require.NoError(t, err)

	fromCompact, err := n.Sign(unsigned, []engine.Signature{{Index: 0, Bytes: compact(r, sv)}})
	require.NoError(t, err)
	assert.Equal(t, fromDER.Hash(), fromCompact.Hash())

	highS := new(big.Int).Sub(btcec.S256().N, sv)
	fromHighS, err := n.Sign(unsigned, []engine.Signature{{Index: 0, Bytes: compact(r, highS)}})
	require.NoError(t, err)
	assert.Equal(t, fromDER.Hash(), fromHighS.Hash())
}

func compact(r, s *big.Int) []byte {
	b := make([]byte, 64)
	r.FillBytes(b[:32])
	s.FillBytes(b[32:])
	return b
}

func TestSignRejects(t *testing.T) {
	sender := newKey(t)
	other := newKey(t)
	_, srv := newMockNode(t, buildMethods())
	n := testNetwork(t, srv.URL)

	unsigned, err := n.BuildUnsigned(context.Background(), sender.intent(vectorDestination, 1_000))
	require.NoError(t, err)
	digest := unsigned.SigningPayloads()[0].Digest

	_, err = n.Sign(unsigned, []engine.Signature{{Index: 0, Bytes: other.sign(digest)}})
	assert.True(t, chainerr.Is(err, chainerr.KindSignatureVerificationFailed))

	_, err = n.Sign(unsigned, []engine.Signature{{Index: 0, Bytes: []byte{0x30, 0x01, 0x02}}})
	assert.True(t, chainerr.Is(err, chainerr.KindMalformedSignature))

	_, err = n.Sign(unsigned, nil)
	assert.Error(t, err)
}

func TestBuildChecks(t *testing.T) {
	sender := newKey(t)
	other := newKey(t)

	t.Run("validation", func(t *testing.T) {
		node, srv := newMockNode(t, buildMethods())
		n := testNetwork(t, srv.URL)

		foreign := sender.intent(vectorDestination, 1)
		foreign.PublicKey = other.pub
		noKey := sender.intent(vectorDestination, 1)
		noKey.PublicKey = nil
		issued := sender.intent(vectorDestination, 1)
		issued.Token = token.Create("USD.rhub8VRN55s94qWKDv6jmDy1pUykJzF3wq")

		for name, intent := range map[string]engine.TransferIntent{
			"foreign key":   foreign,
			"missing key":   noKey,
			"issued":        issued,
			"self payment":  sender.intent(sender.address, 1),
			"zero amount":   sender.intent(vectorDestination, 0),
			"bad recipient": sender.intent("rInvalid", 1),
		} {
			_, err := n.BuildUnsigned(context.Background(), intent)
			assert.True(t, chainerr.Is(err, chainerr.KindInvalidInput), "%s: %v", name, err)
		}
		assert.Equal(t, 0, node.count("account_info"))
	})

	t.Run("insufficient", func(t *testing.T) {
		methods := buildMethods()
		methods["account_info"] = accountInfo("1000010", 7)
		_, srv := newMockNode(t, methods)
		n := testNetwork(t, srv.URL)
		_, err := n.BuildUnsigned(context.Background(), sender.intent(vectorDestination, 1_000_000))
		assert.True(t, chainerr.Is(err, chainerr.KindInsufficientFunds))
	})

	t.Run("unfunded sender", func(t *testing.T) {
		methods := buildMethods()
		methods["account_info"] = rpcFailure("actNotFound")
		_, srv := newMockNode(t, methods)
		n := testNetwork(t, srv.URL)
		_, err := n.BuildUnsigned(context.Background(), sender.intent(vectorDestination, 1))
		assert.True(t, chainerr.Is(err, chainerr.KindInsufficientFunds))
	})

	t.Run("fee override", func(t *testing.T) {
		node, srv := newMockNode(t, buildMethods())
		n := testNetwork(t, srv.URL)
		intent := sender.intent(vectorDestination, 1)
		intent.Fee = &engine.FeeOverride{Drops: 5000}
		unsigned, err := n.BuildUnsigned(context.Background(), intent)
		require.NoError(t, err)
		assert.Equal(t, "5000", unsigned.(*UnsignedTx).Field("Fee"))
		assert.Equal(t, 0, node.count("fee"))
	})

	t.Run("fee floor", func(t *testing.T) {
		methods := buildMethods()
		methods["fee"] = answer(map[string]any{"drops": map[string]any{"base_fee": "10", "open_ledger_fee": "10"}})
		_, srv := newMockNode(t, methods)
		n := testNetwork(t, srv.URL)
		unsigned, err := n.BuildUnsigned(context.Background(), sender.intent(vectorDestination, 1))
		require.NoError(t, err)
		assert.Equal(t, "12", unsigned.(*UnsignedTx).Field("Fee"))
	})
}

func signedPayment(t *testing.T, n *Network, sender testKey) engine.SignedTx {
	t.Helper()
	unsigned, err := n.BuildUnsigned(context.Background(), sender.intent(vectorDestination, 1_000))
	require.NoError(t, err)
	signed, err := n.Sign(unsigned, []engine.Signature{{Index: 0, Bytes: sender.sign(unsigned.SigningPayloads()[0].Digest)}})
	require.NoError(t, err)
	return signed
}

func TestBroadcastResults(t *testing.T) {
	sender := newKey(t)

	tests := []struct {
		name     string
		submit   method
		success  bool
		kind     chainerr.Kind
		reason   string
		definite bool
	}{
		{
			name:     "queued",
			submit:   answer(map[string]any{"engine_result": "terQUEUED"}),
			success:  true,
			definite: true,
		},
		{
			name:     "rejected",
			submit:   answer(map[string]any{"engine_result": "tecUNFUNDED_PAYMENT", "engine_result_message": "Insufficient XRP balance to send."}),
			kind:     chainerr.KindOnChainRejection,
			reason:   "tecUNFUNDED_PAYMENT: Insufficient XRP balance to send.",
			definite: true,
		},
		{
			name:     "past sequence",
			submit:   answer(map[string]any{"engine_result": "tefPAST_SEQ", "engine_result_message": "This sequence number has already passed."}),
			kind:     chainerr.KindOnChainRejection,
			reason:   "tefPAST_SEQ: This sequence number has already passed.",
			definite: true,
		},
		{
			name:     "rpc error",
			submit:   rpcFailure("invalidTransaction"),
			kind:     chainerr.KindOnChainRejection,
			reason:   "invalidTransaction: invalidTransaction message",
			definite: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			methods := buildMethods()
			methods["submit"] = tt.submit
			_, srv := newMockNode(t, methods)
			n := testNetwork(t, srv.URL)
			signed := signedPayment(t, n, sender)

			res := n.Broadcast(context.Background(), signed)
			assert.Equal(t, tt.success, res.Success)
			assert.Equal(t, tt.definite, res.Definite())
			assert.Equal(t, signed.Hash(), res.Hash)
			if !tt.success {
				require.NotNil(t, res.Err)
				assert.Equal(t, tt.kind, res.Err.Kind)
				assert.Equal(t, tt.reason, res.Err.Reason)
			}
		})
	}

	t.Run("transport", func(t *testing.T) {
		_, srv := newMockNode(t, buildMethods())
		n := testNetwork(t, srv.URL)
		signed := signedPayment(t, n, sender)
		srv.Close()

		res := n.Broadcast(context.Background(), signed)
		assert.False(t, res.Success)
		assert.False(t, res.Definite())
	})
}

func TestDecodeSignedRejects(t *testing.T) {
	sender := newKey(t)
	other := newKey(t)
	_, srv := newMockNode(t, buildMethods())
	n := testNetwork(t, srv.URL)

	unsigned, err := n.BuildUnsigned(context.Background(), sender.intent(vectorDestination, 1_000))
	require.NoError(t, err)
	blob := unsigned.(*UnsignedTx).Blob()

	_, err = n.DecodeSigned(blob)
	assert.True(t, chainerr.Is(err, chainerr.KindPrecondition))

	fields, err := decode(blob)
	require.NoError(t, err)
	fields[txnSignatureField] = strings.ToUpper(hex.EncodeToString(other.sign(signingDigest(blob))))
	forged, err := encode(fields)
	require.NoError(t, err)
	_, err = n.DecodeSigned(forged)
	assert.True(t, chainerr.Is(err, chainerr.KindSignatureVerificationFailed))
}

func TestBalance(t *testing.T) {
	sender := newKey(t)

	node, srv := newMockNode(t, map[string]method{"account_info": accountInfo("25500000", 3)})
	n := testNetwork(t, srv.URL)
	bal, err := n.Balance(context.Background(), sender.address, token.Native())
	require.NoError(t, err)
	assert.Equal(t, "25500000", bal.Amount.String())
	assert.Equal(t, "25.5", bal.Formatted)
	assert.Equal(t, "validated", node.last("account_info")["ledger_index"])

	_, srv = newMockNode(t, map[string]method{"account_info": rpcFailure("actNotFound")})
	n = testNetwork(t, srv.URL)
	bal, err = n.Balance(context.Background(), sender.address, token.Native())
	require.NoError(t, err)
	assert.Equal(t, "0", bal.Amount.String())
}

func TestFetchTransaction(t *testing.T) {
	const hash = "3A88A7A394855C6FC3999C2E4128725DCFCBCE1E133B787FDBB903ED554F0A2F"
	txResult := func(validated bool, result string) method {
		return answer(map[string]any{
			"TransactionType": "Payment",
			"Account":         vectorAccount,
			"Destination":     vectorDestination,
			"Amount":          "1000000",
			"Fee":             "12",
			"hash":            hash,
			"ledger_index":    90_000_000,
			"ledger_hash":     "ABCDEF",
			"date":            750_000_000,
			"validated":       validated,
			"meta": map[string]any{
				"TransactionResult": result,
				"delivered_amount":  "1000000",
			},
		})
	}

	t.Run("success", func(t *testing.T) {
		_, srv := newMockNode(t, map[string]method{"tx": txResult(true, "tesSUCCESS")})
		n := testNetwork(t, srv.URL)
		tx, err := n.FetchTransaction(context.Background(), strings.ToLower(hash))
		require.NoError(t, err)
		assert.Equal(t, engine.StatusSuccess, tx.Status)
		assert.Equal(t, chains.XRP, tx.Ecosystem)
		assert.Equal(t, "1", tx.Value)
		assert.Equal(t, "0.000012", tx.Fee)
		assert.Equal(t, uint64(90_000_000), tx.BlockNumber)
		assert.Equal(t, "ABCDEF", tx.BlockHash)
		assert.Equal(t, int64(750_000_000+rippleEpoch), tx.BlockTime.Unix())
		assert.Equal(t, vectorAccount, tx.From)
	})

	t.Run("failed", func(t *testing.T) {
		_, srv := newMockNode(t, map[string]method{"tx": txResult(true, "tecPATH_DRY")})
		n := testNetwork(t, srv.URL)
		tx, err := n.FetchTransaction(context.Background(), hash)
		require.NoError(t, err)
		assert.Equal(t, engine.StatusFailed, tx.Status)
		assert.Equal(t, "tecPATH_DRY", tx.FailureReason)
	})

	t.Run("pending", func(t *testing.T) {
		_, srv := newMockNode(t, map[string]method{"tx": txResult(false, "tesSUCCESS")})
		n := testNetwork(t, srv.URL)
		tx, err := n.FetchTransaction(context.Background(), hash)
		require.NoError(t, err)
		assert.Equal(t, engine.StatusPending, tx.Status)
		assert.Zero(t, tx.BlockNumber)
	})

	t.Run("not found", func(t *testing.T) {
		_, srv := newMockNode(t, map[string]method{"tx": rpcFailure("txnNotFound")})
		n := testNetwork(t, srv.URL)
		_, err := n.FetchTransaction(context.Background(), hash)
		assert.True(t, chainerr.Is(err, chainerr.KindNotFound))

		_, err = n.FetchTransaction(context.Background(), "abc")
		assert.True(t, chainerr.Is(err, chainerr.KindInvalidInput))
	})
}
