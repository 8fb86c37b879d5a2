package engine

import (
	"context"
	"math/big"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vultisig/txengine/internal/chainerr"
	"github.com/vultisig/txengine/internal/chains"
	"github.com/vultisig/txengine/internal/token"
)

type stubProvider struct {
	cfg chains.Config
}

func (s *stubProvider) Config() chains.Config { return s.cfg }

func (s *stubProvider) ValidateAddress(address string) error {
	if !strings.HasPrefix(address, "ok") {
		return chainerr.New(chainerr.KindInvalidInput, s.cfg.Alias, "bad address %s", address)
	}
	return nil
}

func (s *stubProvider) Balance(context.Context, string, token.Address) (*Balance, error) {
	return nil, nil
}

func (s *stubProvider) BuildUnsigned(context.Context, TransferIntent) (UnsignedTx, error) {
	return nil, nil
}

func (s *stubProvider) Sign(UnsignedTx, []Signature) (SignedTx, error) { return nil, nil }

func (s *stubProvider) DecodeSigned([]byte) (SignedTx, error) { return nil, nil }

func (s *stubProvider) Broadcast(context.Context, SignedTx) BroadcastResult {
	return BroadcastResult{}
}

func (s *stubProvider) FetchTransaction(context.Context, string) (*Transaction, error) {
	return nil, nil
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	eth := &stubProvider{cfg: chains.Config{Alias: "ethereum", Ecosystem: chains.EVM}}
	require.NoError(t, r.Register(eth))
	require.Error(t, r.Register(eth))
	require.NoError(t, r.Register(&stubProvider{cfg: chains.Config{Alias: "bitcoin", Ecosystem: chains.UTXO}}))

	p, err := r.Get(" Ethereum")
	require.NoError(t, err)
	require.Equal(t, chains.EVM, p.Config().Ecosystem)

	_, err = r.Get("polkadot")
	require.True(t, chainerr.Is(err, chainerr.KindUnsupportedChain))

	require.Equal(t, []string{"bitcoin", "ethereum"}, r.Chains())
}

func TestValidateIntent(t *testing.T) {
	p := &stubProvider{cfg: chains.Config{Alias: "ethereum"}}

	tests := []struct {
		name    string
		intent  TransferIntent
		wantErr bool
	}{
		{"valid", TransferIntent{From: "ok1", To: "ok2", Amount: big.NewInt(1)}, false},
		{"nil amount", TransferIntent{From: "ok1", To: "ok2"}, true},
		{"zero amount", TransferIntent{From: "ok1", To: "ok2", Amount: big.NewInt(0)}, true},
		{"negative amount", TransferIntent{From: "ok1", To: "ok2", Amount: big.NewInt(-5)}, true},
		{"bad recipient", TransferIntent{From: "ok1", To: "nope", Amount: big.NewInt(1)}, true},
		{"missing sender", TransferIntent{To: "ok2", Amount: big.NewInt(1)}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateIntent(p, tt.intent)
			if !tt.wantErr {
				require.NoError(t, err)
				return
			}
			require.True(t, chainerr.Is(err, chainerr.KindInvalidInput))
		})
	}
}

func TestExpectSignatures(t *testing.T) {
	payloads := make([]SigningPayload, 2)
	require.NoError(t, ExpectSignatures("bitcoin", payloads, []Signature{{Index: 1}, {Index: 0}}))
	require.Error(t, ExpectSignatures("bitcoin", payloads, []Signature{{Index: 0}}))
	require.Error(t, ExpectSignatures("bitcoin", payloads, []Signature{{Index: 0}, {Index: 0}}))
	require.Error(t, ExpectSignatures("bitcoin", payloads, []Signature{{Index: 0}, {Index: 2}}))
}

func TestBroadcastResult_Definite(t *testing.T) {
	require.True(t, BroadcastResult{Success: true, Hash: "0x1"}.Definite())
	require.True(t, Failed("", chainerr.New(chainerr.KindOnChainRejection, "ethereum", "nonce too low")).Definite())
	require.False(t, Failed("0x1", chainerr.New(chainerr.KindRPCTimeout, "ethereum", "deadline")).Definite())
	require.False(t, BroadcastResult{}.Definite())
}
