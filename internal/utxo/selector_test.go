package utxo

import (
	"bytes"
	"strings"
	"testing"

	"github.com/btcsuite/btcd/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vultisig/txengine/internal/chainerr"
	"github.com/vultisig/txengine/internal/utxo/address"
)

var testRecipientScript = append([]byte{0x00, 0x14}, bytes.Repeat([]byte{0xaa}, 20)...)

func txid(c string) string {
	return strings.Repeat(c, 64)
}

func segwitUTXOs(values ...uint64) []UTXO {
	res := make([]UTXO, 0, len(values))
	for i, v := range values {
		res = append(res, UTXO{
			TxID:          txid(string("0123456789abcdef"[i%16])),
			Vout:          uint32(i),
			Value:         v,
			ScriptType:    address.P2WPKH,
			Confirmations: 3,
		})
	}
	return res
}

func request(amount uint64, candidates []UTXO) SelectionRequest {
	return SelectionRequest{
		Chain:           "bitcoin",
		Outputs:         []*wire.TxOut{wire.NewTxOut(int64(amount), testRecipientScript)},
		ChangeScriptLen: 22,
		FeeRate:         1,
		DustThreshold:   546,
		Candidates:      candidates,
	}
}

func values(us []UTXO) []uint64 {
	res := make([]uint64, 0, len(us))
	for _, u := range us {
		res = append(res, u.Value)
	}
	return res
}

func TestSelectUTXOs_LargestFirst(t *testing.T) {
	res, err := SelectUTXOs(request(6000, segwitUTXOs(1000, 5000, 3000)))
	require.NoError(t, err)

	assert.Equal(t, []uint64{5000, 3000}, values(res.Inputs))
	assert.Equal(t, uint64(8000), res.TotalInput)
	assert.Equal(t, uint64(209), res.Fee)
	assert.Equal(t, uint64(1791), res.Change)
	assert.Equal(t, 209, res.VSize)
	assert.GreaterOrEqual(t, res.TotalInput, res.Amount+200)
}

func TestSelectUTXOs_DustChangeFolded(t *testing.T) {
	res, err := SelectUTXOs(request(7300, segwitUTXOs(5000, 3000, 1000)))
	require.NoError(t, err)

	assert.Equal(t, []uint64{5000, 3000}, values(res.Inputs))
	assert.Zero(t, res.Change)
	assert.Equal(t, uint64(700), res.Fee)
	assert.Equal(t, 178, res.VSize)
}

func TestSelectUTXOs_Insufficient(t *testing.T) {
	tests := []struct {
		name       string
		amount     uint64
		candidates []UTXO
	}{
		{"all utxos short of fee", 9000, segwitUTXOs(5000, 3000, 1000)},
		{"no utxos", 1000, nil},
		{"zero value utxos", 1000, segwitUTXOs(0)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := SelectUTXOs(request(tt.amount, tt.candidates))
			require.Error(t, err)
			require.True(t, chainerr.Is(err, chainerr.KindInsufficientFunds), err.Error())
		})
	}
}

func TestSelectUTXOs_InvalidRequest(t *testing.T) {
	req := request(1000, segwitUTXOs(5000))
	req.FeeRate = 0
	_, err := SelectUTXOs(req)
	require.True(t, chainerr.Is(err, chainerr.KindInvalidInput))

	req = request(1000, segwitUTXOs(5000))
	req.Outputs = nil
	_, err = SelectUTXOs(req)
	require.True(t, chainerr.Is(err, chainerr.KindInvalidInput))
}

func TestSelectUTXOs_Deterministic(t *testing.T) {
	candidates := []UTXO{
		{TxID: txid("b"), Vout: 0, Value: 5000, ScriptType: address.P2WPKH},
		{TxID: txid("a"), Vout: 1, Value: 5000, ScriptType: address.P2WPKH},
		{TxID: txid("a"), Vout: 0, Value: 5000, ScriptType: address.P2WPKH},
	}

	for i := 0; i < 5; i++ {
		res, err := SelectUTXOs(request(1000, candidates))
		require.NoError(t, err)
		require.Len(t, res.Inputs, 1)
		require.Equal(t, txid("a"), res.Inputs[0].TxID)
		require.Equal(t, uint32(0), res.Inputs[0].Vout)
	}
}

func TestSelectUTXOs_FewestInputs(t *testing.T) {
	req := request(2000, segwitUTXOs(10000, 5000, 3000))
	req.Policy = FewestInputs
	res, err := SelectUTXOs(req)
	require.NoError(t, err)
	assert.Equal(t, []uint64{3000}, values(res.Inputs))
	assert.Equal(t, uint64(141), res.Fee)
	assert.Equal(t, uint64(859), res.Change)

	// no single utxo covers, falls back to largest first
	req = request(6000, segwitUTXOs(5000, 3000, 1000))
	req.Policy = FewestInputs
	res, err = SelectUTXOs(req)
	require.NoError(t, err)
	assert.Equal(t, []uint64{5000, 3000}, values(res.Inputs))
}

func TestSelectUTXOs_MinConfirmations(t *testing.T) {
	candidates := segwitUTXOs(9000, 3000)
	candidates[0].Confirmations = 0

	req := request(2000, candidates)
	req.MinConfirmations = 1
	res, err := SelectUTXOs(req)
	require.NoError(t, err)
	assert.Equal(t, []uint64{3000}, values(res.Inputs))
}

func TestSelectUTXOs_Invariants(t *testing.T) {
	candidates := segwitUTXOs(12000, 7000, 4000, 2500, 900, 600)
	for _, rate := range []uint64{1, 3, 10} {
		for amount := uint64(546); amount < 26000; amount += 777 {
			req := request(amount, candidates)
			req.FeeRate = rate
			res, err := SelectUTXOs(req)
			if err != nil {
				require.True(t, chainerr.Is(err, chainerr.KindInsufficientFunds))
				continue
			}
			require.Equal(t, res.TotalInput, res.Amount+res.Fee+res.Change)
			require.GreaterOrEqual(t, res.Fee, uint64(res.VSize)*rate)
			if res.Change > 0 {
				require.GreaterOrEqual(t, res.Change, req.DustThreshold)
			}
		}
	}
}
