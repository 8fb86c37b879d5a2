package utxo

import (
	"context"
	"math/big"
	"strconv"
	"time"

	"github.com/vultisig/txengine/internal/chainerr"
	"github.com/vultisig/txengine/internal/chains"
	"github.com/vultisig/txengine/internal/engine"
	"github.com/vultisig/txengine/internal/util"
)

// FetchTransaction resolves a txid into the normalized view. Mempool
// transactions come back with StatusPending and no block data.
func (n *Network) FetchTransaction(ctx context.Context, id string) (*engine.Transaction, error) {
	if len(id) != 64 {
		return nil, chainerr.New(chainerr.KindInvalidInput, n.chain(), "invalid txid %q", id)
	}

	start := time.Now()
	tx, err := n.explorer.GetTransaction(ctx, id)
	n.metrics.RecordRPC(n.chain(), "transaction", start, err)
	if err != nil {
		return nil, err
	}

	res := &engine.Transaction{
		Chain:     n.chain(),
		Ecosystem: chains.UTXO,
		Hash:      tx.Hash,
		Status:    engine.StatusSuccess,
		Fee:       util.FromBaseUnits(bigUint(tx.Fee), n.cfg.Native.Decimals),
	}

	var total uint64
	for _, in := range tx.Inputs {
		res.Inputs = append(res.Inputs, engine.TxInput{
			TxID:    in.TransactionHash,
			Vout:    in.Index,
			Address: in.Recipient,
			Value:   in.Value,
		})
	}
	for _, out := range tx.Outputs {
		res.Outputs = append(res.Outputs, engine.TxOutput{
			Index:   out.Index,
			Address: out.Recipient,
			Value:   out.Value,
		})
		total += out.Value
	}
	res.Value = util.FromBaseUnits(bigUint(total), n.cfg.Native.Decimals)
	if len(res.Inputs) > 0 {
		res.From = res.Inputs[0].Address
	}
	if len(res.Outputs) > 0 {
		res.To = res.Outputs[0].Address
	}

	if tx.BlockID < 0 {
		res.Status = engine.StatusPending
		return res, nil
	}

	res.BlockNumber = uint64(tx.BlockID)
	res.BlockTime = tx.Time

	start = time.Now()
	blockHash, err := n.explorer.GetBlockHash(ctx, tx.BlockID)
	n.metrics.RecordRPC(n.chain(), "block", start, err)
	if err != nil {
		return nil, err
	}
	res.BlockHash = blockHash

	n.logger.WithField("hash", id).WithField("block", strconv.FormatInt(tx.BlockID, 10)).Debug("fetched transaction")
	return res, nil
}

func bigUint(v uint64) *big.Int {
	return new(big.Int).SetUint64(v)
}
