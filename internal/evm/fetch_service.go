package evm

import (
	"context"
	"errors"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	ecommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	etypes "github.com/ethereum/go-ethereum/core/types"
	"golang.org/x/sync/errgroup"

	"github.com/vultisig/txengine/internal/chainerr"
	"github.com/vultisig/txengine/internal/chains"
	"github.com/vultisig/txengine/internal/engine"
	"github.com/vultisig/txengine/internal/util"
)

type fetchService struct {
	node *node
}

func newFetchService(n *node) *fetchService {
	return &fetchService{node: n}
}

// GetTransaction looks up the transaction and its receipt concurrently, then
// the containing block for its timestamp.
func (s *fetchService) GetTransaction(ctx context.Context, id string) (*engine.Transaction, error) {
	chain := s.node.chain
	raw, err := hexutil.Decode(id)
	if err != nil || len(raw) != ecommon.HashLength {
		return nil, chainerr.New(chainerr.KindInvalidInput, chain, "invalid transaction hash %q", id)
	}
	hash := ecommon.BytesToHash(raw)

	var (
		tx        *etypes.Transaction
		isPending bool
		receipt   *etypes.Receipt
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		start := time.Now()
		var er error
		tx, isPending, er = s.node.client.TransactionByHash(gctx, hash)
		s.node.observe("eth_getTransactionByHash", start, er)
		if er != nil {
			return nodeError(chain, er, "transaction %s", id)
		}
		return nil
	})
	g.Go(func() error {
		start := time.Now()
		var er error
		receipt, er = s.node.client.TransactionReceipt(gctx, hash)
		s.node.observe("eth_getTransactionReceipt", start, er)
		if errors.Is(er, ethereum.NotFound) {
			// pending transactions have no receipt yet
			return nil
		}
		if er != nil {
			return nodeError(chain, er, "receipt %s", id)
		}
		return nil
	})
	err = g.Wait()
	if err != nil {
		return nil, err
	}

	res := &engine.Transaction{
		Chain:     chain,
		Ecosystem: chains.EVM,
		Hash:      tx.Hash().Hex(),
		Value:     util.FromBaseUnits(tx.Value(), s.node.decimals),
	}
	if to := tx.To(); to != nil {
		res.To = to.Hex()
	}
	sender, err := etypes.Sender(etypes.LatestSignerForChainID(s.node.chainID), tx)
	if err == nil {
		res.From = sender.Hex()
	}

	if isPending || receipt == nil {
		res.Status = engine.StatusPending
		return res, nil
	}

	res.Status = engine.StatusSuccess
	if receipt.Status == etypes.ReceiptStatusFailed {
		res.Status = engine.StatusFailed
		res.FailureReason = "execution reverted"
	}
	res.BlockNumber = receipt.BlockNumber.Uint64()
	res.BlockHash = receipt.BlockHash.Hex()

	price := receipt.EffectiveGasPrice
	if price == nil {
		price = tx.GasPrice()
	}
	fee := new(big.Int).Mul(new(big.Int).SetUint64(receipt.GasUsed), price)
	res.Fee = util.FromBaseUnits(fee, s.node.decimals)

	for _, l := range receipt.Logs {
		topics := make([]string, 0, len(l.Topics))
		for _, t := range l.Topics {
			topics = append(topics, t.Hex())
		}
		res.Logs = append(res.Logs, engine.Log{
			Index:   l.Index,
			Address: l.Address.Hex(),
			Topics:  topics,
			Data:    hexutil.Encode(l.Data),
		})
	}

	start := time.Now()
	header, err := s.node.client.HeaderByHash(ctx, receipt.BlockHash)
	s.node.observe("eth_getBlockByHash", start, err)
	if err != nil {
		return nil, nodeError(chain, err, "block %s", receipt.BlockHash.Hex())
	}
	res.BlockTime = time.Unix(int64(header.Time), 0).UTC()

	return res, nil
}
