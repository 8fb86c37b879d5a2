package tron

import (
	"context"
	"encoding/hex"
	"math/big"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/vultisig/txengine/internal/chainerr"
	"github.com/vultisig/txengine/internal/chains"
	"github.com/vultisig/txengine/internal/engine"
	"github.com/vultisig/txengine/internal/util"
)

const (
	contractSuccess = "SUCCESS"
	resultFailed    = "FAILED"
)

type fetchService struct {
	node     *node
	decimals int32
}

func newFetchService(n *node, decimals int32) *fetchService {
	return &fetchService{
		node:     n,
		decimals: decimals,
	}
}

// GetTransaction reads the transaction and its execution info concurrently.
// A transaction without info has not been included in a block yet.
func (s *fetchService) GetTransaction(ctx context.Context, id string) (*engine.Transaction, error) {
	chain := s.node.chain
	id = strings.TrimPrefix(strings.ToLower(id), "0x")
	raw, err := hex.DecodeString(id)
	if err != nil || len(raw) != 32 {
		return nil, chainerr.New(chainerr.KindInvalidInput, chain, "invalid transaction id %q", id)
	}

	var (
		tx   *Transaction
		info *TransactionInfo
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		start := time.Now()
		var er error
		tx, er = s.node.client.GetTransactionByID(gctx, id)
		s.node.observe("gettransactionbyid", start, er)
		if er != nil {
			return chainerr.Classify(chain, er, "transaction %s", id)
		}
		return nil
	})
	g.Go(func() error {
		start := time.Now()
		var er error
		info, er = s.node.client.GetTransactionInfoByID(gctx, id)
		s.node.observe("gettransactioninfobyid", start, er)
		if er != nil {
			return chainerr.Classify(chain, er, "transaction info %s", id)
		}
		return nil
	})
	err = g.Wait()
	if err != nil {
		return nil, err
	}
	if tx.TxID == "" {
		return nil, chainerr.New(chainerr.KindNotFound, chain, "transaction %s not found", id)
	}

	res := &engine.Transaction{
		Chain:     chain,
		Ecosystem: chains.TVM,
		Hash:      tx.TxID,
		Status:    engine.StatusPending,
	}
	if tx.RawData != nil && len(tx.RawData.Contract) > 0 {
		v := tx.RawData.Contract[0].Parameter.Value
		res.From = v.OwnerAddress
		res.To = v.ToAddress
		if res.To == "" {
			res.To = v.ContractAddress
		}
		res.Value = util.FromBaseUnits(big.NewInt(v.Amount), s.decimals)
	}
	if info.ID == "" {
		return res, nil
	}

	res.Status = engine.StatusSuccess
	if reason := failureReason(tx, info); reason != "" {
		res.Status = engine.StatusFailed
		res.FailureReason = reason
	}
	res.BlockNumber = uint64(info.BlockNumber)
	res.BlockTime = time.UnixMilli(info.BlockTimeStamp).UTC()
	res.Fee = util.FromBaseUnits(big.NewInt(info.Fee), s.decimals)

	for i, l := range info.Log {
		addr := l.Address
		if b, er := hex.DecodeString(l.Address); er == nil && len(b) == addressLength-1 {
			var a Address
			a[0] = addressPrefix
			copy(a[1:], b)
			addr = a.String()
		}
		res.Logs = append(res.Logs, engine.Log{
			Index:   uint(i),
			Address: addr,
			Topics:  l.Topics,
			Data:    l.Data,
		})
	}

	start := time.Now()
	block, err := s.node.client.GetBlockByNum(ctx, info.BlockNumber)
	s.node.observe("getblockbynum", start, err)
	if err != nil {
		return nil, chainerr.Classify(chain, err, "block %d", info.BlockNumber)
	}
	res.BlockHash = block.BlockID

	return res, nil
}

func failureReason(tx *Transaction, info *TransactionInfo) string {
	if info.Result == resultFailed {
		if msg := nodeText(info.ResMessage); msg != "" {
			return msg
		}
		return resultFailed
	}
	if info.Receipt.Result != "" && info.Receipt.Result != contractSuccess {
		return info.Receipt.Result
	}
	if len(tx.Ret) > 0 && tx.Ret[0].ContractRet != "" && tx.Ret[0].ContractRet != contractSuccess {
		return tx.Ret[0].ContractRet
	}
	return ""
}
