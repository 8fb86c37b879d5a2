package xrp

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"math/big"
	"strings"
	"time"

	"github.com/vultisig/txengine/internal/chainerr"
	"github.com/vultisig/txengine/internal/chains"
	"github.com/vultisig/txengine/internal/engine"
	"github.com/vultisig/txengine/internal/util"
)

// rippleEpoch is 2000-01-01T00:00:00Z, the origin of ledger close times.
const rippleEpoch = 946684800

type fetchService struct {
	node *node
}

func newFetchService(n *node) *fetchService {
	return &fetchService{node: n}
}

// GetTransaction reads a transaction with its metadata. Transactions not yet
// in a validated ledger are reported pending.
func (s *fetchService) GetTransaction(ctx context.Context, id string) (*engine.Transaction, error) {
	chain := s.node.chain
	raw, err := hex.DecodeString(id)
	if err != nil || len(raw) != 32 {
		return nil, chainerr.New(chainerr.KindInvalidInput, chain, "invalid transaction hash %q", id)
	}

	start := time.Now()
	tx, err := s.node.client.GetTransaction(ctx, strings.ToUpper(id))
	s.node.observe("tx", start, err)
	if err != nil {
		return nil, nodeError(chain, err, "transaction %s", id)
	}

	res := &engine.Transaction{
		Chain:     chain,
		Ecosystem: chains.XRP,
		Hash:      tx.Hash,
		Status:    engine.StatusPending,
		From:      tx.Account,
		To:        tx.Destination,
		Value:     s.amount(tx.Amount),
		Fee:       s.format(tx.Fee),
	}
	if tx.Meta != nil && len(tx.Meta.DeliveredAmount) > 0 {
		if delivered := s.amount(tx.Meta.DeliveredAmount); delivered != "" {
			res.Value = delivered
		}
	}
	if !tx.Validated || tx.Meta == nil {
		return res, nil
	}

	res.Status = engine.StatusSuccess
	if tx.Meta.TransactionResult != resultSuccess {
		res.Status = engine.StatusFailed
		res.FailureReason = tx.Meta.TransactionResult
	}
	res.BlockNumber = tx.LedgerIndex
	res.BlockHash = tx.LedgerHash
	if tx.Date > 0 {
		res.BlockTime = time.Unix(tx.Date+rippleEpoch, 0).UTC()
	}
	return res, nil
}

// amount formats an XRP amount. Issued currency amounts are objects and
// yield an empty string.
func (s *fetchService) amount(raw json.RawMessage) string {
	var v string
	if json.Unmarshal(raw, &v) != nil {
		return ""
	}
	return s.format(v)
}

func (s *fetchService) format(drops string) string {
	n, ok := new(big.Int).SetString(drops, 10)
	if !ok {
		return ""
	}
	return util.FromBaseUnits(n, s.node.decimals)
}
