package solana

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"sort"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"

	"github.com/vultisig/txengine/internal/chainerr"
	"github.com/vultisig/txengine/internal/chains"
	"github.com/vultisig/txengine/internal/engine"
	"github.com/vultisig/txengine/internal/token"
	"github.com/vultisig/txengine/internal/util"
)

type fetchService struct {
	node *node
}

func newFetchService(n *node) *fetchService {
	return &fetchService{node: n}
}

// GetTransaction fetches a confirmed transaction by its first signature.
// Versioned (v0) transactions are requested explicitly and their loaded
// addresses appended to the account list.
func (s *fetchService) GetTransaction(ctx context.Context, id string) (*engine.Transaction, error) {
	chain := s.node.chain
	sig, err := solana.SignatureFromBase58(id)
	if err != nil {
		return nil, chainerr.Wrap(chainerr.KindInvalidInput, chain, err, "invalid signature %q", id)
	}

	maxVersion := uint64(0)
	start := time.Now()
	res, err := s.node.client.GetTransaction(ctx, sig, &rpc.GetTransactionOpts{
		Encoding:                       solana.EncodingBase64,
		Commitment:                     rpc.CommitmentConfirmed,
		MaxSupportedTransactionVersion: &maxVersion,
	})
	s.node.observe("getTransaction", start, err)
	if err != nil {
		return nil, nodeError(chain, err, "transaction %s", id)
	}
	if res == nil || res.Transaction == nil || res.Meta == nil {
		return nil, chainerr.New(chainerr.KindNotFound, chain, "transaction %s", id)
	}

	tx, err := res.Transaction.GetTransaction()
	if err != nil {
		return nil, chainerr.Wrap(chainerr.KindRPCTransport, chain, err, "failed to decode transaction %s", id)
	}
	meta := res.Meta

	keys := append(solana.PublicKeySlice{}, tx.Message.AccountKeys...)
	keys = append(keys, meta.LoadedAddresses.Writable...)
	keys = append(keys, meta.LoadedAddresses.ReadOnly...)

	out := &engine.Transaction{
		Chain:       chain,
		Ecosystem:   chains.SVM,
		Hash:        sig.String(),
		Status:      engine.StatusSuccess,
		BlockNumber: res.Slot,
		Fee:         util.FromBaseUnits(new(big.Int).SetUint64(meta.Fee), s.node.decimals),
	}
	if len(keys) > 0 {
		out.From = keys[0].String()
	}
	if res.BlockTime != nil {
		out.BlockTime = res.BlockTime.Time().UTC()
	}
	if meta.Err != nil {
		out.Status = engine.StatusFailed
		out.FailureReason = failureReason(meta.Err)
	}

	for _, ix := range tx.Message.Instructions {
		out.Instructions = append(out.Instructions, engine.Instruction{
			ProgramID: keyAt(keys, ix.ProgramIDIndex),
			Accounts:  keysAt(keys, ix.Accounts),
			Data:      ix.Data.String(),
		})
	}

	for i, key := range keys {
		if i >= len(meta.PreBalances) || i >= len(meta.PostBalances) {
			break
		}
		pre, post := meta.PreBalances[i], meta.PostBalances[i]
		if pre == post {
			continue
		}
		out.BalanceChanges = append(out.BalanceChanges, engine.BalanceChange{
			Account: key.String(),
			Owner:   key.String(),
			Token:   token.Native(),
			Pre:     util.FromBaseUnits(new(big.Int).SetUint64(pre), s.node.decimals),
			Post:    util.FromBaseUnits(new(big.Int).SetUint64(post), s.node.decimals),
		})
	}

	changes, err := tokenBalanceChanges(keys, meta.PreTokenBalances, meta.PostTokenBalances)
	if err != nil {
		return nil, chainerr.Wrap(chainerr.KindRPCTransport, chain, err, "invalid token balances in %s", id)
	}
	out.BalanceChanges = append(out.BalanceChanges, changes...)

	return out, nil
}

// tokenBalanceChanges pairs pre and post token balances by account index.
// An account missing on one side held zero there.
func tokenBalanceChanges(keys solana.PublicKeySlice, pre, post []rpc.TokenBalance) ([]engine.BalanceChange, error) {
	type pair struct {
		pre, post *rpc.TokenBalance
	}
	byIndex := make(map[uint16]*pair)
	for i := range pre {
		b := &pre[i]
		byIndex[b.AccountIndex] = &pair{pre: b}
	}
	for i := range post {
		b := &post[i]
		p, ok := byIndex[b.AccountIndex]
		if !ok {
			p = &pair{}
			byIndex[b.AccountIndex] = p
		}
		p.post = b
	}

	indexes := make([]int, 0, len(byIndex))
	for idx := range byIndex {
		indexes = append(indexes, int(idx))
	}
	sort.Ints(indexes)

	var res []engine.BalanceChange
	for _, idx := range indexes {
		p := byIndex[uint16(idx)]
		ref := p.post
		if ref == nil {
			ref = p.pre
		}
		preAmount, err := tokenAmount(p.pre, ref)
		if err != nil {
			return nil, err
		}
		postAmount, err := tokenAmount(p.post, ref)
		if err != nil {
			return nil, err
		}
		if preAmount == postAmount {
			continue
		}

		change := engine.BalanceChange{
			Account: keyAt(keys, uint16(idx)),
			Token:   token.Create(ref.Mint.String()),
			Pre:     preAmount,
			Post:    postAmount,
		}
		if ref.Owner != nil {
			change.Owner = ref.Owner.String()
		}
		res = append(res, change)
	}
	return res, nil
}

// tokenAmount renders the raw integer amount with the mint decimals. A nil
// balance is zero in the decimals of ref.
func tokenAmount(b, ref *rpc.TokenBalance) (string, error) {
	if b == nil || b.UiTokenAmount == nil {
		return "0", nil
	}
	decimals := int32(b.UiTokenAmount.Decimals)
	if ref != nil && ref.UiTokenAmount != nil {
		decimals = int32(ref.UiTokenAmount.Decimals)
	}
	return util.FromBaseUnitsString(b.UiTokenAmount.Amount, decimals)
}

func keyAt(keys solana.PublicKeySlice, idx uint16) string {
	if int(idx) >= len(keys) {
		return ""
	}
	return keys[idx].String()
}

func keysAt(keys solana.PublicKeySlice, idx []uint16) []string {
	res := make([]string, 0, len(idx))
	for _, i := range idx {
		res = append(res, keyAt(keys, i))
	}
	return res
}

func failureReason(txErr any) string {
	b, err := json.Marshal(txErr)
	if err != nil {
		return fmt.Sprint(txErr)
	}
	return string(b)
}
