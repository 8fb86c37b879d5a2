package xrp

import (
	"context"
	"encoding/hex"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/vultisig/txengine/internal/chainerr"
	"github.com/vultisig/txengine/internal/engine"
)

const (
	// minFeeDrops is kept slightly above the 10 drop reference fee.
	minFeeDrops = 12
	// ledgerWindow bounds the transaction's validity to about five minutes.
	ledgerWindow = 100
)

type sendService struct {
	node *node
}

func newSendService(n *node) *sendService {
	return &sendService{
		node: n,
	}
}

// BuildPayment builds a single-signed XRP Payment. Sequence, fee and the
// current ledger are read concurrently.
func (s *sendService) BuildPayment(ctx context.Context, intent engine.TransferIntent) (*UnsignedTx, error) {
	chain := s.node.chain
	if !intent.Token.IsNative() {
		return nil, chainerr.New(chainerr.KindInvalidInput, chain, "issued currencies are not supported")
	}
	if !intent.Amount.IsUint64() {
		return nil, chainerr.New(chainerr.KindInvalidInput, chain, "amount %s out of range", intent.Amount)
	}
	if intent.From == intent.To {
		return nil, chainerr.New(chainerr.KindInvalidInput, chain, "sender and destination are the same account")
	}
	from, err := ParseAddress(chain, intent.From)
	if err != nil {
		return nil, err
	}
	signer, err := AccountFromPubKey(chain, intent.PublicKey)
	if err != nil {
		return nil, err
	}
	if signer != from {
		return nil, chainerr.New(chainerr.KindInvalidInput, chain, "public key belongs to %s, not %s", signer, intent.From)
	}

	var (
		account *AccountInfo
		ledger  uint32
		fee     uint64
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		start := time.Now()
		var er error
		account, er = s.node.client.GetAccountInfo(gctx, intent.From, "current")
		s.node.observe("account_info", start, er)
		if isNotFound(er) {
			return chainerr.New(chainerr.KindInsufficientFunds, chain, "account %s is not funded", intent.From)
		}
		if er != nil {
			return nodeError(chain, er, "failed to get account sequence")
		}
		return nil
	})
	g.Go(func() error {
		start := time.Now()
		var er error
		ledger, er = s.node.client.GetCurrentLedger(gctx)
		s.node.observe("ledger_current", start, er)
		if er != nil {
			return nodeError(chain, er, "failed to get current ledger")
		}
		return nil
	})
	if intent.Fee != nil && intent.Fee.Drops > 0 {
		fee = intent.Fee.Drops
	} else {
		g.Go(func() error {
			var er error
			fee, er = s.estimateFee(gctx)
			return er
		})
	}
	err = g.Wait()
	if err != nil {
		return nil, err
	}

	amount := intent.Amount.Uint64()
	balance, err := strconv.ParseUint(account.AccountData.Balance, 10, 64)
	if err != nil {
		return nil, chainerr.Wrap(chainerr.KindRPCTransport, chain, err, "invalid balance %q", account.AccountData.Balance)
	}
	if balance < amount+fee {
		return nil, chainerr.New(chainerr.KindInsufficientFunds, chain,
			"balance %d drops is below amount %d plus fee %d", balance, amount, fee)
	}

	fields := map[string]any{
		"Account":            intent.From,
		"TransactionType":    "Payment",
		"Amount":             strconv.FormatUint(amount, 10),
		"Destination":        intent.To,
		"Fee":                strconv.FormatUint(fee, 10),
		"Sequence":           int(account.AccountData.Sequence),
		"LastLedgerSequence": int(ledger + ledgerWindow),
		"SigningPubKey":      strings.ToUpper(hex.EncodeToString(intent.PublicKey)),
	}
	if intent.Memo != "" {
		fields["Memos"] = []any{
			map[string]any{
				"Memo": map[string]any{
					"MemoData": strings.ToUpper(hex.EncodeToString([]byte(intent.Memo))),
				},
			},
		}
	}

	blob, err := encode(fields)
	if err != nil {
		return nil, chainerr.Wrap(chainerr.KindInvalidInput, chain, err, "failed to build payment transaction")
	}
	return &UnsignedTx{
		chain:  chain,
		fields: fields,
		blob:   blob,
		pubKey: append([]byte{}, intent.PublicKey...),
	}, nil
}

// estimateFee uses the open ledger fee, floored at minFeeDrops.
func (s *sendService) estimateFee(ctx context.Context) (uint64, error) {
	chain := s.node.chain
	start := time.Now()
	res, err := s.node.client.GetFee(ctx)
	s.node.observe("fee", start, err)
	if err != nil {
		return 0, nodeError(chain, err, "failed to get fee")
	}

	fee := uint64(minFeeDrops)
	for _, v := range []string{res.Drops.OpenLedgerFee, res.Drops.BaseFee} {
		drops, er := strconv.ParseUint(v, 10, 64)
		if er == nil && drops > 0 {
			fee = max(fee, drops)
			break
		}
	}
	return fee, nil
}

// GetBalance returns the validated balance in drops.
func (s *sendService) GetBalance(ctx context.Context, address string) (uint64, error) {
	chain := s.node.chain
	start := time.Now()
	account, err := s.node.client.GetAccountInfo(ctx, address, "validated")
	s.node.observe("account_info", start, err)
	if isNotFound(err) {
		return 0, nil
	}
	if err != nil {
		return 0, nodeError(chain, err, "failed to get account info")
	}
	drops, err := strconv.ParseUint(account.AccountData.Balance, 10, 64)
	if err != nil {
		return 0, chainerr.Wrap(chainerr.KindRPCTransport, chain, err, "invalid balance %q", account.AccountData.Balance)
	}
	return drops, nil
}
