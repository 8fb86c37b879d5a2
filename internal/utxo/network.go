package utxo

import (
	"context"
	"encoding/hex"
	"math"
	"math/big"
	"time"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/wire"
	"github.com/sirupsen/logrus"

	"github.com/vultisig/txengine/internal/chainerr"
	"github.com/vultisig/txengine/internal/chains"
	"github.com/vultisig/txengine/internal/engine"
	"github.com/vultisig/txengine/internal/metrics"
	"github.com/vultisig/txengine/internal/token"
	"github.com/vultisig/txengine/internal/util"
	"github.com/vultisig/txengine/internal/utxo/address"
)

// Network is the provider for one BTC-like chain backed by a block explorer.
type Network struct {
	cfg      chains.Config
	explorer Explorer
	policy   SelectionPolicy
	logger   logrus.FieldLogger
	metrics  *metrics.EngineMetrics
}

func NewNetwork(
	cfg chains.Config,
	explorer Explorer,
	policy SelectionPolicy,
	logger logrus.FieldLogger,
	m *metrics.EngineMetrics,
) *Network {
	if policy == "" {
		policy = LargestFirst
	}
	return &Network{
		cfg:      cfg,
		explorer: explorer,
		policy:   policy,
		logger:   logger.WithField("chain", cfg.Alias),
		metrics:  m,
	}
}

func (n *Network) Config() chains.Config {
	return n.cfg
}

func (n *Network) chain() string {
	return n.cfg.Alias
}

func (n *Network) ValidateAddress(addr string) error {
	_, err := address.NewFromString(n.chain(), addr)
	return err
}

// spendType maps the sender's address type to the input type it spends as.
func (n *Network) spendType(addr string) (address.ScriptType, error) {
	st, err := address.TypeOf(n.chain(), addr)
	if err != nil {
		return "", err
	}
	switch st {
	case address.P2PKH, address.P2WPKH, address.P2TR:
		return st, nil
	case address.P2SH:
		if n.cfg.UTXO.SegWit {
			return address.P2SHP2WPKH, nil
		}
	}
	return "", chainerr.New(chainerr.KindUnsupportedAddressType, n.chain(), "can't spend from %s address", st)
}

func (n *Network) Balance(ctx context.Context, addr string, tok token.Address) (*engine.Balance, error) {
	if !tok.IsNative() {
		return nil, chainerr.New(chainerr.KindInvalidInput, n.chain(), "tokens are not supported on utxo chains")
	}
	err := n.ValidateAddress(addr)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	info, err := n.explorer.GetAddressInfo(ctx, addr)
	n.metrics.RecordRPC(n.chain(), "address_info", start, err)
	if err != nil {
		return nil, err
	}

	amount := big.NewInt(info.Balance)
	return &engine.Balance{
		Address:   addr,
		Token:     tok,
		Amount:    amount,
		Decimals:  n.cfg.Native.Decimals,
		Formatted: util.FromBaseUnits(amount, n.cfg.Native.Decimals),
	}, nil
}

// FetchUTXOs lists the sender's spendable outputs.
func (n *Network) FetchUTXOs(ctx context.Context, addr string) ([]UTXO, error) {
	st, err := n.spendType(addr)
	if err != nil {
		return nil, err
	}
	script, err := address.ScriptPubKey(n.chain(), addr)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	raw, tip, err := n.explorer.GetAllUnspent(ctx, addr)
	n.metrics.RecordRPC(n.chain(), "unspent", start, err)
	if err != nil {
		return nil, err
	}

	utxos := make([]UTXO, 0, len(raw))
	for _, u := range raw {
		var conf uint64
		if u.BlockId > 0 && uint64(u.BlockId) <= tip {
			conf = tip - uint64(u.BlockId) + 1
		}
		utxos = append(utxos, UTXO{
			TxID:          u.TransactionHash,
			Vout:          u.Index,
			Value:         u.Value,
			ScriptType:    st,
			PkScript:      script,
			Confirmations: conf,
		})
	}
	return utxos, nil
}

// FeeRate returns the override, else the explorer suggestion, else the
// configured default, clamped to the chain minimum.
func (n *Network) FeeRate(ctx context.Context, override *engine.FeeOverride) uint64 {
	params := n.cfg.UTXO
	rate := params.DefaultFeeRate
	if override != nil && override.SatsPerVByte > 0 {
		rate = override.SatsPerVByte
	} else {
		start := time.Now()
		suggested, err := n.explorer.SuggestedFeeRate(ctx)
		n.metrics.RecordRPC(n.chain(), "stats", start, err)
		if err != nil {
			n.logger.WithError(err).Warn("failed to get suggested fee rate, using default")
		} else if suggested > 0 {
			rate = suggested
		}
	}
	if rate < params.MinFeeRate {
		rate = params.MinFeeRate
	}
	return rate
}

func (n *Network) BuildUnsigned(ctx context.Context, intent engine.TransferIntent) (engine.UnsignedTx, error) {
	err := engine.ValidateIntent(n, intent)
	if err != nil {
		return nil, err
	}
	if !intent.Token.IsNative() {
		return nil, chainerr.New(chainerr.KindInvalidInput, n.chain(), "tokens are not supported on utxo chains")
	}
	if _, err = btcec.ParsePubKey(intent.PublicKey); err != nil {
		return nil, chainerr.Wrap(chainerr.KindInvalidInput, n.chain(), err, "invalid sender public key")
	}
	if _, err = n.spendType(intent.From); err != nil {
		return nil, err
	}

	utxos, err := n.FetchUTXOs(ctx, intent.From)
	if err != nil {
		return nil, err
	}
	rate := n.FeeRate(ctx, intent.Fee)

	unsigned, err := n.BuildFromUTXOs(ctx, intent, utxos, rate)
	if err != nil {
		return nil, err
	}
	return unsigned, nil
}

// BuildFromUTXOs selects from the given candidates and builds the PSBT.
// Previous transactions are fetched only for legacy inputs.
func (n *Network) BuildFromUTXOs(
	ctx context.Context,
	intent engine.TransferIntent,
	utxos []UTXO,
	feeRate uint64,
) (*UnsignedTx, error) {
	if !intent.Amount.IsUint64() || intent.Amount.Sign() <= 0 {
		return nil, chainerr.New(chainerr.KindInvalidInput, n.chain(), "amount out of range")
	}
	amount := intent.Amount.Uint64()
	if amount > math.MaxInt64 {
		return nil, chainerr.New(chainerr.KindInvalidInput, n.chain(), "amount out of range")
	}
	if amount < n.cfg.UTXO.DustThreshold {
		return nil, chainerr.New(chainerr.KindInvalidInput, n.chain(), "amount %d is below dust threshold %d", amount, n.cfg.UTXO.DustThreshold)
	}

	toScript, err := address.ScriptPubKey(n.chain(), intent.To)
	if err != nil {
		return nil, err
	}
	changeScript, err := address.ScriptPubKey(n.chain(), intent.From)
	if err != nil {
		return nil, err
	}

	outputs := []*wire.TxOut{wire.NewTxOut(int64(amount), toScript)}
	sel, err := SelectUTXOs(SelectionRequest{
		Chain:           n.chain(),
		Outputs:         outputs,
		ChangeScriptLen: len(changeScript),
		FeeRate:         feeRate,
		DustThreshold:   n.cfg.UTXO.DustThreshold,
		Candidates:      utxos,
		Policy:          n.policy,
	})
	if err != nil {
		return nil, err
	}

	prevTxs := make(map[string]*wire.MsgTx)
	for _, u := range sel.Inputs {
		if u.ScriptType != address.P2PKH {
			continue
		}
		if _, ok := prevTxs[u.TxID]; ok {
			continue
		}
		tx, er := n.fetchPrevTx(ctx, u.TxID)
		if er != nil {
			return nil, er
		}
		prevTxs[u.TxID] = tx
	}

	unsigned, err := BuildPSBT(BuildParams{
		Chain:        n.chain(),
		PubKey:       intent.PublicKey,
		Outputs:      outputs,
		ChangeScript: changeScript,
		PrevTxs:      prevTxs,
	}, sel)
	if err != nil {
		return nil, err
	}

	n.logger.WithFields(logrus.Fields{
		"inputs": len(sel.Inputs),
		"fee":    sel.Fee,
		"change": sel.Change,
		"vsize":  sel.VSize,
	}).Debug("built psbt")
	return unsigned, nil
}

func (n *Network) fetchPrevTx(ctx context.Context, txid string) (*wire.MsgTx, error) {
	start := time.Now()
	raw, err := n.explorer.GetRawTransaction(ctx, txid)
	n.metrics.RecordRPC(n.chain(), "raw_transaction", start, err)
	if err != nil {
		return nil, err
	}
	signed, err := DecodeSignedTx(n.chain(), raw)
	if err != nil {
		return nil, err
	}
	return signed.MsgTx()
}

// Sign applies one signature per input and finalizes the PSBT.
func (n *Network) Sign(tx engine.UnsignedTx, sigs []engine.Signature) (engine.SignedTx, error) {
	unsigned, ok := tx.(*UnsignedTx)
	if !ok || unsigned.chain != n.chain() {
		return nil, chainerr.New(chainerr.KindPrecondition, n.chain(), "not a %s utxo transaction", n.chain())
	}
	err := engine.ExpectSignatures(n.chain(), unsigned.SigningPayloads(), sigs)
	if err != nil {
		return nil, err
	}

	packet := unsigned.PSBT()
	for _, sig := range sigs {
		packet, err = ApplySignature(packet, unsigned.sighashes[sig.Index], sig.Bytes, sig.PubKey)
		if err != nil {
			return nil, err
		}
	}
	signed, err := Finalize(n.chain(), packet)
	if err != nil {
		return nil, err
	}
	return signed, nil
}

func (n *Network) DecodeSigned(raw []byte) (engine.SignedTx, error) {
	signed, err := DecodeSignedTx(n.chain(), raw)
	if err != nil {
		return nil, err
	}
	return signed, nil
}

// Broadcast pushes the transaction once through the explorer.
func (n *Network) Broadcast(ctx context.Context, tx engine.SignedTx) engine.BroadcastResult {
	if tx.Chain() != n.chain() {
		return engine.Failed(tx.Hash(), chainerr.New(chainerr.KindPrecondition, n.chain(), "transaction is for chain %s", tx.Chain()))
	}

	start := time.Now()
	hash, err := n.explorer.PushTransaction(ctx, hex.EncodeToString(tx.Serialized()))
	n.metrics.RecordRPC(n.chain(), "push_transaction", start, err)
	if err != nil {
		classified := chainerr.Classify(n.chain(), err, "failed to push tx")
		n.metrics.RecordBroadcast(n.chain(), classified)
		n.logger.WithFields(logrus.Fields{
			"hash": tx.Hash(),
			"kind": classified.Kind,
		}).WithError(err).Warn("broadcast failed")
		return engine.Failed(tx.Hash(), classified)
	}
	n.metrics.RecordBroadcast(n.chain(), nil)

	if hash == "" {
		hash = tx.Hash()
	} else if hash != tx.Hash() {
		n.logger.WithFields(logrus.Fields{
			"local": tx.Hash(),
			"node":  hash,
		}).Warn("explorer returned a different tx hash")
	}
	return engine.BroadcastResult{Hash: hash, Success: true}
}
