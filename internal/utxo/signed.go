package utxo

import (
	"bytes"
	"fmt"

	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"

	"github.com/vultisig/txengine/internal/chainerr"
)

// SignedTx is a fully signed UTXO transaction. Hash is the txid: double
// SHA-256 of the serialization without witness data, byte reversed.
type SignedTx struct {
	chain string
	raw   []byte
	hash  string
}

func NewSignedTx(chain string, tx *wire.MsgTx) (*SignedTx, error) {
	var buf bytes.Buffer
	err := tx.Serialize(&buf)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to serialize tx: %w", chain, err)
	}
	return &SignedTx{
		chain: chain,
		raw:   buf.Bytes(),
		hash:  tx.TxHash().String(),
	}, nil
}

// DecodeSignedTx parses network serialized bytes and requires every input to
// carry a scriptSig or witness. Raw bytes do not include the spent outputs,
// so signatures are not checked here; VerifySignedTx does that when the
// previous outputs are known.
func DecodeSignedTx(chain string, raw []byte) (*SignedTx, error) {
	tx := wire.NewMsgTx(wire.TxVersion)
	err := tx.Deserialize(bytes.NewReader(raw))
	if err != nil {
		return nil, chainerr.Wrap(chainerr.KindInvalidInput, chain, err, "failed to deserialize transaction")
	}
	if len(tx.TxIn) == 0 {
		return nil, chainerr.New(chainerr.KindInvalidInput, chain, "transaction has no inputs")
	}
	for i, in := range tx.TxIn {
		if len(in.SignatureScript) == 0 && len(in.Witness) == 0 {
			return nil, chainerr.New(chainerr.KindPrecondition, chain, "input %d is not signed", i)
		}
	}
	signed, err := NewSignedTx(chain, tx)
	if err != nil {
		return nil, err
	}
	if !bytes.Equal(signed.raw, raw) {
		return nil, chainerr.New(chainerr.KindInvalidInput, chain, "transaction has trailing or non-canonical bytes")
	}
	return signed, nil
}

// VerifySignedTx runs the script interpreter over every input against the
// outputs it spends.
func VerifySignedTx(signed *SignedTx, prevOuts map[wire.OutPoint]*wire.TxOut) error {
	chain := signed.chain
	tx, err := signed.MsgTx()
	if err != nil {
		return chainerr.Wrap(chainerr.KindInvalidInput, chain, err, "failed to decode transaction")
	}

	fetcher := txscript.NewMultiPrevOutFetcher(nil)
	for i, in := range tx.TxIn {
		out, ok := prevOuts[in.PreviousOutPoint]
		if !ok {
			return chainerr.New(chainerr.KindPrecondition, chain, "missing previous output for input %d", i)
		}
		fetcher.AddPrevOut(in.PreviousOutPoint, out)
	}
	sigHashes := txscript.NewTxSigHashes(tx, fetcher)

	for i, in := range tx.TxIn {
		out := fetcher.FetchPrevOutput(in.PreviousOutPoint)
		vm, er := txscript.NewEngine(out.PkScript, tx, i, txscript.StandardVerifyFlags, nil, sigHashes, out.Value, fetcher)
		if er == nil {
			er = vm.Execute()
		}
		if er != nil {
			return chainerr.Wrap(chainerr.KindSignatureVerificationFailed, chain, er, "input %d does not verify", i)
		}
	}
	return nil
}

func (t *SignedTx) Chain() string {
	return t.chain
}

func (t *SignedTx) Serialized() []byte {
	return append([]byte{}, t.raw...)
}

func (t *SignedTx) Hash() string {
	return t.hash
}

// MsgTx decodes a fresh copy of the transaction.
func (t *SignedTx) MsgTx() (*wire.MsgTx, error) {
	tx := wire.NewMsgTx(wire.TxVersion)
	err := tx.Deserialize(bytes.NewReader(t.raw))
	if err != nil {
		return nil, fmt.Errorf("%s: failed to deserialize tx: %w", t.chain, err)
	}
	return tx, nil
}
