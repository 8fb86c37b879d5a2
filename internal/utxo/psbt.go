package utxo

import (
	"bytes"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"

	"github.com/vultisig/txengine/internal/chainerr"
	"github.com/vultisig/txengine/internal/chains"
	"github.com/vultisig/txengine/internal/engine"
	"github.com/vultisig/txengine/internal/utxo/address"
)

// rbfSequence signals replaceability and enables locktime.
const rbfSequence = wire.MaxTxInSequenceNum - 2

// SighashData is the digest one input's signer has to sign.
type SighashData struct {
	Chain       string
	Index       int
	ScriptType  address.ScriptType
	Digest      []byte
	SigHashType txscript.SigHashType
	PubKey      []byte
	// OutputKey is the BIP86 tweaked x-only key of a taproot input. Key-path
	// signatures verify against it, not against PubKey.
	OutputKey []byte
}

// BuildParams describes the outputs and key material of a spend. Change is
// paid to ChangeScript when the selection leaves any.
type BuildParams struct {
	Chain        string
	PubKey       []byte
	Outputs      []*wire.TxOut
	ChangeScript []byte
	// PrevTxs holds the full previous transactions of legacy inputs keyed
	// by txid.
	PrevTxs map[string]*wire.MsgTx
}

// GetScriptTypeFromAddress reports the script type an address pays to.
func GetScriptTypeFromAddress(chain, addr string) (address.ScriptType, error) {
	return address.TypeOf(chain, addr)
}

// AddressToScriptPubKey returns the locking script of an address.
func AddressToScriptPubKey(chain, addr string) ([]byte, error) {
	return address.ScriptPubKey(chain, addr)
}

// BuildPSBT assembles a version 0 PSBT for the selection and computes the
// sighash of every input.
func BuildPSBT(params BuildParams, sel *SelectionResult) (*UnsignedTx, error) {
	chain := params.Chain
	if sel == nil || len(sel.Inputs) == 0 {
		return nil, chainerr.New(chainerr.KindInvalidInput, chain, "no inputs selected")
	}
	pub, err := btcec.ParsePubKey(params.PubKey)
	if err != nil {
		return nil, chainerr.Wrap(chainerr.KindInvalidInput, chain, err, "invalid public key")
	}
	if sel.Change > 0 && len(params.ChangeScript) == 0 {
		return nil, chainerr.New(chainerr.KindInvalidInput, chain, "change without change script")
	}

	tx := wire.NewMsgTx(2)
	for _, u := range sel.Inputs {
		hash, er := chainhash.NewHashFromStr(u.TxID)
		if er != nil {
			return nil, chainerr.Wrap(chainerr.KindInvalidInput, chain, er, "invalid utxo txid %s", u.TxID)
		}
		in := wire.NewTxIn(wire.NewOutPoint(hash, u.Vout), nil, nil)
		in.Sequence = rbfSequence
		tx.AddTxIn(in)
	}
	for _, out := range params.Outputs {
		tx.AddTxOut(wire.NewTxOut(out.Value, out.PkScript))
	}
	if sel.Change > 0 {
		tx.AddTxOut(wire.NewTxOut(int64(sel.Change), params.ChangeScript))
	}

	packet, err := psbt.NewFromUnsignedTx(tx)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to create psbt: %w", chain, err)
	}

	for i, u := range sel.Inputs {
		err = populateInput(chain, packet, i, u, pub, params.PrevTxs)
		if err != nil {
			return nil, err
		}
	}

	sighashes, err := computeSighashes(chain, packet)
	if err != nil {
		return nil, err
	}
	compressed := pub.SerializeCompressed()
	outputKey := schnorr.SerializePubKey(txscript.ComputeTaprootKeyNoScript(pub))
	for i := range sighashes {
		sighashes[i].PubKey = compressed
		if sighashes[i].ScriptType == address.P2TR {
			sighashes[i].OutputKey = outputKey
		}
	}

	raw, err := serializePacket(packet)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", chain, err)
	}
	return &UnsignedTx{
		chain:     chain,
		packet:    raw,
		sighashes: sighashes,
		selection: *sel,
	}, nil
}

func populateInput(
	chain string,
	p *psbt.Packet,
	i int,
	u UTXO,
	pub *btcec.PublicKey,
	prevTxs map[string]*wire.MsgTx,
) error {
	in := &p.Inputs[i]
	pubHash := btcutil.Hash160(pub.SerializeCompressed())

	var expected []byte
	switch u.ScriptType {
	case address.P2PKH:
		expected = p2pkhScript(pubHash)
		prev, ok := prevTxs[u.TxID]
		if !ok {
			return chainerr.New(chainerr.KindPrecondition, chain, "missing previous transaction %s for input %d", u.TxID, i)
		}
		if prev.TxHash().String() != u.TxID {
			return chainerr.New(chainerr.KindPrecondition, chain, "previous transaction hash mismatch for input %d", i)
		}
		if int(u.Vout) >= len(prev.TxOut) || prev.TxOut[u.Vout].Value != int64(u.Value) {
			return chainerr.New(chainerr.KindPrecondition, chain, "previous output %s:%d does not match utxo", u.TxID, u.Vout)
		}
		in.NonWitnessUtxo = prev
		in.SighashType = txscript.SigHashAll
	case address.P2WPKH:
		expected = p2wpkhScript(pubHash)
		in.WitnessUtxo = wire.NewTxOut(int64(u.Value), u.PkScript)
		in.SighashType = txscript.SigHashAll
	case address.P2SHP2WPKH:
		redeem := p2wpkhScript(pubHash)
		expected = p2shScript(btcutil.Hash160(redeem))
		in.RedeemScript = redeem
		in.WitnessUtxo = wire.NewTxOut(int64(u.Value), u.PkScript)
		in.SighashType = txscript.SigHashAll
	case address.P2TR:
		script, err := txscript.PayToTaprootScript(txscript.ComputeTaprootKeyNoScript(pub))
		if err != nil {
			return fmt.Errorf("%s: failed to build taproot script: %w", chain, err)
		}
		expected = script
		in.WitnessUtxo = wire.NewTxOut(int64(u.Value), u.PkScript)
		in.TaprootInternalKey = schnorr.SerializePubKey(pub)
		in.SighashType = txscript.SigHashDefault
	default:
		return chainerr.New(chainerr.KindUnsupportedAddressType, chain, "can't spend %s input %d", u.ScriptType, i)
	}

	if !bytes.Equal(expected, u.PkScript) {
		return chainerr.New(chainerr.KindPrecondition, chain, "input %d is not locked to the public key", i)
	}
	return nil
}

func computeSighashes(chain string, p *psbt.Packet) ([]SighashData, error) {
	fetcher, err := prevOutFetcher(chain, p)
	if err != nil {
		return nil, err
	}
	sigHashes := txscript.NewTxSigHashes(p.UnsignedTx, fetcher)

	res := make([]SighashData, 0, len(p.Inputs))
	for i := range p.Inputs {
		sh, er := inputSighash(chain, p, i, fetcher, sigHashes)
		if er != nil {
			return nil, er
		}
		res = append(res, sh)
	}
	return res, nil
}

// inputSighash derives the digest for input i from the packet alone, so the
// applier never has to trust a caller supplied digest.
func inputSighash(
	chain string,
	p *psbt.Packet,
	i int,
	fetcher txscript.PrevOutputFetcher,
	sigHashes *txscript.TxSigHashes,
) (SighashData, error) {
	prev, err := prevOutput(chain, p, i)
	if err != nil {
		return SighashData{}, err
	}
	in := p.Inputs[i]
	tx := p.UnsignedTx

	sh := SighashData{
		Chain:       chain,
		Index:       i,
		SigHashType: txscript.SigHashAll,
	}

	switch txscript.GetScriptClass(prev.PkScript) {
	case txscript.PubKeyHashTy:
		sh.ScriptType = address.P2PKH
		sh.Digest, err = txscript.CalcSignatureHash(prev.PkScript, txscript.SigHashAll, tx, i)
	case txscript.WitnessV0PubKeyHashTy:
		sh.ScriptType = address.P2WPKH
		sh.Digest, err = txscript.CalcWitnessSigHash(prev.PkScript, sigHashes, txscript.SigHashAll, tx, i, prev.Value)
	case txscript.ScriptHashTy:
		if len(in.RedeemScript) == 0 || txscript.GetScriptClass(in.RedeemScript) != txscript.WitnessV0PubKeyHashTy {
			return SighashData{}, chainerr.New(chainerr.KindUnsupportedAddressType, chain, "input %d: only p2sh-p2wpkh is supported", i)
		}
		sh.ScriptType = address.P2SHP2WPKH
		sh.Digest, err = txscript.CalcWitnessSigHash(in.RedeemScript, sigHashes, txscript.SigHashAll, tx, i, prev.Value)
	case txscript.WitnessV1TaprootTy:
		sh.ScriptType = address.P2TR
		sh.SigHashType = txscript.SigHashDefault
		sh.Digest, err = txscript.CalcTaprootSignatureHash(sigHashes, txscript.SigHashDefault, tx, i, fetcher)
	default:
		return SighashData{}, chainerr.New(chainerr.KindUnsupportedAddressType, chain, "input %d: unsupported previous output script", i)
	}
	if err != nil {
		return SighashData{}, fmt.Errorf("%s: failed to calculate sighash for input %d: %w", chain, i, err)
	}
	return sh, nil
}

func prevOutput(chain string, p *psbt.Packet, i int) (*wire.TxOut, error) {
	in := p.Inputs[i]
	if in.WitnessUtxo != nil {
		return in.WitnessUtxo, nil
	}
	if in.NonWitnessUtxo != nil {
		op := p.UnsignedTx.TxIn[i].PreviousOutPoint
		if in.NonWitnessUtxo.TxHash() != op.Hash || int(op.Index) >= len(in.NonWitnessUtxo.TxOut) {
			return nil, chainerr.New(chainerr.KindPrecondition, chain, "input %d: previous transaction does not match outpoint", i)
		}
		return in.NonWitnessUtxo.TxOut[op.Index], nil
	}
	return nil, chainerr.New(chainerr.KindPrecondition, chain, "input %d has no previous output", i)
}

func prevOutFetcher(chain string, p *psbt.Packet) (*txscript.MultiPrevOutFetcher, error) {
	fetcher := txscript.NewMultiPrevOutFetcher(nil)
	for i, txIn := range p.UnsignedTx.TxIn {
		out, err := prevOutput(chain, p, i)
		if err != nil {
			return nil, err
		}
		fetcher.AddPrevOut(txIn.PreviousOutPoint, out)
	}
	return fetcher, nil
}

func p2pkhScript(pubHash []byte) []byte {
	script, _ := txscript.NewScriptBuilder().
		AddOp(txscript.OP_DUP).
		AddOp(txscript.OP_HASH160).
		AddData(pubHash).
		AddOp(txscript.OP_EQUALVERIFY).
		AddOp(txscript.OP_CHECKSIG).
		Script()
	return script
}

func p2wpkhScript(pubHash []byte) []byte {
	script, _ := txscript.NewScriptBuilder().AddOp(txscript.OP_0).AddData(pubHash).Script()
	return script
}

func p2shScript(scriptHash []byte) []byte {
	script, _ := txscript.NewScriptBuilder().
		AddOp(txscript.OP_HASH160).
		AddData(scriptHash).
		AddOp(txscript.OP_EQUAL).
		Script()
	return script
}

func serializePacket(p *psbt.Packet) ([]byte, error) {
	var buf bytes.Buffer
	err := p.Serialize(&buf)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize psbt: %w", err)
	}
	return buf.Bytes(), nil
}

func parsePacket(chain string, raw []byte) (*psbt.Packet, error) {
	p, err := psbt.NewFromRawBytes(bytes.NewReader(raw), false)
	if err != nil {
		return nil, chainerr.Wrap(chainerr.KindInvalidInput, chain, err, "failed to parse psbt")
	}
	return p, nil
}

// DecodePSBT accepts a PSBT in base64 or hex.
func DecodePSBT(s string) (*psbt.Packet, error) {
	s = strings.TrimSpace(s)
	if raw, err := hex.DecodeString(s); err == nil {
		return parsePacket("", raw)
	}
	raw, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, chainerr.Wrap(chainerr.KindInvalidInput, "", err, "psbt is neither hex nor base64")
	}
	return parsePacket("", raw)
}

// UnsignedTx is a PSBT awaiting one signature per input.
type UnsignedTx struct {
	chain     string
	packet    []byte
	sighashes []SighashData
	selection SelectionResult
}

func (u *UnsignedTx) Chain() string {
	return u.chain
}

func (u *UnsignedTx) Ecosystem() chains.Ecosystem {
	return chains.UTXO
}

func (u *UnsignedTx) SigningPayloads() []engine.SigningPayload {
	res := make([]engine.SigningPayload, 0, len(u.sighashes))
	for _, sh := range u.sighashes {
		algo := engine.AlgorithmECDSA
		if sh.ScriptType == address.P2TR {
			algo = engine.AlgorithmSchnorr
		}
		res = append(res, engine.SigningPayload{
			Index:       sh.Index,
			Digest:      append([]byte{}, sh.Digest...),
			PubKey:      append([]byte{}, sh.PubKey...),
			OutputKey:   append([]byte(nil), sh.OutputKey...),
			Algorithm:   algo,
			SigHashType: uint32(sh.SigHashType),
		})
	}
	return res
}

// PSBT returns a copy of the serialized packet.
func (u *UnsignedTx) PSBT() []byte {
	return append([]byte{}, u.packet...)
}

func (u *UnsignedTx) PSBTBase64() string {
	return base64.StdEncoding.EncodeToString(u.packet)
}

func (u *UnsignedTx) Sighashes() []SighashData {
	return append([]SighashData{}, u.sighashes...)
}

func (u *UnsignedTx) Selection() SelectionResult {
	return u.selection
}
