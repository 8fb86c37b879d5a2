package utxo

import (
	"bytes"
	"fmt"
	"math/big"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/btcsuite/btcd/txscript"

	"github.com/vultisig/txengine/internal/chainerr"
	"github.com/vultisig/txengine/internal/signature"
	"github.com/vultisig/txengine/internal/utxo/address"
)

// ApplySignature verifies sig over the input's sighash and returns a new
// PSBT with the signature attached. ECDSA signatures may be DER (with or
// without a trailing sighash byte) or 64 byte compact; taproot signatures
// are 64 byte BIP340.
func ApplySignature(packetBytes []byte, sh SighashData, sig []byte, pubKey []byte) ([]byte, error) {
	chain := sh.Chain
	p, err := parsePacket(chain, packetBytes)
	if err != nil {
		return nil, err
	}
	if sh.Index < 0 || sh.Index >= len(p.Inputs) {
		return nil, chainerr.New(chainerr.KindInvalidInput, chain, "input index %d out of range", sh.Index)
	}
	if len(pubKey) == 0 {
		pubKey = sh.PubKey
	}
	if len(sh.PubKey) > 0 && !bytes.Equal(pubKey, sh.PubKey) {
		return nil, chainerr.New(chainerr.KindSignatureVerificationFailed, chain, "public key does not match input %d", sh.Index)
	}

	current, err := sighashAt(chain, p, sh.Index)
	if err != nil {
		return nil, err
	}
	if !bytes.Equal(current.Digest, sh.Digest) {
		return nil, chainerr.New(chainerr.KindPrecondition, chain, "sighash does not match psbt input %d", sh.Index)
	}

	in := &p.Inputs[sh.Index]
	if current.ScriptType == address.P2TR {
		sig64, er := parseSchnorrSig(chain, sig)
		if er != nil {
			return nil, er
		}
		prev, er := prevOutput(chain, p, sh.Index)
		if er != nil {
			return nil, er
		}
		if !signature.ValidateSchnorr(current.Digest, sig64, prev.PkScript[2:]) {
			return nil, chainerr.New(chainerr.KindSignatureVerificationFailed, chain, "invalid schnorr signature for input %d", sh.Index)
		}
		in.TaprootKeySpendSig = sig64
	} else {
		r, s, er := parseECDSASig(chain, sig)
		if er != nil {
			return nil, er
		}
		s = signature.NormalizeS(s)
		er = checkKeyOwnsInput(chain, p, sh.Index, pubKey)
		if er != nil {
			return nil, er
		}
		if !signature.ValidateSignature(current.Digest, r, s, pubKey) {
			return nil, chainerr.New(chainerr.KindSignatureVerificationFailed, chain, "invalid ecdsa signature for input %d", sh.Index)
		}
		partial := &psbt.PartialSig{
			PubKey:    append([]byte{}, pubKey...),
			Signature: append(signature.ToDER(r, s), byte(txscript.SigHashAll)),
		}
		replaced := false
		for j, ps := range in.PartialSigs {
			if bytes.Equal(ps.PubKey, pubKey) {
				in.PartialSigs[j] = partial
				replaced = true
			}
		}
		if !replaced {
			in.PartialSigs = append(in.PartialSigs, partial)
		}
	}

	raw, err := serializePacket(p)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", chain, err)
	}
	return raw, nil
}

// Finalize checks that every input carries a valid signature, finalizes all
// inputs and extracts the network transaction.
func Finalize(chain string, packetBytes []byte) (*SignedTx, error) {
	p, err := parsePacket(chain, packetBytes)
	if err != nil {
		return nil, err
	}

	var missing []int
	for i, in := range p.Inputs {
		if len(in.PartialSigs) == 0 && len(in.TaprootKeySpendSig) == 0 {
			missing = append(missing, i)
		}
	}
	if len(missing) > 0 {
		return nil, chainerr.New(chainerr.KindPrecondition, chain, "inputs %v are not signed", missing)
	}

	for i := range p.Inputs {
		err = verifyInput(chain, p, i)
		if err != nil {
			return nil, err
		}
	}

	err = psbt.MaybeFinalizeAll(p)
	if err != nil {
		return nil, chainerr.Wrap(chainerr.KindPrecondition, chain, err, "failed to finalize psbt")
	}
	tx, err := psbt.Extract(p)
	if err != nil {
		return nil, chainerr.Wrap(chainerr.KindPrecondition, chain, err, "failed to extract transaction")
	}
	return NewSignedTx(chain, tx)
}

func sighashAt(chain string, p *psbt.Packet, i int) (SighashData, error) {
	fetcher, err := prevOutFetcher(chain, p)
	if err != nil {
		return SighashData{}, err
	}
	return inputSighash(chain, p, i, fetcher, txscript.NewTxSigHashes(p.UnsignedTx, fetcher))
}

func verifyInput(chain string, p *psbt.Packet, i int) error {
	sh, err := sighashAt(chain, p, i)
	if err != nil {
		return err
	}
	in := p.Inputs[i]

	if sh.ScriptType == address.P2TR {
		prev, er := prevOutput(chain, p, i)
		if er != nil {
			return er
		}
		if !signature.ValidateSchnorr(sh.Digest, in.TaprootKeySpendSig, prev.PkScript[2:]) {
			return chainerr.New(chainerr.KindSignatureVerificationFailed, chain, "invalid schnorr signature for input %d", i)
		}
		return nil
	}

	// single-key inputs only
	if len(in.PartialSigs) != 1 {
		return chainerr.New(chainerr.KindPrecondition, chain, "input %d: expected one signature, got %d", i, len(in.PartialSigs))
	}
	ps := in.PartialSigs[0]
	err = checkKeyOwnsInput(chain, p, i, ps.PubKey)
	if err != nil {
		return err
	}
	if len(ps.Signature) < 2 || ps.Signature[len(ps.Signature)-1] != byte(txscript.SigHashAll) {
		return chainerr.New(chainerr.KindMalformedSignature, chain, "input %d: unexpected sighash type", i)
	}
	r, s, err := signature.FromDER(ps.Signature[:len(ps.Signature)-1])
	if err != nil {
		return chainerr.Wrap(chainerr.KindMalformedSignature, chain, err, "input %d", i)
	}
	if !signature.ValidateSignature(sh.Digest, r, s, ps.PubKey) {
		return chainerr.New(chainerr.KindSignatureVerificationFailed, chain, "invalid ecdsa signature for input %d", i)
	}
	return nil
}

// checkKeyOwnsInput makes sure the key hashes to the input's locking script,
// otherwise a valid signature would still produce an invalid transaction.
func checkKeyOwnsInput(chain string, p *psbt.Packet, i int, pubKey []byte) error {
	if _, err := btcec.ParsePubKey(pubKey); err != nil {
		return chainerr.Wrap(chainerr.KindInvalidInput, chain, err, "invalid public key")
	}
	prev, err := prevOutput(chain, p, i)
	if err != nil {
		return err
	}

	script := prev.PkScript
	if len(p.Inputs[i].RedeemScript) > 0 {
		script = p.Inputs[i].RedeemScript
	}
	pubHash := btcutil.Hash160(pubKey)
	var expected []byte
	switch txscript.GetScriptClass(script) {
	case txscript.PubKeyHashTy:
		expected = p2pkhScript(pubHash)
	case txscript.WitnessV0PubKeyHashTy:
		expected = p2wpkhScript(pubHash)
	default:
		return chainerr.New(chainerr.KindUnsupportedAddressType, chain, "input %d: unsupported script", i)
	}
	if !bytes.Equal(expected, script) {
		return chainerr.New(chainerr.KindSignatureVerificationFailed, chain, "public key does not own input %d", i)
	}
	return nil
}

func parseECDSASig(chain string, sig []byte) (*big.Int, *big.Int, error) {
	// DER with the sighash byte appended. A compact signature can carry the
	// same header, so the stripped bytes must really be DER.
	var sighashErr error
	if len(sig) > 2 && sig[0] == 0x30 && len(sig) == int(sig[1])+3 {
		if r, s, err := signature.FromDER(sig[:len(sig)-1]); err == nil {
			if sig[len(sig)-1] == byte(txscript.SigHashAll) {
				return r, s, nil
			}
			sighashErr = chainerr.New(chainerr.KindMalformedSignature, chain, "unexpected sighash type %#x", sig[len(sig)-1])
		}
	}
	r, s, err := signature.Parse(sig)
	if err != nil {
		if sighashErr != nil {
			return nil, nil, sighashErr
		}
		return nil, nil, chainerr.Wrap(chainerr.KindMalformedSignature, chain, err, "failed to parse signature")
	}
	return r, s, nil
}

func parseSchnorrSig(chain string, sig []byte) ([]byte, error) {
	switch len(sig) {
	case 64:
		return append([]byte{}, sig...), nil
	case 65:
		// explicit SIGHASH_DEFAULT byte some signers append
		if sig[64] == byte(txscript.SigHashDefault) {
			return append([]byte{}, sig[:64]...), nil
		}
		return nil, chainerr.New(chainerr.KindMalformedSignature, chain, "unexpected taproot sighash type %#x", sig[64])
	default:
		return nil, chainerr.New(chainerr.KindMalformedSignature, chain, "taproot signature must be 64 bytes, got %d", len(sig))
	}
}
