package address

import (
	"github.com/btcsuite/btcd/txscript"

	"github.com/vultisig/txengine/internal/chainerr"
)

// UTXOAddress is a chain-agnostic address interface for UTXO chains.
// Each chain implements this using its native library (btcutil, ltcutil).
type UTXOAddress interface {
	// String returns the human-readable address (chain-specific encoding)
	// e.g., "bc1q...", "ltc1q...", "D...", "X..."
	String() string

	// ScriptAddress returns the raw bytes (20-byte pubkey hash, script hash
	// or 32-byte witness program)
	ScriptAddress() []byte

	// PayToAddrScript generates the scriptPubKey for paying to this address
	// Uses the chain's native txscript library internally
	PayToAddrScript() ([]byte, error)
}

// ScriptType is the locking script family of an address or output.
type ScriptType string

const (
	P2PKH      ScriptType = "p2pkh"
	P2SH       ScriptType = "p2sh"
	P2SHP2WPKH ScriptType = "p2sh-p2wpkh"
	P2WPKH     ScriptType = "p2wpkh"
	P2WSH      ScriptType = "p2wsh"
	P2TR       ScriptType = "p2tr"
)

// ClassifyScript maps a scriptPubKey onto a supported ScriptType. The script
// format is shared by every chain this package supports, so btcd's
// classifier is used for all of them.
func ClassifyScript(pkScript []byte) (ScriptType, error) {
	switch txscript.GetScriptClass(pkScript) {
	case txscript.PubKeyHashTy:
		return P2PKH, nil
	case txscript.ScriptHashTy:
		return P2SH, nil
	case txscript.WitnessV0PubKeyHashTy:
		return P2WPKH, nil
	case txscript.WitnessV0ScriptHashTy:
		return P2WSH, nil
	case txscript.WitnessV1TaprootTy:
		return P2TR, nil
	default:
		return "", chainerr.New(chainerr.KindUnsupportedAddressType, "", "unsupported script class %s", txscript.GetScriptClass(pkScript))
	}
}
