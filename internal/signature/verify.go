package signature

import (
	"math/big"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
)

// ValidateSignature performs ECDSA verification of (r, s) over hash with the
// given SEC encoded public key.
func ValidateSignature(hash []byte, r, s *big.Int, pubKey []byte) bool {
	if len(hash) != 32 || r == nil || s == nil {
		return false
	}
	pk, err := btcec.ParsePubKey(pubKey)
	if err != nil {
		return false
	}

	rs, ok := scalar(r)
	if !ok {
		return false
	}
	ss, ok := scalar(s)
	if !ok {
		return false
	}
	return ecdsa.NewSignature(rs, ss).Verify(hash, pk)
}

func scalar(v *big.Int) (*btcec.ModNScalar, bool) {
	b := v.Bytes()
	if v.Sign() <= 0 || len(b) > 32 {
		return nil, false
	}
	var sc btcec.ModNScalar
	if sc.SetByteSlice(b) || sc.IsZero() {
		return nil, false
	}
	return &sc, true
}

// ValidateSchnorr verifies a BIP340 signature. pubKey may be x-only (32
// bytes) or SEC encoded.
func ValidateSchnorr(hash []byte, sig []byte, pubKey []byte) bool {
	if len(hash) != 32 || len(sig) != schnorr.SignatureSize {
		return false
	}
	parsed, err := schnorr.ParseSignature(sig)
	if err != nil {
		return false
	}

	var pk *btcec.PublicKey
	if len(pubKey) == schnorr.PubKeyBytesLen {
		pk, err = schnorr.ParsePubKey(pubKey)
	} else {
		pk, err = btcec.ParsePubKey(pubKey)
	}
	if err != nil {
		return false
	}
	return parsed.Verify(hash, pk)
}
