package xrp

import (
	"encoding/hex"
	"strings"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/btcutil/base58"

	"github.com/vultisig/txengine/internal/chainerr"
)

const (
	rippleAlphabet  = "rpshnaf39wBUDNEGHJKLM4PQRST7VWXYZ2bcdeCg65jkm8oFqi1tuvAxyz"
	bitcoinAlphabet = "123456789ABCDEFGHJKLMNPQRSTUVWXYZabcdefghijkmnopqrstuvwxyz"

	accountVersion  = 0x00
	accountIDLength = 20
)

// XRPL base58check is bitcoin's with a permuted alphabet, so addresses are
// translated symbol by symbol and handed to btcutil.
var (
	toBitcoin = strings.NewReplacer(pairs(rippleAlphabet, bitcoinAlphabet)...)
	toRipple  = strings.NewReplacer(pairs(bitcoinAlphabet, rippleAlphabet)...)
)

func pairs(from, to string) []string {
	res := make([]string, 0, 2*len(from))
	for i := 0; i < len(from); i++ {
		res = append(res, from[i:i+1], to[i:i+1])
	}
	return res
}

// AccountID is the 20 byte hash160 of the account's master public key.
type AccountID [accountIDLength]byte

// ParseAddress decodes a classic r... address. X-addresses are rejected.
func ParseAddress(chain, s string) (AccountID, error) {
	var id AccountID
	if !strings.HasPrefix(s, "r") {
		return id, chainerr.New(chainerr.KindInvalidInput, chain, "invalid address %q", s)
	}
	payload, version, err := base58.CheckDecode(toBitcoin.Replace(s))
	if err != nil {
		return id, chainerr.Wrap(chainerr.KindInvalidInput, chain, err, "invalid address %q", s)
	}
	if version != accountVersion || len(payload) != accountIDLength {
		return id, chainerr.New(chainerr.KindInvalidInput, chain, "invalid address %q", s)
	}
	copy(id[:], payload)
	return id, nil
}

// AccountFromPubKey derives the account of a compressed secp256k1 key.
func AccountFromPubKey(chain string, pubKey []byte) (AccountID, error) {
	var id AccountID
	if len(pubKey) != btcec.PubKeyBytesLenCompressed {
		return id, chainerr.New(chainerr.KindInvalidInput, chain, "public key must be %d bytes, got %d", btcec.PubKeyBytesLenCompressed, len(pubKey))
	}
	_, err := btcec.ParsePubKey(pubKey)
	if err != nil {
		return id, chainerr.Wrap(chainerr.KindInvalidInput, chain, err, "invalid public key")
	}
	copy(id[:], btcutil.Hash160(pubKey))
	return id, nil
}

func (a AccountID) String() string {
	return toRipple.Replace(base58.CheckEncode(a[:], accountVersion))
}

func (a AccountID) Hex() string {
	return strings.ToUpper(hex.EncodeToString(a[:]))
}
