package tron

import (
	"crypto/ecdsa"
	"encoding/hex"

	"github.com/btcsuite/btcd/btcutil/base58"
	ecommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/vultisig/txengine/internal/chainerr"
)

const (
	addressPrefix = 0x41
	addressLength = 21
)

// Address is a 21 byte TRON account id: 0x41 followed by the 20 byte
// keccak-derived account hash.
type Address [addressLength]byte

// ParseAddress decodes a base58check (T...) address.
func ParseAddress(chain, s string) (Address, error) {
	payload, version, err := base58.CheckDecode(s)
	if err != nil {
		return Address{}, chainerr.Wrap(chainerr.KindInvalidInput, chain, err, "invalid address %q", s)
	}
	if version != addressPrefix || len(payload) != addressLength-1 {
		return Address{}, chainerr.New(chainerr.KindInvalidInput, chain, "invalid address %q", s)
	}
	var a Address
	a[0] = addressPrefix
	copy(a[1:], payload)
	return a, nil
}

func addressFromBytes(b []byte) (Address, bool) {
	var a Address
	if len(b) != addressLength || b[0] != addressPrefix {
		return a, false
	}
	copy(a[:], b)
	return a, true
}

// AddressFromPubKey derives the account address of a secp256k1 key.
func AddressFromPubKey(pub *ecdsa.PublicKey) Address {
	var a Address
	a[0] = addressPrefix
	eth := crypto.PubkeyToAddress(*pub)
	copy(a[1:], eth[:])
	return a
}

func (a Address) String() string {
	return base58.CheckEncode(a[1:], addressPrefix)
}

func (a Address) Hex() string {
	return hex.EncodeToString(a[:])
}

// EVM is the 20 byte form used inside contract call arguments.
func (a Address) EVM() ecommon.Address {
	return ecommon.BytesToAddress(a[1:])
}
