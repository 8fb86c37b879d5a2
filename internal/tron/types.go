package tron

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/vultisig/txengine/internal/chains"
	"github.com/vultisig/txengine/internal/engine"
)

// UnsignedTx holds node-built raw_data whose id has been checked to be
// sha256(raw_data).
type UnsignedTx struct {
	chain   string
	rawData []byte
	txID    [sha256.Size]byte
	owner   Address
	info    *rawInfo
}

func (u *UnsignedTx) Chain() string {
	return u.chain
}

func (u *UnsignedTx) Ecosystem() chains.Ecosystem {
	return chains.TVM
}

func (u *UnsignedTx) SigningPayloads() []engine.SigningPayload {
	return []engine.SigningPayload{{
		Index:     0,
		Digest:    append([]byte{}, u.txID[:]...),
		Algorithm: engine.AlgorithmECDSA,
	}}
}

func (u *UnsignedTx) RawData() []byte {
	return append([]byte{}, u.rawData...)
}

func (u *UnsignedTx) TxID() string {
	return hex.EncodeToString(u.txID[:])
}

func (u *UnsignedTx) Owner() Address {
	return u.owner
}

// FeeLimit is the energy fee cap in sun carried by contract calls.
func (u *UnsignedTx) FeeLimit() int64 {
	return u.info.feeLimit
}

// SignedTx is a serialized protocol.Transaction with its id.
type SignedTx struct {
	chain string
	raw   []byte
	hash  string
}

func (s *SignedTx) Chain() string {
	return s.chain
}

func (s *SignedTx) Serialized() []byte {
	return append([]byte{}, s.raw...)
}

func (s *SignedTx) Hash() string {
	return s.hash
}
