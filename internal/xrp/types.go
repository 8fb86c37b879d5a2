package xrp

import (
	"github.com/vultisig/txengine/internal/chains"
	"github.com/vultisig/txengine/internal/engine"
)

// UnsignedTx is a canonically encoded Payment carrying SigningPubKey.
type UnsignedTx struct {
	chain  string
	fields map[string]any
	blob   []byte
	pubKey []byte
}

func (u *UnsignedTx) Chain() string {
	return u.chain
}

func (u *UnsignedTx) Ecosystem() chains.Ecosystem {
	return chains.XRP
}

func (u *UnsignedTx) SigningPayloads() []engine.SigningPayload {
	return []engine.SigningPayload{{
		Index:     0,
		Digest:    signingDigest(u.blob),
		PubKey:    append([]byte{}, u.pubKey...),
		Algorithm: engine.AlgorithmECDSA,
	}}
}

// Blob is the unsigned binary encoding.
func (u *UnsignedTx) Blob() []byte {
	return append([]byte{}, u.blob...)
}

// Field returns a field of the transaction JSON.
func (u *UnsignedTx) Field(name string) any {
	return u.fields[name]
}

type SignedTx struct {
	chain string
	blob  []byte
	hash  string
}

func newSignedTx(chain string, blob []byte) *SignedTx {
	return &SignedTx{
		chain: chain,
		blob:  blob,
		hash:  transactionID(blob),
	}
}

func (s *SignedTx) Chain() string {
	return s.chain
}

func (s *SignedTx) Serialized() []byte {
	return append([]byte{}, s.blob...)
}

func (s *SignedTx) Hash() string {
	return s.hash
}
