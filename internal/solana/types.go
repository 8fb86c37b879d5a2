package solana

import (
	"fmt"

	"github.com/gagliardetto/solana-go"

	"github.com/vultisig/txengine/internal/chains"
	"github.com/vultisig/txengine/internal/engine"
)

// UnsignedTx is a transaction whose signature slots are still empty. Every
// required signer signs the same serialized message.
type UnsignedTx struct {
	chain                string
	tx                   *solana.Transaction
	message              []byte
	signers              []solana.PublicKey
	lastValidBlockHeight uint64
}

func newUnsignedTx(chain string, tx *solana.Transaction, lastValid uint64) (*UnsignedTx, error) {
	msg, err := tx.Message.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("%s: failed to serialize message: %w", chain, err)
	}
	required := int(tx.Message.Header.NumRequiredSignatures)
	if required == 0 || required > len(tx.Message.AccountKeys) {
		return nil, fmt.Errorf("%s: message requires %d signatures", chain, required)
	}
	return &UnsignedTx{
		chain:                chain,
		tx:                   tx,
		message:              msg,
		signers:              append([]solana.PublicKey{}, tx.Message.AccountKeys[:required]...),
		lastValidBlockHeight: lastValid,
	}, nil
}

func (u *UnsignedTx) Chain() string {
	return u.chain
}

func (u *UnsignedTx) Ecosystem() chains.Ecosystem {
	return chains.SVM
}

func (u *UnsignedTx) SigningPayloads() []engine.SigningPayload {
	res := make([]engine.SigningPayload, 0, len(u.signers))
	for i, signer := range u.signers {
		res = append(res, engine.SigningPayload{
			Index:     i,
			Digest:    u.Message(),
			PubKey:    append([]byte{}, signer[:]...),
			Algorithm: engine.AlgorithmEd25519,
		})
	}
	return res
}

// Message returns a copy of the serialized message.
func (u *UnsignedTx) Message() []byte {
	return append([]byte{}, u.message...)
}

// Tx returns the transaction; callers must not modify it.
func (u *UnsignedTx) Tx() *solana.Transaction {
	return u.tx
}

func (u *UnsignedTx) Signers() []solana.PublicKey {
	return append([]solana.PublicKey{}, u.signers...)
}

// LastValidBlockHeight is the height after which the blockhash expires.
func (u *UnsignedTx) LastValidBlockHeight() uint64 {
	return u.lastValidBlockHeight
}

// SignedTx is a fully signed transaction. Its id is the first signature.
type SignedTx struct {
	chain string
	raw   []byte
	hash  string
	tx    *solana.Transaction
}

func newSignedTx(chain string, tx *solana.Transaction) (*SignedTx, error) {
	if len(tx.Signatures) == 0 {
		return nil, fmt.Errorf("%s: transaction has no signatures", chain)
	}
	raw, err := tx.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("%s: failed to serialize transaction: %w", chain, err)
	}
	return &SignedTx{
		chain: chain,
		raw:   raw,
		hash:  tx.Signatures[0].String(),
		tx:    tx,
	}, nil
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

func (s *SignedTx) Tx() *solana.Transaction {
	return s.tx
}
