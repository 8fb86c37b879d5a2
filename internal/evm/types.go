package evm

import (
	"math/big"

	ecommon "github.com/ethereum/go-ethereum/common"
	etypes "github.com/ethereum/go-ethereum/core/types"

	"github.com/vultisig/txengine/internal/chains"
	"github.com/vultisig/txengine/internal/engine"
	"github.com/vultisig/txengine/internal/token"
	"github.com/vultisig/txengine/internal/util"
)

// UnsignedTx wraps a transaction without signature values. The signing
// digest is the chain-id bound hash of the latest signer.
type UnsignedTx struct {
	chain   string
	chainID *big.Int
	from    ecommon.Address
	tx      *etypes.Transaction
}

func (u *UnsignedTx) Chain() string {
	return u.chain
}

func (u *UnsignedTx) Ecosystem() chains.Ecosystem {
	return chains.EVM
}

func (u *UnsignedTx) SigningPayloads() []engine.SigningPayload {
	return []engine.SigningPayload{{
		Index:     0,
		Digest:    u.SigningHash().Bytes(),
		Algorithm: engine.AlgorithmECDSA,
	}}
}

func (u *UnsignedTx) SigningHash() ecommon.Hash {
	return etypes.LatestSignerForChainID(u.chainID).Hash(u.tx)
}

// Tx returns the transaction; callers must not modify it.
func (u *UnsignedTx) Tx() *etypes.Transaction {
	return u.tx
}

func (u *UnsignedTx) From() ecommon.Address {
	return u.from
}

// SignedTx is a signed transaction with its canonical encoding and hash.
type SignedTx struct {
	chain string
	raw   []byte
	hash  string
	tx    *etypes.Transaction
}

func newSignedTx(chain string, tx *etypes.Transaction) (*SignedTx, error) {
	raw, err := tx.MarshalBinary()
	if err != nil {
		return nil, err
	}
	return &SignedTx{
		chain: chain,
		raw:   raw,
		hash:  tx.Hash().Hex(),
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

func (s *SignedTx) Tx() *etypes.Transaction {
	return s.tx
}

func newBalance(addr string, tok token.Address, amount *big.Int, decimals int32) *engine.Balance {
	return &engine.Balance{
		Address:   addr,
		Token:     tok,
		Amount:    amount,
		Decimals:  decimals,
		Formatted: util.FromBaseUnits(amount, decimals),
	}
}
