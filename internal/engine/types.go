package engine

import (
	"context"
	"math/big"
	"time"

	"github.com/vultisig/txengine/internal/chainerr"
	"github.com/vultisig/txengine/internal/chains"
	"github.com/vultisig/txengine/internal/token"
)

// FeeOverride replaces the node's fee estimate. Only the fields relevant to
// the target ecosystem are read.
type FeeOverride struct {
	GasLimit             uint64
	GasPrice             *big.Int
	MaxFeePerGas         *big.Int
	MaxPriorityFeePerGas *big.Int
	SatsPerVByte         uint64
	ComputeUnitPrice     uint64
	FeeLimit             int64
	Drops                uint64
}

// TransferIntent is a request to move Amount base units of Token from From
// to To. PublicKey is the sender's public key where the chain needs it in
// the unsigned payload (UTXO, XRP).
type TransferIntent struct {
	From      string
	To        string
	Amount    *big.Int
	Token     token.Address
	PublicKey []byte
	Memo      string
	Fee       *FeeOverride
}

type Algorithm string

const (
	AlgorithmECDSA   Algorithm = "ecdsa_secp256k1"
	AlgorithmSchnorr Algorithm = "schnorr_secp256k1"
	AlgorithmEd25519 Algorithm = "ed25519"
)

// SigningPayload is what an external signer signs for one signature slot.
// For ed25519 Digest is the full message, otherwise a 32 byte hash.
// OutputKey is set for taproot key-path spends: PubKey is the internal key
// and the signature must verify under OutputKey, so a signer holding the
// internal key has to apply the BIP86 tweak.
type SigningPayload struct {
	Index       int
	Digest      []byte
	PubKey      []byte
	OutputKey   []byte
	Algorithm   Algorithm
	SigHashType uint32
}

// Signature is an externally produced signature for the payload at Index.
type Signature struct {
	Index  int
	Bytes  []byte
	PubKey []byte
}

type UnsignedTx interface {
	Chain() string
	Ecosystem() chains.Ecosystem
	SigningPayloads() []SigningPayload
}

// SignedTx exposes the wire bytes and the canonical transaction id. Both are
// fixed when the value is constructed.
type SignedTx interface {
	Chain() string
	Serialized() []byte
	Hash() string
}

// BroadcastResult is the terminal outcome of one broadcast attempt.
type BroadcastResult struct {
	Hash    string
	Success bool
	Err     *chainerr.Error
}

// Definite is false when the node may have accepted the transaction even
// though the call failed (timeouts, transport errors).
func (r BroadcastResult) Definite() bool {
	if r.Success {
		return true
	}
	if r.Err == nil {
		return false
	}
	return chainerr.Definite(r.Err)
}

func Failed(hash string, err *chainerr.Error) BroadcastResult {
	return BroadcastResult{Hash: hash, Err: err}
}

type Balance struct {
	Address   string
	Token     token.Address
	Amount    *big.Int
	Decimals  int32
	Formatted string
}

type TxStatus string

const (
	StatusSuccess TxStatus = "success"
	StatusFailed  TxStatus = "failed"
	// StatusPending is reported for transactions seen but not yet in a block.
	StatusPending TxStatus = "pending"
)

type Log struct {
	Index   uint
	Address string
	Topics  []string
	Data    string
}

type Instruction struct {
	ProgramID string
	Accounts  []string
	Data      string
}

// BalanceChange is one account's pre/post balance. Values are decimal strings
// derived from integer base units without floating point.
type BalanceChange struct {
	Account string
	Owner   string
	Token   token.Address
	Pre     string
	Post    string
}

type TxInput struct {
	TxID    string
	Vout    uint32
	Address string
	Value   uint64
}

type TxOutput struct {
	Index   uint32
	Address string
	Value   uint64
}

// Transaction is the normalized, ecosystem-tagged view of a confirmed
// transaction.
type Transaction struct {
	Chain          string
	Ecosystem      chains.Ecosystem
	Hash           string
	Status         TxStatus
	FailureReason  string
	BlockNumber    uint64
	BlockHash      string
	BlockTime      time.Time
	From           string
	To             string
	Value          string
	Fee            string
	Logs           []Log
	Instructions   []Instruction
	BalanceChanges []BalanceChange
	Inputs         []TxInput
	Outputs        []TxOutput
}

// Provider is the capability set every ecosystem implements.
type Provider interface {
	Config() chains.Config
	ValidateAddress(address string) error
	Balance(ctx context.Context, address string, tok token.Address) (*Balance, error)
	BuildUnsigned(ctx context.Context, intent TransferIntent) (UnsignedTx, error)
	Sign(tx UnsignedTx, sigs []Signature) (SignedTx, error)
	DecodeSigned(raw []byte) (SignedTx, error)
	Broadcast(ctx context.Context, tx SignedTx) BroadcastResult
	FetchTransaction(ctx context.Context, id string) (*Transaction, error)
}
