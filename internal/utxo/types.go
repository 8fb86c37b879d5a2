package utxo

import (
	"context"

	"github.com/vultisig/txengine/internal/blockchair"
	"github.com/vultisig/txengine/internal/utxo/address"
)

// UTXO is one spendable output owned by the sender.
type UTXO struct {
	TxID          string
	Vout          uint32
	Value         uint64
	ScriptType    address.ScriptType
	PkScript      []byte
	Confirmations uint64
}

// Explorer is the slice of the block explorer the provider talks to.
type Explorer interface {
	GetAllUnspent(ctx context.Context, address string) ([]blockchair.Utxo, uint64, error)
	GetAddressInfo(ctx context.Context, address string) (*blockchair.AddressInfo, error)
	GetRawTransaction(ctx context.Context, txHash string) ([]byte, error)
	SuggestedFeeRate(ctx context.Context) (uint64, error)
	PushTransaction(ctx context.Context, rawHex string) (string, error)
	GetTransaction(ctx context.Context, txHash string) (*blockchair.Transaction, error)
	GetBlockHash(ctx context.Context, height int64) (string, error)
}

// PrevTxFetcher returns the raw bytes of a previous transaction. Legacy
// inputs need the full transaction in the PSBT.
type PrevTxFetcher interface {
	GetRawTransaction(ctx context.Context, txHash string) ([]byte, error)
}
