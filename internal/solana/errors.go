package solana

import (
	"errors"
	"strings"

	"github.com/gagliardetto/solana-go/rpc"
	"github.com/gagliardetto/solana-go/rpc/jsonrpc"

	"github.com/vultisig/txengine/internal/chainerr"
)

// nodeError classifies a failed node call. A JSON-RPC error object is the
// node rejecting the request; its message is kept verbatim.
func nodeError(chain string, err error, format string, args ...any) *chainerr.Error {
	if errors.Is(err, rpc.ErrNotFound) {
		return chainerr.Wrap(chainerr.KindNotFound, chain, err, format, args...)
	}
	var rpcErr *jsonrpc.RPCError
	if errors.As(err, &rpcErr) {
		return &chainerr.Error{Kind: chainerr.KindOnChainRejection, Chain: chain, Reason: rpcErr.Message}
	}
	return chainerr.Classify(chain, err, format, args...)
}

// isMissingAccount reports the ways a node says an account does not exist.
func isMissingAccount(err error) bool {
	if errors.Is(err, rpc.ErrNotFound) {
		return true
	}
	var rpcErr *jsonrpc.RPCError
	return errors.As(err, &rpcErr) && strings.Contains(rpcErr.Message, "could not find account")
}
