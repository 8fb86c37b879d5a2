package evm

import (
	"errors"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/rpc"

	"github.com/vultisig/txengine/internal/chainerr"
)

// nodeError classifies a failed node call. JSON-RPC error objects are the
// node speaking about the request, everything else is transport.
func nodeError(chain string, err error, format string, args ...any) *chainerr.Error {
	if errors.Is(err, ethereum.NotFound) {
		return chainerr.Wrap(chainerr.KindNotFound, chain, err, format, args...)
	}
	var rpcErr rpc.Error
	if errors.As(err, &rpcErr) {
		return &chainerr.Error{Kind: chainerr.KindOnChainRejection, Chain: chain, Reason: rpcErr.Error()}
	}
	return chainerr.Classify(chain, err, format, args...)
}

// estimateError maps gas estimation failures. A node refusing to estimate
// because the sender is short is reported as insufficient funds.
func estimateError(chain string, err error) *chainerr.Error {
	var rpcErr rpc.Error
	if errors.As(err, &rpcErr) && strings.Contains(strings.ToLower(rpcErr.Error()), "insufficient funds") {
		return chainerr.Wrap(chainerr.KindInsufficientFunds, chain, err, "gas estimation failed")
	}
	return nodeError(chain, err, "failed to estimate gas")
}
