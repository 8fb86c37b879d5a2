package xrp

import (
	"errors"

	"github.com/vultisig/txengine/internal/chainerr"
)

var notFoundCodes = map[string]bool{
	"actNotFound": true,
	"txnNotFound": true,
	"lgrNotFound": true,
}

// nodeError classifies a client error. Errors reported by rippled itself
// are rejections unless they name a missing object.
func nodeError(chain string, err error, format string, args ...any) *chainerr.Error {
	var rpcErr *RPCError
	if errors.As(err, &rpcErr) {
		if notFoundCodes[rpcErr.Code] {
			return chainerr.Wrap(chainerr.KindNotFound, chain, err, format, args...)
		}
		return chainerr.New(chainerr.KindOnChainRejection, chain, "%s", rpcErr.Error())
	}
	return chainerr.Classify(chain, err, format, args...)
}

func isNotFound(err error) bool {
	var rpcErr *RPCError
	return errors.As(err, &rpcErr) && notFoundCodes[rpcErr.Code]
}
