package evm

import (
	"context"

	"github.com/ethereum/go-ethereum/common"

	"github.com/vultisig/txengine/internal/chainerr"
)

type decimalsService struct {
	node *node
}

func newDecimalsService(n *node) *decimalsService {
	return &decimalsService{
		node: n,
	}
}

// GetDecimals fetches the decimals for an ERC20 token
func (d *decimalsService) GetDecimals(ctx context.Context, tokenAddress common.Address) (uint8, error) {
	var zero common.Address
	if tokenAddress == zero {
		return 0, chainerr.New(chainerr.KindInvalidInput, d.node.chain, "token address cannot be zero")
	}

	data, err := packDecimals()
	if err != nil {
		return 0, chainerr.Wrap(chainerr.KindInvalidInput, d.node.chain, err, "failed to pack decimals")
	}
	out, err := callReadonly(ctx, d.node, "decimals", tokenAddress, data)
	if err != nil {
		return 0, err
	}
	decimals, err := unpackDecimals(out)
	if err != nil {
		return 0, chainerr.Wrap(chainerr.KindInvalidInput, d.node.chain, err, "failed to get decimals for token %s", tokenAddress.Hex())
	}
	return decimals, nil
}
