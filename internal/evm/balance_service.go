package evm

import (
	"context"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	ecommon "github.com/ethereum/go-ethereum/common"
	"golang.org/x/sync/errgroup"

	"github.com/vultisig/txengine/internal/chainerr"
)

type balanceService struct {
	node     *node
	decimals *decimalsService
}

func newBalanceService(n *node, decimals *decimalsService) *balanceService {
	return &balanceService{node: n, decimals: decimals}
}

func (s *balanceService) GetNativeBalance(ctx context.Context, address ecommon.Address) (*big.Int, error) {
	start := time.Now()
	balance, err := s.node.client.BalanceAt(ctx, address, nil)
	s.node.observe("eth_getBalance", start, err)
	if err != nil {
		return nil, nodeError(s.node.chain, err, "failed to get native balance")
	}
	return balance, nil
}

func (s *balanceService) GetERC20Balance(ctx context.Context, tokenAddress, ownerAddress ecommon.Address) (*big.Int, error) {
	data, err := packBalanceOf(ownerAddress)
	if err != nil {
		return nil, chainerr.Wrap(chainerr.KindInvalidInput, s.node.chain, err, "failed to pack balanceOf")
	}

	out, err := callReadonly(ctx, s.node, "balanceOf", tokenAddress, data)
	if err != nil {
		return nil, err
	}
	balance, err := unpackBalanceOf(out)
	if err != nil {
		return nil, chainerr.Wrap(chainerr.KindInvalidInput, s.node.chain, err, "token %s is not an erc20 contract", tokenAddress.Hex())
	}
	return balance, nil
}

// GetERC20BalanceWithDecimals reads balanceOf and decimals concurrently.
func (s *balanceService) GetERC20BalanceWithDecimals(
	ctx context.Context,
	tokenAddress, ownerAddress ecommon.Address,
) (*big.Int, int32, error) {
	var (
		balance  *big.Int
		decimals uint8
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		balance, err = s.GetERC20Balance(gctx, tokenAddress, ownerAddress)
		return err
	})
	g.Go(func() error {
		var err error
		decimals, err = s.decimals.GetDecimals(gctx, tokenAddress)
		return err
	})
	err := g.Wait()
	if err != nil {
		return nil, 0, err
	}
	return balance, int32(decimals), nil
}

func callReadonly(ctx context.Context, n *node, method string, to ecommon.Address, data []byte) ([]byte, error) {
	start := time.Now()
	out, err := n.client.CallContract(ctx, ethereum.CallMsg{To: &to, Data: data}, nil)
	n.observe("eth_call", start, err)
	if err != nil {
		return nil, nodeError(n.chain, err, "failed to call %s on %s", method, to.Hex())
	}
	return out, nil
}
