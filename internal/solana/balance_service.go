package solana

import (
	"context"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
)

type balanceService struct {
	node     *node
	accounts *tokenAccountService
}

func newBalanceService(n *node, accounts *tokenAccountService) *balanceService {
	return &balanceService{
		node:     n,
		accounts: accounts,
	}
}

func (s *balanceService) GetNativeBalance(ctx context.Context, owner solana.PublicKey) (uint64, error) {
	start := time.Now()
	res, err := s.node.client.GetBalance(ctx, owner, rpc.CommitmentConfirmed)
	s.node.observe("getBalance", start, err)
	if err != nil {
		return 0, nodeError(s.node.chain, err, "balance of %s", owner)
	}
	return res.Value, nil
}

// GetTokenBalance reads the owner's ATA for mint along with the mint decimals.
func (s *balanceService) GetTokenBalance(ctx context.Context, owner, mint solana.PublicKey) (uint64, uint8, error) {
	program, decimals, err := s.accounts.GetTokenProgram(ctx, mint)
	if err != nil {
		return 0, 0, err
	}
	ata, err := s.accounts.GetAssociatedTokenAddress(owner, mint, program)
	if err != nil {
		return 0, 0, err
	}
	amount, err := s.accounts.GetTokenBalance(ctx, ata)
	if err != nil {
		return 0, 0, err
	}
	return amount, decimals, nil
}
