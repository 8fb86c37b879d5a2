package solana

import (
	"context"

	"github.com/gagliardetto/solana-go"
	computebudget "github.com/gagliardetto/solana-go/programs/compute-budget"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/gagliardetto/solana-go/rpc"
	"golang.org/x/sync/errgroup"

	"github.com/vultisig/txengine/internal/chainerr"
	"github.com/vultisig/txengine/internal/engine"
)

// lamportsPerSignature is the base fee charged per required signature.
const lamportsPerSignature = 5000

type sendService struct {
	node     *node
	accounts *tokenAccountService
	balances *balanceService
}

func newSendService(n *node, accounts *tokenAccountService, balances *balanceService) *sendService {
	return &sendService{
		node:     n,
		accounts: accounts,
		balances: balances,
	}
}

// BuildTransfer assembles a native SOL or SPL token transfer paid by the
// sender. An optional compute unit price and memo are prepended/appended.
func (s *sendService) BuildTransfer(ctx context.Context, intent engine.TransferIntent) (*UnsignedTx, error) {
	chain := s.node.chain
	from, err := parseKey(chain, intent.From)
	if err != nil {
		return nil, err
	}
	to, err := parseKey(chain, intent.To)
	if err != nil {
		return nil, err
	}
	if !intent.Amount.IsUint64() {
		return nil, chainerr.New(chainerr.KindInvalidInput, chain, "amount %s out of range", intent.Amount)
	}
	amount := intent.Amount.Uint64()

	var instructions []solana.Instruction
	if intent.Fee != nil && intent.Fee.ComputeUnitPrice > 0 {
		instructions = append(instructions, computebudget.NewSetComputeUnitPriceInstruction(intent.Fee.ComputeUnitPrice).Build())
	}

	var (
		transfer []solana.Instruction
		block    *rpc.GetLatestBlockhashResult
	)
	if intent.Token.IsNative() {
		transfer, block, err = s.nativeTransfer(ctx, from, to, amount)
	} else {
		mint, er := parseKey(chain, intent.Token.Value())
		if er != nil {
			return nil, er
		}
		transfer, block, err = s.tokenTransfer(ctx, from, to, mint, amount)
	}
	if err != nil {
		return nil, err
	}
	instructions = append(instructions, transfer...)

	if intent.Memo != "" {
		instructions = append(instructions, solana.NewInstruction(
			solana.MemoProgramID,
			[]*solana.AccountMeta{{PublicKey: from, IsSigner: true, IsWritable: false}},
			[]byte(intent.Memo),
		))
	}

	tx, err := solana.NewTransaction(
		instructions,
		block.Value.Blockhash,
		solana.TransactionPayer(from),
	)
	if err != nil {
		return nil, chainerr.Wrap(chainerr.KindInvalidInput, chain, err, "failed to create transaction")
	}
	unsigned, err := newUnsignedTx(chain, tx, block.Value.LastValidBlockHeight)
	if err != nil {
		return nil, chainerr.Wrap(chainerr.KindInvalidInput, chain, err, "failed to build transaction")
	}
	return unsigned, nil
}

// nativeTransfer checks the sender covers amount plus fee and that a new
// recipient account would be rent exempt.
func (s *sendService) nativeTransfer(
	ctx context.Context,
	from, to solana.PublicKey,
	amount uint64,
) ([]solana.Instruction, *rpc.GetLatestBlockhashResult, error) {
	chain := s.node.chain
	var (
		exists  bool
		rent    uint64
		balance uint64
		block   *rpc.GetLatestBlockhashResult
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var er error
		exists, er = s.accounts.CheckAccountExists(gctx, to)
		return er
	})
	g.Go(func() error {
		var er error
		rent, er = s.accounts.RentExemptMinimum(gctx, 0)
		return er
	})
	g.Go(func() error {
		var er error
		balance, er = s.balances.GetNativeBalance(gctx, from)
		return er
	})
	g.Go(func() error {
		var er error
		block, er = s.node.latestBlockhash(gctx)
		return er
	})
	err := g.Wait()
	if err != nil {
		return nil, nil, err
	}

	if !exists && amount < rent {
		return nil, nil, chainerr.New(chainerr.KindInvalidInput, chain,
			"transfer amount %d lamports is below rent-exempt minimum %d lamports for new account", amount, rent)
	}
	if balance < lamportsPerSignature || balance-lamportsPerSignature < amount {
		return nil, nil, chainerr.New(chainerr.KindInsufficientFunds, chain,
			"balance %d lamports does not cover %d plus fee %d", balance, amount, lamportsPerSignature)
	}

	return []solana.Instruction{system.NewTransferInstruction(amount, from, to).Build()}, block, nil
}

// tokenTransfer moves amount of mint between the owners' associated token
// accounts, creating the recipient's idempotently.
func (s *sendService) tokenTransfer(
	ctx context.Context,
	from, to, mint solana.PublicKey,
	amount uint64,
) ([]solana.Instruction, *rpc.GetLatestBlockhashResult, error) {
	chain := s.node.chain
	var (
		program  solana.PublicKey
		decimals uint8
		native   uint64
		rent     uint64
		block    *rpc.GetLatestBlockhashResult
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var er error
		program, decimals, er = s.accounts.GetTokenProgram(gctx, mint)
		return er
	})
	g.Go(func() error {
		var er error
		native, er = s.balances.GetNativeBalance(gctx, from)
		return er
	})
	g.Go(func() error {
		var er error
		rent, er = s.accounts.RentExemptMinimum(gctx, tokenAccountSize)
		return er
	})
	g.Go(func() error {
		var er error
		block, er = s.node.latestBlockhash(gctx)
		return er
	})
	err := g.Wait()
	if err != nil {
		return nil, nil, err
	}

	source, err := s.accounts.GetAssociatedTokenAddress(from, mint, program)
	if err != nil {
		return nil, nil, err
	}
	destination, err := s.accounts.GetAssociatedTokenAddress(to, mint, program)
	if err != nil {
		return nil, nil, err
	}

	var (
		tokenBalance uint64
		destExists   bool
	)
	g, gctx = errgroup.WithContext(ctx)
	g.Go(func() error {
		var er error
		tokenBalance, er = s.accounts.GetTokenBalance(gctx, source)
		return er
	})
	g.Go(func() error {
		var er error
		destExists, er = s.accounts.CheckAccountExists(gctx, destination)
		return er
	})
	err = g.Wait()
	if err != nil {
		return nil, nil, err
	}

	if tokenBalance < amount {
		return nil, nil, chainerr.New(chainerr.KindInsufficientFunds, chain,
			"token balance %d is below amount %d", tokenBalance, amount)
	}
	fee := uint64(lamportsPerSignature)
	if !destExists {
		fee += rent
	}
	if native < fee {
		return nil, nil, chainerr.New(chainerr.KindInsufficientFunds, chain,
			"balance %d lamports does not cover fees %d", native, fee)
	}

	createATA, err := s.accounts.BuildCreateATAInstruction(from, to, mint, program)
	if err != nil {
		return nil, nil, err
	}
	return []solana.Instruction{
		createATA,
		BuildTransferCheckedInstruction(program, source, mint, destination, from, amount, decimals),
	}, block, nil
}
