package solana

import (
	"context"
	"encoding/binary"
	"strconv"
	"time"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/token"
	"github.com/gagliardetto/solana-go/rpc"

	"github.com/vultisig/txengine/internal/chainerr"
)

const (
	ataCreateIdempotent  = 1
	tokenTransferChecked = 12
	tokenAccountSize     = 165
)

type tokenAccountService struct {
	node *node
}

func newTokenAccountService(n *node) *tokenAccountService {
	return &tokenAccountService{
		node: n,
	}
}

// GetTokenProgram queries the mint account to determine which token program owns it and the token decimals.
// Returns TokenProgramID for legacy SPL tokens or Token2022ProgramID for Token-2022 tokens, plus decimals.
// Token-2022 may have additional extension data, but the base Mint layout is identical to SPL Token.
func (s *tokenAccountService) GetTokenProgram(ctx context.Context, mint solana.PublicKey) (solana.PublicKey, uint8, error) {
	chain := s.node.chain
	start := time.Now()
	accountInfo, err := s.node.client.GetAccountInfo(ctx, mint)
	s.node.observe("getAccountInfo", start, err)
	if err != nil {
		return solana.PublicKey{}, 0, nodeError(chain, err, "mint %s", mint)
	}
	if accountInfo == nil || accountInfo.Value == nil {
		return solana.PublicKey{}, 0, chainerr.New(chainerr.KindNotFound, chain, "mint account not found: %s", mint)
	}

	owner := accountInfo.Value.Owner
	if owner != solana.TokenProgramID && owner != solana.Token2022ProgramID {
		return solana.PublicKey{}, 0, chainerr.New(chainerr.KindInvalidInput, chain, "%s is not owned by a token program: %s", mint, owner)
	}

	var mintData token.Mint
	err = mintData.UnmarshalWithDecoder(bin.NewBinDecoder(accountInfo.Value.Data.GetBinary()))
	if err != nil {
		return solana.PublicKey{}, 0, chainerr.Wrap(chainerr.KindInvalidInput, chain, err, "failed to deserialize mint %s", mint)
	}

	return owner, mintData.Decimals, nil
}

// FindAssociatedTokenAddress derives the ATA address for any token program (SPL or Token-2022).
func FindAssociatedTokenAddress(wallet, mint, tokenProgram solana.PublicKey) (solana.PublicKey, uint8, error) {
	return solana.FindProgramAddress(
		[][]byte{
			wallet[:],
			tokenProgram[:],
			mint[:],
		},
		solana.SPLAssociatedTokenAccountProgramID,
	)
}

func (s *tokenAccountService) GetAssociatedTokenAddress(owner, mint, tokenProgram solana.PublicKey) (solana.PublicKey, error) {
	a, _, err := FindAssociatedTokenAddress(owner, mint, tokenProgram)
	if err != nil {
		return solana.PublicKey{}, chainerr.Wrap(chainerr.KindInvalidInput, s.node.chain, err, "failed to derive associated token address")
	}
	return a, nil
}

func (s *tokenAccountService) CheckAccountExists(ctx context.Context, account solana.PublicKey) (bool, error) {
	start := time.Now()
	accountInfo, err := s.node.client.GetAccountInfoWithOpts(ctx, account, &rpc.GetAccountInfoOpts{
		Commitment: rpc.CommitmentConfirmed,
	})
	s.node.observe("getAccountInfo", start, err)
	if err != nil {
		if isMissingAccount(err) {
			return false, nil
		}
		return false, nodeError(s.node.chain, err, "account %s", account)
	}
	return accountInfo != nil && accountInfo.Value != nil, nil
}

// BuildCreateATAInstruction creates the destination ATA if it is missing and
// is a no-op otherwise.
func (s *tokenAccountService) BuildCreateATAInstruction(
	payer, owner, mint, tokenProgram solana.PublicKey,
) (solana.Instruction, error) {
	ataAddress, err := s.GetAssociatedTokenAddress(owner, mint, tokenProgram)
	if err != nil {
		return nil, err
	}

	return solana.NewInstruction(
		solana.SPLAssociatedTokenAccountProgramID,
		[]*solana.AccountMeta{
			{PublicKey: payer, IsSigner: true, IsWritable: true},
			{PublicKey: ataAddress, IsSigner: false, IsWritable: true},
			{PublicKey: owner, IsSigner: false, IsWritable: false},
			{PublicKey: mint, IsSigner: false, IsWritable: false},
			{PublicKey: solana.SystemProgramID, IsSigner: false, IsWritable: false},
			{PublicKey: tokenProgram, IsSigner: false, IsWritable: false},
		},
		[]byte{ataCreateIdempotent},
	), nil
}

// BuildTransferCheckedInstruction moves amount between two token accounts of
// mint. Data is the discriminator, the u64 amount and the mint decimals.
func BuildTransferCheckedInstruction(
	tokenProgram, source, mint, destination, owner solana.PublicKey,
	amount uint64,
	decimals uint8,
) solana.Instruction {
	data := make([]byte, 10)
	data[0] = tokenTransferChecked
	binary.LittleEndian.PutUint64(data[1:9], amount)
	data[9] = decimals

	return solana.NewInstruction(
		tokenProgram,
		[]*solana.AccountMeta{
			{PublicKey: source, IsSigner: false, IsWritable: true},
			{PublicKey: mint, IsSigner: false, IsWritable: false},
			{PublicKey: destination, IsSigner: false, IsWritable: true},
			{PublicKey: owner, IsSigner: true, IsWritable: false},
		},
		data,
	)
}

// GetTokenBalance returns the raw balance of a token account. A missing
// account holds nothing.
func (s *tokenAccountService) GetTokenBalance(ctx context.Context, tokenAccount solana.PublicKey) (uint64, error) {
	chain := s.node.chain
	start := time.Now()
	balance, err := s.node.client.GetTokenAccountBalance(ctx, tokenAccount, rpc.CommitmentConfirmed)
	s.node.observe("getTokenAccountBalance", start, err)
	if err != nil {
		if isMissingAccount(err) {
			return 0, nil
		}
		return 0, nodeError(chain, err, "token account %s", tokenAccount)
	}

	if balance == nil || balance.Value == nil || balance.Value.Amount == "" {
		return 0, nil
	}

	amount, err := strconv.ParseUint(balance.Value.Amount, 10, 64)
	if err != nil {
		return 0, chainerr.Wrap(chainerr.KindRPCTransport, chain, err, "invalid token amount %q", balance.Value.Amount)
	}
	return amount, nil
}

// RentExemptMinimum is the lamport balance an account of size bytes needs to
// be created.
func (s *tokenAccountService) RentExemptMinimum(ctx context.Context, size uint64) (uint64, error) {
	start := time.Now()
	rent, err := s.node.client.GetMinimumBalanceForRentExemption(ctx, size, rpc.CommitmentConfirmed)
	s.node.observe("getMinimumBalanceForRentExemption", start, err)
	if err != nil {
		return 0, nodeError(s.node.chain, err, "failed to get rent exemption")
	}
	return rent, nil
}
