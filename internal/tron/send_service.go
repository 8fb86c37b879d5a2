package tron

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"golang.org/x/sync/errgroup"

	"github.com/vultisig/txengine/internal/chainerr"
	"github.com/vultisig/txengine/internal/engine"
)

var (
	addressType = mustType("address")
	uint256Type = mustType("uint256")
	uint8Type   = mustType("uint8")

	transferArgs  = abi.Arguments{{Type: addressType}, {Type: uint256Type}}
	balanceOfArgs = abi.Arguments{{Type: addressType}}
	uint256Result = abi.Arguments{{Type: uint256Type}}
	uint8Result   = abi.Arguments{{Type: uint8Type}}
)

func mustType(t string) abi.Type {
	typ, err := abi.NewType(t, "", nil)
	if err != nil {
		panic(err)
	}
	return typ
}

// sendService builds TRX and TRC-20 transfers through the node and reads
// balances.
type sendService struct {
	node *node
}

func newSendService(n *node) *sendService {
	return &sendService{
		node: n,
	}
}

// BuildTransfer asks the node for raw_data and checks it before handing it
// out for signing: the id must be sha256(raw_data) and the single contract
// must be of the expected type and owned by the sender.
func (s *sendService) BuildTransfer(ctx context.Context, intent engine.TransferIntent) (*UnsignedTx, error) {
	chain := s.node.chain
	owner, err := ParseAddress(chain, intent.From)
	if err != nil {
		return nil, err
	}
	to, err := ParseAddress(chain, intent.To)
	if err != nil {
		return nil, err
	}
	if !intent.Amount.IsInt64() {
		return nil, chainerr.New(chainerr.KindInvalidInput, chain, "amount %s out of range", intent.Amount)
	}

	if intent.Token.IsNative() {
		start := time.Now()
		tx, er := s.node.client.CreateTransaction(ctx, &TransferRequest{
			OwnerAddress: owner.String(),
			ToAddress:    to.String(),
			Amount:       intent.Amount.Int64(),
			Visible:      true,
		})
		s.node.observe("createtransaction", start, er)
		if er != nil {
			return nil, chainerr.Classify(chain, er, "failed to create transaction")
		}
		if tx.Error != "" {
			return nil, refusal(chain, tx.Error)
		}
		return s.verified(tx, owner, TransferContract)
	}

	contract, err := ParseAddress(chain, intent.Token.Value())
	if err != nil {
		return nil, err
	}
	param, err := transferArgs.Pack(to.EVM(), intent.Amount)
	if err != nil {
		return nil, chainerr.Wrap(chainerr.KindInvalidInput, chain, err, "failed to encode transfer")
	}
	feeLimit := int64(DefaultTRC20FeeLimit)
	if intent.Fee != nil && intent.Fee.FeeLimit > 0 {
		feeLimit = intent.Fee.FeeLimit
	}

	start := time.Now()
	res, err := s.node.client.TriggerSmartContract(ctx, &TriggerRequest{
		OwnerAddress:     owner.String(),
		ContractAddress:  contract.String(),
		FunctionSelector: "transfer(address,uint256)",
		Parameter:        hex.EncodeToString(param),
		FeeLimit:         feeLimit,
		Visible:          true,
	})
	s.node.observe("triggersmartcontract", start, err)
	if err != nil {
		return nil, chainerr.Classify(chain, err, "failed to create TRC20 transfer")
	}
	if !res.Result.Result {
		return nil, refusal(chain, nodeText(res.Result.Message))
	}
	if res.Transaction == nil {
		return nil, chainerr.New(chainerr.KindRPCTransport, chain, "no transaction in TRC20 response")
	}
	return s.verified(res.Transaction, owner, TriggerSmartContract)
}

func (s *sendService) verified(tx *Transaction, owner Address, contractType uint64) (*UnsignedTx, error) {
	chain := s.node.chain
	if tx.RawDataHex == "" {
		return nil, chainerr.New(chainerr.KindRPCTransport, chain, "no raw_data_hex in transaction response")
	}
	rawData, err := hex.DecodeString(tx.RawDataHex)
	if err != nil {
		return nil, chainerr.Wrap(chainerr.KindRPCTransport, chain, err, "failed to decode raw_data_hex")
	}

	txID := sha256.Sum256(rawData)
	nodeID, err := hex.DecodeString(tx.TxID)
	if err != nil || !bytes.Equal(nodeID, txID[:]) {
		return nil, chainerr.New(chainerr.KindRPCTransport, chain, "txID %s is not sha256 of raw_data", tx.TxID)
	}

	info, err := parseRawData(rawData)
	if err != nil {
		return nil, chainerr.Wrap(chainerr.KindRPCTransport, chain, err, "failed to parse raw_data")
	}
	if info.contractType != contractType {
		return nil, chainerr.New(chainerr.KindPrecondition, chain, "node built contract type %d, expected %d", info.contractType, contractType)
	}
	if info.owner != owner {
		return nil, chainerr.New(chainerr.KindPrecondition, chain, "raw_data owner %s does not match sender %s", info.owner, owner)
	}

	return &UnsignedTx{
		chain:   chain,
		rawData: rawData,
		txID:    txID,
		owner:   owner,
		info:    info,
	}, nil
}

// GetBalance fetches the TRX balance in sun.
func (s *sendService) GetBalance(ctx context.Context, owner Address) (*big.Int, error) {
	start := time.Now()
	account, err := s.node.client.GetAccount(ctx, owner.String())
	s.node.observe("getaccount", start, err)
	if err != nil {
		return nil, chainerr.Classify(s.node.chain, err, "failed to get account")
	}
	if account.Balance < 0 {
		return big.NewInt(0), nil
	}
	return big.NewInt(account.Balance), nil
}

// GetTRC20Balance reads balanceOf and decimals of a token contract
// concurrently.
func (s *sendService) GetTRC20Balance(ctx context.Context, contract, owner Address) (*big.Int, int32, error) {
	param, err := balanceOfArgs.Pack(owner.EVM())
	if err != nil {
		return nil, 0, chainerr.Wrap(chainerr.KindInvalidInput, s.node.chain, err, "failed to encode balanceOf")
	}

	var (
		balance  *big.Int
		decimals uint8
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		out, er := s.constantCall(gctx, contract, owner, "balanceOf(address)", param, uint256Result)
		if er != nil {
			return er
		}
		balance = out.(*big.Int)
		return nil
	})
	g.Go(func() error {
		out, er := s.constantCall(gctx, contract, owner, "decimals()", nil, uint8Result)
		if er != nil {
			return er
		}
		decimals = out.(uint8)
		return nil
	})
	err = g.Wait()
	if err != nil {
		return nil, 0, err
	}
	return balance, int32(decimals), nil
}

func (s *sendService) constantCall(
	ctx context.Context,
	contract, owner Address,
	selector string,
	param []byte,
	result abi.Arguments,
) (any, error) {
	chain := s.node.chain
	start := time.Now()
	res, err := s.node.client.TriggerConstantContract(ctx, &TriggerRequest{
		OwnerAddress:     owner.String(),
		ContractAddress:  contract.String(),
		FunctionSelector: selector,
		Parameter:        hex.EncodeToString(param),
		Visible:          true,
	})
	s.node.observe("triggerconstantcontract", start, err)
	if err != nil {
		return nil, chainerr.Classify(chain, err, "failed to call %s", selector)
	}
	if !res.Result.Result || len(res.ConstantResult) == 0 {
		return nil, chainerr.New(chainerr.KindOnChainRejection, chain, "%s: %s", selector, nodeText(res.Result.Message))
	}

	data, err := hex.DecodeString(res.ConstantResult[0])
	if err != nil {
		return nil, chainerr.Wrap(chainerr.KindRPCTransport, chain, err, "invalid %s result", selector)
	}
	values, err := result.Unpack(data)
	if err != nil || len(values) != 1 {
		return nil, chainerr.Wrap(chainerr.KindRPCTransport, chain, err, "failed to decode %s result", selector)
	}
	return values[0], nil
}
