package evm

import (
	"context"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	ecommon "github.com/ethereum/go-ethereum/common"
	etypes "github.com/ethereum/go-ethereum/core/types"
	"golang.org/x/sync/errgroup"

	"github.com/vultisig/txengine/internal/chainerr"
	"github.com/vultisig/txengine/internal/engine"
)

type sendService struct {
	node    *node
	balance *balanceService
}

func newSendService(n *node, balance *balanceService) *sendService {
	return &sendService{
		node:    n,
		balance: balance,
	}
}

type transferCall struct {
	from  ecommon.Address
	to    ecommon.Address
	value *big.Int
	data  []byte
	token *ecommon.Address
}

func (s *sendService) transferCall(intent engine.TransferIntent) (*transferCall, error) {
	chain := s.node.chain
	from, err := parseAddress(chain, intent.From)
	if err != nil {
		return nil, err
	}
	recipient, err := parseAddress(chain, intent.To)
	if err != nil {
		return nil, err
	}

	if intent.Token.IsNative() {
		return &transferCall{from: from, to: recipient, value: intent.Amount}, nil
	}

	tokenAddr, err := parseAddress(chain, intent.Token.Value())
	if err != nil {
		return nil, err
	}
	data, err := packTransfer(recipient, intent.Amount)
	if err != nil {
		return nil, chainerr.Wrap(chainerr.KindInvalidInput, chain, err, "failed to pack transfer")
	}
	return &transferCall{
		from:  from,
		to:    tokenAddr,
		value: big.NewInt(0),
		data:  data,
		token: &tokenAddr,
	}, nil
}

// BuildTransfer assembles a native or ERC-20 transfer. Nonce, gas, head and
// balances are looked up concurrently; the fee model follows the head: a
// base fee means EIP-1559, none means legacy gas price.
func (s *sendService) BuildTransfer(ctx context.Context, intent engine.TransferIntent) (*UnsignedTx, error) {
	chain := s.node.chain
	call, err := s.transferCall(intent)
	if err != nil {
		return nil, err
	}
	fee := intent.Fee
	if fee == nil {
		fee = &engine.FeeOverride{}
	}

	var (
		nonce        uint64
		gas          = fee.GasLimit
		head         *etypes.Header
		nativeBal    *big.Int
		tokenBalance *big.Int
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		start := time.Now()
		var er error
		nonce, er = s.node.client.PendingNonceAt(gctx, call.from)
		s.node.observe("eth_getTransactionCount", start, er)
		if er != nil {
			return nodeError(chain, er, "failed to get nonce")
		}
		return nil
	})
	g.Go(func() error {
		start := time.Now()
		var er error
		head, er = s.node.client.HeaderByNumber(gctx, nil)
		s.node.observe("eth_getBlockByNumber", start, er)
		if er != nil {
			return nodeError(chain, er, "failed to get latest header")
		}
		return nil
	})
	g.Go(func() error {
		var er error
		nativeBal, er = s.balance.GetNativeBalance(gctx, call.from)
		return er
	})
	if call.token != nil {
		g.Go(func() error {
			var er error
			tokenBalance, er = s.balance.GetERC20Balance(gctx, *call.token, call.from)
			return er
		})
	}
	if gas == 0 {
		g.Go(func() error {
			start := time.Now()
			var er error
			gas, er = s.node.client.EstimateGas(gctx, ethereum.CallMsg{
				From:  call.from,
				To:    &call.to,
				Value: call.value,
				Data:  call.data,
			})
			s.node.observe("eth_estimateGas", start, er)
			if er != nil {
				return estimateError(chain, er)
			}
			return nil
		})
	}
	err = g.Wait()
	if err != nil {
		return nil, err
	}

	if tokenBalance != nil && tokenBalance.Cmp(intent.Amount) < 0 {
		return nil, chainerr.New(chainerr.KindInsufficientFunds, chain,
			"token balance %s is below amount %s", tokenBalance, intent.Amount)
	}

	var (
		tx       *etypes.Transaction
		maxPrice *big.Int
	)
	if head.BaseFee != nil {
		tip, er := s.tipCap(ctx, fee)
		if er != nil {
			return nil, er
		}
		maxFee := fee.MaxFeePerGas
		if maxFee == nil {
			maxFee = new(big.Int).Add(new(big.Int).Mul(head.BaseFee, big.NewInt(2)), tip)
		}
		if maxFee.Cmp(tip) < 0 {
			return nil, chainerr.New(chainerr.KindInvalidInput, chain, "max fee %s is below priority fee %s", maxFee, tip)
		}
		maxPrice = maxFee
		tx = etypes.NewTx(&etypes.DynamicFeeTx{
			ChainID:   s.node.chainID,
			Nonce:     nonce,
			GasTipCap: tip,
			GasFeeCap: maxFee,
			Gas:       gas,
			To:        &call.to,
			Value:     call.value,
			Data:      call.data,
		})
	} else {
		price, er := s.gasPrice(ctx, fee)
		if er != nil {
			return nil, er
		}
		maxPrice = price
		tx = etypes.NewTx(&etypes.LegacyTx{
			Nonce:    nonce,
			GasPrice: price,
			Gas:      gas,
			To:       &call.to,
			Value:    call.value,
			Data:     call.data,
		})
	}

	cost := new(big.Int).Mul(maxPrice, new(big.Int).SetUint64(gas))
	cost.Add(cost, call.value)
	if nativeBal.Cmp(cost) < 0 {
		return nil, chainerr.New(chainerr.KindInsufficientFunds, chain,
			"balance %s is below value plus max fee %s", nativeBal, cost)
	}

	return &UnsignedTx{
		chain:   chain,
		chainID: s.node.chainID,
		from:    call.from,
		tx:      tx,
	}, nil
}

func (s *sendService) tipCap(ctx context.Context, fee *engine.FeeOverride) (*big.Int, error) {
	if fee.MaxPriorityFeePerGas != nil {
		return fee.MaxPriorityFeePerGas, nil
	}
	start := time.Now()
	tip, err := s.node.client.SuggestGasTipCap(ctx)
	s.node.observe("eth_maxPriorityFeePerGas", start, err)
	if err != nil {
		return nil, nodeError(s.node.chain, err, "failed to suggest tip cap")
	}
	return tip, nil
}

func (s *sendService) gasPrice(ctx context.Context, fee *engine.FeeOverride) (*big.Int, error) {
	if fee.GasPrice != nil {
		return fee.GasPrice, nil
	}
	start := time.Now()
	price, err := s.node.client.SuggestGasPrice(ctx)
	s.node.observe("eth_gasPrice", start, err)
	if err != nil {
		return nil, nodeError(s.node.chain, err, "failed to suggest gas price")
	}
	return price, nil
}
