package evm

import (
	"context"
	"fmt"
	"math/big"
	"net/http"
	"strings"
	"time"

	ecommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/sirupsen/logrus"

	"github.com/vultisig/txengine/internal/chainerr"
	"github.com/vultisig/txengine/internal/chains"
	"github.com/vultisig/txengine/internal/engine"
	"github.com/vultisig/txengine/internal/metrics"
	"github.com/vultisig/txengine/internal/token"
)

// node bundles the connection shared by the services of one chain.
type node struct {
	chain    string
	chainID  *big.Int
	decimals int32
	rpc      *rpc.Client
	client   *ethclient.Client
	metrics  *metrics.EngineMetrics
}

func (n *node) observe(method string, start time.Time, err error) {
	n.metrics.RecordRPC(n.chain, method, start, err)
}

// Network is the provider for one EVM chain.
type Network struct {
	cfg    chains.Config
	node   *node
	logger logrus.FieldLogger

	Send     *sendService
	Signer   *signerService
	Balances *balanceService
	Decimals *decimalsService
	Fetch    *fetchService
}

func NewNetwork(
	ctx context.Context,
	cfg chains.Config,
	httpClient *http.Client,
	logger logrus.FieldLogger,
	m *metrics.EngineMetrics,
) (*Network, error) {
	if cfg.ChainID <= 0 {
		return nil, fmt.Errorf("%s: missing chain id", cfg.Alias)
	}

	rpcClient, err := rpc.DialOptions(ctx, cfg.RPCURL, rpc.WithHTTPClient(httpClient))
	if err != nil {
		return nil, fmt.Errorf("%s: failed to connect to RPC: %w", cfg.Alias, err)
	}

	n := &node{
		chain:    cfg.Alias,
		chainID:  big.NewInt(cfg.ChainID),
		decimals: cfg.Native.Decimals,
		rpc:      rpcClient,
		client:   ethclient.NewClient(rpcClient),
		metrics:  m,
	}
	log := logger.WithField("chain", cfg.Alias)
	decimals := newDecimalsService(n)
	balance := newBalanceService(n, decimals)

	return &Network{
		cfg:      cfg,
		node:     n,
		logger:   log,
		Send:     newSendService(n, balance),
		Signer:   newSignerService(n, log),
		Balances: balance,
		Decimals: decimals,
		Fetch:    newFetchService(n),
	}, nil
}

func (n *Network) Config() chains.Config {
	return n.cfg
}

func (n *Network) ValidateAddress(addr string) error {
	_, err := parseAddress(n.cfg.Alias, addr)
	return err
}

// parseAddress accepts 0x-prefixed hex addresses. Mixed case input must
// carry a valid EIP-55 checksum.
func parseAddress(chain, addr string) (ecommon.Address, error) {
	if !strings.HasPrefix(addr, "0x") && !strings.HasPrefix(addr, "0X") {
		return ecommon.Address{}, chainerr.New(chainerr.KindInvalidInput, chain, "address %q must be 0x-prefixed", addr)
	}
	if !ecommon.IsHexAddress(addr) {
		return ecommon.Address{}, chainerr.New(chainerr.KindInvalidInput, chain, "invalid address %q", addr)
	}
	res := ecommon.HexToAddress(addr)
	body := addr[2:]
	if strings.ToLower(body) != body && strings.ToUpper(body) != body && res.Hex() != addr {
		return ecommon.Address{}, chainerr.New(chainerr.KindInvalidInput, chain, "bad checksum for address %q", addr)
	}
	return res, nil
}

func (n *Network) Balance(ctx context.Context, addr string, tok token.Address) (*engine.Balance, error) {
	owner, err := parseAddress(n.cfg.Alias, addr)
	if err != nil {
		return nil, err
	}
	if tok.IsNative() {
		amount, er := n.Balances.GetNativeBalance(ctx, owner)
		if er != nil {
			return nil, er
		}
		return newBalance(addr, tok, amount, n.cfg.Native.Decimals), nil
	}

	tokenAddr, err := parseAddress(n.cfg.Alias, tok.Value())
	if err != nil {
		return nil, err
	}
	amount, decimals, err := n.Balances.GetERC20BalanceWithDecimals(ctx, tokenAddr, owner)
	if err != nil {
		return nil, err
	}
	return newBalance(addr, tok, amount, decimals), nil
}

func (n *Network) BuildUnsigned(ctx context.Context, intent engine.TransferIntent) (engine.UnsignedTx, error) {
	err := engine.ValidateIntent(n, intent)
	if err != nil {
		return nil, err
	}
	tx, err := n.Send.BuildTransfer(ctx, intent)
	if err != nil {
		return nil, err
	}
	return tx, nil
}

func (n *Network) Sign(tx engine.UnsignedTx, sigs []engine.Signature) (engine.SignedTx, error) {
	return n.Signer.Sign(tx, sigs)
}

func (n *Network) DecodeSigned(raw []byte) (engine.SignedTx, error) {
	return n.Signer.Decode(raw)
}

func (n *Network) Broadcast(ctx context.Context, tx engine.SignedTx) engine.BroadcastResult {
	return n.Signer.Broadcast(ctx, tx)
}

func (n *Network) FetchTransaction(ctx context.Context, id string) (*engine.Transaction, error) {
	return n.Fetch.GetTransaction(ctx, id)
}

// Close releases the underlying RPC client.
func (n *Network) Close() {
	n.node.rpc.Close()
}
