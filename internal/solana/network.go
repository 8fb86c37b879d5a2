package solana

import (
	"context"
	"fmt"
	"math/big"
	"net/http"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/gagliardetto/solana-go/rpc/jsonrpc"
	"github.com/sirupsen/logrus"

	"github.com/vultisig/txengine/internal/chainerr"
	"github.com/vultisig/txengine/internal/chains"
	"github.com/vultisig/txengine/internal/engine"
	"github.com/vultisig/txengine/internal/metrics"
	"github.com/vultisig/txengine/internal/token"
	"github.com/vultisig/txengine/internal/util"
)

type node struct {
	chain    string
	decimals int32
	client   *rpc.Client
	metrics  *metrics.EngineMetrics
}

func (n *node) observe(method string, start time.Time, err error) {
	n.metrics.RecordRPC(n.chain, method, start, err)
}

func (n *node) latestBlockhash(ctx context.Context) (*rpc.GetLatestBlockhashResult, error) {
	start := time.Now()
	block, err := n.client.GetLatestBlockhash(ctx, rpc.CommitmentFinalized)
	n.observe("getLatestBlockhash", start, err)
	if err != nil {
		return nil, nodeError(n.chain, err, "failed to get recent blockhash")
	}
	if block == nil || block.Value == nil {
		return nil, chainerr.New(chainerr.KindRPCTransport, n.chain, "empty blockhash response")
	}
	return block, nil
}

// Network is the provider for a Solana cluster.
type Network struct {
	cfg    chains.Config
	node   *node
	logger logrus.FieldLogger

	Send          *sendService
	Signer        *signerService
	Balances      *balanceService
	TokenAccounts *tokenAccountService
	Fetch         *fetchService
}

func NewNetwork(
	cfg chains.Config,
	httpClient *http.Client,
	logger logrus.FieldLogger,
	m *metrics.EngineMetrics,
) (*Network, error) {
	if cfg.RPCURL == "" {
		return nil, fmt.Errorf("%s: missing rpc url", cfg.Alias)
	}

	rpcClient := rpc.NewWithCustomRPCClient(jsonrpc.NewClientWithOpts(cfg.RPCURL, &jsonrpc.RPCClientOpts{
		HTTPClient: httpClient,
	}))
	n := &node{
		chain:    cfg.Alias,
		decimals: cfg.Native.Decimals,
		client:   rpcClient,
		metrics:  m,
	}
	log := logger.WithField("chain", cfg.Alias)
	accounts := newTokenAccountService(n)
	balances := newBalanceService(n, accounts)

	return &Network{
		cfg:           cfg,
		node:          n,
		logger:        log,
		Send:          newSendService(n, accounts, balances),
		Signer:        newSignerService(n, log),
		Balances:      balances,
		TokenAccounts: accounts,
		Fetch:         newFetchService(n),
	}, nil
}

func (n *Network) Config() chains.Config {
	return n.cfg
}

func (n *Network) ValidateAddress(addr string) error {
	_, err := parseKey(n.cfg.Alias, addr)
	return err
}

func parseKey(chain, addr string) (solana.PublicKey, error) {
	key, err := solana.PublicKeyFromBase58(addr)
	if err != nil {
		return solana.PublicKey{}, chainerr.Wrap(chainerr.KindInvalidInput, chain, err, "invalid address %q", addr)
	}
	return key, nil
}

func (n *Network) Balance(ctx context.Context, addr string, tok token.Address) (*engine.Balance, error) {
	owner, err := parseKey(n.cfg.Alias, addr)
	if err != nil {
		return nil, err
	}
	if tok.IsNative() {
		lamports, er := n.Balances.GetNativeBalance(ctx, owner)
		if er != nil {
			return nil, er
		}
		return newBalance(addr, tok, lamports, n.cfg.Native.Decimals), nil
	}

	mint, err := parseKey(n.cfg.Alias, tok.Value())
	if err != nil {
		return nil, err
	}
	amount, decimals, err := n.Balances.GetTokenBalance(ctx, owner, mint)
	if err != nil {
		return nil, err
	}
	return newBalance(addr, tok, amount, int32(decimals)), nil
}

func newBalance(addr string, tok token.Address, amount uint64, decimals int32) *engine.Balance {
	v := new(big.Int).SetUint64(amount)
	return &engine.Balance{
		Address:   addr,
		Token:     tok,
		Amount:    v,
		Decimals:  decimals,
		Formatted: util.FromBaseUnits(v, decimals),
	}
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
	signed, err := n.Signer.Sign(tx, sigs)
	if err != nil {
		return nil, err
	}
	return signed, nil
}

func (n *Network) DecodeSigned(raw []byte) (engine.SignedTx, error) {
	signed, err := n.Signer.Decode(raw)
	if err != nil {
		return nil, err
	}
	return signed, nil
}

func (n *Network) Broadcast(ctx context.Context, tx engine.SignedTx) engine.BroadcastResult {
	return n.Signer.Broadcast(ctx, tx)
}

func (n *Network) FetchTransaction(ctx context.Context, id string) (*engine.Transaction, error) {
	return n.Fetch.GetTransaction(ctx, id)
}
