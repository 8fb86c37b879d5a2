package xrp

import (
	"context"
	"fmt"
	"math/big"
	"net/http"
	"time"

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
	client   *Client
	metrics  *metrics.EngineMetrics
}

func (n *node) observe(method string, start time.Time, err error) {
	n.metrics.RecordRPC(n.chain, method, start, err)
}

type Network struct {
	cfg    chains.Config
	node   *node
	logger logrus.FieldLogger

	Send   *sendService
	Signer *signerService
	Fetch  *fetchService
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
	n := &node{
		chain:    cfg.Alias,
		decimals: cfg.Native.Decimals,
		client:   NewClient(cfg.RPCURL, httpClient),
		metrics:  m,
	}
	log := logger.WithField("chain", cfg.Alias)

	return &Network{
		cfg:    cfg,
		node:   n,
		logger: log,
		Send:   newSendService(n),
		Signer: newSignerService(n, log),
		Fetch:  newFetchService(n),
	}, nil
}

func (n *Network) Config() chains.Config {
	return n.cfg
}

func (n *Network) ValidateAddress(addr string) error {
	_, err := ParseAddress(n.cfg.Alias, addr)
	return err
}

// Balance reports the validated XRP balance. Unfunded accounts hold zero.
func (n *Network) Balance(ctx context.Context, addr string, tok token.Address) (*engine.Balance, error) {
	chain := n.cfg.Alias
	_, err := ParseAddress(chain, addr)
	if err != nil {
		return nil, err
	}
	if !tok.IsNative() {
		return nil, chainerr.New(chainerr.KindInvalidInput, chain, "issued currencies are not supported")
	}

	drops, err := n.Send.GetBalance(ctx, addr)
	if err != nil {
		return nil, err
	}
	amount := new(big.Int).SetUint64(drops)
	return &engine.Balance{
		Address:   addr,
		Token:     tok,
		Amount:    amount,
		Decimals:  n.cfg.Native.Decimals,
		Formatted: util.FromBaseUnits(amount, n.cfg.Native.Decimals),
	}, nil
}

func (n *Network) BuildUnsigned(ctx context.Context, intent engine.TransferIntent) (engine.UnsignedTx, error) {
	err := engine.ValidateIntent(n, intent)
	if err != nil {
		return nil, err
	}
	tx, err := n.Send.BuildPayment(ctx, intent)
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
