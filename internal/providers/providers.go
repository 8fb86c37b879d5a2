// Package providers maps a chain's ecosystem tag to its concrete provider.
package providers

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/vultisig/txengine/internal/auth"
	"github.com/vultisig/txengine/internal/blockchair"
	"github.com/vultisig/txengine/internal/chainerr"
	"github.com/vultisig/txengine/internal/chains"
	"github.com/vultisig/txengine/internal/engine"
	"github.com/vultisig/txengine/internal/evm"
	"github.com/vultisig/txengine/internal/metrics"
	"github.com/vultisig/txengine/internal/solana"
	"github.com/vultisig/txengine/internal/tron"
	"github.com/vultisig/txengine/internal/utxo"
	"github.com/vultisig/txengine/internal/xrp"
)

const DefaultBlockchairURL = "https://api.blockchair.com"

// Options are shared by every provider of a process. A nil HTTPClient gets
// one carrying auth.Transport so credentials travel on the request context.
type Options struct {
	HTTPClient    *http.Client
	Logger        logrus.FieldLogger
	Metrics       *metrics.EngineMetrics
	BlockchairURL string
	UTXOPolicy    utxo.SelectionPolicy
}

func (o Options) withDefaults() Options {
	if o.HTTPClient == nil {
		o.HTTPClient = auth.NewHTTPClient()
	}
	if o.Logger == nil {
		o.Logger = logrus.New()
	}
	if o.BlockchairURL == "" {
		o.BlockchairURL = DefaultBlockchairURL
	}
	return o
}

// New builds the provider for one chain.
func New(ctx context.Context, cfg chains.Config, opts Options) (engine.Provider, error) {
	opts = opts.withDefaults()

	switch cfg.Ecosystem {
	case chains.EVM:
		n, err := evm.NewNetwork(ctx, cfg, opts.HTTPClient, opts.Logger, opts.Metrics)
		if err != nil {
			return nil, err
		}
		return n, nil
	case chains.SVM:
		n, err := solana.NewNetwork(cfg, opts.HTTPClient, opts.Logger, opts.Metrics)
		if err != nil {
			return nil, err
		}
		return n, nil
	case chains.UTXO:
		if cfg.UTXO == nil {
			return nil, fmt.Errorf("%s: missing utxo parameters", cfg.Alias)
		}
		explorer := blockchair.NewClient(opts.BlockchairURL, cfg.UTXO.ExplorerSlug, opts.HTTPClient)
		return utxo.NewNetwork(cfg, explorer, opts.UTXOPolicy, opts.Logger, opts.Metrics), nil
	case chains.TVM:
		n, err := tron.NewNetwork(cfg, opts.HTTPClient, opts.Logger, opts.Metrics)
		if err != nil {
			return nil, err
		}
		return n, nil
	case chains.XRP:
		n, err := xrp.NewNetwork(cfg, opts.HTTPClient, opts.Logger, opts.Metrics)
		if err != nil {
			return nil, err
		}
		return n, nil
	default:
		return nil, chainerr.New(chainerr.KindUnsupportedChain, cfg.Alias, "no provider for ecosystem %q", cfg.Ecosystem)
	}
}

// Registry is the engine registry plus the providers holding connections.
// Supported reports whether New can build a provider for e.
func Supported(e chains.Ecosystem) bool {
	switch e {
	case chains.EVM, chains.SVM, chains.UTXO, chains.TVM, chains.XRP:
		return true
	}
	return false
}

type Registry struct {
	*engine.Registry
	closers []func()
}

// NewRegistry builds one provider per configured chain. Chains whose
// ecosystem has no provider are skipped.
func NewRegistry(ctx context.Context, configs *chains.Registry, opts Options) (*Registry, error) {
	opts = opts.withDefaults()
	r := &Registry{Registry: engine.NewRegistry()}

	for _, cfg := range configs.All() {
		p, err := New(ctx, cfg, opts)
		if chainerr.Is(err, chainerr.KindUnsupportedChain) {
			opts.Logger.WithField("chain", cfg.Alias).Debug("no provider for ecosystem, skipping")
			continue
		}
		if err != nil {
			r.Close()
			return nil, fmt.Errorf("failed to initialize %s provider: %w", cfg.Alias, err)
		}
		err = r.Register(p)
		if err != nil {
			r.Close()
			return nil, err
		}
		switch c := p.(type) {
		case interface{ Close() }:
			r.closers = append(r.closers, c.Close)
		case io.Closer:
			r.closers = append(r.closers, func() { _ = c.Close() })
		}
	}
	return r, nil
}

func (r *Registry) Close() {
	for _, c := range r.closers {
		c()
	}
	r.closers = nil
}
