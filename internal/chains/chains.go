package chains

import (
	"fmt"
	"sort"
	"strings"

	"github.com/vultisig/txengine/internal/chainerr"
)

// Ecosystem tags a family of chains sharing one transaction model.
type Ecosystem string

const (
	EVM       Ecosystem = "evm"
	SVM       Ecosystem = "svm"
	UTXO      Ecosystem = "utxo"
	TVM       Ecosystem = "tvm"
	XRP       Ecosystem = "xrp"
	Substrate Ecosystem = "substrate"
)

type NativeCurrency struct {
	Symbol   string
	Decimals int32
}

// UTXOParams holds the policy values of a UTXO chain. Fee rates are in
// sat/vB, the dust threshold in satoshis.
type UTXOParams struct {
	ExplorerSlug   string
	DustThreshold  uint64
	DefaultFeeRate uint64
	MinFeeRate     uint64
	SegWit         bool
}

// Config is the static description of one chain. It is handed out by value
// and never mutated after the registry is built.
type Config struct {
	Alias          string
	Ecosystem      Ecosystem
	RPCURL         string
	Native         NativeCurrency
	ChainID        int64
	Cluster        string
	ReorgThreshold uint64
	UTXO           *UTXOParams
}

func (c Config) utxoCopy() Config {
	if c.UTXO != nil {
		p := *c.UTXO
		c.UTXO = &p
	}
	return c
}

// Overrides are applied on top of the static table at process start.
type Overrides struct {
	RPCURLs  map[string]string
	DustSats map[string]uint64
	FeeRates map[string]uint64
}

type Registry struct {
	chains map[string]Config
}

func NewRegistry(overrides Overrides) (*Registry, error) {
	r := &Registry{chains: make(map[string]Config, len(defaults))}
	for _, c := range defaults {
		r.chains[c.Alias] = c.utxoCopy()
	}

	for alias, url := range overrides.RPCURLs {
		c, ok := r.chains[normalize(alias)]
		if !ok {
			return nil, fmt.Errorf("rpc url override for unknown chain: %s", alias)
		}
		c.RPCURL = url
		r.chains[c.Alias] = c
	}

	for alias, dust := range overrides.DustSats {
		c, ok := r.chains[normalize(alias)]
		if !ok || c.UTXO == nil {
			return nil, fmt.Errorf("dust override for non-utxo chain: %s", alias)
		}
		c.UTXO.DustThreshold = dust
	}

	for alias, rate := range overrides.FeeRates {
		c, ok := r.chains[normalize(alias)]
		if !ok || c.UTXO == nil {
			return nil, fmt.Errorf("fee rate override for non-utxo chain: %s", alias)
		}
		if rate < c.UTXO.MinFeeRate {
			return nil, fmt.Errorf("fee rate override for %s below minimum %d: %d", alias, c.UTXO.MinFeeRate, rate)
		}
		c.UTXO.DefaultFeeRate = rate
	}

	return r, nil
}

// Get returns a copy of the chain config for alias.
func (r *Registry) Get(alias string) (Config, error) {
	c, ok := r.chains[normalize(alias)]
	if !ok {
		return Config{}, unknownChain(alias)
	}
	return c.utxoCopy(), nil
}

// All returns every configured chain sorted by alias.
func (r *Registry) All() []Config {
	res := make([]Config, 0, len(r.chains))
	for _, c := range r.chains {
		res = append(res, c.utxoCopy())
	}
	sort.Slice(res, func(i, j int) bool {
		return res[i].Alias < res[j].Alias
	})
	return res
}

func (r *Registry) ByEcosystem(e Ecosystem) []Config {
	var res []Config
	for _, c := range r.All() {
		if c.Ecosystem == e {
			res = append(res, c)
		}
	}
	return res
}

func unknownChain(alias string) error {
	return chainerr.New(chainerr.KindUnsupportedChain, alias, "unknown chain")
}

func normalize(alias string) string {
	return strings.ToLower(strings.TrimSpace(alias))
}
