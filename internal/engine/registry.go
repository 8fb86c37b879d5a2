package engine

import (
	"fmt"
	"sort"
	"strings"

	"github.com/vultisig/txengine/internal/chainerr"
)

// Registry holds exactly one provider per chain alias.
type Registry struct {
	providers map[string]Provider
}

func NewRegistry() *Registry {
	return &Registry{providers: make(map[string]Provider)}
}

func (r *Registry) Register(p Provider) error {
	alias := p.Config().Alias
	if _, ok := r.providers[alias]; ok {
		return fmt.Errorf("provider already registered for chain: %s", alias)
	}
	r.providers[alias] = p
	return nil
}

func (r *Registry) Get(alias string) (Provider, error) {
	p, ok := r.providers[strings.ToLower(strings.TrimSpace(alias))]
	if !ok {
		return nil, chainerr.New(chainerr.KindUnsupportedChain, alias, "no provider for chain")
	}
	return p, nil
}

func (r *Registry) Chains() []string {
	res := make([]string, 0, len(r.providers))
	for alias := range r.providers {
		res = append(res, alias)
	}
	sort.Strings(res)
	return res
}
