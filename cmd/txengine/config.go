package main

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"

	"github.com/vultisig/txengine/internal/metrics"
	"github.com/vultisig/txengine/internal/providers"
)

type config struct {
	LogLevel      string        `envconfig:"LOG_LEVEL" default:"info"`
	RPCTimeout    time.Duration `envconfig:"RPC_TIMEOUT" default:"30s"`
	BlockchairURL string        `envconfig:"BLOCKCHAIR_URL"`
	Metrics       metrics.Config
	Chains        chainsConfig
	Credentials   credentials
}

// chainsConfig overrides the static chain table. Maps are "alias:value"
// pairs separated by commas.
type chainsConfig struct {
	RPCURLs  map[string]string `envconfig:"CHAINS_RPC_URLS"`
	DustSats map[string]uint64 `envconfig:"CHAINS_DUST_SATS"`
	FeeRates map[string]uint64 `envconfig:"CHAINS_FEE_RATE"`
}

type credentials struct {
	APIKey       string `envconfig:"TXENGINE_API_KEY"`
	APIKeyHeader string `envconfig:"TXENGINE_API_KEY_HEADER"`
}

func newConfig() (config, error) {
	var cfg config
	err := envconfig.Process("", &cfg)
	if err != nil {
		return config{}, fmt.Errorf("failed to process env var: %w", err)
	}
	if cfg.BlockchairURL == "" {
		cfg.BlockchairURL = providers.DefaultBlockchairURL
	}
	if cfg.RPCTimeout <= 0 {
		return config{}, fmt.Errorf("RPC_TIMEOUT must be positive, got %s", cfg.RPCTimeout)
	}
	return cfg, nil
}
