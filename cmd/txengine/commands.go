package main

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/vultisig/txengine/internal/auth"
	"github.com/vultisig/txengine/internal/chainerr"
	"github.com/vultisig/txengine/internal/chains"
	"github.com/vultisig/txengine/internal/engine"
	"github.com/vultisig/txengine/internal/metrics"
	"github.com/vultisig/txengine/internal/providers"
	"github.com/vultisig/txengine/internal/token"
	"github.com/vultisig/txengine/internal/utxo"
)

type app struct {
	cfg    config
	logger *logrus.Logger
	chains *chains.Registry
	opts   providers.Options
}

func newApp(cfg config, logger *logrus.Logger) (*app, error) {
	reg, err := chains.NewRegistry(chains.Overrides{
		RPCURLs:  cfg.Chains.RPCURLs,
		DustSats: cfg.Chains.DustSats,
		FeeRates: cfg.Chains.FeeRates,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build chain registry: %w", err)
	}
	return &app{
		cfg:    cfg,
		logger: logger,
		chains: reg,
		opts: providers.Options{
			HTTPClient:    auth.NewHTTPClient(),
			Logger:        logger,
			Metrics:       metrics.NewEngineMetrics(),
			BlockchairURL: cfg.BlockchairURL,
		},
	}, nil
}

// requestContext bounds one invocation and attaches the caller's credentials.
func (a *app) requestContext(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	ctx := parent
	if a.cfg.Credentials.APIKey != "" {
		ctx = auth.WithCredentials(ctx, auth.Credentials{
			APIKey:       a.cfg.Credentials.APIKey,
			APIKeyHeader: a.cfg.Credentials.APIKeyHeader,
		})
	}
	return context.WithTimeout(ctx, a.cfg.RPCTimeout)
}

func (a *app) withProvider(cmd *cobra.Command, alias string, fn func(context.Context, engine.Provider) error) error {
	cfg, err := a.chains.Get(alias)
	if err != nil {
		return err
	}
	ctx, cancel := a.requestContext(cmd.Context())
	defer cancel()

	p, err := providers.New(ctx, cfg, a.opts)
	if err != nil {
		return err
	}
	if c, ok := p.(interface{ Close() }); ok {
		defer c.Close()
	}
	return fn(ctx, p)
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "txengine",
		Short:         "Build, inspect and broadcast transactions across chains",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	psbtCmd := &cobra.Command{
		Use:   "psbt",
		Short: "PSBT utilities",
	}
	psbtCmd.AddCommand(a.psbtInspectCmd())

	root.AddCommand(
		a.chainsCmd(),
		a.balanceCmd(),
		a.fetchCmd(),
		a.broadcastCmd(),
		a.safeBlockCmd(),
		psbtCmd,
	)
	return root
}

type chainRow struct {
	Alias     string           `json:"alias"`
	Ecosystem chains.Ecosystem `json:"ecosystem"`
	Symbol    string           `json:"symbol"`
	Decimals  int32            `json:"decimals"`
	ChainID   int64            `json:"chain_id,omitempty"`
	Supported bool             `json:"supported"`
}

func (a *app) chainsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "chains",
		Short: "List configured chains",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var rows []chainRow
			for _, c := range a.chains.All() {
				row := chainRow{
					Alias:     c.Alias,
					Ecosystem: c.Ecosystem,
					Symbol:    c.Native.Symbol,
					Decimals:  c.Native.Decimals,
					ChainID:   c.ChainID,
					Supported: providers.Supported(c.Ecosystem),
				}
				rows = append(rows, row)
			}
			return printJSON(cmd, rows)
		},
	}
}

func (a *app) balanceCmd() *cobra.Command {
	var tok string
	cmd := &cobra.Command{
		Use:   "balance <chain> <address>",
		Short: "Show the native or token balance of an address",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withProvider(cmd, args[0], func(ctx context.Context, p engine.Provider) error {
				b, err := p.Balance(ctx, args[1], token.Create(tok))
				if err != nil {
					return err
				}
				return printJSON(cmd, map[string]any{
					"address":   b.Address,
					"token":     b.Token,
					"amount":    b.Amount.String(),
					"decimals":  b.Decimals,
					"formatted": b.Formatted,
				})
			})
		},
	}
	cmd.Flags().StringVar(&tok, "token", "", "token contract or mint, native when empty")
	return cmd
}

func (a *app) fetchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "fetch <chain> <hash>",
		Short: "Fetch a transaction and print its normalized view",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withProvider(cmd, args[0], func(ctx context.Context, p engine.Provider) error {
				tx, err := p.FetchTransaction(ctx, args[1])
				if err != nil {
					return err
				}
				return printJSON(cmd, tx)
			})
		},
	}
}

type broadcastOutput struct {
	Chain    string        `json:"chain"`
	Hash     string        `json:"hash"`
	Success  bool          `json:"success"`
	Definite bool          `json:"definite"`
	Kind     chainerr.Kind `json:"kind,omitempty"`
	Reason   string        `json:"reason,omitempty"`
}

func (a *app) broadcastCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "broadcast <chain> <signed-hex>",
		Short: "Decode a signed transaction and submit it",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := hex.DecodeString(strings.TrimPrefix(strings.TrimSpace(args[1]), "0x"))
			if err != nil {
				return chainerr.Wrap(chainerr.KindInvalidInput, args[0], err, "signed transaction is not hex")
			}
			return a.withProvider(cmd, args[0], func(ctx context.Context, p engine.Provider) error {
				tx, err := p.DecodeSigned(raw)
				if err != nil {
					return err
				}
				res := p.Broadcast(ctx, tx)
				out := broadcastOutput{
					Chain:    p.Config().Alias,
					Hash:     res.Hash,
					Success:  res.Success,
					Definite: res.Definite(),
				}
				if res.Err != nil {
					out.Kind = res.Err.Kind
					out.Reason = res.Err.Reason
				}
				err = printJSON(cmd, out)
				if err != nil {
					return err
				}
				if !res.Success {
					return fmt.Errorf("broadcast of %s failed", res.Hash)
				}
				return nil
			})
		},
	}
}

func (a *app) safeBlockCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "safe-block <chain> <checkpoint>",
		Short: "Block a re-scan should start from to survive a reorg",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.chains.Get(args[0])
			if err != nil {
				return err
			}
			checkpoint, err := strconv.ParseUint(args[1], 10, 64)
			if err != nil {
				return chainerr.Wrap(chainerr.KindInvalidInput, cfg.Alias, err, "invalid checkpoint %q", args[1])
			}
			return printJSON(cmd, map[string]any{
				"chain":           cfg.Alias,
				"checkpoint":      checkpoint,
				"reorg_threshold": cfg.ReorgThreshold,
				"safe_from_block": cfg.SafeFromBlock(checkpoint),
			})
		},
	}
}

func (a *app) psbtInspectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect <chain> <psbt>",
		Short: "Summarize a hex or base64 PSBT",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.chains.Get(args[0])
			if err != nil {
				return err
			}
			if cfg.Ecosystem != chains.UTXO {
				return chainerr.New(chainerr.KindUnsupportedChain, cfg.Alias, "psbt requires a utxo chain, got %s", cfg.Ecosystem)
			}
			sum, err := utxo.InspectPSBT(cfg.Alias, args[1])
			if err != nil {
				return err
			}
			return printJSON(cmd, sum)
		},
	}
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
