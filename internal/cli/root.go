// Package cli wires configuration, the RPC transport, the ABI cache and the
// tally pipeline into the chieftally command.
package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/makerwatch/chieftally/abicache"
	"github.com/makerwatch/chieftally/chain/evm"
	"github.com/makerwatch/chieftally/chief"
	"github.com/makerwatch/chieftally/etherscan"
	"github.com/makerwatch/chieftally/pkg/logger"
)

var rootLong = `Reconstructs the current voting state of the DS-Chief governance contract
from its on-chain event history and prints a weighted ranking of proposals.

The tool is read-only: it fetches historical Etch and vote logs, expands
slates into proposal lists, keeps each voter's most recent choice, weighs
voters by their locked deposits and tallies the result. No transaction is
ever submitted.`

var rootExample = `  # Rank proposals using a local node
  chieftally --rpc http://localhost:8545

  # Machine-readable output with an explorer API key
  chieftally --rpc https://eth.example.com --etherscan-key $KEY --json`

type rootFlags struct {
	cfgFile      string
	jsonOut      bool
	rpcURLs      []string
	chiefAddr    string
	etherscanKey string
	cacheBackend string
}

func (f *rootFlags) register(fs *pflag.FlagSet) {
	fs.StringVarP(&f.cfgFile, "config", "c", "", "Path to config file")
	fs.BoolVar(&f.jsonOut, "json", false, "Emit machine-readable JSON instead of text")
	fs.StringSliceVar(&f.rpcURLs, "rpc", nil, "RPC endpoint URL (repeatable; extras become backups)")
	fs.StringVar(&f.chiefAddr, "chief", "", "Governance contract address override")
	fs.StringVar(&f.etherscanKey, "etherscan-key", "", "Block-explorer API key")
	fs.StringVar(&f.cacheBackend, "cache", "", "ABI cache backend: file, memory or redis")
	fs.SortFlags = false
}

// NewRootCmd builds the chieftally command.
func NewRootCmd() *cobra.Command {
	var flags rootFlags

	cmd := &cobra.Command{
		Use:           "chieftally",
		Short:         "Rank governance proposals by voting weight",
		Long:          rootLong,
		Example:       rootExample,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := Load(flags.cfgFile)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}

			// Flag overrides take precedence over file and environment.
			for i, url := range flags.rpcURLs {
				cfg.RPCs = append(cfg.RPCs, evm.RPC{Name: fmt.Sprintf("rpc-%d", i), HTTPURL: url})
			}
			if flags.chiefAddr != "" {
				cfg.Chief = flags.chiefAddr
			}
			if flags.etherscanKey != "" {
				cfg.Etherscan.APIKey = flags.etherscanKey
			}
			if flags.cacheBackend != "" {
				cfg.Cache.Backend = flags.cacheBackend
			}

			if err := cfg.Validate(); err != nil {
				return err
			}

			return run(cmd.Context(), cfg, flags.jsonOut, cmd.OutOrStdout())
		},
	}

	flags.register(cmd.Flags())

	return cmd
}

func run(ctx context.Context, cfg *Config, jsonOut bool, out io.Writer) error {
	lggr, err := newRunLogger(jsonOut)
	if err != nil {
		return err
	}
	defer func() { _ = lggr.Sync() }()

	client, err := evm.NewMultiClient(lggr.Named("evm"), evm.RPCConfig{ChainName: cfg.ChainName, RPCs: cfg.RPCs})
	if err != nil {
		return fmt.Errorf("connecting to %s: %w", cfg.ChainName, err)
	}
	defer client.Close()

	store, err := newStore(ctx, cfg.Cache)
	if err != nil {
		return err
	}
	// The redis backend holds a connection pool.
	if closer, ok := store.(io.Closer); ok {
		defer func() { _ = closer.Close() }()
	}

	fetcher := etherscan.NewClient(lggr.Named("etherscan"), cfg.Etherscan.URL, etherscan.WithAPIKey(cfg.Etherscan.APIKey))
	contracts := abicache.New(lggr.Named("abicache"), store, fetcher)

	snapshot, err := chief.Run(ctx, lggr.Named("chief"), client, contracts, chief.Params{
		Address:     cfg.ChiefAddress(),
		FromBlock:   cfg.FromBlock,
		Concurrency: cfg.Concurrency,
	})
	if err != nil {
		return err
	}

	if jsonOut {
		return renderJSON(out, snapshot)
	}

	return renderText(out, snapshot)
}

// newRunLogger logs human-readably to stderr, keeping stdout free for the
// report. JSON runs only surface warnings so the document stays parseable
// when stderr is merged.
func newRunLogger(jsonOut bool) (logger.Logger, error) {
	return logger.NewWith(func(cfg *zap.Config) {
		*cfg = zap.NewDevelopmentConfig()
		cfg.OutputPaths = []string{"stderr"}
		if jsonOut {
			cfg.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
		}
	})
}

func newStore(ctx context.Context, cfg CacheConfig) (abicache.Store, error) {
	switch cfg.Backend {
	case "memory":
		return abicache.NewMemoryStore(), nil
	case "redis":
		return abicache.NewRedisStore(ctx, cfg.RedisURL)
	default:
		dir := cfg.Dir
		if dir == "" {
			var err error
			dir, err = abicache.DefaultDir()
			if err != nil {
				return nil, fmt.Errorf("determining cache dir: %w", err)
			}
		}

		return abicache.NewFileStore(dir)
	}
}
