package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/viper"

	"github.com/makerwatch/chieftally/chain/evm"
	"github.com/makerwatch/chieftally/chief"
	"github.com/makerwatch/chieftally/etherscan"
	"github.com/makerwatch/chieftally/internal/workpool"
)

// EtherscanConfig points at the block-explorer API used to fetch contract
// interfaces.
type EtherscanConfig struct {
	URL    string `mapstructure:"url" yaml:"url"`
	APIKey string `mapstructure:"api_key" yaml:"api_key"` // Secret: explorer API key
}

// CacheConfig selects the ABI cache backing.
type CacheConfig struct {
	// Backend is one of "file", "memory" or "redis".
	Backend string `mapstructure:"backend" yaml:"backend"`
	// Dir overrides the file backend's directory. Empty means the per-user
	// cache dir.
	Dir string `mapstructure:"dir" yaml:"dir,omitempty"`
	// RedisURL configures the redis backend (redis://host:port/db).
	RedisURL string `mapstructure:"redis_url" yaml:"redis_url,omitempty"`
}

// Config is the full runtime configuration. Values come from the config
// file, CHIEFTALLY_* environment variables and flag overrides, in
// increasing precedence.
type Config struct {
	ChainName   string          `mapstructure:"chain_name" yaml:"chain_name"`
	RPCs        []evm.RPC       `mapstructure:"rpcs" yaml:"rpcs"`
	Chief       string          `mapstructure:"chief" yaml:"chief"`
	FromBlock   uint64          `mapstructure:"from_block" yaml:"from_block"`
	Concurrency int             `mapstructure:"concurrency" yaml:"concurrency"`
	Etherscan   EtherscanConfig `mapstructure:"etherscan" yaml:"etherscan"`
	Cache       CacheConfig     `mapstructure:"cache" yaml:"cache"`
}

// Load reads configuration from filePath if it exists, falling back to
// environment variables and the mainnet defaults.
func Load(filePath string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(filePath)

	v.SetEnvPrefix("CHIEFTALLY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	// If the config file exists, we continue to read it, otherwise we
	// fall back to using environment variables and defaults.
	if filePath != "" {
		if _, err := os.Stat(filePath); !errors.Is(err, fs.ErrNotExist) {
			if err := v.ReadInConfig(); err != nil {
				return nil, err
			}
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("chain_name", "ethereum-mainnet")
	v.SetDefault("chief", chief.MainnetChief.Hex())
	v.SetDefault("from_block", chief.MainnetDeployBlock)
	v.SetDefault("concurrency", workpool.DefaultConcurrency)
	v.SetDefault("etherscan.url", etherscan.DefaultBaseURL)
	v.SetDefault("cache.backend", "file")
}

// Validate checks the parts of the configuration that cannot be defaulted.
func (c *Config) Validate() error {
	if len(c.RPCs) == 0 {
		return errors.New("at least one RPC endpoint is required (config rpcs or --rpc)")
	}
	if !common.IsHexAddress(c.Chief) {
		return fmt.Errorf("invalid chief address %q", c.Chief)
	}

	switch c.Cache.Backend {
	case "file", "memory":
	case "redis":
		if c.Cache.RedisURL == "" {
			return errors.New("cache.redis_url is required for the redis cache backend")
		}
	default:
		return fmt.Errorf("unknown cache backend %q (want file, memory or redis)", c.Cache.Backend)
	}

	return nil
}

// ChiefAddress returns the parsed governance contract address.
func (c *Config) ChiefAddress() common.Address {
	return common.HexToAddress(c.Chief)
}
