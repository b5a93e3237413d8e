package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/makerwatch/chieftally/chain/evm"
	"github.com/makerwatch/chieftally/chief"
	"github.com/makerwatch/chieftally/etherscan"
)

func rpcFixture() evm.RPC {
	return evm.RPC{Name: "primary", HTTPURL: "http://localhost:8545"}
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "ethereum-mainnet", cfg.ChainName)
	assert.Equal(t, chief.MainnetChief.Hex(), cfg.Chief)
	assert.Equal(t, chief.MainnetDeployBlock, cfg.FromBlock)
	assert.Equal(t, 10, cfg.Concurrency)
	assert.Equal(t, etherscan.DefaultBaseURL, cfg.Etherscan.URL)
	assert.Equal(t, "file", cfg.Cache.Backend)
	assert.Empty(t, cfg.RPCs)
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
chain_name: sepolia
chief: "0x00000000000000000000000000000000000000cc"
from_block: 123
concurrency: 3
rpcs:
  - name: primary
    http_url: http://localhost:8545
  - name: backup
    http_url: http://localhost:8546
etherscan:
  url: http://localhost:9000
  api_key: secret
cache:
  backend: redis
  redis_url: redis://localhost:6379/0
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "sepolia", cfg.ChainName)
	assert.Equal(t, "0x00000000000000000000000000000000000000cc", cfg.Chief)
	assert.Equal(t, uint64(123), cfg.FromBlock)
	assert.Equal(t, 3, cfg.Concurrency)
	require.Len(t, cfg.RPCs, 2)
	assert.Equal(t, "primary", cfg.RPCs[0].Name)
	assert.Equal(t, "http://localhost:8546", cfg.RPCs[1].HTTPURL)
	assert.Equal(t, "secret", cfg.Etherscan.APIKey)
	assert.Equal(t, "redis", cfg.Cache.Backend)

	require.NoError(t, cfg.Validate())
}

func TestLoad_MissingFileFallsBackToDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, chief.MainnetChief.Hex(), cfg.Chief)
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("CHIEFTALLY_CHAIN_NAME", "holesky")
	t.Setenv("CHIEFTALLY_CACHE_BACKEND", "memory")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "holesky", cfg.ChainName)
	assert.Equal(t, "memory", cfg.Cache.Backend)
}

func TestValidate(t *testing.T) {
	t.Parallel()

	valid := func() *Config {
		cfg, err := Load("")
		require.NoError(t, err)
		cfg.RPCs = append(cfg.RPCs, rpcFixture())

		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "valid",
			mutate: func(*Config) {},
		},
		{
			name:    "no rpcs",
			mutate:  func(c *Config) { c.RPCs = nil },
			wantErr: "at least one RPC",
		},
		{
			name:    "bad chief address",
			mutate:  func(c *Config) { c.Chief = "not-an-address" },
			wantErr: "invalid chief address",
		},
		{
			name:    "unknown cache backend",
			mutate:  func(c *Config) { c.Cache.Backend = "etcd" },
			wantErr: "unknown cache backend",
		},
		{
			name:    "redis backend without url",
			mutate:  func(c *Config) { c.Cache.Backend = "redis" },
			wantErr: "redis_url is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := valid()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestRootCmd_ValidationFailureExitsNonZero(t *testing.T) {
	t.Parallel()

	cmd := NewRootCmd()
	cmd.SetArgs([]string{"--chief", "not-an-address", "--rpc", "http://localhost:1"})
	cmd.SetOut(new(discard))
	cmd.SetErr(new(discard))

	require.ErrorContains(t, cmd.Execute(), "invalid chief address")
}

type discard struct{}

func (*discard) Write(p []byte) (int, error) { return len(p), nil }
