// Package evm provides the read-only Ethereum RPC transport used by the
// tally pipeline. It wraps one or more ethclient endpoints with retry and
// failover; nothing in this module ever submits a transaction.
package evm

import (
	"context"
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// Client is the read-only surface the pipeline consumes.
type Client interface {
	BlockNumber(ctx context.Context) (uint64, error)
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error)
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
	CodeAt(ctx context.Context, account common.Address, blockNumber *big.Int) ([]byte, error)
	HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error)
}

// RPC is a single named HTTP endpoint.
type RPC struct {
	Name    string `mapstructure:"name" yaml:"name"`
	HTTPURL string `mapstructure:"http_url" yaml:"http_url"`
}

// RPCConfig holds the endpoints for a chain. The first healthy endpoint
// becomes the primary; the rest serve as backups.
type RPCConfig struct {
	ChainName string `mapstructure:"chain_name" yaml:"chain_name"`
	RPCs      []RPC  `mapstructure:"rpcs" yaml:"rpcs"`
}

var errNoRPCs = errors.New("no RPCs provided, need at least one")
