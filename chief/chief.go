// Package chief reconstructs the live approval-voting state of a DS-Chief
// governance contract from its public event history and tallies it.
//
// The pipeline is: fetch Etch and vote logs, expand slates into proposal
// lists, replay votes in log order keeping each voter's last choice, weigh
// voters by their locked deposits, and rank proposals by aggregate weight.
package chief

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/makerwatch/chieftally/abicache"
	"github.com/makerwatch/chieftally/pkg/logger"
)

// Client is the subset of the EVM RPC surface the package needs. Both calls
// are read-only.
type Client interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error)
}

// ErrInterfaceMismatch indicates a contract's declared interface does not
// expose a function the caller requires. Fatal when it is the chief itself,
// recovered when it surfaces during spell decoding.
var ErrInterfaceMismatch = errors.New("contract interface missing expected function")

// requiredMethods are the chief functions the pipeline calls or decodes
// against. A fetched ABI lacking any of them cannot be the governance
// contract we expect.
var requiredMethods = []string{"vote", "slates", "deposits", "hat"}

// Chief binds the governance contract: its address, its fetched interface
// and the client used for read-only calls.
type Chief struct {
	address   common.Address
	abi       *abi.ABI
	client    Client
	fromBlock uint64
	lggr      logger.Logger
}

// New resolves the chief's interface through the cache and verifies it
// exposes the functions the pipeline depends on.
func New(ctx context.Context, lggr logger.Logger, client Client, contracts *abicache.Cache, address common.Address, fromBlock uint64) (*Chief, error) {
	chiefABI, err := contracts.Interface(ctx, address)
	if err != nil {
		return nil, fmt.Errorf("resolving chief interface: %w", err)
	}

	for _, name := range requiredMethods {
		if !hasMethod(chiefABI, name) {
			return nil, fmt.Errorf("%w: %s on %s", ErrInterfaceMismatch, name, address.Hex())
		}
	}

	return &Chief{
		address:   address,
		abi:       chiefABI,
		client:    client,
		fromBlock: fromBlock,
		lggr:      lggr,
	}, nil
}

// Address returns the chief contract address.
func (c *Chief) Address() common.Address {
	return c.address
}

// Hat returns the proposal the chief currently recognizes as leading. This
// is contract state, not a tally derivation.
func (c *Chief) Hat(ctx context.Context) (common.Address, error) {
	out, err := call(ctx, c.client, c.abi, c.address, "hat")
	if err != nil {
		return common.Address{}, fmt.Errorf("reading hat: %w", err)
	}

	hat, err := toAddress(out[0])
	if err != nil {
		return common.Address{}, fmt.Errorf("reading hat: %w", err)
	}

	return hat, nil
}

// hasMethod reports whether the ABI declares a function with the given raw
// name, in any overload.
func hasMethod(a *abi.ABI, name string) bool {
	for _, m := range a.Methods {
		if m.RawName == name {
			return true
		}
	}

	return false
}

// call performs a read-only contract call and unpacks the outputs.
func call(ctx context.Context, client Client, a *abi.ABI, to common.Address, method string, args ...any) ([]any, error) {
	if _, ok := a.Methods[method]; !ok {
		return nil, fmt.Errorf("%w: %s on %s", ErrInterfaceMismatch, method, to.Hex())
	}

	input, err := a.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("packing %s: %w", method, err)
	}

	output, err := client.CallContract(ctx, ethereum.CallMsg{To: &to, Data: input}, nil)
	if err != nil {
		return nil, err
	}

	out, err := a.Unpack(method, output)
	if err != nil {
		return nil, fmt.Errorf("unpacking %s result: %w", method, err)
	}

	return out, nil
}
