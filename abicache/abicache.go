// Package abicache resolves contract interface descriptions, populating a
// backing store on miss from a block-explorer fetcher. A contract's ABI
// never changes, so cached entries have no expiry.
package abicache

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/makerwatch/chieftally/pkg/logger"
)

// Store persists raw ABI JSON keyed by contract address.
type Store interface {
	// Get returns the stored ABI JSON and whether it was present.
	Get(ctx context.Context, address common.Address) (string, bool, error)
	// Put stores the ABI JSON for address.
	Put(ctx context.Context, address common.Address, abiJSON string) error
}

// Fetcher retrieves an ABI from a remote source on cache miss.
type Fetcher interface {
	ContractABI(ctx context.Context, address common.Address) (string, error)
}

// Cache resolves parsed interfaces through a Store, fetching on miss.
// Parsed ABIs are additionally memoized in process for the run.
type Cache struct {
	store   Store
	fetcher Fetcher
	lggr    logger.Logger

	mu     sync.Mutex
	parsed map[common.Address]*abi.ABI
}

// New returns a Cache over the given store and fetcher.
func New(lggr logger.Logger, store Store, fetcher Fetcher) *Cache {
	return &Cache{
		store:   store,
		fetcher: fetcher,
		lggr:    lggr,
		parsed:  make(map[common.Address]*abi.ABI),
	}
}

// Interface returns the parsed ABI for address, populating the store on a
// miss. Population is transparent to the caller.
func (c *Cache) Interface(ctx context.Context, address common.Address) (*abi.ABI, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if parsed, ok := c.parsed[address]; ok {
		return parsed, nil
	}

	abiJSON, ok, err := c.store.Get(ctx, address)
	if err != nil {
		return nil, fmt.Errorf("reading ABI store for %s: %w", address.Hex(), err)
	}

	if !ok {
		abiJSON, err = c.fetcher.ContractABI(ctx, address)
		if err != nil {
			return nil, fmt.Errorf("fetching ABI for %s: %w", address.Hex(), err)
		}

		if err := c.store.Put(ctx, address, abiJSON); err != nil {
			// A write failure only costs a refetch next run.
			c.lggr.Warnf("failed to store ABI for %s: %v", address.Hex(), err)
		}
	}

	parsed, err := abi.JSON(strings.NewReader(abiJSON))
	if err != nil {
		return nil, fmt.Errorf("parsing ABI for %s: %w", address.Hex(), err)
	}

	c.parsed[address] = &parsed

	return &parsed, nil
}
