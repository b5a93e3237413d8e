package chief

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rpc"

	"github.com/makerwatch/chieftally/internal/workpool"
)

// SlateResolver expands slate hashes into the ordered proposal lists they
// represent. Slates are content-addressed and immutable, so results are
// cached for the lifetime of the run and resolving the same hash twice is
// idempotent.
type SlateResolver struct {
	chief       *Chief
	concurrency int

	mu    sync.Mutex
	cache map[common.Hash][]common.Address
}

// NewSlateResolver returns a resolver over the chief with the given fan-out
// bound for batch resolution.
func NewSlateResolver(chief *Chief, concurrency int) *SlateResolver {
	return &SlateResolver{
		chief:       chief,
		concurrency: concurrency,
		cache:       make(map[common.Hash][]common.Address),
	}
}

// Resolve returns the ordered proposals of a slate, probing slates(slate, i)
// from index 0 until the contract signals the end of the list. The
// out-of-range revert is the expected termination, not a failure.
func (r *SlateResolver) Resolve(ctx context.Context, slate common.Hash) ([]common.Address, error) {
	r.mu.Lock()
	cached, ok := r.cache[slate]
	r.mu.Unlock()
	if ok {
		return cached, nil
	}

	var proposals []common.Address
	for i := int64(0); ; i++ {
		out, err := call(ctx, r.chief.client, r.chief.abi, r.chief.address, "slates", slate, big.NewInt(i))
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			if isEndOfSlate(err) {
				break
			}

			return nil, fmt.Errorf("resolving slate %s at index %d: %w", slate.Hex(), i, err)
		}

		proposal, err := toAddress(out[0])
		if err != nil {
			return nil, fmt.Errorf("resolving slate %s at index %d: %w", slate.Hex(), i, err)
		}
		if proposal == (common.Address{}) {
			break
		}

		proposals = append(proposals, proposal)
	}

	r.mu.Lock()
	r.cache[slate] = proposals
	r.mu.Unlock()

	return proposals, nil
}

// ResolveAll resolves distinct slates concurrently. A slate that fails to
// resolve is recorded as empty so its voters simply carry no yays; the batch
// only errors when every slate failed.
func (r *SlateResolver) ResolveAll(ctx context.Context, slates []common.Hash) (map[common.Hash][]common.Address, error) {
	results, errs := workpool.Map(ctx, r.concurrency, slates, func(ctx context.Context, slate common.Hash) ([]common.Address, error) {
		return r.Resolve(ctx, slate)
	})

	resolved := make(map[common.Hash][]common.Address, len(slates))
	failed := 0
	for i, slate := range slates {
		if errs[i] != nil {
			r.chief.lggr.Warnf("slate %s left unresolved: %v", slate.Hex(), errs[i])
			resolved[slate] = nil
			failed++

			continue
		}
		resolved[slate] = results[i]
	}

	if failed > 0 && failed == len(slates) {
		return nil, errors.Join(append([]error{errors.New("every slate resolution failed")}, errs...)...)
	}

	return resolved, nil
}

// isEndOfSlate reports whether an eth_call error is the contract rejecting
// an out-of-range index, which terminates resolution. Anything else is a
// transport failure for the caller to handle.
func isEndOfSlate(err error) bool {
	var dataErr rpc.DataError
	if errors.As(err, &dataErr) {
		return true
	}

	msg := err.Error()

	return strings.Contains(msg, "execution reverted") ||
		strings.Contains(msg, "invalid opcode") ||
		strings.Contains(msg, "out of gas")
}
