package chief

import (
	"context"
	"fmt"
	"sort"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"github.com/makerwatch/chieftally/internal/workpool"
)

// wadDecimals scales raw deposit amounts to whole tokens.
const wadDecimals = 18

// Deposits returns an address's live locked balance in whole tokens.
func (c *Chief) Deposits(ctx context.Context, voter common.Address) (decimal.Decimal, error) {
	out, err := call(ctx, c.client, c.abi, c.address, "deposits", voter)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("reading deposit of %s: %w", voter.Hex(), err)
	}

	wad, err := toBigInt(out[0])
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("deposit of %s: %w", voter.Hex(), err)
	}

	return decimal.NewFromBigInt(wad, -wadDecimals), nil
}

// ResolveWeights looks up every voter's deposit concurrently and writes it
// into the voter's Weight slot. Any single failed lookup fails the run:
// a partial tally would misstate every proposal the voter backs.
func (c *Chief) ResolveWeights(ctx context.Context, voters map[common.Address]*Voter, concurrency int) error {
	addresses := make([]common.Address, 0, len(voters))
	for addr := range voters {
		addresses = append(addresses, addr)
	}
	// Deterministic issue order; results land in per-address slots either way.
	sort.Slice(addresses, func(i, j int) bool {
		return addressLess(addresses[i], addresses[j])
	})

	weights, errs := workpool.Map(ctx, concurrency, addresses, func(ctx context.Context, addr common.Address) (decimal.Decimal, error) {
		return c.Deposits(ctx, addr)
	})

	if err := workpool.FirstError(errs); err != nil {
		return fmt.Errorf("resolving voter weights: %w", err)
	}

	for i, addr := range addresses {
		voters[addr].Weight = weights[i]
	}

	return nil
}
