package chief

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/makerwatch/chieftally/abicache"
	"github.com/makerwatch/chieftally/internal/workpool"
	"github.com/makerwatch/chieftally/pkg/logger"
)

// MakerDAO mainnet chief and its deployment block, the defaults when no
// configuration overrides them.
var (
	MainnetChief       = common.HexToAddress("0x8E2a84D6adE1E7ffFEe039A35EF5F19F13057152")
	MainnetDeployBlock = uint64(4749331)
)

// Params configures a pipeline run.
type Params struct {
	// Address of the governance contract.
	Address common.Address
	// FromBlock is the contract's deployment block; logs are queried from it.
	FromBlock uint64
	// Concurrency bounds each fan-out phase. Zero means the default.
	Concurrency int
}

// Snapshot is the reconstructed voting state at the head of the chain.
type Snapshot struct {
	Hat     common.Address
	Results []Entry
	Voters  map[common.Address]*Voter
	Spells  map[common.Address]*Spell
}

// Run executes the full pipeline: logs, slates, voter replay, weights,
// tally, spells, hat. Each phase joins completely before the next begins.
func Run(ctx context.Context, lggr logger.Logger, client Client, contracts *abicache.Cache, params Params) (*Snapshot, error) {
	if params.Concurrency <= 0 {
		params.Concurrency = workpool.DefaultConcurrency
	}

	chief, err := New(ctx, lggr, client, contracts, params.Address, params.FromBlock)
	if err != nil {
		return nil, err
	}

	slates, err := chief.Slates(ctx)
	if err != nil {
		return nil, err
	}

	resolver := NewSlateResolver(chief, params.Concurrency)
	resolved, err := resolver.ResolveAll(ctx, slates)
	if err != nil {
		return nil, err
	}

	events, err := chief.VoteEvents(ctx)
	if err != nil {
		return nil, err
	}
	lggr.Infof("replaying %d vote events across %d slates", len(events), len(slates))

	voters := BuildVoters(events, resolved)

	if err := chief.ResolveWeights(ctx, voters, params.Concurrency); err != nil {
		return nil, err
	}

	results := Tally(voters)

	proposals := make([]common.Address, 0, len(results))
	for _, entry := range results {
		proposals = append(proposals, entry.Proposal)
	}

	decoder := NewSpellDecoder(lggr, client, contracts)
	spells := decoder.DecodeAll(ctx, proposals)

	hat, err := chief.Hat(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading current hat: %w", err)
	}

	return &Snapshot{
		Hat:     hat,
		Results: results,
		Voters:  voters,
		Spells:  spells,
	}, nil
}
