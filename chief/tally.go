package chief

import (
	"bytes"
	"fmt"
	"math/big"
	"sort"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// Entry is one ranked proposal with its aggregated voting weight.
type Entry struct {
	Proposal common.Address
	Weight   decimal.Decimal
}

// VoterStake is one voter's contribution inside a proposal's breakdown.
type VoterStake struct {
	Address common.Address
	Weight  decimal.Decimal
}

// Tally aggregates, per proposal, the weight of every voter whose current
// yays include it, ranked by descending weight. A proposal listed twice in
// one voter's yays counts that voter once. Equal weights order by ascending
// proposal address so output is deterministic.
func Tally(voters map[common.Address]*Voter) []Entry {
	totals := make(map[common.Address]decimal.Decimal)

	for _, voter := range voters {
		seen := make(map[common.Address]struct{}, len(voter.Yays))
		for _, yay := range voter.Yays {
			if _, dup := seen[yay]; dup {
				continue
			}
			seen[yay] = struct{}{}
			totals[yay] = totals[yay].Add(voter.Weight)
		}
	}

	entries := make([]Entry, 0, len(totals))
	for proposal, weight := range totals {
		entries = append(entries, Entry{Proposal: proposal, Weight: weight})
	}

	sort.Slice(entries, func(i, j int) bool {
		if !entries[i].Weight.Equal(entries[j].Weight) {
			return entries[i].Weight.GreaterThan(entries[j].Weight)
		}

		return addressLess(entries[i].Proposal, entries[j].Proposal)
	})

	return entries
}

// VotersFor returns the voters currently backing a proposal with strictly
// positive weight, descending by weight with the same address tie-break as
// Tally.
func VotersFor(proposal common.Address, voters map[common.Address]*Voter) []VoterStake {
	var stakes []VoterStake

	for addr, voter := range voters {
		if !voter.Weight.IsPositive() {
			continue
		}
		for _, yay := range voter.Yays {
			if yay == proposal {
				stakes = append(stakes, VoterStake{Address: addr, Weight: voter.Weight})
				break
			}
		}
	}

	sort.Slice(stakes, func(i, j int) bool {
		if !stakes[i].Weight.Equal(stakes[j].Weight) {
			return stakes[i].Weight.GreaterThan(stakes[j].Weight)
		}

		return addressLess(stakes[i].Address, stakes[j].Address)
	})

	return stakes
}

func addressLess(a, b common.Address) bool {
	return bytes.Compare(a.Bytes(), b.Bytes()) < 0
}

// toBigInt and toAddress guard unpacked call outputs. A fetched ABI only has
// its method names verified, so the declared return types cannot be trusted.
func toBigInt(v any) (*big.Int, error) {
	b, ok := v.(*big.Int)
	if !ok {
		return nil, fmt.Errorf("%w: unexpected value type %T, want uint256", ErrInterfaceMismatch, v)
	}

	return b, nil
}

func toAddress(v any) (common.Address, error) {
	a, ok := v.(common.Address)
	if !ok {
		return common.Address{}, fmt.Errorf("%w: unexpected value type %T, want address", ErrInterfaceMismatch, v)
	}

	return a, nil
}
