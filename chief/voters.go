package chief

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// Voter holds one address's current voting state: the proposals of its most
// recent vote and the deposit weight backing them.
type Voter struct {
	Yays   []common.Address
	Weight decimal.Decimal
}

// BuildVoters replays vote events in their given chronological order and
// returns the final per-voter state. Each event overwrites the voter's
// previous choice entirely; a slate reference is expanded through the
// resolved map, with an unknown slate yielding no yays.
//
// The replay must stay sequential: last-write-wins depends on processing
// events in their chronological total order.
func BuildVoters(events []VoteEvent, slates map[common.Hash][]common.Address) map[common.Address]*Voter {
	voters := make(map[common.Address]*Voter)

	for _, event := range events {
		voter, ok := voters[event.Voter]
		if !ok {
			voter = &Voter{}
			voters[event.Voter] = voter
		}

		if event.HasSlate {
			voter.Yays = slates[event.Slate]
		} else {
			voter.Yays = event.Inline
		}
	}

	return voters
}
