package chief

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sort"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// ErrUnknownPayload indicates a ds-note payload that does not decode against
// any known vote signature. Recovered by skipping the single event.
var ErrUnknownPayload = errors.New("payload does not match a known vote signature")

// dsNoteCalldataOffset is where the embedded calldata (the LogNote `fax`
// field) starts inside a ds-note log's data: one word of wad plus the bytes
// head and length words.
const dsNoteCalldataOffset = 96

// VoteEvent is one historical vote-cast record. Exactly one of Inline or
// Slate is meaningful, discriminated by HasSlate. Block and Index give the
// chronological total order used for last-write-wins replay.
type VoteEvent struct {
	Voter    common.Address
	Inline   []common.Address
	Slate    common.Hash
	HasSlate bool
	Block    uint64
	Index    uint
}

// noteTopic derives the ds-note log topic for a function: its 4-byte
// selector right-padded to 32 bytes.
func noteTopic(selector [4]byte) common.Hash {
	var topic common.Hash
	copy(topic[:4], selector[:])

	return topic
}

// voteTopics returns the note topics of every vote overload declared by the
// chief ABI.
func (c *Chief) voteTopics() []common.Hash {
	var topics []common.Hash
	for _, m := range c.abi.Methods {
		if m.RawName == "vote" {
			topics = append(topics, noteTopic([4]byte(m.ID)))
		}
	}

	return topics
}

// Slates fetches all Etch events from the deployment block and returns the
// distinct slate hashes they announce.
func (c *Chief) Slates(ctx context.Context) ([]common.Hash, error) {
	etch, ok := c.abi.Events["Etch"]
	if !ok {
		return nil, fmt.Errorf("%w: Etch event on %s", ErrInterfaceMismatch, c.address.Hex())
	}

	logs, err := c.client.FilterLogs(ctx, ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(c.fromBlock),
		Addresses: []common.Address{c.address},
		Topics:    [][]common.Hash{{etch.ID}},
	})
	if err != nil {
		return nil, fmt.Errorf("fetching Etch logs: %w", err)
	}

	seen := make(map[common.Hash]struct{}, len(logs))
	slates := make([]common.Hash, 0, len(logs))
	for _, log := range logs {
		if len(log.Topics) < 2 {
			continue
		}
		slate := log.Topics[1]
		if _, dup := seen[slate]; dup {
			continue
		}
		seen[slate] = struct{}{}
		slates = append(slates, slate)
	}

	c.lggr.Debugf("found %d distinct slates in %d Etch logs", len(slates), len(logs))

	return slates, nil
}

// VoteEvents fetches every vote note from the deployment block, decodes each
// against the chief ABI and returns the events in chronological order.
// Undecodable notes are skipped.
func (c *Chief) VoteEvents(ctx context.Context) ([]VoteEvent, error) {
	logs, err := c.client.FilterLogs(ctx, ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(c.fromBlock),
		Addresses: []common.Address{c.address},
		Topics:    [][]common.Hash{c.voteTopics()},
	})
	if err != nil {
		return nil, fmt.Errorf("fetching vote logs: %w", err)
	}

	events := make([]VoteEvent, 0, len(logs))
	for _, log := range logs {
		event, err := c.parseNote(log)
		if err != nil {
			c.lggr.Debugf("skipping vote log at block %d index %d: %v", log.BlockNumber, log.Index, err)
			continue
		}
		events = append(events, event)
	}

	// Log queries normally return entries in order already; sorting keeps
	// the recency invariant independent of the node's behavior.
	sort.SliceStable(events, func(i, j int) bool {
		if events[i].Block != events[j].Block {
			return events[i].Block < events[j].Block
		}

		return events[i].Index < events[j].Index
	})

	return events, nil
}

// parseNote decodes a single ds-note log into a VoteEvent.
func (c *Chief) parseNote(log types.Log) (VoteEvent, error) {
	if len(log.Topics) < 2 {
		return VoteEvent{}, fmt.Errorf("%w: missing sender topic", ErrUnknownPayload)
	}
	if len(log.Data) < dsNoteCalldataOffset+4 {
		return VoteEvent{}, fmt.Errorf("%w: note data too short (%d bytes)", ErrUnknownPayload, len(log.Data))
	}

	calldata := log.Data[dsNoteCalldataOffset:]

	method, err := c.abi.MethodById(calldata[:4])
	if err != nil || method.RawName != "vote" {
		return VoteEvent{}, fmt.Errorf("%w: selector %x", ErrUnknownPayload, calldata[:4])
	}

	values, err := method.Inputs.Unpack(calldata[4:])
	if err != nil {
		return VoteEvent{}, fmt.Errorf("%w: %v", ErrUnknownPayload, err)
	}
	if len(values) != 1 {
		return VoteEvent{}, fmt.Errorf("%w: unexpected argument count %d", ErrUnknownPayload, len(values))
	}

	event := VoteEvent{
		Voter: common.BytesToAddress(log.Topics[1].Bytes()),
		Block: log.BlockNumber,
		Index: log.Index,
	}

	switch arg := values[0].(type) {
	case []common.Address:
		event.Inline = arg
	case [32]byte:
		event.Slate = common.Hash(arg)
		event.HasSlate = true
	default:
		return VoteEvent{}, fmt.Errorf("%w: unexpected argument type %T", ErrUnknownPayload, values[0])
	}

	return event, nil
}
