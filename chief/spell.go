package chief

import (
	"context"
	"fmt"
	"math"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/makerwatch/chieftally/abicache"
	"github.com/makerwatch/chieftally/pkg/logger"
)

const (
	// rayDecimals is the fixed-point precision of per-second rates.
	rayDecimals = 27

	secondsPerYear = 60 * 60 * 24 * 365
)

// Spell describes a pending governance action decoded from a spell
// contract's payload: the target function, its arguments and, for
// recognized actions, a human-readable description.
type Spell struct {
	Name string         `json:"name"`
	Args map[string]any `json:"args"`
	Desc string         `json:"desc,omitempty"`
}

// SpellDecoder decodes proposal addresses as ds-spell contracts against
// their target's declared interface.
type SpellDecoder struct {
	client    Client
	contracts *abicache.Cache
	lggr      logger.Logger
}

// NewSpellDecoder returns a decoder using the given contract interface
// cache.
func NewSpellDecoder(lggr logger.Logger, client Client, contracts *abicache.Cache) *SpellDecoder {
	return &SpellDecoder{client: client, contracts: contracts, lggr: lggr}
}

// Decode treats proposal as a spell contract: reads its target address and
// call payload, then decodes the payload against the target's interface.
func (d *SpellDecoder) Decode(ctx context.Context, proposal common.Address) (*Spell, error) {
	spellABI, err := d.contracts.Interface(ctx, proposal)
	if err != nil {
		return nil, err
	}

	whomOut, err := call(ctx, d.client, spellABI, proposal, "whom")
	if err != nil {
		return nil, fmt.Errorf("reading spell target: %w", err)
	}
	// The verified ABI is attacker-controlled; never trust its return types.
	whom, ok := whomOut[0].(common.Address)
	if !ok {
		return nil, fmt.Errorf("%w: spell target is %T, want address", ErrUnknownPayload, whomOut[0])
	}

	dataOut, err := call(ctx, d.client, spellABI, proposal, "data")
	if err != nil {
		return nil, fmt.Errorf("reading spell payload: %w", err)
	}
	payload, ok := dataOut[0].([]byte)
	if !ok || len(payload) < 4 {
		return nil, fmt.Errorf("%w: spell payload too short", ErrUnknownPayload)
	}

	targetABI, err := d.contracts.Interface(ctx, whom)
	if err != nil {
		return nil, err
	}

	method, err := targetABI.MethodById(payload[:4])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnknownPayload, err)
	}

	args := make(map[string]any)
	if err := method.Inputs.UnpackIntoMap(args, payload[4:]); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnknownPayload, err)
	}

	spell := &Spell{Name: method.RawName, Args: args}

	if method.RawName == "setFee" {
		if ray, ok := args["ray"].(*big.Int); ok {
			spell.Desc = describeFee(ray)
		}
	}

	return spell, nil
}

// DecodeAll decodes every proposal best-effort. Failures mean the proposal
// simply carries no spell; they are never surfaced to the caller.
func (d *SpellDecoder) DecodeAll(ctx context.Context, proposals []common.Address) map[common.Address]*Spell {
	spells := make(map[common.Address]*Spell)

	for _, proposal := range proposals {
		if ctx.Err() != nil {
			break
		}

		spell, err := d.Decode(ctx, proposal)
		if err != nil {
			d.lggr.Debugf("no spell for %s: %v", proposal.Hex(), err)
			continue
		}
		spells[proposal] = spell
	}

	return spells
}

// describeFee renders a per-second compounding ray rate as an annualized
// percentage. The rate sits within a hair of 1.0, so float64 carries far
// more precision than the two rendered decimal places.
func describeFee(ray *big.Int) string {
	rate, _ := new(big.Float).Quo(
		new(big.Float).SetInt(ray),
		big.NewFloat(math.Pow10(rayDecimals)),
	).Float64()

	percent := math.Pow(rate, secondsPerYear)*100 - 100

	return fmt.Sprintf("%.2f%%", percent)
}
