package cli

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/makerwatch/chieftally/chief"
)

var (
	renderP1 = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	renderP2 = common.HexToAddress("0x00000000000000000000000000000000000000a2")
	renderV1 = common.HexToAddress("0x00000000000000000000000000000000000000b1")
	renderV2 = common.HexToAddress("0x00000000000000000000000000000000000000b2")
)

// snapshotFixture has P2 leading with 10 (the hat), P1 trailing with 4, and
// a decoded spell attached to P2.
func snapshotFixture() *chief.Snapshot {
	return &chief.Snapshot{
		Hat: renderP2,
		Results: []chief.Entry{
			{Proposal: renderP2, Weight: decimal.NewFromInt(10)},
			{Proposal: renderP1, Weight: decimal.NewFromInt(4)},
		},
		Voters: map[common.Address]*chief.Voter{
			renderV1: {Yays: []common.Address{renderP2}, Weight: decimal.NewFromInt(6)},
			renderV2: {Yays: []common.Address{renderP1, renderP2}, Weight: decimal.NewFromInt(4)},
		},
		Spells: map[common.Address]*chief.Spell{
			renderP2: {Name: "setFee", Args: map[string]any{"ray": "1"}, Desc: "5.00%"},
		},
	}
}

func TestRenderJSON(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	require.NoError(t, renderJSON(&buf, snapshotFixture()))

	var report struct {
		Hat       common.Address `json:"hat"`
		Proposals map[string]struct {
			Total  decimal.Decimal            `json:"total"`
			Voters map[string]decimal.Decimal `json:"voters"`
			Spell  *chief.Spell               `json:"spell"`
		} `json:"proposals"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &report))

	assert.Equal(t, renderP2, report.Hat)
	require.Len(t, report.Proposals, 2)

	leader := report.Proposals[renderP2.Hex()]
	assert.True(t, leader.Total.Equal(decimal.NewFromInt(10)))
	require.Len(t, leader.Voters, 2)
	assert.True(t, leader.Voters[renderV1.Hex()].Equal(decimal.NewFromInt(6)))
	assert.True(t, leader.Voters[renderV2.Hex()].Equal(decimal.NewFromInt(4)))
	require.NotNil(t, leader.Spell)
	assert.Equal(t, "setFee", leader.Spell.Name)
	assert.Equal(t, "5.00%", leader.Spell.Desc)

	trailer := report.Proposals[renderP1.Hex()]
	assert.True(t, trailer.Total.Equal(decimal.NewFromInt(4)))
	require.Len(t, trailer.Voters, 1)
	assert.Nil(t, trailer.Spell)
}

// The document keys proposals in rank order even though JSON objects are
// nominally unordered; downstream consumers rely on it.
func TestRenderJSON_RankOrder(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	require.NoError(t, renderJSON(&buf, snapshotFixture()))

	out := buf.String()
	first := strings.Index(out, renderP2.Hex())
	second := strings.Index(out, renderP1.Hex())
	require.Positive(t, first)
	require.Positive(t, second)
	assert.Less(t, first, second)

	assert.True(t, strings.HasSuffix(out, "\n"))
}

func TestRenderText(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	require.NoError(t, renderText(&buf, snapshotFixture()))

	out := buf.String()
	assert.Contains(t, out, renderP1.Hex())
	assert.Contains(t, out, renderP2.Hex())
	assert.Contains(t, out, "<- hat")
	assert.Contains(t, out, "setFee")
	assert.Contains(t, out, "5.00%")
	assert.Contains(t, out, renderV1.Hex())
	assert.Contains(t, out, renderV2.Hex())

	// Exactly one hat marker.
	assert.Equal(t, 1, strings.Count(out, "<- hat"))
}

func TestRenderText_Empty(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	require.NoError(t, renderText(&buf, &chief.Snapshot{}))
	assert.Contains(t, buf.String(), "no active votes")
}
