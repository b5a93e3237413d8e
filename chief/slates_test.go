package chief

import (
	"context"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/makerwatch/chieftally/pkg/logger"
)

// A slate answering at indices 0 and 1 and reverting at 2 resolves to
// exactly two entries, in probe order.
func TestSlateResolver_StopsAtOutOfRange(t *testing.T) {
	t.Parallel()

	fake := newFakeChain(t)
	fake.addEtch(slate1, proposal1, proposal3)

	resolver := NewSlateResolver(newTestChief(t, fake), 2)

	got, err := resolver.Resolve(context.Background(), slate1)
	require.NoError(t, err)
	assert.Equal(t, []common.Address{proposal1, proposal3}, got)

	// Probes 0 and 1 answered, probe 2 terminated.
	assert.Equal(t, 3, fake.slateCalls)
}

func TestSlateResolver_ZeroAddressSentinelEndsSlate(t *testing.T) {
	t.Parallel()

	fake := newFakeChain(t)
	fake.addEtch(slate1, proposal1, common.Address{}, proposal2)

	resolver := NewSlateResolver(newTestChief(t, fake), 2)

	got, err := resolver.Resolve(context.Background(), slate1)
	require.NoError(t, err)
	assert.Equal(t, []common.Address{proposal1}, got)
}

func TestSlateResolver_Idempotent(t *testing.T) {
	t.Parallel()

	fake := newFakeChain(t)
	fake.addEtch(slate1, proposal1, proposal2, proposal3)

	resolver := NewSlateResolver(newTestChief(t, fake), 2)
	ctx := context.Background()

	first, err := resolver.Resolve(ctx, slate1)
	require.NoError(t, err)
	probes := fake.slateCalls

	second, err := resolver.Resolve(ctx, slate1)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	// The second resolution is served from cache without touching the chain.
	assert.Equal(t, probes, fake.slateCalls)
}

func TestSlateResolver_ResolveAll(t *testing.T) {
	t.Parallel()

	fake := newFakeChain(t)
	fake.addEtch(slate1, proposal1, proposal2)
	fake.addEtch(slate2, proposal3)

	resolver := NewSlateResolver(newTestChief(t, fake), 2)

	resolved, err := resolver.ResolveAll(context.Background(), []common.Hash{slate1, slate2})
	require.NoError(t, err)
	assert.Equal(t, []common.Address{proposal1, proposal2}, resolved[slate1])
	assert.Equal(t, []common.Address{proposal3}, resolved[slate2])
}

// One failed slate stays unresolved (empty) without failing the batch; its
// voters simply carry no yays.
func TestSlateResolver_ResolveAll_PartialFailure(t *testing.T) {
	t.Parallel()

	fake := newFakeChain(t)
	fake.addEtch(slate1, proposal1)
	fake.addEtch(slate2, proposal2)
	fake.failSlates[slate2] = true

	resolver := NewSlateResolver(newTestChief(t, fake), 2)

	resolved, err := resolver.ResolveAll(context.Background(), []common.Hash{slate1, slate2})
	require.NoError(t, err)
	assert.Equal(t, []common.Address{proposal1}, resolved[slate1])
	assert.Empty(t, resolved[slate2])
}

func TestSlateResolver_ResolveAll_TotalFailure(t *testing.T) {
	t.Parallel()

	fake := newFakeChain(t)
	fake.addEtch(slate1, proposal1)
	fake.addEtch(slate2, proposal2)
	fake.failSlates[slate1] = true
	fake.failSlates[slate2] = true

	resolver := NewSlateResolver(newTestChief(t, fake), 2)

	_, err := resolver.ResolveAll(context.Background(), []common.Hash{slate1, slate2})
	require.Error(t, err)
}

// A chief ABI declaring slates() with a non-address return type fails the
// resolution with the interface error instead of panicking.
func TestSlateResolver_WrongReturnTypeFails(t *testing.T) {
	t.Parallel()

	fake := newFakeChain(t)
	fake.addEtch(slate1, proposal1)

	cache := newTestCache(t, map[common.Address]string{chiefAddr: mistypedChiefABI})

	chief, err := New(context.Background(), logger.Test(t), fake, cache, chiefAddr, 0)
	require.NoError(t, err)

	_, err = NewSlateResolver(chief, 2).Resolve(context.Background(), slate1)
	require.ErrorIs(t, err, ErrInterfaceMismatch)
}

func TestSlates_DeduplicatesEtches(t *testing.T) {
	t.Parallel()

	fake := newFakeChain(t)
	fake.addEtch(slate1, proposal1)
	// Same slate etched again (e.g. two voters voted the same set inline).
	fake.addEtch(slate1, proposal1)
	fake.addEtch(slate2, proposal2)

	slates, err := newTestChief(t, fake).Slates(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []common.Hash{slate1, slate2}, slates)
}
