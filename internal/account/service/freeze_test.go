package service_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	dErrors "acctgate/pkg/domain-errors"
	"acctgate/pkg/platform/events"
)

func TestFreezeByAnySingleOwner(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.svc.Freeze(ctx, f.owners[2], f.account))
	require.True(t, f.state(t).Account.IsFreezing)
	require.Contains(t, f.actions(t), events.ActionFrozen)

	// Freezing a frozen account is idempotent.
	require.NoError(t, f.svc.Freeze(ctx, f.owners[0], f.account))
	require.True(t, f.state(t).Account.IsFreezing)
}

func TestFreezeRequiresOwner(t *testing.T) {
	f := newFixture(t)
	err := f.svc.Freeze(context.Background(), addr(0x77), f.account)
	requireCode(t, err, dErrors.CodeUnauthorized)
}

func TestUnfreezeRequiresFrozenAccount(t *testing.T) {
	f := newFixture(t)
	err := f.svc.Unfreeze(context.Background(), f.owners[0], f.account)
	requireCode(t, err, dErrors.CodeInvalidState)
}

func TestUnfreezeQuorum(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.svc.Freeze(ctx, f.owners[0], f.account))

	require.NoError(t, f.svc.Unfreeze(ctx, f.owners[0], f.account))
	require.True(t, f.state(t).Account.IsFreezing, "one vote is below threshold")
	require.Equal(t, uint64(1), f.state(t).Account.UnfreezeCounter)

	require.NoError(t, f.svc.Unfreeze(ctx, f.owners[1], f.account))
	state := f.state(t)
	require.False(t, state.Account.IsFreezing)
	require.Equal(t, uint64(1), state.Account.UnfreezeRound, "round advances on thaw")
	require.Equal(t, uint64(0), state.Account.UnfreezeCounter)
	require.Contains(t, f.actions(t), events.ActionUnfrozen)
}

func TestUnfreezeDuplicateVote(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.svc.Freeze(ctx, f.owners[0], f.account))
	require.NoError(t, f.svc.Unfreeze(ctx, f.owners[0], f.account))

	err := f.svc.Unfreeze(ctx, f.owners[0], f.account)
	requireCode(t, err, dErrors.CodeDuplicateVote)
}

// A vote left over from a completed round never counts toward the next one.
func TestUnfreezeRoundIsolation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.svc.Freeze(ctx, f.owners[0], f.account))
	require.NoError(t, f.svc.Unfreeze(ctx, f.owners[0], f.account))
	require.NoError(t, f.svc.Unfreeze(ctx, f.owners[1], f.account))
	require.False(t, f.state(t).Account.IsFreezing)

	// Freeze again: the new round starts empty, so the same owners must
	// vote again and a single vote is not enough.
	require.NoError(t, f.svc.Freeze(ctx, f.owners[0], f.account))
	require.NoError(t, f.svc.Unfreeze(ctx, f.owners[0], f.account))
	require.True(t, f.state(t).Account.IsFreezing)

	voted, err := f.svc.HasUnfreezeVote(ctx, f.account, f.owners[1])
	require.NoError(t, err)
	require.False(t, voted, "previous round's vote is not visible in the new round")
}
