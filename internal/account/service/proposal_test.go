package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"acctgate/internal/account/models"
	"acctgate/pkg/domain"
	dErrors "acctgate/pkg/domain-errors"
	"acctgate/pkg/platform/events"
)

func TestSubmitAppendsPendingTransaction(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	index, err := f.svc.Submit(ctx, f.owners[0], f.account, addr(0x99), 100, []byte("ping"))
	require.NoError(t, err)
	require.Equal(t, uint64(0), index)

	tx, status, err := f.svc.GetTransaction(ctx, f.account, index)
	require.NoError(t, err)
	require.Equal(t, models.TxStatusPending, status)
	require.Equal(t, uint64(0), tx.ConfirmCount)
	require.Equal(t, f.owners[0], tx.SubmittedBy)
	require.Contains(t, f.actions(t), events.ActionTxSubmitted)

	index, err = f.svc.Submit(ctx, f.owners[1], f.account, addr(0x99), 1, nil)
	require.NoError(t, err)
	require.Equal(t, uint64(1), index, "indexes are append-only")
}

func TestSubmitRequiresOwner(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Submit(context.Background(), addr(0x77), f.account, addr(0x99), 1, nil)
	requireCode(t, err, dErrors.CodeUnauthorized)
}

func TestSubmitRejectsZeroTarget(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Submit(context.Background(), f.owners[0], f.account, domain.ZeroAddress, 1, nil)
	requireCode(t, err, dErrors.CodeValidation)
}

func TestSubmitRejectsMalformedSelfCall(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Submit(context.Background(), f.owners[0], f.account, f.account, 0, []byte("not json"))
	requireCode(t, err, dErrors.CodeValidation)
}

// Three owners, threshold two: pending after one confirmation, pass after
// two, executed after execute.
func TestProposalQuorumFlow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	index, err := f.svc.Submit(ctx, f.owners[0], f.account, addr(0x99), 500, []byte("xfer"))
	require.NoError(t, err)

	status, err := f.svc.Confirm(ctx, f.owners[0], f.account, index)
	require.NoError(t, err)
	require.Equal(t, models.TxStatusPending, status)

	status, err = f.svc.Confirm(ctx, f.owners[1], f.account, index)
	require.NoError(t, err)
	require.Equal(t, models.TxStatusPass, status)

	require.NoError(t, f.svc.Execute(ctx, f.account, index))
	require.Equal(t, 1, f.caller.count())

	_, status, err = f.svc.GetTransaction(ctx, f.account, index)
	require.NoError(t, err)
	require.Equal(t, models.TxStatusExecuted, status)
	require.Contains(t, f.actions(t), events.ActionTxPassed)
	require.Contains(t, f.actions(t), events.ActionTxExecuted)
}

func TestConfirmDuplicateVote(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	index, err := f.svc.Submit(ctx, f.owners[0], f.account, addr(0x99), 1, nil)
	require.NoError(t, err)

	_, err = f.svc.Confirm(ctx, f.owners[0], f.account, index)
	require.NoError(t, err)
	_, err = f.svc.Confirm(ctx, f.owners[0], f.account, index)
	requireCode(t, err, dErrors.CodeDuplicateVote)

	tx, _, err := f.svc.GetTransaction(ctx, f.account, index)
	require.NoError(t, err)
	require.Equal(t, uint64(1), tx.ConfirmCount, "confirm count never double-counts")
}

func TestConfirmRequiresOwnerAndIndex(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	index, err := f.svc.Submit(ctx, f.owners[0], f.account, addr(0x99), 1, nil)
	require.NoError(t, err)

	_, err = f.svc.Confirm(ctx, addr(0x77), f.account, index)
	requireCode(t, err, dErrors.CodeUnauthorized)
	_, err = f.svc.Confirm(ctx, f.owners[0], f.account, 42)
	requireCode(t, err, dErrors.CodeNotFound)
}

// After a third confirmation past threshold the status stays PASS; the
// confirmation itself is accepted.
func TestConfirmAfterPassAccepted(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	index, err := f.svc.Submit(ctx, f.owners[0], f.account, addr(0x99), 1, nil)
	require.NoError(t, err)
	_, err = f.svc.Confirm(ctx, f.owners[0], f.account, index)
	require.NoError(t, err)
	_, err = f.svc.Confirm(ctx, f.owners[1], f.account, index)
	require.NoError(t, err)

	status, err := f.svc.Confirm(ctx, f.owners[2], f.account, index)
	require.NoError(t, err)
	require.Equal(t, models.TxStatusPass, status)

	tx, _, err := f.svc.GetTransaction(ctx, f.account, index)
	require.NoError(t, err)
	require.Equal(t, uint64(3), tx.ConfirmCount)
}

// Whitelisted targets pass on the first confirmation regardless of the
// threshold, and membership is read at confirmation time.
func TestWhitelistFastPath(t *testing.T) {
	whitelisted := addr(0x55)
	f := newFixture(t, func(p *models.InitParams) {
		p.Whitelist = []domain.Address{whitelisted}
	})
	ctx := context.Background()

	index, err := f.svc.Submit(ctx, f.owners[0], f.account, whitelisted, 10, nil)
	require.NoError(t, err)

	status, err := f.svc.Confirm(ctx, f.owners[0], f.account, index)
	require.NoError(t, err)
	require.Equal(t, models.TxStatusPass, status)

	require.NoError(t, f.svc.Execute(ctx, f.account, index))
}

func TestOvertimeBlocksConfirmAndExecute(t *testing.T) {
	f := newFixture(t)
	now := time.Now()

	index, err := f.svc.Submit(at(now), f.owners[0], f.account, addr(0x99), 1, nil)
	require.NoError(t, err)
	_, err = f.svc.Confirm(at(now), f.owners[0], f.account, index)
	require.NoError(t, err)

	// One second past the 24h deadline.
	late := at(now.Add(24*time.Hour + time.Second))

	_, status, err := f.svc.GetTransaction(late, f.account, index)
	require.NoError(t, err)
	require.Equal(t, models.TxStatusOvertime, status)

	_, err = f.svc.Confirm(late, f.owners[1], f.account, index)
	requireCode(t, err, dErrors.CodeTerminalState)
	err = f.svc.Execute(late, f.account, index)
	requireCode(t, err, dErrors.CodeTerminalState)
}

// A transaction executed before its deadline stays EXECUTED after it.
func TestExecutedStickyPastDeadline(t *testing.T) {
	f := newFixture(t)
	now := time.Now()

	index := passTransaction(t, f, at(now), addr(0x99))
	require.NoError(t, f.svc.Execute(at(now), f.account, index))

	_, status, err := f.svc.GetTransaction(at(now.Add(48*time.Hour)), f.account, index)
	require.NoError(t, err)
	require.Equal(t, models.TxStatusExecuted, status)
}

func TestExecuteRequiresPass(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	index, err := f.svc.Submit(ctx, f.owners[0], f.account, addr(0x99), 1, nil)
	require.NoError(t, err)

	err = f.svc.Execute(ctx, f.account, index)
	requireCode(t, err, dErrors.CodeInvalidState)
	require.Zero(t, f.caller.count())
}

func TestExecuteTwiceImpossible(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	index := passTransaction(t, f, ctx, addr(0x99))
	require.NoError(t, f.svc.Execute(ctx, f.account, index))

	err := f.svc.Execute(ctx, f.account, index)
	requireCode(t, err, dErrors.CodeTerminalState)
	require.Equal(t, 1, f.caller.count())
}

func TestExecuteBlockedWhileFrozen(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	index := passTransaction(t, f, ctx, addr(0x99))
	require.NoError(t, f.svc.Freeze(ctx, f.owners[0], f.account))

	err := f.svc.Execute(ctx, f.account, index)
	requireCode(t, err, dErrors.CodeInvalidState)
	require.Zero(t, f.caller.count())
}

// A failed external call rolls the executed marking back; the transaction
// can be executed again.
func TestExecuteRollsBackOnCallFailure(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	index := passTransaction(t, f, ctx, addr(0x99))

	f.caller.err = errors.New("dispatcher down")
	err := f.svc.Execute(ctx, f.account, index)
	requireCode(t, err, dErrors.CodeCallFailed)

	_, status, err := f.svc.GetTransaction(ctx, f.account, index)
	require.NoError(t, err)
	require.Equal(t, models.TxStatusPass, status)

	f.caller.err = nil
	require.NoError(t, f.svc.Execute(ctx, f.account, index))
}

// A reentrant execute issued from inside the external call is rejected by
// the in-flight guard.
func TestExecuteReentryBlocked(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	index := passTransaction(t, f, ctx, addr(0x99))

	var reentrantErr error
	f.caller.hook = func(ctx context.Context) {
		reentrantErr = f.svc.Execute(ctx, f.account, index)
	}
	require.NoError(t, f.svc.Execute(ctx, f.account, index))
	requireCode(t, reentrantErr, dErrors.CodeInvalidState)
	require.Equal(t, 1, f.caller.count())
}

// Self-call transactions apply admin payloads to the registry instead of
// issuing an external call.
func TestSelfCallWhitelistAddAndRemove(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	entry := addr(0x66)

	payload, err := models.AdminPayload{Op: models.AdminWhitelistAdd, Address: entry}.Encode()
	require.NoError(t, err)
	index := passPayload(t, f, ctx, f.account, payload)
	require.NoError(t, f.svc.Execute(ctx, f.account, index))
	require.Zero(t, f.caller.count())
	require.True(t, f.state(t).Account.IsWhitelisted(entry))
	require.Contains(t, f.actions(t), events.ActionWhitelistAdded)

	payload, err = models.AdminPayload{Op: models.AdminWhitelistRemove, Address: entry}.Encode()
	require.NoError(t, err)
	index = passPayload(t, f, ctx, f.account, payload)
	require.NoError(t, f.svc.Execute(ctx, f.account, index))
	require.False(t, f.state(t).Account.IsWhitelisted(entry))
}

func TestSelfCallGuardianReplace(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	newGuardian := addr(0x14)

	payload, err := models.AdminPayload{
		Op:             models.AdminGuardianReplace,
		ReplacedDigest: f.guardians[2].Digest(),
		NewDigest:      newGuardian.Digest(),
	}.Encode()
	require.NoError(t, err)

	index := passPayload(t, f, ctx, f.account, payload)
	require.NoError(t, f.svc.Execute(ctx, f.account, index))

	state := f.state(t)
	require.True(t, state.Account.IsGuardian(newGuardian))
	require.False(t, state.Account.IsGuardian(f.guardians[2]))
	require.Contains(t, f.actions(t), events.ActionGuardianReplaced)
}

func TestGuardianReplaceBlockedDuringRecovery(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	payload, err := models.AdminPayload{
		Op:             models.AdminGuardianReplace,
		ReplacedDigest: f.guardians[2].Digest(),
		NewDigest:      addr(0x14).Digest(),
	}.Encode()
	require.NoError(t, err)
	index := passPayload(t, f, ctx, f.account, payload)

	require.NoError(t, f.svc.ProposeRecovery(ctx, f.guardians[0], f.account, f.owners[2], addr(4)))

	err = f.svc.Execute(ctx, f.account, index)
	requireCode(t, err, dErrors.CodeInvalidState)

	// The failed execute leaves the transaction re-executable.
	_, status, err := f.svc.GetTransaction(ctx, f.account, index)
	require.NoError(t, err)
	require.Equal(t, models.TxStatusPass, status)
}

// passTransaction submits and confirms a transaction up to threshold.
func passTransaction(t *testing.T, f *fixture, ctx context.Context, target domain.Address) uint64 {
	t.Helper()
	return passPayload(t, f, ctx, target, nil)
}

func passPayload(t *testing.T, f *fixture, ctx context.Context, target domain.Address, payload []byte) uint64 {
	t.Helper()
	index, err := f.svc.Submit(ctx, f.owners[0], f.account, target, 1, payload)
	require.NoError(t, err)
	_, err = f.svc.Confirm(ctx, f.owners[0], f.account, index)
	require.NoError(t, err)
	status, err := f.svc.Confirm(ctx, f.owners[1], f.account, index)
	require.NoError(t, err)
	require.Equal(t, models.TxStatusPass, status)
	return index
}
