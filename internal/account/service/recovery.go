package service

import (
	"context"
	"strconv"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"acctgate/internal/account/models"
	"acctgate/pkg/domain"
	dErrors "acctgate/pkg/domain-errors"
	"acctgate/pkg/platform/events"
)

// ProposeRecovery opens the singleton recovery proposal. Guardians act
// through their identity digest; proposing is the moment a guardian reveals
// itself.
func (s *Service) ProposeRecovery(ctx context.Context, actor, account, replacedOwner, newOwner domain.Address) (err error) {
	ctx, span := s.tracer.Start(ctx, "account.ProposeRecovery",
		trace.WithAttributes(attribute.String("account", account.String())))
	defer span.End()
	defer func() { s.finish(span, "propose_recovery", err) }()

	err = s.update(ctx, account, func(ctx context.Context, state *models.AccountState) ([]events.Event, error) {
		evs, err := s.proposeRecoveryState(state, actor, replacedOwner, newOwner)
		return evs, err
	})
	return err
}

func (s *Service) proposeRecoveryState(state *models.AccountState, actor, replacedOwner, newOwner domain.Address) ([]events.Event, error) {
	if !state.Account.IsGuardian(actor) {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "caller is not a guardian")
	}
	if state.Account.IsRecovering {
		return nil, dErrors.New(dErrors.CodeInvalidState, "a recovery is already in flight")
	}
	if newOwner.IsZero() {
		return nil, dErrors.New(dErrors.CodeValidation, "new owner must not be zero")
	}
	if state.Account.IsOwner(newOwner) {
		return nil, dErrors.New(dErrors.CodeValidation, "new owner is already an owner")
	}
	if !state.Account.IsOwner(replacedOwner) {
		return nil, dErrors.New(dErrors.CodeValidation, "replaced owner is not a current owner")
	}

	state.Account.IsRecovering = true
	state.Account.Recovery = models.RecoveryProposal{
		ReplacedOwner: replacedOwner,
		NewOwner:      newOwner,
	}
	return []events.Event{{
		Action: events.ActionRecoveryProposed,
		Actor:  actor.String(),
		Round:  state.Account.RecoverRound,
		Detail: map[string]string{
			"replaced_owner": replacedOwner.String(),
			"new_owner":      newOwner.String(),
		},
	}}, nil
}

// SupportRecovery records the guardian's support in the current round.
func (s *Service) SupportRecovery(ctx context.Context, actor, account domain.Address) (err error) {
	ctx, span := s.tracer.Start(ctx, "account.SupportRecovery",
		trace.WithAttributes(attribute.String("account", account.String())))
	defer span.End()
	defer func() { s.finish(span, "support_recovery", err) }()

	err = s.update(ctx, account, func(ctx context.Context, state *models.AccountState) ([]events.Event, error) {
		evs, err := s.supportRecoveryState(state, actor)
		return evs, err
	})
	return err
}

func (s *Service) supportRecoveryState(state *models.AccountState, actor domain.Address) ([]events.Event, error) {
	digest := actor.Digest()
	if !state.Account.IsGuardianDigest(digest) {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "caller is not a guardian")
	}
	if !state.Account.IsRecovering {
		return nil, dErrors.New(dErrors.CodeInvalidState, "no recovery in flight")
	}

	round := state.Account.RecoverRound
	if state.HasRecoverySupport(round, digest) {
		return nil, dErrors.New(dErrors.CodeDuplicateVote, "guardian already supported this round")
	}
	state.RecordRecoverySupport(round, digest)
	state.Account.Recovery.SupportCount++

	return []events.Event{{
		Action: events.ActionRecoverySupport,
		Actor:  digest.String(),
		Round:  round,
		Detail: map[string]string{"support_count": strconv.FormatUint(state.Account.Recovery.SupportCount, 10)},
	}}, nil
}

// ExecuteRecovery applies the proposal once support reaches the recover
// threshold: the replaced owner is swapped for the new one, the proposal is
// zeroed, and the round advances.
func (s *Service) ExecuteRecovery(ctx context.Context, actor, account domain.Address) (err error) {
	ctx, span := s.tracer.Start(ctx, "account.ExecuteRecovery",
		trace.WithAttributes(attribute.String("account", account.String())))
	defer span.End()
	defer func() { s.finish(span, "execute_recovery", err) }()

	err = s.update(ctx, account, func(ctx context.Context, state *models.AccountState) ([]events.Event, error) {
		evs, err := s.executeRecoveryState(state, actor)
		return evs, err
	})
	return err
}

func (s *Service) executeRecoveryState(state *models.AccountState, actor domain.Address) ([]events.Event, error) {
	if !state.Account.IsOwner(actor) {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "caller is not an owner")
	}
	if !state.Account.IsRecovering {
		return nil, dErrors.New(dErrors.CodeInvalidState, "no recovery in flight")
	}
	if state.Account.Recovery.SupportCount < state.Account.RecoverThreshold {
		return nil, dErrors.New(dErrors.CodeQuorumNotMet, "recovery support below threshold")
	}

	proposal := state.Account.Recovery
	round := state.Account.RecoverRound

	state.Account.ReplaceOwner(proposal.ReplacedOwner, proposal.NewOwner)
	state.Account.IsRecovering = false
	state.Account.RecoverRound++
	state.Account.Recovery = models.RecoveryProposal{}

	return []events.Event{{
		Action: events.ActionRecoveryExecuted,
		Actor:  actor.String(),
		Round:  round,
		Detail: map[string]string{
			"replaced_owner": proposal.ReplacedOwner.String(),
			"new_owner":      proposal.NewOwner.String(),
		},
	}}, nil
}
