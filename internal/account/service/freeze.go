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

// Freeze halts execution for the account. A single owner suffices and the
// operation is idempotent: freezing a frozen account succeeds.
func (s *Service) Freeze(ctx context.Context, actor, account domain.Address) (err error) {
	ctx, span := s.tracer.Start(ctx, "account.Freeze",
		trace.WithAttributes(attribute.String("account", account.String())))
	defer span.End()
	defer func() { s.finish(span, "freeze", err) }()

	err = s.update(ctx, account, func(ctx context.Context, state *models.AccountState) ([]events.Event, error) {
		evs, err := s.freezeState(state, actor)
		return evs, err
	})
	return err
}

func (s *Service) freezeState(state *models.AccountState, actor domain.Address) ([]events.Event, error) {
	if !state.Account.IsOwner(actor) {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "caller is not an owner")
	}
	state.Account.IsFreezing = true
	return []events.Event{{
		Action: events.ActionFrozen,
		Actor:  actor.String(),
		Round:  state.Account.UnfreezeRound,
	}}, nil
}

// Unfreeze records actor's vote in the current round. When the round
// reaches confirmThreshold distinct votes the account thaws and the round
// advances, which discards the old round's votes without clearing them.
func (s *Service) Unfreeze(ctx context.Context, actor, account domain.Address) (err error) {
	ctx, span := s.tracer.Start(ctx, "account.Unfreeze",
		trace.WithAttributes(attribute.String("account", account.String())))
	defer span.End()
	defer func() { s.finish(span, "unfreeze", err) }()

	err = s.update(ctx, account, func(ctx context.Context, state *models.AccountState) ([]events.Event, error) {
		evs, err := s.unfreezeState(state, actor)
		return evs, err
	})
	return err
}

func (s *Service) unfreezeState(state *models.AccountState, actor domain.Address) ([]events.Event, error) {
	if !state.Account.IsOwner(actor) {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "caller is not an owner")
	}
	if !state.Account.IsFreezing {
		return nil, dErrors.New(dErrors.CodeInvalidState, "account is not frozen")
	}

	round := state.Account.UnfreezeRound
	if state.HasUnfreezeVote(round, actor) {
		return nil, dErrors.New(dErrors.CodeDuplicateVote, "owner already voted this round")
	}
	state.RecordUnfreezeVote(round, actor)
	state.Account.UnfreezeCounter++

	evs := []events.Event{{
		Action: events.ActionUnfreezeVoted,
		Actor:  actor.String(),
		Round:  round,
		Detail: map[string]string{"votes": strconv.FormatUint(state.Account.UnfreezeCounter, 10)},
	}}

	if state.Account.UnfreezeCounter >= state.Account.ConfirmThreshold {
		state.Account.IsFreezing = false
		state.Account.UnfreezeRound++
		state.Account.UnfreezeCounter = 0
		evs = append(evs, events.Event{
			Action: events.ActionUnfrozen,
			Actor:  actor.String(),
			Round:  round,
		})
	}
	return evs, nil
}
