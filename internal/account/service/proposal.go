package service

import (
	"context"
	"errors"
	"strconv"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"acctgate/internal/account/models"
	"acctgate/pkg/domain"
	dErrors "acctgate/pkg/domain-errors"
	"acctgate/pkg/platform/events"
	"acctgate/pkg/requestcontext"
)

// Submit appends a new pending transaction on behalf of actor and returns
// its index.
func (s *Service) Submit(ctx context.Context, actor, account, target domain.Address, value uint64, payload []byte) (index uint64, err error) {
	ctx, span := s.tracer.Start(ctx, "account.Submit",
		trace.WithAttributes(attribute.String("account", account.String())))
	defer span.End()
	defer func() { s.finish(span, "submit", err) }()

	err = s.update(ctx, account, func(ctx context.Context, state *models.AccountState) ([]events.Event, error) {
		var evs []events.Event
		index, evs, err = s.submitState(ctx, state, actor, target, value, payload)
		return evs, err
	})
	return index, err
}

func (s *Service) submitState(ctx context.Context, state *models.AccountState, actor, target domain.Address, value uint64, payload []byte) (uint64, []events.Event, error) {
	if !state.Account.IsOwner(actor) {
		return 0, nil, dErrors.New(dErrors.CodeUnauthorized, "caller is not an owner")
	}
	if target.IsZero() {
		return 0, nil, dErrors.New(dErrors.CodeValidation, "target must not be zero")
	}
	if target == state.Account.Address {
		// Self-calls are admin operations; reject malformed payloads at
		// submission so quorum is never spent on an unexecutable entry.
		if _, err := models.ParseAdminPayload(payload); err != nil {
			return 0, nil, err
		}
	}

	now := requestcontext.Now(ctx)
	index := uint64(len(state.Transactions))
	state.Transactions = append(state.Transactions, models.Transaction{
		Index:       index,
		Target:      target,
		Value:       value,
		Payload:     append([]byte(nil), payload...),
		Deadline:    now.Add(s.overTimeLimit),
		SubmittedBy: actor,
		SubmittedAt: now,
	})

	return index, []events.Event{{
		Action:  events.ActionTxSubmitted,
		Actor:   actor.String(),
		TxIndex: &index,
		Detail: map[string]string{
			"target": target.String(),
			"value":  strconv.FormatUint(value, 10),
		},
	}}, nil
}

// Confirm records actor's confirmation of the transaction and returns the
// resulting computed status.
func (s *Service) Confirm(ctx context.Context, actor, account domain.Address, index uint64) (status models.TxStatus, err error) {
	ctx, span := s.tracer.Start(ctx, "account.Confirm",
		trace.WithAttributes(
			attribute.String("account", account.String()),
			attribute.Int64("index", int64(index)),
		))
	defer span.End()
	defer func() { s.finish(span, "confirm", err) }()

	err = s.update(ctx, account, func(ctx context.Context, state *models.AccountState) ([]events.Event, error) {
		var evs []events.Event
		status, evs, err = s.confirmState(ctx, state, actor, index)
		return evs, err
	})
	return status, err
}

func (s *Service) confirmState(ctx context.Context, state *models.AccountState, actor domain.Address, index uint64) (models.TxStatus, []events.Event, error) {
	if !state.Account.IsOwner(actor) {
		return "", nil, dErrors.New(dErrors.CodeUnauthorized, "caller is not an owner")
	}
	tx := state.Transaction(index)
	if tx == nil {
		return "", nil, dErrors.New(dErrors.CodeNotFound, "no transaction at that index")
	}

	now := requestcontext.Now(ctx)
	if tx.Terminal(now) {
		return "", nil, dErrors.New(dErrors.CodeTerminalState, "transaction is "+string(tx.Status(now)))
	}
	if state.HasConfirmed(index, actor) {
		return "", nil, dErrors.New(dErrors.CodeDuplicateVote, "owner already confirmed this transaction")
	}

	state.RecordConfirmation(index, actor)
	tx.ConfirmCount++

	evs := []events.Event{{
		Action:  events.ActionTxConfirmed,
		Actor:   actor.String(),
		TxIndex: &tx.Index,
		Detail:  map[string]string{"confirm_count": strconv.FormatUint(tx.ConfirmCount, 10)},
	}}

	// Whitelist membership is read at confirmation time, so a target
	// whitelisted after submission still fast-passes.
	if !tx.Passed && (tx.ConfirmCount >= state.Account.ConfirmThreshold || state.Account.IsWhitelisted(tx.Target)) {
		tx.Passed = true
		evs = append(evs, events.Event{
			Action:  events.ActionTxPassed,
			Actor:   actor.String(),
			TxIndex: &tx.Index,
		})
	}
	return tx.Status(now), evs, nil
}

// Execute runs a passed transaction. The transaction is marked executed and
// persisted before the external call is issued; a failed call rolls that
// marking back, so execute is all-or-nothing. Callable by any authenticated
// caller, membership is not required.
func (s *Service) Execute(ctx context.Context, account domain.Address, index uint64) (err error) {
	ctx, span := s.tracer.Start(ctx, "account.Execute",
		trace.WithAttributes(
			attribute.String("account", account.String()),
			attribute.Int64("index", int64(index)),
		))
	defer span.End()
	defer func() { s.finish(span, "execute", err) }()

	if !s.flight.enter(account) {
		err = dErrors.New(dErrors.CodeInvalidState, "an execution is already in flight")
		return err
	}

	var (
		target   domain.Address
		value    uint64
		payload  []byte
		selfCall bool
	)
	err = s.update(ctx, account, func(ctx context.Context, state *models.AccountState) ([]events.Event, error) {
		if state.Account.IsFreezing {
			return nil, dErrors.New(dErrors.CodeInvalidState, "account is frozen")
		}
		tx := state.Transaction(index)
		if tx == nil {
			return nil, dErrors.New(dErrors.CodeNotFound, "no transaction at that index")
		}

		now := requestcontext.Now(ctx)
		switch status := tx.Status(now); status {
		case models.TxStatusPass:
		case models.TxStatusPending:
			return nil, dErrors.New(dErrors.CodeInvalidState, "transaction has not passed")
		default:
			return nil, dErrors.New(dErrors.CodeTerminalState, "transaction is "+string(status))
		}

		target, value, payload = tx.Target, tx.Value, tx.Payload
		selfCall = target == account

		if selfCall {
			// Registry mutation replaces the external call; everything
			// commits in this single write.
			adminEvs, err := s.applyAdmin(state, payload)
			if err != nil {
				return nil, err
			}
			tx.Executed = true
			evs := append([]events.Event{{
				Action:  events.ActionTxExecuted,
				Actor:   account.String(),
				TxIndex: &tx.Index,
			}}, adminEvs...)
			return evs, nil
		}

		tx.Executed = true
		return nil, nil
	})
	if err != nil || selfCall {
		s.flight.exit(account)
		return err
	}

	// The executed marking is committed; the lock is released for the call
	// and the in-flight guard blocks reentry into this window.
	callErr := s.callExternal(ctx, target, value, payload)

	finishErr := s.update(ctx, account, func(ctx context.Context, state *models.AccountState) ([]events.Event, error) {
		tx := state.Transaction(index)
		if callErr != nil {
			tx.Executed = false
			return nil, nil
		}
		return []events.Event{{
			Action:  events.ActionTxExecuted,
			TxIndex: &tx.Index,
			Detail:  map[string]string{"target": target.String()},
		}}, nil
	})
	s.flight.exit(account)

	if callErr != nil {
		if finishErr != nil {
			s.logger.Error("execute rollback failed",
				"account", account.String(),
				"index", index,
				"error", finishErr,
			)
		}
		return dErrors.Wrap(callErr, dErrors.CodeCallFailed, "external call failed")
	}
	return finishErr
}

func (s *Service) callExternal(ctx context.Context, target domain.Address, value uint64, payload []byte) error {
	if s.caller == nil {
		return errors.New("no external caller configured")
	}
	err := s.caller.Call(ctx, target, value, payload)
	if s.metrics != nil {
		outcome := "success"
		if err != nil {
			outcome = "failure"
		}
		s.metrics.ExternalCalls.WithLabelValues(outcome).Inc()
	}
	return err
}

// applyAdmin interprets a self-call payload against the registry.
func (s *Service) applyAdmin(state *models.AccountState, payload []byte) ([]events.Event, error) {
	admin, err := models.ParseAdminPayload(payload)
	if err != nil {
		return nil, err
	}
	account := state.Account.Address

	switch admin.Op {
	case models.AdminWhitelistAdd:
		state.Account.AddWhitelist(admin.Address)
		return []events.Event{{
			Action: events.ActionWhitelistAdded,
			Actor:  account.String(),
			Detail: map[string]string{"address": admin.Address.String()},
		}}, nil

	case models.AdminWhitelistRemove:
		state.Account.RemoveWhitelist(admin.Address)
		return []events.Event{{
			Action: events.ActionWhitelistRemoved,
			Actor:  account.String(),
			Detail: map[string]string{"address": admin.Address.String()},
		}}, nil

	case models.AdminGuardianReplace:
		if state.Account.IsRecovering {
			return nil, dErrors.New(dErrors.CodeInvalidState, "guardian replacement is disallowed during recovery")
		}
		if !state.Account.IsGuardianDigest(admin.ReplacedDigest) {
			return nil, dErrors.New(dErrors.CodeValidation, "replaced digest is not a current guardian")
		}
		if state.Account.IsGuardianDigest(admin.NewDigest) {
			return nil, dErrors.New(dErrors.CodeValidation, "new digest is already a guardian")
		}
		state.Account.ReplaceGuardianDigest(admin.ReplacedDigest, admin.NewDigest)
		return []events.Event{{
			Action: events.ActionGuardianReplaced,
			Actor:  account.String(),
			Detail: map[string]string{
				"replaced": admin.ReplacedDigest.String(),
				"new":      admin.NewDigest.String(),
			},
		}}, nil
	}
	return nil, dErrors.New(dErrors.CodeValidation, "unknown self-call op "+string(admin.Op))
}
