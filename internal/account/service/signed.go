package service

import (
	"context"
	"encoding/json"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"acctgate/internal/account/gateway"
	"acctgate/internal/account/models"
	"acctgate/pkg/domain"
	dErrors "acctgate/pkg/domain-errors"
	"acctgate/pkg/platform/events"
	"acctgate/pkg/requestcontext"
)

// SubmitParams are the signed parameters for a submit action.
type SubmitParams struct {
	Target  domain.Address `json:"target"`
	Value   uint64         `json:"value"`
	Payload []byte         `json:"payload,omitempty"`
}

// ConfirmParams are the signed parameters for a confirm action.
type ConfirmParams struct {
	Index uint64 `json:"index"`
}

// RecoveryParams are the signed parameters for a propose-recovery action.
type RecoveryParams struct {
	ReplacedOwner domain.Address `json:"replaced_owner"`
	NewOwner      domain.Address `json:"new_owner"`
}

// SignedResult reports what a signed request did.
type SignedResult struct {
	Signer domain.Address `json:"signer"`
	Nonce  uint64         `json:"nonce"`

	// TxIndex is set for submit actions.
	TxIndex *uint64 `json:"tx_index,omitempty"`

	// Status is set for confirm actions.
	Status models.TxStatus `json:"status,omitempty"`
}

// ExecuteSigned verifies the envelope's signature and expiry, resolves the
// signer, and applies the identical state transition the direct path would
// apply for that signer. The nonce must equal the account's current counter;
// it increments atomically with the transition, so a signed request is
// single-use and signed requests commit in the order they were signed.
func (s *Service) ExecuteSigned(ctx context.Context, account domain.Address, req gateway.SignedRequest) (result SignedResult, err error) {
	ctx, span := s.tracer.Start(ctx, "account.ExecuteSigned",
		trace.WithAttributes(
			attribute.String("account", account.String()),
			attribute.String("action", string(req.Action)),
		))
	defer span.End()
	defer func() {
		s.finish(span, "signed."+string(req.Action), err)
		if s.metrics != nil {
			outcome := "accepted"
			if err != nil {
				outcome = "rejected"
			}
			s.metrics.SignedRequests.WithLabelValues(outcome).Inc()
		}
	}()

	now := requestcontext.Now(ctx)
	if s.signedMaxAge > 0 && req.Expiry.After(now.Add(s.signedMaxAge)) {
		err = dErrors.New(dErrors.CodeValidation, "expiry is too far in the future")
		return SignedResult{}, err
	}

	signer, err := gateway.Verify(account, req, now)
	if err != nil {
		return SignedResult{}, err
	}
	result.Signer = signer

	var nonce uint64
	err = s.update(ctx, account, func(ctx context.Context, state *models.AccountState) ([]events.Event, error) {
		if req.Nonce != state.Account.Nonce {
			return nil, dErrors.New(dErrors.CodeReplay, "nonce does not match the account counter")
		}

		evs, err := s.dispatchSigned(ctx, state, signer, req, &result)
		if err != nil {
			return nil, err
		}

		state.Account.Nonce++
		nonce = state.Account.Nonce
		return evs, nil
	})
	if err != nil {
		return SignedResult{}, err
	}
	result.Nonce = nonce

	s.publishNonce(ctx, account, nonce)
	return result, nil
}

func (s *Service) dispatchSigned(ctx context.Context, state *models.AccountState, signer domain.Address, req gateway.SignedRequest, result *SignedResult) ([]events.Event, error) {
	switch req.Action {
	case gateway.ActionSubmit:
		var p SubmitParams
		if err := decodeParams(req.Params, &p); err != nil {
			return nil, err
		}
		index, evs, err := s.submitState(ctx, state, signer, p.Target, p.Value, p.Payload)
		if err != nil {
			return nil, err
		}
		result.TxIndex = &index
		return evs, nil

	case gateway.ActionConfirm:
		var p ConfirmParams
		if err := decodeParams(req.Params, &p); err != nil {
			return nil, err
		}
		status, evs, err := s.confirmState(ctx, state, signer, p.Index)
		if err != nil {
			return nil, err
		}
		result.Status = status
		return evs, nil

	case gateway.ActionFreeze:
		return s.freezeState(state, signer)

	case gateway.ActionUnfreeze:
		return s.unfreezeState(state, signer)

	case gateway.ActionProposeRecovery:
		var p RecoveryParams
		if err := decodeParams(req.Params, &p); err != nil {
			return nil, err
		}
		return s.proposeRecoveryState(state, signer, p.ReplacedOwner, p.NewOwner)

	case gateway.ActionSupportRecovery:
		return s.supportRecoveryState(state, signer)

	case gateway.ActionExecuteRecovery:
		return s.executeRecoveryState(state, signer)
	}
	return nil, dErrors.New(dErrors.CodeValidation, "unknown action "+string(req.Action))
}

func decodeParams(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		return dErrors.New(dErrors.CodeValidation, "action requires parameters")
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return dErrors.Wrap(err, dErrors.CodeValidation, "invalid action parameters")
	}
	return nil
}

// publishNonce mirrors the counter for relays. Best-effort.
func (s *Service) publishNonce(ctx context.Context, account domain.Address, nonce uint64) {
	if s.nonceView == nil {
		return
	}
	if err := s.nonceView.Publish(ctx, account, nonce); err != nil {
		s.logger.Warn("nonce view publish failed",
			"account", account.String(),
			"nonce", nonce,
			"error", err,
		)
	}
}
