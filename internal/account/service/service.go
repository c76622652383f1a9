// Package service orchestrates the account operations: the proposal engine,
// the freeze controller, the recovery protocol, and the signed-request
// dispatcher. Every operation loads the account aggregate, mutates a copy
// under the account's lock, and persists it whole, so a failed operation
// never leaves partial state behind.
package service

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"acctgate/internal/account/models"
	"acctgate/internal/platform/metrics"
	"acctgate/pkg/domain"
	dErrors "acctgate/pkg/domain-errors"
	"acctgate/pkg/platform/events"
	"acctgate/pkg/platform/sentinel"
	"acctgate/pkg/requestcontext"
)

// defaultOverTimeLimit is the proposal deadline window when none is
// configured.
const defaultOverTimeLimit = 24 * time.Hour

// Store persists account aggregates. Get returns an isolated copy that the
// caller may mutate freely before Put.
type Store interface {
	Create(ctx context.Context, state *models.AccountState) error
	Get(ctx context.Context, account domain.Address) (*models.AccountState, error)
	Put(ctx context.Context, state *models.AccountState) error
}

// ExternalCaller issues the outbound call of an executed transaction. It is
// the only external effect in the package; ordering (state before call,
// rollback on failure) is enforced here, never by implementations.
type ExternalCaller interface {
	Call(ctx context.Context, target domain.Address, value uint64, payload []byte) error
}

// EventPublisher forwards the notification emitted by each mutating
// operation.
type EventPublisher interface {
	Emit(ctx context.Context, event events.Event) error
}

// NonceView mirrors the replay counter for relays. Advisory; failures are
// logged, never surfaced.
type NonceView interface {
	Publish(ctx context.Context, account domain.Address, nonce uint64) error
}

type Service struct {
	store         Store
	caller        ExternalCaller
	publisher     EventPublisher
	nonceView     NonceView
	logger        *slog.Logger
	metrics       *metrics.Metrics
	overTimeLimit time.Duration
	signedMaxAge  time.Duration

	tracer trace.Tracer
	locks  accountLocks
	flight inFlight
}

type Option func(*Service)

// WithLogger sets the service logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// WithExternalCaller sets the outbound call boundary used by Execute.
func WithExternalCaller(caller ExternalCaller) Option {
	return func(s *Service) { s.caller = caller }
}

// WithEventPublisher sets the notification sink.
func WithEventPublisher(publisher EventPublisher) Option {
	return func(s *Service) { s.publisher = publisher }
}

// WithNonceView sets the replay-counter mirror updated after each accepted
// signed action.
func WithNonceView(view NonceView) Option {
	return func(s *Service) { s.nonceView = view }
}

// WithMetrics sets the operation counters.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithOverTimeLimit sets the proposal deadline window.
func WithOverTimeLimit(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.overTimeLimit = d
		}
	}
}

// WithSignedRequestMaxAge caps how far in the future a signed request's
// expiry may lie. Zero leaves expiries uncapped.
func WithSignedRequestMaxAge(d time.Duration) Option {
	return func(s *Service) { s.signedMaxAge = d }
}

func NewService(store Store, opts ...Option) *Service {
	s := &Service{
		store:         store,
		logger:        slog.Default(),
		overTimeLimit: defaultOverTimeLimit,
		tracer:        otel.Tracer("acctgate/account"),
		flight:        newInFlight(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateAccount validates the initialization parameters and stores the new
// aggregate. All-or-nothing: any constraint violation rejects the whole
// initialization.
func (s *Service) CreateAccount(ctx context.Context, params models.InitParams) (*models.AccountState, error) {
	ctx, span := s.tracer.Start(ctx, "account.Create",
		trace.WithAttributes(attribute.String("account", params.Address.String())))
	defer span.End()

	account, err := models.NewAccount(params, requestcontext.Now(ctx).UTC())
	if err != nil {
		s.countErr("create", err)
		return nil, err
	}

	state := models.NewAccountState(account)
	if err := s.store.Create(ctx, state); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			err = dErrors.New(dErrors.CodeConflict, "account already exists")
		} else {
			err = dErrors.Wrap(err, dErrors.CodeInternal, "failed to create account")
		}
		s.countErr("create", err)
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.AccountsCreated.Inc()
	}
	s.countOp("create")
	s.emit(ctx, events.Event{
		Account: params.Address,
		Action:  events.ActionAccountCreated,
		Detail: map[string]string{
			"owners":    strconv.Itoa(len(account.Owners)),
			"guardians": strconv.Itoa(len(account.GuardianDigests)),
		},
	})
	return state, nil
}

// GetAccount returns the aggregate for the query surface.
func (s *Service) GetAccount(ctx context.Context, account domain.Address) (*models.AccountState, error) {
	state, err := s.store.Get(ctx, account)
	if err != nil {
		return nil, s.translateStoreErr(err)
	}
	return state, nil
}

// GetTransaction returns one ledger entry with its status computed at the
// request time.
func (s *Service) GetTransaction(ctx context.Context, account domain.Address, index uint64) (*models.Transaction, models.TxStatus, error) {
	state, err := s.store.Get(ctx, account)
	if err != nil {
		return nil, "", s.translateStoreErr(err)
	}
	tx := state.Transaction(index)
	if tx == nil {
		return nil, "", dErrors.New(dErrors.CodeNotFound, "no transaction at that index")
	}
	return tx, tx.Status(requestcontext.Now(ctx)), nil
}

// GetRecovery returns the in-flight recovery proposal.
func (s *Service) GetRecovery(ctx context.Context, account domain.Address) (*models.RecoveryProposal, error) {
	state, err := s.store.Get(ctx, account)
	if err != nil {
		return nil, s.translateStoreErr(err)
	}
	if !state.Account.IsRecovering {
		return nil, dErrors.New(dErrors.CodeNotFound, "no recovery in flight")
	}
	proposal := state.Account.Recovery
	return &proposal, nil
}

// HasConfirmed reports whether the owner confirmed the transaction.
func (s *Service) HasConfirmed(ctx context.Context, account domain.Address, index uint64, owner domain.Address) (bool, error) {
	state, err := s.store.Get(ctx, account)
	if err != nil {
		return false, s.translateStoreErr(err)
	}
	return state.HasConfirmed(index, owner), nil
}

// HasUnfreezeVote reports whether the owner voted in the current round.
func (s *Service) HasUnfreezeVote(ctx context.Context, account domain.Address, owner domain.Address) (bool, error) {
	state, err := s.store.Get(ctx, account)
	if err != nil {
		return false, s.translateStoreErr(err)
	}
	return state.HasUnfreezeVote(state.Account.UnfreezeRound, owner), nil
}

// HasRecoverySupport reports whether the guardian digest supported in the
// current round.
func (s *Service) HasRecoverySupport(ctx context.Context, account domain.Address, guardian domain.Digest) (bool, error) {
	state, err := s.store.Get(ctx, account)
	if err != nil {
		return false, s.translateStoreErr(err)
	}
	return state.HasRecoverySupport(state.Account.RecoverRound, guardian), nil
}

// update runs fn against the stored aggregate under the account lock and
// persists the mutated copy when fn succeeds. Events returned by fn are
// emitted only after the write commits.
func (s *Service) update(ctx context.Context, account domain.Address, fn func(ctx context.Context, state *models.AccountState) ([]events.Event, error)) error {
	return s.locks.run(ctx, account, func(ctx context.Context) error {
		state, err := s.store.Get(ctx, account)
		if err != nil {
			return s.translateStoreErr(err)
		}
		evs, err := fn(ctx, state)
		if err != nil {
			return err
		}
		if err := s.store.Put(ctx, state); err != nil {
			return s.translateStoreErr(err)
		}
		for _, ev := range evs {
			ev.Account = account
			s.emit(ctx, ev)
		}
		return nil
	})
}

func (s *Service) translateStoreErr(err error) error {
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.New(dErrors.CodeNotFound, "account not found")
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, "account store failure")
}

// emit forwards a notification, stamping the request correlation ID. Sink
// failures are logged; the state transition has already committed.
func (s *Service) emit(ctx context.Context, event events.Event) {
	if s.publisher == nil {
		return
	}
	event.RequestID = requestcontext.RequestID(ctx)
	if err := s.publisher.Emit(ctx, event); err != nil {
		s.logger.Warn("event emit failed",
			"action", event.Action,
			"account", event.Account.String(),
			"error", err,
		)
	}
}

func (s *Service) countOp(action string) {
	if s.metrics != nil {
		s.metrics.Operations.WithLabelValues(action).Inc()
	}
}

func (s *Service) countErr(action string, err error) {
	if s.metrics != nil {
		s.metrics.OperationErrors.WithLabelValues(action, string(dErrors.CodeOf(err))).Inc()
	}
}

// finish applies the operation counters and span status in one place.
func (s *Service) finish(span trace.Span, action string, err error) {
	if err != nil {
		span.RecordError(err)
		s.countErr(action, err)
		return
	}
	s.countOp(action)
}
