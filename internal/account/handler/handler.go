// Package handler exposes the account operations over HTTP. It decodes and
// validates the wire shapes, resolves the acting address placed in context
// by the auth middleware, and translates coded errors to statuses; all
// decisions live in the service.
package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"acctgate/internal/account/gateway"
	"acctgate/internal/account/models"
	"acctgate/internal/account/service"
	"acctgate/internal/platform/metrics"
	"acctgate/internal/platform/middleware"
	"acctgate/pkg/domain"
	dErrors "acctgate/pkg/domain-errors"
	"acctgate/pkg/platform/httputil"
	"acctgate/pkg/requestcontext"
)

// Service is the account operation surface the handler needs.
type Service interface {
	CreateAccount(ctx context.Context, params models.InitParams) (*models.AccountState, error)
	GetAccount(ctx context.Context, account domain.Address) (*models.AccountState, error)
	GetTransaction(ctx context.Context, account domain.Address, index uint64) (*models.Transaction, models.TxStatus, error)
	GetRecovery(ctx context.Context, account domain.Address) (*models.RecoveryProposal, error)
	HasConfirmed(ctx context.Context, account domain.Address, index uint64, owner domain.Address) (bool, error)
	HasUnfreezeVote(ctx context.Context, account domain.Address, owner domain.Address) (bool, error)
	HasRecoverySupport(ctx context.Context, account domain.Address, guardian domain.Digest) (bool, error)

	Submit(ctx context.Context, actor, account, target domain.Address, value uint64, payload []byte) (uint64, error)
	Confirm(ctx context.Context, actor, account domain.Address, index uint64) (models.TxStatus, error)
	Execute(ctx context.Context, account domain.Address, index uint64) error
	Freeze(ctx context.Context, actor, account domain.Address) error
	Unfreeze(ctx context.Context, actor, account domain.Address) error
	ProposeRecovery(ctx context.Context, actor, account, replacedOwner, newOwner domain.Address) error
	SupportRecovery(ctx context.Context, actor, account domain.Address) error
	ExecuteRecovery(ctx context.Context, actor, account domain.Address) error
	ExecuteSigned(ctx context.Context, account domain.Address, req gateway.SignedRequest) (service.SignedResult, error)
}

// Handler handles the account endpoints.
type Handler struct {
	logger       *slog.Logger
	accounts     Service
	metrics      *metrics.Metrics
	jwtValidator middleware.JWTValidator
}

// New creates a new account Handler.
func New(
	accounts Service,
	logger *slog.Logger,
	metrics *metrics.Metrics,
	jwtValidator middleware.JWTValidator) *Handler {
	return &Handler{
		logger:       logger,
		accounts:     accounts,
		metrics:      metrics,
		jwtValidator: jwtValidator,
	}
}

// Register registers the account routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	router := chi.NewRouter()
	router.Use(middleware.Recovery(h.logger))
	router.Use(middleware.RequestID)
	router.Use(middleware.Logger(h.logger))
	router.Use(middleware.Timeout(30 * time.Second))
	router.Use(middleware.ContentTypeJSON)
	if h.metrics != nil {
		router.Use(middleware.Latency(h.metrics))
	}
	router.Use(middleware.RequireAuth(h.jwtValidator, h.logger))

	router.Post("/accounts", h.handleCreateAccount)
	router.Route("/accounts/{addr}", func(r chi.Router) {
		r.Get("/", h.handleGetAccount)

		r.Post("/transactions", h.handleSubmit)
		r.Get("/transactions/{index}", h.handleGetTransaction)
		r.Post("/transactions/{index}/confirm", h.handleConfirm)
		r.Post("/transactions/{index}/execute", h.handleExecute)

		r.Post("/freeze", h.handleFreeze)
		r.Post("/unfreeze", h.handleUnfreeze)

		r.Get("/recovery", h.handleGetRecovery)
		r.Post("/recovery", h.handleProposeRecovery)
		r.Post("/recovery/support", h.handleSupportRecovery)
		r.Post("/recovery/execute", h.handleExecuteRecovery)

		r.Post("/signed", h.handleSigned)

		r.Get("/confirmations/{index}/{owner}", h.handleHasConfirmed)
		r.Get("/unfreeze-votes/{owner}", h.handleHasUnfreezeVote)
		r.Get("/recovery-support/{digest}", h.handleHasRecoverySupport)
	})

	r.Mount("/", router)
}

func (h *Handler) handleCreateAccount(w http.ResponseWriter, r *http.Request) {
	var params models.InitParams
	if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	state, err := h.accounts.CreateAccount(r.Context(), params)
	if err != nil {
		h.writeServiceError(w, r, "create account", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, newAccountResponse(state))
}

func (h *Handler) handleGetAccount(w http.ResponseWriter, r *http.Request) {
	account, ok := h.pathAddress(w, r, "addr")
	if !ok {
		return
	}
	state, err := h.accounts.GetAccount(r.Context(), account)
	if err != nil {
		h.writeServiceError(w, r, "get account", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, newAccountResponse(state))
}

func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	account, ok := h.pathAddress(w, r, "addr")
	if !ok {
		return
	}
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}

	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	index, err := h.accounts.Submit(r.Context(), actor, account, req.Target, req.Value, req.Payload)
	if err != nil {
		h.writeServiceError(w, r, "submit transaction", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, submitResponse{Index: index})
}

func (h *Handler) handleGetTransaction(w http.ResponseWriter, r *http.Request) {
	account, ok := h.pathAddress(w, r, "addr")
	if !ok {
		return
	}
	index, ok := h.pathIndex(w, r)
	if !ok {
		return
	}

	tx, status, err := h.accounts.GetTransaction(r.Context(), account, index)
	if err != nil {
		h.writeServiceError(w, r, "get transaction", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, newTransactionResponse(tx, status))
}

func (h *Handler) handleConfirm(w http.ResponseWriter, r *http.Request) {
	account, ok := h.pathAddress(w, r, "addr")
	if !ok {
		return
	}
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	index, ok := h.pathIndex(w, r)
	if !ok {
		return
	}

	status, err := h.accounts.Confirm(r.Context(), actor, account, index)
	if err != nil {
		h.writeServiceError(w, r, "confirm transaction", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, confirmResponse{Index: index, Status: status})
}

func (h *Handler) handleExecute(w http.ResponseWriter, r *http.Request) {
	account, ok := h.pathAddress(w, r, "addr")
	if !ok {
		return
	}
	index, ok := h.pathIndex(w, r)
	if !ok {
		return
	}

	if err := h.accounts.Execute(r.Context(), account, index); err != nil {
		h.writeServiceError(w, r, "execute transaction", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, confirmResponse{Index: index, Status: models.TxStatusExecuted})
}

func (h *Handler) handleFreeze(w http.ResponseWriter, r *http.Request) {
	h.handleOwnerAction(w, r, "freeze account", h.accounts.Freeze)
}

func (h *Handler) handleUnfreeze(w http.ResponseWriter, r *http.Request) {
	h.handleOwnerAction(w, r, "unfreeze account", h.accounts.Unfreeze)
}

func (h *Handler) handleSupportRecovery(w http.ResponseWriter, r *http.Request) {
	h.handleOwnerAction(w, r, "support recovery", h.accounts.SupportRecovery)
}

func (h *Handler) handleExecuteRecovery(w http.ResponseWriter, r *http.Request) {
	h.handleOwnerAction(w, r, "execute recovery", h.accounts.ExecuteRecovery)
}

// handleOwnerAction covers the bodyless actor-plus-account operations.
func (h *Handler) handleOwnerAction(w http.ResponseWriter, r *http.Request, op string, fn func(ctx context.Context, actor, account domain.Address) error) {
	account, ok := h.pathAddress(w, r, "addr")
	if !ok {
		return
	}
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	if err := fn(r.Context(), actor, account); err != nil {
		h.writeServiceError(w, r, op, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleGetRecovery(w http.ResponseWriter, r *http.Request) {
	account, ok := h.pathAddress(w, r, "addr")
	if !ok {
		return
	}
	proposal, err := h.accounts.GetRecovery(r.Context(), account)
	if err != nil {
		h.writeServiceError(w, r, "get recovery", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, proposal)
}

func (h *Handler) handleProposeRecovery(w http.ResponseWriter, r *http.Request) {
	account, ok := h.pathAddress(w, r, "addr")
	if !ok {
		return
	}
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}

	var req proposeRecoveryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	if err := h.accounts.ProposeRecovery(r.Context(), actor, account, req.ReplacedOwner, req.NewOwner); err != nil {
		h.writeServiceError(w, r, "propose recovery", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleSigned(w http.ResponseWriter, r *http.Request) {
	account, ok := h.pathAddress(w, r, "addr")
	if !ok {
		return
	}

	var req gateway.SignedRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	result, err := h.accounts.ExecuteSigned(r.Context(), account, req)
	if err != nil {
		h.writeServiceError(w, r, "signed request", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, result)
}

func (h *Handler) handleHasConfirmed(w http.ResponseWriter, r *http.Request) {
	account, ok := h.pathAddress(w, r, "addr")
	if !ok {
		return
	}
	index, ok := h.pathIndex(w, r)
	if !ok {
		return
	}
	owner, ok := h.pathAddress(w, r, "owner")
	if !ok {
		return
	}

	confirmed, err := h.accounts.HasConfirmed(r.Context(), account, index, owner)
	if err != nil {
		h.writeServiceError(w, r, "confirmation lookup", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, predicateResponse{Result: confirmed})
}

func (h *Handler) handleHasUnfreezeVote(w http.ResponseWriter, r *http.Request) {
	account, ok := h.pathAddress(w, r, "addr")
	if !ok {
		return
	}
	owner, ok := h.pathAddress(w, r, "owner")
	if !ok {
		return
	}

	voted, err := h.accounts.HasUnfreezeVote(r.Context(), account, owner)
	if err != nil {
		h.writeServiceError(w, r, "unfreeze vote lookup", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, predicateResponse{Result: voted})
}

func (h *Handler) handleHasRecoverySupport(w http.ResponseWriter, r *http.Request) {
	account, ok := h.pathAddress(w, r, "addr")
	if !ok {
		return
	}
	digest, err := domain.ParseDigest(chi.URLParam(r, "digest"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid guardian digest"))
		return
	}

	supported, err := h.accounts.HasRecoverySupport(r.Context(), account, digest)
	if err != nil {
		h.writeServiceError(w, r, "recovery support lookup", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, predicateResponse{Result: supported})
}

// actor reads the authenticated address set by RequireAuth.
func (h *Handler) actor(w http.ResponseWriter, r *http.Request) (domain.Address, bool) {
	actor := requestcontext.Actor(r.Context())
	if actor.IsZero() {
		// Unreachable when RequireAuth is mounted.
		h.logger.ErrorContext(r.Context(), "actor missing from context despite auth middleware")
		httputil.WriteError(w, dErrors.New(dErrors.CodeInternal, "authentication context error"))
		return domain.ZeroAddress, false
	}
	return actor, true
}

func (h *Handler) pathAddress(w http.ResponseWriter, r *http.Request, param string) (domain.Address, bool) {
	addr, err := domain.ParseAddress(chi.URLParam(r, param))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid address in path"))
		return domain.ZeroAddress, false
	}
	return addr, true
}

func (h *Handler) pathIndex(w http.ResponseWriter, r *http.Request) (uint64, bool) {
	index, err := strconv.ParseUint(chi.URLParam(r, "index"), 10, 64)
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid transaction index"))
		return 0, false
	}
	return index, true
}

func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, op string, err error) {
	if dErrors.HasCode(err, dErrors.CodeInternal) {
		h.logger.ErrorContext(r.Context(), op+" failed", "error", err)
	} else {
		h.logger.WarnContext(r.Context(), op+" rejected", "error", err)
	}
	httputil.WriteError(w, err)
}
