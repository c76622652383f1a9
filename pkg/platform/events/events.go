// Package events emits the structured notifications produced by every
// mutating account operation. Domain logic only sees the Publisher; sinks
// (memory for tests and queries, kafka for the external relay/indexer) hang
// off the Store interface so they can fan out without touching services.
package events

import (
	"context"
	"time"

	"acctgate/pkg/domain"
)

// Action identifies what happened. Values are stable wire identifiers
// consumed by the relay and indexer.
type Action string

const (
	ActionAccountCreated   Action = "account_created"
	ActionTxSubmitted      Action = "transaction_submitted"
	ActionTxConfirmed      Action = "transaction_confirmed"
	ActionTxPassed         Action = "transaction_passed"
	ActionTxExecuted       Action = "transaction_executed"
	ActionFrozen           Action = "account_frozen"
	ActionUnfreezeVoted    Action = "unfreeze_voted"
	ActionUnfrozen         Action = "account_unfrozen"
	ActionRecoveryProposed Action = "recovery_proposed"
	ActionRecoverySupport  Action = "recovery_supported"
	ActionRecoveryExecuted Action = "recovery_executed"
	ActionWhitelistAdded   Action = "whitelist_added"
	ActionWhitelistRemoved Action = "whitelist_removed"
	ActionGuardianReplaced Action = "guardian_replaced"
)

// Event is one notification. Keep it transport-agnostic so stores and sinks
// can fan out.
type Event struct {
	ID        string         `json:"id"`
	Timestamp time.Time      `json:"timestamp"`
	Account   domain.Address `json:"account"`
	Action    Action         `json:"action"`

	// Actor is the participant that caused the transition: an owner or the
	// account itself for self-call admin operations. Guardians appear only
	// as digests, never as addresses.
	Actor string `json:"actor,omitempty"`

	// TxIndex is set for ledger events; nil otherwise.
	TxIndex *uint64 `json:"tx_index,omitempty"`

	// Round is set for freeze/recovery round events.
	Round uint64 `json:"round,omitempty"`

	// Detail carries action-specific values (counts, targets, digests) as
	// printable strings.
	Detail map[string]string `json:"detail,omitempty"`

	// RequestID correlates the event with the HTTP request that caused it.
	RequestID string `json:"request_id,omitempty"`
}

// Store persists or forwards events.
type Store interface {
	Append(ctx context.Context, event Event) error
	ListByAccount(ctx context.Context, account domain.Address) ([]Event, error)
}
