package models

import (
	"acctgate/pkg/domain"
)

// AccountState is the full aggregate one operation reads and writes: the
// account, its ledger, and the vote records. Vote sets are two-level maps
// keyed by round (or transaction index); a round advance makes the old
// round's votes unreachable without clearing them.
type AccountState struct {
	Account      Account       `json:"account"`
	Transactions []Transaction `json:"transactions"`

	// Confirmations: transaction index → owner → confirmed.
	Confirmations map[uint64]map[domain.Address]bool `json:"confirmations"`

	// UnfreezeVotes: unfreeze round → owner → voted.
	UnfreezeVotes map[uint64]map[domain.Address]bool `json:"unfreeze_votes"`

	// RecoverySupport: recover round → guardian digest → supported.
	RecoverySupport map[uint64]map[domain.Digest]bool `json:"recovery_support"`
}

// NewAccountState wraps a freshly initialized account.
func NewAccountState(account *Account) *AccountState {
	return &AccountState{
		Account:         *account,
		Confirmations:   make(map[uint64]map[domain.Address]bool),
		UnfreezeVotes:   make(map[uint64]map[domain.Address]bool),
		RecoverySupport: make(map[uint64]map[domain.Digest]bool),
	}
}

// Transaction returns the ledger entry at index, or nil when out of range.
func (s *AccountState) Transaction(index uint64) *Transaction {
	if index >= uint64(len(s.Transactions)) {
		return nil
	}
	return &s.Transactions[index]
}

// HasConfirmed reports whether owner already confirmed the transaction.
func (s *AccountState) HasConfirmed(index uint64, owner domain.Address) bool {
	return s.Confirmations[index][owner]
}

// RecordConfirmation marks owner's confirmation of the transaction.
func (s *AccountState) RecordConfirmation(index uint64, owner domain.Address) {
	if s.Confirmations[index] == nil {
		s.Confirmations[index] = make(map[domain.Address]bool)
	}
	s.Confirmations[index][owner] = true
}

// HasUnfreezeVote reports whether owner voted in the current unfreeze round.
func (s *AccountState) HasUnfreezeVote(round uint64, owner domain.Address) bool {
	return s.UnfreezeVotes[round][owner]
}

// RecordUnfreezeVote marks owner's vote in the given round.
func (s *AccountState) RecordUnfreezeVote(round uint64, owner domain.Address) {
	if s.UnfreezeVotes[round] == nil {
		s.UnfreezeVotes[round] = make(map[domain.Address]bool)
	}
	s.UnfreezeVotes[round][owner] = true
}

// HasRecoverySupport reports whether the guardian supported in the round.
func (s *AccountState) HasRecoverySupport(round uint64, guardian domain.Digest) bool {
	return s.RecoverySupport[round][guardian]
}

// RecordRecoverySupport marks the guardian's support in the given round.
func (s *AccountState) RecordRecoverySupport(round uint64, guardian domain.Digest) {
	if s.RecoverySupport[round] == nil {
		s.RecoverySupport[round] = make(map[domain.Digest]bool)
	}
	s.RecoverySupport[round][guardian] = true
}

// Clone deep-copies the state. Operations mutate a clone and persist it
// whole, so a failed operation leaves the stored state untouched.
func (s *AccountState) Clone() *AccountState {
	out := &AccountState{
		Account:         s.Account,
		Transactions:    make([]Transaction, len(s.Transactions)),
		Confirmations:   make(map[uint64]map[domain.Address]bool, len(s.Confirmations)),
		UnfreezeVotes:   make(map[uint64]map[domain.Address]bool, len(s.UnfreezeVotes)),
		RecoverySupport: make(map[uint64]map[domain.Digest]bool, len(s.RecoverySupport)),
	}

	out.Account.Owners = append([]domain.Address{}, s.Account.Owners...)
	out.Account.GuardianDigests = append([]domain.Digest{}, s.Account.GuardianDigests...)
	out.Account.Whitelist = append([]domain.Address{}, s.Account.Whitelist...)

	copy(out.Transactions, s.Transactions)
	for i := range out.Transactions {
		out.Transactions[i].Payload = append([]byte(nil), s.Transactions[i].Payload...)
	}

	for index, votes := range s.Confirmations {
		inner := make(map[domain.Address]bool, len(votes))
		for k, v := range votes {
			inner[k] = v
		}
		out.Confirmations[index] = inner
	}
	for round, votes := range s.UnfreezeVotes {
		inner := make(map[domain.Address]bool, len(votes))
		for k, v := range votes {
			inner[k] = v
		}
		out.UnfreezeVotes[round] = inner
	}
	for round, votes := range s.RecoverySupport {
		inner := make(map[domain.Digest]bool, len(votes))
		for k, v := range votes {
			inner[k] = v
		}
		out.RecoverySupport[round] = inner
	}
	return out
}
