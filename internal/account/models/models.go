// Package models defines the account aggregate: membership registry,
// transaction ledger entries, freeze/recovery rounds, and the replay
// counter. Behavior that depends only on stored fields plus the current time
// (computed transaction status, membership predicates) lives here so the
// service layer stays orchestration.
package models

import (
	"time"

	"acctgate/pkg/domain"
	dErrors "acctgate/pkg/domain-errors"
)

// TxStatus is the computed lifecycle state of a ledger transaction.
type TxStatus string

const (
	TxStatusPending  TxStatus = "PENDING"
	TxStatusPass     TxStatus = "PASS"
	TxStatusExecuted TxStatus = "EXECUTED"
	TxStatusOvertime TxStatus = "OVERTIME"
)

// Transaction is one append-only ledger entry. Status is not stored: it is
// computed from Executed/Passed/Deadline and the current time, so OVERTIME
// needs no background scheduler. Executed is sticky; once set the other
// fields stop mattering.
type Transaction struct {
	Index        uint64         `json:"index"`
	Target       domain.Address `json:"target"`
	Value        uint64         `json:"value"`
	Payload      []byte         `json:"payload,omitempty"`
	ConfirmCount uint64         `json:"confirm_count"`
	Deadline     time.Time      `json:"deadline"`
	Passed       bool           `json:"passed"`
	Executed     bool           `json:"executed"`
	SubmittedBy  domain.Address `json:"submitted_by"`
	SubmittedAt  time.Time      `json:"submitted_at"`
}

// Status computes the transaction status at the given time. EXECUTED wins
// over OVERTIME: a transaction executed before its deadline stays EXECUTED
// forever.
func (t Transaction) Status(now time.Time) TxStatus {
	switch {
	case t.Executed:
		return TxStatusExecuted
	case now.After(t.Deadline):
		return TxStatusOvertime
	case t.Passed:
		return TxStatusPass
	default:
		return TxStatusPending
	}
}

// Terminal reports whether the transaction can no longer change state.
func (t Transaction) Terminal(now time.Time) bool {
	s := t.Status(now)
	return s == TxStatusExecuted || s == TxStatusOvertime
}

// RecoveryProposal is the singleton in-flight recovery. Zeroed when recovery
// executes.
type RecoveryProposal struct {
	ReplacedOwner domain.Address `json:"replaced_owner"`
	NewOwner      domain.Address `json:"new_owner"`
	SupportCount  uint64         `json:"support_count"`
}

// Account is the membership registry plus the freeze/recovery machines and
// the replay counter for signed requests.
type Account struct {
	Address          domain.Address   `json:"address"`
	Owners           []domain.Address `json:"owners"`
	ConfirmThreshold uint64           `json:"confirm_threshold"`
	GuardianDigests  []domain.Digest  `json:"guardian_digests"`
	RecoverThreshold uint64           `json:"recover_threshold"`
	Whitelist        []domain.Address `json:"whitelist,omitempty"`

	IsFreezing      bool   `json:"is_freezing"`
	UnfreezeRound   uint64 `json:"unfreeze_round"`
	UnfreezeCounter uint64 `json:"unfreeze_counter"`

	IsRecovering bool             `json:"is_recovering"`
	RecoverRound uint64           `json:"recover_round"`
	Recovery     RecoveryProposal `json:"recovery"`

	// Nonce is the replay counter for signature-authorized actions. It is
	// global to the account, not per action type, so signed requests commit
	// in the order they were signed.
	Nonce uint64 `json:"nonce"`

	CreatedAt time.Time `json:"created_at"`
}

// IsOwner reports whether addr is a current owner.
func (a *Account) IsOwner(addr domain.Address) bool {
	for _, o := range a.Owners {
		if o == addr {
			return true
		}
	}
	return false
}

// IsGuardianDigest reports whether d is a current guardian digest.
func (a *Account) IsGuardianDigest(d domain.Digest) bool {
	for _, g := range a.GuardianDigests {
		if g == d {
			return true
		}
	}
	return false
}

// IsGuardian reports whether addr's digest is a current guardian digest.
// Guardians are stored only as digests; this is the membership check for a
// caller revealing itself.
func (a *Account) IsGuardian(addr domain.Address) bool {
	return a.IsGuardianDigest(addr.Digest())
}

// IsWhitelisted reports whether target is on the current whitelist.
func (a *Account) IsWhitelisted(target domain.Address) bool {
	for _, w := range a.Whitelist {
		if w == target {
			return true
		}
	}
	return false
}

// ReplaceOwner swaps replaced for successor in place. Callers validate
// membership first.
func (a *Account) ReplaceOwner(replaced, successor domain.Address) {
	for i, o := range a.Owners {
		if o == replaced {
			a.Owners[i] = successor
			return
		}
	}
}

// ReplaceGuardianDigest swaps replaced for successor in place.
func (a *Account) ReplaceGuardianDigest(replaced, successor domain.Digest) {
	for i, g := range a.GuardianDigests {
		if g == replaced {
			a.GuardianDigests[i] = successor
			return
		}
	}
}

// AddWhitelist appends target if absent.
func (a *Account) AddWhitelist(target domain.Address) {
	if !a.IsWhitelisted(target) {
		a.Whitelist = append(a.Whitelist, target)
	}
}

// RemoveWhitelist drops target if present.
func (a *Account) RemoveWhitelist(target domain.Address) {
	for i, w := range a.Whitelist {
		if w == target {
			a.Whitelist = append(a.Whitelist[:i], a.Whitelist[i+1:]...)
			return
		}
	}
}

// InitParams are the account initialization inputs. Validation is
// all-or-nothing: any violation rejects the whole initialization.
type InitParams struct {
	Address          domain.Address   `json:"address"`
	Owners           []domain.Address `json:"owners"`
	ConfirmThreshold uint64           `json:"confirm_threshold"`
	GuardianDigests  []domain.Digest  `json:"guardian_digests"`
	RecoverThreshold uint64           `json:"recover_threshold"`
	Whitelist        []domain.Address `json:"whitelist,omitempty"`
}

// Validate enforces the initialization constraints.
func (p InitParams) Validate() error {
	if p.Address.IsZero() {
		return dErrors.New(dErrors.CodeValidation, "account address must not be zero")
	}
	if len(p.Owners) == 0 {
		return dErrors.New(dErrors.CodeValidation, "owners must not be empty")
	}
	seenOwners := make(map[domain.Address]struct{}, len(p.Owners))
	for _, o := range p.Owners {
		if o.IsZero() {
			return dErrors.New(dErrors.CodeValidation, "owner address must not be zero")
		}
		if _, dup := seenOwners[o]; dup {
			return dErrors.New(dErrors.CodeValidation, "duplicate owner "+o.String())
		}
		seenOwners[o] = struct{}{}
	}
	if p.ConfirmThreshold < 1 || p.ConfirmThreshold > uint64(len(p.Owners)) {
		return dErrors.New(dErrors.CodeValidation, "confirm threshold must be between 1 and the owner count")
	}
	if len(p.GuardianDigests) == 0 {
		return dErrors.New(dErrors.CodeValidation, "guardian digests must not be empty")
	}
	seenGuardians := make(map[domain.Digest]struct{}, len(p.GuardianDigests))
	for _, g := range p.GuardianDigests {
		if g.IsZero() {
			return dErrors.New(dErrors.CodeValidation, "guardian digest must not be zero")
		}
		if _, dup := seenGuardians[g]; dup {
			return dErrors.New(dErrors.CodeValidation, "duplicate guardian digest "+g.String())
		}
		seenGuardians[g] = struct{}{}
	}
	if p.RecoverThreshold < 1 || p.RecoverThreshold > uint64(len(p.GuardianDigests)) {
		return dErrors.New(dErrors.CodeValidation, "recover threshold must be between 1 and the guardian count")
	}
	for _, w := range p.Whitelist {
		if w.IsZero() {
			return dErrors.New(dErrors.CodeValidation, "whitelist entry must not be zero")
		}
	}
	return nil
}

// NewAccount validates params and builds the initial account.
func NewAccount(p InitParams, now time.Time) (*Account, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &Account{
		Address:          p.Address,
		Owners:           append([]domain.Address{}, p.Owners...),
		ConfirmThreshold: p.ConfirmThreshold,
		GuardianDigests:  append([]domain.Digest{}, p.GuardianDigests...),
		RecoverThreshold: p.RecoverThreshold,
		Whitelist:        append([]domain.Address{}, p.Whitelist...),
		CreatedAt:        now,
	}, nil
}
