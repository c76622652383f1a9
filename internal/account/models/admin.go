package models

import (
	"encoding/json"

	"acctgate/pkg/domain"
	dErrors "acctgate/pkg/domain-errors"
)

// AdminOp labels a self-call operation: a transaction targeting the account
// itself whose payload is an AdminPayload. These mutate the membership
// registry and therefore pass through the proposal engine's quorum like any
// other transaction.
type AdminOp string

const (
	AdminWhitelistAdd    AdminOp = "whitelist_add"
	AdminWhitelistRemove AdminOp = "whitelist_remove"
	AdminGuardianReplace AdminOp = "guardian_replace"
)

// AdminPayload is the JSON body of a self-call transaction.
type AdminPayload struct {
	Op AdminOp `json:"op"`

	// Address is the whitelist entry for whitelist ops.
	Address domain.Address `json:"address,omitzero"`

	// ReplacedDigest/NewDigest identify the guardian swap for
	// guardian_replace.
	ReplacedDigest domain.Digest `json:"replaced_digest,omitzero"`
	NewDigest      domain.Digest `json:"new_digest,omitzero"`
}

// ParseAdminPayload decodes and validates a self-call payload.
func ParseAdminPayload(raw []byte) (AdminPayload, error) {
	var p AdminPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return AdminPayload{}, dErrors.Wrap(err, dErrors.CodeValidation, "self-call payload is not valid JSON")
	}
	if err := p.Validate(); err != nil {
		return AdminPayload{}, err
	}
	return p, nil
}

// Validate checks structural constraints; registry-dependent checks (digest
// membership, recovery in flight) happen at execution time.
func (p AdminPayload) Validate() error {
	switch p.Op {
	case AdminWhitelistAdd, AdminWhitelistRemove:
		if p.Address.IsZero() {
			return dErrors.New(dErrors.CodeValidation, "whitelist op requires a non-zero address")
		}
	case AdminGuardianReplace:
		if p.ReplacedDigest.IsZero() || p.NewDigest.IsZero() {
			return dErrors.New(dErrors.CodeValidation, "guardian replace requires both digests")
		}
		if p.ReplacedDigest == p.NewDigest {
			return dErrors.New(dErrors.CodeValidation, "guardian replace digests must differ")
		}
	default:
		return dErrors.New(dErrors.CodeValidation, "unknown self-call op "+string(p.Op))
	}
	return nil
}

// Encode serializes the payload for submission as a transaction body.
func (p AdminPayload) Encode() ([]byte, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return json.Marshal(p)
}
