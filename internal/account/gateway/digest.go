package gateway

import (
	"encoding/binary"
	"time"

	"golang.org/x/crypto/sha3"

	"acctgate/pkg/domain"
)

// domainTag versions the signing scheme. Changing the digest layout means
// changing this tag, which invalidates every signature produced under the
// old layout.
const domainTag = "ACCTGATE_AUTH_V1"

// Action tags the operation a signature authorizes. The tag is bound into
// the digest so a signature over one action can never authorize another.
type Action string

const (
	ActionSubmit          Action = "submit"
	ActionConfirm         Action = "confirm"
	ActionFreeze          Action = "freeze"
	ActionUnfreeze        Action = "unfreeze"
	ActionProposeRecovery Action = "propose_recovery"
	ActionSupportRecovery Action = "support_recovery"
	ActionExecuteRecovery Action = "execute_recovery"
)

// Valid reports whether a is a known action tag.
func (a Action) Valid() bool {
	switch a {
	case ActionSubmit, ActionConfirm, ActionFreeze, ActionUnfreeze,
		ActionProposeRecovery, ActionSupportRecovery, ActionExecuteRecovery:
		return true
	}
	return false
}

func keccak(parts ...[]byte) domain.Digest {
	var d domain.Digest
	h := sha3.NewLegacyKeccak256()
	for _, p := range parts {
		h.Write(p)
	}
	copy(d[:], h.Sum(nil))
	return d
}

// DomainSeparator binds signatures to one account. Two accounts never share
// a separator, so a signature authorized for one cannot be replayed against
// another.
func DomainSeparator(account domain.Address) domain.Digest {
	return keccak([]byte(domainTag), account[:])
}

// RequestDigest builds the signed digest: 0x19 0x01, the account's domain
// separator, then the struct hash of (action tag, params hash, nonce,
// expiry). Params are hashed rather than embedded so the digest is fixed
// size regardless of payload length.
func RequestDigest(account domain.Address, action Action, params []byte, nonce uint64, expiry time.Time) domain.Digest {
	paramsHash := keccak(params)

	var nonceBuf, expiryBuf [8]byte
	binary.BigEndian.PutUint64(nonceBuf[:], nonce)
	binary.BigEndian.PutUint64(expiryBuf[:], uint64(expiry.Unix()))

	structHash := keccak([]byte(action), paramsHash[:], nonceBuf[:], expiryBuf[:])

	sep := DomainSeparator(account)
	return keccak([]byte{0x19, 0x01}, sep[:], structHash[:])
}
