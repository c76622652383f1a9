// Package gateway implements the signature half of the authorization
// gateway: it turns an offline-signed request into the signer's address so
// the service can apply the same membership checks it applies to a direct
// caller. Replay (nonce) enforcement stays in the service, where it commits
// atomically with the action.
package gateway

import (
	"encoding/json"
	"time"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
	"golang.org/x/crypto/sha3"

	"acctgate/pkg/domain"
	dErrors "acctgate/pkg/domain-errors"
)

// SignatureLen is the length of a compact recoverable signature: one header
// byte followed by r and s.
const SignatureLen = 65

// SignedRequest is the signature-path envelope. Params carry the
// action-specific parameters as JSON; the same bytes are bound into the
// signed digest and decoded by the service.
type SignedRequest struct {
	Action    Action          `json:"action"`
	Params    json.RawMessage `json:"params,omitempty"`
	Nonce     uint64          `json:"nonce"`
	Expiry    time.Time       `json:"expiry"`
	Signature []byte          `json:"signature"`
}

// Verify checks the envelope's expiry and signature and returns the signing
// address. It performs no membership or nonce checks; the caller applies
// those against the account state.
func Verify(account domain.Address, req SignedRequest, now time.Time) (domain.Address, error) {
	if !req.Action.Valid() {
		return domain.ZeroAddress, dErrors.New(dErrors.CodeValidation, "unknown action "+string(req.Action))
	}
	if now.After(req.Expiry) {
		return domain.ZeroAddress, dErrors.New(dErrors.CodeExpired, "signed request expired")
	}
	if len(req.Signature) != SignatureLen {
		return domain.ZeroAddress, dErrors.New(dErrors.CodeBadSignature, "signature must be 65 bytes")
	}

	digest := RequestDigest(account, req.Action, req.Params, req.Nonce, req.Expiry)
	pub, _, err := ecdsa.RecoverCompact(req.Signature, digest[:])
	if err != nil {
		return domain.ZeroAddress, dErrors.Wrap(err, dErrors.CodeBadSignature, "signature recovery failed")
	}
	return AddressOf(pub), nil
}

// Sign produces the compact recoverable signature for a request. Production
// signers run offline; this is used by tests and by operator tooling.
func Sign(key *secp256k1.PrivateKey, account domain.Address, action Action, params []byte, nonce uint64, expiry time.Time) []byte {
	digest := RequestDigest(account, action, params, nonce, expiry)
	return ecdsa.SignCompact(key, digest[:], false)
}

// AddressOf derives the address of a public key: the last 20 bytes of the
// keccak256 of the uncompressed point without its 0x04 prefix.
func AddressOf(pub *secp256k1.PublicKey) domain.Address {
	raw := pub.SerializeUncompressed()
	h := sha3.NewLegacyKeccak256()
	h.Write(raw[1:])
	sum := h.Sum(nil)

	var addr domain.Address
	copy(addr[:], sum[len(sum)-domain.AddressLen:])
	return addr
}
