// Package domain holds the identity primitives shared by every layer:
// account addresses and guardian digests. Both are fixed-size, comparable
// value types so they can key maps and cross store boundaries without
// allocation. Validity is enforced at parse time.
package domain

import (
	"encoding/hex"
	"fmt"
	"strings"

	"golang.org/x/crypto/sha3"
)

// AddressLen is the byte length of an account address.
const AddressLen = 20

// DigestLen is the byte length of a guardian identity digest.
const DigestLen = 32

// Address is an opaque, comparable account identity. Owners, targets and the
// account itself are all addresses. The zero value is invalid everywhere a
// participant is expected.
type Address [AddressLen]byte

// ZeroAddress is the invalid all-zero identity.
var ZeroAddress Address

// ParseAddress decodes a 0x-prefixed, 40-hex-digit address string.
func ParseAddress(s string) (Address, error) {
	var a Address
	raw := strings.TrimPrefix(strings.ToLower(s), "0x")
	if len(raw) != AddressLen*2 {
		return a, fmt.Errorf("address must be %d hex digits, got %q", AddressLen*2, s)
	}
	b, err := hex.DecodeString(raw)
	if err != nil {
		return a, fmt.Errorf("invalid address %q: %w", s, err)
	}
	copy(a[:], b)
	return a, nil
}

// String renders the address as 0x-prefixed lowercase hex.
func (a Address) String() string {
	return "0x" + hex.EncodeToString(a[:])
}

// IsZero reports whether the address is the invalid zero identity.
func (a Address) IsZero() bool {
	return a == ZeroAddress
}

// Digest reduces the address to its guardian digest. Guardians are stored
// only in this form so membership stays hidden until a recovery reveals it.
func (a Address) Digest() Digest {
	var d Digest
	h := sha3.NewLegacyKeccak256()
	h.Write(a[:])
	copy(d[:], h.Sum(nil))
	return d
}

// MarshalText implements encoding.TextMarshaler so addresses serialize as
// hex strings in JSON bodies and map keys.
func (a Address) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (a *Address) UnmarshalText(text []byte) error {
	parsed, err := ParseAddress(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// Digest is a fixed-size keccak256 digest of a participant identity.
type Digest [DigestLen]byte

// ParseDigest decodes a 0x-prefixed, 64-hex-digit digest string.
func ParseDigest(s string) (Digest, error) {
	var d Digest
	raw := strings.TrimPrefix(strings.ToLower(s), "0x")
	if len(raw) != DigestLen*2 {
		return d, fmt.Errorf("digest must be %d hex digits, got %q", DigestLen*2, s)
	}
	b, err := hex.DecodeString(raw)
	if err != nil {
		return d, fmt.Errorf("invalid digest %q: %w", s, err)
	}
	copy(d[:], b)
	return d, nil
}

// String renders the digest as 0x-prefixed lowercase hex.
func (d Digest) String() string {
	return "0x" + hex.EncodeToString(d[:])
}

// IsZero reports whether the digest is all zero.
func (d Digest) IsZero() bool {
	return d == Digest{}
}

// MarshalText implements encoding.TextMarshaler.
func (d Digest) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Digest) UnmarshalText(text []byte) error {
	parsed, err := ParseDigest(string(text))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}
