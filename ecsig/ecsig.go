// Copyright (c) 2025 The Embercoin developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package ecsig abstracts ECDSA signing and verification over the set of
// elliptic curves the ledger accepts.  Every curve registers a Scheme in a
// dispatch table keyed by CurveID, so transaction validation stays unchanged
// when a new curve is added.
package ecsig

import (
	"sort"

	"github.com/pkg/errors"
)

// CurveID identifies one of the supported elliptic curves.  The zero value is
// reserved and never maps to a scheme.
type CurveID uint8

const (
	// Secp256k1 is the curve used by bitcoin.
	Secp256k1 CurveID = 1

	// NistP256 is the NIST P-256 curve.
	NistP256 CurveID = 2

	// NistP384 is the NIST P-384 curve.
	NistP384 CurveID = 3
)

// String returns the canonical name of the curve.
func (id CurveID) String() string {
	switch id {
	case Secp256k1:
		return "secp256k1"
	case NistP256:
		return "p256"
	case NistP384:
		return "p384"
	}
	return "unknown"
}

// CurveIDFromName maps a canonical curve name back to its identifier.
func CurveIDFromName(name string) (CurveID, error) {
	switch name {
	case "secp256k1":
		return Secp256k1, nil
	case "p256":
		return NistP256, nil
	case "p384":
		return NistP384, nil
	}
	return 0, errors.Wrapf(ErrUnsupportedCurve, "name %q", name)
}

var (
	// ErrUnsupportedCurve is returned when the requested curve identifier
	// has no registered scheme.
	ErrUnsupportedCurve = errors.New("unsupported curve")

	// ErrMalformedSignature is returned when a signature cannot be parsed
	// as a DER (r,s) pair for the requested curve.
	ErrMalformedSignature = errors.New("malformed signature encoding")

	// ErrMalformedPublicKey is returned when a public key cannot be parsed
	// as a SEC-encoded point on the requested curve.
	ErrMalformedPublicKey = errors.New("malformed public key encoding")
)

// Scheme is the capability set one curve provides.  Implementations carry no
// mutable state and are safe for concurrent use.
type Scheme interface {
	// Verify reports whether sig is a valid DER-encoded signature of
	// digest under the SEC-encoded public key.  A well-formed but wrong
	// signature yields (false, nil); undecodable inputs yield an error.
	Verify(pubKey, digest, sig []byte) (bool, error)

	// Sign produces a DER-encoded signature of digest with the serialized
	// private key.  The ledger core never calls this; it exists for key
	// tooling and tests.
	Sign(privKey, digest []byte) ([]byte, error)

	// GenerateKeyPair returns a fresh (private, public) key pair in the
	// serialized forms Sign and Verify consume.
	GenerateKeyPair() (priv, pub []byte, err error)
}

// schemes is the dispatch table.  It is populated by init functions only and
// read-only afterwards, so no locking is required.
var schemes = make(map[CurveID]Scheme)

// register makes a scheme available under the given identifier.  Registering
// the same identifier twice is a programming error.
func register(id CurveID, scheme Scheme) {
	if _, ok := schemes[id]; ok {
		panic("ecsig: duplicate scheme registration for " + id.String())
	}
	schemes[id] = scheme
}

// scheme resolves the identifier or fails with ErrUnsupportedCurve.
func scheme(id CurveID) (Scheme, error) {
	s, ok := schemes[id]
	if !ok {
		return nil, errors.Wrapf(ErrUnsupportedCurve, "curve id %d", id)
	}
	return s, nil
}

// Verify dispatches signature verification to the scheme registered for the
// curve identifier.
func Verify(id CurveID, pubKey, digest, sig []byte) (bool, error) {
	s, err := scheme(id)
	if err != nil {
		return false, err
	}
	return s.Verify(pubKey, digest, sig)
}

// Sign dispatches signing to the scheme registered for the curve identifier.
func Sign(id CurveID, privKey, digest []byte) ([]byte, error) {
	s, err := scheme(id)
	if err != nil {
		return nil, err
	}
	return s.Sign(privKey, digest)
}

// GenerateKeyPair creates a key pair on the identified curve.
func GenerateKeyPair(id CurveID) (priv, pub []byte, err error) {
	s, err := scheme(id)
	if err != nil {
		return nil, nil, err
	}
	return s.GenerateKeyPair()
}

// SupportedCurves lists every registered curve identifier in ascending
// order.
func SupportedCurves() []CurveID {
	ids := make([]CurveID, 0, len(schemes))
	for id := range schemes {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
