// Copyright (c) 2025 The Embercoin developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package ecsig

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"encoding/asn1"
	"math/big"

	"github.com/pkg/errors"
)

func init() {
	register(NistP256, nistScheme{curve: elliptic.P256()})
	register(NistP384, nistScheme{curve: elliptic.P384()})
}

// nistScheme verifies ECDSA signatures on a NIST curve with the standard
// library.  Public keys are SEC points (compressed or uncompressed) and
// signatures are ASN.1 DER (r,s) pairs, the same shapes the secp256k1 scheme
// uses.
type nistScheme struct {
	curve elliptic.Curve
}

// derSignature mirrors the ASN.1 structure of an ECDSA signature.
type derSignature struct {
	R, S *big.Int
}

func (s nistScheme) Verify(pubKey, digest, sig []byte) (bool, error) {
	pk, err := s.parsePubKey(pubKey)
	if err != nil {
		return false, err
	}

	var parsed derSignature
	rest, err := asn1.Unmarshal(sig, &parsed)
	if err != nil || len(rest) != 0 {
		return false, errors.Wrapf(ErrMalformedSignature, "curve %s", s.curve.Params().Name)
	}
	if parsed.R.Sign() <= 0 || parsed.S.Sign() <= 0 {
		return false, errors.Wrapf(ErrMalformedSignature,
			"curve %s: r and s must be positive", s.curve.Params().Name)
	}

	return ecdsa.Verify(pk, digest, parsed.R, parsed.S), nil
}

func (s nistScheme) Sign(privKey, digest []byte) ([]byte, error) {
	d := new(big.Int).SetBytes(privKey)
	if d.Sign() <= 0 || d.Cmp(s.curve.Params().N) >= 0 {
		return nil, errors.Wrapf(ErrMalformedSignature,
			"curve %s: private key out of range", s.curve.Params().Name)
	}

	priv := &ecdsa.PrivateKey{D: d}
	priv.Curve = s.curve
	priv.X, priv.Y = s.curve.ScalarBaseMult(d.Bytes())

	r, sv, err := ecdsa.Sign(rand.Reader, priv, digest)
	if err != nil {
		return nil, err
	}

	return asn1.Marshal(derSignature{R: r, S: sv})
}

func (s nistScheme) GenerateKeyPair() ([]byte, []byte, error) {
	priv, err := ecdsa.GenerateKey(s.curve, rand.Reader)
	if err != nil {
		return nil, nil, err
	}

	pub := elliptic.MarshalCompressed(s.curve, priv.X, priv.Y)
	return priv.D.Bytes(), pub, nil
}

// parsePubKey decodes a compressed or uncompressed SEC point on the scheme's
// curve.
func (s nistScheme) parsePubKey(pubKey []byte) (*ecdsa.PublicKey, error) {
	if len(pubKey) == 0 {
		return nil, errors.Wrapf(ErrMalformedPublicKey, "curve %s: empty key",
			s.curve.Params().Name)
	}

	var x, y *big.Int
	switch pubKey[0] {
	case 0x02, 0x03:
		x, y = elliptic.UnmarshalCompressed(s.curve, pubKey)
	case 0x04:
		x, y = elliptic.Unmarshal(s.curve, pubKey)
	default:
		return nil, errors.Wrapf(ErrMalformedPublicKey,
			"curve %s: unknown point format 0x%02x", s.curve.Params().Name, pubKey[0])
	}
	if x == nil {
		return nil, errors.Wrapf(ErrMalformedPublicKey, "curve %s",
			s.curve.Params().Name)
	}

	return &ecdsa.PublicKey{Curve: s.curve, X: x, Y: y}, nil
}
