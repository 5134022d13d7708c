// Copyright (c) 2025 The Embercoin developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package ecsig

import (
	"github.com/btcsuite/btcd/btcec/v2"
	btcecdsa "github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/pkg/errors"
)

func init() {
	register(Secp256k1, secp256k1Scheme{})
}

// secp256k1Scheme verifies ECDSA signatures on the secp256k1 curve via btcec.
type secp256k1Scheme struct{}

func (secp256k1Scheme) Verify(pubKey, digest, sig []byte) (bool, error) {
	pk, err := btcec.ParsePubKey(pubKey)
	if err != nil {
		return false, errors.Wrap(ErrMalformedPublicKey, err.Error())
	}

	parsedSig, err := btcecdsa.ParseDERSignature(sig)
	if err != nil {
		return false, errors.Wrap(ErrMalformedSignature, err.Error())
	}

	return parsedSig.Verify(digest, pk), nil
}

func (secp256k1Scheme) Sign(privKey, digest []byte) ([]byte, error) {
	priv, _ := btcec.PrivKeyFromBytes(privKey)
	sig := btcecdsa.Sign(priv, digest)
	return sig.Serialize(), nil
}

func (secp256k1Scheme) GenerateKeyPair() ([]byte, []byte, error) {
	priv, err := btcec.NewPrivateKey()
	if err != nil {
		return nil, nil, err
	}
	return priv.Serialize(), priv.PubKey().SerializeCompressed(), nil
}
