// Copyright (c) 2025 The Embercoin developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package ecsig

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"gitlab.com/embercoin/emberd/types/chainhash"
)

func TestSupportedCurves(t *testing.T) {
	curves := SupportedCurves()
	require.Equal(t, []CurveID{Secp256k1, NistP256, NistP384}, curves)
}

func TestCurveIDFromName(t *testing.T) {
	tests := []struct {
		name    string
		want    CurveID
		wantErr bool
	}{
		{name: "secp256k1", want: Secp256k1},
		{name: "p256", want: NistP256},
		{name: "p384", want: NistP384},
		{name: "ed25519", wantErr: true},
		{name: "", wantErr: true},
	}

	for _, test := range tests {
		got, err := CurveIDFromName(test.name)
		if test.wantErr {
			require.Error(t, err, test.name)
			continue
		}
		require.NoError(t, err, test.name)
		require.Equal(t, test.want, got, test.name)
	}
}

func TestSignVerifyRoundTrip(t *testing.T) {
	digest := chainhash.DoubleHashB([]byte("spend 40 to bob"))

	for _, curveID := range SupportedCurves() {
		privKey, pubKey, err := GenerateKeyPair(curveID)
		require.NoError(t, err, curveID)

		sig, err := Sign(curveID, privKey, digest)
		require.NoError(t, err, curveID)

		valid, err := Verify(curveID, pubKey, digest, sig)
		require.NoError(t, err, curveID)
		require.True(t, valid, curveID)

		// The same signature must not verify a different digest.
		otherDigest := chainhash.DoubleHashB([]byte("spend 55 to carol"))
		valid, err = Verify(curveID, pubKey, otherDigest, sig)
		require.NoError(t, err, curveID)
		require.False(t, valid, curveID)

		// Nor against a different key of the same curve.
		_, otherPub, err := GenerateKeyPair(curveID)
		require.NoError(t, err, curveID)
		valid, err = Verify(curveID, otherPub, digest, sig)
		require.NoError(t, err, curveID)
		require.False(t, valid, curveID)
	}
}

func TestVerifyCurveMismatch(t *testing.T) {
	// A key and signature from one curve must not be interpretable on
	// another: the verifier dispatches strictly on the declared curve and
	// reports a decode failure, not false.
	digest := chainhash.DoubleHashB([]byte("cross-curve"))

	privKey, pubKey, err := GenerateKeyPair(Secp256k1)
	require.NoError(t, err)
	sig, err := Sign(Secp256k1, privKey, digest)
	require.NoError(t, err)

	_, err = Verify(NistP384, pubKey, digest, sig)
	require.Error(t, err)
}

func TestVerifyUnsupportedCurve(t *testing.T) {
	_, err := Verify(CurveID(250), nil, nil, nil)
	require.True(t, errors.Is(err, ErrUnsupportedCurve))

	_, err = Sign(CurveID(0), nil, nil)
	require.True(t, errors.Is(err, ErrUnsupportedCurve))

	_, _, err = GenerateKeyPair(CurveID(99))
	require.True(t, errors.Is(err, ErrUnsupportedCurve))
}

func TestVerifyMalformedInputs(t *testing.T) {
	digest := chainhash.DoubleHashB([]byte("malformed"))

	for _, curveID := range SupportedCurves() {
		privKey, pubKey, err := GenerateKeyPair(curveID)
		require.NoError(t, err, curveID)
		sig, err := Sign(curveID, privKey, digest)
		require.NoError(t, err, curveID)

		_, err = Verify(curveID, []byte{0x01, 0x02}, digest, sig)
		require.Error(t, err, curveID)

		_, err = Verify(curveID, pubKey, digest, []byte{0xff})
		require.Error(t, err, curveID)
	}
}
