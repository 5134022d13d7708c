// Copyright (c) 2013-2016 The btcsuite developers
// Copyright (c) 2025 The Embercoin developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wire

import (
	"bytes"
	"math"
	"testing"

	"github.com/davecgh/go-spew/spew"
	"github.com/stretchr/testify/require"

	"gitlab.com/embercoin/emberd/types/chainhash"
)

// testTx returns a two-in, two-out transaction with fixed contents.
func testTx() *MsgTx {
	prevHash1 := chainhash.DoubleHashH([]byte("funding one"))
	prevHash2 := chainhash.DoubleHashH([]byte("funding two"))

	tx := NewMsgTx(TxVersion)
	tx.AddTxIn(NewTxIn(NewOutPoint(&prevHash1, 0), []byte{0x30, 0x44, 0x01}, 1))
	tx.AddTxIn(NewTxIn(NewOutPoint(&prevHash2, 3), []byte{0x30, 0x45, 0x02}, 2))
	tx.AddTxOut(NewTxOut(40_0000_0000, []byte{0x02, 0xaa, 0xbb}))
	tx.AddTxOut(NewTxOut(55_0000_0000, []byte{0x03, 0xcc, 0xdd}))
	return tx
}

func TestTxSerializeRoundTrip(t *testing.T) {
	tx := testTx()

	var buf bytes.Buffer
	require.NoError(t, tx.Serialize(&buf))
	require.Equal(t, tx.SerializeSize(), buf.Len())

	var decoded MsgTx
	require.NoError(t, decoded.Deserialize(&buf))
	if !bytes.Equal(spewDump(tx), spewDump(&decoded)) {
		t.Fatalf("round trip mismatch\nbefore: %s\nafter: %s",
			spewDump(tx), spewDump(&decoded))
	}
}

func spewDump(v interface{}) []byte {
	return []byte(spew.Sdump(v))
}

func TestTxHashStable(t *testing.T) {
	tx := testTx()
	first := tx.TxHash()
	second := tx.TxHash()
	require.Equal(t, first, second)

	// Any mutation must change the hash.
	tx.TxOut[0].Value++
	require.NotEqual(t, first, tx.TxHash())
}

func TestSignatureHashExcludesSignatures(t *testing.T) {
	unsigned := testTx()
	for _, txIn := range unsigned.TxIn {
		txIn.Signature = nil
	}
	digest := unsigned.SignatureHash()

	// Filling in signatures must not move the digest, and every input
	// shares it.
	signed := unsigned.Copy()
	signed.TxIn[0].Signature = []byte{0x30, 0x44, 0xde, 0xad}
	signed.TxIn[1].Signature = []byte{0x30, 0x45, 0xbe, 0xef}
	require.Equal(t, digest, signed.SignatureHash())

	// But the digest does commit to everything else.
	tweaked := signed.Copy()
	tweaked.TxIn[1].CurveID = 3
	require.NotEqual(t, digest, tweaked.SignatureHash())

	tweaked = signed.Copy()
	tweaked.TxOut[0].Value = 1
	require.NotEqual(t, digest, tweaked.SignatureHash())
}

func TestCopyIsDeep(t *testing.T) {
	tx := testTx()
	dup := tx.Copy()

	dup.TxIn[0].Signature[0] = 0xff
	dup.TxOut[0].PkScript[0] = 0xff
	require.NotEqual(t, tx.TxIn[0].Signature[0], dup.TxIn[0].Signature[0])
	require.NotEqual(t, tx.TxOut[0].PkScript[0], dup.TxOut[0].PkScript[0])
}

func TestIsCoinBase(t *testing.T) {
	coinbase := NewMsgTx(TxVersion)
	coinbase.AddTxIn(&TxIn{
		PreviousOutPoint: OutPoint{
			Hash:  chainhash.ZeroHash,
			Index: math.MaxUint32,
		},
	})
	coinbase.AddTxOut(NewTxOut(50_0000_0000, []byte{0x02}))
	require.True(t, coinbase.IsCoinBase())

	require.False(t, testTx().IsCoinBase())

	// Two inputs disqualify a transaction even if the first is null.
	coinbase.AddTxIn(testTx().TxIn[0])
	require.False(t, coinbase.IsCoinBase())
}

func TestDeserializeRejectsOversizedSignature(t *testing.T) {
	tx := NewMsgTx(TxVersion)
	prevHash := chainhash.DoubleHashH([]byte("big sig"))
	tx.AddTxIn(NewTxIn(NewOutPoint(&prevHash, 0), bytes.Repeat([]byte{0x01}, MaxSignatureSize+1), 1))
	tx.AddTxOut(NewTxOut(1, []byte{0x02}))

	var buf bytes.Buffer
	require.NoError(t, tx.Serialize(&buf))

	var decoded MsgTx
	require.Error(t, decoded.Deserialize(&buf))
}
