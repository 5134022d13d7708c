// Copyright (c) 2013-2016 The btcsuite developers
// Copyright (c) 2025 The Embercoin developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package mempool

import (
	"testing"

	"github.com/stretchr/testify/require"

	"gitlab.com/embercoin/emberd/ecsig"
	"gitlab.com/embercoin/emberd/node/chaindata"
	"gitlab.com/embercoin/emberd/types/chainhash"
	"gitlab.com/embercoin/emberd/types/wire"
)

// poolHarness holds a utxo set, a pool, and a key that owns every funded
// output.
type poolHarness struct {
	t       *testing.T
	set     *chaindata.UtxoSet
	pool    *TxPool
	curveID ecsig.CurveID
	priv    []byte
	pub     []byte
}

func newPoolHarness(t *testing.T) *poolHarness {
	t.Helper()
	priv, pub, err := ecsig.GenerateKeyPair(ecsig.Secp256k1)
	require.NoError(t, err)
	return &poolHarness{
		t:       t,
		set:     chaindata.NewUtxoSet(),
		pool:    New(),
		curveID: ecsig.Secp256k1,
		priv:    priv,
		pub:     pub,
	}
}

// fund seeds the utxo set with one output of the given amount owned by the
// harness key.
func (p *poolHarness) fund(amount int64) wire.OutPoint {
	p.t.Helper()
	tx := wire.NewMsgTx(wire.TxVersion)
	tx.AddTxIn(&wire.TxIn{
		PreviousOutPoint: wire.OutPoint{
			Hash: chainhash.DoubleHashH([]byte{byte(p.set.Size()), 0x42}),
		},
	})
	tx.AddTxOut(wire.NewTxOut(amount, p.pub))
	p.set.AddTxOuts(tx, 0)
	return wire.OutPoint{Hash: tx.TxHash(), Index: 0}
}

// spend returns a signed transaction consuming the outpoints and paying the
// given value to a fresh script.
func (p *poolHarness) spend(value int64, salt byte, prevOuts ...wire.OutPoint) *wire.MsgTx {
	p.t.Helper()
	tx := wire.NewMsgTx(wire.TxVersion)
	for _, prevOut := range prevOuts {
		out := prevOut
		tx.AddTxIn(wire.NewTxIn(&out, nil, uint8(p.curveID)))
	}
	tx.AddTxOut(wire.NewTxOut(value, []byte{0x02, salt}))

	digest := tx.SignatureHash()
	for _, txIn := range tx.TxIn {
		sig, err := ecsig.Sign(p.curveID, p.priv, digest[:])
		require.NoError(p.t, err)
		txIn.Signature = sig
	}
	return tx
}

func TestProcessTransactionAdmits(t *testing.T) {
	harness := newPoolHarness(t)
	prevOut := harness.fund(100)
	tx := harness.spend(95, 1, prevOut)

	desc, err := harness.pool.ProcessTransaction(tx, harness.set)
	require.NoError(t, err)
	require.Equal(t, int64(5), desc.Fee)
	require.Equal(t, 1, harness.pool.Count())

	txHash := tx.TxHash()
	require.True(t, harness.pool.HaveTransaction(&txHash))

	spender, ok := harness.pool.Spender(prevOut)
	require.True(t, ok)
	require.Equal(t, txHash, spender)
}

func TestProcessTransactionFirstComeFirstServed(t *testing.T) {
	harness := newPoolHarness(t)
	prevOut := harness.fund(100)

	first := harness.spend(90, 1, prevOut)
	_, err := harness.pool.ProcessTransaction(first, harness.set)
	require.NoError(t, err)

	// A conflicting spend is rejected no matter what it pays: there is no
	// replacement, fees play no role.
	second := harness.spend(10, 2, prevOut)
	_, err = harness.pool.ProcessTransaction(second, harness.set)
	require.True(t, chaindata.IsRuleErrorCode(err, chaindata.ErrDoubleSpend), "got %v", err)

	// The incumbent is untouched.
	require.Equal(t, 1, harness.pool.Count())
	firstHash := first.TxHash()
	require.True(t, harness.pool.HaveTransaction(&firstHash))
}

func TestProcessTransactionRejectsDuplicate(t *testing.T) {
	harness := newPoolHarness(t)
	prevOut := harness.fund(100)
	tx := harness.spend(95, 1, prevOut)

	_, err := harness.pool.ProcessTransaction(tx, harness.set)
	require.NoError(t, err)
	_, err = harness.pool.ProcessTransaction(tx, harness.set)
	require.True(t, chaindata.IsRuleErrorCode(err, chaindata.ErrDoubleSpend), "got %v", err)
	require.Equal(t, 1, harness.pool.Count())
}

func TestProcessTransactionRejectionLeavesNoReservation(t *testing.T) {
	harness := newPoolHarness(t)
	goodOut := harness.fund(100)
	missingOut := wire.OutPoint{Hash: chainhash.DoubleHashH([]byte("void"))}

	// The first input resolves, the second does not: the transaction is
	// rejected and must not leave a reservation on the first.
	tx := harness.spend(50, 1, goodOut, missingOut)
	_, err := harness.pool.ProcessTransaction(tx, harness.set)
	require.True(t, chaindata.IsRuleErrorCode(err, chaindata.ErrMissingInput), "got %v", err)

	_, reserved := harness.pool.Spender(goodOut)
	require.False(t, reserved)

	// The outpoint stays spendable by a later transaction.
	retry := harness.spend(95, 2, goodOut)
	_, err = harness.pool.ProcessTransaction(retry, harness.set)
	require.NoError(t, err)
}

func TestTxDescsAdmissionOrder(t *testing.T) {
	harness := newPoolHarness(t)

	var hashes []chainhash.Hash
	for i := 0; i < 5; i++ {
		prevOut := harness.fund(100)
		tx := harness.spend(95, byte(i), prevOut)
		_, err := harness.pool.ProcessTransaction(tx, harness.set)
		require.NoError(t, err)
		hashes = append(hashes, tx.TxHash())
	}

	descs := harness.pool.TxDescs()
	require.Len(t, descs, 5)
	for i, desc := range descs {
		require.Equal(t, hashes[i], desc.Tx.TxHash(), "position %d", i)
	}
}

func TestRemoveConfirmedReconciles(t *testing.T) {
	harness := newPoolHarness(t)
	sharedOut := harness.fund(100)
	otherOut := harness.fund(50)

	// pending spends sharedOut; survivor spends an unrelated output.
	pending := harness.spend(95, 1, sharedOut)
	survivor := harness.spend(45, 2, otherOut)
	_, err := harness.pool.ProcessTransaction(pending, harness.set)
	require.NoError(t, err)
	_, err = harness.pool.ProcessTransaction(survivor, harness.set)
	require.NoError(t, err)

	// A block confirms a different spend of sharedOut.  The pool only
	// learns about it through reconciliation against the post-block set.
	confirmed := harness.spend(90, 3, sharedOut)
	require.NoError(t, harness.set.ApplyBlock([]*wire.MsgTx{confirmed}, 1))

	harness.pool.RemoveConfirmed([]chainhash.Hash{confirmed.TxHash()}, harness.set)

	pendingHash := pending.TxHash()
	survivorHash := survivor.TxHash()
	require.False(t, harness.pool.HaveTransaction(&pendingHash))
	require.True(t, harness.pool.HaveTransaction(&survivorHash))
	require.Equal(t, 1, harness.pool.Count())

	// The purged transaction's reservations are gone too.
	_, reserved := harness.pool.Spender(sharedOut)
	require.False(t, reserved)
}

func TestRemoveConfirmedRemovesMined(t *testing.T) {
	harness := newPoolHarness(t)
	prevOut := harness.fund(100)
	tx := harness.spend(95, 1, prevOut)
	_, err := harness.pool.ProcessTransaction(tx, harness.set)
	require.NoError(t, err)

	require.NoError(t, harness.set.ApplyBlock([]*wire.MsgTx{tx}, 1))
	harness.pool.RemoveConfirmed([]chainhash.Hash{tx.TxHash()}, harness.set)

	require.Equal(t, 0, harness.pool.Count())
	_, reserved := harness.pool.Spender(prevOut)
	require.False(t, reserved)
}

func TestClear(t *testing.T) {
	harness := newPoolHarness(t)
	prevOut := harness.fund(100)
	_, err := harness.pool.ProcessTransaction(harness.spend(95, 1, prevOut), harness.set)
	require.NoError(t, err)

	harness.pool.Clear()
	require.Equal(t, 0, harness.pool.Count())
	_, reserved := harness.pool.Spender(prevOut)
	require.False(t, reserved)
}
