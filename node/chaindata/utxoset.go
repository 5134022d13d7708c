// Copyright (c) 2015-2016 The btcsuite developers
// Copyright (c) 2025 The Embercoin developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package chaindata

import (
	"fmt"

	"gitlab.com/embercoin/emberd/types/wire"
)

// txoFlags is a bitmask defining additional information and state for a
// transaction output in the utxo set.
type txoFlags uint8

const (
	// tfCoinBase indicates that a txout was contained in a coinbase tx.
	tfCoinBase txoFlags = 1 << iota

	// tfModified indicates that a txout has been modified since it was
	// loaded.
	tfModified
)

// UtxoEntry houses details about an individual transaction output in the utxo
// set such as whether or not it was contained in a coinbase tx, the height of
// the block that contains the tx, its locking public key, and how much it
// pays.
type UtxoEntry struct {
	amount      int64
	pkScript    []byte // The locking public key for the output.
	blockHeight int32  // Height of block containing tx.

	packedFlags txoFlags
}

// IsCoinBase returns whether or not the output was contained in a coinbase
// transaction.
func (entry *UtxoEntry) IsCoinBase() bool {
	return entry.packedFlags&tfCoinBase == tfCoinBase
}

// BlockHeight returns the height of the block containing the output.
func (entry *UtxoEntry) BlockHeight() int32 {
	return entry.blockHeight
}

// Amount returns the amount of the output.
func (entry *UtxoEntry) Amount() int64 {
	return entry.amount
}

// PkScript returns the locking public key for the output.
func (entry *UtxoEntry) PkScript() []byte {
	return entry.pkScript
}

// Clone returns a shallow copy of the utxo entry.
func (entry *UtxoEntry) Clone() *UtxoEntry {
	if entry == nil {
		return nil
	}

	return &UtxoEntry{
		amount:      entry.amount,
		pkScript:    entry.pkScript,
		blockHeight: entry.blockHeight,
		packedFlags: entry.packedFlags,
	}
}

// NewUtxoEntry returns an entry for the given output carrying the passed
// amount and locking public key.
func NewUtxoEntry(amount int64, pkScript []byte, blockHeight int32, isCoinBase bool) *UtxoEntry {
	flags := tfModified
	if isCoinBase {
		flags |= tfCoinBase
	}

	return &UtxoEntry{
		amount:      amount,
		pkScript:    pkScript,
		blockHeight: blockHeight,
		packedFlags: flags,
	}
}

// UtxoSet is the authoritative mapping from outpoints to unspent transaction
// outputs.  An outpoint absent from the set either never existed or was
// already spent by a confirmed transaction.
//
// The set carries a version counter that is bumped on every successful
// ApplyBlock.  Template generation records the version it was built against
// and compares it on each poll to detect staleness.
//
// UtxoSet is not safe for concurrent use; the owning node serializes access.
type UtxoSet struct {
	entries map[wire.OutPoint]*UtxoEntry
	version uint64
}

// NewUtxoSet returns an empty utxo set at version zero.
func NewUtxoSet() *UtxoSet {
	return &UtxoSet{
		entries: make(map[wire.OutPoint]*UtxoEntry),
	}
}

// Version returns the current version of the set.  The counter increases
// monotonically with every successful ApplyBlock.
func (u *UtxoSet) Version() uint64 {
	return u.version
}

// LookupEntry returns information about a given transaction output.  It will
// return nil if the passed output does not exist in the set.
func (u *UtxoSet) LookupEntry(outpoint wire.OutPoint) *UtxoEntry {
	return u.entries[outpoint]
}

// Contains reports whether the set holds an unspent entry for the outpoint.
func (u *UtxoSet) Contains(outpoint wire.OutPoint) bool {
	_, ok := u.entries[outpoint]
	return ok
}

// Size returns the number of unspent entries in the set.
func (u *UtxoSet) Size() int {
	return len(u.entries)
}

// Entries returns the raw mapping contents.  It is exposed for the storage
// collaborator only; callers must not mutate the returned map.
func (u *UtxoSet) Entries() map[wire.OutPoint]*UtxoEntry {
	return u.entries
}

// AddTxOuts adds all outputs of the passed transaction to the set.  It is
// used to seed the genesis allocation and by ApplyBlock once all input
// existence checks have passed.
func (u *UtxoSet) AddTxOuts(tx *wire.MsgTx, blockHeight int32) {
	isCoinBase := tx.IsCoinBase()
	prevOut := wire.OutPoint{Hash: tx.TxHash()}
	for txOutIdx, txOut := range tx.TxOut {
		prevOut.Index = uint32(txOutIdx)
		u.entries[prevOut] = NewUtxoEntry(txOut.Value, txOut.PkScript,
			blockHeight, isCoinBase)
	}
}

// RestoreEntry reinstates a single entry at the given outpoint.  It is used
// by the storage collaborator when loading a persisted set; the version is
// restored separately via SetVersion.
func (u *UtxoSet) RestoreEntry(outpoint wire.OutPoint, entry *UtxoEntry) {
	u.entries[outpoint] = entry
}

// SetVersion forces the version counter.  Storage collaborator use only.
func (u *UtxoSet) SetVersion(version uint64) {
	u.version = version
}

// ApplyBlock connects the passed pre-validated transactions to the set as an
// all-or-nothing batch: every referenced input of every non-coinbase
// transaction must currently exist, otherwise an AssertError is returned and
// the set is left untouched.  Inputs spent by an earlier transaction within
// the same batch are satisfied by outputs that transaction created, in order.
//
// On success every spent entry is removed, every created output is inserted
// at its index, and the version counter is incremented once for the whole
// batch.
func (u *UtxoSet) ApplyBlock(transactions []*wire.MsgTx, blockHeight int32) error {
	// Phase one walks the whole batch against a scratch overlay without
	// touching the live entries, so a violation anywhere leaves the set
	// fully intact.
	type overlayKey = wire.OutPoint
	spent := make(map[overlayKey]struct{})
	created := make(map[overlayKey]struct{})

	for _, tx := range transactions {
		if !tx.IsCoinBase() {
			for _, txIn := range tx.TxIn {
				prevOut := txIn.PreviousOutPoint
				if _, gone := spent[prevOut]; gone {
					return AssertError(fmt.Sprintf(
						"block spends outpoint %v twice", prevOut))
				}

				_, inSet := u.entries[prevOut]
				_, inBatch := created[prevOut]
				if !inSet && !inBatch {
					return AssertError(fmt.Sprintf(
						"block spends missing outpoint %v", prevOut))
				}
				spent[prevOut] = struct{}{}
			}
		}

		prevOut := wire.OutPoint{Hash: tx.TxHash()}
		for txOutIdx := range tx.TxOut {
			prevOut.Index = uint32(txOutIdx)
			created[prevOut] = struct{}{}
		}
	}

	// Phase two mutates.  Every check already passed, so this cannot fail.
	for _, tx := range transactions {
		if !tx.IsCoinBase() {
			for _, txIn := range tx.TxIn {
				delete(u.entries, txIn.PreviousOutPoint)
			}
		}
		u.AddTxOuts(tx, blockHeight)
	}

	u.version++
	log.Debug().
		Int("txns", len(transactions)).
		Uint64("version", u.version).
		Int("entries", len(u.entries)).
		Msg("connected block to utxo set")

	return nil
}
