// Copyright (c) 2013-2016 The btcsuite developers
// Copyright (c) 2025 The Embercoin developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package mempool

import (
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"gitlab.com/embercoin/emberd/node/chaindata"
	"gitlab.com/embercoin/emberd/types/chainhash"
	"gitlab.com/embercoin/emberd/types/wire"
)

// TxDesc is a descriptor containing a transaction in the memory pool along
// with additional metadata.
type TxDesc struct {
	// Tx is the transaction associated with the entry.
	Tx *wire.MsgTx

	// Added is the time when the entry was added to the pool.
	Added time.Time

	// Sequence is the admission counter value assigned on entry.  Lower
	// values were admitted earlier; it defines the mining priority order.
	Sequence uint64

	// Fee is the total fee the transaction associated with the entry pays,
	// in the smallest currency unit.  Fees never affect ordering.
	Fee int64
}

// TxPool is used as a source of transactions that have been validated but not
// yet mined into a block.  It enforces that at most one pending transaction
// spends any given outpoint: admission is strictly first come, first served
// and a later conflicting transaction is rejected, never replacing the
// earlier one.
//
// It is safe for concurrent access, but cross-consistency with the utxo set
// it is validated against is the owning node's responsibility.
type TxPool struct {
	// lastUpdated tracks the last time a transaction was added to or
	// removed from the pool, in unix nanoseconds.  It must be accessed
	// atomically and is consulted by the template generator to detect
	// staleness without taking the pool lock.
	lastUpdated int64

	mtx       sync.RWMutex
	pool      map[chainhash.Hash]*TxDesc
	outpoints map[wire.OutPoint]chainhash.Hash
	sequence  uint64
}

// New returns a new memory pool for validated transactions.
func New() *TxPool {
	return &TxPool{
		pool:      make(map[chainhash.Hash]*TxDesc),
		outpoints: make(map[wire.OutPoint]chainhash.Hash),
	}
}

// Count returns the number of transactions in the pool.
//
// This function is safe for concurrent access.
func (mp *TxPool) Count() int {
	mp.mtx.RLock()
	count := len(mp.pool)
	mp.mtx.RUnlock()

	return count
}

// HaveTransaction returns whether or not the passed transaction already
// exists in the pool.
//
// This function is safe for concurrent access.
func (mp *TxPool) HaveTransaction(hash *chainhash.Hash) bool {
	mp.mtx.RLock()
	_, exists := mp.pool[*hash]
	mp.mtx.RUnlock()

	return exists
}

// FetchTransaction returns the requested transaction from the pool.
//
// This function is safe for concurrent access.
func (mp *TxPool) FetchTransaction(hash *chainhash.Hash) (*wire.MsgTx, error) {
	mp.mtx.RLock()
	txDesc, exists := mp.pool[*hash]
	mp.mtx.RUnlock()

	if !exists {
		return nil, fmt.Errorf("transaction is not in the pool")
	}
	return txDesc.Tx, nil
}

// Spender returns the hash of the pending transaction reserving the passed
// outpoint, if any.  It implements chaindata.ReservationView.
//
// This function is safe for concurrent access.
func (mp *TxPool) Spender(outpoint wire.OutPoint) (chainhash.Hash, bool) {
	mp.mtx.RLock()
	spender, ok := mp.outpoints[outpoint]
	mp.mtx.RUnlock()

	return spender, ok
}

// LastUpdated returns the last time a transaction was added to or removed
// from the pool.
//
// This function is safe for concurrent access.
func (mp *TxPool) LastUpdated() time.Time {
	return time.Unix(0, atomic.LoadInt64(&mp.lastUpdated))
}

// poolReservations adapts the unlocked reservation index for use by the
// validator while the pool lock is already held.
type poolReservations struct {
	mp *TxPool
}

func (r poolReservations) Spender(outpoint wire.OutPoint) (chainhash.Hash, bool) {
	spender, ok := r.mp.outpoints[outpoint]
	return spender, ok
}

// ProcessTransaction validates the passed transaction against the utxo set
// and the current reservations and, on success, admits it into the pool and
// reserves all of its input outpoints atomically.  Rejection leaves no
// partial reservation behind.
//
// This is the single point enforcing the at-most-one-pending-spender-per-
// outpoint invariant.
//
// This function is safe for concurrent access.
func (mp *TxPool) ProcessTransaction(tx *wire.MsgTx, utxoSet *chaindata.UtxoSet) (*TxDesc, error) {
	mp.mtx.Lock()
	defer mp.mtx.Unlock()

	txHash := tx.TxHash()
	log.Trace().Stringer("txid", txHash).Msg("processing transaction")

	// A transaction already in the pool necessarily conflicts with its own
	// reservations; reject it up front with a clearer description.
	if _, exists := mp.pool[txHash]; exists {
		str := fmt.Sprintf("transaction %v is already in the pool", txHash)
		return nil, chaindata.RuleError{
			ErrorCode:   chaindata.ErrDoubleSpend,
			Description: str,
		}
	}

	err := chaindata.ValidateTransaction(tx, utxoSet, poolReservations{mp})
	if err != nil {
		return nil, err
	}

	// The implicit fee is recorded for observability only; it never
	// affects admission or ordering.
	var totalIn, totalOut int64
	for _, txIn := range tx.TxIn {
		totalIn += utxoSet.LookupEntry(txIn.PreviousOutPoint).Amount()
	}
	for _, txOut := range tx.TxOut {
		totalOut += txOut.Value
	}

	mp.sequence++
	txD := &TxDesc{
		Tx:       tx,
		Added:    time.Now(),
		Sequence: mp.sequence,
		Fee:      totalIn - totalOut,
	}
	mp.pool[txHash] = txD
	for _, txIn := range tx.TxIn {
		mp.outpoints[txIn.PreviousOutPoint] = txHash
	}
	atomic.StoreInt64(&mp.lastUpdated, time.Now().UnixNano())

	log.Debug().
		Stringer("txid", txHash).
		Int64("fee", txD.Fee).
		Int("poolSize", len(mp.pool)).
		Msg("accepted transaction into the pool")

	return txD, nil
}

// removeTransaction removes the passed transaction and frees its
// reservations.  It must be called with the pool lock held for writes.
func (mp *TxPool) removeTransaction(txHash chainhash.Hash) {
	txDesc, exists := mp.pool[txHash]
	if !exists {
		return
	}

	for _, txIn := range txDesc.Tx.TxIn {
		if spender, ok := mp.outpoints[txIn.PreviousOutPoint]; ok && spender == txHash {
			delete(mp.outpoints, txIn.PreviousOutPoint)
		}
	}
	delete(mp.pool, txHash)
}

// RemoveConfirmed removes the listed now-confirmed transactions from the pool
// and then reconciles every remaining entry against the post-block utxo set:
// any pending transaction whose inputs were consumed by the accepted block is
// purged in the same pass.  The reconciliation deliberately rescans the whole
// pool rather than tracking dependencies incrementally.
//
// This function is safe for concurrent access.
func (mp *TxPool) RemoveConfirmed(txHashes []chainhash.Hash, utxoSet *chaindata.UtxoSet) {
	mp.mtx.Lock()
	defer mp.mtx.Unlock()

	for _, txHash := range txHashes {
		mp.removeTransaction(txHash)
	}

	// Full scan-and-reconcile: anything left in the pool whose inputs no
	// longer resolve lost them to the confirmed block.
	var purged int
	for txHash, txDesc := range mp.pool {
		for _, txIn := range txDesc.Tx.TxIn {
			if !utxoSet.Contains(txIn.PreviousOutPoint) {
				log.Debug().
					Stringer("txid", txHash).
					Stringer("outpoint", txIn.PreviousOutPoint).
					Msg("purging pending transaction whose input was spent by a confirmed block")
				mp.removeTransaction(txHash)
				purged++
				break
			}
		}
	}

	atomic.StoreInt64(&mp.lastUpdated, time.Now().UnixNano())

	log.Debug().
		Int("confirmed", len(txHashes)).
		Int("purged", purged).
		Int("poolSize", len(mp.pool)).
		Msg("removed confirmed transactions from the pool")
}

// Clear removes every transaction and reservation from the pool.
//
// This function is safe for concurrent access.
func (mp *TxPool) Clear() {
	mp.mtx.Lock()
	mp.pool = make(map[chainhash.Hash]*TxDesc)
	mp.outpoints = make(map[wire.OutPoint]chainhash.Hash)
	atomic.StoreInt64(&mp.lastUpdated, time.Now().UnixNano())
	mp.mtx.Unlock()
}

// TxDescs returns a snapshot of the current pending transactions in admission
// order.  First come, first served is also the mining priority order, so the
// slice is ordered by admission sequence.
//
// The returned slice is a snapshot, not a live view.
//
// This function is safe for concurrent access.
func (mp *TxPool) TxDescs() []*TxDesc {
	mp.mtx.RLock()
	descs := make([]*TxDesc, 0, len(mp.pool))
	for _, desc := range mp.pool {
		descs = append(descs, desc)
	}
	mp.mtx.RUnlock()

	sort.Slice(descs, func(i, j int) bool {
		return descs[i].Sequence < descs[j].Sequence
	})

	return descs
}
