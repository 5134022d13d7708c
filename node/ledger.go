// Copyright (c) 2013-2017 The btcsuite developers
// Copyright (c) 2025 The Embercoin developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package node

import (
	"fmt"
	"math"
	"sync"
	"time"

	"gitlab.com/embercoin/emberd/node/chaindata"
	"gitlab.com/embercoin/emberd/node/mempool"
	"gitlab.com/embercoin/emberd/types/chainhash"
	"gitlab.com/embercoin/emberd/types/wire"
)

// Allocation is a single genesis grant: an amount locked to a public key.
type Allocation struct {
	Amount   int64
	PkScript []byte
}

// Ledger bundles the utxo set and the memory pool behind a single lock, so
// every externally visible operation observes a mutually consistent pair.
// Block acceptance in particular must mutate the set and reconcile the pool
// without any reader slipping in between.
type Ledger struct {
	mtx       sync.RWMutex
	utxoSet   *chaindata.UtxoSet
	txPool    *mempool.TxPool
	tipHash   chainhash.Hash
	tipHeight int32

	blockSubsidy int64
}

// NewLedger creates a ledger bootstrapped from the passed genesis
// allocations.  The allocations become the outputs of a genesis coinbase
// connected at height zero, so they are spendable like any other output.
func NewLedger(allocations []Allocation, blockSubsidy int64) (*Ledger, error) {
	ledger := &Ledger{
		utxoSet:      chaindata.NewUtxoSet(),
		txPool:       mempool.New(),
		tipHeight:    -1,
		blockSubsidy: blockSubsidy,
	}

	genesis := genesisBlock(allocations)
	if err := ledger.utxoSet.ApplyBlock(genesis.Transactions, 0); err != nil {
		return nil, err
	}
	ledger.tipHash = genesis.BlockHash()
	ledger.tipHeight = 0

	log.Info().
		Stringer("hash", ledger.tipHash).
		Int("allocations", len(allocations)).
		Msg("ledger bootstrapped from genesis block")

	return ledger, nil
}

// genesisBlock assembles the height-zero block carrying the initial coin
// allocation in a single coinbase transaction.
func genesisBlock(allocations []Allocation) *wire.MsgBlock {
	coinbase := wire.NewMsgTx(wire.TxVersion)
	coinbase.AddTxIn(&wire.TxIn{
		PreviousOutPoint: wire.OutPoint{
			Hash:  chainhash.ZeroHash,
			Index: math.MaxUint32,
		},
	})
	for _, alloc := range allocations {
		coinbase.AddTxOut(&wire.TxOut{
			Value:    alloc.Amount,
			PkScript: alloc.PkScript,
		})
	}

	block := wire.NewMsgBlock(&wire.BlockHeader{
		Version:   1,
		Timestamp: time.Unix(genesisTimestamp, 0),
	})
	block.AddTransaction(coinbase)
	block.Header.MerkleRoot = chainhash.MerkleTreeRoot(block.TxHashes())
	return block
}

// genesisTimestamp pins the genesis header so the genesis hash is a pure
// function of the allocations.
const genesisTimestamp = 1735689600 // 2025-01-01 00:00:00 UTC

// SubmitTransaction validates the passed transaction against the current
// ledger state and admits it into the memory pool.  Admission is first come,
// first served: a transaction conflicting with an already pending one is
// rejected with a chaindata.RuleError carrying ErrDoubleSpend.
func (l *Ledger) SubmitTransaction(tx *wire.MsgTx) error {
	l.mtx.Lock()
	defer l.mtx.Unlock()

	_, err := l.txPool.ProcessTransaction(tx, l.utxoSet)
	return err
}

// AcceptBlock fully validates the passed block against the current tip and
// connects it: the utxo set is updated as an all-or-nothing batch, the tip
// advances, and the memory pool is reconciled against the post-block set.
// Implements mining.BlockAcceptor.
func (l *Ledger) AcceptBlock(block *wire.MsgBlock) error {
	l.mtx.Lock()
	defer l.mtx.Unlock()

	if err := chaindata.CheckBlockSanity(block, l.tipHash); err != nil {
		return err
	}

	// Block transactions were individually validated on pool admission,
	// but the ledger may have moved since; re-run full contextual
	// validation so acceptance never trusts the pool.
	var totalFees int64
	for _, tx := range block.Transactions[1:] {
		err := chaindata.ValidateTransaction(tx, l.utxoSet,
			chaindata.NoReservations)
		if err != nil {
			return err
		}

		var totalIn, totalOut int64
		for _, txIn := range tx.TxIn {
			totalIn += l.utxoSet.LookupEntry(txIn.PreviousOutPoint).Amount()
		}
		for _, txOut := range tx.TxOut {
			totalOut += txOut.Value
		}
		totalFees += totalIn - totalOut
	}

	// The coinbase may claim at most the subsidy plus the fees the block
	// collects.
	var coinbaseOut int64
	for _, txOut := range block.Transactions[0].TxOut {
		coinbaseOut += txOut.Value
	}
	if coinbaseOut > l.blockSubsidy+totalFees {
		str := fmt.Sprintf("coinbase pays %v which is more than the "+
			"allowed subsidy %v plus fees %v", coinbaseOut,
			l.blockSubsidy, totalFees)
		return chaindata.RuleError{
			ErrorCode:   chaindata.ErrInsufficientFunds,
			Description: str,
		}
	}

	newHeight := l.tipHeight + 1
	if err := l.utxoSet.ApplyBlock(block.Transactions, newHeight); err != nil {
		return err
	}
	l.tipHash = block.BlockHash()
	l.tipHeight = newHeight

	l.txPool.RemoveConfirmed(block.TxHashes(), l.utxoSet)

	log.Info().
		Stringer("hash", l.tipHash).
		Int32("height", newHeight).
		Int("txns", len(block.Transactions)).
		Uint64("utxoVersion", l.utxoSet.Version()).
		Msg("connected block")

	return nil
}

// BestState returns the current tip hash, its height, and the utxo set
// version under one read lock, so template builds never observe the tip of
// one block and the utxo version of another.  Implements mining.ChainSource.
func (l *Ledger) BestState() (chainhash.Hash, int32, uint64) {
	l.mtx.RLock()
	hash, height, version := l.tipHash, l.tipHeight, l.utxoSet.Version()
	l.mtx.RUnlock()

	return hash, height, version
}

// TipHash returns the hash of the current best block.
func (l *Ledger) TipHash() chainhash.Hash {
	l.mtx.RLock()
	hash := l.tipHash
	l.mtx.RUnlock()

	return hash
}

// TipHeight returns the height of the current best block.
func (l *Ledger) TipHeight() int32 {
	l.mtx.RLock()
	height := l.tipHeight
	l.mtx.RUnlock()

	return height
}

// UtxoVersion returns the version counter of the utxo set.
func (l *Ledger) UtxoVersion() uint64 {
	l.mtx.RLock()
	version := l.utxoSet.Version()
	l.mtx.RUnlock()

	return version
}

// Balance returns the total unspent value locked to the passed public key.
func (l *Ledger) Balance(pkScript []byte) int64 {
	l.mtx.RLock()
	defer l.mtx.RUnlock()

	var total int64
	for _, entry := range l.utxoSet.Entries() {
		if string(entry.PkScript()) == string(pkScript) {
			total += entry.Amount()
		}
	}
	return total
}

// LookupUtxo returns the unspent entry for the passed outpoint, or nil.
func (l *Ledger) LookupUtxo(outpoint wire.OutPoint) *chaindata.UtxoEntry {
	l.mtx.RLock()
	entry := l.utxoSet.LookupEntry(outpoint).Clone()
	l.mtx.RUnlock()

	return entry
}

// TxPool exposes the memory pool.  Callers must treat it as read-only and go
// through SubmitTransaction for admission so the ledger lock is honored.
func (l *Ledger) TxPool() *mempool.TxPool {
	return l.txPool
}

// UtxoSnapshot runs fn under the read lock with direct access to the utxo
// set, for persistence and inspection.  fn must not retain the set.
func (l *Ledger) UtxoSnapshot(fn func(utxoSet *chaindata.UtxoSet, tipHash chainhash.Hash, tipHeight int32) error) error {
	l.mtx.RLock()
	defer l.mtx.RUnlock()

	return fn(l.utxoSet, l.tipHash, l.tipHeight)
}

// RestoreState replaces the ledger's chain state with a persisted one.  It is
// called once during startup, before any concurrent access.
func (l *Ledger) RestoreState(utxoSet *chaindata.UtxoSet, tipHash chainhash.Hash, tipHeight int32) {
	l.mtx.Lock()
	l.utxoSet = utxoSet
	l.tipHash = tipHash
	l.tipHeight = tipHeight
	l.txPool.Clear()
	l.mtx.Unlock()
}
