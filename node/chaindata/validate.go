// Copyright (c) 2013-2016 The btcsuite developers
// Copyright (c) 2025 The Embercoin developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package chaindata

import (
	"fmt"
	"math"

	"gitlab.com/embercoin/emberd/ecsig"
	"gitlab.com/embercoin/emberd/types/chainhash"
	"gitlab.com/embercoin/emberd/types/wire"
)

const (
	// MaxSatoshi is the maximum transaction amount allowed in satoshi,
	// also bounding the total supply.
	MaxSatoshi = 21e6 * 1e8
)

// ReservationView provides read access to the outpoint reservations held by
// pending transactions.  The mempool implements it; validation consults it to
// reject double spends against earlier-admitted transactions.
type ReservationView interface {
	// Spender returns the hash of the pending transaction currently
	// reserving the outpoint, if any.
	Spender(outpoint wire.OutPoint) (chainhash.Hash, bool)
}

// emptyReservations is a ReservationView with no reservations.  It is used
// when validating block transactions, which do not compete with the mempool.
type emptyReservations struct{}

func (emptyReservations) Spender(wire.OutPoint) (chainhash.Hash, bool) {
	return chainhash.Hash{}, false
}

// NoReservations is a ReservationView that never reports a spender.
var NoReservations ReservationView = emptyReservations{}

// CheckTransactionSanity performs some preliminary checks on a transaction to
// ensure it is sane.  These checks are context free: they do not consult the
// utxo set or the mempool.
func CheckTransactionSanity(tx *wire.MsgTx) error {
	// A transaction must have at least one input.
	if len(tx.TxIn) == 0 {
		return ruleError(ErrMalformedTransaction, "transaction has no inputs")
	}

	// A transaction must have at least one output.
	if len(tx.TxOut) == 0 {
		return ruleError(ErrMalformedTransaction, "transaction has no outputs")
	}

	// A transaction must not exceed the maximum allowed block payload when
	// serialized.
	serializedTxSize := tx.SerializeSize()
	if serializedTxSize > wire.MaxTxPayload {
		str := fmt.Sprintf("serialized transaction is too big - got "+
			"%d, max %d", serializedTxSize, wire.MaxTxPayload)
		return ruleError(ErrMalformedTransaction, str)
	}

	// Ensure the transaction amounts are in range.  Each transaction
	// output must not be negative or more than the max allowed per
	// transaction.  Also, the total of all outputs must abide by the same
	// restrictions.
	var totalSatoshi int64
	for _, txOut := range tx.TxOut {
		satoshi := txOut.Value
		if satoshi < 0 {
			str := fmt.Sprintf("transaction output has negative "+
				"value of %v", satoshi)
			return ruleError(ErrMalformedTransaction, str)
		}
		if satoshi > MaxSatoshi {
			str := fmt.Sprintf("transaction output value of %v is "+
				"higher than max allowed value of %v", satoshi,
				int64(MaxSatoshi))
			return ruleError(ErrMalformedTransaction, str)
		}

		// Two's complement int64 overflow guarantees that any overflow
		// is detected and reported.
		totalSatoshi += satoshi
		if totalSatoshi < 0 || totalSatoshi > MaxSatoshi {
			str := fmt.Sprintf("total value of all transaction "+
				"outputs is %v which is invalid", totalSatoshi)
			return ruleError(ErrMalformedTransaction, str)
		}
	}

	// Check for duplicate transaction inputs.
	existingTxOut := make(map[wire.OutPoint]struct{})
	for _, txIn := range tx.TxIn {
		if _, exists := existingTxOut[txIn.PreviousOutPoint]; exists {
			return ruleError(ErrMalformedTransaction,
				"transaction contains duplicate inputs")
		}
		existingTxOut[txIn.PreviousOutPoint] = struct{}{}
	}

	if tx.IsCoinBase() {
		return nil
	}

	// Previous transaction outputs referenced by the inputs to this
	// transaction must not be null.
	for _, txIn := range tx.TxIn {
		if txIn.PreviousOutPoint.Index == math.MaxUint32 &&
			txIn.PreviousOutPoint.Hash == chainhash.ZeroHash {
			return ruleError(ErrMalformedTransaction,
				"transaction input refers to previous output that is null")
		}
	}

	return nil
}

// ValidateTransaction checks a candidate transaction against the utxo set and
// the mempool reservation index.  It is purely functional over its inputs: it
// never mutates the set or the pool.  Admission into the mempool is a
// separate step performed by the caller after a nil return.
//
// The checks run in a fixed order and the first failure wins:
//
//  1. structural sanity (ErrMalformedTransaction)
//  2. input existence in the utxo set (ErrMissingInput)
//  3. no conflict with pending reservations (ErrDoubleSpend)
//  4. input value covers output value (ErrInsufficientFunds)
//  5. every input signature verifies (ErrInvalidSignature)
func ValidateTransaction(tx *wire.MsgTx, utxoSet *UtxoSet, reservations ReservationView) error {
	if err := CheckTransactionSanity(tx); err != nil {
		return err
	}
	if tx.IsCoinBase() {
		return ruleError(ErrMalformedTransaction,
			"coinbase transaction cannot be submitted individually")
	}

	txHash := tx.TxHash()

	// Every referenced output must resolve in the utxo set.  An outpoint
	// absent from the set either never existed or was already spent by a
	// confirmed transaction.
	entries := make([]*UtxoEntry, len(tx.TxIn))
	for i, txIn := range tx.TxIn {
		entry := utxoSet.LookupEntry(txIn.PreviousOutPoint)
		if entry == nil {
			str := fmt.Sprintf("output %v referenced from "+
				"transaction %v input %d either does not exist or "+
				"has already been spent", txIn.PreviousOutPoint,
				txHash, i)
			return ruleError(ErrMissingInput, str)
		}
		entries[i] = entry
	}

	// First come, first served: an outpoint already reserved by an
	// earlier-admitted pending transaction stays with it, whatever this
	// transaction offers.
	for _, txIn := range tx.TxIn {
		if spender, ok := reservations.Spender(txIn.PreviousOutPoint); ok {
			str := fmt.Sprintf("output %v already spent by "+
				"transaction %v in the memory pool",
				txIn.PreviousOutPoint, spender)
			return ruleError(ErrDoubleSpend, str)
		}
	}

	// The difference between inputs and outputs is the implicit fee; it
	// must not be negative.  Fees are not used for prioritization.
	var totalIn int64
	for _, entry := range entries {
		totalIn += entry.Amount()
	}
	var totalOut int64
	for _, txOut := range tx.TxOut {
		totalOut += txOut.Value
	}
	if totalIn < totalOut {
		str := fmt.Sprintf("total value of all transaction inputs for "+
			"transaction %v is %v which is less than the amount "+
			"spent of %v", txHash, totalIn, totalOut)
		return ruleError(ErrInsufficientFunds, str)
	}

	// Every input must carry a valid signature of the transaction digest
	// under the referenced output's locking public key, on the curve the
	// input declares.
	digest := tx.SignatureHash()
	for i, txIn := range tx.TxIn {
		valid, err := ecsig.Verify(ecsig.CurveID(txIn.CurveID),
			entries[i].PkScript(), digest[:], txIn.Signature)
		if err != nil {
			str := fmt.Sprintf("transaction %v input %d: %v",
				txHash, i, err)
			return RuleError{
				ErrorCode:   ErrInvalidSignature,
				Description: str,
				Err:         err,
			}
		}
		if !valid {
			str := fmt.Sprintf("transaction %v input %d signature "+
				"does not verify against the referenced output",
				txHash, i)
			return ruleError(ErrInvalidSignature, str)
		}
	}

	return nil
}

// CheckBlockSanity validates a candidate block against the current chain tip
// hash before it is connected: the first transaction must be a coinbase and
// the only coinbase, the header must link to the tip, and the merkle root
// must commit to the block's transactions.
func CheckBlockSanity(block *wire.MsgBlock, tipHash chainhash.Hash) error {
	if block.Header.PrevBlock != tipHash {
		str := fmt.Sprintf("block header links to %v which is not the "+
			"current tip %v", block.Header.PrevBlock, tipHash)
		return ruleError(ErrBadPrevBlock, str)
	}

	transactions := block.Transactions
	if len(transactions) == 0 || !transactions[0].IsCoinBase() {
		return ruleError(ErrMissingCoinbase,
			"first transaction in block is not a coinbase")
	}
	for i, tx := range transactions[1:] {
		if tx.IsCoinBase() {
			str := fmt.Sprintf("block contains second coinbase at "+
				"index %d", i+1)
			return ruleError(ErrMissingCoinbase, str)
		}
		if err := CheckTransactionSanity(tx); err != nil {
			return err
		}
	}

	merkleRoot := chainhash.MerkleTreeRoot(block.TxHashes())
	if block.Header.MerkleRoot != merkleRoot {
		str := fmt.Sprintf("block merkle root is invalid - block "+
			"header indicates %v, but calculated value is %v",
			block.Header.MerkleRoot, merkleRoot)
		return ruleError(ErrBadMerkleRoot, str)
	}

	return nil
}
