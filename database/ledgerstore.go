// Copyright (c) 2015-2016 The btcsuite developers
// Copyright (c) 2025 The Embercoin developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package database persists the ledger chain state between runs.  It stores
// the utxo set, the version counter, and the chain tip in a badger key-value
// store under the node's data directory.  The memory pool is deliberately not
// persisted; pending transactions do not survive a restart.
package database

import (
	"bytes"
	"path/filepath"

	"github.com/dgraph-io/badger"
	"github.com/pkg/errors"

	"gitlab.com/embercoin/emberd/node/chaindata"
	"gitlab.com/embercoin/emberd/types/chainhash"
	"gitlab.com/embercoin/emberd/types/wire"
)

const storeDirName = "ledgerstate"

var (
	// utxoKeyPrefix prefixes one record per unspent output.  The rest of
	// the key is the serialized outpoint.
	utxoKeyPrefix = []byte("u")

	// chainStateKey holds the tip hash, tip height, and utxo set version.
	chainStateKey = []byte("chainstate")
)

// LedgerStore is a badger-backed store for the ledger chain state.
type LedgerStore struct {
	db *badger.DB
}

// Open opens (creating if needed) the ledger store under the passed data
// directory.
func Open(dataDir string) (*LedgerStore, error) {
	path := filepath.Join(dataDir, storeDirName)
	opts := badger.DefaultOptions(path)
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, errors.Wrap(err, "unable to open ledger store")
	}

	log.Debug().Str("path", path).Msg("ledger store opened")
	return &LedgerStore{db: db}, nil
}

// Close releases the underlying database.
func (s *LedgerStore) Close() error {
	return s.db.Close()
}

// serializeOutpoint returns the key suffix for an outpoint.
func serializeOutpoint(outpoint wire.OutPoint) []byte {
	buf := bytes.NewBuffer(make([]byte, 0, chainhash.HashSize+4))
	_ = wire.WriteElement(buf, &outpoint.Hash)
	_ = wire.WriteElement(buf, outpoint.Index)
	return buf.Bytes()
}

func deserializeOutpoint(key []byte) (wire.OutPoint, error) {
	var outpoint wire.OutPoint
	r := bytes.NewReader(key)
	if err := wire.ReadElement(r, &outpoint.Hash); err != nil {
		return outpoint, err
	}
	if err := wire.ReadElement(r, &outpoint.Index); err != nil {
		return outpoint, err
	}
	return outpoint, nil
}

// serializeUtxoEntry encodes amount, block height, coinbase flag, and the
// locking public key.
func serializeUtxoEntry(entry *chaindata.UtxoEntry) []byte {
	var buf bytes.Buffer
	_ = wire.WriteElement(&buf, entry.Amount())
	_ = wire.WriteElement(&buf, entry.BlockHeight())
	_ = wire.WriteElement(&buf, entry.IsCoinBase())
	_ = wire.WriteVarBytes(&buf, entry.PkScript())
	return buf.Bytes()
}

func deserializeUtxoEntry(value []byte) (*chaindata.UtxoEntry, error) {
	r := bytes.NewReader(value)

	var amount int64
	var blockHeight int32
	var isCoinBase bool
	if err := wire.ReadElement(r, &amount); err != nil {
		return nil, err
	}
	if err := wire.ReadElement(r, &blockHeight); err != nil {
		return nil, err
	}
	if err := wire.ReadElement(r, &isCoinBase); err != nil {
		return nil, err
	}
	pkScript, err := wire.ReadVarBytes(r, wire.MaxPkScriptSize, "pkScript")
	if err != nil {
		return nil, err
	}

	return chaindata.NewUtxoEntry(amount, pkScript, blockHeight, isCoinBase), nil
}

func serializeChainState(tipHash chainhash.Hash, tipHeight int32, utxoVersion uint64) []byte {
	var buf bytes.Buffer
	_ = wire.WriteElement(&buf, &tipHash)
	_ = wire.WriteElement(&buf, tipHeight)
	_ = wire.WriteElement(&buf, utxoVersion)
	return buf.Bytes()
}

func deserializeChainState(value []byte) (chainhash.Hash, int32, uint64, error) {
	var tipHash chainhash.Hash
	var tipHeight int32
	var utxoVersion uint64

	r := bytes.NewReader(value)
	if err := wire.ReadElement(r, &tipHash); err != nil {
		return tipHash, 0, 0, err
	}
	if err := wire.ReadElement(r, &tipHeight); err != nil {
		return tipHash, 0, 0, err
	}
	if err := wire.ReadElement(r, &utxoVersion); err != nil {
		return tipHash, 0, 0, err
	}
	return tipHash, tipHeight, utxoVersion, nil
}

// SaveState persists the full utxo set and the chain tip, replacing any
// previously stored state.
func (s *LedgerStore) SaveState(utxoSet *chaindata.UtxoSet, tipHash chainhash.Hash, tipHeight int32) error {
	if err := s.db.DropAll(); err != nil {
		return errors.Wrap(err, "unable to clear previous state")
	}

	wb := s.db.NewWriteBatch()
	defer wb.Cancel()

	for outpoint, entry := range utxoSet.Entries() {
		key := append(append([]byte{}, utxoKeyPrefix...),
			serializeOutpoint(outpoint)...)
		if err := wb.Set(key, serializeUtxoEntry(entry)); err != nil {
			return errors.Wrap(err, "unable to write utxo entry")
		}
	}

	state := serializeChainState(tipHash, tipHeight, utxoSet.Version())
	if err := wb.Set(chainStateKey, state); err != nil {
		return errors.Wrap(err, "unable to write chain state")
	}
	if err := wb.Flush(); err != nil {
		return errors.Wrap(err, "unable to flush ledger state")
	}

	log.Info().
		Int("entries", utxoSet.Size()).
		Int32("tipHeight", tipHeight).
		Uint64("utxoVersion", utxoSet.Version()).
		Msg("persisted ledger state")

	return nil
}

// LoadState restores a previously persisted utxo set and chain tip.  The
// boolean result is false when the store holds no state yet.
func (s *LedgerStore) LoadState() (*chaindata.UtxoSet, chainhash.Hash, int32, bool, error) {
	utxoSet := chaindata.NewUtxoSet()
	var tipHash chainhash.Hash
	var tipHeight int32
	found := false

	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(chainStateKey)
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		err = item.Value(func(val []byte) error {
			var version uint64
			tipHash, tipHeight, version, err = deserializeChainState(val)
			if err != nil {
				return err
			}
			utxoSet.SetVersion(version)
			found = true
			return nil
		})
		if err != nil {
			return err
		}

		opts := badger.DefaultIteratorOptions
		opts.Prefix = utxoKeyPrefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			outpoint, err := deserializeOutpoint(item.Key()[len(utxoKeyPrefix):])
			if err != nil {
				return err
			}
			err = item.Value(func(val []byte) error {
				entry, err := deserializeUtxoEntry(val)
				if err != nil {
					return err
				}
				utxoSet.RestoreEntry(outpoint, entry)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, tipHash, 0, false, errors.Wrap(err, "unable to load ledger state")
	}
	if !found {
		return nil, tipHash, 0, false, nil
	}

	log.Info().
		Int("entries", utxoSet.Size()).
		Int32("tipHeight", tipHeight).
		Uint64("utxoVersion", utxoSet.Version()).
		Msg("restored ledger state")

	return utxoSet, tipHash, tipHeight, true, nil
}
