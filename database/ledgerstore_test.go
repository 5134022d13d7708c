// Copyright (c) 2015-2016 The btcsuite developers
// Copyright (c) 2025 The Embercoin developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package database

import (
	"testing"

	"github.com/stretchr/testify/require"

	"gitlab.com/embercoin/emberd/node/chaindata"
	"gitlab.com/embercoin/emberd/types/chainhash"
	"gitlab.com/embercoin/emberd/types/wire"
)

func testOutPoint(salt byte, index uint32) wire.OutPoint {
	return wire.OutPoint{
		Hash:  chainhash.DoubleHashH([]byte{salt}),
		Index: index,
	}
}

func TestLoadStateEmptyStore(t *testing.T) {
	store, err := Open(t.TempDir())
	require.NoError(t, err)
	defer store.Close()

	_, _, _, found, err := store.LoadState()
	require.NoError(t, err)
	require.False(t, found)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()

	set := chaindata.NewUtxoSet()
	set.RestoreEntry(testOutPoint(1, 0),
		chaindata.NewUtxoEntry(100, []byte{0x02, 0xaa}, 0, true))
	set.RestoreEntry(testOutPoint(2, 3),
		chaindata.NewUtxoEntry(55, []byte{0x03, 0xbb}, 4, false))
	set.SetVersion(9)

	tipHash := chainhash.DoubleHashH([]byte("tip"))

	store, err := Open(dir)
	require.NoError(t, err)
	require.NoError(t, store.SaveState(set, tipHash, 4))
	require.NoError(t, store.Close())

	// Reopen and restore.
	store, err = Open(dir)
	require.NoError(t, err)
	defer store.Close()

	loaded, loadedTip, loadedHeight, found, err := store.LoadState()
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, tipHash, loadedTip)
	require.Equal(t, int32(4), loadedHeight)
	require.Equal(t, uint64(9), loaded.Version())
	require.Equal(t, 2, loaded.Size())

	entry := loaded.LookupEntry(testOutPoint(1, 0))
	require.NotNil(t, entry)
	require.Equal(t, int64(100), entry.Amount())
	require.Equal(t, []byte{0x02, 0xaa}, entry.PkScript())
	require.True(t, entry.IsCoinBase())
	require.Equal(t, int32(0), entry.BlockHeight())

	entry = loaded.LookupEntry(testOutPoint(2, 3))
	require.NotNil(t, entry)
	require.Equal(t, int64(55), entry.Amount())
	require.False(t, entry.IsCoinBase())
	require.Equal(t, int32(4), entry.BlockHeight())
}

func TestSaveStateReplacesPrevious(t *testing.T) {
	dir := t.TempDir()
	store, err := Open(dir)
	require.NoError(t, err)
	defer store.Close()

	first := chaindata.NewUtxoSet()
	first.RestoreEntry(testOutPoint(1, 0),
		chaindata.NewUtxoEntry(100, []byte{0x02}, 0, false))
	first.SetVersion(1)
	require.NoError(t, store.SaveState(first, chainhash.Hash{}, 0))

	second := chaindata.NewUtxoSet()
	second.RestoreEntry(testOutPoint(2, 0),
		chaindata.NewUtxoEntry(40, []byte{0x03}, 1, false))
	second.SetVersion(2)
	require.NoError(t, store.SaveState(second, chainhash.Hash{}, 1))

	loaded, _, _, found, err := store.LoadState()
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, 1, loaded.Size())
	require.Nil(t, loaded.LookupEntry(testOutPoint(1, 0)))
	require.NotNil(t, loaded.LookupEntry(testOutPoint(2, 0)))
}
