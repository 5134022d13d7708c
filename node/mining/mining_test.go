// Copyright (c) 2016 The btcsuite developers
// Copyright (c) 2025 The Embercoin developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package mining

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"gitlab.com/embercoin/emberd/node/mempool"
	"gitlab.com/embercoin/emberd/types/chainhash"
	"gitlab.com/embercoin/emberd/types/wire"
)

// fakeChain is a scripted ChainSource.
type fakeChain struct {
	tipHash     chainhash.Hash
	tipHeight   int32
	utxoVersion uint64
}

func (c *fakeChain) BestState() (chainhash.Hash, int32, uint64) {
	return c.tipHash, c.tipHeight, c.utxoVersion
}

// fakeTxSource is a scripted TxSource.
type fakeTxSource struct {
	descs       []*mempool.TxDesc
	lastUpdated time.Time
}

func (s *fakeTxSource) TxDescs() []*mempool.TxDesc { return s.descs }
func (s *fakeTxSource) LastUpdated() time.Time     { return s.lastUpdated }

// raceTxSource admits a pending transaction the moment a snapshot is taken,
// modeling an admission landing while a template build is in flight.
type raceTxSource struct {
	fakeTxSource
	pending *mempool.TxDesc
}

func (s *raceTxSource) TxDescs() []*mempool.TxDesc {
	descs := s.descs
	if s.pending != nil {
		s.descs = append(append([]*mempool.TxDesc(nil), s.descs...), s.pending)
		s.lastUpdated = time.Now().Add(time.Millisecond)
		s.pending = nil
	}
	return descs
}

// fakeAcceptor records submitted blocks and optionally fails.
type fakeAcceptor struct {
	accepted []*wire.MsgBlock
	err      error
	onAccept func(*wire.MsgBlock)
}

func (a *fakeAcceptor) AcceptBlock(block *wire.MsgBlock) error {
	if a.err != nil {
		return a.err
	}
	a.accepted = append(a.accepted, block)
	if a.onAccept != nil {
		a.onAccept(block)
	}
	return nil
}

func testDesc(sequence uint64, fee int64, prevOuts ...wire.OutPoint) *mempool.TxDesc {
	tx := wire.NewMsgTx(wire.TxVersion)
	for _, prevOut := range prevOuts {
		out := prevOut
		tx.AddTxIn(wire.NewTxIn(&out, []byte{0x30, byte(sequence)}, 1))
	}
	tx.AddTxOut(wire.NewTxOut(100, []byte{0x02, byte(sequence)}))
	return &mempool.TxDesc{Tx: tx, Sequence: sequence, Fee: fee}
}

func newTestGenerator(chain ChainSource, source TxSource, acceptor *fakeAcceptor) *BlkTmplGenerator {
	return NewBlkTmplGenerator(Config{
		BlockSubsidy:     50,
		CoinbasePkScript: []byte{0x02, 0xfe},
	}, source, chain, acceptor)
}

func TestTemplateBuiltOnFirstPoll(t *testing.T) {
	chain := &fakeChain{
		tipHash:     chainhash.DoubleHashH([]byte("tip")),
		tipHeight:   7,
		utxoVersion: 3,
	}
	source := &fakeTxSource{lastUpdated: time.Now()}
	g := newTestGenerator(chain, source, &fakeAcceptor{})

	tmpl, state := g.CurrentTemplate()
	require.Nil(t, tmpl)

	g.pollOnce()

	tmpl, state = g.CurrentTemplate()
	require.NotNil(t, tmpl)
	require.Equal(t, StateFresh, state)
	require.Equal(t, int32(8), tmpl.Height)
	require.Equal(t, uint64(3), tmpl.UtxoVersion)
	require.Equal(t, chain.tipHash, tmpl.Block.Header.PrevBlock)

	// Only the coinbase, paying exactly the subsidy.
	require.Len(t, tmpl.Block.Transactions, 1)
	coinbase := tmpl.Block.Transactions[0]
	require.True(t, coinbase.IsCoinBase())
	require.Equal(t, int64(50), coinbase.TxOut[0].Value)

	// The header commits to the transactions.
	require.Equal(t, chainhash.MerkleTreeRoot(tmpl.Block.TxHashes()),
		tmpl.Block.Header.MerkleRoot)
}

func TestTemplateIdempotentWhileLedgerUnchanged(t *testing.T) {
	chain := &fakeChain{utxoVersion: 1}
	source := &fakeTxSource{lastUpdated: time.Now()}
	g := newTestGenerator(chain, source, &fakeAcceptor{})

	g.pollOnce()
	first, _ := g.CurrentTemplate()

	// Any number of polls against an unchanged ledger keeps the same
	// template instance.
	for i := 0; i < 5; i++ {
		g.pollOnce()
	}
	second, state := g.CurrentTemplate()
	require.Equal(t, StateFresh, state)
	require.Equal(t, first.Token, second.Token)
	require.Same(t, first, second)
}

func TestTemplateRebuiltOnUtxoVersionChange(t *testing.T) {
	chain := &fakeChain{utxoVersion: 1}
	source := &fakeTxSource{lastUpdated: time.Now()}
	g := newTestGenerator(chain, source, &fakeAcceptor{})

	g.pollOnce()
	first, _ := g.CurrentTemplate()

	chain.utxoVersion = 2
	chain.tipHeight = 1
	g.pollOnce()

	second, state := g.CurrentTemplate()
	require.Equal(t, StateFresh, state)
	require.NotEqual(t, first.Token, second.Token)
	require.Equal(t, uint64(2), second.UtxoVersion)
}

func TestTemplateRebuiltOnPoolChange(t *testing.T) {
	chain := &fakeChain{utxoVersion: 1}
	source := &fakeTxSource{lastUpdated: time.Now()}
	g := newTestGenerator(chain, source, &fakeAcceptor{})

	g.pollOnce()
	first, _ := g.CurrentTemplate()

	prevOut := wire.OutPoint{Hash: chainhash.DoubleHashH([]byte("a"))}
	source.descs = []*mempool.TxDesc{testDesc(1, 5, prevOut)}
	source.lastUpdated = time.Now().Add(time.Millisecond)
	g.pollOnce()

	second, _ := g.CurrentTemplate()
	require.NotEqual(t, first.Token, second.Token)
	require.Len(t, second.Block.Transactions, 2)

	// Fees flow into the coinbase output.
	require.Equal(t, int64(55), second.Block.Transactions[0].TxOut[0].Value)
	require.Equal(t, int64(5), second.Fees)
}

func TestTemplateStaleWhenAdmissionRacesBuild(t *testing.T) {
	// A transaction admitted between the pool stamp read and the snapshot
	// is missing from the template being built; the recorded stamp must
	// predate the admission so the next poll notices and rebuilds.
	chain := &fakeChain{utxoVersion: 1}
	prevOut := wire.OutPoint{Hash: chainhash.DoubleHashH([]byte("a"))}
	source := &raceTxSource{
		fakeTxSource: fakeTxSource{lastUpdated: time.Now()},
		pending:      testDesc(1, 5, prevOut),
	}
	g := newTestGenerator(chain, source, &fakeAcceptor{})

	// The first build snapshots the empty pool while the admission lands.
	g.pollOnce()
	first, state := g.CurrentTemplate()
	require.Equal(t, StateFresh, state)
	require.Len(t, first.Block.Transactions, 1)

	// The next poll sees the pool past the recorded stamp and rebuilds
	// with the missed transaction included.
	g.pollOnce()
	second, state := g.CurrentTemplate()
	require.Equal(t, StateFresh, state)
	require.NotEqual(t, first.Token, second.Token)
	require.Len(t, second.Block.Transactions, 2)
	require.Equal(t, int64(5), second.Fees)
}

func TestTemplateInclusionFollowsAdmissionOrder(t *testing.T) {
	chain := &fakeChain{utxoVersion: 1}
	outA := wire.OutPoint{Hash: chainhash.DoubleHashH([]byte("a"))}
	outB := wire.OutPoint{Hash: chainhash.DoubleHashH([]byte("b"))}
	outC := wire.OutPoint{Hash: chainhash.DoubleHashH([]byte("c"))}

	// Higher fee never jumps the queue.
	descs := []*mempool.TxDesc{
		testDesc(1, 1, outA),
		testDesc(2, 100, outB),
		testDesc(3, 50, outC),
	}
	source := &fakeTxSource{descs: descs, lastUpdated: time.Now()}
	g := newTestGenerator(chain, source, &fakeAcceptor{})
	g.pollOnce()

	tmpl, _ := g.CurrentTemplate()
	require.Len(t, tmpl.Block.Transactions, 4)
	for i, desc := range descs {
		require.Equal(t, desc.Tx.TxHash(), tmpl.Block.Transactions[i+1].TxHash())
	}
}

func TestTemplateFiltersConflictingSnapshot(t *testing.T) {
	// If a snapshot somehow carries two spends of one outpoint, the first
	// admitted wins and the other is left out.
	chain := &fakeChain{utxoVersion: 1}
	shared := wire.OutPoint{Hash: chainhash.DoubleHashH([]byte("shared"))}
	descs := []*mempool.TxDesc{
		testDesc(1, 5, shared),
		testDesc(2, 50, shared),
	}
	source := &fakeTxSource{descs: descs, lastUpdated: time.Now()}
	g := newTestGenerator(chain, source, &fakeAcceptor{})
	g.pollOnce()

	tmpl, _ := g.CurrentTemplate()
	require.Len(t, tmpl.Block.Transactions, 2)
	require.Equal(t, descs[0].Tx.TxHash(), tmpl.Block.Transactions[1].TxHash())
	require.Equal(t, int64(5), tmpl.Fees)
}

func TestSubmitSolution(t *testing.T) {
	chain := &fakeChain{utxoVersion: 1}
	source := &fakeTxSource{lastUpdated: time.Now()}
	acceptor := &fakeAcceptor{}
	g := newTestGenerator(chain, source, acceptor)
	g.pollOnce()

	tmpl, _ := g.CurrentTemplate()
	block, err := g.SubmitSolution(tmpl.Token, 12345, time.Now())
	require.NoError(t, err)
	require.Equal(t, uint32(12345), block.Header.Nonce)
	require.Len(t, acceptor.accepted, 1)

	// The template is consumed: submitting the same work again is stale.
	_, err = g.SubmitSolution(tmpl.Token, 12345, time.Now())
	require.ErrorIs(t, err, ErrStaleTemplate)
}

func TestSubmitSolutionLeavesTemplateBlockUntouched(t *testing.T) {
	chain := &fakeChain{utxoVersion: 1}
	source := &fakeTxSource{lastUpdated: time.Now()}
	g := newTestGenerator(chain, source, &fakeAcceptor{})
	g.pollOnce()

	tmpl, _ := g.CurrentTemplate()
	block, err := g.SubmitSolution(tmpl.Token, 777, time.Now())
	require.NoError(t, err)

	// The solution goes into a copy; the block handed out with the
	// template keeps its unsolved header.
	require.NotSame(t, tmpl.Block, block)
	require.Equal(t, uint32(777), block.Header.Nonce)
	require.Equal(t, uint32(0), tmpl.Block.Header.Nonce)
}

func TestSubmitSolutionRebuildsImmediately(t *testing.T) {
	chain := &fakeChain{tipHeight: 3, utxoVersion: 1}
	source := &fakeTxSource{lastUpdated: time.Now()}
	acceptor := &fakeAcceptor{}
	acceptor.onAccept = func(block *wire.MsgBlock) {
		chain.tipHash = block.BlockHash()
		chain.tipHeight++
		chain.utxoVersion++
	}
	g := newTestGenerator(chain, source, acceptor)
	g.pollOnce()

	tmpl, _ := g.CurrentTemplate()
	block, err := g.SubmitSolution(tmpl.Token, 1, time.Now())
	require.NoError(t, err)

	// A replacement for the next height is ready without another poll.
	next, state := g.CurrentTemplate()
	require.NotNil(t, next)
	require.Equal(t, StateFresh, state)
	require.Equal(t, tmpl.Height+1, next.Height)
	require.Equal(t, block.BlockHash(), next.Block.Header.PrevBlock)
	require.NotEqual(t, tmpl.Token, next.Token)
}

func TestSubmitSolutionStaleToken(t *testing.T) {
	chain := &fakeChain{utxoVersion: 1}
	source := &fakeTxSource{lastUpdated: time.Now()}
	g := newTestGenerator(chain, source, &fakeAcceptor{})
	g.pollOnce()

	tmpl, _ := g.CurrentTemplate()

	// The ledger moves and the poller rebuilds before the miner submits.
	chain.utxoVersion = 2
	g.pollOnce()

	_, err := g.SubmitSolution(tmpl.Token, 1, time.Time{})
	require.ErrorIs(t, err, ErrStaleTemplate)
}

func TestSubmitSolutionDetectsUnpolledStaleness(t *testing.T) {
	chain := &fakeChain{utxoVersion: 1}
	source := &fakeTxSource{lastUpdated: time.Now()}
	g := newTestGenerator(chain, source, &fakeAcceptor{})
	g.pollOnce()

	tmpl, _ := g.CurrentTemplate()

	// The ledger moves but no poll has run yet: submission still detects
	// the mismatch itself.
	chain.utxoVersion = 2

	_, err := g.SubmitSolution(tmpl.Token, 1, time.Time{})
	require.ErrorIs(t, err, ErrStaleTemplate)

	_, state := g.CurrentTemplate()
	require.Equal(t, StateStale, state)
}
