// Copyright (c) 2014-2016 The btcsuite developers
// Copyright (c) 2025 The Embercoin developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package mining

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/pkg/errors"

	"gitlab.com/embercoin/emberd/node/mempool"
	"gitlab.com/embercoin/emberd/types/chainhash"
	"gitlab.com/embercoin/emberd/types/wire"
)

const (
	// DefaultPollInterval is how often the generator checks whether the
	// current template has gone stale when no interval is configured.
	DefaultPollInterval = 5 * time.Second

	// generatedBlockVersion is the version of the block being generated.
	generatedBlockVersion = 1

	// templateBits is the compact difficulty target placed in generated
	// headers.  Proof of work is out of scope for a single-node ledger, so
	// the value is a constant carried for wire compatibility.
	templateBits = 0x207fffff
)

// ErrStaleTemplate is returned by SubmitSolution when the solved template no
// longer matches the current ledger state.  The miner is expected to discard
// its work and fetch a fresh template; the rejection is not an error in the
// ledger itself.
var ErrStaleTemplate = errors.New("solved template is stale")

// TemplateState describes the generator's view of its current template.
type TemplateState int

const (
	// StateFresh means the template still matches the ledger state it was
	// built against.
	StateFresh TemplateState = iota

	// StateStale means the ledger has changed since the template was
	// built; a rebuild is pending or in progress.
	StateStale

	// StateRebuilding means the generator is assembling a replacement
	// template right now.
	StateRebuilding
)

// String returns the TemplateState as a human-readable name.
func (s TemplateState) String() string {
	switch s {
	case StateFresh:
		return "fresh"
	case StateStale:
		return "stale"
	case StateRebuilding:
		return "rebuilding"
	}
	return "unknown"
}

// TxSource represents a source of transactions to consider for inclusion in
// new blocks.  The memory pool implements it.
type TxSource interface {
	// TxDescs returns a snapshot of pending transactions in admission
	// order, which is also the inclusion order.
	TxDescs() []*mempool.TxDesc

	// LastUpdated returns the last time a transaction was added to or
	// removed from the source.
	LastUpdated() time.Time
}

// ChainSource provides the generator with the chain state a template is built
// against.  The owning node implements it over the ledger lock.
type ChainSource interface {
	// BestState returns the hash and height of the current best block
	// together with the utxo set version, read as a single consistent
	// view of the chain.
	BestState() (tipHash chainhash.Hash, tipHeight int32, utxoVersion uint64)
}

// BlockAcceptor consumes solved blocks handed over by SubmitSolution.
type BlockAcceptor interface {
	// AcceptBlock fully validates the block and connects it to the
	// ledger.
	AcceptBlock(block *wire.MsgBlock) error
}

// Config customizes the template generator.
type Config struct {
	// PollInterval is how often the staleness check runs.  Zero selects
	// DefaultPollInterval.
	PollInterval time.Duration

	// BlockSubsidy is the amount the coinbase output of every generated
	// template pays, before fees.
	BlockSubsidy int64

	// CoinbasePkScript is the locking public key the coinbase output pays
	// to.
	CoinbasePkScript []byte
}

// BlockTemplate houses a block that has yet to be solved along with the
// ledger state it was assembled from.
type BlockTemplate struct {
	// Block is a block that is ready to be solved by miners.  Thus, it is
	// completely valid with the exception of satisfying the proof-of-work
	// requirement.
	Block *wire.MsgBlock

	// Height is the height at which the block template connects to the
	// chain.
	Height int32

	// UtxoVersion is the utxo set version the template was built against.
	// A mismatch against the live set marks the template stale.
	UtxoVersion uint64

	// Token identifies this particular template instance.  SubmitSolution
	// matches it against the current template to detect stale work.
	Token uint64

	// Fees is the total implicit fee of the included transactions, paid
	// to the coinbase output on top of the subsidy.
	Fees int64

	// GeneratedAt records when the template was assembled.
	GeneratedAt time.Time
}

// BlkTmplGenerator assembles block templates for miners and keeps exactly one
// current template, refreshed by a background polling loop rather than by
// change notifications.  Reads of the current template never block on a
// rebuild: a stale template stays readable until its replacement is swapped
// in.
type BlkTmplGenerator struct {
	cfg      Config
	txSource TxSource
	chain    ChainSource
	acceptor BlockAcceptor

	mtx sync.RWMutex
	// current is nil until the first rebuild completes.
	current *BlockTemplate
	state   TemplateState
	// poolStamp is the TxSource.LastUpdated value the current template
	// was built against.
	poolStamp time.Time
	nextToken uint64
}

// NewBlkTmplGenerator returns a new block template generator for the given
// transaction and chain sources.  Run must be started for templates to
// refresh.
func NewBlkTmplGenerator(cfg Config, txSource TxSource, chain ChainSource,
	acceptor BlockAcceptor) *BlkTmplGenerator {

	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	return &BlkTmplGenerator{
		cfg:      cfg,
		txSource: txSource,
		chain:    chain,
		acceptor: acceptor,
		state:    StateStale,
	}
}

// Run drives the polling loop until the context is canceled.  The first
// template is built immediately, then the ledger is re-checked for staleness
// on every tick.
func (g *BlkTmplGenerator) Run(ctx context.Context) {
	log.Info().
		Dur("pollInterval", g.cfg.PollInterval).
		Msg("template generator started")

	g.pollOnce()

	ticker := time.NewTicker(g.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("template generator stopped")
			return
		case <-ticker.C:
			g.pollOnce()
		}
	}
}

// pollOnce checks the current template against the live ledger state and
// rebuilds it when it has gone stale.  Rebuilds that observe an unchanged
// ledger are deliberately skipped, so an idle ledger keeps the same template
// across any number of polls.
func (g *BlkTmplGenerator) pollOnce() {
	g.mtx.Lock()
	if g.current != nil && !g.isStaleLocked() {
		g.state = StateFresh
		g.mtx.Unlock()
		return
	}
	g.state = StateRebuilding
	g.mtx.Unlock()

	tmpl, poolStamp := g.buildTemplate()

	g.mtx.Lock()
	g.nextToken++
	tmpl.Token = g.nextToken
	g.current = tmpl
	g.state = StateFresh
	g.poolStamp = poolStamp
	g.mtx.Unlock()

	log.Debug().
		Uint64("token", tmpl.Token).
		Int32("height", tmpl.Height).
		Int("txns", len(tmpl.Block.Transactions)).
		Int64("fees", tmpl.Fees).
		Msg("rebuilt block template")
}

// isStaleLocked reports whether the current template no longer matches the
// ledger.  Both the utxo set version and the pool update stamp are compared;
// either moving marks the template stale.  The caller must hold the mutex.
func (g *BlkTmplGenerator) isStaleLocked() bool {
	_, _, utxoVersion := g.chain.BestState()
	if g.current.UtxoVersion != utxoVersion {
		return true
	}
	return g.txSource.LastUpdated().After(g.poolStamp)
}

// buildTemplate assembles a new template from the current chain tip and the
// pending transaction snapshot.  It returns the template together with the
// pool stamp the staleness check must compare against.
func (g *BlkTmplGenerator) buildTemplate() (*BlockTemplate, time.Time) {
	// The stamp is read before the snapshot.  A transaction admitted
	// between the two reads advances the pool past poolStamp, so the
	// template missing it goes stale on the next check rather than being
	// recorded as covering the admission.
	poolStamp := g.txSource.LastUpdated()
	descs := g.txSource.TxDescs()
	prevHash, tipHeight, utxoVersion := g.chain.BestState()
	nextHeight := tipHeight + 1

	// The pool already guarantees at most one pending spender per
	// outpoint, but the template is what miners burn work on, so conflicts
	// are filtered once more here.  First admitted keeps the outpoint.
	blockTxns := make([]*wire.MsgTx, 0, len(descs)+1)
	usedOutpoints := make(map[wire.OutPoint]struct{})
	var totalFees int64
	for _, desc := range descs {
		conflict := false
		for _, txIn := range desc.Tx.TxIn {
			if _, used := usedOutpoints[txIn.PreviousOutPoint]; used {
				conflict = true
				break
			}
		}
		if conflict {
			log.Warn().
				Stringer("txid", desc.Tx.TxHash()).
				Msg("skipping pool transaction conflicting within template")
			continue
		}
		for _, txIn := range desc.Tx.TxIn {
			usedOutpoints[txIn.PreviousOutPoint] = struct{}{}
		}
		blockTxns = append(blockTxns, desc.Tx)
		totalFees += desc.Fee
	}

	coinbaseTx := createCoinbaseTx(g.cfg.BlockSubsidy+totalFees,
		g.cfg.CoinbasePkScript, nextHeight)
	blockTxns = append([]*wire.MsgTx{coinbaseTx}, blockTxns...)

	block := &wire.MsgBlock{
		Header: wire.BlockHeader{
			Version:   generatedBlockVersion,
			PrevBlock: prevHash,
			Timestamp: time.Now(),
			Bits:      templateBits,
		},
	}
	for _, tx := range blockTxns {
		block.AddTransaction(tx)
	}
	block.Header.MerkleRoot = chainhash.MerkleTreeRoot(block.TxHashes())

	return &BlockTemplate{
		Block:       block,
		Height:      nextHeight,
		UtxoVersion: utxoVersion,
		Fees:        totalFees,
		GeneratedAt: time.Now(),
	}, poolStamp
}

// createCoinbaseTx returns a coinbase transaction paying the passed value to
// the passed locking public key.  The input sequence carries the block height
// so coinbase transactions at different heights never hash alike.
func createCoinbaseTx(value int64, pkScript []byte, nextHeight int32) *wire.MsgTx {
	tx := wire.NewMsgTx(wire.TxVersion)
	tx.AddTxIn(&wire.TxIn{
		PreviousOutPoint: wire.OutPoint{
			Hash:  chainhash.ZeroHash,
			Index: math.MaxUint32,
		},
		Sequence: uint32(nextHeight),
	})
	tx.AddTxOut(&wire.TxOut{
		Value:    value,
		PkScript: pkScript,
	})
	return tx
}

// CurrentTemplate returns the latest assembled template together with the
// generator's current view of its freshness.  It never blocks on a rebuild;
// during one it returns the previous template marked StateRebuilding.  The
// template is nil until the first rebuild completes and, briefly, while a
// submitted solution is being connected; SubmitSolution rebuilds before it
// returns.
func (g *BlkTmplGenerator) CurrentTemplate() (*BlockTemplate, TemplateState) {
	g.mtx.RLock()
	tmpl, state := g.current, g.state
	g.mtx.RUnlock()

	return tmpl, state
}

// SubmitSolution accepts a solved template from a miner.  The solved header
// fields (timestamp and nonce) are folded into the template's block, which is
// then handed to the acceptor for full validation and connection.
//
// A submission whose token does not match the current template, or whose
// template was built against an older ledger state, is rejected with
// ErrStaleTemplate and the miner must start over on a fresh template.  After
// the hand-off a replacement template is built immediately, whether or not
// the block was accepted.
func (g *BlkTmplGenerator) SubmitSolution(token uint64, nonce uint32,
	timestamp time.Time) (*wire.MsgBlock, error) {

	g.mtx.Lock()
	tmpl := g.current
	if tmpl == nil || tmpl.Token != token {
		g.mtx.Unlock()
		return nil, ErrStaleTemplate
	}
	if g.isStaleLocked() {
		// The poller has not noticed yet, but the ledger has moved on
		// under this template.
		g.state = StateStale
		g.mtx.Unlock()
		return nil, ErrStaleTemplate
	}

	// The solution is folded into a copy of the block.  The template block
	// itself was handed out through CurrentTemplate and may still be read
	// by miners.
	block := &wire.MsgBlock{
		Header:       tmpl.Block.Header,
		Transactions: tmpl.Block.Transactions,
	}
	block.Header.Nonce = nonce
	if !timestamp.IsZero() {
		block.Header.Timestamp = timestamp
	}
	// Invalidate the template before releasing the lock so a second
	// submission of the same work is rejected as stale.
	g.current = nil
	g.state = StateStale
	g.mtx.Unlock()

	// Rebuild before returning so CurrentTemplate serves a template for
	// the next height instead of waiting out a poll interval.
	defer g.pollOnce()

	if err := g.acceptor.AcceptBlock(block); err != nil {
		return nil, err
	}

	log.Info().
		Stringer("hash", block.BlockHash()).
		Int32("height", tmpl.Height).
		Int("txns", len(block.Transactions)).
		Msg("submitted block accepted")

	return block, nil
}
