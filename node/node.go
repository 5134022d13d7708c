// Copyright (c) 2013-2017 The btcsuite developers
// Copyright (c) 2025 The Embercoin developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package node

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"gitlab.com/embercoin/emberd/database"
	"gitlab.com/embercoin/emberd/node/chaindata"
	"gitlab.com/embercoin/emberd/node/mining"
	"gitlab.com/embercoin/emberd/types/chainhash"
)

// Config carries the values the daemon needs from the outer configuration
// layer.
type Config struct {
	// DataDir is the directory holding the persisted ledger state.
	DataDir string

	// TemplateInterval is how often the template generator polls for
	// staleness.
	TemplateInterval time.Duration

	// BlockSubsidy is the base coinbase reward per block.
	BlockSubsidy int64

	// MiningPkScript receives coinbase rewards of generated templates.
	MiningPkScript []byte

	// Allocations seed the utxo set when no persisted state exists.
	Allocations []Allocation
}

// Node is the ledger daemon: it owns the ledger, its persistence, and the
// block template generator.
type Node struct {
	cfg       Config
	ledger    *Ledger
	store     *database.LedgerStore
	generator *mining.BlkTmplGenerator
}

// New opens the ledger store and either restores the persisted chain state or
// bootstraps a fresh ledger from the configured genesis allocations.
func New(cfg Config) (*Node, error) {
	ledger, err := NewLedger(cfg.Allocations, cfg.BlockSubsidy)
	if err != nil {
		return nil, errors.Wrap(err, "unable to bootstrap ledger")
	}

	store, err := database.Open(cfg.DataDir)
	if err != nil {
		return nil, err
	}

	utxoSet, tipHash, tipHeight, found, err := store.LoadState()
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	if found {
		ledger.RestoreState(utxoSet, tipHash, tipHeight)
		log.Info().
			Int32("tipHeight", tipHeight).
			Stringer("tipHash", tipHash).
			Msg("resumed from persisted chain state")
	}

	n := &Node{
		cfg:    cfg,
		ledger: ledger,
		store:  store,
	}
	n.generator = mining.NewBlkTmplGenerator(mining.Config{
		PollInterval:     cfg.TemplateInterval,
		BlockSubsidy:     cfg.BlockSubsidy,
		CoinbasePkScript: cfg.MiningPkScript,
	}, ledger.TxPool(), ledger, ledger)

	return n, nil
}

// Ledger returns the node's ledger.
func (n *Node) Ledger() *Ledger {
	return n.ledger
}

// Generator returns the node's block template generator.
func (n *Node) Generator() *mining.BlkTmplGenerator {
	return n.generator
}

// Run drives the node until the context is canceled, then persists the chain
// state and closes the store.  Pending mempool transactions are not
// persisted.
func (n *Node) Run(ctx context.Context) error {
	log.Info().
		Int32("tipHeight", n.ledger.TipHeight()).
		Stringer("tipHash", n.ledger.TipHash()).
		Msg("node started")

	done := make(chan struct{})
	go func() {
		n.generator.Run(ctx)
		close(done)
	}()

	<-ctx.Done()
	<-done

	err := n.ledger.UtxoSnapshot(func(utxoSet *chaindata.UtxoSet,
		tipHash chainhash.Hash, tipHeight int32) error {
		return n.store.SaveState(utxoSet, tipHash, tipHeight)
	})
	if err != nil {
		log.Error().Err(err).Msg("unable to persist chain state on shutdown")
	}

	if cerr := n.store.Close(); cerr != nil && err == nil {
		err = cerr
	}

	log.Info().Msg("node shutdown complete")
	return err
}
