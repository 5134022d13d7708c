// Copyright (c) 2013-2016 The btcsuite developers
// Copyright (c) 2025 The Embercoin developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"runtime/debug"

	"gitlab.com/embercoin/emberd/config"
	"gitlab.com/embercoin/emberd/node"
	"gitlab.com/embercoin/emberd/version"
)

func main() {
	// Use all processor cores.
	runtime.GOMAXPROCS(runtime.NumCPU())

	// Block and transaction processing can cause bursty allocations.  This
	// limits the garbage collector from excessively overallocating during
	// bursts.
	debug.SetGCPercent(10)

	// Work around defer not working after os.Exit()
	if err := emberdMain(); err != nil {
		fmt.Println("FATAL:", err)
		os.Exit(1)
	}
}

// emberdMain is the real main function for emberd.  It is necessary to work
// around the fact that deferred functions do not run when os.Exit() is
// called.
func emberdMain() error {
	// Load configuration and parse command line.
	cfg, err := config.LoadConfig()
	if err != nil {
		if config.IsUsageError(err) {
			fmt.Println(err)
			return nil
		}
		return err
	}
	if cfg.ShowVer {
		fmt.Printf("emberd version %s\n", version.GetVersion())
		return nil
	}

	nodeLog, err := cfg.SetupLoggers()
	if err != nil {
		return err
	}
	defer nodeLog.Info().Msg("Shutdown complete")

	// Show version at startup.
	nodeLog.Info().Msgf("Version %s", version.GetVersion())

	allocations, err := cfg.Allocations()
	if err != nil {
		return err
	}
	miningPkScript, err := cfg.MiningPkScript()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	sigChan := interruptListener(nodeLog.With().Str("ctx", "interruptListener").Logger())
	go func() {
		<-sigChan
		nodeLog.Info().Msg("propagate stop signal")
		cancel()
	}()

	ledgerNode, err := node.New(node.Config{
		DataDir:          cfg.StorePath(),
		TemplateInterval: cfg.TemplateInterval,
		BlockSubsidy:     cfg.BlockSubsidy,
		MiningPkScript:   miningPkScript,
		Allocations:      allocations,
	})
	if err != nil {
		return err
	}

	return ledgerNode.Run(ctx)
}
