// Copyright (c) 2013-2017 The btcsuite developers
// Copyright (c) 2025 The Embercoin developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package config

import (
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"gitlab.com/embercoin/emberd/corelog"
	"gitlab.com/embercoin/emberd/database"
	"gitlab.com/embercoin/emberd/node"
	"gitlab.com/embercoin/emberd/node/chaindata"
	"gitlab.com/embercoin/emberd/node/mempool"
	"gitlab.com/embercoin/emberd/node/mining"
)

// Subsystem log unit tags.  Each package gets its own logger so levels and
// output stay attributable.
const (
	logUnitNODE = "NODE"
	logUnitCHAN = "CHAN"
	logUnitTXMP = "TXMP"
	logUnitMINR = "MINR"
	logUnitLSDB = "LSDB"
)

// parseLevel maps the configured debug level name to a zerolog level.
func parseLevel(name string) (zerolog.Level, error) {
	level, err := zerolog.ParseLevel(name)
	if err != nil {
		return level, errors.Errorf("the specified debug level [%v] is invalid", name)
	}
	return level, nil
}

// SetupLoggers creates per-subsystem loggers at the configured level and
// hands them to every package.  It returns the NODE logger for the daemon
// itself.
func (cfg *Config) SetupLoggers() (zerolog.Logger, error) {
	level, err := parseLevel(cfg.DebugLevel)
	if err != nil {
		return corelog.Disabled, err
	}

	chaindata.UseLogger(corelog.New(logUnitCHAN, level, cfg.LogConfig))
	mempool.UseLogger(corelog.New(logUnitTXMP, level, cfg.LogConfig))
	mining.UseLogger(corelog.New(logUnitMINR, level, cfg.LogConfig))
	database.UseLogger(corelog.New(logUnitLSDB, level, cfg.LogConfig))

	nodeLog := corelog.New(logUnitNODE, level, cfg.LogConfig)
	node.UseLogger(nodeLog)
	return nodeLog, nil
}
