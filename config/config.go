// Copyright (c) 2013-2017 The btcsuite developers
// Copyright (c) 2025 The Embercoin developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package config

import (
	"encoding/hex"
	"os"
	"path/filepath"
	"time"

	flags "github.com/jessevdk/go-flags"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"gitlab.com/embercoin/emberd/corelog"
	"gitlab.com/embercoin/emberd/ecsig"
	"gitlab.com/embercoin/emberd/node"
)

const (
	defaultConfigFilename = "emberd.yaml"
	defaultDataDirname    = "data"
	defaultDebugLevel     = "info"
)

// Allocation is one genesis grant as it appears in the configuration file.
type Allocation struct {
	// PubKey is the hex-encoded locking public key of the grant.
	PubKey string `yaml:"pubkey"`

	// Curve names the signature curve the key belongs to.  It is recorded
	// for operator clarity; outputs are lockable by keys of any supported
	// curve and the spender declares the curve per input.
	Curve string `yaml:"curve"`

	// Amount is the granted value in the smallest currency unit.
	Amount int64 `yaml:"amount"`
}

// Config defines the configuration options for emberd.
//
// See loadConfig for details on the configuration load process.
type Config struct {
	ConfigFile string `short:"C" long:"configfile" description:"Path to configuration file" yaml:"-"`
	ShowVer    bool   `short:"V" long:"version" description:"Display version information and exit" yaml:"-"`

	DataDir    string `short:"b" long:"datadir" description:"Directory to store data" yaml:"data_dir"`
	DebugLevel string `short:"d" long:"debuglevel" description:"Logging level {trace, debug, info, warn, error}" yaml:"debug_level"`

	// TemplateInterval is how often the template generator polls the
	// ledger for staleness.
	TemplateInterval time.Duration `long:"templateinterval" description:"Interval between block template staleness checks" yaml:"template_interval"`

	// BlockSubsidy is the base coinbase reward of every generated block.
	BlockSubsidy int64 `long:"blocksubsidy" description:"Base coinbase reward per block in the smallest currency unit" yaml:"block_subsidy"`

	// MiningPubKey receives the coinbase output of generated templates.
	MiningPubKey string `long:"miningpubkey" description:"Hex-encoded public key receiving coinbase rewards" yaml:"mining_pubkey"`

	// GenesisAllocations seed the utxo set at height zero.  They are only
	// settable through the configuration file.
	GenesisAllocations []Allocation `no-flag:" " yaml:"genesis_allocations"`

	// LogConfig tunes console and rolling-file log output.
	LogConfig corelog.Config `no-flag:" " yaml:"logging"`
}

// defaultConfig returns the baseline configuration before the file and the
// command line are applied.
func defaultConfig() *Config {
	return &Config{
		ConfigFile:       defaultConfigFilename,
		DataDir:          defaultDataDirname,
		DebugLevel:       defaultDebugLevel,
		TemplateInterval: 5 * time.Second,
		BlockSubsidy:     50 * 1e8,
		LogConfig:        corelog.Config{}.Default(),
	}
}

// LoadConfig initializes and parses the config using a config file and
// command line options.
//
// The configuration proceeds as follows:
//  1. Start with a default config with sane settings
//  2. Pre-parse the command line to check for an alternative config file
//  3. Load configuration file overwriting defaults with any specified options
//  4. Parse CLI options and overwrite/add any specified options
func LoadConfig() (*Config, error) {
	cfg := defaultConfig()

	// Pre-parse the command line options to see if an alternative config
	// file was specified.  The help flag is handled by the final parse.
	preCfg := *cfg
	preParser := flags.NewParser(&preCfg, flags.None)
	_, _ = preParser.Parse()

	configFile := preCfg.ConfigFile
	if fileExists(configFile) {
		raw, err := os.ReadFile(configFile)
		if err != nil {
			return nil, errors.Wrapf(err, "unable to read config file %s", configFile)
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, errors.Wrapf(err, "unable to parse config file %s", configFile)
		}
	} else if preCfg.ConfigFile != defaultConfigFilename {
		return nil, errors.Errorf("config file %s does not exist", configFile)
	}

	// The command line has the final word.
	parser := flags.NewParser(cfg, flags.HelpFlag)
	if _, err := parser.Parse(); err != nil {
		return nil, err
	}

	if err := validateConfig(cfg); err != nil {
		return nil, err
	}

	if err := os.MkdirAll(cfg.DataDir, 0700); err != nil {
		return nil, errors.Wrap(err, "unable to create data directory")
	}

	return cfg, nil
}

func validateConfig(cfg *Config) error {
	if _, err := parseLevel(cfg.DebugLevel); err != nil {
		return err
	}
	if cfg.TemplateInterval <= 0 {
		return errors.New("templateinterval must be positive")
	}
	if cfg.BlockSubsidy < 0 {
		return errors.New("blocksubsidy must not be negative")
	}
	if cfg.MiningPubKey != "" {
		if _, err := hex.DecodeString(cfg.MiningPubKey); err != nil {
			return errors.Wrap(err, "miningpubkey is not valid hex")
		}
	}
	for i, alloc := range cfg.GenesisAllocations {
		if alloc.Amount <= 0 {
			return errors.Errorf("genesis allocation %d has non-positive amount", i)
		}
		if _, err := hex.DecodeString(alloc.PubKey); err != nil {
			return errors.Wrapf(err, "genesis allocation %d pubkey is not valid hex", i)
		}
		if alloc.Curve != "" {
			if _, err := ecsig.CurveIDFromName(alloc.Curve); err != nil {
				return errors.Wrapf(err, "genesis allocation %d", i)
			}
		}
	}
	return nil
}

// Allocations decodes the configured genesis grants into ledger allocations.
func (cfg *Config) Allocations() ([]node.Allocation, error) {
	allocations := make([]node.Allocation, 0, len(cfg.GenesisAllocations))
	for i, alloc := range cfg.GenesisAllocations {
		pkScript, err := hex.DecodeString(alloc.PubKey)
		if err != nil {
			return nil, errors.Wrapf(err, "genesis allocation %d", i)
		}
		allocations = append(allocations, node.Allocation{
			Amount:   alloc.Amount,
			PkScript: pkScript,
		})
	}
	return allocations, nil
}

// MiningPkScript decodes the configured coinbase payout key.
func (cfg *Config) MiningPkScript() ([]byte, error) {
	if cfg.MiningPubKey == "" {
		return nil, errors.New("miningpubkey is not set")
	}
	return hex.DecodeString(cfg.MiningPubKey)
}

// StorePath returns the directory holding the persisted ledger state.
func (cfg *Config) StorePath() string {
	return filepath.Join(cfg.DataDir)
}

// fileExists reports whether the named file or directory exists.
func fileExists(name string) bool {
	if _, err := os.Stat(name); err != nil {
		if os.IsNotExist(err) {
			return false
		}
	}
	return true
}

// IsUsageError reports whether the error is the help output of the flag
// parser rather than a real failure.
func IsUsageError(err error) bool {
	var flagsErr *flags.Error
	return errors.As(err, &flagsErr) && flagsErr.Type == flags.ErrHelp
}
