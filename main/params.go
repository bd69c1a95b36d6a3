// (c) 2019-2020, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"encoding/hex"
	"errors"
	"flag"
	"fmt"
	"strings"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	log "github.com/inconshreveable/log15"

	"github.com/ava-labs/witnessvm/chain"
)

const (
	versionKey           = "version"
	configFileKey        = "config-file"
	dataDirKey           = "data-dir"
	dbTypeKey            = "db-type"
	genesisFileKey       = "genesis-file"
	httpHostKey          = "http-host"
	httpPortKey          = "http-port"
	logLevelKey          = "log-level"
	flushIntervalKey     = "flush-interval"
	pendingRetryLimitKey = "pending-retry-limit"
	witnessKey           = "witness"
	witnessPrivateKeyKey = "witness-key"
	reindexKey           = "reindex"

	envPrefix = "witnessvm"

	levelDB = "leveldb"
	memDB   = "memdb"
)

var errWitnessKey = errors.New("--witness and --witness-key must be given together")

type config struct {
	dataDir     string
	dbType      string
	genesisFile string
	httpHost    string
	httpPort    uint16
	logLevel    log.Lvl
	reindex     bool

	// witness produces blocks with witnessKey when set
	witness    string
	witnessKey *btcec.PrivateKey

	chain chain.Config
}

func buildFlagSet() *flag.FlagSet {
	fs := flag.NewFlagSet(chain.Name, flag.ContinueOnError)

	defaults := chain.DefaultConfig()
	fs.Bool(versionKey, false, "If true, prints the version and quits")
	fs.String(configFileKey, "", "Path to a config file overriding flags")
	fs.String(dataDirKey, "./data", "Directory of the node database")
	fs.String(dbTypeKey, levelDB, "Database backend, leveldb or memdb")
	fs.String(genesisFileKey, "genesis.json", "Path to the genesis document")
	fs.String(httpHostKey, "127.0.0.1", "Address of the HTTP server")
	fs.Uint(httpPortKey, 9650, "Port of the HTTP server")
	fs.String(logLevelKey, "info", "Log level: debug, info, warn, error or crit")
	fs.Uint(flushIntervalKey, uint(defaults.FlushInterval), "Compact the database every this many irreversible blocks")
	fs.Int(pendingRetryLimitKey, defaults.PendingRetryLimit, "Pending transactions retried after each block, zero for no limit")
	fs.String(witnessKey, "", "Witness to produce blocks for")
	fs.String(witnessPrivateKeyKey, "", "Hex encoded signing key of the witness")
	fs.Bool(reindexKey, false, "Rebuild the state from the block log on start")

	return fs
}

// getViper returns the viper environment for the node binary
func getViper() (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	fs := buildFlagSet()
	pflag.CommandLine.AddGoFlagSet(fs)
	pflag.Parse()
	if err := v.BindPFlags(pflag.CommandLine); err != nil {
		return nil, err
	}

	if path := v.GetString(configFileKey); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}
	return v, nil
}

func parseConfig(v *viper.Viper) (*config, error) {
	lvl, err := log.LvlFromString(v.GetString(logLevelKey))
	if err != nil {
		return nil, err
	}
	cfg := &config{
		dataDir:     v.GetString(dataDirKey),
		dbType:      v.GetString(dbTypeKey),
		genesisFile: v.GetString(genesisFileKey),
		httpHost:    v.GetString(httpHostKey),
		httpPort:    uint16(v.GetUint(httpPortKey)),
		logLevel:    lvl,
		reindex:     v.GetBool(reindexKey),
		witness:     v.GetString(witnessKey),
		chain:       chain.DefaultConfig(),
	}
	cfg.chain.FlushInterval = v.GetUint32(flushIntervalKey)
	cfg.chain.PendingRetryLimit = v.GetInt(pendingRetryLimitKey)

	switch cfg.dbType {
	case levelDB, memDB:
	default:
		return nil, fmt.Errorf("unknown database type %q", cfg.dbType)
	}

	rawKey := v.GetString(witnessPrivateKeyKey)
	if (cfg.witness == "") != (rawKey == "") {
		return nil, errWitnessKey
	}
	if rawKey != "" {
		b, err := hex.DecodeString(rawKey)
		if err != nil {
			return nil, fmt.Errorf("failed to decode witness key: %w", err)
		}
		cfg.witnessKey, _ = btcec.PrivKeyFromBytes(b)
	}
	return cfg, nil
}
