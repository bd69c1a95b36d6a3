// Copyright (C) 2019-2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/ava-labs/avalanchego/database"
	"github.com/ava-labs/avalanchego/database/leveldb"
	"github.com/ava-labs/avalanchego/database/memdb"
	"github.com/ava-labs/avalanchego/utils/logging"
	"github.com/ava-labs/avalanchego/utils/wrappers"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	log "github.com/inconshreveable/log15"

	"github.com/ava-labs/witnessvm/chain"
	"github.com/ava-labs/witnessvm/protocol"
)

const shutdownTimeout = 5 * time.Second

func main() {
	v, err := getViper()
	if err != nil {
		fmt.Printf("couldn't get config: %s\n", err)
		os.Exit(1)
	}
	// Print version and exit
	if v.GetBool(versionKey) {
		fmt.Printf("%s@%s\n", chain.Name, protocol.ProtocolVersion)
		os.Exit(0)
	}
	cfg, err := parseConfig(v)
	if err != nil {
		fmt.Printf("couldn't parse config: %s\n", err)
		os.Exit(1)
	}
	log.Root().SetHandler(log.LvlFilterHandler(cfg.logLevel, log.StreamHandler(os.Stderr, log.TerminalFormat())))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		log.Error("node stopped", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config) error {
	registry := prometheus.NewRegistry()
	db, err := openDatabase(cfg, registry)
	if err != nil {
		return err
	}
	genesis, err := protocol.LoadGenesis(cfg.genesisFile)
	if err != nil {
		return err
	}

	c, err := chain.New(cfg.chain, db, genesis,
		chain.WithLogger(log.New("module", "chain")),
		chain.WithRegisterer(registry),
	)
	if err != nil {
		return fmt.Errorf("failed to open chain: %w", err)
	}
	defer func() {
		errs := wrappers.Errs{}
		errs.Add(c.Close(), db.Close())
		if errs.Errored() {
			log.Error("failed to close", "err", errs.Err)
		}
	}()
	if cfg.reindex {
		if err := c.Reindex(); err != nil {
			return fmt.Errorf("failed to reindex: %w", err)
		}
	}

	handler, err := chain.NewHandler(c)
	if err != nil {
		return err
	}
	mux := http.NewServeMux()
	mux.Handle("/ext/"+chain.Name, handler)
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	srv := &http.Server{
		Addr:              net.JoinHostPort(cfg.httpHost, strconv.Itoa(int(cfg.httpPort))),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting http server", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	if cfg.witness != "" {
		g.Go(func() error {
			return produce(ctx, c, cfg)
		})
	}
	return g.Wait()
}

func openDatabase(cfg *config, registry prometheus.Registerer) (database.Database, error) {
	if cfg.dbType == memDB {
		return memdb.New(), nil
	}
	db, err := leveldb.New(filepath.Join(cfg.dataDir, "db"), nil, logging.NoLog{}, "db", registry)
	if err != nil {
		return nil, fmt.Errorf("failed to open leveldb: %w", err)
	}
	return db, nil
}

// produce generates a block whenever the configured witness holds the
// current slot. It returns only when [ctx] is done or the chain hits an
// invariant violation.
func produce(ctx context.Context, c *chain.Chain, cfg *config) error {
	logger := log.New("module", "producer", "witness", cfg.witness)
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			blk, err := c.GenerateBlock(uint32(now.Unix()), cfg.witness, cfg.witnessKey, chain.SkipNothing)
			switch {
			case err == nil:
				logger.Info("produced block", "num", blk.Num(), "txs", len(blk.Transactions))
			case errors.Is(err, chain.ErrNotScheduled), errors.Is(err, chain.ErrBlockTime):
			case chain.IsFatal(err):
				return err
			default:
				logger.Warn("failed to produce block", "err", err)
			}
		}
	}
}
