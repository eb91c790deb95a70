// Copyright 2023 The inscription-indexer Authors
// This file is part of inscription-indexer.
//
// inscription-indexer is free software: you can redistribute it and/or
// modify it under the terms of the GNU Lesser General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.
//
// inscription-indexer is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with inscription-indexer. If not, see <http://www.gnu.org/licenses/>.

// inscriptiond is the single-chain inscription indexing daemon. It is
// configured entirely through environment variables and runs until killed,
// or until the filter's end block is reached.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/zmovane/inscription-indexer/config"
	"github.com/zmovane/inscription-indexer/ethrpc"
	"github.com/zmovane/inscription-indexer/indexer"
)

// restartDelay throttles the supervisor loop after a transient failure.
const restartDelay = 3 * time.Second

func main() {
	env, err := config.LoadEnv()
	if err != nil {
		log.Crit("Invalid environment", "err", err)
	}
	handler := log.NewTerminalHandlerWithLevel(os.Stderr, log.FromLegacyLevel(env.Verbosity), false)
	log.SetDefault(log.NewLogger(handler))

	chains, err := config.LoadChains(env.Registry)
	if err != nil {
		log.Crit("Failed to load chain registry", "path", env.Registry, "err", err)
	}
	chain, ok := chains[env.ChainID]
	if !ok {
		log.Crit("Chain not present in registry", "chainid", env.ChainID, "path", env.Registry)
	}

	store, err := indexer.OpenStore(env.DBPath, env.ChainID, chain.Name)
	if err != nil {
		log.Crit("Failed to open store", "path", env.DBPath, "err", err)
	}
	defer store.Close()

	blocks, err := ethrpc.Dial(chain.Https)
	if err != nil {
		log.Crit("Failed to dial HTTP endpoints", "err", err)
	}
	defer blocks.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dialCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	heads, err := ethrpc.DialHeads(dialCtx, chain.Wss)
	cancel()
	if err != nil {
		log.Crit("Failed to dial websocket endpoint", "wss", chain.Wss, "err", err)
	}
	defer heads.Close()

	if env.MetricsAddr != "" {
		go func() {
			log.Info("Metrics listener up", "addr", env.MetricsAddr)
			if err := http.ListenAndServe(env.MetricsAddr, promhttp.Handler()); err != nil {
				log.Error("Metrics listener failed", "err", err)
			}
		}()
	}

	filter := indexer.DefaultFilter()
	filter.StartBlock = env.StartBlock

	ix := indexer.New(env.ChainID, chain.Name, blocks, heads, store, filter)
	log.Info("Indexing inscriptions", "chain", chain.Name, "chainid", env.ChainID, "db", env.DBPath)

	// The walker returns on any transient failure; restart it forever. Only
	// the end-block window and process signals terminate the daemon.
	for {
		err := ix.Run(ctx)
		switch {
		case errors.Is(err, indexer.ErrEndBlockReached):
			log.Info("End block reached, shutting down")
			return
		case errors.Is(err, context.Canceled):
			log.Info("Interrupted, shutting down")
			return
		default:
			log.Error("Indexer stopped, restarting", "err", err)
			select {
			case <-ctx.Done():
				log.Info("Interrupted, shutting down")
				return
			case <-time.After(restartDelay):
			}
		}
	}
}
