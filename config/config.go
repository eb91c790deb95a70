// Copyright 2023 The inscription-indexer Authors
// This file is part of the inscription-indexer library.
//
// The inscription-indexer library is free software: you can redistribute it
// and/or modify it under the terms of the GNU Lesser General Public License as
// published by the Free Software Foundation, either version 3 of the License,
// or (at your option) any later version.
//
// The inscription-indexer library is distributed in the hope that it will be
// useful, but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the inscription-indexer library. If not, see
// <http://www.gnu.org/licenses/>.

// Package config holds the per-process settings of an indexer instance: the
// chain registry file mapping chain ids to RPC endpoints, and the
// environment-variable surface of the daemon.
package config

import (
	"fmt"
	"math/rand"
	"os"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// DefaultRegistryPath is where the chain registry is looked up when
// CHAINS_CONFIG is not set.
const DefaultRegistryPath = "chains.config.yaml"

// Endpoints is an unordered bag of HTTP RPC endpoints for one chain.
type Endpoints []string

// Random returns one endpoint picked uniformly. Every RPC call draws a fresh
// pick; no stickiness and no health tracking.
func (e Endpoints) Random() string {
	return e[rand.Intn(len(e))]
}

// Chain describes one entry of the registry: a display name, a single
// websocket endpoint used for head notifications, and the HTTP pool used for
// every block fetch.
type Chain struct {
	Name  string    `yaml:"name"`
	Wss   string    `yaml:"wss"`
	Https Endpoints `yaml:"https"`
}

// Chains is the registry, keyed by chain id.
type Chains map[uint64]Chain

// LoadChains reads the YAML registry at path. The registry is loaded once at
// startup; any error here is fatal to the process.
func LoadChains(path string) (Chains, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read chain registry: %w", err)
	}
	var chains Chains
	if err := yaml.Unmarshal(content, &chains); err != nil {
		return nil, fmt.Errorf("decode chain registry: %w", err)
	}
	for id, chain := range chains {
		if chain.Name == "" {
			return nil, fmt.Errorf("chain %d: missing name", id)
		}
		if chain.Wss == "" {
			return nil, fmt.Errorf("chain %d: missing wss endpoint", id)
		}
		if len(chain.Https) == 0 {
			return nil, fmt.Errorf("chain %d: no https endpoints", id)
		}
	}
	return chains, nil
}

// Env is the daemon's environment-variable surface. There is no CLI beyond
// this.
type Env struct {
	ChainID     uint64  `envconfig:"CHAIN_ID" required:"true"`
	StartBlock  *uint64 `envconfig:"START_BLOCK"`
	DBPath      string  `envconfig:"DB_PATH" default:"./data"`
	Registry    string  `envconfig:"CHAINS_CONFIG"`
	MetricsAddr string  `envconfig:"METRICS_ADDR"`
	Verbosity   int     `envconfig:"VERBOSITY" default:"3"`
}

// LoadEnv reads the process environment, merging in a .env file when one is
// present in the working directory.
func LoadEnv() (*Env, error) {
	_ = godotenv.Load()
	var env Env
	if err := envconfig.Process("", &env); err != nil {
		return nil, err
	}
	if env.Registry == "" {
		env.Registry = DefaultRegistryPath
	}
	return &env, nil
}
