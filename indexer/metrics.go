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

package indexer

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	blocksWalkedCounter = promauto.NewCounter(prometheus.CounterOpts{
		Name: "inscription_indexer_blocks_walked_total",
		Help: "Blocks the walker has fully processed.",
	})
	inscriptionsCounter = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "inscription_indexer_inscriptions_total",
		Help: "Inscription operations applied to the store, by op.",
	}, []string{"op"})
	rejectionsCounter = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "inscription_indexer_rejections_total",
		Help: "Inscription operations skipped by validation, by reason.",
	}, []string{"reason"})
	indexedBlockGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "inscription_indexer_indexed_block",
		Help: "Highest block number covered by the cursor.",
	})
)
