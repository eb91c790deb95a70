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

// Package indexer contains the ingestion and state-transition engine: the
// ordered block/transaction walker, the inscription parser and validator,
// the deploy/mint state machine and the crash-safe persistence layer that
// keeps indexed-cursor and derived state in lock-step.
package indexer

import (
	"context"
	"encoding/json"
	"errors"
	"sort"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/log"

	"github.com/zmovane/inscription-indexer/ethrpc"
)

// ErrEndBlockReached signals the controlled termination of a windowed run:
// the walker crossed the filter's end block with nothing left to do.
var ErrEndBlockReached = errors.New("end block reached")

// BlockSource is the HTTP side of the RPC surface the walker consumes.
type BlockSource interface {
	BlockNumber(ctx context.Context) (uint64, error)
	BlockByNumber(ctx context.Context, number uint64) (*ethrpc.Block, error)
}

// HeadSource delivers new-head wakeups. Payloads are ignored; duplicates and
// reordering are harmless.
type HeadSource interface {
	SubscribeNewHeads(ctx context.Context, ch chan<- json.RawMessage) (ethereum.Subscription, error)
}

// Indexer walks one chain's block stream through the inscription pipeline.
// A single cooperative loop; transactions apply in strict transaction_index
// order because tick transitions do not commute.
type Indexer struct {
	chainID   uint64
	chain     string
	blocks    BlockSource
	heads     HeadSource
	store     *Store
	filter    *Filter
	cursorKey string
	logger    log.Logger
}

// New wires an indexer instance. A nil filter means DefaultFilter.
func New(chainID uint64, chain string, blocks BlockSource, heads HeadSource, store *Store, filter *Filter) *Indexer {
	if filter == nil {
		filter = DefaultFilter()
	}
	return &Indexer{
		chainID:   chainID,
		chain:     chain,
		blocks:    blocks,
		heads:     heads,
		store:     store,
		filter:    filter,
		cursorKey: CursorKey(chainID, filter),
		logger:    log.New("chain", chain),
	}
}

// Run drives the walker until the context is cancelled, the filter's end
// block is crossed (ErrEndBlockReached) or a transport/store error surfaces
// for the supervisor to retry.
func (ix *Indexer) Run(ctx context.Context) error {
	block, txi, err := ix.initCursor(ctx)
	if err != nil {
		return err
	}
	ix.logger.Info("Indexer starting", "block", block, "txi", txi)

	heads := make(chan json.RawMessage, 16)
	sub, err := ix.heads.SubscribeNewHeads(ctx, heads)
	if err != nil {
		return err
	}
	defer sub.Unsubscribe()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-sub.Err():
			return err
		case <-heads:
			if err := ix.drain(ctx, &block, &txi); err != nil {
				return err
			}
		}
	}
}

// initCursor loads the persisted cursor, seeding it on first run from the
// filter's start block or the current tip. The filter's start block, when
// set, overrides where walking resumes.
func (ix *Indexer) initCursor(ctx context.Context) (uint64, int64, error) {
	cursor, err := ix.store.LoadCursor(ix.cursorKey)
	if err != nil {
		return 0, 0, err
	}
	if cursor == nil {
		block := uint64(0)
		if ix.filter.StartBlock != nil {
			block = *ix.filter.StartBlock
		} else {
			block, err = ix.blocks.BlockNumber(ctx)
			if err != nil {
				return 0, 0, err
			}
		}
		if err := ix.store.PersistCursor(ix.cursorKey, block, StartTxi); err != nil {
			return 0, 0, err
		}
		return block, StartTxi, nil
	}
	block, txi := cursor.IndexedBlock, cursor.IndexedTxi
	if ix.filter.StartBlock != nil && *ix.filter.StartBlock != block {
		block = *ix.filter.StartBlock
	}
	return block, txi, nil
}

// drain catches the walker up to the chain head after a wakeup.
func (ix *Indexer) drain(ctx context.Context, block *uint64, txi *int64) error {
	latest, err := ix.blocks.BlockNumber(ctx)
	if err != nil {
		return err
	}
	for *block <= latest {
		if ix.filter.EndBlock != nil && *block > *ix.filter.EndBlock {
			return ErrEndBlockReached
		}
		blk, err := ix.blocks.BlockByNumber(ctx, *block)
		if err != nil {
			return err
		}
		if blk == nil {
			// The chosen endpoint has not seen this block yet; record
			// where we stand and move on to the next block. The missing
			// block is not fetched again.
			if err := ix.store.PersistCursor(ix.cursorKey, *block, *txi); err != nil {
				return err
			}
			*block, *txi = *block+1, StartTxi
			continue
		}
		if err := ix.processBlock(blk, txi); err != nil {
			return err
		}
		if err := ix.store.PersistCursor(ix.cursorKey, *block, *txi); err != nil {
			return err
		}
		blocksWalkedCounter.Inc()
		*block, *txi = *block+1, StartTxi
	}
	return nil
}

// processBlock feeds the block's surviving transactions through the parser
// and the state machine in ascending transaction_index order, moving txi
// past every applied inscription.
func (ix *Indexer) processBlock(blk *ethrpc.Block, txi *int64) error {
	txs := make([]*ethrpc.Transaction, 0, len(blk.Transactions))
	for _, tx := range blk.Transactions {
		if int64(tx.TransactionIndex) <= *txi {
			continue // already considered before a restart
		}
		if tx.To == nil {
			continue
		}
		txs = append(txs, tx)
	}
	sort.Slice(txs, func(i, j int) bool {
		return txs[i].TransactionIndex < txs[j].TransactionIndex
	})
	for _, tx := range txs {
		applied, err := ix.processTransaction(blk, tx)
		if err != nil {
			return err
		}
		if applied {
			*txi = int64(tx.TransactionIndex)
		}
	}
	return nil
}

// processTransaction parses one transaction's calldata and applies a valid
// inscription. Malformed or filtered-out content is no inscription at all:
// no state change, no error, indexing continues.
func (ix *Indexer) processTransaction(blk *ethrpc.Block, tx *ethrpc.Transaction) (bool, error) {
	if !ix.filter.MatchTransaction(tx) {
		return false, nil
	}
	insc, ok := ParseInscription(tx.Input)
	if !ok {
		return false, nil
	}
	if !ix.filter.MatchInscription(insc) {
		return false, nil
	}
	switch insc.Op {
	case OpDeploy:
		return true, ix.store.PersistDeploy(ix.cursorKey, blk, tx, insc)
	case OpMint:
		return true, ix.store.PersistMint(ix.cursorKey, blk, tx, insc)
	}
	return false, nil
}
