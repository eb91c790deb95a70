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
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/log"
	"github.com/shopspring/decimal"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/storage"
	"github.com/syndtr/goleveldb/leveldb/util"

	"github.com/zmovane/inscription-indexer/ethrpc"
)

// StartTxi is the cursor sentinel meaning no transaction inside
// indexed_block has been considered yet.
const StartTxi int64 = -1

// Tick is a deployed token. One record exists per (chain_id, p, tick) and is
// never deleted; minted only grows, and once minted reaches max the record
// is frozen with mintable=false and end_block set.
type Tick struct {
	ID         string  `json:"id"`
	ChainID    uint64  `json:"chain_id"`
	Chain      string  `json:"chain"`
	P          string  `json:"p"`
	Op         string  `json:"op"`
	Tick       string  `json:"tick"`
	Max        string  `json:"max"`
	Lim        string  `json:"lim"`
	Minted     string  `json:"minted"`
	Mintable   bool    `json:"mintable"`
	StartBlock uint64  `json:"start_block"`
	EndBlock   *uint64 `json:"end_block"`
	Deployer   string  `json:"deployer"`
	Timestamp  uint64  `json:"timestamp"`
}

// MintRecord is one successful mint. Records are append-only; the sum of Amt
// over a tick's records equals the tick's Minted.
type MintRecord struct {
	ID        string `json:"id"`
	ChainID   uint64 `json:"chain_id"`
	Chain     string `json:"chain"`
	P         string `json:"p"`
	Op        string `json:"op"`
	Tick      string `json:"tick"`
	Amt       string `json:"amt"`
	Block     uint64 `json:"block"`
	Timestamp uint64 `json:"timestamp"`
	Owner     string `json:"owner"`
}

// Cursor is the persisted progress pointer: every transaction at
// (block < IndexedBlock) or (block == IndexedBlock && txi <= IndexedTxi) has
// been considered.
type Cursor struct {
	ChainID      uint64 `json:"chain_id"`
	IndexedBlock uint64 `json:"indexed_block"`
	IndexedTxi   int64  `json:"indexed_txi"`
}

// Store is the persistence layer. Every mutation runs inside one leveldb
// transaction writing both the derived state and the cursor, so a crash
// commits either both or neither. The mutex serializes transaction handles;
// with a single walker it is uncontended but keeps side-tasks honest.
type Store struct {
	mu      sync.Mutex
	db      *leveldb.DB
	chainID uint64
	chain   string
	logger  log.Logger
}

// OpenStore opens (or creates) the embedded store at path.
func OpenStore(path string, chainID uint64, chain string) (*Store, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, err
	}
	return newStore(db, chainID, chain), nil
}

// OpenMemStore opens a store on in-memory storage. Test use.
func OpenMemStore(chainID uint64, chain string) (*Store, error) {
	db, err := leveldb.Open(storage.NewMemStorage(), nil)
	if err != nil {
		return nil, err
	}
	return newStore(db, chainID, chain), nil
}

func newStore(db *leveldb.DB, chainID uint64, chain string) *Store {
	return &Store{
		db:      db,
		chainID: chainID,
		chain:   chain,
		logger:  log.New("chain", chain),
	}
}

// Close releases the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// PersistDeploy applies a deploy inscription. Re-deploys of an existing tick
// and deploys with invalid caps are skipped; in every case the cursor
// advances past the transaction in the same commit.
func (s *Store) PersistDeploy(cursorKey string, blk *ethrpc.Block, tx *ethrpc.Transaction, insc *Inscription) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tr, err := s.db.OpenTransaction()
	if err != nil {
		return err
	}

	tickKey := []byte(DeployKey(s.chainID, insc.P, insc.Tick))
	exists, err := tr.Has(tickKey, nil)
	if err != nil {
		tr.Discard()
		return err
	}
	if exists {
		s.logger.Warn("Tick already deployed, skipping", "p", insc.P, "tick", insc.Tick, "tx", tx.Hash)
		rejectionsCounter.WithLabelValues("tick_exists").Inc()
		return s.commitCursor(tr, cursorKey, tx)
	}

	max, okMax := parsePositiveDecimal(insc.Max)
	lim, okLim := parsePositiveDecimal(insc.Lim)
	if !okMax || !okLim {
		s.logger.Warn("Deploy with invalid caps, skipping", "p", insc.P, "tick", insc.Tick, "max", insc.Max, "lim", insc.Lim, "tx", tx.Hash)
		rejectionsCounter.WithLabelValues("bad_supply").Inc()
		return s.commitCursor(tr, cursorKey, tx)
	}
	if lim.GreaterThan(max) {
		s.logger.Warn("Deploy with lim above max, skipping", "p", insc.P, "tick", insc.Tick, "max", insc.Max, "lim", insc.Lim, "tx", tx.Hash)
		rejectionsCounter.WithLabelValues("lim_exceeds_max").Inc()
		return s.commitCursor(tr, cursorKey, tx)
	}

	tick := &Tick{
		ID:         tx.Hash.Hex(),
		ChainID:    s.chainID,
		Chain:      s.chain,
		P:          insc.P,
		Op:         OpDeploy,
		Tick:       insc.Tick,
		Max:        max.String(),
		Lim:        lim.String(),
		Minted:     "0",
		Mintable:   true,
		StartBlock: uint64(tx.BlockNumber),
		EndBlock:   nil,
		Deployer:   ethrpc.AddressHex(tx.From),
		Timestamp:  uint64(blk.Timestamp),
	}
	if err := putJSON(tr, tickKey, tick); err != nil {
		tr.Discard()
		return err
	}
	if err := s.commitCursor(tr, cursorKey, tx); err != nil {
		return err
	}
	s.logger.Info("Deployed tick", "p", insc.P, "tick", insc.Tick, "max", tick.Max, "lim", tick.Lim, "block", tick.StartBlock)
	inscriptionsCounter.WithLabelValues(OpDeploy).Inc()
	return nil
}

// PersistMint applies a mint inscription: bounds-checks the amount, bumps
// the tick's minted counter, appends the mint record and advances the
// cursor, all in one commit. Out-of-range mints are skipped with the cursor
// still advancing.
func (s *Store) PersistMint(cursorKey string, blk *ethrpc.Block, tx *ethrpc.Transaction, insc *Inscription) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tr, err := s.db.OpenTransaction()
	if err != nil {
		return err
	}

	tickKey := []byte(DeployKey(s.chainID, insc.P, insc.Tick))
	raw, err := tr.Get(tickKey, nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		s.logger.Warn("Mint against unknown tick, skipping", "p", insc.P, "tick", insc.Tick, "tx", tx.Hash)
		rejectionsCounter.WithLabelValues("unknown_tick").Inc()
		return s.commitCursor(tr, cursorKey, tx)
	}
	if err != nil {
		tr.Discard()
		return err
	}
	var tick Tick
	if err := json.Unmarshal(raw, &tick); err != nil {
		tr.Discard()
		return err
	}

	amt, ok := parsePositiveDecimal(insc.Amt)
	if !ok {
		s.logger.Warn("Mint with invalid amount, skipping", "p", insc.P, "tick", insc.Tick, "amt", insc.Amt, "tx", tx.Hash)
		rejectionsCounter.WithLabelValues("bad_amount").Inc()
		return s.commitCursor(tr, cursorKey, tx)
	}
	lim, _ := decimal.NewFromString(tick.Lim)
	max, _ := decimal.NewFromString(tick.Max)
	minted, _ := decimal.NewFromString(tick.Minted)
	if amt.GreaterThan(lim) {
		s.logger.Warn("Mint above per-mint cap, skipping", "p", insc.P, "tick", insc.Tick, "amt", insc.Amt, "lim", tick.Lim, "tx", tx.Hash)
		rejectionsCounter.WithLabelValues("amount_exceeds_lim").Inc()
		return s.commitCursor(tr, cursorKey, tx)
	}
	updated := minted.Add(amt)
	if updated.GreaterThan(max) {
		s.logger.Warn("Mint beyond max supply, skipping", "p", insc.P, "tick", insc.Tick, "amt", insc.Amt, "minted", tick.Minted, "max", tick.Max, "tx", tx.Hash)
		rejectionsCounter.WithLabelValues("supply_overflow").Inc()
		return s.commitCursor(tr, cursorKey, tx)
	}

	tick.Minted = updated.String()
	if updated.Equal(max) {
		block := uint64(tx.BlockNumber)
		tick.EndBlock = &block
		tick.Mintable = false
	}
	if err := putJSON(tr, tickKey, &tick); err != nil {
		tr.Discard()
		return err
	}

	owner := ethrpc.AddressHex(tx.From)
	record := &MintRecord{
		ID:        tx.Hash.Hex(),
		ChainID:   s.chainID,
		Chain:     s.chain,
		P:         insc.P,
		Op:        OpMint,
		Tick:      insc.Tick,
		Amt:       amt.String(),
		Block:     uint64(tx.BlockNumber),
		Timestamp: uint64(blk.Timestamp),
		Owner:     owner,
	}
	mintKey := []byte(MintKey(s.chainID, insc.P, insc.Tick, owner, tx.Hash.Hex(), uint64(blk.Timestamp)))
	if err := putJSON(tr, mintKey, record); err != nil {
		tr.Discard()
		return err
	}
	if err := s.commitCursor(tr, cursorKey, tx); err != nil {
		return err
	}
	s.logger.Info("Minted", "p", insc.P, "tick", insc.Tick, "amt", record.Amt, "minted", tick.Minted, "owner", owner, "block", record.Block)
	inscriptionsCounter.WithLabelValues(OpMint).Inc()
	return nil
}

// PersistCursor commits a cursor-only update, with no derived state written
// alongside it.
func (s *Store) PersistCursor(cursorKey string, block uint64, txi int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tr, err := s.db.OpenTransaction()
	if err != nil {
		return err
	}
	if err := s.putCursor(tr, cursorKey, block, txi); err != nil {
		tr.Discard()
		return err
	}
	if err := tr.Commit(); err != nil {
		return err
	}
	indexedBlockGauge.Set(float64(block))
	return nil
}

// LoadCursor returns the persisted cursor, or nil when none exists yet.
func (s *Store) LoadCursor(cursorKey string) (*Cursor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := s.db.Get([]byte(cursorKey), nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var cursor Cursor
	if err := json.Unmarshal(raw, &cursor); err != nil {
		return nil, err
	}
	return &cursor, nil
}

// GetTick reads a deployed tick, or nil when the tick does not exist.
func (s *Store) GetTick(p, tick string) (*Tick, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := s.db.Get([]byte(DeployKey(s.chainID, p, tick)), nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var t Tick
	if err := json.Unmarshal(raw, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

// Mints range-scans the mint records of one tick in key order.
func (s *Store) Mints(p, tick string) ([]*MintRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	prefix := fmt.Sprintf("mint#%d#%s#%s#", s.chainID, p, tick)
	iter := s.db.NewIterator(util.BytesPrefix([]byte(prefix)), nil)
	defer iter.Release()
	var records []*MintRecord
	for iter.Next() {
		var record MintRecord
		if err := json.Unmarshal(iter.Value(), &record); err != nil {
			return nil, err
		}
		records = append(records, &record)
	}
	return records, iter.Error()
}

// commitCursor advances the cursor to tx's position and commits the open
// transaction.
func (s *Store) commitCursor(tr *leveldb.Transaction, cursorKey string, tx *ethrpc.Transaction) error {
	if err := s.putCursor(tr, cursorKey, uint64(tx.BlockNumber), int64(tx.TransactionIndex)); err != nil {
		tr.Discard()
		return err
	}
	if err := tr.Commit(); err != nil {
		return err
	}
	indexedBlockGauge.Set(float64(uint64(tx.BlockNumber)))
	return nil
}

func (s *Store) putCursor(tr *leveldb.Transaction, cursorKey string, block uint64, txi int64) error {
	return putJSON(tr, []byte(cursorKey), &Cursor{
		ChainID:      s.chainID,
		IndexedBlock: block,
		IndexedTxi:   txi,
	})
}

func putJSON(tr *leveldb.Transaction, key []byte, value any) error {
	encoded, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return tr.Put(key, encoded, nil)
}

// parsePositiveDecimal accepts a value iff it parses as a decimal and is
// strictly positive. There is no zero fallback.
func parsePositiveDecimal(value string) (decimal.Decimal, bool) {
	d, err := decimal.NewFromString(value)
	if err != nil || !d.IsPositive() {
		return decimal.Decimal{}, false
	}
	return d, true
}
