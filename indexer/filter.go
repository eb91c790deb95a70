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
	"github.com/ethereum/go-ethereum/common"

	"github.com/zmovane/inscription-indexer/ethrpc"
)

// Filter is the per-run predicate set of an indexer instance. All predicates
// AND together and the filter never changes for the life of the instance;
// the cursor key embeds P and Tick so differently-filtered indexers on one
// chain do not collide.
type Filter struct {
	IsSelfTransaction bool
	Recipient         *common.Address
	StartBlock        *uint64
	EndBlock          *uint64
	P                 string
	Tick              string
}

// DefaultFilter keeps only self-transactions, the conventional carrier of
// inscriptions, with no window and no protocol restriction.
func DefaultFilter() *Filter {
	return &Filter{IsSelfTransaction: true}
}

// MatchTransaction reports whether tx passes the transaction-level
// predicates. Callers have already dropped transactions without a recipient.
func (f *Filter) MatchTransaction(tx *ethrpc.Transaction) bool {
	if f.IsSelfTransaction && (tx.To == nil || *tx.To != tx.From) {
		return false
	}
	if f.Recipient != nil && (tx.To == nil || *tx.To != *f.Recipient) {
		return false
	}
	return true
}

// MatchInscription reports whether a parsed inscription passes the
// protocol/tick allow-list.
func (f *Filter) MatchInscription(insc *Inscription) bool {
	if f.P != "" && insc.P != f.P {
		return false
	}
	if f.Tick != "" && insc.Tick != f.Tick {
		return false
	}
	return true
}
