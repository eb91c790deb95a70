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

import "fmt"

// Wildcard stands in for an unset protocol or tick in cursor keys, so
// indexers with different filters on the same chain keep separate cursors.
const Wildcard = "*"

// CursorKey derives the progress-pointer key for a chain and filter.
func CursorKey(chainID uint64, filter *Filter) string {
	p, tick := Wildcard, Wildcard
	if filter.P != "" {
		p = filter.P
	}
	if filter.Tick != "" {
		tick = filter.Tick
	}
	return fmt.Sprintf("indexed#%d#%s#%s", chainID, p, tick)
}

// DeployKey derives the point-lookup key of a deployed tick.
func DeployKey(chainID uint64, p, tick string) string {
	return fmt.Sprintf("deploy#%d#%s#%s", chainID, p, tick)
}

// MintKey derives the key of a single mint record. The layout keeps range
// scans grouped by tick, then owner, then deterministic per transaction.
func MintKey(chainID uint64, p, tick, owner, txHash string, timestamp uint64) string {
	return fmt.Sprintf("mint#%d#%s#%s#%s#%s#%d", chainID, p, tick, owner, txHash, timestamp)
}
