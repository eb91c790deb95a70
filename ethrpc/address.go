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

package ethrpc

import (
	"regexp"

	"github.com/ethereum/go-ethereum/common"
)

// Addresses lifted out of 32-byte words carry 24 zero nibbles of padding
// ahead of the 20-byte body.
var wordPadding = regexp.MustCompile("^0x0{24}")

// RemoveLeadingZeros normalizes a hex string by stripping the 32-byte-word
// zero padding, yielding a conventional 20-byte address form. Strings
// without the padding pass through unchanged.
func RemoveLeadingZeros(hex string) string {
	return wordPadding.ReplaceAllString(hex, "0x")
}

// AddressHex renders an address in the canonical persisted form: 0x-prefixed
// lowercase hex with word padding stripped.
func AddressHex(addr common.Address) string {
	return RemoveLeadingZeros("0x" + common.Bytes2Hex(addr.Bytes()))
}
