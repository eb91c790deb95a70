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
	"bytes"
	"encoding/json"
	"unicode/utf8"
)

const (
	// OpDeploy creates a tick with a supply cap and a per-mint cap.
	OpDeploy = "deploy"
	// OpMint increments a tick's minted counter.
	OpMint = "mint"

	// PrefixInscription is the literal calldata prefix marking an
	// inscription payload.
	PrefixInscription = "data:,"
	// PrefixInscriptionHex is the same prefix in hex calldata form.
	PrefixInscriptionHex = "0x646174613a2c"
)

// Inscription is the transient parsed form of an inscription payload. Max
// and Lim are set for deploys, Amt for mints; all values stay strings until
// the persistence layer interprets them as decimals.
type Inscription struct {
	P    string `json:"p"`
	Op   string `json:"op"`
	Tick string `json:"tick"`
	Max  string `json:"max,omitempty"`
	Lim  string `json:"lim,omitempty"`
	Amt  string `json:"amt,omitempty"`
}

// ParseInscription decodes transaction calldata into an inscription. The
// second return is false whenever the calldata is not a well-formed
// inscription; that is never an error and never halts indexing, it only
// means the transaction carries no inscription.
func ParseInscription(input []byte) (*Inscription, bool) {
	if !utf8.Valid(input) {
		return nil, false
	}
	if !bytes.HasPrefix(input, []byte(PrefixInscription)) {
		return nil, false
	}
	data := bytes.TrimPrefix(input, []byte(PrefixInscription))
	var fields map[string]any
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, false
	}
	if !isStringField(fields, "p") || !isStringField(fields, "op") || !isStringField(fields, "tick") {
		return nil, false
	}
	insc := &Inscription{
		P:    fields["p"].(string),
		Op:   fields["op"].(string),
		Tick: fields["tick"].(string),
	}
	switch insc.Op {
	case OpDeploy:
		if !isStringField(fields, "max") || !isStringField(fields, "lim") {
			return nil, false
		}
		insc.Max = fields["max"].(string)
		insc.Lim = fields["lim"].(string)
	case OpMint:
		if !isStringField(fields, "amt") {
			return nil, false
		}
		insc.Amt = fields["amt"].(string)
	default:
		return nil, false
	}
	return insc, true
}

func isStringField(fields map[string]any, name string) bool {
	_, ok := fields[name].(string)
	return ok
}
