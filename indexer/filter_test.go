package indexer

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"github.com/zmovane/inscription-indexer/ethrpc"
)

func addr(b byte) common.Address {
	return common.BytesToAddress([]byte{b})
}

func selfTx(from common.Address) *ethrpc.Transaction {
	to := from
	return &ethrpc.Transaction{From: from, To: &to}
}

func TestFilterSelfTransaction(t *testing.T) {
	f := DefaultFilter()
	if !f.MatchTransaction(selfTx(addr(1))) {
		t.Error("self transaction rejected")
	}
	other := addr(2)
	if f.MatchTransaction(&ethrpc.Transaction{From: addr(1), To: &other}) {
		t.Error("non-self transaction accepted")
	}
	f.IsSelfTransaction = false
	if !f.MatchTransaction(&ethrpc.Transaction{From: addr(1), To: &other}) {
		t.Error("non-self transaction rejected with predicate off")
	}
}

func TestFilterRecipient(t *testing.T) {
	want := addr(7)
	f := &Filter{Recipient: &want}
	if !f.MatchTransaction(&ethrpc.Transaction{From: addr(7), To: &want}) {
		t.Error("allow-listed recipient rejected")
	}
	other := addr(8)
	if f.MatchTransaction(&ethrpc.Transaction{From: addr(8), To: &other}) {
		t.Error("other recipient accepted")
	}
}

func TestFilterInscription(t *testing.T) {
	f := &Filter{P: "brc-20", Tick: "abcd"}
	if !f.MatchInscription(&Inscription{P: "brc-20", Tick: "abcd"}) {
		t.Error("matching inscription rejected")
	}
	if f.MatchInscription(&Inscription{P: "prc-20", Tick: "abcd"}) {
		t.Error("wrong protocol accepted")
	}
	if f.MatchInscription(&Inscription{P: "brc-20", Tick: "efgh"}) {
		t.Error("wrong tick accepted")
	}
	if !DefaultFilter().MatchInscription(&Inscription{P: "anything", Tick: "goes"}) {
		t.Error("unfiltered inscription rejected")
	}
}
