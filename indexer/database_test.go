package indexer

import (
	"fmt"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/zmovane/inscription-indexer/ethrpc"
)

const (
	testChainID = uint64(56)
	testChain   = "bnbchain-mainnet"
)

var txCounter uint64

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := OpenMemStore(testChainID, testChain)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func testBlock(number uint64, txs ...*ethrpc.Transaction) *ethrpc.Block {
	return &ethrpc.Block{
		Number:       hexutil.Uint64(number),
		Hash:         common.BytesToHash([]byte(fmt.Sprintf("block-%d", number))),
		Timestamp:    hexutil.Uint64(1700000000 + number),
		Transactions: txs,
	}
}

func testTx(block, txi uint64, from common.Address, calldata string) *ethrpc.Transaction {
	txCounter++
	to := from
	return &ethrpc.Transaction{
		Hash:             common.BytesToHash([]byte(fmt.Sprintf("tx-%d", txCounter))),
		From:             from,
		To:               &to,
		Input:            []byte(calldata),
		BlockNumber:      hexutil.Uint64(block),
		TransactionIndex: hexutil.Uint64(txi),
	}
}

func deployInsc(maxSupply, lim string) *Inscription {
	return &Inscription{P: "brc-20", Op: OpDeploy, Tick: "abcd", Max: maxSupply, Lim: lim}
}

func mintInsc(amt string) *Inscription {
	return &Inscription{P: "brc-20", Op: OpMint, Tick: "abcd", Amt: amt}
}

func cursorOf(t *testing.T, store *Store, key string) *Cursor {
	t.Helper()
	cursor, err := store.LoadCursor(key)
	require.NoError(t, err)
	require.NotNil(t, cursor)
	return cursor
}

func TestPersistDeploy(t *testing.T) {
	store := newTestStore(t)
	key := CursorKey(testChainID, DefaultFilter())
	deployer := common.HexToAddress("0x1111111111111111111111111111111111111111")

	blk := testBlock(100)
	tx := testTx(100, 0, deployer, "")
	require.NoError(t, store.PersistDeploy(key, blk, tx, deployInsc("21000000", "1000")))

	tick, err := store.GetTick("brc-20", "abcd")
	require.NoError(t, err)
	require.NotNil(t, tick)
	require.Equal(t, tx.Hash.Hex(), tick.ID)
	require.Equal(t, testChainID, tick.ChainID)
	require.Equal(t, testChain, tick.Chain)
	require.Equal(t, "21000000", tick.Max)
	require.Equal(t, "1000", tick.Lim)
	require.Equal(t, "0", tick.Minted)
	require.True(t, tick.Mintable)
	require.Equal(t, uint64(100), tick.StartBlock)
	require.Nil(t, tick.EndBlock)
	require.Equal(t, "0x1111111111111111111111111111111111111111", tick.Deployer)
	require.Equal(t, uint64(1700000100), tick.Timestamp)

	cursor := cursorOf(t, store, key)
	require.Equal(t, uint64(100), cursor.IndexedBlock)
	require.Equal(t, int64(0), cursor.IndexedTxi)
}

// The second and later deploys for the same (chain, p, tick) must leave the
// first tick untouched while still advancing the cursor.
func TestPersistDeployIdempotent(t *testing.T) {
	store := newTestStore(t)
	key := CursorKey(testChainID, DefaultFilter())
	deployer := common.HexToAddress("0x1111111111111111111111111111111111111111")

	first := testTx(100, 0, deployer, "")
	require.NoError(t, store.PersistDeploy(key, testBlock(100), first, deployInsc("1000", "100")))
	second := testTx(105, 4, common.HexToAddress("0x22"), "")
	require.NoError(t, store.PersistDeploy(key, testBlock(105), second, deployInsc("9999", "1")))

	tick, err := store.GetTick("brc-20", "abcd")
	require.NoError(t, err)
	require.Equal(t, first.Hash.Hex(), tick.ID)
	require.Equal(t, "1000", tick.Max)

	cursor := cursorOf(t, store, key)
	require.Equal(t, uint64(105), cursor.IndexedBlock)
	require.Equal(t, int64(4), cursor.IndexedTxi)
}

func TestPersistDeployInvalidCaps(t *testing.T) {
	store := newTestStore(t)
	key := CursorKey(testChainID, DefaultFilter())
	deployer := common.HexToAddress("0x33")

	tests := []struct {
		name     string
		max, lim string
	}{
		{"zero max", "0", "1"},
		{"zero lim", "100", "0"},
		{"negative max", "-5", "1"},
		{"unparsable max", "21e", "1"},
		{"lim above max", "100", "101"},
	}
	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tx := testTx(100+uint64(i), 0, deployer, "")
			require.NoError(t, store.PersistDeploy(key, testBlock(100+uint64(i)), tx, deployInsc(tt.max, tt.lim)))

			tick, err := store.GetTick("brc-20", "abcd")
			require.NoError(t, err)
			require.Nil(t, tick, "tick must not be created")

			// Skips still consume the (block, txi) slot.
			cursor := cursorOf(t, store, key)
			require.Equal(t, 100+uint64(i), cursor.IndexedBlock)
		})
	}

	// A later valid deploy succeeds because nothing was written.
	tx := testTx(110, 0, deployer, "")
	require.NoError(t, store.PersistDeploy(key, testBlock(110), tx, deployInsc("1000", "1000")))
	tick, err := store.GetTick("brc-20", "abcd")
	require.NoError(t, err)
	require.NotNil(t, tick)
}

func TestPersistMint(t *testing.T) {
	store := newTestStore(t)
	key := CursorKey(testChainID, DefaultFilter())
	owner := common.HexToAddress("0x4444444444444444444444444444444444444444")

	require.NoError(t, store.PersistDeploy(key, testBlock(100), testTx(100, 0, owner, ""), deployInsc("21000000", "1000")))

	blk := testBlock(101)
	tx := testTx(101, 3, owner, "")
	require.NoError(t, store.PersistMint(key, blk, tx, mintInsc("500")))

	tick, err := store.GetTick("brc-20", "abcd")
	require.NoError(t, err)
	require.Equal(t, "500", tick.Minted)
	require.True(t, tick.Mintable)
	require.Nil(t, tick.EndBlock)

	mints, err := store.Mints("brc-20", "abcd")
	require.NoError(t, err)
	require.Len(t, mints, 1)
	require.Equal(t, tx.Hash.Hex(), mints[0].ID)
	require.Equal(t, "500", mints[0].Amt)
	require.Equal(t, uint64(101), mints[0].Block)
	require.Equal(t, "0x4444444444444444444444444444444444444444", mints[0].Owner)

	cursor := cursorOf(t, store, key)
	require.Equal(t, uint64(101), cursor.IndexedBlock)
	require.Equal(t, int64(3), cursor.IndexedTxi)
}

func TestPersistMintExhaustsSupply(t *testing.T) {
	store := newTestStore(t)
	key := CursorKey(testChainID, DefaultFilter())
	owner := common.HexToAddress("0x55")

	require.NoError(t, store.PersistDeploy(key, testBlock(100), testTx(100, 0, owner, ""), deployInsc("1000", "1000")))
	require.NoError(t, store.PersistMint(key, testBlock(101), testTx(101, 0, owner, ""), mintInsc("500")))
	require.NoError(t, store.PersistMint(key, testBlock(102), testTx(102, 0, owner, ""), mintInsc("500")))

	tick, err := store.GetTick("brc-20", "abcd")
	require.NoError(t, err)
	require.Equal(t, "1000", tick.Minted)
	require.False(t, tick.Mintable)
	require.NotNil(t, tick.EndBlock)
	require.Equal(t, uint64(102), *tick.EndBlock)

	// Exhausted is terminal: a later mint is skipped, the cursor advances.
	late := testTx(103, 2, owner, "")
	require.NoError(t, store.PersistMint(key, testBlock(103), late, mintInsc("1")))
	tick, err = store.GetTick("brc-20", "abcd")
	require.NoError(t, err)
	require.Equal(t, "1000", tick.Minted)
	require.False(t, tick.Mintable)
	mints, err := store.Mints("brc-20", "abcd")
	require.NoError(t, err)
	require.Len(t, mints, 2)

	cursor := cursorOf(t, store, key)
	require.Equal(t, uint64(103), cursor.IndexedBlock)
	require.Equal(t, int64(2), cursor.IndexedTxi)
}

func TestPersistMintRejections(t *testing.T) {
	store := newTestStore(t)
	key := CursorKey(testChainID, DefaultFilter())
	owner := common.HexToAddress("0x66")

	// Mint before deploy: no record.
	require.NoError(t, store.PersistMint(key, testBlock(99), testTx(99, 0, owner, ""), mintInsc("1")))
	mints, err := store.Mints("brc-20", "abcd")
	require.NoError(t, err)
	require.Empty(t, mints)

	require.NoError(t, store.PersistDeploy(key, testBlock(100), testTx(100, 0, owner, ""), deployInsc("1000", "1000")))
	require.NoError(t, store.PersistMint(key, testBlock(101), testTx(101, 0, owner, ""), mintInsc("600")))

	tests := []struct {
		name string
		amt  string
	}{
		{"overflow", "500"}, // 600 + 500 > 1000
		{"above lim", "1001"},
		{"zero", "0"},
		{"negative", "-1"},
		{"unparsable", "1.2.3"},
	}
	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tx := testTx(102+uint64(i), 0, owner, "")
			require.NoError(t, store.PersistMint(key, testBlock(102+uint64(i)), tx, mintInsc(tt.amt)))

			tick, err := store.GetTick("brc-20", "abcd")
			require.NoError(t, err)
			require.Equal(t, "600", tick.Minted, "tick must be unchanged")
			require.True(t, tick.Mintable)

			cursor := cursorOf(t, store, key)
			require.Equal(t, 102+uint64(i), cursor.IndexedBlock)
		})
	}
}

// sum(amt of mint records) == tick.minted, at every observation point.
func TestSupplyReconciliation(t *testing.T) {
	store := newTestStore(t)
	key := CursorKey(testChainID, DefaultFilter())
	owner := common.HexToAddress("0x77")

	require.NoError(t, store.PersistDeploy(key, testBlock(100), testTx(100, 0, owner, ""), deployInsc("1000", "400")))
	amounts := []string{"400", "0", "250", "350", "100"} // "0" and the trailing "100" are skipped
	for i, amt := range amounts {
		require.NoError(t, store.PersistMint(key, testBlock(101+uint64(i)), testTx(101+uint64(i), 0, owner, ""), mintInsc(amt)))

		tick, err := store.GetTick("brc-20", "abcd")
		require.NoError(t, err)
		mints, err := store.Mints("brc-20", "abcd")
		require.NoError(t, err)
		sum := decimal.Zero
		for _, record := range mints {
			amt, err := decimal.NewFromString(record.Amt)
			require.NoError(t, err)
			sum = sum.Add(amt)
		}
		minted, err := decimal.NewFromString(tick.Minted)
		require.NoError(t, err)
		require.True(t, sum.Equal(minted), "sum %s != minted %s", sum, minted)
		maxSupply, err := decimal.NewFromString(tick.Max)
		require.NoError(t, err)
		require.True(t, minted.LessThanOrEqual(maxSupply))
	}

	tick, err := store.GetTick("brc-20", "abcd")
	require.NoError(t, err)
	require.Equal(t, "1000", tick.Minted)
	require.False(t, tick.Mintable)
}

func TestLoadCursorAbsent(t *testing.T) {
	store := newTestStore(t)
	cursor, err := store.LoadCursor(CursorKey(testChainID, DefaultFilter()))
	require.NoError(t, err)
	require.Nil(t, cursor)
}

func TestPersistCursor(t *testing.T) {
	store := newTestStore(t)
	key := CursorKey(testChainID, DefaultFilter())
	require.NoError(t, store.PersistCursor(key, 1234, StartTxi))

	cursor := cursorOf(t, store, key)
	require.Equal(t, testChainID, cursor.ChainID)
	require.Equal(t, uint64(1234), cursor.IndexedBlock)
	require.Equal(t, StartTxi, cursor.IndexedTxi)
}
