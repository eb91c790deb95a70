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

// Package ethrpc is the block-fetch client of the indexer. It speaks the
// three JSON-RPC methods the walker consumes (eth_blockNumber,
// eth_getBlockByNumber with full transactions, and the newHeads
// subscription) and decodes blocks into the minimal wire shape the
// inscription pipeline needs.
package ethrpc

import (
	"context"
	"encoding/json"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"

	"github.com/zmovane/inscription-indexer/config"
)

// Transaction is the slice of an RPC transaction object the indexer reads.
// The sender is taken from the node's `from` field, so no signature recovery
// happens on this side.
type Transaction struct {
	Hash             common.Hash     `json:"hash"`
	From             common.Address  `json:"from"`
	To               *common.Address `json:"to"`
	Input            hexutil.Bytes   `json:"input"`
	BlockNumber      hexutil.Uint64  `json:"blockNumber"`
	TransactionIndex hexutil.Uint64  `json:"transactionIndex"`
}

// Block is a block with full transaction objects, as returned by
// eth_getBlockByNumber(n, true).
type Block struct {
	Number       hexutil.Uint64 `json:"number"`
	Hash         common.Hash    `json:"hash"`
	Timestamp    hexutil.Uint64 `json:"timestamp"`
	Transactions []*Transaction `json:"transactions"`
}

// Client fans block fetches out over a pool of HTTP endpoints. Each call
// draws an independent uniformly-random endpoint; transport-level retries
// are left to the underlying rpc client.
type Client struct {
	endpoints config.Endpoints
	conns     map[string]*rpc.Client
}

// Dial connects to every endpoint of the pool. HTTP connections in
// go-ethereum are lazy, so this only fails on malformed URLs.
func Dial(endpoints config.Endpoints) (*Client, error) {
	conns := make(map[string]*rpc.Client, len(endpoints))
	for _, url := range endpoints {
		conn, err := rpc.Dial(url)
		if err != nil {
			return nil, err
		}
		conns[url] = conn
	}
	return &Client{endpoints: endpoints, conns: conns}, nil
}

// Close releases every pooled connection.
func (c *Client) Close() {
	for _, conn := range c.conns {
		conn.Close()
	}
}

func (c *Client) random() *rpc.Client {
	return c.conns[c.endpoints.Random()]
}

// BlockNumber returns the chain head number as seen by a random endpoint.
func (c *Client) BlockNumber(ctx context.Context) (uint64, error) {
	var number hexutil.Uint64
	if err := c.random().CallContext(ctx, &number, "eth_blockNumber"); err != nil {
		return 0, err
	}
	return uint64(number), nil
}

// BlockByNumber fetches the block with full transaction objects. A nil block
// with nil error means the chosen endpoint does not have the block yet; the
// walker treats that as "come back later".
func (c *Client) BlockByNumber(ctx context.Context, number uint64) (*Block, error) {
	var block *Block
	err := c.random().CallContext(ctx, &block, "eth_getBlockByNumber", hexutil.Uint64(number), true)
	if err != nil {
		return nil, err
	}
	return block, nil
}

// HeadSource delivers newHeads wakeups from the chain's websocket endpoint.
// The subscription payload is never inspected. The connection is re-dialed
// on demand so the supervisor's restart loop recovers from a dropped socket.
type HeadSource struct {
	url  string
	conn *rpc.Client
}

// DialHeads connects the websocket endpoint. Bootstrap failure here is fatal
// to the process, unlike later drops which surface through the subscription.
func DialHeads(ctx context.Context, url string) (*HeadSource, error) {
	conn, err := rpc.DialContext(ctx, url)
	if err != nil {
		return nil, err
	}
	return &HeadSource{url: url, conn: conn}, nil
}

// Close tears down the websocket connection.
func (h *HeadSource) Close() {
	if h.conn != nil {
		h.conn.Close()
	}
}

// SubscribeNewHeads opens a newHeads subscription delivering raw payloads
// into ch. If the cached connection has died since the last walk, it is
// re-dialed once before giving up.
func (h *HeadSource) SubscribeNewHeads(ctx context.Context, ch chan<- json.RawMessage) (ethereum.Subscription, error) {
	sub, err := h.conn.EthSubscribe(ctx, ch, "newHeads")
	if err == nil {
		return sub, nil
	}
	h.conn.Close()
	conn, derr := rpc.DialContext(ctx, h.url)
	if derr != nil {
		return nil, derr
	}
	h.conn = conn
	return h.conn.EthSubscribe(ctx, ch, "newHeads")
}
