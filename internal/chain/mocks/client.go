// Copyright © 2024 Kaleido, Inc.
//
// SPDX-License-Identifier: Apache-2.0
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package mocks

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/hyperledger/leizu/internal/chain"
)

// Call is one recorded chain operation.
type Call struct {
	Op      string
	MSPID   string
	Channel string
	Peers   []string
}

// Client answers every chain call with success unless an error is registered
// for the operation and the MSP id of the submitting identity.
type Client struct {
	Calls  []Call
	Errors map[string]map[string]error
	mux    sync.Mutex
}

func NewClient() *Client {
	return &Client{Errors: map[string]map[string]error{}}
}

// Fail makes op fail for mspID.
func (c *Client) Fail(op, mspID string, err error) {
	c.mux.Lock()
	defer c.mux.Unlock()
	if c.Errors[op] == nil {
		c.Errors[op] = map[string]error{}
	}
	c.Errors[op][mspID] = err
}

func (c *Client) CallsFor(op string) []Call {
	c.mux.Lock()
	defer c.mux.Unlock()
	calls := []Call{}
	for _, call := range c.Calls {
		if call.Op == op {
			calls = append(calls, call)
		}
	}
	return calls
}

func (c *Client) record(op, mspID, channel string, peers []chain.Endpoint) error {
	c.mux.Lock()
	defer c.mux.Unlock()
	names := make([]string, len(peers))
	for i, p := range peers {
		names[i] = p.Name
	}
	c.Calls = append(c.Calls, Call{Op: op, MSPID: mspID, Channel: channel, Peers: names})
	return c.Errors[op][mspID]
}

func (c *Client) CreateChannel(ctx context.Context, req *chain.CreateChannelRequest) error {
	return c.record("CreateChannel", req.Admin.MSPID, req.Channel, nil)
}

func (c *Client) JoinChannel(ctx context.Context, req *chain.JoinChannelRequest) error {
	return c.record("JoinChannel", req.Admin.MSPID, req.Channel, req.Peers)
}

func (c *Client) UpdateChannelConfig(ctx context.Context, req *chain.UpdateChannelRequest) error {
	return c.record("UpdateChannelConfig", req.Organization.MSPID, req.Channel, nil)
}

func (c *Client) InstallChaincode(ctx context.Context, req *chain.InstallRequest) (string, error) {
	if err := c.record("InstallChaincode", req.Admin.MSPID, "", req.Peers); err != nil {
		return "", err
	}
	return fmt.Sprintf("installed %s:%s on %d peers", req.Name, req.Version, len(req.Peers)), nil
}

func (c *Client) InstantiateChaincode(ctx context.Context, req *chain.DeployRequest) (string, error) {
	if err := c.record("InstantiateChaincode", req.Admin.MSPID, req.Channel, req.Peers); err != nil {
		return "", err
	}
	return fmt.Sprintf("instantiated %s:%s by %s", req.Name, req.Version, req.Admin.MSPID), nil
}

func (c *Client) UpgradeChaincode(ctx context.Context, req *chain.DeployRequest) (string, error) {
	if err := c.record("UpgradeChaincode", req.Admin.MSPID, req.Channel, req.Peers); err != nil {
		return "", err
	}
	return fmt.Sprintf("upgraded %s:%s by %s", req.Name, req.Version, req.Admin.MSPID), nil
}

func (c *Client) InvokeChaincode(ctx context.Context, req *chain.TransactionRequest) (*chain.TransactionResult, error) {
	if err := c.record("InvokeChaincode", req.Signer.MSPID, req.Channel, req.Peers); err != nil {
		return nil, err
	}
	return &chain.TransactionResult{TxID: "tx1"}, nil
}

func (c *Client) QueryChaincode(ctx context.Context, req *chain.TransactionRequest) (*chain.TransactionResult, error) {
	if err := c.record("QueryChaincode", req.Signer.MSPID, req.Channel, req.Peers); err != nil {
		return nil, err
	}
	return &chain.TransactionResult{Payload: "100"}, nil
}

func (c *Client) QueryBlockchainInfo(ctx context.Context, q *chain.LedgerQuery) (*chain.BlockchainInfo, error) {
	if err := c.record("QueryBlockchainInfo", q.Signer.MSPID, q.Channel, []chain.Endpoint{q.Peer}); err != nil {
		return nil, err
	}
	return &chain.BlockchainInfo{Height: 1}, nil
}

func (c *Client) GetBlockByNumber(ctx context.Context, q *chain.LedgerQuery, number uint64) (json.RawMessage, error) {
	if err := c.record("GetBlockByNumber", q.Signer.MSPID, q.Channel, []chain.Endpoint{q.Peer}); err != nil {
		return nil, err
	}
	return json.RawMessage(fmt.Sprintf(`{"number":%d}`, number)), nil
}

func (c *Client) GetBlockByTxID(ctx context.Context, q *chain.LedgerQuery, txID string) (json.RawMessage, error) {
	if err := c.record("GetBlockByTxID", q.Signer.MSPID, q.Channel, []chain.Endpoint{q.Peer}); err != nil {
		return nil, err
	}
	return json.RawMessage(`{"number":0}`), nil
}
