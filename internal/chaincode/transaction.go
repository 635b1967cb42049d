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

package chaincode

import (
	"context"
	"fmt"

	"github.com/hyperledger/leizu/internal/chain"
	"github.com/hyperledger/leizu/internal/errdefs"
	"github.com/hyperledger/leizu/internal/log"
)

// Invoke submits a transaction endorsed by one installed peer of every
// installed organization on the channel.
func (m *Manager) Invoke(ctx context.Context, chaincodeID, channelID, fn string, args []string) (res *chain.TransactionResult, err error) {
	defer func() { m.Metrics.ObserveChaincode("invoke", err) }()
	req, err := m.transaction(ctx, chaincodeID, channelID, fn, args)
	if err != nil {
		return nil, err
	}
	log.LoggerFromContext(ctx).Debug(fmt.Sprintf("invoking %s.%s on %s as %s", req.Chaincode, fn, req.Channel, req.Signer.MSPID))
	return m.Chain.InvokeChaincode(ctx, req)
}

// Query evaluates fn on the same peers Invoke would use, without ordering.
func (m *Manager) Query(ctx context.Context, chaincodeID, channelID, fn string, args []string) (res *chain.TransactionResult, err error) {
	defer func() { m.Metrics.ObserveChaincode("query", err) }()
	req, err := m.transaction(ctx, chaincodeID, channelID, fn, args)
	if err != nil {
		return nil, err
	}
	return m.Chain.QueryChaincode(ctx, req)
}

func (m *Manager) transaction(ctx context.Context, chaincodeID, channelID, fn string, args []string) (*chain.TransactionRequest, error) {
	cc, err := m.Get(ctx, chaincodeID)
	if err != nil {
		return nil, err
	}
	channel, err := m.Store.Channels.Get(ctx, channelID)
	if err != nil {
		return nil, err
	}
	if len(channel.Orgs) == 0 {
		return nil, errdefs.Invalidf("channel %s has no organization", channel.Name)
	}
	groups, err := m.groupByOrg(ctx, cc.ConsortiumID, cc.Peers)
	if err != nil {
		return nil, err
	}
	req := &chain.TransactionRequest{
		Channel:   channel.Name,
		Chaincode: cc.Name,
		Function:  fn,
		Args:      args,
	}
	for _, g := range groups {
		if !channel.HasOrg(g.org.ID) {
			continue
		}
		if len(req.Peers) == 0 {
			req.Signer = chain.AdminIdentity(g.org)
		}
		req.Peers = append(req.Peers, chain.NodeEndpoint(g.peers[0], g.org, m.TLSEnabled))
	}
	if len(req.Peers) == 0 {
		return nil, errdefs.NotFoundf("chaincode %s is not installed by any organization of channel %s", cc.Name, channel.Name)
	}
	if req.Orderer, err = m.ordererEndpoint(ctx, cc.ConsortiumID); err != nil {
		return nil, err
	}
	return req, nil
}
