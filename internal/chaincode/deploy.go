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
	"encoding/json"
	"fmt"

	"github.com/hyperledger/leizu/internal/chain"
	"github.com/hyperledger/leizu/internal/errdefs"
	"github.com/hyperledger/leizu/internal/log"
	"github.com/hyperledger/leizu/internal/policy"
	"github.com/hyperledger/leizu/pkg/types"
)

// Result reports an instantiate or upgrade on one channel. Error holds the
// JSON array of the messages of every organization that was tried and
// failed, in the order they were tried.
// Result reports one deployment to a channel. Organization names the
// organization the deployment went through when it succeeded.
type Result struct {
	Success      bool   `json:"success"`
	Target       string `json:"target"`
	Organization string `json:"organization,omitempty"`
	Data         string `json:"data,omitempty"`
	Error        string `json:"error,omitempty"`
}

// Err is nil for a successful result and a PartialFailure otherwise.
func (r *Result) Err() error {
	if r.Success {
		return nil
	}
	return errdefs.PartialFailuref("no organization could deploy to %s: %s", r.Target, r.Error)
}

// InstantiateOrUpgrade activates the chaincode on a channel. Installed
// organizations that are channel members are tried one at a time, in
// registration order, until one succeeds. Failures of the organizations are
// reported in the Result, not as an error: errors are returned only when the
// call cannot be attempted at all.
func (m *Manager) InstantiateOrUpgrade(ctx context.Context, chaincodeID, channelID, fn string, args []string, op types.ChaincodeOp, policyType string) (*Result, error) {
	cc, channel, groups, err := m.deployTargets(ctx, chaincodeID, channelID, op, policyType)
	if err != nil {
		m.Metrics.ObserveChaincode(string(op), err)
		return nil, err
	}
	endorsement, err := policy.Build(ctx, m.Store.Organizations, channel.Orgs)
	if err != nil {
		m.Metrics.ObserveChaincode(string(op), err)
		return nil, err
	}
	orderer, err := m.ordererEndpoint(ctx, cc.ConsortiumID)
	if err != nil {
		m.Metrics.ObserveChaincode(string(op), err)
		return nil, err
	}
	return m.deploy(ctx, cc, channel, groups, orderer, endorsement, fn, args, op), nil
}

func (m *Manager) deployTargets(ctx context.Context, chaincodeID, channelID string, op types.ChaincodeOp, policyType string) (*types.Chaincode, *types.Channel, []*orgPeers, error) {
	if op != types.ChaincodeOpInstantiate && op != types.ChaincodeOpUpgrade {
		return nil, nil, nil, errdefs.Invalidf("'%s' is not a chaincode operation, use '%s' or '%s'", op, types.ChaincodeOpInstantiate, types.ChaincodeOpUpgrade)
	}
	if err := policy.ValidateType(policyType); err != nil {
		return nil, nil, nil, err
	}
	cc, err := m.Get(ctx, chaincodeID)
	if err != nil {
		return nil, nil, nil, err
	}
	channel, err := m.Store.Channels.Get(ctx, channelID)
	if err != nil {
		return nil, nil, nil, err
	}
	if len(channel.Orgs) == 0 {
		return nil, nil, nil, errdefs.Invalidf("channel %s has no organization", channel.Name)
	}
	joined := false
	for _, id := range cc.Peers {
		if channel.HasPeer(id) {
			joined = true
			break
		}
	}
	if !joined {
		return nil, nil, nil, errdefs.NotFoundf("chaincode %s is not installed on any peer of channel %s", cc.Name, channel.Name)
	}
	groups, err := m.groupByOrg(ctx, cc.ConsortiumID, cc.Peers)
	if err != nil {
		return nil, nil, nil, err
	}
	return cc, channel, groups, nil
}

// target picks one peer of an organization, preferring one that has joined
// the channel.
func target(g *orgPeers, channel *types.Channel) *types.Node {
	for _, p := range g.peers {
		if channel.HasPeer(p.ID) {
			return p
		}
	}
	return g.peers[0]
}

func (m *Manager) deploy(ctx context.Context, cc *types.Chaincode, channel *types.Channel, groups []*orgPeers, orderer chain.Endpoint, endorsement *types.EndorsementPolicy, fn string, args []string, op types.ChaincodeOp) *Result {
	logger := log.LoggerFromContext(ctx)
	state, failed := types.ChaincodeStateDeployed, types.ChaincodeStateDeployFailed
	call := m.Chain.InstantiateChaincode
	if op == types.ChaincodeOpUpgrade {
		state, failed = types.ChaincodeStateUpgraded, types.ChaincodeStateUpgradeFailed
		call = m.Chain.UpgradeChaincode
	}

	failures := []string{}
	for _, g := range groups {
		if !channel.HasOrg(g.org.ID) {
			continue
		}
		peer := target(g, channel)
		logger.Info(fmt.Sprintf("%s chaincode %s:%s on %s through %s", op, cc.Name, cc.Version, channel.Name, g.org.Name))
		data, err := call(ctx, &chain.DeployRequest{
			Channel:  channel.Name,
			Admin:    chain.AdminIdentity(g.org),
			Peers:    []chain.Endpoint{chain.NodeEndpoint(peer, g.org, m.TLSEnabled)},
			Orderer:  orderer,
			Name:     cc.Name,
			Version:  cc.Version,
			Type:     cc.Type.String(),
			Function: fn,
			Args:     args,
			Policy:   endorsement,
		})
		if err != nil {
			logger.Warn(fmt.Sprintf("%s of %s through %s failed: %s", op, cc.Name, g.org.Name, err))
			failures = append(failures, err.Error())
			continue
		}
		m.record(ctx, cc, state, channel.Name, data)
		if _, err := m.Store.Chaincodes.Update(ctx, cc.ID, func(c *types.Chaincode) error {
			if c.State == nil {
				c.State = map[string]types.ChaincodeState{}
			}
			c.State[channel.ID] = state
			c.Status = state
			return nil
		}); err != nil {
			logger.Warn(fmt.Sprintf("updating state of chaincode %s: %s", cc.Name, err))
		}
		m.Metrics.ObserveChaincode(string(op), nil)
		return &Result{Success: true, Target: channel.Name, Organization: g.org.Name, Data: data}
	}

	msg, _ := json.Marshal(failures)
	m.setStatus(ctx, cc, failed, nil)
	m.record(ctx, cc, failed, channel.Name, string(msg))
	res := &Result{Success: false, Target: channel.Name, Error: string(msg)}
	m.Metrics.ObserveChaincode(string(op), res.Err())
	return res
}

type DeployRequest struct {
	ChaincodeID string            `json:"chaincodeId"`
	ChannelIDs  []string          `json:"channelIds"`
	Function    string            `json:"function"`
	Args        []string          `json:"args"`
	Op          types.ChaincodeOp `json:"op"`
	PolicyType  string            `json:"policyType"`
}

// Deploy runs InstantiateOrUpgrade on every channel. A channel that cannot
// be deployed to is reported in its result and does not stop the others.
func (m *Manager) Deploy(ctx context.Context, req *DeployRequest) []*Result {
	results := make([]*Result, 0, len(req.ChannelIDs))
	for _, channelID := range req.ChannelIDs {
		res, err := m.InstantiateOrUpgrade(ctx, req.ChaincodeID, channelID, req.Function, req.Args, req.Op, req.PolicyType)
		if err != nil {
			msg, _ := json.Marshal([]string{err.Error()})
			res = &Result{Success: false, Target: channelID, Error: string(msg)}
		}
		results = append(results, res)
	}
	return results
}
