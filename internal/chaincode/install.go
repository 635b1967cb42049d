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
	"github.com/hyperledger/leizu/pkg/types"
	"github.com/pkg/errors"
)

// Install packages the chaincode onto peerIDs, once per organization. Peers
// are write-once: asking for a peer that already has the chaincode is a
// Conflict. The peers are claimed on the chaincode in one store update, so
// of two installs racing for a peer only one gets through. With no peer ids
// the install is repeated on the recorded peers.
//
// An organization failing stops the install. Organizations done before it
// keep their peers, so the call can be resumed with the remaining peers.
func (m *Manager) Install(ctx context.Context, chaincodeID string, peerIDs []string) (messages []string, err error) {
	defer func() { m.Metrics.ObserveChaincode("install", err) }()

	cc, err := m.Get(ctx, chaincodeID)
	if err != nil {
		return nil, err
	}
	if len(peerIDs) == 0 && len(cc.Peers) == 0 {
		return nil, errdefs.Invalidf("no peers was found for chaincode %s", cc.Name)
	}
	targets := cc.Peers
	claimed := []string{}
	if len(peerIDs) > 0 {
		targets = dedupe(peerIDs)
	}
	groups, err := m.groupByOrg(ctx, cc.ConsortiumID, targets)
	if err != nil {
		return nil, err
	}
	if len(peerIDs) > 0 {
		if err := m.claimPeers(ctx, cc, targets); err != nil {
			return nil, err
		}
		claimed = targets
	}

	logger := log.LoggerFromContext(ctx)
	installed := []string{}
	for _, g := range groups {
		logger.Info(fmt.Sprintf("installing chaincode %s:%s on %d peers of %s", cc.Name, cc.Version, len(g.peers), g.org.Name))
		msg, err := m.Chain.InstallChaincode(ctx, &chain.InstallRequest{
			Admin:   chain.AdminIdentity(g.org),
			Peers:   m.endpoints(g),
			Name:    cc.Name,
			Version: cc.Version,
			Path:    cc.Path,
			Type:    cc.Type.String(),
		})
		if err != nil {
			m.releasePeers(ctx, cc, without(claimed, installed))
			m.setStatus(ctx, cc, types.ChaincodeStateInstallFailed, installed)
			m.record(ctx, cc, types.ChaincodeStateInstallFailed, g.org.Name, err.Error())
			return messages, errors.Wrapf(err, "install %s on %s", cc.Name, g.org.Name)
		}
		m.record(ctx, cc, types.ChaincodeStateInstalled, g.org.Name, msg)
		messages = append(messages, msg)
		for _, p := range g.peers {
			installed = append(installed, p.ID)
		}
	}
	m.setStatus(ctx, cc, types.ChaincodeStateInstalled, installed)
	return messages, nil
}

// claimPeers records peerIDs on the chaincode, failing with a Conflict if any
// of them is already there.
func (m *Manager) claimPeers(ctx context.Context, cc *types.Chaincode, peerIDs []string) error {
	_, err := m.Store.Chaincodes.Update(ctx, cc.ID, func(c *types.Chaincode) error {
		for _, id := range peerIDs {
			if c.HasPeer(id) {
				return errdefs.Conflictf("chaincode %s is already installed on peer %s", c.Name, id)
			}
		}
		c.AddPeers(peerIDs...)
		return nil
	})
	return err
}

func (m *Manager) releasePeers(ctx context.Context, cc *types.Chaincode, peerIDs []string) {
	if len(peerIDs) == 0 {
		return
	}
	if _, err := m.Store.Chaincodes.Update(ctx, cc.ID, func(c *types.Chaincode) error {
		c.Peers = without(c.Peers, peerIDs)
		return nil
	}); err != nil {
		log.LoggerFromContext(ctx).Warn(fmt.Sprintf("releasing peers of chaincode %s: %s", cc.Name, err))
	}
}

// without returns ids minus drop, keeping order.
func without(ids, drop []string) []string {
	skip := map[string]bool{}
	for _, id := range drop {
		skip[id] = true
	}
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if !skip[id] {
			out = append(out, id)
		}
	}
	return out
}

func dedupe(ids []string) []string {
	seen := map[string]bool{}
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}
