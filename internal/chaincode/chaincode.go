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

// Package chaincode manages the lifecycle of chaincodes in a consortium:
// upload, install on peers, instantiate or upgrade on channels, and the
// transactions submitted against them afterwards.
package chaincode

import (
	"context"
	"fmt"

	"github.com/hyperledger/firefly-common/pkg/fftypes"
	"github.com/hyperledger/leizu/internal/chain"
	"github.com/hyperledger/leizu/internal/errdefs"
	"github.com/hyperledger/leizu/internal/log"
	"github.com/hyperledger/leizu/internal/metrics"
	"github.com/hyperledger/leizu/internal/store"
	"github.com/hyperledger/leizu/pkg/types"
)

type Manager struct {
	Store      *store.Store
	Chain      chain.Client
	TLSEnabled bool
	Metrics    *metrics.Metrics
}

type UploadRequest struct {
	ConsortiumID string         `json:"consortiumId"`
	Name         string         `json:"name"`
	Version      string         `json:"version"`
	Path         string         `json:"path"`
	Type         fftypes.FFEnum `json:"type,omitempty"`
	Desc         string         `json:"desc,omitempty"`
}

// Upload registers a chaincode with a consortium. Nothing is installed yet.
func (m *Manager) Upload(ctx context.Context, req *UploadRequest) (*types.Chaincode, error) {
	if req.Name == "" || req.Version == "" || req.Path == "" {
		return nil, errdefs.Invalidf("chaincode needs a name, a version and a path")
	}
	if _, err := m.Store.Consortiums.Get(ctx, req.ConsortiumID); err != nil {
		return nil, err
	}
	ccType := req.Type
	if ccType == "" {
		ccType = types.ChaincodeTypeGolang
	}
	if _, err := fftypes.FFEnumParseString(ctx, "chaincodetype", ccType.String()); err != nil {
		return nil, errdefs.Invalidf("%s", err)
	}
	cc := &types.Chaincode{
		ID:           fftypes.NewUUID().String(),
		ConsortiumID: req.ConsortiumID,
		Name:         req.Name,
		Version:      req.Version,
		Path:         req.Path,
		Type:         ccType,
		Desc:         req.Desc,
		Peers:        []string{},
		Status:       types.ChaincodeStateNone,
		State:        map[string]types.ChaincodeState{},
		Created:      fftypes.Now(),
	}
	if err := m.Store.Chaincodes.Create(ctx, cc); err != nil {
		return nil, err
	}
	log.LoggerFromContext(ctx).Info(fmt.Sprintf("uploaded chaincode %s:%s", cc.Name, cc.Version))
	return cc, nil
}

func (m *Manager) Get(ctx context.Context, id string) (*types.Chaincode, error) {
	cc, err := m.Store.Chaincodes.Get(ctx, id)
	if errdefs.IsNotFound(err) {
		return nil, errdefs.NotFoundf("chaincode %s does not exist", id)
	}
	return cc, err
}

func (m *Manager) List(ctx context.Context, consortiumID string) ([]*types.Chaincode, error) {
	return m.Store.Chaincodes.ListByConsortium(ctx, consortiumID)
}

// Records returns the audit trail of a chaincode, oldest first.
func (m *Manager) Records(ctx context.Context, id string) ([]*types.ChaincodeRecord, error) {
	if _, err := m.Get(ctx, id); err != nil {
		return nil, err
	}
	return m.Store.Records.ListByChaincode(ctx, id)
}

func (m *Manager) setStatus(ctx context.Context, cc *types.Chaincode, status types.ChaincodeState, peers []string) {
	if _, err := m.Store.Chaincodes.Update(ctx, cc.ID, func(c *types.Chaincode) error {
		c.Status = status
		c.AddPeers(peers...)
		return nil
	}); err != nil {
		log.LoggerFromContext(ctx).Warn(fmt.Sprintf("updating status of chaincode %s: %s", cc.Name, err))
	}
}

func (m *Manager) record(ctx context.Context, cc *types.Chaincode, opt types.ChaincodeState, target, message string) {
	if _, err := m.Store.Records.Append(ctx, cc, opt, target, message); err != nil {
		log.LoggerFromContext(ctx).Warn(fmt.Sprintf("recording %s of chaincode %s: %s", opt, cc.Name, err))
	}
}

// orgPeers is the set of installed peers of one organization.
type orgPeers struct {
	org   *types.Organization
	peers []*types.Node
}

// groupByOrg loads nodeIDs and groups them by organization, in the order the
// organizations first appear.
func (m *Manager) groupByOrg(ctx context.Context, consortiumID string, nodeIDs []string) ([]*orgPeers, error) {
	groups := []*orgPeers{}
	byOrg := map[string]*orgPeers{}
	for _, id := range nodeIDs {
		node, err := m.Store.Nodes.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		if node.Type != types.NodeTypePeer {
			return nil, errdefs.Invalidf("node %s is not a peer", node.Name)
		}
		if node.ConsortiumID != consortiumID {
			return nil, errdefs.Invalidf("peer %s belongs to another consortium", node.Name)
		}
		g, ok := byOrg[node.OrganizationID]
		if !ok {
			org, err := m.Store.Organizations.Get(ctx, node.OrganizationID)
			if err != nil {
				return nil, err
			}
			g = &orgPeers{org: org}
			byOrg[org.ID] = g
			groups = append(groups, g)
		}
		g.peers = append(g.peers, node)
	}
	return groups, nil
}

func (m *Manager) endpoints(g *orgPeers) []chain.Endpoint {
	endpoints := make([]chain.Endpoint, len(g.peers))
	for i, p := range g.peers {
		endpoints[i] = chain.NodeEndpoint(p, g.org, m.TLSEnabled)
	}
	return endpoints
}

// ordererEndpoint addresses the first orderer of the consortium.
func (m *Manager) ordererEndpoint(ctx context.Context, consortiumID string) (chain.Endpoint, error) {
	nodes, err := m.Store.Nodes.ListByConsortium(ctx, consortiumID)
	if err != nil {
		return chain.Endpoint{}, err
	}
	for _, n := range nodes {
		if n.Type != types.NodeTypeOrderer {
			continue
		}
		org, err := m.Store.Organizations.Get(ctx, n.OrganizationID)
		if err != nil {
			return chain.Endpoint{}, err
		}
		return chain.NodeEndpoint(n, org, m.TLSEnabled), nil
	}
	return chain.Endpoint{}, errdefs.NotFoundf("consortium %s has no orderer", consortiumID)
}
