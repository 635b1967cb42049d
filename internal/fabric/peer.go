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

package fabric

import (
	"context"
	"fmt"

	"github.com/hyperledger/leizu/internal/constants"
	"github.com/hyperledger/leizu/internal/errdefs"
	"github.com/hyperledger/leizu/internal/identity"
	"github.com/hyperledger/leizu/internal/log"
	"github.com/hyperledger/leizu/pkg/types"
	"github.com/pkg/errors"
)

type PeerService struct {
	*Deps
}

type CreatePeerRequest struct {
	OrganizationID string
	Host           *types.HostSpec
	// ExtraHosts resolves nodes that are not stored yet.
	ExtraHosts []string
}

// Create enrolls, delivers and starts one peer, then records it. Peers can
// only be added to peer organizations.
func (s *PeerService) Create(ctx context.Context, req *CreatePeerRequest) (*types.Node, error) {
	org, err := s.Store.Organizations.Get(ctx, req.OrganizationID)
	if err != nil {
		return nil, err
	}
	if org.Type != types.NodeTypePeer {
		return nil, errdefs.Conflictf("organization %s is of type %s and cannot own peers", org.Name, org.Type)
	}
	if req.Host == nil || req.Host.IP == "" {
		return nil, errdefs.Invalidf("peer of %s has no host", org.Name)
	}
	_, manifest, err := s.consortium(ctx, org.ConsortiumID)
	if err != nil {
		return nil, err
	}
	n, err := s.prepareNode(ctx, org, req.Host, "peer", identity.RolePeer)
	if err != nil {
		return nil, err
	}
	g := s.Dialer.Gateway(req.Host)
	cfgPath, err := s.deliver(ctx, g, n)
	if err != nil {
		return nil, err
	}
	hosts, err := s.hostEntries(ctx, org.ConsortiumID, req.ExtraHosts)
	if err != nil {
		return nil, err
	}
	image := manifest.Peer.GetDockerImageString()
	svc := PeerContainer(s.nodeContainer(n, image, cfgPath, constants.PortPeer, hosts))
	log.LoggerFromContext(ctx).Info(fmt.Sprintf("starting peer %s on %s", n.Name, req.Host.IP))
	if _, err := s.startContainer(ctx, g, image, svc); err != nil {
		return nil, errors.Wrapf(err, "peer %s", n.Name)
	}
	if err := s.waitForPort(ctx, req.Host.IP, constants.PortPeer); err != nil {
		return nil, errors.Wrapf(err, "peer %s", n.Name)
	}
	if s.Config.IsRemote() {
		if err := s.registerService(ctx, req.Host.IP, "peer", constants.PortPeerMetrics); err != nil {
			log.LoggerFromContext(ctx).Warn(fmt.Sprintf("consul registration of %s failed: %s", n.Name, err))
		}
	}
	return s.recordNode(ctx, n, types.NodeTypePeer, constants.PortPeer)
}

// List returns the peers of an organization without key material.
func (s *PeerService) List(ctx context.Context, orgID string) ([]*types.Node, error) {
	peers, err := s.peersOf(ctx, orgID)
	if err != nil {
		return nil, err
	}
	public := make([]*types.Node, len(peers))
	for i, p := range peers {
		public[i] = p.Public()
	}
	return public, nil
}
