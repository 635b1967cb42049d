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
	"path/filepath"

	"github.com/hyperledger/firefly-common/pkg/fftypes"
	"github.com/hyperledger/leizu/internal/chain"
	"github.com/hyperledger/leizu/internal/constants"
	"github.com/hyperledger/leizu/internal/errdefs"
	"github.com/hyperledger/leizu/internal/log"
	"github.com/hyperledger/leizu/pkg/types"
	"github.com/pkg/errors"
)

type ChannelService struct {
	*Deps
}

func (s *ChannelService) channelOrganization(ctx context.Context, org *types.Organization) (*chain.ChannelOrganization, []*types.Node, error) {
	peers, err := s.peersOf(ctx, org.ID)
	if err != nil {
		return nil, nil, err
	}
	co, err := chain.ChannelOrganizationOf(org, peers)
	if err != nil {
		return nil, nil, err
	}
	return co, peers, nil
}

// Create submits a new application channel for the given peer organizations.
// Every organization needs at least one peer to anchor, and the first one
// administers the channel. Peers are joined separately.
func (s *ChannelService) Create(ctx context.Context, consortiumID, name string, orgIDs []string) (*types.Channel, error) {
	consortium, _, err := s.consortium(ctx, consortiumID)
	if err != nil {
		return nil, err
	}
	if len(orgIDs) == 0 {
		return nil, errdefs.Invalidf("channel %s needs at least one organization", name)
	}
	if _, err := s.Store.Channels.FindByName(ctx, consortium.ID, name); err == nil {
		return nil, errdefs.Conflictf("channel %s already exists in consortium %s", name, consortium.Name)
	} else if !errdefs.IsNotFound(err) {
		return nil, err
	}
	profiles, err := s.orgProfiles(ctx, orgIDs, true)
	if err != nil {
		return nil, err
	}
	admin := profiles[0].Org
	profile := BuildChannelProfile(consortium.Name, consortium.FabricVersion, admin.MSPID, profiles)
	sourceDir := filepath.Join(s.Identity.CryptoPath(), consortium.ID)
	workDir := filepath.Join(sourceDir, "configtx", name)
	if err := profile.Stage(sourceDir, workDir); err != nil {
		return nil, errors.Wrapf(err, "stage channel profile of %s", name)
	}
	orderer, err := s.ordererEndpoint(ctx, consortium.ID)
	if err != nil {
		return nil, err
	}
	req := &chain.CreateChannelRequest{
		Channel:    name,
		Consortium: consortium.Name,
		Version:    consortium.FabricVersion,
		Admin:      chain.AdminIdentity(admin),
		Orderer:    orderer,
		Profile:    filepath.Join(workDir, constants.ConfigTxFile),
	}
	for _, p := range profiles {
		co, _, err := s.channelOrganization(ctx, p.Org)
		if err != nil {
			return nil, err
		}
		req.Organizations = append(req.Organizations, co)
	}
	log.LoggerFromContext(ctx).Info(fmt.Sprintf("creating channel %s administered by %s", name, admin.MSPID))
	if err := s.Chain.CreateChannel(ctx, req); err != nil {
		return nil, errors.Wrapf(err, "create channel %s", name)
	}
	channel := &types.Channel{
		ID:           fftypes.NewUUID().String(),
		ConsortiumID: consortium.ID,
		Name:         name,
		Orgs:         []string{},
		Peers:        []string{},
		Created:      fftypes.Now(),
	}
	channel.AddOrgs(orgIDs...)
	if err := s.Store.Channels.Create(ctx, channel); err != nil {
		return nil, err
	}
	return channel, nil
}

// Join joins the peers of a member organization that are not on the channel
// yet. Peers that already joined are left alone since a second join fails
// on an existing ledger.
func (s *ChannelService) Join(ctx context.Context, channelID, orgID string) (*types.Channel, error) {
	channel, err := s.Store.Channels.Get(ctx, channelID)
	if err != nil {
		return nil, err
	}
	if !channel.HasOrg(orgID) {
		return nil, errdefs.Invalidf("organization %s is not a member of channel %s", orgID, channel.Name)
	}
	org, err := s.Store.Organizations.Get(ctx, orgID)
	if err != nil {
		return nil, err
	}
	peers, err := s.peersOf(ctx, org.ID)
	if err != nil {
		return nil, err
	}
	if len(peers) == 0 {
		return nil, errdefs.Invalidf("organization %s has no peers to join channel %s", org.Name, channel.Name)
	}
	pending := make([]*types.Node, 0, len(peers))
	for _, p := range peers {
		if !channel.HasPeer(p.ID) {
			pending = append(pending, p)
		}
	}
	if len(pending) == 0 {
		return channel, nil
	}
	peers = pending
	orderer, err := s.ordererEndpoint(ctx, channel.ConsortiumID)
	if err != nil {
		return nil, err
	}
	req := &chain.JoinChannelRequest{
		Channel: channel.Name,
		Admin:   chain.AdminIdentity(org),
		Orderer: orderer,
	}
	ids := make([]string, len(peers))
	for i, p := range peers {
		req.Peers = append(req.Peers, chain.NodeEndpoint(p, org, s.Config.TLSEnabled))
		ids[i] = p.ID
	}
	log.LoggerFromContext(ctx).Info(fmt.Sprintf("joining %d peers of %s to %s", len(peers), org.Name, channel.Name))
	if err := s.Chain.JoinChannel(ctx, req); err != nil {
		return nil, errors.Wrapf(err, "join %s to channel %s", org.Name, channel.Name)
	}
	return s.Store.Channels.Update(ctx, channel.ID, func(c *types.Channel) error {
		c.AddPeers(ids...)
		return nil
	})
}

// AddOrganization amends the channel configuration with a new peer
// organization, signed by the admins of the current members, then joins its
// peers.
func (s *ChannelService) AddOrganization(ctx context.Context, channelID, orgID string) (*types.Channel, error) {
	channel, err := s.Store.Channels.Get(ctx, channelID)
	if err != nil {
		return nil, err
	}
	if channel.HasOrg(orgID) {
		return nil, errdefs.Conflictf("organization %s is already a member of channel %s", orgID, channel.Name)
	}
	profiles, err := s.orgProfiles(ctx, []string{orgID}, true)
	if err != nil {
		return nil, err
	}
	org := profiles[0].Org
	if org.ConsortiumID != channel.ConsortiumID {
		return nil, errdefs.Invalidf("organization %s does not belong to the consortium of channel %s", org.Name, channel.Name)
	}
	co, _, err := s.channelOrganization(ctx, org)
	if err != nil {
		return nil, err
	}
	orderer, err := s.ordererEndpoint(ctx, channel.ConsortiumID)
	if err != nil {
		return nil, err
	}
	req := &chain.UpdateChannelRequest{
		Channel:      channel.Name,
		Organization: co,
		Orderer:      orderer,
	}
	for _, id := range channel.Orgs {
		member, err := s.Store.Organizations.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		req.Signers = append(req.Signers, chain.AdminIdentity(member))
	}
	log.LoggerFromContext(ctx).Info(fmt.Sprintf("adding %s to channel %s", org.MSPID, channel.Name))
	if err := s.Chain.UpdateChannelConfig(ctx, req); err != nil {
		return nil, errors.Wrapf(err, "add %s to channel %s", org.Name, channel.Name)
	}
	if _, err := s.Store.Channels.Update(ctx, channel.ID, func(c *types.Channel) error {
		c.AddOrgs(org.ID)
		return nil
	}); err != nil {
		return nil, err
	}
	return s.Join(ctx, channel.ID, org.ID)
}
