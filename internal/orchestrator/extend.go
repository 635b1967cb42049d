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

package orchestrator

import (
	"context"
	"fmt"

	"github.com/hyperledger/leizu/internal/action"
	"github.com/hyperledger/leizu/internal/errdefs"
	"github.com/hyperledger/leizu/internal/fabric"
	"github.com/hyperledger/leizu/internal/log"
	"github.com/hyperledger/leizu/pkg/types"
	"github.com/pkg/errors"
)

// AddOrganization brings a new peer organization, and its CA, into a running
// consortium. Peers are added separately with AddPeers.
func (o *Orchestrator) AddOrganization(ctx context.Context, consortiumID string, spec *types.OrgSpec) (*types.Organization, error) {
	if spec == nil || spec.Name == "" || spec.CA == nil {
		return nil, errdefs.Invalidf("organization needs a name and a CA host")
	}
	consortium, err := o.Store.Consortiums.Get(ctx, consortiumID)
	if err != nil {
		return nil, err
	}
	if _, err := o.Store.Organizations.FindByName(ctx, consortiumID, spec.Name); err == nil {
		return nil, errdefs.Conflictf("organization %s already exists in consortium %s", spec.Name, consortium.Name)
	} else if !errdefs.IsNotFound(err) {
		return nil, err
	}
	if err := o.allocate(ctx, consortium, []*types.HostSpec{spec.CA}); err != nil {
		return nil, errors.Wrap(err, "allocate CA host")
	}
	res, err := o.execute(ctx, action.ResourceCA, action.VerbProvision, &fabric.CreateOrganizationRequest{
		ConsortiumID: consortium.ID,
		Name:         spec.Name,
		Type:         types.NodeTypePeer,
		CA:           spec.CA,
	})
	if err != nil {
		return nil, err
	}
	return res.(*types.Organization), nil
}

// AddPeers starts peers for an organization. With a channel id the peers
// also join that channel, after the organization is added to the channel
// configuration when it is not a member yet.
func (o *Orchestrator) AddPeers(ctx context.Context, orgID string, hosts []*types.HostSpec, channelID string) ([]*types.Node, error) {
	if len(hosts) == 0 {
		return nil, errdefs.Invalidf("no peer hosts given")
	}
	org, err := o.Store.Organizations.Get(ctx, orgID)
	if err != nil {
		return nil, err
	}
	if org.Type != types.NodeTypePeer {
		return nil, errdefs.Conflictf("organization %s is of type %s and cannot own peers", org.Name, org.Type)
	}
	consortium, err := o.Store.Consortiums.Get(ctx, org.ConsortiumID)
	if err != nil {
		return nil, err
	}
	var channel *types.Channel
	if channelID != "" {
		if channel, err = o.Store.Channels.Get(ctx, channelID); err != nil {
			return nil, err
		}
	}
	if err := o.allocate(ctx, consortium, hosts); err != nil {
		return nil, errors.Wrap(err, "allocate peer hosts")
	}

	entries := make([]string, len(hosts))
	for i, h := range hosts {
		entries[i] = peerEntry(org, h)
	}
	nodes := make([]*types.Node, len(hosts))
	if err := fanOut(len(hosts), func(i int) error {
		res, err := o.execute(ctx, action.ResourcePeer, action.VerbProvision, &fabric.CreatePeerRequest{
			OrganizationID: org.ID,
			Host:           hosts[i],
			ExtraHosts:     entries,
		})
		if err != nil {
			return errors.Wrapf(err, "peer %s of %s", hosts[i].IP, org.Name)
		}
		nodes[i] = res.(*types.Node)
		return nil
	}); err != nil {
		return nil, err
	}

	if channel == nil {
		return nodes, nil
	}
	if channel.HasOrg(org.ID) {
		log.LoggerFromContext(ctx).Info(fmt.Sprintf("joining new peers of %s to %s", org.Name, channel.Name))
		_, err = o.execute(ctx, action.ResourceChannel, action.VerbJoin, &action.ChannelJoinParams{ChannelID: channel.ID, OrgID: org.ID})
	} else {
		_, err = o.Services.Channels.AddOrganization(ctx, channel.ID, org.ID)
	}
	if err != nil {
		return nodes, errors.Wrapf(err, "channel %s", channel.Name)
	}
	return nodes, nil
}
