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
	"github.com/hyperledger/leizu/internal/fabric"
	"github.com/hyperledger/leizu/internal/log"
	"github.com/hyperledger/leizu/pkg/types"
	"github.com/pkg/errors"
)

// run executes the provisioning steps in order. Independent work within a
// step runs concurrently. A step waits for all of its parts to finish and
// then fails with the first error any of them returned.
func (o *Orchestrator) run(ctx context.Context, consortium *types.Consortium, req *types.NetworkRequest) error {
	logger := log.LoggerFromContext(ctx)

	logger.Info("allocating hosts")
	if err := o.allocate(ctx, consortium, req.Hosts()); err != nil {
		return errors.Wrap(err, "allocate hosts")
	}

	logger.Info("provisioning peer organizations")
	peerOrgs, err := o.provisionPeerOrgs(ctx, consortium, req.PeerOrgs)
	if err != nil {
		return err
	}
	logger.Info("provisioning peers")
	if err := o.provisionPeers(ctx, peerOrgs, req.PeerOrgs); err != nil {
		return err
	}

	logger.Info("provisioning orderers")
	if err := o.provisionOrderers(ctx, consortium, req, peerOrgs); err != nil {
		return err
	}

	if o.Config.IsRemote() {
		logger.Info("provisioning sidecars")
		if err := o.provisionSidecars(ctx, consortium, req.Hosts()); err != nil {
			return err
		}
	}

	logger.Info(fmt.Sprintf("creating channel %s", req.Channel.Name))
	return o.createChannel(ctx, consortium, req.Channel, peerOrgs)
}

func (o *Orchestrator) provisionPeerOrgs(ctx context.Context, consortium *types.Consortium, specs []*types.OrgSpec) ([]*types.Organization, error) {
	orgs := make([]*types.Organization, len(specs))
	err := fanOut(len(specs), func(i int) error {
		res, err := o.execute(ctx, action.ResourceCA, action.VerbProvision, &fabric.CreateOrganizationRequest{
			ConsortiumID: consortium.ID,
			Name:         specs[i].Name,
			Type:         types.NodeTypePeer,
			CA:           specs[i].CA,
		})
		if err != nil {
			return errors.Wrapf(err, "organization %s", specs[i].Name)
		}
		orgs[i] = res.(*types.Organization)
		return nil
	})
	return orgs, err
}

type peerJob struct {
	org  *types.Organization
	host *types.HostSpec
}

func peerEntry(org *types.Organization, host *types.HostSpec) string {
	name := host.Name
	if name == "" {
		name = "peer"
	}
	return fabric.HostEntry(types.NodeName(name, host.IP), org.DomainName, host.IP)
}

// provisionPeers starts every peer of every organization. Peers come up
// together, so each one is told where all of its siblings live.
func (o *Orchestrator) provisionPeers(ctx context.Context, orgs []*types.Organization, specs []*types.OrgSpec) error {
	jobs := []peerJob{}
	entries := []string{}
	for i, spec := range specs {
		for _, host := range spec.Peers {
			jobs = append(jobs, peerJob{org: orgs[i], host: host})
			entries = append(entries, peerEntry(orgs[i], host))
		}
	}
	return fanOut(len(jobs), func(i int) error {
		_, err := o.execute(ctx, action.ResourcePeer, action.VerbProvision, &fabric.CreatePeerRequest{
			OrganizationID: jobs[i].org.ID,
			Host:           jobs[i].host,
			ExtraHosts:     entries,
		})
		return errors.Wrapf(err, "peer %s of %s", jobs[i].host.IP, jobs[i].org.Name)
	})
}

func (o *Orchestrator) provisionOrderers(ctx context.Context, consortium *types.Consortium, req *types.NetworkRequest, peerOrgs []*types.Organization) error {
	res, err := o.execute(ctx, action.ResourceCA, action.VerbProvision, &fabric.CreateOrganizationRequest{
		ConsortiumID: consortium.ID,
		Name:         req.OrdererOrg.Name,
		Type:         types.NodeTypeOrderer,
		CA:           req.OrdererOrg.CA,
	})
	if err != nil {
		return errors.Wrapf(err, "organization %s", req.OrdererOrg.Name)
	}
	ordererOrg := res.(*types.Organization)

	// enrollment against one CA is kept sequential
	prepared := make([]*fabric.PreparedNode, 0, len(req.OrdererOrg.Orderer))
	entries := make([]string, 0, len(req.OrdererOrg.Orderer))
	for _, host := range req.OrdererOrg.Orderer {
		n, err := o.Services.Orderers.Prepare(ctx, ordererOrg.ID, host)
		if err != nil {
			return errors.Wrapf(err, "orderer %s", host.IP)
		}
		prepared = append(prepared, n)
		entries = append(entries, n.HostEntry())
	}

	var brokers []string
	if consortium.Consensus == types.ConsensusKafka {
		res, err := o.execute(ctx, action.ResourceKafka, action.VerbProvision, &action.KafkaParams{
			ConsortiumID: consortium.ID,
			Kafka:        req.Kafka,
			Zookeepers:   req.Zookeeper,
		})
		if err != nil {
			return errors.Wrap(err, "kafka")
		}
		brokers = res.([]string)
	}

	peerOrgIDs := make([]string, len(peerOrgs))
	for i, org := range peerOrgs {
		peerOrgIDs[i] = org.ID
	}
	genesis, err := o.Services.Orderers.GenerateGenesis(ctx, &fabric.GenerateGenesisRequest{
		OrdererOrgID: ordererOrg.ID,
		Orderers:     prepared,
		PeerOrgIDs:   peerOrgIDs,
		KafkaBrokers: brokers,
	})
	if err != nil {
		return errors.Wrap(err, "genesis block")
	}

	return fanOut(len(prepared), func(i int) error {
		_, err := o.execute(ctx, action.ResourceOrderer, action.VerbProvision, &fabric.StartOrdererRequest{
			Node:        prepared[i],
			GenesisPath: genesis,
			PeerOrgIDs:  peerOrgIDs,
			ExtraHosts:  entries,
		})
		return errors.Wrapf(err, "orderer %s", prepared[i].Name)
	})
}

// provisionSidecars brings up the monitoring agents once per distinct host.
func (o *Orchestrator) provisionSidecars(ctx context.Context, consortium *types.Consortium, hosts []*types.HostSpec) error {
	seen := map[string]bool{}
	distinct := []*types.HostSpec{}
	for _, h := range hosts {
		if h.IP != "" && !seen[h.IP] {
			seen[h.IP] = true
			distinct = append(distinct, h)
		}
	}
	return fanOut(len(distinct), func(i int) error {
		_, err := o.execute(ctx, action.ResourceSidecar, action.VerbProvision, &action.SidecarParams{
			ConsortiumID: consortium.ID,
			Host:         distinct[i],
		})
		return errors.Wrapf(err, "sidecar on %s", distinct[i].IP)
	})
}

// createChannel creates the channel with the named organizations, every
// peer organization when none are named, then joins each member's peers.
func (o *Orchestrator) createChannel(ctx context.Context, consortium *types.Consortium, spec *types.ChannelSpec, peerOrgs []*types.Organization) error {
	byName := map[string]*types.Organization{}
	for _, org := range peerOrgs {
		byName[org.Name] = org
	}
	members := peerOrgs
	if len(spec.Orgs) > 0 {
		members = make([]*types.Organization, len(spec.Orgs))
		for i, name := range spec.Orgs {
			members[i] = byName[name]
		}
	}
	orgIDs := make([]string, len(members))
	for i, org := range members {
		orgIDs[i] = org.ID
	}
	res, err := o.execute(ctx, action.ResourceChannel, action.VerbCreate, &action.ChannelCreateParams{
		ConsortiumID: consortium.ID,
		Name:         spec.Name,
		OrgIDs:       orgIDs,
	})
	if err != nil {
		return errors.Wrapf(err, "channel %s", spec.Name)
	}
	channel := res.(*types.Channel)
	for _, org := range members {
		if _, err := o.execute(ctx, action.ResourceChannel, action.VerbJoin, &action.ChannelJoinParams{
			ChannelID: channel.ID,
			OrgID:     org.ID,
		}); err != nil {
			return errors.Wrapf(err, "join %s to %s", org.Name, spec.Name)
		}
	}
	return nil
}
