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

	"github.com/hyperledger/leizu/internal/constants"
	"github.com/hyperledger/leizu/internal/errdefs"
	"github.com/hyperledger/leizu/internal/identity"
	"github.com/hyperledger/leizu/internal/log"
	"github.com/hyperledger/leizu/pkg/types"
	"github.com/otiai10/copy"
	"github.com/pkg/errors"
)

type OrdererService struct {
	*Deps
}

// Prepare enrolls and packages an orderer of an orderer organization without
// starting it.
func (s *OrdererService) Prepare(ctx context.Context, orgID string, host *types.HostSpec) (*PreparedNode, error) {
	org, err := s.Store.Organizations.Get(ctx, orgID)
	if err != nil {
		return nil, err
	}
	if org.Type != types.NodeTypeOrderer {
		return nil, errdefs.Conflictf("organization %s is of type %s and cannot own orderers", org.Name, org.Type)
	}
	if host == nil || host.IP == "" {
		return nil, errdefs.Invalidf("orderer of %s has no host", org.Name)
	}
	return s.prepareNode(ctx, org, host, "orderer", identity.RoleOrderer)
}

type GenerateGenesisRequest struct {
	OrdererOrgID string
	Orderers     []*PreparedNode
	PeerOrgIDs   []string
	// KafkaBrokers are the ip:port of the brokers, for kafka consensus.
	KafkaBrokers []string
}

// anchorPeers announces the first peer of an organization, by name when TLS
// is on.
func (d *Deps) anchorPeers(ctx context.Context, org *types.Organization) ([]*AnchorPeer, error) {
	peers, err := d.peersOf(ctx, org.ID)
	if err != nil || len(peers) == 0 {
		return nil, err
	}
	host, port, err := peers[0].HostPort()
	if err != nil {
		return nil, err
	}
	if d.Config.TLSEnabled {
		host = types.EnrollmentID(peers[0].Name, org.DomainName)
	}
	return []*AnchorPeer{{Host: host, Port: port}}, nil
}

func (d *Deps) orgProfiles(ctx context.Context, orgIDs []string, requireAnchors bool) ([]*OrgProfile, error) {
	profiles := make([]*OrgProfile, 0, len(orgIDs))
	for _, id := range orgIDs {
		org, err := d.Store.Organizations.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		if org.Type != types.NodeTypePeer {
			return nil, errdefs.Invalidf("organization %s is not a peer organization", org.Name)
		}
		anchors, err := d.anchorPeers(ctx, org)
		if err != nil {
			return nil, err
		}
		if requireAnchors && len(anchors) == 0 {
			return nil, errdefs.Invalidf("organization %s has no peers to anchor", org.Name)
		}
		profiles = append(profiles, &OrgProfile{Org: org, AnchorPeers: anchors})
	}
	return profiles, nil
}

// GenerateGenesis renders the system channel profile for the prepared
// orderers and produces the genesis block. The returned path is the block in
// the orderer organization's credential directory.
func (s *OrdererService) GenerateGenesis(ctx context.Context, req *GenerateGenesisRequest) (string, error) {
	ordererOrg, err := s.Store.Organizations.Get(ctx, req.OrdererOrgID)
	if err != nil {
		return "", err
	}
	consortium, manifest, err := s.consortium(ctx, ordererOrg.ConsortiumID)
	if err != nil {
		return "", err
	}
	peerOrgs, err := s.orgProfiles(ctx, req.PeerOrgIDs, false)
	if err != nil {
		return "", err
	}
	endpoints := make([]*OrdererEndpoint, len(req.Orderers))
	for i, n := range req.Orderers {
		endpoints[i] = &OrdererEndpoint{Name: n.Name, IP: n.Host.IP, Port: constants.PortOrderer}
	}
	profile, err := BuildGenesisProfile(&GenesisOptions{
		ConsortiumName: consortium.Name,
		Version:        consortium.FabricVersion,
		Consensus:      consortium.Consensus,
		TLSEnabled:     s.Config.TLSEnabled,
		OrdererOrg:     ordererOrg,
		Orderers:       endpoints,
		KafkaBrokers:   req.KafkaBrokers,
		PeerOrgs:       peerOrgs,
	})
	if err != nil {
		return "", err
	}
	sourceDir := filepath.Join(s.Identity.CryptoPath(), consortium.ID)
	workDir := filepath.Join(sourceDir, "configtx", "genesis")
	if err := profile.Stage(sourceDir, workDir); err != nil {
		return "", errors.Wrapf(err, "stage genesis profile of %s", consortium.Name)
	}
	log.LoggerFromContext(ctx).Info(fmt.Sprintf("generating genesis block of %s", consortium.Name))
	if err := s.Genesis.Generate(ctx, &GenesisRequest{
		ToolsImage: manifest.Tools.GetDockerImageString(),
		ConfigDir:  workDir,
		Profile:    constants.GenesisProfile,
		ChannelID:  constants.SystemChannel,
		OutputFile: constants.GenesisBlockFile,
	}); err != nil {
		return "", err
	}
	block := filepath.Join(identity.OrgCredentialDir(s.Identity.CryptoPath(), consortium.ID, ordererOrg.Name), constants.GenesisBlockFile)
	if err := copy.Copy(filepath.Join(workDir, constants.GenesisBlockFile), block); err != nil {
		return "", errors.Wrapf(err, "genesis block of %s", consortium.Name)
	}
	if err := s.archive(ctx, filepath.ToSlash(filepath.Join(consortium.ID, ordererOrg.Name, constants.GenesisBlockFile)), block); err != nil {
		log.LoggerFromContext(ctx).Warn(err.Error())
	}
	return block, nil
}

type StartOrdererRequest struct {
	Node        *PreparedNode
	GenesisPath string
	// PeerOrgIDs are the organizations whose TLS roots the orderer trusts.
	PeerOrgIDs []string
	ExtraHosts []string
}

// Start delivers the credentials, genesis block and trusted TLS roots of a
// prepared orderer, runs it and records it once it listens.
func (s *OrdererService) Start(ctx context.Context, req *StartOrdererRequest) (*types.Node, error) {
	n := req.Node
	consortium, manifest, err := s.consortium(ctx, n.Org.ConsortiumID)
	if err != nil {
		return nil, err
	}
	g := s.Dialer.Gateway(n.Host)
	cfgPath, err := s.deliver(ctx, g, n)
	if err != nil {
		return nil, err
	}
	if err := g.TransferFile(ctx, req.GenesisPath, filepath.Join(cfgPath, constants.GenesisBlockFile)); err != nil {
		return nil, errors.Wrapf(err, "genesis block for %s", n.Name)
	}
	for i, orgID := range req.PeerOrgIDs {
		org, err := s.Store.Organizations.Get(ctx, orgID)
		if err != nil {
			return nil, err
		}
		root := filepath.Join(identity.OrgCredentialDir(s.Identity.CryptoPath(), consortium.ID, org.Name), "msp", "tlscacerts", "cert.pem")
		if err := g.TransferFile(ctx, root, filepath.Join(cfgPath, "tlsrootcas", fmt.Sprintf("ca%d.crt", i))); err != nil {
			return nil, errors.Wrapf(err, "tls root of %s for %s", org.Name, n.Name)
		}
	}
	hosts, err := s.hostEntries(ctx, consortium.ID, req.ExtraHosts)
	if err != nil {
		return nil, err
	}
	image := manifest.Orderer.GetDockerImageString()
	container := s.nodeContainer(n, image, cfgPath, constants.PortOrderer, hosts)
	container.TLSRootCAs = len(req.PeerOrgIDs)
	container.Kafka = consortium.Consensus == types.ConsensusKafka
	log.LoggerFromContext(ctx).Info(fmt.Sprintf("starting orderer %s on %s", n.Name, n.Host.IP))
	if _, err := s.startContainer(ctx, g, image, OrdererContainer(container)); err != nil {
		return nil, errors.Wrapf(err, "orderer %s", n.Name)
	}
	if err := s.waitForPort(ctx, n.Host.IP, constants.PortOrderer); err != nil {
		return nil, errors.Wrapf(err, "orderer %s", n.Name)
	}
	if s.Config.IsRemote() {
		if err := s.registerService(ctx, n.Host.IP, "orderer", constants.PortOrdererMetrics); err != nil {
			log.LoggerFromContext(ctx).Warn(fmt.Sprintf("consul registration of %s failed: %s", n.Name, err))
		}
	}
	return s.recordNode(ctx, n, types.NodeTypeOrderer, constants.PortOrderer)
}
