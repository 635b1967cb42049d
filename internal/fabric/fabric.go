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

// Package fabric brings up the containers of a consortium (CAs, peers,
// orderers, kafka, monitoring sidecars), renders configtx profiles and keeps
// the organization, node and channel records in step with what runs.
package fabric

import (
	"context"
	"fmt"
	"sort"

	"github.com/hyperledger/leizu/internal/chain"
	"github.com/hyperledger/leizu/internal/config"
	"github.com/hyperledger/leizu/internal/core"
	"github.com/hyperledger/leizu/internal/docker"
	"github.com/hyperledger/leizu/internal/errdefs"
	"github.com/hyperledger/leizu/internal/identity"
	"github.com/hyperledger/leizu/internal/log"
	"github.com/hyperledger/leizu/internal/store"
	"github.com/hyperledger/leizu/internal/transport"
	"github.com/hyperledger/leizu/pkg/types"
	"github.com/pkg/errors"
)

// Archiver publishes credential bundles and genesis blocks for other tools to
// pick up.
type Archiver interface {
	Upload(ctx context.Context, key, localPath string) error
}

// Deps are the collaborators shared by every service of the package.
type Deps struct {
	Config   *config.Config
	Store    *store.Store
	Identity *identity.Service
	Dialer   transport.Dialer
	Chain    chain.Client
	Genesis  GenesisGenerator
	// Archive is optional.
	Archive Archiver
	// WaitForTCP and Manifest default to the core implementations.
	WaitForTCP func(ctx context.Context, addr string, opts core.WaitOptions) error
	Manifest   func(version string) (*types.VersionManifest, error)
}

type Services struct {
	Organizations *OrganizationService
	Peers         *PeerService
	Orderers      *OrdererService
	Channels      *ChannelService
	Sidecars      *SidecarService
	Kafka         *KafkaService
}

func NewServices(d *Deps) *Services {
	if d.WaitForTCP == nil {
		d.WaitForTCP = core.WaitForTCP
	}
	if d.Manifest == nil {
		d.Manifest = core.GetManifestForVersion
	}
	return &Services{
		Organizations: &OrganizationService{d},
		Peers:         &PeerService{d},
		Orderers:      &OrdererService{d},
		Channels:      &ChannelService{d},
		Sidecars:      &SidecarService{d},
		Kafka:         &KafkaService{d},
	}
}

func (d *Deps) waitOptions() core.WaitOptions {
	return core.WaitOptions{
		Delay:    d.Config.Wait.Delay,
		Interval: d.Config.Wait.Interval,
		Timeout:  d.Config.Wait.Timeout,
	}
}

func (d *Deps) waitForPort(ctx context.Context, ip string, port int) error {
	return d.WaitForTCP(ctx, fmt.Sprintf("%s:%d", ip, port), d.waitOptions())
}

// consortium loads a consortium together with the images of its release.
func (d *Deps) consortium(ctx context.Context, id string) (*types.Consortium, *types.VersionManifest, error) {
	c, err := d.Store.Consortiums.Get(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	manifest, err := d.Manifest(c.FabricVersion)
	if err != nil {
		return nil, nil, err
	}
	return c, manifest, nil
}

// startContainer pulls the image when missing, then creates and starts svc.
func (d *Deps) startContainer(ctx context.Context, g transport.Gateway, image string, svc *docker.Service) (string, error) {
	if err := g.CheckImage(ctx, image); err != nil {
		return "", err
	}
	return g.CreateContainer(ctx, svc)
}

func (d *Deps) archive(ctx context.Context, key, localPath string) error {
	if d.Archive == nil {
		return nil
	}
	log.LoggerFromContext(ctx).Debug(fmt.Sprintf("archiving %s as %s", localPath, key))
	return errors.Wrapf(d.Archive.Upload(ctx, key, localPath), "archive %s", key)
}

// HostEntry maps the fully qualified name of a node onto its IP, in the
// form docker --add-host expects.
func HostEntry(nodeName, domainName, ip string) string {
	return fmt.Sprintf("%s:%s", types.EnrollmentID(nodeName, domainName), ip)
}

// hostEntries resolves every node already registered in the consortium, plus
// extra, without duplicates.
func (d *Deps) hostEntries(ctx context.Context, consortiumID string, extra []string) ([]string, error) {
	nodes, err := d.Store.Nodes.ListByConsortium(ctx, consortiumID)
	if err != nil {
		return nil, err
	}
	seen := map[string]bool{}
	entries := []string{}
	add := func(e string) {
		if !seen[e] {
			seen[e] = true
			entries = append(entries, e)
		}
	}
	domains := map[string]string{}
	for _, n := range nodes {
		domain, ok := domains[n.OrganizationID]
		if !ok {
			org, err := d.Store.Organizations.Get(ctx, n.OrganizationID)
			if err != nil {
				return nil, err
			}
			domain = org.DomainName
			domains[n.OrganizationID] = domain
		}
		host, _, err := n.HostPort()
		if err != nil {
			return nil, err
		}
		add(HostEntry(n.Name, domain, host))
	}
	for _, e := range extra {
		add(e)
	}
	sort.Strings(entries)
	return entries, nil
}

// ordererEndpoint addresses the first orderer registered in a consortium.
func (d *Deps) ordererEndpoint(ctx context.Context, consortiumID string) (chain.Endpoint, error) {
	nodes, err := d.Store.Nodes.ListByConsortium(ctx, consortiumID)
	if err != nil {
		return chain.Endpoint{}, err
	}
	for _, n := range nodes {
		if n.Type == types.NodeTypeOrderer {
			org, err := d.Store.Organizations.Get(ctx, n.OrganizationID)
			if err != nil {
				return chain.Endpoint{}, err
			}
			return chain.NodeEndpoint(n, org, d.Config.TLSEnabled), nil
		}
	}
	return chain.Endpoint{}, errdefs.NotFoundf("consortium %s has no orderer", consortiumID)
}

// peersOf lists the peer nodes of an organization in registration order.
func (d *Deps) peersOf(ctx context.Context, orgID string) ([]*types.Node, error) {
	nodes, err := d.Store.Nodes.ListByOrganization(ctx, orgID)
	if err != nil {
		return nil, err
	}
	peers := make([]*types.Node, 0, len(nodes))
	for _, n := range nodes {
		if n.Type == types.NodeTypePeer {
			peers = append(peers, n)
		}
	}
	return peers, nil
}
