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
	"net/http"

	"github.com/hyperledger/leizu/internal/constants"
	"github.com/hyperledger/leizu/internal/core"
	"github.com/hyperledger/leizu/internal/errdefs"
	"github.com/hyperledger/leizu/internal/log"
	"github.com/hyperledger/leizu/pkg/types"
	"github.com/pkg/errors"
)

// SidecarService runs the monitoring containers of a host: cadvisor for
// container metrics and a consul agent the scraper discovers targets from.
type SidecarService struct {
	*Deps
}

type consulAgentSelf struct {
	Config struct {
		Datacenter string `json:"Datacenter"`
		NodeName   string `json:"NodeName"`
	} `json:"Config"`
}

type consulService struct {
	Service string `json:"Service"`
	Address string `json:"Address"`
	Port    int    `json:"Port"`
}

type consulRegistration struct {
	Datacenter      string            `json:"Datacenter"`
	Node            string            `json:"Node"`
	Address         string            `json:"Address"`
	TaggedAddresses map[string]string `json:"TaggedAddresses"`
	Service         *consulService    `json:"Service"`
}

func consulURL(host, path string) string {
	return fmt.Sprintf("http://%s:%d/v1/%s", host, constants.PortConsul, path)
}

// registerService adds a service to the catalog of the consul agent running
// on host, under the node name that agent reports.
func (d *Deps) registerService(ctx context.Context, host, service string, port int) error {
	timeout := core.WithTimeout(d.Config.HTTP.RequestTimeout)
	var self consulAgentSelf
	if err := core.Request(ctx, http.MethodGet, consulURL(host, "agent/self"), nil, &self, timeout); err != nil {
		return err
	}
	if self.Config.NodeName == "" {
		return errdefs.Unreachablef("consul agent on %s did not report a node name", host)
	}
	reg := &consulRegistration{
		Datacenter:      self.Config.Datacenter,
		Node:            self.Config.NodeName,
		Address:         host,
		TaggedAddresses: map[string]string{"lan": host, "wan": host},
		Service:         &consulService{Service: service, Address: host, Port: port},
	}
	log.LoggerFromContext(ctx).Debug(fmt.Sprintf("registering %s:%d as %s with consul", host, port, service))
	return core.Request(ctx, http.MethodPut, consulURL(host, "catalog/register"), reg, nil, timeout)
}

// Provision starts cadvisor on host and, when a consul server is configured,
// a consul agent that gets cadvisor and the fabric nodes of the host
// registered.
func (s *SidecarService) Provision(ctx context.Context, consortiumID string, host *types.HostSpec) error {
	logger := log.LoggerFromContext(ctx)
	_, manifest, err := s.consortium(ctx, consortiumID)
	if err != nil {
		return err
	}
	g := s.Dialer.Gateway(host)
	if err := g.CreateContainerNetwork(ctx, constants.DefaultNetworkName); err != nil {
		return err
	}
	if manifest.CAdvisor != nil {
		image := manifest.CAdvisor.GetDockerImageString()
		logger.Info(fmt.Sprintf("starting cadvisor on %s", host.IP))
		if _, err := s.startContainer(ctx, g, image, CAdvisorContainer(image)); err != nil {
			return errors.Wrapf(err, "cadvisor on %s", host.IP)
		}
		if err := s.waitForPort(ctx, host.IP, constants.PortCAdvisor); err != nil {
			return errors.Wrapf(err, "cadvisor on %s", host.IP)
		}
	}
	if s.Config.Sidecar.ConsulServer == "" || manifest.Consul == nil {
		logger.Debug(fmt.Sprintf("no consul server configured, skipping service registration on %s", host.IP))
		return nil
	}
	image := manifest.Consul.GetDockerImageString()
	logger.Info(fmt.Sprintf("starting consul agent on %s", host.IP))
	if _, err := s.startContainer(ctx, g, image, ConsulContainer(image, host.IP, s.Config.Sidecar.ConsulServer)); err != nil {
		return errors.Wrapf(err, "consul agent on %s", host.IP)
	}
	if err := s.waitForPort(ctx, host.IP, constants.PortConsul); err != nil {
		return errors.Wrapf(err, "consul agent on %s", host.IP)
	}
	if manifest.CAdvisor != nil {
		if err := s.registerService(ctx, host.IP, "cadvisor", constants.PortCAdvisor); err != nil {
			return err
		}
	}
	nodes, err := s.Store.Nodes.ListByConsortium(ctx, consortiumID)
	if err != nil {
		return err
	}
	for _, n := range nodes {
		ip, _, err := n.HostPort()
		if err != nil || ip != host.IP {
			continue
		}
		service, port := "peer", constants.PortPeerMetrics
		if n.Type == types.NodeTypeOrderer {
			service, port = "orderer", constants.PortOrdererMetrics
		}
		if err := s.registerService(ctx, host.IP, service, port); err != nil {
			return err
		}
	}
	return nil
}
