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

package mocks

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/hyperledger/leizu/internal/docker"
	"github.com/hyperledger/leizu/internal/transport"
	"github.com/hyperledger/leizu/pkg/types"
)

type Transfer struct {
	Local  string
	Remote string
}

// Gateway records what would have happened on one host.
type Gateway struct {
	Host       string
	Images     []string
	Containers []*docker.Service
	Networks   []string
	Transfers  []Transfer
	Execs      []string
	// CreateErr fails CreateContainer for containers whose name has this prefix.
	CreateErr map[string]error
	mux       sync.Mutex
}

func (g *Gateway) CheckImage(ctx context.Context, image string) error {
	if err := transport.ValidateImage(image); err != nil {
		return err
	}
	g.mux.Lock()
	defer g.mux.Unlock()
	g.Images = append(g.Images, image)
	return nil
}

func (g *Gateway) CreateContainer(ctx context.Context, svc *docker.Service) (string, error) {
	g.mux.Lock()
	defer g.mux.Unlock()
	for prefix, err := range g.CreateErr {
		if strings.HasPrefix(svc.ContainerName, prefix) {
			return "", err
		}
	}
	g.Containers = append(g.Containers, svc)
	return fmt.Sprintf("%s-%d", svc.ContainerName, len(g.Containers)), nil
}

func (g *Gateway) CreateContainerNetwork(ctx context.Context, name string) error {
	g.mux.Lock()
	defer g.mux.Unlock()
	g.Networks = append(g.Networks, name)
	return nil
}

func (g *Gateway) TransferFile(ctx context.Context, localPath, remotePath string) error {
	g.mux.Lock()
	defer g.mux.Unlock()
	g.Transfers = append(g.Transfers, Transfer{Local: localPath, Remote: remotePath})
	return nil
}

func (g *Gateway) Exec(ctx context.Context, commandLine string) (string, error) {
	g.mux.Lock()
	defer g.mux.Unlock()
	g.Execs = append(g.Execs, commandLine)
	return "", nil
}

func (g *Gateway) ContainerNames() []string {
	g.mux.Lock()
	defer g.mux.Unlock()
	names := make([]string, len(g.Containers))
	for i, c := range g.Containers {
		names[i] = c.ContainerName
	}
	return names
}

// Dialer keeps one fake gateway per host IP.
type Dialer struct {
	Gateways  map[string]*Gateway
	CreateErr map[string]error
	mux       sync.Mutex
}

func NewDialer() *Dialer {
	return &Dialer{Gateways: map[string]*Gateway{}, CreateErr: map[string]error{}}
}

func (d *Dialer) Gateway(host *types.HostSpec) transport.Gateway {
	return d.Get(host.IP)
}

func (d *Dialer) Get(ip string) *Gateway {
	d.mux.Lock()
	defer d.mux.Unlock()
	g, ok := d.Gateways[ip]
	if !ok {
		g = &Gateway{Host: ip, CreateErr: d.CreateErr}
		d.Gateways[ip] = g
	}
	return g
}

// AllContainers lists container names across every host.
func (d *Dialer) AllContainers() []string {
	d.mux.Lock()
	gateways := make([]*Gateway, 0, len(d.Gateways))
	for _, g := range d.Gateways {
		gateways = append(gateways, g)
	}
	d.mux.Unlock()
	names := []string{}
	for _, g := range gateways {
		names = append(names, g.ContainerNames()...)
	}
	return names
}
