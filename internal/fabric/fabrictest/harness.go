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

// Package fabrictest wires the fabric services to in-memory fakes so that
// whole provisioning flows run inside a unit test.
package fabrictest

import (
	"context"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/hyperledger/firefly-common/pkg/fftypes"
	chainmocks "github.com/hyperledger/leizu/internal/chain/mocks"
	"github.com/hyperledger/leizu/internal/config"
	"github.com/hyperledger/leizu/internal/core"
	"github.com/hyperledger/leizu/internal/fabric"
	fabricmocks "github.com/hyperledger/leizu/internal/fabric/mocks"
	"github.com/hyperledger/leizu/internal/identity"
	identitymocks "github.com/hyperledger/leizu/internal/identity/mocks"
	"github.com/hyperledger/leizu/internal/store"
	"github.com/hyperledger/leizu/internal/store/memory"
	transportmocks "github.com/hyperledger/leizu/internal/transport/mocks"
	"github.com/hyperledger/leizu/pkg/types"
	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/require"
)

type Harness struct {
	Config      *config.Config
	Store       *store.Store
	Dialer      *transportmocks.Dialer
	Chain       *chainmocks.Client
	Genesis     *fabricmocks.GenesisGenerator
	Authorities *identitymocks.FakeAuthorities
	Identity    *identity.Service
	Deps        *fabric.Deps
	Services    *fabric.Services

	mux    sync.Mutex
	waited []string
}

// New builds a harness in local run mode. httpmock is activated so every CA
// answers its cainfo request; callers register further responders as needed.
func New(t *testing.T) *Harness {
	httpmock.Activate()
	t.Cleanup(httpmock.DeactivateAndReset)
	httpmock.RegisterRegexpResponder("GET", regexp.MustCompile(`/api/v1/cainfo$`),
		httpmock.NewStringResponder(200, `{"success":true,"result":{"CAName":"ca"}}`))

	cfg := config.Default()
	cfg.CryptoPath = t.TempDir()
	cfg.Wait = config.WaitConfig{Interval: 20 * time.Millisecond, Timeout: 200 * time.Millisecond}

	h := &Harness{
		Config:      cfg,
		Store:       store.New(memory.New()),
		Dialer:      transportmocks.NewDialer(),
		Chain:       chainmocks.NewClient(),
		Genesis:     &fabricmocks.GenesisGenerator{},
		Authorities: identitymocks.NewFakeAuthorities(),
	}
	h.Identity = identity.NewService(identity.Options{
		CryptoPath: cfg.CryptoPath,
		Wait:       core.WaitOptions{Interval: 20 * time.Millisecond, Timeout: 200 * time.Millisecond},
	})
	h.Identity.NewAuthority = h.Authorities.NewAuthority
	h.Deps = &fabric.Deps{
		Config:   cfg,
		Store:    h.Store,
		Identity: h.Identity,
		Dialer:   h.Dialer,
		Chain:    h.Chain,
		Genesis:  h.Genesis,
		WaitForTCP: func(ctx context.Context, addr string, opts core.WaitOptions) error {
			h.mux.Lock()
			defer h.mux.Unlock()
			h.waited = append(h.waited, addr)
			return nil
		},
	}
	h.Services = fabric.NewServices(h.Deps)
	return h
}

// Waited lists every address a service waited on, in order.
func (h *Harness) Waited() []string {
	h.mux.Lock()
	defer h.mux.Unlock()
	return append([]string{}, h.waited...)
}

func (h *Harness) Consortium(t *testing.T, name string, consensus fftypes.FFEnum) *types.Consortium {
	c := &types.Consortium{
		ID:            fftypes.NewUUID().String(),
		Name:          name,
		Mode:          types.RunModeBare,
		FabricVersion: "1.4",
		Consensus:     consensus,
		Status:        types.RequestStatusRunning,
		Created:       fftypes.Now(),
	}
	require.NoError(t, h.Store.Consortiums.Create(context.Background(), c))
	return c
}

func (h *Harness) Org(t *testing.T, consortiumID, name string, orgType fftypes.FFEnum, ip string) *types.Organization {
	org, err := h.Services.Organizations.Create(context.Background(), &fabric.CreateOrganizationRequest{
		ConsortiumID: consortiumID,
		Name:         name,
		Type:         orgType,
		CA:           &types.HostSpec{Name: "ca", IP: ip},
	})
	require.NoError(t, err)
	return org
}

func (h *Harness) Peer(t *testing.T, orgID, ip string) *types.Node {
	node, err := h.Services.Peers.Create(context.Background(), &fabric.CreatePeerRequest{
		OrganizationID: orgID,
		Host:           &types.HostSpec{Name: "peer", IP: ip},
	})
	require.NoError(t, err)
	return node
}

// Orderer prepares, generates a genesis block for and starts a single
// orderer.
func (h *Harness) Orderer(t *testing.T, orgID, ip string, peerOrgIDs ...string) *types.Node {
	ctx := context.Background()
	n, err := h.Services.Orderers.Prepare(ctx, orgID, &types.HostSpec{Name: "orderer", IP: ip})
	require.NoError(t, err)
	block, err := h.Services.Orderers.GenerateGenesis(ctx, &fabric.GenerateGenesisRequest{
		OrdererOrgID: orgID,
		Orderers:     []*fabric.PreparedNode{n},
		PeerOrgIDs:   peerOrgIDs,
	})
	require.NoError(t, err)
	node, err := h.Services.Orderers.Start(ctx, &fabric.StartOrdererRequest{Node: n, GenesisPath: block, PeerOrgIDs: peerOrgIDs})
	require.NoError(t, err)
	return node
}
