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

package action_test

import (
	"context"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/hyperledger/firefly-common/pkg/fftypes"
	"github.com/hyperledger/leizu/internal/action"
	"github.com/hyperledger/leizu/internal/errdefs"
	"github.com/hyperledger/leizu/internal/fabric"
	"github.com/hyperledger/leizu/internal/fabric/fabrictest"
	"github.com/hyperledger/leizu/internal/metrics"
	"github.com/hyperledger/leizu/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultRegistryKeys(t *testing.T) {
	h := fabrictest.New(t)
	r := action.NewDefaultRegistry(h.Services, h.Store, nil)
	assert.Equal(t, []action.Key{
		{Resource: "ca", Verb: "provision"},
		{Resource: "channel", Verb: "create"},
		{Resource: "channel", Verb: "join"},
		{Resource: "kafka", Verb: "provision"},
		{Resource: "orderer", Verb: "provision"},
		{Resource: "peer", Verb: "provision"},
		{Resource: "request", Verb: "rollback"},
		{Resource: "sidecar", Verb: "provision"},
	}, r.Keys())
}

func TestProvisionThroughActions(t *testing.T) {
	ctx := context.Background()
	h := fabrictest.New(t)
	m := metrics.New()
	r := action.NewDefaultRegistry(h.Services, h.Store, m)
	c := h.Consortium(t, "net", types.ConsensusSolo)

	res, err := r.Execute(ctx, action.ResourceCA, action.VerbProvision, action.WithParams(&fabric.CreateOrganizationRequest{
		ConsortiumID: c.ID,
		Name:         "org1",
		CA:           &types.HostSpec{Name: "ca", IP: "10.0.0.1"},
	}))
	require.NoError(t, err)
	org := res.(*types.Organization)
	assert.Equal(t, "Org1MSP", org.MSPID)

	res, err = r.Execute(ctx, action.ResourcePeer, action.VerbProvision, action.WithParams(&fabric.CreatePeerRequest{
		OrganizationID: org.ID,
		Host:           &types.HostSpec{Name: "peer", IP: "10.0.0.2"},
	}))
	require.NoError(t, err)
	assert.Equal(t, types.NodeTypePeer, res.(*types.Node).Type)

	// the same organization name again is refused before anything runs
	_, err = r.Execute(ctx, action.ResourceCA, action.VerbProvision, action.WithParams(&fabric.CreateOrganizationRequest{
		ConsortiumID: c.ID,
		Name:         "org1",
		CA:           &types.HostSpec{Name: "ca", IP: "10.0.0.3"},
	}))
	assert.ErrorIs(t, err, errdefs.ErrConflict)

	// parameters of the wrong shape
	_, err = r.Execute(ctx, action.ResourcePeer, action.VerbProvision, action.WithParams("peer0"))
	assert.ErrorIs(t, err, errdefs.ErrInvalid)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `leizu_actions_total{outcome="success",resource="ca",verb="provision"} 1`)
	assert.Contains(t, string(body), `leizu_actions_total{outcome="conflict",resource="ca",verb="provision"} 1`)
	assert.Contains(t, string(body), `leizu_actions_total{outcome="invalid",resource="peer",verb="provision"} 1`)
}

func TestRequestRollback(t *testing.T) {
	ctx := context.Background()
	h := fabrictest.New(t)
	r := action.NewDefaultRegistry(h.Services, h.Store, nil)

	c := &types.Consortium{ID: fftypes.NewUUID().String(), Name: "net", RequestID: "req-1", Mode: types.RunModeBare, FabricVersion: "1.4"}
	require.NoError(t, h.Store.Consortiums.Create(ctx, c))
	org := h.Org(t, c.ID, "org1", types.NodeTypePeer, "10.0.0.1")
	h.Peer(t, org.ID, "10.0.0.2")

	res, err := r.Execute(ctx, action.ResourceRequest, action.VerbRollback, action.Rollback("req-1"))
	require.NoError(t, err)
	assert.Equal(t, c.ID, res.(*types.Consortium).ID)

	_, err = h.Store.Consortiums.Get(ctx, c.ID)
	assert.ErrorIs(t, err, errdefs.ErrNotFound)
	nodes, err := h.Store.Nodes.ListByConsortium(ctx, c.ID)
	require.NoError(t, err)
	assert.Empty(t, nodes)
	// containers stay where they are
	assert.Equal(t, []string{"peer-10-0-0-2.org1.net.example.com"}, h.Dialer.Get("10.0.0.2").ContainerNames())

	res, err = r.Execute(ctx, action.ResourceRequest, action.VerbRollback, action.Rollback("req-1"))
	assert.NoError(t, err)
	assert.Nil(t, res)
}
