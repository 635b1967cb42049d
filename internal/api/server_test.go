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

package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/hyperledger/firefly-common/pkg/fftypes"
	"github.com/hyperledger/leizu/internal/chaincode"
	chainmocks "github.com/hyperledger/leizu/internal/chain/mocks"
	"github.com/hyperledger/leizu/internal/errdefs"
	"github.com/hyperledger/leizu/internal/fabric"
	"github.com/hyperledger/leizu/internal/log"
	"github.com/hyperledger/leizu/internal/metrics"
	"github.com/hyperledger/leizu/internal/store"
	"github.com/hyperledger/leizu/internal/store/memory"
	"github.com/hyperledger/leizu/pkg/types"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockProvisioner struct {
	mock.Mock
}

func (m *mockProvisioner) Provision(ctx context.Context, req *types.NetworkRequest) (*types.ProvisioningRequest, error) {
	args := m.Called(ctx, req)
	pr, _ := args.Get(0).(*types.ProvisioningRequest)
	return pr, args.Error(1)
}

func (m *mockProvisioner) Request(ctx context.Context, id string) (*types.ProvisioningRequest, error) {
	args := m.Called(ctx, id)
	pr, _ := args.Get(0).(*types.ProvisioningRequest)
	return pr, args.Error(1)
}

func (m *mockProvisioner) AddOrganization(ctx context.Context, consortiumID string, spec *types.OrgSpec) (*types.Organization, error) {
	args := m.Called(ctx, consortiumID, spec)
	org, _ := args.Get(0).(*types.Organization)
	return org, args.Error(1)
}

func (m *mockProvisioner) AddPeers(ctx context.Context, orgID string, hosts []*types.HostSpec, channelID string) ([]*types.Node, error) {
	args := m.Called(ctx, orgID, hosts, channelID)
	nodes, _ := args.Get(0).([]*types.Node)
	return nodes, args.Error(1)
}

type testEnv struct {
	server      *Server
	handler     http.Handler
	provisioner *mockProvisioner
	store       *store.Store
	chain       *chainmocks.Client
	consortium  *types.Consortium
}

func setup(t *testing.T) *testEnv {
	s := store.New(memory.New())
	c := chainmocks.NewClient()
	m := metrics.New()
	p := &mockProvisioner{}
	base := logrus.New()
	base.SetOutput(io.Discard)

	consortium := &types.Consortium{ID: fftypes.NewUUID().String(), Name: "supply", Mode: types.RunModeBare, FabricVersion: "1.4"}
	require.NoError(t, s.Consortiums.Create(context.Background(), consortium))

	srv := New(&ServerConfig{ListenAddr: "127.0.0.1:0", GracefulShutdownDuration: time.Second}, &Deps{
		Provisioner: p,
		Services:    fabric.NewServices(&fabric.Deps{Store: s, Chain: c}),
		Store:       s,
		Chaincodes:  &chaincode.Manager{Store: s, Chain: c, Metrics: m},
		Metrics:     m,
		Logger:      log.NewLogrusLogger(base, logrus.Fields{"component": "api"}),
	})
	return &testEnv{server: srv, handler: srv.Router(), provisioner: p, store: s, chain: c, consortium: consortium}
}

func (e *testEnv) do(t *testing.T, method, path string, body interface{}) (int, *Envelope, json.RawMessage) {
	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = bytes.NewBufferString(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	rr := httptest.NewRecorder()
	e.handler.ServeHTTP(rr, req)

	var raw struct {
		Envelope
		Data json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &raw))
	env := raw.Envelope
	return rr.Code, &env, raw.Data
}

func TestHealthEndpoints(t *testing.T) {
	e := setup(t)

	rr := httptest.NewRecorder()
	e.handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/livez", nil))
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = httptest.NewRecorder()
	e.handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusOK, rr.Code)

	e.server.isReady.Store(false)
	rr = httptest.NewRecorder()
	e.handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)

	rr = httptest.NewRecorder()
	e.handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestProvisionRequest(t *testing.T) {
	e := setup(t)
	done := &types.ProvisioningRequest{ID: "r1", Name: "supply", Status: types.RequestStatusSuccess, ConsortiumID: e.consortium.ID}
	e.provisioner.On("Provision", mock.Anything, mock.MatchedBy(func(req *types.NetworkRequest) bool {
		return req.Name == "supply"
	})).Return(done, nil).Once()

	code, env, data := e.do(t, http.MethodPost, "/api/v1/requests", map[string]interface{}{"name": "supply", "version": "1.4"})
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, http.StatusOK, env.Code)
	assert.Equal(t, "success", env.Status)
	var pr types.ProvisioningRequest
	require.NoError(t, json.Unmarshal(data, &pr))
	assert.Equal(t, types.RequestStatusSuccess, pr.Status)
	e.provisioner.AssertExpectations(t)
}

func TestProvisionFailureKeepsRequest(t *testing.T) {
	e := setup(t)
	failed := &types.ProvisioningRequest{ID: "r2", Name: "supply", Status: types.RequestStatusError, Error: "orderer unreachable"}
	e.provisioner.On("Provision", mock.Anything, mock.Anything).Return(failed, errdefs.Unreachablef("orderer unreachable")).Once()

	code, env, data := e.do(t, http.MethodPost, "/api/v1/requests", map[string]interface{}{"name": "supply"})
	assert.Equal(t, http.StatusGatewayTimeout, code)
	assert.Equal(t, "error", env.Status)
	assert.Contains(t, env.Msg, "orderer unreachable")
	var pr types.ProvisioningRequest
	require.NoError(t, json.Unmarshal(data, &pr))
	assert.Equal(t, types.RequestStatusError, pr.Status)
}

func TestBadJSON(t *testing.T) {
	e := setup(t)
	code, env, _ := e.do(t, http.MethodPost, "/api/v1/requests", "{not json")
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, http.StatusBadRequest, env.Code)
	e.provisioner.AssertNotCalled(t, "Provision", mock.Anything, mock.Anything)
}

func TestGetRequest(t *testing.T) {
	e := setup(t)
	e.provisioner.On("Request", mock.Anything, "missing").Return(nil, errdefs.NotFoundf("request missing does not exist")).Once()
	e.provisioner.On("Request", mock.Anything, "r1").Return(&types.ProvisioningRequest{ID: "r1", Status: types.RequestStatusRunning}, nil).Once()

	code, _, _ := e.do(t, http.MethodGet, "/api/v1/requests/missing", nil)
	assert.Equal(t, http.StatusNotFound, code)
	code, _, data := e.do(t, http.MethodGet, "/api/v1/requests/r1", nil)
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, string(data), `"running"`)
}

func TestConsortiumQueries(t *testing.T) {
	e := setup(t)
	ctx := context.Background()
	org := &types.Organization{ID: fftypes.NewUUID().String(), ConsortiumID: e.consortium.ID, Name: "org1", MSPID: "Org1MSP", Type: types.NodeTypePeer}
	require.NoError(t, e.store.Organizations.Create(ctx, org))
	require.NoError(t, e.store.Channels.Create(ctx, &types.Channel{ID: fftypes.NewUUID().String(), ConsortiumID: e.consortium.ID, Name: "mychannel", Orgs: []string{org.ID}}))

	code, _, data := e.do(t, http.MethodGet, "/api/v1/consortiums", nil)
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, string(data), e.consortium.ID)

	code, _, _ = e.do(t, http.MethodGet, "/api/v1/consortiums/"+e.consortium.ID, nil)
	assert.Equal(t, http.StatusOK, code)
	code, _, _ = e.do(t, http.MethodGet, "/api/v1/consortiums/nope", nil)
	assert.Equal(t, http.StatusNotFound, code)

	code, _, data = e.do(t, http.MethodGet, fmt.Sprintf("/api/v1/consortiums/%s/organizations", e.consortium.ID), nil)
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, string(data), "Org1MSP")

	code, _, data = e.do(t, http.MethodGet, fmt.Sprintf("/api/v1/consortiums/%s/channels", e.consortium.ID), nil)
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, string(data), "mychannel")
}

func TestExtendConsortium(t *testing.T) {
	e := setup(t)
	org := &types.Organization{ID: "o3", Name: "org3"}
	e.provisioner.On("AddOrganization", mock.Anything, e.consortium.ID, mock.Anything).Return(org, nil).Once()
	e.provisioner.On("AddOrganization", mock.Anything, "other", mock.Anything).Return(nil, errdefs.Conflictf("organization org3 already exists")).Once()
	e.provisioner.On("AddPeers", mock.Anything, "o3", mock.Anything, "ch1").Return([]*types.Node{{ID: "p1"}}, nil).Once()

	body := map[string]interface{}{"name": "org3", "ca": map[string]string{"ip": "10.0.3.1"}}
	code, _, data := e.do(t, http.MethodPost, fmt.Sprintf("/api/v1/consortiums/%s/organizations", e.consortium.ID), body)
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, string(data), "org3")

	code, _, _ = e.do(t, http.MethodPost, "/api/v1/consortiums/other/organizations", body)
	assert.Equal(t, http.StatusConflict, code)

	code, _, _ = e.do(t, http.MethodPost, "/api/v1/organizations/o3/peers", &AddPeersRequest{
		Hosts:     []*types.HostSpec{{IP: "10.0.3.2"}},
		ChannelID: "ch1",
	})
	assert.Equal(t, http.StatusOK, code)
	e.provisioner.AssertExpectations(t)
}

func TestChaincodeLifecycle(t *testing.T) {
	e := setup(t)
	ctx := context.Background()
	org := &types.Organization{ID: fftypes.NewUUID().String(), ConsortiumID: e.consortium.ID, Name: "org1", MSPID: "Org1MSP", Type: types.NodeTypePeer, DomainName: "org1.supply.example.com"}
	require.NoError(t, e.store.Organizations.Create(ctx, org))
	ord := &types.Organization{ID: fftypes.NewUUID().String(), ConsortiumID: e.consortium.ID, Name: "ord", MSPID: "OrdMSP", Type: types.NodeTypeOrderer}
	require.NoError(t, e.store.Organizations.Create(ctx, ord))
	require.NoError(t, e.store.Nodes.Create(ctx, &types.Node{ID: fftypes.NewUUID().String(), ConsortiumID: e.consortium.ID, OrganizationID: ord.ID, Name: "orderer-10-0-0-2", Type: types.NodeTypeOrderer, Location: "10.0.0.2:7050"}))
	peer := &types.Node{ID: fftypes.NewUUID().String(), ConsortiumID: e.consortium.ID, OrganizationID: org.ID, Name: "peer-10-0-1-2", Type: types.NodeTypePeer, Location: "10.0.1.2:7051"}
	require.NoError(t, e.store.Nodes.Create(ctx, peer))
	channel := &types.Channel{ID: fftypes.NewUUID().String(), ConsortiumID: e.consortium.ID, Name: "mychannel", Orgs: []string{org.ID}, Peers: []string{peer.ID}}
	require.NoError(t, e.store.Channels.Create(ctx, channel))

	code, _, data := e.do(t, http.MethodPost, "/api/v1/chaincodes", &chaincode.UploadRequest{ConsortiumID: e.consortium.ID, Name: "mycc", Version: "1.0", Path: "github.com/example/mycc"})
	require.Equal(t, http.StatusOK, code)
	var cc types.Chaincode
	require.NoError(t, json.Unmarshal(data, &cc))

	code, _, data = e.do(t, http.MethodPost, "/api/v1/chaincodes/"+cc.ID+"/install", &InstallRequest{PeerIDs: []string{peer.ID}})
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, string(data), "installed mycc:1.0")

	code, _, _ = e.do(t, http.MethodPost, "/api/v1/chaincodes/"+cc.ID+"/deploy", map[string]interface{}{"channelIds": []string{}})
	assert.Equal(t, http.StatusBadRequest, code)

	code, env, _ := e.do(t, http.MethodPost, "/api/v1/chaincodes/"+cc.ID+"/deploy", &chaincode.DeployRequest{
		ChannelIDs: []string{channel.ID},
		Function:   "init",
		Args:       []string{"a", "100"},
		Op:         types.ChaincodeOpInstantiate,
		PolicyType: types.PolicyMajority,
	})
	assert.Equal(t, http.StatusOK, code, env.Msg)

	code, _, data = e.do(t, http.MethodPost, "/api/v1/chaincodes/"+cc.ID+"/invoke", &TransactionRequest{ChannelID: channel.ID, Function: "move", Args: []string{"a", "b", "10"}})
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, string(data), "tx1")

	code, _, data = e.do(t, http.MethodPost, "/api/v1/chaincodes/"+cc.ID+"/query", &TransactionRequest{ChannelID: channel.ID, Function: "query", Args: []string{"a"}})
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, string(data), "100")

	code, _, data = e.do(t, http.MethodGet, "/api/v1/chaincodes/"+cc.ID+"/records", nil)
	assert.Equal(t, http.StatusOK, code)
	var records []*types.ChaincodeRecord
	require.NoError(t, json.Unmarshal(data, &records))
	assert.Len(t, records, 2)

	code, _, data = e.do(t, http.MethodGet, fmt.Sprintf("/api/v1/consortiums/%s/chaincodes", e.consortium.ID), nil)
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, string(data), cc.ID)
}

func TestDeployFailureReturnsResults(t *testing.T) {
	e := setup(t)
	code, env, data := e.do(t, http.MethodPost, "/api/v1/chaincodes/missing/deploy", &chaincode.DeployRequest{ChannelIDs: []string{"ch1"}, Op: types.ChaincodeOpInstantiate, PolicyType: types.PolicyMajority})
	assert.Equal(t, http.StatusInternalServerError, code)
	assert.Equal(t, "error", env.Status)
	var results []*chaincode.Result
	require.NoError(t, json.Unmarshal(data, &results))
	require.Len(t, results, 1)
	assert.False(t, results[0].Success)
	assert.Equal(t, "ch1", results[0].Target)
}
