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

package fabric_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hyperledger/leizu/internal/constants"
	"github.com/hyperledger/leizu/internal/errdefs"
	"github.com/hyperledger/leizu/internal/fabric"
	"github.com/hyperledger/leizu/internal/fabric/fabrictest"
	"github.com/hyperledger/leizu/pkg/types"
	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateOrganization(t *testing.T) {
	h := fabrictest.New(t)
	ctx := context.Background()
	c := h.Consortium(t, "Supply", types.ConsensusSolo)

	org := h.Org(t, c.ID, "org1", types.NodeTypePeer, "10.0.0.1")
	assert.Equal(t, "org1.supply.example.com", org.DomainName)
	assert.Equal(t, "Org1MSP", org.MSPID)
	assert.NotEmpty(t, org.AdminCert)
	assert.Equal(t, h.Authorities.Get("http://10.0.0.1:7054", "ca-org1").RootPEM, org.RootCert)
	_, err := os.Stat(org.CredentialsPath + ".zip")
	assert.NoError(t, err)

	ca, err := h.Store.CertAuthorities.FindByOrganization(ctx, org.ID)
	require.NoError(t, err)
	assert.Equal(t, "ca-org1", ca.Name)
	assert.Equal(t, "http://10.0.0.1:7054", ca.URL)
	assert.Equal(t, []string{"ca-org1"}, h.Dialer.Get("10.0.0.1").ContainerNames())
}

func TestCreateOrganizationDuplicate(t *testing.T) {
	h := fabrictest.New(t)
	ctx := context.Background()
	c := h.Consortium(t, "supply", types.ConsensusSolo)
	h.Org(t, c.ID, "org1", types.NodeTypePeer, "10.0.0.1")

	_, err := h.Services.Organizations.Create(ctx, &fabric.CreateOrganizationRequest{
		ConsortiumID: c.ID,
		Name:         "org1",
		CA:           &types.HostSpec{IP: "10.0.0.2"},
	})
	assert.True(t, errdefs.IsConflict(err))
	orgs, err := h.Store.Organizations.ListByConsortium(ctx, c.ID)
	require.NoError(t, err)
	assert.Len(t, orgs, 1)
	assert.Empty(t, h.Dialer.Get("10.0.0.2").ContainerNames())
}

func TestDeleteOrganizationWithNodes(t *testing.T) {
	h := fabrictest.New(t)
	ctx := context.Background()
	c := h.Consortium(t, "supply", types.ConsensusSolo)
	org := h.Org(t, c.ID, "org1", types.NodeTypePeer, "10.0.0.1")
	h.Peer(t, org.ID, "10.0.0.2")

	err := h.Services.Organizations.Delete(ctx, org.ID)
	assert.True(t, errdefs.IsConflict(err))

	empty := h.Org(t, c.ID, "org2", types.NodeTypePeer, "10.0.0.3")
	require.NoError(t, h.Services.Organizations.Delete(ctx, empty.ID))
	_, err = h.Store.CertAuthorities.FindByOrganization(ctx, empty.ID)
	assert.True(t, errdefs.IsNotFound(err))
}

func TestCreatePeer(t *testing.T) {
	h := fabrictest.New(t)
	c := h.Consortium(t, "supply", types.ConsensusSolo)
	org := h.Org(t, c.ID, "org1", types.NodeTypePeer, "10.0.0.1")

	peer := h.Peer(t, org.ID, "10.0.0.2")
	assert.Equal(t, "peer-10-0-0-2", peer.Name)
	assert.Equal(t, "10.0.0.2:7051", peer.Location)
	assert.Equal(t, types.NodeTypePeer, peer.Type)
	assert.NotEmpty(t, peer.TLSCert)
	assert.Contains(t, h.Waited(), "10.0.0.2:7051")

	g := h.Dialer.Get("10.0.0.2")
	assert.Equal(t, []string{constants.DefaultNetworkName}, g.Networks)
	assert.Equal(t, []string{"peer-10-0-0-2.org1.supply.example.com"}, g.ContainerNames())
	require.Len(t, g.Transfers, 1)
	assert.True(t, strings.HasSuffix(g.Transfers[0].Local, "peer-10-0-0-2.zip"))
	assert.Equal(t, filepath.Join(h.Config.FabricHostPath(), c.ID, "org1", "peers", "peer-10-0-0-2")+".zip", g.Transfers[0].Remote)
	require.Len(t, g.Execs, 1)
	assert.Contains(t, g.Execs[0], "unzip -o")
}

func TestCreatePeerInOrdererOrg(t *testing.T) {
	h := fabrictest.New(t)
	c := h.Consortium(t, "supply", types.ConsensusSolo)
	org := h.Org(t, c.ID, "ord", types.NodeTypeOrderer, "10.0.0.1")

	_, err := h.Services.Peers.Create(context.Background(), &fabric.CreatePeerRequest{
		OrganizationID: org.ID,
		Host:           &types.HostSpec{IP: "10.0.0.2"},
	})
	assert.True(t, errdefs.IsConflict(err))
	assert.Empty(t, h.Dialer.Get("10.0.0.2").Containers)
}

func TestPeersResolveExistingNodes(t *testing.T) {
	h := fabrictest.New(t)
	c := h.Consortium(t, "supply", types.ConsensusSolo)
	org := h.Org(t, c.ID, "org1", types.NodeTypePeer, "10.0.0.1")
	h.Peer(t, org.ID, "10.0.0.2")
	_, err := h.Services.Peers.Create(context.Background(), &fabric.CreatePeerRequest{
		OrganizationID: org.ID,
		Host:           &types.HostSpec{IP: "10.0.0.3"},
		ExtraHosts:     []string{"orderer-10-0-0-9.ord.supply.example.com:10.0.0.9"},
	})
	require.NoError(t, err)
	svc := h.Dialer.Get("10.0.0.3").Containers[0]
	assert.Equal(t, []string{
		"orderer-10-0-0-9.ord.supply.example.com:10.0.0.9",
		"peer-10-0-0-2.org1.supply.example.com:10.0.0.2",
	}, svc.ExtraHosts)
}

func TestRaftOrderer(t *testing.T) {
	h := fabrictest.New(t)
	ctx := context.Background()
	c := h.Consortium(t, "supply", types.ConsensusEtcdRaft)
	ord := h.Org(t, c.ID, "ord", types.NodeTypeOrderer, "10.0.0.1")
	org1 := h.Org(t, c.ID, "org1", types.NodeTypePeer, "10.0.0.2")
	h.Peer(t, org1.ID, "10.0.0.3")

	node := h.Orderer(t, ord.ID, "10.0.0.4", org1.ID)
	assert.Equal(t, "10.0.0.4:7050", node.Location)
	assert.Equal(t, types.NodeTypeOrderer, node.Type)

	require.Len(t, h.Genesis.Requests, 1)
	req := h.Genesis.Requests[0]
	assert.Equal(t, constants.GenesisProfile, req.Profile)
	assert.Equal(t, constants.SystemChannel, req.ChannelID)
	assert.Equal(t, "hyperledger/fabric-tools:1.4.9", req.ToolsImage)
	configtx := h.Genesis.ConfigTx[0]
	assert.Contains(t, configtx, "Host: orderer-10-0-0-4.ord.supply.example.com")
	assert.Contains(t, configtx, "ord/peers/orderer-10-0-0-4/tls/server.crt")
	assert.Contains(t, configtx, "Host: 10.0.0.3")

	block, err := os.ReadFile(filepath.Join(ord.CredentialsPath, constants.GenesisBlockFile))
	require.NoError(t, err)
	assert.Equal(t, "block:OrdererGenesis:systemchainid", string(block))

	g := h.Dialer.Get("10.0.0.4")
	remotes := []string{}
	for _, tr := range g.Transfers {
		remotes = append(remotes, filepath.Base(tr.Remote))
	}
	assert.Equal(t, []string{"orderer-10-0-0-4.zip", constants.GenesisBlockFile, "ca0.crt"}, remotes)
	svc := g.Containers[0]
	assert.Contains(t, svc.Environment["ORDERER_GENERAL_TLS_ROOTCAS"], "tlsrootcas/ca0.crt")

	_, err = h.Services.Orderers.Prepare(ctx, org1.ID, &types.HostSpec{IP: "10.0.0.5"})
	assert.True(t, errdefs.IsConflict(err))
}

func TestKafkaGenesisNeedsBrokers(t *testing.T) {
	h := fabrictest.New(t)
	ctx := context.Background()
	c := h.Consortium(t, "supply", types.ConsensusKafka)
	ord := h.Org(t, c.ID, "ord", types.NodeTypeOrderer, "10.0.0.1")
	n, err := h.Services.Orderers.Prepare(ctx, ord.ID, &types.HostSpec{IP: "10.0.0.4"})
	require.NoError(t, err)

	_, err = h.Services.Orderers.GenerateGenesis(ctx, &fabric.GenerateGenesisRequest{
		OrdererOrgID: ord.ID,
		Orderers:     []*fabric.PreparedNode{n},
	})
	assert.ErrorIs(t, err, errdefs.ErrInvalid)
	assert.Empty(t, h.Genesis.Requests)
}

func TestProvisionKafka(t *testing.T) {
	h := fabrictest.New(t)
	c := h.Consortium(t, "supply", types.ConsensusKafka)
	brokers, err := h.Services.Kafka.Provision(context.Background(), c.ID,
		[]*types.HostSpec{{IP: "10.0.1.1"}, {IP: "10.0.1.2"}},
		[]*types.HostSpec{{IP: "10.0.2.1"}},
	)
	require.NoError(t, err)
	assert.Equal(t, []string{"10.0.1.1:9092", "10.0.1.2:9092"}, brokers)
	assert.Equal(t, []string{"zookeeper0"}, h.Dialer.Get("10.0.2.1").ContainerNames())
	assert.Equal(t, []string{"kafka1"}, h.Dialer.Get("10.0.1.2").ContainerNames())
	assert.ElementsMatch(t, []string{"10.0.2.1:2181", "10.0.1.1:9092", "10.0.1.2:9092"}, h.Waited())

	_, err = h.Services.Kafka.Provision(context.Background(), c.ID, nil, nil)
	assert.ErrorIs(t, err, errdefs.ErrInvalid)
}

func channelFixture(t *testing.T) (*fabrictest.Harness, *types.Consortium, *types.Organization, *types.Organization) {
	h := fabrictest.New(t)
	c := h.Consortium(t, "supply", types.ConsensusSolo)
	ord := h.Org(t, c.ID, "ord", types.NodeTypeOrderer, "10.0.0.1")
	org1 := h.Org(t, c.ID, "org1", types.NodeTypePeer, "10.0.0.2")
	org2 := h.Org(t, c.ID, "org2", types.NodeTypePeer, "10.0.0.3")
	h.Peer(t, org1.ID, "10.0.1.1")
	h.Peer(t, org1.ID, "10.0.1.2")
	h.Orderer(t, ord.ID, "10.0.0.4", org1.ID)
	return h, c, org1, org2
}

func TestCreateAndJoinChannel(t *testing.T) {
	h, c, org1, org2 := channelFixture(t)
	ctx := context.Background()

	_, err := h.Services.Channels.Create(ctx, c.ID, "mychannel", []string{org1.ID, org2.ID})
	assert.ErrorIs(t, err, errdefs.ErrInvalid, "org2 has no peers")
	assert.Empty(t, h.Chain.CallsFor("CreateChannel"))

	channel, err := h.Services.Channels.Create(ctx, c.ID, "mychannel", []string{org1.ID})
	require.NoError(t, err)
	assert.Equal(t, []string{org1.ID}, channel.Orgs)
	assert.Empty(t, channel.Peers)
	calls := h.Chain.CallsFor("CreateChannel")
	require.Len(t, calls, 1)
	assert.Equal(t, "Org1MSP", calls[0].MSPID)
	_, err = os.Stat(filepath.Join(h.Config.CryptoPath, c.ID, "configtx", "mychannel", constants.ConfigTxFile))
	assert.NoError(t, err)

	_, err = h.Services.Channels.Create(ctx, c.ID, "mychannel", []string{org1.ID})
	assert.True(t, errdefs.IsConflict(err))

	channel, err = h.Services.Channels.Join(ctx, channel.ID, org1.ID)
	require.NoError(t, err)
	assert.Len(t, channel.Peers, 2)
	joins := h.Chain.CallsFor("JoinChannel")
	require.Len(t, joins, 1)
	assert.Equal(t, []string{
		"peer-10-0-1-1.org1.supply.example.com",
		"peer-10-0-1-2.org1.supply.example.com",
	}, joins[0].Peers)

	_, err = h.Services.Channels.Join(ctx, channel.ID, org2.ID)
	assert.ErrorIs(t, err, errdefs.ErrInvalid)
}

func TestJoinSkipsJoinedPeers(t *testing.T) {
	h, c, org1, _ := channelFixture(t)
	ctx := context.Background()
	channel, err := h.Services.Channels.Create(ctx, c.ID, "mychannel", []string{org1.ID})
	require.NoError(t, err)
	_, err = h.Services.Channels.Join(ctx, channel.ID, org1.ID)
	require.NoError(t, err)

	// nothing new to join
	channel, err = h.Services.Channels.Join(ctx, channel.ID, org1.ID)
	require.NoError(t, err)
	assert.Len(t, channel.Peers, 2)
	assert.Len(t, h.Chain.CallsFor("JoinChannel"), 1)

	added := h.Peer(t, org1.ID, "10.0.1.3")
	channel, err = h.Services.Channels.Join(ctx, channel.ID, org1.ID)
	require.NoError(t, err)
	assert.Len(t, channel.Peers, 3)
	assert.True(t, channel.HasPeer(added.ID))
	joins := h.Chain.CallsFor("JoinChannel")
	require.Len(t, joins, 2)
	assert.Equal(t, []string{"peer-10-0-1-3.org1.supply.example.com"}, joins[1].Peers)
}

func TestAddOrganizationToChannel(t *testing.T) {
	h, c, org1, org2 := channelFixture(t)
	ctx := context.Background()
	channel, err := h.Services.Channels.Create(ctx, c.ID, "mychannel", []string{org1.ID})
	require.NoError(t, err)

	_, err = h.Services.Channels.AddOrganization(ctx, channel.ID, org1.ID)
	assert.True(t, errdefs.IsConflict(err))

	peer := h.Peer(t, org2.ID, "10.0.2.1")
	channel, err = h.Services.Channels.AddOrganization(ctx, channel.ID, org2.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{org1.ID, org2.ID}, channel.Orgs)
	assert.Equal(t, []string{peer.ID}, channel.Peers)
	updates := h.Chain.CallsFor("UpdateChannelConfig")
	require.Len(t, updates, 1)
	assert.Equal(t, "Org2MSP", updates[0].MSPID)
}

func TestSidecarRegistersNodes(t *testing.T) {
	h := fabrictest.New(t)
	h.Config.Sidecar.ConsulServer = "10.0.9.9"
	c := h.Consortium(t, "supply", types.ConsensusSolo)
	org := h.Org(t, c.ID, "org1", types.NodeTypePeer, "10.0.0.1")
	h.Peer(t, org.ID, "10.0.0.2")

	httpmock.RegisterResponder("GET", "http://10.0.0.2:8500/v1/agent/self",
		httpmock.NewStringResponder(200, `{"Config":{"Datacenter":"dc1","NodeName":"host-2"}}`))
	registered := []string{}
	httpmock.RegisterResponder("PUT", "http://10.0.0.2:8500/v1/catalog/register",
		func(req *http.Request) (*http.Response, error) {
			var body map[string]interface{}
			if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
				return nil, err
			}
			assert.Equal(t, "dc1", body["Datacenter"])
			assert.Equal(t, "host-2", body["Node"])
			svc := body["Service"].(map[string]interface{})
			registered = append(registered, fmt.Sprintf("%s:%v", svc["Service"], svc["Port"]))
			return httpmock.NewStringResponse(200, "true"), nil
		})

	err := h.Services.Sidecars.Provision(context.Background(), c.ID, &types.HostSpec{IP: "10.0.0.2"})
	require.NoError(t, err)
	assert.Equal(t, []string{"cadvisor:8081", "peer:9443"}, registered)
	names := h.Dialer.Get("10.0.0.2").ContainerNames()
	assert.Contains(t, names, "cadvisor")
	assert.Contains(t, names, "consul-client")
}

func TestSidecarWithoutConsul(t *testing.T) {
	h := fabrictest.New(t)
	c := h.Consortium(t, "supply", types.ConsensusSolo)
	err := h.Services.Sidecars.Provision(context.Background(), c.ID, &types.HostSpec{IP: "10.0.0.2"})
	require.NoError(t, err)
	assert.Equal(t, []string{"cadvisor"}, h.Dialer.Get("10.0.0.2").ContainerNames())
	for call, n := range httpmock.GetCallCountInfo() {
		if strings.Contains(call, ":8500") {
			assert.Zero(t, n, call)
		}
	}
}
