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
	"os"
	"path/filepath"
	"testing"

	"github.com/hyperledger/leizu/internal/constants"
	"github.com/hyperledger/leizu/internal/errdefs"
	"github.com/hyperledger/leizu/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

var (
	testOrdererOrg = &types.Organization{Name: "ord", MSPID: "OrdMSP", DomainName: "ord.supply.example.com"}
	testPeerOrg    = &types.Organization{Name: "org1", MSPID: "Org1MSP", DomainName: "org1.supply.example.com"}
)

func genesisOptions(tls bool) *GenesisOptions {
	return &GenesisOptions{
		ConsortiumName: "supply",
		Version:        "1.4",
		Consensus:      types.ConsensusSolo,
		TLSEnabled:     tls,
		OrdererOrg:     testOrdererOrg,
		Orderers: []*OrdererEndpoint{
			{Name: "orderer-10-0-0-1", IP: "10.0.0.1", Port: 7050},
			{Name: "orderer-10-0-0-2", IP: "10.0.0.2", Port: 7050},
		},
		PeerOrgs: []*OrgProfile{{Org: testPeerOrg, AnchorPeers: []*AnchorPeer{{Host: "10.0.1.1", Port: 7051}}}},
	}
}

func TestGenesisProfileAddresses(t *testing.T) {
	for _, tc := range []struct {
		name      string
		tls       bool
		addresses []string
	}{
		{"plain", false, []string{"10.0.0.1:7050", "10.0.0.2:7050"}},
		{"tls", true, []string{"orderer-10-0-0-1.ord.supply.example.com:7050", "orderer-10-0-0-2.ord.supply.example.com:7050"}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			c, err := BuildGenesisProfile(genesisOptions(tc.tls))
			require.NoError(t, err)
			p := c.Profiles[constants.GenesisProfile]
			assert.Equal(t, tc.addresses, p.Orderer.Addresses)
			assert.Equal(t, "solo", p.Orderer.OrdererType)
			assert.Equal(t, "2s", p.Orderer.BatchTimeout)
			assert.Equal(t, 10, p.Orderer.BatchSize.MaxMessageCount)
			assert.Nil(t, p.Orderer.EtcdRaft)
			assert.Equal(t, "Org1MSP", p.Consortiums["supply"].Organizations[0].ID)
			assert.Equal(t, filepath.Join("org1", "msp"), p.Consortiums["supply"].Organizations[0].MSPDir)
		})
	}
}

func TestGenesisProfileRaft(t *testing.T) {
	o := genesisOptions(false)
	o.Consensus = types.ConsensusEtcdRaft
	c, err := BuildGenesisProfile(o)
	require.NoError(t, err)
	raft := c.Profiles[constants.GenesisProfile].Orderer.EtcdRaft
	require.NotNil(t, raft)
	require.Len(t, raft.Consenters, 2)
	assert.Equal(t, "orderer-10-0-0-1.ord.supply.example.com", raft.Consenters[0].Host)
	assert.Equal(t, filepath.Join("ord", "peers", "orderer-10-0-0-1", "tls", "server.crt"), raft.Consenters[0].ClientTLSCert)
	assert.Equal(t, "500ms", raft.Options.TickInterval)
	assert.Equal(t, "20 MB", raft.Options.SnapshotIntervalSize)
}

func TestGenesisProfileKafka(t *testing.T) {
	o := genesisOptions(false)
	o.Consensus = types.ConsensusKafka
	_, err := BuildGenesisProfile(o)
	assert.ErrorIs(t, err, errdefs.ErrInvalid)

	o.KafkaBrokers = []string{"10.0.2.1:9092"}
	c, err := BuildGenesisProfile(o)
	require.NoError(t, err)
	assert.Equal(t, []string{"10.0.2.1:9092"}, c.Profiles[constants.GenesisProfile].Orderer.Kafka.Brokers)

	o.Orderers = nil
	_, err = BuildGenesisProfile(o)
	assert.ErrorIs(t, err, errdefs.ErrInvalid)
}

func TestChannelProfile(t *testing.T) {
	org2 := &types.Organization{Name: "org2", MSPID: "Org2MSP"}
	c := BuildChannelProfile("supply", "1.3", "Org1MSP", []*OrgProfile{{Org: testPeerOrg}, {Org: org2}})
	p := c.Profiles[constants.ChannelProfile]
	assert.Equal(t, "supply", p.Consortium)
	assert.Equal(t, &Policy{Type: "Signature", Rule: "OR('Org1MSP.admin')"}, p.Application.Policies["Admins"])
	assert.Equal(t, &Policy{Type: "ImplicitMeta", Rule: "ANY Readers"}, p.Application.Policies["Writers"])
	assert.Equal(t, map[string]bool{"V1_3": true, "V1_2": false, "V1_1": false}, p.Application.Capabilities)
	assert.Len(t, p.Application.Organizations, 2)
	assert.Nil(t, p.Application.Organizations[1].AnchorPeers)
}

func TestCapabilities(t *testing.T) {
	assert.Equal(t, map[string]bool{"V1_1": true}, Capabilities("1.2", "Orderer"))
	assert.Equal(t, map[string]bool{"V1_4_3": true, "V1_3": false, "V1_1": false}, Capabilities("1.4", "Channel"))
	assert.Nil(t, Capabilities("2.0", "Channel"))
}

func TestStage(t *testing.T) {
	src := t.TempDir()
	for _, p := range []string{
		filepath.Join("org1", "msp", "cacerts", "ca-cert.pem"),
		filepath.Join("org1", "peers", "peer0", "msp", "ignored.pem"),
	} {
		require.NoError(t, os.MkdirAll(filepath.Dir(filepath.Join(src, p)), 0755))
		require.NoError(t, os.WriteFile(filepath.Join(src, p), []byte("pem"), 0644))
	}
	dir := filepath.Join(src, "configtx", "mychannel")
	c := BuildChannelProfile("supply", "1.4", "Org1MSP", []*OrgProfile{{Org: testPeerOrg}})
	require.NoError(t, c.Stage(src, dir))

	_, err := os.Stat(filepath.Join(dir, "org1", "msp", "cacerts", "ca-cert.pem"))
	assert.NoError(t, err)
	_, err = os.Stat(filepath.Join(dir, "org1", "peers"))
	assert.True(t, os.IsNotExist(err))

	b, err := os.ReadFile(filepath.Join(dir, constants.ConfigTxFile))
	require.NoError(t, err)
	var parsed ConfigTx
	require.NoError(t, yaml.Unmarshal(b, &parsed))
	assert.Equal(t, "Org1MSP", parsed.Profiles[constants.ChannelProfile].Application.Organizations[0].ID)

	missing := BuildChannelProfile("supply", "1.4", "Org2MSP", []*OrgProfile{{Org: &types.Organization{Name: "org2", MSPID: "Org2MSP"}}})
	assert.True(t, errdefs.IsNotFound(missing.Stage(src, dir)))
}
