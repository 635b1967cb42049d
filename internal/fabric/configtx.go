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
	"fmt"
	"os"
	"path/filepath"

	"github.com/hyperledger/firefly-common/pkg/fftypes"
	"github.com/hyperledger/leizu/internal/constants"
	"github.com/hyperledger/leizu/internal/errdefs"
	"github.com/hyperledger/leizu/pkg/types"
	"github.com/otiai10/copy"
	"gopkg.in/yaml.v3"
)

type Policy struct {
	Type string `yaml:"Type"`
	Rule string `yaml:"Rule"`
}

type AnchorPeer struct {
	Host string `yaml:"Host"`
	Port int    `yaml:"Port"`
}

type Organization struct {
	Name        string        `yaml:"Name"`
	ID          string        `yaml:"ID"`
	MSPDir      string        `yaml:"MSPDir"`
	AnchorPeers []*AnchorPeer `yaml:"AnchorPeers,omitempty"`
}

type BatchSize struct {
	MaxMessageCount   int    `yaml:"MaxMessageCount"`
	AbsoluteMaxBytes  string `yaml:"AbsoluteMaxBytes"`
	PreferredMaxBytes string `yaml:"PreferredMaxBytes"`
}

type Kafka struct {
	Brokers []string `yaml:"Brokers"`
}

type Consenter struct {
	Host          string `yaml:"Host"`
	Port          int    `yaml:"Port"`
	ClientTLSCert string `yaml:"ClientTLSCert"`
	ServerTLSCert string `yaml:"ServerTLSCert"`
}

type RaftOptions struct {
	TickInterval         string `yaml:"TickInterval"`
	ElectionTick         int    `yaml:"ElectionTick"`
	HeartbeatTick        int    `yaml:"HeartbeatTick"`
	MaxInflightBlocks    int    `yaml:"MaxInflightBlocks"`
	SnapshotIntervalSize string `yaml:"SnapshotIntervalSize"`
}

type EtcdRaft struct {
	Consenters []*Consenter  `yaml:"Consenters"`
	Options    *RaftOptions `yaml:"Options,omitempty"`
}

type Orderer struct {
	OrdererType   string             `yaml:"OrdererType"`
	Addresses     []string           `yaml:"Addresses"`
	Kafka         *Kafka             `yaml:"Kafka,omitempty"`
	EtcdRaft      *EtcdRaft          `yaml:"EtcdRaft,omitempty"`
	BatchTimeout  string             `yaml:"BatchTimeout"`
	BatchSize     *BatchSize         `yaml:"BatchSize"`
	Organizations []*Organization    `yaml:"Organizations"`
	Policies      map[string]*Policy `yaml:"Policies,omitempty"`
	Capabilities  map[string]bool    `yaml:"Capabilities,omitempty"`
}

type Application struct {
	Organizations []*Organization    `yaml:"Organizations"`
	Policies      map[string]*Policy `yaml:"Policies,omitempty"`
	Capabilities  map[string]bool    `yaml:"Capabilities,omitempty"`
}

type Consortium struct {
	Organizations []*Organization `yaml:"Organizations"`
}

type Profile struct {
	Policies     map[string]*Policy     `yaml:"Policies,omitempty"`
	Capabilities map[string]bool        `yaml:"Capabilities,omitempty"`
	Orderer      *Orderer               `yaml:"Orderer,omitempty"`
	Consortiums  map[string]*Consortium `yaml:"Consortiums,omitempty"`
	Consortium   string                 `yaml:"Consortium,omitempty"`
	Application  *Application           `yaml:"Application,omitempty"`
}

// ConfigTx is the subset of configtx.yaml that configtxgen needs to render a
// profile. Paths inside it are relative to the file.
type ConfigTx struct {
	Profiles map[string]*Profile `yaml:"Profiles"`
}

var defaultBatchSize = BatchSize{
	MaxMessageCount:   10,
	AbsoluteMaxBytes:  "99 MB",
	PreferredMaxBytes: "512 KB",
}

const defaultBatchTimeout = "2s"

var defaultRaftOptions = RaftOptions{
	TickInterval:         "500ms",
	ElectionTick:         10,
	HeartbeatTick:        1,
	MaxInflightBlocks:    5,
	SnapshotIntervalSize: "20 MB",
}

func defaultPolicies() map[string]*Policy {
	return map[string]*Policy{
		"Readers": {Type: "ImplicitMeta", Rule: "ANY Readers"},
		"Writers": {Type: "ImplicitMeta", Rule: "ANY Readers"},
		"Admins":  {Type: "ImplicitMeta", Rule: "ANY Readers"},
	}
}

// Capabilities returns the capability flags of a config section ("Channel",
// "Orderer" or "Application") for a fabric release.
func Capabilities(version, section string) map[string]bool {
	switch version {
	case "1.2":
		switch section {
		case "Channel", "Orderer":
			return map[string]bool{"V1_1": true}
		case "Application":
			return map[string]bool{"V1_2": true, "V1_1": false}
		}
	case "1.3":
		switch section {
		case "Channel":
			return map[string]bool{"V1_3": true}
		case "Orderer":
			return map[string]bool{"V1_1": true}
		case "Application":
			return map[string]bool{"V1_3": true, "V1_2": false, "V1_1": false}
		}
	case "1.4":
		switch section {
		case "Channel":
			return map[string]bool{"V1_4_3": true, "V1_3": false, "V1_1": false}
		case "Orderer":
			return map[string]bool{"V1_4_2": true, "V1_1": false}
		case "Application":
			return map[string]bool{"V1_4_2": true, "V1_3": false, "V1_2": false, "V1_1": false}
		}
	}
	return nil
}

// MSPDir is where the MSP of an organization sits relative to a staged
// configtx.yaml.
func MSPDir(orgName string) string {
	return filepath.Join(orgName, "msp")
}

// ConsenterTLSCert is the relative path of the server certificate of an
// orderer node.
func ConsenterTLSCert(ordererOrgName, nodeName string) string {
	return filepath.Join(ordererOrgName, "peers", nodeName, "tls", "server.crt")
}

// OrgProfile is a peer organization with the anchor peers it announces.
type OrgProfile struct {
	Org         *types.Organization
	AnchorPeers []*AnchorPeer
}

func (p *OrgProfile) section() *Organization {
	o := &Organization{Name: p.Org.Name, ID: p.Org.MSPID, MSPDir: MSPDir(p.Org.Name)}
	if len(p.AnchorPeers) > 0 {
		o.AnchorPeers = p.AnchorPeers
	}
	return o
}

// OrdererEndpoint is one orderer node taking part in the genesis block.
type OrdererEndpoint struct {
	Name string
	IP   string
	Port int
}

type GenesisOptions struct {
	ConsortiumName string
	Version        string
	Consensus      fftypes.FFEnum
	TLSEnabled     bool
	OrdererOrg     *types.Organization
	Orderers       []*OrdererEndpoint
	KafkaBrokers   []string
	PeerOrgs       []*OrgProfile
}

// BuildGenesisProfile renders the system channel profile. Orderer addresses
// use host names when TLS is on and raw IPs otherwise; raft consenters always
// use host names.
func BuildGenesisProfile(o *GenesisOptions) (*ConfigTx, error) {
	if len(o.Orderers) == 0 {
		return nil, errdefs.Invalidf("orderer organization %s has no orderer nodes", o.OrdererOrg.Name)
	}
	orderer := &Orderer{
		OrdererType:  o.Consensus.String(),
		Addresses:    []string{},
		BatchTimeout: defaultBatchTimeout,
		BatchSize:    &BatchSize{},
		Organizations: []*Organization{{
			Name:   o.OrdererOrg.Name,
			ID:     o.OrdererOrg.MSPID,
			MSPDir: MSPDir(o.OrdererOrg.Name),
		}},
		Capabilities: Capabilities(o.Version, "Orderer"),
	}
	*orderer.BatchSize = defaultBatchSize
	for _, node := range o.Orderers {
		if o.TLSEnabled {
			orderer.Addresses = append(orderer.Addresses, fmt.Sprintf("%s:%d", types.EnrollmentID(node.Name, o.OrdererOrg.DomainName), node.Port))
		} else {
			orderer.Addresses = append(orderer.Addresses, fmt.Sprintf("%s:%d", node.IP, node.Port))
		}
	}
	switch o.Consensus {
	case types.ConsensusKafka:
		if len(o.KafkaBrokers) == 0 {
			return nil, errdefs.Invalidf("kafka consensus requires at least one kafka broker")
		}
		orderer.Kafka = &Kafka{Brokers: o.KafkaBrokers}
	case types.ConsensusEtcdRaft:
		options := defaultRaftOptions
		raft := &EtcdRaft{Options: &options}
		for _, node := range o.Orderers {
			cert := ConsenterTLSCert(o.OrdererOrg.Name, node.Name)
			raft.Consenters = append(raft.Consenters, &Consenter{
				Host:          types.EnrollmentID(node.Name, o.OrdererOrg.DomainName),
				Port:          node.Port,
				ClientTLSCert: cert,
				ServerTLSCert: cert,
			})
		}
		orderer.EtcdRaft = raft
	}
	members := make([]*Organization, 0, len(o.PeerOrgs))
	for _, p := range o.PeerOrgs {
		members = append(members, p.section())
	}
	return &ConfigTx{
		Profiles: map[string]*Profile{
			constants.GenesisProfile: {
				Policies:     defaultPolicies(),
				Capabilities: Capabilities(o.Version, "Channel"),
				Orderer:      orderer,
				Consortiums: map[string]*Consortium{
					o.ConsortiumName: {Organizations: members},
				},
			},
		},
	}, nil
}

// BuildChannelProfile renders the application channel profile. Channel
// admins are the admins of adminMSPID.
func BuildChannelProfile(consortiumName, version, adminMSPID string, orgs []*OrgProfile) *ConfigTx {
	members := make([]*Organization, 0, len(orgs))
	for _, p := range orgs {
		members = append(members, p.section())
	}
	policies := defaultPolicies()
	policies["Admins"] = &Policy{Type: "Signature", Rule: fmt.Sprintf("OR('%s.admin')", adminMSPID)}
	return &ConfigTx{
		Profiles: map[string]*Profile{
			constants.ChannelProfile: {
				Consortium: consortiumName,
				Application: &Application{
					Organizations: members,
					Policies:      policies,
					Capabilities:  Capabilities(version, "Application"),
				},
			},
		},
	}
}

func (c *ConfigTx) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}

// references lists the files and directories the profiles point at.
func (c *ConfigTx) references() []string {
	seen := map[string]bool{}
	refs := []string{}
	add := func(p string) {
		if p != "" && !seen[p] {
			seen[p] = true
			refs = append(refs, p)
		}
	}
	addOrgs := func(orgs []*Organization) {
		for _, o := range orgs {
			add(o.MSPDir)
		}
	}
	for _, p := range c.Profiles {
		if p.Orderer != nil {
			addOrgs(p.Orderer.Organizations)
			if p.Orderer.EtcdRaft != nil {
				for _, cs := range p.Orderer.EtcdRaft.Consenters {
					add(cs.ClientTLSCert)
					add(cs.ServerTLSCert)
				}
			}
		}
		for _, cons := range p.Consortiums {
			addOrgs(cons.Organizations)
		}
		if p.Application != nil {
			addOrgs(p.Application.Organizations)
		}
	}
	return refs
}

// Stage prepares dir as a configtxgen working directory: every MSP and
// certificate the profiles reference is copied from sourceDir, then
// configtx.yaml is written next to them.
func (c *ConfigTx) Stage(sourceDir, dir string) error {
	if err := os.RemoveAll(dir); err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	for _, ref := range c.references() {
		src := filepath.Join(sourceDir, ref)
		if _, err := os.Stat(src); err != nil {
			return errdefs.NotFoundf("configtx reference %s: %s", ref, err)
		}
		if err := copy.Copy(src, filepath.Join(dir, ref)); err != nil {
			return err
		}
	}
	b, err := c.Marshal()
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, constants.ConfigTxFile), b, 0755)
}
