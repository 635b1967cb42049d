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

package types

import (
	"context"

	"github.com/hyperledger/firefly-common/pkg/fftypes"
	"github.com/hyperledger/leizu/internal/errdefs"
)

type RequestStatus string

const (
	RequestStatusPending RequestStatus = "pending"
	RequestStatusRunning RequestStatus = "running"
	RequestStatusSuccess RequestStatus = "success"
	RequestStatusError   RequestStatus = "error"
)

func (s RequestStatus) Terminal() bool {
	return s == RequestStatusSuccess || s == RequestStatusError
}

// ProvisioningRequest is persisted before any side effect. Configuration is a
// frozen JSON snapshot of the NetworkRequest it was created from.
type ProvisioningRequest struct {
	ID            string          `json:"id"`
	Name          string          `json:"name"`
	Status        RequestStatus   `json:"status"`
	Configuration string          `json:"configuration"`
	ConsortiumID  string          `json:"consortiumId,omitempty"`
	Error         string          `json:"error,omitempty"`
	Created       *fftypes.FFTime `json:"created,omitempty"`
	Updated       *fftypes.FFTime `json:"updated,omitempty"`
}

var (
	InstanceClassNormal = fftypes.FFEnumValue("instanceclass", "normal")
	InstanceClassHigh   = fftypes.FFEnumValue("instanceclass", "high")
)

// HostSpec describes one machine of a network request. In cloud mode only Name
// and Type are meaningful until the host is rewritten with an allocated
// instance address.
type HostSpec struct {
	Name        string         `json:"name" yaml:"name"`
	IP          string         `json:"ip,omitempty" yaml:"ip,omitempty"`
	SSHUsername string         `json:"ssh_username,omitempty" yaml:"ssh_username,omitempty"`
	SSHPassword string         `json:"ssh_password,omitempty" yaml:"ssh_password,omitempty"`
	SSHKeyPath  string         `json:"ssh_key_path,omitempty" yaml:"ssh_key_path,omitempty"`
	SSHPort     int            `json:"ssh_port,omitempty" yaml:"ssh_port,omitempty"`
	Type        fftypes.FFEnum `json:"type,omitempty" yaml:"type,omitempty"`
}

type OrgSpec struct {
	Name  string      `json:"name" yaml:"name"`
	CA    *HostSpec   `json:"ca" yaml:"ca"`
	Peers []*HostSpec `json:"peers,omitempty" yaml:"peers,omitempty"`
}

type OrdererOrgSpec struct {
	Name    string      `json:"name" yaml:"name"`
	CA      *HostSpec   `json:"ca" yaml:"ca"`
	Orderer []*HostSpec `json:"orderer" yaml:"orderer"`
}

type ChannelSpec struct {
	Name string   `json:"name" yaml:"name"`
	Orgs []string `json:"orgs,omitempty" yaml:"orgs,omitempty"`
}

// NetworkRequest is the declarative description of a consortium to provision.
type NetworkRequest struct {
	Name                string          `json:"name" yaml:"name"`
	Mode                fftypes.FFEnum  `json:"mode" yaml:"mode"`
	Network             fftypes.FFEnum  `json:"network,omitempty" yaml:"network,omitempty"`
	Version             string          `json:"version" yaml:"version"`
	Consensus           fftypes.FFEnum  `json:"consensus" yaml:"consensus"`
	NormalInstanceLimit int             `json:"normalInstanceLimit,omitempty" yaml:"normalInstanceLimit,omitempty"`
	HighInstanceLimit   int             `json:"highInstanceLimit,omitempty" yaml:"highInstanceLimit,omitempty"`
	OrdererOrg          *OrdererOrgSpec `json:"ordererOrg" yaml:"ordererOrg"`
	PeerOrgs            []*OrgSpec      `json:"peerOrgs" yaml:"peerOrgs"`
	Kafka               []*HostSpec     `json:"kafka,omitempty" yaml:"kafka,omitempty"`
	Zookeeper           []*HostSpec     `json:"zookeeper,omitempty" yaml:"zookeeper,omitempty"`
	Channel             *ChannelSpec    `json:"channel" yaml:"channel"`
}

// Validate performs the structural checks needed before anything is persisted.
func (r *NetworkRequest) Validate(ctx context.Context) error {
	if r.Name == "" {
		return errdefs.Invalidf("network request must have a name")
	}
	if r.Mode == "" {
		r.Mode = RunModeBare
	}
	if _, err := fftypes.FFEnumParseString(ctx, "runmode", r.Mode.String()); err != nil {
		return errdefs.Invalidf("%s", err)
	}
	if r.Consensus == "" {
		r.Consensus = ConsensusSolo
	}
	if _, err := fftypes.FFEnumParseString(ctx, "consensus", r.Consensus.String()); err != nil {
		return errdefs.Invalidf("%s", err)
	}
	validVersion := false
	for _, v := range FabricVersions {
		if v == r.Version {
			validVersion = true
		}
	}
	if !validVersion {
		return errdefs.Invalidf("\"%s\" is not a valid fabric version. valid options are: %v", r.Version, FabricVersions)
	}
	if r.OrdererOrg == nil || r.OrdererOrg.CA == nil {
		return errdefs.Invalidf("network request must define an orderer organization with a CA")
	}
	if len(r.OrdererOrg.Orderer) == 0 {
		return errdefs.Invalidf("orderer organization '%s' has no orderer nodes", r.OrdererOrg.Name)
	}
	if len(r.PeerOrgs) == 0 {
		return errdefs.Invalidf("network request must define at least one peer organization")
	}
	names := map[string]bool{r.OrdererOrg.Name: true}
	for _, org := range r.PeerOrgs {
		if org.CA == nil {
			return errdefs.Invalidf("peer organization '%s' has no CA", org.Name)
		}
		if names[org.Name] {
			return errdefs.Invalidf("duplicate organization name '%s'", org.Name)
		}
		names[org.Name] = true
	}
	if r.Channel == nil || r.Channel.Name == "" {
		return errdefs.Invalidf("network request must define a channel")
	}
	return nil
}

// Hosts returns every host of the request, in a stable order: orderer CA,
// orderers, then each peer organization's CA and peers, then kafka and
// zookeeper hosts when the consensus needs them.
func (r *NetworkRequest) Hosts() []*HostSpec {
	hosts := []*HostSpec{}
	if r.OrdererOrg != nil {
		if r.OrdererOrg.CA != nil {
			hosts = append(hosts, r.OrdererOrg.CA)
		}
		hosts = append(hosts, r.OrdererOrg.Orderer...)
	}
	for _, org := range r.PeerOrgs {
		if org.CA != nil {
			hosts = append(hosts, org.CA)
		}
		hosts = append(hosts, org.Peers...)
	}
	if r.Consensus == ConsensusKafka {
		hosts = append(hosts, r.Kafka...)
		hosts = append(hosts, r.Zookeeper...)
	}
	return hosts
}

type Instance struct {
	ID       string `json:"id"`
	PublicIP string `json:"publicIp"`
}

type InstanceReservation struct {
	ID           string          `json:"id"`
	ConsortiumID string          `json:"consortiumId"`
	Class        fftypes.FFEnum  `json:"class"`
	Created      *fftypes.FFTime `json:"created,omitempty"`
}
