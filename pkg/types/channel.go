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

import "github.com/hyperledger/firefly-common/pkg/fftypes"

// Channel references organizations and peers by id only. Both sets grow
// monotonically as organizations join and peers execute a join.
type Channel struct {
	ID           string          `json:"id"`
	ConsortiumID string          `json:"consortiumId"`
	Name         string          `json:"name"`
	Orgs         []string        `json:"orgs"`
	Peers        []string        `json:"peers"`
	Created      *fftypes.FFTime `json:"created,omitempty"`
}

func (c *Channel) HasOrg(orgID string) bool {
	return contains(c.Orgs, orgID)
}

func (c *Channel) HasPeer(nodeID string) bool {
	return contains(c.Peers, nodeID)
}

func (c *Channel) AddOrgs(orgIDs ...string) {
	c.Orgs = union(c.Orgs, orgIDs)
}

func (c *Channel) AddPeers(nodeIDs ...string) {
	c.Peers = union(c.Peers, nodeIDs)
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

// union appends the values of b missing from a, preserving order.
func union(a, b []string) []string {
	for _, v := range b {
		if !contains(a, v) {
			a = append(a, v)
		}
	}
	return a
}
