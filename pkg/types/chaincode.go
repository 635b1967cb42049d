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
	"fmt"

	"github.com/hyperledger/firefly-common/pkg/fftypes"
)

// ChaincodeState is tracked per channel. A FAILED value closes the attempt
// that produced it but never blocks a retry.
type ChaincodeState int

const (
	ChaincodeStateNone ChaincodeState = iota
	ChaincodeStateInstalled
	ChaincodeStateDeployed
	ChaincodeStateUpgraded
	ChaincodeStateInstallFailed
	ChaincodeStateDeployFailed
	ChaincodeStateUpgradeFailed
)

var chaincodeStateStrings = []string{"none", "installed", "deployed", "upgraded", "install_failed", "deploy_failed", "upgrade_failed"}

func (s ChaincodeState) String() string {
	if s < 0 || int(s) >= len(chaincodeStateStrings) {
		return fmt.Sprintf("unknown(%d)", int(s))
	}
	return chaincodeStateStrings[s]
}

func (s ChaincodeState) Failed() bool {
	return s == ChaincodeStateInstallFailed || s == ChaincodeStateDeployFailed || s == ChaincodeStateUpgradeFailed
}

var (
	ChaincodeTypeGolang = fftypes.FFEnumValue("chaincodetype", "golang")
	ChaincodeTypeJava   = fftypes.FFEnumValue("chaincodetype", "java")
	ChaincodeTypeNode   = fftypes.FFEnumValue("chaincodetype", "node")
)

// ChaincodeOp selects between the two activation paths of a chaincode.
type ChaincodeOp string

const (
	ChaincodeOpInstantiate ChaincodeOp = "instantiate"
	ChaincodeOpUpgrade     ChaincodeOp = "upgrade"
)

// PolicyMajority is the only endorsement policy type accepted for activation.
const PolicyMajority = "majority"

type Chaincode struct {
	ID           string                    `json:"id"`
	ConsortiumID string                    `json:"consortiumId"`
	Name         string                    `json:"name"`
	Version      string                    `json:"version"`
	Path         string                    `json:"path"`
	Type         fftypes.FFEnum            `json:"type"`
	Desc         string                    `json:"desc,omitempty"`
	Peers        []string                  `json:"peers"`
	Status       ChaincodeState            `json:"status"`
	State        map[string]ChaincodeState `json:"state"`
	Created      *fftypes.FFTime           `json:"created,omitempty"`
}

func (c *Chaincode) HasPeer(nodeID string) bool {
	return contains(c.Peers, nodeID)
}

func (c *Chaincode) AddPeers(nodeIDs ...string) {
	c.Peers = union(c.Peers, nodeIDs)
}

// ChaincodeRecord is an append-only audit entry, one per lifecycle attempt.
type ChaincodeRecord struct {
	ID           string          `json:"id"`
	ConsortiumID string          `json:"consortiumId"`
	ChaincodeID  string          `json:"chaincodeId"`
	Opt          ChaincodeState  `json:"opt"`
	Target       string          `json:"target"`
	Message      string          `json:"message"`
	Date         *fftypes.FFTime `json:"date"`
}
