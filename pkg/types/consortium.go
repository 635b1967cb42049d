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
	"github.com/hyperledger/firefly-common/pkg/fftypes"
)

var (
	RunModeBare  = fftypes.FFEnumValue("runmode", "bare")
	RunModeCloud = fftypes.FFEnumValue("runmode", "cloud")
)

var (
	CloudNetworkClassics = fftypes.FFEnumValue("cloudnetwork", "classics")
	CloudNetworkVPC      = fftypes.FFEnumValue("cloudnetwork", "vpc")
)

var (
	ConsensusSolo     = fftypes.FFEnumValue("consensus", "solo")
	ConsensusKafka    = fftypes.FFEnumValue("consensus", "kafka")
	ConsensusEtcdRaft = fftypes.FFEnumValue("consensus", "etcdraft")
)

// FabricVersions lists the ledger releases a consortium can be created with.
var FabricVersions = []string{"1.2", "1.3", "1.4"}

type Consortium struct {
	ID                  string          `json:"id"`
	Name                string          `json:"name"`
	Mode                fftypes.FFEnum  `json:"mode"`
	Network             fftypes.FFEnum  `json:"network,omitempty"`
	FabricVersion       string          `json:"fabricVersion"`
	Consensus           fftypes.FFEnum  `json:"consensus"`
	NormalInstanceLimit int             `json:"normalInstanceLimit"`
	HighInstanceLimit   int             `json:"highInstanceLimit"`
	Status              RequestStatus   `json:"status"`
	RequestID           string          `json:"requestId,omitempty"`
	Created             *fftypes.FFTime `json:"created,omitempty"`
}

// InstanceLimit returns the quota ceiling configured for the given class.
func (c *Consortium) InstanceLimit(class fftypes.FFEnum) int {
	switch class {
	case InstanceClassHigh:
		return c.HighInstanceLimit
	default:
		return c.NormalInstanceLimit
	}
}
