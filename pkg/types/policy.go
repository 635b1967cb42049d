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

type PolicyRole struct {
	Name  string `json:"name"`
	MSPID string `json:"mspId"`
}

type PolicyIdentity struct {
	Role PolicyRole `json:"role"`
}

type SignedBy struct {
	SignedBy int `json:"signed-by"`
}

// EndorsementPolicy is the N-of-M document accepted by the lifecycle calls:
//
//	{"identities":[{"role":{"name":"member","mspId":"Org1MSP"}}], "policy":{"1-of":[{"signed-by":0}]}}
type EndorsementPolicy struct {
	Identities []PolicyIdentity      `json:"identities"`
	Policy     map[string][]SignedBy `json:"policy"`
}
