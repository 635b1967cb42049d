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

package policy

import (
	"context"
	"fmt"

	"github.com/hyperledger/leizu/internal/errdefs"
	"github.com/hyperledger/leizu/pkg/types"
)

// OrganizationGetter is the slice of the organization repository the builder
// needs.
type OrganizationGetter interface {
	Get(ctx context.Context, id string) (*types.Organization, error)
}

// ValidateType accepts the majority policy only.
func ValidateType(policyType string) error {
	if policyType != types.PolicyMajority {
		return errdefs.PolicyInvalidf("endorsement policy '%s' is not supported, only '%s' is", policyType, types.PolicyMajority)
	}
	return nil
}

// Build loads orgIDs and returns a majority policy over their members.
func Build(ctx context.Context, orgs OrganizationGetter, orgIDs []string) (*types.EndorsementPolicy, error) {
	if len(orgIDs) == 0 {
		return nil, errdefs.Invalidf("no organization was found")
	}
	loaded := make([]*types.Organization, 0, len(orgIDs))
	for _, id := range orgIDs {
		org, err := orgs.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		loaded = append(loaded, org)
	}
	return FromOrganizations(loaded)
}

// FromOrganizations builds the policy in the order given. Signer indexes refer
// to positions in Identities.
func FromOrganizations(orgs []*types.Organization) (*types.EndorsementPolicy, error) {
	if len(orgs) == 0 {
		return nil, errdefs.Invalidf("no organization was found")
	}
	p := &types.EndorsementPolicy{
		Identities: make([]types.PolicyIdentity, len(orgs)),
	}
	signers := make([]types.SignedBy, len(orgs))
	for i, org := range orgs {
		p.Identities[i] = types.PolicyIdentity{Role: types.PolicyRole{Name: "member", MSPID: org.MSPID}}
		signers[i] = types.SignedBy{SignedBy: i}
	}
	p.Policy = map[string][]types.SignedBy{
		fmt.Sprintf("%d-of", Threshold(len(orgs))): signers,
	}
	return p, nil
}

// Threshold is the number of signatures a majority of n organizations needs.
func Threshold(n int) int {
	return (n + 1) / 2
}
