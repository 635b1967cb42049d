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
	"encoding/json"
	"fmt"
	"testing"

	"github.com/hyperledger/leizu/internal/errdefs"
	"github.com/hyperledger/leizu/internal/store"
	"github.com/hyperledger/leizu/internal/store/memory"
	"github.com/hyperledger/leizu/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedOrgs(t *testing.T, s *store.Store, n int) []string {
	ids := []string{}
	for i := 1; i <= n; i++ {
		org := &types.Organization{
			ID:           fmt.Sprintf("org%d-id", i),
			ConsortiumID: "c1",
			Name:         fmt.Sprintf("org%d", i),
			MSPID:        types.MSPID(fmt.Sprintf("org%d", i)),
			Type:         types.NodeTypePeer,
		}
		require.NoError(t, s.Organizations.Create(context.Background(), org))
		ids = append(ids, org.ID)
	}
	return ids
}

func TestBuildThreshold(t *testing.T) {
	testCases := []struct {
		Orgs      int
		Threshold string
	}{
		{1, "1-of"},
		{2, "1-of"},
		{3, "2-of"},
		{4, "2-of"},
		{5, "3-of"},
	}
	for _, tc := range testCases {
		t.Run(fmt.Sprintf("%d orgs", tc.Orgs), func(t *testing.T) {
			s := store.New(memory.New())
			ids := seedOrgs(t, s, tc.Orgs)
			p, err := Build(context.Background(), s.Organizations, ids)
			require.NoError(t, err)
			assert.Len(t, p.Identities, tc.Orgs)
			require.Contains(t, p.Policy, tc.Threshold)
			assert.Len(t, p.Policy, 1)
			for i, sb := range p.Policy[tc.Threshold] {
				assert.Equal(t, i, sb.SignedBy)
				assert.Equal(t, "member", p.Identities[i].Role.Name)
				assert.Equal(t, fmt.Sprintf("Org%dMSP", i+1), p.Identities[i].Role.MSPID)
			}
		})
	}
}

func TestBuildDocumentShape(t *testing.T) {
	s := store.New(memory.New())
	ids := seedOrgs(t, s, 2)
	p, err := Build(context.Background(), s.Organizations, ids)
	require.NoError(t, err)
	b, err := json.Marshal(p)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"identities": [
			{"role": {"name": "member", "mspId": "Org1MSP"}},
			{"role": {"name": "member", "mspId": "Org2MSP"}}
		],
		"policy": {"1-of": [{"signed-by": 0}, {"signed-by": 1}]}
	}`, string(b))
}

func TestBuildNoOrganization(t *testing.T) {
	s := store.New(memory.New())
	_, err := Build(context.Background(), s.Organizations, nil)
	assert.ErrorIs(t, err, errdefs.ErrInvalid)
	assert.Regexp(t, "no organization was found", err)
}

func TestBuildUnknownOrganization(t *testing.T) {
	s := store.New(memory.New())
	ids := seedOrgs(t, s, 1)
	_, err := Build(context.Background(), s.Organizations, append(ids, "missing"))
	assert.ErrorIs(t, err, errdefs.ErrNotFound)
}

func TestValidateType(t *testing.T) {
	assert.NoError(t, ValidateType("majority"))
	err := ValidateType("any")
	assert.ErrorIs(t, err, errdefs.ErrPolicyInvalid)
	assert.ErrorIs(t, ValidateType(""), errdefs.ErrPolicyInvalid)
}

func TestThreshold(t *testing.T) {
	assert.Equal(t, 0, Threshold(0))
	assert.Equal(t, 1, Threshold(1))
	assert.Equal(t, 4, Threshold(7))
}
