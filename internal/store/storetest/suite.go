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

// Package storetest holds the behaviour every store.Driver must share, so the
// memory and SQL backends run the same assertions.
package storetest

import (
	"context"
	"sync"
	"testing"

	"github.com/hyperledger/firefly-common/pkg/fftypes"
	"github.com/hyperledger/leizu/internal/errdefs"
	"github.com/hyperledger/leizu/internal/store"
	"github.com/hyperledger/leizu/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func RunDriverTests(t *testing.T, newDriver func(t *testing.T) store.Driver) {
	tests := []struct {
		name string
		fn   func(t *testing.T, s *store.Store)
	}{
		{"OrganizationUniqueName", testOrganizationUniqueName},
		{"FindKeepsInsertionOrder", testFindKeepsInsertionOrder},
		{"UpdateIsAtomic", testUpdateIsAtomic},
		{"UpdateErrorLeavesDocument", testUpdateErrorLeavesDocument},
		{"DeleteAndNotFound", testDeleteAndNotFound},
		{"ReserveWithinLimit", testReserveWithinLimit},
		{"ReserveOverLimit", testReserveOverLimit},
		{"ConcurrentReservations", testConcurrentReservations},
		{"RecordsAppend", testRecordsAppend},
		{"DeleteConsortiumCascades", testDeleteConsortiumCascades},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			d := newDriver(t)
			s := store.New(d)
			defer s.Close()
			tc.fn(t, s)
		})
	}
}

func newOrg(consortiumID, name string) *types.Organization {
	return &types.Organization{
		ID:           fftypes.NewUUID().String(),
		ConsortiumID: consortiumID,
		Name:         name,
		MSPID:        types.MSPID(name),
		Type:         types.NodeTypePeer,
		Created:      fftypes.Now(),
	}
}

func testOrganizationUniqueName(t *testing.T, s *store.Store) {
	ctx := context.Background()
	require.NoError(t, s.Organizations.Create(ctx, newOrg("c1", "org1")))
	err := s.Organizations.Create(ctx, newOrg("c1", "org1"))
	assert.ErrorIs(t, err, errdefs.ErrConflict)
	require.NoError(t, s.Organizations.Create(ctx, newOrg("c2", "org1")))

	orgs, err := s.Organizations.ListByConsortium(ctx, "c1")
	require.NoError(t, err)
	assert.Len(t, orgs, 1)

	org, err := s.Organizations.FindByName(ctx, "c2", "org1")
	require.NoError(t, err)
	assert.Equal(t, "Org1MSP", org.MSPID)

	_, err = s.Organizations.FindByName(ctx, "c2", "org9")
	assert.ErrorIs(t, err, errdefs.ErrNotFound)
}

func testFindKeepsInsertionOrder(t *testing.T, s *store.Store) {
	ctx := context.Background()
	names := []string{"zeta", "alpha", "mid"}
	for _, n := range names {
		require.NoError(t, s.Organizations.Create(ctx, newOrg("c1", n)))
	}
	orgs, err := s.Organizations.ListByConsortium(ctx, "c1")
	require.NoError(t, err)
	require.Len(t, orgs, 3)
	for i, n := range names {
		assert.Equal(t, n, orgs[i].Name)
	}
}

func testUpdateIsAtomic(t *testing.T, s *store.Store) {
	ctx := context.Background()
	ch := &types.Channel{ID: fftypes.NewUUID().String(), ConsortiumID: "c1", Name: "mychannel"}
	require.NoError(t, s.Channels.Create(ctx, ch))

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := s.Channels.Update(ctx, ch.ID, func(c *types.Channel) error {
				c.AddPeers(fftypes.NewUUID().String())
				return nil
			})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	got, err := s.Channels.Get(ctx, ch.ID)
	require.NoError(t, err)
	assert.Len(t, got.Peers, 10)
}

func testUpdateErrorLeavesDocument(t *testing.T, s *store.Store) {
	ctx := context.Background()
	ch := &types.Channel{ID: fftypes.NewUUID().String(), ConsortiumID: "c1", Name: "mychannel", Orgs: []string{"o1"}}
	require.NoError(t, s.Channels.Create(ctx, ch))
	_, err := s.Channels.Update(ctx, ch.ID, func(c *types.Channel) error {
		c.AddOrgs("o2")
		return errdefs.Invalidf("rejected")
	})
	assert.ErrorIs(t, err, errdefs.ErrInvalid)
	got, err := s.Channels.Get(ctx, ch.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"o1"}, got.Orgs)

	_, err = s.Channels.Update(ctx, "missing", func(c *types.Channel) error { return nil })
	assert.ErrorIs(t, err, errdefs.ErrNotFound)
}

func testDeleteAndNotFound(t *testing.T, s *store.Store) {
	ctx := context.Background()
	c := &types.Consortium{ID: fftypes.NewUUID().String(), Name: "net", RequestID: "r1", Mode: types.RunModeBare}
	require.NoError(t, s.Consortiums.Create(ctx, c))

	found, err := s.Consortiums.FindByRequestID(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, c.ID, found.ID)

	require.NoError(t, s.Consortiums.Delete(ctx, c.ID))
	_, err = s.Consortiums.Get(ctx, c.ID)
	assert.ErrorIs(t, err, errdefs.ErrNotFound)
	assert.ErrorIs(t, s.Consortiums.Delete(ctx, c.ID), errdefs.ErrNotFound)
}

func testReserveWithinLimit(t *testing.T, s *store.Store) {
	ctx := context.Background()
	res, err := s.Reservations.Reserve(ctx, "c1", types.InstanceClassNormal, 2, 3)
	require.NoError(t, err)
	assert.Len(t, res, 2)

	// the high class has its own ceiling
	_, err = s.Reservations.Reserve(ctx, "c1", types.InstanceClassHigh, 1, 1)
	require.NoError(t, err)

	_, err = s.Reservations.Reserve(ctx, "c1", types.InstanceClassNormal, 2, 3)
	assert.ErrorIs(t, err, errdefs.ErrQuotaExceeded)

	require.NoError(t, s.Reservations.Release(ctx, res))
	n, err := s.Reservations.Count(ctx, "c1", types.InstanceClassNormal)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	require.NoError(t, s.Reservations.Release(ctx, res))
}

func testReserveOverLimit(t *testing.T, s *store.Store) {
	ctx := context.Background()
	limit := 4
	_, err := s.Reservations.Reserve(ctx, "c1", types.InstanceClassNormal, limit+1, limit)
	assert.ErrorIs(t, err, errdefs.ErrQuotaExceeded)
	n, err := s.Reservations.Count(ctx, "c1", types.InstanceClassNormal)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func testConcurrentReservations(t *testing.T, s *store.Store) {
	ctx := context.Background()
	var wg sync.WaitGroup
	var mux sync.Mutex
	granted := 0
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.Reservations.Reserve(ctx, "c1", types.InstanceClassNormal, 1, 5); err == nil {
				mux.Lock()
				granted++
				mux.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 5, granted)
	n, err := s.Reservations.Count(ctx, "c1", types.InstanceClassNormal)
	require.NoError(t, err)
	assert.Equal(t, 5, n)
}

func testRecordsAppend(t *testing.T, s *store.Store) {
	ctx := context.Background()
	cc := &types.Chaincode{ID: fftypes.NewUUID().String(), ConsortiumID: "c1", Name: "mycc", Version: "1.0"}
	require.NoError(t, s.Chaincodes.Create(ctx, cc))
	_, err := s.Records.Append(ctx, cc, types.ChaincodeStateInstalled, "org1", "ok")
	require.NoError(t, err)
	_, err = s.Records.Append(ctx, cc, types.ChaincodeStateDeployed, "mychannel", "ok")
	require.NoError(t, err)

	records, err := s.Records.ListByChaincode(ctx, cc.ID)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, types.ChaincodeStateInstalled, records[0].Opt)
	assert.Equal(t, "mychannel", records[1].Target)

	dup := &types.Chaincode{ID: fftypes.NewUUID().String(), ConsortiumID: "c1", Name: "mycc", Version: "1.0"}
	assert.ErrorIs(t, s.Chaincodes.Create(ctx, dup), errdefs.ErrConflict)
}

func testDeleteConsortiumCascades(t *testing.T, s *store.Store) {
	ctx := context.Background()
	c := &types.Consortium{ID: fftypes.NewUUID().String(), Name: "net", RequestID: "r2", Mode: types.RunModeBare}
	require.NoError(t, s.Consortiums.Create(ctx, c))
	other := newOrg("other", "org1")
	require.NoError(t, s.Organizations.Create(ctx, other))
	org := newOrg(c.ID, "org1")
	require.NoError(t, s.Organizations.Create(ctx, org))
	require.NoError(t, s.Nodes.Create(ctx, &types.Node{ID: fftypes.NewUUID().String(), ConsortiumID: c.ID, OrganizationID: org.ID, Name: "peer-10-0-0-1", Type: types.NodeTypePeer}))
	require.NoError(t, s.Channels.Create(ctx, &types.Channel{ID: fftypes.NewUUID().String(), ConsortiumID: c.ID, Name: "mychannel", Orgs: []string{org.ID}}))

	require.NoError(t, s.DeleteConsortium(ctx, c.ID))
	orgs, err := s.Organizations.ListByConsortium(ctx, c.ID)
	require.NoError(t, err)
	assert.Empty(t, orgs)
	nodes, err := s.Nodes.ListByConsortium(ctx, c.ID)
	require.NoError(t, err)
	assert.Empty(t, nodes)
	_, err = s.Consortiums.Get(ctx, c.ID)
	assert.ErrorIs(t, err, errdefs.ErrNotFound)
	_, err = s.Organizations.Get(ctx, other.ID)
	assert.NoError(t, err)

	// a second delete finds nothing left to remove
	assert.NoError(t, s.DeleteConsortium(ctx, c.ID))
}
