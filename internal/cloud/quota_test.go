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

package cloud_test

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/hyperledger/firefly-common/pkg/fftypes"
	"github.com/hyperledger/leizu/internal/cloud"
	"github.com/hyperledger/leizu/internal/cloud/mocks"
	"github.com/hyperledger/leizu/internal/config"
	"github.com/hyperledger/leizu/internal/errdefs"
	"github.com/hyperledger/leizu/internal/store"
	"github.com/hyperledger/leizu/internal/store/memory"
	"github.com/hyperledger/leizu/internal/store/sqlstore"
	"github.com/hyperledger/leizu/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var cloudCfg = config.CloudConfig{SSHUsername: "ubuntu", SSHKeyPath: "/keys/leizu.pem"}

func stores(t *testing.T) map[string]*store.Store {
	d, err := sqlstore.Open(context.Background(), sqlstore.DialectSQLite, filepath.Join(t.TempDir(), "leizu.db"))
	require.NoError(t, err)
	t.Cleanup(func() { d.Close() })
	return map[string]*store.Store{
		"memory": store.New(memory.New()),
		"sqlite": store.New(d),
	}
}

func hosts(n int, class fftypes.FFEnum) []*types.HostSpec {
	hs := make([]*types.HostSpec, n)
	for i := range hs {
		hs[i] = &types.HostSpec{Name: fmt.Sprintf("h%d", i), Type: class, SSHPassword: "secret"}
	}
	return hs
}

func TestCountInstances(t *testing.T) {
	hs := append(hosts(3, ""), hosts(2, types.InstanceClassHigh)...)
	counts := cloud.CountInstances(hs)
	assert.Equal(t, 3, counts[types.InstanceClassNormal])
	assert.Equal(t, 2, counts[types.InstanceClassHigh])
}

func TestAllocate(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			c := &types.Consortium{ID: fftypes.NewUUID().String(), Name: "supply", Network: types.CloudNetworkVPC, NormalInstanceLimit: 3, HighInstanceLimit: 1}
			provider := mocks.NewProvider()
			a := &cloud.Allocator{Store: s, Provider: provider, Cloud: cloudCfg}
			hs := append(hosts(3, types.InstanceClassNormal), hosts(1, types.InstanceClassHigh)...)

			require.NoError(t, a.Allocate(ctx, c, hs))
			assert.Equal(t, []fftypes.FFEnum{types.CloudNetworkVPC, types.CloudNetworkVPC}, provider.Networks)
			assert.Equal(t, 3, provider.Runs[types.InstanceClassNormal])
			assert.Equal(t, 1, provider.Runs[types.InstanceClassHigh])
			for _, h := range hs {
				assert.NotEmpty(t, h.IP)
				assert.Equal(t, "ubuntu", h.SSHUsername)
				assert.Equal(t, "/keys/leizu.pem", h.SSHKeyPath)
				assert.Empty(t, h.SSHPassword)
			}
			assert.Regexp(t, `^10\.2\.0\.`, hs[3].IP)

			n, err := s.Reservations.Count(ctx, c.ID, types.InstanceClassNormal)
			require.NoError(t, err)
			assert.Zero(t, n, "reservations are released after the run")
		})
	}
}

func TestAllocateOverQuota(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			c := &types.Consortium{ID: fftypes.NewUUID().String(), Name: "supply", NormalInstanceLimit: 5, HighInstanceLimit: 2}
			provider := mocks.NewProvider()
			a := &cloud.Allocator{Store: s, Provider: provider, Cloud: cloudCfg}

			hs := append(hosts(2, types.InstanceClassNormal), hosts(3, types.InstanceClassHigh)...)
			err := a.Allocate(ctx, c, hs)
			assert.ErrorIs(t, err, errdefs.ErrQuotaExceeded)
			assert.Empty(t, provider.Runs)
			for _, class := range cloud.Classes {
				n, err := s.Reservations.Count(ctx, c.ID, class)
				require.NoError(t, err)
				assert.Zero(t, n, class)
			}
		})
	}
}

func TestAllocateShortRun(t *testing.T) {
	s := store.New(memory.New())
	c := &types.Consortium{ID: "c1", Name: "supply", NormalInstanceLimit: 5}
	provider := mocks.NewProvider()
	provider.Short = 1
	a := &cloud.Allocator{Store: s, Provider: provider, Cloud: cloudCfg}
	err := a.Allocate(context.Background(), c, hosts(2, ""))
	assert.ErrorIs(t, err, errdefs.ErrFatal)
	n, _ := s.Reservations.Count(context.Background(), "c1", types.InstanceClassNormal)
	assert.Zero(t, n)
}

func TestAllocateProviderError(t *testing.T) {
	s := store.New(memory.New())
	c := &types.Consortium{ID: "c1", Name: "supply", NormalInstanceLimit: 5}
	provider := mocks.NewProvider()
	provider.Err = errdefs.Unreachablef("ec2 is down")
	a := &cloud.Allocator{Store: s, Provider: provider, Cloud: cloudCfg}
	err := a.Allocate(context.Background(), c, hosts(2, ""))
	assert.ErrorIs(t, err, errdefs.ErrUnreachable)
	n, _ := s.Reservations.Count(context.Background(), "c1", types.InstanceClassNormal)
	assert.Zero(t, n)
}
