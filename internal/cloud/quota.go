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

package cloud

import (
	"context"
	"fmt"
	"sync"

	"github.com/hyperledger/firefly-common/pkg/fftypes"
	"github.com/hyperledger/leizu/internal/config"
	"github.com/hyperledger/leizu/internal/errdefs"
	"github.com/hyperledger/leizu/internal/log"
	"github.com/hyperledger/leizu/internal/store"
	"github.com/hyperledger/leizu/pkg/types"
	"github.com/sourcegraph/conc/pool"
)

// Classes lists the instance classes in allocation order.
var Classes = []fftypes.FFEnum{types.InstanceClassNormal, types.InstanceClassHigh}

func classOf(h *types.HostSpec) fftypes.FFEnum {
	if h.Type == "" {
		return types.InstanceClassNormal
	}
	return h.Type
}

// CountInstances tallies the hosts per instance class.
func CountInstances(hosts []*types.HostSpec) map[fftypes.FFEnum]int {
	counts := map[fftypes.FFEnum]int{}
	for _, h := range hosts {
		counts[classOf(h)]++
	}
	return counts
}

// RewriteHosts hands out the instances of each class to the hosts of that
// class in order, and points SSH at the cloud identity.
func RewriteHosts(hosts []*types.HostSpec, instances map[fftypes.FFEnum][]*types.Instance, cfg config.CloudConfig) error {
	next := map[fftypes.FFEnum]int{}
	for _, h := range hosts {
		class := classOf(h)
		i := next[class]
		if i >= len(instances[class]) {
			return errdefs.Fatalf("only %d %s instances were started for %d hosts", len(instances[class]), class, CountInstances(hosts)[class])
		}
		next[class] = i + 1
		h.IP = instances[class][i].PublicIP
		h.SSHUsername = cfg.SSHUsername
		h.SSHKeyPath = cfg.SSHKeyPath
		h.SSHPassword = ""
	}
	return nil
}

// Allocator claims quota for the hosts of a cloud consortium, runs their
// instances and rewrites the hosts with the allocated addresses.
type Allocator struct {
	Store    *store.Store
	Provider Provider
	Cloud    config.CloudConfig
}

// Allocate reserves every class before running anything. A class over its
// limit fails with QuotaExceeded and leaves no reservation behind.
// Reservations only guard the allocation itself and are released once the
// instances have been run, whatever the outcome.
func (a *Allocator) Allocate(ctx context.Context, consortium *types.Consortium, hosts []*types.HostSpec) (err error) {
	logger := log.LoggerFromContext(ctx)
	counts := CountInstances(hosts)
	reserved := []*types.InstanceReservation{}
	defer func() {
		if rerr := a.Store.Reservations.Release(ctx, reserved); rerr != nil {
			logger.Warn(fmt.Sprintf("releasing instance reservations of %s: %s", consortium.Name, rerr))
		}
	}()
	for _, class := range Classes {
		if counts[class] == 0 {
			continue
		}
		r, err := a.Store.Reservations.Reserve(ctx, consortium.ID, class, counts[class], consortium.InstanceLimit(class))
		if err != nil {
			return err
		}
		reserved = append(reserved, r...)
	}

	var mux sync.Mutex
	instances := map[fftypes.FFEnum][]*types.Instance{}
	p := pool.New().WithErrors().WithFirstError()
	for _, class := range Classes {
		class, count := class, counts[class]
		if count == 0 {
			continue
		}
		p.Go(func() error {
			run, err := a.Provider.RunInstances(ctx, consortium.Network, class, count)
			if err != nil {
				return err
			}
			mux.Lock()
			defer mux.Unlock()
			instances[class] = run
			return nil
		})
	}
	if err := p.Wait(); err != nil {
		return err
	}
	return RewriteHosts(hosts, instances, a.Cloud)
}
