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

package mocks

import (
	"context"
	"fmt"
	"sync"

	"github.com/hyperledger/firefly-common/pkg/fftypes"
	"github.com/hyperledger/leizu/pkg/types"
)

// Provider hands out instances with addresses from 10.<class>.0.0/16.
type Provider struct {
	Runs map[fftypes.FFEnum]int
	// Networks lists the network of every run, in call order.
	Networks []fftypes.FFEnum
	Err      error
	// Short withholds that many instances from every run.
	Short int
	mux   sync.Mutex
	seq   int
}

func NewProvider() *Provider {
	return &Provider{Runs: map[fftypes.FFEnum]int{}}
}

func (p *Provider) RunInstances(ctx context.Context, network, class fftypes.FFEnum, count int) ([]*types.Instance, error) {
	p.mux.Lock()
	defer p.mux.Unlock()
	p.Networks = append(p.Networks, network)
	if p.Err != nil {
		return nil, p.Err
	}
	p.Runs[class] += count
	net := 1
	if class == types.InstanceClassHigh {
		net = 2
	}
	instances := []*types.Instance{}
	for i := 0; i < count-p.Short; i++ {
		p.seq++
		instances = append(instances, &types.Instance{
			ID:       fmt.Sprintf("i-%04d", p.seq),
			PublicIP: fmt.Sprintf("10.%d.0.%d", net, p.seq),
		})
	}
	return instances, nil
}
