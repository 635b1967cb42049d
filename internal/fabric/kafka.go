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

package fabric

import (
	"context"
	"fmt"

	"github.com/hyperledger/leizu/internal/constants"
	"github.com/hyperledger/leizu/internal/errdefs"
	"github.com/hyperledger/leizu/internal/log"
	"github.com/hyperledger/leizu/pkg/types"
	"github.com/pkg/errors"
	"github.com/sourcegraph/conc/pool"
)

// KafkaService runs the zookeeper ensemble and kafka brokers backing kafka
// consensus.
type KafkaService struct {
	*Deps
}

func ips(hosts []*types.HostSpec) []string {
	out := make([]string, len(hosts))
	for i, h := range hosts {
		out[i] = h.IP
	}
	return out
}

// Provision starts the ensemble first, then the brokers, and returns the
// broker addresses the genesis block lists.
func (s *KafkaService) Provision(ctx context.Context, consortiumID string, kafka, zookeepers []*types.HostSpec) ([]string, error) {
	if len(kafka) == 0 || len(zookeepers) == 0 {
		return nil, errdefs.Invalidf("kafka consensus requires kafka and zookeeper hosts")
	}
	_, manifest, err := s.consortium(ctx, consortiumID)
	if err != nil {
		return nil, err
	}
	logger := log.LoggerFromContext(ctx)
	servers := ips(zookeepers)
	zkImage := manifest.Zookeeper.GetDockerImageString()
	p := pool.New().WithErrors().WithFirstError()
	for i, host := range zookeepers {
		id, host := i+1, host
		p.Go(func() error {
			g := s.Dialer.Gateway(host)
			if err := g.CreateContainerNetwork(ctx, constants.DefaultNetworkName); err != nil {
				return err
			}
			logger.Info(fmt.Sprintf("starting zookeeper %d on %s", id, host.IP))
			if _, err := s.startContainer(ctx, g, zkImage, ZookeeperContainer(zkImage, id, servers, !s.Config.IsRemote())); err != nil {
				return errors.Wrapf(err, "zookeeper on %s", host.IP)
			}
			return s.waitForPort(ctx, host.IP, constants.PortZookeeper)
		})
	}
	if err := p.Wait(); err != nil {
		return nil, err
	}

	brokers := ips(kafka)
	kafkaImage := manifest.Kafka.GetDockerImageString()
	p = pool.New().WithErrors().WithFirstError()
	for i, host := range kafka {
		id, host := i, host
		p.Go(func() error {
			g := s.Dialer.Gateway(host)
			if err := g.CreateContainerNetwork(ctx, constants.DefaultNetworkName); err != nil {
				return err
			}
			logger.Info(fmt.Sprintf("starting kafka broker %d on %s", id, host.IP))
			if _, err := s.startContainer(ctx, g, kafkaImage, KafkaContainer(kafkaImage, id, brokers, servers, !s.Config.IsRemote())); err != nil {
				return errors.Wrapf(err, "kafka on %s", host.IP)
			}
			return s.waitForPort(ctx, host.IP, constants.PortKafkaBroker)
		})
	}
	if err := p.Wait(); err != nil {
		return nil, err
	}
	addrs := make([]string, len(brokers))
	for i, ip := range brokers {
		addrs[i] = fmt.Sprintf("%s:%d", ip, constants.PortKafkaBroker)
	}
	return addrs, nil
}
