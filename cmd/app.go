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

package cmd

import (
	"context"
	"fmt"

	"github.com/hyperledger/leizu/internal/action"
	"github.com/hyperledger/leizu/internal/chain"
	"github.com/hyperledger/leizu/internal/chaincode"
	"github.com/hyperledger/leizu/internal/cloud"
	"github.com/hyperledger/leizu/internal/config"
	"github.com/hyperledger/leizu/internal/core"
	"github.com/hyperledger/leizu/internal/docker"
	"github.com/hyperledger/leizu/internal/fabric"
	"github.com/hyperledger/leizu/internal/identity"
	"github.com/hyperledger/leizu/internal/metrics"
	"github.com/hyperledger/leizu/internal/orchestrator"
	"github.com/hyperledger/leizu/internal/store"
	"github.com/hyperledger/leizu/internal/store/memory"
	"github.com/hyperledger/leizu/internal/store/sqlstore"
	"github.com/hyperledger/leizu/internal/transport"
	"github.com/spf13/viper"
)

// app holds the components a command works with, built from configuration.
type app struct {
	cfg          *config.Config
	store        *store.Store
	services     *fabric.Services
	orchestrator *orchestrator.Orchestrator
	chaincodes   *chaincode.Manager
	metrics      *metrics.Metrics
	docker       docker.IDockerManager
}

func openStore(ctx context.Context, cfg config.StoreConfig) (*store.Store, error) {
	switch cfg.Driver {
	case "sqlite":
		d, err := sqlstore.Open(ctx, sqlstore.DialectSQLite, cfg.DSN)
		if err != nil {
			return nil, err
		}
		return store.New(d), nil
	case "postgres":
		d, err := sqlstore.Open(ctx, sqlstore.DialectPostgres, cfg.DSN)
		if err != nil {
			return nil, err
		}
		return store.New(d), nil
	case "memory":
		return store.New(memory.New()), nil
	}
	return nil, fmt.Errorf("\"%s\" is not a valid store driver", cfg.Driver)
}

func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load(viper.GetViper())
	if err != nil {
		return nil, err
	}
	st, err := openStore(ctx, cfg.Store)
	if err != nil {
		return nil, err
	}
	archive, err := cloud.NewArchiveStore(cfg)
	if err != nil {
		return nil, err
	}

	dockerManager := docker.NewDockerManager()
	chainClient := chain.NewRESTClient(cfg.Chain.GatewayURL, cfg.Chain.Timeout)
	deps := &fabric.Deps{
		Config: cfg,
		Store:  st,
		Identity: identity.NewService(identity.Options{
			CryptoPath:      cfg.CryptoPath,
			AffiliationRoot: cfg.Identity.AffiliationRoot,
			Wait: core.WaitOptions{
				Delay:    cfg.Wait.Delay,
				Interval: cfg.Wait.Interval,
				Timeout:  cfg.Wait.Timeout,
			},
			RequestTimeout: cfg.HTTP.RequestTimeout,
		}),
		Dialer:  transport.NewDialer(cfg, dockerManager),
		Chain:   chainClient,
		Genesis: fabric.NewConfigtxgenRunner(dockerManager),
	}
	if archive != nil {
		deps.Archive = archive
	}

	var m *metrics.Metrics
	if cfg.MetricsEnabled {
		m = metrics.New()
	}
	services := fabric.NewServices(deps)

	a := &app{
		cfg:      cfg,
		store:    st,
		services: services,
		metrics:  m,
		docker:   dockerManager,
		chaincodes: &chaincode.Manager{
			Store:      st,
			Chain:      chainClient,
			TLSEnabled: cfg.TLSEnabled,
			Metrics:    m,
		},
		orchestrator: &orchestrator.Orchestrator{
			Config:   cfg,
			Store:    st,
			Services: services,
			Actions:  action.NewDefaultRegistry(services, st, m),
			Metrics:  m,
		},
	}
	if cfg.Cloud.ImageID != "" {
		provider, err := cloud.NewEC2Provider(cfg.Cloud)
		if err != nil {
			return nil, err
		}
		a.orchestrator.Allocator = &cloud.Allocator{Store: st, Provider: provider, Cloud: cfg.Cloud}
	}
	return a, nil
}

// checkDocker fails early when nodes would be started on a local docker
// daemon that cannot be reached.
func (a *app) checkDocker(ctx context.Context) error {
	if a.cfg.IsRemote() {
		return nil
	}
	return a.docker.CheckDockerConfig(ctx)
}

func (a *app) Close() {
	if err := a.store.Close(); err != nil {
		logger.Warn(fmt.Sprintf("closing store: %s", err))
	}
}
