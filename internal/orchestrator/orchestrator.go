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

// Package orchestrator turns a network request into the ordered set of
// actions that stand a consortium up, and extends running consortia with
// organizations and peers.
package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hyperledger/firefly-common/pkg/fftypes"
	"github.com/hyperledger/leizu/internal/action"
	"github.com/hyperledger/leizu/internal/cloud"
	"github.com/hyperledger/leizu/internal/config"
	"github.com/hyperledger/leizu/internal/constants"
	"github.com/hyperledger/leizu/internal/errdefs"
	"github.com/hyperledger/leizu/internal/fabric"
	"github.com/hyperledger/leizu/internal/log"
	"github.com/hyperledger/leizu/internal/metrics"
	"github.com/hyperledger/leizu/internal/store"
	"github.com/hyperledger/leizu/pkg/types"
	"github.com/pkg/errors"
	"github.com/sourcegraph/conc/pool"
)

// Provisioner is the entry point the CLI and the HTTP API drive.
type Provisioner interface {
	Provision(ctx context.Context, req *types.NetworkRequest) (*types.ProvisioningRequest, error)
	Request(ctx context.Context, id string) (*types.ProvisioningRequest, error)
	AddOrganization(ctx context.Context, consortiumID string, spec *types.OrgSpec) (*types.Organization, error)
	AddPeers(ctx context.Context, orgID string, hosts []*types.HostSpec, channelID string) ([]*types.Node, error)
}

var _ Provisioner = (*Orchestrator)(nil)

type Orchestrator struct {
	Config   *config.Config
	Store    *store.Store
	Services *fabric.Services
	Actions  *action.Registry
	// Allocator is required for cloud mode requests only.
	Allocator *cloud.Allocator
	Metrics   *metrics.Metrics
}

// Provision persists a request for req and runs it to completion. The
// returned request is in its final state; on failure it is returned together
// with the error that stopped the pipeline.
func (o *Orchestrator) Provision(ctx context.Context, req *types.NetworkRequest) (*types.ProvisioningRequest, error) {
	if err := req.Validate(ctx); err != nil {
		return nil, err
	}
	if err := checkChannelOrgs(req); err != nil {
		return nil, err
	}
	snapshot, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}

	r := &types.ProvisioningRequest{
		ID:            fftypes.NewUUID().String(),
		Name:          req.Name,
		Status:        types.RequestStatusPending,
		Configuration: string(snapshot),
		Created:       fftypes.Now(),
	}
	if err := o.Store.Requests.Create(ctx, r); err != nil {
		return nil, err
	}
	o.Metrics.ObserveRequest(types.RequestStatusPending)

	consortium := newConsortium(req, r.ID)
	if err := o.Store.Consortiums.Create(ctx, consortium); err != nil {
		return o.fail(ctx, r, err)
	}
	running, err := o.setStatus(ctx, r.ID, types.RequestStatusRunning, consortium.ID, nil)
	if err != nil {
		return o.fail(ctx, r, err)
	}
	r = running
	if _, err := o.setConsortiumStatus(ctx, consortium.ID, types.RequestStatusRunning); err != nil {
		return o.fail(ctx, r, err)
	}

	start := time.Now()
	log.LoggerFromContext(ctx).Info(fmt.Sprintf("provisioning consortium %s (request %s)", req.Name, r.ID))
	if err := o.run(ctx, consortium, req); err != nil {
		return o.fail(ctx, r, err)
	}

	if _, err := o.setConsortiumStatus(ctx, consortium.ID, types.RequestStatusSuccess); err != nil {
		return o.fail(ctx, r, err)
	}
	done, err := o.setStatus(ctx, r.ID, types.RequestStatusSuccess, "", nil)
	if err != nil {
		return r, err
	}
	r = done
	o.Metrics.ObserveRequest(types.RequestStatusSuccess)
	log.LoggerFromContext(ctx).Info(fmt.Sprintf("consortium %s is up after %s", req.Name, time.Since(start).Round(time.Second)))
	return r, nil
}

func newConsortium(req *types.NetworkRequest, requestID string) *types.Consortium {
	c := &types.Consortium{
		ID:                  fftypes.NewUUID().String(),
		Name:                req.Name,
		Mode:                req.Mode,
		Network:             req.Network,
		FabricVersion:       req.Version,
		Consensus:           req.Consensus,
		NormalInstanceLimit: req.NormalInstanceLimit,
		HighInstanceLimit:   req.HighInstanceLimit,
		Status:              types.RequestStatusPending,
		RequestID:           requestID,
		Created:             fftypes.Now(),
	}
	if c.NormalInstanceLimit <= 0 {
		c.NormalInstanceLimit = constants.DefaultNormalInstanceLimit
	}
	if c.HighInstanceLimit <= 0 {
		c.HighInstanceLimit = constants.DefaultHighInstanceLimit
	}
	if c.Network == "" {
		c.Network = types.CloudNetworkClassics
	}
	return c
}

// checkChannelOrgs rejects channel members that are not peer organizations
// of the request.
func checkChannelOrgs(req *types.NetworkRequest) error {
	names := map[string]bool{}
	for _, org := range req.PeerOrgs {
		names[org.Name] = true
	}
	for _, name := range req.Channel.Orgs {
		if !names[name] {
			return errdefs.Invalidf("channel %s names unknown peer organization '%s'", req.Channel.Name, name)
		}
	}
	if req.Consensus == types.ConsensusKafka && (len(req.Kafka) == 0 || len(req.Zookeeper) == 0) {
		return errdefs.Invalidf("kafka consensus needs at least one kafka broker and one zookeeper")
	}
	return nil
}

// fail marks the request as errored and rolls the consortium back. Rollback
// problems are logged only; cause is what the caller gets.
func (o *Orchestrator) fail(ctx context.Context, r *types.ProvisioningRequest, cause error) (*types.ProvisioningRequest, error) {
	logger := log.LoggerFromContext(ctx)
	logger.Error(errors.Wrapf(cause, "request %s failed", r.ID))
	if _, err := o.Actions.Execute(ctx, action.ResourceRequest, action.VerbRollback, action.Rollback(r.ID)); err != nil {
		logger.Warn(fmt.Sprintf("rollback of request %s failed: %s", r.ID, err))
	}
	updated, err := o.setStatus(ctx, r.ID, types.RequestStatusError, "", cause)
	if err != nil {
		logger.Warn(fmt.Sprintf("recording failure of request %s: %s", r.ID, err))
		r.Status = types.RequestStatusError
		r.Error = cause.Error()
		updated = r
	}
	o.Metrics.ObserveRequest(types.RequestStatusError)
	return updated, cause
}

func (o *Orchestrator) setStatus(ctx context.Context, id string, status types.RequestStatus, consortiumID string, cause error) (*types.ProvisioningRequest, error) {
	return o.Store.Requests.Update(ctx, id, func(r *types.ProvisioningRequest) error {
		r.Status = status
		if consortiumID != "" {
			r.ConsortiumID = consortiumID
		}
		if cause != nil {
			r.Error = cause.Error()
		}
		r.Updated = fftypes.Now()
		return nil
	})
}

func (o *Orchestrator) setConsortiumStatus(ctx context.Context, id string, status types.RequestStatus) (*types.Consortium, error) {
	return o.Store.Consortiums.Update(ctx, id, func(c *types.Consortium) error {
		c.Status = status
		return nil
	})
}

// Request loads a provisioning request by id.
func (o *Orchestrator) Request(ctx context.Context, id string) (*types.ProvisioningRequest, error) {
	return o.Store.Requests.Get(ctx, id)
}

// allocate runs cloud instances for hosts when the consortium lives in the
// cloud. Bare consortia use the addresses they were given.
func (o *Orchestrator) allocate(ctx context.Context, consortium *types.Consortium, hosts []*types.HostSpec) error {
	if consortium.Mode != types.RunModeCloud || len(hosts) == 0 {
		return nil
	}
	if o.Allocator == nil {
		return errdefs.Invalidf("consortium %s runs in the cloud but no cloud provider is configured", consortium.Name)
	}
	return o.Allocator.Allocate(ctx, consortium, hosts)
}

func (o *Orchestrator) execute(ctx context.Context, resource, verb string, params interface{}) (interface{}, error) {
	return o.Actions.Execute(ctx, resource, verb, action.WithParams(params))
}

// fanOut runs fn for every index concurrently and returns the first error
// once all of them are done.
func fanOut(n int, fn func(i int) error) error {
	p := pool.New().WithErrors().WithFirstError()
	for i := 0; i < n; i++ {
		i := i
		p.Go(func() error {
			return fn(i)
		})
	}
	return p.Wait()
}
