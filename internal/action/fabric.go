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

package action

import (
	"context"
	"fmt"

	"github.com/hyperledger/leizu/internal/errdefs"
	"github.com/hyperledger/leizu/internal/fabric"
	"github.com/hyperledger/leizu/internal/log"
	"github.com/hyperledger/leizu/internal/metrics"
	"github.com/hyperledger/leizu/internal/store"
	"github.com/hyperledger/leizu/pkg/types"
)

type KafkaParams struct {
	ConsortiumID string
	Kafka        []*types.HostSpec
	Zookeepers   []*types.HostSpec
}

type SidecarParams struct {
	ConsortiumID string
	Host         *types.HostSpec
}

type ChannelCreateParams struct {
	ConsortiumID string
	Name         string
	OrgIDs       []string
}

type ChannelJoinParams struct {
	ChannelID string
	OrgID     string
}

// NewDefaultRegistry registers every built-in action against the given
// services.
func NewDefaultRegistry(svc *fabric.Services, st *store.Store, m *metrics.Metrics) *Registry {
	r := NewRegistry(m)
	r.Register(ResourceCA, VerbProvision, Func(func(ctx context.Context, c *Context) (interface{}, error) {
		p, err := Value[*fabric.CreateOrganizationRequest](c, KeyParams)
		if err != nil {
			return nil, err
		}
		return svc.Organizations.Create(ctx, p)
	}))
	r.Register(ResourcePeer, VerbProvision, Func(func(ctx context.Context, c *Context) (interface{}, error) {
		p, err := Value[*fabric.CreatePeerRequest](c, KeyParams)
		if err != nil {
			return nil, err
		}
		return svc.Peers.Create(ctx, p)
	}))
	r.Register(ResourceOrderer, VerbProvision, Func(func(ctx context.Context, c *Context) (interface{}, error) {
		p, err := Value[*fabric.StartOrdererRequest](c, KeyParams)
		if err != nil {
			return nil, err
		}
		return svc.Orderers.Start(ctx, p)
	}))
	r.Register(ResourceKafka, VerbProvision, Func(func(ctx context.Context, c *Context) (interface{}, error) {
		p, err := Value[*KafkaParams](c, KeyParams)
		if err != nil {
			return nil, err
		}
		return svc.Kafka.Provision(ctx, p.ConsortiumID, p.Kafka, p.Zookeepers)
	}))
	r.Register(ResourceSidecar, VerbProvision, Func(func(ctx context.Context, c *Context) (interface{}, error) {
		p, err := Value[*SidecarParams](c, KeyParams)
		if err != nil {
			return nil, err
		}
		return nil, svc.Sidecars.Provision(ctx, p.ConsortiumID, p.Host)
	}))
	r.Register(ResourceChannel, VerbCreate, Func(func(ctx context.Context, c *Context) (interface{}, error) {
		p, err := Value[*ChannelCreateParams](c, KeyParams)
		if err != nil {
			return nil, err
		}
		return svc.Channels.Create(ctx, p.ConsortiumID, p.Name, p.OrgIDs)
	}))
	r.Register(ResourceChannel, VerbJoin, Func(func(ctx context.Context, c *Context) (interface{}, error) {
		p, err := Value[*ChannelJoinParams](c, KeyParams)
		if err != nil {
			return nil, err
		}
		return svc.Channels.Join(ctx, p.ChannelID, p.OrgID)
	}))
	r.Register(ResourceRequest, VerbRollback, &rollback{store: st})
	return r
}

// rollback removes the consortium a provisioning request created, with
// everything recorded under it. Containers and cloud instances that were
// already started are left running.
type rollback struct {
	store *store.Store
}

func (a *rollback) Execute(ctx context.Context, c *Context) (interface{}, error) {
	requestID, err := Value[string](c, KeyRequestID)
	if err != nil {
		return nil, err
	}
	consortium, err := a.store.Consortiums.FindByRequestID(ctx, requestID)
	if errdefs.IsNotFound(err) {
		log.LoggerFromContext(ctx).Debug(fmt.Sprintf("request %s left no consortium behind", requestID))
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	log.LoggerFromContext(ctx).Info(fmt.Sprintf("rolling back consortium %s of request %s", consortium.Name, requestID))
	if err := a.store.DeleteConsortium(ctx, consortium.ID); err != nil {
		return nil, err
	}
	return consortium, nil
}

// Rollback builds the context of a (request, rollback) dispatch.
func Rollback(requestID string) *Context {
	c := NewContext()
	c.Set(KeyRequestID, requestID)
	return c
}
