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
	"sort"
	"sync"
	"time"

	"github.com/hyperledger/leizu/internal/errdefs"
	"github.com/hyperledger/leizu/internal/log"
	"github.com/hyperledger/leizu/internal/metrics"
)

type Key struct {
	Resource string
	Verb     string
}

func (k Key) String() string {
	return k.Resource + "/" + k.Verb
}

// Registry maps (resource, verb) pairs onto actions.
type Registry struct {
	mux     sync.RWMutex
	actions map[Key]Action
	metrics *metrics.Metrics
}

// NewRegistry returns an empty registry. m may be nil.
func NewRegistry(m *metrics.Metrics) *Registry {
	return &Registry{
		actions: map[Key]Action{},
		metrics: m,
	}
}

// Register adds an action. Registering the same pair twice panics.
func (r *Registry) Register(resource, verb string, a Action) {
	r.mux.Lock()
	defer r.mux.Unlock()
	k := Key{resource, verb}
	if _, ok := r.actions[k]; ok {
		panic(fmt.Sprintf("action %s registered twice", k))
	}
	r.actions[k] = a
}

// Replace swaps the action registered for a pair, returning the previous
// one. The pair must already be registered.
func (r *Registry) Replace(resource, verb string, a Action) (Action, error) {
	r.mux.Lock()
	defer r.mux.Unlock()
	k := Key{resource, verb}
	prev, ok := r.actions[k]
	if !ok {
		return nil, errdefs.Invalidf("unknown action %s", k)
	}
	r.actions[k] = a
	return prev, nil
}

func (r *Registry) Get(resource, verb string) (Action, error) {
	r.mux.RLock()
	defer r.mux.RUnlock()
	a, ok := r.actions[Key{resource, verb}]
	if !ok {
		return nil, errdefs.Invalidf("unknown action %s/%s", resource, verb)
	}
	return a, nil
}

// Keys lists the registered pairs sorted by resource then verb.
func (r *Registry) Keys() []Key {
	r.mux.RLock()
	defer r.mux.RUnlock()
	keys := make([]Key, 0, len(r.actions))
	for k := range r.actions {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Resource != keys[j].Resource {
			return keys[i].Resource < keys[j].Resource
		}
		return keys[i].Verb < keys[j].Verb
	})
	return keys
}

// Execute seals c and runs the action registered for the pair.
func (r *Registry) Execute(ctx context.Context, resource, verb string, c *Context) (interface{}, error) {
	a, err := r.Get(resource, verb)
	if err != nil {
		r.metrics.ObserveAction(resource, verb, err, 0)
		return nil, err
	}
	if c == nil {
		c = NewContext()
	}
	c.Seal()
	l := log.LoggerFromContext(ctx)
	l.Debug(fmt.Sprintf("executing action %s/%s", resource, verb))
	start := time.Now()
	result, err := a.Execute(ctx, c)
	r.metrics.ObserveAction(resource, verb, err, time.Since(start))
	if err != nil {
		l.Debug(fmt.Sprintf("action %s/%s failed: %s", resource, verb, err))
		return nil, err
	}
	l.Debug(fmt.Sprintf("action %s/%s done in %s", resource, verb, time.Since(start).Round(time.Millisecond)))
	return result, nil
}
