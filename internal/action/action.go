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

// Package action holds the named units of work that provisioning flows are
// composed of. Actions are looked up by a (resource, verb) pair in a
// Registry and receive their parameters through a Context.
package action

import (
	"context"
	"fmt"
	"sync"

	"github.com/hyperledger/leizu/internal/errdefs"
)

const (
	ResourceCA      = "ca"
	ResourcePeer    = "peer"
	ResourceOrderer = "orderer"
	ResourceKafka   = "kafka"
	ResourceSidecar = "sidecar"
	ResourceChannel = "channel"
	ResourceRequest = "request"
)

const (
	VerbProvision = "provision"
	VerbRollback  = "rollback"
	VerbCreate    = "create"
	VerbJoin      = "join"
)

const (
	KeyParams    = "params"
	KeyRequestID = "requestId"
)

// Action is a stateless operation. Everything it needs arrives in the
// Context, which is sealed by the time Execute runs.
type Action interface {
	Execute(ctx context.Context, c *Context) (interface{}, error)
}

// Func adapts a plain function to Action.
type Func func(ctx context.Context, c *Context) (interface{}, error)

func (f Func) Execute(ctx context.Context, c *Context) (interface{}, error) {
	return f(ctx, c)
}

// Context is an ordered, write-once key/value map.
type Context struct {
	mux    sync.RWMutex
	keys   []string
	values map[string]interface{}
	sealed bool
}

func NewContext() *Context {
	return &Context{values: map[string]interface{}{}}
}

// WithParams returns a context holding params under KeyParams.
func WithParams(params interface{}) *Context {
	c := NewContext()
	c.Set(KeyParams, params)
	return c
}

// Set stores a value. Rewriting a key, or writing to a sealed context, is a
// programming error and panics.
func (c *Context) Set(key string, value interface{}) {
	c.mux.Lock()
	defer c.mux.Unlock()
	if c.sealed {
		panic(fmt.Sprintf("action context is sealed, cannot set '%s'", key))
	}
	if _, ok := c.values[key]; ok {
		panic(fmt.Sprintf("action context key '%s' is already set", key))
	}
	c.keys = append(c.keys, key)
	c.values[key] = value
}

func (c *Context) Get(key string) (interface{}, bool) {
	c.mux.RLock()
	defer c.mux.RUnlock()
	v, ok := c.values[key]
	return v, ok
}

// Keys returns the keys in insertion order.
func (c *Context) Keys() []string {
	c.mux.RLock()
	defer c.mux.RUnlock()
	return append([]string{}, c.keys...)
}

func (c *Context) Seal() {
	c.mux.Lock()
	c.sealed = true
	c.mux.Unlock()
}

func (c *Context) Sealed() bool {
	c.mux.RLock()
	defer c.mux.RUnlock()
	return c.sealed
}

// Value fetches key as a T. A missing key or a value of another type is
// Invalid.
func Value[T any](c *Context, key string) (T, error) {
	var zero T
	v, ok := c.Get(key)
	if !ok {
		return zero, errdefs.Invalidf("action context has no '%s'", key)
	}
	t, ok := v.(T)
	if !ok {
		return zero, errdefs.Invalidf("action context '%s' holds %T, expected %T", key, v, zero)
	}
	return t, nil
}
