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

// Package memory is a Driver that keeps every document in process memory.
// It backs tests and single-shot CLI runs.
package memory

import (
	"context"
	"sync"

	"github.com/hyperledger/leizu/internal/errdefs"
	"github.com/hyperledger/leizu/internal/store"
)

type collection struct {
	order  []string
	docs   map[string]*store.Document
	unique map[string]string
}

type Driver struct {
	mux         sync.Mutex
	collections map[string]*collection
}

func New() *Driver {
	return &Driver{collections: map[string]*collection{}}
}

func copyDoc(d *store.Document) *store.Document {
	c := *d
	c.Data = append([]byte(nil), d.Data...)
	return &c
}

func (m *Driver) collection(name string) *collection {
	c, ok := m.collections[name]
	if !ok {
		c = &collection{docs: map[string]*store.Document{}, unique: map[string]string{}}
		m.collections[name] = c
	}
	return c
}

func (m *Driver) checkInsert(docs []*store.Document) error {
	seenIDs := map[string]bool{}
	seenKeys := map[string]bool{}
	for _, d := range docs {
		c := m.collection(d.Collection)
		if _, exists := c.docs[d.ID]; exists || seenIDs[d.Collection+"/"+d.ID] {
			return errdefs.Conflictf("%s %s", d.Collection, d.ID)
		}
		seenIDs[d.Collection+"/"+d.ID] = true
		if d.UniqueKey != "" {
			if _, exists := c.unique[d.UniqueKey]; exists || seenKeys[d.Collection+"/"+d.UniqueKey] {
				return errdefs.Conflictf("%s %s", d.Collection, d.UniqueKey)
			}
			seenKeys[d.Collection+"/"+d.UniqueKey] = true
		}
	}
	return nil
}

func (m *Driver) insert(docs []*store.Document) {
	for _, d := range docs {
		c := m.collection(d.Collection)
		c.docs[d.ID] = copyDoc(d)
		c.order = append(c.order, d.ID)
		if d.UniqueKey != "" {
			c.unique[d.UniqueKey] = d.ID
		}
	}
}

func (m *Driver) Insert(ctx context.Context, docs ...*store.Document) error {
	m.mux.Lock()
	defer m.mux.Unlock()
	if err := m.checkInsert(docs); err != nil {
		return err
	}
	m.insert(docs)
	return nil
}

func (m *Driver) Get(ctx context.Context, collection, id string) (*store.Document, error) {
	m.mux.Lock()
	defer m.mux.Unlock()
	d, ok := m.collection(collection).docs[id]
	if !ok {
		return nil, errdefs.NotFoundf("%s %s", collection, id)
	}
	return copyDoc(d), nil
}

func (m *Driver) find(collection string, filter store.Filter) []*store.Document {
	c := m.collection(collection)
	result := []*store.Document{}
	for _, id := range c.order {
		if d := c.docs[id]; filter.Matches(d) {
			result = append(result, copyDoc(d))
		}
	}
	return result
}

func (m *Driver) Find(ctx context.Context, collection string, filter store.Filter) ([]*store.Document, error) {
	m.mux.Lock()
	defer m.mux.Unlock()
	return m.find(collection, filter), nil
}

func (m *Driver) Update(ctx context.Context, collection, id string, fn func(doc *store.Document) error) (*store.Document, error) {
	m.mux.Lock()
	defer m.mux.Unlock()
	c := m.collection(collection)
	current, ok := c.docs[id]
	if !ok {
		return nil, errdefs.NotFoundf("%s %s", collection, id)
	}
	next := copyDoc(current)
	if err := fn(next); err != nil {
		return nil, err
	}
	next.Collection = collection
	next.ID = id
	if next.UniqueKey != current.UniqueKey && next.UniqueKey != "" {
		if _, exists := c.unique[next.UniqueKey]; exists {
			return nil, errdefs.Conflictf("%s %s", collection, next.UniqueKey)
		}
	}
	if current.UniqueKey != "" {
		delete(c.unique, current.UniqueKey)
	}
	if next.UniqueKey != "" {
		c.unique[next.UniqueKey] = id
	}
	c.docs[id] = next
	return copyDoc(next), nil
}

func (m *Driver) Delete(ctx context.Context, collection, id string) error {
	m.mux.Lock()
	defer m.mux.Unlock()
	c := m.collection(collection)
	d, ok := c.docs[id]
	if !ok {
		return errdefs.NotFoundf("%s %s", collection, id)
	}
	delete(c.docs, id)
	if d.UniqueKey != "" {
		delete(c.unique, d.UniqueKey)
	}
	for i, oid := range c.order {
		if oid == id {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
	return nil
}

func (m *Driver) InsertWithLimit(ctx context.Context, filter store.Filter, limit int, docs ...*store.Document) error {
	if len(docs) == 0 {
		return nil
	}
	m.mux.Lock()
	defer m.mux.Unlock()
	held := len(m.find(docs[0].Collection, filter))
	if held+len(docs) > limit {
		return errdefs.QuotaExceededf("%d held, %d requested, limit %d", held, len(docs), limit)
	}
	if err := m.checkInsert(docs); err != nil {
		return err
	}
	m.insert(docs)
	return nil
}

func (m *Driver) Close() error {
	return nil
}
