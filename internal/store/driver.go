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

// Package store is the resource lifecycle store. Every entity is kept as a
// JSON document in a Driver, next to the handful of index columns the
// repositories query by.
package store

import "context"

// Document is the unit a Driver persists. Data holds the JSON encoding of the
// entity; the other fields are copies of entity fields used for lookups.
type Document struct {
	Collection   string
	ID           string
	ConsortiumID string
	ParentID     string
	Name         string
	// UniqueKey is empty when the document has no uniqueness constraint beyond
	// its id. Two documents of a collection never share a non empty key.
	UniqueKey string
	Data      []byte
}

// Filter selects documents of one collection. Empty fields match anything.
type Filter struct {
	ConsortiumID string
	ParentID     string
	Name         string
}

func (f Filter) Matches(d *Document) bool {
	return (f.ConsortiumID == "" || f.ConsortiumID == d.ConsortiumID) &&
		(f.ParentID == "" || f.ParentID == d.ParentID) &&
		(f.Name == "" || f.Name == d.Name)
}

// Driver is implemented by the memory and SQL backends.
//
// Find returns documents in insertion order. Update applies fn to the current
// document and stores the result in a single atomic step; an error from fn
// leaves the stored document untouched. InsertWithLimit inserts docs only if
// the number of documents matching filter plus len(docs) stays within limit,
// and does so as one transaction.
type Driver interface {
	Insert(ctx context.Context, docs ...*Document) error
	Get(ctx context.Context, collection, id string) (*Document, error)
	Find(ctx context.Context, collection string, filter Filter) ([]*Document, error)
	Update(ctx context.Context, collection, id string, fn func(doc *Document) error) (*Document, error)
	Delete(ctx context.Context, collection, id string) error
	InsertWithLimit(ctx context.Context, filter Filter, limit int, docs ...*Document) error
	Close() error
}
