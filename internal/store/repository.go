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

package store

import (
	"context"
	"encoding/json"

	"github.com/hyperledger/leizu/internal/errdefs"
)

// Repository maps one entity type onto a collection of documents.
type Repository[T any] struct {
	driver     Driver
	collection string
	label      string
	index      func(*T) Document
}

func newRepository[T any](driver Driver, collection, label string, index func(*T) Document) *Repository[T] {
	return &Repository[T]{driver: driver, collection: collection, label: label, index: index}
}

func (r *Repository[T]) document(v *T) (*Document, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	doc := r.index(v)
	doc.Collection = r.collection
	doc.Data = data
	return &doc, nil
}

func (r *Repository[T]) decode(doc *Document) (*T, error) {
	var v T
	if err := json.Unmarshal(doc.Data, &v); err != nil {
		return nil, errdefs.Fatalf("corrupt %s %s: %s", r.label, doc.ID, err)
	}
	return &v, nil
}

// Create stores v. A duplicate id or unique key is a Conflict.
func (r *Repository[T]) Create(ctx context.Context, v *T) error {
	doc, err := r.document(v)
	if err != nil {
		return err
	}
	if err := r.driver.Insert(ctx, doc); err != nil {
		if errdefs.IsConflict(err) {
			return errdefs.Conflictf("%s %s already exists", r.label, doc.Name)
		}
		return err
	}
	return nil
}

func (r *Repository[T]) Get(ctx context.Context, id string) (*T, error) {
	doc, err := r.driver.Get(ctx, r.collection, id)
	if err != nil {
		if errdefs.IsNotFound(err) {
			return nil, errdefs.NotFoundf("%s %s", r.label, id)
		}
		return nil, err
	}
	return r.decode(doc)
}

func (r *Repository[T]) Find(ctx context.Context, filter Filter) ([]*T, error) {
	docs, err := r.driver.Find(ctx, r.collection, filter)
	if err != nil {
		return nil, err
	}
	result := make([]*T, 0, len(docs))
	for _, doc := range docs {
		v, err := r.decode(doc)
		if err != nil {
			return nil, err
		}
		result = append(result, v)
	}
	return result, nil
}

// First returns the earliest document matching filter, or NotFound.
func (r *Repository[T]) First(ctx context.Context, filter Filter) (*T, error) {
	found, err := r.Find(ctx, filter)
	if err != nil {
		return nil, err
	}
	if len(found) == 0 {
		return nil, errdefs.NotFoundf("%s matching %+v", r.label, filter)
	}
	return found[0], nil
}

// Update loads the entity, applies fn and stores the result atomically.
func (r *Repository[T]) Update(ctx context.Context, id string, fn func(v *T) error) (*T, error) {
	var updated *T
	found := false
	_, err := r.driver.Update(ctx, r.collection, id, func(doc *Document) error {
		found = true
		v, err := r.decode(doc)
		if err != nil {
			return err
		}
		if err := fn(v); err != nil {
			return err
		}
		next, err := r.document(v)
		if err != nil {
			return err
		}
		next.ID = doc.ID
		*doc = *next
		updated = v
		return nil
	})
	if err != nil {
		if !found && errdefs.IsNotFound(err) {
			return nil, errdefs.NotFoundf("%s %s", r.label, id)
		}
		return nil, err
	}
	return updated, nil
}

func (r *Repository[T]) Delete(ctx context.Context, id string) error {
	if err := r.driver.Delete(ctx, r.collection, id); err != nil {
		if errdefs.IsNotFound(err) {
			return errdefs.NotFoundf("%s %s", r.label, id)
		}
		return err
	}
	return nil
}
