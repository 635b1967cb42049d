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

package sqlstore

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/hyperledger/leizu/internal/errdefs"
	"github.com/hyperledger/leizu/internal/store"
	"github.com/hyperledger/leizu/internal/store/storetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSQLiteDriver(t *testing.T) {
	storetest.RunDriverTests(t, func(t *testing.T) store.Driver {
		d, err := Open(context.Background(), DialectSQLite, filepath.Join(t.TempDir(), "leizu.db"))
		require.NoError(t, err)
		return d
	})
}

func TestSQLiteInMemory(t *testing.T) {
	d, err := Open(context.Background(), DialectSQLite, "")
	require.NoError(t, err)
	defer d.Close()
	ctx := context.Background()
	require.NoError(t, d.Insert(ctx, &store.Document{Collection: "c", ID: "1", Data: []byte(`{}`)}))
	got, err := d.Get(ctx, "c", "1")
	require.NoError(t, err)
	assert.Equal(t, "{}", string(got.Data))
}

func TestOpenUnknownDialect(t *testing.T) {
	_, err := Open(context.Background(), "oracle", "")
	assert.ErrorIs(t, err, errdefs.ErrInvalid)
}

func TestRebind(t *testing.T) {
	d := &Driver{dialect: DialectPostgres}
	assert.Equal(t, "SELECT * FROM documents WHERE collection = $1 AND id = $2", d.rebind("SELECT * FROM documents WHERE collection = ? AND id = ?"))
	d.dialect = DialectSQLite
	assert.Equal(t, "id = ?", d.rebind("id = ?"))
}

func TestWhere(t *testing.T) {
	clause, args := where("nodes", store.Filter{ConsortiumID: "c1", Name: "peer0"})
	assert.Equal(t, " WHERE collection = ? AND consortium_id = ? AND name = ?", clause)
	assert.Equal(t, []interface{}{"nodes", "c1", "peer0"}, args)
}
