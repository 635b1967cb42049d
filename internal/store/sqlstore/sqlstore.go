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

// Package sqlstore is a Driver over database/sql. It keeps every collection
// in one "documents" table and runs on sqlite (modernc.org/sqlite) or
// postgres (pgx).
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hyperledger/leizu/internal/errdefs"
	"github.com/hyperledger/leizu/internal/store"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" driver
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

const (
	DialectSQLite   = "sqlite"
	DialectPostgres = "postgres"
)

var sqlOpen = sql.Open

type Driver struct {
	db      *sql.DB
	dialect string
}

// Open connects to dsn and creates the documents table when missing. For
// sqlite an empty dsn opens a private in-memory database.
func Open(ctx context.Context, dialect, dsn string) (*Driver, error) {
	var db *sql.DB
	var err error
	switch dialect {
	case DialectSQLite:
		if dsn == "" {
			dsn = ":memory:"
		} else if !strings.HasPrefix(dsn, "file:") && !strings.HasPrefix(dsn, ":memory:") {
			if err := os.MkdirAll(filepath.Dir(dsn), 0o750); err != nil {
				return nil, fmt.Errorf("create dirs: %w", err)
			}
		}
		db, err = sqlOpen("sqlite", dsn)
		if err == nil {
			// one connection keeps a :memory: database alive and serializes writers
			db.SetMaxOpenConns(1)
		}
	case DialectPostgres:
		db, err = sqlOpen("pgx", dsn)
	default:
		return nil, errdefs.Invalidf("unsupported sql dialect %s", dialect)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", dialect, err)
	}
	d := &Driver{db: db, dialect: dialect}
	if err := d.migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return d, nil
}

func (d *Driver) migrate(ctx context.Context) error {
	seq := "seq INTEGER PRIMARY KEY AUTOINCREMENT"
	if d.dialect == DialectPostgres {
		seq = "seq BIGSERIAL PRIMARY KEY"
	}
	statements := []string{
		`CREATE TABLE IF NOT EXISTS documents (
			` + seq + `,
			collection TEXT NOT NULL,
			id TEXT NOT NULL,
			consortium_id TEXT NOT NULL DEFAULT '',
			parent_id TEXT NOT NULL DEFAULT '',
			name TEXT NOT NULL DEFAULT '',
			unique_key TEXT,
			doc TEXT NOT NULL,
			UNIQUE (collection, id)
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS documents_unique_key ON documents (collection, unique_key)`,
		`CREATE INDEX IF NOT EXISTS documents_consortium ON documents (collection, consortium_id)`,
	}
	for _, stmt := range statements {
		if _, err := d.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate documents table: %w", err)
		}
	}
	return nil
}

// DB exposes the underlying sql.DB for tests.
func (d *Driver) DB() *sql.DB { return d.db }

func (d *Driver) Close() error {
	return d.db.Close()
}

// rebind turns ? placeholders into $n for postgres.
func (d *Driver) rebind(query string) string {
	if d.dialect != DialectPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			fmt.Fprintf(&b, "$%d", n)
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		return liteErr.Code()&0xff == sqlite3.SQLITE_CONSTRAINT
	}
	return false
}

func nullable(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

func (d *Driver) insert(ctx context.Context, q queryer, docs []*store.Document) error {
	for _, doc := range docs {
		_, err := q.ExecContext(ctx, d.rebind(`INSERT INTO documents (collection, id, consortium_id, parent_id, name, unique_key, doc) VALUES (?, ?, ?, ?, ?, ?, ?)`),
			doc.Collection, doc.ID, doc.ConsortiumID, doc.ParentID, doc.Name, nullable(doc.UniqueKey), string(doc.Data))
		if err != nil {
			if isUniqueViolation(err) {
				return errdefs.Conflictf("%s %s", doc.Collection, doc.ID)
			}
			return fmt.Errorf("insert %s %s: %w", doc.Collection, doc.ID, err)
		}
	}
	return nil
}

func (d *Driver) inTx(ctx context.Context, fn func(tx *sql.Tx) error) (retErr error) {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if retErr != nil {
			_ = tx.Rollback()
		}
	}()
	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

func (d *Driver) Insert(ctx context.Context, docs ...*store.Document) error {
	return d.inTx(ctx, func(tx *sql.Tx) error {
		return d.insert(ctx, tx, docs)
	})
}

const selectColumns = `SELECT collection, id, consortium_id, parent_id, name, COALESCE(unique_key, ''), doc FROM documents`

func scan(rows *sql.Rows) ([]*store.Document, error) {
	defer rows.Close()
	docs := []*store.Document{}
	for rows.Next() {
		var doc store.Document
		var data string
		if err := rows.Scan(&doc.Collection, &doc.ID, &doc.ConsortiumID, &doc.ParentID, &doc.Name, &doc.UniqueKey, &data); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		doc.Data = []byte(data)
		docs = append(docs, &doc)
	}
	return docs, rows.Err()
}

func (d *Driver) get(ctx context.Context, q queryer, collection, id string, forUpdate bool) (*store.Document, error) {
	query := selectColumns + ` WHERE collection = ? AND id = ?`
	if forUpdate && d.dialect == DialectPostgres {
		query += ` FOR UPDATE`
	}
	rows, err := q.QueryContext(ctx, d.rebind(query), collection, id)
	if err != nil {
		return nil, err
	}
	docs, err := scan(rows)
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, errdefs.NotFoundf("%s %s", collection, id)
	}
	return docs[0], nil
}

func (d *Driver) Get(ctx context.Context, collection, id string) (*store.Document, error) {
	return d.get(ctx, d.db, collection, id, false)
}

func where(collection string, filter store.Filter) (string, []interface{}) {
	clauses := []string{"collection = ?"}
	args := []interface{}{collection}
	if filter.ConsortiumID != "" {
		clauses = append(clauses, "consortium_id = ?")
		args = append(args, filter.ConsortiumID)
	}
	if filter.ParentID != "" {
		clauses = append(clauses, "parent_id = ?")
		args = append(args, filter.ParentID)
	}
	if filter.Name != "" {
		clauses = append(clauses, "name = ?")
		args = append(args, filter.Name)
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

func (d *Driver) Find(ctx context.Context, collection string, filter store.Filter) ([]*store.Document, error) {
	clause, args := where(collection, filter)
	rows, err := d.db.QueryContext(ctx, d.rebind(selectColumns+clause+` ORDER BY seq`), args...)
	if err != nil {
		return nil, err
	}
	return scan(rows)
}

func (d *Driver) Update(ctx context.Context, collection, id string, fn func(doc *store.Document) error) (*store.Document, error) {
	var updated *store.Document
	err := d.inTx(ctx, func(tx *sql.Tx) error {
		doc, err := d.get(ctx, tx, collection, id, true)
		if err != nil {
			return err
		}
		if err := fn(doc); err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, d.rebind(`UPDATE documents SET consortium_id = ?, parent_id = ?, name = ?, unique_key = ?, doc = ? WHERE collection = ? AND id = ?`),
			doc.ConsortiumID, doc.ParentID, doc.Name, nullable(doc.UniqueKey), string(doc.Data), collection, id)
		if err != nil {
			if isUniqueViolation(err) {
				return errdefs.Conflictf("%s %s", collection, doc.UniqueKey)
			}
			return fmt.Errorf("update %s %s: %w", collection, id, err)
		}
		doc.Collection = collection
		doc.ID = id
		updated = doc
		return nil
	})
	return updated, err
}

func (d *Driver) Delete(ctx context.Context, collection, id string) error {
	res, err := d.db.ExecContext(ctx, d.rebind(`DELETE FROM documents WHERE collection = ? AND id = ?`), collection, id)
	if err != nil {
		return fmt.Errorf("delete %s %s: %w", collection, id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return errdefs.NotFoundf("%s %s", collection, id)
	}
	return nil
}

func (d *Driver) InsertWithLimit(ctx context.Context, filter store.Filter, limit int, docs ...*store.Document) error {
	if len(docs) == 0 {
		return nil
	}
	collection := docs[0].Collection
	return d.inTx(ctx, func(tx *sql.Tx) error {
		if d.dialect == DialectPostgres {
			// row locks cannot see rows that do not exist yet
			if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, collection+"/"+filter.ConsortiumID); err != nil {
				return err
			}
		}
		clause, args := where(collection, filter)
		var held int
		if err := tx.QueryRowContext(ctx, d.rebind(`SELECT COUNT(*) FROM documents`+clause), args...).Scan(&held); err != nil {
			return err
		}
		if held+len(docs) > limit {
			return errdefs.QuotaExceededf("%d held, %d requested, limit %d", held, len(docs), limit)
		}
		return d.insert(ctx, tx, docs)
	})
}
