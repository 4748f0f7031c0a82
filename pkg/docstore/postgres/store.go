// Package postgres stores documents in a single table and gives every Update
// a real transaction: documents read inside it are locked with FOR UPDATE and
// emitted events land in the outbox table atomically with the writes.
package postgres

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dmehra2102/boutique-orders/pkg/docstore"
)

//go:embed schema.sql
var schema string

type Store struct {
	log  *slog.Logger
	pool *pgxpool.Pool
}

func NewStore(log *slog.Logger, pool *pgxpool.Pool) *Store {
	return &Store{log: log, pool: pool}
}

// Migrate creates the documents and outbox tables if they are missing.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return &docstore.PersistenceError{Op: "migrate", Collection: "documents", Err: err}
	}
	return nil
}

func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

func (s *Store) Get(ctx context.Context, collection, key string, dst any) error {
	return get(ctx, s.pool, collection, key, dst, false)
}

func (s *Store) List(ctx context.Context, collection string, fn func(key string, raw []byte) error) error {
	return list(ctx, s.pool, collection, fn)
}

func (s *Store) Update(ctx context.Context, fn func(tx docstore.Tx) error) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return &docstore.PersistenceError{Op: "begin", Collection: "documents", Err: err}
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if err := fn(&pgTx{tx: tx, locked: map[[2]string]bool{}}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return &docstore.PersistenceError{Op: "commit", Collection: "documents", Err: err}
	}
	return nil
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

func get(ctx context.Context, q querier, collection, key string, dst any, lock bool) error {
	sql := `SELECT schema_version, body FROM documents WHERE collection=$1 AND key=$2`
	if lock {
		sql += ` FOR UPDATE`
	}

	var version int
	var body []byte
	err := q.QueryRow(ctx, sql, collection, key).Scan(&version, &body)
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s/%s: %w", collection, key, docstore.ErrAbsent)
	}
	if err != nil {
		return &docstore.PersistenceError{Op: "get", Collection: collection, Key: key, Err: err}
	}
	if err := docstore.CheckVersion(collection, key, version); err != nil {
		return err
	}
	return unmarshal(collection, key, body, dst)
}

func list(ctx context.Context, q querier, collection string, fn func(key string, raw []byte) error) error {
	rows, err := q.Query(ctx, `SELECT key, schema_version, body FROM documents WHERE collection=$1 ORDER BY key`, collection)
	if err != nil {
		return &docstore.PersistenceError{Op: "list", Collection: collection, Err: err}
	}
	defer rows.Close()

	type row struct {
		key  string
		body []byte
	}
	var all []row
	for rows.Next() {
		var r row
		var version int
		if err := rows.Scan(&r.key, &version, &r.body); err != nil {
			return &docstore.PersistenceError{Op: "list", Collection: collection, Err: err}
		}
		if err := docstore.CheckVersion(collection, r.key, version); err != nil {
			return err
		}
		all = append(all, r)
	}
	if err := rows.Err(); err != nil {
		return &docstore.PersistenceError{Op: "list", Collection: collection, Err: err}
	}
	rows.Close()

	for _, r := range all {
		if err := fn(r.key, r.body); err != nil {
			return err
		}
	}
	return nil
}

type pgTx struct {
	tx     pgx.Tx
	locked map[[2]string]bool
}

// lock takes a transaction-scoped advisory lock on collection/key. Unlike
// FOR UPDATE it also holds for documents that do not exist yet, so two
// transactions creating the same document run one after the other.
func (t *pgTx) lock(ctx context.Context, collection, key string) error {
	k := [2]string{collection, key}
	if t.locked[k] {
		return nil
	}
	if _, err := t.tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1), hashtext($2))`, collection, key); err != nil {
		return &docstore.PersistenceError{Op: "lock", Collection: collection, Key: key, Err: err}
	}
	t.locked[k] = true
	return nil
}

func (t *pgTx) Get(ctx context.Context, collection, key string, dst any) error {
	if err := t.lock(ctx, collection, key); err != nil {
		return err
	}
	return get(ctx, t.tx, collection, key, dst, true)
}

func (t *pgTx) List(ctx context.Context, collection string, fn func(key string, raw []byte) error) error {
	return list(ctx, t.tx, collection, fn)
}

func (t *pgTx) Put(ctx context.Context, collection, key string, v any) error {
	if err := t.lock(ctx, collection, key); err != nil {
		return err
	}
	body, err := marshal(collection, key, v)
	if err != nil {
		return err
	}
	_, err = t.tx.Exec(ctx, `INSERT INTO documents (collection, key, schema_version, body, updated_at)
			VALUES ($1,$2,$3,$4,now())
			ON CONFLICT (collection, key) DO UPDATE SET schema_version=$3, body=$4, updated_at=now()`,
		collection, key, docstore.SchemaVersion, body)
	if err != nil {
		return &docstore.PersistenceError{Op: "put", Collection: collection, Key: key, Err: err}
	}
	return nil
}

func (t *pgTx) Insert(ctx context.Context, collection, key string, v any) error {
	body, err := marshal(collection, key, v)
	if err != nil {
		return err
	}
	ct, err := t.tx.Exec(ctx, `INSERT INTO documents (collection, key, schema_version, body, updated_at)
			VALUES ($1,$2,$3,$4,now())
			ON CONFLICT (collection, key) DO NOTHING`,
		collection, key, docstore.SchemaVersion, body)
	if err != nil {
		return &docstore.PersistenceError{Op: "insert", Collection: collection, Key: key, Err: err}
	}
	if ct.RowsAffected() == 0 {
		return fmt.Errorf("%s/%s: %w", collection, key, docstore.ErrExists)
	}
	return nil
}

func (t *pgTx) Emit(ctx context.Context, ev docstore.Event) error {
	headers := ev.Headers
	if headers == nil {
		headers = map[string]string{}
	}
	_, err := t.tx.Exec(ctx, `INSERT INTO outbox (aggregate_type, aggregate_id, type, payload, headers, traceparent, status)
			VALUES ($1,$2,$3,$4,$5,$6,'pending')`,
		ev.AggregateType, ev.AggregateID, ev.Type, ev.Payload, headers, ev.Traceparent)
	if err != nil {
		return &docstore.PersistenceError{Op: "emit", Collection: "outbox", Key: ev.AggregateID, Err: err}
	}
	return nil
}
