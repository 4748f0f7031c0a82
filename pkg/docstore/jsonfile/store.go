// Package jsonfile keeps each collection in one JSON file under a data
// directory. The process that opens the directory is its only writer: Update
// calls are serialised and every file is replaced through a temp file and an
// atomic rename, so a crash never leaves a half-written collection behind.
// An Update touching several collections is not atomic across them; see
// commit.
package jsonfile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/dmehra2102/boutique-orders/pkg/docstore"
)

const outboxFile = "outbox.jsonl"

type collectionFile struct {
	SchemaVersion int                          `json:"schema_version"`
	Documents     map[string]docstore.Envelope `json:"documents"`
}

type Store struct {
	log *slog.Logger
	dir string
	mu  sync.Mutex
	now func() time.Time
}

func Open(log *slog.Logger, dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, &docstore.PersistenceError{Op: "open", Collection: dir, Err: err}
	}
	return &Store{log: log, dir: dir, now: time.Now}, nil
}

func (s *Store) Close() error { return nil }

func (s *Store) Get(ctx context.Context, collection, key string, dst any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	cf, err := s.read(collection)
	if err != nil {
		return err
	}
	return decode(cf, collection, key, dst)
}

func (s *Store) List(ctx context.Context, collection string, fn func(key string, raw []byte) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	cf, err := s.read(collection)
	s.mu.Unlock()
	if err != nil {
		return err
	}
	return each(cf, collection, fn)
}

// Update runs fn against a staged copy of the collections it touches and
// writes the dirty ones back when fn returns nil. fn must not call back into
// the Store itself.
func (s *Store) Update(ctx context.Context, fn func(tx docstore.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	t := &tx{store: s, staged: map[string]*collectionFile{}, dirty: map[string]bool{}}
	if err := fn(t); err != nil {
		return err
	}
	return s.commit(t)
}

// commit writes every dirty collection to a synced temp file first and only
// then renames them into place, so an encode or write failure changes
// nothing. The renames themselves are atomic one file at a time: a failure
// between two of them leaves the earlier collections committed. Events are
// appended only after every rename succeeded.
func (s *Store) commit(t *tx) error {
	names := make([]string, 0, len(t.dirty))
	for name := range t.dirty {
		names = append(names, name)
	}
	sort.Strings(names)

	staged := make(map[string]string, len(names))
	discard := func() {
		for _, tmp := range staged {
			_ = os.Remove(tmp)
		}
	}
	for _, name := range names {
		tmp, err := s.stage(name, t.staged[name])
		if err != nil {
			discard()
			return err
		}
		staged[name] = tmp
	}
	for _, name := range names {
		if err := os.Rename(staged[name], s.path(name)); err != nil {
			discard()
			return &docstore.PersistenceError{Op: "rename", Collection: name, Err: err}
		}
		delete(staged, name)
	}

	if len(t.events) > 0 {
		if err := s.appendEvents(t.events); err != nil {
			return err
		}
	}
	s.log.Debug("docstore commit", "collections", names, "events", len(t.events))
	return nil
}

func (s *Store) path(collection string) string {
	return filepath.Join(s.dir, collection+".json")
}

// read returns an empty collection when the file does not exist yet; any
// other failure is surfaced.
func (s *Store) read(collection string) (*collectionFile, error) {
	data, err := os.ReadFile(s.path(collection))
	if errors.Is(err, fs.ErrNotExist) {
		return &collectionFile{SchemaVersion: docstore.SchemaVersion, Documents: map[string]docstore.Envelope{}}, nil
	}
	if err != nil {
		return nil, &docstore.PersistenceError{Op: "read", Collection: collection, Err: err}
	}

	var cf collectionFile
	if err := json.Unmarshal(data, &cf); err != nil {
		return nil, &docstore.PersistenceError{Op: "decode", Collection: collection, Err: err}
	}
	if cf.Documents == nil {
		cf.Documents = map[string]docstore.Envelope{}
	}
	return &cf, nil
}

// stage writes cf to a synced temp file beside the collection and returns
// its name.
func (s *Store) stage(collection string, cf *collectionFile) (string, error) {
	cf.SchemaVersion = docstore.SchemaVersion
	data, err := json.MarshalIndent(cf, "", "  ")
	if err != nil {
		return "", &docstore.PersistenceError{Op: "encode", Collection: collection, Err: err}
	}

	tmp, err := os.CreateTemp(s.dir, collection+".json.tmp-*")
	if err != nil {
		return "", &docstore.PersistenceError{Op: "write", Collection: collection, Err: err}
	}
	tmpName := tmp.Name()
	cleanup := func(err error) (string, error) {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return "", &docstore.PersistenceError{Op: "write", Collection: collection, Err: err}
	}

	if _, err := tmp.Write(data); err != nil {
		return cleanup(err)
	}
	if err := tmp.Sync(); err != nil {
		return cleanup(err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return "", &docstore.PersistenceError{Op: "write", Collection: collection, Err: err}
	}
	return tmpName, nil
}

type outboxLine struct {
	AggregateType string            `json:"aggregate_type"`
	AggregateID   string            `json:"aggregate_id"`
	Type          string            `json:"type"`
	Payload       json.RawMessage   `json:"payload"`
	Headers       map[string]string `json:"headers,omitempty"`
	Traceparent   string            `json:"traceparent,omitempty"`
	CreatedAt     time.Time         `json:"created_at"`
}

func (s *Store) appendEvents(events []docstore.Event) error {
	f, err := os.OpenFile(filepath.Join(s.dir, outboxFile), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return &docstore.PersistenceError{Op: "append", Collection: "outbox", Err: err}
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	for _, ev := range events {
		line := outboxLine{
			AggregateType: ev.AggregateType,
			AggregateID:   ev.AggregateID,
			Type:          ev.Type,
			Payload:       ev.Payload,
			Headers:       ev.Headers,
			Traceparent:   ev.Traceparent,
			CreatedAt:     s.now().UTC(),
		}
		if err := enc.Encode(line); err != nil {
			return &docstore.PersistenceError{Op: "append", Collection: "outbox", Key: ev.AggregateID, Err: err}
		}
	}
	return f.Sync()
}

type tx struct {
	store  *Store
	staged map[string]*collectionFile
	dirty  map[string]bool
	events []docstore.Event
}

func (t *tx) collection(name string) (*collectionFile, error) {
	if cf, ok := t.staged[name]; ok {
		return cf, nil
	}
	cf, err := t.store.read(name)
	if err != nil {
		return nil, err
	}
	t.staged[name] = cf
	return cf, nil
}

func (t *tx) Get(ctx context.Context, collection, key string, dst any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	cf, err := t.collection(collection)
	if err != nil {
		return err
	}
	return decode(cf, collection, key, dst)
}

func (t *tx) List(ctx context.Context, collection string, fn func(key string, raw []byte) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	cf, err := t.collection(collection)
	if err != nil {
		return err
	}
	return each(cf, collection, fn)
}

func (t *tx) Put(ctx context.Context, collection, key string, v any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	cf, err := t.collection(collection)
	if err != nil {
		return err
	}
	body, err := json.Marshal(v)
	if err != nil {
		return &docstore.PersistenceError{Op: "encode", Collection: collection, Key: key, Err: err}
	}
	cf.Documents[key] = docstore.Envelope{SchemaVersion: docstore.SchemaVersion, Body: body}
	t.dirty[collection] = true
	return nil
}

func (t *tx) Insert(ctx context.Context, collection, key string, v any) error {
	cf, err := t.collection(collection)
	if err != nil {
		return err
	}
	if _, ok := cf.Documents[key]; ok {
		return fmt.Errorf("%s/%s: %w", collection, key, docstore.ErrExists)
	}
	return t.Put(ctx, collection, key, v)
}

func (t *tx) Emit(ctx context.Context, ev docstore.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	t.events = append(t.events, ev)
	return nil
}

func decode(cf *collectionFile, collection, key string, dst any) error {
	env, ok := cf.Documents[key]
	if !ok {
		return fmt.Errorf("%s/%s: %w", collection, key, docstore.ErrAbsent)
	}
	if err := docstore.CheckVersion(collection, key, env.SchemaVersion); err != nil {
		return err
	}
	if err := json.Unmarshal(env.Body, dst); err != nil {
		return &docstore.PersistenceError{Op: "decode", Collection: collection, Key: key, Err: err}
	}
	return nil
}

func each(cf *collectionFile, collection string, fn func(key string, raw []byte) error) error {
	keys := make([]string, 0, len(cf.Documents))
	for k := range cf.Documents {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		env := cf.Documents[k]
		if err := docstore.CheckVersion(collection, k, env.SchemaVersion); err != nil {
			return err
		}
		if err := fn(k, env.Body); err != nil {
			return err
		}
	}
	return nil
}
