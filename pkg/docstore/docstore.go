// Package docstore defines the document store the boutique keeps its state in:
// flat collections of JSON documents addressed by (collection, key), with
// transactional read-modify-write and an outbox for lifecycle events.
package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// SchemaVersion is stamped on every document written by this build.
const SchemaVersion = 1

// ErrAbsent reports a document that does not exist. It is an expected
// condition, unlike a PersistenceError.
var ErrAbsent = errors.New("docstore: document absent")

// ErrExists is returned by Insert when the key is already taken.
var ErrExists = errors.New("docstore: document already exists")

// PersistenceError wraps a failure to read, decode or write a document.
type PersistenceError struct {
	Op         string
	Collection string
	Key        string
	Err        error
}

func (e *PersistenceError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("docstore %s %s: %v", e.Op, e.Collection, e.Err)
	}
	return fmt.Sprintf("docstore %s %s/%s: %v", e.Op, e.Collection, e.Key, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// IsPersistence reports whether err is (or wraps) a PersistenceError.
func IsPersistence(err error) bool {
	var pe *PersistenceError
	return errors.As(err, &pe)
}

// Reader reads documents. Get decodes into dst and returns ErrAbsent when the
// key does not exist.
type Reader interface {
	Get(ctx context.Context, collection, key string, dst any) error
	List(ctx context.Context, collection string, fn func(key string, raw []byte) error) error
}

// Event is a lifecycle notification recorded in the same transaction as the
// documents it describes.
type Event struct {
	AggregateType string
	AggregateID   string
	Type          string
	Payload       []byte
	Headers       map[string]string
	Traceparent   string
}

// Tx is a read-modify-write unit. Writes become visible only if the function
// passed to Store.Update returns nil.
type Tx interface {
	Reader
	Put(ctx context.Context, collection, key string, v any) error
	Insert(ctx context.Context, collection, key string, v any) error
	Emit(ctx context.Context, ev Event) error
}

type Store interface {
	Reader
	Update(ctx context.Context, fn func(tx Tx) error) error
	Close() error
}

// Envelope is the on-disk shape of a single document.
type Envelope struct {
	SchemaVersion int             `json:"schema_version"`
	Body          json.RawMessage `json:"body"`
}

// CheckVersion rejects documents written by a newer schema.
func CheckVersion(collection, key string, version int) error {
	if version > SchemaVersion {
		return &PersistenceError{
			Op:         "get",
			Collection: collection,
			Key:        key,
			Err:        fmt.Errorf("unsupported schema version %d", version),
		}
	}
	return nil
}
