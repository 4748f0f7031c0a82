package postgres

import (
	"encoding/json"

	"github.com/dmehra2102/boutique-orders/pkg/docstore"
)

func marshal(collection, key string, v any) ([]byte, error) {
	body, err := json.Marshal(v)
	if err != nil {
		return nil, &docstore.PersistenceError{Op: "encode", Collection: collection, Key: key, Err: err}
	}
	return body, nil
}

func unmarshal(collection, key string, body []byte, dst any) error {
	if err := json.Unmarshal(body, dst); err != nil {
		return &docstore.PersistenceError{Op: "decode", Collection: collection, Key: key, Err: err}
	}
	return nil
}
