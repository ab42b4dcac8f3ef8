// Package state owns the engine's persistence: a single bolt database
// of JSON-encoded values, bucketed per record kind, plus the in-memory
// LRU caches fronting it.
package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"go.etcd.io/bbolt"
)

var ErrNotFound = errors.New("state: not found")

// Store is the bolt-backed KV layer. Opening a writable store takes a
// file lock, blocking all other writers and readers of the same
// database.
type Store struct {
	db    *bbolt.DB
	path  string
	rOnly bool
}

// Open opens (creating if needed) the database at path. The parent
// directory is created for writable stores.
func Open(path string, readOnly bool) (*Store, error) {
	if !readOnly {
		if err := os.MkdirAll(filepath.Dir(path), 0770); err != nil {
			return nil, err
		}
	}
	db, err := bbolt.Open(path, 0600, &bbolt.Options{ReadOnly: readOnly})
	if err != nil {
		return nil, err
	}
	return &Store{db: db, path: path, rOnly: readOnly}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Path() string {
	return s.path
}

func (s *Store) WriteKV(bucket, key, value []byte) error {
	if key == nil {
		return fmt.Errorf("state: nil key")
	}
	if value == nil {
		return fmt.Errorf("state: nil value")
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists(bucket)
		if err != nil {
			return err
		}
		return b.Put(key, value)
	})
}

func (s *Store) ReadKV(bucket, key []byte) ([]byte, error) {
	var out []byte
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucket)
		if b == nil {
			return ErrNotFound
		}
		// Values returned by Get are only valid in the scope of the
		// transaction.
		got := b.Get(key)
		if got == nil {
			return ErrNotFound
		}
		out = make([]byte, len(got))
		copy(out, got)
		return nil
	})
	return out, err
}

func (s *Store) DeleteKV(bucket, key []byte) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucket)
		if b == nil {
			return nil
		}
		return b.Delete(key)
	})
}

// ForEach visits every key in a bucket. A missing bucket visits
// nothing. The value slice is only valid during the callback.
func (s *Store) ForEach(bucket []byte, fn func(key, value []byte) error) error {
	return s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucket)
		if b == nil {
			return nil
		}
		return b.ForEach(fn)
	})
}

// Count returns the number of keys in a bucket.
func (s *Store) Count(bucket []byte) (int, error) {
	n := 0
	err := s.ForEach(bucket, func(_, _ []byte) error {
		n++
		return nil
	})
	return n, err
}

// DropBucket removes a bucket and everything in it.
func (s *Store) DropBucket(bucket []byte) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		if tx.Bucket(bucket) == nil {
			return nil
		}
		return tx.DeleteBucket(bucket)
	})
}

// PutJSON stores any value JSON-encoded.
func PutJSON[T any](s *Store, bucket []byte, key string, v T) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return s.WriteKV(bucket, []byte(key), data)
}

// GetJSON reads a JSON-encoded value. ErrNotFound when the key or
// bucket is absent.
func GetJSON[T any](s *Store, bucket []byte, key string) (T, error) {
	var v T
	data, err := s.ReadKV(bucket, []byte(key))
	if err != nil {
		return v, err
	}
	if err := json.Unmarshal(data, &v); err != nil {
		return v, err
	}
	return v, nil
}

// AllJSON decodes every value in a bucket.
func AllJSON[T any](s *Store, bucket []byte) ([]T, error) {
	var out []T
	err := s.ForEach(bucket, func(_, value []byte) error {
		var v T
		if err := json.Unmarshal(value, &v); err != nil {
			return err
		}
		out = append(out, v)
		return nil
	})
	return out, err
}
