// Package cache is a small JSON key/value cache on Badger used for
// read-through lookups of derived user state (groups and permissions).
package cache

import (
	"encoding/json"
	"errors"
	"strings"
	"time"

	badger "github.com/dgraph-io/badger/v4"
)

var errNotOpened = errors.New("cache: not opened")

// Store wraps a Badger database. An empty directory keeps everything in memory.
type Store struct {
	db  *badger.DB
	ttl time.Duration
}

// Open opens the cache under dir, or in memory when dir is empty.
// ttl is applied to every Set that does not pass its own.
func Open(dir string, ttl time.Duration) (*Store, error) {
	opts := badger.DefaultOptions(strings.TrimSpace(dir)).WithLogger(nil)
	if strings.TrimSpace(dir) == "" {
		opts = opts.WithInMemory(true)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}
	return &Store{db: db, ttl: ttl}, nil
}

// Close releases the database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

// Get decodes the value under key into dst. The bool is false on a miss.
func (s *Store) Get(key string, dst any) (bool, error) {
	if s == nil || s.db == nil {
		return false, errNotOpened
	}
	found := false
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return nil
			}
			return err
		}
		found = true
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, dst)
		})
	})
	if err != nil {
		return false, err
	}
	return found, nil
}

// Set stores v as JSON under key. A zero ttl uses the store default;
// a negative ttl stores without expiry.
func (s *Store) Set(key string, v any, ttl time.Duration) error {
	if s == nil || s.db == nil {
		return errNotOpened
	}
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if ttl == 0 {
		ttl = s.ttl
	}
	return s.db.Update(func(txn *badger.Txn) error {
		e := badger.NewEntry([]byte(key), data)
		if ttl > 0 {
			e = e.WithTTL(ttl)
		}
		return txn.SetEntry(e)
	})
}

// Delete removes the given keys. Missing keys are ignored.
func (s *Store) Delete(keys ...string) error {
	if s == nil || s.db == nil {
		return errNotOpened
	}
	if len(keys) == 0 {
		return nil
	}
	return s.db.Update(func(txn *badger.Txn) error {
		for _, k := range keys {
			if err := txn.Delete([]byte(k)); err != nil {
				return err
			}
		}
		return nil
	})
}

// DeletePrefix drops every key starting with prefix.
func (s *Store) DeletePrefix(prefix string) error {
	if s == nil || s.db == nil {
		return errNotOpened
	}
	return s.db.DropPrefix([]byte(prefix))
}
