package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"
)

// Store names used by the Glean databases
const (
	StoreUserLifetimeMetrics        = "userLifetimeMetrics"
	StorePingLifetimeMetrics        = "pingLifetimeMetrics"
	StoreApplicationLifetimeMetrics = "appLifetimeMetrics"
	StoreEvents                     = "events"
	StorePendingPings               = "pendingPings"
)

// StoreNames lists every store a client opens
var StoreNames = []string{
	StoreUserLifetimeMetrics,
	StorePingLifetimeMetrics,
	StoreApplicationLifetimeMetrics,
	StoreEvents,
	StorePendingPings,
}

// BoltDB owns the database file shared by all named stores
type BoltDB struct {
	db *bolt.DB
}

// OpenBolt opens (or creates) <dataDir>/glean.db
func OpenBolt(dataDir string) (*BoltDB, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	dbPath := filepath.Join(dataDir, "glean.db")

	db, err := bolt.Open(dbPath, 0600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Create buckets
	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range StoreNames {
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", name, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &BoltDB{db: db}, nil
}

// Close closes the database
func (b *BoltDB) Close() error {
	return b.db.Close()
}

// Store returns the named store, creating its bucket if needed
func (b *BoltDB) Store(name string) (*BoltStore, error) {
	err := b.db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(name))
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create bucket %s: %w", name, err)
	}
	return &BoltStore{db: b.db, bucket: []byte(name)}, nil
}

// BoltStore implements Store on a single bbolt bucket.
// The first path element is the bucket key; the rest of the path
// addresses the JSON document stored under that key.
type BoltStore struct {
	db     *bolt.DB
	bucket []byte
}

// Get returns the value at path
func (s *BoltStore) Get(path []string) (any, error) {
	var result any
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(s.bucket)
		if len(path) == 0 {
			all := make(map[string]any)
			err := b.ForEach(func(k, v []byte) error {
				value, err := decode(v)
				if err != nil {
					return fmt.Errorf("failed to decode %s: %w", k, err)
				}
				all[string(k)] = value
				return nil
			})
			result = all
			return err
		}

		data := b.Get([]byte(path[0]))
		if data == nil {
			return nil
		}
		value, err := decode(data)
		if err != nil {
			return fmt.Errorf("failed to decode %s: %w", path[0], err)
		}
		result = getValueFromPath(value, path[1:])
		return nil
	})
	return result, err
}

// Update applies transform at path in a single transaction
func (s *BoltStore) Update(path []string, transform TransformFn) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(s.bucket)
		if len(path) == 0 {
			return s.replaceAll(b, transform)
		}

		key := []byte(path[0])
		var current any
		if data := b.Get(key); data != nil {
			value, err := decode(data)
			if err != nil {
				// Corrupt documents are overwritten
				value = nil
			}
			current = value
		}

		updated, err := updateNestedValue(current, path[1:], transform)
		if err != nil {
			return err
		}
		if isEmpty(updated) {
			return b.Delete(key)
		}
		data, err := json.Marshal(updated)
		if err != nil {
			return err
		}
		return b.Put(key, data)
	})
}

// Delete removes the value at path
func (s *BoltStore) Delete(path []string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		if len(path) == 0 {
			if err := tx.DeleteBucket(s.bucket); err != nil {
				return err
			}
			_, err := tx.CreateBucket(s.bucket)
			return err
		}

		b := tx.Bucket(s.bucket)
		key := []byte(path[0])
		if len(path) == 1 {
			return b.Delete(key)
		}

		data := b.Get(key)
		if data == nil {
			return nil
		}
		current, err := decode(data)
		if err != nil {
			return b.Delete(key)
		}
		updated := deleteNestedValue(current, path[1:])
		if isEmpty(updated) {
			return b.Delete(key)
		}
		encoded, err := json.Marshal(updated)
		if err != nil {
			return err
		}
		return b.Put(key, encoded)
	})
}

func (s *BoltStore) replaceAll(b *bolt.Bucket, transform TransformFn) error {
	all := make(map[string]any)
	err := b.ForEach(func(k, v []byte) error {
		if value, err := decode(v); err == nil {
			all[string(k)] = value
		}
		return nil
	})
	if err != nil {
		return err
	}

	updated, err := normalize(transform(all))
	if err != nil {
		return err
	}
	if updated != nil {
		if _, ok := updated.(map[string]any); !ok {
			return fmt.Errorf("%w: whole-store value must be an object", ErrInvalidPath)
		}
	}

	// Drop every key, then write the new top level
	var keys [][]byte
	if err := b.ForEach(func(k, _ []byte) error {
		keys = append(keys, append([]byte(nil), k...))
		return nil
	}); err != nil {
		return err
	}
	for _, k := range keys {
		if err := b.Delete(k); err != nil {
			return err
		}
	}
	obj, _ := updated.(map[string]any)
	for k, v := range obj {
		data, err := json.Marshal(v)
		if err != nil {
			return err
		}
		if err := b.Put([]byte(k), data); err != nil {
			return err
		}
	}
	return nil
}

func decode(data []byte) (any, error) {
	var value any
	if err := json.Unmarshal(data, &value); err != nil {
		return nil, err
	}
	return value, nil
}

func isEmpty(value any) bool {
	if value == nil {
		return true
	}
	obj, ok := value.(map[string]any)
	return ok && len(obj) == 0
}
