package bolt

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aretw0/arbor/pkg/domain"
	bolt "go.etcd.io/bbolt"
)

const bucketSessions = "sessions"

// Store implements ports.SessionStore in a bbolt file, one key per host.
type Store struct {
	db *bolt.DB
}

// Open opens (or creates) the database at path.
func Open(path string) (*Store, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open session db %s: %w", path, err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucketSessions))
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize session bucket: %w", err)
	}
	return &Store{db: db}, nil
}

// Put stores or overwrites the record of rec.Host.
func (s *Store) Put(ctx context.Context, rec domain.SessionRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(bucketSessions)).Put([]byte(rec.Host), data)
	})
}

// Get retrieves the record of host.
func (s *Store) Get(ctx context.Context, host string) (domain.SessionRecord, error) {
	var rec domain.SessionRecord
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket([]byte(bucketSessions)).Get([]byte(host))
		if v == nil {
			return domain.ErrSessionNotFound
		}
		return json.Unmarshal(v, &rec)
	})
	return rec, err
}

// Delete removes the record of host.
func (s *Store) Delete(ctx context.Context, host string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(bucketSessions)).Delete([]byte(host))
	})
}

// List returns every stored host in key order.
func (s *Store) List(ctx context.Context) ([]string, error) {
	var hosts []string
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(bucketSessions)).ForEach(func(k, _ []byte) error {
			hosts = append(hosts, string(k))
			return nil
		})
	})
	return hosts, err
}

// Close releases the database file.
func (s *Store) Close() error {
	return s.db.Close()
}
