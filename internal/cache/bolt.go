package cache

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	gocache "github.com/patrickmn/go-cache"
	bolt "go.etcd.io/bbolt"
)

var summariesBucket = []byte("summaries")

// BoltStore persists summaries in a bbolt database with an in-process
// read-through layer in front of it, so repeated lookups of the same
// fingerprint within a run stay off disk.
type BoltStore struct {
	db  *bolt.DB
	mem *gocache.Cache
}

// OpenBolt opens (or creates) the summary cache database at path.
func OpenBolt(path string) (*BoltStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open cache database %s: %w", path, err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(summariesBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize cache database: %w", err)
	}

	return &BoltStore{
		db:  db,
		mem: gocache.New(10*time.Minute, 20*time.Minute),
	}, nil
}

func (s *BoltStore) Get(fingerprint string) (Entry, bool, error) {
	if cached, found := s.mem.Get(fingerprint); found {
		return cached.(Entry), true, nil
	}

	var entry Entry
	found := false
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(summariesBucket).Get([]byte(fingerprint))
		if data == nil {
			return nil
		}
		if err := json.Unmarshal(data, &entry); err != nil {
			return fmt.Errorf("corrupt cache entry for %s: %w", fingerprint, err)
		}
		found = true
		return nil
	})
	if err != nil {
		return Entry{}, false, err
	}
	if found {
		s.mem.Set(fingerprint, entry, gocache.DefaultExpiration)
	}
	return entry, found, nil
}

func (s *BoltStore) Put(fingerprint, summary string) error {
	entry := Entry{Summary: summary, GeneratedAt: time.Now().UTC()}

	err := s.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(summariesBucket)
		if existing := bucket.Get([]byte(fingerprint)); existing != nil {
			var prior Entry
			if err := json.Unmarshal(existing, &prior); err != nil {
				return fmt.Errorf("corrupt cache entry for %s: %w", fingerprint, err)
			}
			if prior.Summary == summary {
				return nil
			}
			return &ConsistencyError{Fingerprint: fingerprint}
		}

		data, err := json.Marshal(entry)
		if err != nil {
			return err
		}
		return bucket.Put([]byte(fingerprint), data)
	})
	if err != nil {
		return err
	}

	s.mem.Set(fingerprint, entry, gocache.DefaultExpiration)
	return nil
}

func (s *BoltStore) Prune(live map[string]bool) (int, error) {
	removed := 0
	err := s.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(summariesBucket)
		cursor := bucket.Cursor()

		stale := make([][]byte, 0)
		for k, _ := cursor.First(); k != nil; k, _ = cursor.Next() {
			if !live[string(k)] {
				key := make([]byte, len(k))
				copy(key, k)
				stale = append(stale, key)
			}
		}
		for _, k := range stale {
			if err := bucket.Delete(k); err != nil {
				return err
			}
			s.mem.Delete(string(k))
			removed++
		}
		return nil
	})
	return removed, err
}

func (s *BoltStore) Close() error {
	return s.db.Close()
}
