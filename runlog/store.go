// Package runlog keeps a local history of completed runs for audit.
package runlog

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"path/filepath"
	"time"

	"go.etcd.io/bbolt"
)

var bucketRuns = []byte("runs")

// Record is one completed run's summary. Audit data only; nothing in
// the pipeline reads it back.
type Record struct {
	StartedAt       time.Time `json:"started_at"`
	FinishedAt      time.Time `json:"finished_at"`
	AppCode         string    `json:"app_code"`
	Segment         string    `json:"segment"`
	Month           string    `json:"month"`
	ResourceRows    int       `json:"resource_rows"`
	ServiceRows     int       `json:"service_rows"`
	LookupEntries   int       `json:"lookup_entries"`
	LookupMatches   int       `json:"lookup_matches"`
	CacheHits       int       `json:"cache_hits"`
	LookupCalls     int       `json:"lookup_calls"`
	ResourcesPath   string    `json:"resources_path"`
	ServicesPath    string    `json:"services_path"`
	DegradedFetches []string  `json:"degraded_fetches,omitempty"`
}

// Store is an append-only bbolt log of run records.
type Store struct {
	db *bbolt.DB
}

// Open opens (or creates) the run log under dir.
func Open(dir string) (*Store, error) {
	db, err := bbolt.Open(filepath.Join(dir, "kartta.db"), 0o600, nil)
	if err != nil {
		return nil, fmt.Errorf("open run log: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketRuns)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init run log: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Append stores one run record keyed by a monotonic sequence number.
func (s *Store) Append(rec Record) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketRuns)

		seq, err := bucket.NextSequence()
		if err != nil {
			return fmt.Errorf("next sequence: %w", err)
		}

		key := make([]byte, 8)
		binary.BigEndian.PutUint64(key, seq)

		value, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("marshal run record: %w", err)
		}
		return bucket.Put(key, value)
	})
}

// List returns the most recent records, newest first, at most limit.
// limit <= 0 returns everything.
func (s *Store) List(limit int) ([]Record, error) {
	var records []Record

	err := s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket(bucketRuns).Cursor()
		for k, v := c.Last(); k != nil; k, v = c.Prev() {
			if limit > 0 && len(records) >= limit {
				break
			}
			var rec Record
			if err := json.Unmarshal(v, &rec); err != nil {
				return fmt.Errorf("unmarshal run record: %w", err)
			}
			records = append(records, rec)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}
