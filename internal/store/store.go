// Package store provides a thin bbolt wrapper for aasun's local data store.
//
// The store is an explicit archive, not a transparent HTTP cache. The device
// only keeps 31 days of flash history; anything worth keeping longer is
// written here by `--store` flags and read back by analysis commands.
//
// Buckets:
//
//	history   decoded power histories keyed by YYYY-MM-DD
//	energy    energy counter sets keyed by <scope>:<YYYY-MM-DD>
//	names     the last series names read from the device
//	_meta     schema version and created_at
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/derickschaefer/aasun/internal/model"
)

// Current schema version. Bump when bucket layout or key format changes.
const schemaVersion = 1

var (
	bucketHistory  = []byte("history")
	bucketEnergy   = []byte("energy")
	bucketNames    = []byte("names")
	bucketInternal = []byte("_meta")

	namesKey = []byte("current")
)

// AllBuckets lists every user-facing bucket for stats and clear operations.
var AllBuckets = []string{"history", "energy", "names"}

// ErrEmptyKey is returned when a record without a date is stored.
var ErrEmptyKey = errors.New("store: record has no date key")

// Store wraps a bbolt database.
type Store struct {
	db *bolt.DB
}

// Open opens (or creates) the bbolt database at path.
// Parent directories are created automatically.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("creating db directory: %w", err)
	}

	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening db %s: %w", path, err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migration: %w", err)
	}
	return s, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the filesystem path of the open database.
func (s *Store) Path() string {
	return s.db.Path()
}

// SchemaVersion reports the schema version recorded in _meta.
func (s *Store) SchemaVersion() (string, error) {
	var v string
	err := s.db.View(func(tx *bolt.Tx) error {
		v = string(tx.Bucket(bucketInternal).Get([]byte("schema_version")))
		return nil
	})
	return v, err
}

// ─── Migrations ───────────────────────────────────────────────────────────────

func (s *Store) migrate() error {
	return s.db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{bucketHistory, bucketEnergy, bucketNames, bucketInternal} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return fmt.Errorf("creating bucket %s: %w", name, err)
			}
		}

		meta := tx.Bucket(bucketInternal)
		if meta.Get([]byte("schema_version")) == nil {
			if err := meta.Put([]byte("schema_version"), []byte(fmt.Sprintf("%d", schemaVersion))); err != nil {
				return err
			}
			if err := meta.Put([]byte("created_at"), []byte(time.Now().UTC().Format(time.RFC3339))); err != nil {
				return err
			}
		}
		return nil
	})
}

// ─── History ──────────────────────────────────────────────────────────────────

// PutHistory stores a decoded history under its date key, replacing any
// previous entry for the same day. Empty histories are rejected.
func (s *Store) PutHistory(h model.History) error {
	if h.DateKey == "" || h.Empty() {
		return ErrEmptyKey
	}
	if h.FetchedAt.IsZero() {
		h.FetchedAt = time.Now().UTC()
	}
	b, err := json.Marshal(h)
	if err != nil {
		return fmt.Errorf("encoding history: %w", err)
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketHistory).Put([]byte(h.DateKey), b)
	})
}

// GetHistory retrieves a history by YYYY-MM-DD key.
// Returns (h, true, nil) if found, (zero, false, nil) if not found.
func (s *Store) GetHistory(dateKey string) (model.History, bool, error) {
	var h model.History
	var found bool
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketHistory).Get([]byte(dateKey))
		if v == nil {
			return nil
		}
		found = true
		return json.Unmarshal(v, &h)
	})
	if err != nil {
		return model.History{}, false, fmt.Errorf("decoding history %s: %w", dateKey, err)
	}
	return h, found, nil
}

// ListHistory returns a summary of every stored history, oldest first.
// Keys sort chronologically because they are zero-padded dates.
func (s *Store) ListHistory() ([]model.HistoryEntry, error) {
	var entries []model.HistoryEntry
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketHistory).ForEach(func(k, v []byte) error {
			var h model.History
			if err := json.Unmarshal(v, &h); err != nil {
				return fmt.Errorf("decoding history %s: %w", k, err)
			}
			entries = append(entries, model.HistoryEntry{
				DateKey:   string(k),
				Date:      h.Date,
				Selector:  h.Selector,
				Samples:   len(h.Samples),
				FetchedAt: h.FetchedAt,
			})
			return nil
		})
	})
	return entries, err
}

// DeleteHistory removes one stored day. Deleting a missing key is not an error.
func (s *Store) DeleteHistory(dateKey string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketHistory).Delete([]byte(dateKey))
	})
}

// ─── Energy ───────────────────────────────────────────────────────────────────

// EnergyKey builds the canonical key for an energy entry: <scope>:<date>.
func EnergyKey(scope model.EnergyScope, dateKey string) string {
	return string(scope) + ":" + dateKey
}

// PutEnergy stores an energy counter set under EnergyKey.
func (s *Store) PutEnergy(e model.Energy) error {
	if e.DateKey == "" {
		return ErrEmptyKey
	}
	if e.FetchedAt.IsZero() {
		e.FetchedAt = time.Now().UTC()
	}
	b, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encoding energy: %w", err)
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketEnergy).Put([]byte(EnergyKey(e.Scope, e.DateKey)), b)
	})
}

// GetEnergy retrieves an energy set by scope and date key.
func (s *Store) GetEnergy(scope model.EnergyScope, dateKey string) (model.Energy, bool, error) {
	var e model.Energy
	var found bool
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketEnergy).Get([]byte(EnergyKey(scope, dateKey)))
		if v == nil {
			return nil
		}
		found = true
		return json.Unmarshal(v, &e)
	})
	return e, found, err
}

// ListEnergy returns stored energy sets for one scope, oldest first.
// Pass scope="" to list every scope.
func (s *Store) ListEnergy(scope model.EnergyScope) ([]model.Energy, error) {
	prefix := []byte{}
	if scope != "" {
		prefix = []byte(string(scope) + ":")
	}
	var out []model.Energy
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketEnergy).Cursor()
		for k, v := c.Seek(prefix); k != nil && strings.HasPrefix(string(k), string(prefix)); k, v = c.Next() {
			var e model.Energy
			if err := json.Unmarshal(v, &e); err != nil {
				return fmt.Errorf("decoding energy %s: %w", k, err)
			}
			out = append(out, e)
		}
		return nil
	})
	if scope == "" {
		sort.SliceStable(out, func(i, j int) bool { return out[i].DateKey < out[j].DateKey })
	}
	return out, err
}

// ─── Series Names ─────────────────────────────────────────────────────────────

// PutNames stores the series names last read from the device.
func (s *Store) PutNames(names model.SeriesNames) error {
	b, err := json.Marshal(names)
	if err != nil {
		return fmt.Errorf("encoding names: %w", err)
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketNames).Put(namesKey, b)
	})
}

// GetNames returns the stored series names, or the defaults when none
// have been saved.
func (s *Store) GetNames() (model.SeriesNames, bool, error) {
	names := model.DefaultSeriesNames()
	var found bool
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketNames).Get(namesKey)
		if v == nil {
			return nil
		}
		found = true
		return json.Unmarshal(v, &names)
	})
	return names, found, err
}

// ─── Stats & Maintenance ──────────────────────────────────────────────────────

// BucketStats holds row count and byte size for a single bucket.
type BucketStats struct {
	Name  string `json:"name"`
	Count int    `json:"rows"`
	Bytes int64  `json:"bytes"`
}

// Stats returns row counts and approximate sizes for all buckets,
// in AllBuckets order.
func (s *Store) Stats() ([]BucketStats, error) {
	var stats []BucketStats
	err := s.db.View(func(tx *bolt.Tx) error {
		for _, name := range AllBuckets {
			b := tx.Bucket([]byte(name))
			if b == nil {
				continue
			}
			st := BucketStats{Name: name}
			if err := b.ForEach(func(k, v []byte) error {
				st.Count++
				st.Bytes += int64(len(k) + len(v))
				return nil
			}); err != nil {
				return err
			}
			stats = append(stats, st)
		}
		return nil
	})
	return stats, err
}

// ClearBucket deletes all entries in the named bucket.
func (s *Store) ClearBucket(name string) error {
	if !isUserBucket(name) {
		return fmt.Errorf("unknown bucket %q (valid: %s)", name, strings.Join(AllBuckets, ", "))
	}
	bname := []byte(name)
	return s.db.Update(func(tx *bolt.Tx) error {
		if err := tx.DeleteBucket(bname); err != nil {
			return fmt.Errorf("clearing bucket %s: %w", name, err)
		}
		_, err := tx.CreateBucket(bname)
		return err
	})
}

// ClearAll deletes all entries from every user-facing bucket.
func (s *Store) ClearAll() error {
	for _, name := range AllBuckets {
		if err := s.ClearBucket(name); err != nil {
			return err
		}
	}
	return nil
}

// Compact rewrites the database into a temporary file, then replaces the
// original with it and reopens. It returns the file sizes before and after.
// The Store stays usable afterwards.
func (s *Store) Compact() (before, after int64, err error) {
	path := s.Path()
	if fi, err := os.Stat(path); err == nil {
		before = fi.Size()
	}

	tmp := path + ".compact"
	_ = os.Remove(tmp)
	dst, err := bolt.Open(tmp, 0600, &bolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return before, 0, fmt.Errorf("opening %s: %w", tmp, err)
	}
	if err := bolt.Compact(dst, s.db, 1<<20); err != nil {
		dst.Close()
		os.Remove(tmp)
		return before, 0, fmt.Errorf("copying data: %w", err)
	}
	if err := dst.Close(); err != nil {
		os.Remove(tmp)
		return before, 0, err
	}

	if err := s.db.Close(); err != nil {
		return before, 0, fmt.Errorf("closing db: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return before, 0, fmt.Errorf("replacing db: %w", err)
	}
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return before, 0, fmt.Errorf("reopening db: %w", err)
	}
	s.db = db

	if fi, err := os.Stat(path); err == nil {
		after = fi.Size()
	}
	return before, after, nil
}

func isUserBucket(name string) bool {
	for _, b := range AllBuckets {
		if b == name {
			return true
		}
	}
	return false
}
