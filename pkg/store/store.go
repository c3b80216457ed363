// Package store holds the translation records in memory and mirrors every
// committed change to a Persister.
package store

import (
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Persister loads and saves whole snapshots of the store.
type Persister interface {
	Load() ([]Record, error)
	Save(records []Record) error
}

// Store is the authoritative set of translation records.
type Store struct {
	mu          sync.RWMutex
	records     []Record
	index       map[string]int
	persister   Persister
	now         func() time.Time
	lastVersion int64
	logger      *slog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithClock replaces the wall clock used for versions.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithLogger sets the logger used for load diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// Open loads the snapshot held by p. A nil persister gives a store that
// lives in memory only.
func Open(p Persister, opts ...Option) (*Store, error) {
	s := &Store{
		index:     make(map[string]int),
		persister: p,
		now:       time.Now,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if p == nil {
		return s, nil
	}

	loaded, err := p.Load()
	if err != nil {
		return nil, fmt.Errorf("load snapshot: %w", err)
	}
	for _, r := range loaded {
		if err := validate(r.Key, r.English); err != nil {
			s.logger.Warn("skipping invalid record", slog.String("key", r.Key), slog.Any("err", err))
			continue
		}
		if _, dup := s.index[r.Key]; dup {
			s.logger.Warn("skipping duplicate key", slog.String("key", r.Key))
			continue
		}
		r.Tags = NormalizeTags(r.Tags)
		s.index[r.Key] = len(s.records)
		s.records = append(s.records, r)
		if r.Version > s.lastVersion {
			s.lastVersion = r.Version
		}
	}
	return s, nil
}

// Len returns the number of records.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// All returns every record in store order.
func (s *Store) All() []Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneRecords(s.records)
}

// Get returns the record stored under key.
func (s *Store) Get(key string) (Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.index[key]
	if !ok {
		return Record{}, ErrNotFound
	}
	return s.records[i].clone(), nil
}

// Since returns the records whose version is strictly greater than
// minVersion. A non-empty tag further restricts the result to records
// carrying that tag.
func (s *Store) Since(minVersion int64, tag string) []Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []Record{}
	for _, r := range s.records {
		if r.Version <= minVersion {
			continue
		}
		if tag != "" && !r.HasTag(tag) {
			continue
		}
		out = append(out, r.clone())
	}
	return out
}

// FindByEnglish returns the first record, in store order, whose english
// text matches text ignoring case.
func (s *Store) FindByEnglish(text string) (Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	want := FoldText(text)
	for _, r := range s.records {
		if FoldText(r.English) == want {
			return r.clone(), nil
		}
	}
	return Record{}, ErrNotFound
}

// Upsert writes english, arabic and tags under key, replacing any previous
// values, and returns the version stamped on the record.
func (s *Store) Upsert(key, english, arabic string, tags []string) (int64, error) {
	return s.Update(func(tx *Tx) error {
		return tx.Put(Record{Key: key, English: english, Arabic: arabic, Tags: tags})
	})
}

// Delete removes the record stored under key. Deleting a missing key is
// not an error.
func (s *Store) Delete(key string) error {
	_, err := s.Update(func(tx *Tx) error {
		tx.Delete(key)
		return nil
	})
	return err
}

// Update runs fn against a private copy of the records. When fn returns
// nil and changed something, the copy is persisted and replaces the live
// records; otherwise the store is left untouched. The returned version is
// the one stamped on every record fn wrote, or 0 when nothing changed.
func (s *Store) Update(fn func(tx *Tx) error) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &Tx{
		records: cloneRecords(s.records),
		index:   make(map[string]int, len(s.index)),
		version: s.nextVersion(),
	}
	for k, v := range s.index {
		tx.index[k] = v
	}

	if err := fn(tx); err != nil {
		return 0, err
	}
	if !tx.dirty {
		return 0, nil
	}
	if s.persister != nil {
		if err := s.persister.Save(tx.records); err != nil {
			return 0, fmt.Errorf("persist snapshot: %w", err)
		}
	}
	s.records = tx.records
	s.index = tx.index
	s.lastVersion = tx.version
	return tx.version, nil
}

// nextVersion returns the wall-clock second, bumped past the last issued
// version so versions strictly increase across commits.
func (s *Store) nextVersion() int64 {
	v := s.now().Unix()
	if v <= s.lastVersion {
		v = s.lastVersion + 1
	}
	return v
}

func cloneRecords(in []Record) []Record {
	out := make([]Record, len(in))
	for i, r := range in {
		out[i] = r.clone()
	}
	return out
}
