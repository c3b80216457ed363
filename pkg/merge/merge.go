// Package merge reconciles batches of english/arabic pairs with the
// translation store.
package merge

import (
	"log/slog"

	"github.com/japaniel/tarjama/pkg/ingest"
	"github.com/japaniel/tarjama/pkg/store"
)

// Updater is the part of the store the engine writes through.
type Updater interface {
	Update(fn func(tx *store.Tx) error) (int64, error)
}

// Result lists what a merge wrote.
type Result struct {
	NewRecords []store.Record `json:"newRecords"`
	Duplicates []store.Record `json:"duplicates"`
	Version    int64          `json:"version"`
}

// Engine merges batches into a store.
type Engine struct {
	store  Updater
	logger *slog.Logger
}

// NewEngine returns an engine writing to s. A nil logger uses slog.Default.
func NewEngine(s Updater, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{store: s, logger: logger}
}

// MergeMappings validates and merges a pair of key -> text files.
func (e *Engine) MergeMappings(english, arabic ingest.Mapping, tags []string) (Result, error) {
	entries, err := FromMappings(english, arabic)
	if err != nil {
		return Result{}, err
	}
	return e.Merge(entries, tags)
}

// MergeRows validates and merges spreadsheet rows.
func (e *Engine) MergeRows(rows []ingest.Row, tags []string) (Result, error) {
	entries, err := FromRows(rows)
	if err != nil {
		return Result{}, err
	}
	return e.Merge(entries, tags)
}

// Merge writes entries in one store transaction, so either every entry is
// applied and persisted or none is.
//
// An entry whose english text matches an existing record (ignoring case,
// first match in store order) is a duplicate: the record keeps its key,
// takes the new arabic text and gains tags. An entry whose key already
// exists under a different english text overwrites that record's texts
// and is also reported as a duplicate. Anything else becomes a new record
// carrying tags. Entries are matched only against records that existed
// before the merge, so repeated english text within the batch yields one
// new record per key.
func (e *Engine) Merge(entries []Entry, tags []string) (Result, error) {
	tags = store.NormalizeTags(tags)

	var res Result
	version, err := e.store.Update(func(tx *store.Tx) error {
		b := newBatch(tx, tags)
		for _, en := range entries {
			if err := b.apply(en); err != nil {
				return err
			}
		}
		res = b.result()
		return nil
	})
	if err != nil {
		return Result{}, err
	}
	if res.NewRecords == nil {
		res = Result{NewRecords: []store.Record{}, Duplicates: []store.Record{}}
	}
	res.Version = version

	e.logger.Info("merged translations",
		slog.Int("entries", len(entries)),
		slog.Int("new", len(res.NewRecords)),
		slog.Int("duplicates", len(res.Duplicates)),
		slog.Int64("version", version))
	return res, nil
}

// batch tracks the records one merge has written so far.
type batch struct {
	tx   *store.Tx
	tags []string

	newKeys []string
	isNew   map[string]bool
	dupKeys []string
	isDup   map[string]bool
}

func newBatch(tx *store.Tx, tags []string) *batch {
	return &batch{
		tx:    tx,
		tags:  tags,
		isNew: make(map[string]bool),
		isDup: make(map[string]bool),
	}
}

func (b *batch) apply(en Entry) error {
	// Records created earlier in this batch are not match candidates.
	if rec, ok := b.tx.FindByEnglish(en.English); ok && !b.isNew[rec.Key] {
		rec.Arabic = en.Arabic
		rec.Tags = store.UnionTags(rec.Tags, b.tags)
		if err := b.tx.Put(rec); err != nil {
			return err
		}
		b.markDuplicate(rec.Key)
		return nil
	}

	if rec, ok := b.tx.Get(en.Key); ok {
		rec.English = en.English
		rec.Arabic = en.Arabic
		rec.Tags = store.UnionTags(rec.Tags, b.tags)
		if err := b.tx.Put(rec); err != nil {
			return err
		}
		b.markDuplicate(rec.Key)
		return nil
	}

	rec := store.Record{Key: en.Key, English: en.English, Arabic: en.Arabic, Tags: b.tags}
	if err := b.tx.Put(rec); err != nil {
		return err
	}
	b.isNew[en.Key] = true
	b.newKeys = append(b.newKeys, en.Key)
	return nil
}

// markDuplicate records key as updated by this merge. Records created by
// the same merge stay listed as new.
func (b *batch) markDuplicate(key string) {
	if b.isNew[key] || b.isDup[key] {
		return
	}
	b.isDup[key] = true
	b.dupKeys = append(b.dupKeys, key)
}

// result reads back the final state of every touched record.
func (b *batch) result() Result {
	res := Result{
		NewRecords: make([]store.Record, 0, len(b.newKeys)),
		Duplicates: make([]store.Record, 0, len(b.dupKeys)),
	}
	for _, k := range b.newKeys {
		rec, _ := b.tx.Get(k)
		res.NewRecords = append(res.NewRecords, rec)
	}
	for _, k := range b.dupKeys {
		rec, _ := b.tx.Get(k)
		res.Duplicates = append(res.Duplicates, rec)
	}
	return res
}
