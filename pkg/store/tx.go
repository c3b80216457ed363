package store

// Tx is a working copy of the records handed to Store.Update callbacks.
type Tx struct {
	records []Record
	index   map[string]int
	english map[string]int // folded english -> first position, built lazily
	version int64
	dirty   bool
}

// Version is the version stamped on records written through tx.
func (tx *Tx) Version() int64 { return tx.version }

// Get returns the record stored under key.
func (tx *Tx) Get(key string) (Record, bool) {
	i, ok := tx.index[key]
	if !ok {
		return Record{}, false
	}
	return tx.records[i].clone(), true
}

// FindByEnglish returns the first record whose english text matches text
// ignoring case.
func (tx *Tx) FindByEnglish(text string) (Record, bool) {
	if tx.english == nil {
		tx.english = make(map[string]int, len(tx.records))
		for i, r := range tx.records {
			f := FoldText(r.English)
			if _, ok := tx.english[f]; !ok {
				tx.english[f] = i
			}
		}
	}
	i, ok := tx.english[FoldText(text)]
	if !ok {
		return Record{}, false
	}
	return tx.records[i].clone(), true
}

// Put stores r under r.Key, replacing an existing record in place or
// appending a new one. Tags are normalised and the version is set to the
// transaction version.
func (tx *Tx) Put(r Record) error {
	if err := validate(r.Key, r.English); err != nil {
		return err
	}
	r = r.clone()
	r.Tags = NormalizeTags(r.Tags)
	r.Version = tx.version

	if i, ok := tx.index[r.Key]; ok {
		if !SameText(tx.records[i].English, r.English) {
			tx.english = nil
		}
		tx.records[i] = r
	} else {
		tx.index[r.Key] = len(tx.records)
		tx.records = append(tx.records, r)
		if tx.english != nil {
			f := FoldText(r.English)
			if _, ok := tx.english[f]; !ok {
				tx.english[f] = len(tx.records) - 1
			}
		}
	}
	tx.dirty = true
	return nil
}

// Delete removes the record stored under key and reports whether one
// existed.
func (tx *Tx) Delete(key string) bool {
	i, ok := tx.index[key]
	if !ok {
		return false
	}
	tx.records = append(tx.records[:i], tx.records[i+1:]...)
	delete(tx.index, key)
	for k, pos := range tx.index {
		if pos > i {
			tx.index[k] = pos - 1
		}
	}
	tx.english = nil
	tx.dirty = true
	return true
}
