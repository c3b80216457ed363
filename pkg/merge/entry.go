package merge

import (
	"fmt"

	"github.com/japaniel/tarjama/pkg/ingest"
)

// Entry is one validated english/arabic pair waiting to be merged.
type Entry struct {
	Key     string
	English string
	Arabic  string
}

// MissingPairError reports an entry that lacks one side of its pair.
type MissingPairError struct {
	Key   string
	Field string // "english", "arabic" or "key"
	Line  int    // source line for tabular input, 0 otherwise
}

func (e *MissingPairError) Error() string {
	if e.Field == "key" {
		return fmt.Sprintf("row %d: missing key", e.Line)
	}
	return fmt.Sprintf("missing %s translation for key %q", e.Field, e.Key)
}

// FromMappings pairs an english and an arabic translation file by key.
// Entries follow the english file order. Every key must appear in both
// files; english keys are checked first, then arabic ones, and the first
// key without a counterpart is reported.
func FromMappings(english, arabic ingest.Mapping) ([]Entry, error) {
	arIdx := arabic.Index()
	enIdx := english.Index()

	entries := make([]Entry, 0, len(english))
	for _, p := range english {
		ar, ok := arIdx[p.Key]
		if !ok {
			return nil, &MissingPairError{Key: p.Key, Field: "arabic"}
		}
		if p.Text == "" {
			return nil, &MissingPairError{Key: p.Key, Field: "english"}
		}
		entries = append(entries, Entry{Key: p.Key, English: p.Text, Arabic: ar})
	}
	for _, p := range arabic {
		if _, ok := enIdx[p.Key]; !ok {
			return nil, &MissingPairError{Key: p.Key, Field: "english"}
		}
	}
	return entries, nil
}

// FromRows converts spreadsheet rows. Every row needs a key, english and
// arabic text.
func FromRows(rows []ingest.Row) ([]Entry, error) {
	entries := make([]Entry, 0, len(rows))
	for _, r := range rows {
		switch {
		case r.Key == "":
			return nil, &MissingPairError{Field: "key", Line: r.Line}
		case r.English == "":
			return nil, &MissingPairError{Key: r.Key, Field: "english", Line: r.Line}
		case r.Arabic == "":
			return nil, &MissingPairError{Key: r.Key, Field: "arabic", Line: r.Line}
		}
		entries = append(entries, Entry{Key: r.Key, English: r.English, Arabic: r.Arabic})
	}
	return entries, nil
}
