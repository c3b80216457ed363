package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Format selects the encoding of a snapshot file.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// FormatForPath picks the snapshot format from the file extension.
// Anything other than .yaml or .yml is JSON.
func FormatForPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

// EncodeSnapshot renders records as a {data: [...]} document.
func EncodeSnapshot(records []Record, format Format) ([]byte, error) {
	if records == nil {
		records = []Record{}
	}
	snap := Snapshot{Data: records}
	switch format {
	case FormatYAML:
		var buf bytes.Buffer
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(snap); err != nil {
			return nil, err
		}
		if err := enc.Close(); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	case FormatJSON:
		return json.MarshalIndent(snap, "", "  ")
	default:
		return nil, fmt.Errorf("unknown snapshot format %q", format)
	}
}

// DecodeSnapshot parses a {data: [...]} document.
func DecodeSnapshot(data []byte, format Format) ([]Record, error) {
	var snap Snapshot
	switch format {
	case FormatYAML:
		if err := yaml.Unmarshal(data, &snap); err != nil {
			return nil, err
		}
	case FormatJSON:
		if err := json.Unmarshal(data, &snap); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unknown snapshot format %q", format)
	}
	return snap.Data, nil
}

// FileSnapshot persists the store as a single file that is rewritten
// wholesale on every save.
type FileSnapshot struct {
	path   string
	format Format
}

// NewFileSnapshot returns a persister for path, encoded according to its
// extension.
func NewFileSnapshot(path string) *FileSnapshot {
	return &FileSnapshot{path: path, format: FormatForPath(path)}
}

// Path returns the snapshot file location.
func (f *FileSnapshot) Path() string { return f.path }

// Load reads the snapshot. A missing file is an empty store.
func (f *FileSnapshot) Load() ([]Record, error) {
	data, err := os.ReadFile(f.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}
	records, err := DecodeSnapshot(data, f.format)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", f.path, err)
	}
	return records, nil
}

// Save writes records to a temporary file next to the snapshot and renames
// it into place.
func (f *FileSnapshot) Save(records []Record) error {
	data, err := EncodeSnapshot(records, f.format)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}

	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create snapshot dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(f.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp snapshot: %w", err)
	}
	defer os.Remove(tmp.Name()) // no-op once renamed

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp snapshot: %w", err)
	}
	if err := os.Rename(tmp.Name(), f.path); err != nil {
		return fmt.Errorf("replace snapshot: %w", err)
	}
	return nil
}
