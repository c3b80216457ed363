// Package ingest turns uploaded translation files into typed rows and
// key/text mappings.
package ingest

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/japaniel/tarjama/pkg/store"
)

// Pair is one key/text entry of a translation file.
type Pair struct {
	Key  string
	Text string
}

// Mapping is a key -> text translation file in document order.
// Nested objects are flattened into dotted keys ("menu.file.open").
type Mapping []Pair

// Index returns the mapping as a plain map.
func (m Mapping) Index() map[string]string {
	idx := make(map[string]string, len(m))
	for _, p := range m {
		idx[p.Key] = p.Text
	}
	return idx
}

// UnmarshalJSON decodes a JSON object keeping key order.
func (m *Mapping) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*m = nil
		return nil
	}
	out, err := decodeMapping(json.NewDecoder(bytes.NewReader(data)))
	if err != nil {
		return err
	}
	*m = out
	return nil
}

// DecodeMapping reads a JSON object of key -> text.
func DecodeMapping(r io.Reader, source string) (Mapping, error) {
	m, err := decodeMapping(json.NewDecoder(r))
	if err != nil {
		return nil, &ParseError{Source: source, Err: err}
	}
	return m, nil
}

// LoadMappingFile reads a JSON translation file from disk.
func LoadMappingFile(path string) (Mapping, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return DecodeMapping(f, path)
}

func decodeMapping(dec *json.Decoder) (Mapping, error) {
	dec.UseNumber()
	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("read document: %w", err)
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, errors.New("expected a JSON object of key to text")
	}

	b := &mappingBuilder{out: Mapping{}, pos: make(map[string]int)}
	if err := b.readObject(dec, ""); err != nil {
		return nil, err
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, errors.New("unexpected data after JSON object")
	}
	return b.out, nil
}

type mappingBuilder struct {
	out Mapping
	pos map[string]int
}

// add stores text under key. A repeated key keeps its first position and
// takes the later text.
func (b *mappingBuilder) add(key, text string) {
	if i, ok := b.pos[key]; ok {
		b.out[i].Text = text
		return
	}
	b.pos[key] = len(b.out)
	b.out = append(b.out, Pair{Key: key, Text: text})
}

// readObject consumes object members up to and including the closing brace.
func (b *mappingBuilder) readObject(dec *json.Decoder, prefix string) error {
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		name, ok := tok.(string)
		if !ok {
			return fmt.Errorf("unexpected token %v", tok)
		}
		key := name
		if prefix != "" {
			key = prefix + "." + name
		}

		tok, err = dec.Token()
		if err != nil {
			return err
		}
		switch v := tok.(type) {
		case json.Delim:
			if v != '{' {
				return fmt.Errorf("key %q: arrays are not supported", key)
			}
			if err := b.readObject(dec, key); err != nil {
				return err
			}
		case string:
			b.add(key, v)
		case json.Number:
			b.add(key, v.String())
		case bool:
			b.add(key, fmt.Sprint(v))
		case nil:
			b.add(key, "")
		default:
			return fmt.Errorf("key %q: unexpected value %v", key, v)
		}
	}
	// closing brace
	if _, err := dec.Token(); err != nil {
		return err
	}
	return nil
}

// ParseTags splits a comma separated tag list.
func ParseTags(s string) []string {
	if strings.TrimSpace(s) == "" {
		return []string{}
	}
	return store.NormalizeTags(strings.Split(s, ","))
}
