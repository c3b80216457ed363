package ingest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
)

// Row is one line of a tabular translation file.
type Row struct {
	Line    int // 1-based line in the source, header included
	Key     string
	English string
	Arabic  string
}

// Column names expected in the header row.
const (
	ColumnKey     = "key"
	ColumnEnglish = "english"
	ColumnArabic  = "arabic"
)

// ReadSpreadsheet reads rows from the first sheet of an xlsx workbook.
func ReadSpreadsheet(r io.Reader, source string) ([]Row, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, &ParseError{Source: source, Err: err}
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, &ParseError{Source: source, Err: errors.New("workbook has no sheets")}
	}
	table, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, &ParseError{Source: source, Err: fmt.Errorf("read sheet %q: %w", sheets[0], err)}
	}
	rows, err := rowsFromTable(table)
	if err != nil {
		return nil, &ParseError{Source: source, Err: err}
	}
	return rows, nil
}

// ReadCSV reads rows from comma separated text with a header line.
func ReadCSV(r io.Reader, source string) ([]Row, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	table, err := cr.ReadAll()
	if err != nil {
		return nil, &ParseError{Source: source, Err: err}
	}
	rows, err := rowsFromTable(table)
	if err != nil {
		return nil, &ParseError{Source: source, Err: err}
	}
	return rows, nil
}

// IsCSV reports whether a file name looks like CSV rather than a workbook.
func IsCSV(name string) bool {
	return strings.EqualFold(filepath.Ext(name), ".csv")
}

// LoadRowsFile reads a spreadsheet or CSV file from disk.
func LoadRowsFile(path string) ([]Row, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	if IsCSV(path) {
		return ReadCSV(f, path)
	}
	return ReadSpreadsheet(f, path)
}

// rowsFromTable maps the header row onto key/english/arabic columns and
// returns the non-blank rows below it.
func rowsFromTable(table [][]string) ([]Row, error) {
	if len(table) == 0 {
		return nil, errors.New("missing header row")
	}
	cols := map[string]int{}
	for i, name := range table[0] {
		name = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")))
		if _, seen := cols[name]; !seen {
			cols[name] = i
		}
	}
	for _, want := range []string{ColumnKey, ColumnEnglish, ColumnArabic} {
		if _, ok := cols[want]; !ok {
			return nil, fmt.Errorf("header row has no %q column", want)
		}
	}

	cell := func(line []string, name string) string {
		i := cols[name]
		if i >= len(line) {
			return ""
		}
		return strings.TrimSpace(line[i])
	}

	rows := []Row{}
	for n, line := range table[1:] {
		row := Row{
			Line:    n + 2,
			Key:     cell(line, ColumnKey),
			English: cell(line, ColumnEnglish),
			Arabic:  cell(line, ColumnArabic),
		}
		if row.Key == "" && row.English == "" && row.Arabic == "" {
			continue
		}
		rows = append(rows, row)
	}
	return rows, nil
}
