package tabular

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// DelimiterForPath picks the cell delimiter from the file extension:
// tab for .tsv, comma otherwise.
func DelimiterForPath(path string) rune {
	if strings.EqualFold(filepath.Ext(path), ".tsv") {
		return '\t'
	}
	return ','
}

// ReadFile loads a delimited file into a table, choosing the delimiter
// from the extension.
func ReadFile(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open records file: %w", err)
	}
	defer f.Close()

	t, err := Read(f, DelimiterForPath(path))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", filepath.Base(path), err)
	}
	return t, nil
}

// Read parses delimited content. The first line names the columns; every
// following line becomes one record. Short lines leave trailing cells empty.
func Read(r io.Reader, delimiter rune) (*Table, error) {
	cr := csv.NewReader(r)
	cr.Comma = delimiter
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err == io.EOF {
		return New(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	t := New(header...)
	if err := t.Validate(); err != nil {
		return nil, fmt.Errorf("header: %w", err)
	}
	for {
		cells, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row %d: %w", t.Len()+1, err)
		}
		rec := make(Record, len(header))
		for i, c := range header {
			if i < len(cells) {
				rec[c] = cells[i]
			}
		}
		t.rows = append(t.rows, rec)
	}
	return t, nil
}

// WriteFile stores the table at path, creating parent directories and
// choosing the delimiter from the extension.
func (t *Table) WriteFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create records directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create records file: %w", err)
	}
	if err := t.Write(f, DelimiterForPath(path)); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	return f.Close()
}

// Write emits the header line followed by one line per record, in column
// order. Cells a record lacks are written as empty strings.
func (t *Table) Write(w io.Writer, delimiter rune) error {
	if err := t.Validate(); err != nil {
		return err
	}
	cw := csv.NewWriter(w)
	cw.Comma = delimiter

	if err := cw.Write(t.columns); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	row := make([]string, len(t.columns))
	for i, rec := range t.rows {
		for j, c := range t.columns {
			row[j] = rec[c]
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write row %d: %w", i+1, err)
		}
	}
	cw.Flush()
	return cw.Error()
}
