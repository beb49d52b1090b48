package source

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"

	"github.com/JonMunkholm/colegiosrd/internal/core"
)

// DefaultFilePath is where the MINERD export is expected by default.
const DefaultFilePath = "data/minerd-schools.csv"

// ErrEmptyFile is returned for a file without a header row.
var ErrEmptyFile = errors.New("empty file")

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// File reads a comma-separated export. The header row names the fields and
// may sit below a few title rows.
type File struct {
	Path string
}

// NewFile returns a File source for path.
func NewFile(path string) *File {
	if path == "" {
		path = DefaultFilePath
	}
	return &File{Path: path}
}

// Exists reports whether the file is present and is a regular file.
func (f *File) Exists() bool {
	info, err := os.Stat(f.Path)
	return err == nil && info.Mode().IsRegular()
}

// FetchRecords parses the whole file. Quoted fields may contain commas.
// Files that are not valid UTF-8 are read as Windows-1252, the encoding
// spreadsheet exports of the extract use.
func (f *File) FetchRecords(ctx context.Context) ([]core.RawRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(f.Path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", f.Path, err)
	}

	data, err = decodeText(data)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", f.Path, err)
	}

	rows, err := parseCSV(data)
	if err != nil {
		return nil, fmt.Errorf("parse %s: invalid csv: %w", f.Path, err)
	}
	return recordsFromRows(rows)
}

// decodeText strips a UTF-8 BOM and transcodes non-UTF-8 input.
func decodeText(data []byte) ([]byte, error) {
	data = bytes.TrimPrefix(data, utf8BOM)
	if utf8.Valid(data) {
		return data, nil
	}
	return charmap.Windows1252.NewDecoder().Bytes(data)
}

func parseCSV(data []byte) ([][]string, error) {
	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	return r.ReadAll()
}

// maxHeaderSearchRows bounds how far down a spreadsheet export may put its
// header below title rows.
const maxHeaderSearchRows = 10

// headerKeys are the columns that identify the header row.
var headerKeys = []string{core.FieldMinerdCode, core.FieldName}

// recordsFromRows maps data rows onto the header. Missing trailing cells
// become empty strings; blank rows are dropped.
func recordsFromRows(rows [][]string) ([]core.RawRecord, error) {
	if len(rows) == 0 {
		return nil, ErrEmptyFile
	}

	at := findHeaderRow(rows)
	header := normalizeHeader(rows[at])

	records := make([]core.RawRecord, 0, len(rows)-at-1)
	for _, row := range rows[at+1:] {
		if isBlank(row) {
			continue
		}
		rec := make(core.RawRecord, len(header))
		for i, field := range header {
			if field == "" {
				continue
			}
			value := ""
			if i < len(row) {
				value = strings.TrimSpace(row[i])
			}
			rec[field] = value
		}
		records = append(records, normalizeNumeric(rec))
	}
	return records, nil
}

// findHeaderRow returns the first row within maxHeaderSearchRows that names
// every header key, or 0 when none does.
func findHeaderRow(rows [][]string) int {
	limit := min(len(rows), maxHeaderSearchRows)
	for i := 0; i < limit; i++ {
		if hasColumns(normalizeHeader(rows[i]), headerKeys) {
			return i
		}
	}
	return 0
}

func normalizeHeader(row []string) []string {
	header := make([]string, len(row))
	for i, h := range row {
		header[i] = strings.ToLower(strings.TrimSpace(h))
	}
	return header
}

func hasColumns(header, required []string) bool {
	for _, want := range required {
		if !slices.Contains(header, want) {
			return false
		}
	}
	return true
}
