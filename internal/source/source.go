// Package source loads the MINERD school extract for an import run.
//
// Two adapters exist: [File] reads a local comma-separated export and [API]
// queries the datos.gob.do datastore. [Fallback] combines them with the
// pipeline's policy: prefer the file, otherwise make one API call, and
// never fail the run because the source is unavailable.
package source

import (
	"encoding/json"
	"strings"

	"github.com/JonMunkholm/colegiosrd/internal/core"
)

// normalizeNumeric converts numeric text in the count/score fields to
// float64 so both adapters hand the validator the same representation.
// Values that are not numeric are left alone for the validator to reject.
func normalizeNumeric(rec core.RawRecord) core.RawRecord {
	for _, field := range core.NumericFields {
		switch v := rec[field].(type) {
		case string:
			if f, ok := core.ParseNumber(v); ok {
				rec[field] = f
			}
		case json.Number:
			if f, err := v.Float64(); err == nil {
				rec[field] = f
			}
		}
	}
	return rec
}

// isBlank reports whether a CSV row carries no data.
func isBlank(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
