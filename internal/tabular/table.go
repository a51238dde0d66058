// Package tabular reads delimited coordinate tables and turns them into
// point features.
package tabular

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/Tqy43/ZSQL-gis/internal/domain"
)

// Table is a header plus string rows. Rows may be shorter than the header.
type Table struct {
	Header []string
	Rows   [][]string
}

// ReadCSV reads a comma separated table with a header row. A UTF-8 byte
// order mark is stripped and ragged rows are accepted.
func ReadCSV(r io.Reader) (*Table, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	cr.LazyQuotes = true

	recs, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading csv: %w", err)
	}
	if len(recs) == 0 {
		return nil, errors.New("reading csv: empty input")
	}

	header := recs[0]
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}
	return &Table{Header: header, Rows: recs[1:]}, nil
}

// Column returns the index of the named column, or -1.
func (t *Table) Column(name string) int {
	for i, h := range t.Header {
		if h == name {
			return i
		}
	}
	return -1
}

// Cell returns the trimmed cell, or "" when the row is too short.
func (t *Table) Cell(row, col int) string {
	if row < 0 || row >= len(t.Rows) || col < 0 || col >= len(t.Rows[row]) {
		return ""
	}
	return strings.TrimSpace(t.Rows[row][col])
}

// ParseValue infers the scalar type of a cell: integer, float, boolean or
// string. ok is false for empty cells.
func ParseValue(cell string) (domain.Value, bool) {
	s := strings.TrimSpace(cell)
	if s == "" {
		return domain.Value{}, false
	}
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return domain.IntValue(i), true
	}
	if f, ok := parseNumber(s); ok {
		return domain.FloatValue(f), true
	}
	if b, err := strconv.ParseBool(strings.ToLower(s)); err == nil && len(s) > 1 {
		return domain.BoolValue(b), true
	}
	return domain.StringValue(s), true
}

// parseNumber accepts finite decimal numbers only; "NaN" and "Inf" are not
// numbers here.
func parseNumber(s string) (float64, bool) {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}
