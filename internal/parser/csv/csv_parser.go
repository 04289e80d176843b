// Package csv turns questionnaire CSV exports into records. Exports arrive
// with a variable number of preamble rows above the real header (title
// blocks, version stamps), so the header position is caller-supplied rather
// than assumed at row 0.
package csv

import (
	"encoding/csv"
	"fmt"
	"io"
	"log"
	"strings"

	"qimport/pkg/records"
)

// Options configures the parser. Zero values get sensible defaults.
type Options struct {
	// HeaderRow is the 0-based physical row index of the header line; rows
	// above it are discarded.
	HeaderRow int

	// Comma is the field delimiter; ',' when zero.
	Comma rune

	// TrimSpace trims leading/trailing space from each cell.
	TrimSpace bool
}

// Parser parses CSV input according to Options. Safe to reuse across inputs;
// not concurrency-safe.
type Parser struct{ opt Options }

// NewParser constructs a Parser.
func NewParser(opt Options) *Parser { return &Parser{opt: opt} }

// utf8BOM is stripped from the first header cell if present.
const utf8BOM = "\xEF\xBB\xBF"

// Parse reads every data row below the header and returns the records plus
// the count of rows skipped for parse errors or width mismatch. Records are
// keyed by the original (trimmed) header text; alias matching happens
// downstream. Blank cells become nil.
func (p *Parser) Parse(r io.Reader) ([]records.Record, int, error) {
	cr := csv.NewReader(r)
	if p.opt.Comma != 0 {
		cr.Comma = p.opt.Comma
	}
	// Real-world exports contain stray quotes and ragged preamble rows; read
	// leniently and enforce the width ourselves once the header is known.
	cr.LazyQuotes = true
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	// Discard preamble rows above the header.
	for i := 0; i < p.opt.HeaderRow; i++ {
		if _, err := cr.Read(); err != nil {
			if err == io.EOF {
				return nil, 0, fmt.Errorf("header row %d not reached: file has only %d rows", p.opt.HeaderRow, i)
			}
			return nil, 0, fmt.Errorf("read preamble row %d: %w", i, err)
		}
	}

	h, err := cr.Read()
	if err != nil {
		return nil, 0, fmt.Errorf("read csv header: %w", err)
	}
	headers := make([]string, len(h))
	for i, col := range h {
		c := strings.TrimSpace(col)
		if i == 0 {
			c = strings.TrimPrefix(c, utf8BOM)
		}
		headers[i] = c
	}

	const logLimit = 400
	var out []records.Record
	var skipped int

	for line := p.opt.HeaderRow + 2; ; line++ {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			if skipped < logLimit {
				log.Printf("skipping row %d: %v", line, err)
			}
			skipped++
			continue
		}
		if len(row) != len(headers) {
			if skipped < logLimit {
				log.Printf("skipping row %d: expected %d fields, got %d", line, len(headers), len(row))
			}
			skipped++
			continue
		}

		rec := make(records.Record, len(row))
		for i, val := range row {
			if p.opt.TrimSpace {
				val = strings.TrimSpace(val)
			}
			rec[keyFor(i, headers)] = emptyToNil(val)
		}
		out = append(out, rec)
	}

	return out, skipped, nil
}

// keyFor returns the column key for index idx, synthesizing "col_N" for
// unnamed columns.
func keyFor(idx int, headers []string) string {
	if idx < len(headers) && headers[idx] != "" {
		return headers[idx]
	}
	return fmt.Sprintf("col_%d", idx)
}

// emptyToNil converts an empty string to nil; other values pass through.
func emptyToNil(s string) any {
	if s == "" {
		return nil
	}
	return s
}
