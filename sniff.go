package icdcheck

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// sniffer derives a draft ICD from sample data: it detects the delimiters,
// takes the first row as column names when it looks like a header, and
// guesses a field type per column from the values it has seen.
type sniffer struct {
	encoding string
	head     int
	rowCap   int
}

// SniffOption configures the sniffer.
type SniffOption func(*sniffer)

// WithSniffEncoding sets the character encoding to assume for the sample
// data; the default is ascii.
func WithSniffEncoding(name string) SniffOption {
	return func(s *sniffer) {
		s.encoding = name
	}
}

// WithSniffHead sets the number of rows to skip before analyzing.
func WithSniffHead(rows int) SniffOption {
	return func(s *sniffer) {
		s.head = rows
	}
}

// WithSniffRowCap bounds how many data rows are analyzed; 0 analyzes all.
func WithSniffRowCap(rows int) SniffOption {
	return func(s *sniffer) {
		s.rowCap = rows
	}
}

// sniffedColumn accumulates what has been observed about one column.
type sniffedColumn struct {
	name       string
	allowEmpty bool
	allInteger bool
	allDecimal bool
	seen       int
}

// SniffICDRows analyzes delimited sample data and returns the rows of a
// draft ICD: a data format section followed by one field row per column.
func SniffICDRows(r io.Reader, opts ...SniffOption) ([][]string, error) {
	s := &sniffer{encoding: "ascii"}
	for _, opt := range opts {
		opt(s)
	}
	decoded, err := newDecodingReader(r, s.encoding)
	if err != nil {
		return nil, err
	}
	format, err := NewDataFormat("Delimited")
	if err != nil {
		return nil, err
	}
	reader := newDelimitedReader(decoded, icdDialect(), format)
	for skipped := 0; skipped < s.head; skipped++ {
		if _, err := reader.ReadRow(); err != nil {
			if err == io.EOF {
				break
			}
			return nil, err
		}
	}
	var columns []*sniffedColumn
	headerTaken := false
	analyzed := 0
	for s.rowCap == 0 || analyzed < s.rowCap {
		row, err := reader.ReadRow()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if len(row) == 0 {
			continue
		}
		if !headerTaken {
			headerTaken = true
			if looksLikeHeader(row) {
				for _, name := range row {
					columns = append(columns, &sniffedColumn{name: normalizeColumnName(name), allInteger: true, allDecimal: true})
				}
				continue
			}
		}
		for len(columns) < len(row) {
			columns = append(columns, &sniffedColumn{
				name:       fmt.Sprintf("column_%d", len(columns)+1),
				allInteger: true,
				allDecimal: true,
			})
		}
		for i, column := range columns {
			value := ""
			if i < len(row) {
				value = row[i]
			}
			column.observe(value)
		}
		analyzed++
	}
	if len(columns) == 0 {
		return nil, newError(KindIcdSyntax, "sample data must contain at least one row to sniff an ICD from")
	}
	rows := [][]string{
		{"D", "Format", "Delimited"},
		{"D", "Encoding", s.encoding},
		{"D", "Line delimiter", reader.dialect.lineDelimiter.String()},
		{"D", "Item delimiter", itemDelimiterName(reader.dialect.itemDelimiter)},
		{"D", "Header", strconv.Itoa(s.head + boolToInt(headerRowUsed(columns)))},
	}
	for _, column := range columns {
		rows = append(rows, []string{"F", column.name, column.fieldType(), column.emptyMark(), "", ""})
	}
	return rows, nil
}

// WriteSniffedICD analyzes sample data and writes the draft ICD to w in CSV
// form, ready to be edited and loaded.
func WriteSniffedICD(w io.Writer, r io.Reader, opts ...SniffOption) error {
	rows, err := SniffICDRows(r, opts...)
	if err != nil {
		return err
	}
	writer := csv.NewWriter(w)
	if err := writer.WriteAll(rows); err != nil {
		return fmt.Errorf("failed to write sniffed ICD: %w", err)
	}
	writer.Flush()
	return writer.Error()
}

// observe folds one value into the column statistics.
func (c *sniffedColumn) observe(value string) {
	c.seen++
	if value == "" {
		c.allowEmpty = true
		return
	}
	if _, err := strconv.ParseInt(value, 10, 64); err != nil {
		c.allInteger = false
	}
	if !decimalPattern.MatchString(value) {
		c.allDecimal = false
	}
}

// fieldType guesses the narrowest built-in field type for the column.
func (c *sniffedColumn) fieldType() string {
	switch {
	case c.seen == 0:
		return "Text"
	case c.allInteger:
		return "Integer"
	case c.allDecimal:
		return "Decimal"
	default:
		return "Text"
	}
}

func (c *sniffedColumn) emptyMark() string {
	if c.allowEmpty || c.seen == 0 {
		return "X"
	}
	return ""
}

// looksLikeHeader reports whether a row can serve as column names: every
// item non-empty, no duplicates, nothing purely numeric.
func looksLikeHeader(row []string) bool {
	seen := map[string]bool{}
	for _, item := range row {
		name := normalizeColumnName(item)
		if name == "" || seen[name] {
			return false
		}
		if _, err := strconv.ParseFloat(item, 64); err == nil {
			return false
		}
		seen[name] = true
	}
	return true
}

// normalizeColumnName turns a header cell into a usable field name.
func normalizeColumnName(name string) string {
	normalized := strings.ToLower(strings.TrimSpace(name))
	normalized = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_':
			return r
		case r == ' ' || r == '-':
			return '_'
		default:
			return -1
		}
	}, normalized)
	return normalized
}

// headerRowUsed reports whether the columns were named from a header row.
func headerRowUsed(columns []*sniffedColumn) bool {
	for _, column := range columns {
		if !strings.HasPrefix(column.name, "column_") {
			return true
		}
	}
	return false
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// itemDelimiterName renders a delimiter the way ICDs spell it.
func itemDelimiterName(delimiter rune) string {
	if delimiter == '\t' {
		return "TAB"
	}
	return string(delimiter)
}
