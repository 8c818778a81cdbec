package icdcheck

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/parquet-go/parquet-go"
)

// parquetReader presents a Parquet file as rows of strings: one synthetic
// header row with the schema's column names, then the data rows with every
// value rendered in its canonical text form.
type parquetReader struct {
	rows [][]string
	next int
	line int
}

// newParquetReader reads the whole file; Parquet needs random access, so the
// source is buffered in memory first.
func newParquetReader(r io.Reader) (*parquetReader, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, newError(KindParserSyntax, "cannot read Parquet file: %v", err)
	}
	if len(data) == 0 {
		return &parquetReader{}, nil
	}
	file, err := parquet.OpenFile(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, newError(KindParserSyntax, "cannot open Parquet file: %v", err)
	}
	fields := file.Schema().Fields()
	header := make([]string, len(fields))
	for i, field := range fields {
		header[i] = field.Name()
	}
	rows := [][]string{header}
	rowBuf := make([]parquet.Row, 100)
	for _, rowGroup := range file.RowGroups() {
		groupRows := rowGroup.Rows()
		var readErr error
		for {
			n, err := groupRows.ReadRows(rowBuf)
			if n == 0 {
				if err != nil && !errors.Is(err, io.EOF) {
					readErr = err
				}
				break
			}
			for j := range n {
				record := make([]string, len(header))
				for k, value := range rowBuf[j] {
					if k < len(record) {
						record[k] = formatParquetValue(value)
					}
				}
				rows = append(rows, record)
			}
			if err != nil {
				if !errors.Is(err, io.EOF) {
					readErr = err
				}
				break
			}
		}
		_ = groupRows.Close()
		if readErr != nil {
			return nil, newError(KindParserSyntax, "cannot read Parquet rows: %v", readErr)
		}
	}
	return &parquetReader{rows: rows}, nil
}

// formatParquetValue renders one Parquet value as the string the field
// formats validate against.
func formatParquetValue(value parquet.Value) string {
	if value.IsNull() {
		return ""
	}
	switch value.Kind() {
	case parquet.Boolean:
		return strconv.FormatBool(value.Boolean())
	case parquet.Int32:
		return strconv.Itoa(int(value.Int32()))
	case parquet.Int64:
		return strconv.FormatInt(value.Int64(), 10)
	case parquet.Float:
		return strconv.FormatFloat(float64(value.Float()), 'g', -1, 32)
	case parquet.Double:
		return strconv.FormatFloat(value.Double(), 'g', -1, 64)
	case parquet.ByteArray, parquet.FixedLenByteArray:
		return string(value.ByteArray())
	default:
		return fmt.Sprintf("%v", value)
	}
}

// Line returns the 1-based row index of the most recently returned row.
func (p *parquetReader) Line() int { return p.line }

// ReadRow returns the next row or io.EOF after the final one. The first row
// is the schema header; a Parquet ICD normally declares "header" as 1.
func (p *parquetReader) ReadRow() ([]string, error) {
	if p.next >= len(p.rows) {
		return nil, io.EOF
	}
	row := p.rows[p.next]
	p.next++
	p.line = p.next
	return row, nil
}
