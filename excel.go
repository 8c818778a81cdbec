package icdcheck

import (
	"io"

	"github.com/xuri/excelize/v2"
)

// excelReader presents the first sheet of an Excel workbook as rows of
// strings, using the streaming row API so large workbooks are not fully
// materialized.
type excelReader struct {
	file *excelize.File
	rows *excelize.Rows
	line int
	done bool
}

// newExcelReader opens the workbook and positions on the first sheet.
func newExcelReader(r io.Reader) (*excelReader, error) {
	file, err := excelize.OpenReader(r)
	if err != nil {
		return nil, newError(KindParserSyntax, "cannot open Excel workbook: %v", err)
	}
	sheets := file.GetSheetList()
	if len(sheets) == 0 {
		_ = file.Close()
		return nil, newError(KindParserSyntax, "Excel workbook must contain at least one sheet")
	}
	rows, err := file.Rows(sheets[0])
	if err != nil {
		_ = file.Close()
		return nil, newError(KindParserSyntax, "cannot read Excel sheet %q: %v", sheets[0], err)
	}
	return &excelReader{file: file, rows: rows}, nil
}

// Line returns the 1-based sheet row of the most recently returned row.
func (e *excelReader) Line() int { return e.line }

// ReadRow returns the next sheet row or io.EOF after the final one.
func (e *excelReader) ReadRow() ([]string, error) {
	if e.done {
		return nil, io.EOF
	}
	if !e.rows.Next() {
		err := e.rows.Error()
		e.close()
		if err != nil {
			return nil, newError(KindParserSyntax, "cannot iterate Excel rows: %v", err)
		}
		return nil, io.EOF
	}
	row, err := e.rows.Columns()
	if err != nil {
		e.close()
		return nil, newError(KindParserSyntax, "cannot read Excel row: %v", err)
	}
	e.line++
	if row == nil {
		row = []string{}
	}
	return row, nil
}

func (e *excelReader) close() {
	if !e.done {
		e.done = true
		_ = e.rows.Close()
		_ = e.file.Close()
	}
}
