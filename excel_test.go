package icdcheck

import (
	"bytes"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/xuri/excelize/v2"
)

// buildWorkbook assembles an in-memory XLSX workbook from rows of cells.
func buildWorkbook(t *testing.T, rows [][]string) []byte {
	t.Helper()
	file := excelize.NewFile()
	defer func() {
		_ = file.Close()
	}()
	sheet := file.GetSheetName(0)
	for rowIndex, row := range rows {
		for colIndex, cell := range row {
			cellName, err := excelize.CoordinatesToCellName(colIndex+1, rowIndex+1)
			if err != nil {
				t.Fatalf("CoordinatesToCellName() error = %v", err)
			}
			if err := file.SetCellStr(sheet, cellName, cell); err != nil {
				t.Fatalf("SetCellStr() error = %v", err)
			}
		}
	}
	buf, err := file.WriteToBuffer()
	if err != nil {
		t.Fatalf("WriteToBuffer() error = %v", err)
	}
	return buf.Bytes()
}

func TestExcelReader(t *testing.T) {
	t.Parallel()

	workbook := buildWorkbook(t, [][]string{
		{"branch_id", "customer_id"},
		{"38000", "23"},
		{"38001", "59"},
	})
	reader, err := newExcelReader(bytes.NewReader(workbook))
	if err != nil {
		t.Fatalf("newExcelReader() error = %v", err)
	}
	rows, err := readAllRows(t, reader)
	if err != nil {
		t.Fatalf("ReadRow() error = %v", err)
	}
	want := [][]string{
		{"branch_id", "customer_id"},
		{"38000", "23"},
		{"38001", "59"},
	}
	if diff := cmp.Diff(want, rows); diff != "" {
		t.Errorf("rows mismatch (-want +got):\n%s", diff)
	}
}

func TestExcelReader_broken(t *testing.T) {
	t.Parallel()

	if _, err := newExcelReader(bytes.NewReader([]byte("not a workbook"))); !IsKind(err, KindParserSyntax) {
		t.Errorf("newExcelReader(garbage) error = %v, want parser syntax error", err)
	}
}

func TestICD_Validate_excel(t *testing.T) {
	t.Parallel()

	icd, err := Load(strings.NewReader(
		"D,Format,Excel\nD,Header,1\nF,branch_id,RegEx,,,38\\d\\d\\d\nF,customer_id,Integer,,,0:99999\n"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	workbook := buildWorkbook(t, [][]string{
		{"branch_id", "customer_id"},
		{"38000", "23"},
		{"38000", "100000"},
	})
	rec := &recorder{}
	icd.AddListener(rec)
	if err := icd.Validate(bytes.NewReader(workbook)); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	want := []string{"accepted", "rejected"}
	if diff := cmp.Diff(want, rec.names()); diff != "" {
		t.Errorf("events mismatch (-want +got):\n%s", diff)
	}
}
