package icdcheck

import (
	"bytes"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/parquet-go/parquet-go"
)

// customerRecord is the schema of the Parquet test fixtures.
type customerRecord struct {
	BranchID   string `parquet:"branch_id"`
	CustomerID int64  `parquet:"customer_id"`
}

// buildParquet assembles an in-memory Parquet file.
func buildParquet(t *testing.T, records []customerRecord) []byte {
	t.Helper()
	var buf bytes.Buffer
	writer := parquet.NewGenericWriter[customerRecord](&buf)
	if _, err := writer.Write(records); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	return buf.Bytes()
}

func TestParquetReader(t *testing.T) {
	t.Parallel()

	data := buildParquet(t, []customerRecord{
		{BranchID: "38000", CustomerID: 23},
		{BranchID: "38001", CustomerID: 59},
	})
	reader, err := newParquetReader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("newParquetReader() error = %v", err)
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

func TestICD_Validate_parquet(t *testing.T) {
	t.Parallel()

	icd, err := Load(strings.NewReader(
		"D,Format,Parquet\nD,Header,1\nF,branch_id,RegEx,,,38\\d\\d\\d\nF,customer_id,Integer,,,0:99999\n"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	data := buildParquet(t, []customerRecord{
		{BranchID: "38000", CustomerID: 23},
		{BranchID: "37999", CustomerID: 59},
	})
	rec := &recorder{}
	icd.AddListener(rec)
	if err := icd.Validate(bytes.NewReader(data)); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	want := []string{"accepted", "rejected"}
	if diff := cmp.Diff(want, rec.names()); diff != "" {
		t.Errorf("events mismatch (-want +got):\n%s", diff)
	}
}
