package icdcheck

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestSplitter(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	dataPath := filepath.Join(dir, "customers.csv")

	icd := loadCustomersIcd(t)
	splitter, err := NewSplitter(dataPath, icd.DataFormat())
	if err != nil {
		t.Fatalf("NewSplitter() error = %v", err)
	}
	icd.AddListener(splitter)

	data := `38000,23,John,Doe,male,08.03.1957
37999,24,Jane,Miller,female,04.10.1946
38001,25,Jim,Beam,male,01.01.2000
`
	if err := icd.Validate(strings.NewReader(data)); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if err := splitter.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	if want := filepath.Join(dir, "customers_accepted.csv"); splitter.AcceptedPath() != want {
		t.Errorf("AcceptedPath() = %q, want %q", splitter.AcceptedPath(), want)
	}
	if want := filepath.Join(dir, "customers_rejected.txt"); splitter.RejectedPath() != want {
		t.Errorf("RejectedPath() = %q, want %q", splitter.RejectedPath(), want)
	}

	accepted, err := os.ReadFile(splitter.AcceptedPath())
	if err != nil {
		t.Fatalf("ReadFile(accepted) error = %v", err)
	}
	wantAccepted := "38000,23,John,Doe,male,08.03.1957\n38001,25,Jim,Beam,male,01.01.2000\n"
	if string(accepted) != wantAccepted {
		t.Errorf("accepted file = %q, want %q", accepted, wantAccepted)
	}

	rejected, err := os.ReadFile(splitter.RejectedPath())
	if err != nil {
		t.Fatalf("ReadFile(rejected) error = %v", err)
	}
	if !strings.Contains(string(rejected), "37999") {
		t.Errorf("rejected file %q must contain the rejected row", rejected)
	}
	if !strings.Contains(string(rejected), "branch_id") {
		t.Errorf("rejected file %q must contain the diagnostic", rejected)
	}
}

func TestSplitter_quotesItemsContainingDelimiter(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	dataPath := filepath.Join(dir, "notes.csv")

	format, err := NewDataFormat("CSV")
	if err != nil {
		t.Fatalf("NewDataFormat() error = %v", err)
	}
	splitter, err := NewSplitter(dataPath, format)
	if err != nil {
		t.Fatalf("NewSplitter() error = %v", err)
	}
	row := &Row{Number: 1, Line: 1, Items: []string{"a,b", `say "hi"`}}
	if err := splitter.AcceptedRow(row); err != nil {
		t.Fatalf("AcceptedRow() error = %v", err)
	}
	if err := splitter.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	accepted, err := os.ReadFile(splitter.AcceptedPath())
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	want := "\"a,b\",\"say \"\"hi\"\"\"\n"
	if string(accepted) != want {
		t.Errorf("accepted file = %q, want %q", accepted, want)
	}
}

func TestSplitter_compressedExtension(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	format, err := NewDataFormat("CSV")
	if err != nil {
		t.Fatalf("NewDataFormat() error = %v", err)
	}
	splitter, err := NewSplitter(filepath.Join(dir, "data.csv.gz"), format)
	if err != nil {
		t.Fatalf("NewSplitter() error = %v", err)
	}
	defer func() {
		_ = splitter.Close()
	}()
	if want := filepath.Join(dir, "data_accepted.csv"); splitter.AcceptedPath() != want {
		t.Errorf("AcceptedPath() = %q, want %q", splitter.AcceptedPath(), want)
	}
}
