// Package icdcheck validates tabular data files against a declarative
// Interface Control Document (ICD).
//
// An ICD describes the physical data format of an input (delimited text,
// fixed width text, ODS/Excel workbooks), a typed schema for each column,
// and cross-row integrity checks. The engine streams rows from the input,
// classifies each row as accepted or rejected, and reports the outcome
// through an event listener interface.
//
// # Basic Usage
//
//	icd, err := icdcheck.LoadFile("icd_customers.csv")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	summary := icdcheck.NewSummary()
//	icd.AddListener(summary)
//	if err := icd.ValidateFile("customers.csv"); err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Printf("accepted %d, rejected %d\n", summary.AcceptedRows, summary.RejectedRows)
//
// # ICD Source Format
//
// The ICD itself is a delimited table. Each row starts with a marker:
// "D" rows configure the data format, "F" rows declare one field each
// (name, type, empty mark, length, rule, example), "C" rows declare
// cross-row checks, and rows with an empty first column are comments.
//
//	D,Format,CSV
//	D,Line delimiter,LF
//	F,branch_id,RegEx,,,38\d\d\d
//	F,customer_id,Integer,,,0:99999
//	F,first_name,Text,X
//	C,ids must be unique,IsUnique,"branch_id, customer_id"
//
// # Field Formats
//
// Built-in field format types are Text, Choice, Integer, Decimal, DateTime,
// RegEx and Pattern. Additional types can be hooked in with
// RegisterFieldFormat; additional checks with RegisterCheck.
//
// # Data Sources
//
// Delimited and fixed width text sources are tokenized by the engine itself,
// with auto detection of line and item delimiters. ODS, Excel and Parquet
// sources are read through the same row iterator abstraction. ValidateFile
// transparently decompresses gzip, bzip2, xz and zstd inputs.
package icdcheck
