package icdcheck

import (
	"errors"
	"fmt"
	"io"
	"strings"
)

// ICD is the Interface Control Document: one data format, an ordered field
// schema and a set of cross row checks. An ICD is built once, by Load or by
// the Add methods, and is read-only while Validate runs. IsUnique and
// DistinctCount bookkeeping lives in the checks, so a single ICD must not
// run two validations concurrently; sequential validations are fine because
// the checks are reset when Validate starts.
type ICD struct {
	dataFormat   *DataFormat
	fieldFormats []FieldFormat
	fieldNames   []string
	fieldsByName map[string]FieldFormat
	checks       []Check
	listeners    []EventListener
}

// NewICD creates an empty ICD to be populated with AddDataFormat,
// AddFieldFormat and AddCheck.
func NewICD() *ICD {
	return &ICD{fieldsByName: map[string]FieldFormat{}}
}

// DataFormat returns the data format section, or nil before one was added.
func (icd *ICD) DataFormat() *DataFormat { return icd.dataFormat }

// FieldNames returns the field names in declaration order.
func (icd *ICD) FieldNames() []string {
	names := make([]string, len(icd.fieldNames))
	copy(names, icd.fieldNames)
	return names
}

// FieldFormat returns the named field format or nil.
func (icd *ICD) FieldFormat(name string) FieldFormat {
	return icd.fieldsByName[name]
}

// Checks returns the checks in declaration order.
func (icd *ICD) Checks() []Check {
	checks := make([]Check, len(icd.checks))
	copy(checks, icd.checks)
	return checks
}

// AddListener appends a listener; events arrive in registration order.
func (icd *ICD) AddListener(listener EventListener) {
	icd.listeners = append(icd.listeners, listener)
}

// AddDataFormat processes the payload of one "D" row: either the initial
// (Format, name) pair or a (key, value) option for the current format.
func (icd *ICD) AddDataFormat(items []string) error {
	if len(items) < 2 {
		return newError(KindIcdSyntax, "data format row must contain a key and a value")
	}
	key, value := items[0], items[1]
	if normalizeKey(key) == "format" {
		if icd.dataFormat != nil {
			return newError(KindDataFormatValue, "data format must be set only once but has already been set to: %s",
				icd.dataFormat.Format())
		}
		dataFormat, err := NewDataFormat(value)
		if err != nil {
			return err
		}
		icd.dataFormat = dataFormat
		return nil
	}
	if icd.dataFormat == nil {
		return newError(KindDataFormatSyntax, "first data format row must set key \"Format\" but is: %q", key)
	}
	return icd.dataFormat.Set(key, value)
}

// AddFieldFormat processes the payload of one "F" row:
// (name, type, empty mark, length, rule, example). The example column and
// anything after it is informational only.
func (icd *ICD) AddFieldFormat(items []string) error {
	if len(items) < 2 {
		return newError(KindIcdSyntax, "field format row must contain a name and a type")
	}
	name := strings.TrimSpace(items[0])
	if name == "" {
		return newError(KindFieldSyntax, "field name must not be empty")
	}
	if _, exists := icd.fieldsByName[name]; exists {
		return newError(KindFieldLookup, "field name must be used for only one field: %q", name)
	}
	typeToken := items[1]
	allowEmpty := false
	if len(items) >= 3 {
		emptyMark := strings.ToLower(strings.TrimSpace(items[2]))
		switch emptyMark {
		case "":
		case "x":
			allowEmpty = true
		default:
			return newError(KindFieldSyntax, "mark for empty field %q is %q but must be %q or empty", name, items[2], "X")
		}
	}
	lengthText := ""
	if len(items) >= 4 {
		lengthText = items[3]
	}
	length, err := ParseRange(lengthText, "")
	if err != nil {
		return err
	}
	rule := ""
	if len(items) >= 5 {
		rule = strings.TrimSpace(items[4])
	}
	fieldFormat, err := newFieldFormat(typeToken, name, allowEmpty, length, rule)
	if err != nil {
		return err
	}
	icd.fieldNames = append(icd.fieldNames, name)
	icd.fieldFormats = append(icd.fieldFormats, fieldFormat)
	icd.fieldsByName[name] = fieldFormat
	return nil
}

// AddCheck processes the payload of one "C" row: (description, type, rule).
// Checks can only refer to fields declared before them.
func (icd *ICD) AddCheck(items []string) error {
	if len(items) < 2 {
		return newError(KindIcdSyntax, "check row must contain a description and a type")
	}
	description := strings.TrimSpace(items[0])
	if description == "" {
		return newError(KindCheckSyntax, "check description must not be empty")
	}
	for _, existing := range icd.checks {
		if existing.Description() == description {
			return newError(KindCheckSyntax, "check description must be used for only one check: %q", description)
		}
	}
	rule := ""
	if len(items) >= 3 {
		rule = items[2]
	}
	check, err := newCheck(items[1], description, rule, icd.fieldNames)
	if err != nil {
		return err
	}
	icd.checks = append(icd.checks, check)
	return nil
}

// icdDialect is the dialect the ICD source itself is read with: auto
// detected delimiters and double quote for both quoting and escaping.
func icdDialect() dialect {
	return dialect{
		lineDelimiter: LineAuto,
		itemDelimiter: itemAuto,
		quote:         '"',
		escape:        '"',
	}
}

// Load reads an ICD from its delimited tabular source. Rows are dispatched
// on their first column: "D" data format, "F" field format, "C" check, empty
// for comments. After a successful load the ICD has a data format and at
// least one field.
func Load(r io.Reader) (*ICD, error) {
	icd := NewICD()
	reader := newDelimitedReader(r, icdDialect(), nil)
	for {
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
		marker := strings.ToLower(strings.TrimSpace(row[0]))
		var rowErr error
		switch marker {
		case "":
			// comment row
		case "d":
			rowErr = icd.AddDataFormat(row[1:])
		case "f":
			rowErr = icd.AddFieldFormat(row[1:])
		case "c":
			rowErr = icd.AddCheck(row[1:])
		default:
			rowErr = newError(KindIcdSyntax, "marker in first column is %q but must be empty or one of: C, D, F", row[0])
		}
		if rowErr != nil {
			return nil, fmt.Errorf("ICD line %d: %w", reader.Line(), rowErr)
		}
	}
	if icd.dataFormat == nil {
		return nil, newError(KindDataFormatLookup, "ICD must contain a data format section")
	}
	if len(icd.fieldFormats) == 0 {
		return nil, newError(KindFieldLookup, "ICD must describe at least one field")
	}
	return icd, nil
}

// LoadFile reads an ICD from a file, decompressing it if the extension asks
// for it.
func LoadFile(path string) (*ICD, error) {
	reader, cleanup, err := openPossiblyCompressed(path)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = cleanup()
	}()
	return Load(reader)
}

// openRowReader builds the row iterator matching the declared data format.
func (icd *ICD) openRowReader(r io.Reader) (RowReader, error) {
	d := icd.dataFormat
	if err := d.validateRequired(); err != nil {
		return nil, err
	}
	switch d.Format() {
	case FormatCSV, FormatDelimited:
		decoded, err := newDecodingReader(r, d.Encoding())
		if err != nil {
			return nil, err
		}
		return newDelimitedReader(decoded, dialectFromDataFormat(d), d), nil
	case FormatFixed:
		widths, err := icd.fixedWidths()
		if err != nil {
			return nil, err
		}
		decoded, err := newDecodingReader(r, d.Encoding())
		if err != nil {
			return nil, err
		}
		return newFixedReader(decoded, widths, d.LineDelimiter()), nil
	case FormatODS:
		return newOdsReader(r)
	case FormatExcel:
		return newExcelReader(r)
	case FormatParquet:
		return newParquetReader(r)
	default:
		return nil, newError(KindDataFormatSyntax, "cannot read data format: %s", d.Format())
	}
}

// fixedWidths derives the column widths for fixed width sources: every field
// must declare its length as a single exact value.
func (icd *ICD) fixedWidths() ([]int, error) {
	widths := make([]int, len(icd.fieldFormats))
	for i, fieldFormat := range icd.fieldFormats {
		length := fieldFormat.Length()
		if length.IsEmpty() || len(length.items) != 1 ||
			!length.items[0].hasLower || !length.items[0].hasUpper ||
			length.items[0].lower != length.items[0].upper || length.items[0].lower <= 0 {
			return nil, newError(KindFieldSyntax,
				"field %q must declare its exact width for fixed data format but has length: %q",
				fieldFormat.Name(), length)
		}
		widths[i] = int(length.items[0].lower)
	}
	return widths, nil
}

// Validate reads data rows from r and reports every outcome to the
// registered listeners. Per row problems never stop the stream; only a
// tokenizer or decoder failure does, delivered as a DataFormatFailed event.
// The returned error is non-nil only when the source cannot be opened at all
// or a listener fails.
func (icd *ICD) Validate(r io.Reader) error {
	rows, err := icd.openRowReader(r)
	if err != nil {
		return err
	}
	return icd.ValidateRows(rows)
}

// ValidateFile validates the data file at path, transparently decompressing
// gzip, bzip2, xz and zstd inputs.
func (icd *ICD) ValidateFile(path string) error {
	reader, cleanup, err := openPossiblyCompressed(path)
	if err != nil {
		return err
	}
	defer func() {
		_ = cleanup()
	}()
	return icd.Validate(reader)
}

// ValidateRows drives validation over an already opened row iterator. This
// is the entry point for external readers that present their own source as
// a RowReader.
func (icd *ICD) ValidateRows(rows RowReader) error {
	for _, check := range icd.checks {
		check.Reset()
	}
	for skipped := 0; skipped < icd.dataFormat.Header(); skipped++ {
		if _, err := rows.ReadRow(); err == io.EOF {
			return icd.checksAtEnd()
		} else if err != nil {
			return icd.emitDataFormatFailed(err)
		}
	}
	rowNumber := 0
	for {
		items, err := rows.ReadRow()
		if err == io.EOF {
			break
		}
		if err != nil {
			return icd.emitDataFormatFailed(err)
		}
		rowNumber++
		row := &Row{Number: rowNumber, Line: rows.Line(), Items: items}
		if err := icd.validateRow(row); err != nil {
			return err
		}
	}
	return icd.checksAtEnd()
}

// validateRow applies field validation and row checks to one row and emits
// exactly one row event. The returned error is a listener failure.
func (icd *ICD) validateRow(row *Row) error {
	if len(row.Items) != len(icd.fieldFormats) {
		reason := newError(KindFieldValue, "row %d must contain %d fields but has %d",
			row.Number, len(icd.fieldFormats), len(row.Items))
		return icd.emitRejectedRow(row, reason)
	}
	allowed := icd.dataFormat.AllowedCharacters()
	for i, fieldFormat := range icd.fieldFormats {
		item := row.Items[i]
		if !allowed.IsEmpty() {
			for _, char := range item {
				if err := allowed.Validate("character code", int64(char)); err != nil {
					reason := newError(KindFieldValue, "field %q in row %d must not contain character %q: %s",
						fieldFormat.Name(), row.Number, char, err.(*Error).Message)
					return icd.emitRejectedRow(row, reason)
				}
			}
		}
		if _, err := validateFieldValue(fieldFormat, item); err != nil {
			kind, message := KindFieldValue, err.Error()
			var classified *Error
			if errors.As(err, &classified) {
				kind, message = classified.Kind, classified.Message
			}
			reason := newError(kind, "field %q in row %d: %s", fieldFormat.Name(), row.Number, message)
			return icd.emitRejectedRow(row, reason)
		}
	}
	rowMap := make(map[string]string, len(icd.fieldNames))
	for i, name := range icd.fieldNames {
		rowMap[name] = row.Items[i]
	}
	for _, check := range icd.checks {
		if err := check.CheckRow(row.Number, rowMap); err != nil {
			for _, listener := range icd.listeners {
				if lerr := listener.CheckFailedAtRow(row, err); lerr != nil {
					return lerr
				}
			}
			return nil
		}
	}
	for _, listener := range icd.listeners {
		if err := listener.AcceptedRow(row); err != nil {
			return err
		}
	}
	return nil
}

// checksAtEnd runs every check's end of stream assertion, in declaration
// order, emitting one event per failure.
func (icd *ICD) checksAtEnd() error {
	for _, check := range icd.checks {
		if err := check.CheckAtEnd(); err != nil {
			for _, listener := range icd.listeners {
				if lerr := listener.CheckFailedAtEnd(err); lerr != nil {
					return lerr
				}
			}
		}
	}
	return nil
}

func (icd *ICD) emitRejectedRow(row *Row, reason error) error {
	for _, listener := range icd.listeners {
		if err := listener.RejectedRow(row, reason); err != nil {
			return err
		}
	}
	return nil
}

func (icd *ICD) emitDataFormatFailed(reason error) error {
	for _, listener := range icd.listeners {
		if err := listener.DataFormatFailed(reason); err != nil {
			return err
		}
	}
	return nil
}
