package icdcheck

import (
	"strconv"
	"strings"
	"unicode/utf8"
)

// Format identifies the physical shape of a data source.
type Format int

const (
	// FormatCSV is delimited text with CSV defaults (any line delimiter,
	// auto detected item delimiter, double quote as quote and escape).
	FormatCSV Format = iota
	// FormatDelimited is delimited text whose delimiters must be declared.
	FormatDelimited
	// FormatFixed is fixed width text; column widths come from the field lengths.
	FormatFixed
	// FormatODS is an OpenDocument spreadsheet.
	FormatODS
	// FormatExcel is an Excel workbook.
	FormatExcel
	// FormatParquet is an Apache Parquet file.
	FormatParquet
)

// String returns the format name as used in ICDs.
func (f Format) String() string {
	switch f {
	case FormatCSV:
		return "CSV"
	case FormatDelimited:
		return "Delimited"
	case FormatFixed:
		return "Fixed"
	case FormatODS:
		return "ODS"
	case FormatExcel:
		return "Excel"
	case FormatParquet:
		return "Parquet"
	default:
		return "Unknown"
	}
}

// isText reports whether sources of this format are decoded text streams.
func (f Format) isText() bool {
	switch f {
	case FormatCSV, FormatDelimited, FormatFixed:
		return true
	default:
		return false
	}
}

// isDelimited reports whether sources of this format use item delimiters.
func (f Format) isDelimited() bool {
	return f == FormatCSV || f == FormatDelimited
}

// parseFormat resolves a format name from an ICD, case insensitively.
func parseFormat(name string) (Format, error) {
	for _, f := range []Format{FormatCSV, FormatDelimited, FormatFixed, FormatODS, FormatExcel, FormatParquet} {
		if strings.EqualFold(strings.TrimSpace(name), f.String()) {
			return f, nil
		}
	}
	return 0, newError(KindDataFormatSyntax, "data format is %q but must be one of: CSV, Delimited, Fixed, ODS, Excel, Parquet", name)
}

// LineDelimiter names the line separation policy of a text data source.
type LineDelimiter int

const (
	// LineNone means rows are not separated by a delimiter (fixed width default).
	LineNone LineDelimiter = iota
	// LineAuto detects the delimiter from the first line of the source.
	LineAuto
	// LineAny accepts LF, CR and CRLF interchangeably.
	LineAny
	// LineLF is a lone line feed.
	LineLF
	// LineCR is a lone carriage return.
	LineCR
	// LineCRLF is a carriage return followed by a line feed.
	LineCRLF
)

// String returns the delimiter name as used in ICDs.
func (d LineDelimiter) String() string {
	switch d {
	case LineAuto:
		return "AUTO"
	case LineAny:
		return "ANY"
	case LineLF:
		return "LF"
	case LineCR:
		return "CR"
	case LineCRLF:
		return "CRLF"
	default:
		return "NONE"
	}
}

// Data format option keys. Keys read from an ICD are normalized, so
// "Line delimiter", "line-delimiter" and "line_delimiter" all match.
const (
	KeyEncoding          = "encoding"
	KeyLineDelimiter     = "line_delimiter"
	KeyItemDelimiter     = "item_delimiter"
	KeyQuoteCharacter    = "quote_character"
	KeyEscapeCharacter   = "escape_character"
	KeyAllowedCharacters = "allowed_characters"
	KeyHeader            = "header"
)

// itemAuto marks an item delimiter that is to be detected from the first line.
const itemAuto = rune(0)

// DataFormat describes the physical shape of a data source: its format
// variant plus the options that apply to it. Options are validated when set;
// a key the variant does not know fails with a data format syntax error.
type DataFormat struct {
	format            Format
	encoding          string
	lineDelimiter     LineDelimiter
	itemDelimiter     rune
	quote             rune
	escape            rune
	allowedCharacters *Range
	header            int

	// Auto detection decisions, recorded once by the tokenizer.
	detectedLineDelimiter LineDelimiter
	detectedItemDelimiter rune
}

// NewDataFormat creates a data format for the named variant with the
// variant's defaults applied.
func NewDataFormat(name string) (*DataFormat, error) {
	format, err := parseFormat(name)
	if err != nil {
		return nil, err
	}
	d := &DataFormat{format: format, encoding: "ascii"}
	switch format {
	case FormatCSV:
		d.lineDelimiter = LineAny
		d.itemDelimiter = itemAuto
		d.quote = '"'
		d.escape = '"'
	case FormatDelimited:
		d.lineDelimiter = LineNone
		d.quote = '"'
		d.escape = '"'
	case FormatFixed:
		d.lineDelimiter = LineNone
	}
	return d, nil
}

// Format returns the format variant.
func (d *DataFormat) Format() Format { return d.format }

// Encoding returns the declared character encoding of text sources.
func (d *DataFormat) Encoding() string { return d.encoding }

// LineDelimiter returns the declared line delimiter policy.
func (d *DataFormat) LineDelimiter() LineDelimiter { return d.lineDelimiter }

// ItemDelimiter returns the declared item delimiter; itemAuto when it is to
// be detected.
func (d *DataFormat) ItemDelimiter() rune { return d.itemDelimiter }

// Header returns the number of header rows to skip before data row 1.
func (d *DataFormat) Header() int { return d.header }

// AllowedCharacters returns the declared code point range, possibly empty.
func (d *DataFormat) AllowedCharacters() *Range { return d.allowedCharacters }

// DetectedLineDelimiter returns the line delimiter chosen by auto detection,
// or LineNone when no detection has happened.
func (d *DataFormat) DetectedLineDelimiter() LineDelimiter { return d.detectedLineDelimiter }

// DetectedItemDelimiter returns the item delimiter chosen by auto detection,
// or 0 when no detection has happened.
func (d *DataFormat) DetectedItemDelimiter() rune { return d.detectedItemDelimiter }

// normalizeKey maps the spellings found in ICDs onto the canonical key names.
func normalizeKey(key string) string {
	normalized := strings.ToLower(strings.TrimSpace(key))
	normalized = strings.ReplaceAll(normalized, " ", "_")
	normalized = strings.ReplaceAll(normalized, "-", "_")
	return normalized
}

// Set applies one option. Keys unknown to the variant fail with a data
// format syntax error, broken values with a data format value error.
func (d *DataFormat) Set(key, value string) error {
	normalized := normalizeKey(key)
	switch normalized {
	case KeyEncoding:
		if !d.format.isText() {
			return d.forbiddenKey(key)
		}
		if _, err := newDecoder(value); err != nil {
			return err
		}
		d.encoding = strings.TrimSpace(value)
	case KeyLineDelimiter:
		if !d.format.isText() {
			return d.forbiddenKey(key)
		}
		delimiter, err := parseLineDelimiter(value)
		if err != nil {
			return err
		}
		d.lineDelimiter = delimiter
	case KeyItemDelimiter:
		if !d.format.isDelimited() {
			return d.forbiddenKey(key)
		}
		delimiter, err := parseItemDelimiter(value)
		if err != nil {
			return err
		}
		d.itemDelimiter = delimiter
	case KeyQuoteCharacter:
		if !d.format.isDelimited() {
			return d.forbiddenKey(key)
		}
		char, err := parseSingleCharacter(key, value)
		if err != nil {
			return err
		}
		d.quote = char
	case KeyEscapeCharacter:
		if !d.format.isDelimited() {
			return d.forbiddenKey(key)
		}
		char, err := parseSingleCharacter(key, value)
		if err != nil {
			return err
		}
		d.escape = char
	case KeyAllowedCharacters:
		allowed, err := ParseRange(value, "")
		if err != nil {
			return err
		}
		d.allowedCharacters = allowed
	case KeyHeader:
		header, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil || header < 0 {
			return newError(KindDataFormatValue, "header must be a non-negative integer but is: %q", value)
		}
		d.header = header
	default:
		return newError(KindDataFormatSyntax, "data format %s does not support key %q", d.format, key)
	}
	return nil
}

func (d *DataFormat) forbiddenKey(key string) error {
	return newError(KindDataFormatSyntax, "key %q cannot be used with data format %s", key, d.format)
}

func parseLineDelimiter(value string) (LineDelimiter, error) {
	switch strings.ToUpper(strings.TrimSpace(value)) {
	case "LF":
		return LineLF, nil
	case "CR":
		return LineCR, nil
	case "CRLF":
		return LineCRLF, nil
	case "ANY":
		return LineAny, nil
	case "AUTO":
		return LineAuto, nil
	default:
		return 0, newError(KindDataFormatValue, "line delimiter is %q but must be one of: LF, CR, CRLF, ANY, AUTO", value)
	}
}

func parseItemDelimiter(value string) (rune, error) {
	switch strings.ToUpper(strings.TrimSpace(value)) {
	case "AUTO":
		return itemAuto, nil
	case "TAB":
		return '\t', nil
	}
	if utf8.RuneCountInString(value) != 1 {
		return 0, newError(KindDataFormatValue, "item delimiter must be a single character or AUTO but is: %q", value)
	}
	delimiter, _ := utf8.DecodeRuneInString(value)
	return delimiter, nil
}

func parseSingleCharacter(key, value string) (rune, error) {
	if utf8.RuneCountInString(value) != 1 {
		return 0, newError(KindDataFormatValue, "%s must be a single character but is: %q", normalizeKey(key), value)
	}
	char, _ := utf8.DecodeRuneInString(value)
	return char, nil
}

// validateRequired checks that all options the variant insists on have been
// set. Delimited sources must declare both delimiters; CSV falls back to its
// defaults. It also rejects a quote character colliding with a delimiter.
func (d *DataFormat) validateRequired() error {
	if d.format == FormatDelimited {
		if d.lineDelimiter == LineNone {
			return newError(KindDataFormatSyntax, "data format %s requires key %q", d.format, KeyLineDelimiter)
		}
		if d.itemDelimiter == itemAuto {
			return newError(KindDataFormatSyntax, "data format %s requires key %q", d.format, KeyItemDelimiter)
		}
	}
	if d.format.isDelimited() && d.quote != 0 {
		if d.quote == d.itemDelimiter {
			return newError(KindDataFormatValue, "quote character %q must differ from item delimiter", d.quote)
		}
		if d.quote == '\r' || d.quote == '\n' {
			return newError(KindDataFormatValue, "quote character must differ from line delimiter")
		}
	}
	return nil
}
