package icdcheck

import (
	"bufio"
	"io"
	"strings"
)

// RowReader produces one row of items per call. It returns io.EOF after the
// final row. A *Error of kind KindParserSyntax ends the stream; the reader
// does not recover.
type RowReader interface {
	ReadRow() ([]string, error)
	// Line returns the 1-based source line (or sheet row) on which the most
	// recently returned row started.
	Line() int
}

// sniffWindow bounds how far auto detection looks into the source.
const sniffWindow = 64 * 1024

// itemDelimiterCandidates are tried by auto detection, in order of
// preference on a tie.
var itemDelimiterCandidates = []rune{',', ';', '\t', '|'}

// dialect is the resolved tokenizer configuration of a delimited source.
type dialect struct {
	lineDelimiter LineDelimiter
	itemDelimiter rune
	quote         rune // 0 means no quoting
	escape        rune // 0 means no escape character
	blanks        string
}

// dialectFromDataFormat derives the tokenizer dialect from a delimited data
// format declaration.
func dialectFromDataFormat(d *DataFormat) dialect {
	return dialect{
		lineDelimiter: d.lineDelimiter,
		itemDelimiter: d.itemDelimiter,
		quote:         d.quote,
		escape:        d.escape,
	}
}

// blanksFor returns the blank characters to skip around item delimiters,
// never including the delimiters themselves.
func blanksFor(d dialect) string {
	blanks := " \t"
	return strings.Map(func(r rune) rune {
		if r == d.itemDelimiter || r == d.quote {
			return -1
		}
		return r
	}, blanks)
}

// delimitedReader tokenizes a delimited text source into rows of items. It
// is a character level state machine with states item start, unquoted,
// quoted and after quote, and it tracks (line, item, column) for error
// reporting.
type delimitedReader struct {
	r       *bufio.Reader
	dialect dialect

	line    int // current 1-based line
	item    int // 0-based item within the current line
	column  int // 1-based column of the most recently read character
	rowLine int // line on which the last returned row started

	eof bool
	err error
}

// newDelimitedReader creates a reader over r. AUTO delimiters are resolved
// once against the head of the stream; when format is non-nil the decision
// is recorded on it.
func newDelimitedReader(r io.Reader, dia dialect, format *DataFormat) *delimitedReader {
	br := bufio.NewReaderSize(r, sniffWindow)
	d := &delimitedReader{r: br, dialect: dia, line: 1}
	if d.dialect.lineDelimiter == LineAuto || d.dialect.itemDelimiter == itemAuto {
		window, _ := br.Peek(sniffWindow)
		if d.dialect.lineDelimiter == LineAuto {
			d.dialect.lineDelimiter = detectLineDelimiter(window)
			if format != nil {
				format.detectedLineDelimiter = d.dialect.lineDelimiter
			}
		}
		if d.dialect.itemDelimiter == itemAuto {
			d.dialect.itemDelimiter = detectItemDelimiter(window)
			if format != nil {
				format.detectedItemDelimiter = d.dialect.itemDelimiter
			}
		}
	}
	d.dialect.blanks = blanksFor(d.dialect)
	return d
}

// detectLineDelimiter picks CR, LF or CRLF from the first line break found
// in window, defaulting to LF when the window holds no line break at all.
func detectLineDelimiter(window []byte) LineDelimiter {
	for i, b := range window {
		switch b {
		case '\n':
			return LineLF
		case '\r':
			if i+1 < len(window) && window[i+1] == '\n' {
				return LineCRLF
			}
			return LineCR
		}
	}
	return LineLF
}

// detectItemDelimiter picks the most frequent candidate delimiter within the
// first line of window; ties resolve to the earliest candidate.
func detectItemDelimiter(window []byte) rune {
	firstLine := window
	for i, b := range window {
		if b == '\r' || b == '\n' {
			firstLine = window[:i]
			break
		}
	}
	best := itemDelimiterCandidates[0]
	bestCount := 0
	for _, candidate := range itemDelimiterCandidates {
		count := strings.Count(string(firstLine), string(candidate))
		if count > bestCount {
			best = candidate
			bestCount = count
		}
	}
	return best
}

// Line returns the line on which the most recently returned row started.
func (d *delimitedReader) Line() int { return d.rowLine }

// tokenizer states.
const (
	stateItemStart = iota
	stateUnquoted
	stateQuoted
	stateAfterQuote
)

// ReadRow returns the next row of decoded items, io.EOF at end of input, or
// a parser syntax error. After an error the reader stays broken.
func (d *delimitedReader) ReadRow() ([]string, error) {
	if d.err != nil {
		return nil, d.err
	}
	if d.eof {
		return nil, io.EOF
	}
	d.rowLine = d.line
	d.item = 0

	var row []string
	var buf strings.Builder
	state := stateItemStart
	emit := func(item string) {
		row = append(row, item)
		d.item++
	}
	for {
		c, err := d.readRune()
		if err == io.EOF {
			switch state {
			case stateItemStart:
				d.eof = true
				if len(row) > 0 {
					// A trailing delimiter implies one more empty item.
					emit("")
					return row, nil
				}
				return nil, io.EOF
			case stateUnquoted:
				d.eof = true
				emit(buf.String())
				return row, nil
			case stateQuoted:
				return nil, d.fail("quoted item must be terminated by quote character (%q)", d.dialect.quote)
			default: // stateAfterQuote
				d.eof = true
				return row, nil
			}
		}
		if err != nil {
			return nil, d.failDecode(err)
		}
		switch state {
		case stateItemStart:
			switch {
			case strings.ContainsRune(d.dialect.blanks, c):
				// blanks around item delimiters are not data
			case d.dialect.quote != 0 && c == d.dialect.quote:
				state = stateQuoted
			case c == d.dialect.itemDelimiter:
				emit("")
			case d.atLineDelimiter(c):
				d.consumeLineDelimiter(c)
				if len(row) > 0 {
					emit("")
				} else if row == nil {
					row = []string{}
				}
				return row, nil
			default:
				buf.WriteRune(c)
				state = stateUnquoted
			}
		case stateUnquoted:
			switch {
			case c == d.dialect.itemDelimiter:
				emit(buf.String())
				buf.Reset()
				state = stateItemStart
			case d.atLineDelimiter(c):
				d.consumeLineDelimiter(c)
				emit(buf.String())
				return row, nil
			default:
				buf.WriteRune(c)
			}
		case stateQuoted:
			switch {
			case d.dialect.escape != 0 && d.dialect.escape != d.dialect.quote && c == d.dialect.escape:
				next, nerr := d.readRune()
				if nerr == io.EOF {
					return nil, d.fail("quoted item must be terminated by quote character (%q)", d.dialect.quote)
				}
				if nerr != nil {
					return nil, d.failDecode(nerr)
				}
				if next == d.dialect.quote {
					buf.WriteRune(next)
				} else {
					// The escape character only escapes quotes.
					buf.WriteRune(c)
					d.unreadRune()
				}
			case c == d.dialect.quote:
				next, nerr := d.readRune()
				if nerr == io.EOF {
					emit(buf.String())
					buf.Reset()
					state = stateAfterQuote
					continue
				}
				if nerr != nil {
					return nil, d.failDecode(nerr)
				}
				if next == d.dialect.quote {
					// Doubled quote stays in the item.
					buf.WriteRune(next)
				} else {
					d.unreadRune()
					emit(buf.String())
					buf.Reset()
					state = stateAfterQuote
				}
			default:
				buf.WriteRune(c)
			}
		default: // stateAfterQuote
			switch {
			case strings.ContainsRune(d.dialect.blanks, c):
				// blanks after the closing quote are not data
			case c == d.dialect.itemDelimiter:
				state = stateItemStart
			case d.atLineDelimiter(c):
				d.consumeLineDelimiter(c)
				return row, nil
			default:
				return nil, d.fail("data item must be followed by item delimiter or line delimiter but found: %q", c)
			}
		}
	}
}

func (d *delimitedReader) readRune() (rune, error) {
	c, _, err := d.r.ReadRune()
	if err != nil {
		return 0, err
	}
	d.column++
	return c, nil
}

func (d *delimitedReader) unreadRune() {
	_ = d.r.UnreadRune()
	d.column--
}

// atLineDelimiter reports whether c starts the configured line delimiter at
// the current position.
func (d *delimitedReader) atLineDelimiter(c rune) bool {
	switch d.dialect.lineDelimiter {
	case LineLF:
		return c == '\n'
	case LineCR:
		return c == '\r'
	case LineCRLF:
		if c != '\r' {
			return false
		}
		next, err := d.r.Peek(1)
		return err == nil && next[0] == '\n'
	case LineAny:
		return c == '\n' || c == '\r'
	default:
		return false
	}
}

// consumeLineDelimiter eats the rest of the line delimiter started by c and
// advances the position counters to the next line.
func (d *delimitedReader) consumeLineDelimiter(c rune) {
	if c == '\r' && (d.dialect.lineDelimiter == LineCRLF || d.dialect.lineDelimiter == LineAny) {
		if next, err := d.r.Peek(1); err == nil && next[0] == '\n' {
			_, _ = d.r.ReadByte()
		}
	}
	d.line++
	d.column = 0
}

func (d *delimitedReader) fail(format string, args ...any) error {
	d.err = newErrorAt(KindParserSyntax, d.line, d.item, d.column, format, args...)
	return d.err
}

func (d *delimitedReader) failDecode(err error) error {
	d.err = newErrorAt(KindParserSyntax, d.line, d.item, d.column+1, "cannot decode data: %v", err)
	return d.err
}

// fixedReader tokenizes a fixed width text source. Every row consists of
// exactly the declared widths; items are returned verbatim including
// trailing blanks. A source ending in the middle of a row is broken.
type fixedReader struct {
	r             *bufio.Reader
	widths        []int
	lineDelimiter LineDelimiter

	line    int
	rowLine int
	eof     bool
	err     error
}

// newFixedReader creates a reader over r with one width per field. When
// lineDelimiter is not LineNone, every row must be followed by it (or end of
// input); LineAuto resolves against the head of the stream.
func newFixedReader(r io.Reader, widths []int, lineDelimiter LineDelimiter) *fixedReader {
	br := bufio.NewReaderSize(r, sniffWindow)
	if lineDelimiter == LineAuto {
		window, _ := br.Peek(sniffWindow)
		lineDelimiter = detectLineDelimiter(window)
	}
	return &fixedReader{r: br, widths: widths, lineDelimiter: lineDelimiter, line: 1}
}

// Line returns the line on which the most recently returned row started.
func (f *fixedReader) Line() int { return f.rowLine }

// ReadRow returns the next fixed width row or io.EOF at a clean end of input.
func (f *fixedReader) ReadRow() ([]string, error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.eof {
		return nil, io.EOF
	}
	f.rowLine = f.line
	total := 0
	for _, width := range f.widths {
		total += width
	}
	row := make([]string, 0, len(f.widths))
	read := 0
	for itemIndex, width := range f.widths {
		var buf strings.Builder
		for charIndex := 0; charIndex < width; charIndex++ {
			c, _, err := f.r.ReadRune()
			if err == io.EOF {
				if itemIndex == 0 && charIndex == 0 {
					f.eof = true
					return nil, io.EOF
				}
				f.err = newErrorAt(KindParserSyntax, f.line, itemIndex, read+1,
					"fixed width row must have %d characters but ends after %d", total, read)
				return nil, f.err
			}
			if err != nil {
				f.err = newErrorAt(KindParserSyntax, f.line, itemIndex, read+1, "cannot decode data: %v", err)
				return nil, f.err
			}
			buf.WriteRune(c)
			read++
		}
		row = append(row, buf.String())
	}
	if err := f.consumeLineDelimiter(len(f.widths), read); err != nil {
		return nil, err
	}
	f.line++
	return row, nil
}

// consumeLineDelimiter eats the configured delimiter after a row; end of
// input is always acceptable.
func (f *fixedReader) consumeLineDelimiter(itemIndex, column int) error {
	if f.lineDelimiter == LineNone {
		return nil
	}
	next, err := f.r.Peek(1)
	if err != nil {
		return nil // end of input after the final row
	}
	matched := false
	switch f.lineDelimiter {
	case LineLF:
		matched = next[0] == '\n'
	case LineCR:
		matched = next[0] == '\r'
	case LineCRLF:
		pair, _ := f.r.Peek(2)
		matched = len(pair) == 2 && pair[0] == '\r' && pair[1] == '\n'
	case LineAny:
		matched = next[0] == '\n' || next[0] == '\r'
	}
	if !matched {
		f.err = newErrorAt(KindParserSyntax, f.line, itemIndex, column+1,
			"fixed width row must be followed by line delimiter %s but found: %q", f.lineDelimiter, next[0])
		return f.err
	}
	first, _ := f.r.ReadByte()
	if first == '\r' && (f.lineDelimiter == LineCRLF || f.lineDelimiter == LineAny) {
		if peeked, err := f.r.Peek(1); err == nil && peeked[0] == '\n' {
			_, _ = f.r.ReadByte()
		}
	}
	return nil
}
