package icdcheck

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Splitter is an EventListener that splits the validated input into sidecar
// files next to it: accepted rows go to "<data>_accepted<ext>" in the
// input's delimited form, rejected rows go to "<data>_rejected.txt" together
// with their diagnostics.
type Splitter struct {
	acceptedPath string
	rejectedPath string
	accepted     *os.File
	rejected     *os.File
	acceptedBuf  *bufio.Writer
	rejectedBuf  *bufio.Writer
	dataFormat   *DataFormat
}

// NewSplitter creates the sidecar files for the data file at dataPath. The
// item delimiter of the accepted file follows the data format, falling back
// to a comma for workbook sources and undetected delimiters.
func NewSplitter(dataPath string, dataFormat *DataFormat) (*Splitter, error) {
	ext := filepath.Ext(stripCompressionExtension(dataPath))
	base := strings.TrimSuffix(stripCompressionExtension(dataPath), ext)
	if !dataFormat.Format().isText() {
		ext = ".csv"
	}
	s := &Splitter{
		acceptedPath: base + "_accepted" + ext,
		rejectedPath: base + "_rejected.txt",
	}
	var err error
	if s.accepted, err = os.Create(s.acceptedPath); err != nil {
		return nil, fmt.Errorf("failed to create accepted file: %w", err)
	}
	if s.rejected, err = os.Create(s.rejectedPath); err != nil {
		_ = s.accepted.Close()
		return nil, fmt.Errorf("failed to create rejected file: %w", err)
	}
	s.acceptedBuf = bufio.NewWriter(s.accepted)
	s.rejectedBuf = bufio.NewWriter(s.rejected)
	s.dataFormat = dataFormat
	return s, nil
}

// splitterDelimiter picks the delimiter for the accepted sidecar file.
func splitterDelimiter(dataFormat *DataFormat) rune {
	if dataFormat.Format().isDelimited() {
		if delimiter := dataFormat.ItemDelimiter(); delimiter != itemAuto {
			return delimiter
		}
		if delimiter := dataFormat.DetectedItemDelimiter(); delimiter != 0 {
			return delimiter
		}
	}
	return ','
}

// AcceptedPath returns the path of the accepted sidecar file.
func (s *Splitter) AcceptedPath() string { return s.acceptedPath }

// RejectedPath returns the path of the rejected sidecar file.
func (s *Splitter) RejectedPath() string { return s.rejectedPath }

// AcceptedRow implements EventListener.
func (s *Splitter) AcceptedRow(row *Row) error {
	_, err := fmt.Fprintf(s.acceptedBuf, "%s\n", s.renderRow(row))
	return err
}

// RejectedRow implements EventListener.
func (s *Splitter) RejectedRow(row *Row, reason error) error {
	return s.writeRejected(row, reason)
}

// CheckFailedAtRow implements EventListener.
func (s *Splitter) CheckFailedAtRow(row *Row, reason error) error {
	return s.writeRejected(row, reason)
}

// CheckFailedAtEnd implements EventListener.
func (s *Splitter) CheckFailedAtEnd(reason error) error {
	_, err := fmt.Fprintf(s.rejectedBuf, "at end: %v\n", reason)
	return err
}

// DataFormatFailed implements EventListener.
func (s *Splitter) DataFormatFailed(reason error) error {
	_, err := fmt.Fprintf(s.rejectedBuf, "cannot continue: %v\n", reason)
	return err
}

func (s *Splitter) writeRejected(row *Row, reason error) error {
	if _, err := fmt.Fprintf(s.rejectedBuf, "%s\n", s.renderRow(row)); err != nil {
		return err
	}
	_, err := fmt.Fprintf(s.rejectedBuf, "# row %d: %v\n", row.Number, reason)
	return err
}

// renderRow joins the raw items with the delimiter, quoting items that
// contain it.
func (s *Splitter) renderRow(row *Row) string {
	delimiter := string(splitterDelimiter(s.dataFormat))
	items := make([]string, len(row.Items))
	for i, item := range row.Items {
		if strings.ContainsAny(item, delimiter+"\"\r\n") {
			item = `"` + strings.ReplaceAll(item, `"`, `""`) + `"`
		}
		items[i] = item
	}
	return strings.Join(items, delimiter)
}

// Close flushes and closes both sidecar files.
func (s *Splitter) Close() error {
	var firstErr error
	for _, flush := range []func() error{s.acceptedBuf.Flush, s.rejectedBuf.Flush, s.accepted.Close, s.rejected.Close} {
		if err := flush(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
