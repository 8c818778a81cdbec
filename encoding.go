package icdcheck

import (
	"errors"
	"io"
	"strings"

	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/transform"
)

// errNonASCII is reported by the strict ASCII decoder when it meets a byte
// outside the 7 bit range.
var errNonASCII = errors.New("byte outside ASCII range")

// asciiDecoder passes 7 bit bytes through unchanged and fails on anything
// else. The default encoding of text data formats is strict ASCII, so broken
// umlauts and stray control bytes surface as decode errors instead of
// silently turning into replacement characters.
type asciiDecoder struct {
	transform.NopResetter
}

func (asciiDecoder) Transform(dst, src []byte, atEOF bool) (nDst, nSrc int, err error) {
	for nSrc < len(src) {
		if src[nSrc] >= 0x80 {
			return nDst, nSrc, errNonASCII
		}
		if nDst >= len(dst) {
			return nDst, nSrc, transform.ErrShortDst
		}
		dst[nDst] = src[nSrc]
		nDst++
		nSrc++
	}
	return nDst, nSrc, nil
}

// newDecoder resolves an encoding name to a decoding transformer. Unknown
// names yield a data format value error.
func newDecoder(name string) (transform.Transformer, error) {
	normalized := strings.ToLower(strings.TrimSpace(name))
	switch normalized {
	case "", "ascii", "us-ascii":
		return asciiDecoder{}, nil
	}
	enc, err := htmlindex.Get(normalized)
	if err != nil {
		return nil, newError(KindDataFormatValue, "cannot find encoding: %q", name)
	}
	return enc.NewDecoder(), nil
}

// newDecodingReader wraps r so that all bytes are decoded from the named
// encoding into UTF-8.
func newDecodingReader(r io.Reader, encodingName string) (io.Reader, error) {
	decoder, err := newDecoder(encodingName)
	if err != nil {
		return nil, err
	}
	return transform.NewReader(r, decoder), nil
}
