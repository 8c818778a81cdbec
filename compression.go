package icdcheck

import (
	"compress/bzip2"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/klauspost/compress/zstd"
	"github.com/ulikunitz/xz"
)

// compressionType represents the type of compression of a source file.
type compressionType int

const (
	// compressionNone represents no compression
	compressionNone compressionType = iota
	// compressionGZ represents gzip compression
	compressionGZ
	// compressionBZ2 represents bzip2 compression
	compressionBZ2
	// compressionXZ represents xz compression
	compressionXZ
	// compressionZSTD represents zstd compression
	compressionZSTD
)

// Compression file extensions.
const (
	extGZ   = ".gz"
	extBZ2  = ".bz2"
	extXZ   = ".xz"
	extZSTD = ".zst"
)

// detectCompressionType detects the compression type from a file path.
func detectCompressionType(path string) compressionType {
	path = strings.ToLower(path)
	switch {
	case strings.HasSuffix(path, extGZ):
		return compressionGZ
	case strings.HasSuffix(path, extBZ2):
		return compressionBZ2
	case strings.HasSuffix(path, extXZ):
		return compressionXZ
	case strings.HasSuffix(path, extZSTD):
		return compressionZSTD
	default:
		return compressionNone
	}
}

// stripCompressionExtension removes a trailing compression extension so the
// underlying data extension becomes visible again.
func stripCompressionExtension(path string) string {
	lower := strings.ToLower(path)
	for _, ext := range []string{extGZ, extBZ2, extXZ, extZSTD} {
		if strings.HasSuffix(lower, ext) {
			return path[:len(path)-len(ext)]
		}
	}
	return path
}

// newDecompressingReader wraps reader with the decompressor matching ct.
func newDecompressingReader(reader io.Reader, ct compressionType) (io.Reader, func() error, error) {
	switch ct {
	case compressionNone:
		return reader, func() error { return nil }, nil
	case compressionGZ:
		gzReader, err := gzip.NewReader(reader)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create gzip reader: %w", err)
		}
		return gzReader, gzReader.Close, nil
	case compressionBZ2:
		return bzip2.NewReader(reader), func() error { return nil }, nil
	case compressionXZ:
		xzReader, err := xz.NewReader(reader)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create xz reader: %w", err)
		}
		return xzReader, func() error { return nil }, nil
	case compressionZSTD:
		decoder, err := zstd.NewReader(reader)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create zstd reader: %w", err)
		}
		return decoder, func() error {
			decoder.Close()
			return nil
		}, nil
	default:
		return nil, nil, fmt.Errorf("unsupported compression type: %v", ct)
	}
}

// openPossiblyCompressed opens a file and returns a reader that handles
// decompression, together with a cleanup closing everything.
func openPossiblyCompressed(path string) (io.Reader, func() error, error) {
	file, err := os.Open(path) //nolint:gosec // user provided paths are the point of a file validator
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open file: %w", err)
	}
	reader, cleanup, err := newDecompressingReader(file, detectCompressionType(path))
	if err != nil {
		_ = file.Close()
		return nil, nil, err
	}
	compositeCleanup := func() error {
		var cleanupErr error
		if cleanup != nil {
			cleanupErr = cleanup()
		}
		if closeErr := file.Close(); closeErr != nil && cleanupErr == nil {
			cleanupErr = closeErr
		}
		return cleanupErr
	}
	return reader, compositeCleanup, nil
}
