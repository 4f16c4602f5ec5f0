package compressor

import (
	"errors"
	"fmt"
	"io"

	"github.com/klauspost/compress/gzip"

	"github.com/semmidev/mongovault/internal/domain"
)

// GzipCompressor streams archives through gzip. Both directions work on
// io.Writer / io.Reader so an archive is never held in memory whole.
type GzipCompressor struct {
	level int
}

func NewGzip() *GzipCompressor {
	return &GzipCompressor{level: gzip.DefaultCompression}
}

// NewGzipLevel uses one of the gzip compression levels.
func NewGzipLevel(level int) (*GzipCompressor, error) {
	if level < gzip.HuffmanOnly || level > gzip.BestCompression {
		return nil, fmt.Errorf("invalid gzip level %d", level)
	}
	return &GzipCompressor{level: level}, nil
}

func (g *GzipCompressor) NewWriter(w io.Writer) (io.WriteCloser, error) {
	gzipWriter, err := gzip.NewWriterLevel(w, g.level)
	if err != nil {
		return nil, fmt.Errorf("failed to create gzip writer: %w", err)
	}
	return gzipWriter, nil
}

// NewReader fails with domain.ErrArchiveUnreadable when the stream does not
// start with a gzip header; later corruption or truncation is reported the
// same way by Read.
func (g *GzipCompressor) NewReader(r io.Reader) (io.ReadCloser, error) {
	gzipReader, err := gzip.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create gzip reader: %v", domain.ErrArchiveUnreadable, err)
	}
	return &unreadableReader{zr: gzipReader}, nil
}

type unreadableReader struct {
	zr *gzip.Reader
}

func (u *unreadableReader) Read(p []byte) (int, error) {
	n, err := u.zr.Read(p)
	if err != nil && !errors.Is(err, io.EOF) {
		err = fmt.Errorf("%w: failed to decompress: %v", domain.ErrArchiveUnreadable, err)
	}
	return n, err
}

func (u *unreadableReader) Close() error {
	return u.zr.Close()
}
