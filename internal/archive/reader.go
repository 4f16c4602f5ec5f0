package archive

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/semmidev/mongovault/internal/document"
	"github.com/semmidev/mongovault/internal/domain"
	"github.com/semmidev/mongovault/internal/snapshot"
)

// Reader decodes an archive stream and replays it into a snapshot.Sink.
type Reader struct {
	r         *bufio.Reader
	line      int
	header    bool
	createdAt time.Time
}

func NewReader(r io.Reader) *Reader {
	return &Reader{r: bufio.NewReaderSize(r, 256*1024)}
}

// ReadHeader reads and validates the header record and returns the capture
// time of the snapshot.
func (r *Reader) ReadHeader() (time.Time, error) {
	if r.header {
		return r.createdAt, nil
	}
	kind, line, err := r.next()
	if errors.Is(err, io.EOF) {
		return time.Time{}, r.malformed("empty archive")
	}
	if err != nil {
		return time.Time{}, err
	}
	if kind != recordHeader {
		return time.Time{}, r.malformed("expected header, found %q", kind)
	}
	var rec headerRecord
	if err := r.decode(line, &rec); err != nil {
		return time.Time{}, err
	}
	if rec.Format != formatName {
		return time.Time{}, r.malformed("unknown format %q", rec.Format)
	}
	if rec.Version != formatVersion {
		return time.Time{}, r.malformed("unsupported version %d", rec.Version)
	}
	r.header = true
	r.createdAt = rec.CreatedAt.Time().UTC()
	return r.createdAt, nil
}

// Replay streams every collection in the archive into sink. It returns nil
// only once the trailer has been read and checked.
func (r *Reader) Replay(ctx context.Context, sink snapshot.Sink) error {
	if _, err := r.ReadHeader(); err != nil {
		return err
	}

	var (
		open        bool
		count       int64
		collections int64
		documents   int64
	)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		kind, line, err := r.next()
		if errors.Is(err, io.EOF) {
			return r.malformed("archive ends without trailer")
		}
		if err != nil {
			return err
		}

		switch kind {
		case recordBegin:
			if open {
				return r.malformed("collection opened inside another")
			}
			var rec beginRecord
			if err := r.decode(line, &rec); err != nil {
				return err
			}
			indexes, err := r.indexes(rec.Indexes)
			if err != nil {
				return err
			}
			if err := sink.BeginCollection(ctx, rec.Database, rec.Collection, indexes); err != nil {
				return err
			}
			open, count = true, 0
			collections++

		case recordDocument:
			if !open {
				return r.malformed("document outside of a collection")
			}
			var rec documentRecord
			if err := r.decode(line, &rec); err != nil {
				return err
			}
			doc, err := document.FromRaw(rec.Document)
			if err != nil {
				return r.malformed("%v", err)
			}
			if err := sink.WriteDocument(ctx, doc); err != nil {
				return err
			}
			count++
			documents++

		case recordEnd:
			if !open {
				return r.malformed("end without an open collection")
			}
			var rec endRecord
			if err := r.decode(line, &rec); err != nil {
				return err
			}
			if rec.Count != count {
				return r.malformed("collection holds %d documents, end record says %d", count, rec.Count)
			}
			if err := sink.EndCollection(ctx); err != nil {
				return err
			}
			open = false

		case recordTrailer:
			if open {
				return r.malformed("trailer inside a collection")
			}
			var rec trailerRecord
			if err := r.decode(line, &rec); err != nil {
				return err
			}
			if rec.Collections != collections || rec.Documents != documents {
				return r.malformed("trailer counts %d/%d do not match %d/%d",
					rec.Collections, rec.Documents, collections, documents)
			}
			if _, _, err := r.next(); !errors.Is(err, io.EOF) {
				if err != nil {
					return err
				}
				return r.malformed("data after trailer")
			}
			return nil

		default:
			return r.malformed("unknown record %q", kind)
		}
	}
}

func (r *Reader) indexes(specs [][]byte) ([]snapshot.IndexDefinition, error) {
	out := make([]snapshot.IndexDefinition, 0, len(specs))
	for _, spec := range specs {
		doc, err := document.FromRaw(spec)
		if err != nil {
			return nil, r.malformed("index: %v", err)
		}
		idx, err := snapshot.IndexFromSpec(doc)
		if err != nil {
			return nil, r.malformed("%v", err)
		}
		out = append(out, idx)
	}
	return out, nil
}

// next returns the type and raw bytes of the next record.
func (r *Reader) next() (string, []byte, error) {
	line, err := r.r.ReadBytes('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", nil, fmt.Errorf("read archive: %w", err)
	}
	if len(line) == 0 && err != nil {
		return "", nil, io.EOF
	}
	r.line++

	line = bytes.TrimRight(line, "\r\n")
	var env envelope
	if err := r.decode(line, &env); err != nil {
		return "", nil, err
	}
	return env.Type, line, nil
}

func (r *Reader) decode(line []byte, v interface{}) error {
	if err := bson.UnmarshalExtJSON(line, true, v); err != nil {
		return r.malformed("%v", err)
	}
	return nil
}

func (r *Reader) malformed(format string, args ...interface{}) error {
	return fmt.Errorf("%w: line %d: %s", domain.ErrMalformedArchive, r.line, fmt.Sprintf(format, args...))
}
