package archive

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"time"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/semmidev/mongovault/internal/document"
	"github.com/semmidev/mongovault/internal/snapshot"
)

// Writer is a snapshot.Sink that encodes records onto an io.Writer. Nothing
// is complete until Close writes the trailer.
type Writer struct {
	w           *bufio.Writer
	createdAt   time.Time
	started     bool
	open        bool
	closed      bool
	count       int64
	collections int64
	documents   int64
	err         error
}

func NewWriter(w io.Writer, createdAt time.Time) *Writer {
	return &Writer{
		w:         bufio.NewWriterSize(w, 256*1024),
		createdAt: createdAt,
	}
}

func (w *Writer) BeginCollection(_ context.Context, database, collection string, indexes []snapshot.IndexDefinition) error {
	if w.open {
		return fmt.Errorf("archive: collection already open")
	}
	specs := make([][]byte, 0, len(indexes))
	for _, idx := range indexes {
		raw, err := marshal(idx.Spec())
		if err != nil {
			return fmt.Errorf("encode index %s: %w", idx.Name, err)
		}
		specs = append(specs, raw)
	}
	if err := w.write(beginRecord{
		Type:       recordBegin,
		Database:   database,
		Collection: collection,
		Indexes:    specs,
	}); err != nil {
		return err
	}
	w.open = true
	w.count = 0
	w.collections++
	return nil
}

func (w *Writer) WriteDocument(_ context.Context, doc document.Document) error {
	if !w.open {
		return fmt.Errorf("archive: document outside of a collection")
	}
	raw, err := marshal(doc)
	if err != nil {
		return fmt.Errorf("encode document: %w", err)
	}
	if err := w.write(documentRecord{Type: recordDocument, Document: raw}); err != nil {
		return err
	}
	w.count++
	w.documents++
	return nil
}

func (w *Writer) EndCollection(context.Context) error {
	if !w.open {
		return fmt.Errorf("archive: no open collection")
	}
	if err := w.write(endRecord{Type: recordEnd, Count: w.count}); err != nil {
		return err
	}
	w.open = false
	return nil
}

// Close writes the trailer and flushes buffered records. It does not close
// the underlying writer.
func (w *Writer) Close() error {
	if w.closed {
		return w.err
	}
	if w.open {
		return fmt.Errorf("archive: close with an open collection")
	}
	if err := w.write(trailerRecord{
		Type:        recordTrailer,
		Collections: w.collections,
		Documents:   w.documents,
	}); err != nil {
		return err
	}
	w.closed = true
	if err := w.w.Flush(); err != nil {
		w.err = fmt.Errorf("flush archive: %w", err)
	}
	return w.err
}

// Documents returns the number of documents written so far.
func (w *Writer) Documents() int64 {
	return w.documents
}

func (w *Writer) write(rec interface{}) error {
	if w.err != nil {
		return w.err
	}
	if w.closed {
		return fmt.Errorf("archive: write after close")
	}
	if !w.started {
		w.started = true
		if err := w.write(headerRecord{
			Type:      recordHeader,
			Format:    formatName,
			Version:   formatVersion,
			CreatedAt: toDateTime(w.createdAt),
		}); err != nil {
			return err
		}
	}

	line, err := bson.MarshalExtJSON(rec, true, false)
	if err != nil {
		w.err = fmt.Errorf("encode archive record: %w", err)
		return w.err
	}
	if _, err := w.w.Write(line); err != nil {
		w.err = fmt.Errorf("write archive: %w", err)
		return w.err
	}
	if err := w.w.WriteByte('\n'); err != nil {
		w.err = fmt.Errorf("write archive: %w", err)
		return w.err
	}
	return nil
}
