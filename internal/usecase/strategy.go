package usecase

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/semmidev/mongovault/internal/archive"
	"github.com/semmidev/mongovault/internal/document"
	"github.com/semmidev/mongovault/internal/domain"
	"github.com/semmidev/mongovault/internal/snapshot"
)

// DriverStrategy scans the database through the driver and writes the
// archive format itself.
type DriverStrategy struct {
	db         domain.Database
	compressor domain.Compressor
	logger     Logger
	batchSize  int
	now        func() time.Time

	lastReport RestoreReport
}

func NewDriverStrategy(db domain.Database, compressor domain.Compressor, logger Logger) *DriverStrategy {
	return &DriverStrategy{
		db:         db,
		compressor: compressor,
		logger:     logger,
		batchSize:  defaultBatchSize,
		now:        time.Now,
	}
}

// WithBatchSize sets the insert batch size used on restore.
func (s *DriverStrategy) WithBatchSize(n int) *DriverStrategy {
	if n > 0 {
		s.batchSize = n
	}
	return s
}

func (s *DriverStrategy) Name() string {
	return "driver"
}

func (s *DriverStrategy) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// Scope is the default database of the connection string, or all
// databases when there is none.
func (s *DriverStrategy) Scope() snapshot.Scope {
	if name := s.db.DefaultDatabase(); name != "" {
		return snapshot.SingleDatabase(name)
	}
	return snapshot.AllDatabases()
}

// Dump writes a compressed archive to w. On error the stream is left without
// a trailer and must be discarded.
func (s *DriverStrategy) Dump(ctx context.Context, w io.Writer) error {
	zw, err := s.compressor.NewWriter(w)
	if err != nil {
		return err
	}

	aw := archive.NewWriter(zw, s.now())
	stats, err := NewProducer(s.db, s.logger).Produce(ctx, s.Scope(), aw)
	if err != nil {
		return err
	}
	if err := aw.Close(); err != nil {
		return err
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("finish compression: %w", err)
	}

	s.logger.Infof("Captured %d database(s), %d collection(s), %d document(s) archived",
		stats.Databases, stats.Collections, aw.Documents())
	return nil
}

// Restore applies a compressed archive. When r is an io.ReadSeeker the whole
// archive is checked before anything in the database changes.
func (s *DriverStrategy) Restore(ctx context.Context, r io.Reader, opts domain.RestoreOptions) error {
	if seeker, ok := r.(io.ReadSeeker); ok {
		if err := s.verify(ctx, seeker); err != nil {
			return err
		}
		if _, err := seeker.Seek(0, io.SeekStart); err != nil {
			return fmt.Errorf("rewind archive: %w", err)
		}
	}

	restorer := NewRestorer(s.db, s.logger, s.Scope(), opts).WithBatchSize(s.batchSize)
	err := s.replay(ctx, r, restorer)
	s.lastReport = restorer.Report()
	if err != nil {
		return err
	}

	report := restorer.Report()
	s.logger.Infof("Restored %d collection(s): %d document(s) inserted, %d duplicate(s) skipped, %d index conflict(s)",
		len(report.Collections), report.Inserted(), report.Duplicates(), report.IndexConflicts())
	return nil
}

// LastReport returns the report of the most recent Restore call.
func (s *DriverStrategy) LastReport() RestoreReport {
	return s.lastReport
}

func (s *DriverStrategy) verify(ctx context.Context, r io.Reader) error {
	zr, err := s.compressor.NewReader(r)
	if err != nil {
		return err
	}
	defer zr.Close()

	return archive.NewReader(zr).Replay(ctx, discardSink{})
}

func (s *DriverStrategy) replay(ctx context.Context, r io.Reader, sink snapshot.Sink) error {
	zr, err := s.compressor.NewReader(r)
	if err != nil {
		return err
	}
	defer zr.Close()

	ar := archive.NewReader(zr)
	createdAt, err := ar.ReadHeader()
	if err != nil {
		return err
	}
	s.logger.Infof("Archive created at %s", createdAt.Format(time.RFC3339))
	return ar.Replay(ctx, sink)
}

type discardSink struct{}

func (discardSink) BeginCollection(context.Context, string, string, []snapshot.IndexDefinition) error {
	return nil
}

func (discardSink) WriteDocument(context.Context, document.Document) error {
	return nil
}

func (discardSink) EndCollection(context.Context) error {
	return nil
}
