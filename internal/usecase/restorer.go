package usecase

import (
	"context"
	"errors"
	"fmt"

	"github.com/semmidev/mongovault/internal/document"
	"github.com/semmidev/mongovault/internal/domain"
	"github.com/semmidev/mongovault/internal/snapshot"
)

const defaultBatchSize = 1000

// CollectionReport is the outcome of restoring one collection.
type CollectionReport struct {
	Database       string
	Collection     string
	Attempted      int
	Inserted       int
	Duplicates     int
	IndexesCreated int
	IndexesSkipped int
	IndexConflicts int
	IndexesFailed  int
	Dropped        bool
}

// RestoreReport is the outcome of a whole restore.
type RestoreReport struct {
	Collections      []CollectionReport
	SkippedDatabases []string
}

func (r RestoreReport) Inserted() int {
	n := 0
	for _, c := range r.Collections {
		n += c.Inserted
	}
	return n
}

func (r RestoreReport) Duplicates() int {
	n := 0
	for _, c := range r.Collections {
		n += c.Duplicates
	}
	return n
}

func (r RestoreReport) IndexConflicts() int {
	n := 0
	for _, c := range r.Collections {
		n += c.IndexConflicts
	}
	return n
}

// Restorer is a snapshot.Sink that applies a snapshot to a live Target.
//
// Documents go in as unordered batches; duplicate keys are counted and
// skipped. Indexes are recreated once a collection's documents are in and
// never fail the restore. Once ctx is cancelled no new write is issued, but
// a write already issued runs to completion.
type Restorer struct {
	target    domain.Target
	logger    Logger
	scope     snapshot.Scope
	drop      bool
	batchSize int

	active  bool
	indexes []snapshot.IndexDefinition
	batch   []document.Document
	current *CollectionReport
	skipped map[string]bool
	report  RestoreReport
}

func NewRestorer(target domain.Target, logger Logger, scope snapshot.Scope, opts domain.RestoreOptions) *Restorer {
	return &Restorer{
		target:    target,
		logger:    logger,
		scope:     scope,
		drop:      opts.Drop,
		batchSize: defaultBatchSize,
		skipped:   make(map[string]bool),
	}
}

// WithBatchSize sets the number of documents per insert call.
func (r *Restorer) WithBatchSize(n int) *Restorer {
	if n > 0 {
		r.batchSize = n
	}
	return r
}

func (r *Restorer) Report() RestoreReport {
	return r.report
}

func (r *Restorer) BeginCollection(ctx context.Context, db, coll string, indexes []snapshot.IndexDefinition) error {
	if r.current != nil {
		return fmt.Errorf("collection %s.%s still open", r.current.Database, r.current.Collection)
	}
	r.active = r.scope.Includes(db)
	if !r.active {
		if !r.skipped[db] {
			r.skipped[db] = true
			r.report.SkippedDatabases = append(r.report.SkippedDatabases, db)
			r.logger.Infof("[%s] Skipping database outside of %s", db, r.scope)
		}
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	r.current = &CollectionReport{Database: db, Collection: coll}
	r.indexes = indexes
	r.batch = r.batch[:0]
	r.logger.Infof("[%s.%s] Restoring collection", db, coll)

	if r.drop {
		if err := r.target.DropCollection(context.WithoutCancel(ctx), db, coll); err != nil {
			return fmt.Errorf("drop %s.%s: %w", db, coll, err)
		}
		r.current.Dropped = true
		r.logger.Infof("[%s.%s] Dropped existing collection", db, coll)
	}
	return nil
}

func (r *Restorer) WriteDocument(ctx context.Context, doc document.Document) error {
	if !r.active {
		return nil
	}
	if r.current == nil {
		return fmt.Errorf("document outside of a collection")
	}
	r.batch = append(r.batch, doc)
	if len(r.batch) >= r.batchSize {
		return r.flush(ctx)
	}
	return nil
}

func (r *Restorer) EndCollection(ctx context.Context) error {
	if !r.active {
		return nil
	}
	if r.current == nil {
		return fmt.Errorf("no open collection")
	}
	if err := r.flush(ctx); err != nil {
		return err
	}
	if err := r.restoreIndexes(ctx); err != nil {
		return err
	}

	c := r.current
	r.logger.Infof("[%s.%s] Inserted %d of %d document(s), %d duplicate(s) skipped; indexes: %d created, %d existing, %d conflict(s), %d failed",
		c.Database, c.Collection, c.Inserted, c.Attempted, c.Duplicates,
		c.IndexesCreated, c.IndexesSkipped, c.IndexConflicts, c.IndexesFailed)

	r.report.Collections = append(r.report.Collections, *c)
	r.current = nil
	r.active = false
	return nil
}

func (r *Restorer) flush(ctx context.Context) error {
	if len(r.batch) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	c := r.current
	c.Attempted += len(r.batch)
	result, err := r.target.InsertMany(context.WithoutCancel(ctx), c.Database, c.Collection, r.batch)
	c.Inserted += result.Inserted
	c.Duplicates += result.Duplicates
	r.batch = r.batch[:0]
	if err != nil {
		return fmt.Errorf("insert into %s.%s: %w", c.Database, c.Collection, err)
	}
	return nil
}

func (r *Restorer) restoreIndexes(ctx context.Context) error {
	c := r.current
	for _, idx := range r.indexes {
		if idx.IsPrimary() {
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		err := r.target.CreateIndex(context.WithoutCancel(ctx), c.Database, c.Collection, idx.Clean())
		switch {
		case err == nil:
			c.IndexesCreated++
		case errors.Is(err, domain.ErrIndexExists):
			c.IndexesSkipped++
			r.logger.Infof("[%s.%s] Index %s already exists", c.Database, c.Collection, idx.Name)
		case errors.Is(err, domain.ErrIndexConflict):
			c.IndexConflicts++
			r.logger.Warnf("[%s.%s] Index %s conflicts with an existing index, left unchanged: %v",
				c.Database, c.Collection, idx.Name, err)
		default:
			c.IndexesFailed++
			r.logger.Warnf("[%s.%s] Failed to create index %s: %v", c.Database, c.Collection, idx.Name, err)
		}
	}
	return nil
}
