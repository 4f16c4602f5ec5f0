package domain

import (
	"context"

	"github.com/semmidev/mongovault/internal/document"
	"github.com/semmidev/mongovault/internal/snapshot"
)

// Source is the read side of a document database.
type Source interface {
	ListDatabases(ctx context.Context) ([]string, error)
	// ListCollections returns plain collections; views are omitted.
	ListCollections(ctx context.Context, database string) ([]string, error)
	ListIndexes(ctx context.Context, database, collection string) ([]snapshot.IndexDefinition, error)
	// ScanDocuments calls fn for every document in the collection and stops
	// at the first error.
	ScanDocuments(ctx context.Context, database, collection string, fn func(document.Document) error) error
}

// InsertResult counts the outcome of a bulk insert.
type InsertResult struct {
	Inserted   int
	Duplicates int
}

// Target is the write side of a document database.
type Target interface {
	// DropCollection drops the collection; a missing collection is not an
	// error.
	DropCollection(ctx context.Context, database, collection string) error
	// InsertMany inserts docs unordered. Duplicate keys are counted, not
	// returned; any other rejected document yields ErrRestoreWriteFailed.
	InsertMany(ctx context.Context, database, collection string, docs []document.Document) (InsertResult, error)
	// CreateIndex returns ErrIndexExists or ErrIndexConflict when the index
	// cannot be created because of an existing one.
	CreateIndex(ctx context.Context, database, collection string, index snapshot.IndexDefinition) error
}

type Database interface {
	Source
	Target
	Ping(ctx context.Context) error
	// DefaultDatabase is the database named in the connection string, or
	// "" when none is set.
	DefaultDatabase() string
	Disconnect(ctx context.Context) error
}
