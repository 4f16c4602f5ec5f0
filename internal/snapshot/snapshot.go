// Package snapshot describes the logical content of one backup: every
// selected database, its collections, their documents and index definitions.
package snapshot

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/semmidev/mongovault/internal/document"
)

type Snapshot struct {
	CreatedAt time.Time
	Databases map[string]DatabaseSnapshot
}

type DatabaseSnapshot struct {
	Collections map[string]CollectionSnapshot
}

type CollectionSnapshot struct {
	Documents []document.Document
	Indexes   []IndexDefinition
}

// New returns an empty snapshot stamped with createdAt at millisecond
// precision, the resolution archives record.
func New(createdAt time.Time) *Snapshot {
	return &Snapshot{
		CreatedAt: createdAt.UTC().Truncate(time.Millisecond),
		Databases: make(map[string]DatabaseSnapshot),
	}
}

// DocumentCount returns the number of documents across all collections.
func (s *Snapshot) DocumentCount() int {
	n := 0
	for _, db := range s.Databases {
		for _, coll := range db.Collections {
			n += len(coll.Documents)
		}
	}
	return n
}

// Equal compares two snapshots structurally. Maps compare by key, document
// and index sequences keep their order.
func (s *Snapshot) Equal(o *Snapshot) bool {
	if s == nil || o == nil {
		return s == o
	}
	if !s.CreatedAt.Equal(o.CreatedAt) || len(s.Databases) != len(o.Databases) {
		return false
	}
	for name, db := range s.Databases {
		odb, ok := o.Databases[name]
		if !ok || len(db.Collections) != len(odb.Collections) {
			return false
		}
		for cname, coll := range db.Collections {
			ocoll, ok := odb.Collections[cname]
			if !ok || !coll.Equal(ocoll) {
				return false
			}
		}
	}
	return true
}

func (c CollectionSnapshot) Equal(o CollectionSnapshot) bool {
	if len(c.Documents) != len(o.Documents) || len(c.Indexes) != len(o.Indexes) {
		return false
	}
	for i := range c.Documents {
		if !c.Documents[i].Equal(o.Documents[i]) {
			return false
		}
	}
	for i := range c.Indexes {
		if !c.Indexes[i].Equal(o.Indexes[i]) {
			return false
		}
	}
	return true
}

// Replay streams the snapshot into sink, databases and collections in name
// order. Databases without collections carry nothing and are skipped.
func (s *Snapshot) Replay(ctx context.Context, sink Sink) error {
	for _, dbName := range sortedKeys(s.Databases) {
		db := s.Databases[dbName]
		for _, collName := range sortedKeys(db.Collections) {
			coll := db.Collections[collName]
			if err := sink.BeginCollection(ctx, dbName, collName, coll.Indexes); err != nil {
				return err
			}
			for _, doc := range coll.Documents {
				if err := sink.WriteDocument(ctx, doc); err != nil {
					return err
				}
			}
			if err := sink.EndCollection(ctx); err != nil {
				return err
			}
		}
	}
	return nil
}

// Sink receives a snapshot as a stream: each collection is opened with its
// index definitions, followed by its documents, then closed.
type Sink interface {
	BeginCollection(ctx context.Context, database, collection string, indexes []IndexDefinition) error
	WriteDocument(ctx context.Context, doc document.Document) error
	EndCollection(ctx context.Context) error
}

// Builder is a Sink that materialises the stream into a Snapshot.
type Builder struct {
	snap     *Snapshot
	database string
	name     string
	current  *CollectionSnapshot
}

func NewBuilder(createdAt time.Time) *Builder {
	return &Builder{snap: New(createdAt)}
}

func (b *Builder) BeginCollection(_ context.Context, database, collection string, indexes []IndexDefinition) error {
	if b.current != nil {
		return fmt.Errorf("collection %s.%s still open", b.database, b.name)
	}
	b.database, b.name = database, collection
	b.current = &CollectionSnapshot{Indexes: append([]IndexDefinition(nil), indexes...)}
	return nil
}

func (b *Builder) WriteDocument(_ context.Context, doc document.Document) error {
	if b.current == nil {
		return fmt.Errorf("document outside of a collection")
	}
	b.current.Documents = append(b.current.Documents, doc)
	return nil
}

func (b *Builder) EndCollection(context.Context) error {
	if b.current == nil {
		return fmt.Errorf("no open collection")
	}
	db, ok := b.snap.Databases[b.database]
	if !ok {
		db = DatabaseSnapshot{Collections: make(map[string]CollectionSnapshot)}
		b.snap.Databases[b.database] = db
	}
	db.Collections[b.name] = *b.current
	b.current = nil
	return nil
}

// Snapshot returns the snapshot assembled so far.
func (b *Builder) Snapshot() *Snapshot {
	return b.snap
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
