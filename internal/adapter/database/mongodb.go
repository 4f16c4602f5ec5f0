package database

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.mongodb.org/mongo-driver/x/mongo/driver/connstring"

	"github.com/semmidev/mongovault/internal/document"
	"github.com/semmidev/mongovault/internal/domain"
	"github.com/semmidev/mongovault/internal/snapshot"
)

// Server error codes the restore path cares about.
const (
	codeIndexAlreadyExists    = 68
	codeIndexOptionsConflict  = 85
	codeIndexKeySpecsConflict = 86
	codeDuplicateKey          = 11000
	codeDuplicateKeyLegacy    = 11001
	codeDuplicateKeyOnUpdate  = 12582
)

type MongoDBDatabase struct {
	client    *mongo.Client
	defaultDB string
}

// NewMongoDB connects to uri. The database named in the connection string,
// if any, becomes the backup and restore scope.
func NewMongoDB(ctx context.Context, uri string, timeout time.Duration) (*MongoDBDatabase, error) {
	cs, err := connstring.ParseAndValidate(uri)
	if err != nil {
		return nil, fmt.Errorf("invalid mongodb uri: %w", err)
	}

	opts := options.Client().ApplyURI(uri)
	if timeout > 0 {
		opts.SetConnectTimeout(timeout).SetServerSelectionTimeout(timeout)
	}

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("mongodb connect failed: %w", err)
	}

	return &MongoDBDatabase{client: client, defaultDB: cs.Database}, nil
}

func (m *MongoDBDatabase) DefaultDatabase() string {
	return m.defaultDB
}

func (m *MongoDBDatabase) Ping(ctx context.Context) error {
	if err := m.client.Ping(ctx, readpref.Primary()); err != nil {
		return fmt.Errorf("mongodb ping failed: %w", err)
	}
	return nil
}

func (m *MongoDBDatabase) Disconnect(ctx context.Context) error {
	return m.client.Disconnect(ctx)
}

func (m *MongoDBDatabase) ListDatabases(ctx context.Context) ([]string, error) {
	return m.client.ListDatabaseNames(ctx, bson.D{}, options.ListDatabases().SetAuthorizedDatabases(true))
}

func (m *MongoDBDatabase) ListCollections(ctx context.Context, database string) ([]string, error) {
	return m.client.Database(database).ListCollectionNames(ctx, bson.D{{Key: "type", Value: "collection"}})
}

func (m *MongoDBDatabase) ListIndexes(ctx context.Context, database, collection string) ([]snapshot.IndexDefinition, error) {
	cursor, err := m.client.Database(database).Collection(collection).Indexes().List(ctx)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var indexes []snapshot.IndexDefinition
	for cursor.Next(ctx) {
		spec, err := document.FromRaw(cursor.Current)
		if err != nil {
			return nil, err
		}
		idx, err := snapshot.IndexFromSpec(spec)
		if err != nil {
			return nil, err
		}
		indexes = append(indexes, idx)
	}
	return indexes, cursor.Err()
}

func (m *MongoDBDatabase) ScanDocuments(ctx context.Context, database, collection string, fn func(document.Document) error) error {
	cursor, err := m.client.Database(database).Collection(collection).Find(ctx, bson.D{})
	if err != nil {
		return err
	}
	defer cursor.Close(ctx)

	for cursor.Next(ctx) {
		doc, err := document.FromRaw(cursor.Current)
		if err != nil {
			return err
		}
		if err := fn(doc); err != nil {
			return err
		}
	}
	return cursor.Err()
}

func (m *MongoDBDatabase) DropCollection(ctx context.Context, database, collection string) error {
	// Drop ignores a missing namespace.
	return m.client.Database(database).Collection(collection).Drop(ctx)
}

func (m *MongoDBDatabase) InsertMany(ctx context.Context, database, collection string, docs []document.Document) (domain.InsertResult, error) {
	if len(docs) == 0 {
		return domain.InsertResult{}, nil
	}
	items := make([]interface{}, len(docs))
	for i, d := range docs {
		items[i] = d.BSON()
	}

	_, err := m.client.Database(database).Collection(collection).
		InsertMany(ctx, items, options.InsertMany().SetOrdered(false))
	return classifyInsert(len(docs), err)
}

// classifyInsert splits an unordered bulk insert failure into duplicate keys,
// which are counted, and anything else, which fails the batch.
func classifyInsert(attempted int, err error) (domain.InsertResult, error) {
	if err == nil {
		return domain.InsertResult{Inserted: attempted}, nil
	}

	var bwe mongo.BulkWriteException
	if !errors.As(err, &bwe) {
		return domain.InsertResult{}, err
	}

	result := domain.InsertResult{Inserted: attempted - len(bwe.WriteErrors)}
	var other []string
	for _, we := range bwe.WriteErrors {
		if isDuplicateKey(we.Code) {
			result.Duplicates++
			continue
		}
		other = append(other, fmt.Sprintf("#%d: %s (code %d)", we.Index, we.Message, we.Code))
	}

	if len(other) > 0 {
		return result, fmt.Errorf("%w: %s", domain.ErrRestoreWriteFailed, strings.Join(other, "; "))
	}
	if bwe.WriteConcernError != nil {
		return result, fmt.Errorf("%w: write concern: %s", domain.ErrRestoreWriteFailed, bwe.WriteConcernError.Message)
	}
	return result, nil
}

func isDuplicateKey(code int) bool {
	return code == codeDuplicateKey || code == codeDuplicateKeyLegacy || code == codeDuplicateKeyOnUpdate
}

// CreateIndex creates index unless the collection already holds it by name
// or by specification.
func (m *MongoDBDatabase) CreateIndex(ctx context.Context, database, collection string, index snapshot.IndexDefinition) error {
	existing, err := m.ListIndexes(ctx, database, collection)
	if err != nil {
		return fmt.Errorf("list indexes: %w", err)
	}
	if err := matchExisting(existing, index); err != nil {
		return err
	}

	cmd := bson.D{
		{Key: "createIndexes", Value: collection},
		{Key: "indexes", Value: bson.A{index.Spec().BSON()}},
	}
	err = m.client.Database(database).RunCommand(ctx, cmd).Err()
	return classifyIndex(index.Name, err)
}

func matchExisting(existing []snapshot.IndexDefinition, index snapshot.IndexDefinition) error {
	for _, e := range existing {
		if e.Name != index.Name {
			continue
		}
		if e.SameSpec(index) {
			return domain.ErrIndexExists
		}
		return fmt.Errorf("%w: %s has a different specification", domain.ErrIndexConflict, index.Name)
	}
	for _, e := range existing {
		if e.SameSpec(index) {
			return fmt.Errorf("%w: as %s", domain.ErrIndexExists, e.Name)
		}
	}
	return nil
}

func classifyIndex(name string, err error) error {
	if err == nil {
		return nil
	}

	var se mongo.ServerError
	if !errors.As(err, &se) {
		return err
	}
	switch {
	case se.HasErrorCode(codeIndexAlreadyExists):
		return fmt.Errorf("%w: %s", domain.ErrIndexExists, name)
	case se.HasErrorCode(codeIndexOptionsConflict) && strings.Contains(err.Error(), "different name"):
		return fmt.Errorf("%w: %s: %v", domain.ErrIndexExists, name, err)
	case se.HasErrorCode(codeIndexOptionsConflict), se.HasErrorCode(codeIndexKeySpecsConflict):
		return fmt.Errorf("%w: %s: %v", domain.ErrIndexConflict, name, err)
	}
	return err
}
