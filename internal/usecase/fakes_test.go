package usecase

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/semmidev/mongovault/internal/document"
	"github.com/semmidev/mongovault/internal/domain"
	"github.com/semmidev/mongovault/internal/snapshot"
)

type nopLogger struct{}

func (nopLogger) Infof(string, ...interface{})  {}
func (nopLogger) Errorf(string, ...interface{}) {}
func (nopLogger) Warnf(string, ...interface{})  {}

type memCollection struct {
	docs    []document.Document
	indexes []snapshot.IndexDefinition
}

func primaryIndex() snapshot.IndexDefinition {
	return snapshot.IndexDefinition{
		Name:    snapshot.PrimaryIndexName,
		Keys:    document.Document{{Key: "_id", Value: document.Int32(1)}},
		Options: document.Document{{Key: "v", Value: document.Int32(2)}},
	}
}

// memDB is an in-memory domain.Database. Documents collide on _id.
type memDB struct {
	mu          sync.Mutex
	defaultDB   string
	data        map[string]map[string]*memCollection
	mutations   int
	inserts     int
	indexCalls  []string
	insertErr   error
	scanErr     error
	pingErr     error
	afterInsert func()
}

func newMemDB() *memDB {
	return &memDB{data: make(map[string]map[string]*memCollection)}
}

func (m *memDB) collection(db, coll string) *memCollection {
	if m.data[db] == nil {
		m.data[db] = make(map[string]*memCollection)
	}
	c, ok := m.data[db][coll]
	if !ok {
		c = &memCollection{indexes: []snapshot.IndexDefinition{primaryIndex()}}
		m.data[db][coll] = c
	}
	return c
}

func (m *memDB) seed(db, coll string, docs ...document.Document) *memCollection {
	c := m.collection(db, coll)
	c.docs = append(c.docs, docs...)
	return c
}

func (m *memDB) count(db, coll string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.data[db][coll]; ok {
		return len(c.docs)
	}
	return 0
}

func (m *memDB) ListDatabases(context.Context) ([]string, error) {
	var names []string
	for name := range m.data {
		names = append(names, name)
	}
	return names, nil
}

func (m *memDB) ListCollections(_ context.Context, db string) ([]string, error) {
	var names []string
	for name := range m.data[db] {
		names = append(names, name)
	}
	return names, nil
}

func (m *memDB) ListIndexes(_ context.Context, db, coll string) ([]snapshot.IndexDefinition, error) {
	return append([]snapshot.IndexDefinition(nil), m.data[db][coll].indexes...), nil
}

func (m *memDB) ScanDocuments(_ context.Context, db, coll string, fn func(document.Document) error) error {
	for _, doc := range m.data[db][coll].docs {
		if err := fn(doc); err != nil {
			return err
		}
	}
	return m.scanErr
}

func (m *memDB) DropCollection(_ context.Context, db, coll string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.mutations++
	delete(m.data[db], coll)
	return nil
}

func (m *memDB) InsertMany(ctx context.Context, db, coll string, docs []document.Document) (domain.InsertResult, error) {
	m.mu.Lock()
	var result domain.InsertResult
	if ctx.Err() != nil {
		m.mu.Unlock()
		return result, fmt.Errorf("insert on a cancelled context")
	}
	m.mutations++
	m.inserts++
	c := m.collection(db, coll)
	for _, doc := range docs {
		if m.insertErr != nil {
			m.mu.Unlock()
			return result, fmt.Errorf("%w: %v", domain.ErrRestoreWriteFailed, m.insertErr)
		}
		id, _ := doc.Lookup("_id")
		duplicate := false
		for _, existing := range c.docs {
			if other, _ := existing.Lookup("_id"); other.Equal(id) {
				duplicate = true
				break
			}
		}
		if duplicate {
			result.Duplicates++
			continue
		}
		c.docs = append(c.docs, doc)
		result.Inserted++
	}
	hook := m.afterInsert
	m.mu.Unlock()

	if hook != nil {
		hook()
	}
	return result, nil
}

func (m *memDB) CreateIndex(_ context.Context, db, coll string, index snapshot.IndexDefinition) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.mutations++
	m.indexCalls = append(m.indexCalls, index.Name)

	c := m.collection(db, coll)
	for _, existing := range c.indexes {
		if existing.Name == index.Name {
			if existing.SameSpec(index) {
				return domain.ErrIndexExists
			}
			return fmt.Errorf("%w: %s", domain.ErrIndexConflict, index.Name)
		}
	}
	for _, existing := range c.indexes {
		if existing.SameSpec(index) {
			return domain.ErrIndexExists
		}
	}
	c.indexes = append(c.indexes, index)
	return nil
}

func (m *memDB) Ping(context.Context) error       { return m.pingErr }
func (m *memDB) DefaultDatabase() string          { return m.defaultDB }
func (m *memDB) Disconnect(context.Context) error { return nil }

// capture materialises the whole database as a snapshot with a fixed
// creation time so two captures compare equal.
func capture(db *memDB) *snapshot.Snapshot {
	b := snapshot.NewBuilder(time.Unix(0, 0))
	if _, err := NewProducer(db, nopLogger{}).Produce(context.Background(), snapshot.AllDatabases(), b); err != nil {
		panic(err)
	}
	return b.Snapshot()
}

type memObject struct {
	data     []byte
	modified time.Time
}

type memRepo struct {
	mu        sync.Mutex
	objects   map[string]memObject
	failStore bool
	failFetch error
	failDel   map[string]bool
	deleted   []string
	now       func() time.Time
}

func newMemRepo() *memRepo {
	return &memRepo{
		objects: make(map[string]memObject),
		failDel: make(map[string]bool),
		now:     time.Now,
	}
}

func (r *memRepo) put(name string, data []byte, modified time.Time) {
	r.objects[name] = memObject{data: data, modified: modified}
}

func (r *memRepo) List(context.Context) ([]domain.Descriptor, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Descriptor
	for name, obj := range r.objects {
		if !domain.IsArchiveName(name) {
			continue
		}
		out = append(out, domain.Descriptor{Name: name, Key: name, Size: int64(len(obj.data)), LastModified: obj.modified})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LastModified.After(out[j].LastModified) })
	return out, nil
}

func (r *memRepo) Fetch(_ context.Context, name string) (io.ReadCloser, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failFetch != nil {
		return nil, r.failFetch
	}
	obj, ok := r.objects[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrArchiveNotFound, name)
	}
	return io.NopCloser(bytes.NewReader(obj.data)), nil
}

func (r *memRepo) Store(_ context.Context, name string, body io.Reader) error {
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	if r.failStore {
		return fmt.Errorf("store refused")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.put(name, data, r.now())
	return nil
}

func (r *memRepo) Delete(_ context.Context, name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failDel[name] {
		return fmt.Errorf("delete refused")
	}
	delete(r.objects, name)
	r.deleted = append(r.deleted, name)
	return nil
}

type memNotifier struct {
	messages []string
}

func (n *memNotifier) Notify(_ context.Context, msg string) error {
	n.messages = append(n.messages, msg)
	return nil
}

func doc(id int, fields ...document.Field) document.Document {
	return append(document.Document{{Key: "_id", Value: document.Int64(int64(id))}}, fields...)
}

func docs(n int) []document.Document {
	out := make([]document.Document, 0, n)
	for i := 1; i <= n; i++ {
		out = append(out, doc(i, document.Field{Key: "n", Value: document.Double(float64(i))}))
	}
	return out
}
