package document

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ErrUnsupportedType is returned for BSON types the server deprecated and a
// backup refuses to carry (symbol, DBPointer, code with scope).
var ErrUnsupportedType = errors.New("unsupported bson type")

// uuidSubtype is the BSON binary subtype for RFC 4122 UUIDs.
const uuidSubtype byte = 0x04

type Field struct {
	Key   string
	Value Value
}

// Document is an ordered list of fields.
type Document []Field

// Lookup returns the first field named key.
func (d Document) Lookup(key string) (Value, bool) {
	for _, f := range d {
		if f.Key == key {
			return f.Value, true
		}
	}
	return Value{}, false
}

// Without returns a copy of d minus the named keys.
func (d Document) Without(keys ...string) Document {
	drop := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		drop[k] = struct{}{}
	}
	out := make(Document, 0, len(d))
	for _, f := range d {
		if _, ok := drop[f.Key]; !ok {
			out = append(out, f)
		}
	}
	return out
}

// Equal compares documents field by field regardless of field order.
func (d Document) Equal(o Document) bool {
	return d.compare(o, Value.Equal)
}

// Equivalent is Equal with numbers compared by value.
func (d Document) Equivalent(o Document) bool {
	return d.compare(o, Value.Equivalent)
}

// EqualInOrder is Equal with field order significant, as for index key
// patterns where {a:1,b:1} and {b:1,a:1} are different indexes.
func (d Document) EqualInOrder(o Document) bool {
	return d.compareInOrder(o, Value.Equal)
}

// EquivalentInOrder is EqualInOrder with numbers compared by value.
func (d Document) EquivalentInOrder(o Document) bool {
	return d.compareInOrder(o, Value.Equivalent)
}

func (d Document) compareInOrder(o Document, eq func(Value, Value) bool) bool {
	if len(d) != len(o) {
		return false
	}
	for i := range d {
		if d[i].Key != o[i].Key || !eq(d[i].Value, o[i].Value) {
			return false
		}
	}
	return true
}

func (d Document) compare(o Document, eq func(Value, Value) bool) bool {
	if len(d) != len(o) {
		return false
	}
	for _, f := range d {
		ov, ok := o.Lookup(f.Key)
		if !ok || !eq(f.Value, ov) {
			return false
		}
	}
	return true
}

// BSON converts d into the driver's ordered document type.
func (d Document) BSON() bson.D {
	out := make(bson.D, 0, len(d))
	for _, f := range d {
		out = append(out, bson.E{Key: f.Key, Value: f.Value.BSON()})
	}
	return out
}

// BSON converts v into the matching driver value.
func (v Value) BSON() interface{} {
	switch v.kind {
	case KindNull:
		return nil
	case KindUndefined:
		return primitive.Undefined{}
	case KindString:
		return v.str
	case KindInt32:
		return int32(v.num)
	case KindInt64:
		return v.num
	case KindDouble:
		return v.f
	case KindDecimal:
		return v.dec
	case KindBool:
		return v.num != 0
	case KindDateTime:
		return primitive.DateTime(v.num)
	case KindBinary:
		return primitive.Binary{Subtype: v.sub, Data: v.bin}
	case KindUUID:
		return primitive.Binary{Subtype: uuidSubtype, Data: v.uid[:]}
	case KindObjectID:
		return v.oid
	case KindTimestamp:
		return v.ts
	case KindRegex:
		return primitive.Regex{Pattern: v.str, Options: v.opt}
	case KindJavaScript:
		return primitive.JavaScript(v.str)
	case KindMinKey:
		return primitive.MinKey{}
	case KindMaxKey:
		return primitive.MaxKey{}
	case KindDocument:
		return v.doc.BSON()
	case KindArray:
		out := make(bson.A, 0, len(v.arr))
		for _, e := range v.arr {
			out = append(out, e.BSON())
		}
		return out
	}
	return nil
}

// FromBSON converts a value decoded by the driver into a Value.
func FromBSON(x interface{}) (Value, error) {
	switch t := x.(type) {
	case nil, primitive.Null:
		return Null(), nil
	case primitive.Undefined:
		return Undefined(), nil
	case string:
		return String(t), nil
	case int32:
		return Int32(t), nil
	case int64:
		return Int64(t), nil
	case float64:
		return Double(t), nil
	case primitive.Decimal128:
		return Decimal(t), nil
	case bool:
		return Bool(t), nil
	case primitive.DateTime:
		return DateTimeMillis(int64(t)), nil
	case time.Time:
		return DateTime(t), nil
	case primitive.Binary:
		return Binary(t.Subtype, t.Data), nil
	case primitive.ObjectID:
		return ObjectID(t), nil
	case primitive.Timestamp:
		return Timestamp(t.T, t.I), nil
	case primitive.Regex:
		return Regex(t.Pattern, t.Options), nil
	case primitive.JavaScript:
		return JavaScript(string(t)), nil
	case primitive.MinKey:
		return MinKey(), nil
	case primitive.MaxKey:
		return MaxKey(), nil
	case primitive.D:
		d, err := FromD(t)
		if err != nil {
			return Value{}, err
		}
		return Doc(d), nil
	case primitive.M:
		d, err := fromM(t)
		if err != nil {
			return Value{}, err
		}
		return Doc(d), nil
	case primitive.A:
		return fromSlice(t)
	case []interface{}:
		return fromSlice(t)
	}
	return Value{}, fmt.Errorf("%w: %T", ErrUnsupportedType, x)
}

// FromD converts an ordered driver document.
func FromD(d bson.D) (Document, error) {
	out := make(Document, 0, len(d))
	for _, e := range d {
		v, err := FromBSON(e.Value)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", e.Key, err)
		}
		out = append(out, Field{Key: e.Key, Value: v})
	}
	return out, nil
}

// FromRaw decodes raw BSON bytes, as returned by a cursor, into a Document.
func FromRaw(raw bson.Raw) (Document, error) {
	var d bson.D
	if err := bson.Unmarshal(raw, &d); err != nil {
		return nil, fmt.Errorf("decode bson document: %w", err)
	}
	return FromD(d)
}

func fromM(m primitive.M) (Document, error) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make(Document, 0, len(m))
	for _, k := range keys {
		v, err := FromBSON(m[k])
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", k, err)
		}
		out = append(out, Field{Key: k, Value: v})
	}
	return out, nil
}

func fromSlice(items []interface{}) (Value, error) {
	out := make([]Value, 0, len(items))
	for i, item := range items {
		v, err := FromBSON(item)
		if err != nil {
			return Value{}, fmt.Errorf("index %d: %w", i, err)
		}
		out = append(out, v)
	}
	return Array(out...), nil
}
