// Package document holds the typed value model used for captured documents.
//
// A Value is a closed variant over every BSON type a backup has to carry
// without loss. Plain JSON collapses several of them (int64 and double,
// decimal128 and double, dates and strings), so documents never travel as
// untyped maps inside this module.
package document

import (
	"bytes"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Kind identifies the variant held by a Value.
type Kind int

const (
	KindNull Kind = iota
	KindUndefined
	KindString
	KindInt32
	KindInt64
	KindDouble
	KindDecimal
	KindBool
	KindDateTime
	KindBinary
	KindUUID
	KindObjectID
	KindTimestamp
	KindRegex
	KindJavaScript
	KindMinKey
	KindMaxKey
	KindDocument
	KindArray
)

var kindNames = map[Kind]string{
	KindNull:       "null",
	KindUndefined:  "undefined",
	KindString:     "string",
	KindInt32:      "int32",
	KindInt64:      "int64",
	KindDouble:     "double",
	KindDecimal:    "decimal",
	KindBool:       "bool",
	KindDateTime:   "datetime",
	KindBinary:     "binary",
	KindUUID:       "uuid",
	KindObjectID:   "objectId",
	KindTimestamp:  "timestamp",
	KindRegex:      "regex",
	KindJavaScript: "javascript",
	KindMinKey:     "minKey",
	KindMaxKey:     "maxKey",
	KindDocument:   "document",
	KindArray:      "array",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Value is an immutable typed document value. The zero Value is null.
type Value struct {
	kind Kind
	str  string // string, javascript, regex pattern
	opt  string // regex options
	num  int64  // int32, int64, bool, datetime millis
	f    float64
	dec  primitive.Decimal128
	sub  byte
	bin  []byte
	oid  primitive.ObjectID
	uid  uuid.UUID
	ts   primitive.Timestamp
	doc  Document
	arr  []Value
}

func Null() Value { return Value{kind: KindNull} }
func Undefined() Value { return Value{kind: KindUndefined} }
func String(s string) Value { return Value{kind: KindString, str: s} }
func Int32(i int32) Value { return Value{kind: KindInt32, num: int64(i)} }
func Int64(i int64) Value { return Value{kind: KindInt64, num: i} }
func Double(f float64) Value { return Value{kind: KindDouble, f: f} }
func JavaScript(code string) Value { return Value{kind: KindJavaScript, str: code} }
func MinKey() Value { return Value{kind: KindMinKey} }
func MaxKey() Value { return Value{kind: KindMaxKey} }

func Decimal(d primitive.Decimal128) Value { return Value{kind: KindDecimal, dec: d} }

// ParseDecimal builds a decimal value from its string form.
func ParseDecimal(s string) (Value, error) {
	d, err := primitive.ParseDecimal128(s)
	if err != nil {
		return Value{}, fmt.Errorf("parse decimal %q: %w", s, err)
	}
	return Decimal(d), nil
}

func Bool(b bool) Value {
	v := Value{kind: KindBool}
	if b {
		v.num = 1
	}
	return v
}

// DateTime truncates t to millisecond precision, the resolution BSON stores.
func DateTime(t time.Time) Value {
	return DateTimeMillis(t.UnixMilli())
}

func DateTimeMillis(ms int64) Value { return Value{kind: KindDateTime, num: ms} }

// Binary holds opaque bytes. A 16-byte subtype 4 payload is an RFC 4122
// UUID and becomes a UUID value, so each BSON binary has one representation.
func Binary(subtype byte, data []byte) Value {
	if subtype == uuidSubtype && len(data) == 16 {
		var u uuid.UUID
		copy(u[:], data)
		return UUID(u)
	}
	return Value{kind: KindBinary, sub: subtype, bin: bytes.Clone(data)}
}

func UUID(u uuid.UUID) Value { return Value{kind: KindUUID, uid: u} }

func ObjectID(id primitive.ObjectID) Value { return Value{kind: KindObjectID, oid: id} }

func Timestamp(t, i uint32) Value {
	return Value{kind: KindTimestamp, ts: primitive.Timestamp{T: t, I: i}}
}

func Regex(pattern, options string) Value {
	return Value{kind: KindRegex, str: pattern, opt: options}
}

func Doc(d Document) Value { return Value{kind: KindDocument, doc: d} }

func Array(values ...Value) Value { return Value{kind: KindArray, arr: values} }

func (v Value) Kind() Kind { return v.kind }

// AsString returns the text of string and javascript values and the pattern
// of regex values.
func (v Value) AsString() string { return v.str }

func (v Value) AsInt64() int64 { return v.num }

func (v Value) AsDouble() float64 { return v.f }

func (v Value) AsBool() bool { return v.num != 0 }

func (v Value) AsDecimal() primitive.Decimal128 { return v.dec }

func (v Value) AsTime() time.Time { return time.UnixMilli(v.num).UTC() }

func (v Value) AsBinary() (byte, []byte) { return v.sub, v.bin }

func (v Value) AsUUID() uuid.UUID { return v.uid }

func (v Value) AsObjectID() primitive.ObjectID { return v.oid }

func (v Value) AsTimestamp() primitive.Timestamp { return v.ts }

func (v Value) AsDocument() Document { return v.doc }

func (v Value) AsArray() []Value { return v.arr }

// IsNumber reports whether v holds one of the numeric kinds.
func (v Value) IsNumber() bool {
	switch v.kind {
	case KindInt32, KindInt64, KindDouble, KindDecimal:
		return true
	}
	return false
}

// Equal reports structural equality. Kinds must match exactly, doubles are
// compared bit for bit and embedded documents ignore field order.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindNull, KindUndefined, KindMinKey, KindMaxKey:
		return true
	case KindString, KindJavaScript:
		return v.str == o.str
	case KindRegex:
		return v.str == o.str && v.opt == o.opt
	case KindInt32, KindInt64, KindBool, KindDateTime:
		return v.num == o.num
	case KindDouble:
		return math.Float64bits(v.f) == math.Float64bits(o.f)
	case KindDecimal:
		vh, vl := v.dec.GetBytes()
		oh, ol := o.dec.GetBytes()
		return vh == oh && vl == ol
	case KindBinary:
		return v.sub == o.sub && bytes.Equal(v.bin, o.bin)
	case KindUUID:
		return v.uid == o.uid
	case KindObjectID:
		return v.oid == o.oid
	case KindTimestamp:
		return v.ts.Equal(o.ts)
	case KindDocument:
		return v.doc.Equal(o.doc)
	case KindArray:
		if len(v.arr) != len(o.arr) {
			return false
		}
		for i := range v.arr {
			if !v.arr[i].Equal(o.arr[i]) {
				return false
			}
		}
		return true
	}
	return false
}

// Equivalent is Equal with numeric kinds compared by value, the way the
// server compares index key patterns and options.
func (v Value) Equivalent(o Value) bool {
	if v.IsNumber() && o.IsNumber() {
		return v.float() == o.float()
	}
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindDocument:
		return v.doc.Equivalent(o.doc)
	case KindArray:
		if len(v.arr) != len(o.arr) {
			return false
		}
		for i := range v.arr {
			if !v.arr[i].Equivalent(o.arr[i]) {
				return false
			}
		}
		return true
	}
	return v.Equal(o)
}

func (v Value) float() float64 {
	switch v.kind {
	case KindInt32, KindInt64:
		return float64(v.num)
	case KindDouble:
		return v.f
	case KindDecimal:
		f, err := strconv.ParseFloat(v.dec.String(), 64)
		if err != nil {
			return math.NaN()
		}
		return f
	}
	return math.NaN()
}
