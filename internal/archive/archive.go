// Package archive encodes snapshots as a stream of newline-delimited
// canonical MongoDB Extended JSON records.
//
// Record framing is Extended JSON. Documents and index specifications are
// carried as raw BSON inside a binary field, so every value keeps its exact
// BSON type and field names that look like Extended JSON wrappers
// ($numberLong, $oid, ...) are stored as plain names. A stream is:
//
//	{"type":"header", ...}
//	{"type":"begin","db":...,"coll":...,"indexes":[<bson>, ...]}
//	{"type":"doc","doc":<bson>}           (zero or more)
//	{"type":"end","count":...}
//	...                                   (more collections)
//	{"type":"trailer","collections":...,"documents":...}
//
// A stream without its trailer is malformed, so a backup interrupted half
// way can never be restored as if it were complete.
package archive

import (
	"context"
	"io"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/semmidev/mongovault/internal/document"
	"github.com/semmidev/mongovault/internal/snapshot"
)

const (
	formatName    = "mongovault"
	formatVersion = 2
)

const (
	recordHeader   = "header"
	recordBegin    = "begin"
	recordDocument = "doc"
	recordEnd      = "end"
	recordTrailer  = "trailer"
)

type envelope struct {
	Type string `bson:"type"`
}

type headerRecord struct {
	Type      string             `bson:"type"`
	Format    string             `bson:"format"`
	Version   int32              `bson:"version"`
	CreatedAt primitive.DateTime `bson:"createdAt"`
}

type beginRecord struct {
	Type       string   `bson:"type"`
	Database   string   `bson:"db"`
	Collection string   `bson:"coll"`
	Indexes    [][]byte `bson:"indexes"`
}

type documentRecord struct {
	Type     string `bson:"type"`
	Document []byte `bson:"doc"`
}

type endRecord struct {
	Type  string `bson:"type"`
	Count int64  `bson:"count"`
}

type trailerRecord struct {
	Type        string `bson:"type"`
	Collections int64  `bson:"collections"`
	Documents   int64  `bson:"documents"`
}

// Encode writes s to w as a complete archive.
func Encode(ctx context.Context, w io.Writer, s *snapshot.Snapshot) error {
	aw := NewWriter(w, s.CreatedAt)
	if err := s.Replay(ctx, aw); err != nil {
		return err
	}
	return aw.Close()
}

// Decode reads a complete archive into memory.
func Decode(ctx context.Context, r io.Reader) (*snapshot.Snapshot, error) {
	ar := NewReader(r)
	createdAt, err := ar.ReadHeader()
	if err != nil {
		return nil, err
	}
	b := snapshot.NewBuilder(createdAt)
	if err := ar.Replay(ctx, b); err != nil {
		return nil, err
	}
	return b.Snapshot(), nil
}

// marshal renders d as a raw BSON document.
func marshal(d document.Document) ([]byte, error) {
	return bson.Marshal(d.BSON())
}

func toDateTime(t time.Time) primitive.DateTime {
	return primitive.NewDateTimeFromTime(t)
}
