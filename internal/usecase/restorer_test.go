package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/semmidev/mongovault/internal/document"
	"github.com/semmidev/mongovault/internal/domain"
	"github.com/semmidev/mongovault/internal/snapshot"
)

func expiryIndex() snapshot.IndexDefinition {
	return snapshot.IndexDefinition{
		Name: "created_ttl",
		Keys: document.Document{{Key: "created", Value: document.Int32(1)}},
		Options: document.Document{
			{Key: "v", Value: document.Int32(2)},
			{Key: "expireAfterSeconds", Value: document.Int32(86400)},
		},
	}
}

func sourceSnapshot() *snapshot.Snapshot {
	s := snapshot.New(time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC))
	s.Databases["shop"] = snapshot.DatabaseSnapshot{Collections: map[string]snapshot.CollectionSnapshot{
		"orders": {
			Documents: docs(25),
			Indexes:   []snapshot.IndexDefinition{primaryIndex(), expiryIndex()},
		},
	}}
	s.Databases["blog"] = snapshot.DatabaseSnapshot{Collections: map[string]snapshot.CollectionSnapshot{
		"posts": {
			Documents: docs(3),
			Indexes:   []snapshot.IndexDefinition{primaryIndex()},
		},
	}}
	return s
}

func restore(ctx context.Context, target *memDB, s *snapshot.Snapshot, scope snapshot.Scope, drop bool) (RestoreReport, error) {
	r := NewRestorer(target, nopLogger{}, scope, domain.RestoreOptions{Drop: drop}).WithBatchSize(10)
	err := s.Replay(ctx, r)
	return r.Report(), err
}

func TestRestorer(t *testing.T) {
	Convey("Given a snapshot and an empty target", t, func() {
		ctx := context.Background()
		target := newMemDB()
		source := sourceSnapshot()

		Convey("A restore inserts every document in batches", func() {
			report, err := restore(ctx, target, source, snapshot.AllDatabases(), false)
			So(err, ShouldBeNil)
			So(report.Inserted(), ShouldEqual, 28)
			So(report.Duplicates(), ShouldEqual, 0)
			So(target.count("shop", "orders"), ShouldEqual, 25)
			So(target.inserts, ShouldEqual, 4)
		})

		Convey("Restoring twice without drop skips every duplicate", func() {
			_, err := restore(ctx, target, source, snapshot.AllDatabases(), false)
			So(err, ShouldBeNil)
			first := capture(target)

			report, err := restore(ctx, target, source, snapshot.AllDatabases(), false)
			So(err, ShouldBeNil)
			So(report.Inserted(), ShouldEqual, 0)
			So(report.Duplicates(), ShouldEqual, 28)
			So(target.count("shop", "orders"), ShouldEqual, 25)
			So(capture(target).Equal(first), ShouldBeTrue)

			for _, c := range report.Collections {
				So(c.Attempted, ShouldEqual, c.Inserted+c.Duplicates)
			}
		})

		Convey("Restoring twice with drop yields the same state", func() {
			target.seed("shop", "orders", doc(999))

			_, err := restore(ctx, target, source, snapshot.AllDatabases(), true)
			So(err, ShouldBeNil)
			first := capture(target)
			So(target.count("shop", "orders"), ShouldEqual, 25)

			report, err := restore(ctx, target, source, snapshot.AllDatabases(), true)
			So(err, ShouldBeNil)
			So(report.Inserted(), ShouldEqual, 28)
			So(report.Collections[0].Dropped, ShouldBeTrue)
			So(capture(target).Equal(first), ShouldBeTrue)
		})

		Convey("Dropping a missing collection is not an error", func() {
			report, err := restore(ctx, target, source, snapshot.SingleDatabase("blog"), true)
			So(err, ShouldBeNil)
			So(report.Inserted(), ShouldEqual, 3)
		})

		Convey("The primary index is never recreated", func() {
			_, err := restore(ctx, target, source, snapshot.AllDatabases(), false)
			So(err, ShouldBeNil)
			So(target.indexCalls, ShouldNotContain, snapshot.PrimaryIndexName)
			So(target.indexCalls, ShouldResemble, []string{"created_ttl"})
		})

		Convey("Index metadata is stripped before creation", func() {
			_, err := restore(ctx, target, source, snapshot.AllDatabases(), false)
			So(err, ShouldBeNil)
			created := target.data["shop"]["orders"].indexes[1]
			_, hasVersion := created.Options.Lookup("v")
			So(hasVersion, ShouldBeFalse)
		})

		Convey("Recreating an identical index is a no-op", func() {
			_, err := restore(ctx, target, source, snapshot.AllDatabases(), false)
			So(err, ShouldBeNil)

			report, err := restore(ctx, target, source, snapshot.AllDatabases(), false)
			So(err, ShouldBeNil)
			So(len(target.data["shop"]["orders"].indexes), ShouldEqual, 2)

			orders := report.Collections[1]
			So(orders.Collection, ShouldEqual, "orders")
			So(orders.IndexesSkipped, ShouldEqual, 1)
			So(orders.IndexesCreated, ShouldEqual, 0)
			So(orders.IndexConflicts, ShouldEqual, 0)
		})

		Convey("An equivalent index under another name is a no-op", func() {
			existing := expiryIndex()
			existing.Name = "created_1"
			c := target.seed("shop", "orders")
			c.indexes = append(c.indexes, existing.Clean())

			report, err := restore(ctx, target, source, snapshot.SingleDatabase("shop"), false)
			So(err, ShouldBeNil)
			So(report.Collections[0].IndexesSkipped, ShouldEqual, 1)
			So(len(target.data["shop"]["orders"].indexes), ShouldEqual, 2)
		})

		Convey("Same name with a different spec is reported as a conflict", func() {
			conflicting := expiryIndex().Clean()
			conflicting.Keys = document.Document{{Key: "created", Value: document.Int32(-1)}}
			c := target.seed("shop", "orders")
			c.indexes = append(c.indexes, conflicting)

			report, err := restore(ctx, target, source, snapshot.SingleDatabase("shop"), false)
			So(err, ShouldBeNil)
			So(report.IndexConflicts(), ShouldEqual, 1)
			So(report.Inserted(), ShouldEqual, 25)

			kept := target.data["shop"]["orders"].indexes[1]
			So(kept.Keys.Equal(conflicting.Keys), ShouldBeTrue)
		})

		Convey("Scope limits the restore to the selected database", func() {
			report, err := restore(ctx, target, source, snapshot.SingleDatabase("shop"), false)
			So(err, ShouldBeNil)
			So(report.SkippedDatabases, ShouldResemble, []string{"blog"})
			_, restored := target.data["blog"]
			So(restored, ShouldBeFalse)
			So(target.count("shop", "orders"), ShouldEqual, 25)
		})

		Convey("System databases in a snapshot are not restored in the all scope", func() {
			source.Databases["admin"] = snapshot.DatabaseSnapshot{Collections: map[string]snapshot.CollectionSnapshot{
				"users": {Documents: docs(1)},
			}}
			_, err := restore(ctx, target, source, snapshot.AllDatabases(), false)
			So(err, ShouldBeNil)
			_, restored := target.data["admin"]
			So(restored, ShouldBeFalse)
		})

		Convey("A non-duplicate write failure aborts the restore", func() {
			target.insertErr = errors.New("document too large")
			_, err := restore(ctx, target, source, snapshot.AllDatabases(), false)
			So(errors.Is(err, domain.ErrRestoreWriteFailed), ShouldBeTrue)
		})

		Convey("Cancellation stops new writes but lets the issued one finish", func() {
			cctx, cancel := context.WithCancel(ctx)
			defer cancel()
			target.afterInsert = cancel

			_, err := restore(cctx, target, source, snapshot.SingleDatabase("shop"), false)
			So(errors.Is(err, context.Canceled), ShouldBeTrue)
			So(target.inserts, ShouldEqual, 1)
			So(target.count("shop", "orders"), ShouldEqual, 10)
			So(target.indexCalls, ShouldBeEmpty)
		})

		Convey("A cancelled context mutates nothing", func() {
			cctx, cancel := context.WithCancel(ctx)
			cancel()
			_, err := restore(cctx, target, source, snapshot.AllDatabases(), true)
			So(errors.Is(err, context.Canceled), ShouldBeTrue)
			So(target.mutations, ShouldEqual, 0)
		})
	})
}
