package usecase

import (
	"bytes"
	"context"
	"errors"
	"os"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/semmidev/mongovault/internal/adapter/compressor"
	"github.com/semmidev/mongovault/internal/domain"
)

func TestRestore(t *testing.T) {
	Convey("Given a repository, a target and a spool directory", t, func() {
		ctx := context.Background()
		gz := compressor.NewGzip()
		now := time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC)
		spoolDir := t.TempDir()

		source := newMemDB()
		source.seed("shop", "orders", docs(5)...)
		var older, newer bytes.Buffer
		So(NewDriverStrategy(source, gz, nopLogger{}).Dump(ctx, &older), ShouldBeNil)
		source.seed("shop", "orders", docs(8)[5:]...)
		So(NewDriverStrategy(source, gz, nopLogger{}).Dump(ctx, &newer), ShouldBeNil)

		repo := newMemRepo()
		target := newMemDB()
		uc := NewRestore(NewDriverStrategy(target, gz, nopLogger{}), repo, nopLogger{}, spoolDir)

		spooled := func() int {
			entries, err := os.ReadDir(spoolDir)
			So(err, ShouldBeNil)
			return len(entries)
		}

		Convey("An empty repository fails with no backups found and mutates nothing", func() {
			err := uc.Execute(ctx, "", domain.RestoreOptions{Drop: true})
			So(errors.Is(err, domain.ErrNoBackupsFound), ShouldBeTrue)
			So(target.mutations, ShouldEqual, 0)

			_, err = Latest(ctx, repo)
			So(errors.Is(err, domain.ErrNoBackupsFound), ShouldBeTrue)
		})

		Convey("With two archives stored", func() {
			repo.put("mongodb-backup-20240620.gz", older.Bytes(), now.AddDate(0, 0, -11))
			repo.put("mongodb-backup-20240630.gz", newer.Bytes(), now.AddDate(0, 0, -1))

			Convey("The latest archive is the most recently modified", func() {
				latest, err := Latest(ctx, repo)
				So(err, ShouldBeNil)
				So(latest.Name, ShouldEqual, "mongodb-backup-20240630.gz")

				list, err := uc.List(ctx)
				So(err, ShouldBeNil)
				So(len(list), ShouldEqual, 2)
			})

			Convey("Restoring without a name uses the latest archive", func() {
				So(uc.Execute(ctx, "", domain.RestoreOptions{}), ShouldBeNil)
				So(target.count("shop", "orders"), ShouldEqual, 8)
				So(spooled(), ShouldEqual, 0)
			})

			Convey("Restoring a named archive uses that archive", func() {
				So(uc.Execute(ctx, "mongodb-backup-20240620.gz", domain.RestoreOptions{}), ShouldBeNil)
				So(target.count("shop", "orders"), ShouldEqual, 5)
			})

			Convey("An unknown name is reported as not found", func() {
				err := uc.Execute(ctx, "mongodb-backup-19990101.gz", domain.RestoreOptions{})
				So(errors.Is(err, domain.ErrArchiveNotFound), ShouldBeTrue)
				So(spooled(), ShouldEqual, 0)
			})

			Convey("A corrupt archive fails and its spool file is removed", func() {
				repo.put("mongodb-backup-20240701.gz", []byte("garbage"), now)
				err := uc.Execute(ctx, "", domain.RestoreOptions{})
				So(errors.Is(err, domain.ErrArchiveUnreadable), ShouldBeTrue)
				So(target.mutations, ShouldEqual, 0)
				So(spooled(), ShouldEqual, 0)
			})

			Convey("An unreachable target fails before downloading", func() {
				target.pingErr = errors.New("no reachable servers")
				err := uc.Execute(ctx, "", domain.RestoreOptions{})
				So(err, ShouldNotBeNil)
				So(spooled(), ShouldEqual, 0)
			})
		})
	})
}
