package storage

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/semmidev/mongovault/internal/domain"
)

type brokenReader struct{}

func (brokenReader) Read([]byte) (int, error) {
	return 0, errors.New("connection reset")
}

func TestLocalStorage(t *testing.T) {
	Convey("Given a LocalStorage", t, func() {
		tempDir, err := os.MkdirTemp("", "local_storage_test")
		So(err, ShouldBeNil)
		defer os.RemoveAll(tempDir)
		ctx := context.Background()

		Convey("NewLocal", func() {
			Convey("When creating with non-existent path", func() {
				newPath := filepath.Join(tempDir, "new", "nested", "dir")
				storage, err := NewLocal(newPath)

				Convey("It should create directory and succeed", func() {
					So(err, ShouldBeNil)
					So(storage, ShouldNotBeNil)

					info, err := os.Stat(newPath)
					So(err, ShouldBeNil)
					So(info.IsDir(), ShouldBeTrue)
				})
			})
		})

		Convey("Store and Fetch", func() {
			storage, _ := NewLocal(tempDir)

			Convey("When storing a stream", func() {
				err := storage.Store(ctx, "mongodb-backup-20240101.gz", strings.NewReader("test content"))
				So(err, ShouldBeNil)

				Convey("It can be fetched back", func() {
					body, err := storage.Fetch(ctx, "mongodb-backup-20240101.gz")
					So(err, ShouldBeNil)
					defer body.Close()
					content, err := io.ReadAll(body)
					So(err, ShouldBeNil)
					So(string(content), ShouldEqual, "test content")
				})
			})

			Convey("When the stream fails midway", func() {
				err := storage.Store(ctx, "mongodb-backup-20240101.gz", io.MultiReader(strings.NewReader("part"), brokenReader{}))

				Convey("Nothing is left behind", func() {
					So(err, ShouldNotBeNil)
					entries, _ := os.ReadDir(tempDir)
					So(len(entries), ShouldEqual, 0)
				})
			})

			Convey("When fetching a missing archive", func() {
				_, err := storage.Fetch(ctx, "mongodb-backup-19990101.gz")
				So(errors.Is(err, domain.ErrArchiveNotFound), ShouldBeTrue)
			})

			Convey("When the name escapes the directory", func() {
				So(storage.Store(ctx, "../escape.gz", strings.NewReader("x")), ShouldNotBeNil)
				_, err := storage.Fetch(ctx, "../escape.gz")
				So(err, ShouldNotBeNil)
			})
		})

		Convey("List method", func() {
			storage, _ := NewLocal(tempDir)

			Convey("When directory has archives and other files", func() {
				now := time.Now()
				for i, name := range []string{"mongodb-backup-20240101.gz", "mongodb-backup-20240301.gz", "mongodb-backup-20240201-120000.gz"} {
					p := filepath.Join(tempDir, name)
					So(os.WriteFile(p, []byte("test"), 0644), ShouldBeNil)
					mtime := now.Add(time.Duration(-i) * time.Hour)
					So(os.Chtimes(p, mtime, mtime), ShouldBeNil)
				}
				os.WriteFile(filepath.Join(tempDir, "notes.txt"), []byte("test"), 0644)
				os.Mkdir(filepath.Join(tempDir, "subdir"), 0755)

				archives, err := storage.List(ctx)

				Convey("It should list only archives, newest first", func() {
					So(err, ShouldBeNil)
					So(len(archives), ShouldEqual, 3)
					So(archives[0].Name, ShouldEqual, "mongodb-backup-20240101.gz")
					So(archives[1].Name, ShouldEqual, "mongodb-backup-20240301.gz")
					So(archives[2].Name, ShouldEqual, "mongodb-backup-20240201-120000.gz")
					So(archives[0].Size, ShouldEqual, 4)
				})
			})

			Convey("When directory is empty", func() {
				archives, err := storage.List(ctx)

				Convey("It should return empty list", func() {
					So(err, ShouldBeNil)
					So(len(archives), ShouldEqual, 0)
				})
			})
		})

		Convey("Delete method", func() {
			storage, _ := NewLocal(tempDir)

			Convey("When deleting existing archive", func() {
				name := "mongodb-backup-20240101.gz"
				os.WriteFile(filepath.Join(tempDir, name), []byte("test"), 0644)

				err := storage.Delete(ctx, name)

				Convey("It should delete successfully", func() {
					So(err, ShouldBeNil)
					_, err := os.Stat(filepath.Join(tempDir, name))
					So(os.IsNotExist(err), ShouldBeTrue)
				})
			})

			Convey("When deleting non-existent archive", func() {
				err := storage.Delete(ctx, "mongodb-backup-19990101.gz")

				Convey("It should return not found", func() {
					So(errors.Is(err, domain.ErrArchiveNotFound), ShouldBeTrue)
				})
			})
		})
	})
}
