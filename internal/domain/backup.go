package domain

import (
	"context"
	"io"
	"path"
	"regexp"
	"time"
)

const (
	ArchivePrefix    = "mongodb-backup-"
	ArchiveExtension = ".gz"
)

// NameFormat selects how archive names encode the capture time.
type NameFormat string

const (
	// NameFormatDaily keeps one archive per calendar day; a second run on
	// the same day overwrites the first.
	NameFormatDaily NameFormat = "daily"
	// NameFormatTimestamp adds the time of day so every run is kept.
	NameFormatTimestamp NameFormat = "timestamp"
)

var archiveNamePattern = regexp.MustCompile(`^mongodb-backup-\d{8}(-\d{6})?\.gz$`)

// ArchiveName returns the archive name for a capture at t (UTC).
func ArchiveName(t time.Time, format NameFormat) string {
	layout := "20060102"
	if format == NameFormatTimestamp {
		layout = "20060102-150405"
	}
	return ArchivePrefix + t.UTC().Format(layout) + ArchiveExtension
}

// IsArchiveName reports whether name follows the archive naming convention.
func IsArchiveName(name string) bool {
	return archiveNamePattern.MatchString(name)
}

// ArchiveKey joins the optional key prefix and an archive name.
func ArchiveKey(prefix, name string) string {
	if prefix == "" {
		return name
	}
	return path.Join(prefix, name)
}

type RestoreOptions struct {
	Drop bool
}

// Strategy produces and consumes compressed archives. The driver strategy
// scans collections itself; the mongodump strategy delegates to the
// database tools.
type Strategy interface {
	Name() string
	Ping(ctx context.Context) error
	Dump(ctx context.Context, w io.Writer) error
	Restore(ctx context.Context, r io.Reader, opts RestoreOptions) error
}
