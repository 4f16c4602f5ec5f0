package domain

import "errors"

var (
	// ErrConfigurationMissing means a required connection or credential
	// setting is absent. It is raised before any I/O.
	ErrConfigurationMissing = errors.New("configuration missing")

	// ErrArchiveUnreadable means the compressed stream is truncated or
	// corrupted.
	ErrArchiveUnreadable = errors.New("archive unreadable")

	// ErrMalformedArchive means the decompressed content is not a
	// well-formed archive.
	ErrMalformedArchive = errors.New("malformed archive")

	// ErrNoBackupsFound means the repository holds no archives.
	ErrNoBackupsFound = errors.New("no backups found")

	// ErrArchiveNotFound means a named archive does not exist.
	ErrArchiveNotFound = errors.New("archive not found")

	// ErrRestoreWriteFailed means the target rejected a document for a
	// reason other than a duplicate key.
	ErrRestoreWriteFailed = errors.New("restore write failed")

	// ErrIndexExists means an index with the same name and specification,
	// or an equivalent specification, is already present.
	ErrIndexExists = errors.New("index already exists")

	// ErrIndexConflict means an index with the same name but a different
	// specification is already present.
	ErrIndexConflict = errors.New("index conflict")
)
