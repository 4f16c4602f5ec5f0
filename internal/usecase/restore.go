package usecase

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/dustin/go-humanize"

	"github.com/semmidev/mongovault/internal/domain"
)

// Latest returns the most recently modified archive in repo.
func Latest(ctx context.Context, repo domain.Repository) (domain.Descriptor, error) {
	archives, err := repo.List(ctx)
	if err != nil {
		return domain.Descriptor{}, fmt.Errorf("list archives: %w", err)
	}
	if len(archives) == 0 {
		return domain.Descriptor{}, domain.ErrNoBackupsFound
	}
	return archives[0], nil
}

type Restore struct {
	strategy   domain.Strategy
	repository domain.Repository
	logger     Logger
	tempDir    string
}

// NewRestore spools downloads into tempDir, or the system temp directory
// when tempDir is empty.
func NewRestore(strategy domain.Strategy, repository domain.Repository, logger Logger, tempDir string) *Restore {
	return &Restore{
		strategy:   strategy,
		repository: repository,
		logger:     logger,
		tempDir:    tempDir,
	}
}

// List returns the stored archives, newest first.
func (uc *Restore) List(ctx context.Context) ([]domain.Descriptor, error) {
	return uc.repository.List(ctx)
}

// Resolve returns name unchanged, or the latest archive name when name is
// empty.
func (uc *Restore) Resolve(ctx context.Context, name string) (string, error) {
	if name != "" {
		return name, nil
	}
	latest, err := Latest(ctx, uc.repository)
	if err != nil {
		return "", err
	}
	uc.logger.Infof("Latest backup is %s (%s)", latest.Name, latest.LastModified.Format("2006-01-02 15:04:05"))
	return latest.Name, nil
}

// Execute restores the named archive, or the latest one when name is empty.
// The archive is downloaded to a temporary file first; the file is removed
// on every path.
func (uc *Restore) Execute(ctx context.Context, name string, opts domain.RestoreOptions) error {
	name, err := uc.Resolve(ctx, name)
	if err != nil {
		return err
	}

	if err := uc.strategy.Ping(ctx); err != nil {
		return fmt.Errorf("database ping: %w", err)
	}

	spool, err := uc.download(ctx, name)
	if err != nil {
		return err
	}
	defer func() {
		spool.Close()
		os.Remove(spool.Name())
	}()

	uc.logger.Infof("Restoring %s with the %s strategy (drop: %t)...", name, uc.strategy.Name(), opts.Drop)
	if err := uc.strategy.Restore(ctx, spool, opts); err != nil {
		return fmt.Errorf("restore %s: %w", name, err)
	}

	uc.logger.Infof("Restore of %s completed", name)
	return nil
}

func (uc *Restore) download(ctx context.Context, name string) (*os.File, error) {
	body, err := uc.repository.Fetch(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", name, err)
	}
	defer body.Close()

	f, err := os.CreateTemp(uc.tempDir, "mongovault-restore-*.gz")
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}

	uc.logger.Infof("Downloading %s to %s...", name, f.Name())
	n, err := io.Copy(f, body)
	if err == nil {
		_, err = f.Seek(0, io.SeekStart)
	}
	if err != nil {
		f.Close()
		os.Remove(f.Name())
		return nil, fmt.Errorf("download %s: %w", name, err)
	}

	uc.logger.Infof("Downloaded %s", humanize.Bytes(uint64(n)))
	return f, nil
}
