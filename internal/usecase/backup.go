package usecase

import (
	"context"
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
	"golang.org/x/sync/errgroup"

	"github.com/semmidev/mongovault/internal/domain"
)

type Logger interface {
	Infof(template string, args ...interface{})
	Errorf(template string, args ...interface{})
	Warnf(template string, args ...interface{})
}

type Backup struct {
	strategy   domain.Strategy
	repository domain.Repository
	cleanup    *Cleanup
	notifiers  []domain.Notifier
	logger     Logger
	nameFormat domain.NameFormat
	now        func() time.Time
}

func NewBackup(
	strategy domain.Strategy,
	repository domain.Repository,
	cleanup *Cleanup,
	notifiers []domain.Notifier,
	logger Logger,
	nameFormat domain.NameFormat,
) *Backup {
	return &Backup{
		strategy:   strategy,
		repository: repository,
		cleanup:    cleanup,
		notifiers:  notifiers,
		logger:     logger,
		nameFormat: nameFormat,
		now:        time.Now,
	}
}

// Execute captures one archive, stores it and then applies retention. A
// retention failure is logged but does not fail the backup.
func (uc *Backup) Execute(ctx context.Context) error {
	start := uc.now()
	name := domain.ArchiveName(start, uc.nameFormat)

	size, err := uc.run(ctx, name)
	if err != nil {
		uc.logger.Errorf("Backup %s failed: %v", name, err)
		uc.notify(ctx, fmt.Sprintf("❌ MongoDB backup %s failed: %v", name, err))
		return err
	}

	elapsed := uc.now().Sub(start).Round(time.Second)
	uc.logger.Infof("Backup completed in %s: %s (%s)", elapsed, name, humanize.Bytes(uint64(size)))
	uc.notify(ctx, fmt.Sprintf("✅ MongoDB backup %s completed in %s, size %s",
		name, elapsed, humanize.Bytes(uint64(size))))

	if uc.cleanup != nil {
		if _, err := uc.cleanup.Execute(ctx); err != nil {
			uc.logger.Errorf("Cleanup failed: %v", err)
		}
	}
	return nil
}

func (uc *Backup) run(ctx context.Context, name string) (int64, error) {
	uc.logger.Infof("Starting backup with the %s strategy...", uc.strategy.Name())

	if err := uc.strategy.Ping(ctx); err != nil {
		return 0, fmt.Errorf("database ping: %w", err)
	}

	pr, pw := io.Pipe()
	counter := &byteCounter{r: pr}
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		err := uc.strategy.Dump(gctx, pw)
		pw.CloseWithError(err)
		if err != nil {
			return fmt.Errorf("dump: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		uc.logger.Infof("Uploading %s...", name)
		err := uc.repository.Store(gctx, name, counter)
		if err != nil {
			pr.CloseWithError(err)
			return fmt.Errorf("upload %s: %w", name, err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return counter.n.Load(), err
	}
	return counter.n.Load(), nil
}

func (uc *Backup) notify(ctx context.Context, msg string) {
	for _, n := range uc.notifiers {
		if err := n.Notify(ctx, msg); err != nil {
			uc.logger.Warnf("Failed to send notification: %v", err)
		}
	}
}

type byteCounter struct {
	r io.Reader
	n atomic.Int64
}

func (c *byteCounter) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n.Add(int64(n))
	return n, err
}
