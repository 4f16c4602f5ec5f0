package app

import (
	"context"
	"fmt"
	"time"

	"github.com/semmidev/mongovault/internal/adapter/compressor"
	"github.com/semmidev/mongovault/internal/adapter/database"
	"github.com/semmidev/mongovault/internal/adapter/notifier"
	"github.com/semmidev/mongovault/internal/adapter/storage"
	"github.com/semmidev/mongovault/internal/config"
	"github.com/semmidev/mongovault/internal/domain"
	"github.com/semmidev/mongovault/internal/infrastructure/logger"
	"github.com/semmidev/mongovault/internal/infrastructure/scheduler"
	"github.com/semmidev/mongovault/internal/usecase"
)

// App holds everything one run needs. It is built from a single Config and
// torn down by Shutdown.
type App struct {
	config     *config.Config
	logger     *logger.Logger
	db         domain.Database
	strategy   domain.Strategy
	repository domain.Repository
	notifiers  []domain.Notifier
	scheduler  *scheduler.Scheduler
}

func New(ctx context.Context, cfg *config.Config) (*App, error) {
	log, err := logger.New(cfg.App.LogLevel, cfg.App.LogFile)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return NewWithLogger(ctx, cfg, log)
}

// NewWithLogger wires the app around an existing logger.
func NewWithLogger(ctx context.Context, cfg *config.Config, log *logger.Logger) (*App, error) {
	a := &App{config: cfg, logger: log}

	repository, err := storage.New(ctx, &cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize %s storage: %w", cfg.Storage.Type, err)
	}
	a.repository = repository
	log.Infof("✓ Storage: %s", storage.Describe(&cfg.Storage))

	if err := a.initStrategy(ctx); err != nil {
		return nil, err
	}
	a.notifiers = initNotifiers(cfg, log)

	return a, nil
}

func (a *App) initStrategy(ctx context.Context) error {
	cfg := a.config
	switch cfg.Backup.Strategy {
	case config.StrategyMongoDump:
		strategy, err := database.NewMongoDump(cfg.MongoDB.URI)
		if err != nil {
			return err
		}
		a.strategy = strategy

	default:
		db, err := database.NewMongoDB(ctx, cfg.MongoDB.URI, cfg.MongoDB.ConnectTimeout)
		if err != nil {
			return err
		}
		a.db = db
		gz, err := compressor.NewGzipLevel(cfg.Backup.CompressionLevel)
		if err != nil {
			return err
		}
		a.strategy = usecase.NewDriverStrategy(db, gz, a.logger).
			WithBatchSize(cfg.Backup.BatchSize)
		if name := db.DefaultDatabase(); name != "" {
			a.logger.Infof("✓ Scope: database %s", name)
		} else {
			a.logger.Infof("✓ Scope: all non-system databases")
		}
	}

	a.logger.Infof("✓ Strategy: %s", a.strategy.Name())
	return nil
}

func initNotifiers(cfg *config.Config, log *logger.Logger) []domain.Notifier {
	var notifiers []domain.Notifier
	if cfg.TelegramEnabled() {
		tg, err := notifier.NewTelegram(cfg.Telegram.BotToken, cfg.Telegram.ChatID)
		if err != nil {
			log.Errorf("Failed to initialize Telegram: %v", err)
		} else {
			notifiers = append(notifiers, tg)
			log.Infof("✓ Telegram notifications enabled")
		}
	}
	return notifiers
}

func (a *App) Logger() *logger.Logger {
	return a.logger
}

// DropDelay is how long a --drop restore waits before touching data.
func (a *App) DropDelay() time.Duration {
	return a.config.Restore.DropDelay
}

func (a *App) backupUseCase() *usecase.Backup {
	cleanup := usecase.NewCleanup(a.repository, a.logger, a.config.Backup.RetentionDays)
	return usecase.NewBackup(
		a.strategy,
		a.repository,
		cleanup,
		a.notifiers,
		a.logger,
		domain.NameFormat(a.config.Backup.NameFormat),
	)
}

// RunBackup runs one backup when no schedule is configured. Otherwise it
// runs on the schedule until ctx is cancelled, starting with an immediate
// run when runNow is set.
func (a *App) RunBackup(ctx context.Context, runNow bool) error {
	backupUC := a.backupUseCase()
	spec := a.config.Backup.Schedule

	if spec == "" {
		a.logger.Infof("No schedule configured, running a single backup")
		return backupUC.Execute(ctx)
	}

	if err := scheduler.Validate(spec); err != nil {
		return fmt.Errorf("invalid backup schedule %q: %w", spec, err)
	}

	a.scheduler = scheduler.New(a.logger.Cron())
	if err := a.scheduler.AddJob(spec, func(ctx context.Context) error {
		a.logger.Infof("=== Triggered scheduled backup ===")
		return backupUC.Execute(ctx)
	}); err != nil {
		return fmt.Errorf("failed to schedule backup: %w", err)
	}

	if runNow {
		if err := backupUC.Execute(ctx); err != nil {
			a.logger.Errorf("Initial backup failed: %v", err)
		}
	}

	a.scheduler.Start()
	a.logger.Infof("Scheduler started (%s), next run at %s", spec, a.scheduler.Next().Format(time.RFC3339))

	<-ctx.Done()
	return nil
}

// ResolveArchive returns name, or the latest archive when name is empty.
func (a *App) ResolveArchive(ctx context.Context, name string) (string, error) {
	return a.restoreUseCase().Resolve(ctx, name)
}

func (a *App) Restore(ctx context.Context, name string, opts domain.RestoreOptions) error {
	return a.restoreUseCase().Execute(ctx, name, opts)
}

func (a *App) List(ctx context.Context) ([]domain.Descriptor, error) {
	return a.restoreUseCase().List(ctx)
}

func (a *App) restoreUseCase() *usecase.Restore {
	return usecase.NewRestore(a.strategy, a.repository, a.logger, a.config.Backup.TempDir)
}

func (a *App) Shutdown(ctx context.Context) {
	a.logger.Infof("Shutting down application...")
	if a.scheduler != nil {
		a.scheduler.Stop()
	}
	if a.db != nil {
		if err := a.db.Disconnect(ctx); err != nil {
			a.logger.Warnf("Failed to disconnect from MongoDB: %v", err)
		}
	}
	a.logger.Close()
}
