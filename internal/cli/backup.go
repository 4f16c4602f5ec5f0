package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/semmidev/mongovault/internal/app"
	"github.com/semmidev/mongovault/internal/infrastructure/logger"
)

type backupOptions struct {
	configPath string
	runNow     bool
}

// NewBackupCommand builds the root command of the backup binary.
func NewBackupCommand() *cobra.Command {
	opts := &backupOptions{}

	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Back up MongoDB to object storage",
		Long: `Takes a full snapshot of the configured MongoDB deployment, compresses it
and stores it as mongodb-backup-<date>.gz. Archives older than
BACKUP_RETENTION_DAYS are removed after each successful run.

Without BACKUP_CRON_SCHEDULE a single backup is taken. With it the command
keeps running and backs up on the schedule until interrupted.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			application, err := openApp(ctx, opts.configPath)
			if err != nil {
				return err
			}
			defer application.Shutdown(context.WithoutCancel(ctx))

			return application.RunBackup(ctx, opts.runNow)
		},
	}

	addConfigFlag(cmd, &opts.configPath)
	cmd.Flags().BoolVar(&opts.runNow, "run-now", false, "with a schedule, also take a backup immediately")

	cmd.AddCommand(newDriveAuthCommand())
	return cmd
}

func newDriveAuthCommand() *cobra.Command {
	var addr, clientSecret string

	cmd := &cobra.Command{
		Use:   "gdrive-auth",
		Short: "Obtain a Google Drive refresh token",
		Long: `Serves the Google OAuth consent flow on --addr. Open
http://localhost<addr>/auth/google/drive, grant access, and copy the printed
refresh token into GDRIVE_REFRESH_TOKEN.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if clientSecret == "" {
				clientSecret = os.Getenv("GDRIVE_CLIENT_SECRET_FILE")
			}

			log, err := logger.New("info", "")
			if err != nil {
				return fmt.Errorf("failed to initialize logger: %w", err)
			}
			defer log.Close()

			server, err := app.NewDriveAuthServer(log, clientSecret)
			if err != nil {
				return err
			}
			server.Start(addr)

			<-cmd.Context().Done()

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return server.Shutdown(shutdownCtx)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", ":8085", "listen address of the OAuth helper")
	cmd.Flags().StringVar(&clientSecret, "client-secret", "", "OAuth client secret JSON (default $GDRIVE_CLIENT_SECRET_FILE)")
	return cmd
}
