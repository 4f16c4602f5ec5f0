// Package cli defines the cobra commands behind the backup and restore
// binaries.
package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gosuri/uitable"
	"github.com/spf13/cobra"

	"github.com/semmidev/mongovault/internal/app"
	"github.com/semmidev/mongovault/internal/config"
	"github.com/semmidev/mongovault/internal/domain"
)

func addConfigFlag(cmd *cobra.Command, path *string) {
	cmd.Flags().StringVar(path, "config", "", "config file (default is ./config.yaml or ./configs/config.yaml, if present)")
}

// openApp loads the configuration and wires an App. The caller owns the
// returned App and must Shutdown it.
func openApp(ctx context.Context, configPath string) (*app.App, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	application, err := app.New(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("initialize app: %w", err)
	}
	return application, nil
}

func printArchives(w io.Writer, archives []domain.Descriptor, now time.Time) {
	if len(archives) == 0 {
		fmt.Fprintln(w, "No backups found.")
		return
	}

	table := uitable.New()
	table.MaxColWidth = 60
	table.RightAlign(1)
	table.AddRow("NAME", "SIZE", "MODIFIED", "AGE")
	for _, a := range archives {
		table.AddRow(
			a.Name,
			humanize.Bytes(uint64(a.Size)),
			a.LastModified.UTC().Format("2006-01-02 15:04:05"),
			humanize.RelTime(a.LastModified, now, "ago", "from now"),
		)
	}
	fmt.Fprintln(w, table)
	fmt.Fprintf(w, "\n%d backup(s)\n", len(archives))
}

// waitBeforeDrop gives the operator delay to abort a destructive restore.
func waitBeforeDrop(ctx context.Context, w io.Writer, name string, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}

	fmt.Fprintf(w, "⚠️  --drop deletes existing collections before restoring %s.\n", name)
	fmt.Fprintf(w, "Press Ctrl+C within %s to abort.\n", delay)

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("restore aborted: %w", ctx.Err())
	}
}
