package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/semmidev/mongovault/internal/domain"
)

type restoreOptions struct {
	configPath string
	file       string
	latest     bool
	drop       bool
	list       bool
}

// NewRestoreCommand builds the root command of the restore binary.
func NewRestoreCommand() *cobra.Command {
	opts := &restoreOptions{}

	cmd := &cobra.Command{
		Use:   "restore [file]",
		Short: "Restore a MongoDB backup from storage",
		Long: `Restores an archive produced by the backup command into the configured
MongoDB deployment. Without a file the most recent archive is used.

Documents that already exist are skipped as duplicates and existing indexes
are left alone, so restoring twice is safe. Use --drop to replace the
collections in the archive instead.`,
		Example: `  restore --list
  restore --latest
  restore mongodb-backup-20240701.gz
  restore -f mongodb-backup-20240701.gz --drop`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRestore(cmd, args, opts)
		},
	}

	addConfigFlag(cmd, &opts.configPath)
	cmd.Flags().StringVarP(&opts.file, "file", "f", "", "archive name to restore")
	cmd.Flags().BoolVarP(&opts.latest, "latest", "l", false, "restore the most recent archive (default when no file is given)")
	cmd.Flags().BoolVarP(&opts.drop, "drop", "d", false, "drop each collection before restoring it")
	cmd.Flags().BoolVar(&opts.list, "list", false, "list stored archives and exit")
	cmd.MarkFlagsMutuallyExclusive("file", "latest")

	return cmd
}

// archiveName picks the archive from the positional argument or --file.
// An empty result means the latest archive.
func (o *restoreOptions) archiveName(args []string) (string, error) {
	name := o.file
	if len(args) == 1 {
		if name != "" && name != args[0] {
			return "", fmt.Errorf("archive given twice: %q and %q", args[0], name)
		}
		name = args[0]
	}
	if o.latest && name != "" {
		return "", errors.New("--latest cannot be combined with a file name")
	}
	return name, nil
}

func runRestore(cmd *cobra.Command, args []string, opts *restoreOptions) error {
	name, err := opts.archiveName(args)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	application, err := openApp(ctx, opts.configPath)
	if err != nil {
		return err
	}
	defer application.Shutdown(context.WithoutCancel(ctx))

	out := cmd.OutOrStdout()

	if opts.list {
		archives, err := application.List(ctx)
		if err != nil {
			return fmt.Errorf("list backups: %w", err)
		}
		printArchives(out, archives, time.Now())
		return nil
	}

	name, err = application.ResolveArchive(ctx, name)
	if err != nil {
		return err
	}

	if opts.drop {
		if err := waitBeforeDrop(ctx, out, name, application.DropDelay()); err != nil {
			return err
		}
	}

	if err := application.Restore(ctx, name, domain.RestoreOptions{Drop: opts.drop}); err != nil {
		return err
	}

	fmt.Fprintf(out, "✅ Restored %s\n", name)
	return nil
}
