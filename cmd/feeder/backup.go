package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/feeder/internal/backup"
	"github.com/alfredjeanlab/feeder/internal/blob"
)

var backupCmd = &cobra.Command{
	Use:     "backup",
	Short:   "Export, restore and schedule backups of saved state",
	GroupID: "system",
}

var backupExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write every saved record as JSONL",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		out, _ := cmd.Flags().GetString("output")
		noBlobs, _ := cmd.Flags().GetBool("no-attachments")

		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		var blobs blob.Store
		if !noBlobs {
			blobs = a.blobs
		}

		var w io.Writer = os.Stdout
		if out != "" && out != "-" {
			f, err := os.Create(out)
			if err != nil {
				return err
			}
			defer f.Close()
			w = f
		}
		return backup.ExportJSONL(cmd.Context(), a.store, blobs, w)
	},
}

var backupImportCmd = &cobra.Command{
	Use:   "import <file|->",
	Short: "Restore a JSONL export; records with the same key are replaced",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var r io.Reader = os.Stdin
		if args[0] != "-" {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()
			r = f
		}
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		res, err := backup.ImportJSONL(cmd.Context(), a.store, a.blobs, r)
		if err != nil {
			return err
		}
		fmt.Printf("restored %d records and %d attachments\n", res.Configs, res.Blobs)
		return nil
	},
}

var backupRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Push backups to the configured S3 and git destinations",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		once, _ := cmd.Flags().GetBool("once")
		ctx := cmd.Context()

		a, err := openApp(ctx)
		if err != nil {
			return err
		}
		dests, err := backupDestinations(ctx)
		if err != nil {
			return err
		}
		if len(dests) == 0 {
			return errors.New("no backup destination configured (set FEEDER_BACKUP_S3_BUCKET or FEEDER_BACKUP_GIT_REPO)")
		}

		sched := backup.NewScheduler(a.store, a.blobs, dests, cfg.BackupInterval, logger)
		if once || cfg.BackupInterval == 0 {
			if ok := sched.RunOnce(ctx); ok < len(dests) {
				return fmt.Errorf("%d of %d destinations failed", len(dests)-ok, len(dests))
			}
			return nil
		}

		sched.Start()
		logger.Info("backup scheduler started", "interval", cfg.BackupInterval, "destinations", len(dests))

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigCh
		logger.Info("received signal, shutting down", "signal", sig)

		sched.Stop()
		logger.Info("backup scheduler stopped")
		return nil
	},
}

func backupDestinations(ctx context.Context) ([]backup.Destination, error) {
	var dests []backup.Destination
	if cfg.BackupS3Bucket != "" {
		d, err := backup.NewS3Destination(ctx, cfg.BackupS3Bucket, cfg.BackupS3Key, cfg.BackupS3Region, cfg.BackupS3Endpoint)
		if err != nil {
			return nil, fmt.Errorf("S3 backup destination: %w", err)
		}
		dests = append(dests, d)
		logger.Debug("backup S3 destination enabled", "bucket", cfg.BackupS3Bucket, "key", cfg.BackupS3Key)
	}
	if cfg.BackupGitRepo != "" {
		dests = append(dests, backup.NewGitDestination(cfg.BackupGitRepo, cfg.BackupGitFile, cfg.BackupGitBranch))
		logger.Debug("backup git destination enabled", "repo", cfg.BackupGitRepo, "file", cfg.BackupGitFile)
	}
	return dests, nil
}

func init() {
	backupExportCmd.Flags().StringP("output", "o", "", "file to write (default stdout)")
	backupExportCmd.Flags().Bool("no-attachments", false, "leave attachment content out of the export")
	backupRunCmd.Flags().Bool("once", false, "run a single backup and exit")

	backupCmd.AddCommand(backupExportCmd, backupImportCmd, backupRunCmd)
}
