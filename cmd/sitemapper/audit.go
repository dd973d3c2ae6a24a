package main

import (
	"context"
	"fmt"
	"io"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kirillkom/site-mapper/internal/core/domain"
	"github.com/kirillkom/site-mapper/internal/core/ports"
)

func newAuditCmd(root *rootFlags, stdout, stderr io.Writer) *cobra.Command {
	var (
		folderID string
		out      string
		report   string
		notify   bool
	)

	cmd := &cobra.Command{
		Use:   "audit",
		Short: "List a Drive folder tree into the inventory and report duplicates",
		Long: `audit walks a Google Drive folder, writes every file to the inventory
JSON ({"files": [...]}, sorted by location and name) and an XLSX report with
the inventory and duplicate sets.

Examples:
  sitemapper audit --folder-id 1AbCdEfGhIjK --out file-mapping.json --report audit.xlsx`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			app, err := openApp(ctx, cmd, root, stderr)
			if err != nil {
				return err
			}
			defer app.Close()

			if strings.TrimSpace(folderID) == "" {
				folderID = app.Config.DriveFolderID
			}
			if strings.TrimSpace(folderID) == "" {
				return domain.WrapError(domain.ErrInvalidInput, "audit", fmt.Errorf("--folder-id or DRIVE_FOLDER_ID is required"))
			}
			if strings.TrimSpace(out) == "" {
				out = app.Config.InventoryPath
			}

			auditor, err := app.Auditor(ctx)
			if err != nil {
				return err
			}
			result, err := auditor.Audit(ctx, ports.AuditRequest{
				FolderID:      folderID,
				InventoryPath: out,
				ReportPath:    report,
			})
			if err != nil {
				return err
			}

			fmt.Fprintf(stdout, "%d files, %d duplicate sets -> %s\n", len(result.Files), len(result.Duplicates), out)
			if !notify {
				return nil
			}
			if app.Bus == nil {
				return fmt.Errorf("--notify needs NATS_URL")
			}
			return notifyWorkers(ctx, app.Bus, app.Logger)
		},
	}

	f := cmd.Flags()
	f.StringVar(&folderID, "folder-id", "", "Drive folder to list (default DRIVE_FOLDER_ID)")
	f.StringVar(&out, "out", "", "inventory output path (default --inventory)")
	f.StringVar(&report, "report", "inventory-audit.xlsx", "XLSX audit report path; empty disables it")
	f.BoolVar(&notify, "notify", false, "publish an inventory update for workers after the audit")
	return cmd
}

type inventoryPublisher interface {
	PublishInventoryUpdated(ctx context.Context, evt domain.InventoryUpdated) error
}

func notifyWorkers(ctx context.Context, bus inventoryPublisher, logger *zap.Logger) error {
	if err := bus.PublishInventoryUpdated(ctx, domain.InventoryUpdated{}); err != nil {
		return fmt.Errorf("publish inventory update: %w", err)
	}
	logger.Info("inventory update published")
	return nil
}
