package main

import (
	"context"
	"errors"
	"io"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kirillkom/site-mapper/internal/core/ports"
	"github.com/kirillkom/site-mapper/internal/infrastructure/watch"
)

func newWatchCmd(root *rootFlags, stderr io.Writer) *cobra.Command {
	var debounce time.Duration

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Re-run the mapping whenever the site config or inventory changes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			app, err := openApp(ctx, cmd, root, stderr)
			if err != nil {
				return err
			}
			defer app.Close()

			w, err := watch.New([]string{app.Config.SitesConfig, app.Config.InventoryPath}, debounce, app.Logger)
			if err != nil {
				return err
			}

			rerun := func(ctx context.Context) error {
				err := runMapping(ctx, app, ports.RunOptions{}, "", io.Discard)
				if errors.Is(err, errSitesFailed) {
					app.Logger.Warn("some sites failed", zap.Error(err))
					return nil
				}
				return err
			}
			if err := rerun(ctx); err != nil {
				app.Logger.Error("initial run failed", zap.Error(err))
			}
			return w.Run(ctx, rerun)
		},
	}
	cmd.Flags().DurationVar(&debounce, "debounce", watch.DefaultDebounce, "quiet period before re-running")
	return cmd
}
