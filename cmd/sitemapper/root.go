package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kirillkom/site-mapper/internal/bootstrap"
	"github.com/kirillkom/site-mapper/internal/config"
	"github.com/kirillkom/site-mapper/internal/core/domain"
	"github.com/kirillkom/site-mapper/internal/core/ports"
	"github.com/kirillkom/site-mapper/internal/core/usecase"
)

const service = "sitemapper"

var errSitesFailed = errors.New("one or more sites failed")

type rootFlags struct {
	settings  string
	envFile   string
	config    string
	inventory string
	sitesDir  string
	dryRun    bool
	sites     []string
	report    string
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	flags := &rootFlags{}
	defaults := config.Defaults()

	cmd := &cobra.Command{
		Use:   "sitemapper",
		Short: "Map a site file inventory into per-site data documents",
		Long: `sitemapper classifies every file of the inventory by name, resolves
per-lot document slots and writes {sites-dir}/{slug}/data.json for every
configured site.

Examples:
  # Map every site
  sitemapper --config sites.config.json --inventory file-mapping.json

  # Preview two sites without writing
  sitemapper --dry-run --site lancaster --site harbor`,
		SilenceUsage: true,
		Args:         cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			app, err := openApp(ctx, cmd, flags, stderr)
			if err != nil {
				return err
			}
			defer app.Close()

			return runMapping(ctx, app, ports.RunOptions{DryRun: flags.dryRun, Sites: flags.sites}, flags.report, stdout)
		},
	}
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	pf := cmd.PersistentFlags()
	pf.StringVar(&flags.settings, "settings", "", "optional YAML settings file")
	pf.StringVar(&flags.envFile, "env-file", ".env", "dotenv file loaded before reading the environment")
	pf.StringVar(&flags.config, "config", defaults.SitesConfig, "site configuration file (JSON or YAML)")
	pf.StringVar(&flags.inventory, "inventory", defaults.InventoryPath, "file inventory JSON")
	pf.StringVar(&flags.sitesDir, "sites-dir", defaults.SitesDir, "output directory for site data")

	f := cmd.Flags()
	f.BoolVar(&flags.dryRun, "dry-run", false, "map sites and print the result without writing")
	f.StringSliceVar(&flags.sites, "site", nil, "limit the run to these site slugs")
	f.StringVar(&flags.report, "report", "", "write an XLSX completeness report to this path")

	cmd.AddCommand(
		newAuditCmd(flags, stdout, stderr),
		newWatchCmd(flags, stderr),
		newExtractIDCmd(stdout),
	)
	return cmd
}

// loadSettings reads settings and lets explicitly set flags win over them.
func loadSettings(cmd *cobra.Command, flags *rootFlags) (config.Config, error) {
	cfg, err := config.Load(flags.settings, flags.envFile)
	if err != nil {
		return config.Config{}, err
	}
	changed := func(name string) bool {
		f := cmd.Flags().Lookup(name)
		return f != nil && f.Changed
	}
	if changed("config") {
		cfg.SitesConfig = flags.config
	}
	if changed("inventory") {
		cfg.InventoryPath = flags.inventory
	}
	if changed("sites-dir") {
		cfg.SitesDir = flags.sitesDir
	}
	return cfg, nil
}

func openApp(ctx context.Context, cmd *cobra.Command, flags *rootFlags, logOut io.Writer) (*bootstrap.App, error) {
	cfg, err := loadSettings(cmd, flags)
	if err != nil {
		return nil, err
	}
	return bootstrap.New(ctx, cfg, bootstrap.Options{Service: service, LogOutput: logOut})
}

// runMapping runs once and prints a line per site, or the rendered documents
// on a dry run. Any failed site turns into errSitesFailed.
func runMapping(ctx context.Context, app *bootstrap.App, opts ports.RunOptions, reportPath string, out io.Writer) error {
	report, err := app.Mapper.Run(ctx, opts)
	if err != nil {
		app.Logger.Error("mapping run failed", zap.Error(err))
		return err
	}

	for _, site := range report.Sites {
		if err := printSite(out, site, opts.DryRun); err != nil {
			return err
		}
	}

	if reportPath != "" {
		if err := app.Reports.WriteRunReport(ctx, reportPath, *report); err != nil {
			return fmt.Errorf("write report: %w", err)
		}
		app.Logger.Info("report written", zap.String("path", reportPath))
	}

	if failed := report.Failed(); len(failed) > 0 {
		return fmt.Errorf("%w: %d of %d", errSitesFailed, len(failed), len(report.Sites))
	}
	return nil
}

func printSite(out io.Writer, site domain.SiteResult, dryRun bool) error {
	if site.Err != nil {
		_, err := fmt.Fprintf(out, "FAIL %s: %v\n", site.Slug, site.Err)
		return err
	}
	if !dryRun {
		_, err := fmt.Fprintf(out, "ok   %s: %d lots, %d complete, %d unclassified files -> %v\n",
			site.Slug, len(site.Aggregated), site.CompleteLots(), site.UnclassifiedCount(), site.Outputs)
		return err
	}

	payload, err := usecase.EncodeSiteData(*site.Data)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(out, "# %s\n", site.Slug); err != nil {
		return err
	}
	_, err = out.Write(payload)
	return err
}
