// Command incident-commander runs the incident session service.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/bissquit/incident-commander/internal/app"
	"github.com/bissquit/incident-commander/internal/catalog"
	"github.com/bissquit/incident-commander/internal/config"
	incidentspostgres "github.com/bissquit/incident-commander/internal/incidents/postgres"
	"github.com/bissquit/incident-commander/internal/version"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "incident-commander",
		Short:         "Incident session service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to YAML config file")

	load := func() (*config.Config, error) {
		return config.Load(configPath)
	}

	root.AddCommand(serveCmd(load))
	root.AddCommand(migrateCmd(load))
	root.AddCommand(catalogCmd(load))
	root.AddCommand(versionCmd())
	return root
}

type configLoader func() (*config.Config, error)

func serveCmd(load configLoader) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			application, err := app.New(cfg)
			if err != nil {
				return fmt.Errorf("create app: %w", err)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			errCh := make(chan error, 1)
			go func() {
				errCh <- application.Run()
			}()

			var runErr error
			select {
			case runErr = <-errCh:
			case <-ctx.Done():
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
			defer cancel()

			if err := application.Shutdown(shutdownCtx); err != nil {
				return fmt.Errorf("shutdown: %w", err)
			}
			return runErr
		},
	}
}

func migrateCmd(load configLoader) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if cfg.Database.URL == "" {
				return fmt.Errorf("database url is not configured")
			}

			if err := incidentspostgres.Migrate(cfg.Database.URL); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
			return nil
		},
	}
}

func catalogCmd(load configLoader) *cobra.Command {
	return &cobra.Command{
		Use:   "catalog",
		Short: "List the configured priorities and statuses",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			cat, err := app.BuildCatalog(cfg.Catalog)
			if err != nil {
				return err
			}

			renderCatalog(cmd.OutOrStdout(), cat)
			return nil
		},
	}
}

func renderCatalog(w io.Writer, cat *catalog.Catalog) {
	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.AppendHeader(table.Row{"Kind", "ID", "Label", "Default"})
	for i, p := range cat.Priorities() {
		tw.AppendRow(table.Row{"priority", p.ID, p.Label, defaultMark(i)})
	}
	tw.AppendSeparator()
	for i, st := range cat.Statuses() {
		tw.AppendRow(table.Row{"status", st.ID, st.Label, defaultMark(i)})
	}
	tw.Render()
}

// The first entry of each list is the default.
func defaultMark(i int) string {
	if i == 0 {
		return "*"
	}
	return ""
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version.Get().String())
		},
	}
}
