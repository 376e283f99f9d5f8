package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/quillback/quillback/internal/config"
	"github.com/quillback/quillback/internal/dashboard"
	"github.com/quillback/quillback/internal/enrichment"
	"github.com/quillback/quillback/internal/lifecycle"
	"github.com/quillback/quillback/internal/notify"
	"github.com/quillback/quillback/internal/processing"
	"github.com/quillback/quillback/internal/watch"
	"github.com/spf13/cobra"
)

func newDaemonCmd() *cobra.Command {
	var (
		configPath    string
		withDashboard bool
	)

	cmd := &cobra.Command{
		Use:   "daemon",
		Short: "Run the session lifecycle orchestrator",
		Long: `Runs the background drivers: ingestion, auto-processing on completion,
the background metrics sweep, and the delayed AI enrichment sweep. Stops
cleanly on SIGINT/SIGTERM; in-flight work runs to completion.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDaemon(cmd, configPath, withDashboard)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "quillback.yaml", "path to Quillback config file")
	cmd.Flags().BoolVar(&withDashboard, "dashboard", false, "also serve the read-only dashboard")
	return cmd
}

func runDaemon(cmd *cobra.Command, configPath string, withDashboard bool) error {
	out := cmd.OutOrStdout()

	cfg, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}

	bus := watch.NewBus()
	defer bus.Close()

	daemon, err := lifecycle.NewDaemon(lifecycle.DaemonOpts{
		DB:       gormDB,
		Config:   cfg,
		Bus:      bus,
		Registry: defaultRegistry(),
		Reader:   processing.FileReader{},
		Adapter:  buildAdapter(cfg),
		Notifier: buildNotifier(cfg),
		Diff:     processing.GitDiffSource{},
		DiffDir:  mustGetwd(),
		Out:      out,
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if withDashboard {
		go func() {
			if err := dashboard.Start(ctx, dashboard.StartOpts{
				DB:   gormDB,
				Port: cfg.Dashboard.Port,
				Out:  out,
			}); err != nil {
				fmt.Fprintf(out, "Dashboard error: %v\n", err)
			}
		}()
	}

	return daemon.Run(ctx)
}

// defaultRegistry registers the line-delimited JSON processor for the
// providers whose CLIs emit that format.
func defaultRegistry() *processing.Registry {
	registry := processing.NewRegistry()
	for _, provider := range []string{"claude-code", "codex", "opencode"} {
		registry.Register(provider, processing.JSONLProcessor{})
	}
	return registry
}

// buildAdapter returns the model adapter, or nil when no credential is
// configured. Enrichment is optional.
func buildAdapter(cfg *config.Config) enrichment.Adapter {
	if cfg.Enrichment.APIKey == "" {
		return nil
	}
	adapter, err := enrichment.NewOpenAIAdapter(cfg.Enrichment.APIKey, cfg.Enrichment.BaseURL, cfg.Enrichment.Model)
	if err != nil {
		return nil
	}
	return adapter
}

// buildNotifier returns the Slack notifier, or nil when not configured.
func buildNotifier(cfg *config.Config) enrichment.Notifier {
	if cfg.Notify.SlackToken == "" {
		return nil
	}
	return notify.NewSlackNotifier(cfg.Notify.SlackToken, cfg.Notify.SlackChannel)
}

func mustGetwd() string {
	wd, err := os.Getwd()
	if err != nil {
		return "."
	}
	return wd
}
