package main

import (
	"fmt"
	"time"

	"github.com/quillback/quillback/internal/enrichment"
	"github.com/quillback/quillback/internal/processing"
	"github.com/quillback/quillback/internal/store"
	"github.com/spf13/cobra"
)

func newEnrichCmd() *cobra.Command {
	var (
		configPath string
		ignoreAge  bool
	)

	cmd := &cobra.Command{
		Use:   "enrich <session-id>",
		Short: "Run AI enrichment for a session",
		Long: `Runs the AI summary and quality tasks for one session immediately,
bypassing the daemon's delay window. Requires an API key in the config.
With --ignore-age the session is enriched even if it has aged out of the
daemon's eligibility window.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEnrich(cmd, configPath, args[0], ignoreAge)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "quillback.yaml", "path to Quillback config file")
	cmd.Flags().BoolVar(&ignoreAge, "ignore-age", false, "enrich even when outside the eligibility window")
	return cmd
}

func runEnrich(cmd *cobra.Command, configPath, sessionID string, ignoreAge bool) error {
	cfg, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}
	if cfg.Enrichment.APIKey == "" {
		return fmt.Errorf("enrichment is not configured; set enrichment.api_key in %s", configPath)
	}

	st, err := store.New(gormDB)
	if err != nil {
		return err
	}
	sess, err := st.GetBySessionID(sessionID)
	if err != nil {
		return err
	}

	if !ignoreAge && sess.SessionEndTime != nil {
		age := time.Since(*sess.SessionEndTime)
		if age > time.Duration(cfg.Enrichment.MaxAgeMin)*time.Minute {
			return fmt.Errorf("session %s ended %s ago, outside the eligibility window; pass --ignore-age to enrich anyway",
				sessionID, age.Round(time.Minute))
		}
	}

	adapter, err := enrichment.NewOpenAIAdapter(cfg.Enrichment.APIKey, cfg.Enrichment.BaseURL, cfg.Enrichment.Model)
	if err != nil {
		return err
	}
	enricher, err := enrichment.NewCoordinator(st, adapter, buildNotifier(cfg))
	if err != nil {
		return err
	}

	registry := defaultRegistry()
	proc, err := registry.Resolve(sess.Provider)
	if err != nil {
		return err
	}
	content, err := processing.FileReader{}.GetContent(sess.Provider, sess.FilePath, sess.SessionID)
	if err != nil {
		return err
	}
	parsed, err := proc.ParseSession(content)
	if err != nil {
		return err
	}
	parsed.SessionID = sess.SessionID
	parsed.Provider = sess.Provider

	result, err := enricher.Enrich(cmd.Context(), sess.SessionID, parsed)
	if err != nil {
		return err
	}
	if result == nil {
		return fmt.Errorf("enrichment produced no output for %s", sessionID)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Enriched session %s\n", sessionID)
	if result.QualityScore != nil {
		fmt.Fprintf(out, "Quality score: %.1f/10\n", *result.QualityScore)
	}
	if result.Summary != "" {
		fmt.Fprintf(out, "\nSummary:\n%s\n", result.Summary)
	}
	return nil
}
