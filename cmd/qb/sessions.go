package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/quillback/quillback/internal/dashboard"
	"github.com/quillback/quillback/internal/store"
	"github.com/spf13/cobra"
)

func newSessionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "Session inspection commands",
	}

	cmd.AddCommand(newSessionsListCmd())
	cmd.AddCommand(newSessionsShowCmd())
	return cmd
}

func newSessionsListCmd() *cobra.Command {
	var (
		configPath string
		provider   string
		limit      int
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recorded sessions",
		Long:  "Lists sessions newest first, with their pipeline statuses. Output is formatted as a table.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSessionsList(cmd, configPath, provider, limit)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "quillback.yaml", "path to Quillback config file")
	cmd.Flags().StringVar(&provider, "provider", "", "filter by provider")
	cmd.Flags().IntVar(&limit, "limit", 50, "maximum number of sessions to show")
	return cmd
}

func runSessionsList(cmd *cobra.Command, configPath, provider string, limit int) error {
	_, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}

	rows, err := dashboard.SessionList(gormDB, provider, limit)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(rows) == 0 {
		fmt.Fprintln(out, "No sessions found.")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "SESSION\tPROVIDER\tPROJECT\tMETRICS\tAI\tSYNCED\tSTARTED")
	for _, r := range rows {
		synced := "no"
		if r.SyncedToServer {
			synced = "yes"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			truncate(r.SessionID, 24), r.Provider, truncate(r.ProjectName, 24),
			r.CoreMetricsStatus, r.ProcessingStatus, synced,
			r.SessionStartTime.Format("2006-01-02 15:04"))
	}
	w.Flush()
	return nil
}

func newSessionsShowCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "show <session-id>",
		Short: "Show session details",
		Long:  "Displays full details of a session, including computed metrics and AI enrichment output when present.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSessionsShow(cmd, configPath, args[0])
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "quillback.yaml", "path to Quillback config file")
	return cmd
}

func runSessionsShow(cmd *cobra.Command, configPath, sessionID string) error {
	_, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}
	st, err := store.New(gormDB)
	if err != nil {
		return err
	}

	sess, err := st.GetBySessionID(sessionID)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Session:     %s\n", sess.SessionID)
	fmt.Fprintf(out, "Provider:    %s\n", sess.Provider)
	fmt.Fprintf(out, "Project:     %s\n", sess.ProjectName)
	fmt.Fprintf(out, "File:        %s\n", sess.FilePath)
	fmt.Fprintf(out, "Started:     %s\n", sess.SessionStartTime.Format("2006-01-02 15:04:05"))
	if sess.SessionEndTime != nil {
		fmt.Fprintf(out, "Ended:       %s\n", sess.SessionEndTime.Format("2006-01-02 15:04:05"))
	}
	if sess.DurationMs > 0 {
		fmt.Fprintf(out, "Duration:    %.1fs\n", float64(sess.DurationMs)/1000)
	}
	fmt.Fprintf(out, "Metrics:     %s\n", sess.CoreMetricsStatus)
	fmt.Fprintf(out, "AI:          %s\n", sess.ProcessingStatus)
	fmt.Fprintf(out, "Assessment:  %s\n", sess.AssessmentStatus)
	fmt.Fprintf(out, "Synced:      %t\n", sess.SyncedToServer)
	if sess.SyncFailedReason != nil {
		fmt.Fprintf(out, "Sync error:  %s\n", *sess.SyncFailedReason)
	}

	metrics, err := st.GetMetrics(sessionID)
	if err != nil {
		return err
	}
	if metrics != nil {
		fmt.Fprintln(out, "\nMetrics:")
		fmt.Fprintf(out, "  Prompts:         %d\n", metrics.PromptCount)
		fmt.Fprintf(out, "  Tool calls:      %d\n", metrics.ToolCallCount)
		fmt.Fprintf(out, "  Input tokens:    %s\n", formatTokenCount(metrics.InputTokens))
		fmt.Fprintf(out, "  Output tokens:   %s\n", formatTokenCount(metrics.OutputTokens))
		fmt.Fprintf(out, "  Cache reads:     %s\n", formatTokenCount(metrics.CacheReadTokens))
		fmt.Fprintf(out, "  Est. cost:       $%.4f\n", metrics.EstimatedCostUSD)
		fmt.Fprintf(out, "  Errors:          %d\n", metrics.ErrorCount)
		fmt.Fprintf(out, "  Tool failures:   %d\n", metrics.ToolFailureCount)
	}

	if sess.AIModelQualityScore != nil {
		fmt.Fprintf(out, "\nQuality score: %.1f/10\n", *sess.AIModelQualityScore)
	}
	if sess.AIModelSummary != "" {
		fmt.Fprintf(out, "\nSummary:\n%s\n", sess.AIModelSummary)
	}

	return nil
}

// truncate shortens a string to maxLen, adding "..." if truncated.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
