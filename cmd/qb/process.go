package main

import (
	"fmt"

	"github.com/quillback/quillback/internal/processing"
	"github.com/quillback/quillback/internal/store"
	"github.com/spf13/cobra"
)

func newProcessCmd() *cobra.Command {
	var (
		configPath string
		all        bool
		batchSize  int
	)

	cmd := &cobra.Command{
		Use:   "process [session-id]",
		Short: "Compute metrics for sessions",
		Long: `Runs the metrics processors for a single session, or with --all for every
session still missing metrics. The same path the daemon's background sweep
takes, run once in the foreground.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !all && len(args) == 0 {
				return fmt.Errorf("a session-id argument or --all is required")
			}
			sessionID := ""
			if len(args) > 0 {
				sessionID = args[0]
			}
			return runProcess(cmd, configPath, sessionID, all, batchSize)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "quillback.yaml", "path to Quillback config file")
	cmd.Flags().BoolVar(&all, "all", false, "process every session missing metrics")
	cmd.Flags().IntVar(&batchSize, "batch-size", 50, "maximum sessions to process with --all")
	return cmd
}

func runProcess(cmd *cobra.Command, configPath, sessionID string, all bool, batchSize int) error {
	_, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}

	st, err := store.New(gormDB)
	if err != nil {
		return err
	}
	coordinator, err := processing.NewCoordinator(st, defaultRegistry(),
		processing.WithDiffSource(processing.GitDiffSource{}, mustGetwd()))
	if err != nil {
		return err
	}
	reader := processing.FileReader{}
	out := cmd.OutOrStdout()
	ctx := cmd.Context()

	if !all {
		sess, err := st.GetBySessionID(sessionID)
		if err != nil {
			return err
		}
		content, err := reader.GetContent(sess.Provider, sess.FilePath, sess.SessionID)
		if err != nil {
			return err
		}
		metrics, err := coordinator.Process(ctx, sess.SessionID, sess.Provider, content, "")
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Processed session %s (%d prompts, %d tool calls, $%.4f)\n",
			sess.SessionID, metrics.PromptCount, metrics.ToolCallCount, metrics.EstimatedCostUSD)
		return nil
	}

	sessions, err := st.QueryUnprocessed(batchSize)
	if err != nil {
		return err
	}
	if len(sessions) == 0 {
		fmt.Fprintln(out, "No sessions missing metrics.")
		return nil
	}

	processed := 0
	for _, sess := range sessions {
		content, err := reader.GetContent(sess.Provider, sess.FilePath, sess.SessionID)
		if err != nil {
			fmt.Fprintf(out, "Skipped %s: %v\n", sess.SessionID, err)
			continue
		}
		if _, err := coordinator.Process(ctx, sess.SessionID, sess.Provider, content, ""); err != nil {
			fmt.Fprintf(out, "Skipped %s: %v\n", sess.SessionID, err)
			continue
		}
		fmt.Fprintf(out, "Processed %s\n", sess.SessionID)
		processed++
	}
	fmt.Fprintf(out, "\nProcessed %d of %d sessions.\n", processed, len(sessions))
	return nil
}
