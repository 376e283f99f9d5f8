package main

import (
	"fmt"

	"github.com/quillback/quillback/internal/config"
	"github.com/quillback/quillback/internal/db"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

func newDBCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "db",
		Short: "Database management commands",
	}

	cmd.AddCommand(newDBInitCmd())
	return cmd
}

func newDBInitCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize the Quillback database",
		Long:  "Opens (creating if needed) the session store and migrates all tables.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDBInit(cmd, configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "quillback.yaml", "path to Quillback config file")
	return cmd
}

func runDBInit(cmd *cobra.Command, configPath string) error {
	out := cmd.OutOrStdout()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	gormDB, err := db.Connect(cfg)
	if err != nil {
		return err
	}
	if cfg.Store.Backend == "sqlite" {
		fmt.Fprintf(out, "Opened store at %s\n", cfg.Store.Path)
	} else {
		fmt.Fprintf(out, "Connected to %s:%d/%s\n", cfg.Store.Host, cfg.Store.Port, cfg.Store.Database)
	}

	if err := db.AutoMigrate(gormDB); err != nil {
		return err
	}
	fmt.Fprintf(out, "Migrated %d tables\n", len(db.AllModels()))

	fmt.Fprintln(out, "\nQuillback database initialized successfully.")
	return nil
}

// connectFromConfig loads config and opens the store, shared by commands.
func connectFromConfig(configPath string) (*config.Config, *gorm.DB, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	gormDB, err := db.Connect(cfg)
	if err != nil {
		return nil, nil, err
	}
	return cfg, gormDB, nil
}
