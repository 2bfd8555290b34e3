package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/chepyr/go-todo-tracker/internal/auth"
	"github.com/chepyr/go-todo-tracker/internal/config"
	"github.com/chepyr/go-todo-tracker/tasks-service/db"
	"github.com/spf13/cobra"
)

var (
	// envFile is set by the --env-file flag.
	envFile string

	// pruneUser is set by the --user flag of prune-tags.
	pruneUser string

	tokenUser string
	tokenTTL  time.Duration
)

var rootCmd = &cobra.Command{
	Use:   "tasks-service",
	Short: "Multi-tenant todo backend",
	Long: `tasks-service stores per-user todo items and their tags and serves
them over an authenticated JSON API.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded before reading the environment")
	pruneTagsCmd.Flags().StringVar(&pruneUser, "user", "", "id of the user whose orphan tags are removed")
	_ = pruneTagsCmd.MarkFlagRequired("user")
	tokenCmd.Flags().StringVar(&tokenUser, "user", "", "subject of the token")
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 24*time.Hour, "token lifetime")
	_ = tokenCmd.MarkFlagRequired("user")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(pruneTagsCmd)
	rootCmd.AddCommand(tokenCmd)
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(envFile)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func loadDatabaseConfig() (*config.Config, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	if err := cfg.ValidateDatabase(); err != nil {
		return nil, fmt.Errorf("invalid configuration:\n%w", err)
	}
	return cfg, nil
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create tables and indexes if they are missing",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadDatabaseConfig()
		if err != nil {
			return err
		}
		dbConn, err := initDB(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer dbConn.Close()

		fmt.Fprintln(cmd.OutOrStdout(), "Schema is up to date")
		return nil
	},
}

var pruneTagsCmd = &cobra.Command{
	Use:   "prune-tags",
	Short: "Delete tags no task of the user references",
	Long: `prune-tags removes every tag of one user that is not attached to any
of that user's tasks.

Example:
  tasks-service prune-tags --user 0f8fad5b-d9cb-469f-a165-70867728950e`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadDatabaseConfig()
		if err != nil {
			return err
		}
		dbConn, err := initDB(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer dbConn.Close()

		store := db.NewStore(dbConn, cfg.DatabaseDriver)
		deleted, err := db.NewTagRepository(store).CleanupOrphans(cmd.Context(), pruneUser)
		if err != nil {
			return fmt.Errorf("prune tags: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d orphan tags for user %s\n", deleted, pruneUser)
		return nil
	},
}

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Print an HS256 token signed with JWT_SECRET for local development",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if cfg.JWTSecret == "" {
			return errors.New("JWT_SECRET must be set to issue tokens")
		}
		token, err := auth.IssueHMAC([]byte(cfg.JWTSecret), tokenUser, tokenTTL, cfg.JWTAudience, cfg.JWTIssuer)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), token)
		return nil
	},
}
