package app

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/stacklok/supplier-sync/database"
	"github.com/stacklok/supplier-sync/internal/config"
)

func newMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Database migration tool",
		Long:  `Database migration tool for managing schema versions. Use with 'up' or 'down' subcommands.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Usage()
		},
	}

	cmd.PersistentFlags().BoolP("yes", "y", false, "Answer yes to all questions")
	cmd.PersistentFlags().String("config", "", "Path to configuration file (YAML format)")

	down := &cobra.Command{
		Use:   "down",
		Short: "Revert database migrations",
		Long: `Migrate the database schema down by reverting migrations.
WARNING: This operation can result in data loss. Use with caution.

Examples:
  # Migrate down by 1 step
  supplier-sync migrate down --config config.yaml --num-steps 1 --yes

  # Migrate down all the way (WARNING: destroys all data)
  supplier-sync migrate down --config config.yaml --yes`,
		RunE: runMigrateDown,
	}
	down.Flags().UintP("num-steps", "n", 0, "Number of steps to migrate (0 = all)")

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply pending database migrations",
		Long: `Apply all pending database migrations to bring the schema up to date.
Connection parameters are read from the database section of the config.`,
		RunE: runMigrateUp,
	})
	cmd.AddCommand(down)

	return cmd
}

func runMigrateUp(cmd *cobra.Command, _ []string) error {
	cfg, connString, err := setupMigration(cmd)
	if err != nil {
		return err
	}
	if err := confirm(cmd, fmt.Sprintf("About to apply migrations to %s@%s:%d/%s.",
		cfg.Database.User, cfg.Database.Host, cfg.Database.Port, cfg.Database.Database)); err != nil {
		return err
	}
	return database.MigrateUp(connString)
}

func runMigrateDown(cmd *cobra.Command, _ []string) error {
	cfg, connString, err := setupMigration(cmd)
	if err != nil {
		return err
	}

	numSteps, err := cmd.Flags().GetUint("num-steps")
	if err != nil {
		return fmt.Errorf("failed to get num-steps flag: %w", err)
	}

	what := "ALL migrations"
	if numSteps > 0 {
		what = fmt.Sprintf("%d migration(s)", numSteps)
	}
	if err := confirm(cmd, fmt.Sprintf("About to revert %s on %s@%s:%d/%s. This can destroy data.",
		what, cfg.Database.User, cfg.Database.Host, cfg.Database.Port, cfg.Database.Database)); err != nil {
		return err
	}
	return database.MigrateDown(connString, int(numSteps))
}

func setupMigration(cmd *cobra.Command) (*config.Config, string, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, "", err
	}
	if cfg.Database == nil {
		return nil, "", fmt.Errorf("database configuration is required")
	}
	connString, err := cfg.Database.GetConnectionString()
	if err != nil {
		return nil, "", fmt.Errorf("failed to build connection string: %w", err)
	}
	return cfg, connString, nil
}

// errCancelled is returned when the operator declines a confirmation
var errCancelled = errors.New("migration cancelled by user")

func confirm(cmd *cobra.Command, prompt string) error {
	yes, err := cmd.Flags().GetBool("yes")
	if err != nil {
		return fmt.Errorf("failed to get yes flag: %w", err)
	}
	if yes {
		return nil
	}

	slog.Info(prompt)
	if _, err := fmt.Fprint(cmd.OutOrStdout(), "Continue? (yes/no): "); err != nil {
		return err
	}
	var response string
	if _, err := fmt.Fscanln(cmd.InOrStdin(), &response); err != nil {
		return fmt.Errorf("failed to read user input: %w", err)
	}
	switch strings.ToLower(strings.TrimSpace(response)) {
	case "yes", "y":
		return nil
	default:
		return errCancelled
	}
}
