package admin

import (
	"fmt"

	"github.com/LogiStackDev/access-onboard-flow/internal/database"
	"github.com/spf13/cobra"
)

func MigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
		Long:  "Apply or roll back the embedded database migrations",
		RunE:  runMigrateUp,
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		RunE:  runMigrateUp,
	})

	down := &cobra.Command{
		Use:   "down",
		Short: "Roll back migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			steps, _ := cmd.Flags().GetInt("steps")
			if steps <= 0 {
				return fmt.Errorf("--steps must be positive")
			}
			cfg, _, err := loadConfig()
			if err != nil {
				return err
			}
			if err := database.MigrateDown(cfg.DatabaseURL, steps); err != nil {
				return err
			}
			fmt.Printf("Rolled back %d migration(s)\n", steps)
			return nil
		},
	}
	down.Flags().Int("steps", 1, "Number of migrations to roll back")
	cmd.AddCommand(down)

	return cmd
}

func runMigrateUp(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	status, err := database.Migrate(cfg.DatabaseURL, logger)
	if err != nil {
		return err
	}
	if status.Applied {
		fmt.Printf("Migrations applied (version %d)\n", status.Version)
	} else {
		fmt.Printf("Database is up to date (version %d)\n", status.Version)
	}
	return nil
}
