package cmd

import (
	"context"
	"fmt"

	"github.com/kozaktomas/lookout/internal/database/mariadb"
	"github.com/kozaktomas/lookout/internal/database/postgres"
	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations",
	Long: `Apply the embedded schema migrations to the database named by DATABASE_URL.
DATABASE_DRIVER selects postgres (default) or mysql for MariaDB.`,
	RunE: runMigrate,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
	migrateCmd.Flags().Bool("status", false, "Only list applied migrations")
}

// migrator is implemented by both database pools.
type migrator interface {
	Migrate(ctx context.Context) ([]string, error)
	MigrationsApplied(ctx context.Context) ([]string, error)
	Close() error
}

func runMigrate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	statusOnly := mustGetBool(cmd, "status")

	var pool migrator
	switch cfg.Database.Driver {
	case "mysql":
		pool, err = mariadb.NewPool(&cfg.Database)
	default:
		pool, err = postgres.NewPool(&cfg.Database)
	}
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer pool.Close()

	ctx := context.Background()
	if !statusOnly {
		applied, err := pool.Migrate(ctx)
		if err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
		if len(applied) == 0 {
			fmt.Println("Schema is up to date")
		}
		for _, v := range applied {
			fmt.Printf("Applied %s\n", v)
		}
		return nil
	}

	versions, err := pool.MigrationsApplied(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("%d migrations applied (%s)\n", len(versions), cfg.Database.Driver)
	for _, v := range versions {
		fmt.Printf("  %s\n", v)
	}
	return nil
}
