package main

import (
	"os"

	"github.com/spf13/cobra"

	_ "github.com/shashiranjanraj/offersync/database/migrations"
	"github.com/shashiranjanraj/offersync/pkg/database"
	"github.com/shashiranjanraj/offersync/pkg/migration"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Run all pending migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withRunner(func(r *migration.Runner) error { return r.Run() })
	},
}

var migrateRollbackCmd = &cobra.Command{
	Use:   "migrate:rollback",
	Short: "Roll back the last batch of migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withRunner(func(r *migration.Runner) error { return r.Rollback() })
	},
}

var migrateStatusCmd = &cobra.Command{
	Use:   "migrate:status",
	Short: "Show the status of each migration",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withRunner(func(r *migration.Runner) error { return r.Status() })
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd, migrateRollbackCmd, migrateStatusCmd)
}

func withRunner(fn func(*migration.Runner) error) error {
	db, err := database.Connect()
	if err != nil {
		return err
	}
	defer database.Close(db)

	return fn(migration.New(db).WithOutput(os.Stdout))
}
