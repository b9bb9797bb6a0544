package main

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/dhwoox/Final-RAG/pkg/config"
	"github.com/dhwoox/Final-RAG/pkg/db"
	"github.com/dhwoox/Final-RAG/pkg/db/migrations"
	"github.com/dhwoox/Final-RAG/pkg/presenter"
)

var dbCmd = &cobra.Command{
	Use:   "db",
	Short: "Database management commands",
	Long:  `Commands for managing the run history database (migrations, status).`,
}

var dbStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show database migration status",
	Long:  `Shows the applied and pending migrations of the run history database.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		dbPath, err := historyDBPath()
		if err != nil {
			return err
		}
		conn, err := db.Open(ctx, dbPath)
		if err != nil {
			return err
		}
		defer conn.Close()

		applied, err := db.NewMigrationRunner(conn).GetAppliedVersions(ctx)
		if err != nil {
			return errors.Wrap(err, "failed to get migration status")
		}
		appliedMap := make(map[int64]bool, len(applied))
		for _, v := range applied {
			appliedMap[v] = true
		}

		all := migrations.All()
		presenter.Section("Database Migration Status")
		presenter.Info(fmt.Sprintf("Database: %s\n", dbPath))

		appliedCount := 0
		for _, m := range all {
			status := "[ ]"
			if appliedMap[m.Version] {
				status = "[✓]"
				appliedCount++
			}
			presenter.Info(fmt.Sprintf("%s %d - %s", status, m.Version, m.Description))
		}
		presenter.Info(fmt.Sprintf("\nApplied: %d/%d migrations", appliedCount, len(all)))
		return nil
	},
}

var dbMigrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		dbPath, err := historyDBPath()
		if err != nil {
			return err
		}
		conn, err := db.Open(ctx, dbPath)
		if err != nil {
			return err
		}
		defer conn.Close()

		runner := db.NewMigrationRunner(conn)
		pending, err := runner.Pending(ctx, migrations.All())
		if err != nil {
			return err
		}
		if len(pending) == 0 {
			presenter.Info("Database is up to date")
			return nil
		}
		if err := runner.Run(ctx, pending); err != nil {
			return err
		}
		presenter.Success(fmt.Sprintf("Applied %d migration(s)", len(pending)))
		return nil
	},
}

var dbRollbackCmd = &cobra.Command{
	Use:   "rollback",
	Short: "Rollback the last database migration",
	Long:  `Rolls back the most recently applied database migration.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		dbPath, err := historyDBPath()
		if err != nil {
			return err
		}
		conn, err := db.Open(ctx, dbPath)
		if err != nil {
			return err
		}
		defer conn.Close()

		runner := db.NewMigrationRunner(conn)
		applied, err := runner.GetAppliedVersions(ctx)
		if err != nil {
			return errors.Wrap(err, "failed to get migration status")
		}
		if len(applied) == 0 {
			presenter.Warning("No migrations to rollback")
			return nil
		}

		lastVersion := applied[len(applied)-1]
		var description string
		for _, m := range migrations.All() {
			if m.Version == lastVersion {
				description = m.Description
				break
			}
		}

		presenter.Info(fmt.Sprintf("Rolling back migration %d: %s", lastVersion, description))
		if err := runner.Rollback(ctx, migrations.All()); err != nil {
			return errors.Wrap(err, "failed to rollback migration")
		}
		presenter.Success(fmt.Sprintf("Successfully rolled back migration %d", lastVersion))
		return nil
	},
}

func historyDBPath() (string, error) {
	settings, err := config.Load(viper.GetViper())
	if err != nil {
		return "", err
	}
	return settings.History.DBPath, nil
}

func init() {
	dbCmd.AddCommand(dbStatusCmd)
	dbCmd.AddCommand(dbMigrateCmd)
	dbCmd.AddCommand(dbRollbackCmd)
}
