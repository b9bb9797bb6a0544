package migrations

import (
	"database/sql"

	"github.com/pkg/errors"

	"github.com/dhwoox/Final-RAG/pkg/db"
)

// Migration20261017090000CreateRunReports creates the run_reports table.
func Migration20261017090000CreateRunReports() db.Migration {
	return db.Migration{
		Version:     20261017090000,
		Description: "Create run_reports table",
		Up: func(tx *sql.Tx) error {
			if _, err := tx.Exec(`
				CREATE TABLE IF NOT EXISTS run_reports (
					id TEXT PRIMARY KEY,
					manifest_path TEXT NOT NULL,
					manifest_name TEXT NOT NULL,
					success BOOLEAN NOT NULL,
					message TEXT NOT NULL,
					details TEXT NOT NULL,
					started_at DATETIME NOT NULL,
					finished_at DATETIME NOT NULL
				)
			`); err != nil {
				return errors.Wrap(err, "failed to create run_reports table")
			}
			return nil
		},
		Down: func(tx *sql.Tx) error {
			if _, err := tx.Exec("DROP TABLE IF EXISTS run_reports"); err != nil {
				return errors.Wrap(err, "failed to drop run_reports table")
			}
			return nil
		},
	}
}
