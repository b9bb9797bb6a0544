package migrations

import (
	"database/sql"

	"github.com/pkg/errors"

	"github.com/dhwoox/Final-RAG/pkg/db"
)

// Migration20261017090001AddRunReportIndexes indexes reports by start time
// and manifest.
func Migration20261017090001AddRunReportIndexes() db.Migration {
	return db.Migration{
		Version:     20261017090001,
		Description: "Add run_reports indexes",
		Up: func(tx *sql.Tx) error {
			indexes := []string{
				"CREATE INDEX IF NOT EXISTS idx_run_reports_started_at ON run_reports(started_at DESC)",
				"CREATE INDEX IF NOT EXISTS idx_run_reports_manifest_path ON run_reports(manifest_path)",
			}
			for _, stmt := range indexes {
				if _, err := tx.Exec(stmt); err != nil {
					return errors.Wrapf(err, "failed to create index: %s", stmt)
				}
			}
			return nil
		},
		Down: func(tx *sql.Tx) error {
			for _, name := range []string{"idx_run_reports_started_at", "idx_run_reports_manifest_path"} {
				if _, err := tx.Exec("DROP INDEX IF EXISTS " + name); err != nil {
					return errors.Wrapf(err, "failed to drop index %s", name)
				}
			}
			return nil
		},
	}
}
