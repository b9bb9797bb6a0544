// Package migrations contains the database migrations of skillrun.
// Versions are timestamps (YYYYMMDDHHmmss).
package migrations

import (
	"github.com/dhwoox/Final-RAG/pkg/db"
)

// All returns all registered migrations in the correct order.
// New migrations should be added to this list.
func All() []db.Migration {
	return []db.Migration{
		Migration20261017090000CreateRunReports(),
		Migration20261017090001AddRunReportIndexes(),
	}
}
