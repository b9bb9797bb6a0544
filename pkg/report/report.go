// Package report keeps a history of manifest runs in the skillrun SQLite
// database.
package report

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/dhwoox/Final-RAG/pkg/db"
	"github.com/dhwoox/Final-RAG/pkg/db/migrations"
	"github.com/dhwoox/Final-RAG/pkg/types/skills"
)

// ErrNotFound is returned when no report has the requested id.
var ErrNotFound = errors.New("report not found")

// Report is one recorded manifest run.
type Report struct {
	ID           string         `json:"id" yaml:"id"`
	ManifestPath string         `json:"manifest_path" yaml:"manifest_path"`
	ManifestName string         `json:"manifest_name" yaml:"manifest_name"`
	Success      bool           `json:"success" yaml:"success"`
	Message      string         `json:"message" yaml:"message"`
	Details      map[string]any `json:"details,omitempty" yaml:"details,omitempty"`
	StartedAt    time.Time      `json:"started_at" yaml:"started_at"`
	FinishedAt   time.Time      `json:"finished_at" yaml:"finished_at"`
}

// Duration is the wall time of the run.
func (r *Report) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// New builds a report for a finished run of the manifest at path.
func New(path, name string, result *skills.Result, startedAt, finishedAt time.Time) Report {
	r := Report{
		ManifestPath: path,
		ManifestName: name,
		StartedAt:    startedAt,
		FinishedAt:   finishedAt,
	}
	if result != nil {
		r.Success = result.Success
		r.Message = result.Message
		r.Details = result.Details
	}
	return r
}

// ListOptions filters List.
type ListOptions struct {
	ManifestPath string
	FailedOnly   bool
	Limit        int
}

type jsonDetails map[string]any

func (d *jsonDetails) Scan(value any) error {
	if value == nil {
		return nil
	}
	var raw []byte
	switch v := value.(type) {
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return errors.Errorf("cannot scan %T into details", value)
	}
	return json.Unmarshal(raw, d)
}

func (d jsonDetails) Value() (driver.Value, error) {
	if d == nil {
		return "{}", nil
	}
	b, err := json.Marshal(d)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

type dbReport struct {
	ID           string      `db:"id"`
	ManifestPath string      `db:"manifest_path"`
	ManifestName string      `db:"manifest_name"`
	Success      bool        `db:"success"`
	Message      string      `db:"message"`
	Details      jsonDetails `db:"details"`
	StartedAt    time.Time   `db:"started_at"`
	FinishedAt   time.Time   `db:"finished_at"`
}

func (r dbReport) toReport() Report {
	return Report{
		ID:           r.ID,
		ManifestPath: r.ManifestPath,
		ManifestName: r.ManifestName,
		Success:      r.Success,
		Message:      r.Message,
		Details:      r.Details,
		StartedAt:    r.StartedAt,
		FinishedAt:   r.FinishedAt,
	}
}

// Store persists reports.
type Store struct {
	db *sqlx.DB
}

// Open opens the report store at dbPath, creating and migrating the database
// when needed.
func Open(ctx context.Context, dbPath string) (*Store, error) {
	conn, err := db.OpenMigrated(ctx, dbPath, migrations.All())
	if err != nil {
		return nil, errors.Wrap(err, "failed to open report store")
	}
	return &Store{db: conn}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Save stores r and returns it with its assigned id.
func (s *Store) Save(ctx context.Context, r Report) (Report, error) {
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	r.StartedAt = r.StartedAt.UTC()
	r.FinishedAt = r.FinishedAt.UTC()

	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO run_reports (
			id, manifest_path, manifest_name, success, message, details, started_at, finished_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, r.ID, r.ManifestPath, r.ManifestName, r.Success, r.Message, jsonDetails(r.Details), r.StartedAt, r.FinishedAt)
	if err != nil {
		return Report{}, errors.Wrap(err, "failed to save report")
	}
	return r, nil
}

// Get returns the report with the given id. A unique id prefix is accepted.
func (s *Store) Get(ctx context.Context, id string) (Report, error) {
	var rows []dbReport
	err := s.db.SelectContext(ctx, &rows, `SELECT * FROM run_reports WHERE id LIKE ? || '%' LIMIT 2`, id)
	if err != nil {
		return Report{}, errors.Wrap(err, "failed to load report")
	}
	switch len(rows) {
	case 0:
		return Report{}, errors.Wrapf(ErrNotFound, "no report %q", id)
	case 1:
		return rows[0].toReport(), nil
	default:
		return Report{}, errors.Errorf("report id %q is ambiguous", id)
	}
}

// List returns reports newest first.
func (s *Store) List(ctx context.Context, opts ListOptions) ([]Report, error) {
	query := "SELECT * FROM run_reports WHERE 1=1"
	var args []any
	if opts.ManifestPath != "" {
		query += " AND manifest_path = ?"
		args = append(args, opts.ManifestPath)
	}
	if opts.FailedOnly {
		query += " AND success = 0"
	}
	query += " ORDER BY started_at DESC"
	if opts.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, opts.Limit)
	}

	var rows []dbReport
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, errors.Wrap(err, "failed to list reports")
	}
	out := make([]Report, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toReport())
	}
	return out, nil
}

// Delete removes the report with the given id.
func (s *Store) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM run_reports WHERE id = ?", id)
	if err != nil {
		return errors.Wrap(err, "failed to delete report")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "failed to delete report")
	}
	if n == 0 {
		return errors.Wrapf(ErrNotFound, "no report %q", id)
	}
	return nil
}

var _ sql.Scanner = (*jsonDetails)(nil)
