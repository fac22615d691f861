// Package catalog persists one row per run into a sqlite file so downstream
// tooling can track run status. This tool only initializes the table and
// appends rows; status transitions belong to the monitoring side.
package catalog

import (
	"database/sql"
	"fmt"
	"os"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/sqlite3"
	"github.com/pkg/errors"
	_ "modernc.org/sqlite"

	"github.com/astrolabhq/stargrid/internal/config"
)

// StatusNotComputed is the initial status of every cataloged run.
const StatusNotComputed = "not computed"

// Error wraps an underlying storage fault.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("catalog %s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Row is one persisted run record.
type Row struct {
	ID                int64  `db:"id"`
	RunName           string `db:"run_name"`
	TemplateDirectory string `db:"template_directory"`
	RunsDirectory     string `db:"runs_directory"`
	JobID             int    `db:"job_id"`
	Status            string `db:"status"`
}

// Catalog is a sqlite-backed run catalog. It is opened once per build
// invocation and must not be shared between concurrent builds.
type Catalog struct {
	db        *sql.DB
	q         *goqu.Database
	table     string
	dropTable bool
}

// Open connects to the catalog file, removing it first when the
// configuration asks for a fresh database.
func Open(spec config.DatabaseSpec) (*Catalog, error) {
	if spec.RemoveDatabase {
		if err := os.Remove(spec.Filename); err != nil && !os.IsNotExist(err) {
			return nil, &Error{Op: "remove database", Err: err}
		}
	}

	db, err := sql.Open("sqlite", spec.Filename)
	if err != nil {
		return nil, &Error{Op: "open", Err: err}
	}

	return &Catalog{
		db:        db,
		q:         goqu.Dialect("sqlite3").DB(db),
		table:     spec.Tablename,
		dropTable: spec.DropTable,
	}, nil
}

// Reset drops the run table when configured to and recreates it. Calling it
// repeatedly is safe.
func (c *Catalog) Reset() error {
	if c.dropTable {
		if _, err := c.db.Exec(fmt.Sprintf("DROP TABLE IF EXISTS %s", c.table)); err != nil {
			return &Error{Op: "drop table", Err: err}
		}
	}

	schema := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
id INTEGER PRIMARY KEY,
run_name TEXT,
template_directory TEXT,
runs_directory TEXT,
job_id INTEGER,
status TEXT
)`, c.table)

	if _, err := c.db.Exec(schema); err != nil {
		return &Error{Op: "create table", Err: err}
	}
	return nil
}

// InsertRows appends one row per run. Rows are never updated in place by
// this tool.
func (c *Catalog) InsertRows(rows []Row) error {
	if len(rows) == 0 {
		return nil
	}

	records := make([]any, len(rows))
	for i, row := range rows {
		records[i] = row
	}

	if _, err := c.q.Insert(c.table).Rows(records...).Executor().Exec(); err != nil {
		return &Error{Op: "insert rows", Err: errors.Wrapf(err, "table %s", c.table)}
	}
	return nil
}

// Count returns the number of cataloged runs.
func (c *Catalog) Count() (int64, error) {
	count, err := c.q.From(c.table).Count()
	if err != nil {
		return 0, &Error{Op: "count", Err: err}
	}
	return count, nil
}

// Close releases the underlying connection.
func (c *Catalog) Close() error {
	if err := c.db.Close(); err != nil {
		return &Error{Op: "close", Err: err}
	}
	return nil
}
