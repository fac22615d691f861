package catalog

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/astrolabhq/stargrid/internal/config"
)

func testSpec(t *testing.T) config.DatabaseSpec {
	t.Helper()
	return config.DatabaseSpec{
		Filename:  filepath.Join(t.TempDir(), "runs.db"),
		Tablename: "mesa_runs",
		DropTable: true,
	}
}

func testRows() []Row {
	return []Row{
		{ID: 0, RunName: "m1_10", TemplateDirectory: "/data/template", RunsDirectory: "/data/runs", JobID: 0, Status: StatusNotComputed},
		{ID: 1, RunName: "m1_20", TemplateDirectory: "/data/template", RunsDirectory: "/data/runs", JobID: 0, Status: StatusNotComputed},
		{ID: 2, RunName: "m1_30", TemplateDirectory: "/data/template", RunsDirectory: "/data/runs", JobID: 1, Status: StatusNotComputed},
	}
}

func TestCatalogInsertAndCount(t *testing.T) {
	spec := testSpec(t)

	cat, err := Open(spec)
	require.NoError(t, err)
	defer func() { require.NoError(t, cat.Close()) }()

	require.NoError(t, cat.Reset())
	require.NoError(t, cat.InsertRows(testRows()))

	count, err := cat.Count()
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)
}

func TestCatalogResetIsIdempotent(t *testing.T) {
	spec := testSpec(t)

	cat, err := Open(spec)
	require.NoError(t, err)
	defer func() { _ = cat.Close() }()

	require.NoError(t, cat.Reset())
	require.NoError(t, cat.Reset())
}

func TestCatalogDropTableDiscardsRows(t *testing.T) {
	spec := testSpec(t)

	cat, err := Open(spec)
	require.NoError(t, err)
	require.NoError(t, cat.Reset())
	require.NoError(t, cat.InsertRows(testRows()))
	require.NoError(t, cat.Close())

	// reopening with drop_table wipes the table
	cat, err = Open(spec)
	require.NoError(t, err)
	defer func() { _ = cat.Close() }()
	require.NoError(t, cat.Reset())

	count, err := cat.Count()
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestCatalogKeepsRowsWithoutDropTable(t *testing.T) {
	spec := testSpec(t)
	spec.DropTable = false

	cat, err := Open(spec)
	require.NoError(t, err)
	require.NoError(t, cat.Reset())
	require.NoError(t, cat.InsertRows(testRows()[:2]))
	require.NoError(t, cat.Close())

	cat, err = Open(spec)
	require.NoError(t, err)
	defer func() { _ = cat.Close() }()
	require.NoError(t, cat.Reset())

	count, err := cat.Count()
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
}

func TestCatalogRemoveDatabase(t *testing.T) {
	spec := testSpec(t)

	cat, err := Open(spec)
	require.NoError(t, err)
	require.NoError(t, cat.Reset())
	require.NoError(t, cat.InsertRows(testRows()))
	require.NoError(t, cat.Close())

	spec.RemoveDatabase = true
	cat, err = Open(spec)
	require.NoError(t, err)
	defer func() { _ = cat.Close() }()
	require.NoError(t, cat.Reset())

	count, err := cat.Count()
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestCatalogRemoveDatabaseMissingFile(t *testing.T) {
	spec := testSpec(t)
	spec.RemoveDatabase = true

	_, statErr := os.Stat(spec.Filename)
	require.True(t, os.IsNotExist(statErr))

	cat, err := Open(spec)
	require.NoError(t, err, "removing a missing database file is not an error")
	require.NoError(t, cat.Close())
}

func TestCatalogInsertNoRows(t *testing.T) {
	cat, err := Open(testSpec(t))
	require.NoError(t, err)
	defer func() { _ = cat.Close() }()

	require.NoError(t, cat.Reset())
	require.NoError(t, cat.InsertRows(nil))
}
