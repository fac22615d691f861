package workspace

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/astrolabhq/stargrid/internal/config"
	"github.com/astrolabhq/stargrid/internal/grid"
	"github.com/astrolabhq/stargrid/internal/logging"
)

// writeTemplate lays out a minimal MESA-style work tree in dir.
func writeTemplate(t *testing.T, dir string, binary bool) {
	t.Helper()

	files := map[string]string{
		"clean":          "#!/bin/sh\nrm -rf star\n",
		"mk":             "#!/bin/sh\n./clean && make\n",
		"re":             "#!/bin/sh\n./star\n",
		"rn":             "#!/bin/sh\n./star\n",
		"inlist":         "&star_job\n  read_extra_star_job_inlist1 = .true.\n  extra_star_job_inlist1_name = '" + TemplateToken + "/inlist_project'\n/\n",
		"inlist_project": "&controls\n  initial_mass = 1.0\n/\n",
		"src/run.f90":    "program run\nend program run\n",
		"make/makefile":  "include $(MESA_DIR)/utils/makefile_header\n",
	}
	if binary {
		files["inlist1"] = "&star_job\n/\n"
		files["inlist2"] = "&star_job\n/\n"
	}

	for name, content := range files {
		path := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
}

func newRun(name string) *grid.RunSpec {
	return &grid.RunSpec{Ordinal: 0, Name: name}
}

func TestManifest(t *testing.T) {
	star := Manifest(false)
	assert.Contains(t, star, "inlist")
	assert.Contains(t, star, "src")
	assert.NotContains(t, star, "inlist1")

	binary := Manifest(true)
	assert.Contains(t, binary, "inlist1")
	assert.Contains(t, binary, "inlist2")
}

func TestNewMissingManifestEntry(t *testing.T) {
	templateDir := t.TempDir()
	writeTemplate(t, templateDir, false)
	require.NoError(t, os.Remove(filepath.Join(templateDir, "inlist_project")))

	_, err := New(
		config.TemplateSpec{Directory: templateDir},
		t.TempDir(),
		logging.NewDiscard(),
	)
	var missing *MissingEntryError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, "inlist_project", missing.Entry)
}

func TestMaterializeRunCopiesManifest(t *testing.T) {
	templateDir := t.TempDir()
	writeTemplate(t, templateDir, false)
	runsDir := t.TempDir()

	m, err := New(config.TemplateSpec{Directory: templateDir}, runsDir, logging.NewDiscard())
	require.NoError(t, err)

	dir, err := m.MaterializeRun(newRun("m1_10"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(m.RunsDir(), "m1_10"), dir)

	for _, entry := range Manifest(false) {
		_, err := os.Stat(filepath.Join(dir, entry))
		assert.NoError(t, err, "manifest entry %s", entry)
	}

	// no staging leftovers
	entries, err := os.ReadDir(runsDir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "m1_10", entries[0].Name())
}

func TestMaterializeRunResolvesPlaceholder(t *testing.T) {
	templateDir := t.TempDir()
	writeTemplate(t, templateDir, false)

	m, err := New(config.TemplateSpec{Directory: templateDir}, t.TempDir(), logging.NewDiscard())
	require.NoError(t, err)

	dir, err := m.MaterializeRun(newRun("m1_10"))
	require.NoError(t, err)

	resolved, err := os.ReadFile(filepath.Join(dir, "inlist"))
	require.NoError(t, err)
	assert.NotContains(t, string(resolved), TemplateToken)
	assert.Contains(t, string(resolved), m.TemplateDir()+"/inlist_project")
}

func TestMaterializeRunPlaceholderIdempotent(t *testing.T) {
	templateDir := t.TempDir()
	writeTemplate(t, templateDir, false)

	original, err := os.ReadFile(filepath.Join(templateDir, "inlist_project"))
	require.NoError(t, err)

	m, err := New(config.TemplateSpec{Directory: templateDir}, t.TempDir(), logging.NewDiscard())
	require.NoError(t, err)

	dir, err := m.MaterializeRun(newRun("m1_10"))
	require.NoError(t, err)

	// file without the token passes through byte-identical
	copied, err := os.ReadFile(filepath.Join(dir, "inlist_project"))
	require.NoError(t, err)
	assert.Equal(t, original, copied)
}

func TestMaterializeRunOverwrite(t *testing.T) {
	templateDir := t.TempDir()
	writeTemplate(t, templateDir, false)
	runsDir := t.TempDir()

	noOverwrite, err := New(config.TemplateSpec{Directory: templateDir}, runsDir, logging.NewDiscard())
	require.NoError(t, err)

	_, err = noOverwrite.MaterializeRun(newRun("m1_10"))
	require.NoError(t, err)

	_, err = noOverwrite.MaterializeRun(newRun("m1_10"))
	var exists *DestinationExistsError
	require.ErrorAs(t, err, &exists)

	// with overwrite the destination reflects the second materialization
	marker := filepath.Join(runsDir, "m1_10", "leftover")
	require.NoError(t, os.WriteFile(marker, []byte("stale"), 0o644))

	withOverwrite, err := New(
		config.TemplateSpec{Directory: templateDir, Overwrite: true},
		runsDir,
		logging.NewDiscard(),
	)
	require.NoError(t, err)

	_, err = withOverwrite.MaterializeRun(newRun("m1_10"))
	require.NoError(t, err)
	_, err = os.Stat(marker)
	assert.True(t, os.IsNotExist(err), "overwrite must replace the old directory wholesale")
}

func TestMaterializeRunExtras(t *testing.T) {
	templateDir := t.TempDir()
	writeTemplate(t, templateDir, false)

	extrasDir := t.TempDir()
	historyList := filepath.Join(extrasDir, "history_columns.list")
	require.NoError(t, os.WriteFile(historyList, []byte("star_age\n"), 0o644))
	// extras overlay the base set on name collision
	customInlist := filepath.Join(extrasDir, "inlist_project")
	require.NoError(t, os.WriteFile(customInlist, []byte("&controls\n  initial_mass = 2.0\n/\n"), 0o644))
	extraSrc := filepath.Join(extrasDir, "run_star_extras.f90")
	require.NoError(t, os.WriteFile(extraSrc, []byte("module run_star_extras\nend module\n"), 0o644))
	makefile := filepath.Join(extrasDir, "makefile")
	require.NoError(t, os.WriteFile(makefile, []byte("# custom build\n"), 0o644))

	spec := config.TemplateSpec{
		Directory:     templateDir,
		Extras:        []string{historyList, customInlist},
		ExtraSrcFiles: []string{extraSrc},
		Makefile:      makefile,
	}
	m, err := New(spec, t.TempDir(), logging.NewDiscard())
	require.NoError(t, err)

	dir, err := m.MaterializeRun(newRun("m1_10"))
	require.NoError(t, err)

	_, err = os.Stat(filepath.Join(dir, "history_columns.list"))
	assert.NoError(t, err)

	overlaid, err := os.ReadFile(filepath.Join(dir, "inlist_project"))
	require.NoError(t, err)
	assert.Contains(t, string(overlaid), "initial_mass = 2.0")

	_, err = os.Stat(filepath.Join(dir, "src", "run_star_extras.f90"))
	assert.NoError(t, err)

	replaced, err := os.ReadFile(filepath.Join(dir, "make", "makefile"))
	require.NoError(t, err)
	assert.Equal(t, "# custom build\n", string(replaced))
}

func TestMaterializeRunBinaryManifest(t *testing.T) {
	templateDir := t.TempDir()
	writeTemplate(t, templateDir, true)

	m, err := New(
		config.TemplateSpec{Directory: templateDir, IsBinaryEvolution: true},
		t.TempDir(),
		logging.NewDiscard(),
	)
	require.NoError(t, err)

	dir, err := m.MaterializeRun(newRun("m1_10_m2_8"))
	require.NoError(t, err)

	_, err = os.Stat(filepath.Join(dir, "inlist1"))
	assert.NoError(t, err)
	_, err = os.Stat(filepath.Join(dir, "inlist2"))
	assert.NoError(t, err)
}
