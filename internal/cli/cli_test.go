package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/astrolabhq/stargrid/internal/logging"
	"github.com/astrolabhq/stargrid/internal/workspace"
)

// scaffold writes a template tree plus a grid.yaml pointing at it and
// returns the config path and the runs directory.
func scaffold(t *testing.T) (string, string) {
	t.Helper()

	base := t.TempDir()
	templateDir := filepath.Join(base, "template")
	runsDir := filepath.Join(base, "runs")

	files := map[string]string{
		"clean":          "#!/bin/sh\n",
		"mk":             "#!/bin/sh\n",
		"re":             "#!/bin/sh\n",
		"rn":             "#!/bin/sh\n",
		"inlist":         "&star_job\n  extra = '" + workspace.TemplateToken + "/inlist_project'\n/\n",
		"inlist_project": "&controls\n/\n",
		"src/run.f90":    "program run\nend program run\n",
		"make/makefile":  "# makefile\n",
	}
	for name, content := range files {
		path := filepath.Join(templateDir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}

	cfg := fmt.Sprintf(`
grid:
  m1: [10, 20]
  z: 0.02
template:
  directory: %s
runs:
  output_directory: %s
manager:
  manager: shell
  job_file_prefix: mesa_
  job_filename: .sh
  number_of_jobs: 2
database:
  filename: %s
  tablename: mesa_runs
  drop_table: true
mesa:
  mesa_dir: /opt/mesa
  mesasdk_root: /opt/mesasdk
  mesa_caches_dir: /opt/mesa-caches
`, templateDir, runsDir, filepath.Join(base, "runs.db"))

	configPath := filepath.Join(base, "grid.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte(cfg), 0o644))
	return configPath, runsDir
}

func TestPlanCommand(t *testing.T) {
	configPath, runsDir := scaffold(t)

	err := Execute([]string{"plan", "-c", configPath}, logging.NewDiscard())
	require.NoError(t, err)

	// plan must not build anything
	_, statErr := os.Stat(runsDir)
	assert.True(t, os.IsNotExist(statErr))
}

func TestBuildCommand(t *testing.T) {
	configPath, runsDir := scaffold(t)

	err := Execute([]string{"build", "-c", configPath}, logging.NewDiscard())
	require.NoError(t, err)

	for _, name := range []string{"m1_10", "m1_20", "job_0.folders", "job_1.folders", "mesa_0.sh", "mesa_1.sh"} {
		_, err := os.Stat(filepath.Join(runsDir, name))
		assert.NoError(t, err, "artifact %s", name)
	}
}

func TestBuildCommandMissingConfig(t *testing.T) {
	err := Execute([]string{"build", "-c", filepath.Join(t.TempDir(), "nope.yaml")}, logging.NewDiscard())
	require.Error(t, err)
}
