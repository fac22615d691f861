package job

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"

	"github.com/astrolabhq/stargrid/internal/config"
	"github.com/astrolabhq/stargrid/internal/grid"
	"github.com/astrolabhq/stargrid/internal/partition"
)

// Writer emits, for every job block, a run-directory manifest
// (job_<k>.folders) and an executable submission script.
type Writer struct {
	backend     Backend
	manager     config.ManagerSpec
	mesa        config.MesaSpec
	templateDir string
	runsDir     string
	binary      bool
	logger      *slog.Logger
}

// NewWriter builds a Writer. templateDir and runsDir must be absolute.
func NewWriter(
	backend Backend,
	manager config.ManagerSpec,
	mesa config.MesaSpec,
	templateDir, runsDir string,
	binaryEvolution bool,
	logger *slog.Logger,
) *Writer {
	return &Writer{
		backend:     backend,
		manager:     manager,
		mesa:        mesa,
		templateDir: templateDir,
		runsDir:     runsDir,
		binary:      binaryEvolution,
		logger:      logger,
	}
}

// ManifestPath returns the path of job k's .folders file.
func (w *Writer) ManifestPath(jobID int) string {
	return filepath.Join(w.runsDir, fmt.Sprintf("job_%d.folders", jobID))
}

// ScriptPath returns the path of job k's submission script.
func (w *Writer) ScriptPath(jobID int) string {
	name := fmt.Sprintf("%s%d%s", w.manager.JobFilePrefix, jobID, w.manager.JobFilename)
	return filepath.Join(w.runsDir, name)
}

// WriteAll writes manifests and scripts for every block. The manifest lists
// the job's run directories as absolute paths in ordinal order; consistency
// between block assignment and run job ids is checked here, at generation
// time, since nothing verifies it later.
func (w *Writer) WriteAll(blocks []partition.Block, runs []grid.RunSpec) error {
	for _, block := range blocks {
		dirs := make([]string, 0, block.Size())
		for ordinal := block.Start; ordinal < block.End; ordinal++ {
			run := &runs[ordinal]
			if run.JobID != block.JobID {
				return fmt.Errorf("run %s (ordinal %d) carries job id %d but falls in block %d",
					run.Name, run.Ordinal, run.JobID, block.JobID)
			}
			dirs = append(dirs, filepath.Join(w.runsDir, run.Name))
		}

		manifestPath := w.ManifestPath(block.JobID)
		if err := os.WriteFile(manifestPath, []byte(strings.Join(dirs, "\n")+"\n"), 0o644); err != nil {
			return errors.Wrapf(err, "write manifest for job %d", block.JobID)
		}

		scriptPath := w.ScriptPath(block.JobID)
		script := w.renderScript(block, manifestPath)
		if err := os.WriteFile(scriptPath, []byte(script), 0o755); err != nil {
			return errors.Wrapf(err, "write script for job %d", block.JobID)
		}

		w.logger.Debug("wrote job artifacts",
			"job", block.JobID,
			"runs", block.Size(),
			"manifest", manifestPath,
			"script", scriptPath,
		)
	}
	return nil
}

// renderScript produces the full script text for one job: shebang, optional
// scheduler header, the MESA environment block and the per-directory loop.
func (w *Writer) renderScript(block partition.Block, manifestPath string) string {
	jobName := fmt.Sprintf("%sjob%d", w.manager.JobFilePrefix, block.JobID)
	slots := partition.Slots(block, w.manager.NumberOfParallelJobs)

	var b strings.Builder
	b.WriteString("#!/bin/sh\n")
	fmt.Fprintf(&b, "# job script: %s\n", jobName)

	if header := w.backend.Header(jobName, directivesFrom(w.manager)); header != "" {
		b.WriteString("\n")
		b.WriteString(header)
	}

	b.WriteString(w.mesaEnvBlock())
	b.WriteString(w.mainLoop(manifestPath, slots))
	return b.String()
}

// mesaEnvBlock emits the mesainit function and the template/runs exports the
// external code expects.
func (w *Writer) mesaEnvBlock() string {
	var b strings.Builder
	b.WriteString("\nmesainit () {\n")
	fmt.Fprintf(&b, "    export MESASDK_ROOT=\"%s\"\n", w.mesa.SDKRoot)
	fmt.Fprintf(&b, "    export MESA_DIR=\"%s\"\n", w.mesa.MesaDir)
	fmt.Fprintf(&b, "    export MESA_CACHES_DIR=\"%s\"\n", w.mesa.CachesDir)
	b.WriteString("    . \"$MESASDK_ROOT/bin/mesasdk_init.sh\"\n")
	b.WriteString("}\n")

	fmt.Fprintf(&b, "\nexport MESA_TEMPLATE_DIR=\"%s\"\n", w.templateDir)
	fmt.Fprintf(&b, "export MESA_RUNS_DIR=\"%s\"\n", w.runsDir)
	b.WriteString("export MESA_INLIST=\"$MESA_TEMPLATE_DIR/inlist\"\n")
	return b.String()
}

// mainLoop walks the manifest and evolves each run directory. Every run is a
// subshell, so one failing run never aborts the rest of the job; at most
// `slots` runs execute at once.
func (w *Writer) mainLoop(manifestPath string, slots int) string {
	entryPoint := "star"
	if w.binary {
		entryPoint = "binary"
	}

	var b strings.Builder
	b.WriteString("\nmesainit\n")
	fmt.Fprintf(&b, "\nmanifest=\"${1:-%s}\"\n", manifestPath)
	b.WriteString("active=0\n")
	b.WriteString("while IFS= read -r dir; do\n")
	b.WriteString("    [ -z \"$dir\" ] && continue\n")
	b.WriteString("    (\n")
	b.WriteString("        cd \"$dir\" || exit 1\n")
	b.WriteString("        echo \"evolving run in: $dir\"\n")
	fmt.Fprintf(&b, "        \"$MESA_TEMPLATE_DIR/%s\" 2>&1 | tee run.log\n", entryPoint)
	b.WriteString("    ) &\n")
	b.WriteString("    active=$((active + 1))\n")
	fmt.Fprintf(&b, "    if [ \"$active\" -ge %d ]; then\n", slots)
	b.WriteString("        wait\n")
	b.WriteString("        active=0\n")
	b.WriteString("    fi\n")
	b.WriteString("done < \"$manifest\"\n")
	b.WriteString("wait\n")
	return b.String()
}
