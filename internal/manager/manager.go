// Package manager composes the grid build pipeline: expand the parameter
// grid, materialize run directories, partition runs into jobs, write
// submission scripts and populate the run catalog.
package manager

import (
	"log/slog"

	"github.com/pkg/errors"

	"github.com/astrolabhq/stargrid/internal/catalog"
	"github.com/astrolabhq/stargrid/internal/config"
	"github.com/astrolabhq/stargrid/internal/grid"
	"github.com/astrolabhq/stargrid/internal/job"
	"github.com/astrolabhq/stargrid/internal/partition"
	"github.com/astrolabhq/stargrid/internal/workspace"
)

// Manager owns one build invocation. The whole pipeline is sequential: run
// names and job blocks are computed over the entire grid, so any failure
// aborts the build rather than skipping a run.
type Manager struct {
	cfg    *config.Config
	logger *slog.Logger
}

// New returns a Manager for the given configuration.
func New(cfg *config.Config, logger *slog.Logger) *Manager {
	return &Manager{cfg: cfg, logger: logger}
}

// Plan expands the grid, derives run names and assigns job ids without
// touching the filesystem or the catalog.
func (m *Manager) Plan() ([]grid.RunSpec, []partition.Block, error) {
	runs, err := grid.Expand(m.cfg.Grid.Axes)
	if err != nil {
		return nil, nil, err
	}
	m.logger.Debug("expanded parameter grid", "runs", len(runs))

	if err := grid.NameRuns(runs); err != nil {
		return nil, nil, err
	}

	blocks, err := partition.Split(len(runs), m.cfg.Manager.NumberOfJobs)
	if err != nil {
		return nil, nil, err
	}
	for _, block := range blocks {
		for ordinal := block.Start; ordinal < block.End; ordinal++ {
			runs[ordinal].JobID = block.JobID
		}
	}

	return runs, blocks, nil
}

// Build executes the full pipeline. Catalog rows are written only after
// every run directory materialized; a catalog fault is returned to the
// caller but already-written run directories stay on disk.
func (m *Manager) Build() error {
	runs, blocks, err := m.Plan()
	if err != nil {
		return err
	}

	// resolve the backend before any filesystem writes so a bad manager
	// value fails the build with nothing half-done
	backend, err := job.NewBackend(m.cfg.Manager)
	if err != nil {
		return err
	}

	mat, err := workspace.New(m.cfg.Template, m.cfg.Runs.OutputDirectory, m.logger)
	if err != nil {
		return err
	}

	m.logger.Info("materializing run directories",
		"runs", len(runs),
		"template", mat.TemplateDir(),
		"output", mat.RunsDir(),
	)
	for i := range runs {
		if _, err := mat.MaterializeRun(&runs[i]); err != nil {
			return err
		}
	}

	writer := job.NewWriter(
		backend,
		m.cfg.Manager,
		m.cfg.Mesa,
		mat.TemplateDir(),
		mat.RunsDir(),
		m.cfg.Template.IsBinaryEvolution,
		m.logger,
	)
	if err := writer.WriteAll(blocks, runs); err != nil {
		return err
	}
	m.logger.Info("wrote job scripts", "jobs", len(blocks), "backend", backend.Name())

	if err := m.populateCatalog(runs, mat); err != nil {
		return err
	}

	m.logger.Info("grid build complete", "runs", len(runs), "jobs", len(blocks))
	return nil
}

// populateCatalog resets the run table and appends one row per run.
func (m *Manager) populateCatalog(runs []grid.RunSpec, mat *workspace.Materializer) error {
	cat, err := catalog.Open(m.cfg.Database)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := cat.Close(); cerr != nil {
			m.logger.Warn("closing catalog", "error", cerr)
		}
	}()

	if err := cat.Reset(); err != nil {
		return err
	}

	rows := make([]catalog.Row, len(runs))
	for i := range runs {
		rows[i] = catalog.Row{
			ID:                int64(runs[i].Ordinal),
			RunName:           runs[i].Name,
			TemplateDirectory: mat.TemplateDir(),
			RunsDirectory:     mat.RunsDir(),
			JobID:             runs[i].JobID,
			Status:            catalog.StatusNotComputed,
		}
	}
	if err := cat.InsertRows(rows); err != nil {
		return errors.Wrap(err, "run directories were kept on disk")
	}

	m.logger.Debug("cataloged runs", "rows", len(rows), "database", m.cfg.Database.Filename)
	return nil
}
