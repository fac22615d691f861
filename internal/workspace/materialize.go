// Package workspace materializes per-run directories from a shared template:
// it copies the code-specific file manifest, overlays configured extras and
// resolves the template-path placeholder in namelist files.
package workspace

import (
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/astrolabhq/stargrid/internal/config"
	"github.com/astrolabhq/stargrid/internal/grid"
)

// MissingEntryError reports a required manifest entry absent from the
// template root.
type MissingEntryError struct {
	Entry       string
	TemplateDir string
}

func (e *MissingEntryError) Error() string {
	return fmt.Sprintf("template %s is missing required entry %q", e.TemplateDir, e.Entry)
}

// DestinationExistsError reports an existing run directory that may not be
// overwritten.
type DestinationExistsError struct {
	Path string
}

func (e *DestinationExistsError) Error() string {
	return fmt.Sprintf("run directory %s already exists and overwrite is disabled", e.Path)
}

// Materializer copies the template into run directories. The template is
// treated as read-only; each run directory exclusively owns its copy.
type Materializer struct {
	templateDir string
	runsDir     string
	overwrite   bool
	manifest    []string
	extras      []string
	srcFiles    []string
	makefile    string
	logger      *slog.Logger
}

// New builds a Materializer from the template spec and verifies once that
// every manifest entry exists in the template root.
func New(spec config.TemplateSpec, runsDir string, logger *slog.Logger) (*Materializer, error) {
	templateDir, err := filepath.Abs(spec.Directory)
	if err != nil {
		return nil, errors.Wrap(err, "resolve template directory")
	}
	absRuns, err := filepath.Abs(runsDir)
	if err != nil {
		return nil, errors.Wrap(err, "resolve runs directory")
	}

	m := &Materializer{
		templateDir: templateDir,
		runsDir:     absRuns,
		overwrite:   spec.Overwrite,
		manifest:    Manifest(spec.IsBinaryEvolution),
		extras:      spec.Extras,
		srcFiles:    spec.ExtraSrcFiles,
		makefile:    spec.Makefile,
		logger:      logger,
	}

	for _, entry := range m.manifest {
		if _, err := os.Stat(filepath.Join(templateDir, entry)); err != nil {
			return nil, &MissingEntryError{Entry: entry, TemplateDir: templateDir}
		}
	}
	return m, nil
}

// TemplateDir returns the resolved absolute template root.
func (m *Materializer) TemplateDir() string { return m.templateDir }

// RunsDir returns the resolved absolute runs root.
func (m *Materializer) RunsDir() string { return m.runsDir }

// RunDir returns the directory a run materializes into.
func (m *Materializer) RunDir(run *grid.RunSpec) string {
	return filepath.Join(m.runsDir, run.Name)
}

// MaterializeRun produces the run directory for one RunSpec and returns its
// absolute path. The copy lands in a staging directory first and is renamed
// into place, so an interrupted materialization never leaves a half-written
// run directory behind.
func (m *Materializer) MaterializeRun(run *grid.RunSpec) (string, error) {
	dest := m.RunDir(run)

	if _, err := os.Stat(dest); err == nil {
		if !m.overwrite {
			return "", &DestinationExistsError{Path: dest}
		}
		if err := os.RemoveAll(dest); err != nil {
			return "", errors.Wrapf(err, "remove existing run directory %s", dest)
		}
	}

	if err := os.MkdirAll(m.runsDir, 0o755); err != nil {
		return "", errors.Wrap(err, "create runs directory")
	}

	staging := filepath.Join(m.runsDir, fmt.Sprintf(".%s.stage-%s", run.Name, uuid.NewString()[:8]))
	defer os.RemoveAll(staging)

	if err := m.populate(staging); err != nil {
		return "", errors.Wrapf(err, "materialize run %s", run.Name)
	}
	if err := m.resolvePlaceholders(staging); err != nil {
		return "", errors.Wrapf(err, "resolve placeholders for run %s", run.Name)
	}

	if err := os.Rename(staging, dest); err != nil {
		return "", errors.Wrapf(err, "move run %s into place", run.Name)
	}

	m.logger.Debug("materialized run directory", "run", run.Name, "dir", dest)
	return dest, nil
}

// populate copies the manifest subset and overlays extras, later entries
// winning on name collisions.
func (m *Materializer) populate(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	for _, entry := range m.manifest {
		src := filepath.Join(m.templateDir, entry)
		if err := copyEntry(src, filepath.Join(dir, entry)); err != nil {
			return err
		}
	}

	for _, extra := range m.extras {
		if err := copyEntry(extra, filepath.Join(dir, filepath.Base(extra))); err != nil {
			return err
		}
	}

	if len(m.srcFiles) > 0 {
		srcDir := filepath.Join(dir, "src")
		if err := os.MkdirAll(srcDir, 0o755); err != nil {
			return err
		}
		for _, file := range m.srcFiles {
			if err := copyFile(file, filepath.Join(srcDir, filepath.Base(file))); err != nil {
				return err
			}
		}
	}

	if m.makefile != "" {
		makeDir := filepath.Join(dir, "make")
		if err := os.MkdirAll(makeDir, 0o755); err != nil {
			return err
		}
		if err := copyFile(m.makefile, filepath.Join(makeDir, "makefile")); err != nil {
			return err
		}
	}

	return nil
}

// resolvePlaceholders substitutes TemplateToken with the template path in
// every namelist file under dir. Files without the token pass through
// byte-identical.
func (m *Materializer) resolvePlaceholders(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !isNamelist(d.Name()) {
			return nil
		}

		raw, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		if !strings.Contains(string(raw), TemplateToken) {
			return nil
		}

		resolved := strings.ReplaceAll(string(raw), TemplateToken, m.templateDir)
		info, err := d.Info()
		if err != nil {
			return err
		}
		return os.WriteFile(path, []byte(resolved), info.Mode().Perm())
	})
}

// isNamelist reports whether a file carries the external code's
// namelist-style inputs.
func isNamelist(name string) bool {
	return strings.HasPrefix(name, "inlist")
}

func copyEntry(src, dest string) error {
	info, err := os.Stat(src)
	if err != nil {
		return errors.Wrapf(err, "stat %s", src)
	}
	if info.IsDir() {
		return copyTree(src, dest)
	}
	return copyFile(src, dest)
}

func copyTree(src, dest string) error {
	return filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dest, rel)
		if d.IsDir() {
			return os.MkdirAll(target, 0o755)
		}
		return copyFile(path, target)
	})
}

func copyFile(src, dest string) error {
	in, err := os.Open(src)
	if err != nil {
		return errors.Wrapf(err, "open %s", src)
	}
	defer func() { _ = in.Close() }()

	info, err := in.Stat()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return err
	}
	out, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return errors.Wrapf(err, "create %s", dest)
	}

	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return errors.Wrapf(err, "copy %s", src)
	}
	return out.Close()
}
