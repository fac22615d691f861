// Package config contains the loader and strongly typed model for grid.yaml.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/caarlos0/env/v11"
	"github.com/hashicorp/go-multierror"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Config is the top-level model of a grid build configuration file.
type Config struct {
	// EnvFiles lists .env files loaded into the process environment before
	// the MESA path fallbacks are resolved.
	EnvFiles []string `yaml:"envFiles,omitempty"`
	// Grid declares the parameter axes to expand.
	Grid GridSpec `yaml:"grid"`
	// Template describes the shared template tree copied into every run.
	Template TemplateSpec `yaml:"template"`
	// Runs configures where run directories are materialized.
	Runs RunsSpec `yaml:"runs"`
	// Manager configures job partitioning and submission-script rendering.
	Manager ManagerSpec `yaml:"manager"`
	// Database configures the run catalog.
	Database DatabaseSpec `yaml:"database"`
	// Mesa holds the MESA installation paths baked into generated scripts.
	Mesa MesaSpec `yaml:"mesa"`
}

// Axis is one named grid parameter: either a scalar or an ordered sequence
// of values to explore. Declaration order in grid.yaml is preserved.
type Axis struct {
	Name   string
	Values []any
	// Scalar marks an axis declared as a single value; it contributes one
	// factor to every combination and is excluded from run names.
	Scalar bool
}

// GridSpec holds the ordered list of axes. It decodes from a YAML mapping
// whose values are scalars or sequences, keeping the mapping order.
type GridSpec struct {
	Axes []Axis
}

// UnmarshalYAML decodes the grid mapping while preserving declaration order,
// which a plain map[string]any would lose.
func (g *GridSpec) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("grid: expected a mapping of axis name to value(s), got %s", nodeKind(node))
	}

	for i := 0; i+1 < len(node.Content); i += 2 {
		key := node.Content[i]
		val := node.Content[i+1]

		axis := Axis{Name: key.Value}
		switch val.Kind {
		case yaml.SequenceNode:
			if err := val.Decode(&axis.Values); err != nil {
				return errors.Wrapf(err, "grid axis %q", key.Value)
			}
		case yaml.ScalarNode:
			var v any
			if err := val.Decode(&v); err != nil {
				return errors.Wrapf(err, "grid axis %q", key.Value)
			}
			axis.Values = []any{v}
			axis.Scalar = true
		default:
			return fmt.Errorf("grid axis %q: expected a scalar or a sequence, got %s", key.Value, nodeKind(val))
		}

		g.Axes = append(g.Axes, axis)
	}
	return nil
}

func nodeKind(node *yaml.Node) string {
	switch node.Kind {
	case yaml.MappingNode:
		return "mapping"
	case yaml.SequenceNode:
		return "sequence"
	case yaml.ScalarNode:
		return "scalar"
	default:
		return "unknown node"
	}
}

// TemplateSpec describes the template tree shared by all runs.
type TemplateSpec struct {
	// Directory is the template root holding the external code's work tree.
	Directory string `yaml:"directory"`
	// IsBinaryEvolution selects the binary-evolution file manifest.
	IsBinaryEvolution bool `yaml:"is_binary_evolution"`
	// Overwrite allows re-materializing over an existing run directory.
	Overwrite bool `yaml:"overwrite"`
	// Extras are files copied over the base set into each run directory.
	Extras []string `yaml:"extras,omitempty"`
	// ExtraSrcFiles are files copied into the run's src/ directory.
	ExtraSrcFiles []string `yaml:"extra_src_files,omitempty"`
	// Makefile, when set, replaces the make/makefile of each run.
	Makefile string `yaml:"makefile,omitempty"`
}

// RunsSpec configures the root under which run directories are created.
type RunsSpec struct {
	OutputDirectory string `yaml:"output_directory"`
}

// ManagerSpec configures partitioning and the submission backend.
type ManagerSpec struct {
	// Manager selects the submission backend: shell, slurm or pbs.
	Manager string `yaml:"manager"`
	// JobFilePrefix and JobFilename compose per-job script names as
	// <prefix><job index><filename>, e.g. mesa_0.sh.
	JobFilePrefix string `yaml:"job_file_prefix"`
	JobFilename   string `yaml:"job_filename"`
	// NumberOfJobs is the number of contiguous blocks the grid is split into.
	NumberOfJobs int `yaml:"number_of_jobs"`
	// NumberOfCores is carried into scheduler directives.
	NumberOfCores int `yaml:"number_of_cores"`
	// NumberOfParallelJobs bounds how many runs one job script may launch
	// at the same time. Values below 1 mean sequential.
	NumberOfParallelJobs int `yaml:"number_of_parallel_jobs"`
	// HPC holds the batch-queue directive block for slurm/pbs backends.
	HPC HPCSpec `yaml:"hpc,omitempty"`
}

// HPCSpec is the scheduler directive block rendered verbatim into headers.
type HPCSpec struct {
	Queue      string `yaml:"queue"`
	Walltime   string `yaml:"walltime"`
	Nodes      int    `yaml:"nodes"`
	MemoryGB   int    `yaml:"memory_gb"`
	Email      string `yaml:"email"`
	MailPolicy string `yaml:"mail_policy"`
	OutFile    string `yaml:"out_file"`
	ErrFile    string `yaml:"err_file"`
}

// DatabaseSpec configures the sqlite run catalog.
type DatabaseSpec struct {
	Filename       string `yaml:"filename"`
	Tablename      string `yaml:"tablename"`
	RemoveDatabase bool   `yaml:"remove_database"`
	DropTable      bool   `yaml:"drop_table"`
}

// MesaSpec holds MESA installation paths. Empty fields fall back to the
// MESA_DIR, MESASDK_ROOT and MESA_CACHES_DIR environment variables.
type MesaSpec struct {
	MesaDir   string `yaml:"mesa_dir"`
	SDKRoot   string `yaml:"mesasdk_root"`
	CachesDir string `yaml:"mesa_caches_dir"`
}

// mesaEnv mirrors MesaSpec for environment-variable fallback.
type mesaEnv struct {
	MesaDir   string `env:"MESA_DIR"`
	SDKRoot   string `env:"MESASDK_ROOT"`
	CachesDir string `env:"MESA_CACHES_DIR"`
}

// Load reads, decodes and validates the configuration at path. Relative
// envFiles entries are resolved against the config file's directory.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read config")
	}

	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, errors.Wrapf(err, "parse %s", path)
	}

	baseDir := filepath.Dir(path)
	for _, name := range cfg.EnvFiles {
		if name == "" {
			continue
		}
		envPath := name
		if !filepath.IsAbs(envPath) {
			envPath = filepath.Join(baseDir, name)
		}
		if err := godotenv.Load(envPath); err != nil {
			return nil, errors.Wrapf(err, "load env file %s", envPath)
		}
	}

	if err := cfg.fillMesaFromEnv(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// fillMesaFromEnv resolves empty MESA paths from the environment.
func (c *Config) fillMesaFromEnv() error {
	var fallback mesaEnv
	if err := env.Parse(&fallback); err != nil {
		return errors.Wrap(err, "parse MESA environment")
	}

	if c.Mesa.MesaDir == "" {
		c.Mesa.MesaDir = fallback.MesaDir
	}
	if c.Mesa.SDKRoot == "" {
		c.Mesa.SDKRoot = fallback.SDKRoot
	}
	if c.Mesa.CachesDir == "" {
		c.Mesa.CachesDir = fallback.CachesDir
	}
	return nil
}

// Validate checks the configuration and reports every problem at once.
func (c *Config) Validate() error {
	var result *multierror.Error

	if len(c.Grid.Axes) == 0 {
		result = multierror.Append(result, fmt.Errorf("grid: at least one axis is required"))
	}
	for _, axis := range c.Grid.Axes {
		if len(axis.Values) == 0 {
			result = multierror.Append(result, fmt.Errorf("grid axis %q: empty value list", axis.Name))
		}
	}

	if c.Template.Directory == "" {
		result = multierror.Append(result, fmt.Errorf("template: directory is required"))
	}
	if c.Runs.OutputDirectory == "" {
		result = multierror.Append(result, fmt.Errorf("runs: output_directory is required"))
	}

	if c.Manager.Manager == "" {
		result = multierror.Append(result, fmt.Errorf("manager: manager is required (shell, slurm or pbs)"))
	}
	if c.Manager.NumberOfJobs < 1 {
		result = multierror.Append(result, fmt.Errorf("manager: number_of_jobs must be at least 1, got %d", c.Manager.NumberOfJobs))
	}
	if c.Manager.JobFilePrefix == "" && c.Manager.JobFilename == "" {
		result = multierror.Append(result, fmt.Errorf("manager: job_file_prefix and job_filename cannot both be empty"))
	}

	if c.Database.Filename == "" {
		result = multierror.Append(result, fmt.Errorf("database: filename is required"))
	}
	if c.Database.Tablename == "" {
		result = multierror.Append(result, fmt.Errorf("database: tablename is required"))
	}

	if c.Mesa.MesaDir == "" {
		result = multierror.Append(result, fmt.Errorf("mesa: mesa_dir must be set in the config or via MESA_DIR"))
	}

	return result.ErrorOrNil()
}
