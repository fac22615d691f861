// Package job renders per-job submission scripts and run-directory manifests
// for the shell and batch-queue execution backends.
package job

import (
	"fmt"
	"strings"

	"github.com/astrolabhq/stargrid/internal/config"
)

// UnknownManagerError reports an unrecognized manager value.
type UnknownManagerError struct {
	Name string
}

func (e *UnknownManagerError) Error() string {
	return fmt.Sprintf("unknown manager %q (expected shell, slurm or pbs)", e.Name)
}

// Backend renders the scheduler-specific part of a job script. It is a
// closed set selected once at configuration time: shell emits no directives,
// slurm and pbs emit their batch headers.
type Backend interface {
	// Name identifies the backend in logs.
	Name() string
	// Header returns the directive block placed after the shebang. Empty
	// for the shell backend.
	Header(jobName string, d Directives) string
}

// Directives carries the batch-queue settings rendered verbatim into
// scheduler headers.
type Directives struct {
	Queue      string
	Walltime   string
	Nodes      int
	Cores      int
	MemoryGB   int
	Email      string
	MailPolicy string
	OutFile    string
	ErrFile    string
}

// NewBackend selects the backend for a manager spec.
func NewBackend(spec config.ManagerSpec) (Backend, error) {
	switch strings.ToLower(strings.TrimSpace(spec.Manager)) {
	case "shell":
		return shellBackend{}, nil
	case "slurm":
		return slurmBackend{}, nil
	case "pbs":
		return pbsBackend{}, nil
	default:
		return nil, &UnknownManagerError{Name: spec.Manager}
	}
}

// directivesFrom fills Directives from config, applying the historical
// defaults of the submission scripts (168h walltime, mail on everything,
// output to /dev/null).
func directivesFrom(spec config.ManagerSpec) Directives {
	d := Directives{
		Queue:      spec.HPC.Queue,
		Walltime:   spec.HPC.Walltime,
		Nodes:      spec.HPC.Nodes,
		Cores:      spec.NumberOfCores,
		MemoryGB:   spec.HPC.MemoryGB,
		Email:      spec.HPC.Email,
		MailPolicy: spec.HPC.MailPolicy,
		OutFile:    spec.HPC.OutFile,
		ErrFile:    spec.HPC.ErrFile,
	}
	if d.Walltime == "" {
		d.Walltime = "168:00:00"
	}
	if d.MailPolicy == "" {
		d.MailPolicy = "ALL"
	}
	if d.Nodes < 1 {
		d.Nodes = 1
	}
	if d.Cores < 1 {
		d.Cores = 1
	}
	if d.OutFile == "" {
		d.OutFile = "/dev/null"
	}
	if d.ErrFile == "" {
		d.ErrFile = d.OutFile
	}
	return d
}

type shellBackend struct{}

func (shellBackend) Name() string { return "shell" }

func (shellBackend) Header(string, Directives) string { return "" }

type slurmBackend struct{}

func (slurmBackend) Name() string { return "slurm" }

func (slurmBackend) Header(jobName string, d Directives) string {
	var b strings.Builder
	fmt.Fprintf(&b, "#SBATCH --job-name=%s\n", jobName)
	fmt.Fprintf(&b, "#SBATCH --output=%s\n", d.OutFile)
	fmt.Fprintf(&b, "#SBATCH --error=%s\n", d.ErrFile)
	fmt.Fprintf(&b, "#SBATCH --partition=%s\n", d.Queue)
	fmt.Fprintf(&b, "#SBATCH --mail-type=%s\n", d.MailPolicy)
	if d.Email != "" {
		fmt.Fprintf(&b, "#SBATCH --mail-user=%s\n", d.Email)
	}
	fmt.Fprintf(&b, "#SBATCH --time=%s\n", d.Walltime)
	fmt.Fprintf(&b, "#SBATCH --nodes=%d --cpus-per-task=%d\n", d.Nodes, d.Cores)
	fmt.Fprintf(&b, "#SBATCH --mem=%dgb\n", d.MemoryGB)
	return b.String()
}

type pbsBackend struct{}

func (pbsBackend) Name() string { return "pbs" }

func (pbsBackend) Header(jobName string, d Directives) string {
	var b strings.Builder
	fmt.Fprintf(&b, "#PBS -N %s\n", jobName)
	fmt.Fprintf(&b, "#PBS -q %s\n", d.Queue)
	fmt.Fprintf(&b, "#PBS -l walltime=%s\n", d.Walltime)
	fmt.Fprintf(&b, "#PBS -l nodes=%d:ppn=%d\n", d.Nodes, d.Cores)
	fmt.Fprintf(&b, "#PBS -l mem=%dgb\n", d.MemoryGB)
	fmt.Fprintf(&b, "#PBS -m %s\n", strings.ToLower(d.MailPolicy))
	if d.Email != "" {
		fmt.Fprintf(&b, "#PBS -M %s\n", d.Email)
	}
	fmt.Fprintf(&b, "#PBS -o %s\n", d.OutFile)
	fmt.Fprintf(&b, "#PBS -e %s\n", d.ErrFile)
	return b.String()
}
