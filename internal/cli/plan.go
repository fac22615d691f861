package cli

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/astrolabhq/stargrid/internal/config"
	"github.com/astrolabhq/stargrid/internal/grid"
	"github.com/astrolabhq/stargrid/internal/manager"
)

// newPlanCommand creates "plan", which prints the expanded grid and its job
// assignment without writing anything.
func newPlanCommand(opts *Options) *cobra.Command {
	return &cobra.Command{
		Use:   "plan",
		Short: "Print the expanded grid and job assignment without building",
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger := LoggerFromContext(cmd.Context())

			cfg, err := config.Load(opts.ConfigPath)
			if err != nil {
				return err
			}

			runs, blocks, err := manager.New(cfg, logger).Plan()
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 2, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ORDINAL\tJOB\tRUN\tPARAMETERS")
			for _, run := range runs {
				fmt.Fprintf(w, "%d\t%d\t%s\t%s\n", run.Ordinal, run.JobID, run.Name, formatParams(&run))
			}
			if err := w.Flush(); err != nil {
				return err
			}

			logger.Info("grid plan", "runs", len(runs), "jobs", len(blocks))
			return nil
		},
	}
}

// formatParams renders a run's full parameter mapping, scalars included.
func formatParams(run *grid.RunSpec) string {
	parts := make([]string, 0, len(run.Params))
	for _, p := range run.Params {
		parts = append(parts, fmt.Sprintf("%s=%s", p.Axis, grid.FormatValue(p.Value)))
	}
	return strings.Join(parts, " ")
}
