package cli

import (
	"github.com/spf13/cobra"

	"github.com/astrolabhq/stargrid/internal/config"
	"github.com/astrolabhq/stargrid/internal/manager"
)

// newBuildCommand creates "build", which runs the full grid build pipeline.
func newBuildCommand(opts *Options) *cobra.Command {
	return &cobra.Command{
		Use:   "build",
		Short: "Expand the grid, materialize run directories and write job scripts",
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger := LoggerFromContext(cmd.Context())

			cfg, err := config.Load(opts.ConfigPath)
			if err != nil {
				return err
			}
			logger.Info("loaded configuration", "path", opts.ConfigPath)

			return manager.New(cfg, logger).Build()
		},
	}
}
