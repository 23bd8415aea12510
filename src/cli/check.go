package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"volume-backup/src/restic"
)

// check is the operator preflight: it validates the configuration, locates
// the engine binary, and probes the repository, without taking the run lock
// or writing anything.
func newCheckCmd(stdout, stderr io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Validate the configuration and probe the repository",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := commandContext(cmd)

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			logger, closeLogger, err := newLogger(cmd, stderr)
			if err != nil {
				return err
			}
			defer closeLogger()

			fmt.Fprintf(stdout, "Host:       %s\n", cfg.Host)
			fmt.Fprintf(stdout, "Repository: %s\n", cfg.Repository)
			if cfg.HealthchecksURL != "" {
				fmt.Fprintf(stdout, "Liveness:   %s\n", cfg.HealthchecksURL)
			}

			info, err := checkResticBinary(ctx, cmd, cfg)
			if err != nil {
				return err
			}
			fmt.Fprintf(stdout, "Engine:     %s (restic %s", info.Path, info.Version)
			if !restic.IsCompatible(info.Version) {
				fmt.Fprintf(stdout, ", below required %s", restic.RequiredVersion)
			}
			fmt.Fprintln(stdout, ")")

			store := newStoreFn(info, storeOptions(cfg), logger)
			if id, err := store.RepositoryID(ctx); err != nil {
				fmt.Fprintf(stdout, "Identity:   unreachable (%s)\n", err)
			} else {
				fmt.Fprintf(stdout, "Identity:   %s\n", id)
			}

			fmt.Fprintln(stdout)
			renderPlan(stdout, cfg)
			return nil
		},
	}
}
