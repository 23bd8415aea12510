package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"volume-backup/src/safety"
)

func newUnlockCmd(stdout, stderr io.Writer) *cobra.Command {
	var removeAll bool
	cmd := &cobra.Command{
		Use:   "unlock",
		Short: "Clear store-side locks left behind by crashed runs",
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

			if removeAll {
				// Plain unlock only drops stale locks; remove-all also kills
				// locks a live run elsewhere may still depend on.
				ok, err := safety.Confirm(getSafetyOptions(cmd), cmd.InOrStdin(), stdout,
					"Remove ALL repository locks, including ones a running backup may hold?")
				if err != nil {
					return err
				}
				if !ok {
					fmt.Fprintln(stdout, "Aborted.")
					return nil
				}
			}

			info, err := checkResticBinary(ctx, cmd, cfg)
			if err != nil {
				return err
			}
			store := newStoreFn(info, storeOptions(cfg), logger)
			if err := store.Unlock(ctx, removeAll); err != nil {
				return err
			}
			fmt.Fprintln(stdout, "Repository locks cleared.")
			return nil
		},
	}
	cmd.Flags().BoolVar(&removeAll, "remove-all", false, "Remove all locks, not only stale ones")
	return cmd
}
