package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

// NewRootCmd returns the root cobra command for the volume-backup CLI.
func NewRootCmd(stdout, stderr io.Writer) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "volume-backup",
		Short: "Snapshot project volumes into a restic repository and prune old backups",

		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	addGlobalFlags(cmd)

	cmd.AddCommand(newRunCmd(stdout, stderr))
	cmd.AddCommand(newCheckCmd(stdout, stderr))
	cmd.AddCommand(newSnapshotsCmd(stdout, stderr))
	cmd.AddCommand(newUnlockCmd(stdout, stderr))
	cmd.AddCommand(newVersionCmd(stdout))

	return cmd
}

// Execute runs the CLI with the process stdio and maps any error to exit
// code 1.
func Execute(ctx context.Context) int {
	root := NewRootCmd(os.Stdout, os.Stderr)
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return 1
	}
	return 0
}
