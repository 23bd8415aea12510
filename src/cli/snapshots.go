package cli

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"volume-backup/src/restic"
)

func newSnapshotsCmd(stdout, stderr io.Writer) *cobra.Command {
	var project string
	var allHosts bool
	cmd := &cobra.Command{
		Use:   "snapshots",
		Short: "List the snapshots stored for this host's projects",
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

			info, err := checkResticBinary(ctx, cmd, cfg)
			if err != nil {
				return err
			}
			store := newStoreFn(info, storeOptions(cfg), logger)

			var tags []string
			if project != "" {
				tags = append(tags, "project="+project)
			}
			if !allHosts {
				tags = append(tags, "host="+cfg.Host)
			}

			snaps, err := store.Snapshots(ctx, tags)
			if err != nil {
				return err
			}
			renderSnapshots(stdout, snaps)
			return nil
		},
	}
	cmd.Flags().StringVar(&project, "project", "", "Only list snapshots of this project")
	cmd.Flags().BoolVar(&allHosts, "all-hosts", false, "Include snapshots taken by other hosts")
	return cmd
}

func renderSnapshots(w io.Writer, snaps []restic.Snapshot) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "SNAPSHOT\tTIME\tPROJECT\tHOST\tPATHS")
	for _, snap := range snaps {
		tags := snap.TagMap()
		host := tags["host"]
		if host == "" {
			host = snap.Hostname
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			snap.ShortID,
			snap.Time.Format("2006-01-02 15:04:05"),
			tags["project"],
			host,
			strings.Join(snap.Paths, ","),
		)
	}
	_ = tw.Flush()
}
