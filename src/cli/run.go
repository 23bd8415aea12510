package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"volume-backup/src/config"
	"volume-backup/src/notify"
	"volume-backup/src/orchestrator"
	"volume-backup/src/runlock"
)

func newRunCmd(stdout, stderr io.Writer) *cobra.Command {
	var dryRun bool
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Execute one backup run over all configured projects",
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

			if dryRun {
				fmt.Fprintf(stdout, "host %s, repository %s\n", cfg.Host, cfg.Repository)
				renderPlan(stdout, cfg)
				return nil
			}

			lock := runlock.New(cfg.LockDir, cfg.Host, logger)
			if err := lock.Acquire(); err != nil {
				var busyErr *runlock.BusyError
				if errors.As(err, &busyErr) {
					// Overlap with a still-running previous invocation. No
					// liveness ping here: the other run owns the check.
					logger.Errorf("%s", err)
				}
				return err
			}
			defer lock.Release()

			pinger := notify.New(cfg.HealthchecksURL, logger)

			info, err := checkResticBinary(ctx, cmd, cfg)
			if err != nil {
				pinger.Ping(ctx, notify.PhaseFailure)
				return fmt.Errorf("locate backup engine: %w", err)
			}
			logger.Infof("using %s (restic %s)", info.Path, info.Version)

			store := newStoreFn(info, storeOptions(cfg), logger)
			summary, err := orchestrator.New(cfg, store, pinger, logger).Run(ctx)
			if err != nil {
				return err
			}

			renderSummary(stdout, summary)
			if summary.Failed() {
				_, failed, _ := summary.Counts()
				return fmt.Errorf("%d project(s) failed", failed)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Resolve volumes and print the plan without touching the store")
	return cmd
}

// renderPlan prints the projects and volume paths a run would process.
func renderPlan(w io.Writer, cfg *config.Config) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "PROJECT\tVOLUME\tPATH\tSTATE")
	for _, project := range cfg.Projects {
		if len(project.Volumes) == 0 {
			fmt.Fprintf(tw, "%s\t-\t-\tno volumes (skipped)\n", project.Name)
			continue
		}
		for _, volume := range project.Volumes {
			path := cfg.VolumePath(volume)
			state := "present"
			if info, err := os.Stat(path); err != nil || !info.IsDir() {
				state = "missing"
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", project.Name, volume, path, state)
		}
	}
	_ = tw.Flush()
}

func renderSummary(w io.Writer, summary orchestrator.Summary) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "PROJECT\tSTATUS\tDETAIL")
	for _, r := range summary.Results {
		detail := ""
		switch {
		case r.Err != nil:
			detail = r.Err.Error()
		case r.Status == orchestrator.StatusOK:
			detail = r.Stats.String()
		case r.Status == orchestrator.StatusSkipped:
			detail = "no volumes present"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", r.Project, r.Status, detail)
	}
	_ = tw.Flush()
}
