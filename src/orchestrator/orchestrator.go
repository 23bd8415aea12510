// Package orchestrator drives one backup run: it walks the configured
// projects in order, snapshots each project's volumes into the store, applies
// retention, and reports the aggregate outcome. One bad project never aborts
// the others; only a store that cannot be initialized ends the run early.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"volume-backup/src/config"
	"volume-backup/src/notify"
	"volume-backup/src/restic"
)

// Store is the slice of the snapshot store client the orchestrator needs.
type Store interface {
	RepositoryID(ctx context.Context) (string, error)
	EnsureInitialized(ctx context.Context) error
	Backup(ctx context.Context, paths []string, tags []string) (restic.BackupStats, error)
	Forget(ctx context.Context, tags []string, policy restic.RetentionPolicy, prune bool) error
	Unlock(ctx context.Context, removeAll bool) error
}

type Orchestrator struct {
	cfg    *config.Config
	store  Store
	pinger notify.Pinger
	logger *zap.SugaredLogger

	// sleep is the settle pause between backup and retention, swapped out
	// in tests.
	sleep func(ctx context.Context, d time.Duration)
}

func New(cfg *config.Config, store Store, pinger notify.Pinger, logger *zap.SugaredLogger) *Orchestrator {
	return &Orchestrator{
		cfg:    cfg,
		store:  store,
		pinger: pinger,
		logger: logger,
		sleep:  contextSleep,
	}
}

// Run executes one full backup run. The returned Summary always covers the
// projects that were reached; a non-nil error means the run aborted early
// (store initialization failure or cancellation) and the caller must treat
// it as failed regardless of the Summary contents.
func (o *Orchestrator) Run(ctx context.Context) (Summary, error) {
	summary := Summary{Host: o.cfg.Host, Started: time.Now()}
	o.logger.Infof("run started on host %s: %d project(s)", o.cfg.Host, len(o.cfg.Projects))

	o.pinger.Ping(ctx, notify.PhaseStart)

	if id, err := o.store.RepositoryID(ctx); err != nil {
		o.logger.Warnf("repository identity probe: %s", err)
	} else {
		o.logger.Infof("repository id %s", id)
	}

	if err := o.store.EnsureInitialized(ctx); err != nil {
		o.pinger.Ping(ctx, notify.PhaseFailure)
		return summary, fmt.Errorf("ensure repository: %w", err)
	}

	// A previous crashed run, here or on another host, may have left the
	// store's own advisory lock behind.
	if err := o.store.Unlock(ctx, false); err != nil {
		o.logger.Warnf("clear stale store locks: %s", err)
	}

	for _, project := range o.cfg.Projects {
		if ctx.Err() != nil {
			return summary, fmt.Errorf("run canceled: %w", ctx.Err())
		}
		summary.Results = append(summary.Results, o.processProject(ctx, project))
	}

	ok, failed, skipped := summary.Counts()
	if summary.Failed() {
		o.logger.Errorf("run finished: %d ok, %d failed, %d skipped", ok, failed, skipped)
		o.pinger.Ping(ctx, notify.PhaseFailure)
	} else {
		o.logger.Infof("run finished: %d ok, %d failed, %d skipped", ok, failed, skipped)
		o.pinger.Ping(ctx, notify.PhaseSuccess)
	}
	return summary, nil
}

func (o *Orchestrator) processProject(ctx context.Context, project config.Project) (result ProjectResult) {
	started := time.Now()
	result = ProjectResult{Project: project.Name}
	defer func() { result.Duration = time.Since(started) }()

	paths := o.resolveVolumes(project)
	result.Paths = paths
	if len(paths) == 0 {
		o.logger.Warnf("project %s: no volumes present, skipping", project.Name)
		result.Status = StatusSkipped
		return result
	}

	tags := []string{"project=" + project.Name, "host=" + o.cfg.Host}

	o.logger.Infof("project %s: backing up %d volume(s)", project.Name, len(paths))
	stats, err := o.store.Backup(ctx, paths, tags)
	if err != nil {
		var busyErr *restic.BusyError
		if errors.As(err, &busyErr) {
			// One unlock attempt so the next project gets a clean store.
			if uerr := o.store.Unlock(ctx, false); uerr != nil {
				o.logger.Warnf("project %s: unlock after lock contention: %s", project.Name, uerr)
			}
		}
		o.logger.Errorf("project %s: backup failed: %s", project.Name, err)
		result.Status = StatusFailed
		result.Err = err
		return result
	}
	result.Stats = stats
	o.logger.Infof("project %s: backup done: %s", project.Name, stats)

	if err := o.store.Unlock(ctx, true); err != nil {
		o.logger.Warnf("project %s: unlock after backup: %s", project.Name, err)
	}

	o.sleep(ctx, o.cfg.SettleDelay.Std())

	policy := restic.RetentionPolicy{
		KeepDaily:   o.cfg.Retention.KeepDaily,
		KeepWeekly:  o.cfg.Retention.KeepWeekly,
		KeepMonthly: o.cfg.Retention.KeepMonthly,
	}
	if err := o.store.Forget(ctx, tags, policy, true); err != nil {
		o.logger.Errorf("project %s: retention failed: %s", project.Name, err)
		result.Status = StatusFailed
		result.Err = err
		return result
	}

	o.logger.Infof("project %s: done in %s", project.Name, time.Since(started).Round(time.Second))
	result.Status = StatusOK
	return result
}

// resolveVolumes maps the project's volume names onto existing data
// directories. Missing volumes are dropped with a warning; they are an
// operator mistake worth flagging but never worth failing the run over.
func (o *Orchestrator) resolveVolumes(project config.Project) []string {
	var paths []string
	for _, volume := range project.Volumes {
		path := o.cfg.VolumePath(volume)
		info, err := os.Stat(path)
		if err != nil || !info.IsDir() {
			o.logger.Warnf("project %s: volume %s has no data directory at %s, dropping", project.Name, volume, path)
			continue
		}
		paths = append(paths, path)
	}
	return paths
}

func contextSleep(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
