package restic

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"volume-backup/src/logging"
)

// shortOpTimeout bounds the cheap operations (probe, init, unlock, list);
// backup and forget carry their own configured budgets.
const shortOpTimeout = 5 * time.Minute

// Options carries the engine tuning resolved from configuration. Env is the
// explicit credential/repository environment appended to the subprocess
// environment on every call; the client never exports anything into its own
// process environment.
type Options struct {
	Env            []string
	CacheDir       string
	UploadLimitKiB int
	OneFileSystem  bool
	BackupTimeout  time.Duration
	ForgetTimeout  time.Duration
}

// RetentionPolicy is the forget rule set applied per tag scope.
type RetentionPolicy struct {
	KeepDaily   int
	KeepWeekly  int
	KeepMonthly int
}

// Store wraps the restic binary as a synchronous operation client. Every
// method either completes or fails with a typed error; all long calls are
// wall-clock bounded and the subprocess is killed on expiry.
type Store struct {
	bin    BinaryInfo
	opts   Options
	logger *zap.SugaredLogger

	run runnerFunc
}

type runnerFunc func(ctx context.Context, bin string, env []string, args []string) (stdout, stderr string, err error)

func NewStore(bin BinaryInfo, opts Options, logger *zap.SugaredLogger) *Store {
	if opts.BackupTimeout <= 0 {
		opts.BackupTimeout = time.Hour
	}
	if opts.ForgetTimeout <= 0 {
		opts.ForgetTimeout = 2 * time.Hour
	}
	s := &Store{bin: bin, opts: opts, logger: logger}
	s.run = s.defaultRunner
	return s
}

// defaultRunner executes the engine with the explicit env appended to the
// inherited one. Stderr is captured for classification and simultaneously
// streamed into the debug log.
func (s *Store) defaultRunner(ctx context.Context, bin string, env []string, args []string) (string, string, error) {
	cmd := exec.CommandContext(ctx, bin, args...)
	cmd.Env = append(os.Environ(), env...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = io.MultiWriter(&stderr, logging.ToDebugWriter(s.logger))
	err := cmd.Run()
	return stdout.String(), stderr.String(), err
}

// exec runs one engine command under its budget and classifies failures.
func (s *Store) exec(parent context.Context, op string, budget time.Duration, args ...string) (string, error) {
	ctx, cancel := context.WithTimeout(parent, budget)
	defer cancel()

	full := append(s.globalArgs(), args...)
	s.logger.Debugf("restic %s", strings.Join(full, " "))
	stdout, stderr, err := s.run(ctx, s.bin.Path, s.opts.Env, full)
	if err != nil {
		return stdout, classify(op, budget, ctx, parent, err, stderr)
	}
	return stdout, nil
}

func (s *Store) globalArgs() []string {
	var args []string
	if s.opts.CacheDir != "" {
		args = append(args, "--cache-dir", s.opts.CacheDir)
	}
	return args
}

// RepositoryID reads the repository identity via `cat config`. Callers use
// it as a best-effort sanity probe; failures are warnings, never fatal.
func (s *Store) RepositoryID(ctx context.Context) (string, error) {
	stdout, err := s.exec(ctx, "cat config", shortOpTimeout, "cat", "config")
	if err != nil {
		return "", err
	}
	var cfg struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal([]byte(stdout), &cfg); err != nil {
		return "", fmt.Errorf("restic cat config: parse identity: %w", err)
	}
	return cfg.ID, nil
}

// EnsureInitialized makes sure the repository exists, running `init` when the
// probe reports no repository. Any failure here is fatal for the run: without
// a store there is nothing to back up into.
func (s *Store) EnsureInitialized(ctx context.Context) error {
	_, err := s.exec(ctx, "cat config", shortOpTimeout, "cat", "config")
	if err == nil {
		return nil
	}

	var opErr *OpError
	if !errors.As(err, &opErr) || !isNotRepository(opErr.Stderr) {
		return fmt.Errorf("probe repository: %w", err)
	}

	s.logger.Infof("repository not initialized, running init")
	if _, err := s.exec(ctx, "init", shortOpTimeout, "init"); err != nil {
		return fmt.Errorf("initialize repository: %w", err)
	}
	return nil
}

// Backup snapshots the given paths under the given key=value tags, bounded
// by the backup timeout. The JSON summary line restic prints on success is
// parsed into BackupStats for logging; an absent summary is not an error.
func (s *Store) Backup(ctx context.Context, paths []string, tags []string) (BackupStats, error) {
	args := []string{"backup", "--json"}
	for _, tag := range tags {
		args = append(args, "--tag", tag)
	}
	if s.opts.UploadLimitKiB > 0 {
		args = append(args, "--limit-upload", strconv.Itoa(s.opts.UploadLimitKiB))
	}
	if s.opts.OneFileSystem {
		args = append(args, "--one-file-system")
	}
	args = append(args, paths...)

	stdout, err := s.exec(ctx, "backup", s.opts.BackupTimeout, args...)
	if err != nil {
		return BackupStats{}, err
	}
	stats, _ := ParseBackupSummary(stdout)
	return stats, nil
}

// Forget applies the retention policy to the snapshots matching all given
// tags, optionally pruning unreferenced data in the same call. Bounded by
// the forget timeout, which is deliberately the longest budget: pruning
// rewrites pack files.
func (s *Store) Forget(ctx context.Context, tags []string, policy RetentionPolicy, prune bool) error {
	args := []string{
		"forget",
		"--tag", strings.Join(tags, ","),
		"--keep-daily", strconv.Itoa(policy.KeepDaily),
		"--keep-weekly", strconv.Itoa(policy.KeepWeekly),
		"--keep-monthly", strconv.Itoa(policy.KeepMonthly),
	}
	if prune {
		args = append(args, "--prune")
	}
	_, err := s.exec(ctx, "forget", s.opts.ForgetTimeout, args...)
	return err
}

// Unlock clears store-side locks. Idempotent and safe to call when no lock
// exists; callers treat failures as advisory.
func (s *Store) Unlock(ctx context.Context, removeAll bool) error {
	args := []string{"unlock"}
	if removeAll {
		args = append(args, "--remove-all")
	}
	_, err := s.exec(ctx, "unlock", shortOpTimeout, args...)
	return err
}

// Snapshot is one stored snapshot as reported by `snapshots --json`.
type Snapshot struct {
	ID       string    `json:"id"`
	ShortID  string    `json:"short_id"`
	Time     time.Time `json:"time"`
	Hostname string    `json:"hostname"`
	Tags     []string  `json:"tags"`
	Paths    []string  `json:"paths"`
}

// TagMap converts a snapshot's key=value tags into a map.
func (s Snapshot) TagMap() map[string]string {
	out := make(map[string]string, len(s.Tags))
	for _, tag := range s.Tags {
		if key, value, found := strings.Cut(tag, "="); found {
			out[key] = value
		} else {
			out[tag] = ""
		}
	}
	return out
}

// Snapshots lists snapshots matching all given tags, oldest first.
func (s *Store) Snapshots(ctx context.Context, tags []string) ([]Snapshot, error) {
	args := []string{"snapshots", "--json"}
	if len(tags) > 0 {
		args = append(args, "--tag", strings.Join(tags, ","))
	}
	stdout, err := s.exec(ctx, "snapshots", shortOpTimeout, args...)
	if err != nil {
		return nil, err
	}
	var snaps []Snapshot
	if err := json.Unmarshal([]byte(stdout), &snaps); err != nil {
		return nil, fmt.Errorf("restic snapshots: parse json: %w", err)
	}
	sort.Slice(snaps, func(i, j int) bool { return snaps[i].Time.Before(snaps[j].Time) })
	return snaps, nil
}

// ParseBackupSummary extracts the final summary message from a backup's JSON
// output stream. Returns false when no summary line is present.
func ParseBackupSummary(stdout string) (BackupStats, bool) {
	var (
		stats BackupStats
		found bool
	)
	scanner := bufio.NewScanner(strings.NewReader(stdout))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if !bytes.Contains(line, []byte(`"message_type":"summary"`)) {
			continue
		}
		var parsed BackupStats
		if err := json.Unmarshal(line, &parsed); err == nil {
			stats = parsed
			found = true
		}
	}
	return stats, found
}
