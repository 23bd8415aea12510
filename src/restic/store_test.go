package restic

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"volume-backup/src/logging"
)

type recordedCall struct {
	bin  string
	env  []string
	args []string
}

func newTestStore(opts Options, runner runnerFunc) (*Store, *[]recordedCall) {
	logger, _ := logging.NewDebugLogger()
	store := NewStore(BinaryInfo{Path: "/usr/bin/restic", Version: "0.18.0"}, opts, logger)
	calls := &[]recordedCall{}
	store.run = func(ctx context.Context, bin string, env []string, args []string) (string, string, error) {
		*calls = append(*calls, recordedCall{bin: bin, env: env, args: args})
		return runner(ctx, bin, env, args)
	}
	return store, calls
}

func okRunner(stdout string) runnerFunc {
	return func(context.Context, string, []string, []string) (string, string, error) {
		return stdout, "", nil
	}
}

func failRunner(stderr string) runnerFunc {
	return func(context.Context, string, []string, []string) (string, string, error) {
		return "", stderr, errors.New("exit status 1")
	}
}

func TestBackupArgs(t *testing.T) {
	opts := Options{
		Env:            []string{"RESTIC_REPOSITORY=/srv/backup"},
		CacheDir:       "/var/cache/restic",
		UploadLimitKiB: 2048,
		OneFileSystem:  true,
	}
	store, calls := newTestStore(opts, okRunner(""))

	_, err := store.Backup(context.Background(),
		[]string{"/var/lib/docker/volumes/vw_data/_data"},
		[]string{"project=vaultwarden", "host=alpha"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(*calls) != 1 {
		t.Fatalf("expected one engine call, got %d", len(*calls))
	}
	call := (*calls)[0]
	if call.bin != "/usr/bin/restic" {
		t.Fatalf("unexpected binary: %q", call.bin)
	}
	want := "--cache-dir /var/cache/restic backup --json " +
		"--tag project=vaultwarden --tag host=alpha " +
		"--limit-upload 2048 --one-file-system " +
		"/var/lib/docker/volumes/vw_data/_data"
	if got := strings.Join(call.args, " "); got != want {
		t.Fatalf("args mismatch:\n got %q\nwant %q", got, want)
	}
	if len(call.env) != 1 || call.env[0] != "RESTIC_REPOSITORY=/srv/backup" {
		t.Fatalf("env not passed through: %v", call.env)
	}
}

func TestBackupParsesSummary(t *testing.T) {
	stdout := `{"message_type":"status","percent_done":0.5}
{"message_type":"summary","files_new":3,"files_changed":1,"files_unmodified":40,"data_added":1048576,"total_files_processed":44,"total_bytes_processed":52428800,"total_duration":2.5,"snapshot_id":"abc123"}
`
	store, _ := newTestStore(Options{}, okRunner(stdout))

	stats, err := store.Backup(context.Background(), []string{"/data"}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stats.SnapshotID != "abc123" {
		t.Fatalf("expected snapshot id abc123, got %q", stats.SnapshotID)
	}
	if stats.FilesNew != 3 || stats.DataAdded != 1048576 {
		t.Fatalf("summary not parsed: %+v", stats)
	}
	if !strings.Contains(stats.String(), "44 files") {
		t.Fatalf("unexpected stats string: %q", stats.String())
	}
}

func TestBackupTimeoutIsTyped(t *testing.T) {
	opts := Options{BackupTimeout: 10 * time.Millisecond}
	store, _ := newTestStore(opts, func(ctx context.Context, _ string, _ []string, _ []string) (string, string, error) {
		<-ctx.Done()
		return "", "", ctx.Err()
	})

	_, err := store.Backup(context.Background(), []string{"/data"}, nil)
	var timeoutErr *TimeoutError
	if !errors.As(err, &timeoutErr) {
		t.Fatalf("expected TimeoutError, got %T: %v", err, err)
	}
	if timeoutErr.Op != "backup" {
		t.Fatalf("unexpected op: %q", timeoutErr.Op)
	}
}

func TestBackupCanceledRunIsNotATimeout(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	store, _ := newTestStore(Options{}, func(opCtx context.Context, _ string, _ []string, _ []string) (string, string, error) {
		cancel()
		<-opCtx.Done()
		return "", "", opCtx.Err()
	})

	_, err := store.Backup(ctx, []string{"/data"}, nil)
	if err == nil {
		t.Fatal("expected error")
	}
	var timeoutErr *TimeoutError
	if errors.As(err, &timeoutErr) {
		t.Fatalf("cancellation misreported as timeout: %v", err)
	}
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected wrapped context.Canceled, got %v", err)
	}
}

func TestBackupLockedRepositoryIsBusy(t *testing.T) {
	stderr := "unable to create lock in backend:\nrepository is already locked by PID 4242 on otherhost"
	store, _ := newTestStore(Options{}, failRunner(stderr))

	_, err := store.Backup(context.Background(), []string{"/data"}, nil)
	var busyErr *BusyError
	if !errors.As(err, &busyErr) {
		t.Fatalf("expected BusyError, got %T: %v", err, err)
	}
	if !strings.Contains(busyErr.Detail, "PID 4242") {
		t.Fatalf("detail should carry the lock holder: %q", busyErr.Detail)
	}
}

func TestForgetArgs(t *testing.T) {
	store, calls := newTestStore(Options{}, okRunner(""))

	policy := RetentionPolicy{KeepDaily: 7, KeepWeekly: 5, KeepMonthly: 12}
	err := store.Forget(context.Background(), []string{"project=gitea", "host=alpha"}, policy, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := "forget --tag project=gitea,host=alpha --keep-daily 7 --keep-weekly 5 --keep-monthly 12 --prune"
	if got := strings.Join((*calls)[0].args, " "); got != want {
		t.Fatalf("args mismatch:\n got %q\nwant %q", got, want)
	}
}

func TestUnlockArgs(t *testing.T) {
	store, calls := newTestStore(Options{}, okRunner(""))

	if err := store.Unlock(context.Background(), false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := store.Unlock(context.Background(), true); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := strings.Join((*calls)[0].args, " "); got != "unlock" {
		t.Fatalf("unexpected args: %q", got)
	}
	if got := strings.Join((*calls)[1].args, " "); got != "unlock --remove-all" {
		t.Fatalf("unexpected args: %q", got)
	}
}

func TestRepositoryID(t *testing.T) {
	store, _ := newTestStore(Options{}, okRunner(`{"version":2,"id":"deadbeef01"}`))

	id, err := store.RepositoryID(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id != "deadbeef01" {
		t.Fatalf("unexpected id %q", id)
	}
}

func TestEnsureInitializedRunsInitOnMissingRepository(t *testing.T) {
	probeFailed := false
	store, calls := newTestStore(Options{}, func(_ context.Context, _ string, _ []string, args []string) (string, string, error) {
		if !probeFailed {
			probeFailed = true
			return "", "Fatal: unable to open config file: stat /srv/backup/config: no such file or directory\nIs there a repository at the following location?\n/srv/backup", errors.New("exit status 1")
		}
		return "", "", nil
	})

	if err := store.EnsureInitialized(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(*calls) != 2 {
		t.Fatalf("expected probe then init, got %d calls", len(*calls))
	}
	if got := strings.Join((*calls)[1].args, " "); got != "init" {
		t.Fatalf("second call should be init, got %q", got)
	}
}

func TestEnsureInitializedNoopWhenRepositoryExists(t *testing.T) {
	store, calls := newTestStore(Options{}, okRunner(`{"id":"deadbeef01"}`))

	if err := store.EnsureInitialized(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(*calls) != 1 {
		t.Fatalf("expected a single probe call, got %d", len(*calls))
	}
}

func TestEnsureInitializedOtherFailureIsFatal(t *testing.T) {
	store, calls := newTestStore(Options{}, failRunner("Fatal: wrong password or no key found"))

	err := store.EnsureInitialized(context.Background())
	if err == nil {
		t.Fatal("expected error")
	}
	if len(*calls) != 1 {
		t.Fatalf("must not attempt init after a credential failure, got %d calls", len(*calls))
	}
	if !strings.Contains(err.Error(), "wrong password") {
		t.Fatalf("error should carry engine stderr: %v", err)
	}
}

func TestSnapshotsSortedOldestFirst(t *testing.T) {
	stdout := `[
  {"id":"bbb","short_id":"bbb","time":"2026-02-01T03:00:00Z","hostname":"alpha","tags":["project=gitea","host=alpha"],"paths":["/data"]},
  {"id":"aaa","short_id":"aaa","time":"2026-01-01T03:00:00Z","hostname":"alpha","tags":["project=gitea","host=alpha"],"paths":["/data"]}
]`
	store, calls := newTestStore(Options{}, okRunner(stdout))

	snaps, err := store.Snapshots(context.Background(), []string{"project=gitea"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := strings.Join((*calls)[0].args, " "); got != "snapshots --json --tag project=gitea" {
		t.Fatalf("unexpected args: %q", got)
	}
	if len(snaps) != 2 || snaps[0].ID != "aaa" || snaps[1].ID != "bbb" {
		t.Fatalf("snapshots not sorted oldest first: %+v", snaps)
	}
	tags := snaps[0].TagMap()
	if tags["project"] != "gitea" || tags["host"] != "alpha" {
		t.Fatalf("unexpected tag map: %v", tags)
	}
}

func TestParseBackupSummaryAbsent(t *testing.T) {
	if _, found := ParseBackupSummary(`{"message_type":"status","percent_done":1}`); found {
		t.Fatal("no summary line should report found=false")
	}
}
