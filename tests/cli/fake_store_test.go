package cli_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"

	"volume-backup/src/cli"
	"volume-backup/src/restic"
)

// fakeStore is an in-memory cli.StoreClient. Behavior is scripted through
// the error fields; calls are recorded in Ops.
type fakeStore struct {
	RepoID       string
	RepoIDErr    error
	InitErr      error
	BackupErr    error
	ForgetErr    error
	UnlockErr    error
	SnapshotsErr error
	Snaps        []restic.Snapshot

	Ops          []string
	LastSnapTags []string
}

func (f *fakeStore) RepositoryID(context.Context) (string, error) {
	f.Ops = append(f.Ops, "id")
	return f.RepoID, f.RepoIDErr
}

func (f *fakeStore) EnsureInitialized(context.Context) error {
	f.Ops = append(f.Ops, "init")
	return f.InitErr
}

func (f *fakeStore) Backup(_ context.Context, paths []string, tags []string) (restic.BackupStats, error) {
	f.Ops = append(f.Ops, "backup "+strings.Join(tags, " "))
	if f.BackupErr != nil {
		return restic.BackupStats{}, f.BackupErr
	}
	return restic.BackupStats{SnapshotID: "abc123", TotalFilesProcessed: len(paths)}, nil
}

func (f *fakeStore) Forget(_ context.Context, tags []string, _ restic.RetentionPolicy, prune bool) error {
	op := "forget " + strings.Join(tags, " ")
	if prune {
		op += " prune"
	}
	f.Ops = append(f.Ops, op)
	return f.ForgetErr
}

func (f *fakeStore) Unlock(_ context.Context, removeAll bool) error {
	if removeAll {
		f.Ops = append(f.Ops, "unlock all")
	} else {
		f.Ops = append(f.Ops, "unlock")
	}
	return f.UnlockErr
}

func (f *fakeStore) Snapshots(_ context.Context, tags []string) ([]restic.Snapshot, error) {
	f.Ops = append(f.Ops, "snapshots")
	f.LastSnapTags = tags
	return f.Snaps, f.SnapshotsErr
}

// useFakeStore swaps detection and store construction for the duration of
// the test.
func useFakeStore(t *testing.T, store *fakeStore) {
	t.Helper()
	restoreDetect := cli.SetResticDetectorForTest(func(_ context.Context, binary string) (restic.BinaryInfo, error) {
		path := binary
		if path == "" {
			path = "restic"
		}
		return restic.BinaryInfo{Path: "/usr/bin/" + path, Version: "0.18.2"}, nil
	})
	restoreFactory := cli.SetStoreFactoryForTest(func(_ restic.BinaryInfo, _ restic.Options, _ *zap.SugaredLogger) cli.StoreClient {
		return store
	})
	t.Cleanup(restoreDetect)
	t.Cleanup(restoreFactory)
}

// writeConfig writes a config document into a temp dir and returns its path.
func writeConfig(t *testing.T, doc string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yml")
	if err := os.WriteFile(path, []byte(doc), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

// makeVolume creates <root>/<name>/_data and drops a marker file into it.
func makeVolume(t *testing.T, root, name string) {
	t.Helper()
	dir := filepath.Join(root, name, "_data")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir volume: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "marker.txt"), []byte("data\n"), 0o644); err != nil {
		t.Fatalf("write marker: %v", err)
	}
}
