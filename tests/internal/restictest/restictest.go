//go:build integration

// Package restictest provisions throwaway restic repositories for the
// integration suite.
package restictest

import (
	"context"
	"encoding/json"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"volume-backup/src/restic"
)

// TestPassword protects every repository created by this package.
const TestPassword = "volume-backup-itest"

// RequireBinary skips nothing: a missing or outdated restic binary fails the
// test, since the suite is only run on hosts expected to have one.
func RequireBinary(t testing.TB) restic.BinaryInfo {
	t.Helper()
	info, err := restic.Detect(context.Background(), "restic")
	if err != nil {
		t.Fatalf("restic detection failed: %v", err)
	}
	if !restic.IsCompatible(info.Version) {
		t.Fatalf("restic version %s is below required %s", info.Version, restic.RequiredVersion)
	}
	return info
}

// InitRepo creates a fresh repository under dir (usually t.TempDir()) and
// returns its path.
func InitRepo(t testing.TB, dir string) string {
	t.Helper()
	RequireBinary(t)
	repo := filepath.Join(dir, "repo")
	if err := os.MkdirAll(repo, 0o755); err != nil {
		t.Fatalf("mkdir restic repo: %v", err)
	}
	if out, err := Command(repo, "restic", "init").CombinedOutput(); err != nil {
		t.Fatalf("restic init failed: %v\n%s", err, out)
	}
	return repo
}

// Command builds an exec.Cmd carrying the repository and password environment.
func Command(repo string, name string, args ...string) *exec.Cmd {
	cmd := exec.Command(name, args...)
	cmd.Env = append(os.Environ(),
		"RESTIC_PASSWORD="+TestPassword,
		"RESTIC_REPOSITORY="+repo,
	)
	return cmd
}

// SnapshotCount asks the engine directly how many snapshots the repository
// holds, bypassing the code under test.
func SnapshotCount(t testing.TB, repo string) int {
	t.Helper()
	out, err := Command(repo, "restic", "snapshots", "--json").Output()
	if err != nil {
		t.Fatalf("restic snapshots failed: %v", err)
	}
	var snaps []json.RawMessage
	if err := json.Unmarshal(out, &snaps); err != nil {
		t.Fatalf("parse snapshots json: %v", err)
	}
	return len(snaps)
}
