//go:build integration

package integration

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	restictest "volume-backup/tests/internal/restictest"
)

// Two runs on the same day produce two snapshots; the retention step keeps
// only the newest one per day, so a single snapshot must remain.
func TestRunTwiceAppliesRetention(t *testing.T) {
	if os.Getenv("VOLUME_BACKUP_TESTS") != "1" {
		t.Skip("VOLUME_BACKUP_TESTS=1 not set")
	}

	repo := restictest.InitRepo(t, t.TempDir())
	root := t.TempDir()
	makeItestVolume(t, root, "gitea_data", "first")
	cfgPath := writeItestConfig(t, repo, root, `  gitea:
    - gitea_data
`)

	execCLI(t, "run", "-c", cfgPath)

	// Change the payload so the second run writes a distinct snapshot.
	marker := filepath.Join(root, "gitea_data", "_data", "marker.txt")
	if err := os.WriteFile(marker, []byte("second\n"), 0o644); err != nil {
		t.Fatalf("rewrite marker: %v", err)
	}

	execCLI(t, "run", "-c", cfgPath)

	if got := restictest.SnapshotCount(t, repo); got != 1 {
		t.Fatalf("expected one snapshot after same-day retention, got %d", got)
	}
	listing := execCLI(t, "snapshots", "-c", cfgPath)
	if !strings.Contains(listing, "gitea") {
		t.Fatalf("surviving snapshot missing from listing:\n%s", listing)
	}
}
