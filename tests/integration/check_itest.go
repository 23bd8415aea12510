//go:build integration

package integration

import (
	"os"
	"strings"
	"testing"

	restictest "volume-backup/tests/internal/restictest"
)

func TestCheckProbesRepositoryIdentity(t *testing.T) {
	if os.Getenv("VOLUME_BACKUP_TESTS") != "1" {
		t.Skip("VOLUME_BACKUP_TESTS=1 not set")
	}

	repo := restictest.InitRepo(t, t.TempDir())
	root := t.TempDir()
	makeItestVolume(t, root, "gitea_data", "check")
	cfgPath := writeItestConfig(t, repo, root, `  gitea:
    - gitea_data
`)

	out := execCLI(t, "check", "-c", cfgPath)
	if !strings.Contains(out, "Identity:") || strings.Contains(out, "unreachable") {
		t.Fatalf("expected a reachable repository identity; got: %s", out)
	}
	if !strings.Contains(out, "Engine:") {
		t.Fatalf("missing engine line; got: %s", out)
	}
}
