//go:build integration

package integration

import (
	"os"
	"strings"
	"testing"

	restictest "volume-backup/tests/internal/restictest"
)

func TestUnlockClearsRepositoryLocks(t *testing.T) {
	if os.Getenv("VOLUME_BACKUP_TESTS") != "1" {
		t.Skip("VOLUME_BACKUP_TESTS=1 not set")
	}

	repo := restictest.InitRepo(t, t.TempDir())
	cfgPath := writeItestConfig(t, repo, t.TempDir(), `  gitea:
    - gitea_data
`)

	out := execCLI(t, "unlock", "-c", cfgPath)
	if !strings.Contains(out, "Repository locks cleared.") {
		t.Fatalf("missing confirmation; got: %s", out)
	}

	out = execCLI(t, "unlock", "--remove-all", "--yes", "-c", cfgPath)
	if !strings.Contains(out, "Repository locks cleared.") {
		t.Fatalf("missing confirmation for remove-all; got: %s", out)
	}
}
