//go:build integration

package integration

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"volume-backup/src/cli"
	restictest "volume-backup/tests/internal/restictest"
)

// End-to-end: back up two projects into a real repository, then list the
// snapshots through the CLI.
func TestRunBackupEndToEnd(t *testing.T) {
	if os.Getenv("VOLUME_BACKUP_TESTS") != "1" {
		t.Skip("VOLUME_BACKUP_TESTS=1 not set")
	}

	repo := restictest.InitRepo(t, t.TempDir())
	root := t.TempDir()
	makeItestVolume(t, root, "gitea_data", "gitea-ok")
	makeItestVolume(t, root, "vw_data", "vw-ok")
	cfgPath := writeItestConfig(t, repo, root, `  gitea:
    - gitea_data
  vaultwarden:
    - vw_data
`)

	out := execCLI(t, "run", "-c", cfgPath)
	for _, want := range []string{"gitea", "vaultwarden", "ok"} {
		if !strings.Contains(out, want) {
			t.Fatalf("run summary missing %q; got: %s", want, out)
		}
	}

	listing := execCLI(t, "snapshots", "-c", cfgPath)
	for _, want := range []string{
		"gitea",
		"vaultwarden",
		"itest-alpha",
		filepath.Join(root, "gitea_data", "_data"),
	} {
		if !strings.Contains(listing, want) {
			t.Fatalf("snapshot listing missing %q; got: %s", want, listing)
		}
	}
}

func writeItestConfig(t *testing.T, repo, volumeRoot, projects string) string {
	t.Helper()
	doc := fmt.Sprintf(`host: itest-alpha
repository: %s
password: %s
volume_root: %s
lock_dir: %s
settle_delay: 1ms
restic:
  cache_dir: %s
projects:
%s`, repo, restictest.TestPassword, volumeRoot, t.TempDir(), t.TempDir(), projects)
	path := filepath.Join(t.TempDir(), "config.yml")
	if err := os.WriteFile(path, []byte(doc), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func makeItestVolume(t *testing.T, root, name, marker string) {
	t.Helper()
	dir := filepath.Join(root, name, "_data")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir volume: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "marker.txt"), []byte(marker+"\n"), 0o644); err != nil {
		t.Fatalf("write marker: %v", err)
	}
}

func execCLI(t *testing.T, args ...string) string {
	t.Helper()
	var out, errBuf bytes.Buffer
	cmd := cli.NewRootCmd(&out, &errBuf)
	cmd.SetArgs(args)
	if _, err := cmd.ExecuteC(); err != nil {
		t.Fatalf("%v failed: %v; stderr=%s", args, err, errBuf.String())
	}
	return out.String()
}
