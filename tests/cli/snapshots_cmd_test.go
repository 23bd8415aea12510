package cli_test

import (
	"bytes"
	"reflect"
	"strings"
	"testing"
	"time"

	"volume-backup/src/cli"
	"volume-backup/src/restic"
)

func snapshotsTestStore() *fakeStore {
	return &fakeStore{
		Snaps: []restic.Snapshot{
			{
				ID:      "0123456789abcdef",
				ShortID: "01234567",
				Time:    time.Date(2026, 2, 3, 4, 5, 6, 0, time.UTC),
				Tags:    []string{"project=gitea", "host=alpha"},
				Paths:   []string{"/var/lib/docker/volumes/gitea_data/_data"},
			},
			{
				ID:       "fedcba9876543210",
				ShortID:  "fedcba98",
				Time:     time.Date(2026, 2, 4, 4, 5, 6, 0, time.UTC),
				Hostname: "beta",
				Tags:     []string{"project=vaultwarden"},
				Paths:    []string{"/var/lib/docker/volumes/vw_data/_data"},
			},
		},
	}
}

func TestSnapshots_FiltersByHostByDefault(t *testing.T) {
	store := snapshotsTestStore()
	useFakeStore(t, store)

	cfgPath := writeConfig(t, checkConfig(t.TempDir(), ""))

	var out, errBuf bytes.Buffer
	cmd := cli.NewRootCmd(&out, &errBuf)
	cmd.SetArgs([]string{"snapshots", "-c", cfgPath})

	if _, e := cmd.ExecuteC(); e != nil {
		t.Fatalf("unexpected error: %v", e)
	}
	if want := []string{"host=alpha"}; !reflect.DeepEqual(store.LastSnapTags, want) {
		t.Fatalf("tag filter mismatch\n got: %v\nwant: %v", store.LastSnapTags, want)
	}

	o := out.String()
	for _, want := range []string{
		"SNAPSHOT",
		"01234567",
		"2026-02-03 04:05:06",
		"gitea",
		"alpha",
	} {
		if !strings.Contains(o, want) {
			t.Fatalf("listing missing %q; got: %s", want, o)
		}
	}
	// The second snapshot has no host tag; the engine hostname fills in.
	if !strings.Contains(o, "beta") {
		t.Fatalf("listing missing hostname fallback; got: %s", o)
	}
}

func TestSnapshots_ProjectFlagNarrowsFilter(t *testing.T) {
	store := snapshotsTestStore()
	useFakeStore(t, store)

	cfgPath := writeConfig(t, checkConfig(t.TempDir(), ""))

	var out, errBuf bytes.Buffer
	cmd := cli.NewRootCmd(&out, &errBuf)
	cmd.SetArgs([]string{"snapshots", "-c", cfgPath, "--project", "gitea"})

	if _, e := cmd.ExecuteC(); e != nil {
		t.Fatalf("unexpected error: %v", e)
	}
	want := []string{"project=gitea", "host=alpha"}
	if !reflect.DeepEqual(store.LastSnapTags, want) {
		t.Fatalf("tag filter mismatch\n got: %v\nwant: %v", store.LastSnapTags, want)
	}
}

func TestSnapshots_AllHostsDropsHostFilter(t *testing.T) {
	store := snapshotsTestStore()
	useFakeStore(t, store)

	cfgPath := writeConfig(t, checkConfig(t.TempDir(), ""))

	var out, errBuf bytes.Buffer
	cmd := cli.NewRootCmd(&out, &errBuf)
	cmd.SetArgs([]string{"snapshots", "-c", cfgPath, "--all-hosts"})

	if _, e := cmd.ExecuteC(); e != nil {
		t.Fatalf("unexpected error: %v", e)
	}
	if len(store.LastSnapTags) != 0 {
		t.Fatalf("expected no tag filter; got: %v", store.LastSnapTags)
	}
}
