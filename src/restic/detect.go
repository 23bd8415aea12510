package restic

import (
	"bufio"
	"context"
	"fmt"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// RequiredVersion is the oldest restic release we support: key=value tag
// filtering plus the JSON backup summary we parse both exist from here on.
const RequiredVersion = "0.14.0"

// BinaryInfo describes the resolved engine binary.
type BinaryInfo struct {
	Path    string
	Version string
}

var versionRegexp = regexp.MustCompile(`restic\s+([0-9]+\.[0-9]+\.[0-9]+(?:-[A-Za-z0-9.]+)?)`)

// Detect resolves the configured engine binary (a bare name is looked up on
// PATH) and queries its version. A missing binary is a NotFoundError, which
// callers treat as fatal.
func Detect(ctx context.Context, binary string) (BinaryInfo, error) {
	if binary == "" {
		binary = "restic"
	}
	exe, err := exec.LookPath(binary)
	if err != nil {
		return BinaryInfo{}, &NotFoundError{What: "engine binary", Detail: binary}
	}
	ver, err := queryVersion(ctx, exe)
	if err != nil {
		return BinaryInfo{}, err
	}
	return BinaryInfo{Path: exe, Version: ver}, nil
}

// IsCompatible reports whether version satisfies RequiredVersion. Unparsable
// versions count as incompatible; callers only warn, never abort, on this.
func IsCompatible(version string) bool {
	return compareVersions(version, RequiredVersion) >= 0
}

func queryVersion(ctx context.Context, exe string) (string, error) {
	// The version probe must never hang a run.
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
	}

	out, err := exec.CommandContext(ctx, exe, "version").CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("restic version probe: %w", err)
	}
	version := scanVersion(string(out))
	if version == "" {
		return "", fmt.Errorf("restic version probe: no version in output %q", strings.TrimSpace(string(out)))
	}
	return version, nil
}

func scanVersion(output string) string {
	scanner := bufio.NewScanner(strings.NewReader(output))
	for scanner.Scan() {
		if m := versionRegexp.FindStringSubmatch(scanner.Text()); len(m) == 2 {
			return m[1]
		}
	}
	return ""
}

// compareVersions orders two x.y.z[-pre] strings; any unparsable input sorts
// lowest.
func compareVersions(a, b string) int {
	an, apre, aok := splitVersion(a)
	bn, bpre, bok := splitVersion(b)
	if !aok || !bok {
		switch {
		case aok:
			return 1
		case bok:
			return -1
		default:
			return 0
		}
	}
	for i := 0; i < 3; i++ {
		if an[i] != bn[i] {
			return an[i] - bn[i]
		}
	}
	// A pre-release sorts before its release.
	switch {
	case apre == bpre:
		return 0
	case apre == "":
		return 1
	case bpre == "":
		return -1
	default:
		return strings.Compare(apre, bpre)
	}
}

func splitVersion(s string) (nums [3]int, pre string, ok bool) {
	core, rest, found := strings.Cut(strings.TrimSpace(s), "-")
	if found {
		pre = rest
	}
	parts := strings.Split(core, ".")
	if len(parts) != 3 {
		return nums, "", false
	}
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			return nums, "", false
		}
		nums[i] = n
	}
	return nums, pre, true
}
