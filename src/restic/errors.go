package restic

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// NotFoundError means the engine binary or the repository itself is missing.
// The orchestrator treats this as fatal for the whole run.
type NotFoundError struct {
	What   string
	Detail string
}

func (e *NotFoundError) Error() string {
	if e.Detail == "" {
		return e.What + " not found"
	}
	return e.What + " not found: " + e.Detail
}

// TimeoutError means an operation exceeded its wall-clock budget and the
// engine subprocess was killed. Per-project failure, never fatal.
type TimeoutError struct {
	Op     string
	Budget time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("restic %s: timed out after %s", e.Op, e.Budget)
}

// BusyError means the store-side lock is held, typically by a crashed prior
// run or another host. The caller retries an unlock once and then records a
// per-project failure.
type BusyError struct {
	Op     string
	Detail string
}

func (e *BusyError) Error() string {
	return fmt.Sprintf("restic %s: repository is locked: %s", e.Op, e.Detail)
}

// OpError is any other non-zero engine exit.
type OpError struct {
	Op       string
	ExitCode int
	Stderr   string
}

func (e *OpError) Error() string {
	return fmt.Sprintf("restic %s: exit %d: %s", e.Op, e.ExitCode, e.Stderr)
}

// classify maps a raw subprocess error onto the client error taxonomy.
// opCtx is the per-operation (budgeted) context, parent the caller's.
func classify(op string, budget time.Duration, opCtx, parent context.Context, err error, stderr string) error {
	if err == nil {
		return nil
	}
	if parent.Err() != nil {
		// The run itself was canceled; don't dress it up as a timeout.
		return fmt.Errorf("restic %s: %w", op, parent.Err())
	}
	if errors.Is(opCtx.Err(), context.DeadlineExceeded) {
		return &TimeoutError{Op: op, Budget: budget}
	}

	var execErr *exec.Error
	if errors.As(err, &execErr) && errors.Is(execErr.Err, exec.ErrNotFound) {
		return &NotFoundError{What: "engine binary", Detail: execErr.Name}
	}

	tail := stderrTail(stderr)
	if isLocked(stderr) {
		return &BusyError{Op: op, Detail: tail}
	}

	code := -1
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		code = exitErr.ExitCode()
	}
	if tail == "" {
		tail = err.Error()
	}
	return &OpError{Op: op, ExitCode: code, Stderr: tail}
}

func isNotRepository(stderr string) bool {
	s := strings.ToLower(stderr)
	return strings.Contains(s, "is not a repository") ||
		strings.Contains(s, "does not look like a restic repository") ||
		strings.Contains(s, "repository does not exist") ||
		strings.Contains(s, "unable to open config file")
}

func isLocked(stderr string) bool {
	s := strings.ToLower(stderr)
	return strings.Contains(s, "repository is already locked") ||
		strings.Contains(s, "unable to create lock")
}

// stderrTail keeps error messages bounded: the last few lines of engine
// stderr, which is where restic puts the actual failure reason.
func stderrTail(stderr string) string {
	lines := strings.Split(strings.TrimSpace(stderr), "\n")
	if len(lines) > 3 {
		lines = lines[len(lines)-3:]
	}
	return strings.TrimSpace(strings.Join(lines, " / "))
}
