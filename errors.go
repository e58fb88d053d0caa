package githash

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	// ErrCorruptIndex reports a malformed or truncated index file. The
	// wrapping error carries the offending offset or field.
	ErrCorruptIndex = errors.New("corrupt index file")

	// ErrCorruptObject reports a loose object whose header or payload does
	// not match its own framing.
	ErrCorruptObject = errors.New("corrupt loose object")

	// ErrTypeMismatch is returned when a loose object turns out to be of a
	// different kind than the caller asked for.
	ErrTypeMismatch = errors.New("unexpected object type")

	// ErrObjectNotFound is returned when no loose object exists for a
	// content address in the isolated object store.
	ErrObjectNotFound = errors.New("object not found")
)

// NoSuchFileError reports a query for a path or prefix that has no entry in
// the current snapshot. Directories are never keyed on their own, so looking
// up a directory path as a file also surfaces this error.
type NoSuchFileError struct {
	// Path is the path or prefix exactly as the caller supplied it.
	Path string
}

func (e *NoSuchFileError) Error() string {
	return "no such file: " + e.Path
}

// ExecutionError reports a git invocation that exited non-zero. The captured
// error stream is preserved verbatim so callers can surface git's own
// diagnostics.
type ExecutionError struct {
	// Args is the full argument vector of the failed invocation, including
	// the binary name.
	Args []string

	// ExitCode is the process exit status, or -1 when the process did not
	// run at all (for example when the binary was not found).
	ExitCode int

	// Stderr holds the captured error stream, untrimmed.
	Stderr []byte

	// Err is the underlying error from the exec layer.
	Err error
}

func (e *ExecutionError) Error() string {
	msg := fmt.Sprintf("%s: exit %d", strings.Join(e.Args, " "), e.ExitCode)
	if s := strings.TrimSpace(string(e.Stderr)); s != "" {
		msg += ": " + s
	}
	return msg
}

func (e *ExecutionError) Unwrap() error { return e.Err }

// VerifyError aggregates the entries that failed content verification.
// The error is non-fatal for the entries that passed; callers inspect
// Failed to decide what to do about the rest.
type VerifyError struct {
	// Failed maps each path whose loose object was missing, corrupt, or
	// mismatched to the error that was encountered.
	Failed map[string]error
}

func (e *VerifyError) Error() string {
	paths := make([]string, 0, len(e.Failed))
	for p := range e.Failed {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return fmt.Sprintf("verification failed for %d entries: %s",
		len(paths), strings.Join(paths, ", "))
}
