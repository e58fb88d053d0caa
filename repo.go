// Package githash derives deterministic, content-addressed fingerprints
// for files and directory trees by borrowing git's own hashing machinery.
//
// A Repo wraps one directory, which does not need to be a git repository.
// Synchronize runs "git add -A" with the repository, index and object
// store all redirected into a private control directory, so the tracked
// tree is staged without consulting or touching any enclosing repository.
// The resulting index becomes an immutable, sorted snapshot that answers
// path and prefix queries, and a Hasher folds those answers into a single
// digest that is stable across machines for identical content.
//
// The work of hashing file contents, honoring ignore rules, and walking
// the tree belongs entirely to git. This package only orchestrates the
// invocation and reads the results back out.
package githash

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"
)

// DefaultControlDir is the directory created inside the tracked tree to
// hold the private index and object store. It is excluded from staging,
// so its presence never changes what gets fingerprinted.
const DefaultControlDir = ".githash"

// defaultListingCap bounds the rendered-listing cache when the caller does
// not size it explicitly.
const defaultListingCap = 128

// Repo tracks one directory and the snapshot produced by its most recent
// Synchronize.
//
// All query methods are safe for concurrent use with each other.
// Synchronize may run concurrently with queries; readers keep seeing the
// previous snapshot until the new one is swapped in whole.
type Repo struct {
	// dir is the absolute path of the tracked directory.
	dir string

	// dirPrefix is dir plus the path separator, precomputed for the
	// prefix strip in relPath.
	dirPrefix string

	// controlDir is the name of the metadata directory inside dir,
	// ".githash" unless overridden. It is excluded from staging.
	controlDir string

	// indexFile is the absolute path handed to git as GIT_INDEX_FILE.
	indexFile string

	// gitDir is the private repository directory handed to git as GIT_DIR.
	// Keeping it inside the control directory means an enclosing .git, if
	// any, is never consulted and never modified.
	gitDir string

	gitBin     string
	engine     Engine
	logger     *zap.Logger
	listingCap int

	objects *objectStore

	mu       sync.RWMutex
	snap     *Snapshot
	listings *lru.Cache[string, []byte]
}

// Option customizes a Repo at construction time.
type Option func(*Repo)

// WithEngine selects how staged entries are read back after a
// synchronization. The default is EngineIndex.
func WithEngine(e Engine) Option {
	return func(r *Repo) { r.engine = e }
}

// WithControlDir renames the metadata directory created inside the
// tracked tree. The name must be a single path element.
func WithControlDir(name string) Option {
	return func(r *Repo) { r.controlDir = name }
}

// WithGitBinary overrides the git executable to invoke. The default "git"
// resolves through PATH.
func WithGitBinary(path string) Option {
	return func(r *Repo) { r.gitBin = path }
}

// WithLogger attaches a logger for debug output. Passing nil keeps the
// default no-op logger.
func WithLogger(l *zap.Logger) Option {
	return func(r *Repo) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithListingCache sizes the cache of rendered listings. Zero or negative
// disables caching; listings are then rebuilt on every call.
func WithListingCache(n int) Option {
	return func(r *Repo) { r.listingCap = n }
}

// New prepares a Repo over the directory at dir. The directory must
// already exist; nothing inside it is created or modified until the first
// Synchronize.
func New(dir string, opts ...Option) (*Repo, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	fi, err := os.Stat(abs)
	if err != nil {
		return nil, err
	}
	if !fi.IsDir() {
		return nil, fmt.Errorf("%s: not a directory", abs)
	}

	r := &Repo{
		dir:        abs,
		dirPrefix:  abs + string(os.PathSeparator),
		controlDir: DefaultControlDir,
		gitBin:     "git",
		engine:     EngineIndex,
		logger:     zap.NewNop(),
		listingCap: defaultListingCap,
	}
	for _, opt := range opts {
		opt(r)
	}

	if r.controlDir == "" || r.controlDir == "." || r.controlDir == ".." ||
		strings.ContainsAny(r.controlDir, `/\`) {
		return nil, fmt.Errorf("control directory %q: must be a single path element", r.controlDir)
	}
	if r.gitBin == "" {
		return nil, errors.New("git binary must not be empty")
	}

	r.indexFile = filepath.Join(abs, r.controlDir, "index")
	r.gitDir = filepath.Join(abs, r.controlDir, "git")
	if r.objects, err = newObjectStore(filepath.Join(abs, r.controlDir, "objects")); err != nil {
		return nil, err
	}
	if r.listingCap > 0 {
		if r.listings, err = lru.New[string, []byte](r.listingCap); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Dir returns the absolute path of the tracked directory.
func (r *Repo) Dir() string { return r.dir }

// Len returns the number of entries in the current snapshot, zero before
// the first Synchronize.
func (r *Repo) Len() int { return r.snapshot().Len() }

// Entries returns every entry of the current snapshot in ascending path
// order. The slice aliases the snapshot; callers must treat it as
// read-only.
func (r *Repo) Entries() []Entry { return r.snapshot().Entries() }

// Synchronize stages the current state of the tracked directory and
// replaces the queryable snapshot with the result.
//
// The heavy lifting is one "git add -A" with GIT_DIR, GIT_INDEX_FILE and
// GIT_OBJECT_DIRECTORY all pointed into the control directory, and the
// control directory itself excluded from the pathspec. The first call
// bootstraps the private repository with "git init", so the tracked
// directory does not have to be a git repository itself. Ignore rules come
// only from .gitignore files inside the tree; the invoking user's global
// and system git config are never consulted. On any failure the previous
// snapshot stays in place.
func (r *Repo) Synchronize(ctx context.Context) error {
	start := time.Now()
	if err := os.MkdirAll(r.objects.dir, 0o755); err != nil {
		return err
	}
	if _, err := os.Stat(filepath.Join(r.gitDir, "HEAD")); os.IsNotExist(err) {
		if _, err := r.runGit(ctx, "init", "--quiet"); err != nil {
			return err
		}
	}
	if _, err := r.runGit(ctx, "add", "-A", "--", ".", ":(exclude)"+r.controlDir); err != nil {
		return err
	}
	entries, err := r.loadEntries(ctx)
	if err != nil {
		return err
	}
	snap := newSnapshot(entries)

	r.mu.Lock()
	r.snap = snap
	if r.listings != nil {
		r.listings.Purge()
	}
	r.mu.Unlock()

	r.logger.Debug("synchronized",
		zap.String("dir", r.dir),
		zap.Int("entries", snap.Len()),
		zap.Stringer("engine", r.engine),
		zap.Duration("elapsed", time.Since(start)))
	return nil
}

// runGit executes one git command in the tracked directory with the
// repository, index and object store all redirected into the control
// directory. It returns the command's stdout; a non-zero exit becomes an
// *ExecutionError carrying whatever git wrote to stderr.
func (r *Repo) runGit(ctx context.Context, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, r.gitBin, args...)
	cmd.Dir = r.dir
	cmd.Env = r.gitEnv()
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		exit := -1
		var xe *exec.ExitError
		if errors.As(err, &xe) {
			exit = xe.ExitCode()
		}
		return nil, &ExecutionError{
			Args:     append([]string{r.gitBin}, args...),
			ExitCode: exit,
			Stderr:   stderr.Bytes(),
			Err:      err,
		}
	}
	return stdout.Bytes(), nil
}

// gitEnv is the inherited environment with every git redirection variable
// replaced by our own and all config sources outside the tracked tree
// disabled. User and system config can rewrite ignore rules and content
// hashing (core.excludesFile, core.autocrlf), which would make snapshots
// depend on the invoking machine. The caller's values must be dropped
// rather than shadowed: with duplicates in the environment block, which
// one the child sees is anyone's guess.
func (r *Repo) gitEnv() []string {
	env := os.Environ()
	out := make([]string, 0, len(env)+6)
	for _, kv := range env {
		switch {
		case strings.HasPrefix(kv, "GIT_DIR="),
			strings.HasPrefix(kv, "GIT_WORK_TREE="),
			strings.HasPrefix(kv, "GIT_INDEX_FILE="),
			strings.HasPrefix(kv, "GIT_OBJECT_DIRECTORY="),
			strings.HasPrefix(kv, "GIT_CONFIG"):
			continue
		}
		out = append(out, kv)
	}
	return append(out,
		"GIT_DIR="+r.gitDir,
		"GIT_WORK_TREE="+r.dir,
		"GIT_INDEX_FILE="+r.indexFile,
		"GIT_OBJECT_DIRECTORY="+r.objects.dir,
		"GIT_CONFIG_GLOBAL="+os.DevNull,
		"GIT_CONFIG_NOSYSTEM=1",
	)
}

// snapshot returns the current snapshot, or an empty one when Synchronize
// has not run yet.
func (r *Repo) snapshot() *Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.snapshotLocked()
}

func (r *Repo) snapshotLocked() *Snapshot {
	if r.snap == nil {
		return emptySnapshot
	}
	return r.snap
}

var emptySnapshot = new(Snapshot)

// relPath maps a caller-supplied path onto the snapshot's key space:
// absolute paths under the tracked directory lose that prefix, everything
// else is taken as already relative, and separators become forward
// slashes.
func (r *Repo) relPath(path string) string {
	if path == r.dir {
		return ""
	}
	if p, ok := strings.CutPrefix(path, r.dirPrefix); ok {
		path = p
	}
	return filepath.ToSlash(path)
}

// asTreePrefix turns a relative path into the form the range scan expects:
// "" and "." select the whole tree, anything else gets a trailing slash so
// that "dir" cannot accidentally match "dir2/...".
func asTreePrefix(rel string) string {
	switch rel {
	case "", ".", "./":
		return ""
	}
	if strings.HasSuffix(rel, "/") {
		return rel
	}
	return rel + "/"
}

// File returns the staged entry for the file at path, as of the most
// recent Synchronize. Paths may be given absolute or relative to the
// tracked directory. A path that is not tracked fails with
// *NoSuchFileError.
func (r *Repo) File(path string) (Entry, error) {
	rel := r.relPath(path)
	e, ok := r.snapshot().lookup(rel)
	if !ok {
		return Entry{}, &NoSuchFileError{Path: rel}
	}
	return e, nil
}

// Tree returns the staged entries under the directory at prefix in
// ascending path order. An empty prefix selects the whole tree. The
// returned slice aliases the snapshot; callers must treat it as read-only.
//
// A prefix with no tracked files beneath it fails with *NoSuchFileError,
// the same way a missing file does.
func (r *Repo) Tree(prefix string) ([]Entry, error) {
	rel := r.relPath(prefix)
	sub := r.snapshot().subtree(asTreePrefix(rel))
	if len(sub) == 0 {
		return nil, &NoSuchFileError{Path: rel}
	}
	return sub, nil
}

// Listing renders the subtree at prefix into the canonical byte form, one
// entry per line, and caches the result until the next Synchronize. The
// returned slice is shared with the cache; callers must treat it as
// read-only.
func (r *Repo) Listing(prefix string) ([]byte, error) {
	rel := r.relPath(prefix)
	key := asTreePrefix(rel)

	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.listings != nil {
		if buf, ok := r.listings.Get(key); ok {
			return buf, nil
		}
	}
	buf := r.snapshotLocked().listing(key)
	if buf == nil {
		return nil, &NoSuchFileError{Path: rel}
	}
	if r.listings != nil {
		r.listings.Add(key, buf)
	}
	return buf, nil
}
