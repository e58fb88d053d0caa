// snapshot.go – the sorted path→entry view of one synchronization
package githash

import (
	"slices"
	"strings"

	"github.com/dgryski/go-farm"
)

// If a snapshot has more than this many entries we also build a
// fingerprint→position map for O(1) exact-path lookups.
const lookupThreshold = 256

// Snapshot is an immutable, ordered view of every tracked file at one
// synchronization point.
//
// Entries are kept in strictly ascending byte-lexicographic order of their
// paths, exactly as the index file records them. That ordering is what makes
// the subtree range query correct: all paths sharing a prefix form one
// contiguous run. A Snapshot is rebuilt wholesale on every synchronization
// and must be treated as read-only in between.
type Snapshot struct {
	// entries holds every tracked file in ascending path order. The slice
	// must remain unmodified after construction to preserve the ordering
	// invariant the range search depends on.
	entries []Entry

	// byPath accelerates exact-path lookups for large snapshots by mapping
	// a 64-bit fingerprint of the path to its position in entries. It is
	// nil for snapshots below lookupThreshold and when a fingerprint
	// collision was detected at build time, in which case lookups fall
	// back to binary search.
	byPath map[uint64]int
}

// newSnapshot wraps the already-sorted entries in a Snapshot.
//
// The entries must arrive in the index file's own order; they are not
// re-sorted here. For snapshots above lookupThreshold an auxiliary
// fingerprint table is built. A collision between two path fingerprints
// discards the table for the whole snapshot rather than risking a wrong
// answer; the sorted slice remains authoritative either way.
func newSnapshot(entries []Entry) *Snapshot {
	s := &Snapshot{entries: entries}
	if len(entries) <= lookupThreshold {
		return s
	}
	m := make(map[uint64]int, len(entries))
	for i, e := range entries {
		key := farm.Fingerprint64([]byte(e.Path))
		if _, dup := m[key]; dup {
			return s // collision: binary search only
		}
		m[key] = i
	}
	s.byPath = m
	return s
}

// Len returns the number of entries in the snapshot.
func (s *Snapshot) Len() int { return len(s.entries) }

// Entries returns the snapshot's full entry slice in path order. Callers
// must not modify the returned slice.
func (s *Snapshot) Entries() []Entry { return s.entries }

// lookup returns the entry stored under the exact path and whether it was
// found. Directories are never stored, so a directory path reports false.
func (s *Snapshot) lookup(path string) (Entry, bool) {
	if s.byPath != nil {
		if i, ok := s.byPath[farm.Fingerprint64([]byte(path))]; ok {
			// Fingerprints are not proof; confirm the path itself.
			if e := s.entries[i]; e.Path == path {
				return e, true
			}
		}
		return Entry{}, false
	}
	i, ok := slices.BinarySearchFunc(s.entries, path, compareEntryPath)
	if ok {
		return s.entries[i], true
	}
	return Entry{}, false
}

// compareEntryPath orders an entry against a bare path string; it is the
// comparison function shared by the exact lookup and the range search.
func compareEntryPath(e Entry, path string) int {
	return strings.Compare(e.Path, path)
}

// subtree returns all entries whose path lies under prefix, in path order.
//
// The prefix must already be normalized: either empty, meaning the whole
// snapshot, or a directory path ending in "/". A lower-bound binary search
// finds the first path >= prefix; because the entries are sorted, every
// path sharing the prefix follows contiguously from there, so the forward
// scan stops at the first non-match without ever re-examining the rest of
// the slice.
func (s *Snapshot) subtree(prefix string) []Entry {
	if prefix == "" {
		return s.entries
	}
	lo, _ := slices.BinarySearchFunc(s.entries, prefix, compareEntryPath)
	hi := lo
	for hi < len(s.entries) && strings.HasPrefix(s.entries[hi].Path, prefix) {
		hi++
	}
	return s.entries[lo:hi]
}

// listing renders every entry under prefix, joined with a single newline
// between records. It returns nil when the subtree is empty.
func (s *Snapshot) listing(prefix string) []byte {
	sub := s.subtree(prefix)
	if len(sub) == 0 {
		return nil
	}
	size := len(sub) - 1 // newline separators
	for _, e := range sub {
		size += 50 + len(e.Path) // mode, object ID, stage, separators
	}
	buf := make([]byte, 0, size)
	for i, e := range sub {
		if i > 0 {
			buf = append(buf, '\n')
		}
		buf = e.appendRender(buf)
	}
	return buf
}
