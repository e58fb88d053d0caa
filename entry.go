// entry.go – one tracked file and its canonical rendering
package githash

import "strconv"

// File-mode bits as git records them, in octal.
//
// The index stores the full st_mode word, but only the object-type nibble
// and the two permission variants below ever survive into a rendered entry.
const (
	ModeRegular    = 0o100644 // regular, non-executable file
	ModeExecutable = 0o100755 // regular file with any exec bit set
	ModeSymlink    = 0o120000 // symbolic link; the blob holds the target
	ModeGitlink    = 0o160000 // commit reference (submodule); no blob exists
	ModeDir        = 0o040000 // directory; never stored as its own entry

	typeMask = 0o170000 // object-type nibble of a mode word
)

// Entry is one tracked file at one synchronization point: its cleaned file
// mode, the content address of its blob, and its repository-relative path.
//
// Entries are immutable once read out of a snapshot. For symbolic links the
// content address covers the link target string; for gitlinks it is the
// referenced commit and no blob object exists for it.
type Entry struct {
	// Mode is the file mode with cleanupMode already applied, so it is one
	// of ModeRegular, ModeExecutable, ModeSymlink, ModeGitlink or ModeDir.
	Mode uint32

	// OID is the 20-byte content address of the entry's blob.
	OID Hash

	// Path is the normalized repository-relative path, using forward
	// slashes regardless of platform.
	Path string
}

// cleanupMode collapses a raw st_mode word into the canonical value git
// would record in a tree: symlinks, directories and gitlinks keep their type
// bits with zero permissions, and everything else becomes a regular file
// whose only surviving permission distinction is executability. Any of the
// three exec bits marks the file executable.
func cleanupMode(mode uint32) uint32 {
	switch mode & typeMask {
	case ModeSymlink:
		return ModeSymlink
	case ModeDir:
		return ModeDir
	case ModeGitlink:
		return ModeGitlink
	}
	if mode&0o111 != 0 {
		return ModeExecutable
	}
	return ModeRegular
}

// Render returns the canonical byte rendering of e:
//
//	<mode as minimal octal> <content address as lowercase hex> 0\t<path>
//
// The layout matches one record of `git ls-files --stage`, which keeps the
// rendering stable across implementations and lets it be checked against
// git's own output. Mode, address and path are treated purely as byte
// sequences; no platform text encoding is involved.
func (e Entry) Render() []byte {
	return e.appendRender(make([]byte, 0, 50+len(e.Path)))
}

// appendRender appends the canonical rendering of e to buf and returns the
// extended slice. It is the allocation-conscious form of Render used when
// building whole-subtree listings.
func (e Entry) appendRender(buf []byte) []byte {
	buf = strconv.AppendUint(buf, uint64(e.Mode), 8)
	buf = append(buf, ' ')
	const hexdigits = "0123456789abcdef"
	for _, b := range e.OID {
		buf = append(buf, hexdigits[b>>4], hexdigits[b&0x0f])
	}
	buf = append(buf, ' ', '0', '\t')
	return append(buf, e.Path...)
}
