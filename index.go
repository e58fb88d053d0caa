// index.go – embedded parser for git's on-disk index format
//
// The staging invocation leaves its results in an index file ("DIRC"
// format, versions 2-4) inside the control directory. Rather than spawning
// a second git process to list it, the default engine memory-maps the file
// and decodes the entry table directly. Only the fields a snapshot needs
// survive decoding: mode, content address, and path. Stat metadata, which
// git keeps for its own change detection, is skipped over.
package githash

import (
	"bytes"
	"crypto/sha1"
	"encoding/binary"
	"fmt"
	"os"

	"golang.org/x/exp/mmap"
)

// Index file layout constants.
//
// These byte counts describe the fixed-width sections of an index file and
// are relied on by the offset arithmetic below. They change only if the
// on-disk format itself changes.
const (
	indexHeaderSize  = 12 // 4-byte magic + 4-byte version + 4-byte entry count
	indexEntryFixed  = 62 // stat data (40) + object ID (20) + flags (2)
	indexTrailerSize = 20 // SHA-1 over everything before it

	flagExtended = 0x4000 // entry carries two extra flag bytes (v3+)
	nameLenMask  = 0x0fff // low flag bits hold the path length, saturated
)

var indexMagic = []byte{'D', 'I', 'R', 'C'}

// readIndexFile memory-maps the index file at path and decodes its entry
// table into path order.
//
// A missing file is not an error: a staging run over a tree with nothing to
// track can leave no index behind, and the correct reading of that state is
// an empty snapshot. Every other irregularity, from a bad magic to a
// checksum mismatch, is reported as an error wrapping ErrCorruptIndex.
func readIndexFile(path string) ([]Entry, error) {
	r, err := mmap.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("mmap index: %w", err)
	}
	defer r.Close()

	if r.Len() == 0 {
		return nil, fmt.Errorf("%w: empty file", ErrCorruptIndex)
	}
	buf := make([]byte, r.Len())
	if _, err := r.ReadAt(buf, 0); err != nil {
		return nil, fmt.Errorf("read index: %w", err)
	}
	return parseIndex(buf)
}

// parseIndex decodes a complete index file image.
//
// The trailer checksum is verified before any entry is trusted, the entry
// table is decoded according to the file's declared version, and extension
// records after the table are skipped when optional and refused when not.
// Entries must arrive in ascending path order; a second entry for the same
// path (higher merge stages) replaces the first so that the resulting
// mapping is unique per path.
func parseIndex(buf []byte) ([]Entry, error) {
	if len(buf) < indexHeaderSize+indexTrailerSize {
		return nil, fmt.Errorf("%w: %d bytes is too short", ErrCorruptIndex, len(buf))
	}
	if !bytes.Equal(buf[0:4], indexMagic) {
		return nil, fmt.Errorf("%w: bad magic %q", ErrCorruptIndex, buf[0:4])
	}
	version := binary.BigEndian.Uint32(buf[4:8])
	if version < 2 || version > 4 {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrCorruptIndex, version)
	}
	count := binary.BigEndian.Uint32(buf[8:12])

	// Whole-file integrity first: the final 20 bytes are the SHA-1 of
	// everything before them.
	body, trailer := buf[:len(buf)-indexTrailerSize], buf[len(buf)-indexTrailerSize:]
	if sum := sha1.Sum(body); !bytes.Equal(sum[:], trailer) {
		return nil, fmt.Errorf("%w: checksum mismatch", ErrCorruptIndex)
	}

	// Guard against absurd entry counts before allocating. Every entry
	// occupies at least 32 bytes on disk in any version.
	if uint64(count) > uint64(len(body))/32+1 {
		return nil, fmt.Errorf("%w: claims %d entries in %d bytes", ErrCorruptIndex, count, len(body))
	}

	entries := make([]Entry, 0, count)
	pos := indexHeaderSize
	var prevPath []byte // v4 prefix compression state

	for i := uint32(0); i < count; i++ {
		if pos+indexEntryFixed > len(body) {
			return nil, fmt.Errorf("%w: entry %d truncated", ErrCorruptIndex, i)
		}
		fixed := body[pos:]
		mode := binary.BigEndian.Uint32(fixed[24:28])
		var oid Hash
		copy(oid[:], fixed[40:60])
		flags := binary.BigEndian.Uint16(fixed[60:62])

		fixedLen := indexEntryFixed
		if flags&flagExtended != 0 {
			if version == 2 {
				return nil, fmt.Errorf("%w: extended flags in a v2 entry", ErrCorruptIndex)
			}
			// Two additional flag bytes (skip-worktree and friends);
			// nothing in them affects the rendered entry.
			fixedLen += 2
		}
		if pos+fixedLen > len(body) {
			return nil, fmt.Errorf("%w: entry %d truncated", ErrCorruptIndex, i)
		}

		var path []byte
		var entryLen int
		if version == 4 {
			strip, n, err := readStripCount(body[pos+fixedLen:])
			if err != nil {
				return nil, fmt.Errorf("%w: entry %d: %v", ErrCorruptIndex, i, err)
			}
			if strip > len(prevPath) {
				return nil, fmt.Errorf("%w: entry %d strips %d of %d prefix bytes",
					ErrCorruptIndex, i, strip, len(prevPath))
			}
			rest := body[pos+fixedLen+n:]
			nul := bytes.IndexByte(rest, 0)
			if nul < 0 {
				return nil, fmt.Errorf("%w: entry %d path unterminated", ErrCorruptIndex, i)
			}
			path = make([]byte, 0, len(prevPath)-strip+nul)
			path = append(path, prevPath[:len(prevPath)-strip]...)
			path = append(path, rest[:nul]...)
			entryLen = fixedLen + n + nul + 1 // no padding in v4
		} else {
			nameLen := int(flags & nameLenMask)
			if nameLen == nameLenMask {
				// Path longer than the flag field can express; it is
				// NUL-terminated like any other, so scan for the end.
				rest := body[pos+fixedLen:]
				nul := bytes.IndexByte(rest, 0)
				if nul < 0 {
					return nil, fmt.Errorf("%w: entry %d path unterminated", ErrCorruptIndex, i)
				}
				nameLen = nul
			}
			if pos+fixedLen+nameLen > len(body) {
				return nil, fmt.Errorf("%w: entry %d truncated", ErrCorruptIndex, i)
			}
			path = body[pos+fixedLen : pos+fixedLen+nameLen]
			// Entries are NUL-padded so the next one starts on an
			// 8-byte boundary, with at least one NUL present.
			entryLen = (fixedLen + nameLen + 8) &^ 7
		}
		if pos+entryLen > len(body) {
			return nil, fmt.Errorf("%w: entry %d overruns the entry table", ErrCorruptIndex, i)
		}

		var err error
		entries, err = appendEntry(entries, Entry{
			Mode: cleanupMode(mode),
			OID:  oid,
			Path: string(path),
		})
		if err != nil {
			return nil, err
		}
		if version == 4 {
			prevPath = append(prevPath[:0], path...)
		}
		pos += entryLen
	}

	return entries, skipExtensions(body, pos)
}

// appendEntry adds e to the ordered entry slice, enforcing the ascending
// path order the on-disk format promises. A repeated path (merge stages of
// one file) keeps only the last occurrence, so the mapping stays unique.
func appendEntry(entries []Entry, e Entry) ([]Entry, error) {
	if n := len(entries); n > 0 {
		switch prev := entries[n-1].Path; {
		case prev == e.Path:
			entries[n-1] = e
			return entries, nil
		case prev > e.Path:
			return nil, fmt.Errorf("%w: %q listed after %q", ErrCorruptIndex, e.Path, prev)
		}
	}
	return append(entries, e), nil
}

// readStripCount decodes the variable-width "bytes to strip" integer that
// prefixes every v4 path. The encoding is the same offset encoding git uses
// elsewhere: seven value bits per byte, high bit as continuation, and an
// implicit +1 on every continuation step.
func readStripCount(buf []byte) (strip, n int, err error) {
	if len(buf) == 0 {
		return 0, 0, fmt.Errorf("missing strip count")
	}
	b := buf[0]
	n = 1
	v := int(b & 0x7f)
	for b&0x80 != 0 {
		if n >= len(buf) || n > 4 {
			return 0, 0, fmt.Errorf("bad strip count")
		}
		b = buf[n]
		n++
		v = ((v + 1) << 7) | int(b&0x7f)
	}
	return v, n, nil
}

// skipExtensions walks the extension records that sit between the entry
// table and the trailer. Extensions whose signature starts with an
// uppercase letter (cache trees, resolve-undo, end-of-index markers) are
// optional and skipped; any other signature marks data the file cannot be
// understood without, so it is refused rather than silently dropped.
func skipExtensions(body []byte, pos int) error {
	for pos < len(body) {
		if pos+8 > len(body) {
			return fmt.Errorf("%w: truncated extension header", ErrCorruptIndex)
		}
		sig := body[pos : pos+4]
		size := binary.BigEndian.Uint32(body[pos+4 : pos+8])
		if sig[0] < 'A' || sig[0] > 'Z' {
			return fmt.Errorf("%w: mandatory extension %q not supported", ErrCorruptIndex, sig)
		}
		pos += 8 + int(size)
		if pos > len(body) {
			return fmt.Errorf("%w: extension %q overruns the file", ErrCorruptIndex, sig)
		}
	}
	return nil
}
