package githash

import (
	"bytes"
	"compress/zlib"
	"context"
	"crypto/sha1"
	"encoding/binary"
	"encoding/hex"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/require"
)

func mustHash(hexStr string) (h Hash) {
	b, err := hex.DecodeString(hexStr)
	if err != nil || len(b) != 20 {
		panic("bad test vector")
	}
	copy(h[:], b)
	return
}

// Content addresses of the payloads the fixtures use, as git computes them.
var (
	helloBlob  = mustHash("b6fc4c620b67d95f953a5c1c1230aaab5db5a1b0") // blob "hello"
	hello2Blob = mustHash("23294b0610492cf55c1c4835216f20d376a287dd") // blob "hello2"
)

func ent(mode uint32, oid Hash, path string) Entry {
	return Entry{Mode: mode, OID: oid, Path: path}
}

// requireGit skips the test when no git binary is available.
func requireGit(t testing.TB) {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not installed")
	}
}

// writeTestFile creates rel beneath dir with the given content and mode,
// creating parent directories as needed. Chmod runs separately so the
// process umask cannot strip mode bits.
func writeTestFile(t testing.TB, dir, rel, content string, mode os.FileMode) {
	t.Helper()
	full := filepath.Join(dir, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
	require.NoError(t, os.WriteFile(full, []byte(content), mode))
	require.NoError(t, os.Chmod(full, mode))
}

func writeTestLink(t testing.TB, dir, rel, target string) {
	t.Helper()
	full := filepath.Join(dir, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
	require.NoError(t, os.Symlink(target, full))
}

// newTestRepo writes files into a fresh temp directory, builds a Repo over
// it and synchronizes once.
func newTestRepo(t *testing.T, files map[string]string, opts ...Option) *Repo {
	t.Helper()
	requireGit(t)
	dir := t.TempDir()
	for rel, content := range files {
		writeTestFile(t, dir, rel, content, 0o644)
	}
	r, err := New(dir, opts...)
	require.NoError(t, err)
	require.NoError(t, r.Synchronize(context.Background()))
	return r
}

// snapRepo builds a Repo directly over pre-made entries, bypassing git
// entirely. Only the query and fingerprint paths work on it.
func snapRepo(entries ...Entry) *Repo {
	r := &Repo{
		dir:        "/snap",
		dirPrefix:  "/snap/",
		controlDir: DefaultControlDir,
	}
	r.snap = newSnapshot(entries)
	return r
}

// buildIndexData assembles an index file image for the given version.
// Entries must be supplied in ascending path order, modes already cleaned.
// When extended is set every entry carries the two extra flag bytes (only
// meaningful for v3). Extension blocks are appended verbatim before the
// trailer checksum.
func buildIndexData(t testing.TB, version uint32, entries []Entry, extended bool, exts ...[]byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	buf.WriteString("DIRC")
	require.NoError(t, binary.Write(&buf, binary.BigEndian, version))
	require.NoError(t, binary.Write(&buf, binary.BigEndian, uint32(len(entries))))

	prev := ""
	for _, e := range entries {
		var fixed [62]byte
		binary.BigEndian.PutUint32(fixed[24:28], e.Mode)
		copy(fixed[40:60], e.OID[:])
		nameLen := len(e.Path)
		if nameLen > nameLenMask {
			nameLen = nameLenMask
		}
		flags := uint16(nameLen)
		if extended {
			flags |= flagExtended
		}
		binary.BigEndian.PutUint16(fixed[60:62], flags)
		buf.Write(fixed[:])

		written := indexEntryFixed
		if extended {
			buf.Write([]byte{0, 0})
			written += 2
		}
		if version == 4 {
			common := 0
			for common < len(prev) && common < len(e.Path) && prev[common] == e.Path[common] {
				common++
			}
			buf.Write(stripVarint(len(prev) - common))
			buf.WriteString(e.Path[common:])
			buf.WriteByte(0)
			prev = e.Path
		} else {
			buf.WriteString(e.Path)
			written += len(e.Path)
			buf.Write(make([]byte, ((written+8)&^7)-written))
		}
	}
	for _, ext := range exts {
		buf.Write(ext)
	}
	sum := sha1.Sum(buf.Bytes())
	buf.Write(sum[:])
	return buf.Bytes()
}

// stripVarint encodes the v4 "bytes to strip" count in git's offset
// encoding, the inverse of readStripCount.
func stripVarint(v int) []byte {
	out := []byte{byte(v & 0x7f)}
	for v >>= 7; v > 0; v >>= 7 {
		v--
		out = append([]byte{0x80 | byte(v&0x7f)}, out...)
	}
	return out
}

// extBlock frames one index extension: 4-byte signature, big-endian
// length, payload.
func extBlock(sig string, payload []byte) []byte {
	var buf bytes.Buffer
	buf.WriteString(sig)
	_ = binary.Write(&buf, binary.BigEndian, uint32(len(payload)))
	buf.Write(payload)
	return buf.Bytes()
}

// retrailer recomputes the checksum after a test has tampered with the
// body bytes.
func retrailer(data []byte) []byte {
	body := data[:len(data)-indexTrailerSize]
	sum := sha1.Sum(body)
	return append(append([]byte{}, body...), sum[:]...)
}

// writeIndexData drops an index image into a temp file and returns its
// path.
func writeIndexData(t testing.TB, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "index")
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

// writeLooseObject places a zlib-compressed object of the given type and
// payload at oid's location under objectsDir, regardless of whether the
// payload actually hashes to oid. Tests use the mismatch deliberately.
func writeLooseObject(t testing.TB, objectsDir string, oid Hash, typ string, payload []byte) {
	t.Helper()
	var buf bytes.Buffer
	zw := zlib.NewWriter(&buf)
	_, err := zw.Write([]byte(typ + " " + strconv.Itoa(len(payload)) + "\x00"))
	require.NoError(t, err)
	_, err = zw.Write(payload)
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	hex := oid.String()
	dir := filepath.Join(objectsDir, hex[:2])
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, hex[2:]), buf.Bytes(), 0o644))
}
