// objects.go – reading staged content back out of the loose-object store
//
// Synchronize makes git write one zlib-compressed loose object per distinct
// file content into the control directory. The functions here read those
// objects back: Blob recovers the bytes behind a tracked path and Verify
// proves that every address the snapshot advertises still resolves to
// matching content.
package githash

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	arc "github.com/hashicorp/golang-lru/arc/v2"
)

// ObjectType enumerates the git object kinds a loose-object header can
// declare. Only blobs are ever rendered into snapshots, but the store
// decodes whatever it finds so that a mismatch can be reported precisely.
type ObjectType byte

const (
	ObjBad    ObjectType = 0
	ObjCommit ObjectType = 1
	ObjTree   ObjectType = 2
	ObjBlob   ObjectType = 3
	ObjTag    ObjectType = 4
)

func (t ObjectType) String() string {
	switch t {
	case ObjCommit:
		return "commit"
	case ObjTree:
		return "tree"
	case ObjBlob:
		return "blob"
	case ObjTag:
		return "tag"
	default:
		return fmt.Sprintf("type(%d)", byte(t))
	}
}

func parseObjectType(tok []byte) ObjectType {
	switch string(tok) {
	case "commit":
		return ObjCommit
	case "tree":
		return ObjTree
	case "blob":
		return ObjBlob
	case "tag":
		return ObjTag
	default:
		return ObjBad
	}
}

// looseCacheSize bounds the number of inflated objects kept in memory.
// ARC adapts between recency and frequency on its own, so one knob is
// enough.
const looseCacheSize = 4096

// maxHeaderLen caps the "<type> <size>\x00" header scan so a corrupt
// stream cannot make the reader consume unbounded garbage.
const maxHeaderLen = 64

// maxSizeHint bounds how much payload capacity the declared size alone
// may reserve. Larger objects still read whole; their buffers grow as
// the bytes actually arrive.
const maxSizeHint = 4 << 20

// looseObject is one inflated object as the cache holds it. The payload
// slice is shared between cache hits and must not be modified.
type looseObject struct {
	typ  ObjectType
	data []byte
}

// objectStore reads loose objects beneath a single objects directory.
type objectStore struct {
	dir   string // e.g. <repo>/.githash/objects
	cache *arc.ARCCache[Hash, *looseObject]
}

func newObjectStore(dir string) (*objectStore, error) {
	cache, err := arc.NewARC[Hash, *looseObject](looseCacheSize)
	if err != nil {
		return nil, err
	}
	return &objectStore{dir: dir, cache: cache}, nil
}

// read inflates the object addressed by oid and returns its declared type
// and payload. The payload is owned by the cache; callers that hand it out
// must copy first.
func (o *objectStore) read(oid Hash) (ObjectType, []byte, error) {
	if obj, ok := o.cache.Get(oid); ok {
		return obj.typ, obj.data, nil
	}

	hex := oid.String()
	f, err := os.Open(filepath.Join(o.dir, hex[:2], hex[2:]))
	if err != nil {
		if os.IsNotExist(err) {
			return ObjBad, nil, fmt.Errorf("%s: %w", hex, ErrObjectNotFound)
		}
		return ObjBad, nil, err
	}
	defer f.Close()

	br := getBR(f)
	defer putBR(br)
	zr, err := getZlibReader(br)
	if err != nil {
		return ObjBad, nil, fmt.Errorf("%s: %w: %v", hex, ErrCorruptObject, err)
	}
	defer putZlibReader(zr)
	zbr := getBR(zr)
	defer putBR(zbr)

	typ, data, err := readLooseObject(zbr)
	if err != nil {
		return ObjBad, nil, fmt.Errorf("%s: %w", hex, err)
	}
	o.cache.Add(oid, &looseObject{typ: typ, data: data})
	return typ, data, nil
}

// readLooseObject decodes an inflated object stream: a "<type> <size>"
// header terminated by a NUL byte, then exactly size payload bytes.
func readLooseObject(r *bufio.Reader) (ObjectType, []byte, error) {
	hdr, err := r.ReadBytes(0)
	if err != nil || len(hdr) > maxHeaderLen {
		return ObjBad, nil, fmt.Errorf("%w: bad header", ErrCorruptObject)
	}
	typTok, sizeTok, ok := bytes.Cut(hdr[:len(hdr)-1], []byte{' '})
	if !ok {
		return ObjBad, nil, fmt.Errorf("%w: bad header", ErrCorruptObject)
	}
	typ := parseObjectType(typTok)
	if typ == ObjBad {
		return ObjBad, nil, fmt.Errorf("%w: unknown type %q", ErrCorruptObject, typTok)
	}
	size, err := strconv.ParseUint(string(sizeTok), 10, 63)
	if err != nil {
		return ObjBad, nil, fmt.Errorf("%w: bad size %q", ErrCorruptObject, sizeTok)
	}

	// The declared size only seeds capacity, capped by maxSizeHint; the
	// buffer then grows with the bytes that actually arrive, so a lying
	// header cannot demand an arbitrary allocation.
	var buf bytes.Buffer
	buf.Grow(int(min(size, maxSizeHint)))
	n, err := io.Copy(&buf, io.LimitReader(r, int64(size)))
	if err != nil || uint64(n) != size {
		return ObjBad, nil, fmt.Errorf("%w: truncated payload", ErrCorruptObject)
	}
	if _, err := r.ReadByte(); err != io.EOF {
		return ObjBad, nil, fmt.Errorf("%w: trailing data after payload", ErrCorruptObject)
	}
	return typ, buf.Bytes(), nil
}

// Blob returns a copy of the staged content of the file at path, as of the
// most recent Synchronize.
//
// The path is resolved exactly like File resolves it. Entries that do not
// name a blob (submodule pointers) fail with ErrTypeMismatch, and content
// that was never written or has since been pruned fails with
// ErrObjectNotFound.
func (r *Repo) Blob(path string) ([]byte, error) {
	e, err := r.File(path)
	if err != nil {
		return nil, err
	}
	if e.Mode == ModeGitlink {
		return nil, fmt.Errorf("%s: %w: gitlink names a commit", e.Path, ErrTypeMismatch)
	}
	typ, data, err := r.objects.read(e.OID)
	if err != nil {
		return nil, err
	}
	if typ != ObjBlob {
		return nil, fmt.Errorf("%s: %w: %v where a blob was expected", e.Path, ErrTypeMismatch, typ)
	}
	return bytes.Clone(data), nil
}

// Verify re-reads every object the current snapshot references and checks
// that its content still hashes to the address the snapshot advertises.
//
// Submodule pointers are skipped; their objects live in the submodule, not
// here. All failures are collected before returning, so one bad object
// does not mask the rest. A nil return means the whole snapshot is intact.
func (r *Repo) Verify(ctx context.Context) error {
	failed := make(map[string]error)
	for _, e := range r.snapshot().Entries() {
		if err := ctx.Err(); err != nil {
			return err
		}
		if e.Mode == ModeGitlink {
			continue
		}
		typ, data, err := r.objects.read(e.OID)
		switch {
		case err != nil:
			failed[e.Path] = err
		case typ != ObjBlob:
			failed[e.Path] = fmt.Errorf("%w: %v where a blob was expected", ErrTypeMismatch, typ)
		case blobSum(data) != e.OID:
			failed[e.Path] = fmt.Errorf("%w: content does not match its address", ErrCorruptObject)
		}
	}
	if len(failed) > 0 {
		return &VerifyError{Failed: failed}
	}
	return nil
}
