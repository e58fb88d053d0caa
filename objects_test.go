package githash

import (
	"bufio"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// storeRepo pairs a snapshot-only Repo with a loose-object store rooted in
// a temp directory, so object-level failure modes can be staged by hand.
func storeRepo(t *testing.T, entries ...Entry) (*Repo, string) {
	t.Helper()
	dir := t.TempDir()
	store, err := newObjectStore(dir)
	require.NoError(t, err)
	r := snapRepo(entries...)
	r.objects = store
	return r, dir
}

func TestReadLooseObject(t *testing.T) {
	cases := []struct {
		name    string
		stream  string
		typ     ObjectType
		payload string
		ok      bool
	}{
		{"blob", "blob 5\x00hello", ObjBlob, "hello", true},
		{"empty blob", "blob 0\x00", ObjBlob, "", true},
		{"tree", "tree 3\x00abc", ObjTree, "abc", true},
		{"commit", "commit 1\x00x", ObjCommit, "x", true},
		{"tag", "tag 1\x00x", ObjTag, "x", true},
		{"no terminator", "blob 5 hello", ObjBad, "", false},
		{"no space", "blob5\x00hello", ObjBad, "", false},
		{"unknown type", "blobby 5\x00hello", ObjBad, "", false},
		{"size not a number", "blob five\x00hello", ObjBad, "", false},
		{"negative size", "blob -1\x00", ObjBad, "", false},
		{"truncated payload", "blob 10\x00hello", ObjBad, "", false},
		{"size vastly overstates stream", "blob 99999999999999999\x00hello", ObjBad, "", false},
		{"trailing garbage", "blob 5\x00helloX", ObjBad, "", false},
		{"oversized header", "blob " + strings.Repeat("1", maxHeaderLen) + "\x00", ObjBad, "", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			typ, data, err := readLooseObject(bufio.NewReader(strings.NewReader(tc.stream)))
			if !tc.ok {
				require.ErrorIs(t, err, ErrCorruptObject)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.typ, typ)
			assert.Equal(t, tc.payload, string(data))
		})
	}
}

func TestObjectTypeString(t *testing.T) {
	assert.Equal(t, "commit", ObjCommit.String())
	assert.Equal(t, "tree", ObjTree.String())
	assert.Equal(t, "blob", ObjBlob.String())
	assert.Equal(t, "tag", ObjTag.String())
	assert.Equal(t, "type(0)", ObjBad.String())
	assert.Equal(t, "type(9)", ObjectType(9).String())
}

func TestObjectStore_ReadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	store, err := newObjectStore(dir)
	require.NoError(t, err)
	writeLooseObject(t, dir, helloBlob, "blob", []byte("hello"))

	typ, data, err := store.read(helloBlob)
	require.NoError(t, err)
	assert.Equal(t, ObjBlob, typ)
	assert.Equal(t, "hello", string(data))
}

func TestObjectStore_NotFound(t *testing.T) {
	store, err := newObjectStore(t.TempDir())
	require.NoError(t, err)

	_, _, err = store.read(helloBlob)
	require.ErrorIs(t, err, ErrObjectNotFound)
	assert.Contains(t, err.Error(), helloBlob.String(), "missing address named in the error")
}

func TestObjectStore_NotZlib(t *testing.T) {
	dir := t.TempDir()
	store, err := newObjectStore(dir)
	require.NoError(t, err)

	hex := helloBlob.String()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, hex[:2]), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, hex[:2], hex[2:]), []byte("not compressed"), 0o644))

	_, _, err = store.read(helloBlob)
	assert.ErrorIs(t, err, ErrCorruptObject)
}

func TestObjectStore_CachesInflatedObjects(t *testing.T) {
	dir := t.TempDir()
	store, err := newObjectStore(dir)
	require.NoError(t, err)
	writeLooseObject(t, dir, helloBlob, "blob", []byte("hello"))

	_, first, err := store.read(helloBlob)
	require.NoError(t, err)

	// Clobber the backing file; a second read must be served from memory.
	hex := helloBlob.String()
	require.NoError(t, os.WriteFile(filepath.Join(dir, hex[:2], hex[2:]), []byte("gone"), 0o644))

	_, second, err := store.read(helloBlob)
	require.NoError(t, err)
	assert.Equal(t, string(first), string(second))
}

func TestRepo_Blob(t *testing.T) {
	r := newTestRepo(t, map[string]string{
		"file":     "hello",
		"dir/deep": "hello2",
	})

	data, err := r.Blob("file")
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))

	deep, err := r.Blob("dir/deep")
	require.NoError(t, err)
	assert.Equal(t, "hello2", string(deep))

	// The returned slice is the caller's to mangle.
	data[0] = 'X'
	again, err := r.Blob("file")
	require.NoError(t, err)
	assert.Equal(t, "hello", string(again))

	var nsf *NoSuchFileError
	_, err = r.Blob("missing")
	assert.ErrorAs(t, err, &nsf)
	_, err = r.Blob("dir")
	assert.ErrorAs(t, err, &nsf, "a directory has no blob")
}

func TestRepo_BlobSymlink(t *testing.T) {
	requireGit(t)
	dir := t.TempDir()
	writeTestLink(t, dir, "link", "some/target")
	r, err := New(dir)
	require.NoError(t, err)
	require.NoError(t, r.Synchronize(context.Background()))

	data, err := r.Blob("link")
	require.NoError(t, err)
	assert.Equal(t, "some/target", string(data), "a link's blob is its target path")
}

func TestRepo_BlobTypeMismatch(t *testing.T) {
	r, objDir := storeRepo(t, ent(ModeRegular, helloBlob, "file"))
	writeLooseObject(t, objDir, helloBlob, "tree", []byte("entries"))

	_, err := r.Blob("file")
	require.ErrorIs(t, err, ErrTypeMismatch)
	assert.Contains(t, err.Error(), "tree")
}

func TestRepo_BlobGitlink(t *testing.T) {
	r, _ := storeRepo(t, ent(ModeGitlink, helloBlob, "vendored"))

	_, err := r.Blob("vendored")
	require.ErrorIs(t, err, ErrTypeMismatch)
	assert.Contains(t, err.Error(), "gitlink")
}

func TestRepo_Verify_Clean(t *testing.T) {
	r := newTestRepo(t, map[string]string{
		"a": "hello",
		"b": "hello2",
	})
	assert.NoError(t, r.Verify(context.Background()))
}

func TestRepo_Verify_ContentMismatch(t *testing.T) {
	r, objDir := storeRepo(t,
		ent(ModeRegular, helloBlob, "good"),
		ent(ModeRegular, hello2Blob, "tampered"),
	)
	writeLooseObject(t, objDir, helloBlob, "blob", []byte("hello"))
	// Well-formed object, wrong content for its address.
	writeLooseObject(t, objDir, hello2Blob, "blob", []byte("not hello2"))

	err := r.Verify(context.Background())
	var ve *VerifyError
	require.ErrorAs(t, err, &ve)
	require.Len(t, ve.Failed, 1)
	assert.ErrorIs(t, ve.Failed["tampered"], ErrCorruptObject)
	assert.Contains(t, err.Error(), "tampered")
}

func TestRepo_Verify_MissingObject(t *testing.T) {
	r, objDir := storeRepo(t,
		ent(ModeRegular, helloBlob, "present"),
		ent(ModeRegular, hello2Blob, "absent"),
	)
	writeLooseObject(t, objDir, helloBlob, "blob", []byte("hello"))

	err := r.Verify(context.Background())
	var ve *VerifyError
	require.ErrorAs(t, err, &ve)
	assert.ErrorIs(t, ve.Failed["absent"], ErrObjectNotFound)
}

func TestRepo_Verify_WrongType(t *testing.T) {
	r, objDir := storeRepo(t, ent(ModeRegular, helloBlob, "file"))
	writeLooseObject(t, objDir, helloBlob, "tag", []byte("ref"))

	err := r.Verify(context.Background())
	var ve *VerifyError
	require.ErrorAs(t, err, &ve)
	assert.ErrorIs(t, ve.Failed["file"], ErrTypeMismatch)
}

func TestRepo_Verify_SkipsGitlinks(t *testing.T) {
	r, _ := storeRepo(t, ent(ModeGitlink, helloBlob, "submodule"))
	assert.NoError(t, r.Verify(context.Background()),
		"gitlink objects live elsewhere and must not be demanded here")
}

func TestRepo_Verify_Canceled(t *testing.T) {
	r, _ := storeRepo(t, ent(ModeRegular, helloBlob, "file"))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, r.Verify(ctx), context.Canceled)
}

func TestBlobSum(t *testing.T) {
	assert.Equal(t, helloBlob, blobSum([]byte("hello")))
	assert.Equal(t, hello2Blob, blobSum([]byte("hello2")))
	assert.Equal(t,
		"e69de29bb2d1d6434b8b29ae775ad8c2e48c5391",
		blobSum(nil).String(),
		"the empty blob has git's well-known address")
	assert.NotEqual(t, blobSum([]byte("a")), blobSum([]byte("b")))
}

func TestParseHash(t *testing.T) {
	h, err := ParseHash("b6fc4c620b67d95f953a5c1c1230aaab5db5a1b0")
	require.NoError(t, err)
	assert.Equal(t, helloBlob, h)
	assert.Equal(t, "b6fc4c620b67d95f953a5c1c1230aaab5db5a1b0", h.String())
	assert.False(t, h.IsZero())
	assert.True(t, Hash{}.IsZero())

	_, err = ParseHash("b6fc")
	assert.Error(t, err, "short input")
	_, err = ParseHash(strings.Repeat("zz", 20))
	assert.Error(t, err, "non-hex input")
}
