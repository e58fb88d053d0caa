// hasher.go – folding snapshot answers into one digest
package githash

import (
	"context"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"hash"
	"maps"
	"slices"
)

// Hasher accumulates snapshot answers into a single fingerprint.
//
// File and tree folds are order-sensitive: adding the same paths in a
// different order yields a different digest. Metadata is the opposite,
// a key/value set folded in ascending key order after all positional
// folds, so call order never matters and rewriting a key replaces it.
//
// A Hasher is not safe for concurrent use. Run one per goroutine; the
// underlying Repo may be shared.
type Hasher struct {
	repo     *Repo
	repoOpts []Option
	newHash  func() hash.Hash
	folds    [][]byte
	meta     map[string]string
}

// HasherOption customizes a Hasher at construction time.
type HasherOption func(*Hasher)

// WithHashFunc swaps the digest algorithm. The default is SHA-1, which
// keeps fingerprints comparable across implementations; use a stronger
// hash when the fingerprint doubles as an integrity check. Passing nil
// keeps the default.
func WithHashFunc(fn func() hash.Hash) HasherOption {
	return func(h *Hasher) {
		if fn != nil {
			h.newHash = fn
		}
	}
}

// WithRepoOptions forwards options to the Repo that NewHasher builds
// internally. NewHasherFromRepo ignores them, since its Repo already
// exists.
func WithRepoOptions(opts ...Option) HasherOption {
	return func(h *Hasher) { h.repoOpts = append(h.repoOpts, opts...) }
}

// HashByName resolves a digest algorithm by its conventional name:
// "sha1", "sha256" or "sha512".
func HashByName(name string) (func() hash.Hash, error) {
	switch name {
	case "sha1":
		return sha1.New, nil
	case "sha256":
		return sha256.New, nil
	case "sha512":
		return sha512.New, nil
	default:
		return nil, fmt.Errorf("unknown hash algorithm %q", name)
	}
}

// NewHasher prepares a Repo over dir, synchronizes it once, and returns a
// Hasher bound to the fresh snapshot. Repo behavior can be adjusted
// through WithRepoOptions; callers that need full control over the Repo's
// lifecycle should build it with New and use NewHasherFromRepo.
func NewHasher(ctx context.Context, dir string, opts ...HasherOption) (*Hasher, error) {
	h := &Hasher{
		newHash: sha1.New,
		meta:    make(map[string]string),
	}
	for _, opt := range opts {
		opt(h)
	}
	r, err := New(dir, h.repoOpts...)
	if err != nil {
		return nil, err
	}
	if err := r.Synchronize(ctx); err != nil {
		return nil, err
	}
	h.repo = r
	return h, nil
}

// NewHasherFromRepo binds a Hasher to an existing Repo without
// synchronizing it. The caller decides when, and whether, to refresh the
// snapshot.
func NewHasherFromRepo(r *Repo, opts ...HasherOption) *Hasher {
	h := &Hasher{
		repo:    r,
		newHash: sha1.New,
		meta:    make(map[string]string),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Repo returns the repository this Hasher reads from.
func (h *Hasher) Repo() *Repo { return h.repo }

// AddFile folds the canonical entry line of the file at path into the
// fingerprint. The file must be tracked by the current snapshot.
func (h *Hasher) AddFile(path string) error {
	e, err := h.repo.File(path)
	if err != nil {
		return err
	}
	h.folds = append(h.folds, e.Render())
	return nil
}

// AddTree folds the canonical listing of the subtree at prefix into the
// fingerprint. An empty prefix folds the entire tracked tree.
func (h *Hasher) AddTree(prefix string) error {
	buf, err := h.repo.Listing(prefix)
	if err != nil {
		return err
	}
	h.folds = append(h.folds, buf)
	return nil
}

// AddMetadata records a key/value pair to fold into the fingerprint.
// Writing an existing key replaces its value.
func (h *Hasher) AddMetadata(key, value string) {
	h.meta[key] = value
}

// Digest computes the fingerprint over everything added so far: the
// positional folds in the order they were added, then each metadata pair
// in ascending key order. Digest does not consume or reset anything, so
// it can be called at any point and repeatedly; adding more folds
// afterwards extends the same session.
func (h *Hasher) Digest() string {
	d := h.newHash()
	for _, fold := range h.folds {
		d.Write(fold)
	}
	for _, k := range slices.Sorted(maps.Keys(h.meta)) {
		d.Write([]byte(k))
		d.Write([]byte(h.meta[k]))
	}
	return hex.EncodeToString(d.Sum(nil))
}
