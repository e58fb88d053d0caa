// multi.go – fingerprinting several directories in parallel
package githash

import (
	"context"
	"runtime"
	"sync"

	"github.com/sourcegraph/conc/pool"
)

// HashDirs fingerprints several directories concurrently and returns one
// digest per directory, keyed by the path as given.
//
// Each directory gets a private Repo and Hasher, so the git invocations
// never share an index. After the snapshot is taken, ops runs once per
// Hasher to choose the folds; nil folds the whole tree. The first failure
// cancels the remaining work and is returned.
func HashDirs(ctx context.Context, dirs []string, ops func(*Hasher) error, opts ...HasherOption) (map[string]string, error) {
	if ops == nil {
		ops = func(h *Hasher) error { return h.AddTree("") }
	}

	var mu sync.Mutex
	digests := make(map[string]string, len(dirs))

	p := pool.New().WithMaxGoroutines(runtime.GOMAXPROCS(0)).WithContext(ctx).WithCancelOnError()
	for _, dir := range dirs {
		p.Go(func(ctx context.Context) error {
			h, err := NewHasher(ctx, dir, opts...)
			if err != nil {
				return err
			}
			if err := ops(h); err != nil {
				return err
			}
			mu.Lock()
			digests[dir] = h.Digest()
			mu.Unlock()
			return nil
		})
	}
	if err := p.Wait(); err != nil {
		return nil, err
	}
	return digests, nil
}
