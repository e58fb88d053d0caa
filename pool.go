// pool.go – pooled readers for loose-object inflation
package githash

import (
	"bufio"
	"io"
	"sync"

	"github.com/klauspost/compress/zlib"
)

// zrPool recycles zlib inflators between loose-object reads. A zlib reader
// has no zero-value constructor, so the pool starts empty and the first
// callers allocate through zlib.NewReader.
var zrPool = sync.Pool{New: func() any { return nil }}

// brPool recycles the buffered readers that sit between an object file and
// its inflator, so a read does not allocate a fresh 8 KiB buffer each time.
var brPool = sync.Pool{
	New: func() any { return bufio.NewReaderSize(nil, 8<<10) },
}

// getZlibReader returns a pooled inflator reset onto src, or a fresh one
// when the pool is empty or the pooled instance refuses the stream.
//
// getZlibReader fails if src does not begin a valid zlib stream.
func getZlibReader(src io.Reader) (io.ReadCloser, error) {
	if v := zrPool.Get(); v != nil {
		if zr, ok := v.(interface {
			Reset(io.Reader, []byte) error
		}); ok {
			if err := zr.Reset(src, nil); err == nil {
				return zr.(io.ReadCloser), nil
			}
		}
		// Reset failed on a corrupt stream; drop the instance and let the
		// caller see the error from a fresh reader instead.
	}
	return zlib.NewReader(src)
}

// putZlibReader closes r and returns it to the pool for reuse.
func putZlibReader(r io.ReadCloser) {
	_ = r.Close()
	zrPool.Put(r)
}

// getBR returns a pooled bufio.Reader reset onto r.
func getBR(r io.Reader) *bufio.Reader {
	br := brPool.Get().(*bufio.Reader)
	br.Reset(r)
	return br
}

// putBR returns a bufio.Reader to the pool for reuse.
func putBR(br *bufio.Reader) { brPool.Put(br) }
