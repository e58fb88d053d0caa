// unsafe.go – zero-copy view of listing buffers for diffing
package githash

import "unsafe"

// btostr views b as a string without copying. Safe here because rendered
// listings are built once and never mutated afterwards.
func btostr(b []byte) string {
	if len(b) == 0 {
		return ""
	}
	return unsafe.String(&b[0], len(b))
}
